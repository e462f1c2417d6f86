package hwreport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectPopulatesArchitectureAndCPUCount(t *testing.T) {
	report := Detect(context.Background())
	assert.NotEmpty(t, report.Architecture)
	assert.Greater(t, report.LogicalCPUs, 0)
}

func TestRecommendedASRBatchSizeScalesDownUnderMemoryPressure(t *testing.T) {
	low := Report{AvailMemoryBytes: 2 << 30}
	high := Report{AvailMemoryBytes: 32 << 30}
	assert.Less(t, low.RecommendedASRBatchSize(16), high.RecommendedASRBatchSize(16))
}

func TestRecommendedASRBatchSizeFallsBackWhenMemoryUnknown(t *testing.T) {
	unknown := Report{}
	assert.Equal(t, 16, unknown.RecommendedASRBatchSize(16))
}
