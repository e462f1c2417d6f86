package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageNumbersAreContiguousWithNoGapsOrDuplicates(t *testing.T) {
	seen := map[int]bool{}
	for _, d := range StagesInOrder() {
		assert.False(t, seen[d.Number], "duplicate stage number %d", d.Number)
		seen[d.Number] = true
	}
	for i := 1; i <= len(seen); i++ {
		assert.True(t, seen[i], "missing stage number %d", i)
	}
}

func TestStageDirectoryIsZeroPaddedNumberUnderscoreName(t *testing.T) {
	dir, err := StageDirectory(Demux)
	require.NoError(t, err)
	assert.Equal(t, "01_demux", dir)

	dir, err = StageDirectory(Mux)
	require.NoError(t, err)
	assert.Equal(t, "11_mux", dir)
}

func TestTranslationFatalOnlyForTranslateAndSubtitle(t *testing.T) {
	fatalTranslate, err := Fatal(Translation, Translate)
	require.NoError(t, err)
	assert.True(t, fatalTranslate)

	fatalTranscribe, err := Fatal(Translation, Transcribe)
	require.NoError(t, err)
	assert.False(t, fatalTranscribe)
}

func TestDemuxAlwaysFatalRegardlessOfWorkflow(t *testing.T) {
	for _, kind := range []WorkflowKind{Transcribe, Translate, Subtitle} {
		fatal, err := Fatal(Demux, kind)
		require.NoError(t, err)
		assert.True(t, fatal)
	}
}

func TestPrecedingReturnsImmediatelyPriorStage(t *testing.T) {
	prev, ok := Preceding(ASR)
	require.True(t, ok)
	assert.Equal(t, PyannoteVAD, prev.Name)

	_, ok = Preceding(Demux)
	assert.False(t, ok)
}

func TestLookupUnknownStageFails(t *testing.T) {
	_, err := StageNumber("not_a_stage")
	assert.Error(t, err)
}
