package main

import (
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestRenderColumnsPadsShortRows(t *testing.T) {
	out := renderColumns(
		[]col{leftCol("Stage"), rightCol("Duration")},
		[][]string{{"demux", "3s"}, {"asr"}},
	)
	assert.Contains(t, out, "Stage")
	assert.Contains(t, out, "demux")
	assert.Contains(t, out, "asr")
}

func TestRenderColumnsEmptyColumnList(t *testing.T) {
	assert.Equal(t, "", renderColumns(nil, [][]string{{"x"}}))
}

func TestStatusCellPassesStatusTextThrough(t *testing.T) {
	color.NoColor = true
	assert.Equal(t, "success", statusCell("success"))
	assert.Equal(t, "failed", statusCell("failed"))
	assert.Equal(t, "partial", statusCell("partial"))
	assert.Equal(t, "some-unknown-state", statusCell("some-unknown-state"))
}
