package main

// Presentation helpers for reelflowctl's tabular output: a column-spec
// driven renderer plus the status coloring shared by the job and stage
// views.

import (
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"reelflow/internal/stageio"
)

// col declares one output column: its header and how its cells align.
// Numeric and size columns read better right-aligned; names and free text
// stay left.
type col struct {
	title string
	align text.Align
}

func leftCol(title string) col  { return col{title: title, align: text.AlignLeft} }
func rightCol(title string) col { return col{title: title, align: text.AlignRight} }

// renderColumns renders rows under the declared columns. Rows shorter
// than the column list are padded with empty cells so a sparse row can't
// shift its neighbors into the wrong column.
func renderColumns(cols []col, rows [][]string) string {
	if len(cols) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)

	header := make(table.Row, len(cols))
	configs := make([]table.ColumnConfig, len(cols))
	for i, c := range cols {
		header[i] = c.title
		configs[i] = table.ColumnConfig{Number: i + 1, Align: c.align, AlignHeader: text.AlignLeft}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range rows {
		r := make(table.Row, len(cols))
		for i := range r {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}
	return tw.Render()
}

// statusCell colors a stage or job status by outcome: green for success,
// red for failed, yellow for partial or skipped, cyan for running.
// Coloring degrades to plain text off-terminal.
func statusCell(status string) string {
	switch status {
	case string(stageio.StatusSuccess):
		return color.GreenString(status)
	case string(stageio.StatusFailed):
		return color.RedString(status)
	case string(stageio.JobPartial), string(stageio.StatusSkipped):
		return color.YellowString(status)
	case string(stageio.StatusRunning):
		return color.CyanString(status)
	default:
		return status
	}
}
