package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"reelflow/internal/registry"
)

func newStagesCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stages",
		Short: "List the fixed stage registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			cols := []col{rightCol("#"), leftCol("Stage"), leftCol("Environment"), leftCol("Fatal (transcribe/translate/subtitle)")}
			var rows [][]string
			for _, d := range registry.StagesInOrder() {
				rows = append(rows, []string{
					fmt.Sprintf("%d", d.Number),
					string(d.Name),
					d.Env,
					fmt.Sprintf("%s / %s / %s",
						fatalLabel(d, registry.Transcribe),
						fatalLabel(d, registry.Translate),
						fatalLabel(d, registry.Subtitle)),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderColumns(cols, rows))
			return nil
		},
	}
	return cmd
}

func fatalLabel(d registry.Descriptor, workflow registry.WorkflowKind) string {
	if !d.InWorkflow(workflow) {
		return "-"
	}
	if d.IsFatal(workflow) {
		return "fatal"
	}
	return "optional"
}
