package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"reelflow/internal/deps"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	var muxerCommand string
	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Report availability of each dependency environment's external tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver := deps.Resolver{EnvRoot: ctx.envRoot()}
			statuses := resolver.ResolveAll(deps.EnvironmentTools(muxerCommand))

			cols := []col{leftCol("Environment"), leftCol("Tool"), leftCol("Command"), leftCol("Available"), leftCol("Resolved / Detail")}
			var rows [][]string
			for _, s := range statuses {
				available := "yes"
				detail := s.ResolvedPath
				if !s.Available {
					available = "no"
					if s.Optional {
						available = "no (optional)"
					}
					detail = s.Detail
				}
				rows = append(rows, []string{s.Env, s.Name, s.Command, available, detail})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderColumns(cols, rows))
			return nil
		},
	}
	cmd.Flags().StringVar(&muxerCommand, "muxer-command", "ffmpeg", "The demux/mux tool command name the common environment provides")
	return cmd
}
