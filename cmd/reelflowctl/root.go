package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var outputRootFlag string
	var defaultsFlag string
	var binDirFlag string
	var envRootFlag string
	var logLevelFlag string
	var jsonOutput bool

	ctx := newCommandContext(&outputRootFlag, &defaultsFlag, &binDirFlag, &envRootFlag, &logLevelFlag, &jsonOutput)

	rootCmd := &cobra.Command{
		Use:           "reelflowctl",
		Short:         "reelflow pipeline CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&outputRootFlag, "output-root", "", "Date-partitioned job output root (default ~/.local/share/reelflow/jobs)")
	rootCmd.PersistentFlags().StringVar(&defaultsFlag, "defaults", "", "Pipeline defaults TOML file path")
	rootCmd.PersistentFlags().StringVar(&binDirFlag, "bin-dir", "", "Directory containing the cmd/stages/* binaries and reelflowstage (default: reelflowctl's own directory)")
	rootCmd.PersistentFlags().StringVar(&envRootFlag, "env-root", "", "Parent directory of each isolated dependency environment (default ~/.local/share/reelflow/envs)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	rootCmd.AddCommand(newJobCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))
	rootCmd.AddCommand(newStagesCommand(ctx))
	rootCmd.AddCommand(newDepsCommand(ctx))
	rootCmd.AddCommand(newHardwareCommand(ctx))

	return rootCmd
}
