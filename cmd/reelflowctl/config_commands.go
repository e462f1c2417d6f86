package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"reelflow/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and scaffold pipeline defaults",
	}
	cmd.AddCommand(newConfigShowCommand(ctx))
	cmd.AddCommand(newConfigInitCommand(ctx))
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Resolve and print the effective pipeline defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Resolve(config.ResolveOptions{
				DefaultsPath: ctx.defaultsPath(),
				EnvOverrides: os.Environ(),
			})
			if err != nil {
				return fmt.Errorf("resolve config: %w", err)
			}
			if ctx.jsonMode() {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(cfg)
			}
			data, err := toml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	return cmd
}

func newConfigInitCommand(ctx *commandContext) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the built-in pipeline defaults to a TOML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if outPath == "" {
				outPath = config.DefaultDefaultsPath
			}
			data, err := toml.Marshal(config.Default())
			if err != nil {
				return fmt.Errorf("encode defaults: %w", err)
			}
			if err := os.WriteFile(outPath, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", outPath, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote defaults to %s\n", outPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "", "Destination path (default "+config.DefaultDefaultsPath+")")
	return cmd
}
