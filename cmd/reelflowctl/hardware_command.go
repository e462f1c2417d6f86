package main

import (
	"encoding/json"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"reelflow/internal/envmanager"
)

func newHardwareCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hardware",
		Short: "Detect the host's hardware capability and the ASR environment it selects",
		RunE: func(cmd *cobra.Command, args []string) error {
			report := ctx.ensureHardware(cmd.Context())

			if ctx.jsonMode() {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			cols := []col{leftCol("Field"), leftCol("Value")}
			rows := [][]string{
				{"Architecture", report.Architecture},
				{"OS", report.OS},
				{"CPU", report.CPUModel},
				{"Logical CPUs", fmt.Sprintf("%d", report.LogicalCPUs)},
				{"Total memory", humanize.Bytes(report.TotalMemoryBytes)},
				{"Available memory", humanize.Bytes(report.AvailMemoryBytes)},
				{"Apple Silicon", yesNo(report.AppleSilicon)},
				{"ASR environment", envmanager.ResolveASREnvironment(report)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderColumns(cols, rows))
			return nil
		},
	}
	return cmd
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
