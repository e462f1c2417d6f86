// Package hwreport produces a read-only hardware capability report the
// Environment Manager's ASR/translation environment-selection policy
// consults. It never schedules or reserves resources; it only describes
// what the host looks like at the moment it is asked.
package hwreport

import (
	"context"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

// Report describes the host's compute capability as of the moment it was
// generated.
type Report struct {
	Architecture     string
	OS               string
	CPUModel         string
	LogicalCPUs      int
	TotalMemoryBytes uint64
	AvailMemoryBytes uint64
	AppleSilicon     bool
}

// Detect queries the host once and returns a Report. Probe failures are not
// fatal: gopsutil errors degrade individual fields to their zero value
// rather than failing the whole report, since a capability hint is
// advisory, not a correctness requirement.
func Detect(ctx context.Context) Report {
	report := Report{
		Architecture: runtime.GOARCH,
		OS:           runtime.GOOS,
		LogicalCPUs:  runtime.NumCPU(),
	}

	if info, err := host.InfoWithContext(ctx); err == nil && info != nil {
		report.OS = info.Platform
	}
	if cpuInfo, err := cpu.InfoWithContext(ctx); err == nil && len(cpuInfo) > 0 {
		report.CPUModel = cpuInfo[0].ModelName
	}
	if vmem, err := mem.VirtualMemoryWithContext(ctx); err == nil && vmem != nil {
		report.TotalMemoryBytes = vmem.Total
		report.AvailMemoryBytes = vmem.Available
	}

	report.AppleSilicon = report.OS == "darwin" &&
		(report.Architecture == "arm64" || strings.Contains(strings.ToLower(report.CPUModel), "apple"))
	return report
}

// SupportsOptimizedASRBackend reports whether the host can run the
// Apple-Silicon-optimized ASR backend (MLX) rather than falling back to the
// portable WhisperX backend.
func (r Report) SupportsOptimizedASRBackend() bool {
	return r.AppleSilicon
}

// RecommendedASRBatchSize hints a batch size proportional to available
// memory, letting the Environment Manager's policy give stage modules a
// sane starting point without hand-coding a memory threshold table.
func (r Report) RecommendedASRBatchSize(defaultSize int) int {
	const gib = 1 << 30
	switch {
	case r.AvailMemoryBytes == 0:
		return defaultSize
	case r.AvailMemoryBytes >= 16*gib:
		return defaultSize
	case r.AvailMemoryBytes >= 8*gib:
		return max(1, defaultSize/2)
	default:
		return max(1, defaultSize/4)
	}
}
