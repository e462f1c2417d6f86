package orchestrator

import (
	"reelflow/internal/registry"
	"reelflow/internal/stageio"
)

// StageOutcome records one stage's disposition for terminal-status
// aggregation: whether it was fatal for this workflow and what status it
// finalized (or was resumed) with.
type StageOutcome struct {
	Name   registry.StageName
	Status stageio.Status
	Fatal  bool
}

// AggregateTerminalStatus derives the job's terminal status: success iff every fatal
// stage finished success; partial iff every fatal stage succeeded but at
// least one optional stage failed; failed iff a fatal stage failed.
// abortedOnFatal is set once the run loop breaks early on a fatal failure.
func AggregateTerminalStatus(outcomes []StageOutcome, abortedOnFatal bool) stageio.JobStatus {
	if abortedOnFatal {
		return stageio.JobFailed
	}
	partial := false
	for _, o := range outcomes {
		if o.Fatal && o.Status != stageio.StatusSuccess {
			return stageio.JobFailed
		}
		if !o.Fatal && o.Status != stageio.StatusSuccess && o.Status != stageio.StatusSkipped {
			partial = true
		}
	}
	if partial {
		return stageio.JobPartial
	}
	return stageio.JobSuccess
}
