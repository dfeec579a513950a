package pipeline

import (
	"time"

	"git.home.luguber.info/inful/assetpipe/internal/metrics"
)

// Status is the final state of a stage within a run.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	// StatusSkipped marks stages not started because a dependency or a
	// sibling failed.
	StatusSkipped Status = "skipped"
	// StatusCanceled marks stages not started because the context ended.
	StatusCanceled Status = "canceled"
)

// StageResult records the outcome of one stage.
type StageResult struct {
	Name     string
	Status   Status
	Started  time.Time
	Duration time.Duration
	Err      error
}

// Report summarises a scheduler run. Stages appear in graph insertion order.
type Report struct {
	Task     string
	Started  time.Time
	Duration time.Duration
	Stages   []StageResult
	Err      error
}

// Succeeded reports whether every stage succeeded.
func (r *Report) Succeeded() bool {
	if r.Err != nil {
		return false
	}
	for _, s := range r.Stages {
		if s.Status != StatusSucceeded {
			return false
		}
	}
	return true
}

// Canceled reports whether the run was cut short by its context.
func (r *Report) Canceled() bool {
	for _, s := range r.Stages {
		if s.Status == StatusCanceled {
			return true
		}
	}
	return false
}

// Outcome classifies the whole run.
func (r *Report) Outcome() metrics.RunOutcomeLabel {
	switch {
	case r.Canceled():
		return metrics.RunCanceled
	case r.Err != nil:
		return metrics.RunFailed
	default:
		return metrics.RunSuccess
	}
}

// Stage returns the result for name.
func (r *Report) Stage(name string) (StageResult, bool) {
	for _, s := range r.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return StageResult{}, false
}

// Count returns how many stages ended with status.
func (r *Report) Count(status Status) int {
	n := 0
	for _, s := range r.Stages {
		if s.Status == status {
			n++
		}
	}
	return n
}

// Observer receives scheduling events. Callbacks for parallel stages may
// arrive concurrently.
type Observer interface {
	OnStageStart(task, stage string)
	OnStageComplete(task string, result StageResult)
	OnRunComplete(report *Report)
}

// NoopObserver ignores all events; embed it to implement a subset.
type NoopObserver struct{}

func (NoopObserver) OnStageStart(string, string)         {}
func (NoopObserver) OnStageComplete(string, StageResult) {}
func (NoopObserver) OnRunComplete(*Report)               {}
