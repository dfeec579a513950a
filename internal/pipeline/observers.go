package pipeline

import (
	"log/slog"

	"git.home.luguber.info/inful/assetpipe/internal/logfields"
	"git.home.luguber.info/inful/assetpipe/internal/metrics"
)

// LogObserver logs stage and run outcomes.
type LogObserver struct {
	Logger *slog.Logger
}

func (o LogObserver) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

func (o LogObserver) OnStageStart(task, stage string) {
	o.logger().Info("Stage starting", logfields.Task(task), logfields.Stage(stage))
}

func (o LogObserver) OnStageComplete(task string, r StageResult) {
	attrs := []any{logfields.Task(task), logfields.Stage(r.Name), logfields.Duration(r.Duration)}
	if r.Err != nil {
		o.logger().Error("Stage failed", append(attrs, logfields.Error(r.Err))...)
		return
	}
	o.logger().Info("Stage completed", attrs...)
}

func (o LogObserver) OnRunComplete(r *Report) {
	attrs := []any{
		logfields.Task(r.Task),
		logfields.Duration(r.Duration),
		slog.Int("succeeded", r.Count(StatusSucceeded)),
		slog.Int("failed", r.Count(StatusFailed)),
		slog.Int("skipped", r.Count(StatusSkipped)),
	}
	if r.Err != nil {
		o.logger().Error("Task failed", attrs...)
		return
	}
	o.logger().Info("Task completed", attrs...)
}

// MetricsObserver forwards outcomes to a metrics.Recorder.
type MetricsObserver struct {
	Recorder metrics.Recorder
}

func (MetricsObserver) OnStageStart(string, string) {}

func (o MetricsObserver) OnStageComplete(_ string, r StageResult) {
	o.Recorder.ObserveStageDuration(r.Name, r.Duration)
	o.Recorder.IncStageResult(r.Name, resultLabel(r.Status))
}

func (o MetricsObserver) OnRunComplete(r *Report) {
	for _, s := range r.Stages {
		if s.Status == StatusSkipped || s.Status == StatusCanceled {
			o.Recorder.IncStageResult(s.Name, resultLabel(s.Status))
		}
	}
	o.Recorder.ObserveRunDuration(r.Task, r.Duration)
	o.Recorder.IncRunOutcome(r.Task, r.Outcome())
}

func resultLabel(s Status) metrics.ResultLabel {
	switch s {
	case StatusSucceeded:
		return metrics.ResultSuccess
	case StatusSkipped:
		return metrics.ResultSkipped
	case StatusCanceled:
		return metrics.ResultCanceled
	default:
		return metrics.ResultFailed
	}
}
