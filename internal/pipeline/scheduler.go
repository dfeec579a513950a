package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"git.home.luguber.info/inful/assetpipe/internal/logfields"
)

// Scheduler runs a Graph, starting every stage whose dependencies have all
// succeeded.
type Scheduler struct {
	// MaxParallel bounds concurrently running stages; zero means unbounded.
	MaxParallel int
	Observers   []Observer
	Logger      *slog.Logger
}

type completion struct {
	index  int
	result StageResult
}

// Run executes g under the given task name. After the first failure no new
// stage starts, in-flight stages are awaited and every stage left unstarted
// is marked skipped (or canceled when ctx ended). The returned error joins
// all stage failures.
func (s *Scheduler) Run(ctx context.Context, task string, g *Graph) (*Report, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	report := &Report{Task: task, Started: time.Now(), Stages: make([]StageResult, g.Len())}
	for i, n := range g.nodes {
		report.Stages[i] = StageResult{Name: n.Stage.Name()}
	}
	indeg, dependents := g.edges()

	var ready []int
	for i, n := range g.nodes {
		if indeg[n.Stage.Name()] == 0 {
			ready = append(ready, i)
		}
	}

	done := make(chan completion)
	running := 0
	stopped := false
	var errs []error

	for len(ready) > 0 || running > 0 {
		if !stopped && ctx.Err() != nil {
			stopped = true
		}
		for !stopped && len(ready) > 0 && (s.MaxParallel <= 0 || running < s.MaxParallel) {
			i := ready[0]
			ready = ready[1:]
			running++
			go s.runStage(ctx, task, i, g.nodes[i].Stage, done, logger)
		}
		if stopped {
			ready = nil
		}
		if running == 0 {
			break
		}

		c := <-done
		running--
		report.Stages[c.index] = c.result
		s.notifyComplete(task, c.result)

		if c.result.Status != StatusSucceeded {
			stopped = true
			errs = append(errs, c.result.Err)
			continue
		}
		for _, d := range dependents[c.result.Name] {
			indeg[d]--
			if indeg[d] == 0 {
				ready = append(ready, g.index[d])
			}
		}
	}

	canceled := ctx.Err()
	for i := range report.Stages {
		if report.Stages[i].Status != "" {
			continue
		}
		if canceled != nil {
			report.Stages[i].Status = StatusCanceled
		} else {
			report.Stages[i].Status = StatusSkipped
		}
	}
	if canceled != nil && len(errs) == 0 {
		errs = append(errs, canceled)
	}

	report.Duration = time.Since(report.Started)
	report.Err = errors.Join(errs...)
	for _, o := range s.Observers {
		o.OnRunComplete(report)
	}
	return report, report.Err
}

func (s *Scheduler) runStage(ctx context.Context, task string, index int, st Stage, done chan<- completion, logger *slog.Logger) {
	name := st.Name()
	for _, o := range s.Observers {
		o.OnStageStart(task, name)
	}
	logger.Debug("Stage started", logfields.Task(task), logfields.Stage(name))

	started := time.Now()
	err := safeRun(ctx, st)
	res := StageResult{Name: name, Started: started, Duration: time.Since(started), Status: StatusSucceeded}
	if err != nil {
		res.Status = StatusFailed
		res.Err = fmt.Errorf("stage %s: %w", name, err)
	}
	done <- completion{index: index, result: res}
}

func safeRun(ctx context.Context, st Stage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return st.Run(ctx)
}

func (s *Scheduler) notifyComplete(task string, res StageResult) {
	for _, o := range s.Observers {
		o.OnStageComplete(task, res)
	}
}
