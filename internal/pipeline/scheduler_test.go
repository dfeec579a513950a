package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu        sync.Mutex
	started   []string
	completed []string
	report    *Report
}

func (o *recordingObserver) OnStageStart(_ string, stage string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, stage)
}

func (o *recordingObserver) OnStageComplete(_ string, r StageResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.completed = append(o.completed, r.Name)
}

func (o *recordingObserver) OnRunComplete(r *Report) { o.report = r }

func TestSchedulerSequentialComposition(t *testing.T) {
	var mu sync.Mutex
	var order []string
	step := func(name string) Stage {
		return Func(name, "", func(context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		})
	}
	g := NewGraph().Add(step("rev")).Add(step("rev-rewrite"), "rev")
	obs := &recordingObserver{}
	report, err := (&Scheduler{Observers: []Observer{obs}}).Run(context.Background(), "cache", g)
	require.NoError(t, err)
	require.True(t, report.Succeeded())
	require.Equal(t, []string{"rev", "rev-rewrite"}, order)
	require.Equal(t, []string{"rev", "rev-rewrite"}, obs.completed)
	require.Same(t, report, obs.report)
}

func TestSchedulerRunsReadyStagesConcurrently(t *testing.T) {
	const width = 4
	var barrier sync.WaitGroup
	barrier.Add(width)
	g := NewGraph().Add(nop("clean"))
	for _, name := range []string{"html", "scripts", "fonts", "images"} {
		g.Add(Func(name, "", func(ctx context.Context) error {
			barrier.Done()
			// Every sibling must be running at the same time to get past here.
			waitCh := make(chan struct{})
			go func() { barrier.Wait(); close(waitCh) }()
			select {
			case <-waitCh:
				return nil
			case <-time.After(2 * time.Second):
				return errors.New("siblings did not run concurrently")
			}
		}), "clean")
	}
	_, err := (&Scheduler{}).Run(context.Background(), "build", g)
	require.NoError(t, err)
}

func TestSchedulerMaxParallel(t *testing.T) {
	var running, peak int32
	g := NewGraph()
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		g.Add(Func(name, "", func(context.Context) error {
			n := atomic.AddInt32(&running, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			return nil
		}))
	}
	_, err := (&Scheduler{MaxParallel: 2}).Run(context.Background(), "t", g)
	require.NoError(t, err)
	require.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestSchedulerFailureSkipsDependents(t *testing.T) {
	boom := errors.New("sass exploded")
	var ranRewrite atomic.Bool
	g := NewGraph().
		Add(nop("clean")).
		Add(Func("styles", "", func(context.Context) error { return boom }), "clean").
		Add(Func("html-minify", "", func(context.Context) error { ranRewrite.Store(true); return nil }), "styles")

	report, err := (&Scheduler{}).Run(context.Background(), "build", g)
	require.ErrorIs(t, err, boom)
	require.False(t, ranRewrite.Load())

	st, _ := report.Stage("styles")
	require.Equal(t, StatusFailed, st.Status)
	mini, _ := report.Stage("html-minify")
	require.Equal(t, StatusSkipped, mini.Status)
	cl, _ := report.Stage("clean")
	require.Equal(t, StatusSucceeded, cl.Status)
	require.False(t, report.Succeeded())
}

func TestSchedulerWaitsForInFlightStages(t *testing.T) {
	boom := errors.New("boom")
	var slowFinished atomic.Bool
	g := NewGraph().
		Add(Func("fast", "", func(context.Context) error { return boom })).
		Add(Func("slow", "", func(context.Context) error {
			time.Sleep(50 * time.Millisecond)
			slowFinished.Store(true)
			return nil
		}))
	report, err := (&Scheduler{}).Run(context.Background(), "t", g)
	require.Error(t, err)
	require.True(t, slowFinished.Load())
	slow, _ := report.Stage("slow")
	require.Equal(t, StatusSucceeded, slow.Status)
}

func TestSchedulerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	g := NewGraph().
		Add(Func("first", "", func(context.Context) error { cancel(); return nil })).
		Add(nop("second"), "first")
	report, err := (&Scheduler{}).Run(ctx, "t", g)
	require.ErrorIs(t, err, context.Canceled)
	second, _ := report.Stage("second")
	require.Equal(t, StatusCanceled, second.Status)
	require.True(t, report.Canceled())
}

func TestSchedulerRecoversPanics(t *testing.T) {
	g := NewGraph().Add(Func("bad", "", func(context.Context) error { panic("oops") }))
	_, err := (&Scheduler{}).Run(context.Background(), "t", g)
	require.ErrorContains(t, err, "panic: oops")
}

func TestSchedulerRejectsInvalidGraph(t *testing.T) {
	g := NewGraph().Add(nop("a"), "b").Add(nop("b"), "a")
	_, err := (&Scheduler{}).Run(context.Background(), "t", g)
	require.ErrorIs(t, err, ErrInvalidGraph)
}
