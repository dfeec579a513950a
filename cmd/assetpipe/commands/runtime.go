package commands

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/assetpipe/internal/config"
	"git.home.luguber.info/inful/assetpipe/internal/fonts"
	"git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/history"
	"git.home.luguber.info/inful/assetpipe/internal/images"
	"git.home.luguber.info/inful/assetpipe/internal/livereload"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
	"git.home.luguber.info/inful/assetpipe/internal/metrics"
	"git.home.luguber.info/inful/assetpipe/internal/minify"
	"git.home.luguber.info/inful/assetpipe/internal/notify"
	"git.home.luguber.info/inful/assetpipe/internal/pipeline"
	"git.home.luguber.info/inful/assetpipe/internal/retry"
	"git.home.luguber.info/inful/assetpipe/internal/stages"
	"git.home.luguber.info/inful/assetpipe/internal/styles"
	"git.home.luguber.info/inful/assetpipe/internal/tasks"
)

// Runtime wires the collaborators shared by every task a command runs:
// metrics, notifications, run history and the external tool clients.
type Runtime struct {
	Config   *config.Config
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Recorder metrics.Recorder
	Notifier *notify.Notifier
	// Hub is set in dev mode unless live reload is disabled.
	Hub *livereload.Hub

	Sass      styles.SassCompiler
	Converter fonts.Converter
	Shrinker  images.Shrinker
	Minifier  *minify.Minifier

	history *history.Store
	nats    *notify.NATSSink
	closers []func()
}

// NewRuntime builds the runtime for cfg. Optional integrations (history,
// NATS) that fail to start are logged and left out.
func NewRuntime(cfg *config.Config, logger *slog.Logger, dev bool) *Runtime {
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Runtime{
		Config:   cfg,
		Logger:   logger,
		Recorder: metrics.NoopRecorder{},
		Notifier: notify.New(notify.LogSink{Logger: logger}),
		Minifier: minify.New(),
	}

	if !cfg.Metrics.Disabled {
		rt.Registry = prometheus.NewRegistry()
		rt.Recorder = metrics.NewPrometheusRecorder(rt.Registry)
	}

	if dev && !cfg.Server.DisableLiveReload {
		rt.Hub = livereload.NewHub(logger)
		rt.Notifier.Add(notify.BrowserSink{Hub: rt.Hub})
	}

	if cfg.Notify.NATSURL != "" {
		sink, err := notify.DialNATS(cfg.Notify.NATSURL, cfg.Notify.Subject, logger)
		if err != nil {
			logger.Warn("NATS notifications disabled", logfields.URL(cfg.Notify.NATSURL), logfields.Error(err))
		} else {
			rt.nats = sink
			rt.Notifier.Add(sink)
			rt.closers = append(rt.closers, sink.Close)
		}
	}

	if !cfg.History.Disabled {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			logger.Warn("Run history disabled", logfields.Path(cfg.History.Path), logfields.Error(err))
		} else {
			store.Commit = history.SourceCommit(cfg.Paths.Source)
			store.Logger = logger
			rt.history = store
			rt.closers = append(rt.closers, func() { _ = store.Close() })
		}
	}

	sass := styles.NewDartSass(cfg.Styles.DartSass)
	rt.Sass = sass
	rt.closers = append(rt.closers, func() { _ = sass.Close() })

	if key := cfg.Images.Tinify.APIKey; key != "" {
		client := images.NewTinifyClient(cfg.Images.Tinify.Endpoint, key, cfg.TinifyTimeout(), retry.FromConfig(cfg.Images.Retry))
		client.Recorder = rt.Recorder
		rt.Shrinker = client
	}
	return rt
}

// Stages builds the stage set for task. The compile-error policy comes from
// the configuration (already carrying any flag override).
func (rt *Runtime) Stages(task string) (*stages.Set, error) {
	return stages.New(stages.Env{
		Config:    rt.Config,
		Dev:       tasks.IsDev(task),
		Policy:    rt.Config.CompileErrorPolicyFor(task),
		Notifier:  rt.Notifier,
		Recorder:  rt.Recorder,
		Logger:    rt.Logger,
		Sass:      rt.Sass,
		Converter: rt.Converter,
		Shrinker:  rt.Shrinker,
		Minifier:  rt.Minifier,
	})
}

// Graph builds the stage graph for a named task.
func (rt *Runtime) Graph(task string) (*pipeline.Graph, error) {
	set, err := rt.Stages(task)
	if err != nil {
		return nil, err
	}
	g, err := tasks.Graph(task, set)
	if err != nil {
		return nil, errors.ValidationError(err.Error()).WithContext("task", task).Build()
	}
	return g, nil
}

// FullGraph returns every stage wired as in the release task, built with
// the dev or production variants. Stage selections are cut from it.
func (rt *Runtime) FullGraph(dev bool) (*pipeline.Graph, error) {
	variant := tasks.Release
	if dev {
		variant = tasks.Dev
	}
	set, err := rt.Stages(variant)
	if err != nil {
		return nil, err
	}
	return tasks.Graph(tasks.Release, set)
}

// Select cuts the named stages out of full. withDeps adds their transitive
// dependencies; otherwise edges to unselected stages are dropped.
func Select(full *pipeline.Graph, names []string, withDeps bool) (*pipeline.Graph, error) {
	var (
		g   *pipeline.Graph
		err error
	)
	if withDeps {
		g, err = full.Subgraph(names...)
	} else {
		g, err = full.Only(names...)
	}
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryValidation, "invalid stage selection").
			WithContext("valid", full.Names()).Build()
	}
	return g, nil
}

// Scheduler returns a scheduler reporting to the log, metrics, history
// and NATS.
func (rt *Runtime) Scheduler() *pipeline.Scheduler {
	observers := []pipeline.Observer{
		pipeline.LogObserver{Logger: rt.Logger},
		pipeline.MetricsObserver{Recorder: rt.Recorder},
	}
	if rt.history != nil {
		observers = append(observers, rt.history)
	}
	if rt.nats != nil {
		observers = append(observers, rt.nats)
	}
	return &pipeline.Scheduler{
		MaxParallel: rt.Config.Build.MaxParallel,
		Observers:   observers,
		Logger:      rt.Logger,
	}
}

// Run executes g under task.
func (rt *Runtime) Run(ctx context.Context, task string, g *pipeline.Graph) (*pipeline.Report, error) {
	report, err := rt.Scheduler().Run(ctx, task, g)
	if err != nil && report == nil {
		return nil, errors.WrapError(err, errors.CategoryInternal, "invalid stage graph").
			WithContext("task", task).Build()
	}
	return report, err
}

// History returns the run history store, or nil when disabled.
func (rt *Runtime) History() *history.Store { return rt.history }

// MetricsHandler exposes the registry, or nil when metrics are disabled.
func (rt *Runtime) MetricsHandler() http.Handler {
	if rt.Registry == nil {
		return nil
	}
	return metrics.HTTPHandler(rt.Registry)
}

// Close releases tool processes and connections in reverse order.
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}
