package commands

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
	"git.home.luguber.info/inful/assetpipe/internal/pipeline"
	"git.home.luguber.info/inful/assetpipe/internal/server"
	"git.home.luguber.info/inful/assetpipe/internal/tasks"
	"git.home.luguber.info/inful/assetpipe/internal/watch"
)

// DevCmd implements the 'dev' command.
type DevCmd struct {
	NoServe bool `name:"no-serve" help:"Watch and rebuild without starting the dev server"`
}

func (c *DevCmd) Run(ctx context.Context, g *Global, root *CLI) error {
	cfg, logger, err := root.LoadConfig()
	if err != nil {
		return err
	}
	rt := NewRuntime(cfg, logger, true)
	defer rt.Close()
	return c.serve(ctx, g, rt)
}

// serve runs the initial dev build, then serves and watches until ctx ends.
// A failed initial build is reported but does not stop watching: the next
// change gets another chance.
func (c *DevCmd) serve(ctx context.Context, g *Global, rt *Runtime) error {
	cfg, logger := rt.Config, rt.Logger

	if _, err := runGraph(ctx, g, rt, tasks.Dev); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		logger.Warn("Initial build failed; watching for changes", logfields.Error(err))
	}

	full, err := rt.FullGraph(true)
	if err != nil {
		return err
	}

	var srv *server.Server
	if !c.NoServe {
		srv = server.New(server.Options{
			Root:        cfg.Paths.Dest,
			Addr:        cfg.Address(),
			Hub:         rt.Hub,
			Metrics:     rt.MetricsHandler(),
			MetricsPath: cfg.Metrics.Path,
			Logger:      logger,
		})
		if err := srv.Start(ctx); err != nil {
			return errors.WrapError(err, errors.CategoryNetwork, "start dev server").
				WithContext("addr", cfg.Address()).Build()
		}
		_, _ = fmt.Fprintf(g.out(), "Serving %s at http://%s\n", cfg.Paths.Dest, srv.Addr())
	}

	w := &watch.Watcher{
		Root:     cfg.Paths.Source,
		Bindings: watch.DefaultBindings(),
		Debounce: cfg.DebounceDuration(),
		Rebuild:  rebuilder(rt, full),
		Logger:   logger,
	}
	if rt.Hub != nil {
		w.Reloader = rt.Hub
	}
	watchErr := w.Run(ctx)

	if srv != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), server.ShutdownTimeout)
		defer cancel()
		if err := srv.Stop(stopCtx); err != nil {
			logger.Warn("Dev server shutdown incomplete", logfields.Error(err))
		}
	}
	if watchErr != nil {
		return errors.WrapError(watchErr, errors.CategoryFileSystem, "watch source tree").
			WithContext("path", cfg.Paths.Source).Build()
	}
	return nil
}

// rebuilder runs exactly the binding's stages from the dev graph.
func rebuilder(rt *Runtime, full *pipeline.Graph) watch.RebuildFunc {
	return func(ctx context.Context, b watch.Binding) error {
		graph, err := Select(full, b.Stages, false)
		if err != nil {
			return err
		}
		_, err = rt.Run(ctx, tasks.Dev, graph)
		return err
	}
}
