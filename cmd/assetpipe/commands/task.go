package commands

import (
	"context"

	"git.home.luguber.info/inful/assetpipe/internal/pipeline"
	"git.home.luguber.info/inful/assetpipe/internal/stages"
	"git.home.luguber.info/inful/assetpipe/internal/tasks"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct{}

func (c *BuildCmd) Run(ctx context.Context, g *Global, root *CLI) error {
	return runTask(ctx, g, root, tasks.Build)
}

// CacheCmd implements the 'cache' command.
type CacheCmd struct{}

func (c *CacheCmd) Run(ctx context.Context, g *Global, root *CLI) error {
	return runTask(ctx, g, root, tasks.Cache)
}

// ReleaseCmd implements the 'release' command.
type ReleaseCmd struct{}

func (c *ReleaseCmd) Run(ctx context.Context, g *Global, root *CLI) error {
	return runTask(ctx, g, root, tasks.Release)
}

// CleanCmd implements the 'clean' command.
type CleanCmd struct{}

func (c *CleanCmd) Run(ctx context.Context, g *Global, root *CLI) error {
	cfg, logger, err := root.LoadConfig()
	if err != nil {
		return err
	}
	rt := NewRuntime(cfg, logger, false)
	defer rt.Close()

	set, err := rt.Stages(stages.Clean)
	if err != nil {
		return err
	}
	graph := pipeline.NewGraph().Add(set.MustStage(stages.Clean))
	report, err := rt.Run(ctx, stages.Clean, graph)
	printReport(g.out(), report)
	return err
}

// RunCmd implements the 'run' command.
type RunCmd struct {
	Stages   []string `arg:"" name:"stage" help:"Stages to run (see 'graph release')"`
	WithDeps bool     `name:"with-deps" help:"Also run the stages the selection depends on"`
	Dev      bool     `help:"Use the development variants (source maps, no minification pass)"`
}

func (c *RunCmd) Run(ctx context.Context, g *Global, root *CLI) error {
	cfg, logger, err := root.LoadConfig()
	if err != nil {
		return err
	}
	rt := NewRuntime(cfg, logger, false)
	defer rt.Close()
	return runSelection(ctx, g, rt, c.Stages, c.WithDeps, c.Dev)
}

func runSelection(ctx context.Context, g *Global, rt *Runtime, names []string, withDeps, dev bool) error {
	full, err := rt.FullGraph(dev)
	if err != nil {
		return err
	}
	graph, err := Select(full, names, withDeps)
	if err != nil {
		return err
	}
	report, err := rt.Run(ctx, "run", graph)
	printReport(g.out(), report)
	return err
}

func runTask(ctx context.Context, g *Global, root *CLI, task string) error {
	cfg, logger, err := root.LoadConfig()
	if err != nil {
		return err
	}
	rt := NewRuntime(cfg, logger, tasks.IsDev(task))
	defer rt.Close()
	_, err = runGraph(ctx, g, rt, task)
	return err
}

func runGraph(ctx context.Context, g *Global, rt *Runtime, task string) (*pipeline.Report, error) {
	graph, err := rt.Graph(task)
	if err != nil {
		return nil, err
	}
	report, err := rt.Run(ctx, task, graph)
	printReport(g.out(), report)
	return report, err
}
