package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/pipeline"
	"git.home.luguber.info/inful/assetpipe/internal/tasks"
)

// GraphCmd implements the 'graph' command.
type GraphCmd struct {
	Task   string `arg:"" optional:"" help:"Task to visualize: dev, build, cache or release" default:"release"`
	Format string `short:"f" help:"Output format: text, mermaid, dot, json" default:"text" enum:"text,mermaid,dot,json"`
	Output string `short:"o" help:"Output file path (optional, prints to stdout if not specified)"`
}

// Run executes the graph command. The graph is built from configuration
// only; no stage runs.
func (cmd *GraphCmd) Run(_ context.Context, g *Global, root *CLI) error {
	cfg, logger, err := root.LoadConfig()
	if err != nil {
		return err
	}
	cfg.History.Disabled = true
	cfg.Notify.NATSURL = ""
	rt := NewRuntime(cfg, logger, tasks.IsDev(cmd.Task))
	defer rt.Close()

	graph, err := rt.Graph(cmd.Task)
	if err != nil {
		return err
	}
	output, err := pipeline.Render(cmd.Task, graph, pipeline.Format(cmd.Format))
	if err != nil {
		return errors.WrapError(err, errors.CategoryValidation, "failed to visualize task").
			WithContext("task", cmd.Task).Build()
	}
	if !strings.HasSuffix(output, "\n") {
		output += "\n"
	}

	if cmd.Output != "" {
		if err := os.WriteFile(cmd.Output, []byte(output), 0o600); err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "failed to write output file").
				WithContext("path", cmd.Output).Build()
		}
		slog.Info("Graph written", "file", cmd.Output, "format", cmd.Format)
		return nil
	}
	_, _ = fmt.Fprint(g.out(), output)
	return nil
}
