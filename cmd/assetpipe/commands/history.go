package commands

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/history"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit int `short:"n" help:"Number of runs to show" default:"10"`
}

func (cmd *HistoryCmd) Run(ctx context.Context, g *Global, root *CLI) error {
	cfg, _, err := root.LoadConfig()
	if err != nil {
		return err
	}
	if cfg.History.Disabled {
		return errors.ConfigError("run history is disabled (history.disabled)").Build()
	}
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "open run history").
			WithContext("path", cfg.History.Path).Build()
	}
	defer func() { _ = store.Close() }()

	runs, err := store.List(ctx, cmd.Limit)
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "read run history").
			WithContext("path", cfg.History.Path).Build()
	}
	_, _ = fmt.Fprint(g.out(), RenderRuns(runs))
	return nil
}
