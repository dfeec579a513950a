package commands

import (
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/assetpipe/internal/config"
	"git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
)

// Global context passed to subcommands.
type Global struct {
	// Out receives user-facing output (summaries, graphs, history).
	Out io.Writer
}

func (g *Global) out() io.Writer {
	if g == nil || g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

// CLI definition & global flags.
type CLI struct {
	Config         string           `short:"c" help:"Configuration file path" default:"assetpipe.yaml"`
	Verbose        bool             `short:"v" help:"Enable verbose logging"`
	LogFormat      string           `name:"log-format" help:"Log format: text or json (overrides logging.format)"`
	OnCompileError string           `name:"on-compile-error" help:"Compile error policy: notify or fail (overrides build.on_compile_error)"`
	Version        kong.VersionFlag `name:"version" help:"Show version and exit"`

	Dev     DevCmd     `cmd:"" default:"1" help:"Build, then serve the destination with live reload and rebuild on change"`
	Build   BuildCmd   `cmd:"" help:"Production build: compile, compress images and minify pages"`
	Cache   CacheCmd   `cmd:"" help:"Rename assets after their content hash and rewrite page references"`
	Release ReleaseCmd `cmd:"" help:"Production build followed by cache busting"`
	Clean   CleanCmd   `cmd:"" help:"Empty the destination directory"`
	Run     RunCmd     `cmd:"" help:"Run individual stages"`
	Graph   GraphCmd   `cmd:"" help:"Visualize a task's stage graph (text, mermaid, dot, json)"`
	History HistoryCmd `cmd:"" help:"Show recent runs"`
	Init    InitCmd    `cmd:"" help:"Initialize a new configuration file"`
}

// AfterApply runs after flag parsing; installs a bootstrap logger until the
// configuration is loaded.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	logger := config.NewLogger(os.Stderr, config.LogLevelInfo, config.NormalizeLogFormat(c.LogFormat), c.Verbose)
	slog.SetDefault(logger)
	return nil
}

// LoadConfig loads the configuration (defaults when the file is missing),
// applies flag overrides and installs the configured logger as default.
func (c *CLI) LoadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadOrDefault(c.Config)
	if err != nil {
		return nil, nil, err
	}
	if c.LogFormat != "" {
		cfg.Logging.Format = config.NormalizeLogFormat(c.LogFormat)
	}
	if c.OnCompileError != "" {
		policy, perr := config.ParseCompileErrorPolicy(c.OnCompileError)
		if perr != nil {
			return nil, nil, errors.ValidationError("invalid --on-compile-error value").
				WithContext("value", c.OnCompileError).WithCause(perr).Build()
		}
		cfg.Build.OnCompileError = policy
	}
	logger := config.NewLogger(os.Stderr, cfg.Logging.Level, cfg.Logging.Format, c.Verbose)
	slog.SetDefault(logger)
	return cfg, logger, nil
}
