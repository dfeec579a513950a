package config

import (
	"log/slog"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
)

// normalize canonicalizes enum values, paths and extension lists in place.
// Unknown log settings fall back to their defaults with a warning; unknown
// policies are validation errors.
func normalize(cfg *Config) error {
	lvl := NormalizeLogLevel(string(cfg.Logging.Level))
	warnUnknown("logging.level", string(cfg.Logging.Level), string(lvl))
	cfg.Logging.Level = lvl
	format := NormalizeLogFormat(string(cfg.Logging.Format))
	warnUnknown("logging.format", string(cfg.Logging.Format), string(format))
	cfg.Logging.Format = format

	wp, err := ParseWeightPolicy(string(cfg.Fonts.WeightPolicy))
	if err != nil {
		return errors.WrapError(err, errors.CategoryValidation, "invalid fonts.weight_policy").Build()
	}
	cfg.Fonts.WeightPolicy = wp

	cp, err := ParseCompileErrorPolicy(string(cfg.Build.OnCompileError))
	if err != nil {
		return errors.WrapError(err, errors.CategoryValidation, "invalid build.on_compile_error").Build()
	}
	cfg.Build.OnCompileError = cp

	mode, err := ParseRetryBackoffMode(string(cfg.Images.Retry.Mode))
	if err != nil {
		return errors.WrapError(err, errors.CategoryValidation, "invalid images.retry.mode").Build()
	}
	cfg.Images.Retry.Mode = mode

	cfg.Paths.Source = filepath.Clean(cfg.Paths.Source)
	cfg.Paths.Dest = filepath.Clean(cfg.Paths.Dest)
	cfg.Fonts.Stylesheet = filepath.ToSlash(filepath.Clean(cfg.Fonts.Stylesheet))
	cfg.Scripts.Entry = filepath.ToSlash(filepath.Clean(cfg.Scripts.Entry))

	exts := make([]string, 0, len(cfg.Rev.Extensions))
	seen := make(map[string]struct{}, len(cfg.Rev.Extensions))
	for _, e := range cfg.Rev.Extensions {
		e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
		if e == "" {
			continue
		}
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		exts = append(exts, e)
	}
	cfg.Rev.Extensions = exts
	return nil
}

func warnUnknown(field, raw, normalized string) {
	r := strings.ToLower(strings.TrimSpace(raw))
	if r == normalized || (r == "warning" && normalized == "warn") {
		return
	}
	slog.Warn("Unknown configuration value, using default", "field", field, "value", raw, "default", normalized)
}

// DebounceDuration returns the parsed watch quiet window. Zero disables debouncing.
func (c *Config) DebounceDuration() time.Duration {
	d, _ := time.ParseDuration(c.Watch.Debounce)
	return d
}

// TinifyTimeout returns the parsed per-request timeout for the compression API.
func (c *Config) TinifyTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Images.Tinify.Timeout)
	return d
}

// Address returns the host:port the dev server listens on.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// CompileErrorPolicyFor resolves the compile-error policy for a task.
// Syntax errors notify and the pipeline continues unless fail is configured.
func (c *Config) CompileErrorPolicyFor(task string) CompileErrorPolicy {
	if c.Build.OnCompileError != "" {
		return c.Build.OnCompileError
	}
	return CompileErrorNotify
}
