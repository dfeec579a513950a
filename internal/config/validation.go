package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
)

// Validate checks a defaulted, normalized configuration.
func Validate(cfg *Config) error {
	v := &configurationValidator{config: cfg}
	for _, check := range []func() error{
		v.validatePaths,
		v.validateFonts,
		v.validateImages,
		v.validateBuild,
		v.validateRuntime,
	} {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

type configurationValidator struct {
	config *Config
}

func invalid(field, format string, args ...any) error {
	return errors.ValidationError(fmt.Sprintf(format, args...)).WithContext("field", field).Build()
}

func (cv *configurationValidator) validatePaths() error {
	p := cv.config.Paths
	src, err := filepath.Abs(p.Source)
	if err != nil {
		return invalid("paths.source", "cannot resolve source root: %v", err)
	}
	dst, err := filepath.Abs(p.Dest)
	if err != nil {
		return invalid("paths.dest", "cannot resolve destination root: %v", err)
	}
	if src == dst {
		return invalid("paths.dest", "source and destination roots must differ: %s", p.Dest)
	}
	// clean empties the destination root, so it must never contain the sources.
	if rel, err := filepath.Rel(dst, src); err == nil && !strings.HasPrefix(rel, "..") {
		return invalid("paths.dest", "destination root %s contains the source root %s", p.Dest, p.Source)
	}
	if filepath.IsAbs(cv.config.Scripts.Entry) || strings.HasPrefix(cv.config.Scripts.Entry, "..") {
		return invalid("scripts.entry", "script entry must be relative to the source root: %s", cv.config.Scripts.Entry)
	}
	return nil
}

func (cv *configurationValidator) validateFonts() error {
	f := cv.config.Fonts
	if f.DefaultWeight < 1 || f.DefaultWeight > 1000 {
		return invalid("fonts.default_weight", "default weight must be between 1 and 1000, got %d", f.DefaultWeight)
	}
	if filepath.IsAbs(f.Stylesheet) || strings.HasPrefix(f.Stylesheet, "..") {
		return invalid("fonts.stylesheet", "font stylesheet must be relative to the source root: %s", f.Stylesheet)
	}
	return nil
}

func (cv *configurationValidator) validateImages() error {
	img := cv.config.Images
	if img.MaxWidth < 0 {
		return invalid("images.max_width", "max width cannot be negative: %d", img.MaxWidth)
	}
	if _, err := parsePositiveDuration(img.Tinify.Timeout); err != nil {
		return invalid("images.tinify.timeout", "invalid timeout %q: %v", img.Tinify.Timeout, err)
	}
	if img.Retry.Retries() < 0 {
		return invalid("images.retry.max_retries", "max retries cannot be negative: %d", img.Retry.Retries())
	}
	initial, err := parsePositiveDuration(img.Retry.InitialDelay)
	if err != nil {
		return invalid("images.retry.initial_delay", "invalid initial delay %q: %v", img.Retry.InitialDelay, err)
	}
	maxDelay, err := parsePositiveDuration(img.Retry.MaxDelay)
	if err != nil {
		return invalid("images.retry.max_delay", "invalid max delay %q: %v", img.Retry.MaxDelay, err)
	}
	if maxDelay < initial {
		return invalid("images.retry.max_delay", "max delay (%s) must be >= initial delay (%s)", maxDelay, initial)
	}
	return nil
}

func (cv *configurationValidator) validateBuild() error {
	if cv.config.Build.MaxParallel < 0 {
		return invalid("build.max_parallel", "max parallel cannot be negative: %d", cv.config.Build.MaxParallel)
	}
	return nil
}

func (cv *configurationValidator) validateRuntime() error {
	c := cv.config
	if d, err := time.ParseDuration(c.Watch.Debounce); err != nil || d < 0 {
		return invalid("watch.debounce", "invalid debounce %q", c.Watch.Debounce)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return invalid("server.port", "port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return invalid("metrics.path", "metrics path must start with '/': %s", c.Metrics.Path)
	}
	if c.Notify.NATSURL != "" && strings.TrimSpace(c.Notify.Subject) == "" {
		return invalid("notify.subject", "subject is required when notify.nats_url is set")
	}
	return nil
}

func parsePositiveDuration(raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive")
	}
	return d, nil
}
