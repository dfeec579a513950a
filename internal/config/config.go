// Package config loads and validates assetpipe.yaml.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
)

// DefaultPath is the configuration file used when --config is not given.
const DefaultPath = "assetpipe.yaml"

// Config represents the application configuration.
type Config struct {
	Paths   PathsConfig   `yaml:"paths"`
	Styles  StylesConfig  `yaml:"styles"`
	Scripts ScriptsConfig `yaml:"scripts"`
	Fonts   FontsConfig   `yaml:"fonts"`
	Images  ImagesConfig  `yaml:"images"`
	Rev     RevConfig     `yaml:"rev"`
	Build   BuildConfig   `yaml:"build"`
	Watch   WatchConfig   `yaml:"watch"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
	History HistoryConfig `yaml:"history"`
	Notify  NotifyConfig  `yaml:"notify"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// PathsConfig holds the source and destination roots.
type PathsConfig struct {
	Source string `yaml:"source"`
	Dest   string `yaml:"dest"`
}

// StylesConfig configures Sass compilation.
type StylesConfig struct {
	// DartSass is the Dart Sass executable speaking the embedded protocol.
	DartSass     string   `yaml:"dart_sass"`
	IncludePaths []string `yaml:"include_paths,omitempty"`
	// Targets overrides the browser engine targets (e.g. "chrome109").
	Targets []string `yaml:"targets,omitempty"`
}

// ScriptsConfig configures the script bundle.
type ScriptsConfig struct {
	Entry   string   `yaml:"entry"`
	Targets []string `yaml:"targets,omitempty"`
}

// FontsConfig configures font conversion and the generated font stylesheet.
type FontsConfig struct {
	Converter     string       `yaml:"converter"`
	Stylesheet    string       `yaml:"stylesheet"`
	WeightPolicy  WeightPolicy `yaml:"weight_policy"`
	DefaultWeight int          `yaml:"default_weight"`
}

// ImagesConfig configures raster image handling.
type ImagesConfig struct {
	ParallelMax int          `yaml:"parallel_max"`
	MaxWidth    int          `yaml:"max_width,omitempty"`
	Tinify      TinifyConfig `yaml:"tinify"`
	Retry       RetryConfig  `yaml:"retry"`
}

// TinifyConfig holds the compression API settings.
type TinifyConfig struct {
	APIKey   string `yaml:"api_key,omitempty"`
	Endpoint string `yaml:"endpoint"`
	Timeout  string `yaml:"timeout"`
}

// RetryConfig configures retries of transient remote failures.
type RetryConfig struct {
	Mode         RetryBackoffMode `yaml:"mode"`
	InitialDelay string           `yaml:"initial_delay"`
	MaxDelay     string           `yaml:"max_delay"`
	// MaxRetries is nil until defaulted; an explicit 0 disables retries.
	MaxRetries   *int             `yaml:"max_retries"`
}

// Retries returns the configured retry count, or 0 when unset.
func (r RetryConfig) Retries() int {
	if r.MaxRetries == nil {
		return 0
	}
	return *r.MaxRetries
}

// RevConfig configures cache busting.
type RevConfig struct {
	Extensions []string `yaml:"extensions"`
	Manifest   string   `yaml:"manifest"`
}

// BuildConfig holds scheduling and error policies.
type BuildConfig struct {
	// OnCompileError is empty unless fail is opted into; every task then notifies.
	OnCompileError CompileErrorPolicy `yaml:"on_compile_error,omitempty"`
	MaxParallel    int                `yaml:"max_parallel"`
}

// WatchConfig configures file watching in dev mode.
type WatchConfig struct {
	Debounce string `yaml:"debounce"`
}

// ServerConfig configures the dev server.
type ServerConfig struct {
	Host              string `yaml:"host"`
	Port              int    `yaml:"port"`
	DisableLiveReload bool   `yaml:"disable_livereload,omitempty"`
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// HistoryConfig configures the run history store.
type HistoryConfig struct {
	Path     string `yaml:"path"`
	Disabled bool   `yaml:"disabled,omitempty"`
}

// NotifyConfig configures external notifications.
type NotifyConfig struct {
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Disabled bool   `yaml:"disabled,omitempty"`
	Path     string `yaml:"path"`
}

// Load reads, expands, defaults and validates the configuration at path.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigError(fmt.Sprintf("configuration file not found: %s", path)).
				WithContext("path", path).Build()
		}
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to read config file").
			WithContext("path", path).Build()
	}
	return Parse(data)
}

// LoadOrDefault behaves like Load but returns the defaults when path does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		loadEnvFiles()
		return Parse(nil)
	}
	return Load(path)
}

// Parse decodes YAML configuration after expanding ${VAR} references.
// Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	expanded := []byte(os.ExpandEnv(string(data)))
	if len(bytes.TrimSpace(expanded)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(expanded))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return nil, errors.WrapError(err, errors.CategoryConfig, "failed to parse config file").Build()
		}
	}

	applyDefaults(&cfg)
	if err := normalize(&cfg); err != nil {
		return nil, err
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a fully defaulted configuration.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}
