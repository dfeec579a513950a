package config

import (
	"git.home.luguber.info/inful/assetpipe/internal/foundation/normalization"
)

// LogLevel enumerates supported logging levels.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

var logLevelNormalizer = normalization.NewNormalizer("log level", map[string]LogLevel{
	"debug":   LogLevelDebug,
	"info":    LogLevelInfo,
	"warn":    LogLevelWarn,
	"warning": LogLevelWarn,
	"error":   LogLevelError,
}, LogLevelInfo)

// NormalizeLogLevel maps raw onto a LogLevel, defaulting to info.
func NormalizeLogLevel(raw string) LogLevel {
	return logLevelNormalizer.Normalize(raw)
}

// LogFormat enumerates supported log output formats.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

var logFormatNormalizer = normalization.NewNormalizer("log format", map[string]LogFormat{
	"json": LogFormatJSON,
	"text": LogFormatText,
}, LogFormatText)

// NormalizeLogFormat maps raw onto a LogFormat, defaulting to text.
func NormalizeLogFormat(raw string) LogFormat {
	return logFormatNormalizer.Normalize(raw)
}

// WeightPolicy decides the weight emitted for fonts whose filename carries no weight keyword.
type WeightPolicy string

const (
	// WeightPolicyMetadata consults the source font's name table, then the default weight.
	WeightPolicyMetadata WeightPolicy = "metadata"
	// WeightPolicyDefault emits the configured default weight.
	WeightPolicyDefault WeightPolicy = "default"
	// WeightPolicyUndefined emits the literal "undefined".
	WeightPolicyUndefined WeightPolicy = "undefined"
)

var weightPolicyNormalizer = normalization.NewNormalizer("weight policy", map[string]WeightPolicy{
	"metadata":  WeightPolicyMetadata,
	"default":   WeightPolicyDefault,
	"undefined": WeightPolicyUndefined,
}, WeightPolicyMetadata)

// ParseWeightPolicy parses raw into a WeightPolicy.
func ParseWeightPolicy(raw string) (WeightPolicy, error) {
	return weightPolicyNormalizer.Parse(raw)
}

// CompileErrorPolicy decides what a Sass or bundler error does to its stage.
type CompileErrorPolicy string

const (
	// CompileErrorNotify reports the error and lets the stage succeed.
	CompileErrorNotify CompileErrorPolicy = "notify"
	// CompileErrorFail fails the stage.
	CompileErrorFail CompileErrorPolicy = "fail"
)

var compileErrorNormalizer = normalization.NewNormalizer("compile error policy", map[string]CompileErrorPolicy{
	"notify": CompileErrorNotify,
	"fail":   CompileErrorFail,
}, "")

// ParseCompileErrorPolicy parses raw into a CompileErrorPolicy. Empty input yields "".
func ParseCompileErrorPolicy(raw string) (CompileErrorPolicy, error) {
	return compileErrorNormalizer.Parse(raw)
}

// RetryBackoffMode enumerates supported backoff strategies.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

var retryBackoffNormalizer = normalization.NewNormalizer("retry backoff", map[string]RetryBackoffMode{
	"fixed":       RetryBackoffFixed,
	"linear":      RetryBackoffLinear,
	"exponential": RetryBackoffExponential,
}, RetryBackoffLinear)

// ParseRetryBackoffMode parses raw into a RetryBackoffMode.
func ParseRetryBackoffMode(raw string) (RetryBackoffMode, error) {
	return retryBackoffNormalizer.Parse(raw)
}
