package config

import "os"

// TinifyKeyEnv supplies the compression API key when the configuration leaves it empty.
const TinifyKeyEnv = "TINIFY_API_KEY"

const (
	defaultSource        = "src"
	defaultDest          = "dist"
	defaultDartSass      = "sass"
	defaultScriptEntry   = "js/main.js"
	defaultConverter     = "woff2_compress"
	defaultStylesheet    = "scss/_fonts.scss"
	defaultFontWeight    = 400
	defaultParallelMax   = 50
	maxParallelRequests  = 50
	defaultTinifyURL     = "https://api.tinify.com/shrink"
	defaultTinifyTimeout = "60s"
	defaultMaxRetries    = 2
	defaultRevManifest   = "rev.json"
	defaultDebounce      = "100ms"
	defaultHost          = "localhost"
	defaultPort          = 3000
	defaultHistoryPath   = ".assetpipe/history.db"
	defaultSubject       = "assetpipe.events"
	defaultMetricsPath   = "/metrics"
)

var defaultRevExtensions = []string{"css", "js", "svg", "png", "jpg", "jpeg", "woff2"}

func applyDefaults(cfg *Config) {
	applyPathDefaults(cfg)
	applyAssetDefaults(cfg)
	applyImageDefaults(cfg)
	applyRuntimeDefaults(cfg)
}

func applyPathDefaults(cfg *Config) {
	if cfg.Paths.Source == "" {
		cfg.Paths.Source = defaultSource
	}
	if cfg.Paths.Dest == "" {
		cfg.Paths.Dest = defaultDest
	}
}

func applyAssetDefaults(cfg *Config) {
	if cfg.Styles.DartSass == "" {
		cfg.Styles.DartSass = defaultDartSass
	}
	if cfg.Scripts.Entry == "" {
		cfg.Scripts.Entry = defaultScriptEntry
	}
	if cfg.Fonts.Converter == "" {
		cfg.Fonts.Converter = defaultConverter
	}
	if cfg.Fonts.Stylesheet == "" {
		cfg.Fonts.Stylesheet = defaultStylesheet
	}
	if cfg.Fonts.WeightPolicy == "" {
		cfg.Fonts.WeightPolicy = WeightPolicyMetadata
	}
	if cfg.Fonts.DefaultWeight == 0 {
		cfg.Fonts.DefaultWeight = defaultFontWeight
	}
	if len(cfg.Rev.Extensions) == 0 {
		cfg.Rev.Extensions = append([]string(nil), defaultRevExtensions...)
	}
	if cfg.Rev.Manifest == "" {
		cfg.Rev.Manifest = defaultRevManifest
	}
}

func applyImageDefaults(cfg *Config) {
	if cfg.Images.ParallelMax <= 0 {
		cfg.Images.ParallelMax = defaultParallelMax
	}
	if cfg.Images.ParallelMax > maxParallelRequests {
		cfg.Images.ParallelMax = maxParallelRequests
	}
	if cfg.Images.Tinify.Endpoint == "" {
		cfg.Images.Tinify.Endpoint = defaultTinifyURL
	}
	if cfg.Images.Tinify.APIKey == "" {
		cfg.Images.Tinify.APIKey = os.Getenv(TinifyKeyEnv)
	}
	if cfg.Images.Tinify.Timeout == "" {
		cfg.Images.Tinify.Timeout = defaultTinifyTimeout
	}
	r := &cfg.Images.Retry
	if r.Mode == "" {
		r.Mode = RetryBackoffLinear
	}
	if r.InitialDelay == "" {
		r.InitialDelay = "1s"
	}
	if r.MaxDelay == "" {
		r.MaxDelay = "30s"
	}
	if r.MaxRetries == nil {
		n := defaultMaxRetries
		r.MaxRetries = &n
	}
}

func applyRuntimeDefaults(cfg *Config) {
	if cfg.Watch.Debounce == "" {
		cfg.Watch.Debounce = defaultDebounce
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = defaultHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaultPort
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = LogLevelInfo
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = LogFormatText
	}
	if cfg.History.Path == "" {
		cfg.History.Path = defaultHistoryPath
	}
	if cfg.Notify.Subject == "" {
		cfg.Notify.Subject = defaultSubject
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = defaultMetricsPath
	}
}
