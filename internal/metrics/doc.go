// Package metrics defines the observability hooks used by the pipeline.
//
// Stages and the scheduler depend only on the Recorder interface. NoopRecorder
// is used when metrics are disabled; PrometheusRecorder registers collectors
// on a caller-supplied registry that the dev server exposes at /metrics.
package metrics
