// Package errors provides classified error primitives used across assetpipe.
//
// A ClassifiedError carries a category (config, tool, filesystem, ...), a
// severity and a retry strategy alongside the usual message and cause, so the
// stage runner, the notifier and the CLI can decide how to react without
// string matching.
//
// Example usage:
//
//	err := errors.ToolError("sass compilation failed").
//		WithContext("stage", "styles").
//		WithContext("file", "scss/main.scss").
//		WithCause(compileErr).
//		Build()
package errors
