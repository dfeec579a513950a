package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestClassifiedError(t *testing.T) {
	t.Run("Basic error creation", func(t *testing.T) {
		err := NewError(CategoryConfig, "invalid configuration").
			WithSeverity(SeverityFatal).
			WithContext("file", "assetpipe.yaml").
			Build()

		if err.Category() != CategoryConfig {
			t.Errorf("expected category %s, got %s", CategoryConfig, err.Category())
		}
		if err.Severity() != SeverityFatal {
			t.Errorf("expected severity %s, got %s", SeverityFatal, err.Severity())
		}
		file, exists := err.Context().GetString("file")
		if !exists || file != "assetpipe.yaml" {
			t.Errorf("expected context file=assetpipe.yaml, got %v", file)
		}
	})

	t.Run("Error detection through wrapping", func(t *testing.T) {
		inner := ToolError("sass compilation failed").Build()
		wrapped := fmt.Errorf("stage styles: %w", inner)

		if !IsClassified(wrapped) {
			t.Fatal("expected wrapped error to be classified")
		}
		if !HasCategory(wrapped, CategoryTool) {
			t.Error("expected tool category")
		}
		if GetCategory(stderrors.New("plain")) != CategoryInternal {
			t.Error("expected internal category for plain errors")
		}
	})

	t.Run("WithContext does not mutate original", func(t *testing.T) {
		base := FileSystemError("write failed").Build()
		derived := base.WithContext("path", "dist/css/main.min.css")
		if _, ok := base.Context().GetString("path"); ok {
			t.Error("original context was mutated")
		}
		if p, _ := derived.Context().GetString("path"); p != "dist/css/main.min.css" {
			t.Errorf("derived context missing path, got %q", p)
		}
	})
}

func TestErrorBuilder(t *testing.T) {
	originalErr := stderrors.New("connection reset")
	err := WrapError(originalErr, CategoryNetwork, "shrink request failed").
		Warning().
		Retryable().
		Build()

	if err.Severity() != SeverityWarning {
		t.Errorf("expected warning severity, got %s", err.Severity())
	}
	if !err.CanRetry() {
		t.Error("expected retryable error")
	}
	if !stderrors.Is(err, originalErr) {
		t.Error("expected errors.Is to find the cause")
	}
	if !stderrors.Is(err, NewError(CategoryNetwork, "shrink request failed").Build()) {
		t.Error("expected classified errors with same category and message to match")
	}
}

func TestCLIErrorAdapterExitCodes(t *testing.T) {
	a := NewCLIErrorAdapter(false, nil)
	cases := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{stderrors.New("plain"), 1},
		{ValidationError("bad").Build(), 2},
		{ConfigError("bad").Build(), 7},
		{NetworkError("down").Build(), 8},
		{InternalError("bug").Build(), 10},
		{ToolError("sass").Build(), 11},
		{fmt.Errorf("wrapped: %w", FileSystemError("disk").Build()), 11},
	}
	for _, c := range cases {
		if got := a.ExitCodeFor(c.err); got != c.want {
			t.Errorf("ExitCodeFor(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestCLIErrorAdapterFormat(t *testing.T) {
	err := ToolError("esbuild failed").WithContext("stage", "scripts").WithCause(stderrors.New("unexpected token")).Build()

	quiet := NewCLIErrorAdapter(false, nil).FormatError(err)
	if quiet != "Error: esbuild failed (stage scripts): unexpected token" {
		t.Errorf("unexpected quiet format %q", quiet)
	}
	verbose := NewCLIErrorAdapter(true, nil).FormatError(err)
	if verbose != "Error: "+err.Error() {
		t.Errorf("unexpected verbose format %q", verbose)
	}
}
