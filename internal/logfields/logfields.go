package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyTask       = "task"
	KeyStage      = "stage"
	KeyRunID      = "run_id"
	KeyPath       = "path"
	KeyDest       = "dest"
	KeyFiles      = "files"
	KeyBytes      = "bytes"
	KeyDurationMS = "duration_ms"
	KeyStatus     = "status"
	KeyBinding    = "binding"
	KeyURL        = "url"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Task(name string) slog.Attr     { return slog.String(KeyTask, name) }
func Stage(name string) slog.Attr    { return slog.String(KeyStage, name) }
func RunID(id string) slog.Attr      { return slog.String(KeyRunID, id) }
func Path(p string) slog.Attr        { return slog.String(KeyPath, p) }
func Dest(p string) slog.Attr        { return slog.String(KeyDest, p) }
func Files(n int) slog.Attr          { return slog.Int(KeyFiles, n) }
func Bytes(n int64) slog.Attr        { return slog.Int64(KeyBytes, n) }
func Status(s string) slog.Attr      { return slog.String(KeyStatus, s) }
func Binding(name string) slog.Attr  { return slog.String(KeyBinding, name) }
func URL(u string) slog.Attr         { return slog.String(KeyURL, u) }
func Duration(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMS, float64(d.Microseconds())/1000)
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
