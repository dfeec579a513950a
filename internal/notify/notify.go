// Package notify fans build problems out to the log, connected browsers and
// an optional NATS subject.
package notify

import (
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/assetpipe/internal/logfields"
)

// Notification describes a problem worth surfacing outside the log, such as
// a Sass error tolerated by the notify compile-error policy.
type Notification struct {
	Stage   string
	Title   string
	Message string
	Path    string
	Err     error
	Time    time.Time
}

// Sink receives notifications.
type Sink interface {
	Notify(n Notification)
}

// SinkFunc adapts a function into a Sink.
type SinkFunc func(Notification)

func (f SinkFunc) Notify(n Notification) { f(n) }

// Notifier delivers each notification to every sink in order.
type Notifier struct {
	mu    sync.RWMutex
	sinks []Sink
}

// New creates a Notifier with the given sinks.
func New(sinks ...Sink) *Notifier {
	return &Notifier{sinks: sinks}
}

// Add registers another sink.
func (n *Notifier) Add(s Sink) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sinks = append(n.sinks, s)
}

// Notify delivers note. A nil Notifier drops it.
func (n *Notifier) Notify(note Notification) {
	if n == nil {
		return
	}
	if note.Time.IsZero() {
		note.Time = time.Now()
	}
	if note.Message == "" && note.Err != nil {
		note.Message = note.Err.Error()
	}
	n.mu.RLock()
	sinks := append([]Sink(nil), n.sinks...)
	n.mu.RUnlock()
	for _, s := range sinks {
		s.Notify(note)
	}
}

// LogSink writes notifications as warnings.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Notify(n Notification) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{logfields.Stage(n.Stage)}
	if n.Path != "" {
		attrs = append(attrs, logfields.Path(n.Path))
	}
	if n.Err != nil {
		attrs = append(attrs, logfields.Error(n.Err))
	}
	title := n.Title
	if title == "" {
		title = "Build problem"
	}
	logger.Warn(title+": "+n.Message, attrs...)
}

// ErrorBroadcaster is implemented by livereload.Hub.
type ErrorBroadcaster interface {
	BroadcastError(stage, message string)
}

// BrowserSink shows notifications in connected browsers.
type BrowserSink struct {
	Hub ErrorBroadcaster
}

func (s BrowserSink) Notify(n Notification) {
	msg := n.Message
	if n.Path != "" {
		msg = n.Path + ": " + msg
	}
	s.Hub.BroadcastError(n.Stage, msg)
}
