package notify

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/assetpipe/internal/pipeline"
)

// Publisher is the subset of *nats.Conn used here.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Event is the JSON document published to NATS.
type Event struct {
	Kind       string        `json:"kind"`
	Task       string        `json:"task,omitempty"`
	Stage      string        `json:"stage,omitempty"`
	Path       string        `json:"path,omitempty"`
	Message    string        `json:"message,omitempty"`
	Outcome    string        `json:"outcome,omitempty"`
	DurationMS int64         `json:"duration_ms,omitempty"`
	Stages     []StageRecord `json:"stages,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
}

// StageRecord is one stage outcome inside a run event.
type StageRecord struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

const (
	KindBuildProblem = "build_problem"
	KindRunComplete  = "run_complete"
)

// NATSSink publishes notifications and run summaries to a subject. It also
// implements pipeline.Observer.
type NATSSink struct {
	pipeline.NoopObserver
	pub     Publisher
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
}

// DialNATS connects to url and returns a sink publishing on subject.
func DialNATS(url, subject string, logger *slog.Logger) (*NATSSink, error) {
	conn, err := nats.Connect(url, nats.Name("assetpipe"), nats.Timeout(5*time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	s := NewNATSSink(conn, subject, logger)
	s.conn = conn
	return s, nil
}

// NewNATSSink wraps an existing publisher.
func NewNATSSink(pub Publisher, subject string, logger *slog.Logger) *NATSSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSSink{pub: pub, subject: subject, logger: logger}
}

func (s *NATSSink) Notify(n Notification) {
	s.publish(Event{Kind: KindBuildProblem, Stage: n.Stage, Path: n.Path, Message: n.Message, Timestamp: n.Time})
}

// OnRunComplete publishes the run summary.
func (s *NATSSink) OnRunComplete(r *pipeline.Report) {
	e := Event{
		Kind:       KindRunComplete,
		Task:       r.Task,
		Outcome:    string(r.Outcome()),
		DurationMS: r.Duration.Milliseconds(),
		Timestamp:  r.Started.Add(r.Duration),
	}
	for _, st := range r.Stages {
		rec := StageRecord{Name: st.Name, Status: string(st.Status), DurationMS: st.Duration.Milliseconds()}
		if st.Err != nil {
			rec.Error = st.Err.Error()
		}
		e.Stages = append(e.Stages, rec)
	}
	s.publish(e)
}

func (s *NATSSink) publish(e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		s.logger.Warn("Failed to marshal notification", "error", err)
		return
	}
	if err := s.pub.Publish(s.subject, data); err != nil {
		s.logger.Warn("Failed to publish notification", "subject", s.subject, "error", err)
		return
	}
	s.logger.Debug("Published notification", "subject", s.subject, "kind", e.Kind)
}

// Close flushes and closes a connection opened by DialNATS.
func (s *NATSSink) Close() {
	if s.conn == nil {
		return
	}
	if err := s.conn.Flush(); err != nil {
		s.logger.Debug("NATS flush failed", "error", err)
	}
	s.conn.Close()
}
