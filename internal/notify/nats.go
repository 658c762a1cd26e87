// Package notify republishes module change events on a NATS subject so tools outside the
// dev server can follow recompilations.
package notify

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/tails/internal/events"
	"git.home.luguber.info/inful/tails/internal/foundation/errors"
	"git.home.luguber.info/inful/tails/internal/logfields"
)

// DefaultSubject is used when no subject is configured.
const DefaultSubject = "tails.changes"

// Message is the JSON payload published for each event.
type Message struct {
	Event     string    `json:"event"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher is the subset of *nats.Conn the forwarder needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Forwarder publishes emitter events on a subject.
type Forwarder struct {
	pub     Publisher
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
	now     func() time.Time
}

// NewForwarder publishes through pub.
func NewForwarder(pub Publisher, subject string, logger *slog.Logger) *Forwarder {
	if subject == "" {
		subject = DefaultSubject
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Forwarder{pub: pub, subject: subject, logger: logger, now: time.Now}
}

// NewNATSForwarder connects to the NATS server at url.
func NewNATSForwarder(url, subject string, logger *slog.Logger) (*Forwarder, error) {
	conn, err := nats.Connect(url,
		nats.Name("tails"),
		nats.Timeout(2*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryNetwork, "failed to connect to NATS").
			WithContext("url", url).
			Build()
	}
	f := NewForwarder(conn, subject, logger)
	f.conn = conn
	f.logger.Info("Publishing module events", logfields.URL(url), slog.String("subject", f.subject))
	return f, nil
}

// Attach forwards every event of e.
func (f *Forwarder) Attach(e *events.Emitter) uint64 {
	return e.OnAny(func(name, payload string) { f.Forward(name, payload) })
}

// Forward publishes one event. Failures are logged; a missing subscriber never blocks a
// recompilation.
func (f *Forwarder) Forward(event, path string) {
	data, err := json.Marshal(Message{Event: event, Path: path, Timestamp: f.now().UTC()})
	if err != nil {
		f.logger.Warn("Failed to encode event", logfields.Event(event), logfields.Error(err))
		return
	}
	if err := f.pub.Publish(f.subject, data); err != nil {
		f.logger.Warn("Failed to publish event", logfields.Event(event), logfields.Error(err))
		return
	}
	f.logger.Debug("Published event", logfields.Event(event), logfields.Module(path))
}

// Close drains the connection when the forwarder owns one.
func (f *Forwarder) Close() error {
	if f.conn == nil {
		return nil
	}
	return f.conn.Drain()
}
