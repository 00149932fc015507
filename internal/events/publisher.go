// Package events publishes best-effort domain notifications over NATS.
// Nothing on the request path blocks on a publish: a failed publish is
// logged and otherwise ignored, since no consumer's correctness depends on
// receiving these — they're notifications, not a transactional outbox.
package events

import (
	"encoding/json"

	"github.com/nats-io/nats.go"

	"github.com/recordkeeper/api/internal/logger"
)

// Event is anything with a NATS subject to publish itself on.
type Event interface {
	Subject() string
}

// Publisher publishes Events to NATS. A nil *Publisher, or one built from
// an empty url, makes every Publish call a no-op.
type Publisher struct {
	conn *nats.Conn
}

// NewPublisher connects to url. Pass an empty url to disable publishing.
func NewPublisher(url string) (*Publisher, error) {
	if url == "" {
		return &Publisher{}, nil
	}
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}
	return &Publisher{conn: conn}, nil
}

// Close closes the underlying connection, if any, without draining it.
func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}

// Publish fire-and-forgets ev on its subject. Failures are logged, never
// returned — callers should not make request success depend on this.
func (p *Publisher) Publish(ev Event) {
	if p == nil || p.conn == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		logger.Ingest().Warn().Err(err).Str("subject", ev.Subject()).Msg("failed to marshal event")
		return
	}
	if err := p.conn.Publish(ev.Subject(), data); err != nil {
		logger.Ingest().Warn().Err(err).Str("subject", ev.Subject()).Msg("failed to publish event")
	}
}
