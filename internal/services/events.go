package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/oklog/ulid/v2"
)

// Event types published after state changes.
const (
	EventMetricRecorded   = "metric.recorded"
	EventFeedbackRecorded = "feedback.recorded"
)

// Event is the envelope published for every state change.
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// EventPublisher fans out notifications. Publishing is best effort: the
// database row is the record of truth.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
	Close() error
}

// NopPublisher drops all events. Used when NATS is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, eventType string, data interface{}) error {
	return nil
}

func (NopPublisher) Close() error { return nil }

// NATSPublisher publishes events on <prefix>.<type>.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

func NewNATSPublisher(natsURL, prefix string) (*NATSPublisher, error) {
	conn, err := nats.Connect(natsURL,
		nats.Name("catdog-classifier"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	slog.Info("Event publisher connected", "url", natsURL, "prefix", prefix)
	return &NATSPublisher{conn: conn, prefix: prefix}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, eventType string, data interface{}) error {
	evt := Event{
		ID:        ulid.Make().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	subject := p.prefix + "." + eventType
	if err := p.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}
	return nil
}

func (p *NATSPublisher) Conn() *nats.Conn {
	return p.conn
}

func (p *NATSPublisher) Close() error {
	if p.conn != nil {
		if err := p.conn.Drain(); err != nil {
			p.conn.Close()
			return err
		}
	}
	return nil
}

func publish(ctx context.Context, events EventPublisher, eventType string, data interface{}) {
	if events == nil {
		return
	}
	if err := events.Publish(ctx, eventType, data); err != nil {
		slog.Warn("Failed to publish event", "type", eventType, "error", err)
	}
}
