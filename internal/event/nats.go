// Package event publishes marketplace domain events to NATS JetStream.
package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/DevViTien/devshop-web-app/internal/config"
)

// Event types. The subject is the configured prefix followed by the type.
const (
	OrderCompleted        = "order.completed"
	OrderRefunded         = "order.refunded"
	ReviewCreated         = "review.created"
	TemplateRatingUpdated = "template.rating.updated"
)

const streamName = "DEVSHOP_EVENTS"

type Publisher interface {
	Publish(ctx context.Context, eventType string, payload interface{}) error
	Close() error
}

// Envelope wraps every published payload.
type Envelope struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	Version    string      `json:"version"`
	OccurredAt time.Time   `json:"occurredAt"`
	Payload    interface{} `json:"payload"`
}

type noop struct{}

// NewNoop returns a Publisher that drops every event.
func NewNoop() Publisher { return noop{} }

func (noop) Publish(ctx context.Context, eventType string, payload interface{}) error { return nil }

func (noop) Close() error { return nil }

type natsPub struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	prefix string
}

// NewPublisher connects to NATS when a URL is configured. Without a URL, or
// when the connection or stream setup fails, it falls back to a no-op
// publisher so the API keeps working without event streaming.
func NewPublisher(cfg config.NATSConfig) Publisher {
	if cfg.URL == "" {
		return NewNoop()
	}

	nc, err := nats.Connect(cfg.URL, nats.Name("devshop-api"))
	if err != nil {
		logrus.WithError(err).Warn("NATS connect failed, using noop publisher")
		return NewNoop()
	}

	js, err := nc.JetStream()
	if err != nil {
		logrus.WithError(err).Warn("NATS JetStream context creation failed, using noop publisher")
		nc.Close()
		return NewNoop()
	}

	if err := initStream(js, cfg.SubjectPrefix); err != nil {
		logrus.WithError(err).Warn("NATS stream initialization failed, using noop publisher")
		nc.Close()
		return NewNoop()
	}

	logrus.WithField("url", cfg.URL).Info("NATS event publisher ready")
	return &natsPub{nc: nc, js: js, prefix: cfg.SubjectPrefix}
}

func initStream(js nats.JetStreamContext, prefix string) error {
	stream := &nats.StreamConfig{
		Name:      streamName,
		Subjects:  []string{prefix + ".>"},
		Retention: nats.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
		Discard:   nats.DiscardOld,
		Storage:   nats.FileStorage,
	}

	if _, err := js.StreamInfo(streamName); err == nil {
		_, err = js.UpdateStream(stream)
		return err
	}

	if _, err := js.AddStream(stream); err != nil {
		return fmt.Errorf("failed to create %s stream: %w", streamName, err)
	}
	return nil
}

func (p *natsPub) Publish(ctx context.Context, eventType string, payload interface{}) error {
	envelope := Envelope{
		ID:         uuid.New().String(),
		Type:       eventType,
		Version:    "1.0.0",
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}

	b, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	// The envelope ID doubles as the JetStream dedup key.
	_, err = p.js.Publish(p.prefix+"."+eventType, b, nats.Context(ctx), nats.MsgId(envelope.ID))
	return err
}

func (p *natsPub) Close() error {
	if p.nc != nil {
		return p.nc.Drain()
	}
	return nil
}
