package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/logs2metrics/l2m/internal/domain/rule"
	"github.com/logs2metrics/l2m/internal/pkg/logger"
)

// NATSPublisher sends rule lifecycle events to NATS as JSON
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
	logger *logger.Logger
}

// NewNATSPublisher connects to url. Subjects are "<prefix>.<event type>".
func NewNATSPublisher(url, prefix string, log *logger.Logger) (*NATSPublisher, error) {
	l := log.WithComponent("events")
	conn, err := nats.Connect(url,
		nats.Name("l2m"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				l.WarnWithErr(err, "Disconnected from NATS")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			l.With("url", c.ConnectedUrl()).Info("Reconnected to NATS")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSPublisher{conn: conn, prefix: prefix, logger: l}, nil
}

// Publish marshals evt and publishes it on its subject
func (p *NATSPublisher) Publish(ctx context.Context, evt rule.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return p.conn.Publish(Subject(p.prefix, evt.Type), data)
}

// Close drains pending messages and closes the connection
func (p *NATSPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return err
	}
	return nil
}

// Subject builds the subject for an event type
func Subject(prefix, eventType string) string {
	if prefix == "" {
		return eventType
	}
	return prefix + "." + eventType
}

// NopPublisher discards events. It is used when no NATS URL is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, rule.Event) error { return nil }
func (NopPublisher) Close() error                              { return nil }

var (
	_ rule.EventPublisher = (*NATSPublisher)(nil)
	_ rule.EventPublisher = NopPublisher{}
)
