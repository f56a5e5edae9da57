package rule

import (
	"context"
	"time"
)

// Lifecycle event types
const (
	EventCreated   = "rule.created"
	EventActivated = "rule.activated"
	EventPaused    = "rule.paused"
	EventError     = "rule.error"
	EventDeleted   = "rule.deleted"
)

// Event describes a rule lifecycle change
type Event struct {
	Type       string    `json:"type"`
	RuleID     int64     `json:"rule_id"`
	RuleName   string    `json:"rule_name"`
	Status     Status    `json:"status"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventPublisher delivers lifecycle events. Publishing is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}
