// Package events defines the change events published after each committed
// or rejected mutation.
package events

import (
	"context"
	"time"
)

// Event describes one mutation outcome.
type Event struct {
	ID         string    `json:"id"`
	Operation  string    `json:"operation"`
	Entity     string    `json:"entity"`
	Action     string    `json:"action"`
	EntityID   string    `json:"entity_id,omitempty"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// RoutingKey is "crm.<entity>.<action>", the topic used by brokers that
// route on keys.
func (e Event) RoutingKey() string {
	return "crm." + e.Entity + "." + e.Action
}

// Publisher delivers events to an external broker.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}
