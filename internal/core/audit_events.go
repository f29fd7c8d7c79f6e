package core

import (
	"context"

	"github.com/google/uuid"

	"crmcore/internal/events"
)

// EventAuditRecorder publishes committed mutations as events. Rejected and
// no-op runs are not published. Publish failures are logged and never fail
// the mutation that produced the entry.
type EventAuditRecorder struct {
	publisher events.Publisher
	logger    Logger
	newID     func() string
}

// NewEventAuditRecorder returns a recorder publishing through p.
func NewEventAuditRecorder(p events.Publisher, logger Logger) *EventAuditRecorder {
	if logger == nil {
		logger = noopLogger{}
	}
	return &EventAuditRecorder{publisher: p, logger: logger, newID: uuid.NewString}
}

// Record implements AuditRecorder.
func (r *EventAuditRecorder) Record(ctx context.Context, entry AuditEntry) {
	if entry.Status != AuditStatusSuccess {
		return
	}
	evt := events.Event{
		ID:         r.newID(),
		Operation:  entry.Operation,
		Entity:     string(entry.Entity),
		Action:     string(entry.Action),
		EntityID:   entry.EntityID,
		Status:     string(entry.Status),
		Error:      entry.Error,
		OccurredAt: entry.Timestamp,
	}
	if err := r.publisher.Publish(ctx, evt); err != nil {
		r.logger.Warn("event publish failed", "operation", entry.Operation, "event_id", evt.ID, "error", err)
	}
}

// MultiAuditRecorder fans an entry out to several recorders in order.
type MultiAuditRecorder []AuditRecorder

// Record implements AuditRecorder.
func (m MultiAuditRecorder) Record(ctx context.Context, entry AuditEntry) {
	for _, r := range m {
		r.Record(ctx, entry)
	}
}
