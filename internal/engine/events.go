package engine

import (
	"context"
	"time"

	"github.com/eliudefrancisco14/gateway-matrix-api/internal/domain"
	"github.com/eliudefrancisco14/gateway-matrix-api/internal/logger"
	"github.com/google/uuid"
)

// eventNamespace seeds the deterministic dedup keys for channel events.
var eventNamespace = uuid.MustParse("8c1f42a7-43d9-4b6e-9c5a-2e7f0d8b1a64")

// EventStore is the append surface of the channel event log.
type EventStore interface {
	Append(ctx context.Context, event *domain.ChannelEvent) (bool, error)
}

// AuditStore is the append surface of the audit log.
type AuditStore interface {
	Append(ctx context.Context, entry *domain.AuditLog) error
}

// TransitionEvent describes one channel transition to be recorded.
// TriggerID identifies the upstream signal that caused it; replays of the same
// signal deduplicate to a single event row.
type TransitionEvent struct {
	ChannelID   string
	EventType   domain.EventType
	FromStatus  domain.ChannelStatus
	ToStatus    domain.ChannelStatus
	Details     domain.JSONMap
	TriggeredBy domain.TriggeredBy
	UserID      string
	TriggerID   string
	Timestamp   time.Time
}

// EventRecorder appends immutable channel events and audit records for every
// state change. It never updates or deletes rows.
type EventRecorder struct {
	events EventStore
	audits AuditStore
}

// NewEventRecorder creates an EventRecorder over the given stores.
// Parameters:
//   - events: channel event log.
//   - audits: audit log; nil disables audit records.
// Returns:
//   - *EventRecorder: recorder instance.
func NewEventRecorder(events EventStore, audits AuditStore) *EventRecorder {
	return &EventRecorder{events: events, audits: audits}
}

// Record appends one event for a logical transition. The dedup key is a UUIDv5
// over channel id, transition pair and trigger id, so at-least-once delivery
// from upstream retries still records the transition exactly once.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - ev: transition to record; zero Timestamp uses the current time.
// Returns:
//   - bool: true if a new event row was written, false if deduplicated.
//   - error: non-nil if a store write fails.
func (r *EventRecorder) Record(ctx context.Context, ev TransitionEvent) (bool, error) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	details := ev.Details
	if details == nil {
		details = domain.JSONMap{}
	}
	if ev.FromStatus != "" {
		details["from_status"] = string(ev.FromStatus)
	}
	if ev.ToStatus != "" {
		details["to_status"] = string(ev.ToStatus)
	}

	inserted, err := r.events.Append(ctx, &domain.ChannelEvent{
		ChannelID:   ev.ChannelID,
		EventType:   ev.EventType,
		Timestamp:   ev.Timestamp,
		Details:     details,
		TriggeredBy: ev.TriggeredBy,
		UserID:      ev.UserID,
		DedupKey:    dedupKey(ev),
	})
	if err != nil {
		return false, err
	}
	if !inserted {
		logger.CtxDebug(ctx, "event %s for channel %s deduplicated", ev.EventType, ev.ChannelID)
		return false, nil
	}

	if r.audits != nil {
		if err := r.audits.Append(ctx, &domain.AuditLog{
			UserID:     ev.UserID,
			Action:     string(ev.EventType),
			EntityType: "channel",
			EntityID:   ev.ChannelID,
			NewValues:  details,
			Timestamp:  ev.Timestamp,
		}); err != nil {
			// The channel event is already durable; an audit miss is logged,
			// not propagated, so a transition is never rolled back.
			logger.CtxError(ctx, "failed to append audit record for channel %s: %v", ev.ChannelID, err)
		}
	}
	return true, nil
}

// dedupKey derives the idempotency key for a transition. Without a trigger id
// there is nothing to correlate replays by, so each call gets a unique key.
func dedupKey(ev TransitionEvent) string {
	if ev.TriggerID == "" {
		return uuid.NewString()
	}
	material := ev.ChannelID + "|" + string(ev.EventType) + "|" +
		string(ev.FromStatus) + ">" + string(ev.ToStatus) + "|" + ev.TriggerID
	return uuid.NewSHA1(eventNamespace, []byte(material)).String()
}
