package engine

import (
	"context"
	"fmt"

	"github.com/eliudefrancisco14/gateway-matrix-api/internal/domain"
	"github.com/eliudefrancisco14/gateway-matrix-api/internal/logger"
)

// ChannelStore is the persistence surface the channel state machine needs.
type ChannelStore interface {
	GetByID(ctx context.Context, id string) (*domain.Channel, error)
	UpdateStatus(ctx context.Context, id string, from, to domain.ChannelStatus) (bool, error)
	SetActiveSource(ctx context.Context, id, sourceID string) error
	ListReferencingSource(ctx context.Context, sourceID string) ([]domain.Channel, error)
}

// ChannelHook observes applied channel transitions. The recording scheduler
// implements this to open and close recordings around the live state.
type ChannelHook interface {
	OnChannelTransition(ctx context.Context, channel *domain.Channel, from, to domain.ChannelStatus)
}

// ChannelStateMachine owns channel status. Every applied transition is
// reported to the event recorder with the full before/after pair, and to the
// registered hooks. Manual overrides from the API travel through the same
// Transition call the engine uses, so invariants cannot be bypassed.
type ChannelStateMachine struct {
	channels ChannelStore
	recorder *EventRecorder
	hooks    []ChannelHook
}

// NewChannelStateMachine creates a ChannelStateMachine.
// Parameters:
//   - channels: channel persistence.
//   - recorder: event recorder for transition records.
//   - hooks: transition observers, invoked after the event is recorded.
// Returns:
//   - *ChannelStateMachine: state machine instance.
func NewChannelStateMachine(channels ChannelStore, recorder *EventRecorder, hooks ...ChannelHook) *ChannelStateMachine {
	return &ChannelStateMachine{channels: channels, recorder: recorder, hooks: hooks}
}

// AddHook registers a transition observer after construction. The failover
// engine is wired this way because it is built on top of the state machine.
// Parameters:
//   - hook: observer to append.
func (m *ChannelStateMachine) AddHook(hook ChannelHook) {
	m.hooks = append(m.hooks, hook)
}

// Transition moves a channel to a new status and records the event.
// A lost conditional write means another actor already moved the channel;
// that is treated as an idempotent no-op, not an error.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - channel: current channel row, as loaded by the caller.
//   - to: target status.
//   - ev: event metadata; EventType empty derives it from the status pair.
// Returns:
//   - error: ErrInvalidTransition for illegal edges, otherwise persistence errors.
func (m *ChannelStateMachine) Transition(ctx context.Context, channel *domain.Channel, to domain.ChannelStatus, ev TransitionEvent) error {
	from := channel.Status
	if from == to {
		return nil
	}
	if !from.CanTransition(to) {
		return fmt.Errorf("channel %s cannot go %s -> %s: %w", channel.ID, from, to, ErrInvalidTransition)
	}

	applied, err := m.channels.UpdateStatus(ctx, channel.ID, from, to)
	if err != nil {
		return fmt.Errorf("failed to transition channel %s: %w", channel.ID, err)
	}
	if !applied {
		return nil
	}

	ev.ChannelID = channel.ID
	ev.FromStatus = from
	ev.ToStatus = to
	if ev.EventType == "" {
		ev.EventType = eventTypeFor(from, to)
	}
	if ev.TriggeredBy == "" {
		ev.TriggeredBy = domain.TriggerSystem
	}
	if _, err := m.recorder.Record(ctx, ev); err != nil {
		logger.CtxError(ctx, "failed to record %s event for channel %s: %v", ev.EventType, channel.ID, err)
	}

	logger.CtxInfo(ctx, "channel %s transitioned %s -> %s", channel.ID, from, to)
	channel.Status = to
	for _, hook := range m.hooks {
		hook.OnChannelTransition(ctx, channel, from, to)
	}
	return nil
}

// TransitionByID loads a channel and applies Transition.
func (m *ChannelStateMachine) TransitionByID(ctx context.Context, channelID string, to domain.ChannelStatus, ev TransitionEvent) error {
	channel, err := m.channels.GetByID(ctx, channelID)
	if err != nil {
		return fmt.Errorf("failed to load channel %s: %w", channelID, err)
	}
	return m.Transition(ctx, channel, to, ev)
}

// SetMaintenance toggles the operator maintenance override. While in
// maintenance, failover evaluation and analysis enqueueing are suppressed.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - channelID: channel to toggle.
//   - on: true enters maintenance, false returns the channel to live.
//   - userID: operator issuing the override.
// Returns:
//   - error: ErrInvalidTransition when the current status does not allow it.
func (m *ChannelStateMachine) SetMaintenance(ctx context.Context, channelID string, on bool, userID string) error {
	target := domain.ChannelStatusMaintenance
	if !on {
		target = domain.ChannelStatusLive
	}
	return m.TransitionByID(ctx, channelID, target, TransitionEvent{
		TriggeredBy: domain.TriggerUser,
		UserID:      userID,
	})
}

// eventTypeFor maps a status pair to its event type.
func eventTypeFor(from, to domain.ChannelStatus) domain.EventType {
	switch to {
	case domain.ChannelStatusLive:
		if from == domain.ChannelStatusError {
			return domain.EventRecovered
		}
		return domain.EventStarted
	case domain.ChannelStatusError:
		return domain.EventError
	case domain.ChannelStatusOffline, domain.ChannelStatusMaintenance:
		return domain.EventStopped
	case domain.ChannelStatusScheduled:
		return domain.EventReconnecting
	}
	return domain.EventError
}
