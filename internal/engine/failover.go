package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/eliudefrancisco14/gateway-matrix-api/internal/domain"
	"github.com/eliudefrancisco14/gateway-matrix-api/internal/health"
	"github.com/eliudefrancisco14/gateway-matrix-api/internal/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrNoAlternate is returned when a failover is requested for a channel with
// no alternate source configured.
var ErrNoAlternate = errors.New("no alternate source configured")

// ErrAlternateNotOnline is returned when a manual switch targets a source
// that is not online.
var ErrAlternateNotOnline = errors.New("target source is not online")

// SourceReader is the read surface the failover engine needs.
type SourceReader interface {
	GetByID(ctx context.Context, id string) (*domain.Source, error)
}

// AlertSink receives operational alerts.
type AlertSink interface {
	Create(ctx context.Context, alert *domain.Alert) error
}

// FailoverDecisionEngine watches source transitions and decides, per channel,
// whether to switch the active source. Decisions for one channel are
// serialized by a per-channel mutex, so two concurrent verdicts can never
// apply conflicting transitions; decisions are idempotent, so re-evaluating a
// resolved situation applies nothing.
type FailoverDecisionEngine struct {
	channels  ChannelStore
	sources   SourceReader
	channelSM *ChannelStateMachine
	recorder  *EventRecorder
	alerts    AlertSink
	autoBack  bool

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewFailoverDecisionEngine creates a FailoverDecisionEngine.
// Parameters:
//   - channels: channel persistence.
//   - sources: source lookup.
//   - channelSM: channel state machine driving status changes.
//   - recorder: event recorder for failover events.
//   - alerts: alert sink for operational failures; nil disables alerts.
//   - failbackMode: "auto" reverts to primary on recovery, "manual" waits for
//     an explicit trigger (the default, to avoid viewer-visible flapping).
// Returns:
//   - *FailoverDecisionEngine: engine instance.
func NewFailoverDecisionEngine(channels ChannelStore, sources SourceReader, channelSM *ChannelStateMachine, recorder *EventRecorder, alerts AlertSink, failbackMode string) *FailoverDecisionEngine {
	return &FailoverDecisionEngine{
		channels:  channels,
		sources:   sources,
		channelSM: channelSM,
		recorder:  recorder,
		alerts:    alerts,
		autoBack:  failbackMode == "auto",
		locks:     make(map[string]*sync.Mutex),
	}
}

// OnSourceTransition implements TransitionListener: every applied source
// transition re-evaluates the channels referencing that source. Failures for
// one channel never abort evaluation of the others.
func (e *FailoverDecisionEngine) OnSourceTransition(ctx context.Context, sourceID string, from, to domain.SourceStatus, result health.Result) {
	channels, err := e.channels.ListReferencingSource(ctx, sourceID)
	if err != nil {
		logger.CtxError(ctx, "failed to list channels for source %s: %v", sourceID, err)
		return
	}
	triggerID := uuid.NewString()
	for i := range channels {
		if err := e.evaluateLocked(ctx, channels[i].ID, result, triggerID); err != nil {
			logger.CtxError(ctx, "failover evaluation failed for channel %s: %v", channels[i].ID, err)
		}
	}
}

// EvaluateChannel re-runs the failover decision for one channel, used when
// suppressed evaluation resumes (a channel leaving maintenance) and for
// explicit re-evaluation.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - channelID: channel to evaluate.
// Returns:
//   - error: non-nil if lookups or persistence fail.
func (e *FailoverDecisionEngine) EvaluateChannel(ctx context.Context, channelID string) error {
	return e.evaluateLocked(ctx, channelID, health.Result{Verdict: health.VerdictUnhealthy, Reason: "re-evaluation"}, uuid.NewString())
}

// OnChannelTransition implements ChannelHook. A channel leaving maintenance
// re-runs the failover decision: source transitions during the maintenance
// window were deliberately ignored, so a source that went offline while
// suppressed produces no further transition to trigger evaluation.
func (e *FailoverDecisionEngine) OnChannelTransition(ctx context.Context, channel *domain.Channel, from, to domain.ChannelStatus) {
	if from != domain.ChannelStatusMaintenance {
		return
	}
	if err := e.EvaluateChannel(ctx, channel.ID); err != nil {
		logger.CtxError(ctx, "failover re-evaluation failed for channel %s: %v", channel.ID, err)
	}
}

func (e *FailoverDecisionEngine) evaluateLocked(ctx context.Context, channelID string, result health.Result, triggerID string) error {
	unlock := e.lockChannel(channelID)
	defer unlock()

	channel, err := e.channels.GetByID(ctx, channelID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("failed to load channel %s: %w", channelID, err)
	}
	return e.evaluate(ctx, channel, result, triggerID)
}

// evaluate holds the decision rules. Caller holds the channel lock.
func (e *FailoverDecisionEngine) evaluate(ctx context.Context, channel *domain.Channel, result health.Result, triggerID string) error {
	if !e.evaluable(channel) {
		return nil
	}

	activeID := channel.ActiveSource()
	if activeID == "" {
		return nil
	}
	active, err := e.sources.GetByID(ctx, activeID)
	if err != nil {
		return fmt.Errorf("failed to load active source %s: %w", activeID, err)
	}

	switch active.Status {
	case domain.SourceStatusOnline:
		// Active source is fine. Recover a degraded channel, then consider
		// automatic failback when the primary has come back.
		if channel.Status == domain.ChannelStatusError {
			if err := e.channelSM.Transition(ctx, channel, domain.ChannelStatusLive, TransitionEvent{
				EventType:   domain.EventRecovered,
				TriggeredBy: domain.TriggerSystem,
				TriggerID:   triggerID,
				Details:     domain.JSONMap{"reason": "active source back online"},
			}); err != nil {
				return err
			}
		}
		if e.autoBack && channel.SourceID != "" && activeID != channel.SourceID {
			primary, err := e.sources.GetByID(ctx, channel.SourceID)
			if err != nil {
				return fmt.Errorf("failed to load primary source %s: %w", channel.SourceID, err)
			}
			if primary.Status == domain.SourceStatusOnline {
				return e.switchActive(ctx, channel, active, primary, result, domain.TriggerSystem, "", triggerID, domain.EventSourceChanged, "automatic failback to primary")
			}
		}
		return nil

	case domain.SourceStatusOffline, domain.SourceStatusError:
		altID := channel.AlternateSource()
		if altID != "" {
			alt, err := e.sources.GetByID(ctx, altID)
			if err != nil {
				return fmt.Errorf("failed to load alternate source %s: %w", altID, err)
			}
			if alt.Status == domain.SourceStatusOnline {
				return e.switchActive(ctx, channel, active, alt, result, domain.TriggerFailoverRule, "", triggerID, domain.EventFailover, result.Reason)
			}
		}
		return e.degrade(ctx, channel, active, result, triggerID)

	default:
		// unstable or connecting: keep the current source, surface the
		// degradation on the channel, and wait for it to stabilize before
		// considering any further failover.
		return e.degrade(ctx, channel, active, result, triggerID)
	}
}

// evaluable reports whether the channel participates in failover decisions.
// Maintenance suppresses evaluation entirely; only on-air channels are driven.
func (e *FailoverDecisionEngine) evaluable(channel *domain.Channel) bool {
	if !channel.IsActive {
		return false
	}
	switch channel.Status {
	case domain.ChannelStatusLive, domain.ChannelStatusError:
		return true
	}
	return false
}

// switchActive flips the channel's active source, records the event, and
// recovers the channel to live when it was in error.
func (e *FailoverDecisionEngine) switchActive(ctx context.Context, channel *domain.Channel, from, to *domain.Source, result health.Result, trigger domain.TriggeredBy, userID, triggerID string, eventType domain.EventType, reason string) error {
	if err := e.channels.SetActiveSource(ctx, channel.ID, to.ID); err != nil {
		return fmt.Errorf("failed to set active source on channel %s: %w", channel.ID, err)
	}
	channel.ActiveSourceID = to.ID

	fromStatus := channel.Status
	toStatus := fromStatus
	if channel.Status == domain.ChannelStatusError {
		toStatus = domain.ChannelStatusLive
	}

	details := domain.FailoverDetails{
		FromSourceID: from.ID,
		ToSourceID:   to.ID,
		Verdict:      string(result.Verdict),
		Reason:       reason,
		FromStatus:   string(fromStatus),
		ToStatus:     string(toStatus),
	}
	if _, err := e.recorder.Record(ctx, TransitionEvent{
		ChannelID:   channel.ID,
		EventType:   eventType,
		Details:     details.ToMap(),
		TriggeredBy: trigger,
		UserID:      userID,
		TriggerID:   triggerID,
	}); err != nil {
		logger.CtxError(ctx, "failed to record %s event for channel %s: %v", eventType, channel.ID, err)
	}

	logger.CtxInfo(ctx, "channel %s switched active source %s -> %s (%s)", channel.ID, from.ID, to.ID, reason)

	if channel.Status == domain.ChannelStatusError {
		return e.channelSM.Transition(ctx, channel, domain.ChannelStatusLive, TransitionEvent{
			EventType:   domain.EventRecovered,
			TriggeredBy: trigger,
			UserID:      userID,
			TriggerID:   triggerID,
			Details:     domain.JSONMap{"reason": "failed over to healthy source"},
		})
	}
	return nil
}

// degrade keeps the channel on its current source but surfaces the problem as
// channel error status plus an operational alert. Already-degraded channels
// apply nothing, so repeated bad verdicts do not oscillate.
func (e *FailoverDecisionEngine) degrade(ctx context.Context, channel *domain.Channel, active *domain.Source, result health.Result, triggerID string) error {
	if channel.Status != domain.ChannelStatusLive {
		return nil
	}
	if err := e.channelSM.Transition(ctx, channel, domain.ChannelStatusError, TransitionEvent{
		EventType:   domain.EventError,
		TriggeredBy: domain.TriggerSystem,
		TriggerID:   triggerID,
		Details: domain.JSONMap{
			"source_id": active.ID,
			"verdict":   string(result.Verdict),
			"reason":    result.Reason,
		},
	}); err != nil {
		return err
	}

	if e.alerts != nil {
		if err := e.alerts.Create(ctx, &domain.Alert{
			ID:        uuid.NewString(),
			Severity:  domain.AlertSeverityError,
			Message:   fmt.Sprintf("channel %s has no healthy source: active source %s is %s (%s)", channel.Name, active.ID, active.Status, result.Reason),
			SourceID:  active.ID,
			ChannelID: channel.ID,
			CreatedAt: time.Now(),
		}); err != nil {
			logger.CtxError(ctx, "failed to create alert for channel %s: %v", channel.ID, err)
		}
	}
	return nil
}

// ManualFailover switches the channel to its alternate source on operator
// request. The alternate must be configured and online.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - channelID: channel to switch.
//   - userID: operator issuing the switch.
// Returns:
//   - error: ErrNoAlternate or ErrAlternateNotOnline on precondition failure.
func (e *FailoverDecisionEngine) ManualFailover(ctx context.Context, channelID, userID string) error {
	unlock := e.lockChannel(channelID)
	defer unlock()

	channel, err := e.channels.GetByID(ctx, channelID)
	if err != nil {
		return fmt.Errorf("failed to load channel %s: %w", channelID, err)
	}
	altID := channel.AlternateSource()
	if altID == "" {
		return ErrNoAlternate
	}
	active, err := e.sources.GetByID(ctx, channel.ActiveSource())
	if err != nil {
		return fmt.Errorf("failed to load active source: %w", err)
	}
	alt, err := e.sources.GetByID(ctx, altID)
	if err != nil {
		return fmt.Errorf("failed to load alternate source %s: %w", altID, err)
	}
	if alt.Status != domain.SourceStatusOnline {
		return fmt.Errorf("source %s is %s: %w", alt.ID, alt.Status, ErrAlternateNotOnline)
	}
	return e.switchActive(ctx, channel, active, alt,
		health.Result{Verdict: health.VerdictHealthy, Reason: "manual failover"},
		domain.TriggerUser, userID, "", domain.EventFailover, "manual failover")
}

// ManualFailback reverts the channel to its primary source on operator
// request. With failback_mode=manual this is the only path back to primary.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - channelID: channel to revert.
//   - userID: operator issuing the revert.
// Returns:
//   - error: ErrAlternateNotOnline when the primary is not online.
func (e *FailoverDecisionEngine) ManualFailback(ctx context.Context, channelID, userID string) error {
	unlock := e.lockChannel(channelID)
	defer unlock()

	channel, err := e.channels.GetByID(ctx, channelID)
	if err != nil {
		return fmt.Errorf("failed to load channel %s: %w", channelID, err)
	}
	if channel.ActiveSource() == channel.SourceID {
		return nil
	}
	active, err := e.sources.GetByID(ctx, channel.ActiveSource())
	if err != nil {
		return fmt.Errorf("failed to load active source: %w", err)
	}
	primary, err := e.sources.GetByID(ctx, channel.SourceID)
	if err != nil {
		return fmt.Errorf("failed to load primary source %s: %w", channel.SourceID, err)
	}
	if primary.Status != domain.SourceStatusOnline {
		return fmt.Errorf("source %s is %s: %w", primary.ID, primary.Status, ErrAlternateNotOnline)
	}
	return e.switchActive(ctx, channel, active, primary,
		health.Result{Verdict: health.VerdictHealthy, Reason: "manual failback"},
		domain.TriggerUser, userID, "", domain.EventSourceChanged, "manual failback to primary")
}

// lockChannel acquires the per-channel exclusive section.
func (e *FailoverDecisionEngine) lockChannel(channelID string) func() {
	e.mu.Lock()
	lock, ok := e.locks[channelID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[channelID] = lock
	}
	e.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
