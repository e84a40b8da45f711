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
)

// ErrInvalidTransition is returned when a requested state change is not a
// legal edge of the owning state machine.
var ErrInvalidTransition = errors.New("invalid state transition")

// SourceStore is the persistence surface the source state machine needs.
type SourceStore interface {
	GetByID(ctx context.Context, id string) (*domain.Source, error)
	UpdateStatus(ctx context.Context, id string, from, to domain.SourceStatus, seenAt *time.Time) (bool, error)
	TouchLastSeen(ctx context.Context, id string, seenAt time.Time) error
}

// TransitionListener receives every applied source transition. The failover
// decision engine implements this to re-evaluate affected channels.
type TransitionListener interface {
	OnSourceTransition(ctx context.Context, sourceID string, from, to domain.SourceStatus, result health.Result)
}

// SourceStateMachine owns each source's status, driven by health verdicts and
// connection events. It updates last_seen_at on verdict receipt and reports
// transitions to its listener; it never writes channel events itself.
type SourceStateMachine struct {
	sources  SourceStore
	listener TransitionListener
	debounce time.Duration

	mu           sync.Mutex
	healthySince map[string]time.Time
}

// NewSourceStateMachine creates a SourceStateMachine.
// Parameters:
//   - sources: source persistence.
//   - listener: transition consumer; nil disables notification.
//   - debounce: how long an unstable source must stay healthy before
//     returning to online.
// Returns:
//   - *SourceStateMachine: state machine instance.
func NewSourceStateMachine(sources SourceStore, listener TransitionListener, debounce time.Duration) *SourceStateMachine {
	return &SourceStateMachine{
		sources:      sources,
		listener:     listener,
		debounce:     debounce,
		healthySince: make(map[string]time.Time),
	}
}

// Apply feeds one health verdict into the state machine and persists the
// resulting transition, if any.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - source: current source row, as loaded by the caller.
//   - result: verdict for this evaluation cycle.
//   - seenAt: timestamp of the newest sample backing the verdict; nil when
//     the verdict comes from staleness (no fresh sample to record).
//   - now: evaluation instant, used for debounce bookkeeping.
// Returns:
//   - domain.SourceStatus: status after this evaluation.
//   - error: non-nil if persistence fails.
func (m *SourceStateMachine) Apply(ctx context.Context, source *domain.Source, result health.Result, seenAt *time.Time, now time.Time) (domain.SourceStatus, error) {
	target := m.target(source, result, now)
	if target == source.Status || target == "" {
		if seenAt != nil {
			if err := m.sources.TouchLastSeen(ctx, source.ID, *seenAt); err != nil {
				return source.Status, fmt.Errorf("failed to touch last_seen_at for source %s: %w", source.ID, err)
			}
		}
		return source.Status, nil
	}
	return m.transition(ctx, source, target, result, seenAt)
}

// target decides the next status for a verdict. Empty means no change.
func (m *SourceStateMachine) target(source *domain.Source, result health.Result, now time.Time) domain.SourceStatus {
	switch result.Verdict {
	case health.VerdictHealthy:
		switch source.Status {
		case domain.SourceStatusConnecting:
			m.clearDebounce(source.ID)
			return domain.SourceStatusOnline
		case domain.SourceStatusUnstable:
			// Sustained health is required before going back online,
			// otherwise a single good sample re-arms failover flapping.
			if m.sustainedHealthy(source.ID, now) {
				m.clearDebounce(source.ID)
				return domain.SourceStatusOnline
			}
			return ""
		case domain.SourceStatusOffline:
			// Fresh healthy samples on an offline source mean the feed is
			// back; treat it as a reconnection attempt.
			return domain.SourceStatusConnecting
		}
		return ""
	case health.VerdictDegraded:
		m.clearDebounce(source.ID)
		if source.Status == domain.SourceStatusOnline {
			return domain.SourceStatusUnstable
		}
		return ""
	case health.VerdictUnhealthy:
		m.clearDebounce(source.ID)
		switch source.Status {
		case domain.SourceStatusOnline, domain.SourceStatusUnstable, domain.SourceStatusConnecting:
			return domain.SourceStatusOffline
		}
		return ""
	}
	return ""
}

// StreamClosed moves a source to error on an unrecoverable signal, reachable
// from any state.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - sourceID: source that reported the closed stream.
//   - reason: description propagated to the listener.
// Returns:
//   - error: non-nil if lookup or persistence fails.
func (m *SourceStateMachine) StreamClosed(ctx context.Context, sourceID, reason string) error {
	source, err := m.sources.GetByID(ctx, sourceID)
	if err != nil {
		return fmt.Errorf("failed to load source %s: %w", sourceID, err)
	}
	if source.Status == domain.SourceStatusError {
		return nil
	}
	m.clearDebounce(sourceID)
	_, err = m.transition(ctx, source, domain.SourceStatusError,
		health.Result{Verdict: health.VerdictUnhealthy, Reason: reason}, nil)
	return err
}

// Reconnect moves an offline or errored source into connecting, representing
// an explicit reconnection attempt.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - sourceID: source to reconnect.
// Returns:
//   - error: ErrInvalidTransition when the source is not offline or errored.
func (m *SourceStateMachine) Reconnect(ctx context.Context, sourceID string) error {
	source, err := m.sources.GetByID(ctx, sourceID)
	if err != nil {
		return fmt.Errorf("failed to load source %s: %w", sourceID, err)
	}
	if !source.Status.CanTransition(domain.SourceStatusConnecting) {
		return fmt.Errorf("source %s is %s: %w", sourceID, source.Status, ErrInvalidTransition)
	}
	_, err = m.transition(ctx, source, domain.SourceStatusConnecting,
		health.Result{Verdict: health.VerdictUnhealthy, Reason: "reconnect requested"}, nil)
	return err
}

// transition persists and broadcasts one status change. The conditional write
// makes concurrent evaluators safe: the loser of a race simply applies nothing.
func (m *SourceStateMachine) transition(ctx context.Context, source *domain.Source, to domain.SourceStatus, result health.Result, seenAt *time.Time) (domain.SourceStatus, error) {
	from := source.Status
	if !from.CanTransition(to) {
		return from, fmt.Errorf("source %s cannot go %s -> %s: %w", source.ID, from, to, ErrInvalidTransition)
	}

	applied, err := m.sources.UpdateStatus(ctx, source.ID, from, to, seenAt)
	if err != nil {
		return from, fmt.Errorf("failed to transition source %s: %w", source.ID, err)
	}
	if !applied {
		// Another evaluator got there first; its transition will notify.
		return from, nil
	}

	logger.CtxInfo(ctx, "source %s transitioned %s -> %s (%s)", source.ID, from, to, result.Reason)
	source.Status = to
	if m.listener != nil {
		m.listener.OnSourceTransition(ctx, source.ID, from, to, result)
	}
	return to, nil
}

// sustainedHealthy tracks how long a source has been continuously healthy and
// reports whether the debounce window has elapsed.
func (m *SourceStateMachine) sustainedHealthy(sourceID string, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	since, ok := m.healthySince[sourceID]
	if !ok {
		m.healthySince[sourceID] = now
		return m.debounce <= 0
	}
	return now.Sub(since) >= m.debounce
}

func (m *SourceStateMachine) clearDebounce(sourceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.healthySince, sourceID)
}
