package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eliudefrancisco14/gateway-matrix-api/internal/domain"
	"github.com/eliudefrancisco14/gateway-matrix-api/internal/health"
)

func healthyResult() health.Result {
	return health.Result{Verdict: health.VerdictHealthy, Reason: "within thresholds"}
}

func degradedResult() health.Result {
	return health.Result{Verdict: health.VerdictDegraded, Reason: "packet loss"}
}

func TestSourceStateMachine_VerdictTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    domain.SourceStatus
		verdict health.Result
		want    domain.SourceStatus
	}{
		{"online degrades to unstable", domain.SourceStatusOnline, degradedResult(), domain.SourceStatusUnstable},
		{"online drops to offline on unhealthy", domain.SourceStatusOnline, unhealthy("stale"), domain.SourceStatusOffline},
		{"unstable drops to offline on unhealthy", domain.SourceStatusUnstable, unhealthy("stale"), domain.SourceStatusOffline},
		{"connecting goes online on healthy", domain.SourceStatusConnecting, healthyResult(), domain.SourceStatusOnline},
		{"connecting drops to offline on unhealthy", domain.SourceStatusConnecting, unhealthy("stale"), domain.SourceStatusOffline},
		{"offline reconnects on healthy samples", domain.SourceStatusOffline, healthyResult(), domain.SourceStatusConnecting},
		{"offline stays offline on unhealthy", domain.SourceStatusOffline, unhealthy("stale"), domain.SourceStatusOffline},
		{"error ignores verdicts", domain.SourceStatusError, healthyResult(), domain.SourceStatusError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &domain.Source{ID: "src-1", Status: tt.from, IsActive: true}
			sources := newFakeSources(src)
			sm := NewSourceStateMachine(sources, nil, 0)

			got, err := sm.Apply(context.Background(), src, tt.verdict, nil, time.Now())
			if err != nil {
				t.Fatalf("apply: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
			if persisted := sources.status("src-1"); persisted != tt.want {
				t.Errorf("expected persisted status %s, got %s", tt.want, persisted)
			}
		})
	}
}

func TestSourceStateMachine_UnstableRecoveryIsDebounced(t *testing.T) {
	src := &domain.Source{ID: "src-1", Status: domain.SourceStatusUnstable, IsActive: true}
	sources := newFakeSources(src)
	sm := NewSourceStateMachine(sources, nil, 10*time.Second)
	ctx := context.Background()
	now := time.Now()

	// First healthy verdict arms the debounce but does not transition.
	got, err := sm.Apply(ctx, src, healthyResult(), nil, now)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got != domain.SourceStatusUnstable {
		t.Errorf("expected unstable before debounce elapses, got %s", got)
	}

	// Still inside the debounce window.
	got, _ = sm.Apply(ctx, src, healthyResult(), nil, now.Add(5*time.Second))
	if got != domain.SourceStatusUnstable {
		t.Errorf("expected unstable at 5s, got %s", got)
	}

	// Past the window: back online.
	got, _ = sm.Apply(ctx, src, healthyResult(), nil, now.Add(11*time.Second))
	if got != domain.SourceStatusOnline {
		t.Errorf("expected online after sustained health, got %s", got)
	}
}

func TestSourceStateMachine_DegradedVerdictResetsDebounce(t *testing.T) {
	src := &domain.Source{ID: "src-1", Status: domain.SourceStatusUnstable, IsActive: true}
	sm := NewSourceStateMachine(newFakeSources(src), nil, 10*time.Second)
	ctx := context.Background()
	now := time.Now()

	sm.Apply(ctx, src, healthyResult(), nil, now)
	sm.Apply(ctx, src, degradedResult(), nil, now.Add(5*time.Second))

	// Health must be sustained from scratch after the degraded interruption.
	got, _ := sm.Apply(ctx, src, healthyResult(), nil, now.Add(11*time.Second))
	if got != domain.SourceStatusUnstable {
		t.Errorf("expected unstable after interrupted debounce, got %s", got)
	}
	got, _ = sm.Apply(ctx, src, healthyResult(), nil, now.Add(22*time.Second))
	if got != domain.SourceStatusOnline {
		t.Errorf("expected online after fresh sustained health, got %s", got)
	}
}

func TestSourceStateMachine_ApplyUpdatesLastSeen(t *testing.T) {
	src := &domain.Source{ID: "src-1", Status: domain.SourceStatusOnline, IsActive: true}
	sources := newFakeSources(src)
	sm := NewSourceStateMachine(sources, nil, 0)

	seen := time.Now().Add(-2 * time.Second)
	if _, err := sm.Apply(context.Background(), src, healthyResult(), &seen, time.Now()); err != nil {
		t.Fatalf("apply: %v", err)
	}

	stored, _ := sources.GetByID(context.Background(), "src-1")
	if stored.LastSeenAt == nil || !stored.LastSeenAt.Equal(seen) {
		t.Errorf("expected last_seen_at %v, got %v", seen, stored.LastSeenAt)
	}
}

func TestSourceStateMachine_StreamClosed(t *testing.T) {
	for _, from := range []domain.SourceStatus{
		domain.SourceStatusOnline, domain.SourceStatusUnstable,
		domain.SourceStatusConnecting, domain.SourceStatusOffline,
	} {
		t.Run(string(from), func(t *testing.T) {
			src := &domain.Source{ID: "src-1", Status: from, IsActive: true}
			sources := newFakeSources(src)
			sm := NewSourceStateMachine(sources, nil, 0)

			if err := sm.StreamClosed(context.Background(), "src-1", "encoder reported EOF"); err != nil {
				t.Fatalf("stream closed: %v", err)
			}
			if got := sources.status("src-1"); got != domain.SourceStatusError {
				t.Errorf("expected error from %s, got %s", from, got)
			}
		})
	}
}

func TestSourceStateMachine_Reconnect(t *testing.T) {
	src := &domain.Source{ID: "src-1", Status: domain.SourceStatusError, IsActive: true}
	sources := newFakeSources(src)
	sm := NewSourceStateMachine(sources, nil, 0)
	ctx := context.Background()

	if err := sm.Reconnect(ctx, "src-1"); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if got := sources.status("src-1"); got != domain.SourceStatusConnecting {
		t.Errorf("expected connecting, got %s", got)
	}

	// Reconnect is only valid from offline or error.
	if err := sm.Reconnect(ctx, "src-1"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition from connecting, got %v", err)
	}
}
