package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eliudefrancisco14/gateway-matrix-api/internal/domain"
	"github.com/eliudefrancisco14/gateway-matrix-api/internal/health"
)

type rig struct {
	sources   *fakeSources
	channels  *fakeChannels
	events    *fakeEvents
	alerts    *fakeAlerts
	recorder  *EventRecorder
	channelSM *ChannelStateMachine
	failover  *FailoverDecisionEngine
	sourceSM  *SourceStateMachine
}

func newRig(failbackMode string, debounce time.Duration, sources []*domain.Source, channels []*domain.Channel) *rig {
	r := &rig{
		sources:  newFakeSources(sources...),
		channels: newFakeChannels(channels...),
		events:   newFakeEvents(),
		alerts:   &fakeAlerts{},
	}
	r.recorder = NewEventRecorder(r.events, &fakeAudits{})
	r.channelSM = NewChannelStateMachine(r.channels, r.recorder)
	r.failover = NewFailoverDecisionEngine(r.channels, r.sources, r.channelSM, r.recorder, r.alerts, failbackMode)
	r.channelSM.AddHook(r.failover)
	r.sourceSM = NewSourceStateMachine(r.sources, r.failover, debounce)
	return r
}

func onlineSource(id string) *domain.Source {
	return &domain.Source{ID: id, Name: id, Status: domain.SourceStatusOnline, IsActive: true}
}

func liveChannel(id, primary, fallback string) *domain.Channel {
	return &domain.Channel{
		ID:               id,
		Name:             id,
		SourceID:         primary,
		FallbackSourceID: fallback,
		Status:           domain.ChannelStatusLive,
		IsActive:         true,
	}
}

func unhealthy(reason string) health.Result {
	return health.Result{Verdict: health.VerdictUnhealthy, Reason: reason}
}

func TestFailover_ActiveOfflineSwitchesToFallback(t *testing.T) {
	// Source A (online) is primary, source B (online) is fallback for a live
	// channel. Five consecutive unhealthy verdicts for A must produce exactly
	// one failover: active source B, one failover event, A offline.
	r := newRig("manual", 0, []*domain.Source{onlineSource("src-a"), onlineSource("src-b")},
		[]*domain.Channel{liveChannel("ch-1", "src-a", "src-b")})
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 5; i++ {
		source, err := r.sources.GetByID(ctx, "src-a")
		if err != nil {
			t.Fatalf("load source: %v", err)
		}
		if _, err := r.sourceSM.Apply(ctx, source, unhealthy("stale"), nil, now); err != nil {
			t.Fatalf("apply verdict %d: %v", i, err)
		}
	}

	if got := r.sources.status("src-a"); got != domain.SourceStatusOffline {
		t.Errorf("expected src-a offline, got %s", got)
	}
	ch := r.channels.get("ch-1")
	if ch.ActiveSourceID != "src-b" {
		t.Errorf("expected active source src-b, got %q", ch.ActiveSourceID)
	}
	if ch.Status != domain.ChannelStatusLive {
		t.Errorf("expected channel to stay live, got %s", ch.Status)
	}

	failovers := r.events.byType(domain.EventFailover)
	if len(failovers) != 1 {
		t.Fatalf("expected exactly 1 failover event, got %d", len(failovers))
	}
	if failovers[0].TriggeredBy != domain.TriggerFailoverRule {
		t.Errorf("expected triggered_by failover_rule, got %s", failovers[0].TriggeredBy)
	}
	if failovers[0].Details["from_source_id"] != "src-a" || failovers[0].Details["to_source_id"] != "src-b" {
		t.Errorf("unexpected failover details: %v", failovers[0].Details)
	}
}

func TestFailover_ReEvaluationIsIdempotent(t *testing.T) {
	r := newRig("manual", 0, []*domain.Source{onlineSource("src-a"), onlineSource("src-b")},
		[]*domain.Channel{liveChannel("ch-1", "src-a", "src-b")})
	ctx := context.Background()

	source, _ := r.sources.GetByID(ctx, "src-a")
	if _, err := r.sourceSM.Apply(ctx, source, unhealthy("stale"), nil, time.Now()); err != nil {
		t.Fatalf("apply verdict: %v", err)
	}
	if got := len(r.events.byType(domain.EventFailover)); got != 1 {
		t.Fatalf("expected 1 failover event, got %d", got)
	}

	// Re-evaluating the already-resolved situation applies nothing.
	for i := 0; i < 3; i++ {
		if err := r.failover.EvaluateChannel(ctx, "ch-1"); err != nil {
			t.Fatalf("re-evaluation %d: %v", i, err)
		}
	}
	if got := len(r.events.byType(domain.EventFailover)); got != 1 {
		t.Errorf("expected still 1 failover event after re-evaluation, got %d", got)
	}
	if ch := r.channels.get("ch-1"); ch.ActiveSourceID != "src-b" {
		t.Errorf("expected active source to stay src-b, got %q", ch.ActiveSourceID)
	}
}

func TestFailover_NoAlternateDegradesChannel(t *testing.T) {
	r := newRig("manual", 0, []*domain.Source{onlineSource("src-a")},
		[]*domain.Channel{liveChannel("ch-1", "src-a", "")})
	ctx := context.Background()

	source, _ := r.sources.GetByID(ctx, "src-a")
	if _, err := r.sourceSM.Apply(ctx, source, unhealthy("stream gone"), nil, time.Now()); err != nil {
		t.Fatalf("apply verdict: %v", err)
	}

	ch := r.channels.get("ch-1")
	if ch.Status != domain.ChannelStatusError {
		t.Errorf("expected channel error, got %s", ch.Status)
	}
	if ch.ActiveSource() != "src-a" {
		t.Errorf("expected channel to stay on src-a, got %q", ch.ActiveSource())
	}
	if got := len(r.events.byType(domain.EventError)); got != 1 {
		t.Errorf("expected 1 error event, got %d", got)
	}
	if r.alerts.count() != 1 {
		t.Errorf("expected 1 alert, got %d", r.alerts.count())
	}

	// Repeated bad verdicts do not oscillate or duplicate alerts.
	for i := 0; i < 3; i++ {
		if err := r.failover.EvaluateChannel(ctx, "ch-1"); err != nil {
			t.Fatalf("re-evaluation %d: %v", i, err)
		}
	}
	if r.alerts.count() != 1 {
		t.Errorf("expected still 1 alert, got %d", r.alerts.count())
	}
}

func TestFailover_UnstableActiveDegradesWithoutSwitch(t *testing.T) {
	srcA := onlineSource("src-a")
	srcA.Status = domain.SourceStatusUnstable
	r := newRig("manual", 0, []*domain.Source{srcA, onlineSource("src-b")},
		[]*domain.Channel{liveChannel("ch-1", "src-a", "src-b")})
	ctx := context.Background()

	if err := r.failover.EvaluateChannel(ctx, "ch-1"); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	ch := r.channels.get("ch-1")
	if ch.Status != domain.ChannelStatusError {
		t.Errorf("expected channel error for unstable active source, got %s", ch.Status)
	}
	if ch.ActiveSource() != "src-a" {
		t.Errorf("expected no switch for unstable source, active is %q", ch.ActiveSource())
	}
	if got := len(r.events.byType(domain.EventFailover)); got != 0 {
		t.Errorf("expected no failover events, got %d", got)
	}
}

func TestFailover_RecoversChannelWhenActiveBackOnline(t *testing.T) {
	srcA := onlineSource("src-a")
	ch := liveChannel("ch-1", "src-a", "")
	ch.Status = domain.ChannelStatusError
	r := newRig("manual", 0, []*domain.Source{srcA}, []*domain.Channel{ch})
	ctx := context.Background()

	if err := r.failover.EvaluateChannel(ctx, "ch-1"); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	if got := r.channels.get("ch-1").Status; got != domain.ChannelStatusLive {
		t.Errorf("expected channel live after recovery, got %s", got)
	}
	if got := len(r.events.byType(domain.EventRecovered)); got != 1 {
		t.Errorf("expected 1 recovered event, got %d", got)
	}
}

func TestFailover_ManualFailbackMode(t *testing.T) {
	srcA := onlineSource("src-a")
	srcB := onlineSource("src-b")
	ch := liveChannel("ch-1", "src-a", "src-b")
	ch.ActiveSourceID = "src-b" // failed over earlier; primary has recovered
	r := newRig("manual", 0, []*domain.Source{srcA, srcB}, []*domain.Channel{ch})
	ctx := context.Background()

	// Primary online while fallback is active: no automatic change.
	if err := r.failover.EvaluateChannel(ctx, "ch-1"); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got := r.channels.get("ch-1").ActiveSourceID; got != "src-b" {
		t.Errorf("expected active source to stay src-b without explicit trigger, got %q", got)
	}

	// The explicit trigger reverts to primary.
	if err := r.failover.ManualFailback(ctx, "ch-1", "user-1"); err != nil {
		t.Fatalf("manual failback: %v", err)
	}
	if got := r.channels.get("ch-1").ActiveSourceID; got != "src-a" {
		t.Errorf("expected active source src-a after manual failback, got %q", got)
	}
	changed := r.events.byType(domain.EventSourceChanged)
	if len(changed) != 1 {
		t.Fatalf("expected 1 source_changed event, got %d", len(changed))
	}
	if changed[0].TriggeredBy != domain.TriggerUser {
		t.Errorf("expected triggered_by user, got %s", changed[0].TriggeredBy)
	}
}

func TestFailover_AutoFailbackMode(t *testing.T) {
	srcA := onlineSource("src-a")
	srcB := onlineSource("src-b")
	ch := liveChannel("ch-1", "src-a", "src-b")
	ch.ActiveSourceID = "src-b"
	r := newRig("auto", 0, []*domain.Source{srcA, srcB}, []*domain.Channel{ch})

	if err := r.failover.EvaluateChannel(context.Background(), "ch-1"); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got := r.channels.get("ch-1").ActiveSourceID; got != "src-a" {
		t.Errorf("expected automatic failback to src-a, got %q", got)
	}
}

func TestFailover_MaintenanceSuppressesEvaluation(t *testing.T) {
	srcA := onlineSource("src-a")
	srcA.Status = domain.SourceStatusOffline
	ch := liveChannel("ch-1", "src-a", "src-b")
	ch.Status = domain.ChannelStatusMaintenance
	r := newRig("manual", 0, []*domain.Source{srcA, onlineSource("src-b")}, []*domain.Channel{ch})

	if err := r.failover.EvaluateChannel(context.Background(), "ch-1"); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	got := r.channels.get("ch-1")
	if got.Status != domain.ChannelStatusMaintenance {
		t.Errorf("expected channel to stay in maintenance, got %s", got.Status)
	}
	if got.ActiveSourceID != "" {
		t.Errorf("expected no source switch during maintenance, got %q", got.ActiveSourceID)
	}
	if len(r.events.rows) != 0 {
		t.Errorf("expected no events during maintenance, got %d", len(r.events.rows))
	}
}

func TestFailover_MaintenanceExitResumesEvaluation(t *testing.T) {
	// The active source goes offline while the channel is in maintenance, so
	// the suppressed transition never triggers a decision. Leaving maintenance
	// must re-evaluate and fail over to the online fallback instead of staying
	// live on the offline source.
	r := newRig("manual", 0, []*domain.Source{onlineSource("src-a"), onlineSource("src-b")},
		[]*domain.Channel{liveChannel("ch-1", "src-a", "src-b")})
	ctx := context.Background()

	if err := r.channelSM.SetMaintenance(ctx, "ch-1", true, "op-1"); err != nil {
		t.Fatalf("enter maintenance: %v", err)
	}

	source, _ := r.sources.GetByID(ctx, "src-a")
	if _, err := r.sourceSM.Apply(ctx, source, unhealthy("stale"), nil, time.Now()); err != nil {
		t.Fatalf("apply verdict: %v", err)
	}
	if got := r.sources.status("src-a"); got != domain.SourceStatusOffline {
		t.Fatalf("expected src-a offline, got %s", got)
	}
	if got := len(r.events.byType(domain.EventFailover)); got != 0 {
		t.Fatalf("expected no failover during maintenance, got %d events", got)
	}

	if err := r.channelSM.SetMaintenance(ctx, "ch-1", false, "op-1"); err != nil {
		t.Fatalf("leave maintenance: %v", err)
	}

	ch := r.channels.get("ch-1")
	if ch.ActiveSourceID != "src-b" {
		t.Errorf("expected failover to src-b after maintenance ended, got %q", ch.ActiveSourceID)
	}
	if ch.Status != domain.ChannelStatusLive {
		t.Errorf("expected channel live on the fallback, got %s", ch.Status)
	}
	if got := len(r.events.byType(domain.EventFailover)); got != 1 {
		t.Errorf("expected exactly 1 failover event, got %d", got)
	}
}

func TestFailover_ManualFailoverPreconditions(t *testing.T) {
	srcB := onlineSource("src-b")
	srcB.Status = domain.SourceStatusOffline
	r := newRig("manual", 0, []*domain.Source{onlineSource("src-a"), srcB},
		[]*domain.Channel{liveChannel("ch-1", "src-a", "src-b"), liveChannel("ch-2", "src-a", "")})
	ctx := context.Background()

	if err := r.failover.ManualFailover(ctx, "ch-2", "user-1"); !errors.Is(err, ErrNoAlternate) {
		t.Errorf("expected ErrNoAlternate, got %v", err)
	}
	if err := r.failover.ManualFailover(ctx, "ch-1", "user-1"); !errors.Is(err, ErrAlternateNotOnline) {
		t.Errorf("expected ErrAlternateNotOnline, got %v", err)
	}
}

func TestFailover_ManualFailoverSwitches(t *testing.T) {
	r := newRig("manual", 0, []*domain.Source{onlineSource("src-a"), onlineSource("src-b")},
		[]*domain.Channel{liveChannel("ch-1", "src-a", "src-b")})
	ctx := context.Background()

	if err := r.failover.ManualFailover(ctx, "ch-1", "user-1"); err != nil {
		t.Fatalf("manual failover: %v", err)
	}
	if got := r.channels.get("ch-1").ActiveSourceID; got != "src-b" {
		t.Errorf("expected active source src-b, got %q", got)
	}
	failovers := r.events.byType(domain.EventFailover)
	if len(failovers) != 1 {
		t.Fatalf("expected 1 failover event, got %d", len(failovers))
	}
	if failovers[0].TriggeredBy != domain.TriggerUser {
		t.Errorf("expected triggered_by user, got %s", failovers[0].TriggeredBy)
	}
	if failovers[0].UserID != "user-1" {
		t.Errorf("expected user_id user-1, got %q", failovers[0].UserID)
	}
}
