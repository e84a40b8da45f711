package engine

import (
	"context"
	"testing"
	"time"

	"github.com/eliudefrancisco14/gateway-matrix-api/internal/domain"
)

func recordingChannel() *domain.Channel {
	return &domain.Channel{
		ID:               "ch-1",
		Status:           domain.ChannelStatusLive,
		RecordingEnabled: true,
		IsActive:         true,
	}
}

func TestRecordingScheduler_SingleOpenRecording(t *testing.T) {
	recordings := newFakeRecordings()
	scheduler := NewRecordingScheduler(recordings, &fakeSegments{}, 60, "mp4")
	ctx := context.Background()
	ch := recordingChannel()

	if err := scheduler.Start(ctx, ch); err != nil {
		t.Fatalf("first start: %v", err)
	}
	// A repeated start (replayed transition, crash recovery) is a no-op.
	if err := scheduler.Start(ctx, ch); err != nil {
		t.Fatalf("second start: %v", err)
	}

	if got := recordings.openCount("ch-1"); got != 1 {
		t.Errorf("expected exactly 1 open recording, got %d", got)
	}
}

func TestRecordingScheduler_LifecycleViaChannelHook(t *testing.T) {
	recordings := newFakeRecordings()
	scheduler := NewRecordingScheduler(recordings, &fakeSegments{}, 60, "mp4")
	ctx := context.Background()
	ch := recordingChannel()

	scheduler.OnChannelTransition(ctx, ch, domain.ChannelStatusScheduled, domain.ChannelStatusLive)
	if got := recordings.openCount("ch-1"); got != 1 {
		t.Fatalf("expected open recording after going live, got %d", got)
	}

	scheduler.OnChannelTransition(ctx, ch, domain.ChannelStatusLive, domain.ChannelStatusOffline)
	if got := recordings.openCount("ch-1"); got != 0 {
		t.Errorf("expected recording closed after leaving live, got %d open", got)
	}

	for _, r := range recordings.items {
		if r.Status != domain.RecordingStatusCompleted {
			t.Errorf("expected completed, got %s", r.Status)
		}
		if r.EndedAt == nil {
			t.Error("expected ended_at to be finalized")
		}
	}
}

func TestRecordingScheduler_ErrorExitClosesAsFailed(t *testing.T) {
	recordings := newFakeRecordings()
	scheduler := NewRecordingScheduler(recordings, &fakeSegments{}, 60, "mp4")
	ctx := context.Background()
	ch := recordingChannel()

	scheduler.OnChannelTransition(ctx, ch, domain.ChannelStatusScheduled, domain.ChannelStatusLive)
	scheduler.OnChannelTransition(ctx, ch, domain.ChannelStatusLive, domain.ChannelStatusError)

	for _, r := range recordings.items {
		if r.Status != domain.RecordingStatusFailed {
			t.Errorf("expected failed, got %s", r.Status)
		}
	}
}

func TestRecordingScheduler_NoRecordingWhenDisabled(t *testing.T) {
	recordings := newFakeRecordings()
	scheduler := NewRecordingScheduler(recordings, &fakeSegments{}, 60, "mp4")
	ch := recordingChannel()
	ch.RecordingEnabled = false

	scheduler.OnChannelTransition(context.Background(), ch, domain.ChannelStatusScheduled, domain.ChannelStatusLive)
	if got := recordings.openCount("ch-1"); got != 0 {
		t.Errorf("expected no recording for disabled channel, got %d", got)
	}
}

func TestRecordingScheduler_TickSlicesSegments(t *testing.T) {
	recordings := newFakeRecordings()
	segments := &fakeSegments{}
	scheduler := NewRecordingScheduler(recordings, segments, 60, "mp4")
	ctx := context.Background()
	ch := recordingChannel()

	if err := scheduler.Start(ctx, ch); err != nil {
		t.Fatalf("start: %v", err)
	}
	start := time.Now()

	// Before the interval elapses: nothing to cut.
	if err := scheduler.Tick(ctx, "ch-1", start.Add(30*time.Second)); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if segments.count() != 0 {
		t.Fatalf("expected no segments before interval, got %d", segments.count())
	}

	// Two full intervals produce two pending segments.
	if err := scheduler.Tick(ctx, "ch-1", start.Add(61*time.Second)); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if err := scheduler.Tick(ctx, "ch-1", start.Add(122*time.Second)); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if segments.count() != 2 {
		t.Fatalf("expected 2 segments, got %d", segments.count())
	}
	for _, seg := range segments.rows {
		if seg.Status != domain.SegmentStatusPending {
			t.Errorf("expected pending segment, got %s", seg.Status)
		}
		if seg.ChannelID != "ch-1" {
			t.Errorf("expected channel ch-1, got %s", seg.ChannelID)
		}
		if seg.DurationSeconds < 60 || seg.DurationSeconds > 62 {
			t.Errorf("unexpected segment duration %d", seg.DurationSeconds)
		}
		if seg.FilePath == "" {
			t.Error("expected a derived storage key")
		}
	}
}

func TestRecordingScheduler_StopEmitsTrailingSegment(t *testing.T) {
	recordings := newFakeRecordings()
	segments := &fakeSegments{}
	scheduler := NewRecordingScheduler(recordings, segments, 60, "mp4")
	ctx := context.Background()

	if err := scheduler.Start(ctx, recordingChannel()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := scheduler.Stop(ctx, "ch-1", domain.RecordingStatusCompleted); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if segments.count() != 1 {
		t.Errorf("expected trailing partial segment on stop, got %d", segments.count())
	}

	// Stopping again with nothing open is a no-op.
	if err := scheduler.Stop(ctx, "ch-1", domain.RecordingStatusCompleted); err != nil {
		t.Fatalf("second stop: %v", err)
	}
	if segments.count() != 1 {
		t.Errorf("expected no extra segments, got %d", segments.count())
	}
}
