package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/eliudefrancisco14/gateway-matrix-api/internal/domain"
	"github.com/eliudefrancisco14/gateway-matrix-api/internal/logger"
	"github.com/eliudefrancisco14/gateway-matrix-api/internal/repository"
	"github.com/google/uuid"
)

// RecordingStore is the persistence surface the recording scheduler needs.
type RecordingStore interface {
	Open(ctx context.Context, recording *domain.Recording) error
	GetOpen(ctx context.Context, channelID string) (*domain.Recording, error)
	Close(ctx context.Context, id string, status domain.RecordingStatus, endedAt time.Time, durationSeconds int, fileSizeBytes int64) (bool, error)
}

// SegmentStore is the persistence surface for sliced media segments.
type SegmentStore interface {
	Create(ctx context.Context, segment *domain.MediaSegment) error
}

// RecordingScheduler opens one recording when a channel goes live with
// recording enabled, closes it when the channel leaves live, and slices the
// open recording into pending media segments at a fixed interval. Segment
// status past pending is advanced by the external encoder, not by us.
type RecordingScheduler struct {
	recordings RecordingStore
	segments   SegmentStore
	interval   time.Duration
	format     string

	mu     sync.Mutex
	slices map[string]*sliceCursor // recording ID -> cursor
}

// sliceCursor tracks segment slicing progress for one open recording.
type sliceCursor struct {
	channelID string
	index     int
	lastCut   time.Time
}

// NewRecordingScheduler creates a RecordingScheduler.
// Parameters:
//   - recordings: recording persistence.
//   - segments: segment persistence.
//   - segmentSeconds: slicing interval in seconds.
//   - format: container format written by the encoder (mp4, ts, ...).
// Returns:
//   - *RecordingScheduler: scheduler instance.
func NewRecordingScheduler(recordings RecordingStore, segments SegmentStore, segmentSeconds int, format string) *RecordingScheduler {
	return &RecordingScheduler{
		recordings: recordings,
		segments:   segments,
		interval:   time.Duration(segmentSeconds) * time.Second,
		format:     format,
		slices:     make(map[string]*sliceCursor),
	}
}

// OnChannelTransition implements ChannelHook: entering live starts a
// recording when the channel wants one, leaving live closes it. An exit into
// error closes the recording as failed; the channel's live status is not
// affected by recording failures, only the reverse.
func (s *RecordingScheduler) OnChannelTransition(ctx context.Context, channel *domain.Channel, from, to domain.ChannelStatus) {
	switch {
	case to == domain.ChannelStatusLive && channel.RecordingEnabled:
		if err := s.Start(ctx, channel); err != nil {
			logger.CtxError(ctx, "failed to start recording for channel %s: %v", channel.ID, err)
		}
	case from == domain.ChannelStatusLive:
		status := domain.RecordingStatusCompleted
		if to == domain.ChannelStatusError {
			status = domain.RecordingStatusFailed
		}
		if err := s.Stop(ctx, channel.ID, status); err != nil {
			logger.CtxError(ctx, "failed to stop recording for channel %s: %v", channel.ID, err)
		}
	}
}

// Start opens a recording for the channel if none is open. A concurrent or
// repeated start is a no-op, preserving the at-most-one-open invariant.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - channel: channel entering live.
// Returns:
//   - error: non-nil if persistence fails.
func (s *RecordingScheduler) Start(ctx context.Context, channel *domain.Channel) error {
	now := time.Now()
	recording := &domain.Recording{
		ID:        uuid.NewString(),
		ChannelID: channel.ID,
		StartedAt: now,
		FilePath:  fmt.Sprintf("recordings/%s/%s.%s", channel.ID, uuid.NewString(), s.format),
		Format:    s.format,
	}
	if err := s.recordings.Open(ctx, recording); err != nil {
		if errors.Is(err, repository.ErrRecordingOpen) {
			return nil
		}
		return fmt.Errorf("failed to open recording: %w", err)
	}

	s.mu.Lock()
	s.slices[recording.ID] = &sliceCursor{channelID: channel.ID, lastCut: now}
	s.mu.Unlock()

	logger.CtxInfo(ctx, "opened recording %s for channel %s", recording.ID, channel.ID)
	return nil
}

// Stop closes the open recording for a channel, finalizing ended_at and
// duration, and emits the trailing partial segment. No open recording is a
// no-op.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - channelID: channel whose recording should close.
//   - status: terminal status, completed or failed.
// Returns:
//   - error: non-nil if persistence fails.
func (s *RecordingScheduler) Stop(ctx context.Context, channelID string, status domain.RecordingStatus) error {
	recording, err := s.recordings.GetOpen(ctx, channelID)
	if err != nil {
		return fmt.Errorf("failed to look up open recording: %w", err)
	}
	if recording == nil {
		return nil
	}

	now := time.Now()
	if status == domain.RecordingStatusCompleted {
		s.cutSegment(ctx, recording, now)
	}

	s.mu.Lock()
	delete(s.slices, recording.ID)
	s.mu.Unlock()

	duration := int(now.Sub(recording.StartedAt).Seconds())
	closed, err := s.recordings.Close(ctx, recording.ID, status, now, duration, recording.FileSizeBytes)
	if err != nil {
		return fmt.Errorf("failed to close recording %s: %w", recording.ID, err)
	}
	if closed {
		logger.CtxInfo(ctx, "closed recording %s for channel %s as %s after %ds",
			recording.ID, channelID, status, duration)
	}
	return nil
}

// Tick advances segment slicing for a channel's open recording: when a full
// interval has elapsed since the last cut, a pending segment row is emitted
// for the encoder to fill.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - channelID: channel to advance.
//   - now: evaluation instant.
// Returns:
//   - error: non-nil if persistence fails.
func (s *RecordingScheduler) Tick(ctx context.Context, channelID string, now time.Time) error {
	recording, err := s.recordings.GetOpen(ctx, channelID)
	if err != nil {
		return fmt.Errorf("failed to look up open recording: %w", err)
	}
	if recording == nil {
		return nil
	}

	s.mu.Lock()
	cursor, ok := s.slices[recording.ID]
	if !ok {
		// Recording opened before a restart; resume slicing from now.
		cursor = &sliceCursor{channelID: channelID, lastCut: now}
		s.slices[recording.ID] = cursor
	}
	due := now.Sub(cursor.lastCut) >= s.interval
	s.mu.Unlock()

	if !due {
		return nil
	}
	s.cutSegment(ctx, recording, now)
	return nil
}

// cutSegment writes one pending segment covering [lastCut, now).
func (s *RecordingScheduler) cutSegment(ctx context.Context, recording *domain.Recording, now time.Time) {
	s.mu.Lock()
	cursor, ok := s.slices[recording.ID]
	if !ok {
		s.mu.Unlock()
		return
	}
	start := cursor.lastCut
	index := cursor.index
	cursor.lastCut = now
	cursor.index++
	s.mu.Unlock()

	if !now.After(start) {
		return
	}

	segment := &domain.MediaSegment{
		ID:              uuid.NewString(),
		ChannelID:       cursor.channelID,
		RecordingID:     recording.ID,
		SegmentType:     domain.SegmentTypeBoth,
		StartTime:       start,
		EndTime:         now,
		DurationSeconds: int(now.Sub(start).Seconds()),
		FilePath:        fmt.Sprintf("segments/%s/%s/%05d.%s", cursor.channelID, recording.ID, index, s.format),
		Status:          domain.SegmentStatusPending,
	}
	if err := s.segments.Create(ctx, segment); err != nil {
		logger.CtxError(ctx, "failed to create segment %d of recording %s: %v", index, recording.ID, err)
		return
	}
	logger.CtxDebug(ctx, "cut segment %s (%ds) for recording %s", segment.ID, segment.DurationSeconds, recording.ID)
}
