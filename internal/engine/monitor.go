package engine

import (
	"context"
	"sync"
	"time"

	"github.com/eliudefrancisco14/gateway-matrix-api/internal/domain"
	"github.com/eliudefrancisco14/gateway-matrix-api/internal/health"
	"github.com/eliudefrancisco14/gateway-matrix-api/internal/logger"
)

// SourceLister lists the sources under monitoring.
type SourceLister interface {
	ListActive(ctx context.Context) ([]domain.Source, error)
}

// MetricFeed supplies the metric samples written by the external feed.
type MetricFeed interface {
	ListSince(ctx context.Context, sourceID string, since time.Time) ([]domain.SourceMetric, error)
}

// ChannelLister lists channels by status for periodic bookkeeping.
type ChannelLister interface {
	List(ctx context.Context, status domain.ChannelStatus, limit, offset int) ([]domain.Channel, error)
}

// Monitor runs the periodic evaluation cycle: pull fresh samples per source,
// reduce them to a verdict, feed the source state machine, and advance
// recording segmentation for live channels. Each source is evaluated
// concurrently and independently; a failure on one source never stops the
// cycle for the others.
type Monitor struct {
	sources   SourceLister
	metrics   MetricFeed
	channels  ChannelLister
	sampler   *health.Sampler
	sourceSM  *SourceStateMachine
	recording *RecordingScheduler
	interval  time.Duration
	window    time.Duration

	mu       sync.Mutex
	lastPull map[string]time.Time
}

// NewMonitor creates a Monitor.
// Parameters:
//   - sources: source listing.
//   - metrics: sample feed.
//   - channels: channel listing for recording ticks.
//   - sampler: health sampler.
//   - sourceSM: source state machine fed with verdicts.
//   - recording: recording scheduler ticked per live channel; nil disables.
//   - interval: evaluation cadence.
//   - window: how far back to pull samples on the first cycle per source.
// Returns:
//   - *Monitor: monitor instance.
func NewMonitor(sources SourceLister, metrics MetricFeed, channels ChannelLister, sampler *health.Sampler, sourceSM *SourceStateMachine, recording *RecordingScheduler, interval, window time.Duration) *Monitor {
	return &Monitor{
		sources:   sources,
		metrics:   metrics,
		channels:  channels,
		sampler:   sampler,
		sourceSM:  sourceSM,
		recording: recording,
		interval:  interval,
		window:    window,
		lastPull:  make(map[string]time.Time),
	}
}

// Run drives evaluation cycles until the context is cancelled.
// Parameters:
//   - ctx: cancellation context; Run returns when it is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	logger.CtxInfo(ctx, "monitor started with %s evaluation interval", m.interval)
	for {
		select {
		case <-ctx.Done():
			logger.CtxInfo(ctx, "monitor stopped")
			return
		case now := <-ticker.C:
			m.Cycle(ctx, now)
		}
	}
}

// Cycle runs one evaluation pass at the given instant.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - now: evaluation instant.
func (m *Monitor) Cycle(ctx context.Context, now time.Time) {
	sources, err := m.sources.ListActive(ctx)
	if err != nil {
		logger.CtxError(ctx, "failed to list sources: %v", err)
		return
	}

	active := make(map[string]struct{}, len(sources))
	for i := range sources {
		active[sources[i].ID] = struct{}{}
	}
	m.forgetInactive(active)

	var wg sync.WaitGroup
	for i := range sources {
		wg.Add(1)
		go func(source domain.Source) {
			defer wg.Done()
			m.evaluateSource(ctx, source, now)
		}(sources[i])
	}
	wg.Wait()

	m.tickRecordings(ctx, now)
}

// evaluateSource pulls fresh samples for one source and applies the verdict.
func (m *Monitor) evaluateSource(ctx context.Context, source domain.Source, now time.Time) {
	ctx = logger.SetSourceID(ctx, source.ID)

	since := m.pullMark(source.ID, now)
	samples, err := m.metrics.ListSince(ctx, source.ID, since)
	if err != nil {
		logger.CtxError(ctx, "failed to pull samples for source %s: %v", source.ID, err)
		return
	}

	var seenAt *time.Time
	for i := range samples {
		m.sampler.Observe(samples[i])
	}
	if len(samples) > 0 {
		latest := samples[len(samples)-1].Timestamp
		seenAt = &latest
		m.setPullMark(source.ID, latest)
	}

	result := m.sampler.Evaluate(source.ID, now)
	if _, err := m.sourceSM.Apply(ctx, &source, result, seenAt, now); err != nil {
		logger.CtxError(ctx, "failed to apply verdict for source %s: %v", source.ID, err)
	}
}

// tickRecordings advances segment slicing for every live channel.
func (m *Monitor) tickRecordings(ctx context.Context, now time.Time) {
	if m.recording == nil || m.channels == nil {
		return
	}
	live, err := m.channels.List(ctx, domain.ChannelStatusLive, 1000, 0)
	if err != nil {
		logger.CtxError(ctx, "failed to list live channels: %v", err)
		return
	}
	for i := range live {
		if !live[i].RecordingEnabled {
			continue
		}
		if err := m.recording.Tick(ctx, live[i].ID, now); err != nil {
			logger.CtxError(ctx, "failed to tick recording for channel %s: %v", live[i].ID, err)
		}
	}
}

func (m *Monitor) pullMark(sourceID string, now time.Time) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mark, ok := m.lastPull[sourceID]; ok {
		return mark
	}
	return now.Add(-m.window)
}

func (m *Monitor) setPullMark(sourceID string, mark time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastPull[sourceID] = mark
}

// forgetInactive drops sampling state for sources that left the active set,
// so a deactivated source's stale window cannot poison a later reactivation.
func (m *Monitor) forgetInactive(active map[string]struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.lastPull {
		if _, ok := active[id]; ok {
			continue
		}
		delete(m.lastPull, id)
		m.sampler.Forget(id)
	}
}
