package health

import (
	"fmt"
	"sync"
	"time"

	"github.com/eliudefrancisco14/gateway-matrix-api/internal/domain"
)

// Verdict is the reduced health state of one source over the sampling window.
type Verdict string

const (
	VerdictHealthy   Verdict = "healthy"
	VerdictDegraded  Verdict = "degraded"
	VerdictUnhealthy Verdict = "unhealthy"
)

// Result carries a verdict together with a human-readable reason, which ends
// up in failover event details.
type Result struct {
	Verdict Verdict
	Reason  string
}

// Config holds the sampling window bounds and breach thresholds.
type Config struct {
	WindowSize        int
	WindowDuration    time.Duration
	StalenessTimeout  time.Duration
	PacketLossPercent float64
	LatencyMs         int
	BufferHealth      float64
	ErrorCount        int
}

// Sampler reduces per-source metric samples into health verdicts over a
// sliding window. It holds no reference to persisted state and never mutates
// sources; measurement stays separate from decision.
type Sampler struct {
	cfg     Config
	mu      sync.Mutex
	windows map[string][]domain.SourceMetric
}

// NewSampler creates a Sampler with the given window configuration.
// Parameters:
//   - cfg: window bounds and thresholds.
// Returns:
//   - *Sampler: sampler with empty windows.
func NewSampler(cfg Config) *Sampler {
	return &Sampler{
		cfg:     cfg,
		windows: make(map[string][]domain.SourceMetric),
	}
}

// Observe appends one sample to the source's window, evicting the oldest
// sample when the window is full.
// Parameters:
//   - metric: sample to record; keyed by its SourceID.
func (s *Sampler) Observe(metric domain.SourceMetric) {
	s.mu.Lock()
	defer s.mu.Unlock()

	window := append(s.windows[metric.SourceID], metric)
	if len(window) > s.cfg.WindowSize {
		window = window[len(window)-s.cfg.WindowSize:]
	}
	s.windows[metric.SourceID] = window
}

// Forget drops the window for a source, used when a source is deactivated.
// Parameters:
//   - sourceID: source whose window is discarded.
func (s *Sampler) Forget(sourceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, sourceID)
}

// Evaluate reduces the source's window into a verdict at the given instant.
// Unhealthy when no sample arrived within the staleness timeout or the
// accumulated error count breaches its threshold; degraded when a majority of
// windowed samples breach any quality threshold; healthy otherwise.
// Parameters:
//   - sourceID: source to evaluate.
//   - now: evaluation instant; staleness and window age are measured from it.
// Returns:
//   - Result: verdict and the reason it was reached.
func (s *Sampler) Evaluate(sourceID string, now time.Time) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	window := s.prune(sourceID, now)
	if len(window) == 0 {
		return Result{
			Verdict: VerdictUnhealthy,
			Reason:  fmt.Sprintf("no sample within %s", s.cfg.StalenessTimeout),
		}
	}

	latest := window[len(window)-1].Timestamp
	if now.Sub(latest) > s.cfg.StalenessTimeout {
		return Result{
			Verdict: VerdictUnhealthy,
			Reason:  fmt.Sprintf("stale: last sample %s ago", now.Sub(latest).Round(time.Second)),
		}
	}

	errorSum := 0
	breaches := 0
	for _, m := range window {
		errorSum += m.ErrorCount
		if s.breached(m) {
			breaches++
		}
	}

	if errorSum > s.cfg.ErrorCount {
		return Result{
			Verdict: VerdictUnhealthy,
			Reason:  fmt.Sprintf("error count %d exceeds %d in window", errorSum, s.cfg.ErrorCount),
		}
	}

	if breaches*2 > len(window) {
		return Result{
			Verdict: VerdictDegraded,
			Reason:  fmt.Sprintf("%d of %d samples breach quality thresholds", breaches, len(window)),
		}
	}

	return Result{Verdict: VerdictHealthy, Reason: "within thresholds"}
}

// prune drops samples older than the window duration. Caller holds the lock.
func (s *Sampler) prune(sourceID string, now time.Time) []domain.SourceMetric {
	window := s.windows[sourceID]
	cutoff := now.Add(-s.cfg.WindowDuration)
	start := 0
	for start < len(window) && window[start].Timestamp.Before(cutoff) {
		start++
	}
	if start > 0 {
		window = window[start:]
		s.windows[sourceID] = window
	}
	return window
}

// breached reports whether one sample violates any quality threshold.
func (s *Sampler) breached(m domain.SourceMetric) bool {
	if m.PacketLossPercent > s.cfg.PacketLossPercent {
		return true
	}
	if m.LatencyMs > s.cfg.LatencyMs {
		return true
	}
	if m.BufferHealth < s.cfg.BufferHealth {
		return true
	}
	return false
}
