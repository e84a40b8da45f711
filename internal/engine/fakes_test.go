package engine

import (
	"context"
	"sync"
	"time"

	"github.com/eliudefrancisco14/gateway-matrix-api/internal/domain"
	"github.com/eliudefrancisco14/gateway-matrix-api/internal/repository"
	"gorm.io/gorm"
)

// In-memory fakes implementing the engine's persistence surfaces, so state
// machine logic is tested without a database.

type fakeSources struct {
	mu    sync.Mutex
	items map[string]*domain.Source
}

func newFakeSources(sources ...*domain.Source) *fakeSources {
	f := &fakeSources{items: make(map[string]*domain.Source)}
	for _, s := range sources {
		f.items[s.ID] = s
	}
	return f
}

func (f *fakeSources) GetByID(_ context.Context, id string) (*domain.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.items[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *s
	return &copied, nil
}

func (f *fakeSources) UpdateStatus(_ context.Context, id string, from, to domain.SourceStatus, seenAt *time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.items[id]
	if !ok || s.Status != from {
		return false, nil
	}
	s.Status = to
	if seenAt != nil {
		t := *seenAt
		s.LastSeenAt = &t
	}
	return true, nil
}

func (f *fakeSources) TouchLastSeen(_ context.Context, id string, seenAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.items[id]; ok {
		t := seenAt
		s.LastSeenAt = &t
	}
	return nil
}

func (f *fakeSources) ListActive(_ context.Context) ([]domain.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Source
	for _, s := range f.items {
		if s.IsActive {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeSources) status(id string) domain.SourceStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[id].Status
}

func (f *fakeSources) setActive(id string, active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[id].IsActive = active
}

type fakeChannels struct {
	mu    sync.Mutex
	items map[string]*domain.Channel
}

func newFakeChannels(channels ...*domain.Channel) *fakeChannels {
	f := &fakeChannels{items: make(map[string]*domain.Channel)}
	for _, c := range channels {
		f.items[c.ID] = c
	}
	return f
}

func (f *fakeChannels) GetByID(_ context.Context, id string) (*domain.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.items[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *c
	return &copied, nil
}

func (f *fakeChannels) UpdateStatus(_ context.Context, id string, from, to domain.ChannelStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.items[id]
	if !ok || c.Status != from {
		return false, nil
	}
	c.Status = to
	return true, nil
}

func (f *fakeChannels) SetActiveSource(_ context.Context, id, sourceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.items[id]; ok {
		c.ActiveSourceID = sourceID
	}
	return nil
}

func (f *fakeChannels) ListReferencingSource(_ context.Context, sourceID string) ([]domain.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Channel
	for _, c := range f.items {
		if c.IsActive && (c.SourceID == sourceID || c.FallbackSourceID == sourceID) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeChannels) List(_ context.Context, status domain.ChannelStatus, _, _ int) ([]domain.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Channel
	for _, c := range f.items {
		if c.IsActive && (status == "" || c.Status == status) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeChannels) get(id string) domain.Channel {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.items[id]
}

type fakeEvents struct {
	mu   sync.Mutex
	rows []domain.ChannelEvent
	keys map[string]bool
}

func newFakeEvents() *fakeEvents {
	return &fakeEvents{keys: make(map[string]bool)}
}

func (f *fakeEvents) Append(_ context.Context, event *domain.ChannelEvent) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.keys[event.DedupKey] {
		return false, nil
	}
	f.keys[event.DedupKey] = true
	f.rows = append(f.rows, *event)
	return true, nil
}

func (f *fakeEvents) byType(eventType domain.EventType) []domain.ChannelEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ChannelEvent
	for _, ev := range f.rows {
		if ev.EventType == eventType {
			out = append(out, ev)
		}
	}
	return out
}

type fakeAudits struct {
	mu   sync.Mutex
	rows []domain.AuditLog
}

func (f *fakeAudits) Append(_ context.Context, entry *domain.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, *entry)
	return nil
}

type fakeRecordings struct {
	mu    sync.Mutex
	items map[string]*domain.Recording
}

func newFakeRecordings() *fakeRecordings {
	return &fakeRecordings{items: make(map[string]*domain.Recording)}
}

func (f *fakeRecordings) Open(_ context.Context, recording *domain.Recording) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.items {
		if r.ChannelID == recording.ChannelID && r.Status == domain.RecordingStatusRecording {
			return repository.ErrRecordingOpen
		}
	}
	recording.Status = domain.RecordingStatusRecording
	copied := *recording
	f.items[recording.ID] = &copied
	return nil
}

func (f *fakeRecordings) GetOpen(_ context.Context, channelID string) (*domain.Recording, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.items {
		if r.ChannelID == channelID && r.Status == domain.RecordingStatusRecording {
			copied := *r
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeRecordings) Close(_ context.Context, id string, status domain.RecordingStatus, endedAt time.Time, durationSeconds int, fileSizeBytes int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.items[id]
	if !ok || r.Status != domain.RecordingStatusRecording {
		return false, nil
	}
	r.Status = status
	r.EndedAt = &endedAt
	r.DurationSeconds = durationSeconds
	r.FileSizeBytes = fileSizeBytes
	return true, nil
}

func (f *fakeRecordings) openCount(channelID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.items {
		if r.ChannelID == channelID && r.Status == domain.RecordingStatusRecording {
			n++
		}
	}
	return n
}

type fakeSegments struct {
	mu   sync.Mutex
	rows []domain.MediaSegment
}

func (f *fakeSegments) Create(_ context.Context, segment *domain.MediaSegment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, *segment)
	return nil
}

func (f *fakeSegments) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type fakeAlerts struct {
	mu   sync.Mutex
	rows []domain.Alert
}

func (f *fakeAlerts) Create(_ context.Context, alert *domain.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, *alert)
	return nil
}

func (f *fakeAlerts) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type fakeMetrics struct {
	mu   sync.Mutex
	rows []domain.SourceMetric
}

func (f *fakeMetrics) ListSince(_ context.Context, sourceID string, since time.Time) ([]domain.SourceMetric, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.SourceMetric
	for _, m := range f.rows {
		if m.SourceID == sourceID && m.Timestamp.After(since) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMetrics) add(m domain.SourceMetric) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, m)
}
