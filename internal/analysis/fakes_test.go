package analysis

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/eliudefrancisco14/gateway-matrix-api/internal/domain"
	"gorm.io/gorm"
)

// fakeJobs is an in-memory JobStore mirroring the conditional-write semantics
// of the database repository.
type fakeJobs struct {
	mu             sync.Mutex
	rows           []*domain.AIAnalysis
	transcriptions map[string]*domain.Transcription
	contents       map[string]*domain.ContentAnalysis
	summaries      map[string]*domain.Summary
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{
		transcriptions: make(map[string]*domain.Transcription),
		contents:       make(map[string]*domain.ContentAnalysis),
		summaries:      make(map[string]*domain.Summary),
	}
}

func (f *fakeJobs) Enqueue(_ context.Context, job *domain.AIAnalysis) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.SegmentID == job.SegmentID && r.AnalysisType == job.AnalysisType {
			return false, nil
		}
	}
	job.Status = domain.AnalysisStatusQueued
	clone := *job
	f.rows = append(f.rows, &clone)
	return true, nil
}

func (f *fakeJobs) ClaimNext(_ context.Context, now time.Time) (*domain.AIAnalysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sort.SliceStable(f.rows, func(i, j int) bool {
		return f.rows[i].CreatedAt.Before(f.rows[j].CreatedAt)
	})
	for _, r := range f.rows {
		if r.Status != domain.AnalysisStatusQueued {
			continue
		}
		if r.NextAttemptAt != nil && r.NextAttemptAt.After(now) {
			continue
		}
		r.Status = domain.AnalysisStatusProcessing
		started := now
		r.StartedAt = &started
		clone := *r
		return &clone, nil
	}
	return nil, nil
}

func (f *fakeJobs) Complete(_ context.Context, id string, completedAt time.Time, processingTimeMs int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.find(id)
	if r == nil || r.Status != domain.AnalysisStatusProcessing {
		return false, nil
	}
	r.Status = domain.AnalysisStatusCompleted
	r.CompletedAt = &completedAt
	r.ProcessingTimeMs = processingTimeMs
	r.ErrorMessage = ""
	return true, nil
}

func (f *fakeJobs) Requeue(_ context.Context, id, errMsg string, nextAttemptAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.find(id)
	if r == nil || r.Status != domain.AnalysisStatusProcessing {
		return false, nil
	}
	r.Status = domain.AnalysisStatusQueued
	r.RetryCount++
	r.ErrorMessage = errMsg
	r.NextAttemptAt = &nextAttemptAt
	r.StartedAt = nil
	return true, nil
}

func (f *fakeJobs) Fail(_ context.Context, id string, from domain.AnalysisStatus, errMsg string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.find(id)
	if r == nil || r.Status != from {
		return false, nil
	}
	r.Status = domain.AnalysisStatusFailed
	r.ErrorMessage = errMsg
	return true, nil
}

func (f *fakeJobs) ListStale(_ context.Context, cutoff time.Time) ([]domain.AIAnalysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.AIAnalysis
	for _, r := range f.rows {
		if r.Status == domain.AnalysisStatusProcessing && r.StartedAt != nil && r.StartedAt.Before(cutoff) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeJobs) ListQueuedByChannel(_ context.Context, channelID string) ([]domain.AIAnalysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.AIAnalysis
	for _, r := range f.rows {
		if r.ChannelID == channelID && r.Status == domain.AnalysisStatusQueued {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeJobs) ListBySegment(_ context.Context, segmentID string) ([]domain.AIAnalysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.AIAnalysis
	for _, r := range f.rows {
		if r.SegmentID == segmentID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeJobs) SaveTranscription(_ context.Context, row *domain.Transcription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.transcriptions[row.AnalysisID]; !ok {
		f.transcriptions[row.AnalysisID] = row
	}
	return nil
}

func (f *fakeJobs) SaveContentAnalysis(_ context.Context, row *domain.ContentAnalysis) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.contents[row.AnalysisID]; !ok {
		f.contents[row.AnalysisID] = row
	}
	return nil
}

func (f *fakeJobs) SaveSummary(_ context.Context, row *domain.Summary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.summaries[row.AnalysisID]; !ok {
		f.summaries[row.AnalysisID] = row
	}
	return nil
}

func (f *fakeJobs) GetTranscription(_ context.Context, analysisID string) (*domain.Transcription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.transcriptions[analysisID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return row, nil
}

func (f *fakeJobs) find(id string) *domain.AIAnalysis {
	for _, r := range f.rows {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func (f *fakeJobs) bySegmentType(segmentID string, t domain.AnalysisType) *domain.AIAnalysis {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.SegmentID == segmentID && r.AnalysisType == t {
			return r
		}
	}
	return nil
}

type fakeSegmentReader struct {
	rows map[string]*domain.MediaSegment
}

func (f *fakeSegmentReader) GetByID(_ context.Context, id string) (*domain.MediaSegment, error) {
	seg, ok := f.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *seg
	return &clone, nil
}

type fakeChannelReader struct {
	rows map[string]*domain.Channel
}

func (f *fakeChannelReader) GetByID(_ context.Context, id string) (*domain.Channel, error) {
	ch, ok := f.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *ch
	return &clone, nil
}

type fakeInsights struct {
	mu   sync.Mutex
	rows []*domain.AIInsight
}

func (f *fakeInsights) Create(_ context.Context, insight *domain.AIInsight) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, insight)
	return nil
}

type fakeAlerts struct {
	mu   sync.Mutex
	rows []*domain.Alert
}

func (f *fakeAlerts) Create(_ context.Context, alert *domain.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, alert)
	return nil
}

type fakeMedia struct{}

func (fakeMedia) GetURL(key string) string {
	return "https://media.test/" + key
}

// fakeInference returns canned results and counts calls per method.
type fakeInference struct {
	mu              sync.Mutex
	transcribeCalls int
	contentCalls    int
	summaryCalls    int
	failTranscribe  error
	failContent     error
	transcription   *TranscriptionResult
	content         *ContentResult
	summary         *SummaryResult
}

func newFakeInference() *fakeInference {
	return &fakeInference{
		transcription: &TranscriptionResult{
			FullText:   "breaking news tonight",
			Language:   "en",
			Confidence: 0.92,
		},
		content: &ContentResult{
			Themes:          domain.StringList{"news"},
			DominantEmotion: "neutral",
			SentimentScore:  0.1,
		},
		summary: &SummaryResult{Content: "a short summary"},
	}
}

func (f *fakeInference) Transcribe(_ context.Context, _ string) (*TranscriptionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcribeCalls++
	if f.failTranscribe != nil {
		return nil, f.failTranscribe
	}
	return f.transcription, nil
}

func (f *fakeInference) AnalyzeContent(_ context.Context, _ string) (*ContentResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contentCalls++
	if f.failContent != nil {
		return nil, f.failContent
	}
	return f.content, nil
}

func (f *fakeInference) Summarize(_ context.Context, _ string, _ domain.SummaryType) (*SummaryResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaryCalls++
	return f.summary, nil
}

func (f *fakeInference) Model() string {
	return "test-model"
}

type fakeEmbedder struct {
	calls int
	fail  error
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	f.calls++
	if f.fail != nil {
		return nil, f.fail
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return f.Embed(ctx, query)
}

type fakeIndex struct {
	points map[string]*TranscriptPayload
}

func (f *fakeIndex) Upsert(_ context.Context, pointID string, _ []float32, payload *TranscriptPayload) error {
	if f.points == nil {
		f.points = make(map[string]*TranscriptPayload)
	}
	f.points[pointID] = payload
	return nil
}

var errInferenceDown = errors.New("inference service unavailable")
