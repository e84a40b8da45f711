package analysis

import (
	"context"
	"testing"
	"time"

	"github.com/eliudefrancisco14/gateway-matrix-api/internal/domain"
)

func testConfig() Config {
	return Config{
		Workers:      2,
		MaxRetries:   3,
		BackoffBase:  2 * time.Second,
		JobTimeout:   2 * time.Minute,
		PollInterval: time.Second,
		SummaryType:  domain.SummaryBrief,
	}
}

func testSegment() *domain.MediaSegment {
	now := time.Now()
	return &domain.MediaSegment{
		ID:              "seg-1",
		ChannelID:       "ch-1",
		RecordingID:     "rec-1",
		SegmentType:     domain.SegmentTypeBoth,
		StartTime:       now.Add(-time.Minute),
		EndTime:         now,
		DurationSeconds: 60,
		FilePath:        "segments/ch-1/rec-1/00001.mp4",
		Status:          domain.SegmentStatusCompleted,
	}
}

type testDeps struct {
	jobs      *fakeJobs
	segments  *fakeSegmentReader
	channels  *fakeChannelReader
	insights  *fakeInsights
	alerts    *fakeAlerts
	inference *fakeInference
}

func newTestOrchestrator(profile domain.StringList, cfg Config) (*Orchestrator, *testDeps) {
	deps := &testDeps{
		jobs: newFakeJobs(),
		segments: &fakeSegmentReader{rows: map[string]*domain.MediaSegment{
			"seg-1": testSegment(),
		}},
		channels: &fakeChannelReader{rows: map[string]*domain.Channel{
			"ch-1": {ID: "ch-1", Name: "News One", Status: domain.ChannelStatusLive, IsActive: true, AnalysisProfile: profile},
		}},
		insights:  &fakeInsights{},
		alerts:    &fakeAlerts{},
		inference: newFakeInference(),
	}
	o := NewOrchestrator(deps.jobs, deps.segments, deps.channels, deps.insights, deps.alerts, fakeMedia{}, deps.inference, nil, nil, cfg)
	return o, deps
}

func claimAndProcess(t *testing.T, o *Orchestrator, jobs *fakeJobs) *domain.AIAnalysis {
	t.Helper()
	job, err := jobs.ClaimNext(context.Background(), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if job == nil {
		t.Fatal("expected a claimable job")
	}
	o.Process(context.Background(), job)
	return job
}

func TestOrchestrator_FanOutFollowsProfile(t *testing.T) {
	o, deps := newTestOrchestrator(domain.StringList{"summary", "entities"}, testConfig())
	ctx := context.Background()

	if err := o.OnSegmentCompleted(ctx, testSegment()); err != nil {
		t.Fatalf("fan-out: %v", err)
	}

	for _, want := range []domain.AnalysisType{domain.AnalysisTranscription, domain.AnalysisSummary, domain.AnalysisEntities} {
		if deps.jobs.bySegmentType("seg-1", want) == nil {
			t.Errorf("expected a %s job for the segment", want)
		}
	}
	if len(deps.jobs.rows) != 3 {
		t.Errorf("expected 3 jobs, got %d", len(deps.jobs.rows))
	}

	// Encoder callbacks are at-least-once; a replay changes nothing.
	if err := o.OnSegmentCompleted(ctx, testSegment()); err != nil {
		t.Fatalf("replayed fan-out: %v", err)
	}
	if len(deps.jobs.rows) != 3 {
		t.Errorf("expected fan-out to stay at 3 jobs, got %d", len(deps.jobs.rows))
	}
}

func TestOrchestrator_ProfileTranscriptionNotDuplicated(t *testing.T) {
	o, deps := newTestOrchestrator(domain.StringList{"transcription", "bogus"}, testConfig())

	if err := o.OnSegmentCompleted(context.Background(), testSegment()); err != nil {
		t.Fatalf("fan-out: %v", err)
	}
	// The implicit transcription absorbs the explicit profile entry, and the
	// unknown entry is dropped.
	if len(deps.jobs.rows) != 1 {
		t.Errorf("expected 1 job, got %d", len(deps.jobs.rows))
	}
}

func TestOrchestrator_TranscriptionJobCompletes(t *testing.T) {
	o, deps := newTestOrchestrator(nil, testConfig())
	ctx := context.Background()

	if err := o.OnSegmentCompleted(ctx, testSegment()); err != nil {
		t.Fatalf("fan-out: %v", err)
	}
	job := claimAndProcess(t, o, deps.jobs)

	stored := deps.jobs.find(job.ID)
	if stored.Status != domain.AnalysisStatusCompleted {
		t.Fatalf("expected completed, got %s", stored.Status)
	}
	if stored.CompletedAt == nil {
		t.Error("expected completed_at to be set")
	}
	row, ok := deps.jobs.transcriptions[job.ID]
	if !ok {
		t.Fatal("expected a transcription result row")
	}
	if row.FullText != "breaking news tonight" || row.WordCount != 3 {
		t.Errorf("unexpected transcription row: %q (%d words)", row.FullText, row.WordCount)
	}
}

func TestOrchestrator_SummaryReusesStoredTranscript(t *testing.T) {
	o, deps := newTestOrchestrator(domain.StringList{"summary"}, testConfig())
	ctx := context.Background()

	if err := o.OnSegmentCompleted(ctx, testSegment()); err != nil {
		t.Fatalf("fan-out: %v", err)
	}
	// Transcription first, then the summary picks up the stored text.
	claimAndProcess(t, o, deps.jobs)
	claimAndProcess(t, o, deps.jobs)

	if deps.inference.transcribeCalls != 1 {
		t.Errorf("expected 1 transcription call, got %d", deps.inference.transcribeCalls)
	}
	if deps.inference.summaryCalls != 1 {
		t.Errorf("expected 1 summary call, got %d", deps.inference.summaryCalls)
	}
	job := deps.jobs.bySegmentType("seg-1", domain.AnalysisSummary)
	if _, ok := deps.jobs.summaries[job.ID]; !ok {
		t.Error("expected a summary result row")
	}
}

func TestOrchestrator_FullAnalysisWritesAllResultRows(t *testing.T) {
	o, deps := newTestOrchestrator(domain.StringList{"full"}, testConfig())
	ctx := context.Background()

	if err := o.OnSegmentCompleted(ctx, testSegment()); err != nil {
		t.Fatalf("fan-out: %v", err)
	}
	var fullID string
	for {
		job, _ := deps.jobs.ClaimNext(ctx, time.Now().Add(time.Hour))
		if job == nil {
			break
		}
		if job.AnalysisType == domain.AnalysisFull {
			fullID = job.ID
		}
		o.Process(ctx, job)
	}

	if fullID == "" {
		t.Fatal("expected a full analysis job")
	}
	if _, ok := deps.jobs.transcriptions[fullID]; !ok {
		t.Error("expected a transcription row from the full analysis")
	}
	if _, ok := deps.jobs.contents[fullID]; !ok {
		t.Error("expected a content analysis row from the full analysis")
	}
	if _, ok := deps.jobs.summaries[fullID]; !ok {
		t.Error("expected a summary row from the full analysis")
	}
}

func TestOrchestrator_FailureRequeuesWithBackoff(t *testing.T) {
	o, deps := newTestOrchestrator(nil, testConfig())
	ctx := context.Background()
	deps.inference.failTranscribe = errInferenceDown

	if err := o.OnSegmentCompleted(ctx, testSegment()); err != nil {
		t.Fatalf("fan-out: %v", err)
	}
	job := claimAndProcess(t, o, deps.jobs)

	stored := deps.jobs.find(job.ID)
	if stored.Status != domain.AnalysisStatusQueued {
		t.Fatalf("expected requeued, got %s", stored.Status)
	}
	if stored.RetryCount != 1 {
		t.Errorf("expected retry_count 1, got %d", stored.RetryCount)
	}
	if stored.NextAttemptAt == nil || !stored.NextAttemptAt.After(time.Now()) {
		t.Error("expected a future next_attempt_at")
	}
	if stored.ErrorMessage == "" {
		t.Error("expected the failure to be recorded")
	}
}

func TestOrchestrator_RetryExhaustionSurfacesAnomaly(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 2
	o, deps := newTestOrchestrator(nil, cfg)
	ctx := context.Background()
	deps.inference.failTranscribe = errInferenceDown

	if err := o.OnSegmentCompleted(ctx, testSegment()); err != nil {
		t.Fatalf("fan-out: %v", err)
	}
	// Attempt 1 requeues, attempt 2 exhausts the budget.
	claimAndProcess(t, o, deps.jobs)
	job := claimAndProcess(t, o, deps.jobs)

	stored := deps.jobs.find(job.ID)
	if stored.Status != domain.AnalysisStatusFailed {
		t.Fatalf("expected failed after exhaustion, got %s", stored.Status)
	}
	if len(deps.insights.rows) != 1 {
		t.Fatalf("expected 1 insight, got %d", len(deps.insights.rows))
	}
	insight := deps.insights.rows[0]
	if insight.InsightType != domain.InsightAnomaly || insight.Severity != domain.SeverityWarning {
		t.Errorf("expected anomaly/warning insight, got %s/%s", insight.InsightType, insight.Severity)
	}
	if len(deps.alerts.rows) != 1 {
		t.Errorf("expected 1 operational alert, got %d", len(deps.alerts.rows))
	}
}

func TestOrchestrator_CriticalContentRaisesActionableInsight(t *testing.T) {
	o, deps := newTestOrchestrator(domain.StringList{"entities"}, testConfig())
	ctx := context.Background()
	deps.inference.content = &ContentResult{
		Entities:       domain.NamedEntities{{Text: "Acme Corp", Type: "organization", Flagged: true}},
		SentimentScore: -0.9,
	}

	if err := o.OnSegmentCompleted(ctx, testSegment()); err != nil {
		t.Fatalf("fan-out: %v", err)
	}
	for {
		job, _ := deps.jobs.ClaimNext(ctx, time.Now().Add(time.Hour))
		if job == nil {
			break
		}
		o.Process(ctx, job)
	}

	var critical *domain.AIInsight
	for _, ins := range deps.insights.rows {
		if ins.Severity == domain.SeverityCritical {
			critical = ins
		}
	}
	if critical == nil {
		t.Fatal("expected a critical insight for flagged content")
	}
	if !critical.IsActionable {
		t.Error("expected the critical insight to be actionable")
	}
	if critical.ChannelID != "ch-1" {
		t.Errorf("expected insight bound to ch-1, got %s", critical.ChannelID)
	}
}

func TestOrchestrator_ReapRequeuesStaleAttempts(t *testing.T) {
	o, deps := newTestOrchestrator(nil, testConfig())
	ctx := context.Background()

	if err := o.OnSegmentCompleted(ctx, testSegment()); err != nil {
		t.Fatalf("fan-out: %v", err)
	}
	job, _ := deps.jobs.ClaimNext(ctx, time.Now().Add(-10*time.Minute))

	if err := o.Reap(ctx, time.Now()); err != nil {
		t.Fatalf("reap: %v", err)
	}

	stored := deps.jobs.find(job.ID)
	if stored.Status != domain.AnalysisStatusQueued {
		t.Errorf("expected stale job requeued, got %s", stored.Status)
	}
	if stored.RetryCount != 1 {
		t.Errorf("expected the timed-out attempt to count, got retry_count %d", stored.RetryCount)
	}
}

func TestOrchestrator_ReapedJobCannotCompleteLater(t *testing.T) {
	o, deps := newTestOrchestrator(nil, testConfig())
	ctx := context.Background()

	if err := o.OnSegmentCompleted(ctx, testSegment()); err != nil {
		t.Fatalf("fan-out: %v", err)
	}
	job, _ := deps.jobs.ClaimNext(ctx, time.Now().Add(-10*time.Minute))

	// The reaper returns the job to the queue while the worker is still
	// holding its stale claim.
	if err := o.Reap(ctx, time.Now()); err != nil {
		t.Fatalf("reap: %v", err)
	}
	o.Process(ctx, job)

	stored := deps.jobs.find(job.ID)
	if stored.Status != domain.AnalysisStatusQueued {
		t.Errorf("expected the reaped claim to stay queued, got %s", stored.Status)
	}
}

func TestOrchestrator_CancelForChannelRetiresQueuedJobs(t *testing.T) {
	o, deps := newTestOrchestrator(domain.StringList{"summary"}, testConfig())
	ctx := context.Background()

	if err := o.OnSegmentCompleted(ctx, testSegment()); err != nil {
		t.Fatalf("fan-out: %v", err)
	}
	if err := o.CancelForChannel(ctx, "ch-1", "channel deactivated"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	for _, r := range deps.jobs.rows {
		if r.Status != domain.AnalysisStatusFailed {
			t.Errorf("expected job %s cancelled, got %s", r.ID, r.Status)
		}
		if r.ErrorMessage != "cancelled: channel deactivated" {
			t.Errorf("unexpected cancellation message %q", r.ErrorMessage)
		}
	}
}

func TestOrchestrator_TranscriptionFeedsVectorIndex(t *testing.T) {
	cfg := testConfig()
	deps := &testDeps{
		jobs: newFakeJobs(),
		segments: &fakeSegmentReader{rows: map[string]*domain.MediaSegment{
			"seg-1": testSegment(),
		}},
		channels: &fakeChannelReader{rows: map[string]*domain.Channel{
			"ch-1": {ID: "ch-1", Status: domain.ChannelStatusLive, IsActive: true},
		}},
		insights:  &fakeInsights{},
		alerts:    &fakeAlerts{},
		inference: newFakeInference(),
	}
	embedder := &fakeEmbedder{}
	index := &fakeIndex{}
	o := NewOrchestrator(deps.jobs, deps.segments, deps.channels, deps.insights, deps.alerts, fakeMedia{}, deps.inference, embedder, index, cfg)
	ctx := context.Background()

	if err := o.OnSegmentCompleted(ctx, testSegment()); err != nil {
		t.Fatalf("fan-out: %v", err)
	}
	claimAndProcess(t, o, deps.jobs)

	payload, ok := index.points[PointID("seg-1")]
	if !ok {
		t.Fatal("expected the transcript to be indexed under its deterministic point ID")
	}
	if payload.ChannelID != "ch-1" || payload.Text != "breaking news tonight" {
		t.Errorf("unexpected indexed payload: %+v", payload)
	}
}

func TestOrchestrator_IndexFailureDoesNotFailJob(t *testing.T) {
	cfg := testConfig()
	deps := &testDeps{
		jobs: newFakeJobs(),
		segments: &fakeSegmentReader{rows: map[string]*domain.MediaSegment{
			"seg-1": testSegment(),
		}},
		channels: &fakeChannelReader{rows: map[string]*domain.Channel{
			"ch-1": {ID: "ch-1", Status: domain.ChannelStatusLive, IsActive: true},
		}},
		insights:  &fakeInsights{},
		alerts:    &fakeAlerts{},
		inference: newFakeInference(),
	}
	embedder := &fakeEmbedder{fail: errInferenceDown}
	o := NewOrchestrator(deps.jobs, deps.segments, deps.channels, deps.insights, deps.alerts, fakeMedia{}, deps.inference, embedder, &fakeIndex{}, cfg)
	ctx := context.Background()

	if err := o.OnSegmentCompleted(ctx, testSegment()); err != nil {
		t.Fatalf("fan-out: %v", err)
	}
	job := claimAndProcess(t, o, deps.jobs)

	if got := deps.jobs.find(job.ID).Status; got != domain.AnalysisStatusCompleted {
		t.Errorf("expected completed despite index failure, got %s", got)
	}
}
