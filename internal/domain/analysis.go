package domain

import "time"

// AnalysisType represents the kind of AI processing applied to a segment.
type AnalysisType string

const (
	AnalysisTranscription AnalysisType = "transcription"
	AnalysisSummary       AnalysisType = "summary"
	AnalysisEntities      AnalysisType = "entities"
	AnalysisEmotions      AnalysisType = "emotions"
	AnalysisThemes        AnalysisType = "themes"
	AnalysisFull          AnalysisType = "full"
)

// Valid reports whether the analysis type is one of the closed enumeration values.
func (t AnalysisType) Valid() bool {
	switch t {
	case AnalysisTranscription, AnalysisSummary, AnalysisEntities,
		AnalysisEmotions, AnalysisThemes, AnalysisFull:
		return true
	}
	return false
}

// AnalysisStatus represents the state of one analysis job.
// Status is monotonic: a completed job never returns to queued or processing.
type AnalysisStatus string

const (
	AnalysisStatusQueued     AnalysisStatus = "queued"
	AnalysisStatusProcessing AnalysisStatus = "processing"
	AnalysisStatusCompleted  AnalysisStatus = "completed"
	AnalysisStatusFailed     AnalysisStatus = "failed"
)

// Valid reports whether the status is one of the closed enumeration values.
func (s AnalysisStatus) Valid() bool {
	switch s {
	case AnalysisStatusQueued, AnalysisStatusProcessing,
		AnalysisStatusCompleted, AnalysisStatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether moving from the current status to target is a
// legal job transition. The failed -> queued edge exists only for bounded
// retries; completed is terminal.
func (s AnalysisStatus) CanTransition(to AnalysisStatus) bool {
	if !to.Valid() || s == to {
		return false
	}
	switch s {
	case AnalysisStatusQueued:
		return to == AnalysisStatusProcessing || to == AnalysisStatusFailed
	case AnalysisStatusProcessing:
		return to == AnalysisStatusCompleted || to == AnalysisStatusFailed || to == AnalysisStatusQueued
	case AnalysisStatusFailed:
		return to == AnalysisStatusQueued
	}
	return false
}

// AIAnalysis is one analysis job over a media segment. There is at most one
// job per (segment_id, analysis_type) pair, and exactly one specialized result
// row once the job completes.
type AIAnalysis struct {
	ID               string         `gorm:"type:text;primaryKey" json:"id"`
	SegmentID        string         `gorm:"type:text;not null;index:idx_ai_analyses_segment_type,unique,priority:1" json:"segment_id"`
	ChannelID        string         `gorm:"type:text;not null;index:idx_ai_analyses_channel" json:"channel_id"`
	AnalysisType     AnalysisType   `gorm:"type:text;not null;index:idx_ai_analyses_segment_type,unique,priority:2" json:"analysis_type"`
	Status           AnalysisStatus `gorm:"type:text;not null;index:idx_ai_analyses_status" json:"status"`
	StartedAt        *time.Time     `json:"started_at,omitempty"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
	ModelUsed        string         `gorm:"type:text" json:"model_used,omitempty"`
	ModelVersion     string         `gorm:"type:text" json:"model_version,omitempty"`
	ProcessingTimeMs int            `json:"processing_time_ms"`
	ErrorMessage     string         `gorm:"type:text" json:"error_message,omitempty"`
	RetryCount       int            `gorm:"default:0" json:"retry_count"`
	NextAttemptAt    *time.Time     `json:"next_attempt_at,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	CreatedBy        string         `gorm:"type:text" json:"created_by,omitempty"`
}

// TableName returns the database table name for AIAnalysis.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (AIAnalysis) TableName() string {
	return "ai_analyses"
}

// Transcription is the specialized result row for a transcription analysis.
type Transcription struct {
	ID         string             `gorm:"type:text;primaryKey" json:"id"`
	AnalysisID string             `gorm:"type:text;uniqueIndex:idx_transcriptions_analysis;not null" json:"analysis_id"`
	FullText   string             `gorm:"type:text" json:"full_text"`
	Language   string             `gorm:"type:text" json:"language,omitempty"`
	Confidence float64            `json:"confidence"`
	WordCount  int                `json:"word_count"`
	Segments   TranscriptSegments `gorm:"type:text" json:"segments,omitempty"`
}

// TableName returns the database table name for Transcription.
func (Transcription) TableName() string {
	return "transcriptions"
}

// ContentAnalysis is the specialized result row for entity, emotion and theme
// analyses.
type ContentAnalysis struct {
	ID              string        `gorm:"type:text;primaryKey" json:"id"`
	AnalysisID      string        `gorm:"type:text;uniqueIndex:idx_content_analyses_analysis;not null" json:"analysis_id"`
	Themes          StringList    `gorm:"type:text" json:"themes,omitempty"`
	Entities        NamedEntities `gorm:"type:text" json:"entities,omitempty"`
	Emotions        EmotionScores `gorm:"type:text" json:"emotions,omitempty"`
	DominantEmotion string        `gorm:"type:text" json:"dominant_emotion,omitempty"`
	SentimentScore  float64       `json:"sentiment_score"`
	Keywords        StringList    `gorm:"type:text" json:"keywords,omitempty"`
	Categories      StringList    `gorm:"type:text" json:"categories,omitempty"`
}

// TableName returns the database table name for ContentAnalysis.
func (ContentAnalysis) TableName() string {
	return "content_analyses"
}

// SummaryType represents the style of a generated summary.
type SummaryType string

const (
	SummaryBrief     SummaryType = "brief"
	SummaryDetailed  SummaryType = "detailed"
	SummaryBullets   SummaryType = "bullets"
	SummaryExecutive SummaryType = "executive"
)

// Summary is the specialized result row for a summarization analysis.
type Summary struct {
	ID           string      `gorm:"type:text;primaryKey" json:"id"`
	AnalysisID   string      `gorm:"type:text;uniqueIndex:idx_summaries_analysis;not null" json:"analysis_id"`
	SummaryType  SummaryType `gorm:"type:text;not null" json:"summary_type"`
	Content      string      `gorm:"type:text" json:"content"`
	BulletPoints StringList  `gorm:"type:text" json:"bullet_points,omitempty"`
	KeyMoments   KeyMoments  `gorm:"type:text" json:"key_moments,omitempty"`
	WordCount    int         `json:"word_count"`
}

// TableName returns the database table name for Summary.
func (Summary) TableName() string {
	return "summaries"
}

// InsightType represents the category of an operator-facing finding.
type InsightType string

const (
	InsightAlert          InsightType = "alert"
	InsightRecommendation InsightType = "recommendation"
	InsightAnomaly        InsightType = "anomaly"
	InsightTrend          InsightType = "trend"
	InsightSummary        InsightType = "summary"
)

// Severity represents how urgent an insight is.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// AIInsight is a content-derived, possibly expiring, operator-facing finding.
// Mutable only through the is_read and action_taken flags.
type AIInsight struct {
	ID           string      `gorm:"type:text;primaryKey" json:"id"`
	ChannelID    string      `gorm:"type:text;not null;index:idx_ai_insights_channel" json:"channel_id"`
	AnalysisID   string      `gorm:"type:text" json:"analysis_id,omitempty"`
	InsightType  InsightType `gorm:"type:text;not null" json:"insight_type"`
	Severity     Severity    `gorm:"type:text;not null" json:"severity"`
	Title        string      `gorm:"type:text;not null" json:"title"`
	Description  string      `gorm:"type:text;not null" json:"description"`
	Data         JSONMap     `gorm:"type:text" json:"data,omitempty"`
	IsRead       bool        `gorm:"default:false" json:"is_read"`
	IsActionable bool        `gorm:"not null" json:"is_actionable"`
	ActionTaken  bool        `gorm:"default:false" json:"action_taken"`
	CreatedAt    time.Time   `json:"created_at"`
	ExpiresAt    *time.Time  `json:"expires_at,omitempty"`
}

// TableName returns the database table name for AIInsight.
func (AIInsight) TableName() string {
	return "ai_insights"
}
