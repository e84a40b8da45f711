package domain

import "time"

// RecordingStatus represents the lifecycle state of a capture session.
type RecordingStatus string

const (
	RecordingStatusRecording  RecordingStatus = "recording"
	RecordingStatusCompleted  RecordingStatus = "completed"
	RecordingStatusFailed     RecordingStatus = "failed"
	RecordingStatusProcessing RecordingStatus = "processing"
)

// Valid reports whether the status is one of the closed enumeration values.
func (s RecordingStatus) Valid() bool {
	switch s {
	case RecordingStatusRecording, RecordingStatusCompleted,
		RecordingStatusFailed, RecordingStatusProcessing:
		return true
	}
	return false
}

// CanTransition reports whether moving from the current status to target is a
// legal recording transition. Only an open recording may be closed or handed
// to post-processing.
func (s RecordingStatus) CanTransition(to RecordingStatus) bool {
	if !to.Valid() || s == to {
		return false
	}
	switch s {
	case RecordingStatusRecording:
		return to == RecordingStatusCompleted || to == RecordingStatusFailed || to == RecordingStatusProcessing
	case RecordingStatusProcessing:
		return to == RecordingStatusCompleted || to == RecordingStatusFailed
	}
	return false
}

// Recording represents a bounded-lifetime capture session for a channel.
// At most one recording per channel may be open (status=recording) at a time.
type Recording struct {
	ID              string          `gorm:"type:text;primaryKey" json:"id"`
	ChannelID       string          `gorm:"type:text;not null;index:idx_recordings_channel" json:"channel_id"`
	StartedAt       time.Time       `gorm:"not null" json:"started_at"`
	EndedAt         *time.Time      `json:"ended_at,omitempty"`
	DurationSeconds int             `json:"duration_seconds"`
	FilePath        string          `gorm:"type:text" json:"file_path,omitempty"`
	FileSizeBytes   int64           `json:"file_size_bytes"`
	Format          string          `gorm:"type:text" json:"format,omitempty"`
	Status          RecordingStatus `gorm:"type:text;not null;index:idx_recordings_status" json:"status"`
	MetaData        JSONMap         `gorm:"type:text" json:"meta_data,omitempty"`
}

// TableName returns the database table name for Recording.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Recording) TableName() string {
	return "recordings"
}

// SegmentType represents the media tracks contained in a segment.
type SegmentType string

const (
	SegmentTypeVideo SegmentType = "video"
	SegmentTypeAudio SegmentType = "audio"
	SegmentTypeBoth  SegmentType = "both"
)

// SegmentStatus represents the processing state of a media segment.
type SegmentStatus string

const (
	SegmentStatusPending    SegmentStatus = "pending"
	SegmentStatusProcessing SegmentStatus = "processing"
	SegmentStatusCompleted  SegmentStatus = "completed"
	SegmentStatusFailed     SegmentStatus = "failed"
)

// Valid reports whether the status is one of the closed enumeration values.
func (s SegmentStatus) Valid() bool {
	switch s {
	case SegmentStatusPending, SegmentStatusProcessing,
		SegmentStatusCompleted, SegmentStatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether moving from the current status to target is a
// legal segment transition. Segments flow pending -> processing -> completed
// or failed; the external encoder drives the middle edges.
func (s SegmentStatus) CanTransition(to SegmentStatus) bool {
	if !to.Valid() || s == to {
		return false
	}
	switch s {
	case SegmentStatusPending:
		return to == SegmentStatusProcessing || to == SegmentStatusFailed
	case SegmentStatusProcessing:
		return to == SegmentStatusCompleted || to == SegmentStatusFailed
	}
	return false
}

// MediaSegment is a time-sliced, file-backed unit of a recording or live
// channel. Segments are the unit of work for the analysis pipeline.
type MediaSegment struct {
	ID              string        `gorm:"type:text;primaryKey" json:"id"`
	ChannelID       string        `gorm:"type:text;not null;index:idx_media_segments_channel" json:"channel_id"`
	RecordingID     string        `gorm:"type:text;index:idx_media_segments_recording" json:"recording_id,omitempty"`
	SegmentType     SegmentType   `gorm:"type:text;not null" json:"segment_type"`
	StartTime       time.Time     `gorm:"not null" json:"start_time"`
	EndTime         time.Time     `gorm:"not null" json:"end_time"`
	DurationSeconds int           `gorm:"not null" json:"duration_seconds"`
	FilePath        string        `gorm:"type:text;not null" json:"file_path"`
	FileSizeBytes   int64         `json:"file_size_bytes"`
	Status          SegmentStatus `gorm:"type:text;not null;index:idx_media_segments_status" json:"status"`
	CreatedAt       time.Time     `json:"created_at"`
	ProcessedAt     *time.Time    `json:"processed_at,omitempty"`
}

// TableName returns the database table name for MediaSegment.
func (MediaSegment) TableName() string {
	return "media_segments"
}
