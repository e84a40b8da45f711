package domain

import "time"

// SourceProtocol represents the ingest protocol of a source.
type SourceProtocol string

const (
	ProtocolSRT     SourceProtocol = "srt"
	ProtocolUDP     SourceProtocol = "udp"
	ProtocolRTSP    SourceProtocol = "rtsp"
	ProtocolHTTPTS  SourceProtocol = "http_ts"
	ProtocolHLS     SourceProtocol = "hls"
	ProtocolDASH    SourceProtocol = "dash"
	ProtocolYouTube SourceProtocol = "youtube"
	ProtocolFile    SourceProtocol = "file"
)

// SourceType represents the kind of equipment feeding a source.
type SourceType string

const (
	SourceTypeDirectLink       SourceType = "direct_link"
	SourceTypeSatelliteEncoder SourceType = "satellite_encoder"
	SourceTypeLocalDevice      SourceType = "local_device"
	SourceTypeCloudOrigin      SourceType = "cloud_origin"
)

// SourceStatus represents the derived health state of an ingest source.
// Values include SourceStatusOnline, SourceStatusOffline, SourceStatusUnstable,
// SourceStatusConnecting and SourceStatusError.
type SourceStatus string

const (
	SourceStatusOnline     SourceStatus = "online"
	SourceStatusOffline    SourceStatus = "offline"
	SourceStatusUnstable   SourceStatus = "unstable"
	SourceStatusConnecting SourceStatus = "connecting"
	SourceStatusError      SourceStatus = "error"
)

// Valid reports whether the status is one of the closed enumeration values.
func (s SourceStatus) Valid() bool {
	switch s {
	case SourceStatusOnline, SourceStatusOffline, SourceStatusUnstable,
		SourceStatusConnecting, SourceStatusError:
		return true
	}
	return false
}

// CanTransition reports whether moving from the current status to target is a
// legal source state-machine transition. Error is reachable from any state on
// an unrecoverable signal; every other edge follows the monitoring flow
// connecting -> online <-> unstable -> offline -> connecting.
// Parameters:
//   - to: target status.
// Returns:
//   - bool: true if the transition is allowed.
func (s SourceStatus) CanTransition(to SourceStatus) bool {
	if !to.Valid() || s == to {
		return false
	}
	if to == SourceStatusError {
		return true
	}
	switch s {
	case SourceStatusConnecting:
		return to == SourceStatusOnline || to == SourceStatusOffline
	case SourceStatusOnline:
		return to == SourceStatusUnstable || to == SourceStatusOffline
	case SourceStatusUnstable:
		return to == SourceStatusOnline || to == SourceStatusOffline
	case SourceStatusOffline:
		return to == SourceStatusConnecting
	case SourceStatusError:
		return to == SourceStatusConnecting
	}
	return false
}

// Source represents a configured live media ingest endpoint.
// Status is owned by the monitoring engine; operators only touch it through
// explicit transition functions.
type Source struct {
	ID               string         `gorm:"type:text;primaryKey" json:"id"`
	Name             string         `gorm:"type:text;not null" json:"name"`
	Protocol         SourceProtocol `gorm:"type:text;not null" json:"protocol"`
	SourceType       SourceType     `gorm:"type:text;not null" json:"source_type"`
	EndpointURL      string         `gorm:"type:text;not null" json:"endpoint_url"`
	BackupURL        string         `gorm:"type:text" json:"backup_url,omitempty"`
	ConnectionParams JSONMap        `gorm:"type:text" json:"connection_params,omitempty"`
	Status           SourceStatus   `gorm:"type:text;not null;index:idx_sources_status" json:"status"`
	LastSeenAt       *time.Time     `json:"last_seen_at,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	CreatedBy        string         `gorm:"type:text" json:"created_by,omitempty"`
	IsActive         bool           `gorm:"default:true" json:"is_active"`
	MetaData         JSONMap        `gorm:"type:text" json:"meta_data,omitempty"`
}

// TableName returns the database table name for Source.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Source) TableName() string {
	return "sources"
}

// SourceMetric represents one immutable health sample for a source.
// Rows are append-only and never updated.
type SourceMetric struct {
	ID                int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SourceID          string    `gorm:"type:text;not null;index:idx_source_metrics_source_time,priority:1" json:"source_id"`
	Timestamp         time.Time `gorm:"not null;index:idx_source_metrics_source_time,priority:2" json:"timestamp"`
	BitrateKbps       int       `json:"bitrate_kbps"`
	FPS               float64   `json:"fps"`
	LatencyMs         int       `json:"latency_ms"`
	PacketLossPercent float64   `json:"packet_loss_percent"`
	JitterMs          int       `json:"jitter_ms"`
	BufferHealth      float64   `json:"buffer_health"`
	VideoCodec        string    `gorm:"type:text" json:"video_codec,omitempty"`
	AudioCodec        string    `gorm:"type:text" json:"audio_codec,omitempty"`
	Resolution        string    `gorm:"type:text" json:"resolution,omitempty"`
	ErrorCount        int       `gorm:"default:0" json:"error_count"`
}

// TableName returns the database table name for SourceMetric.
func (SourceMetric) TableName() string {
	return "source_metrics"
}
