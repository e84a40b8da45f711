package domain

import "time"

// ChannelStatus represents the broadcast state of a channel.
// Values include ChannelStatusLive, ChannelStatusOffline, ChannelStatusScheduled,
// ChannelStatusError and ChannelStatusMaintenance.
type ChannelStatus string

const (
	ChannelStatusLive        ChannelStatus = "live"
	ChannelStatusOffline     ChannelStatus = "offline"
	ChannelStatusScheduled   ChannelStatus = "scheduled"
	ChannelStatusError       ChannelStatus = "error"
	ChannelStatusMaintenance ChannelStatus = "maintenance"
)

// Valid reports whether the status is one of the closed enumeration values.
func (s ChannelStatus) Valid() bool {
	switch s {
	case ChannelStatusLive, ChannelStatusOffline, ChannelStatusScheduled,
		ChannelStatusError, ChannelStatusMaintenance:
		return true
	}
	return false
}

// CanTransition reports whether moving from the current status to target is a
// legal channel state-machine transition. Offline is terminal-reachable from
// any state; live requires the active source to be online, which the engine
// checks before calling.
// Parameters:
//   - to: target status.
// Returns:
//   - bool: true if the transition is allowed.
func (s ChannelStatus) CanTransition(to ChannelStatus) bool {
	if !to.Valid() || s == to {
		return false
	}
	if to == ChannelStatusOffline {
		return true
	}
	switch s {
	case ChannelStatusScheduled:
		return to == ChannelStatusLive || to == ChannelStatusError || to == ChannelStatusMaintenance
	case ChannelStatusLive:
		return to == ChannelStatusError || to == ChannelStatusMaintenance
	case ChannelStatusError:
		return to == ChannelStatusLive || to == ChannelStatusMaintenance
	case ChannelStatusMaintenance:
		return to == ChannelStatusLive || to == ChannelStatusScheduled || to == ChannelStatusError
	case ChannelStatusOffline:
		return to == ChannelStatusScheduled || to == ChannelStatusLive
	}
	return false
}

// OutputFormat represents the packaging format of a channel's output.
type OutputFormat string

const (
	OutputFormatHLS  OutputFormat = "hls"
	OutputFormatDASH OutputFormat = "dash"
	OutputFormatBoth OutputFormat = "both"
)

// EventType represents the kind of channel event recorded on a transition.
type EventType string

const (
	EventStarted       EventType = "started"
	EventStopped       EventType = "stopped"
	EventFailover      EventType = "failover"
	EventError         EventType = "error"
	EventRecovered     EventType = "recovered"
	EventReconnecting  EventType = "reconnecting"
	EventSourceChanged EventType = "source_changed"
)

// TriggeredBy represents who or what caused a channel event.
type TriggeredBy string

const (
	TriggerSystem       TriggeredBy = "system"
	TriggerUser         TriggeredBy = "user"
	TriggerScheduler    TriggeredBy = "scheduler"
	TriggerFailoverRule TriggeredBy = "failover_rule"
)

// Channel represents a publishable output stream bound to one primary source
// and optionally one fallback source.
type Channel struct {
	ID                 string        `gorm:"type:text;primaryKey" json:"id"`
	Name               string        `gorm:"type:text;not null" json:"name"`
	Slug               string        `gorm:"type:text;uniqueIndex:idx_channels_slug;not null" json:"slug"`
	SourceID           string        `gorm:"type:text" json:"source_id,omitempty"`
	FallbackSourceID   string        `gorm:"type:text" json:"fallback_source_id,omitempty"`
	ActiveSourceID     string        `gorm:"type:text" json:"active_source_id,omitempty"`
	Status             ChannelStatus `gorm:"type:text;not null;index:idx_channels_status" json:"status"`
	OutputFormat       OutputFormat  `gorm:"type:text;not null" json:"output_format"`
	ThumbnailURL       string        `gorm:"type:text" json:"thumbnail_url,omitempty"`
	ThumbnailUpdatedAt *time.Time    `json:"thumbnail_updated_at,omitempty"`
	Category           string        `gorm:"type:text" json:"category,omitempty"`
	Priority           int           `gorm:"default:0" json:"priority"`
	MaxViewers         int           `json:"max_viewers,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
	CreatedBy          string        `gorm:"type:text" json:"created_by,omitempty"`
	IsActive           bool          `gorm:"default:true" json:"is_active"`
	TranscodingProfile string        `gorm:"type:text" json:"transcoding_profile,omitempty"`
	RecordingEnabled   bool          `gorm:"default:false" json:"recording_enabled"`
	AnalysisProfile    StringList    `gorm:"type:text" json:"analysis_profile,omitempty"`
}

// TableName returns the database table name for Channel.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Channel) TableName() string {
	return "channels"
}

// ActiveSource returns the source the channel is currently playing from.
// Falls back to the primary source when no explicit active source is set.
func (c *Channel) ActiveSource() string {
	if c.ActiveSourceID != "" {
		return c.ActiveSourceID
	}
	return c.SourceID
}

// AlternateSource returns the source the channel would fail over to, or an
// empty string when none is configured.
func (c *Channel) AlternateSource() string {
	if c.ActiveSource() == c.SourceID {
		return c.FallbackSourceID
	}
	return c.SourceID
}

// ChannelEvent is one immutable audit record of a channel transition.
// Rows are append-only; DedupKey makes recording idempotent under
// at-least-once delivery from upstream retries.
type ChannelEvent struct {
	ID          int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	ChannelID   string      `gorm:"type:text;not null;index:idx_channel_events_channel_time,priority:1" json:"channel_id"`
	EventType   EventType   `gorm:"type:text;not null" json:"event_type"`
	Timestamp   time.Time   `gorm:"not null;index:idx_channel_events_channel_time,priority:2" json:"timestamp"`
	Details     JSONMap     `gorm:"type:text" json:"details,omitempty"`
	TriggeredBy TriggeredBy `gorm:"type:text;not null" json:"triggered_by"`
	UserID      string      `gorm:"type:text" json:"user_id,omitempty"`
	DedupKey    string      `gorm:"type:text;uniqueIndex:idx_channel_events_dedup" json:"-"`
}

// TableName returns the database table name for ChannelEvent.
func (ChannelEvent) TableName() string {
	return "channel_events"
}
