package domain

import "time"

// AlertSeverity represents how serious an operational alert is.
type AlertSeverity string

const (
	AlertSeverityCritical AlertSeverity = "critical"
	AlertSeverityError    AlertSeverity = "error"
	AlertSeverityWarning  AlertSeverity = "warning"
	AlertSeverityInfo     AlertSeverity = "info"
)

// Alert is an operational notification tied to a source or channel. Alerts are
// lower-level operational signals, kept separate from content-derived
// insights. Mutable only through the acknowledgment fields.
type Alert struct {
	ID             string        `gorm:"type:text;primaryKey" json:"id"`
	Severity       AlertSeverity `gorm:"type:text;not null;index:idx_alerts_severity" json:"severity"`
	Message        string        `gorm:"type:text;not null" json:"message"`
	SourceID       string        `gorm:"type:text;index:idx_alerts_source" json:"source_id,omitempty"`
	ChannelID      string        `gorm:"type:text;index:idx_alerts_channel" json:"channel_id,omitempty"`
	Acknowledged   bool          `gorm:"default:false" json:"acknowledged"`
	AcknowledgedBy string        `gorm:"type:text" json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time    `json:"acknowledged_at,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// TableName returns the database table name for Alert.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Alert) TableName() string {
	return "alerts"
}
