package domain

import "time"

// UserRole represents the permission level of a platform user.
type UserRole string

const (
	RoleAdmin    UserRole = "admin"
	RoleOperator UserRole = "operator"
	RoleViewer   UserRole = "viewer"
)

// User represents a platform operator. Users are owned by the auth layer; the
// engine only references them by id on events, alerts and audit records.
type User struct {
	ID           string     `gorm:"type:text;primaryKey" json:"id"`
	Email        string     `gorm:"type:text;uniqueIndex:idx_users_email;not null" json:"email"`
	PasswordHash string     `gorm:"type:text;not null" json:"-"`
	Name         string     `gorm:"type:text;not null" json:"name"`
	Role         UserRole   `gorm:"type:text;not null" json:"role"`
	AvatarURL    string     `gorm:"type:text" json:"avatar_url,omitempty"`
	IsActive     bool       `gorm:"default:true" json:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Preferences  JSONMap    `gorm:"type:text" json:"preferences,omitempty"`
}

// TableName returns the database table name for User.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (User) TableName() string {
	return "users"
}

// SystemConfig is one process-wide configuration entry. Entries are loaded
// once into an immutable snapshot at startup; runtime updates produce a new
// snapshot rather than mutating shared state.
type SystemConfig struct {
	Key         string    `gorm:"type:text;primaryKey" json:"key"`
	Value       JSONMap   `gorm:"type:text" json:"value"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
	UpdatedBy   string    `gorm:"type:text" json:"updated_by,omitempty"`
}

// TableName returns the database table name for SystemConfig.
func (SystemConfig) TableName() string {
	return "system_config"
}

// AuditLog is one immutable record of a state-changing action. Rows are
// append-only and never updated or deleted.
type AuditLog struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     string    `gorm:"type:text" json:"user_id,omitempty"`
	Action     string    `gorm:"type:text;not null" json:"action"`
	EntityType string    `gorm:"type:text;not null" json:"entity_type"`
	EntityID   string    `gorm:"type:text" json:"entity_id,omitempty"`
	OldValues  JSONMap   `gorm:"type:text" json:"old_values,omitempty"`
	NewValues  JSONMap   `gorm:"type:text" json:"new_values,omitempty"`
	IPAddress  string    `gorm:"type:text" json:"ip_address,omitempty"`
	UserAgent  string    `gorm:"type:text" json:"user_agent,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// TableName returns the database table name for AuditLog.
func (AuditLog) TableName() string {
	return "audit_logs"
}
