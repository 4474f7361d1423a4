package models

import "time"

// ActivityLog is one viewer-portal activity entry. Retention pruning keeps
// only the newest few entries per user.
type ActivityLog struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    string    `gorm:"size:64;not null;index:idx_activity_user_created" json:"user_id"`
	Action    string    `gorm:"size:64" json:"action"`
	Detail    string    `gorm:"type:text" json:"detail,omitempty"`
	CreatedAt time.Time `gorm:"not null;index:idx_activity_user_created,priority:2" json:"created_at"`
}

// TableName specifies the table name
func (ActivityLog) TableName() string {
	return "activity_logs"
}

// SessionLog records one viewer session. Closing a session feeds the
// usage-stat accumulator exactly once.
type SessionLog struct {
	ID          string     `gorm:"primaryKey;size:64" json:"id"`
	UserID      string     `gorm:"size:64;not null;index" json:"user_id"`
	Role        string     `gorm:"size:32" json:"role"`
	StartedAt   time.Time  `gorm:"not null" json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	DurationSec int64      `json:"duration_sec"`
	Closed      bool       `json:"closed"`
}

// TableName specifies the table name
func (SessionLog) TableName() string {
	return "session_logs"
}

// UsageStats is the single global counter row (id 1).
type UsageStats struct {
	ID               uint  `gorm:"primaryKey" json:"id"`
	SessionCount     int64 `json:"session_count"`
	UniqueUsers      int64 `json:"unique_users"`
	RepeatUsers      int64 `json:"repeat_users"`
	TotalDurationSec int64 `json:"total_duration_sec"`
}

// TableName specifies the table name
func (UsageStats) TableName() string {
	return "usage_stats"
}

// RoleStats accumulates per-role session counters.
type RoleStats struct {
	Role             string `gorm:"primaryKey;size:32" json:"role"`
	SessionCount     int64  `json:"session_count"`
	TotalDurationSec int64  `json:"total_duration_sec"`
}

// TableName specifies the table name
func (RoleStats) TableName() string {
	return "role_stats"
}

// UserStats accumulates per-user session counters.
type UserStats struct {
	UserID           string    `gorm:"primaryKey;size:64" json:"user_id"`
	SessionCount     int64     `json:"session_count"`
	TotalDurationSec int64     `json:"total_duration_sec"`
	LastSessionAt    time.Time `json:"last_session_at"`
}

// TableName specifies the table name
func (UserStats) TableName() string {
	return "user_stats"
}
