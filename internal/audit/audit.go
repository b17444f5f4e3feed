package audit

import (
	"context"
	"time"
)

// Event names recorded in the trail. The set splits into access events
// (session lifecycle) and everything else, which the compliance endpoints
// treat as administrative audit events.
const (
	EventLoginSuccess   = "Login Success"
	EventLoginFailed    = "Login Failed"
	EventAccountLocked  = "Account Locked"
	EventLogout         = "Logout"
	EventTwoFARequired  = "2FA Required"
	EventTwoFAFailed    = "2FA Failed"
	EventTwoFAVerified  = "2FA Verified"
	EventUnauthorized   = "Unauthorized Access"
	EventSecurityUpdate = "Security Update"
)

// AccessEvents are the session-lifecycle names the compliance split keys on.
func AccessEvents() []string {
	return []string{EventLoginSuccess, EventLoginFailed, EventLogout, EventTwoFAVerified, EventTwoFARequired}
}

// Entry is one append-only row in the trail. LogoutTime and DurationMinutes
// are backfilled onto the opening Login Success row when the session closes;
// no other mutation ever touches a written row.
type Entry struct {
	ID              int64      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserID          string     `gorm:"column:user_id;index" json:"user_id"`
	EventType       string     `gorm:"column:event_type" json:"event_type"`
	Timestamp       time.Time  `gorm:"column:timestamp" json:"timestamp"`
	Details         string     `gorm:"column:details" json:"details"`
	LogoutTime      *time.Time `gorm:"column:logout_time" json:"logout_time,omitempty"`
	DurationMinutes *int       `gorm:"column:duration_minutes" json:"duration_minutes,omitempty"`
}

func (Entry) TableName() string {
	return "auth_logs"
}

// ServiceAPI is what the HTTP layer sees of the audit trail.
type ServiceAPI interface {
	RecentLogs(ctx context.Context) ([]Entry, error)
	ComplianceAuditLogs(ctx context.Context) ([]Entry, error)
	ComplianceAccessLogs(ctx context.Context) ([]Entry, error)
	RetentionPolicies() RetentionPolicy
	WriteFailures() uint64
}

// RepositoryAPI persists entries and reconstructs sessions.
type RepositoryAPI interface {
	Append(ctx context.Context, entry *Entry) error
	LatestOpenSession(ctx context.Context, userID string) (*Entry, error)
	CloseSession(ctx context.Context, entryID int64, logoutTime time.Time, durationMinutes int) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
	RecentByEventTypes(ctx context.Context, eventTypes []string, include bool, limit int) ([]Entry, error)
}

// RetentionPolicy mirrors the published data-retention windows.
type RetentionPolicy struct {
	AuditLogsDays    int `json:"audit_logs_days"`
	AccessLogsDays   int `json:"access_logs_days"`
	StudentDataYears int `json:"student_data_years"`
}

// DefaultRetentionPolicy matches the documented compliance windows.
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{AuditLogsDays: 30, AccessLogsDays: 30, StudentDataYears: 7}
}
