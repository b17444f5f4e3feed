package account

import (
	"time"
)

// Account is the persisted user record. The primary key is caller-chosen (a
// student code like "S001" or an email) which is why it is a string and not a
// sequence.
type Account struct {
	ID                  string     `gorm:"column:id;primaryKey" json:"id"`
	Name                string     `gorm:"column:name;not null" json:"name"`
	PasswordHash        string     `gorm:"column:password_hash;not null" json:"-"`
	LegacyRole          string     `gorm:"column:legacy_role;not null" json:"role"`
	Grade               int        `gorm:"column:grade" json:"grade"`
	PreferredSubject    string     `gorm:"column:preferred_subject" json:"preferred_subject"`
	AttendanceRate      float64    `gorm:"column:attendance_rate" json:"attendance_rate"`
	HomeLanguage        string     `gorm:"column:home_language" json:"home_language"`
	MathScore           float64    `gorm:"column:math_score" json:"math_score"`
	ScienceScore        float64    `gorm:"column:science_score" json:"science_score"`
	EnglishScore        float64    `gorm:"column:english_language_score" json:"english_language_score"`
	SchoolID            int64      `gorm:"column:school_id;not null;default:1" json:"school_id"`
	IsSuperAdmin        bool       `gorm:"column:is_super_admin;not null;default:false" json:"is_super_admin"`
	FailedLoginAttempts int        `gorm:"column:failed_login_attempts;not null;default:0" json:"-"`
	LockedUntil         *time.Time `gorm:"column:locked_until" json:"-"`
	CreatedAt           time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt           time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

func (Account) TableName() string {
	return "accounts"
}

// Locked reports whether the lock expiry is still in the future at now.
func (a *Account) Locked(now time.Time) bool {
	return a.LockedUntil != nil && now.Before(*a.LockedUntil)
}

type BackupCode struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	UserID    string    `gorm:"column:user_id;not null;index"`
	Code      string    `gorm:"column:code;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (BackupCode) TableName() string {
	return "backup_codes"
}

type Invitation struct {
	Token     string    `gorm:"column:token;primaryKey"`
	Role      string    `gorm:"column:role;not null"`
	SchoolID  int64     `gorm:"column:school_id;not null;default:1"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null"`
	IsUsed    bool      `gorm:"column:is_used;not null;default:false"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (Invitation) TableName() string {
	return "invitations"
}

type PasswordReset struct {
	Token     string    `gorm:"column:token;primaryKey"`
	UserID    string    `gorm:"column:user_id;not null"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (PasswordReset) TableName() string {
	return "password_resets"
}

type UserRole struct {
	UserID string `gorm:"column:user_id;primaryKey"`
	RoleID int64  `gorm:"column:role_id;primaryKey"`
}

func (UserRole) TableName() string {
	return "user_roles"
}
