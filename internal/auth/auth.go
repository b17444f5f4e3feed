package auth

import (
	"context"
	"errors"
	"time"

	"github.com/frahmantamala/school-management/internal/core/datamodel/account"
	"github.com/frahmantamala/school-management/internal/core/events"
)

// Role names with special meaning during authentication and resolution.
const (
	RoleAdmin      = "Admin"
	RoleTeacher    = "Teacher"
	RoleStudent    = "Student"
	RoleParent     = "Parent"
	RoleRootSuper  = "Root_Super_Admin"
	RoleSuperAdmin = "Super Admin"
	RoleParentFull = "Parent_Guardian"
)

// AuthResult is the outward contract of a completed authentication: either
// only a user id with Requires2FA set, or the full authorization payload.
type AuthResult struct {
	UserID           string   `json:"user_id"`
	Name             string   `json:"name,omitempty"`
	Role             string   `json:"role,omitempty"`
	Roles            []string `json:"roles,omitempty"`
	Permissions      []string `json:"permissions,omitempty"`
	Requires2FA      bool     `json:"requires_2fa"`
	SchoolID         int64    `json:"school_id,omitempty"`
	SchoolName       string   `json:"school_name,omitempty"`
	IsSuperAdmin     bool     `json:"is_super_admin"`
	RelatedStudentID string   `json:"related_student_id,omitempty"`
}

type InvitationResult struct {
	Link      string `json:"link"`
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

type ForgotPasswordResult struct {
	Message string `json:"message"`
	DevLink string `json:"dev_link,omitempty"`
}

// BackupCodesResult is the teacher-facing view of a student's one-time codes.
type BackupCodesResult struct {
	StudentID string   `json:"student_id"`
	Name      string   `json:"name"`
	Codes     []string `json:"codes"`
}

// ServiceAPI is what the HTTP layer sees of the auth facade.
type ServiceAPI interface {
	Login(ctx context.Context, dto LoginDTO) (*AuthResult, error)
	VerifyBackupCode(ctx context.Context, dto Verify2FADTO) (*AuthResult, error)
	Register(ctx context.Context, dto RegisterDTO) error
	Logout(ctx context.Context, dto LogoutDTO) error
	ForgotPassword(ctx context.Context, dto ForgotPasswordDTO) (*ForgotPasswordResult, error)
	ResetPassword(ctx context.Context, dto ResetPasswordDTO) error
	GenerateInvitation(ctx context.Context, callerID string, dto InvitationDTO) (*InvitationResult, error)
	ListBackupCodes(ctx context.Context, studentID string) (*BackupCodesResult, error)
	RegenerateBackupCode(ctx context.Context, studentID string) (*BackupCodesResult, error)
}

// RepositoryAPI is the persistence surface the facade and resolver depend on.
// Counter mutations are atomic statements so concurrent logins against one
// account cannot undercount failures.
type RepositoryAPI interface {
	GetAccount(ctx context.Context, id string) (*account.Account, error)
	ClearLockout(ctx context.Context, id string) error
	IncrementFailedAttempts(ctx context.Context, id string) (int, error)
	LockAccount(ctx context.Context, id string, until time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error

	HasBackupCodes(ctx context.Context, userID string) (bool, error)
	ConsumeBackupCode(ctx context.Context, userID, code string) (bool, error)
	ListBackupCodes(ctx context.Context, userID string) ([]string, error)
	ReplaceBackupCodes(ctx context.Context, userID string, codes []string) error

	HasRoleBindings(ctx context.Context, userID string) (bool, error)
	BindRoleByName(ctx context.Context, userID, roleName string) error
	RoleNamesForUser(ctx context.Context, userID string) ([]string, error)
	PermissionCodesForUser(ctx context.Context, userID string) ([]string, error)
	HasGrant(ctx context.Context, userID, permission string) (bool, error)

	CreateAccount(ctx context.Context, acc *account.Account, invitationToken, backupCode string) error
	TenantExists(ctx context.Context, schoolID int64) (bool, error)
	TenantName(ctx context.Context, schoolID int64) (string, error)
	GuardianStudentID(ctx context.Context, email string) (string, error)

	GetInvitation(ctx context.Context, token string) (*account.Invitation, error)
	CreateInvitation(ctx context.Context, inv *account.Invitation) error

	CreatePasswordReset(ctx context.Context, reset *account.PasswordReset) error
	GetPasswordReset(ctx context.Context, token string) (*account.PasswordReset, error)
	DeletePasswordReset(ctx context.Context, token string) error
}

// Sentinels surfaced by the repository for states the service translates
// into caller-facing errors.
var (
	ErrRoleMissing     = errors.New("role not found for binding")
	ErrInvitationSpent = errors.New("invitation already used")
)

// EventPublisher is satisfied by the in-process event bus; security outcomes
// travel over it to the audit sink before a response is returned.
type EventPublisher interface {
	PublishSync(ctx context.Context, event events.Event) error
}

// SessionCloser reconstructs session duration on logout; implemented by the
// audit service.
type SessionCloser interface {
	CloseOpenSession(ctx context.Context, userID string) error
}
