package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	internal "github.com/frahmantamala/school-management/internal"
	"github.com/frahmantamala/school-management/internal/core/common/validation"
	"github.com/frahmantamala/school-management/internal/core/datamodel/account"
	"github.com/frahmantamala/school-management/internal/core/events"
)

// Service is the auth facade: it orchestrates the lockout policy, credential
// verification, the second factor, the permission resolver and the audit
// trail for every authentication flow.
type Service struct {
	repo      RepositoryAPI
	resolver  PermissionResolver
	publisher EventPublisher
	sessions  SessionCloser
	lockout   LockoutPolicy
	cfg       internal.SecurityConfig
	logger    *slog.Logger
}

func NewService(repo RepositoryAPI, resolver PermissionResolver, publisher EventPublisher, sessions SessionCloser, cfg internal.SecurityConfig, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		resolver:  resolver,
		publisher: publisher,
		sessions:  sessions,
		lockout:   NewLockoutPolicy(cfg.LockoutThreshold, cfg.LockoutDuration),
		cfg:       cfg,
		logger:    logger,
	}
}

// Login evaluates a credential pair against the lockout state machine and,
// when a second factor is enrolled, withholds authorization until the backup
// code is verified.
func (s *Service) Login(ctx context.Context, dto LoginDTO) (*AuthResult, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	acc, err := s.repo.GetAccount(ctx, dto.Username)
	if err != nil {
		s.record(ctx, dto.Username, "Login Failed", "User not found")
		return nil, internal.NewUnauthorizedError("Invalid credentials.", internal.ErrCodeInvalidCredentials)
	}

	if !roleMatches(acc.LegacyRole, dto.Role) {
		s.record(ctx, acc.ID, "Login Failed", fmt.Sprintf("Role Mismatch: Tried %s as %s", dto.Role, acc.LegacyRole))
		return nil, internal.NewForbiddenError(
			fmt.Sprintf("Access Denied: You are registered as a %s, not a %s.", acc.LegacyRole, dto.Role),
			internal.ErrCodeRoleMismatch)
	}

	now := time.Now()
	switch s.lockout.Evaluate(acc, now) {
	case StateLocked:
		s.record(ctx, acc.ID, "Login Failed", "Account locked")
		return nil, internal.NewAccountLockedError(RemainingMinutes(*acc.LockedUntil, now))
	case StateExpired:
		if err := s.repo.ClearLockout(ctx, acc.ID); err != nil {
			return nil, internal.NewInternalError("failed to clear expired lockout", err)
		}
	}

	if bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(dto.Password)) != nil {
		return nil, s.handleFailedAttempt(ctx, acc.ID, now)
	}

	if err := s.repo.ClearLockout(ctx, acc.ID); err != nil {
		return nil, internal.NewInternalError("failed to reset lockout counters", err)
	}

	enrolled, err := s.repo.HasBackupCodes(ctx, acc.ID)
	if err != nil {
		return nil, internal.NewInternalError("failed to check second factor enrollment", err)
	}
	if enrolled {
		s.record(ctx, acc.ID, "2FA Required", "Password verified, awaiting one-time code")
		return &AuthResult{UserID: acc.ID, Requires2FA: true}, nil
	}

	result, err := s.buildAuthResult(ctx, acc)
	if err != nil {
		return nil, err
	}

	s.record(ctx, acc.ID, "Login Success", fmt.Sprintf("Roles: %s", strings.Join(result.Roles, ", ")))
	return result, nil
}

func (s *Service) handleFailedAttempt(ctx context.Context, accountID string, now time.Time) error {
	attempts, err := s.repo.IncrementFailedAttempts(ctx, accountID)
	if err != nil {
		return internal.NewInternalError("failed to register login attempt", err)
	}

	if s.lockout.ShouldLock(attempts) {
		if err := s.repo.LockAccount(ctx, accountID, s.lockout.LockExpiry(now)); err != nil {
			return internal.NewInternalError("failed to lock account", err)
		}
		s.record(ctx, accountID, "Account Locked", "Too many failed attempts")
		return internal.NewForbiddenError("Account locked. Too many failed attempts.", internal.ErrCodeAccountLocked)
	}

	s.record(ctx, accountID, "Login Failed", "Invalid password")
	return internal.NewInvalidCredentialsError(s.lockout.RemainingAttempts(attempts))
}

// VerifyBackupCode completes a 2FA-gated login. Codes are single-use:
// a successful match consumes the code, and re-issuance is explicit.
func (s *Service) VerifyBackupCode(ctx context.Context, dto Verify2FADTO) (*AuthResult, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	consumed, err := s.repo.ConsumeBackupCode(ctx, dto.UserID, dto.Code)
	if err != nil {
		return nil, internal.NewInternalError("failed to verify one-time code", err)
	}
	if !consumed {
		s.record(ctx, dto.UserID, "2FA Failed", "Invalid or used code")
		return nil, internal.NewUnauthorizedError("Invalid one-time code.", internal.ErrCodeInvalidBackupCode)
	}

	acc, err := s.repo.GetAccount(ctx, dto.UserID)
	if err != nil {
		return nil, internal.ErrAccountNotFound
	}

	result, err := s.buildAuthResult(ctx, acc)
	if err != nil {
		return nil, err
	}

	s.record(ctx, acc.ID, "Login Success", "2FA Verified")
	return result, nil
}

// buildAuthResult runs the post-credential pipeline shared by password-only
// and 2FA logins: lazy role migration, role/permission resolution, tenant
// name and guardian linkage.
func (s *Service) buildAuthResult(ctx context.Context, acc *account.Account) (*AuthResult, error) {
	if err := s.migrateLegacyRole(ctx, acc); err != nil {
		// The DB grant path still works via the legacy fallback, so a failed
		// migration must not block the login.
		s.logger.Warn("legacy role migration failed", "user_id", acc.ID, "error", err)
	}

	roles, perms, err := s.resolver.EffectivePermissions(ctx, acc.ID)
	if err != nil {
		return nil, internal.NewInternalError("failed to resolve permissions", err)
	}

	schoolName := "Independent"
	if acc.SchoolID != 0 {
		if name, err := s.repo.TenantName(ctx, acc.SchoolID); err == nil && name != "" {
			schoolName = name
		}
	}

	related := ""
	if isParent(acc.LegacyRole) || containsParentRole(roles) {
		if studentID, err := s.repo.GuardianStudentID(ctx, acc.ID); err == nil {
			related = studentID
		}
	}

	return &AuthResult{
		UserID:           acc.ID,
		Name:             acc.Name,
		Role:             acc.LegacyRole,
		Roles:            roles,
		Permissions:      perms,
		Requires2FA:      false,
		SchoolID:         acc.SchoolID,
		SchoolName:       schoolName,
		IsSuperAdmin:     acc.IsSuperAdmin,
		RelatedStudentID: related,
	}, nil
}

// migrateLegacyRole binds the legacy single-role field into user_roles the
// first time an account without bindings logs in. The insert is an upsert so
// concurrent logins stay idempotent.
func (s *Service) migrateLegacyRole(ctx context.Context, acc *account.Account) error {
	bound, err := s.repo.HasRoleBindings(ctx, acc.ID)
	if err != nil {
		return err
	}
	if bound {
		return nil
	}

	target := acc.LegacyRole
	if target == RoleAdmin {
		target = RoleSuperAdmin
	}
	return s.repo.BindRoleByName(ctx, acc.ID, target)
}

// Register creates an account. Elevated roles are invitation-gated and the
// invitation is consumed in the same transaction as the account insert.
func (s *Service) Register(ctx context.Context, dto RegisterDTO) error {
	if err := dto.Validate(); err != nil {
		return err
	}
	if err := validation.ValidatePasswordStrength(dto.Password, s.cfg.MinPasswordLength); err != nil {
		return err
	}

	invitationToken := ""
	if dto.Role == RoleTeacher || dto.Role == RoleAdmin {
		if dto.InvitationToken == "" {
			return internal.NewForbiddenError("Invitation required for this role.", internal.ErrCodeInvitationRequired)
		}
		invite, err := s.repo.GetInvitation(ctx, dto.InvitationToken)
		if err != nil || invite.IsUsed {
			return internal.NewValidationError("Invalid or used invitation token.", internal.ErrCodeInvitationInvalid)
		}
		if time.Now().After(invite.ExpiresAt) {
			return internal.NewValidationError("Invitation expired.", internal.ErrCodeInvitationExpired)
		}
		if invite.Role != dto.Role {
			return internal.NewValidationError("Token does not match the requested role.", internal.ErrCodeInvitationInvalid)
		}
		invitationToken = dto.InvitationToken
	}

	schoolID := dto.SchoolID
	if schoolID == 0 {
		schoolID = 1
	}
	if schoolID != 1 {
		exists, err := s.repo.TenantExists(ctx, schoolID)
		if err != nil {
			return internal.NewInternalError("failed to validate school", err)
		}
		if !exists {
			return internal.NewValidationError("Invalid School ID selected.", internal.ErrCodeTenantNotFound)
		}
	}

	if _, err := s.repo.GetAccount(ctx, dto.Email); err == nil {
		s.record(ctx, dto.Email, "Register Failed", "User ID already exists")
		return internal.ErrDuplicateAccount
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(dto.Password), s.cfg.BCryptCost)
	if err != nil {
		return internal.NewInternalError("failed to hash password", err)
	}

	acc := &account.Account{
		ID:               dto.Email,
		Name:             dto.Name,
		PasswordHash:     string(hash),
		LegacyRole:       dto.Role,
		Grade:            dto.Grade,
		PreferredSubject: dto.PreferredSubject,
		AttendanceRate:   100.0,
		HomeLanguage:     "English",
		SchoolID:         schoolID,
	}

	if err := s.repo.CreateAccount(ctx, acc, invitationToken, s.generateBackupCode()); err != nil {
		s.record(ctx, dto.Email, "Register Failed", fmt.Sprintf("Error: %v", err))
		return internal.NewInternalError("registration failed", err)
	}

	s.record(ctx, dto.Email, "Register Success", fmt.Sprintf("Role: %s, School: %d", dto.Role, schoolID))
	return nil
}

// Logout records the event and closes the open session row so its duration
// can be reconstructed. Neither step may fail the request.
func (s *Service) Logout(ctx context.Context, dto LogoutDTO) error {
	if dto.UserID == "" {
		return ValidationError{Msg: "user_id is required"}
	}
	s.record(ctx, dto.UserID, "Logout", "User logged out")
	if err := s.sessions.CloseOpenSession(ctx, dto.UserID); err != nil {
		s.logger.Error("session close failed", "user_id", dto.UserID, "error", err)
	}
	return nil
}

// ForgotPassword always answers with the same non-revealing message so the
// endpoint cannot be used to enumerate accounts.
func (s *Service) ForgotPassword(ctx context.Context, dto ForgotPasswordDTO) (*ForgotPasswordResult, error) {
	const message = "If an account exists, a reset link has been sent."

	if dto.Email == "" {
		return nil, ValidationError{Msg: "email is required"}
	}

	if _, err := s.repo.GetAccount(ctx, dto.Email); err != nil {
		s.record(ctx, dto.Email, "Password Reset Requested", "User not found")
		return &ForgotPasswordResult{Message: message}, nil
	}

	token := uuid.NewString()
	reset := &account.PasswordReset{
		Token:     token,
		UserID:    dto.Email,
		ExpiresAt: time.Now().Add(s.cfg.ResetTokenTTL),
	}
	if err := s.repo.CreatePasswordReset(ctx, reset); err != nil {
		return nil, internal.NewInternalError("failed to create reset token", err)
	}

	link := fmt.Sprintf("/?reset_token=%s", token)
	s.record(ctx, dto.Email, "Password Reset Requested", fmt.Sprintf("Token generated (Dev Link: %s)", link))
	return &ForgotPasswordResult{Message: message, DevLink: link}, nil
}

// ResetPassword redeems a single-use token: strength re-validated, credential
// rehashed, lockout state cleared, token deleted.
func (s *Service) ResetPassword(ctx context.Context, dto ResetPasswordDTO) error {
	if err := dto.Validate(); err != nil {
		return err
	}

	reset, err := s.repo.GetPasswordReset(ctx, dto.Token)
	if err != nil {
		return internal.NewValidationError("Invalid or expired reset token.", internal.ErrCodeResetTokenInvalid)
	}
	if time.Now().After(reset.ExpiresAt) {
		if err := s.repo.DeletePasswordReset(ctx, dto.Token); err != nil {
			s.logger.Error("failed to delete expired reset token", "error", err)
		}
		return internal.NewValidationError("Reset token has expired.", internal.ErrCodeResetTokenExpired)
	}

	if err := validation.ValidatePasswordStrength(dto.NewPassword, s.cfg.MinPasswordLength); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(dto.NewPassword), s.cfg.BCryptCost)
	if err != nil {
		return internal.NewInternalError("failed to hash password", err)
	}
	if err := s.repo.UpdatePassword(ctx, reset.UserID, string(hash)); err != nil {
		return internal.NewInternalError("failed to update password", err)
	}
	if err := s.repo.DeletePasswordReset(ctx, dto.Token); err != nil {
		s.logger.Error("failed to delete redeemed reset token", "error", err)
	}

	s.record(ctx, reset.UserID, "Password Reset Success", "Password updated via token & Account unlocked")
	return nil
}

// GenerateInvitation issues a single-use registration token bound to the
// caller's tenant.
func (s *Service) GenerateInvitation(ctx context.Context, callerID string, dto InvitationDTO) (*InvitationResult, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	ttl := s.cfg.InvitationTTL
	if dto.ExpiryHours > 0 {
		ttl = time.Duration(dto.ExpiryHours) * time.Hour
	}

	schoolID := int64(1)
	if caller, err := s.repo.GetAccount(ctx, callerID); err == nil {
		schoolID = caller.SchoolID
	}

	inv := &account.Invitation{
		Token:     uuid.NewString()[:8],
		Role:      dto.Role,
		SchoolID:  schoolID,
		ExpiresAt: time.Now().Add(ttl),
	}
	if err := s.repo.CreateInvitation(ctx, inv); err != nil {
		// an eight-char token can collide with an existing row; redraw once
		inv.Token = uuid.NewString()[:8]
		if err := s.repo.CreateInvitation(ctx, inv); err != nil {
			return nil, internal.NewInternalError("failed to create invitation", err)
		}
	}

	return &InvitationResult{
		Link:      fmt.Sprintf("?invite=%s", inv.Token),
		Token:     inv.Token,
		ExpiresAt: inv.ExpiresAt.Format(time.RFC3339),
	}, nil
}

// ListBackupCodes shows a student's codes to staff. An account that somehow
// has none gets one issued on the spot so the second factor stays usable.
func (s *Service) ListBackupCodes(ctx context.Context, studentID string) (*BackupCodesResult, error) {
	acc, err := s.repo.GetAccount(ctx, studentID)
	if err != nil {
		return nil, internal.ErrAccountNotFound
	}

	codes, err := s.repo.ListBackupCodes(ctx, studentID)
	if err != nil {
		return nil, internal.NewInternalError("failed to list backup codes", err)
	}
	if len(codes) == 0 {
		code := s.generateBackupCode()
		if err := s.repo.ReplaceBackupCodes(ctx, studentID, []string{code}); err != nil {
			return nil, internal.NewInternalError("failed to issue backup code", err)
		}
		codes = []string{code}
	}

	return &BackupCodesResult{StudentID: studentID, Name: acc.Name, Codes: codes}, nil
}

// RegenerateBackupCode revokes every code the account holds and issues one
// fresh code.
func (s *Service) RegenerateBackupCode(ctx context.Context, studentID string) (*BackupCodesResult, error) {
	acc, err := s.repo.GetAccount(ctx, studentID)
	if err != nil {
		return nil, internal.ErrAccountNotFound
	}

	code := s.generateBackupCode()
	if err := s.repo.ReplaceBackupCodes(ctx, studentID, []string{code}); err != nil {
		return nil, internal.NewInternalError("failed to regenerate backup code", err)
	}

	s.record(ctx, studentID, "Security Update", "2FA Code Regenerated by Teacher")
	return &BackupCodesResult{StudentID: studentID, Name: acc.Name, Codes: []string{code}}, nil
}

func (s *Service) generateBackupCode() string {
	length := s.cfg.BackupCodeLength
	if length <= 0 {
		length = 6
	}
	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			// crypto/rand only fails when the platform source is broken;
			// fall back to a fixed digit rather than panicking mid-login.
			digits[i] = '0'
			continue
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits)
}

func (s *Service) record(ctx context.Context, userID, eventName, details string) {
	event := events.NewSecurityEvent(userID, eventName, details)
	if err := s.publisher.PublishSync(ctx, event); err != nil {
		s.logger.Error("security event publish failed", "user_id", userID, "event", eventName, "error", err)
	}
}

// roleMatches enforces the role gate on login. The one sanctioned exception:
// a legacy Admin may authenticate into the Teacher portal.
func roleMatches(accountRole, requestedRole string) bool {
	if accountRole == requestedRole {
		return true
	}
	return accountRole == RoleAdmin && requestedRole == RoleTeacher
}

func isParent(role string) bool {
	return role == RoleParent || role == RoleParentFull
}

func containsParentRole(roles []string) bool {
	for _, r := range roles {
		if isParent(r) {
			return true
		}
	}
	return false
}
