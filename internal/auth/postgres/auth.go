package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/frahmantamala/school-management/internal/auth"
	"github.com/frahmantamala/school-management/internal/core/datamodel/account"
)

// AuthRepository implements auth.RepositoryAPI using GORM
type AuthRepository struct {
	db *gorm.DB
}

// NewAuthRepository creates a new auth repository
func NewAuthRepository(db *gorm.DB) auth.RepositoryAPI {
	return &AuthRepository{db: db}
}

func (r *AuthRepository) GetAccount(ctx context.Context, id string) (*account.Account, error) {
	var acc account.Account
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&acc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, err
	}
	return &acc, nil
}

// ClearLockout resets the failure counter and drops any lock in one statement.
func (r *AuthRepository) ClearLockout(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&account.Account{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"failed_login_attempts": 0,
			"locked_until":          nil,
			"updated_at":            time.Now(),
		}).Error
}

// IncrementFailedAttempts bumps the counter atomically and returns the new
// value, so two concurrent failures cannot both observe the same count.
func (r *AuthRepository) IncrementFailedAttempts(ctx context.Context, id string) (int, error) {
	var attempts int
	err := r.db.WithContext(ctx).Raw(
		`UPDATE accounts
		 SET failed_login_attempts = failed_login_attempts + 1, updated_at = ?
		 WHERE id = ?
		 RETURNING failed_login_attempts`,
		time.Now(), id,
	).Scan(&attempts).Error
	if err != nil {
		return 0, err
	}
	return attempts, nil
}

func (r *AuthRepository) LockAccount(ctx context.Context, id string, until time.Time) error {
	return r.db.WithContext(ctx).Model(&account.Account{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"locked_until": until,
			"updated_at":   time.Now(),
		}).Error
}

// UpdatePassword also clears lockout state so a redeemed reset token always
// unlocks the account.
func (r *AuthRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.db.WithContext(ctx).Model(&account.Account{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"password_hash":         passwordHash,
			"failed_login_attempts": 0,
			"locked_until":          nil,
			"updated_at":            time.Now(),
		}).Error
}

func (r *AuthRepository) HasBackupCodes(ctx context.Context, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&account.BackupCode{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ConsumeBackupCode deletes the matching code row; a zero rows-affected
// result means the code was wrong or already spent.
func (r *AuthRepository) ConsumeBackupCode(ctx context.Context, userID, code string) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND code = ?", userID, code).
		Delete(&account.BackupCode{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *AuthRepository) ListBackupCodes(ctx context.Context, userID string) ([]string, error) {
	var codes []string
	err := r.db.WithContext(ctx).Model(&account.BackupCode{}).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Pluck("code", &codes).Error
	return codes, err
}

func (r *AuthRepository) ReplaceBackupCodes(ctx context.Context, userID string, codes []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&account.BackupCode{}).Error; err != nil {
			return err
		}
		for _, code := range codes {
			row := account.BackupCode{UserID: userID, Code: code, CreatedAt: time.Now()}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *AuthRepository) HasRoleBindings(ctx context.Context, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&account.UserRole{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count > 0, err
}

// BindRoleByName binds the user to the named role. When several roles share
// the name, the one with the most permissions wins. The insert is an upsert
// so concurrent first logins stay idempotent.
func (r *AuthRepository) BindRoleByName(ctx context.Context, userID, roleName string) error {
	var roleID int64
	err := r.db.WithContext(ctx).Raw(
		`SELECT r.id FROM roles r
		 LEFT JOIN role_permissions rp ON rp.role_id = r.id
		 WHERE r.name = ?
		 GROUP BY r.id
		 ORDER BY COUNT(rp.permission_id) DESC
		 LIMIT 1`,
		roleName,
	).Scan(&roleID).Error
	if err != nil {
		return err
	}
	if roleID == 0 {
		return auth.ErrRoleMissing
	}

	return r.db.WithContext(ctx).Exec(
		`INSERT INTO user_roles (user_id, role_id) VALUES (?, ?)
		 ON CONFLICT (user_id, role_id) DO NOTHING`,
		userID, roleID,
	).Error
}

func (r *AuthRepository) RoleNamesForUser(ctx context.Context, userID string) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).Raw(
		`SELECT DISTINCT r.name FROM roles r
		 JOIN user_roles ur ON ur.role_id = r.id
		 WHERE ur.user_id = ?
		 ORDER BY r.name`,
		userID,
	).Scan(&names).Error
	return names, err
}

func (r *AuthRepository) PermissionCodesForUser(ctx context.Context, userID string) ([]string, error) {
	var codes []string
	err := r.db.WithContext(ctx).Raw(
		`SELECT DISTINCT p.code FROM permissions p
		 JOIN role_permissions rp ON rp.permission_id = p.id
		 JOIN user_roles ur ON ur.role_id = rp.role_id
		 WHERE ur.user_id = ?
		 ORDER BY p.code`,
		userID,
	).Scan(&codes).Error
	return codes, err
}

// HasGrant answers a single permission check through the RBAC chain. The
// wildcard code grants everything.
func (r *AuthRepository) HasGrant(ctx context.Context, userID, permission string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM permissions p
		 JOIN role_permissions rp ON rp.permission_id = p.id
		 JOIN user_roles ur ON ur.role_id = rp.role_id
		 WHERE ur.user_id = ? AND (p.code = ? OR p.code = '*')`,
		userID, permission,
	).Scan(&count).Error
	return count > 0, err
}

// CreateAccount inserts the account, its initial backup code and, when an
// invitation gated the registration, marks the token used, all in one
// transaction.
func (r *AuthRepository) CreateAccount(ctx context.Context, acc *account.Account, invitationToken, backupCode string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		acc.CreatedAt = now
		acc.UpdatedAt = now
		if err := tx.Create(acc).Error; err != nil {
			return err
		}

		if backupCode != "" {
			row := account.BackupCode{UserID: acc.ID, Code: backupCode, CreatedAt: now}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}

		if invitationToken != "" {
			result := tx.Model(&account.Invitation{}).
				Where("token = ? AND is_used = ?", invitationToken, false).
				Update("is_used", true)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return auth.ErrInvitationSpent
			}
		}

		return nil
	})
}

func (r *AuthRepository) TenantExists(ctx context.Context, schoolID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Table("schools").
		Where("id = ?", schoolID).
		Count(&count).Error
	return count > 0, err
}

func (r *AuthRepository) TenantName(ctx context.Context, schoolID int64) (string, error) {
	var name string
	err := r.db.WithContext(ctx).
		Raw(`SELECT name FROM schools WHERE id = ?`, schoolID).
		Scan(&name).Error
	return name, err
}

func (r *AuthRepository) GuardianStudentID(ctx context.Context, email string) (string, error) {
	var studentID string
	err := r.db.WithContext(ctx).
		Raw(`SELECT student_id FROM guardians WHERE parent_email = ? LIMIT 1`, email).
		Scan(&studentID).Error
	return studentID, err
}

func (r *AuthRepository) GetInvitation(ctx context.Context, token string) (*account.Invitation, error) {
	var inv account.Invitation
	err := r.db.WithContext(ctx).Where("token = ?", token).First(&inv).Error
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *AuthRepository) CreateInvitation(ctx context.Context, inv *account.Invitation) error {
	inv.CreatedAt = time.Now()
	return r.db.WithContext(ctx).Create(inv).Error
}

func (r *AuthRepository) CreatePasswordReset(ctx context.Context, reset *account.PasswordReset) error {
	reset.CreatedAt = time.Now()
	return r.db.WithContext(ctx).Create(reset).Error
}

func (r *AuthRepository) GetPasswordReset(ctx context.Context, token string) (*account.PasswordReset, error) {
	var reset account.PasswordReset
	err := r.db.WithContext(ctx).Where("token = ?", token).First(&reset).Error
	if err != nil {
		return nil, err
	}
	return &reset, nil
}

func (r *AuthRepository) DeletePasswordReset(ctx context.Context, token string) error {
	return r.db.WithContext(ctx).Where("token = ?", token).Delete(&account.PasswordReset{}).Error
}
