package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/frahmantamala/school-management/internal/rbac"
)

// RBACRepository implements rbac.RepositoryAPI using GORM
type RBACRepository struct {
	db *gorm.DB
}

// NewRBACRepository creates a new rbac repository
func NewRBACRepository(db *gorm.DB) rbac.RepositoryAPI {
	return &RBACRepository{db: db}
}

func (r *RBACRepository) ListRoles(ctx context.Context, excludeName string) ([]rbac.Role, error) {
	query := r.db.WithContext(ctx).Order("id")
	if excludeName != "" {
		query = query.Where("name != ?", excludeName)
	}

	var roles []rbac.Role
	err := query.Find(&roles).Error
	return roles, err
}

func (r *RBACRepository) RolePermissionCounts(ctx context.Context) (map[int64]int, error) {
	type pair struct {
		RoleID int64
		Count  int
	}
	var rows []pair
	err := r.db.WithContext(ctx).Raw(
		`SELECT role_id, COUNT(permission_id) AS count
		 FROM role_permissions
		 GROUP BY role_id`,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[int64]int, len(rows))
	for _, row := range rows {
		counts[row.RoleID] = row.Count
	}
	return counts, nil
}

func (r *RBACRepository) GetRole(ctx context.Context, roleID int64) (*rbac.Role, error) {
	var role rbac.Role
	err := r.db.WithContext(ctx).Where("id = ?", roleID).First(&role).Error
	if err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *RBACRepository) RolePermissions(ctx context.Context, roleID int64) ([]rbac.Permission, error) {
	var perms []rbac.Permission
	err := r.db.WithContext(ctx).Raw(
		`SELECT p.id, p.code, p.description, p.group_name
		 FROM permissions p
		 JOIN role_permissions rp ON rp.permission_id = p.id
		 WHERE rp.role_id = ?
		 ORDER BY p.id`,
		roleID,
	).Scan(&perms).Error
	return perms, err
}

func (r *RBACRepository) CreateRole(ctx context.Context, role *rbac.Role, permissionCodes []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(role).Error; err != nil {
			return err
		}
		return attachPermissions(tx, role.ID, permissionCodes)
	})
}

// UpdateRole rewrites the role row and its permission set in one
// transaction; the previous set is wiped.
func (r *RBACRepository) UpdateRole(ctx context.Context, role *rbac.Role, permissionCodes []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(role).Error; err != nil {
			return err
		}
		if err := tx.Where("role_id = ?", role.ID).Delete(&rbac.RolePermission{}).Error; err != nil {
			return err
		}
		return attachPermissions(tx, role.ID, permissionCodes)
	})
}

func attachPermissions(tx *gorm.DB, roleID int64, codes []string) error {
	for _, code := range codes {
		var permID int64
		if err := tx.Raw(`SELECT id FROM permissions WHERE code = ?`, code).Scan(&permID).Error; err != nil {
			return err
		}
		if permID == 0 {
			continue
		}
		binding := rbac.RolePermission{RoleID: roleID, PermissionID: permID}
		if err := tx.Create(&binding).Error; err != nil {
			return err
		}
	}
	return nil
}

// DeleteRole removes the role and its bindings; FKs cascade the rest.
func (r *RBACRepository) DeleteRole(ctx context.Context, roleID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("role_id = ?", roleID).Delete(&rbac.RolePermission{}).Error; err != nil {
			return err
		}
		if err := tx.Exec(`DELETE FROM user_roles WHERE role_id = ?`, roleID).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", roleID).Delete(&rbac.Role{}).Error
	})
}

func (r *RBACRepository) AssignRole(ctx context.Context, userID string, roleID int64) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO user_roles (user_id, role_id) VALUES (?, ?)
		 ON CONFLICT (user_id, role_id) DO NOTHING`,
		userID, roleID,
	).Error
}

func (r *RBACRepository) RevokeRole(ctx context.Context, userID string, roleID int64) error {
	return r.db.WithContext(ctx).Exec(
		`DELETE FROM user_roles WHERE user_id = ? AND role_id = ?`,
		userID, roleID,
	).Error
}

func (r *RBACRepository) ListPermissions(ctx context.Context) ([]rbac.Permission, error) {
	var perms []rbac.Permission
	err := r.db.WithContext(ctx).Order("group_name, code").Find(&perms).Error
	return perms, err
}

func (r *RBACRepository) UpdatePermissionDescription(ctx context.Context, permID int64, description string) error {
	result := r.db.WithContext(ctx).Model(&rbac.Permission{}).
		Where("id = ?", permID).
		Update("description", description)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
