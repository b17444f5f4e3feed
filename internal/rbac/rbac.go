package rbac

import (
	"context"
)

// Role is a named permission bundle. System roles are seeded templates and
// cannot be renamed or deleted; custom roles are tenant-created.
type Role struct {
	ID          int64  `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name        string `gorm:"column:name;not null;uniqueIndex" json:"name"`
	Description string `gorm:"column:description" json:"description"`
	Status      string `gorm:"column:status;default:Active" json:"status"`
	IsSystem    bool   `gorm:"column:is_system;not null;default:false" json:"is_system"`
}

func (Role) TableName() string {
	return "roles"
}

// Permission is a grantable capability. The code "*" is the wildcard that
// grants everything; it is seeded only onto the root role.
type Permission struct {
	ID          int64  `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Code        string `gorm:"column:code;not null;uniqueIndex" json:"code"`
	Description string `gorm:"column:description" json:"description"`
	GroupName   string `gorm:"column:group_name" json:"group_name"`
}

func (Permission) TableName() string {
	return "permissions"
}

type RolePermission struct {
	RoleID       int64 `gorm:"column:role_id;primaryKey"`
	PermissionID int64 `gorm:"column:permission_id;primaryKey"`
}

func (RolePermission) TableName() string {
	return "role_permissions"
}

// RoleSummary is the list-view shape with the display code and a permission
// count instead of the full permission set.
type RoleSummary struct {
	ID              int64  `json:"id"`
	Code            string `json:"code"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	Status          string `json:"status"`
	IsSystem        bool   `json:"is_system"`
	PermissionCount int    `json:"permission_count"`
}

// RoleDetail carries the full permission set for one role.
type RoleDetail struct {
	ID          int64            `json:"id"`
	Code        string           `json:"code"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Status      string           `json:"status"`
	IsSystem    bool             `json:"is_system"`
	Permissions []PermissionInfo `json:"permissions"`
}

type PermissionInfo struct {
	ID          int64  `json:"id"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

// PermissionDetail is the flat list-view shape with the display code.
type PermissionDetail struct {
	ID          int64  `json:"id"`
	DisplayCode string `json:"display_code"`
	Code        string `json:"code"`
	Description string `json:"description"`
	GroupName   string `json:"group_name"`
}

type RoleMutationDTO struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	Permissions []string `json:"permissions"`
}

type AssignRoleDTO struct {
	UserID string `json:"user_id"`
	RoleID int64  `json:"role_id"`
}

// ServiceAPI is what the HTTP layer sees of role and permission management.
type ServiceAPI interface {
	ListRoles(ctx context.Context, callerRole string) ([]RoleSummary, error)
	GetRole(ctx context.Context, roleID int64) (*RoleDetail, error)
	CreateRole(ctx context.Context, dto RoleMutationDTO) (int64, error)
	UpdateRole(ctx context.Context, roleID int64, dto RoleMutationDTO) error
	DeleteRole(ctx context.Context, roleID int64) error
	AssignRole(ctx context.Context, dto AssignRoleDTO) error
	RevokeRole(ctx context.Context, dto AssignRoleDTO) error
	GroupedPermissions(ctx context.Context) (map[string][]PermissionInfo, error)
	ListPermissions(ctx context.Context) ([]PermissionDetail, error)
	UpdatePermissionDescription(ctx context.Context, permID int64, description string) error
}

// RepositoryAPI is the persistence surface for the RBAC tables.
type RepositoryAPI interface {
	ListRoles(ctx context.Context, excludeName string) ([]Role, error)
	RolePermissionCounts(ctx context.Context) (map[int64]int, error)
	GetRole(ctx context.Context, roleID int64) (*Role, error)
	RolePermissions(ctx context.Context, roleID int64) ([]Permission, error)
	CreateRole(ctx context.Context, role *Role, permissionCodes []string) error
	UpdateRole(ctx context.Context, role *Role, permissionCodes []string) error
	DeleteRole(ctx context.Context, roleID int64) error
	AssignRole(ctx context.Context, userID string, roleID int64) error
	RevokeRole(ctx context.Context, userID string, roleID int64) error
	ListPermissions(ctx context.Context) ([]Permission, error)
	UpdatePermissionDescription(ctx context.Context, permID int64, description string) error
}
