package rbac

import (
	"context"
	"fmt"
	"log/slog"

	internal "github.com/frahmantamala/school-management/internal"
)

// Service implements role and permission administration. Roles are
// system-wide templates, not per-tenant rows; tenancy applies to accounts
// and their bindings, not to the definitions themselves.
type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// ListRoles returns summaries with display codes and permission counts. The
// root role is visible only to callers who themselves hold it.
func (s *Service) ListRoles(ctx context.Context, callerRole string) ([]RoleSummary, error) {
	exclude := "Root_Super_Admin"
	if callerRole == "Root_Super_Admin" {
		exclude = ""
	}

	roles, err := s.repo.ListRoles(ctx, exclude)
	if err != nil {
		return nil, internal.NewInternalError("failed to list roles", err)
	}
	counts, err := s.repo.RolePermissionCounts(ctx)
	if err != nil {
		return nil, internal.NewInternalError("failed to count role permissions", err)
	}

	summaries := make([]RoleSummary, 0, len(roles))
	for _, role := range roles {
		status := role.Status
		if status == "" {
			status = "Active"
		}
		summaries = append(summaries, RoleSummary{
			ID:              role.ID,
			Code:            fmt.Sprintf("R-%03d", role.ID),
			Name:            role.Name,
			Description:     role.Description,
			Status:          status,
			IsSystem:        role.IsSystem,
			PermissionCount: counts[role.ID],
		})
	}
	return summaries, nil
}

func (s *Service) GetRole(ctx context.Context, roleID int64) (*RoleDetail, error) {
	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return nil, internal.ErrRoleNotFound
	}

	perms, err := s.repo.RolePermissions(ctx, roleID)
	if err != nil {
		return nil, internal.NewInternalError("failed to load role permissions", err)
	}

	infos := make([]PermissionInfo, 0, len(perms))
	for _, p := range perms {
		infos = append(infos, PermissionInfo{ID: p.ID, Code: p.Code, Description: p.Description})
	}

	return &RoleDetail{
		ID:          role.ID,
		Code:        fmt.Sprintf("R-%03d", role.ID),
		Name:        role.Name,
		Description: role.Description,
		Status:      role.Status,
		IsSystem:    role.IsSystem,
		Permissions: infos,
	}, nil
}

func (s *Service) CreateRole(ctx context.Context, dto RoleMutationDTO) (int64, error) {
	if dto.Name == "" {
		return 0, internal.NewValidationError("Role name is required.", internal.ErrCodeValidationFailed)
	}
	status := dto.Status
	if status == "" {
		status = "Active"
	}

	role := &Role{Name: dto.Name, Description: dto.Description, Status: status, IsSystem: false}
	if err := s.repo.CreateRole(ctx, role, dto.Permissions); err != nil {
		return 0, internal.NewInternalError("failed to create role", err)
	}

	s.logger.Info("role created", "role_id", role.ID, "name", role.Name, "permissions", len(dto.Permissions))
	return role.ID, nil
}

// UpdateRole wipes and recreates the role's permission set. System roles
// keep their name; only description, status and permissions may change.
func (s *Service) UpdateRole(ctx context.Context, roleID int64, dto RoleMutationDTO) error {
	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return internal.ErrRoleNotFound
	}
	if role.IsSystem && dto.Name != "" && dto.Name != role.Name {
		return internal.ErrSystemRole
	}

	if dto.Name != "" {
		role.Name = dto.Name
	}
	if dto.Description != "" {
		role.Description = dto.Description
	}
	if dto.Status != "" {
		role.Status = dto.Status
	}

	if err := s.repo.UpdateRole(ctx, role, dto.Permissions); err != nil {
		return internal.NewInternalError("failed to update role", err)
	}

	s.logger.Info("role updated", "role_id", roleID, "permissions", len(dto.Permissions))
	return nil
}

func (s *Service) DeleteRole(ctx context.Context, roleID int64) error {
	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return internal.ErrRoleNotFound
	}
	if role.IsSystem {
		return internal.ErrSystemRole
	}

	if err := s.repo.DeleteRole(ctx, roleID); err != nil {
		return internal.NewInternalError("failed to delete role", err)
	}

	s.logger.Info("role deleted", "role_id", roleID, "name", role.Name)
	return nil
}

func (s *Service) AssignRole(ctx context.Context, dto AssignRoleDTO) error {
	if dto.UserID == "" || dto.RoleID == 0 {
		return internal.NewValidationError("user_id and role_id are required.", internal.ErrCodeValidationFailed)
	}
	if _, err := s.repo.GetRole(ctx, dto.RoleID); err != nil {
		return internal.ErrRoleNotFound
	}
	if err := s.repo.AssignRole(ctx, dto.UserID, dto.RoleID); err != nil {
		return internal.NewInternalError("failed to assign role", err)
	}
	return nil
}

func (s *Service) RevokeRole(ctx context.Context, dto AssignRoleDTO) error {
	if dto.UserID == "" || dto.RoleID == 0 {
		return internal.NewValidationError("user_id and role_id are required.", internal.ErrCodeValidationFailed)
	}
	if err := s.repo.RevokeRole(ctx, dto.UserID, dto.RoleID); err != nil {
		return internal.NewInternalError("failed to revoke role", err)
	}
	return nil
}

// GroupedPermissions returns the catalogue keyed by group name, the shape
// role editors render as sectioned checklists.
func (s *Service) GroupedPermissions(ctx context.Context) (map[string][]PermissionInfo, error) {
	perms, err := s.repo.ListPermissions(ctx)
	if err != nil {
		return nil, internal.NewInternalError("failed to list permissions", err)
	}

	grouped := make(map[string][]PermissionInfo)
	for _, p := range perms {
		grouped[p.GroupName] = append(grouped[p.GroupName], PermissionInfo{
			ID:          p.ID,
			Code:        p.Code,
			Description: p.Description,
		})
	}
	return grouped, nil
}

func (s *Service) ListPermissions(ctx context.Context) ([]PermissionDetail, error) {
	perms, err := s.repo.ListPermissions(ctx)
	if err != nil {
		return nil, internal.NewInternalError("failed to list permissions", err)
	}

	details := make([]PermissionDetail, 0, len(perms))
	for _, p := range perms {
		details = append(details, PermissionDetail{
			ID:          p.ID,
			DisplayCode: fmt.Sprintf("P-%04d", p.ID),
			Code:        p.Code,
			Description: p.Description,
			GroupName:   p.GroupName,
		})
	}
	return details, nil
}

func (s *Service) UpdatePermissionDescription(ctx context.Context, permID int64, description string) error {
	if description == "" {
		return internal.NewValidationError("Description is required.", internal.ErrCodeValidationFailed)
	}
	if err := s.repo.UpdatePermissionDescription(ctx, permID, description); err != nil {
		return internal.ErrPermissionNotFound
	}
	return nil
}
