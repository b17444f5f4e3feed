package auth

import (
	"context"
	"fmt"
	"log/slog"

	internal "github.com/frahmantamala/school-management/internal"
	"github.com/frahmantamala/school-management/internal/core/datamodel/account"
	"github.com/frahmantamala/school-management/internal/core/events"
)

// PermissionResolver authorizes a single requested action for a caller.
type PermissionResolver interface {
	HasPermission(ctx context.Context, userID, permission string) error
	EffectivePermissions(ctx context.Context, userID string) (roles []string, permissions []string, err error)
}

// PolicyProvider is one source of truth consulted by the resolver. Providers
// are evaluated in a fixed precedence order; the first grant wins.
type PolicyProvider interface {
	Grants(ctx context.Context, acc *account.Account, permission string) (bool, error)
}

// SuperAdminProvider trivially grants everything to accounts with the
// super-admin flag or a root legacy role.
type SuperAdminProvider struct{}

func NewSuperAdminProvider() *SuperAdminProvider {
	return &SuperAdminProvider{}
}

func (p *SuperAdminProvider) Grants(ctx context.Context, acc *account.Account, permission string) (bool, error) {
	if acc.IsSuperAdmin {
		return true, nil
	}
	return acc.LegacyRole == RoleRootSuper || acc.LegacyRole == RoleSuperAdmin, nil
}

// DBGrantProvider resolves through the RBAC tables: account -> user_roles ->
// roles -> role_permissions -> permissions, honoring the wildcard code.
type DBGrantProvider struct {
	repo RepositoryAPI
}

func NewDBGrantProvider(repo RepositoryAPI) *DBGrantProvider {
	return &DBGrantProvider{repo: repo}
}

func (p *DBGrantProvider) Grants(ctx context.Context, acc *account.Account, permission string) (bool, error) {
	return p.repo.HasGrant(ctx, acc.ID, permission)
}

// Resolver evaluates the super-admin override, then the DB grants, then the
// legacy fallback table. A denial is audited before it is returned.
type Resolver struct {
	repo      RepositoryAPI
	providers []PolicyProvider
	publisher EventPublisher
	logger    *slog.Logger
}

func NewResolver(repo RepositoryAPI, publisher EventPublisher, logger *slog.Logger) *Resolver {
	return &Resolver{
		repo: repo,
		providers: []PolicyProvider{
			NewSuperAdminProvider(),
			NewDBGrantProvider(repo),
			NewLegacyRoleProvider(),
		},
		publisher: publisher,
		logger:    logger,
	}
}

func (r *Resolver) HasPermission(ctx context.Context, userID, permission string) error {
	if userID == "" {
		return internal.NewUnauthorizedError("Authentication required", internal.ErrCodeInvalidCredentials)
	}

	acc, err := r.repo.GetAccount(ctx, userID)
	if err != nil {
		return internal.NewUnauthorizedError("User not found", internal.ErrCodeAccountNotFound)
	}

	for _, provider := range r.providers {
		granted, err := provider.Grants(ctx, acc, permission)
		if err != nil {
			return internal.NewInternalError("permission lookup failed", err)
		}
		if granted {
			return nil
		}
	}

	r.recordDenial(ctx, userID, permission)
	return internal.NewPermissionDeniedError(permission)
}

// EffectivePermissions returns the distinct union of permission codes across
// the account's bound roles; with zero bindings the legacy role name stands
// in as the roles list with no permissions.
func (r *Resolver) EffectivePermissions(ctx context.Context, userID string) ([]string, []string, error) {
	acc, err := r.repo.GetAccount(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	roles, err := r.repo.RoleNamesForUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if len(roles) == 0 {
		return []string{acc.LegacyRole}, nil, nil
	}

	perms, err := r.repo.PermissionCodesForUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return roles, perms, nil
}

func (r *Resolver) recordDenial(ctx context.Context, userID, permission string) {
	event := events.NewSecurityEvent(userID, "Unauthorized Access", fmt.Sprintf("Missing permission: %s", permission))
	if err := r.publisher.PublishSync(ctx, event); err != nil {
		r.logger.Error("failed to record unauthorized access", "user_id", userID, "permission", permission, "error", err)
	}
}
