package auth

import (
	"context"

	"github.com/frahmantamala/school-management/internal/core/datamodel/account"
)

// legacyRolePermissions is the fixed fallback table for accounts whose role
// data predates the RBAC tables. Kept in its own provider so it can be
// retired once every account has user_roles rows.
var legacyRolePermissions = map[string][]string{
	"Admin": {
		"view_dashboard", "manage_users", "manage_invitations",
		"view_all_grades", "edit_all_grades",
		"schedule_active_class", "manage_groups", "view_audit_logs",
	},
	"Principal": {
		"view_dashboard", "manage_users", "manage_invitations",
		"view_all_grades", "edit_all_grades",
		"schedule_active_class", "manage_groups", "view_audit_logs",
	},
	"Teacher": {
		"view_dashboard", "invite_students",
		"view_all_grades", "edit_all_grades",
		"schedule_active_class", "manage_groups",
	},
	"Student": {
		"view_dashboard", "view_own_grades", "join_active_class",
	},
	"Parent": {
		"view_dashboard", "view_child_grades",
	},
}

// LegacyRolePermissions exposes a copy of the fallback table for the
// compatibility endpoint that frontends still read.
func LegacyRolePermissions() map[string][]string {
	out := make(map[string][]string, len(legacyRolePermissions))
	for role, perms := range legacyRolePermissions {
		cp := make([]string, len(perms))
		copy(cp, perms)
		out[role] = cp
	}
	return out
}

// LegacyRoleProvider grants permissions from the hardcoded table keyed by the
// account's legacy single-role field.
type LegacyRoleProvider struct{}

func NewLegacyRoleProvider() *LegacyRoleProvider {
	return &LegacyRoleProvider{}
}

func (p *LegacyRoleProvider) Grants(ctx context.Context, acc *account.Account, permission string) (bool, error) {
	perms, ok := legacyRolePermissions[acc.LegacyRole]
	if !ok {
		return false, nil
	}
	for _, perm := range perms {
		if perm == permission {
			return true, nil
		}
	}
	return false, nil
}
