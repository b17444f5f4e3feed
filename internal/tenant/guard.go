package tenant

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// ScopeGuard resolves a caller's visibility window from the accounts table.
// It reads directly over sqlx so middleware can use it without dragging the
// ORM into the hot path.
type ScopeGuard struct {
	db *sqlx.DB
}

func NewScopeGuard(db *sqlx.DB) *ScopeGuard {
	return &ScopeGuard{db: db}
}

type callerRow struct {
	SchoolID     int64 `db:"school_id"`
	Grade        int   `db:"grade"`
	IsSuperAdmin bool  `db:"is_super_admin"`
}

// ResolveScope returns the tenant and grade the caller may read. A super
// admin asking for a specific school gets that school; everyone else is
// pinned to their own, whatever the request said. Unknown callers fall back
// to the default tenant with no elevated access.
func (g *ScopeGuard) ResolveScope(ctx context.Context, callerID string, requestedSchoolID int64) (Scope, error) {
	var row callerRow
	err := g.db.GetContext(ctx, &row,
		g.db.Rebind(`SELECT school_id, grade, is_super_admin FROM accounts WHERE id = ?`), callerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Scope{SchoolID: DefaultSchoolID}, nil
		}
		return Scope{}, err
	}

	scope := Scope{
		SchoolID:     row.SchoolID,
		Grade:        row.Grade,
		IsSuperAdmin: row.IsSuperAdmin,
	}
	if row.IsSuperAdmin && requestedSchoolID > 0 {
		scope.SchoolID = requestedSchoolID
	}
	return scope, nil
}

// IsSuperAdmin answers the single-flag check used by school management.
func (g *ScopeGuard) IsSuperAdmin(ctx context.Context, callerID string) (bool, error) {
	var isSuper bool
	err := g.db.GetContext(ctx, &isSuper,
		g.db.Rebind(`SELECT is_super_admin FROM accounts WHERE id = ?`), callerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return isSuper, nil
}
