package tenant

import (
	"context"
	"time"

	"github.com/frahmantamala/school-management/internal/core/events"
)

// DefaultSchoolID is the catch-all tenant every unaffiliated account belongs
// to. It cannot be deleted.
const DefaultSchoolID int64 = 1

// School is one tenant. Accounts, invitations and roster data all hang off
// its id.
type School struct {
	ID           int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name         string    `gorm:"column:name;not null;uniqueIndex" json:"name"`
	Address      string    `gorm:"column:address" json:"address"`
	ContactEmail string    `gorm:"column:contact_email" json:"contact_email"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
}

func (School) TableName() string {
	return "schools"
}

// Scope is the resolved visibility window for one caller: which tenant they
// may read and, for teachers, which grade. Grade zero means the caller is a
// head teacher and sees the whole tenant.
type Scope struct {
	SchoolID     int64
	Grade        int
	IsSuperAdmin bool
}

// FullTenant reports whether the scope spans every grade in the school.
func (s Scope) FullTenant() bool {
	return s.IsSuperAdmin || s.Grade == 0
}

type SchoolMutationDTO struct {
	Name         string `json:"name"`
	Address      string `json:"address"`
	ContactEmail string `json:"contact_email"`
}

// ScopeResolver derives the caller's visibility window. Only super admins
// may redirect it onto another tenant.
type ScopeResolver interface {
	ResolveScope(ctx context.Context, callerID string, requestedSchoolID int64) (Scope, error)
}

// ServiceAPI is what the HTTP layer sees of school management.
type ServiceAPI interface {
	ListSchools(ctx context.Context) ([]School, error)
	CreateSchool(ctx context.Context, callerID string, dto SchoolMutationDTO) error
	UpdateSchool(ctx context.Context, callerID string, schoolID int64, dto SchoolMutationDTO) error
	DeleteSchool(ctx context.Context, callerID string, schoolID int64) error
}

// RepositoryAPI persists schools.
type RepositoryAPI interface {
	ListSchools(ctx context.Context) ([]School, error)
	CreateSchool(ctx context.Context, school *School) error
	UpdateSchool(ctx context.Context, school *School) (int64, error)
	DeleteSchool(ctx context.Context, schoolID int64) (int64, error)
}

type EventPublisher interface {
	PublishSync(ctx context.Context, event events.Event) error
}
