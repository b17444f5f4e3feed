package tenant

import (
	"context"
	"log/slog"
	"time"

	internal "github.com/frahmantamala/school-management/internal"
	"github.com/frahmantamala/school-management/internal/core/events"
)

// SuperAdminChecker is the slice of the scope guard school management needs.
type SuperAdminChecker interface {
	IsSuperAdmin(ctx context.Context, callerID string) (bool, error)
}

// Service implements school management. Listing is open to authenticated
// staff; mutations are reserved for super admins and every denied attempt
// lands in the audit trail.
type Service struct {
	repo      RepositoryAPI
	guard     SuperAdminChecker
	publisher EventPublisher
	logger    *slog.Logger
}

func NewService(repo RepositoryAPI, guard SuperAdminChecker, publisher EventPublisher, logger *slog.Logger) *Service {
	return &Service{repo: repo, guard: guard, publisher: publisher, logger: logger}
}

func (s *Service) ListSchools(ctx context.Context) ([]School, error) {
	schools, err := s.repo.ListSchools(ctx)
	if err != nil {
		return nil, internal.NewInternalError("failed to list schools", err)
	}
	return schools, nil
}

func (s *Service) CreateSchool(ctx context.Context, callerID string, dto SchoolMutationDTO) error {
	if err := s.requireSuperAdmin(ctx, callerID, "Attempted to create school without Super Admin access"); err != nil {
		return err
	}
	if dto.Name == "" {
		return internal.NewValidationError("School name is required.", internal.ErrCodeValidationFailed)
	}

	school := &School{
		Name:         dto.Name,
		Address:      dto.Address,
		ContactEmail: dto.ContactEmail,
		CreatedAt:    time.Now(),
	}
	if err := s.repo.CreateSchool(ctx, school); err != nil {
		return internal.NewConflictError("School name already exists.", internal.ErrCodeDuplicateTenant).WithCause(err)
	}

	s.logger.Info("school created", "school_id", school.ID, "name", school.Name, "caller", callerID)
	return nil
}

func (s *Service) UpdateSchool(ctx context.Context, callerID string, schoolID int64, dto SchoolMutationDTO) error {
	if err := s.requireSuperAdmin(ctx, callerID, "Attempted to update school without Super Admin access"); err != nil {
		return err
	}
	if dto.Name == "" {
		return internal.NewValidationError("School name is required.", internal.ErrCodeValidationFailed)
	}

	school := &School{
		ID:           schoolID,
		Name:         dto.Name,
		Address:      dto.Address,
		ContactEmail: dto.ContactEmail,
	}
	affected, err := s.repo.UpdateSchool(ctx, school)
	if err != nil {
		return internal.NewConflictError("School name already exists.", internal.ErrCodeDuplicateTenant).WithCause(err)
	}
	if affected == 0 {
		return internal.ErrTenantNotFound
	}
	return nil
}

func (s *Service) DeleteSchool(ctx context.Context, callerID string, schoolID int64) error {
	if schoolID == DefaultSchoolID {
		return internal.ErrDefaultTenant
	}
	if err := s.requireSuperAdmin(ctx, callerID, "Attempted to delete school without Super Admin access"); err != nil {
		return err
	}

	affected, err := s.repo.DeleteSchool(ctx, schoolID)
	if err != nil {
		return internal.NewInternalError("failed to delete school", err)
	}
	if affected == 0 {
		return internal.ErrTenantNotFound
	}

	s.logger.Info("school deleted", "school_id", schoolID, "caller", callerID)
	return nil
}

func (s *Service) requireSuperAdmin(ctx context.Context, callerID, denialDetails string) error {
	if callerID == "" {
		return internal.NewUnauthorizedError("Authentication required", internal.ErrCodeInvalidCredentials)
	}

	isSuper, err := s.guard.IsSuperAdmin(ctx, callerID)
	if err != nil {
		return internal.NewInternalError("failed to check caller privileges", err)
	}
	if !isSuper {
		event := events.NewSecurityEvent(callerID, "Unauthorized Access", denialDetails)
		if pubErr := s.publisher.PublishSync(ctx, event); pubErr != nil {
			s.logger.Error("failed to record unauthorized access", "caller", callerID, "error", pubErr)
		}
		return internal.NewForbiddenError("Permission denied. SUPER ADMIN ONLY.", internal.ErrCodePermissionDenied)
	}
	return nil
}
