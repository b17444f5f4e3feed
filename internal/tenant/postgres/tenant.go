package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/frahmantamala/school-management/internal/tenant"
)

// TenantRepository implements tenant.RepositoryAPI using GORM
type TenantRepository struct {
	db *gorm.DB
}

// NewTenantRepository creates a new tenant repository
func NewTenantRepository(db *gorm.DB) tenant.RepositoryAPI {
	return &TenantRepository{db: db}
}

func (r *TenantRepository) ListSchools(ctx context.Context) ([]tenant.School, error) {
	var schools []tenant.School
	err := r.db.WithContext(ctx).Order("id").Find(&schools).Error
	return schools, err
}

func (r *TenantRepository) CreateSchool(ctx context.Context, school *tenant.School) error {
	return r.db.WithContext(ctx).Create(school).Error
}

func (r *TenantRepository) UpdateSchool(ctx context.Context, school *tenant.School) (int64, error) {
	result := r.db.WithContext(ctx).Model(&tenant.School{}).
		Where("id = ?", school.ID).
		Updates(map[string]interface{}{
			"name":          school.Name,
			"address":       school.Address,
			"contact_email": school.ContactEmail,
		})
	return result.RowsAffected, result.Error
}

// DeleteSchool removes the tenant row; dependent rows cascade via FKs.
func (r *TenantRepository) DeleteSchool(ctx context.Context, schoolID int64) (int64, error) {
	result := r.db.WithContext(ctx).Where("id = ?", schoolID).Delete(&tenant.School{})
	return result.RowsAffected, result.Error
}
