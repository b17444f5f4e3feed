package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/frahmantamala/school-management/internal/audit"
)

// AuditRepository implements audit.RepositoryAPI using GORM
type AuditRepository struct {
	db *gorm.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *gorm.DB) audit.RepositoryAPI {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Append(ctx context.Context, entry *audit.Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

// LatestOpenSession finds the newest Login Success row without a logout time;
// nil when the user has no open session.
func (r *AuditRepository) LatestOpenSession(ctx context.Context, userID string) (*audit.Entry, error) {
	var entry audit.Entry
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND event_type = ? AND logout_time IS NULL", userID, audit.EventLoginSuccess).
		Order("id DESC").
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *AuditRepository) CloseSession(ctx context.Context, entryID int64, logoutTime time.Time, durationMinutes int) error {
	return r.db.WithContext(ctx).Model(&audit.Entry{}).
		Where("id = ?", entryID).
		Updates(map[string]interface{}{
			"logout_time":      logoutTime,
			"duration_minutes": durationMinutes,
		}).Error
}

func (r *AuditRepository) Recent(ctx context.Context, limit int) ([]audit.Entry, error) {
	var entries []audit.Entry
	err := r.db.WithContext(ctx).
		Order("timestamp DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// RecentByEventTypes filters on the given names; include selects rows whose
// event type is IN the set, otherwise NOT IN.
func (r *AuditRepository) RecentByEventTypes(ctx context.Context, eventTypes []string, include bool, limit int) ([]audit.Entry, error) {
	query := r.db.WithContext(ctx)
	if include {
		query = query.Where("event_type IN ?", eventTypes)
	} else {
		query = query.Where("event_type NOT IN ?", eventTypes)
	}

	var entries []audit.Entry
	err := query.Order("timestamp DESC").Limit(limit).Find(&entries).Error
	return entries, err
}
