package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/frahmantamala/school-management/internal/core/events"
)

const recentLogLimit = 100

// Service is the audit sink. It subscribes to the security topic on the
// event bus and persists every outcome; a storage failure is counted and
// logged but never propagated, so the trail can degrade without taking
// authentication down with it.
type Service struct {
	repo          RepositoryAPI
	logger        *slog.Logger
	writeFailures atomic.Uint64
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// RegisterHandlers subscribes the sink to the security topic.
func (s *Service) RegisterHandlers(bus *events.EventBus) {
	bus.Subscribe(events.EventTypeSecurity, s.HandleSecurityEvent)
}

// HandleSecurityEvent persists one security outcome. It always returns nil:
// the publisher runs synchronously before the HTTP response, and a broken
// trail must not turn into login failures.
func (s *Service) HandleSecurityEvent(ctx context.Context, event events.Event) error {
	sec, ok := event.(events.SecurityEvent)
	if !ok {
		s.logger.Warn("unexpected payload on security topic", "event_id", event.EventID(), "type", fmt.Sprintf("%T", event))
		return nil
	}

	entry := &Entry{
		UserID:    sec.UserID,
		EventType: sec.EventName,
		Timestamp: sec.OccurredAt(),
		Details:   sec.Details,
	}
	if err := s.repo.Append(ctx, entry); err != nil {
		s.writeFailures.Add(1)
		s.logger.Error("audit write failed",
			"user_id", sec.UserID,
			"event_name", sec.EventName,
			"write_failures", s.writeFailures.Load(),
			"error", err)
	}
	return nil
}

// CloseOpenSession backfills logout time and whole-minute duration onto the
// most recent Login Success row that has no logout yet. A user with no open
// session is not an error.
func (s *Service) CloseOpenSession(ctx context.Context, userID string) error {
	open, err := s.repo.LatestOpenSession(ctx, userID)
	if err != nil {
		return err
	}
	if open == nil {
		return nil
	}

	now := time.Now()
	duration := int(now.Sub(open.Timestamp).Seconds() / 60)
	if err := s.repo.CloseSession(ctx, open.ID, now, duration); err != nil {
		return err
	}

	s.logger.Info("session closed", "user_id", userID, "duration_minutes", duration)
	return nil
}

func (s *Service) RecentLogs(ctx context.Context) ([]Entry, error) {
	return s.repo.Recent(ctx, recentLogLimit)
}

// ComplianceAuditLogs returns administrative events only; session lifecycle
// noise lives on the access side of the split.
func (s *Service) ComplianceAuditLogs(ctx context.Context) ([]Entry, error) {
	return s.repo.RecentByEventTypes(ctx, AccessEvents(), false, recentLogLimit)
}

// ComplianceAccessLogs returns only session lifecycle events.
func (s *Service) ComplianceAccessLogs(ctx context.Context) ([]Entry, error) {
	return s.repo.RecentByEventTypes(ctx, AccessEvents(), true, recentLogLimit)
}

func (s *Service) RetentionPolicies() RetentionPolicy {
	return DefaultRetentionPolicy()
}

// WriteFailures exposes the degraded-trail counter for the health endpoint.
func (s *Service) WriteFailures() uint64 {
	return s.writeFailures.Load()
}
