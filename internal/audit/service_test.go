package audit_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/school-management/internal/audit"
	"github.com/frahmantamala/school-management/internal/core/events"
)

func TestAudit(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Audit Suite")
}

// Mock repository for testing
type mockAuditRepository struct {
	entries     []audit.Entry
	appendErr   error
	openSession *audit.Entry
	openErr     error
	closeErr    error
	closedID    int64
	closedAt    time.Time
	closedMins  int
	nextID      int64
}

func newMockAuditRepository() *mockAuditRepository {
	return &mockAuditRepository{nextID: 1}
}

func (m *mockAuditRepository) Append(ctx context.Context, entry *audit.Entry) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	entry.ID = m.nextID
	m.nextID++
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *mockAuditRepository) LatestOpenSession(ctx context.Context, userID string) (*audit.Entry, error) {
	if m.openErr != nil {
		return nil, m.openErr
	}
	return m.openSession, nil
}

func (m *mockAuditRepository) CloseSession(ctx context.Context, entryID int64, logoutTime time.Time, durationMinutes int) error {
	if m.closeErr != nil {
		return m.closeErr
	}
	m.closedID = entryID
	m.closedAt = logoutTime
	m.closedMins = durationMinutes
	return nil
}

func (m *mockAuditRepository) Recent(ctx context.Context, limit int) ([]audit.Entry, error) {
	if limit > len(m.entries) {
		limit = len(m.entries)
	}
	return m.entries[:limit], nil
}

func (m *mockAuditRepository) RecentByEventTypes(ctx context.Context, eventTypes []string, include bool, limit int) ([]audit.Entry, error) {
	inSet := func(name string) bool {
		for _, t := range eventTypes {
			if t == name {
				return true
			}
		}
		return false
	}
	var out []audit.Entry
	for _, e := range m.entries {
		if inSet(e.EventType) == include {
			out = append(out, e)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

var _ = Describe("AuditService", func() {
	var (
		mockRepo     *mockAuditRepository
		auditService *audit.Service
		ctx          context.Context
	)

	BeforeEach(func() {
		mockRepo = newMockAuditRepository()
		ctx = context.Background()

		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		auditService = audit.NewService(mockRepo, logger)
	})

	Describe("HandleSecurityEvent", func() {
		It("persists the outcome as an append-only entry", func() {
			event := events.NewSecurityEvent("S001", audit.EventLoginSuccess, "Roles: Student")

			err := auditService.HandleSecurityEvent(ctx, event)

			Expect(err).NotTo(HaveOccurred())
			Expect(mockRepo.entries).To(HaveLen(1))
			Expect(mockRepo.entries[0].UserID).To(Equal("S001"))
			Expect(mockRepo.entries[0].EventType).To(Equal(audit.EventLoginSuccess))
			Expect(mockRepo.entries[0].Details).To(Equal("Roles: Student"))
		})

		It("swallows storage failures and counts them", func() {
			mockRepo.appendErr = errors.New("disk full")
			event := events.NewSecurityEvent("S001", audit.EventLoginFailed, "Invalid password")

			err := auditService.HandleSecurityEvent(ctx, event)

			Expect(err).NotTo(HaveOccurred())
			Expect(auditService.WriteFailures()).To(Equal(uint64(1)))

			err = auditService.HandleSecurityEvent(ctx, event)
			Expect(err).NotTo(HaveOccurred())
			Expect(auditService.WriteFailures()).To(Equal(uint64(2)))
		})

		It("ignores payloads that are not security events", func() {
			event := events.BaseEvent{ID: "x", Type: events.EventTypeSecurity, Timestamp: time.Now()}

			err := auditService.HandleSecurityEvent(ctx, event)

			Expect(err).NotTo(HaveOccurred())
			Expect(mockRepo.entries).To(BeEmpty())
		})

		It("receives events published on the bus", func() {
			logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
			bus := events.NewEventBus(logger)
			auditService.RegisterHandlers(bus)

			err := bus.PublishSync(ctx, events.NewSecurityEvent("S001", audit.EventLogout, "User logged out"))

			Expect(err).NotTo(HaveOccurred())
			Expect(mockRepo.entries).To(HaveLen(1))
		})
	})

	Describe("CloseOpenSession", func() {
		It("backfills logout time and whole-minute duration", func() {
			opened := time.Now().Add(-125 * time.Second)
			mockRepo.openSession = &audit.Entry{ID: 7, UserID: "S001", EventType: audit.EventLoginSuccess, Timestamp: opened}

			err := auditService.CloseOpenSession(ctx, "S001")

			Expect(err).NotTo(HaveOccurred())
			Expect(mockRepo.closedID).To(Equal(int64(7)))
			Expect(mockRepo.closedMins).To(Equal(2))
		})

		It("is a no-op when no session is open", func() {
			err := auditService.CloseOpenSession(ctx, "S001")

			Expect(err).NotTo(HaveOccurred())
			Expect(mockRepo.closedID).To(BeZero())
		})

		It("propagates lookup failures", func() {
			mockRepo.openErr = errors.New("db down")

			err := auditService.CloseOpenSession(ctx, "S001")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("compliance split", func() {
		BeforeEach(func() {
			now := time.Now()
			for _, e := range []audit.Entry{
				{UserID: "S001", EventType: audit.EventLoginSuccess, Timestamp: now},
				{UserID: "S001", EventType: audit.EventUnauthorized, Timestamp: now},
				{UserID: "admin", EventType: audit.EventSecurityUpdate, Timestamp: now},
				{UserID: "S001", EventType: audit.EventLogout, Timestamp: now},
				{UserID: "S002", EventType: audit.EventAccountLocked, Timestamp: now},
			} {
				entry := e
				Expect(mockRepo.Append(ctx, &entry)).To(Succeed())
			}
		})

		It("keeps session lifecycle events on the access side", func() {
			entries, err := auditService.ComplianceAccessLogs(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(2))
			for _, e := range entries {
				Expect(audit.AccessEvents()).To(ContainElement(e.EventType))
			}
		})

		It("keeps everything else on the audit side", func() {
			entries, err := auditService.ComplianceAuditLogs(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(3))
			for _, e := range entries {
				Expect(audit.AccessEvents()).NotTo(ContainElement(e.EventType))
			}
		})
	})

	Describe("RetentionPolicies", func() {
		It("publishes the documented windows", func() {
			policy := auditService.RetentionPolicies()

			Expect(policy.AuditLogsDays).To(Equal(30))
			Expect(policy.AccessLogsDays).To(Equal(30))
			Expect(policy.StudentDataYears).To(Equal(7))
		})
	})
})
