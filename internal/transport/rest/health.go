package rest

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
)

type HealthResponse struct {
	Status     HealthStatus          `json:"status"`
	CheckedAt  time.Time             `json:"checked_at"`
	Components map[string]CheckEntry `json:"components"`
}

type CheckEntry struct {
	Status     HealthStatus   `json:"status"`
	Message    string         `json:"message,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	CheckedAt  time.Time      `json:"checked_at"`
	DurationMs int64          `json:"duration_ms"`
}

// AuditHealth reports how many audit writes have been dropped since start.
type AuditHealth interface {
	WriteFailures() uint64
}

type HealthHandler struct {
	db    *sql.DB
	audit AuditHealth
}

func NewHealthHandler(db *sql.DB, audit AuditHealth) *HealthHandler {
	return &HealthHandler{db: db, audit: audit}
}

// HandleLiveness → just says service is up
func (h *HealthHandler) pingHandler(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "OK"}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// HandleReadiness → checks DB connection and audit trail state. A degraded
// trail (writes being dropped) keeps the service serving but flags it.
func (h *HealthHandler) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	start := time.Now()
	err := h.db.PingContext(ctx)

	dbEntry := CheckEntry{
		Status:     HealthHealthy,
		CheckedAt:  time.Now(),
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		dbEntry.Status = HealthUnhealthy
		dbEntry.Message = err.Error()
	}

	auditEntry := CheckEntry{
		Status:    HealthHealthy,
		CheckedAt: time.Now(),
	}
	if h.audit != nil {
		if failures := h.audit.WriteFailures(); failures > 0 {
			auditEntry.Status = HealthDegraded
			auditEntry.Message = fmt.Sprintf("%d audit writes dropped since start", failures)
			auditEntry.Details = map[string]any{"write_failures": failures}
		}
	}

	overall := dbEntry.Status
	if overall == HealthHealthy && auditEntry.Status == HealthDegraded {
		overall = HealthDegraded
	}

	resp := HealthResponse{
		Status:    overall,
		CheckedAt: time.Now(),
		Components: map[string]CheckEntry{
			"postgres":    dbEntry,
			"audit_trail": auditEntry,
		},
	}

	statusCode := http.StatusOK
	if overall == HealthUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}
