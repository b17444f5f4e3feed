package audit

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/school-management/internal/transport"
	"github.com/frahmantamala/school-management/pkg/logger"
)

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
	}
}

func (h *Handler) RecentLogs(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Service.RecentLogs(r.Context())
	if err != nil {
		h.Logger.Error("RecentLogs: service error", "error", err)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, entries)
}

func (h *Handler) ComplianceAuditLogs(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Service.ComplianceAuditLogs(r.Context())
	if err != nil {
		h.Logger.Error("ComplianceAuditLogs: service error", "error", err)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, entries)
}

func (h *Handler) ComplianceAccessLogs(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Service.ComplianceAccessLogs(r.Context())
	if err != nil {
		h.Logger.Error("ComplianceAccessLogs: service error", "error", err)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, entries)
}

func (h *Handler) RetentionPolicies(w http.ResponseWriter, r *http.Request) {
	h.WriteJSON(w, http.StatusOK, h.Service.RetentionPolicies())
}
