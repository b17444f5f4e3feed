package roster

import (
	"log/slog"
	"net/http"

	internal "github.com/frahmantamala/school-management/internal"
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

func (h *Handler) TeacherOverview(w http.ResponseWriter, r *http.Request) {
	callerID := internal.UserIDFromContext(r.Context())
	requestedSchool := internal.TenantOverrideFromContext(r.Context())

	overview, err := h.Service.TeacherOverview(r.Context(), callerID, requestedSchool)
	if err != nil {
		h.Logger.Error("TeacherOverview: service error", "error", err, "caller", callerID)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, overview)
}
