package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

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

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("Login: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.Service.Login(r.Context(), dto)
	if err != nil {
		h.handleError(w, "Login", err)
		return
	}

	if result.Requires2FA {
		h.Logger.Info("Login: second factor required", "user_id", result.UserID)
		h.WriteJSON(w, http.StatusOK, result)
		return
	}

	h.Logger.Info("Login: authenticated", "user_id", result.UserID, "roles", result.Roles)
	h.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) Verify2FA(w http.ResponseWriter, r *http.Request) {
	var dto Verify2FADTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("Verify2FA: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.Service.VerifyBackupCode(r.Context(), dto)
	if err != nil {
		h.handleError(w, "Verify2FA", err)
		return
	}

	h.Logger.Info("Verify2FA: authenticated", "user_id", result.UserID)
	h.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var dto RegisterDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("Register: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.Service.Register(r.Context(), dto); err != nil {
		h.handleError(w, "Register", err)
		return
	}

	h.Logger.Info("Register: account created", "user_id", dto.Email, "role", dto.Role)
	h.WriteJSON(w, http.StatusCreated, map[string]string{"message": "Registration successful. Please login."})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var dto LogoutDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("Logout: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if dto.UserID == "" {
		dto.UserID = internal.UserIDFromContext(r.Context())
	}

	if err := h.Service.Logout(r.Context(), dto); err != nil {
		h.handleError(w, "Logout", err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var dto ForgotPasswordDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("ForgotPassword: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.Service.ForgotPassword(r.Context(), dto)
	if err != nil {
		h.handleError(w, "ForgotPassword", err)
		return
	}

	h.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var dto ResetPasswordDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("ResetPassword: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.Service.ResetPassword(r.Context(), dto); err != nil {
		h.handleError(w, "ResetPassword", err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]string{"message": "Password updated. Please login."})
}

func (h *Handler) GenerateInvitation(w http.ResponseWriter, r *http.Request) {
	callerID := internal.UserIDFromContext(r.Context())
	if callerID == "" {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var dto InvitationDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("GenerateInvitation: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.Service.GenerateInvitation(r.Context(), callerID, dto)
	if err != nil {
		h.handleError(w, "GenerateInvitation", err)
		return
	}

	h.Logger.Info("GenerateInvitation: invitation issued", "role", dto.Role, "caller", callerID)
	h.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) ListBackupCodes(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentID")
	if studentID == "" {
		h.WriteError(w, http.StatusBadRequest, "student ID is required")
		return
	}

	result, err := h.Service.ListBackupCodes(r.Context(), studentID)
	if err != nil {
		h.handleError(w, "ListBackupCodes", err)
		return
	}

	h.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) RegenerateBackupCode(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentID")
	if studentID == "" {
		h.WriteError(w, http.StatusBadRequest, "student ID is required")
		return
	}

	result, err := h.Service.RegenerateBackupCode(r.Context(), studentID)
	if err != nil {
		h.handleError(w, "RegenerateBackupCode", err)
		return
	}

	h.Logger.Info("RegenerateBackupCode: code reissued", "student_id", studentID)
	h.WriteJSON(w, http.StatusOK, result)
}

// LegacyPermissions serves the hardcoded role-to-permission table so older
// clients can keep rendering menus without a round trip per permission.
func (h *Handler) LegacyPermissions(w http.ResponseWriter, r *http.Request) {
	h.WriteJSON(w, http.StatusOK, LegacyRolePermissions())
}

func (h *Handler) handleError(w http.ResponseWriter, op string, err error) {
	var vErr ValidationError
	if errors.As(err, &vErr) {
		h.Logger.Warn(op+": validation failed", "error", vErr.Msg)
		h.WriteError(w, http.StatusBadRequest, vErr.Msg)
		return
	}
	h.HandleServiceError(w, err)
}
