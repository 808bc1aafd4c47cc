package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lorrc/helpdesk-backend/internal/adapters/primary/validation"
	"github.com/lorrc/helpdesk-backend/internal/core/domain"
	"github.com/lorrc/helpdesk-backend/internal/core/ports"
)

// AdminHandler handles senior-staff account administration.
type AdminHandler struct {
	userAdminService ports.UserAdminService
	errorHandler     *ErrorHandler
	logger           *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(
	userAdminService ports.UserAdminService,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *AdminHandler {
	return &AdminHandler{
		userAdminService: userAdminService,
		errorHandler:     errorHandler,
		logger:           logger.With("handler", "admin"),
	}
}

// RegisterRoutes registers the admin endpoints.
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Patch("/users/{userID}/role", h.HandleSetUserRole)
	r.Patch("/users/{userID}/status", h.HandleSetUserStatus)
}

// --- Request DTOs ---

// SetRoleRequest defines the expected JSON body for role changes
type SetRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=member staff senior_staff"`
}

// SetStatusRequest defines the expected JSON body for account status changes
type SetStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=ACTIVE PENDING SUSPENDED LOCKED"`
}

// --- Handlers ---

// HandleSetUserRole handles PATCH /admin/users/{userID}/role
func (h *AdminHandler) HandleSetUserRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := getActor(w, r)
	if !ok {
		return
	}

	userID, err := parseUserID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	req, err := validation.DecodeAndValidate[SetRoleRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	if err := h.userAdminService.SetUserRole(r.Context(), actor, userID, domain.Role(req.Role)); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.Info("user role changed",
		"target_user_id", userID,
		"new_role", req.Role,
		"user_id", actor.ID,
	)

	WriteNoContent(w)
}

// HandleSetUserStatus handles PATCH /admin/users/{userID}/status
func (h *AdminHandler) HandleSetUserStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := getActor(w, r)
	if !ok {
		return
	}

	userID, err := parseUserID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	req, err := validation.DecodeAndValidate[SetStatusRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	if err := h.userAdminService.SetUserStatus(r.Context(), actor, userID, domain.UserStatus(req.Status)); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.Info("user status changed",
		"target_user_id", userID,
		"new_status", req.Status,
		"user_id", actor.ID,
	)

	WriteNoContent(w)
}

// parseUserID extracts and validates the user ID from the URL
func parseUserID(r *http.Request) (uuid.UUID, error) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		v := validation.NewValidator()
		v.Custom("userID", false, "Invalid user ID")
		return uuid.Nil, v.Errors()
	}
	return userID, nil
}
