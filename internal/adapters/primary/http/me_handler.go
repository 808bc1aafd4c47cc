package http

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	mw "github.com/lorrc/helpdesk-backend/internal/adapters/primary/http/middleware"
	"github.com/lorrc/helpdesk-backend/internal/core/domain"
)

// GrantDTO is the JSON rendering of one capability grant.
type GrantDTO struct {
	Resource   string `json:"resource"`
	Action     string `json:"action,omitempty"`
	Scope      string `json:"scope,omitempty"`
	AllActions bool   `json:"allActions,omitempty"`
}

// PermissionsResponse defines the JSON response for the caller's capabilities.
type PermissionsResponse struct {
	Role   string     `json:"role"`
	Grants []GrantDTO `json:"grants"`
}

// MeHandler handles HTTP requests for the authenticated user.
type MeHandler struct{}

// NewMeHandler creates a new MeHandler.
func NewMeHandler() *MeHandler {
	return &MeHandler{}
}

// RegisterRoutes registers the /me routes.
func (h *MeHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleMe)
	r.Get("/permissions", h.HandlePermissions)
}

// HandleMe handles GET /me.
func (h *MeHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := mw.GetUser(r.Context())
	if !ok {
		WriteJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error: "Not authorized",
			Code:  "UNAUTHORIZED",
		})
		return
	}

	WriteJSON(w, http.StatusOK, toUserDTO(user))
}

// HandlePermissions handles GET /me/permissions. The grant table is static
// per role, so this needs no service round trip.
func (h *MeHandler) HandlePermissions(w http.ResponseWriter, r *http.Request) {
	actor, ok := getActor(w, r)
	if !ok {
		return
	}

	grants := domain.GrantsForRole(actor.Role)
	dtos := make([]GrantDTO, 0, len(grants))
	for _, grant := range grants {
		dtos = append(dtos, GrantDTO{
			Resource:   string(grant.Resource),
			Action:     string(grant.Action),
			Scope:      string(grant.Scope),
			AllActions: grant.AllActions,
		})
	}

	sort.Slice(dtos, func(i, j int) bool {
		if dtos[i].Resource != dtos[j].Resource {
			return dtos[i].Resource < dtos[j].Resource
		}
		return dtos[i].Action < dtos[j].Action
	})

	WriteJSON(w, http.StatusOK, PermissionsResponse{
		Role:   string(actor.Role),
		Grants: dtos,
	})
}
