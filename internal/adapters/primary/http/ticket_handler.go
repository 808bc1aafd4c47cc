package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	mw "github.com/lorrc/helpdesk-backend/internal/adapters/primary/http/middleware"
	"github.com/lorrc/helpdesk-backend/internal/adapters/primary/validation"
	"github.com/lorrc/helpdesk-backend/internal/core/domain"
	"github.com/lorrc/helpdesk-backend/internal/core/ports"
)

const maxTicketsPerPage = 100

// TicketHandler handles HTTP requests for tickets
type TicketHandler struct {
	ticketService     ports.TicketService
	assignmentService ports.AssignmentService
	commentHandler    *CommentHandler
	errorHandler      *ErrorHandler
	logger            *slog.Logger
}

// NewTicketHandler creates a new ticket handler
func NewTicketHandler(
	ticketService ports.TicketService,
	assignmentService ports.AssignmentService,
	commentHandler *CommentHandler,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *TicketHandler {
	return &TicketHandler{
		ticketService:     ticketService,
		assignmentService: assignmentService,
		commentHandler:    commentHandler,
		errorHandler:      errorHandler,
		logger:            logger.With("handler", "ticket"),
	}
}

// RegisterRoutes sets up the routing for all ticket endpoints.
func (h *TicketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleListTickets)
	r.Post("/", h.HandleCreateTicket)

	r.Route("/{ticketID}", func(r chi.Router) {
		r.Get("/", h.HandleGetTicket)
		r.Patch("/", h.HandleUpdateTicket)
		r.Patch("/status", h.HandleUpdateTicketStatus)
		r.Patch("/assignee", h.HandleAssignTicket)

		if h.commentHandler != nil {
			r.Mount("/comments", h.commentHandler.Router())
			r.Mount("/attachments", h.commentHandler.AttachmentRouter())
		}
	})
}

// --- Request/Response DTOs ---

// CreateTicketRequest defines the expected JSON body for creating a ticket
type CreateTicketRequest struct {
	Title                    string         `json:"title" validate:"required,min=10"`
	Description              string         `json:"description" validate:"required,min=20"`
	Category                 string         `json:"category" validate:"required"`
	Urgency                  string         `json:"urgency" validate:"omitempty,oneof=LOW MEDIUM HIGH CRITICAL"`
	EstimatedResolutionHours *int           `json:"estimatedResolutionHours" validate:"omitempty,gte=1"`
	Tags                     []string       `json:"tags"`
	Metadata                 map[string]any `json:"metadata"`
}

// UpdateTicketRequest defines the sparse JSON body for field updates. Absent
// fields are left untouched.
type UpdateTicketRequest struct {
	Title                    *string         `json:"title" validate:"omitempty,min=10"`
	Description              *string         `json:"description" validate:"omitempty,min=20"`
	Urgency                  *string         `json:"urgency" validate:"omitempty,oneof=LOW MEDIUM HIGH CRITICAL"`
	Category                 *string         `json:"category"`
	ResolutionNotes          *string         `json:"resolutionNotes"`
	Tags                     *[]string       `json:"tags"`
	Metadata                 *map[string]any `json:"metadata"`
	EstimatedResolutionHours *int            `json:"estimatedResolutionHours" validate:"omitempty,gte=1"`
}

// UpdateStatusRequest defines the expected JSON body for status updates
type UpdateStatusRequest struct {
	Status              string  `json:"status" validate:"required,oneof=OPEN IN_PROGRESS RESOLVED CLOSED"`
	ResolutionNotes     string  `json:"resolutionNotes"`
	SatisfactionRating  *int    `json:"satisfactionRating" validate:"omitempty,gte=1,lte=5"`
	SatisfactionComment *string `json:"satisfactionComment"`
}

// AssignTicketRequest defines the expected JSON body for assigning a ticket.
// A null assigneeId clears the assignment.
type AssignTicketRequest struct {
	AssigneeID *string `json:"assigneeId" validate:"omitempty,uuid"`
	Reason     string  `json:"reason"`
}

// TicketDTO defines the JSON response for tickets.
type TicketDTO struct {
	ID                       string         `json:"id"`
	TicketNumber             string         `json:"ticketNumber"`
	Title                    string         `json:"title"`
	Description              string         `json:"description"`
	Category                 string         `json:"category"`
	Urgency                  string         `json:"urgency"`
	Status                   string         `json:"status"`
	CreatedBy                string         `json:"createdBy"`
	AssignedTo               *string        `json:"assignedTo"`
	CreatedAt                string         `json:"createdAt"`
	UpdatedAt                *string        `json:"updatedAt"`
	ResolvedAt               *string        `json:"resolvedAt"`
	ClosedAt                 *string        `json:"closedAt"`
	FirstResponseAt          *string        `json:"firstResponseAt"`
	EstimatedResolutionHours *int           `json:"estimatedResolutionHours"`
	ActualResolutionHours    *int           `json:"actualResolutionHours"`
	Tags                     []string       `json:"tags,omitempty"`
	Metadata                 map[string]any `json:"metadata,omitempty"`
	ResolutionNotes          *string        `json:"resolutionNotes"`
	SatisfactionRating       *int           `json:"satisfactionRating"`
	PriorityScore            int            `json:"priorityScore"`
	Overdue                  bool           `json:"overdue"`
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	value := t.Format(time.RFC3339)
	return &value
}

func toTicketDTO(ticket *domain.Ticket, now time.Time) TicketDTO {
	var assignedTo *string
	if ticket.AssignedTo != nil {
		value := ticket.AssignedTo.String()
		assignedTo = &value
	}

	return TicketDTO{
		ID:                       ticket.ID.String(),
		TicketNumber:             ticket.TicketNumber,
		Title:                    ticket.Title,
		Description:              ticket.Description,
		Category:                 string(ticket.Category),
		Urgency:                  string(ticket.Urgency),
		Status:                   string(ticket.Status),
		CreatedBy:                ticket.CreatedBy.String(),
		AssignedTo:               assignedTo,
		CreatedAt:                ticket.CreatedAt.Format(time.RFC3339),
		UpdatedAt:                formatTimePtr(ticket.UpdatedAt),
		ResolvedAt:               formatTimePtr(ticket.ResolvedAt),
		ClosedAt:                 formatTimePtr(ticket.ClosedAt),
		FirstResponseAt:          formatTimePtr(ticket.FirstResponseAt),
		EstimatedResolutionHours: ticket.EstimatedResolutionHours,
		ActualResolutionHours:    ticket.ActualResolutionHours,
		Tags:                     ticket.Tags,
		Metadata:                 ticket.Metadata,
		ResolutionNotes:          ticket.ResolutionNotes,
		SatisfactionRating:       ticket.SatisfactionRating,
		PriorityScore:            ticket.PriorityScore(now),
		Overdue:                  ticket.IsOverdue(now),
	}
}

func toTicketDTOs(tickets []*domain.Ticket) []TicketDTO {
	now := time.Now().UTC()
	response := make([]TicketDTO, 0, len(tickets))
	for _, ticket := range tickets {
		response = append(response, toTicketDTO(ticket, now))
	}
	return response
}

// --- Handlers ---

// HandleListTickets handles GET /tickets
func (h *TicketHandler) HandleListTickets(w http.ResponseWriter, r *http.Request) {
	actor, ok := getActor(w, r)
	if !ok {
		return
	}

	pagination := validation.ParsePagination(r, maxTicketsPerPage)
	unassigned := validation.ParseBoolQueryParam(r, "unassigned", false)

	v := validation.NewValidator()

	statuses := parseEnumList(v, r, "status", domain.ValidStatus, func(s string) domain.TicketStatus {
		return domain.TicketStatus(s)
	})
	urgencies := parseEnumList(v, r, "urgency", domain.ValidUrgency, func(s string) domain.Urgency {
		return domain.Urgency(s)
	})
	categories := parseEnumList(v, r, "category", domain.ValidCategory, func(s string) domain.Category {
		return domain.Category(s)
	})

	var assignedTo *uuid.UUID
	if assigneeStr := r.URL.Query().Get("assignedTo"); assigneeStr != "" {
		parsed, err := uuid.Parse(assigneeStr)
		if err != nil {
			v.Custom("assignedTo", false, "Must be a valid UUID")
		} else {
			assignedTo = &parsed
		}
	}

	createdFrom, err := validation.ParseTimeQueryParam(r, "createdFrom")
	if err != nil {
		v.Custom("createdFrom", false, "Must be a valid date or timestamp")
	}

	createdTo, err := validation.ParseTimeQueryParam(r, "createdTo")
	if err != nil {
		v.Custom("createdTo", false, "Must be a valid date or timestamp")
	}

	var createdFromTime *time.Time
	if createdFrom != nil {
		createdFromTime = &createdFrom.Time
	}

	var createdToTime *time.Time
	if createdTo != nil {
		adjusted := createdTo.Time
		if createdTo.DateOnly {
			adjusted = adjusted.Add(24 * time.Hour)
		}
		createdToTime = &adjusted
	}

	if createdFromTime != nil && createdToTime != nil && createdFromTime.After(*createdToTime) {
		v.Custom("createdFrom", false, "Must be before createdTo")
	}

	if v.HasErrors() {
		h.errorHandler.Handle(w, r, v.Errors())
		return
	}

	params := ports.ListTicketsParams{
		Actor:       actor,
		Statuses:    statuses,
		Urgencies:   urgencies,
		Categories:  categories,
		AssignedTo:  assignedTo,
		Unassigned:  unassigned,
		CreatedFrom: createdFromTime,
		CreatedTo:   createdToTime,
		Limit:       pagination.Limit + 1,
		Offset:      pagination.Offset,
	}

	tickets, err := h.ticketService.ListTickets(r.Context(), params)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WritePaginatedSimple(w, toTicketDTOs(tickets), pagination.Limit, pagination.Offset)
}

// HandleCreateTicket handles POST /tickets
func (h *TicketHandler) HandleCreateTicket(w http.ResponseWriter, r *http.Request) {
	actor, ok := getActor(w, r)
	if !ok {
		return
	}

	req, err := validation.DecodeAndValidate[CreateTicketRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	params := ports.CreateTicketParams{
		Actor:                    actor,
		Title:                    req.Title,
		Description:              req.Description,
		Category:                 domain.Category(req.Category),
		Urgency:                  domain.Urgency(req.Urgency),
		EstimatedResolutionHours: req.EstimatedResolutionHours,
		Tags:                     req.Tags,
		Metadata:                 req.Metadata,
	}

	ticket, err := h.ticketService.CreateTicket(r.Context(), params)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.Info("ticket created",
		"ticket_id", ticket.ID,
		"ticket_number", ticket.TicketNumber,
		"user_id", actor.ID,
	)

	WriteCreated(w, toTicketDTO(ticket, time.Now().UTC()))
}

// HandleGetTicket handles GET /tickets/{ticketID}
func (h *TicketHandler) HandleGetTicket(w http.ResponseWriter, r *http.Request) {
	actor, ok := getActor(w, r)
	if !ok {
		return
	}

	ticketID, err := parseTicketID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	ticket, err := h.ticketService.GetTicket(r.Context(), ticketID, actor)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, toTicketDTO(ticket, time.Now().UTC()))
}

// HandleUpdateTicket handles PATCH /tickets/{ticketID}
func (h *TicketHandler) HandleUpdateTicket(w http.ResponseWriter, r *http.Request) {
	actor, ok := getActor(w, r)
	if !ok {
		return
	}

	ticketID, err := parseTicketID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	req, err := validation.DecodeAndValidate[UpdateTicketRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	update := domain.TicketUpdate{
		Title:           req.Title,
		Description:     req.Description,
		ResolutionNotes: req.ResolutionNotes,
		Tags:            req.Tags,
		Metadata:        req.Metadata,
		EstimatedHours:  req.EstimatedResolutionHours,
	}
	if req.Urgency != nil {
		urgency := domain.Urgency(*req.Urgency)
		update.Urgency = &urgency
	}
	if req.Category != nil {
		category := domain.Category(*req.Category)
		update.Category = &category
	}

	ticket, err := h.ticketService.UpdateFields(r.Context(), ports.UpdateFieldsParams{
		TicketID: ticketID,
		Actor:    actor,
		Update:   update,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.Info("ticket updated",
		"ticket_id", ticketID,
		"user_id", actor.ID,
	)

	WriteJSON(w, http.StatusOK, toTicketDTO(ticket, time.Now().UTC()))
}

// HandleUpdateTicketStatus handles PATCH /tickets/{ticketID}/status
func (h *TicketHandler) HandleUpdateTicketStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := getActor(w, r)
	if !ok {
		return
	}

	ticketID, err := parseTicketID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	req, err := validation.DecodeAndValidate[UpdateStatusRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	params := ports.TransitionParams{
		TicketID:            ticketID,
		Actor:               actor,
		NewStatus:           domain.TicketStatus(req.Status),
		ResolutionNotes:     req.ResolutionNotes,
		SatisfactionRating:  req.SatisfactionRating,
		SatisfactionComment: req.SatisfactionComment,
	}

	ticket, err := h.ticketService.TransitionStatus(r.Context(), params)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.Info("ticket status updated",
		"ticket_id", ticketID,
		"new_status", req.Status,
		"user_id", actor.ID,
	)

	WriteJSON(w, http.StatusOK, toTicketDTO(ticket, time.Now().UTC()))
}

// HandleAssignTicket handles PATCH /tickets/{ticketID}/assignee
func (h *TicketHandler) HandleAssignTicket(w http.ResponseWriter, r *http.Request) {
	actor, ok := getActor(w, r)
	if !ok {
		return
	}

	ticketID, err := parseTicketID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	req, err := validation.DecodeAndValidate[AssignTicketRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	var assigneeID *uuid.UUID
	if req.AssigneeID != nil {
		parsed, err := uuid.Parse(*req.AssigneeID)
		if err != nil {
			v := validation.NewValidator()
			v.Custom("assigneeId", false, "Must be a valid UUID")
			h.errorHandler.Handle(w, r, v.Errors())
			return
		}
		assigneeID = &parsed
	}

	ticket, err := h.assignmentService.Assign(r.Context(), ports.AssignParams{
		TicketID:   ticketID,
		Actor:      actor,
		AssigneeID: assigneeID,
		Reason:     req.Reason,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.Info("ticket assignment changed",
		"ticket_id", ticketID,
		"assignee_id", req.AssigneeID,
		"user_id", actor.ID,
	)

	WriteJSON(w, http.StatusOK, toTicketDTO(ticket, time.Now().UTC()))
}

// --- Helper functions ---

// getActor extracts the resolved actor from the request context.
func getActor(w http.ResponseWriter, r *http.Request) (domain.Actor, bool) {
	actor, ok := mw.GetActor(r.Context())
	if !ok {
		WriteJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error: "Not authorized",
			Code:  "UNAUTHORIZED",
		})
		return domain.Actor{}, false
	}
	return actor, true
}

// parseTicketID extracts and validates the ticket ID from the URL
func parseTicketID(r *http.Request) (uuid.UUID, error) {
	ticketID, err := uuid.Parse(chi.URLParam(r, "ticketID"))
	if err != nil {
		v := validation.NewValidator()
		v.Custom("ticketID", false, "Invalid ticket ID")
		return uuid.Nil, v.Errors()
	}
	return ticketID, nil
}

// parseEnumList reads a comma-separated query parameter and validates each
// entry against the domain enumeration.
func parseEnumList[T ~string](v *validation.Validator, r *http.Request, key string, valid func(T) bool, convert func(string) T) []T {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil
	}

	var out []T
	for _, part := range strings.Split(raw, ",") {
		value := convert(strings.TrimSpace(part))
		if !valid(value) {
			v.Custom(key, false, "Unknown value: "+string(value))
			continue
		}
		out = append(out, value)
	}
	return out
}
