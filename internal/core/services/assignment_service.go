package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lorrc/helpdesk-backend/internal/core/domain"
	apperrors "github.com/lorrc/helpdesk-backend/internal/core/errors"
	"github.com/lorrc/helpdesk-backend/internal/core/ports"
)

// AssignmentService validates assignees and applies the assignment/status
// coupling: assigning forces IN_PROGRESS, clearing forces OPEN.
type AssignmentService struct {
	ticketRepo ports.TicketRepository
	userRepo   ports.UserRepository
	authzSvc   ports.AuthorizationService
	audit      ports.AuditRecorder
	logger     *slog.Logger
}

var _ ports.AssignmentService = (*AssignmentService)(nil)

// NewAssignmentService creates a new assignment service.
func NewAssignmentService(
	ticketRepo ports.TicketRepository,
	userRepo ports.UserRepository,
	authzSvc ports.AuthorizationService,
	audit ports.AuditRecorder,
	logger *slog.Logger,
) *AssignmentService {
	return &AssignmentService{
		ticketRepo: ticketRepo,
		userRepo:   userRepo,
		authzSvc:   authzSvc,
		audit:      audit,
		logger:     logger.With("component", "assignment_service"),
	}
}

// Assign assigns, reassigns, or (with a nil assignee) unassigns a ticket.
func (s *AssignmentService) Assign(ctx context.Context, params ports.AssignParams) (*domain.Ticket, error) {
	// 1. Authorization check
	if !s.authzSvc.Can(params.Actor.Role, domain.PermTicketsAssign) {
		return nil, apperrors.ErrForbidden
	}

	// 2. Validate the target
	var assignee *domain.User
	if params.AssigneeID != nil {
		user, err := s.userRepo.GetByID(ctx, *params.AssigneeID)
		if err != nil {
			if errors.Is(err, apperrors.ErrUserNotFound) {
				return nil, apperrors.ErrInvalidAssignee
			}
			return nil, err
		}
		if !user.EligibleAssignee() {
			return nil, apperrors.ErrInvalidAssignee
		}
		assignee = user
	}

	// 3. Fetch and mutate the ticket
	ticket, err := s.ticketRepo.GetByID(ctx, params.TicketID)
	if err != nil {
		return nil, err
	}
	ticket.SetAssignment(params.AssigneeID, time.Now().UTC())

	// 4. Persist with the optimistic concurrency check
	updated, err := s.ticketRepo.Update(ctx, ticket)
	if err != nil {
		return nil, err
	}

	// 5. Record the audit trail entry
	s.audit.Record(ctx, updated.ID, params.Actor.ID, assignmentMessage(assignee, params.Reason))

	return updated, nil
}

// AutoAssign offers a freshly created high-impact ticket to the most recently
// active staff member. The ticket stays OPEN and unassigned when no staff
// member is available; the attempt is audit-commented either way.
func (s *AssignmentService) AutoAssign(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error) {
	staff, err := s.userRepo.MostRecentlyActiveStaff(ctx)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			s.audit.Record(ctx, ticket.ID, domain.SystemActorID,
				"Automatic assignment attempted: no active staff member available")
			return ticket, nil
		}
		return nil, err
	}

	ticket.SetAssignment(&staff.ID, time.Now().UTC())
	updated, err := s.ticketRepo.Update(ctx, ticket)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, updated.ID, domain.SystemActorID,
		fmt.Sprintf("Automatically assigned to %s", staff.FullName))

	return updated, nil
}

func assignmentMessage(assignee *domain.User, reason string) string {
	var msg string
	if assignee != nil {
		msg = fmt.Sprintf("Assigned to %s", assignee.FullName)
	} else {
		msg = "Ticket unassigned"
	}
	if trimmed := strings.TrimSpace(reason); trimmed != "" {
		msg = fmt.Sprintf("%s: %s", msg, trimmed)
	}
	return msg
}
