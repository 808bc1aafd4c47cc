package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lorrc/helpdesk-backend/internal/core/domain"
	apperrors "github.com/lorrc/helpdesk-backend/internal/core/errors"
	"github.com/lorrc/helpdesk-backend/internal/core/ports"
)

// numberAllocationAttempts bounds the retry loop around the unique
// ticket_number constraint.
const numberAllocationAttempts = 3

// TicketService implements the ticket workflow: creation with number
// allocation, status transitions, field updates, and scoped listing.
type TicketService struct {
	ticketRepo ports.TicketRepository
	authzSvc   ports.AuthorizationService
	assignSvc  ports.AssignmentService
	allocator  ports.NumberAllocator
	audit      ports.AuditRecorder
	notifier   ports.Notifier
	txManager  ports.TransactionManager
	logger     *slog.Logger
	wg         sync.WaitGroup
}

var _ ports.TicketService = (*TicketService)(nil)

// NewTicketService creates a new ticket service.
func NewTicketService(
	ticketRepo ports.TicketRepository,
	authzSvc ports.AuthorizationService,
	assignSvc ports.AssignmentService,
	allocator ports.NumberAllocator,
	audit ports.AuditRecorder,
	notifier ports.Notifier,
	txManager ports.TransactionManager,
	logger *slog.Logger,
) *TicketService {
	return &TicketService{
		ticketRepo: ticketRepo,
		authzSvc:   authzSvc,
		assignSvc:  assignSvc,
		allocator:  allocator,
		audit:      audit,
		notifier:   notifier,
		txManager:  txManager,
		logger:     logger.With("component", "ticket_service"),
	}
}

// CreateTicket handles the use case for submitting a new ticket.
func (s *TicketService) CreateTicket(ctx context.Context, params ports.CreateTicketParams) (*domain.Ticket, error) {
	// 1. Authorization check
	if !s.authzSvc.Can(params.Actor.Role, domain.PermTicketsCreate) {
		return nil, apperrors.ErrForbidden
	}

	// 2. Create domain entity with validation
	ticket, err := domain.NewTicket(domain.TicketParams{
		Title:                    params.Title,
		Description:              params.Description,
		Category:                 params.Category,
		Urgency:                  params.Urgency,
		CreatedBy:                params.Actor.ID,
		EstimatedResolutionHours: params.EstimatedResolutionHours,
		Tags:                     params.Tags,
		Metadata:                 params.Metadata,
	})
	if err != nil {
		return nil, err
	}

	// 3. Allocate a number and persist, atomically. The unique index on
	// ticket_number backstops the sequence; on a duplicate we mint a fresh
	// number and try again.
	for attempt := 1; ; attempt++ {
		err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			number, allocErr := s.allocator.Allocate(txCtx, ticket.CreatedAt)
			if allocErr != nil {
				return allocErr
			}
			ticket.TicketNumber = number
			return s.ticketRepo.Insert(txCtx, ticket)
		})
		if err == nil {
			break
		}
		if errors.Is(err, apperrors.ErrDuplicateTicketNumber) && attempt < numberAllocationAttempts {
			s.logger.Warn("ticket number collision, retrying",
				"ticket_number", ticket.TicketNumber,
				"attempt", attempt,
			)
			continue
		}
		return nil, err
	}

	// 4. Offer high-impact urgent tickets to staff immediately. Best effort:
	// a failed auto-assignment leaves the ticket OPEN and unassigned.
	if ticket.Category.Spec().HighImpact &&
		(ticket.Urgency == domain.UrgencyHigh || ticket.Urgency == domain.UrgencyCritical) {
		if assigned, assignErr := s.assignSvc.AutoAssign(ctx, ticket); assignErr != nil {
			s.logger.Warn("auto-assignment failed, ticket remains unassigned",
				"ticket_id", ticket.ID,
				"error", assignErr,
			)
		} else {
			ticket = assigned
		}
	}

	// 5. Record the audit trail entry
	s.audit.Record(ctx, ticket.ID, params.Actor.ID, fmt.Sprintf("Ticket created as %s", ticket.TicketNumber))

	return ticket, nil
}

// GetTicket retrieves a specific ticket with authorization.
func (s *TicketService) GetTicket(ctx context.Context, ticketID uuid.UUID, actor domain.Actor) (*domain.Ticket, error) {
	ticket, err := s.ticketRepo.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !s.authzSvc.CanView(actor, ticket) {
		// Same shape as a missing ticket so callers cannot probe existence.
		return nil, apperrors.ErrForbidden
	}
	return ticket, nil
}

// TransitionStatus changes a ticket's status with workflow enforcement.
// Privileged editors may take any legal transition; the ticket's owner may
// only close their own ticket.
func (s *TicketService) TransitionStatus(ctx context.Context, params ports.TransitionParams) (*domain.Ticket, error) {
	// 1. Fetch the ticket
	ticket, err := s.ticketRepo.GetByID(ctx, params.TicketID)
	if err != nil {
		return nil, err
	}

	// 2. Authorization check
	if !s.canTransition(params.Actor, ticket, params.NewStatus) {
		return nil, apperrors.ErrForbidden
	}

	// 3. Apply the transition (domain validates the edge and side effects)
	previous := ticket.Status
	err = ticket.ApplyTransition(params.NewStatus, domain.TransitionOptions{
		ResolutionNotes:     params.ResolutionNotes,
		SatisfactionRating:  params.SatisfactionRating,
		SatisfactionComment: params.SatisfactionComment,
	}, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	// 4. Persist with the optimistic concurrency check
	updated, err := s.ticketRepo.Update(ctx, ticket)
	if err != nil {
		return nil, err
	}

	// 5. Record the audit trail entry
	s.audit.Record(ctx, updated.ID, params.Actor.ID,
		fmt.Sprintf("Status changed from %s to %s", previous, updated.Status))

	// 6. Notify the creator (async, background context)
	if updated.CreatedBy != params.Actor.ID {
		s.notifyStatusUpdate(updated)
	}

	return updated, nil
}

// canTransition applies the role-dependent transition rules.
func (s *TicketService) canTransition(actor domain.Actor, ticket *domain.Ticket, next domain.TicketStatus) bool {
	if s.authzSvc.Can(actor.Role, domain.PermTicketsEditAll) {
		return true
	}
	// Owners may close their own ticket, nothing else.
	return ticket.IsOwnedBy(actor.ID) &&
		s.authzSvc.Can(actor.Role, domain.PermTicketsEditOwn) &&
		next == domain.StatusClosed
}

// UpdateFields applies a sparse field update within the actor's allowed field
// set.
func (s *TicketService) UpdateFields(ctx context.Context, params ports.UpdateFieldsParams) (*domain.Ticket, error) {
	// 1. Fetch the ticket
	ticket, err := s.ticketRepo.GetByID(ctx, params.TicketID)
	if err != nil {
		return nil, err
	}
	if !s.authzSvc.CanView(params.Actor, ticket) {
		return nil, apperrors.ErrForbidden
	}

	// 2. Check every requested field against the actor's allowed set
	allowed := s.authzSvc.AllowedUpdateFields(params.Actor, ticket)
	for _, field := range params.Update.Fields() {
		if !fieldAllowed(allowed, field) {
			return nil, apperrors.ErrFieldNotEditable
		}
	}

	// 3. Validate the new values
	if err := params.Update.Validate(); err != nil {
		return nil, err
	}

	// 4. Apply and persist
	changes := ticket.Apply(params.Update, time.Now().UTC())
	updated, err := s.ticketRepo.Update(ctx, ticket)
	if err != nil {
		return nil, err
	}

	// 5. One audit entry per narrated change
	if len(changes) > 0 {
		lines := make([]string, 0, len(changes))
		for _, change := range changes {
			lines = append(lines, change.Describe())
		}
		s.audit.Record(ctx, updated.ID, params.Actor.ID, strings.Join(lines, "\n"))
	}

	return updated, nil
}

// ListTickets retrieves tickets scoped by the actor's permissions: view-all
// holders see everything the filter matches, everyone else only their own
// submissions.
func (s *TicketService) ListTickets(ctx context.Context, params ports.ListTicketsParams) ([]*domain.Ticket, error) {
	filter := ports.TicketFilter{
		Statuses:    params.Statuses,
		Urgencies:   params.Urgencies,
		Categories:  params.Categories,
		AssignedTo:  params.AssignedTo,
		Unassigned:  params.Unassigned,
		CreatedFrom: params.CreatedFrom,
		CreatedTo:   params.CreatedTo,
		Limit:       params.Limit,
		Offset:      params.Offset,
	}

	if !s.authzSvc.Can(params.Actor.Role, domain.PermTicketsViewAll) {
		creator := params.Actor.ID
		filter.CreatedBy = &creator
	}

	return s.ticketRepo.List(ctx, filter)
}

// notifyStatusUpdate emails the ticket's creator about the change.
func (s *TicketService) notifyStatusUpdate(ticket *domain.Ticket) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// Background context: the originating request may already be done.
		ctx := context.Background()

		s.notifier.Notify(ctx, ports.NotificationParams{
			RecipientUserID: ticket.CreatedBy,
			Subject:         fmt.Sprintf("Your ticket status has been updated: %s", ticket.TicketNumber),
			Message:         fmt.Sprintf("The status of your ticket '%s' was changed to %s.", ticket.Title, ticket.Status),
			TicketNumber:    ticket.TicketNumber,
		})
	}()
}

// Shutdown waits for in-flight notifications to drain.
func (s *TicketService) Shutdown() {
	s.wg.Wait()
}

func fieldAllowed(allowed []domain.TrackableField, field domain.TrackableField) bool {
	for _, candidate := range allowed {
		if candidate == field {
			return true
		}
	}
	return false
}
