package services_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/helpdesk-backend/internal/core/domain"
	apperrors "github.com/lorrc/helpdesk-backend/internal/core/errors"
	"github.com/lorrc/helpdesk-backend/internal/core/mocks"
	"github.com/lorrc/helpdesk-backend/internal/core/ports"
	"github.com/lorrc/helpdesk-backend/internal/core/services"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func memberActor() domain.Actor {
	return domain.Actor{ID: uuid.New(), Role: domain.RoleMember, Status: domain.UserActive}
}

func staffActor() domain.Actor {
	return domain.Actor{ID: uuid.New(), Role: domain.RoleStaff, Status: domain.UserActive}
}

type ticketServiceFixture struct {
	repo      *mocks.MockTicketRepository
	assign    *mocks.MockAssignmentService
	allocator *mocks.MockNumberAllocator
	audit     *mocks.MockAuditRecorder
	notifier  *mocks.MockNotifier
	tx        *mocks.MockTransactionManager
	svc       *services.TicketService
}

func newTicketServiceFixture() *ticketServiceFixture {
	f := &ticketServiceFixture{
		repo:      mocks.NewMockTicketRepository(),
		assign:    mocks.NewMockAssignmentService(),
		allocator: mocks.NewMockNumberAllocator(),
		audit:     mocks.NewMockAuditRecorder(),
		notifier:  mocks.NewMockNotifier(),
		tx:        mocks.NewMockTransactionManager(),
	}
	f.svc = services.NewTicketService(
		f.repo,
		services.NewAuthorizationService(),
		f.assign,
		f.allocator,
		f.audit,
		f.notifier,
		f.tx,
		testLogger(),
	)
	return f
}

func existingTicket(t *testing.T, createdBy uuid.UUID) *domain.Ticket {
	t.Helper()
	ticket, err := domain.NewTicket(domain.TicketParams{
		Title:       "Cannot log in to the portal",
		Description: "Login fails with a 500 after entering correct credentials.",
		Category:    domain.CategoryAccountAccess,
		CreatedBy:   createdBy,
	})
	require.NoError(t, err)
	ticket.TicketNumber = "HD-202603-0007"
	return ticket
}

func TestTicketService_CreateTicket(t *testing.T) {
	ctx := context.Background()
	actor := memberActor()

	baseParams := ports.CreateTicketParams{
		Actor:       actor,
		Title:       "Cannot log in to the portal",
		Description: "Login fails with a 500 after entering correct credentials.",
		Category:    domain.CategoryAccountAccess,
	}

	t.Run("success", func(t *testing.T) {
		f := newTicketServiceFixture()

		f.tx.On("WithTransaction", ctx, mock.AnythingOfType("func(context.Context) error")).Return(nil)
		f.allocator.On("Allocate", ctx, mock.AnythingOfType("time.Time")).Return("HD-202603-0001", nil)
		f.repo.On("Insert", ctx, mock.AnythingOfType("*domain.Ticket")).Return(nil)
		f.audit.On("Record", ctx, mock.AnythingOfType("uuid.UUID"), actor.ID, "Ticket created as HD-202603-0001").Return()

		ticket, err := f.svc.CreateTicket(ctx, baseParams)

		require.NoError(t, err)
		assert.Equal(t, "HD-202603-0001", ticket.TicketNumber)
		assert.Equal(t, domain.StatusOpen, ticket.Status)
		assert.Equal(t, actor.ID, ticket.CreatedBy)
		f.assign.AssertNotCalled(t, "AutoAssign")
		f.repo.AssertExpectations(t)
		f.audit.AssertExpectations(t)
	})

	t.Run("retries once on a duplicate number", func(t *testing.T) {
		f := newTicketServiceFixture()

		f.tx.On("WithTransaction", ctx, mock.AnythingOfType("func(context.Context) error")).Return(nil)
		f.allocator.On("Allocate", ctx, mock.AnythingOfType("time.Time")).Return("HD-202603-0001", nil).Once()
		f.allocator.On("Allocate", ctx, mock.AnythingOfType("time.Time")).Return("HD-202603-0002", nil).Once()
		f.repo.On("Insert", ctx, mock.AnythingOfType("*domain.Ticket")).Return(apperrors.ErrDuplicateTicketNumber).Once()
		f.repo.On("Insert", ctx, mock.AnythingOfType("*domain.Ticket")).Return(nil).Once()
		f.audit.On("Record", ctx, mock.AnythingOfType("uuid.UUID"), actor.ID, "Ticket created as HD-202603-0002").Return()

		ticket, err := f.svc.CreateTicket(ctx, baseParams)

		require.NoError(t, err)
		assert.Equal(t, "HD-202603-0002", ticket.TicketNumber)
		f.repo.AssertExpectations(t)
	})

	t.Run("gives up after exhausting number retries", func(t *testing.T) {
		f := newTicketServiceFixture()

		f.tx.On("WithTransaction", ctx, mock.AnythingOfType("func(context.Context) error")).Return(nil)
		f.allocator.On("Allocate", ctx, mock.AnythingOfType("time.Time")).Return("HD-202603-0001", nil)
		f.repo.On("Insert", ctx, mock.AnythingOfType("*domain.Ticket")).Return(apperrors.ErrDuplicateTicketNumber)

		_, err := f.svc.CreateTicket(ctx, baseParams)

		assert.ErrorIs(t, err, apperrors.ErrDuplicateTicketNumber)
		f.repo.AssertNumberOfCalls(t, "Insert", 3)
	})

	t.Run("high impact urgent ticket is auto assigned", func(t *testing.T) {
		f := newTicketServiceFixture()

		params := baseParams
		params.Category = domain.CategorySystemErrors
		params.Urgency = domain.UrgencyCritical

		staffID := uuid.New()
		f.tx.On("WithTransaction", ctx, mock.AnythingOfType("func(context.Context) error")).Return(nil)
		f.allocator.On("Allocate", ctx, mock.AnythingOfType("time.Time")).Return("HD-202603-0003", nil)
		f.repo.On("Insert", ctx, mock.AnythingOfType("*domain.Ticket")).Return(nil)
		f.assign.On("AutoAssign", ctx, mock.AnythingOfType("*domain.Ticket")).Run(func(args mock.Arguments) {
			in := args.Get(1).(*domain.Ticket)
			in.SetAssignment(&staffID, time.Now().UTC())
		}).Return(&domain.Ticket{Status: domain.StatusInProgress, AssignedTo: &staffID, TicketNumber: "HD-202603-0003"}, nil)
		f.audit.On("Record", ctx, mock.AnythingOfType("uuid.UUID"), actor.ID, mock.AnythingOfType("string")).Return()

		ticket, err := f.svc.CreateTicket(ctx, params)

		require.NoError(t, err)
		assert.Equal(t, domain.StatusInProgress, ticket.Status)
		require.NotNil(t, ticket.AssignedTo)
		f.assign.AssertExpectations(t)
	})

	t.Run("auto assignment failure leaves the ticket open", func(t *testing.T) {
		f := newTicketServiceFixture()

		params := baseParams
		params.Category = domain.CategoryPaymentGateway
		params.Urgency = domain.UrgencyHigh

		f.tx.On("WithTransaction", ctx, mock.AnythingOfType("func(context.Context) error")).Return(nil)
		f.allocator.On("Allocate", ctx, mock.AnythingOfType("time.Time")).Return("HD-202603-0004", nil)
		f.repo.On("Insert", ctx, mock.AnythingOfType("*domain.Ticket")).Return(nil)
		f.assign.On("AutoAssign", ctx, mock.AnythingOfType("*domain.Ticket")).
			Return(nil, apperrors.NewStorageError("auto_assign", context.DeadlineExceeded))
		f.audit.On("Record", ctx, mock.AnythingOfType("uuid.UUID"), actor.ID, mock.AnythingOfType("string")).Return()

		ticket, err := f.svc.CreateTicket(ctx, params)

		require.NoError(t, err)
		assert.Equal(t, domain.StatusOpen, ticket.Status)
		assert.Nil(t, ticket.AssignedTo)
	})

	t.Run("validation error skips persistence", func(t *testing.T) {
		f := newTicketServiceFixture()

		params := baseParams
		params.Title = "short"

		_, err := f.svc.CreateTicket(ctx, params)

		require.Error(t, err)
		f.tx.AssertNotCalled(t, "WithTransaction")
		f.repo.AssertNotCalled(t, "Insert")
	})
}

func TestTicketService_GetTicket(t *testing.T) {
	ctx := context.Background()

	t.Run("owner sees their ticket", func(t *testing.T) {
		f := newTicketServiceFixture()
		actor := memberActor()
		ticket := existingTicket(t, actor.ID)
		f.repo.On("GetByID", ctx, ticket.ID).Return(ticket, nil)

		got, err := f.svc.GetTicket(ctx, ticket.ID, actor)
		require.NoError(t, err)
		assert.Equal(t, ticket.ID, got.ID)
	})

	t.Run("stranger member is denied without an existence leak", func(t *testing.T) {
		f := newTicketServiceFixture()
		ticket := existingTicket(t, uuid.New())
		f.repo.On("GetByID", ctx, ticket.ID).Return(ticket, nil)

		_, err := f.svc.GetTicket(ctx, ticket.ID, memberActor())
		assert.ErrorIs(t, err, apperrors.ErrForbidden)
	})

	t.Run("staff sees any ticket", func(t *testing.T) {
		f := newTicketServiceFixture()
		ticket := existingTicket(t, uuid.New())
		f.repo.On("GetByID", ctx, ticket.ID).Return(ticket, nil)

		_, err := f.svc.GetTicket(ctx, ticket.ID, staffActor())
		assert.NoError(t, err)
	})
}

func TestTicketService_TransitionStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("staff resolves with notes and creator is notified", func(t *testing.T) {
		f := newTicketServiceFixture()
		actor := staffActor()
		ticket := existingTicket(t, uuid.New())

		f.repo.On("GetByID", ctx, ticket.ID).Return(ticket, nil)
		f.repo.On("Update", ctx, ticket).Return(ticket, nil)
		f.audit.On("Record", ctx, ticket.ID, actor.ID, "Status changed from OPEN to RESOLVED").Return()
		f.notifier.On("Notify", mock.Anything, mock.MatchedBy(func(p ports.NotificationParams) bool {
			return p.RecipientUserID == ticket.CreatedBy && p.TicketNumber == ticket.TicketNumber
		})).Return()

		updated, err := f.svc.TransitionStatus(ctx, ports.TransitionParams{
			TicketID:        ticket.ID,
			Actor:           actor,
			NewStatus:       domain.StatusResolved,
			ResolutionNotes: "Cleared the stuck session locks.",
		})

		require.NoError(t, err)
		assert.Equal(t, domain.StatusResolved, updated.Status)

		f.svc.Shutdown()
		f.notifier.AssertExpectations(t)
		f.audit.AssertExpectations(t)
	})

	t.Run("owner may close their own ticket", func(t *testing.T) {
		f := newTicketServiceFixture()
		actor := memberActor()
		ticket := existingTicket(t, actor.ID)

		f.repo.On("GetByID", ctx, ticket.ID).Return(ticket, nil)
		f.repo.On("Update", ctx, ticket).Return(ticket, nil)
		f.audit.On("Record", ctx, ticket.ID, actor.ID, "Status changed from OPEN to CLOSED").Return()

		updated, err := f.svc.TransitionStatus(ctx, ports.TransitionParams{
			TicketID:           ticket.ID,
			Actor:              actor,
			NewStatus:          domain.StatusClosed,
			SatisfactionRating: intPtr(5),
		})

		require.NoError(t, err)
		assert.Equal(t, domain.StatusClosed, updated.Status)
		// The actor is the creator, so no notification is sent.
		f.svc.Shutdown()
		f.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
	})

	t.Run("owner may not resolve their own ticket", func(t *testing.T) {
		f := newTicketServiceFixture()
		actor := memberActor()
		ticket := existingTicket(t, actor.ID)

		f.repo.On("GetByID", ctx, ticket.ID).Return(ticket, nil)

		_, err := f.svc.TransitionStatus(ctx, ports.TransitionParams{
			TicketID:        ticket.ID,
			Actor:           actor,
			NewStatus:       domain.StatusResolved,
			ResolutionNotes: "I fixed it myself.",
		})

		assert.ErrorIs(t, err, apperrors.ErrForbidden)
		f.repo.AssertNotCalled(t, "Update")
	})

	t.Run("illegal transition propagates", func(t *testing.T) {
		f := newTicketServiceFixture()
		actor := staffActor()
		ticket := existingTicket(t, uuid.New())
		ticket.Status = domain.StatusClosed
		closedAt := time.Now().UTC()
		ticket.ClosedAt = &closedAt

		f.repo.On("GetByID", ctx, ticket.ID).Return(ticket, nil)

		_, err := f.svc.TransitionStatus(ctx, ports.TransitionParams{
			TicketID:  ticket.ID,
			Actor:     actor,
			NewStatus: domain.StatusOpen,
		})

		var invalid *apperrors.InvalidTransitionError
		assert.ErrorAs(t, err, &invalid)
		f.repo.AssertNotCalled(t, "Update")
	})

	t.Run("concurrency conflict propagates", func(t *testing.T) {
		f := newTicketServiceFixture()
		actor := staffActor()
		ticket := existingTicket(t, uuid.New())

		f.repo.On("GetByID", ctx, ticket.ID).Return(ticket, nil)
		f.repo.On("Update", ctx, ticket).Return(nil, apperrors.ErrConcurrencyConflict)

		_, err := f.svc.TransitionStatus(ctx, ports.TransitionParams{
			TicketID:  ticket.ID,
			Actor:     actor,
			NewStatus: domain.StatusInProgress,
		})

		assert.ErrorIs(t, err, apperrors.ErrConcurrencyConflict)
		f.audit.AssertNotCalled(t, "Record", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestTicketService_UpdateFields(t *testing.T) {
	ctx := context.Background()

	t.Run("owner updates title and urgency with audit narration", func(t *testing.T) {
		f := newTicketServiceFixture()
		actor := memberActor()
		ticket := existingTicket(t, actor.ID)

		f.repo.On("GetByID", ctx, ticket.ID).Return(ticket, nil)
		f.repo.On("Update", ctx, ticket).Return(ticket, nil)
		f.audit.On("Record", ctx, ticket.ID, actor.ID,
			"Title changed to \"Login broken for every member account\"\nPriority changed to HIGH").Return()

		title := "Login broken for every member account"
		urgency := domain.UrgencyHigh
		_, err := f.svc.UpdateFields(ctx, ports.UpdateFieldsParams{
			TicketID: ticket.ID,
			Actor:    actor,
			Update:   domain.TicketUpdate{Title: &title, Urgency: &urgency},
		})

		require.NoError(t, err)
		f.audit.AssertExpectations(t)
	})

	t.Run("owner exceeding the allowed field set is forbidden", func(t *testing.T) {
		f := newTicketServiceFixture()
		actor := memberActor()
		ticket := existingTicket(t, actor.ID)

		f.repo.On("GetByID", ctx, ticket.ID).Return(ticket, nil)

		category := domain.CategorySystemErrors
		_, err := f.svc.UpdateFields(ctx, ports.UpdateFieldsParams{
			TicketID: ticket.ID,
			Actor:    actor,
			Update:   domain.TicketUpdate{Category: &category},
		})

		assert.ErrorIs(t, err, apperrors.ErrFieldNotEditable)
		f.repo.AssertNotCalled(t, "Update")
	})

	t.Run("owner loses edit once the ticket is resolved", func(t *testing.T) {
		f := newTicketServiceFixture()
		actor := memberActor()
		ticket := existingTicket(t, actor.ID)
		require.NoError(t, ticket.ApplyTransition(domain.StatusResolved, domain.TransitionOptions{
			ResolutionNotes: "Fixed.",
		}, time.Now().UTC()))

		f.repo.On("GetByID", ctx, ticket.ID).Return(ticket, nil)

		title := "Still broken, actually broken again"
		_, err := f.svc.UpdateFields(ctx, ports.UpdateFieldsParams{
			TicketID: ticket.ID,
			Actor:    actor,
			Update:   domain.TicketUpdate{Title: &title},
		})

		assert.ErrorIs(t, err, apperrors.ErrFieldNotEditable)
	})

	t.Run("staff may change category", func(t *testing.T) {
		f := newTicketServiceFixture()
		actor := staffActor()
		ticket := existingTicket(t, uuid.New())

		f.repo.On("GetByID", ctx, ticket.ID).Return(ticket, nil)
		f.repo.On("Update", ctx, ticket).Return(ticket, nil)
		f.audit.On("Record", ctx, ticket.ID, actor.ID, "Category changed to system-errors").Return()

		category := domain.CategorySystemErrors
		_, err := f.svc.UpdateFields(ctx, ports.UpdateFieldsParams{
			TicketID: ticket.ID,
			Actor:    actor,
			Update:   domain.TicketUpdate{Category: &category},
		})

		require.NoError(t, err)
		f.audit.AssertExpectations(t)
	})

	t.Run("no-op update records nothing", func(t *testing.T) {
		f := newTicketServiceFixture()
		actor := staffActor()
		ticket := existingTicket(t, uuid.New())

		f.repo.On("GetByID", ctx, ticket.ID).Return(ticket, nil)
		f.repo.On("Update", ctx, ticket).Return(ticket, nil)

		same := ticket.Urgency
		_, err := f.svc.UpdateFields(ctx, ports.UpdateFieldsParams{
			TicketID: ticket.ID,
			Actor:    actor,
			Update:   domain.TicketUpdate{Urgency: &same},
		})

		require.NoError(t, err)
		f.audit.AssertNotCalled(t, "Record", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestTicketService_ListTickets(t *testing.T) {
	ctx := context.Background()

	t.Run("member list is scoped to their own tickets", func(t *testing.T) {
		f := newTicketServiceFixture()
		actor := memberActor()

		f.repo.On("List", ctx, mock.MatchedBy(func(filter ports.TicketFilter) bool {
			return filter.CreatedBy != nil && *filter.CreatedBy == actor.ID
		})).Return([]*domain.Ticket{}, nil)

		_, err := f.svc.ListTickets(ctx, ports.ListTicketsParams{Actor: actor, Limit: 20})
		require.NoError(t, err)
		f.repo.AssertExpectations(t)
	})

	t.Run("staff list is unrestricted", func(t *testing.T) {
		f := newTicketServiceFixture()

		f.repo.On("List", ctx, mock.MatchedBy(func(filter ports.TicketFilter) bool {
			return filter.CreatedBy == nil
		})).Return([]*domain.Ticket{}, nil)

		_, err := f.svc.ListTickets(ctx, ports.ListTicketsParams{Actor: staffActor(), Limit: 20})
		require.NoError(t, err)
		f.repo.AssertExpectations(t)
	})
}

func intPtr(v int) *int { return &v }
