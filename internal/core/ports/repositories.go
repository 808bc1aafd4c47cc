package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lorrc/helpdesk-backend/internal/core/domain"
)

// TicketFilter narrows List queries. Nil fields are ignored.
type TicketFilter struct {
	Statuses    []domain.TicketStatus
	Urgencies   []domain.Urgency
	Categories  []domain.Category
	CreatedBy   *uuid.UUID
	AssignedTo  *uuid.UUID
	Unassigned  bool
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// TicketRepository is the persistence contract for tickets. Update performs a
// conditional write keyed on the ticket's version and surfaces
// ErrConcurrencyConflict when it loses the race.
type TicketRepository interface {
	Insert(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Ticket, error)
	Update(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]*domain.Ticket, error)
	// NextSequence atomically increments and returns the allocation counter
	// for the given period key (YYYYMM).
	NextSequence(ctx context.Context, period string) (int, error)
}

// CommentRepository persists ticket comments, including the audit trail.
type CommentRepository interface {
	Insert(ctx context.Context, comment *domain.Comment) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Comment, error)
	Update(ctx context.Context, comment *domain.Comment) (*domain.Comment, error)
	ListByTicket(ctx context.Context, ticketID uuid.UUID) ([]*domain.Comment, error)
}

// AttachmentRepository persists attachment metadata; the bytes live with the
// external storage collaborator.
type AttachmentRepository interface {
	Insert(ctx context.Context, attachment *domain.Attachment) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Attachment, error)
	ListByTicket(ctx context.Context, ticketID uuid.UUID) ([]*domain.Attachment, error)
}

// UserRepository supplies the identities the workflow consumes.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	SetRole(ctx context.Context, id uuid.UUID, role domain.Role) error
	SetStatus(ctx context.Context, id uuid.UUID, status domain.UserStatus) error
	TouchLastActive(ctx context.Context, id uuid.UUID, at time.Time) error
	// MostRecentlyActiveStaff returns the active staff member with the
	// freshest last-active stamp, or ErrUserNotFound when none exists.
	MostRecentlyActiveStaff(ctx context.Context) (*domain.User, error)
}

// TransactionManager runs a function atomically against the store.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
