package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lorrc/helpdesk-backend/internal/core/domain"
)

// AuthService defines the port for authentication business logic.
type AuthService interface {
	Register(ctx context.Context, fullName, email, password string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*domain.User, error)
}

// AuthorizationService is the capability evaluator plus the derived
// visibility checks. All methods are pure predicates over the static role
// table; none can fail.
type AuthorizationService interface {
	Can(role domain.Role, perm domain.Permission) bool
	CanView(actor domain.Actor, ticket *domain.Ticket) bool
	CanEdit(actor domain.Actor, ticket *domain.Ticket) bool
	CanComment(actor domain.Actor, ticket *domain.Ticket) bool
	CanViewComment(actor domain.Actor, ticket *domain.Ticket, comment *domain.Comment) bool
	AllowedUpdateFields(actor domain.Actor, ticket *domain.Ticket) []domain.TrackableField
	DownloadDecision(actor domain.Actor, ticket *domain.Ticket, attachment *domain.Attachment) domain.DownloadDecision
}

// CreateTicketParams defines the input for submitting a new ticket.
type CreateTicketParams struct {
	Actor                    domain.Actor
	Title                    string
	Description              string
	Category                 domain.Category
	Urgency                  domain.Urgency
	EstimatedResolutionHours *int
	Tags                     []string
	Metadata                 map[string]any
}

// TransitionParams defines the input for a status change.
type TransitionParams struct {
	TicketID            uuid.UUID
	Actor               domain.Actor
	NewStatus           domain.TicketStatus
	ResolutionNotes     string
	SatisfactionRating  *int
	SatisfactionComment *string
}

// UpdateFieldsParams defines the input for a non-status field update.
type UpdateFieldsParams struct {
	TicketID uuid.UUID
	Actor    domain.Actor
	Update   domain.TicketUpdate
}

// AssignParams defines the input for (re/un)assigning a ticket. A nil
// AssigneeID clears the assignment.
type AssignParams struct {
	TicketID   uuid.UUID
	Actor      domain.Actor
	AssigneeID *uuid.UUID
	Reason     string
}

// ListTicketsParams defines the input for listing tickets.
type ListTicketsParams struct {
	Actor       domain.Actor
	Statuses    []domain.TicketStatus
	Urgencies   []domain.Urgency
	Categories  []domain.Category
	AssignedTo  *uuid.UUID
	Unassigned  bool
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// CreateCommentParams defines the input for creating a comment.
type CreateCommentParams struct {
	TicketID        uuid.UUID
	Actor           domain.Actor
	Content         string
	IsInternal      bool
	ParentCommentID *uuid.UUID
}

// EditCommentParams defines the input for editing a comment.
type EditCommentParams struct {
	CommentID uuid.UUID
	Actor     domain.Actor
	Content   string
}

// RegisterAttachmentParams defines the input for recording uploaded-file
// metadata against a ticket.
type RegisterAttachmentParams struct {
	TicketID  uuid.UUID
	CommentID *uuid.UUID
	Actor     domain.Actor
	FileName  string
	MimeType  string
	SizeBytes int64
}

// NotificationParams defines the input for sending a notification.
type NotificationParams struct {
	RecipientUserID uuid.UUID
	Subject         string
	Message         string
	TicketNumber    string
}

// TicketService defines the core workflow operations.
type TicketService interface {
	CreateTicket(ctx context.Context, params CreateTicketParams) (*domain.Ticket, error)
	GetTicket(ctx context.Context, ticketID uuid.UUID, actor domain.Actor) (*domain.Ticket, error)
	TransitionStatus(ctx context.Context, params TransitionParams) (*domain.Ticket, error)
	UpdateFields(ctx context.Context, params UpdateFieldsParams) (*domain.Ticket, error)
	ListTickets(ctx context.Context, params ListTicketsParams) ([]*domain.Ticket, error)
	Shutdown()
}

// AssignmentService validates assignees and applies the assignment/status
// coupling.
type AssignmentService interface {
	Assign(ctx context.Context, params AssignParams) (*domain.Ticket, error)
	AutoAssign(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error)
}

// CommentService defines the port for comment and attachment operations.
type CommentService interface {
	CreateComment(ctx context.Context, params CreateCommentParams) (*domain.Comment, error)
	EditComment(ctx context.Context, params EditCommentParams) (*domain.Comment, error)
	ListComments(ctx context.Context, ticketID uuid.UUID, actor domain.Actor) ([]*domain.Comment, error)
	RegisterAttachment(ctx context.Context, params RegisterAttachmentParams) (*domain.Attachment, error)
	CheckDownload(ctx context.Context, attachmentID uuid.UUID, actor domain.Actor) (domain.DownloadDecision, *domain.Attachment, error)
}

// UserAdminService covers senior-staff-only account administration.
type UserAdminService interface {
	SetUserRole(ctx context.Context, actor domain.Actor, userID uuid.UUID, role domain.Role) error
	SetUserStatus(ctx context.Context, actor domain.Actor, userID uuid.UUID, status domain.UserStatus) error
}

// AuditRecorder appends the internal-only narrative comment for a mutation.
// Implementations must degrade gracefully: a failed append is logged, never
// propagated, because the primary mutation is already committed.
type AuditRecorder interface {
	Record(ctx context.Context, ticketID, actorID uuid.UUID, message string)
}

// Notifier defines the port for sending asynchronous notifications.
type Notifier interface {
	Notify(ctx context.Context, params NotificationParams)
}

// NumberAllocator mints collision-free human-readable ticket numbers.
type NumberAllocator interface {
	Allocate(ctx context.Context, at time.Time) (string, error)
}
