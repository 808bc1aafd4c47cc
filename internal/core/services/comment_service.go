package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lorrc/helpdesk-backend/internal/core/domain"
	apperrors "github.com/lorrc/helpdesk-backend/internal/core/errors"
	"github.com/lorrc/helpdesk-backend/internal/core/ports"
)

// CommentService implements comment threads and attachment metadata against a
// ticket, with the visibility filter applied on every read.
type CommentService struct {
	commentRepo    ports.CommentRepository
	attachmentRepo ports.AttachmentRepository
	ticketRepo     ports.TicketRepository
	authzSvc       ports.AuthorizationService
	logger         *slog.Logger
}

var _ ports.CommentService = (*CommentService)(nil)

// NewCommentService creates a new comment service.
func NewCommentService(
	commentRepo ports.CommentRepository,
	attachmentRepo ports.AttachmentRepository,
	ticketRepo ports.TicketRepository,
	authzSvc ports.AuthorizationService,
	logger *slog.Logger,
) *CommentService {
	return &CommentService{
		commentRepo:    commentRepo,
		attachmentRepo: attachmentRepo,
		ticketRepo:     ticketRepo,
		authzSvc:       authzSvc,
		logger:         logger.With("component", "comment_service"),
	}
}

// CreateComment adds a comment to a ticket. Only actors who can see internal
// comments may author them. The first public staff reply on someone else's
// ticket stamps first_response_at.
func (s *CommentService) CreateComment(ctx context.Context, params ports.CreateCommentParams) (*domain.Comment, error) {
	// 1. Fetch the ticket and check the audience
	ticket, err := s.ticketRepo.GetByID(ctx, params.TicketID)
	if err != nil {
		return nil, err
	}
	if !s.authzSvc.CanComment(params.Actor, ticket) {
		return nil, apperrors.ErrForbidden
	}
	if params.IsInternal && !s.authzSvc.Can(params.Actor.Role, domain.PermTicketsViewAll) {
		return nil, apperrors.ErrForbidden
	}

	// 2. Validate the parent reference, if any
	if params.ParentCommentID != nil {
		parent, err := s.commentRepo.GetByID(ctx, *params.ParentCommentID)
		if err != nil {
			return nil, err
		}
		if parent.TicketID != params.TicketID {
			return nil, apperrors.NewBadRequestError(apperrors.ErrBadRequest, "Parent comment belongs to a different ticket")
		}
	}

	// 3. Build and persist
	comment, err := domain.NewComment(params.TicketID, params.Actor.ID, params.Content, params.IsInternal, params.ParentCommentID)
	if err != nil {
		return nil, err
	}
	if err := s.commentRepo.Insert(ctx, comment); err != nil {
		return nil, err
	}

	// 4. Stamp the first response. Best effort: losing the version race here
	// just means another staff reply got there first.
	if !params.IsInternal &&
		!ticket.IsOwnedBy(params.Actor.ID) &&
		params.Actor.Role.IsStaff() &&
		ticket.FirstResponseAt == nil {
		ticket.MarkFirstResponse(comment.CreatedAt)
		if _, err := s.ticketRepo.Update(ctx, ticket); err != nil {
			s.logger.Warn("failed to stamp first response",
				"ticket_id", ticket.ID,
				"error", err,
			)
		}
	}

	return comment, nil
}

// EditComment replaces a comment's content within the edit rules: the author
// inside the 24h window, or an all-comments editor at any time.
func (s *CommentService) EditComment(ctx context.Context, params ports.EditCommentParams) (*domain.Comment, error) {
	comment, err := s.commentRepo.GetByID(ctx, params.CommentID)
	if err != nil {
		return nil, err
	}

	ticket, err := s.ticketRepo.GetByID(ctx, comment.TicketID)
	if err != nil {
		return nil, err
	}
	if !s.authzSvc.CanViewComment(params.Actor, ticket, comment) {
		return nil, apperrors.ErrForbidden
	}

	now := time.Now().UTC()
	if !comment.EditableBy(params.Actor, now) {
		if comment.AuthorID == params.Actor.ID {
			return nil, apperrors.ErrCommentEditExpired
		}
		return nil, apperrors.ErrForbidden
	}

	if err := comment.Edit(params.Content, now); err != nil {
		return nil, err
	}
	return s.commentRepo.Update(ctx, comment)
}

// ListComments returns the ticket's comments the actor is allowed to see.
// Internal comments are filtered out for actors without the all-tickets-view
// capability.
func (s *CommentService) ListComments(ctx context.Context, ticketID uuid.UUID, actor domain.Actor) ([]*domain.Comment, error) {
	ticket, err := s.ticketRepo.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !s.authzSvc.CanView(actor, ticket) {
		return nil, apperrors.ErrForbidden
	}

	comments, err := s.commentRepo.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	visible := make([]*domain.Comment, 0, len(comments))
	for _, comment := range comments {
		if s.authzSvc.CanViewComment(actor, ticket, comment) {
			visible = append(visible, comment)
		}
	}
	return visible, nil
}

// RegisterAttachment records uploaded-file metadata against a ticket. The
// scan verdict starts PENDING; downloads stay gated until the scanner reports
// CLEAN.
func (s *CommentService) RegisterAttachment(ctx context.Context, params ports.RegisterAttachmentParams) (*domain.Attachment, error) {
	ticket, err := s.ticketRepo.GetByID(ctx, params.TicketID)
	if err != nil {
		return nil, err
	}
	if !s.authzSvc.CanView(params.Actor, ticket) ||
		!s.authzSvc.Can(params.Actor.Role, domain.PermAttachmentsUpload) {
		return nil, apperrors.ErrForbidden
	}

	attachment := &domain.Attachment{
		ID:         uuid.New(),
		TicketID:   params.TicketID,
		CommentID:  params.CommentID,
		UploadedBy: params.Actor.ID,
		FileName:   params.FileName,
		MimeType:   params.MimeType,
		SizeBytes:  params.SizeBytes,
		ScanStatus: domain.ScanPending,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.attachmentRepo.Insert(ctx, attachment); err != nil {
		return nil, err
	}
	return attachment, nil
}

// CheckDownload evaluates the three-way download decision for an attachment.
func (s *CommentService) CheckDownload(ctx context.Context, attachmentID uuid.UUID, actor domain.Actor) (domain.DownloadDecision, *domain.Attachment, error) {
	attachment, err := s.attachmentRepo.GetByID(ctx, attachmentID)
	if err != nil {
		return domain.DownloadDenied, nil, err
	}
	ticket, err := s.ticketRepo.GetByID(ctx, attachment.TicketID)
	if err != nil {
		return domain.DownloadDenied, nil, err
	}

	decision := s.authzSvc.DownloadDecision(actor, ticket, attachment)
	if decision == domain.DownloadDenied {
		return decision, nil, nil
	}
	return decision, attachment, nil
}
