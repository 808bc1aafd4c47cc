package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lorrc/helpdesk-backend/internal/core/domain"
	"github.com/lorrc/helpdesk-backend/internal/core/ports"
)

// AuditRecorder writes the ticket's narrative history as internal-only
// comments. This is the single write path that forces is_internal regardless
// of caller intent.
type AuditRecorder struct {
	comments ports.CommentRepository
	logger   *slog.Logger
}

var _ ports.AuditRecorder = (*AuditRecorder)(nil)

// NewAuditRecorder creates the recorder.
func NewAuditRecorder(comments ports.CommentRepository, logger *slog.Logger) ports.AuditRecorder {
	return &AuditRecorder{
		comments: comments,
		logger:   logger.With("component", "audit_recorder"),
	}
}

// Record appends one audit comment. The primary mutation is already
// committed when this runs, so a failed append is logged and swallowed: the
// state change stays authoritative even if its narrative record is lost.
func (r *AuditRecorder) Record(ctx context.Context, ticketID, actorID uuid.UUID, message string) {
	comment := &domain.Comment{
		ID:         uuid.New(),
		TicketID:   ticketID,
		AuthorID:   actorID,
		Content:    message,
		IsInternal: true,
		CreatedAt:  time.Now().UTC(),
	}

	if err := r.comments.Insert(ctx, comment); err != nil {
		r.logger.Error("failed to record audit comment",
			"ticket_id", ticketID,
			"actor_id", actorID,
			"message", message,
			"error", err,
		)
	}
}
