package postgres

import (
	"context"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lorrc/helpdesk-backend/internal/core/domain"
	apperrors "github.com/lorrc/helpdesk-backend/internal/core/errors"
	"github.com/lorrc/helpdesk-backend/internal/core/ports"
)

var attachmentColumns = []string{
	"id", "ticket_id", "comment_id", "uploaded_by",
	"file_name", "mime_type", "size_bytes", "scan_status", "created_at",
}

// AttachmentRepository is the secondary adapter for attachment metadata. The
// file bytes themselves live in external storage.
type AttachmentRepository struct {
	pool *pgxpool.Pool
}

var _ ports.AttachmentRepository = (*AttachmentRepository)(nil)

// NewAttachmentRepository creates a new attachment repository.
func NewAttachmentRepository(pool *pgxpool.Pool) *AttachmentRepository {
	return &AttachmentRepository{pool: pool}
}

func scanAttachment(row pgx.Row) (*domain.Attachment, error) {
	var a domain.Attachment
	err := row.Scan(
		&a.ID, &a.TicketID, &a.CommentID, &a.UploadedBy,
		&a.FileName, &a.MimeType, &a.SizeBytes, &a.ScanStatus, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Insert persists new attachment metadata.
func (r *AttachmentRepository) Insert(ctx context.Context, attachment *domain.Attachment) error {
	query, args, err := psql.Insert("attachments").
		Columns(attachmentColumns...).
		Values(
			attachment.ID, attachment.TicketID, attachment.CommentID, attachment.UploadedBy,
			attachment.FileName, attachment.MimeType, attachment.SizeBytes,
			attachment.ScanStatus, attachment.CreatedAt,
		).
		ToSql()
	if err != nil {
		return apperrors.NewStorageError("build insert attachment", err)
	}

	if _, err := GetDBTX(ctx, r.pool).Exec(ctx, query, args...); err != nil {
		return apperrors.NewStorageError("insert attachment", err)
	}
	return nil
}

// GetByID retrieves a single attachment by its ID.
func (r *AttachmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Attachment, error) {
	query, args, err := psql.Select(attachmentColumns...).
		From("attachments").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, apperrors.NewStorageError("build get attachment", err)
	}

	attachment, err := scanAttachment(GetDBTX(ctx, r.pool).QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrAttachmentNotFound
		}
		return nil, apperrors.NewStorageError("get attachment", err)
	}
	return attachment, nil
}

// ListByTicket retrieves a ticket's attachments, oldest first.
func (r *AttachmentRepository) ListByTicket(ctx context.Context, ticketID uuid.UUID) ([]*domain.Attachment, error) {
	query, args, err := psql.Select(attachmentColumns...).
		From("attachments").
		Where(sq.Eq{"ticket_id": ticketID}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, apperrors.NewStorageError("build list attachments", err)
	}

	rows, err := GetDBTX(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStorageError("list attachments", err)
	}
	defer rows.Close()

	var attachments []*domain.Attachment
	for rows.Next() {
		attachment, err := scanAttachment(rows)
		if err != nil {
			return nil, apperrors.NewStorageError("scan attachment", err)
		}
		attachments = append(attachments, attachment)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("list attachments", err)
	}
	return attachments, nil
}
