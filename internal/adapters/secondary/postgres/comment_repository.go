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

var commentColumns = []string{
	"id", "ticket_id", "author_id", "content", "is_internal", "is_edited",
	"parent_comment_id", "created_at", "updated_at",
}

// CommentRepository is the secondary adapter for comment persistence,
// including the audit trail rows.
type CommentRepository struct {
	pool *pgxpool.Pool
}

var _ ports.CommentRepository = (*CommentRepository)(nil)

// NewCommentRepository creates a new comment repository.
func NewCommentRepository(pool *pgxpool.Pool) *CommentRepository {
	return &CommentRepository{pool: pool}
}

func scanComment(row pgx.Row) (*domain.Comment, error) {
	var c domain.Comment
	err := row.Scan(
		&c.ID, &c.TicketID, &c.AuthorID, &c.Content, &c.IsInternal, &c.IsEdited,
		&c.ParentCommentID, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Insert persists a new comment.
func (r *CommentRepository) Insert(ctx context.Context, comment *domain.Comment) error {
	query, args, err := psql.Insert("comments").
		Columns(commentColumns...).
		Values(
			comment.ID, comment.TicketID, comment.AuthorID, comment.Content,
			comment.IsInternal, comment.IsEdited, comment.ParentCommentID,
			comment.CreatedAt, comment.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return apperrors.NewStorageError("build insert comment", err)
	}

	if _, err := GetDBTX(ctx, r.pool).Exec(ctx, query, args...); err != nil {
		return apperrors.NewStorageError("insert comment", err)
	}
	return nil
}

// GetByID retrieves a single comment by its ID.
func (r *CommentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Comment, error) {
	query, args, err := psql.Select(commentColumns...).
		From("comments").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, apperrors.NewStorageError("build get comment", err)
	}

	comment, err := scanComment(GetDBTX(ctx, r.pool).QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrCommentNotFound
		}
		return nil, apperrors.NewStorageError("get comment", err)
	}
	return comment, nil
}

// Update persists an edited comment.
func (r *CommentRepository) Update(ctx context.Context, comment *domain.Comment) (*domain.Comment, error) {
	query, args, err := psql.Update("comments").
		Set("content", comment.Content).
		Set("is_edited", comment.IsEdited).
		Set("updated_at", comment.UpdatedAt).
		Where(sq.Eq{"id": comment.ID}).
		ToSql()
	if err != nil {
		return nil, apperrors.NewStorageError("build update comment", err)
	}

	tag, err := GetDBTX(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStorageError("update comment", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, apperrors.ErrCommentNotFound
	}
	return comment, nil
}

// ListByTicket retrieves a ticket's comments in chronological order.
func (r *CommentRepository) ListByTicket(ctx context.Context, ticketID uuid.UUID) ([]*domain.Comment, error) {
	query, args, err := psql.Select(commentColumns...).
		From("comments").
		Where(sq.Eq{"ticket_id": ticketID}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, apperrors.NewStorageError("build list comments", err)
	}

	rows, err := GetDBTX(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStorageError("list comments", err)
	}
	defer rows.Close()

	var comments []*domain.Comment
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, apperrors.NewStorageError("scan comment", err)
		}
		comments = append(comments, comment)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("list comments", err)
	}
	return comments, nil
}
