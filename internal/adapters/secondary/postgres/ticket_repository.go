package postgres

import (
	"context"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lorrc/helpdesk-backend/internal/core/domain"
	apperrors "github.com/lorrc/helpdesk-backend/internal/core/errors"
	"github.com/lorrc/helpdesk-backend/internal/core/ports"
)

// psql is the shared statement builder with Postgres placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const uniqueViolationCode = "23505"

var ticketColumns = []string{
	"id", "ticket_number", "title", "description", "category", "urgency", "status",
	"created_by", "assigned_to",
	"created_at", "updated_at", "resolved_at", "closed_at", "first_response_at",
	"estimated_resolution_hours", "actual_resolution_hours",
	"tags", "metadata", "resolution_notes", "satisfaction_rating", "satisfaction_comment",
	"version",
}

// TicketRepository is the secondary adapter for ticket persistence.
type TicketRepository struct {
	pool *pgxpool.Pool
}

var _ ports.TicketRepository = (*TicketRepository)(nil)

// NewTicketRepository creates a new ticket repository.
func NewTicketRepository(pool *pgxpool.Pool) *TicketRepository {
	return &TicketRepository{pool: pool}
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var t domain.Ticket
	err := row.Scan(
		&t.ID, &t.TicketNumber, &t.Title, &t.Description, &t.Category, &t.Urgency, &t.Status,
		&t.CreatedBy, &t.AssignedTo,
		&t.CreatedAt, &t.UpdatedAt, &t.ResolvedAt, &t.ClosedAt, &t.FirstResponseAt,
		&t.EstimatedResolutionHours, &t.ActualResolutionHours,
		&t.Tags, &t.Metadata, &t.ResolutionNotes, &t.SatisfactionRating, &t.SatisfactionComment,
		&t.Version,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Insert persists a new ticket. A collision on the unique ticket_number index
// surfaces as ErrDuplicateTicketNumber so the caller can mint a fresh number.
func (r *TicketRepository) Insert(ctx context.Context, ticket *domain.Ticket) error {
	query, args, err := psql.Insert("tickets").
		Columns(ticketColumns...).
		Values(
			ticket.ID, ticket.TicketNumber, ticket.Title, ticket.Description,
			ticket.Category, ticket.Urgency, ticket.Status,
			ticket.CreatedBy, ticket.AssignedTo,
			ticket.CreatedAt, ticket.UpdatedAt, ticket.ResolvedAt, ticket.ClosedAt, ticket.FirstResponseAt,
			ticket.EstimatedResolutionHours, ticket.ActualResolutionHours,
			ticket.Tags, ticket.Metadata, ticket.ResolutionNotes,
			ticket.SatisfactionRating, ticket.SatisfactionComment,
			ticket.Version,
		).
		ToSql()
	if err != nil {
		return apperrors.NewStorageError("build insert ticket", err)
	}

	if _, err := GetDBTX(ctx, r.pool).Exec(ctx, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode && pgErr.ConstraintName == "tickets_ticket_number_key" {
			return apperrors.ErrDuplicateTicketNumber
		}
		return apperrors.NewStorageError("insert ticket", err)
	}
	return nil
}

// GetByID retrieves a single ticket by its ID.
func (r *TicketRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Ticket, error) {
	query, args, err := psql.Select(ticketColumns...).
		From("tickets").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, apperrors.NewStorageError("build get ticket", err)
	}

	ticket, err := scanTicket(GetDBTX(ctx, r.pool).QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrTicketNotFound
		}
		return nil, apperrors.NewStorageError("get ticket", err)
	}
	return ticket, nil
}

// Update writes the ticket conditionally on its version. Losing the race
// against a concurrent writer yields ErrConcurrencyConflict; the caller
// re-reads and retries.
func (r *TicketRepository) Update(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error) {
	query, args, err := psql.Update("tickets").
		Set("title", ticket.Title).
		Set("description", ticket.Description).
		Set("category", ticket.Category).
		Set("urgency", ticket.Urgency).
		Set("status", ticket.Status).
		Set("assigned_to", ticket.AssignedTo).
		Set("updated_at", ticket.UpdatedAt).
		Set("resolved_at", ticket.ResolvedAt).
		Set("closed_at", ticket.ClosedAt).
		Set("first_response_at", ticket.FirstResponseAt).
		Set("estimated_resolution_hours", ticket.EstimatedResolutionHours).
		Set("actual_resolution_hours", ticket.ActualResolutionHours).
		Set("tags", ticket.Tags).
		Set("metadata", ticket.Metadata).
		Set("resolution_notes", ticket.ResolutionNotes).
		Set("satisfaction_rating", ticket.SatisfactionRating).
		Set("satisfaction_comment", ticket.SatisfactionComment).
		Set("version", ticket.Version+1).
		Where(sq.Eq{"id": ticket.ID, "version": ticket.Version}).
		ToSql()
	if err != nil {
		return nil, apperrors.NewStorageError("build update ticket", err)
	}

	tag, err := GetDBTX(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStorageError("update ticket", err)
	}
	if tag.RowsAffected() == 0 {
		// Either the row vanished or another writer bumped the version first.
		if _, getErr := r.GetByID(ctx, ticket.ID); getErr != nil {
			return nil, getErr
		}
		return nil, apperrors.ErrConcurrencyConflict
	}

	ticket.Version++
	return ticket, nil
}

// List retrieves tickets matching the filter, newest first.
func (r *TicketRepository) List(ctx context.Context, filter ports.TicketFilter) ([]*domain.Ticket, error) {
	builder := psql.Select(ticketColumns...).
		From("tickets").
		OrderBy("created_at DESC")

	if len(filter.Statuses) > 0 {
		builder = builder.Where(sq.Eq{"status": filter.Statuses})
	}
	if len(filter.Urgencies) > 0 {
		builder = builder.Where(sq.Eq{"urgency": filter.Urgencies})
	}
	if len(filter.Categories) > 0 {
		builder = builder.Where(sq.Eq{"category": filter.Categories})
	}
	if filter.CreatedBy != nil {
		builder = builder.Where(sq.Eq{"created_by": *filter.CreatedBy})
	}
	if filter.AssignedTo != nil {
		builder = builder.Where(sq.Eq{"assigned_to": *filter.AssignedTo})
	}
	if filter.Unassigned {
		builder = builder.Where(sq.Eq{"assigned_to": nil})
	}
	if filter.CreatedFrom != nil {
		builder = builder.Where(sq.GtOrEq{"created_at": *filter.CreatedFrom})
	}
	if filter.CreatedTo != nil {
		builder = builder.Where(sq.Lt{"created_at": *filter.CreatedTo})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		builder = builder.Offset(uint64(filter.Offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, apperrors.NewStorageError("build list tickets", err)
	}

	rows, err := GetDBTX(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStorageError("list tickets", err)
	}
	defer rows.Close()

	var tickets []*domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, apperrors.NewStorageError("scan ticket", err)
		}
		tickets = append(tickets, ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("list tickets", err)
	}
	return tickets, nil
}

// NextSequence atomically increments and returns the allocation counter for
// the period. The upsert serializes concurrent allocators on the period row.
func (r *TicketRepository) NextSequence(ctx context.Context, period string) (int, error) {
	const query = `
		INSERT INTO ticket_sequences (period, last_value)
		VALUES ($1, 1)
		ON CONFLICT (period)
		DO UPDATE SET last_value = ticket_sequences.last_value + 1
		RETURNING last_value`

	var value int
	if err := GetDBTX(ctx, r.pool).QueryRow(ctx, query, period).Scan(&value); err != nil {
		return 0, apperrors.NewStorageError("next ticket sequence", err)
	}
	return value, nil
}
