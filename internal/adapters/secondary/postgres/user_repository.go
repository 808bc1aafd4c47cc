package postgres

import (
	"context"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lorrc/helpdesk-backend/internal/core/domain"
	apperrors "github.com/lorrc/helpdesk-backend/internal/core/errors"
	"github.com/lorrc/helpdesk-backend/internal/core/ports"
)

var userColumns = []string{
	"id", "full_name", "email", "hashed_password", "role", "status",
	"created_at", "last_active_at",
}

// UserRepository is the secondary adapter for user persistence.
type UserRepository struct {
	pool *pgxpool.Pool
}

var _ ports.UserRepository = (*UserRepository)(nil)

// NewUserRepository creates a new user repository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID, &u.FullName, &u.Email, &u.HashedPassword, &u.Role, &u.Status,
		&u.CreatedAt, &u.LastActiveAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create persists a new user account.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	query, args, err := psql.Insert("users").
		Columns(userColumns...).
		Values(
			user.ID, user.FullName, user.Email, user.HashedPassword,
			user.Role, user.Status, user.CreatedAt, user.LastActiveAt,
		).
		ToSql()
	if err != nil {
		return nil, apperrors.NewStorageError("build insert user", err)
	}

	if _, err := GetDBTX(ctx, r.pool).Exec(ctx, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return nil, apperrors.ErrUserExists
		}
		return nil, apperrors.NewStorageError("insert user", err)
	}
	return user, nil
}

// GetByID retrieves a single user by their ID.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query, args, err := psql.Select(userColumns...).
		From("users").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, apperrors.NewStorageError("build get user", err)
	}

	user, err := scanUser(GetDBTX(ctx, r.pool).QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.NewStorageError("get user", err)
	}
	return user, nil
}

// GetByEmail retrieves a single user by their email address.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query, args, err := psql.Select(userColumns...).
		From("users").
		Where(sq.Eq{"email": email}).
		ToSql()
	if err != nil {
		return nil, apperrors.NewStorageError("build get user by email", err)
	}

	user, err := scanUser(GetDBTX(ctx, r.pool).QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.NewStorageError("get user by email", err)
	}
	return user, nil
}

// SetRole updates a user's role.
func (r *UserRepository) SetRole(ctx context.Context, id uuid.UUID, role domain.Role) error {
	return r.setColumn(ctx, id, "role", role)
}

// SetStatus updates a user's account status.
func (r *UserRepository) SetStatus(ctx context.Context, id uuid.UUID, status domain.UserStatus) error {
	return r.setColumn(ctx, id, "status", status)
}

// TouchLastActive stamps the user's last-active time. The stamp orders
// auto-assignment candidates.
func (r *UserRepository) TouchLastActive(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.setColumn(ctx, id, "last_active_at", at)
}

func (r *UserRepository) setColumn(ctx context.Context, id uuid.UUID, column string, value any) error {
	query, args, err := psql.Update("users").
		Set(column, value).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return apperrors.NewStorageError("build update user", err)
	}

	tag, err := GetDBTX(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return apperrors.NewStorageError("update user", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

// MostRecentlyActiveStaff returns the active staff member with the freshest
// last-active stamp, or ErrUserNotFound when none exists.
func (r *UserRepository) MostRecentlyActiveStaff(ctx context.Context) (*domain.User, error) {
	query, args, err := psql.Select(userColumns...).
		From("users").
		Where(sq.Eq{"role": []domain.Role{domain.RoleStaff, domain.RoleSeniorStaff}}).
		Where(sq.Eq{"status": domain.UserActive}).
		OrderBy("last_active_at DESC NULLS LAST", "created_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, apperrors.NewStorageError("build most recently active staff", err)
	}

	user, err := scanUser(GetDBTX(ctx, r.pool).QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.NewStorageError("most recently active staff", err)
	}
	return user, nil
}
