package postgres

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/helpdesk-backend/internal/core/domain"
	apperrors "github.com/lorrc/helpdesk-backend/internal/core/errors"
	"github.com/lorrc/helpdesk-backend/internal/core/ports"
)

// Helper to create a user for ticket tests
func createTestUser(t *testing.T, ctx context.Context, role domain.Role) *domain.User {
	t.Helper()
	userRepo := NewUserRepository(testPool)
	user := &domain.User{
		ID:             uuid.New(),
		FullName:       "Ticket Requester",
		Email:          uuid.NewString() + "@example.com", // Ensure unique email
		HashedPassword: "testpassword",
		Role:           role,
		Status:         domain.UserActive,
		CreatedAt:      time.Now().UTC(),
	}
	createdUser, err := userRepo.Create(ctx, user)
	require.NoError(t, err)
	return createdUser
}

func createTestTicket(t *testing.T, ctx context.Context, createdBy uuid.UUID) *domain.Ticket {
	t.Helper()
	repo := NewTicketRepository(testPool)
	ticket, err := domain.NewTicket(domain.TicketParams{
		Title:       "Portal login fails",
		Description: "Every login attempt ends in a blank page after MFA.",
		Category:    domain.CategoryAccountAccess,
		CreatedBy:   createdBy,
	})
	require.NoError(t, err)
	ticket.TicketNumber = fmt.Sprintf("TST-%s", uuid.NewString()[:18])
	ticket.Tags = []string{"login", "portal"}
	ticket.Metadata = map[string]any{"browser": "firefox"}
	require.NoError(t, repo.Insert(ctx, ticket))
	return ticket
}

func TestTicketRepository_InsertGet(t *testing.T) {
	ctx := context.Background()
	repo := NewTicketRepository(testPool)
	user := createTestUser(t, ctx, domain.RoleMember)

	ticket := createTestTicket(t, ctx, user.ID)

	found, err := repo.GetByID(ctx, ticket.ID)
	require.NoError(t, err)

	assert.Equal(t, ticket.TicketNumber, found.TicketNumber)
	assert.Equal(t, ticket.Title, found.Title)
	assert.Equal(t, domain.StatusOpen, found.Status)
	assert.Equal(t, domain.UrgencyMedium, found.Urgency)
	assert.Equal(t, user.ID, found.CreatedBy)
	assert.Equal(t, []string{"login", "portal"}, found.Tags)
	assert.Equal(t, "firefox", found.Metadata["browser"])
	require.NotNil(t, found.EstimatedResolutionHours)
	assert.Equal(t, 48, *found.EstimatedResolutionHours)
	assert.Equal(t, int64(0), found.Version)
}

func TestTicketRepository_GetMissing(t *testing.T) {
	repo := NewTicketRepository(testPool)
	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrTicketNotFound)
}

func TestTicketRepository_DuplicateNumber(t *testing.T) {
	ctx := context.Background()
	repo := NewTicketRepository(testPool)
	user := createTestUser(t, ctx, domain.RoleMember)
	first := createTestTicket(t, ctx, user.ID)

	dup, err := domain.NewTicket(domain.TicketParams{
		Title:       "Another login problem",
		Description: "A second report that happens to collide on the number.",
		Category:    domain.CategoryAccountAccess,
		CreatedBy:   user.ID,
	})
	require.NoError(t, err)
	dup.TicketNumber = first.TicketNumber

	assert.ErrorIs(t, repo.Insert(ctx, dup), apperrors.ErrDuplicateTicketNumber)
}

func TestTicketRepository_UpdateVersioning(t *testing.T) {
	ctx := context.Background()
	repo := NewTicketRepository(testPool)
	user := createTestUser(t, ctx, domain.RoleMember)
	ticket := createTestTicket(t, ctx, user.ID)

	t.Run("update bumps the version", func(t *testing.T) {
		now := time.Now().UTC()
		require.NoError(t, ticket.ApplyTransition(domain.StatusInProgress, domain.TransitionOptions{}, now))

		updated, err := repo.Update(ctx, ticket)
		require.NoError(t, err)
		assert.Equal(t, int64(1), updated.Version)

		found, err := repo.GetByID(ctx, ticket.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusInProgress, found.Status)
		assert.Equal(t, int64(1), found.Version)
	})

	t.Run("stale version loses with a conflict", func(t *testing.T) {
		stale := *ticket
		stale.Version = 0

		_, err := repo.Update(ctx, &stale)
		assert.ErrorIs(t, err, apperrors.ErrConcurrencyConflict)
	})
}

// Two writers race the same version of one ticket: exactly one wins, the
// other gets a concurrency conflict.
func TestTicketRepository_ConcurrentUpdateConflict(t *testing.T) {
	ctx := context.Background()
	repo := NewTicketRepository(testPool)
	user := createTestUser(t, ctx, domain.RoleMember)
	ticket := createTestTicket(t, ctx, user.ID)

	first, err := repo.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	second, err := repo.GetByID(ctx, ticket.ID)
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, first.ApplyTransition(domain.StatusInProgress, domain.TransitionOptions{}, now))
	require.NoError(t, second.ApplyTransition(domain.StatusResolved, domain.TransitionOptions{
		ResolutionNotes: "Racing resolution.",
	}, now))

	errs := make([]error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _, errs[0] = repo.Update(ctx, first) }()
	go func() { defer wg.Done(); _, errs[1] = repo.Update(ctx, second) }()
	wg.Wait()

	winners, losers := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			winners++
		case assert.ErrorIs(t, err, apperrors.ErrConcurrencyConflict):
			losers++
		}
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, 1, losers)

	found, err := repo.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), found.Version)
}

func TestTicketRepository_ListFilters(t *testing.T) {
	ctx := context.Background()
	repo := NewTicketRepository(testPool)
	creator := createTestUser(t, ctx, domain.RoleMember)
	other := createTestUser(t, ctx, domain.RoleMember)
	staff := createTestUser(t, ctx, domain.RoleStaff)

	mine := createTestTicket(t, ctx, creator.ID)
	assigned := createTestTicket(t, ctx, creator.ID)
	assigned.SetAssignment(&staff.ID, time.Now().UTC())
	_, err := repo.Update(ctx, assigned)
	require.NoError(t, err)
	createTestTicket(t, ctx, other.ID)

	t.Run("by creator", func(t *testing.T) {
		got, err := repo.List(ctx, ports.TicketFilter{CreatedBy: &creator.ID})
		require.NoError(t, err)
		require.Len(t, got, 2)
	})

	t.Run("by assignee", func(t *testing.T) {
		got, err := repo.List(ctx, ports.TicketFilter{AssignedTo: &staff.ID})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, assigned.ID, got[0].ID)
	})

	t.Run("by status", func(t *testing.T) {
		got, err := repo.List(ctx, ports.TicketFilter{
			CreatedBy: &creator.ID,
			Statuses:  []domain.TicketStatus{domain.StatusOpen},
		})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, mine.ID, got[0].ID)
	})

	t.Run("unassigned only", func(t *testing.T) {
		got, err := repo.List(ctx, ports.TicketFilter{
			CreatedBy:  &creator.ID,
			Unassigned: true,
		})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, mine.ID, got[0].ID)
	})
}

// Parallel allocators hammering one period must mint strictly distinct,
// gapless sequence values.
func TestTicketRepository_NextSequenceConcurrent(t *testing.T) {
	ctx := context.Background()
	repo := NewTicketRepository(testPool)
	period := "1990" + uuid.NewString()[:2] // avoid clashing with other tests

	const workers = 4
	results := make([]int, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = repo.NextSequence(ctx, period)
		}(i)
	}
	wg.Wait()

	seen := map[int]bool{}
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.False(t, seen[results[i]], "duplicate sequence value %d", results[i])
		seen[results[i]] = true
	}
	for want := 1; want <= workers; want++ {
		assert.True(t, seen[want], "missing sequence value %d", want)
	}
}
