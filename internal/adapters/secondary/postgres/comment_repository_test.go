package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/helpdesk-backend/internal/core/domain"
	apperrors "github.com/lorrc/helpdesk-backend/internal/core/errors"
)

func TestCommentRepository_InsertListOrdering(t *testing.T) {
	ctx := context.Background()
	repo := NewCommentRepository(testPool)
	user := createTestUser(t, ctx, domain.RoleMember)
	ticket := createTestTicket(t, ctx, user.ID)

	base := time.Now().UTC().Truncate(time.Microsecond)
	for i, content := range []string{"first", "second", "third"} {
		comment := &domain.Comment{
			ID:         uuid.New(),
			TicketID:   ticket.ID,
			AuthorID:   user.ID,
			Content:    content,
			IsInternal: i == 1,
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, repo.Insert(ctx, comment))
	}

	comments, err := repo.ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, comments, 3)
	assert.Equal(t, "first", comments[0].Content)
	assert.Equal(t, "second", comments[1].Content)
	assert.True(t, comments[1].IsInternal)
	assert.Equal(t, "third", comments[2].Content)
}

func TestCommentRepository_Update(t *testing.T) {
	ctx := context.Background()
	repo := NewCommentRepository(testPool)
	user := createTestUser(t, ctx, domain.RoleMember)
	ticket := createTestTicket(t, ctx, user.ID)

	comment := &domain.Comment{
		ID:        uuid.New(),
		TicketID:  ticket.ID,
		AuthorID:  user.ID,
		Content:   "typo here",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.Insert(ctx, comment))

	require.NoError(t, comment.Edit("typo fixed", time.Now().UTC()))
	updated, err := repo.Update(ctx, comment)
	require.NoError(t, err)
	assert.True(t, updated.IsEdited)

	found, err := repo.GetByID(ctx, comment.ID)
	require.NoError(t, err)
	assert.Equal(t, "typo fixed", found.Content)
	assert.True(t, found.IsEdited)
}

func TestCommentRepository_GetMissing(t *testing.T) {
	repo := NewCommentRepository(testPool)
	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrCommentNotFound)
}

func TestAttachmentRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewAttachmentRepository(testPool)
	user := createTestUser(t, ctx, domain.RoleMember)
	ticket := createTestTicket(t, ctx, user.ID)

	attachment := &domain.Attachment{
		ID:         uuid.New(),
		TicketID:   ticket.ID,
		UploadedBy: user.ID,
		FileName:   "screenshot.png",
		MimeType:   "image/png",
		SizeBytes:  4096,
		ScanStatus: domain.ScanPending,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, repo.Insert(ctx, attachment))

	found, err := repo.GetByID(ctx, attachment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ScanPending, found.ScanStatus)
	assert.Equal(t, "screenshot.png", found.FileName)

	listed, err := repo.ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
}
