package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/lorrc/helpdesk-backend/internal/core/errors"
)

// AuthorEditWindow is how long a comment author may edit their own comment.
// Measured as a wall-clock delta from creation; there is no grace rounding.
const AuthorEditWindow = 24 * time.Hour

// Comment belongs to exactly one ticket. Internal comments are the staff-only
// channel; the audit trail is written through them as well.
type Comment struct {
	ID         uuid.UUID
	TicketID   uuid.UUID
	AuthorID   uuid.UUID
	Content    string
	IsInternal bool
	IsEdited   bool
	// ParentCommentID threads replies; it is a weak reference, not ownership.
	ParentCommentID *uuid.UUID
	CreatedAt       time.Time
	UpdatedAt       *time.Time
}

// NewComment validates and builds a comment.
func NewComment(ticketID, authorID uuid.UUID, content string, isInternal bool, parentID *uuid.UUID) (*Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.ErrCommentBodyRequired
	}
	return &Comment{
		ID:              uuid.New(),
		TicketID:        ticketID,
		AuthorID:        authorID,
		Content:         content,
		IsInternal:      isInternal,
		ParentCommentID: parentID,
		CreatedAt:       time.Now().UTC(),
	}, nil
}

// EditableBy reports whether the actor may edit this comment at the given
// moment: the author inside the 24h window, or anyone holding the
// all-comments-edit capability at any time.
func (c *Comment) EditableBy(actor Actor, now time.Time) bool {
	if HasPermission(actor.Role, PermCommentsEditAll) {
		return true
	}
	return c.AuthorID == actor.ID && now.Sub(c.CreatedAt) < AuthorEditWindow
}

// Edit replaces the content and flags the comment as edited.
func (c *Comment) Edit(content string, now time.Time) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return apperrors.ErrCommentBodyRequired
	}
	c.Content = content
	c.IsEdited = true
	updated := now
	c.UpdatedAt = &updated
	return nil
}

// ScanStatus is the virus-scan verdict gating attachment downloads.
type ScanStatus string

const (
	ScanPending  ScanStatus = "PENDING"
	ScanClean    ScanStatus = "CLEAN"
	ScanInfected ScanStatus = "INFECTED"
	ScanError    ScanStatus = "ERROR"
)

// Attachment belongs to one ticket and optionally one comment. The bytes
// themselves live with the external file-storage collaborator; the core only
// tracks metadata and the scan verdict.
type Attachment struct {
	ID         uuid.UUID
	TicketID   uuid.UUID
	CommentID  *uuid.UUID
	UploadedBy uuid.UUID
	FileName   string
	MimeType   string
	SizeBytes  int64
	ScanStatus ScanStatus
	CreatedAt  time.Time
}

// DownloadDecision is the three-way outcome of a download check: a pending
// scan is "not yet available", which is distinct from a denial.
type DownloadDecision int

const (
	DownloadDenied DownloadDecision = iota
	DownloadAllowed
	DownloadNotReady
)
