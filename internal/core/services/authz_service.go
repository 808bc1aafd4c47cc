package services

import (
	"github.com/lorrc/helpdesk-backend/internal/core/domain"
	"github.com/lorrc/helpdesk-backend/internal/core/ports"
)

// AuthorizationService implements the capability evaluator and the derived
// visibility checks. The role table is static, so every method is a pure
// predicate; there is nothing to inject and nothing that can fail.
type AuthorizationService struct{}

// Ensure implementation matches the interface.
var _ ports.AuthorizationService = (*AuthorizationService)(nil)

// NewAuthorizationService creates the authorization service.
func NewAuthorizationService() ports.AuthorizationService {
	return &AuthorizationService{}
}

// Can checks a single capability against the static role table.
func (s *AuthorizationService) Can(role domain.Role, perm domain.Permission) bool {
	return domain.HasPermission(role, perm)
}

// CanView: the owner, the assignee, or anyone holding the all-tickets-view
// capability.
func (s *AuthorizationService) CanView(actor domain.Actor, ticket *domain.Ticket) bool {
	if ticket.IsOwnedBy(actor.ID) || ticket.IsAssignedTo(actor.ID) {
		return true
	}
	return domain.HasPermission(actor.Role, domain.PermTicketsViewAll)
}

// CanEdit: the all-tickets-edit capability, or the owner with edit-own while
// the ticket is still in its active phase.
func (s *AuthorizationService) CanEdit(actor domain.Actor, ticket *domain.Ticket) bool {
	if domain.HasPermission(actor.Role, domain.PermTicketsEditAll) {
		return true
	}
	return ticket.IsOwnedBy(actor.ID) &&
		domain.HasPermission(actor.Role, domain.PermTicketsEditOwn) &&
		!ticket.ResolutionLocked()
}

// CanComment: anyone who can view the ticket and holds the comment-create
// capability.
func (s *AuthorizationService) CanComment(actor domain.Actor, ticket *domain.Ticket) bool {
	return s.CanView(actor, ticket) &&
		domain.HasPermission(actor.Role, domain.PermCommentsCreate)
}

// CanViewComment: internal comments require the all-tickets-view capability;
// public comments follow the parent ticket's visibility.
func (s *AuthorizationService) CanViewComment(actor domain.Actor, ticket *domain.Ticket, comment *domain.Comment) bool {
	if comment.IsInternal {
		return domain.HasPermission(actor.Role, domain.PermTicketsViewAll)
	}
	return s.CanView(actor, ticket)
}

// AllowedUpdateFields computes the field set the actor may change on this
// ticket. Privileged editors may touch everything including status and
// assignment; owners keep a narrow set and only while the ticket is active.
func (s *AuthorizationService) AllowedUpdateFields(actor domain.Actor, ticket *domain.Ticket) []domain.TrackableField {
	if domain.HasPermission(actor.Role, domain.PermTicketsEditAll) {
		return []domain.TrackableField{
			domain.FieldTitle,
			domain.FieldDescription,
			domain.FieldUrgency,
			domain.FieldCategory,
			domain.FieldStatus,
			domain.FieldAssignedTo,
			domain.FieldResolutionNotes,
			domain.FieldTags,
			domain.FieldMetadata,
			domain.FieldEstimatedHours,
		}
	}
	if ticket.IsOwnedBy(actor.ID) &&
		domain.HasPermission(actor.Role, domain.PermTicketsEditOwn) &&
		!ticket.ResolutionLocked() {
		return []domain.TrackableField{
			domain.FieldTitle,
			domain.FieldDescription,
			domain.FieldUrgency,
		}
	}
	return nil
}

// DownloadDecision gates attachment downloads. Audience first, scan verdict
// second, so an unauthorized caller never learns the scan state.
func (s *AuthorizationService) DownloadDecision(actor domain.Actor, ticket *domain.Ticket, attachment *domain.Attachment) domain.DownloadDecision {
	audience := attachment.UploadedBy == actor.ID ||
		ticket.IsOwnedBy(actor.ID) ||
		ticket.IsAssignedTo(actor.ID) ||
		domain.HasPermission(actor.Role, domain.PermTicketsViewAll)
	if !audience {
		return domain.DownloadDenied
	}

	switch attachment.ScanStatus {
	case domain.ScanClean:
		return domain.DownloadAllowed
	case domain.ScanPending:
		return domain.DownloadNotReady
	default:
		return domain.DownloadDenied
	}
}
