package services

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/lorrc/helpdesk-backend/internal/core/domain"
	apperrors "github.com/lorrc/helpdesk-backend/internal/core/errors"
	"github.com/lorrc/helpdesk-backend/internal/core/ports"
)

// UserAdminService covers account administration: role and status changes,
// restricted to holders of the users-manage capability.
type UserAdminService struct {
	userRepo ports.UserRepository
	authzSvc ports.AuthorizationService
	logger   *slog.Logger
}

var _ ports.UserAdminService = (*UserAdminService)(nil)

// NewUserAdminService creates a new user administration service.
func NewUserAdminService(userRepo ports.UserRepository, authzSvc ports.AuthorizationService, logger *slog.Logger) *UserAdminService {
	return &UserAdminService{
		userRepo: userRepo,
		authzSvc: authzSvc,
		logger:   logger.With("component", "user_admin_service"),
	}
}

// SetUserRole changes a user's role.
func (s *UserAdminService) SetUserRole(ctx context.Context, actor domain.Actor, userID uuid.UUID, role domain.Role) error {
	if !s.authzSvc.Can(actor.Role, domain.PermUsersManage) {
		return apperrors.ErrForbidden
	}
	if !domain.ValidRole(role) {
		return apperrors.ErrInvalidRole
	}
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return err
	}
	if err := s.userRepo.SetRole(ctx, userID, role); err != nil {
		return err
	}
	s.logger.Info("user role changed",
		"actor_id", actor.ID,
		"user_id", userID,
		"role", role,
	)
	return nil
}

// SetUserStatus changes a user's account status. Suspended and locked
// accounts keep their tickets; they just stop being eligible assignees.
func (s *UserAdminService) SetUserStatus(ctx context.Context, actor domain.Actor, userID uuid.UUID, status domain.UserStatus) error {
	if !s.authzSvc.Can(actor.Role, domain.PermUsersManage) {
		return apperrors.ErrForbidden
	}
	if !domain.ValidUserStatus(status) {
		return apperrors.ErrInvalidUserState
	}
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return err
	}
	if err := s.userRepo.SetStatus(ctx, userID, status); err != nil {
		return err
	}
	s.logger.Info("user status changed",
		"actor_id", actor.ID,
		"user_id", userID,
		"status", status,
	)
	return nil
}
