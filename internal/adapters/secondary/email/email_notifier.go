package email

import (
	"context"
	"log/slog"

	"github.com/lorrc/helpdesk-backend/internal/core/ports"
)

// LogNotifier is a secondary adapter that logs outbound notifications instead
// of delivering them. It implements the ports.Notifier interface and stands
// in for a real SMTP sender in development and tests.
type LogNotifier struct {
	userRepo ports.UserRepository
	logger   *slog.Logger
}

var _ ports.Notifier = (*LogNotifier)(nil)

// NewLogNotifier creates a new logging notifier. It requires a UserRepository
// to resolve recipient details.
func NewLogNotifier(userRepo ports.UserRepository, logger *slog.Logger) ports.Notifier {
	return &LogNotifier{
		userRepo: userRepo,
		logger:   logger.With("component", "email_notifier"),
	}
}

// Notify logs the notification instead of sending an email. Callers invoke it
// from their own goroutines; failures here never reach the workflow.
func (n *LogNotifier) Notify(ctx context.Context, params ports.NotificationParams) {
	// Use a new background context in case the original request context is cancelled.
	notifyCtx := context.Background()

	user, err := n.userRepo.GetByID(notifyCtx, params.RecipientUserID)
	if err != nil {
		n.logger.Error("failed to get user for notification",
			"user_id", params.RecipientUserID,
			"error", err,
		)
		return
	}

	n.logger.Info("mock email sent",
		"to_name", user.FullName,
		"to_email", user.Email,
		"subject", params.Subject,
		"ticket_number", params.TicketNumber,
	)
}
