package services

import (
	"context"
	"fmt"
	"time"

	"github.com/lorrc/helpdesk-backend/internal/core/ports"
)

// DefaultTicketNumberPrefix is used when the deployment does not configure
// its own.
const DefaultTicketNumberPrefix = "HD"

// NumberAllocator mints ticket numbers of the form {PREFIX}-{YYYYMM}-{NNNN}.
// The counter is a persistence-level sequence row keyed by the period, so
// parallel creators are serialized by the store and never see the same value.
// The unique index on ticket_number is the backstop; callers retry on
// ErrDuplicateTicketNumber.
type NumberAllocator struct {
	tickets ports.TicketRepository
	prefix  string
}

var _ ports.NumberAllocator = (*NumberAllocator)(nil)

// NewNumberAllocator creates the allocator. An empty prefix falls back to the
// default.
func NewNumberAllocator(tickets ports.TicketRepository, prefix string) ports.NumberAllocator {
	if prefix == "" {
		prefix = DefaultTicketNumberPrefix
	}
	return &NumberAllocator{tickets: tickets, prefix: prefix}
}

// Allocate returns the next number for the month containing at, rendered in
// local time to match the help desk's working day.
func (a *NumberAllocator) Allocate(ctx context.Context, at time.Time) (string, error) {
	period := at.Local().Format("200601")
	seq, err := a.tickets.NextSequence(ctx, period)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%04d", a.prefix, period, seq), nil
}
