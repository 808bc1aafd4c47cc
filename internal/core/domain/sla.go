package domain

import "time"

// SLA thresholds. Escalation fires for unassigned high-urgency tickets after
// unassignedEscalationAge, or once a ticket has blown its resolution budget
// by overdueEscalationLag. The two triggers are independent.
const (
	unassignedEscalationAge = 4 * time.Hour
	overdueEscalationLag    = 12 * time.Hour
	agingScoreThreshold     = 48 * time.Hour

	overdueScoreBonus = 2
	agingScoreBonus   = 1
)

// Age is the wall-clock time since the ticket was created.
func (t *Ticket) Age(now time.Time) time.Duration {
	return now.Sub(t.CreatedAt)
}

// IsOverdue reports whether the ticket has exceeded its estimated resolution
// budget. Tickets without a budget, and tickets already resolved or closed,
// are never overdue.
func (t *Ticket) IsOverdue(now time.Time) bool {
	if t.EstimatedResolutionHours == nil || t.ResolutionLocked() {
		return false
	}
	deadline := t.CreatedAt.Add(time.Duration(*t.EstimatedResolutionHours) * time.Hour)
	return now.After(deadline)
}

// NeedsEscalation reports whether the ticket should be surfaced for
// managerial attention: either it is high/critical urgency and has sat
// unassigned for 4 hours, or it is overdue by 12 hours or more.
func (t *Ticket) NeedsEscalation(now time.Time) bool {
	if (t.Urgency == UrgencyHigh || t.Urgency == UrgencyCritical) &&
		t.AssignedTo == nil &&
		t.Age(now) >= unassignedEscalationAge {
		return true
	}

	if t.IsOverdue(now) && t.EstimatedResolutionHours != nil {
		budget := time.Duration(*t.EstimatedResolutionHours) * time.Hour
		if t.Age(now)-budget >= overdueEscalationLag {
			return true
		}
	}

	return false
}

// PriorityScore orders queue views: urgency base (LOW=1 .. CRITICAL=4),
// +2 when overdue, +1 past 48 hours of age. It never drives transitions.
func (t *Ticket) PriorityScore(now time.Time) int {
	score := t.Urgency.Rank()
	if t.IsOverdue(now) {
		score += overdueScoreBonus
	}
	if t.Age(now) > agingScoreThreshold {
		score += agingScoreBonus
	}
	return score
}
