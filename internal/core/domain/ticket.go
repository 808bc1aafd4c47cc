package domain

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/lorrc/helpdesk-backend/internal/core/errors"
)

// TicketStatus represents the possible states of a ticket.
type TicketStatus string

const (
	StatusOpen       TicketStatus = "OPEN"
	StatusInProgress TicketStatus = "IN_PROGRESS"
	StatusResolved   TicketStatus = "RESOLVED"
	StatusClosed     TicketStatus = "CLOSED"
)

// ValidStatus reports whether s is one of the known ticket states.
func ValidStatus(s TicketStatus) bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusResolved, StatusClosed:
		return true
	}
	return false
}

// Urgency represents how quickly a ticket needs attention.
type Urgency string

const (
	UrgencyLow      Urgency = "LOW"
	UrgencyMedium   Urgency = "MEDIUM"
	UrgencyHigh     Urgency = "HIGH"
	UrgencyCritical Urgency = "CRITICAL"
)

// ValidUrgency reports whether u is one of the known urgency levels.
func ValidUrgency(u Urgency) bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical:
		return true
	}
	return false
}

// Rank maps urgency to its base priority score (LOW=1 .. CRITICAL=4).
func (u Urgency) Rank() int {
	switch u {
	case UrgencyLow:
		return 1
	case UrgencyMedium:
		return 2
	case UrgencyHigh:
		return 3
	case UrgencyCritical:
		return 4
	}
	return 0
}

// Category is one of the fixed help-desk classification buckets.
type Category string

const (
	CategoryAccountAccess     Category = "account-access"
	CategoryPaymentGateway    Category = "payment-gateway"
	CategorySystemErrors      Category = "system-errors"
	CategoryPerformanceIssues Category = "performance-issues"
	CategoryLicenseManagement Category = "license-management"
	CategoryDataRequests      Category = "data-requests"
	CategoryFeatureRequest    Category = "feature-request"
	CategoryGeneralSupport    Category = "general-support"
)

// CategorySpec carries the fixed per-category defaults.
type CategorySpec struct {
	DefaultResolutionHours int
	// HighImpact categories are offered to staff automatically when filed
	// with high or critical urgency.
	HighImpact bool
}

// categorySpecs is the fixed category lookup table.
var categorySpecs = map[Category]CategorySpec{
	CategoryAccountAccess:     {DefaultResolutionHours: 48},
	CategoryPaymentGateway:    {DefaultResolutionHours: 24, HighImpact: true},
	CategorySystemErrors:      {DefaultResolutionHours: 24, HighImpact: true},
	CategoryPerformanceIssues: {DefaultResolutionHours: 24, HighImpact: true},
	CategoryLicenseManagement: {DefaultResolutionHours: 72},
	CategoryDataRequests:      {DefaultResolutionHours: 48},
	CategoryFeatureRequest:    {DefaultResolutionHours: 120},
	CategoryGeneralSupport:    {DefaultResolutionHours: 48},
}

// ValidCategory reports whether c is in the fixed enumeration.
func ValidCategory(c Category) bool {
	_, ok := categorySpecs[c]
	return ok
}

// Spec returns the category defaults. Zero value for unknown categories.
func (c Category) Spec() CategorySpec {
	return categorySpecs[c]
}

// Title and description length floors.
const (
	MinTitleLength       = 10
	MinDescriptionLength = 20
)

// MetadataTombstoneKey marks a ticket soft-deleted; nothing in the workflow
// ever hard-deletes a ticket row.
const MetadataTombstoneKey = "deleted"

// Ticket is the core domain entity.
type Ticket struct {
	ID           uuid.UUID
	TicketNumber string
	Title        string
	Description  string
	Category     Category
	Urgency      Urgency
	Status       TicketStatus

	CreatedBy  uuid.UUID
	AssignedTo *uuid.UUID

	CreatedAt       time.Time
	UpdatedAt       *time.Time
	ResolvedAt      *time.Time
	ClosedAt        *time.Time
	FirstResponseAt *time.Time

	EstimatedResolutionHours *int
	ActualResolutionHours    *int

	Tags                []string
	Metadata            map[string]any
	ResolutionNotes     *string
	SatisfactionRating  *int
	SatisfactionComment *string

	// Version backs the optimistic concurrency check on every patch.
	Version int64
}

// TicketParams is the input for NewTicket.
type TicketParams struct {
	Title                    string
	Description              string
	Category                 Category
	Urgency                  Urgency
	CreatedBy                uuid.UUID
	EstimatedResolutionHours *int
	Tags                     []string
	Metadata                 map[string]any
}

// NewTicket validates params and builds a ticket in its initial state. The
// estimated resolution budget falls back to the category default when the
// creator did not supply one.
func NewTicket(params TicketParams) (*Ticket, error) {
	errs := apperrors.NewValidationErrors()

	title := strings.TrimSpace(params.Title)
	description := strings.TrimSpace(params.Description)

	if len(title) < MinTitleLength {
		errs.Add("title", fmt.Sprintf("Title must be at least %d characters", MinTitleLength))
	}
	if len(description) < MinDescriptionLength {
		errs.Add("description", fmt.Sprintf("Description must be at least %d characters", MinDescriptionLength))
	}
	if !ValidCategory(params.Category) {
		errs.Add("category", "Unknown category")
	}

	urgency := params.Urgency
	if urgency == "" {
		urgency = UrgencyMedium
	}
	if !ValidUrgency(urgency) {
		errs.Add("urgency", "Unknown urgency")
	}

	if errs.HasErrors() {
		return nil, errs
	}

	estimate := params.EstimatedResolutionHours
	if estimate == nil {
		hours := params.Category.Spec().DefaultResolutionHours
		estimate = &hours
	}

	return &Ticket{
		ID:                       uuid.New(),
		Title:                    title,
		Description:              description,
		Category:                 params.Category,
		Urgency:                  urgency,
		Status:                   StatusOpen,
		CreatedBy:                params.CreatedBy,
		CreatedAt:                time.Now().UTC(),
		EstimatedResolutionHours: estimate,
		Tags:                     params.Tags,
		Metadata:                 params.Metadata,
	}, nil
}

// legalTransitions defines the valid state machine edges. CLOSED is not
// terminal on purpose: support tickets resurface.
var legalTransitions = map[TicketStatus][]TicketStatus{
	StatusOpen:       {StatusInProgress, StatusResolved, StatusClosed},
	StatusInProgress: {StatusOpen, StatusResolved, StatusClosed},
	StatusResolved:   {StatusInProgress, StatusClosed},
	StatusClosed:     {StatusInProgress},
}

// CanTransition reports whether the edge current -> next is legal.
func CanTransition(current, next TicketStatus) bool {
	for _, candidate := range legalTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// TransitionOptions carries the caller-supplied extras for a status change.
type TransitionOptions struct {
	ResolutionNotes     string
	SatisfactionRating  *int
	SatisfactionComment *string
}

// ApplyTransition validates and applies a status change with its timestamp
// side effects. It mutates the receiver only on success.
//
// Reopening clears resolved_at/closed_at, but a later re-resolution computes
// actual_resolution_hours from the original created_at, so reopened dead time
// counts toward the duration.
func (t *Ticket) ApplyTransition(next TicketStatus, opts TransitionOptions, now time.Time) error {
	if !ValidStatus(next) {
		return apperrors.ErrInvalidStatus
	}
	if !CanTransition(t.Status, next) {
		return apperrors.NewInvalidTransition(string(t.Status), string(next))
	}
	if opts.SatisfactionRating != nil && next != StatusClosed {
		return apperrors.ErrSatisfactionOutsideClose
	}

	switch next {
	case StatusInProgress, StatusOpen:
		// Reopen: the stamps are cleared, never any other way.
		t.ResolvedAt = nil
		t.ClosedAt = nil
	case StatusResolved:
		if strings.TrimSpace(opts.ResolutionNotes) == "" {
			return apperrors.ErrResolutionNotesRequired
		}
		if t.ResolvedAt == nil {
			resolvedAt := now
			t.ResolvedAt = &resolvedAt
		}
		hours := int(math.Round(now.Sub(t.CreatedAt).Hours()))
		t.ActualResolutionHours = &hours
		notes := strings.TrimSpace(opts.ResolutionNotes)
		t.ResolutionNotes = &notes
	case StatusClosed:
		if opts.SatisfactionRating != nil && (*opts.SatisfactionRating < 1 || *opts.SatisfactionRating > 5) {
			return apperrors.ErrInvalidSatisfaction
		}
		if t.ClosedAt == nil {
			closedAt := now
			t.ClosedAt = &closedAt
		}
		if opts.SatisfactionRating != nil {
			t.SatisfactionRating = opts.SatisfactionRating
			t.SatisfactionComment = opts.SatisfactionComment
		}
	}

	t.Status = next
	updated := now
	t.UpdatedAt = &updated
	return nil
}

// SetAssignment applies the assignment/status coupling. Assigning forces the
// ticket into IN_PROGRESS; clearing the assignment forces it back to OPEN.
// This deliberately bypasses the transition table, so the reopen stamp
// clearing happens here too.
func (t *Ticket) SetAssignment(assigneeID *uuid.UUID, now time.Time) {
	t.AssignedTo = assigneeID
	if assigneeID != nil {
		t.Status = StatusInProgress
	} else {
		t.Status = StatusOpen
	}
	t.ResolvedAt = nil
	t.ClosedAt = nil
	updated := now
	t.UpdatedAt = &updated
}

// ResolutionLocked reports whether the ticket has left the active phase;
// non-privileged owners lose their edit window here.
func (t *Ticket) ResolutionLocked() bool {
	return t.Status == StatusResolved || t.Status == StatusClosed
}

// IsOwnedBy reports whether the user submitted the ticket.
func (t *Ticket) IsOwnedBy(userID uuid.UUID) bool {
	return t.CreatedBy == userID
}

// IsAssignedTo reports whether the user is the current assignee.
func (t *Ticket) IsAssignedTo(userID uuid.UUID) bool {
	return t.AssignedTo != nil && *t.AssignedTo == userID
}

// MarkFirstResponse stamps first_response_at once; later calls are no-ops.
func (t *Ticket) MarkFirstResponse(now time.Time) {
	if t.FirstResponseAt == nil {
		at := now
		t.FirstResponseAt = &at
	}
}

// CheckInvariants verifies the timestamp/status consistency rules. It exists
// for tests that randomly walk the state machine.
func (t *Ticket) CheckInvariants() error {
	if t.ClosedAt != nil && t.Status != StatusClosed {
		return fmt.Errorf("closed_at set with status %s", t.Status)
	}
	if t.ResolvedAt != nil && t.Status != StatusResolved && t.Status != StatusClosed {
		return fmt.Errorf("resolved_at set with status %s", t.Status)
	}
	if t.Status == StatusClosed && t.ClosedAt == nil {
		return fmt.Errorf("status CLOSED without closed_at")
	}
	if t.Status == StatusResolved && t.ResolvedAt == nil {
		return fmt.Errorf("status RESOLVED without resolved_at")
	}
	if t.ResolvedAt != nil && t.ActualResolutionHours == nil {
		return fmt.Errorf("resolved_at set without actual_resolution_hours")
	}
	if t.SatisfactionRating != nil && (*t.SatisfactionRating < 1 || *t.SatisfactionRating > 5) {
		return fmt.Errorf("satisfaction rating %d out of range", *t.SatisfactionRating)
	}
	return nil
}

// TrackableField enumerates the ticket fields the update path recognizes.
// The typed list replaces runtime property diffing.
type TrackableField string

const (
	FieldTitle           TrackableField = "title"
	FieldDescription     TrackableField = "description"
	FieldUrgency         TrackableField = "urgency"
	FieldCategory        TrackableField = "category"
	FieldStatus          TrackableField = "status"
	FieldAssignedTo      TrackableField = "assigned_to"
	FieldResolutionNotes TrackableField = "resolution_notes"
	FieldTags            TrackableField = "tags"
	FieldMetadata        TrackableField = "metadata"
	FieldEstimatedHours  TrackableField = "estimated_resolution_hours"
)

// FieldChange is one entry of a typed before/after diff.
type FieldChange struct {
	Field TrackableField
	Old   string
	New   string
}

// Describe renders the change as the audit-comment sentence members see.
func (c FieldChange) Describe() string {
	switch c.Field {
	case FieldTitle:
		return fmt.Sprintf("Title changed to %q", c.New)
	case FieldUrgency:
		return fmt.Sprintf("Priority changed to %s", c.New)
	case FieldCategory:
		return fmt.Sprintf("Category changed to %s", c.New)
	default:
		return fmt.Sprintf("%s changed from %q to %q", c.Field, c.Old, c.New)
	}
}

// TicketUpdate is a sparse set of requested field changes; nil means
// "leave untouched".
type TicketUpdate struct {
	Title           *string
	Description     *string
	Urgency         *Urgency
	Category        *Category
	ResolutionNotes *string
	Tags            *[]string
	Metadata        *map[string]any
	EstimatedHours  *int
}

// Fields lists which trackable fields the update touches.
func (u TicketUpdate) Fields() []TrackableField {
	var fields []TrackableField
	if u.Title != nil {
		fields = append(fields, FieldTitle)
	}
	if u.Description != nil {
		fields = append(fields, FieldDescription)
	}
	if u.Urgency != nil {
		fields = append(fields, FieldUrgency)
	}
	if u.Category != nil {
		fields = append(fields, FieldCategory)
	}
	if u.ResolutionNotes != nil {
		fields = append(fields, FieldResolutionNotes)
	}
	if u.Tags != nil {
		fields = append(fields, FieldTags)
	}
	if u.Metadata != nil {
		fields = append(fields, FieldMetadata)
	}
	if u.EstimatedHours != nil {
		fields = append(fields, FieldEstimatedHours)
	}
	return fields
}

// Validate checks the update's values against the fixed enumerations.
func (u TicketUpdate) Validate() error {
	errs := apperrors.NewValidationErrors()
	if u.Title != nil && len(strings.TrimSpace(*u.Title)) < MinTitleLength {
		errs.Add("title", fmt.Sprintf("Title must be at least %d characters", MinTitleLength))
	}
	if u.Description != nil && len(strings.TrimSpace(*u.Description)) < MinDescriptionLength {
		errs.Add("description", fmt.Sprintf("Description must be at least %d characters", MinDescriptionLength))
	}
	if u.Urgency != nil && !ValidUrgency(*u.Urgency) {
		errs.Add("urgency", "Unknown urgency")
	}
	if u.Category != nil && !ValidCategory(*u.Category) {
		errs.Add("category", "Unknown category")
	}
	if errs.HasErrors() {
		return errs
	}
	return nil
}

// Apply writes the update onto the ticket and returns the diff entries for
// the fields whose change is narrated in the audit trail (title, urgency,
// category).
func (t *Ticket) Apply(u TicketUpdate, now time.Time) []FieldChange {
	var changes []FieldChange

	if u.Title != nil {
		trimmed := strings.TrimSpace(*u.Title)
		if trimmed != t.Title {
			changes = append(changes, FieldChange{Field: FieldTitle, Old: t.Title, New: trimmed})
			t.Title = trimmed
		}
	}
	if u.Description != nil {
		t.Description = strings.TrimSpace(*u.Description)
	}
	if u.Urgency != nil && *u.Urgency != t.Urgency {
		changes = append(changes, FieldChange{Field: FieldUrgency, Old: string(t.Urgency), New: string(*u.Urgency)})
		t.Urgency = *u.Urgency
	}
	if u.Category != nil && *u.Category != t.Category {
		changes = append(changes, FieldChange{Field: FieldCategory, Old: string(t.Category), New: string(*u.Category)})
		t.Category = *u.Category
	}
	if u.ResolutionNotes != nil {
		notes := strings.TrimSpace(*u.ResolutionNotes)
		t.ResolutionNotes = &notes
	}
	if u.Tags != nil {
		t.Tags = *u.Tags
	}
	if u.Metadata != nil {
		t.Metadata = *u.Metadata
	}
	if u.EstimatedHours != nil {
		t.EstimatedResolutionHours = u.EstimatedHours
	}

	updated := now
	t.UpdatedAt = &updated
	return changes
}
