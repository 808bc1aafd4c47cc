package errors

import (
	"errors"
	"fmt"
)

// Domain errors - these represent business rule violations
var (
	// Authentication & Authorization
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
	ErrForbidden          = errors.New("action forbidden")
	ErrUnauthorized       = errors.New("unauthorized")

	// User validation
	ErrUserNotFound     = errors.New("user not found")
	ErrEmailRequired    = errors.New("email is required")
	ErrEmailInvalid     = errors.New("email format is invalid")
	ErrPasswordTooWeak  = errors.New("password does not meet security requirements")
	ErrInvalidRole      = errors.New("invalid user role")
	ErrInvalidUserState = errors.New("invalid user status")

	// Ticket workflow
	ErrTicketNotFound           = errors.New("ticket not found")
	ErrTitleTooShort            = errors.New("title must be at least 10 characters")
	ErrDescriptionTooShort      = errors.New("description must be at least 20 characters")
	ErrInvalidCategory          = errors.New("unknown ticket category")
	ErrInvalidUrgency           = errors.New("invalid ticket urgency")
	ErrInvalidStatus            = errors.New("invalid ticket status")
	ErrResolutionNotesRequired  = errors.New("resolution notes are required when resolving")
	ErrSatisfactionOutsideClose = errors.New("satisfaction rating is only accepted when closing")
	ErrInvalidSatisfaction      = errors.New("satisfaction rating must be between 1 and 5")
	ErrInvalidAssignee          = errors.New("assignment target is not an eligible active staff member")
	ErrFieldNotEditable         = errors.New("field is not editable by this actor")

	// Comments & attachments
	ErrCommentNotFound     = errors.New("comment not found")
	ErrCommentBodyRequired = errors.New("comment body is required")
	ErrCommentEditExpired  = errors.New("comment edit window has expired")
	ErrAttachmentNotFound  = errors.New("attachment not found")

	// Persistence signals the core reacts to
	ErrDuplicateTicketNumber = errors.New("ticket number already taken")

	// Generic
	ErrNotFound            = errors.New("resource not found")
	ErrConcurrencyConflict = errors.New("record was modified concurrently, re-read and retry")
	ErrInternal            = errors.New("internal server error")
	ErrBadRequest          = errors.New("bad request")
	ErrRateLimited         = errors.New("rate limit exceeded")
)

// InvalidTransitionError reports an illegal status change with both ends of
// the attempted transition.
type InvalidTransitionError struct {
	Current   string
	Requested string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.Current, e.Requested)
}

// Is lets errors.Is match any invalid transition regardless of endpoints.
func (e *InvalidTransitionError) Is(target error) bool {
	_, ok := target.(*InvalidTransitionError)
	return ok
}

// NewInvalidTransition constructs an InvalidTransitionError.
func NewInvalidTransition(current, requested string) *InvalidTransitionError {
	return &InvalidTransitionError{Current: current, Requested: requested}
}

// StorageError wraps a persistence-layer failure the core does not interpret.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError wraps err as an opaque storage failure.
func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

// AppError wraps errors with additional context for HTTP responses
type AppError struct {
	Err        error  // The underlying error
	Message    string // User-friendly message
	Code       string // Machine-readable error code
	StatusCode int    // HTTP status code
	Details    map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Error constructors for common cases
func NewBadRequestError(err error, message string) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		Code:       "BAD_REQUEST",
		StatusCode: 400,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Err:        ErrUnauthorized,
		Message:    message,
		Code:       "UNAUTHORIZED",
		StatusCode: 401,
	}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{
		Err:        ErrForbidden,
		Message:    message,
		Code:       "FORBIDDEN",
		StatusCode: 403,
	}
}

func NewNotFoundError(err error, message string) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		Code:       "NOT_FOUND",
		StatusCode: 404,
	}
}

func NewConflictError(err error, message string) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		Code:       "CONFLICT",
		StatusCode: 409,
	}
}

func NewValidationError(err error, message string, details map[string]interface{}) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		Code:       "VALIDATION_ERROR",
		StatusCode: 422,
		Details:    details,
	}
}

func NewRateLimitError() *AppError {
	return &AppError{
		Err:        ErrRateLimited,
		Message:    "Too many requests. Please try again later.",
		Code:       "RATE_LIMITED",
		StatusCode: 429,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Err:        err,
		Message:    "An unexpected error occurred",
		Code:       "INTERNAL_ERROR",
		StatusCode: 500,
	}
}

// ValidationErrors holds multiple field validation errors
type ValidationErrors struct {
	Errors map[string][]string `json:"errors"`
}

func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{
		Errors: make(map[string][]string),
	}
}

func (v *ValidationErrors) Add(field, message string) {
	v.Errors[field] = append(v.Errors[field], message)
}

func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

func (v *ValidationErrors) Error() string {
	return fmt.Sprintf("validation failed: %d field(s) have errors", len(v.Errors))
}
