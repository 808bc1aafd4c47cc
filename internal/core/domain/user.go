package domain

import (
	"net/mail"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/lorrc/helpdesk-backend/internal/core/errors"
)

// Role is the coarse actor classification the permission table keys on.
type Role string

const (
	RoleMember      Role = "member"
	RoleStaff       Role = "staff"
	RoleSeniorStaff Role = "senior_staff"
)

// ValidRole reports whether r is one of the known roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleMember, RoleStaff, RoleSeniorStaff:
		return true
	}
	return false
}

// IsStaff reports whether the role belongs to the help-desk side of the house.
func (r Role) IsStaff() bool {
	return r == RoleStaff || r == RoleSeniorStaff
}

// UserStatus is the account lifecycle state.
type UserStatus string

const (
	UserActive    UserStatus = "ACTIVE"
	UserPending   UserStatus = "PENDING"
	UserSuspended UserStatus = "SUSPENDED"
	UserLocked    UserStatus = "LOCKED"
)

// ValidUserStatus reports whether s is one of the known account states.
func ValidUserStatus(s UserStatus) bool {
	switch s {
	case UserActive, UserPending, UserSuspended, UserLocked:
		return true
	}
	return false
}

// User is consumed read-only by the workflow core; credentials live here only
// to serve the auth adapter.
type User struct {
	ID             uuid.UUID
	FullName       string
	Email          string
	HashedPassword string
	Role           Role
	Status         UserStatus
	CreatedAt      time.Time
	LastActiveAt   *time.Time
}

// Actor is the resolved identity every core operation receives. The core
// never issues or verifies credentials; the request layer builds this.
type Actor struct {
	ID     uuid.UUID
	Role   Role
	Status UserStatus
}

// SystemActorID authors automated audit comments.
var SystemActorID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// SystemActor is the identity used for automated mutations (auto-assignment,
// scheduled escalation sweeps).
func SystemActor() Actor {
	return Actor{ID: SystemActorID, Role: RoleSeniorStaff, Status: UserActive}
}

// AsActor projects a stored user into the identity the core consumes.
func (u *User) AsActor() Actor {
	return Actor{ID: u.ID, Role: u.Role, Status: u.Status}
}

// Password validation constants
const (
	MinPasswordLength = 8
	MaxPasswordLength = 128
	MaxFullNameLength = 255
	MaxEmailLength    = 255
)

// UserRegistrationParams holds parameters for user registration
type UserRegistrationParams struct {
	FullName string
	Email    string
	Password string
	Role     Role
}

// Validate validates user registration parameters
func (p *UserRegistrationParams) Validate() error {
	errs := apperrors.NewValidationErrors()

	if p.FullName == "" {
		errs.Add("fullName", "Full name is required")
	} else if len(p.FullName) > MaxFullNameLength {
		errs.Add("fullName", "Full name must be 255 characters or less")
	}

	if p.Email == "" {
		errs.Add("email", "Email is required")
	} else if len(p.Email) > MaxEmailLength {
		errs.Add("email", "Email must be 255 characters or less")
	} else if !isValidEmail(p.Email) {
		errs.Add("email", "Invalid email format")
	}

	if p.Role != "" && !ValidRole(p.Role) {
		errs.Add("role", "Unknown role")
	}

	if passwordErrs := ValidatePassword(p.Password); len(passwordErrs) > 0 {
		for _, err := range passwordErrs {
			errs.Add("password", err)
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// ValidatePassword checks if a password meets security requirements.
// Returns a slice of error messages (empty if valid).
func ValidatePassword(password string) []string {
	var errors []string

	if len(password) < MinPasswordLength {
		errors = append(errors, "Password must be at least 8 characters long")
	}
	if len(password) > MaxPasswordLength {
		errors = append(errors, "Password must be 128 characters or less")
	}

	var hasUpper, hasLower, hasNumber bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		}
	}

	if !hasUpper {
		errors = append(errors, "Password must contain at least one uppercase letter")
	}
	if !hasLower {
		errors = append(errors, "Password must contain at least one lowercase letter")
	}
	if !hasNumber {
		errors = append(errors, "Password must contain at least one number")
	}

	return errors
}

func isValidEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

// CheckPassword verifies if the provided password matches the stored hash
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.HashedPassword), []byte(password))
	return err == nil
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	if errs := ValidatePassword(password); len(errs) > 0 {
		return "", apperrors.ErrPasswordTooWeak
	}

	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// NewUser creates a new user with validated parameters. Registration through
// the public endpoint always yields an active member; elevated roles are
// granted afterwards by an administrator.
func NewUser(params UserRegistrationParams) (*User, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	hashedPassword, err := HashPassword(params.Password)
	if err != nil {
		return nil, err
	}

	role := params.Role
	if role == "" {
		role = RoleMember
	}

	return &User{
		ID:             uuid.New(),
		FullName:       params.FullName,
		Email:          params.Email,
		HashedPassword: hashedPassword,
		Role:           role,
		Status:         UserActive,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

// EligibleAssignee reports whether the user may be set as a ticket assignee.
func (u *User) EligibleAssignee() bool {
	return u.Role.IsStaff() && u.Status == UserActive
}
