package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/helpdesk-backend/internal/core/domain"
)

func TestNewUser(t *testing.T) {
	t.Run("defaults to active member", func(t *testing.T) {
		user, err := domain.NewUser(domain.UserRegistrationParams{
			FullName: "Jordan Ng",
			Email:    "jordan@example.com",
			Password: "Sup3rSecret",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.RoleMember, user.Role)
		assert.Equal(t, domain.UserActive, user.Status)
		assert.True(t, user.CheckPassword("Sup3rSecret"))
		assert.False(t, user.CheckPassword("wrong"))
	})

	t.Run("rejects weak passwords", func(t *testing.T) {
		_, err := domain.NewUser(domain.UserRegistrationParams{
			FullName: "Jordan Ng",
			Email:    "jordan@example.com",
			Password: "alllowercase",
		})
		require.Error(t, err)
	})
}

func TestUser_EligibleAssignee(t *testing.T) {
	cases := []struct {
		name   string
		role   domain.Role
		status domain.UserStatus
		want   bool
	}{
		{"active staff", domain.RoleStaff, domain.UserActive, true},
		{"active senior staff", domain.RoleSeniorStaff, domain.UserActive, true},
		{"active member", domain.RoleMember, domain.UserActive, false},
		{"suspended staff", domain.RoleStaff, domain.UserSuspended, false},
		{"locked senior staff", domain.RoleSeniorStaff, domain.UserLocked, false},
		{"pending staff", domain.RoleStaff, domain.UserPending, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			user := &domain.User{Role: tc.role, Status: tc.status}
			assert.Equal(t, tc.want, user.EligibleAssignee())
		})
	}
}
