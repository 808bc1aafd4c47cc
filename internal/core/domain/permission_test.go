package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lorrc/helpdesk-backend/internal/core/domain"
)

func TestHasPermission(t *testing.T) {
	cases := []struct {
		name string
		role domain.Role
		perm domain.Permission
		want bool
	}{
		{"member creates tickets", domain.RoleMember, domain.PermTicketsCreate, true},
		{"member views own tickets", domain.RoleMember, domain.PermTicketsViewOwn, true},
		{"member cannot view all tickets", domain.RoleMember, domain.PermTicketsViewAll, false},
		{"member cannot assign", domain.RoleMember, domain.PermTicketsAssign, false},
		{"member cannot edit all comments", domain.RoleMember, domain.PermCommentsEditAll, false},
		{"member cannot manage users", domain.RoleMember, domain.PermUsersManage, false},

		{"staff views all tickets via resource grant", domain.RoleStaff, domain.PermTicketsViewAll, true},
		{"staff edits all tickets via resource grant", domain.RoleStaff, domain.PermTicketsEditAll, true},
		{"staff assigns tickets", domain.RoleStaff, domain.PermTicketsAssign, true},
		{"staff cannot edit all comments", domain.RoleStaff, domain.PermCommentsEditAll, false},
		{"staff cannot manage users", domain.RoleStaff, domain.PermUsersManage, false},

		{"senior staff edits all comments", domain.RoleSeniorStaff, domain.PermCommentsEditAll, true},
		{"senior staff manages users", domain.RoleSeniorStaff, domain.PermUsersManage, true},

		{"unknown role has nothing", domain.Role("contractor"), domain.PermTicketsCreate, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, domain.HasPermission(tc.role, tc.perm))
		})
	}
}

func TestGrant_Covers(t *testing.T) {
	t.Run("resource-wide grant covers every action and scope", func(t *testing.T) {
		grant := domain.Grant{Resource: domain.ResourceTickets, AllActions: true}
		assert.True(t, grant.Covers(domain.PermTicketsViewAll))
		assert.True(t, grant.Covers(domain.PermTicketsAssign))
		assert.False(t, grant.Covers(domain.PermUsersManage), "never crosses resources")
	})

	t.Run("scoped grant requires exact action and scope", func(t *testing.T) {
		grant := domain.Grant{Resource: domain.ResourceTickets, Action: domain.ActionView, Scope: domain.ScopeOwn}
		assert.True(t, grant.Covers(domain.PermTicketsViewOwn))
		assert.False(t, grant.Covers(domain.PermTicketsViewAll))
		assert.False(t, grant.Covers(domain.PermTicketsEditOwn))
	})
}

func TestGrantsForRole_ReturnsCopy(t *testing.T) {
	grants := domain.GrantsForRole(domain.RoleMember)
	if assert.NotEmpty(t, grants) {
		grants[0] = domain.Grant{Resource: domain.ResourceUsers, AllActions: true}
		assert.False(t, domain.HasPermission(domain.RoleMember, domain.PermUsersManage))
	}
}
