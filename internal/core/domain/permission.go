package domain

// Resource classes a capability can govern.
type Resource string

const (
	ResourceTickets     Resource = "tickets"
	ResourceComments    Resource = "comments"
	ResourceAttachments Resource = "attachments"
	ResourceUsers       Resource = "users"
)

// Action is what the capability allows on the resource.
type Action string

const (
	ActionCreate   Action = "create"
	ActionView     Action = "view"
	ActionEdit     Action = "edit"
	ActionAssign   Action = "assign"
	ActionUpload   Action = "upload"
	ActionDownload Action = "download"
	ActionManage   Action = "manage"
)

// Scope narrows an action to the actor's own records or to everyone's.
// Empty scope means the action is unscoped (e.g. create).
type Scope string

const (
	ScopeNone Scope = ""
	ScopeOwn  Scope = "own"
	ScopeAll  Scope = "all"
)

// Permission is a single capability check target. The former string encoding
// ("tickets.view.all") maps one to one onto this struct.
type Permission struct {
	Resource Resource
	Action   Action
	Scope    Scope
}

// Grant is an entry in a role's capability set. AllActions is the explicit
// replacement for the old wildcard-suffix strings: it covers every action and
// scope on its resource.
type Grant struct {
	Resource   Resource
	Action     Action
	Scope      Scope
	AllActions bool
}

// Covers reports whether the grant satisfies the requested permission.
func (g Grant) Covers(p Permission) bool {
	if g.Resource != p.Resource {
		return false
	}
	if g.AllActions {
		return true
	}
	return g.Action == p.Action && g.Scope == p.Scope
}

// Named permissions used by the workflow checks.
var (
	PermTicketsCreate  = Permission{ResourceTickets, ActionCreate, ScopeNone}
	PermTicketsViewOwn = Permission{ResourceTickets, ActionView, ScopeOwn}
	PermTicketsViewAll = Permission{ResourceTickets, ActionView, ScopeAll}
	PermTicketsEditOwn = Permission{ResourceTickets, ActionEdit, ScopeOwn}
	PermTicketsEditAll = Permission{ResourceTickets, ActionEdit, ScopeAll}
	PermTicketsAssign  = Permission{ResourceTickets, ActionAssign, ScopeNone}

	PermCommentsCreate  = Permission{ResourceComments, ActionCreate, ScopeNone}
	PermCommentsEditAll = Permission{ResourceComments, ActionEdit, ScopeAll}

	PermAttachmentsUpload = Permission{ResourceAttachments, ActionUpload, ScopeNone}

	PermUsersManage = Permission{ResourceUsers, ActionManage, ScopeNone}
)

// roleGrants is the static role capability table. It is built once at package
// init and never mutated afterwards.
var roleGrants = map[Role][]Grant{
	RoleMember: {
		{Resource: ResourceTickets, Action: ActionCreate},
		{Resource: ResourceTickets, Action: ActionView, Scope: ScopeOwn},
		{Resource: ResourceTickets, Action: ActionEdit, Scope: ScopeOwn},
		{Resource: ResourceComments, Action: ActionCreate},
		{Resource: ResourceAttachments, Action: ActionUpload},
	},
	RoleStaff: {
		{Resource: ResourceTickets, AllActions: true},
		{Resource: ResourceComments, Action: ActionCreate},
		{Resource: ResourceComments, Action: ActionView, Scope: ScopeAll},
		{Resource: ResourceAttachments, Action: ActionUpload},
		{Resource: ResourceAttachments, Action: ActionDownload, Scope: ScopeAll},
	},
	RoleSeniorStaff: {
		{Resource: ResourceTickets, AllActions: true},
		{Resource: ResourceComments, AllActions: true},
		{Resource: ResourceAttachments, AllActions: true},
		{Resource: ResourceUsers, Action: ActionManage},
	},
}

// HasPermission is the capability evaluator: a pure lookup against the static
// role table.
func HasPermission(role Role, perm Permission) bool {
	for _, grant := range roleGrants[role] {
		if grant.Covers(perm) {
			return true
		}
	}
	return false
}

// GrantsForRole returns a copy of the role's grant list, mainly for
// diagnostics endpoints.
func GrantsForRole(role Role) []Grant {
	grants := roleGrants[role]
	out := make([]Grant, len(grants))
	copy(out, grants)
	return out
}
