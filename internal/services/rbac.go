package services

// Role is the closed set of platform roles. RBAC decisions are table lookups
// over this set, never string prefix tricks or type hierarchies.
type Role string

const (
	RoleSuperAdmin   Role = "super_admin"
	RoleOrgAdmin     Role = "org_admin"
	RoleUser         Role = "user"
	RoleSupportAgent Role = "support_agent"
	RoleBillingAdmin Role = "billing_admin"
)

// roleRanks orders the vertical hierarchy. support_agent and billing_admin
// are lateral specializations: they sit at base rank and gain capabilities
// through the action table below, never through rank.
var roleRanks = map[Role]int{
	RoleSuperAdmin:   3,
	RoleOrgAdmin:     2,
	RoleUser:         1,
	RoleSupportAgent: 1,
	RoleBillingAdmin: 1,
}

// Action names a guarded operation.
type Action string

const (
	ActionManageUsers   Action = "manage_users"
	ActionViewUsers     Action = "view_users"
	ActionDeleteUsers   Action = "delete_users"
	ActionViewTickets   Action = "view_tickets"
	ActionManageBilling Action = "manage_billing"
	ActionViewAuditLogs Action = "view_audit_logs"
)

// allowedActions is the explicit (role, action) permission table.
var allowedActions = map[Role]map[Action]bool{
	RoleSuperAdmin: {
		ActionManageUsers:   true,
		ActionViewUsers:     true,
		ActionDeleteUsers:   true,
		ActionViewTickets:   true,
		ActionManageBilling: true,
		ActionViewAuditLogs: true,
	},
	RoleOrgAdmin: {
		ActionManageUsers:   true,
		ActionViewUsers:     true,
		ActionViewTickets:   true,
		ActionViewAuditLogs: true,
	},
	RoleUser: {},
	RoleSupportAgent: {
		ActionViewUsers:   true,
		ActionViewTickets: true,
	},
	RoleBillingAdmin: {
		ActionViewUsers:     true,
		ActionManageBilling: true,
	},
}

// ValidRole reports whether s names a recognized role.
func ValidRole(s string) bool {
	_, ok := roleRanks[Role(s)]
	return ok
}

// UserContext is the authenticated identity bound to a validated access
// token. It is the only thing the rest of the platform sees of this service.
type UserContext struct {
	UserID         uint   `json:"user_id"`
	Email          string `json:"email"`
	Role           Role   `json:"role"`
	OrganizationID uint   `json:"organization_id"`
}

// Outranks reports whether role meets or exceeds minimum in the vertical
// hierarchy. Unknown roles rank below everything.
func (r Role) Outranks(minimum Role) bool {
	return roleRanks[r] >= roleRanks[minimum] && roleRanks[r] > 0
}

// Can reports whether the role is granted the action in the permission table.
func (r Role) Can(action Action) bool {
	return allowedActions[r][action]
}

// RequireRole enforces rank against a minimum role. Organization scoping is a
// separate check (RequireOrg) because some endpoints have no target resource.
func RequireRole(ctx UserContext, minimum Role) error {
	if !ctx.Role.Outranks(minimum) {
		return ErrInsufficientRole
	}
	return nil
}

// RequireOrg enforces organization scope: the caller may only touch resources
// in its own organization. super_admin operates across organizations.
func RequireOrg(ctx UserContext, resourceOrgID uint) error {
	if ctx.Role == RoleSuperAdmin {
		return nil
	}
	if ctx.OrganizationID != resourceOrgID {
		return ErrInsufficientRole
	}
	return nil
}

// RequireAction combines the permission table with organization scope.
func RequireAction(ctx UserContext, action Action, resourceOrgID uint) error {
	if !ctx.Role.Can(action) {
		return ErrInsufficientRole
	}
	return RequireOrg(ctx, resourceOrgID)
}
