// Package policy centralizes role-based authorization as a declarative table
// keyed by (resource, action). Handlers declare what they touch; the table is
// the single place where role lists live, replacing per-endpoint literal
// comparisons.
package policy

// Role is an administrator role string carried in the JWT role claim.
type Role string

const (
	RoleSuperAdmin   Role = "super-admin"
	RoleAdmin        Role = "admin"
	RoleFinanceAdmin Role = "finance-admin"
	RoleContentAdmin Role = "content-admin"
)

// ValidRole reports whether the role is one of the known administrator roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleFinanceAdmin, RoleContentAdmin:
		return true
	}
	return false
}

// Resource names a protected entity collection.
type Resource string

const (
	ResourceInvoice       Resource = "invoice"
	ResourcePayment       Resource = "payment"
	ResourceDonation      Resource = "donation"
	ResourceMember        Resource = "member"
	ResourceAdministrator Resource = "administrator"
	ResourceDashboard     Resource = "dashboard"
)

// Action names an operation on a resource.
type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// financeRoles guard money-touching operations.
var financeRoles = []Role{RoleSuperAdmin, RoleAdmin, RoleFinanceAdmin}

// contentRoles guard reporting surfaces.
var contentRoles = []Role{RoleSuperAdmin, RoleAdmin, RoleContentAdmin}

// table maps (resource, action) to the roles allowed to perform it. Absent
// entries deny every role; public endpoints simply skip the policy middleware.
var table = map[Resource]map[Action][]Role{
	ResourceInvoice: {
		ActionUpdate: financeRoles,
		ActionDelete: financeRoles,
	},
	ResourcePayment: {
		ActionRead:   financeRoles,
		ActionCreate: financeRoles,
		ActionUpdate: financeRoles,
		ActionDelete: financeRoles,
	},
	ResourceDonation: {
		ActionRead:   financeRoles,
		ActionDelete: financeRoles,
	},
	ResourceAdministrator: {
		ActionRead:   {RoleSuperAdmin, RoleAdmin},
		ActionCreate: {RoleSuperAdmin},
		ActionUpdate: {RoleSuperAdmin},
		ActionDelete: {RoleSuperAdmin},
	},
	ResourceDashboard: {
		ActionRead: contentRoles,
	},
}

// Allowed reports whether the given role may perform action on resource.
func Allowed(resource Resource, action Action, role Role) bool {
	actions, ok := table[resource]
	if !ok {
		return false
	}
	for _, allowed := range actions[action] {
		if allowed == role {
			return true
		}
	}
	return false
}

// AllowedRoles returns the role set for (resource, action); empty means deny all.
func AllowedRoles(resource Resource, action Action) []Role {
	actions, ok := table[resource]
	if !ok {
		return nil
	}
	return actions[action]
}
