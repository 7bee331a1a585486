package domain

import "time"

// Role is the coarse role derived from directory group membership.
// Stored as a plain string so adding a role never requires a schema
// migration; validation happens against the runtime catalog.
type Role string

const (
	RoleUser      Role = "USER"
	RoleManager   Role = "MANAGER"
	RoleDirecteur Role = "DIRECTEUR"
	RoleSolver    Role = "SOLVER"
	RoleAdmin     Role = "ADMIN"
)

// User is a principal synced from the directory on every login.
//
// OriginServices are the organizational units the user requests on
// behalf of (routes N1 approval). AllowedServices are the technical
// services the user may act on as approver or solver (routes N2 and
// pool pickup). Both hold normalized tags.
type User struct {
	ID              string
	Username        string
	FullName        string
	Email           string
	Role            Role
	OriginServices  []string
	AllowedServices []string
	Location        string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// EffectiveRole demotes a SOLVER with no technical service to USER:
// without a competency there is no pool for them to draw from.
func (u *User) EffectiveRole() Role {
	if u.Role == RoleSolver && len(u.AllowedServices) == 0 {
		return RoleUser
	}
	return u.Role
}
