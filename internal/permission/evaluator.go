package permission

import "github.com/spec-kit/service-desk/internal/domain"

// Well-known service tags the workflow branches on. The full catalog
// of valid services is runtime configuration; only these two alter
// transition behavior.
const (
	ServiceFinance = "DAF"
	ServiceHR      = "DRH"
	ServiceIT      = "INFORMATIQUE"
)

// Actor is the evaluated view of a principal: effective role plus
// normalized membership sets. Build it once per request with
// ActorFor and pass it to every predicate.
type Actor struct {
	ID              string
	Role            domain.Role
	OriginServices  []string
	AllowedServices []string
}

// ActorFor derives an Actor from a user, applying the solver demotion
// rule and normalizing both membership sets.
func ActorFor(u *domain.User) Actor {
	return Actor{
		ID:              u.ID,
		Role:            u.EffectiveRole(),
		OriginServices:  NormalizeSet(u.OriginServices),
		AllowedServices: NormalizeSet(u.AllowedServices),
	}
}

// IsAdmin bypasses every membership check.
func (a Actor) IsAdmin() bool { return a.Role == domain.RoleAdmin }

func (a Actor) isManagement() bool {
	return a.Role == domain.RoleManager || a.Role == domain.RoleDirecteur || a.IsAdmin()
}

// HasOrigin reports membership in the given origin (requester-side)
// service.
func (a Actor) HasOrigin(service string) bool {
	return Contains(a.OriginServices, service)
}

// HasCompetency reports membership in the given technical service.
func (a Actor) HasCompetency(service string) bool {
	return Contains(a.AllowedServices, service)
}

// CanValidateN1 guards first-level approval: management role plus
// membership in the ticket's origin service.
func (a Actor) CanValidateN1(serviceDemandeur string) bool {
	if a.IsAdmin() {
		return true
	}
	return a.isManagement() && a.HasOrigin(serviceDemandeur)
}

// CanValidateN2 guards second-level (target-service) approval.
func (a Actor) CanValidateN2(targetService string) bool {
	if a.IsAdmin() {
		return true
	}
	return a.isManagement() && a.HasCompetency(targetService)
}

// CanReviewFinance guards the finance-manager review stage: MANAGER
// or ADMIN with the finance competency.
func (a Actor) CanReviewFinance() bool {
	if a.IsAdmin() {
		return true
	}
	return a.Role == domain.RoleManager && a.HasCompetency(ServiceFinance)
}

// CanSignFinance guards the director signature stage.
func (a Actor) CanSignFinance() bool {
	if a.IsAdmin() {
		return true
	}
	return a.Role == domain.RoleDirecteur && a.HasCompetency(ServiceFinance)
}

// CanSolve reports whether the actor may work tickets of the target
// service (pool pickup, document preparation, closing).
func (a Actor) CanSolve(targetService string) bool {
	if a.IsAdmin() {
		return true
	}
	switch a.Role {
	case domain.RoleSolver, domain.RoleManager, domain.RoleDirecteur:
		return a.HasCompetency(targetService)
	}
	return false
}

// CanTake additionally forbids self-assignment: a requester may not
// act as their own resolver.
func (a Actor) CanTake(ticket *domain.Ticket) bool {
	if a.ID == ticket.AuthorID {
		return false
	}
	return a.CanSolve(ticket.TargetService)
}

// CanAssign guards assignment of a ticket to a named solver. The
// competency check applies to the target solver, not the assigner.
func (a Actor) CanAssign() bool {
	return a.isManagement()
}

// CanClose allows the current solver or an admin to close.
func (a Actor) CanClose(ticket *domain.Ticket) bool {
	if a.IsAdmin() {
		return true
	}
	return ticket.SolverID != nil && *ticket.SolverID == a.ID
}

// CanView gates read access to ticket detail and messaging.
func (a Actor) CanView(ticket *domain.Ticket) bool {
	if a.IsAdmin() || ticket.AuthorID == a.ID {
		return true
	}
	switch a.Role {
	case domain.RoleSolver:
		return a.HasCompetency(ticket.TargetService)
	case domain.RoleManager, domain.RoleDirecteur:
		return a.HasOrigin(ticket.ServiceDemandeur) || a.HasCompetency(ticket.TargetService)
	}
	return false
}

// CanSubmitRecruitment guards onboarding request creation.
func (a Actor) CanSubmitRecruitment() bool {
	return a.isManagement()
}

// CanActOnRecruitment requires the HR competency (refusal at any
// stage, validation checked further by stage).
func (a Actor) CanActOnRecruitment() bool {
	if a.IsAdmin() {
		return true
	}
	return a.HasCompetency(ServiceHR) || a.HasCompetency("RH")
}

// CanValidateRecruitment checks the stage-specific role on top of the
// HR competency.
func (a Actor) CanValidateRecruitment(stage domain.RecruitmentStatus) bool {
	if !a.CanActOnRecruitment() {
		return false
	}
	if a.IsAdmin() {
		return true
	}
	switch stage {
	case domain.RecruitmentWaitingManager:
		return a.Role == domain.RoleManager
	case domain.RecruitmentWaitingDirector:
		return a.Role == domain.RoleDirecteur
	}
	return false
}

// CanManageInventory restricts the material/loan registry to IT staff
// and admins.
func (a Actor) CanManageInventory() bool {
	if a.IsAdmin() {
		return true
	}
	switch a.Role {
	case domain.RoleSolver, domain.RoleManager, domain.RoleDirecteur:
		return a.HasCompetency(ServiceIT)
	}
	return false
}
