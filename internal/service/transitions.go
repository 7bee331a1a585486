package service

import (
	"github.com/spec-kit/service-desk/internal/domain"
	"github.com/spec-kit/service-desk/internal/permission"
)

// ManagerAction is the verb a validator applies to a ticket awaiting
// approval.
type ManagerAction string

const (
	ActionValidate ManagerAction = "validate"
	ActionRefuse   ManagerAction = "refuse"
)

// Tickets branch on two coarse classifications rather than the raw
// service and category tags: only Finance changes the validation
// chain, and only the Equipment category shortcuts it.
type serviceClass int

const (
	svcAny serviceClass = iota
	svcFinance
	svcOther
)

type categoryClass int

const (
	catAny categoryClass = iota
	catEquipment
	catOther
)

// audience selects who gets notified after a transition commits.
type audience int

const (
	audienceNone audience = iota
	audienceN1Approvers
	audienceN2Approvers
	audiencePool
	audienceAuthor
	audienceSolver
	audienceFinanceManagers
	audienceFinanceDirectors
)

type transitionKey struct {
	current  domain.TicketStatus
	service  serviceClass
	category categoryClass
	action   ManagerAction
}

type transitionOutcome struct {
	next   domain.TicketStatus
	notify audience
}

// managerTransitions is the validate/refuse branch matrix. Finance
// tickets skip N2 (their review happens later, in the DAF sub-chain);
// Equipment tickets resolve straight to the pool from N2 whatever
// their target service; refusing a Finance ticket under DAF review
// bounces it back to the solver instead of terminating it.
var managerTransitions = map[transitionKey]transitionOutcome{
	{domain.StatusValidationN1, svcFinance, catAny, ActionValidate}: {domain.StatusPending, audiencePool},
	{domain.StatusValidationN1, svcAny, catAny, ActionValidate}:     {domain.StatusValidationN2, audienceN2Approvers},

	{domain.StatusValidationN2, svcAny, catEquipment, ActionValidate}: {domain.StatusPending, audiencePool},
	{domain.StatusValidationN2, svcFinance, catAny, ActionValidate}:   {domain.StatusValidationFinance, audienceFinanceManagers},
	{domain.StatusValidationN2, svcAny, catAny, ActionValidate}:       {domain.StatusPending, audiencePool},

	{domain.StatusValidationN1, svcAny, catAny, ActionRefuse}: {domain.StatusRefused, audienceAuthor},
	{domain.StatusValidationN2, svcAny, catAny, ActionRefuse}: {domain.StatusRefused, audienceAuthor},

	{domain.StatusValidationFinance, svcFinance, catAny, ActionRefuse}: {domain.StatusInProgress, audienceSolver},
	{domain.StatusFinanceSignature, svcFinance, catAny, ActionRefuse}:  {domain.StatusInProgress, audienceSolver},
}

func classifyService(targetService string) serviceClass {
	if targetService == permission.ServiceFinance {
		return svcFinance
	}
	return svcOther
}

func classifyCategory(category string) categoryClass {
	if category == domain.CategoryEquipment {
		return catEquipment
	}
	return catOther
}

// resolveTransition looks up the outcome for a manager action,
// falling back from the most specific key to the wildcard rows. The
// category dimension takes precedence over the service dimension so
// the Equipment shortcut applies to Finance equipment too.
func resolveTransition(current domain.TicketStatus, targetService, category string, action ManagerAction) (transitionOutcome, bool) {
	svc := classifyService(targetService)
	cat := classifyCategory(category)

	candidates := []transitionKey{
		{current, svc, cat, action},
		{current, svcAny, cat, action},
		{current, svc, catAny, action},
		{current, svcAny, catAny, action},
	}
	for _, key := range candidates {
		if outcome, ok := managerTransitions[key]; ok {
			return outcome, true
		}
	}
	return transitionOutcome{}, false
}

// resolveInitialStatus computes where a freshly submitted ticket
// enters the workflow. Precedence: simplified IT categories, Imago
// self-service repairs and HR requests skip approval entirely;
// Equipment requests skip N1; otherwise the author's role decides.
func resolveInitialStatus(actor permission.Actor, targetService, category string) domain.TicketStatus {
	switch {
	case targetService == permission.ServiceIT &&
		(category == domain.CategoryStandard || category == domain.CategoryIncident):
		return domain.StatusPending
	case category == domain.CategoryImagoRepair:
		return domain.StatusPending
	case targetService == permission.ServiceHR:
		return domain.StatusPending
	case category == domain.CategoryEquipment:
		return domain.StatusValidationN2
	}

	switch actor.Role {
	case domain.RoleAdmin:
		return domain.StatusPending
	case domain.RoleDirecteur:
		return domain.StatusValidationN2
	default:
		return domain.StatusValidationN1
	}
}

// audienceForStatus maps a freshly assigned status to the approver or
// solver set that must hear about it.
func audienceForStatus(status domain.TicketStatus) audience {
	switch status {
	case domain.StatusValidationN1:
		return audienceN1Approvers
	case domain.StatusValidationN2:
		return audienceN2Approvers
	case domain.StatusPending:
		return audiencePool
	}
	return audienceNone
}
