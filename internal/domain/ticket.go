package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets. Finance
// purchase orders traverse the DAF sub-chain between the pool and
// closure; all other flows end at PENDING -> IN_PROGRESS -> DONE.
type TicketStatus string

const (
	StatusValidationN1      TicketStatus = "VALIDATION_N1"
	StatusValidationN2      TicketStatus = "VALIDATION_N2"
	StatusPending           TicketStatus = "PENDING"
	StatusInProgress        TicketStatus = "IN_PROGRESS"
	StatusWaitingUser       TicketStatus = "WAITING_USER"
	StatusValidationFinance TicketStatus = "VALIDATION_DAF_MANAGER"
	StatusFinanceSignature  TicketStatus = "DAF_SIGNATURE"
	StatusRefused           TicketStatus = "REFUSED"
	StatusDone              TicketStatus = "DONE"
)

// IsTerminal reports whether no further transition is allowed.
func (s TicketStatus) IsTerminal() bool {
	return s == StatusDone || s == StatusRefused
}

// Ticket categories. Free-form at the storage layer; these constants
// cover the categories the workflow branches on.
const (
	CategoryStandard      = "STANDARD"
	CategoryIncident      = "INCIDENT"
	CategoryNewUser       = "NEW_USER"
	CategoryEquipment     = "EQUIPMENT"
	CategoryPurchaseOrder = "PURCHASE_ORDER"
	CategoryHRRequest     = "HR_REQUEST"
	CategoryImagoRepair   = "IMAGO_REPAIR"
	CategoryOnboarding    = "ONBOARDING"
)

// Ticket is the aggregate for service requests.
//
// UIDPublic is the human-facing identifier, unique per calendar day
// (YYYYMMDD-NNN), or a deterministic child id for onboarding
// sub-tickets. Fields is an open payload bag for category-specific
// data (purchase-order lines, new-user details); Files holds stored
// file keys, never raw bytes.
type Ticket struct {
	ID               string
	UIDPublic        string
	Title            string
	Description      string
	AuthorID         string
	TargetService    string
	Category         string
	Status           TicketStatus
	SolverID         *string
	ServiceDemandeur string
	Fields           map[string]any
	Files            []string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	ClosedAt         *time.Time
}
