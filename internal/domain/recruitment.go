package domain

import "time"

// RecruitmentStatus is the onboarding state machine, disjoint from
// ticket statuses. DISPATCHED and REFUSED are terminal.
type RecruitmentStatus string

const (
	RecruitmentWaitingManager  RecruitmentStatus = "WAITING_RH_MANAGER"
	RecruitmentWaitingDirector RecruitmentStatus = "WAITING_RH_DIRECTOR"
	RecruitmentDispatched      RecruitmentStatus = "DISPATCHED"
	RecruitmentRefused         RecruitmentStatus = "REFUSED"
)

// IsTerminal reports whether the onboarding request is settled.
func (s RecruitmentStatus) IsTerminal() bool {
	return s == RecruitmentDispatched || s == RecruitmentRefused
}

// Recruitment is a new-hire onboarding request (FCPI). On final HR
// director approval it fans out into child tickets; ChildTicketIDs is
// populated exactly once by that dispatch.
type Recruitment struct {
	ID        string
	UIDPublic string
	AuthorID  string
	Status    RecruitmentStatus

	AgentLastName  string
	AgentFirstName string
	Position       string
	AgentService   string
	EntryDate      time.Time

	Contractual       bool
	WorkTime          string
	RecruitmentReason string

	WorkLocation    string
	SecurityComment string

	ImagoActive   bool
	ImagoMobility string

	RequestedEquipment string
	ITAccess           string

	CVFileKey        string
	JobDescFileKey   string
	PhotoFileKey     string
	RefusalReason    string
	ChildTicketIDs   []string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
