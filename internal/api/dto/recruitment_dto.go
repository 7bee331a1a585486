package dto

import (
	"time"

	"github.com/spec-kit/service-desk/internal/domain"
)

// CreateRecruitmentRequest is the onboarding submission payload.
type CreateRecruitmentRequest struct {
	AgentLastName  string `json:"agent_last_name"`
	AgentFirstName string `json:"agent_first_name"`
	Position       string `json:"position"`
	AgentService   string `json:"agent_service"`
	EntryDate      string `json:"entry_date"`

	Contractual       bool   `json:"contractual"`
	WorkTime          string `json:"work_time"`
	RecruitmentReason string `json:"recruitment_reason"`

	WorkLocation    string `json:"work_location"`
	SecurityComment string `json:"security_comment"`

	ImagoActive   bool   `json:"imago_active"`
	ImagoMobility string `json:"imago_mobility"`

	RequestedEquipment string `json:"requested_equipment"`
	ITAccess           string `json:"it_access"`

	CVFileKey      string `json:"cv_file_key"`
	JobDescFileKey string `json:"job_desc_file_key"`
	PhotoFileKey   string `json:"photo_file_key"`
}

// RecruitmentActionRequest payload for validate/refuse.
type RecruitmentActionRequest struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

// RecruitmentResponse mirrors a recruitment record.
type RecruitmentResponse struct {
	ID             string                   `json:"id"`
	UIDPublic      string                   `json:"uid_public"`
	AuthorID       string                   `json:"author_id"`
	Status         domain.RecruitmentStatus `json:"status"`
	AgentLastName  string                   `json:"agent_last_name"`
	AgentFirstName string                   `json:"agent_first_name"`
	Position       string                   `json:"position"`
	AgentService   string                   `json:"agent_service"`
	EntryDate      time.Time                `json:"entry_date"`
	ImagoActive    bool                     `json:"imago_active"`
	RefusalReason  string                   `json:"refusal_reason,omitempty"`
	ChildTicketIDs []string                 `json:"child_ticket_ids,omitempty"`
	CreatedAt      time.Time                `json:"created_at"`
	UpdatedAt      time.Time                `json:"updated_at"`
}

// RecruitmentFrom maps a domain record.
func RecruitmentFrom(r *domain.Recruitment) RecruitmentResponse {
	return RecruitmentResponse{
		ID:             r.ID,
		UIDPublic:      r.UIDPublic,
		AuthorID:       r.AuthorID,
		Status:         r.Status,
		AgentLastName:  r.AgentLastName,
		AgentFirstName: r.AgentFirstName,
		Position:       r.Position,
		AgentService:   r.AgentService,
		EntryDate:      r.EntryDate,
		ImagoActive:    r.ImagoActive,
		RefusalReason:  r.RefusalReason,
		ChildTicketIDs: r.ChildTicketIDs,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}
