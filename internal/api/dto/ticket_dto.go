package dto

import (
	"time"

	"github.com/spec-kit/service-desk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	TargetService string         `json:"target_service"`
	Category      string         `json:"category"`
	OriginService string         `json:"origin_service"`
	Fields        map[string]any `json:"fields"`
	Files         []string       `json:"files"`
}

// ManagerActionRequest payload for validate/refuse.
type ManagerActionRequest struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

// AssignRequest payload.
type AssignRequest struct {
	SolverID string `json:"solver_id"`
}

// TransferRequest payload for rerouting a ticket.
type TransferRequest struct {
	TargetService string `json:"target_service"`
}

// FinanceDocumentRequest payload for DAF document submission and
// signature.
type FinanceDocumentRequest struct {
	FileKey string `json:"file_key"`
}

// WaitingUserRequest payload.
type WaitingUserRequest struct {
	Question string `json:"question"`
}

// CreateMessageRequest payload.
type CreateMessageRequest struct {
	Body string `json:"body"`
}

// TicketSummary response.
type TicketSummary struct {
	ID               string              `json:"id"`
	UIDPublic        string              `json:"uid_public"`
	Title            string              `json:"title"`
	TargetService    string              `json:"target_service"`
	Category         string              `json:"category"`
	Status           domain.TicketStatus `json:"status"`
	AuthorID         string              `json:"author_id"`
	SolverID         *string             `json:"solver_id"`
	ServiceDemandeur string              `json:"service_demandeur"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketSummary
	Description string                  `json:"description"`
	Fields      map[string]any          `json:"fields"`
	Files       []string                `json:"files"`
	ClosedAt    *time.Time              `json:"closed_at"`
	Messages    []TicketMessageResponse `json:"messages"`
}

// TicketMessageResponse represents a thread entry.
type TicketMessageResponse struct {
	ID        string             `json:"id"`
	AuthorID  *string            `json:"author_id"`
	Kind      domain.MessageKind `json:"kind"`
	Body      string             `json:"body"`
	CreatedAt time.Time          `json:"created_at"`
}

// StatsResponse mirrors the dashboard counters.
type StatsResponse struct {
	TicketsByStatus    map[domain.TicketStatus]int `json:"tickets_by_status"`
	MaterialsAvailable int                         `json:"materials_available"`
	MaterialsLoaned    int                         `json:"materials_loaned"`
	OpenLoans          int                         `json:"open_loans"`
}

// TicketSummaryFrom maps a domain ticket.
func TicketSummaryFrom(t *domain.Ticket) TicketSummary {
	return TicketSummary{
		ID:               t.ID,
		UIDPublic:        t.UIDPublic,
		Title:            t.Title,
		TargetService:    t.TargetService,
		Category:         t.Category,
		Status:           t.Status,
		AuthorID:         t.AuthorID,
		SolverID:         t.SolverID,
		ServiceDemandeur: t.ServiceDemandeur,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
}

// TicketDetailFrom maps a domain ticket with its thread.
func TicketDetailFrom(t *domain.Ticket, msgs []domain.TicketMessage) TicketDetailResponse {
	out := TicketDetailResponse{
		TicketSummary: TicketSummaryFrom(t),
		Description:   t.Description,
		Fields:        t.Fields,
		Files:         t.Files,
		ClosedAt:      t.ClosedAt,
		Messages:      make([]TicketMessageResponse, 0, len(msgs)),
	}
	for i := range msgs {
		out.Messages = append(out.Messages, TicketMessageFrom(&msgs[i]))
	}
	return out
}

// TicketMessageFrom maps a thread entry.
func TicketMessageFrom(m *domain.TicketMessage) TicketMessageResponse {
	return TicketMessageResponse{
		ID:        m.ID,
		AuthorID:  m.AuthorID,
		Kind:      m.Kind,
		Body:      m.Body,
		CreatedAt: m.CreatedAt,
	}
}
