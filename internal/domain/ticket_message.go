package domain

import "time"

// MessageKind distinguishes human conversation from automated
// transition audit entries.
type MessageKind string

const (
	MessageKindUser   MessageKind = "USER"
	MessageKindSystem MessageKind = "SYSTEM"
)

// TicketMessage is an append-only thread entry on a ticket. System
// messages record workflow events such as refusal reasons.
type TicketMessage struct {
	ID        string
	TicketID  string
	AuthorID  *string
	Kind      MessageKind
	Body      string
	CreatedAt time.Time
}
