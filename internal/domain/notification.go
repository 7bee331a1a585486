package domain

import "time"

// NotificationCategory drives UI presentation only.
type NotificationCategory string

const (
	NotifyInfo    NotificationCategory = "info"
	NotifySuccess NotificationCategory = "success"
	NotifyWarning NotificationCategory = "warning"
	NotifyDanger  NotificationCategory = "danger"
)

// Notification is a per-recipient side-channel record. Losing one
// must never block or corrupt a workflow transition.
type Notification struct {
	ID          string
	RecipientID string
	Message     string
	Category    NotificationCategory
	Link        string
	IsRead      bool
	CreatedAt   time.Time
}

// TeamMessage is a chat entry scoped to one technical service.
type TeamMessage struct {
	ID        string
	Service   string
	AuthorID  string
	Content   string
	CreatedAt time.Time
}
