package dto

import (
	"time"

	"github.com/spec-kit/service-desk/internal/domain"
)

// NotificationResponse mirrors a feed entry.
type NotificationResponse struct {
	ID        string                      `json:"id"`
	Message   string                      `json:"message"`
	Category  domain.NotificationCategory `json:"category"`
	Link      string                      `json:"link,omitempty"`
	IsRead    bool                        `json:"is_read"`
	CreatedAt time.Time                   `json:"created_at"`
}

// TeamMessageRequest payload.
type TeamMessageRequest struct {
	Content string `json:"content"`
}

// TeamMessageResponse mirrors a chat entry.
type TeamMessageResponse struct {
	ID        string    `json:"id"`
	Service   string    `json:"service"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NotificationFrom maps a feed entry.
func NotificationFrom(n *domain.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		Message:   n.Message,
		Category:  n.Category,
		Link:      n.Link,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}

// TeamMessageFrom maps a chat entry.
func TeamMessageFrom(m *domain.TeamMessage) TeamMessageResponse {
	return TeamMessageResponse{
		ID:        m.ID,
		Service:   m.Service,
		AuthorID:  m.AuthorID,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}
