package service

import (
	"context"
	"strings"

	"github.com/spec-kit/service-desk/internal/domain"
	"github.com/spec-kit/service-desk/internal/permission"
	"github.com/spec-kit/service-desk/internal/repository"
	"github.com/spec-kit/service-desk/pkg/util"
)

// NotificationService exposes the per-user notification feed and the
// per-service team chat sidebar.
type NotificationService struct {
	notifications repository.NotificationRepository
	teamMessages  repository.TeamMessageRepository
}

// NewNotificationService constructs the service.
func NewNotificationService(notifications repository.NotificationRepository, teamMessages repository.TeamMessageRepository) *NotificationService {
	return &NotificationService{notifications: notifications, teamMessages: teamMessages}
}

// ListUnread returns the newest unread notifications for the user.
func (s *NotificationService) ListUnread(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	items, err := s.notifications.ListUnread(ctx, userID, limit)
	if err != nil {
		return nil, util.MapError(err)
	}
	return items, nil
}

// CountUnread returns the badge counter.
func (s *NotificationService) CountUnread(ctx context.Context, userID string) (int, error) {
	count, err := s.notifications.CountUnread(ctx, userID)
	if err != nil {
		return 0, util.MapError(err)
	}
	return count, nil
}

// MarkRead acknowledges one notification. Scoped to the owner.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) error {
	if err := s.notifications.MarkRead(ctx, userID, notificationID); err != nil {
		return util.MapError(err)
	}
	return nil
}

// MarkAllRead acknowledges the whole feed.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	if err := s.notifications.MarkAllRead(ctx, userID); err != nil {
		return util.MapError(err)
	}
	return nil
}

// PostTeamMessage appends to a service chat. Membership in the
// service, either origin or competency, is required.
func (s *NotificationService) PostTeamMessage(ctx context.Context, author *domain.User, service, content string) (*domain.TeamMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, util.NewValidationError("message content is required", nil)
	}
	tag := permission.Normalize(service)
	if !canUseTeamChat(permission.ActorFor(author), tag) {
		return nil, util.NewForbidden("not a member of this service")
	}
	msg := &domain.TeamMessage{
		Service:  tag,
		AuthorID: author.ID,
		Content:  content,
	}
	if err := s.teamMessages.Create(ctx, msg); err != nil {
		return nil, util.MapError(err)
	}
	return msg, nil
}

// ListTeamMessages returns the newest chat entries for a service.
func (s *NotificationService) ListTeamMessages(ctx context.Context, viewer *domain.User, service string, limit int) ([]domain.TeamMessage, error) {
	tag := permission.Normalize(service)
	if !canUseTeamChat(permission.ActorFor(viewer), tag) {
		return nil, util.NewForbidden("not a member of this service")
	}
	msgs, err := s.teamMessages.ListByService(ctx, tag, limit)
	if err != nil {
		return nil, util.MapError(err)
	}
	return msgs, nil
}

func canUseTeamChat(actor permission.Actor, service string) bool {
	if service == "" {
		return false
	}
	return actor.IsAdmin() || actor.HasOrigin(service) || actor.HasCompetency(service)
}
