package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/service-desk/internal/api/dto"
	"github.com/spec-kit/service-desk/internal/auth"
	"github.com/spec-kit/service-desk/internal/service"
	"github.com/spec-kit/service-desk/pkg/util"
)

// NotificationsHandler exposes the notification feed and team chat.
type NotificationsHandler struct {
	notifications *service.NotificationService
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(notifications *service.NotificationService) *NotificationsHandler {
	return &NotificationsHandler{notifications: notifications}
}

// List GET /notifications.
func (h *NotificationsHandler) List(c *fiber.Ctx) error {
	user, err := auth.UserFromContext(c)
	if err != nil {
		return err
	}
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	feed, err := h.notifications.ListUnread(c.Context(), user.ID, limit)
	if err != nil {
		return err
	}
	items := make([]dto.NotificationResponse, 0, len(feed))
	for i := range feed {
		items = append(items, dto.NotificationFrom(&feed[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// CountUnread GET /notifications/unread-count.
func (h *NotificationsHandler) CountUnread(c *fiber.Ctx) error {
	user, err := auth.UserFromContext(c)
	if err != nil {
		return err
	}
	count, err := h.notifications.CountUnread(c.Context(), user.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"unread": count}})
}

// MarkRead POST /notifications/:id/read.
func (h *NotificationsHandler) MarkRead(c *fiber.Ctx) error {
	user, err := auth.UserFromContext(c)
	if err != nil {
		return err
	}
	if err := h.notifications.MarkRead(c.Context(), user.ID, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// MarkAllRead POST /notifications/read-all.
func (h *NotificationsHandler) MarkAllRead(c *fiber.Ctx) error {
	user, err := auth.UserFromContext(c)
	if err != nil {
		return err
	}
	if err := h.notifications.MarkAllRead(c.Context(), user.ID); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// PostTeamMessage POST /teams/:service/messages.
func (h *NotificationsHandler) PostTeamMessage(c *fiber.Ctx) error {
	user, err := auth.UserFromContext(c)
	if err != nil {
		return err
	}
	var req dto.TeamMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	msg, err := h.notifications.PostTeamMessage(c.Context(), user, c.Params("service"), req.Content)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.TeamMessageFrom(msg)})
}

// ListTeamMessages GET /teams/:service/messages.
func (h *NotificationsHandler) ListTeamMessages(c *fiber.Ctx) error {
	user, err := auth.UserFromContext(c)
	if err != nil {
		return err
	}
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	msgs, err := h.notifications.ListTeamMessages(c.Context(), user, c.Params("service"), limit)
	if err != nil {
		return err
	}
	items := make([]dto.TeamMessageResponse, 0, len(msgs))
	for i := range msgs {
		items = append(items, dto.TeamMessageFrom(&msgs[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}
