package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/service"
)

const maxNotificationPage = 100

// NotificationsHandler serves the caller's notification inbox.
type NotificationsHandler struct {
	service *service.NotificationService
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(notifications *service.NotificationService) *NotificationsHandler {
	return &NotificationsHandler{service: notifications}
}

// List GET /notifications?unread=true&limit=20&offset=0.
func (h *NotificationsHandler) List(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	limit := parseInt(c.Query("limit"), 20)
	if limit > maxNotificationPage {
		limit = maxNotificationPage
	}
	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	page, err := h.service.List(c.UserContext(), actor, c.QueryBool("unread", false), limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.NotificationResponse, 0, len(page.Notifications))
	for _, n := range page.Notifications {
		items = append(items, dto.NotificationResponse{
			ID:        n.ID,
			TicketID:  n.TicketID,
			Type:      n.Type,
			Message:   n.Message,
			IsRead:    n.IsRead,
			CreatedAt: n.CreatedAt,
		})
	}
	return c.JSON(dto.NotificationListResponse{
		Success:       true,
		Notifications: items,
		UnreadCount:   page.UnreadCount,
	})
}

// UnreadCount GET /notifications/unread-count.
func (h *NotificationsHandler) UnreadCount(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	count, err := h.service.CountUnread(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "unread_count": count})
}

// MarkAsRead POST /notifications/:id/read.
func (h *NotificationsHandler) MarkAsRead(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.service.MarkAsRead(c.UserContext(), actor, id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "message": "Notification marked as read"})
}

// MarkAllAsRead POST /notifications/read-all.
func (h *NotificationsHandler) MarkAllAsRead(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	updated, err := h.service.MarkAllAsRead(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "message": "All notifications marked as read", "updated": updated})
}

// Delete DELETE /notifications/:id.
func (h *NotificationsHandler) Delete(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), actor, id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "message": "Notification deleted"})
}
