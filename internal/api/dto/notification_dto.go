package dto

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// NotificationResponse is one notification of the caller.
type NotificationResponse struct {
	ID        int64                   `json:"id"`
	TicketID  int64                   `json:"ticket_id"`
	Type      domain.NotificationType `json:"type"`
	Message   string                  `json:"message"`
	IsRead    bool                    `json:"is_read"`
	CreatedAt time.Time               `json:"created_at"`
}

// NotificationListResponse is returned by GET /notifications.
type NotificationListResponse struct {
	Success       bool                   `json:"success"`
	Notifications []NotificationResponse `json:"notifications"`
	UnreadCount   int                    `json:"unread_count"`
}
