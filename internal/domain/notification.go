package domain

import "time"

// NotificationType mirrors the ticket event that produced a notification.
type NotificationType string

const (
	NotificationAssumed        NotificationType = "assumed"
	NotificationDispatched     NotificationType = "dispatched"
	NotificationInProgress     NotificationType = "in_progress"
	NotificationResolved       NotificationType = "resolved"
	NotificationClosed         NotificationType = "closed"
	NotificationReopened       NotificationType = "reopened"
	NotificationComment        NotificationType = "comment"
	NotificationOverdueWarning NotificationType = "overdue_warning"
	NotificationStuckTicket    NotificationType = "stuck_ticket"
	NotificationAutoClosed     NotificationType = "auto_closed"
)

// Recipient identifies who receives a notification. Exactly one field is set.
type Recipient struct {
	CompanyID *int64
	UserID    *int64
}

// CompanyRecipient targets a company.
func CompanyRecipient(id int64) Recipient {
	return Recipient{CompanyID: &id}
}

// UserRecipient targets a staff member.
func UserRecipient(id int64) Recipient {
	return Recipient{UserID: &id}
}

// IsValid reports whether exactly one side is set.
func (r Recipient) IsValid() bool {
	return (r.CompanyID == nil) != (r.UserID == nil)
}

// Key returns a stable string form, used for cache keys.
func (r Recipient) Key() string {
	switch {
	case r.CompanyID != nil:
		return "company:" + itoa(*r.CompanyID)
	case r.UserID != nil:
		return "user:" + itoa(*r.UserID)
	default:
		return ""
	}
}

// Notification is a per-recipient read/unread record tied to a ticket.
type Notification struct {
	ID        int64
	TicketID  int64
	Recipient Recipient
	Type      NotificationType
	Message   string
	IsRead    bool
	CreatedAt time.Time
}
