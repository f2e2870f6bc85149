package domain

import "time"

// LogAction names what a ticket log entry records.
type LogAction string

const (
	LogActionCreated    LogAction = "created"
	LogActionAssumed    LogAction = "assumed"
	LogActionDispatched LogAction = "dispatched"
	LogActionInProgress LogAction = "in_progress"
	LogActionResolved   LogAction = "resolved"
	LogActionClosed     LogAction = "closed"
	LogActionReopened   LogAction = "reopened"
	LogActionCommented  LogAction = "commented"
	LogActionAutoClosed LogAction = "auto_closed"
)

// TicketLogEntry is an append-only audit record. UserID is nil for company and system entries.
type TicketLogEntry struct {
	ID          int64
	TicketID    int64
	UserID      *int64
	Action      LogAction
	OldStatus   *TicketStatus
	NewStatus   *TicketStatus
	Description string
	CreatedAt   time.Time
}
