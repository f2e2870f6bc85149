package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusCreated    TicketStatus = "created"
	TicketStatusAssumed    TicketStatus = "assumed"
	TicketStatusDispatched TicketStatus = "dispatched"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// TicketStatuses lists every status in lifecycle order.
var TicketStatuses = []TicketStatus{
	TicketStatusCreated,
	TicketStatusAssumed,
	TicketStatusDispatched,
	TicketStatusInProgress,
	TicketStatusResolved,
	TicketStatusClosed,
}

// IsValid reports whether s is one of the known statuses.
func (s TicketStatus) IsValid() bool {
	for _, candidate := range TicketStatuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// TicketCategory classifies the affected equipment.
type TicketCategory string

const (
	TicketCategoryComputer TicketCategory = "computer"
	TicketCategoryPrinter  TicketCategory = "printer"
	TicketCategoryNetwork  TicketCategory = "network"
	TicketCategoryServer   TicketCategory = "server"
	TicketCategoryMobile   TicketCategory = "mobile"
	TicketCategoryOther    TicketCategory = "other"
)

// IsValid reports whether c is a known category.
func (c TicketCategory) IsValid() bool {
	switch c {
	case TicketCategoryComputer, TicketCategoryPrinter, TicketCategoryNetwork,
		TicketCategoryServer, TicketCategoryMobile, TicketCategoryOther:
		return true
	}
	return false
}

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
)

// IsValid reports whether p is a known priority.
func (p TicketPriority) IsValid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh:
		return true
	}
	return false
}

// Ticket is the aggregate for support requests. CompanyID never changes after creation.
type Ticket struct {
	ID             int64
	CompanyID      int64
	Title          string
	Description    string
	Category       TicketCategory
	Priority       TicketPriority
	Address        string
	Status         TicketStatus
	AssignedUserID *int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ResolvedAt     *time.Time
	ClosedAt       *time.Time
}

// Clone returns a deep copy so callers can mutate pointers safely.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	out := *t
	out.AssignedUserID = cloneInt64(t.AssignedUserID)
	out.ResolvedAt = cloneTime(t.ResolvedAt)
	out.ClosedAt = cloneTime(t.ClosedAt)
	return &out
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
