package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated      EventType = "ticket_created"
	EventTicketTransitioned EventType = "ticket_transitioned"
	EventTicketCommented    EventType = "ticket_commented"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Kind      domain.ActorKind `json:"kind"`
	CompanyID *int64           `json:"company_id,omitempty"`
	UserID    *int64           `json:"user_id,omitempty"`
	Role      domain.StaffRole `json:"role,omitempty"`
}

// ActorOf converts a domain actor into event metadata.
func ActorOf(a domain.Actor) Actor {
	out := Actor{Kind: a.Kind}
	switch {
	case a.IsCompany():
		id := a.CompanyID
		out.CompanyID = &id
	case a.IsStaff():
		id := a.UserID
		out.UserID = &id
		out.Role = a.Role
	}
	return out
}

// Event represents a domain event emitted by services after commit.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  int64       `json:"ticket_id"`
	CompanyID int64       `json:"company_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// NewEvent stamps an id on a new event.
func NewEvent(kind EventType, ticket *domain.Ticket, actor domain.Actor, at time.Time, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      kind,
		TicketID:  ticket.ID,
		CompanyID: ticket.CompanyID,
		Actor:     ActorOf(actor),
		Timestamp: at,
		Payload:   payload,
	}
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Title    string                `json:"title"`
	Category domain.TicketCategory `json:"category"`
	Priority domain.TicketPriority `json:"priority"`
}

// TicketTransitionedPayload payload. Notification is the record persisted with
// the transition, nil when nobody was notified.
type TicketTransitionedPayload struct {
	Transition     string               `json:"transition"`
	OldStatus      domain.TicketStatus  `json:"old_status"`
	NewStatus      domain.TicketStatus  `json:"new_status"`
	AssignedUserID *int64               `json:"assigned_user_id,omitempty"`
	Notification   *domain.Notification `json:"notification,omitempty"`
}

// TicketCommentedPayload payload.
type TicketCommentedPayload struct {
	LogID        int64                `json:"log_id"`
	BodyPreview  string               `json:"body_preview"`
	Notification *domain.Notification `json:"notification,omitempty"`
}

// NotificationOf returns the notification carried by a ticket event, if any.
func NotificationOf(event Event) *domain.Notification {
	switch p := event.Payload.(type) {
	case TicketTransitionedPayload:
		return p.Notification
	case *TicketTransitionedPayload:
		return p.Notification
	case TicketCommentedPayload:
		return p.Notification
	case *TicketCommentedPayload:
		return p.Notification
	}
	return nil
}
