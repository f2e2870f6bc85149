// Package lifecycle holds the ticket state machine. It performs no I/O: given a
// ticket, a requested transition and the acting party it decides whether the
// transition is allowed and describes every side effect the caller must persist.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// Transition names an operation that moves a ticket between statuses.
type Transition string

const (
	TransitionCreate        Transition = "create"
	TransitionAssume        Transition = "assume"
	TransitionDispatch      Transition = "dispatch"
	TransitionSetInProgress Transition = "set_in_progress"
	TransitionResolve       Transition = "resolve"
	TransitionClose         Transition = "close"
	TransitionReopen        Transition = "reopen"
	TransitionAutoClose     Transition = "auto_close"
)

// AutoCloseAfter is how long a ticket must sit in resolved before the scheduler may close it.
const AutoCloseAfter = 7 * 24 * time.Hour

type actorClass int

const (
	actorCompany actorClass = iota + 1
	actorStaff
	actorSystem
)

type assigneeEffect int

const (
	assigneeKeep assigneeEffect = iota
	assigneeSetToActor
	assigneeClear
)

type recipientRule int

const (
	notifyNobody recipientRule = iota
	notifyCompany
	notifyAssignee
)

type rule struct {
	from      []domain.TicketStatus
	to        domain.TicketStatus
	actor     actorClass
	ownerOnly bool
	action    domain.LogAction
	assignee  assigneeEffect
	notify    recipientRule
	notice    domain.NotificationType
	logText   string
	message   string
}

// rules is the single permission and transition table.
var rules = map[Transition]rule{
	TransitionAssume: {
		from:     []domain.TicketStatus{domain.TicketStatusCreated},
		to:       domain.TicketStatusAssumed,
		actor:    actorStaff,
		action:   domain.LogActionAssumed,
		assignee: assigneeSetToActor,
		notify:   notifyCompany,
		notice:   domain.NotificationAssumed,
		logText:  "Ticket assumed",
		message:  "Your ticket #%d %q was assumed by our support team.",
	},
	TransitionDispatch: {
		from:    []domain.TicketStatus{domain.TicketStatusAssumed},
		to:      domain.TicketStatusDispatched,
		actor:   actorStaff,
		action:  domain.LogActionDispatched,
		notify:  notifyCompany,
		notice:  domain.NotificationDispatched,
		logText: "Technician dispatched",
		message: "A technician was dispatched for your ticket #%d %q.",
	},
	TransitionSetInProgress: {
		from:    []domain.TicketStatus{domain.TicketStatusDispatched, domain.TicketStatusAssumed},
		to:      domain.TicketStatusInProgress,
		actor:   actorStaff,
		action:  domain.LogActionInProgress,
		notify:  notifyCompany,
		notice:  domain.NotificationInProgress,
		logText: "Work started",
		message: "Work on your ticket #%d %q is in progress.",
	},
	TransitionResolve: {
		from: []domain.TicketStatus{
			domain.TicketStatusInProgress,
			domain.TicketStatusDispatched,
			domain.TicketStatusAssumed,
		},
		to:      domain.TicketStatusResolved,
		actor:   actorStaff,
		action:  domain.LogActionResolved,
		notify:  notifyCompany,
		notice:  domain.NotificationResolved,
		logText: "Ticket resolved",
		message: "Your ticket #%d %q was resolved. Reopen it if the problem persists.",
	},
	TransitionClose: {
		from:    []domain.TicketStatus{domain.TicketStatusResolved},
		to:      domain.TicketStatusClosed,
		actor:   actorStaff,
		action:  domain.LogActionClosed,
		notify:  notifyCompany,
		notice:  domain.NotificationClosed,
		logText: "Ticket closed",
		message: "Your ticket #%d %q was closed.",
	},
	TransitionReopen: {
		from:      []domain.TicketStatus{domain.TicketStatusResolved, domain.TicketStatusClosed},
		to:        domain.TicketStatusCreated,
		actor:     actorCompany,
		ownerOnly: true,
		action:    domain.LogActionReopened,
		assignee:  assigneeClear,
		notify:    notifyAssignee,
		notice:    domain.NotificationReopened,
		logText:   "Ticket reopened by the company",
		message:   "Ticket #%d %q was reopened by the company.",
	},
	TransitionAutoClose: {
		from:    []domain.TicketStatus{domain.TicketStatusResolved},
		to:      domain.TicketStatusClosed,
		actor:   actorSystem,
		action:  domain.LogActionAutoClosed,
		notify:  notifyCompany,
		notice:  domain.NotificationAutoClosed,
		logText: "Ticket automatically closed after 7 days in resolved",
		message: "Your ticket #%d %q was closed automatically after 7 days without activity.",
	},
}

// Decision describes the outcome of an allowed transition.
type Decision struct {
	Transition   Transition
	OldStatus    domain.TicketStatus
	Next         *domain.Ticket
	Log          domain.TicketLogEntry
	Notification *domain.Notification
}

// Parse converts a user supplied name into a Transition.
func Parse(name string) (Transition, bool) {
	t := Transition(name)
	if t == TransitionCreate {
		return t, true
	}
	_, ok := rules[t]
	return t, ok
}

// From returns the statuses a transition may start from.
func From(t Transition) []domain.TicketStatus {
	r, ok := rules[t]
	if !ok {
		return nil
	}
	return append([]domain.TicketStatus(nil), r.from...)
}

// Decide validates a transition against the ticket and actor. Actor and
// ownership are checked before the current status, so an actor that may never
// perform the transition is told Forbidden whatever state the ticket is in.
func Decide(ticket *domain.Ticket, t Transition, actor domain.Actor, now time.Time) (Decision, error) {
	r, ok := rules[t]
	if !ok {
		return Decision{}, fmt.Errorf("%w: %q", ErrUnknownTransition, t)
	}
	if ticket == nil {
		return Decision{}, ErrTicketRequired
	}
	if !actorAllowed(r, ticket, actor) {
		return Decision{}, ErrForbidden
	}
	if !contains(r.from, ticket.Status) {
		return Decision{}, &InvalidTransitionError{Transition: t, Current: ticket.Status}
	}
	if t == TransitionAutoClose {
		if ticket.ResolvedAt == nil || now.Sub(*ticket.ResolvedAt) < AutoCloseAfter {
			return Decision{}, &InvalidTransitionError{
				Transition: t,
				Current:    ticket.Status,
				Reason:     "resolved less than 7 days ago",
			}
		}
	}

	next := ticket.Clone()
	next.Status = r.to
	next.UpdatedAt = now

	var previousAssignee *int64
	if ticket.AssignedUserID != nil {
		id := *ticket.AssignedUserID
		previousAssignee = &id
	}
	switch r.assignee {
	case assigneeSetToActor:
		id := actor.UserID
		next.AssignedUserID = &id
	case assigneeClear:
		next.AssignedUserID = nil
	}

	switch r.to {
	case domain.TicketStatusResolved:
		stamp := now
		next.ResolvedAt = &stamp
	case domain.TicketStatusClosed:
		stamp := now
		next.ClosedAt = &stamp
	case domain.TicketStatusCreated:
		next.ResolvedAt = nil
		next.ClosedAt = nil
	}

	oldStatus := ticket.Status
	newStatus := r.to
	decision := Decision{
		Transition: t,
		OldStatus:  oldStatus,
		Next:       next,
		Log: domain.TicketLogEntry{
			TicketID:    ticket.ID,
			UserID:      actor.StaffUserID(),
			Action:      r.action,
			OldStatus:   &oldStatus,
			NewStatus:   &newStatus,
			Description: r.logText,
			CreatedAt:   now,
		},
	}

	var recipient domain.Recipient
	switch r.notify {
	case notifyCompany:
		recipient = domain.CompanyRecipient(ticket.CompanyID)
	case notifyAssignee:
		if previousAssignee != nil {
			recipient = domain.UserRecipient(*previousAssignee)
		}
	}
	if recipient.IsValid() {
		decision.Notification = &domain.Notification{
			TicketID:  ticket.ID,
			Recipient: recipient,
			Type:      r.notice,
			Message:   fmt.Sprintf(r.message, ticket.ID, ticket.Title),
			CreatedAt: now,
		}
	}
	return decision, nil
}

// Available lists the transitions the actor could apply to the ticket right now.
func Available(ticket *domain.Ticket, actor domain.Actor, now time.Time) []Transition {
	order := []Transition{
		TransitionAssume,
		TransitionDispatch,
		TransitionSetInProgress,
		TransitionResolve,
		TransitionClose,
		TransitionReopen,
	}
	out := make([]Transition, 0, len(order))
	for _, t := range order {
		if _, err := Decide(ticket, t, actor, now); err == nil {
			out = append(out, t)
		}
	}
	return out
}

func actorAllowed(r rule, ticket *domain.Ticket, actor domain.Actor) bool {
	switch r.actor {
	case actorCompany:
		if !actor.IsCompany() {
			return false
		}
		return !r.ownerOnly || ticket.CompanyID == actor.CompanyID
	case actorStaff:
		return actor.IsStaff()
	case actorSystem:
		return actor.IsSystem()
	default:
		return false
	}
}

func contains(set []domain.TicketStatus, s domain.TicketStatus) bool {
	for _, candidate := range set {
		if candidate == s {
			return true
		}
	}
	return false
}
