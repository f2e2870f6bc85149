package lifecycle

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// MaxCommentLength bounds comment bodies.
const MaxCommentLength = 5000

// CommentDecision describes the records a comment produces.
type CommentDecision struct {
	Log          domain.TicketLogEntry
	Notification *domain.Notification
}

// CanView reports whether the actor may see the ticket at all.
func CanView(ticket *domain.Ticket, actor domain.Actor) bool {
	switch {
	case ticket == nil:
		return false
	case actor.IsStaff():
		return true
	case actor.IsCompany():
		return ticket.CompanyID == actor.CompanyID
	default:
		return false
	}
}

// DecideComment validates a comment and picks the party to notify: the
// assignee when the company comments, the company when staff comments.
func DecideComment(ticket *domain.Ticket, actor domain.Actor, body string, now time.Time) (CommentDecision, error) {
	if ticket == nil {
		return CommentDecision{}, ErrTicketRequired
	}
	if !CanView(ticket, actor) {
		return CommentDecision{}, ErrForbidden
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return CommentDecision{}, &ValidationError{Field: "comment", Message: "is required"}
	}
	if utf8.RuneCountInString(body) > MaxCommentLength {
		return CommentDecision{}, &ValidationError{Field: "comment", Message: "must be at most 5000 characters"}
	}

	status := ticket.Status
	decision := CommentDecision{
		Log: domain.TicketLogEntry{
			TicketID:    ticket.ID,
			UserID:      actor.StaffUserID(),
			Action:      domain.LogActionCommented,
			OldStatus:   &status,
			NewStatus:   &status,
			Description: body,
			CreatedAt:   now,
		},
	}

	var recipient domain.Recipient
	var message string
	if actor.IsCompany() {
		if ticket.AssignedUserID != nil {
			recipient = domain.UserRecipient(*ticket.AssignedUserID)
			message = fmt.Sprintf("The company commented on ticket #%d %q.", ticket.ID, ticket.Title)
		}
	} else {
		recipient = domain.CompanyRecipient(ticket.CompanyID)
		message = fmt.Sprintf("Our support team commented on your ticket #%d %q.", ticket.ID, ticket.Title)
	}
	if recipient.IsValid() {
		decision.Notification = &domain.Notification{
			TicketID:  ticket.ID,
			Recipient: recipient,
			Type:      domain.NotificationComment,
			Message:   message,
			CreatedAt: now,
		}
	}
	return decision, nil
}
