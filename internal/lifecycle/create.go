package lifecycle

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spec-kit/helpdesk/internal/domain"
)

const (
	MinTitleLength       = 10
	MaxTitleLength       = 255
	MinDescriptionLength = 20
	MaxDescriptionLength = 5000
)

// Draft is the company supplied content of a new ticket.
type Draft struct {
	Title       string
	Description string
	Category    domain.TicketCategory
	Priority    domain.TicketPriority
	Address     string
}

// Normalize trims the draft and applies the default priority.
func (d Draft) Normalize() Draft {
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	d.Address = strings.TrimSpace(d.Address)
	d.Category = domain.TicketCategory(strings.ToLower(strings.TrimSpace(string(d.Category))))
	d.Priority = domain.TicketPriority(strings.ToLower(strings.TrimSpace(string(d.Priority))))
	if d.Priority == "" {
		d.Priority = domain.TicketPriorityMedium
	}
	return d
}

// Validate checks a normalized draft.
func (d Draft) Validate() error {
	switch n := utf8.RuneCountInString(d.Title); {
	case n < MinTitleLength:
		return &ValidationError{Field: "title", Message: "must be at least 10 characters"}
	case n > MaxTitleLength:
		return &ValidationError{Field: "title", Message: "must be at most 255 characters"}
	}
	switch n := utf8.RuneCountInString(d.Description); {
	case n < MinDescriptionLength:
		return &ValidationError{Field: "description", Message: "must be at least 20 characters"}
	case n > MaxDescriptionLength:
		return &ValidationError{Field: "description", Message: "must be at most 5000 characters"}
	}
	if d.Category == "" {
		return &ValidationError{Field: "category", Message: "is required"}
	}
	if !d.Category.IsValid() {
		return &ValidationError{Field: "category", Message: "is not a known category"}
	}
	if !d.Priority.IsValid() {
		return &ValidationError{Field: "priority", Message: "must be low, medium or high"}
	}
	return nil
}

// DecideCreate builds a new ticket for a company. Only companies open tickets.
// The returned log entry has no ticket id yet; creation notifies nobody.
func DecideCreate(actor domain.Actor, draft Draft, now time.Time) (Decision, error) {
	if !actor.IsCompany() {
		return Decision{}, ErrForbidden
	}
	draft = draft.Normalize()
	if err := draft.Validate(); err != nil {
		return Decision{}, err
	}

	status := domain.TicketStatusCreated
	ticket := &domain.Ticket{
		CompanyID:   actor.CompanyID,
		Title:       draft.Title,
		Description: draft.Description,
		Category:    draft.Category,
		Priority:    draft.Priority,
		Address:     draft.Address,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return Decision{
		Transition: TransitionCreate,
		Next:       ticket,
		Log: domain.TicketLogEntry{
			Action:      domain.LogActionCreated,
			NewStatus:   &status,
			Description: "Ticket opened by the company",
			CreatedAt:   now,
		},
	}, nil
}
