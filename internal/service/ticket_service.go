package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/lifecycle"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// DefaultPageSize is the fixed number of tickets per list page.
const DefaultPageSize = 10

var successMessages = map[lifecycle.Transition]string{
	lifecycle.TransitionCreate:        "Ticket created successfully",
	lifecycle.TransitionAssume:        "Ticket assumed successfully",
	lifecycle.TransitionDispatch:      "Technician dispatched successfully",
	lifecycle.TransitionSetInProgress: "Ticket set to in progress",
	lifecycle.TransitionResolve:       "Ticket resolved successfully",
	lifecycle.TransitionClose:         "Ticket closed successfully",
	lifecycle.TransitionReopen:        "Ticket reopened successfully",
	lifecycle.TransitionAutoClose:     "Ticket closed automatically",
}

// TicketService coordinates ticket workflows. Every state change runs in one
// transaction together with its log entry and notification.
type TicketService struct {
	store      repository.Store
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	sanitizer  *textSanitizer
	now        func() time.Time
}

// TicketDependencies bundles collaborators for ticket service.
type TicketDependencies struct {
	Store      repository.Store
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Clock      func() time.Time
}

// CreateTicketInput describes ticket creation payload.
type CreateTicketInput struct {
	Title       string
	Description string
	Category    string
	Priority    string
	Address     string
}

// Result is returned by every state-changing operation.
type Result struct {
	Success bool
	Message string
	Ticket  *domain.Ticket
}

// TicketDetails is a ticket with its audit trail.
type TicketDetails struct {
	Ticket    *domain.Ticket
	Logs      []domain.TicketLogEntry
	Available []lifecycle.Transition
}

// TicketListInput describes list filters. CompanyID is honoured for staff only.
type TicketListInput struct {
	Statuses       []domain.TicketStatus
	Priorities     []domain.TicketPriority
	Categories     []domain.TicketCategory
	Search         string
	AssignedUserID *int64
	CompanyID      *int64
	Page           int
}

// Pagination describes one page of a list.
type Pagination struct {
	CurrentPage  int
	TotalPages   int
	TotalItems   int
	ItemsPerPage int
}

// TicketPage is a page of tickets.
type TicketPage struct {
	Tickets    []domain.Ticket
	Pagination Pagination
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &TicketService{
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		metrics:    deps.Metrics,
		sanitizer:  newTextSanitizer(),
		now:        clock,
	}
}

// Create opens a ticket for the acting company.
func (s *TicketService) Create(ctx context.Context, actor domain.Actor, input CreateTicketInput) (*Result, error) {
	draft := lifecycle.Draft{
		Title:       s.sanitizer.Clean(input.Title),
		Description: s.sanitizer.Clean(input.Description),
		Category:    domain.TicketCategory(input.Category),
		Priority:    domain.TicketPriority(input.Priority),
		Address:     s.sanitizer.Clean(input.Address),
	}
	decision, err := lifecycle.DecideCreate(actor, draft, s.now())
	if err != nil {
		err = translate(s.logger, err, "ticket", 0)
		s.metrics.RecordTransition(string(lifecycle.TransitionCreate), outcome(err))
		return nil, err
	}

	ticket := decision.Next
	err = s.store.WithinTx(ctx, func(r repository.Repositories) error {
		if err := r.Tickets.Create(ctx, ticket); err != nil {
			return err
		}
		decision.Log.TicketID = ticket.ID
		return r.Logs.Append(ctx, &decision.Log)
	})
	if err != nil {
		err = translate(s.logger, err, "ticket", 0)
		s.metrics.RecordTransition(string(lifecycle.TransitionCreate), outcome(err))
		return nil, err
	}
	s.metrics.RecordTransition(string(lifecycle.TransitionCreate), outcome(nil))

	s.publish(ctx, events.NewEvent(events.EventTicketCreated, ticket, actor, ticket.CreatedAt, events.TicketCreatedPayload{
		Title:    ticket.Title,
		Category: ticket.Category,
		Priority: ticket.Priority,
	}))
	return &Result{Success: true, Message: successMessages[lifecycle.TransitionCreate], Ticket: ticket}, nil
}

// Assume takes ownership of a new ticket.
func (s *TicketService) Assume(ctx context.Context, actor domain.Actor, ticketID int64) (*Result, error) {
	return s.Apply(ctx, ticketID, lifecycle.TransitionAssume, actor)
}

// Dispatch sends a technician to an assumed ticket.
func (s *TicketService) Dispatch(ctx context.Context, actor domain.Actor, ticketID int64) (*Result, error) {
	return s.Apply(ctx, ticketID, lifecycle.TransitionDispatch, actor)
}

// SetInProgress marks work as started.
func (s *TicketService) SetInProgress(ctx context.Context, actor domain.Actor, ticketID int64) (*Result, error) {
	return s.Apply(ctx, ticketID, lifecycle.TransitionSetInProgress, actor)
}

// Resolve marks the problem as solved.
func (s *TicketService) Resolve(ctx context.Context, actor domain.Actor, ticketID int64) (*Result, error) {
	return s.Apply(ctx, ticketID, lifecycle.TransitionResolve, actor)
}

// Close finishes a resolved ticket.
func (s *TicketService) Close(ctx context.Context, actor domain.Actor, ticketID int64) (*Result, error) {
	return s.Apply(ctx, ticketID, lifecycle.TransitionClose, actor)
}

// Reopen sends a resolved or closed ticket back to the queue.
func (s *TicketService) Reopen(ctx context.Context, actor domain.Actor, ticketID int64) (*Result, error) {
	return s.Apply(ctx, ticketID, lifecycle.TransitionReopen, actor)
}

// AutoClose closes a ticket resolved more than seven days ago on behalf of the scheduler.
func (s *TicketService) AutoClose(ctx context.Context, ticketID int64) (*Result, error) {
	return s.Apply(ctx, ticketID, lifecycle.TransitionAutoClose, domain.SystemActor())
}

// Apply runs one lifecycle transition: load, decide, conditionally update,
// append the log entry and store the notification, all in one transaction.
// A concurrent change between load and update surfaces as an invalid transition.
func (s *TicketService) Apply(ctx context.Context, ticketID int64, t lifecycle.Transition, actor domain.Actor) (*Result, error) {
	if t == lifecycle.TransitionCreate {
		return nil, apperrors.NewValidationError("create is not applied to an existing ticket", nil)
	}

	var decision lifecycle.Decision
	err := s.store.WithinTx(ctx, func(r repository.Repositories) error {
		ticket, err := r.Tickets.GetByID(ctx, ticketID)
		if err != nil {
			return err
		}
		decision, err = lifecycle.Decide(ticket, t, actor, s.now())
		if err != nil {
			return err
		}
		if err := r.Tickets.UpdateStatus(ctx, decision.Next, decision.OldStatus); err != nil {
			if !errors.Is(err, repository.ErrStaleStatus) {
				return err
			}
			current := ticket.Status
			if fresh, ferr := r.Tickets.GetByID(ctx, ticketID); ferr == nil {
				current = fresh.Status
			}
			return &lifecycle.InvalidTransitionError{Transition: t, Current: current}
		}
		if err := r.Logs.Append(ctx, &decision.Log); err != nil {
			return err
		}
		if decision.Notification != nil {
			if err := r.Notifications.Create(ctx, decision.Notification); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		err = translate(s.logger, err, "ticket", ticketID)
		s.metrics.RecordTransition(string(t), outcome(err))
		return nil, err
	}
	s.metrics.RecordTransition(string(t), outcome(nil))

	next := decision.Next
	s.publish(ctx, events.NewEvent(events.EventTicketTransitioned, next, actor, next.UpdatedAt, events.TicketTransitionedPayload{
		Transition:     string(t),
		OldStatus:      decision.OldStatus,
		NewStatus:      next.Status,
		AssignedUserID: next.AssignedUserID,
		Notification:   decision.Notification,
	}))
	return &Result{Success: true, Message: successMessages[t], Ticket: next}, nil
}

// AddComment appends a comment to the ticket log and notifies the other party.
func (s *TicketService) AddComment(ctx context.Context, actor domain.Actor, ticketID int64, body string) (*Result, error) {
	if !actor.IsAuthenticated() {
		return nil, apperrors.NewForbidden()
	}
	body = s.sanitizer.Clean(body)

	var decision lifecycle.CommentDecision
	var ticket *domain.Ticket
	err := s.store.WithinTx(ctx, func(r repository.Repositories) error {
		var err error
		ticket, err = r.Tickets.GetByID(ctx, ticketID)
		if err != nil {
			return err
		}
		decision, err = lifecycle.DecideComment(ticket, actor, body, s.now())
		if err != nil {
			return err
		}
		if err := r.Logs.Append(ctx, &decision.Log); err != nil {
			return err
		}
		if decision.Notification != nil {
			return r.Notifications.Create(ctx, decision.Notification)
		}
		return nil
	})
	if err != nil {
		return nil, translate(s.logger, err, "ticket", ticketID)
	}

	s.publish(ctx, events.NewEvent(events.EventTicketCommented, ticket, actor, decision.Log.CreatedAt, events.TicketCommentedPayload{
		LogID:        decision.Log.ID,
		BodyPreview:  preview(decision.Log.Description, 120),
		Notification: decision.Notification,
	}))
	return &Result{Success: true, Message: "Comment added successfully", Ticket: ticket}, nil
}

// GetDetails returns the ticket and its log. Companies only see their own tickets.
func (s *TicketService) GetDetails(ctx context.Context, actor domain.Actor, ticketID int64) (*TicketDetails, error) {
	repos := s.store.Repos()
	ticket, err := repos.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, translate(s.logger, err, "ticket", ticketID)
	}
	if !lifecycle.CanView(ticket, actor) {
		return nil, apperrors.NewForbidden()
	}
	logs, err := repos.Logs.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, translate(s.logger, err, "ticket", ticketID)
	}
	return &TicketDetails{
		Ticket:    ticket,
		Logs:      logs,
		Available: lifecycle.Available(ticket, actor, s.now()),
	}, nil
}

// List returns one page of the tickets visible to the actor.
func (s *TicketService) List(ctx context.Context, actor domain.Actor, input TicketListInput) (*TicketPage, error) {
	filter, err := s.visibilityFilter(actor, input)
	if err != nil {
		return nil, err
	}
	page := input.Page
	if page < 1 {
		page = 1
	}
	filter.Limit = DefaultPageSize
	filter.Offset = (page - 1) * DefaultPageSize

	repos := s.store.Repos()
	total, err := repos.Tickets.Count(ctx, filter)
	if err != nil {
		return nil, translate(s.logger, err, "ticket", 0)
	}
	tickets, err := repos.Tickets.List(ctx, filter)
	if err != nil {
		return nil, translate(s.logger, err, "ticket", 0)
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	return &TicketPage{
		Tickets: tickets,
		Pagination: Pagination{
			CurrentPage:  page,
			TotalPages:   int(math.Ceil(float64(total) / float64(DefaultPageSize))),
			TotalItems:   total,
			ItemsPerPage: DefaultPageSize,
		},
	}, nil
}

func (s *TicketService) visibilityFilter(actor domain.Actor, input TicketListInput) (repository.TicketFilter, error) {
	filter := repository.TicketFilter{
		Statuses:       input.Statuses,
		Priorities:     input.Priorities,
		Categories:     input.Categories,
		AssignedUserID: input.AssignedUserID,
	}
	if search := strings.TrimSpace(input.Search); search != "" {
		filter.SearchTerm = &search
	}
	switch {
	case actor.IsCompany():
		id := actor.CompanyID
		filter.CompanyID = &id
	case actor.IsStaff():
		filter.CompanyID = input.CompanyID
	default:
		return filter, apperrors.NewForbidden()
	}
	return filter, nil
}

func (s *TicketService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func preview(body string, limit int) string {
	if utf8.RuneCountInString(body) <= limit {
		return body
	}
	runes := []rune(body)
	return string(runes[:limit]) + "..."
}
