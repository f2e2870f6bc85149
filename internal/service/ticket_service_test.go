package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/lifecycle"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

func TestCreateTicket(t *testing.T) {
	f := newFixture(t)

	res, err := f.tickets.Create(f.ctx, f.acme, CreateTicketInput{
		Title:       "  <b>Printer</b> on floor 2 jammed ",
		Description: "Paper jam & blinking red light since the morning shift started.",
		Category:    "Printer",
		Address:     "Rua A, 100",
	})
	require.NoError(t, err)
	assert.Equal(t, "Ticket created successfully", res.Message)

	ticket := f.ticket(t, res.Ticket.ID)
	assert.Equal(t, domain.TicketStatusCreated, ticket.Status)
	assert.Equal(t, "Printer on floor 2 jammed", ticket.Title)
	assert.Equal(t, "Paper jam & blinking red light since the morning shift started.", ticket.Description)
	assert.Equal(t, domain.TicketCategoryPrinter, ticket.Category)
	assert.Equal(t, domain.TicketPriorityMedium, ticket.Priority)
	assert.Equal(t, f.acme.CompanyID, ticket.CompanyID)
	assert.Nil(t, ticket.AssignedUserID)

	logs := f.logs(t, ticket.ID)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.LogActionCreated, logs[0].Action)
	assert.Nil(t, logs[0].OldStatus)
	assert.Nil(t, logs[0].UserID)

	assert.Empty(t, f.notificationsFor(t, domain.CompanyRecipient(f.acme.CompanyID)))
	assert.Equal(t, []events.EventType{events.EventTicketCreated}, f.recorded.types())
}

func TestEntityEncodedMarkupIsStripped(t *testing.T) {
	f := newFixture(t)

	res, err := f.tickets.Create(f.ctx, f.acme, CreateTicketInput{
		Title:       "&lt;img src=x onerror=alert(1)&gt; Printer on floor 2",
		Description: "&lt;script&gt;alert(1)&lt;/script&gt;Paper jam since the morning shift.",
		Category:    "printer",
		Address:     "&amp;lt;b&amp;gt;Rua A&amp;lt;/b&amp;gt;, 100",
	})
	require.NoError(t, err)
	ticket := f.ticket(t, res.Ticket.ID)
	assert.Equal(t, "Printer on floor 2", ticket.Title)
	assert.Equal(t, "Paper jam since the morning shift.", ticket.Description)
	assert.Equal(t, "Rua A, 100", ticket.Address)

	_, err = f.tickets.AddComment(f.ctx, f.acme, ticket.ID, "&lt;script&gt;alert(1)&lt;/script&gt;")
	assert.Equal(t, apperrors.CodeValidationFailed, codeOf(err))

	_, err = f.tickets.AddComment(f.ctx, f.acme, ticket.ID, "&lt;img src=x onerror=alert(1)&gt;cable replaced")
	require.NoError(t, err)
	logs := f.logs(t, ticket.ID)
	require.Len(t, logs, 2)
	assert.Equal(t, "cable replaced", logs[1].Description)
	for _, entry := range logs {
		assert.NotContains(t, entry.Description, "<")
	}
}

func TestCreateTicketRejectsStaffAndInvalidInput(t *testing.T) {
	f := newFixture(t)

	_, err := f.tickets.Create(f.ctx, f.admin, CreateTicketInput{
		Title:       "Server room is too warm",
		Description: "The air conditioning stopped and the rack is overheating.",
		Category:    "server",
	})
	assert.Equal(t, apperrors.CodeForbidden, codeOf(err))

	_, err = f.tickets.Create(f.ctx, f.acme, CreateTicketInput{
		Title:       "short",
		Description: "The air conditioning stopped and the rack is overheating.",
		Category:    "server",
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeValidationFailed, codeOf(err))
	assert.Equal(t, map[string]any{"title": "must be at least 10 characters"}, apperrors.ToDomainError(err).Details)

	page, err := f.tickets.List(f.ctx, f.admin, TicketListInput{})
	require.NoError(t, err)
	assert.Zero(t, page.Pagination.TotalItems)
	assert.Empty(t, f.recorded.types())
}

func TestAssumeRecordsAssigneeLogAndNotification(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, f.acme, "Laptop does not boot")
	f.clock.Advance(time.Hour)

	res, err := f.tickets.Assume(f.ctx, f.tech, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ticket assumed successfully", res.Message)

	stored := f.ticket(t, ticket.ID)
	assert.Equal(t, domain.TicketStatusAssumed, stored.Status)
	require.NotNil(t, stored.AssignedUserID)
	assert.Equal(t, f.tech.UserID, *stored.AssignedUserID)
	assert.Equal(t, f.clock.Now(), stored.UpdatedAt)

	logs := f.logs(t, ticket.ID)
	require.Len(t, logs, 2)
	assumed := logs[1]
	assert.Equal(t, domain.LogActionAssumed, assumed.Action)
	require.NotNil(t, assumed.UserID)
	assert.Equal(t, f.tech.UserID, *assumed.UserID)
	assert.Equal(t, domain.TicketStatusCreated, *assumed.OldStatus)
	assert.Equal(t, domain.TicketStatusAssumed, *assumed.NewStatus)

	notes := f.notificationsFor(t, domain.CompanyRecipient(f.acme.CompanyID))
	require.Len(t, notes, 1)
	assert.Equal(t, domain.NotificationAssumed, notes[0].Type)
	assert.Equal(t, ticket.ID, notes[0].TicketID)
	assert.False(t, notes[0].IsRead)

	assert.Equal(t, []events.EventType{events.EventTicketCreated, events.EventTicketTransitioned}, f.recorded.types())
}

func TestTransitionFromWrongStatusLeavesTicketUntouched(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, f.acme, "Network is down in sales")
	before := f.ticket(t, ticket.ID)
	f.clock.Advance(time.Hour)

	_, err := f.tickets.Dispatch(f.ctx, f.attendant, ticket.ID)
	require.Error(t, err)
	de := apperrors.ToDomainError(err)
	assert.Equal(t, apperrors.CodeInvalidStateTransition, de.Code)
	assert.Equal(t, "created", de.Details["current_status"])

	after := f.ticket(t, ticket.ID)
	assert.Equal(t, before, after)
	assert.Len(t, f.logs(t, ticket.ID), 1)
}

func TestTransitionsReportNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.tickets.Assume(f.ctx, f.tech, 999)
	assert.Equal(t, apperrors.CodeNotFound, codeOf(err))

	_, err = f.tickets.GetDetails(f.ctx, f.admin, 999)
	assert.Equal(t, apperrors.CodeNotFound, codeOf(err))

	_, err = f.tickets.AddComment(f.ctx, f.admin, 999, "hello")
	assert.Equal(t, apperrors.CodeNotFound, codeOf(err))
}

func TestFullLifecycleAndReopen(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, f.acme, "Workstation keeps freezing")

	f.walk(t, ticket.ID, f.tech, f.tickets.Assume, f.tickets.Dispatch, f.tickets.SetInProgress, f.tickets.Resolve)
	resolved := f.ticket(t, ticket.ID)
	require.NotNil(t, resolved.ResolvedAt)

	f.walk(t, ticket.ID, f.attendant, f.tickets.Close)
	closed := f.ticket(t, ticket.ID)
	assert.Equal(t, domain.TicketStatusClosed, closed.Status)
	require.NotNil(t, closed.ClosedAt)

	_, err := f.tickets.Reopen(f.ctx, f.globex, ticket.ID)
	assert.Equal(t, apperrors.CodeForbidden, codeOf(err))
	_, err = f.tickets.Reopen(f.ctx, f.admin, ticket.ID)
	assert.Equal(t, apperrors.CodeForbidden, codeOf(err))

	_, err = f.tickets.Reopen(f.ctx, f.acme, ticket.ID)
	require.NoError(t, err)

	reopened := f.ticket(t, ticket.ID)
	assert.Equal(t, domain.TicketStatusCreated, reopened.Status)
	assert.Nil(t, reopened.AssignedUserID)
	assert.Nil(t, reopened.ResolvedAt)
	assert.Nil(t, reopened.ClosedAt)

	techNotes := f.notificationsFor(t, domain.UserRecipient(f.tech.UserID))
	require.Len(t, techNotes, 1)
	assert.Equal(t, domain.NotificationReopened, techNotes[0].Type)

	actions := make([]domain.LogAction, 0)
	for _, entry := range f.logs(t, ticket.ID) {
		actions = append(actions, entry.Action)
	}
	assert.Equal(t, []domain.LogAction{
		domain.LogActionCreated,
		domain.LogActionAssumed,
		domain.LogActionDispatched,
		domain.LogActionInProgress,
		domain.LogActionResolved,
		domain.LogActionClosed,
		domain.LogActionReopened,
	}, actions)

	assert.Len(t, f.notificationsFor(t, domain.CompanyRecipient(f.acme.CompanyID)), 5)
}

func TestAutoCloseRequiresSevenDaysInResolved(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, f.acme, "Phone cannot sync e-mail")
	f.walk(t, ticket.ID, f.tech, f.tickets.Assume, f.tickets.Resolve)

	f.clock.Advance(6 * 24 * time.Hour)
	_, err := f.tickets.AutoClose(f.ctx, ticket.ID)
	assert.Equal(t, apperrors.CodeInvalidStateTransition, codeOf(err))

	_, err = f.tickets.Apply(f.ctx, ticket.ID, lifecycle.TransitionAutoClose, f.admin)
	assert.Equal(t, apperrors.CodeForbidden, codeOf(err))

	f.clock.Advance(2 * 24 * time.Hour)
	res, err := f.tickets.AutoClose(f.ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, res.Ticket.Status)

	logs := f.logs(t, ticket.ID)
	last := logs[len(logs)-1]
	assert.Equal(t, domain.LogActionAutoClosed, last.Action)
	assert.Nil(t, last.UserID)

	notes := f.notificationsFor(t, domain.CompanyRecipient(f.acme.CompanyID))
	assert.Equal(t, domain.NotificationAutoClosed, notes[0].Type)
}

func TestConcurrentAssumeHasSingleWinner(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, f.acme, "Shared drive unreachable")

	actors := []domain.Actor{f.tech, f.otherTech, f.attendant, f.admin}
	var wg sync.WaitGroup
	errs := make([]error, len(actors))
	for i, actor := range actors {
		wg.Add(1)
		go func(i int, actor domain.Actor) {
			defer wg.Done()
			_, errs[i] = f.tickets.Assume(context.Background(), actor, ticket.ID)
		}(i, actor)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.Equal(t, apperrors.CodeInvalidStateTransition, codeOf(err))
	}
	assert.Equal(t, 1, succeeded)

	assumed := 0
	for _, entry := range f.logs(t, ticket.ID) {
		if entry.Action == domain.LogActionAssumed {
			assumed++
		}
	}
	assert.Equal(t, 1, assumed)
	assert.Len(t, f.notificationsFor(t, domain.CompanyRecipient(f.acme.CompanyID)), 1)
}

func TestStaleReadSurfacesCurrentStatus(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, f.acme, "VPN drops every hour")
	snapshot := f.ticket(t, ticket.ID)

	_, err := f.tickets.Assume(f.ctx, f.tech, ticket.ID)
	require.NoError(t, err)

	stale := &staleTickets{snapshot: snapshot}
	svc := f.ticketService(wrappedStore{
		Store: f.store,
		wrap: func(r repository.Repositories) repository.Repositories {
			stale.TicketRepository = r.Tickets
			r.Tickets = stale
			return r
		},
	})

	_, err = svc.Assume(f.ctx, f.otherTech, ticket.ID)
	require.Error(t, err)
	de := apperrors.ToDomainError(err)
	assert.Equal(t, apperrors.CodeInvalidStateTransition, de.Code)
	assert.Equal(t, "assumed", de.Details["current_status"])

	stored := f.ticket(t, ticket.ID)
	assert.Equal(t, f.tech.UserID, *stored.AssignedUserID)
}

func TestNotificationFailureRollsBackTransition(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, f.acme, "Monitor flickers constantly")
	before := f.ticket(t, ticket.ID)

	svc := f.ticketService(wrappedStore{
		Store: f.store,
		wrap: func(r repository.Repositories) repository.Repositories {
			r.Notifications = failingNotifications{NotificationRepository: r.Notifications, err: errors.New("disk full")}
			return r
		},
	})

	_, err := svc.Assume(f.ctx, f.tech, ticket.ID)
	require.Error(t, err)
	de := apperrors.ToDomainError(err)
	assert.Equal(t, apperrors.CodeInternal, de.Code)
	assert.NotContains(t, de.Message, "disk full")

	assert.Equal(t, before, f.ticket(t, ticket.ID))
	assert.Len(t, f.logs(t, ticket.ID), 1)
	assert.Equal(t, []events.EventType{events.EventTicketCreated}, f.recorded.types())
}

func TestGetDetailsVisibility(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, f.acme, "Keyboard missing keys")
	f.walk(t, ticket.ID, f.tech, f.tickets.Assume)

	details, err := f.tickets.GetDetails(f.ctx, f.acme, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, details.Logs, 2)
	assert.Empty(t, details.Available)

	details, err = f.tickets.GetDetails(f.ctx, f.tech, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, []lifecycle.Transition{
		lifecycle.TransitionDispatch,
		lifecycle.TransitionSetInProgress,
		lifecycle.TransitionResolve,
	}, details.Available)

	_, err = f.tickets.GetDetails(f.ctx, f.globex, ticket.ID)
	assert.Equal(t, apperrors.CodeForbidden, codeOf(err))
}

func TestListPaginatesAndScopesCompanies(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 23; i++ {
		f.createTicket(t, f.acme, fmt.Sprintf("Acme issue number %02d", i))
		f.clock.Advance(time.Minute)
	}
	other := f.createTicket(t, f.globex, "Globex mail server slow")
	f.walk(t, other.ID, f.tech, f.tickets.Assume)

	page, err := f.tickets.List(f.ctx, f.acme, TicketListInput{Page: 3, CompanyID: &other.CompanyID})
	require.NoError(t, err)
	assert.Equal(t, Pagination{CurrentPage: 3, TotalPages: 3, TotalItems: 23, ItemsPerPage: 10}, page.Pagination)
	require.Len(t, page.Tickets, 3)
	assert.Equal(t, "Acme issue number 02", page.Tickets[0].Title)

	page, err = f.tickets.List(f.ctx, f.admin, TicketListInput{})
	require.NoError(t, err)
	assert.Equal(t, 24, page.Pagination.TotalItems)
	assert.Equal(t, 1, page.Pagination.CurrentPage)
	assert.Equal(t, "Globex mail server slow", page.Tickets[0].Title)

	page, err = f.tickets.List(f.ctx, f.admin, TicketListInput{
		Statuses:       []domain.TicketStatus{domain.TicketStatusAssumed},
		AssignedUserID: &f.tech.UserID,
	})
	require.NoError(t, err)
	require.Len(t, page.Tickets, 1)
	assert.Equal(t, other.ID, page.Tickets[0].ID)

	page, err = f.tickets.List(f.ctx, f.admin, TicketListInput{Search: "NUMBER 1"})
	require.NoError(t, err)
	assert.Equal(t, 10, page.Pagination.TotalItems)

	page, err = f.tickets.List(f.ctx, f.globex, TicketListInput{Page: 9})
	require.NoError(t, err)
	assert.Empty(t, page.Tickets)
	assert.NotNil(t, page.Tickets)
	assert.Equal(t, 1, page.Pagination.TotalPages)

	_, err = f.tickets.List(f.ctx, domain.Actor{}, TicketListInput{})
	assert.Equal(t, apperrors.CodeForbidden, codeOf(err))
}

func TestAddComment(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, f.acme, "Projector has no signal")

	_, err := f.tickets.AddComment(f.ctx, f.acme, ticket.ID, "<script>x</script>   ")
	assert.Equal(t, apperrors.CodeValidationFailed, codeOf(err))

	_, err = f.tickets.AddComment(f.ctx, f.acme, ticket.ID, "Still broken, <i>please</i> hurry")
	require.NoError(t, err)
	assert.Empty(t, f.notificationsFor(t, domain.UserRecipient(f.tech.UserID)))

	f.walk(t, ticket.ID, f.tech, f.tickets.Assume)
	_, err = f.tickets.AddComment(f.ctx, f.acme, ticket.ID, "Any news?")
	require.NoError(t, err)
	techNotes := f.notificationsFor(t, domain.UserRecipient(f.tech.UserID))
	require.Len(t, techNotes, 1)
	assert.Equal(t, domain.NotificationComment, techNotes[0].Type)

	_, err = f.tickets.AddComment(f.ctx, f.globex, ticket.ID, "Not my ticket")
	assert.Equal(t, apperrors.CodeForbidden, codeOf(err))

	logs := f.logs(t, ticket.ID)
	require.Len(t, logs, 4)
	comment := logs[1]
	assert.Equal(t, domain.LogActionCommented, comment.Action)
	assert.Equal(t, "Still broken, please hurry", comment.Description)
	assert.Equal(t, *comment.OldStatus, *comment.NewStatus)
	assert.Equal(t, domain.TicketStatusCreated, f.ticket(t, ticket.ID).Status)
}

func TestApplyRejectsCreate(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, f.acme, "Scanner not detected")

	_, err := f.tickets.Apply(f.ctx, ticket.ID, lifecycle.TransitionCreate, f.acme)
	assert.Equal(t, apperrors.CodeValidationFailed, codeOf(err))

	_, err = f.tickets.Apply(f.ctx, ticket.ID, lifecycle.Transition("teleport"), f.admin)
	assert.Equal(t, apperrors.CodeValidationFailed, codeOf(err))
}
