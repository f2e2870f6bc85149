package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/repository/memory"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordedEvents struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordedEvents) handle(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordedEvents) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	ctx        context.Context
	store      *memory.Store
	clock      *clock
	tickets    *TicketService
	dispatcher events.Dispatcher
	recorded   *recordedEvents

	acme, globex     domain.Actor
	admin, attendant domain.Actor
	tech, otherTech  domain.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	repos := store.Repos()

	acme := &domain.Company{Name: "Acme", Email: "it@acme.test", Active: true}
	require.NoError(t, repos.Companies.Create(ctx, acme))
	globex := &domain.Company{Name: "Globex", Email: "it@globex.test", Active: true}
	require.NoError(t, repos.Companies.Create(ctx, globex))

	staff := map[string]*domain.User{
		"admin":     {Name: "Ana", Email: "ana@desk.test", Role: domain.StaffRoleAdmin, Active: true},
		"attendant": {Name: "Bia", Email: "bia@desk.test", Role: domain.StaffRoleAttendant, Active: true},
		"tech":      {Name: "Caio", Email: "caio@desk.test", Role: domain.StaffRoleTechnician, Active: true},
		"otherTech": {Name: "Duda", Email: "duda@desk.test", Role: domain.StaffRoleTechnician, Active: true},
	}
	for _, name := range []string{"admin", "attendant", "tech", "otherTech"} {
		require.NoError(t, repos.Users.Create(ctx, staff[name]))
	}

	clk := &clock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	recorded := &recordedEvents{}
	dispatcher.Subscribe(events.EventTicketCreated, recorded.handle)
	dispatcher.Subscribe(events.EventTicketTransitioned, recorded.handle)
	dispatcher.Subscribe(events.EventTicketCommented, recorded.handle)

	f := &fixture{
		ctx:        ctx,
		store:      store,
		clock:      clk,
		dispatcher: dispatcher,
		recorded:   recorded,
		acme:       domain.CompanyActor(acme.ID),
		globex:     domain.CompanyActor(globex.ID),
		admin:      domain.StaffActor(staff["admin"].ID, domain.StaffRoleAdmin),
		attendant:  domain.StaffActor(staff["attendant"].ID, domain.StaffRoleAttendant),
		tech:       domain.StaffActor(staff["tech"].ID, domain.StaffRoleTechnician),
		otherTech:  domain.StaffActor(staff["otherTech"].ID, domain.StaffRoleTechnician),
	}
	f.tickets = f.ticketService(store)
	return f
}

func (f *fixture) ticketService(store repository.Store) *TicketService {
	return NewTicketService(TicketDependencies{
		Store:      store,
		Dispatcher: f.dispatcher,
		Logger:     zap.NewNop(),
		Clock:      f.clock.Now,
	})
}

func (f *fixture) createTicket(t *testing.T, company domain.Actor, title string) *domain.Ticket {
	t.Helper()
	res, err := f.tickets.Create(f.ctx, company, CreateTicketInput{
		Title:       title,
		Description: "The device stopped working this morning and nobody can use it.",
		Category:    "computer",
		Address:     "Rua A, 100",
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	return res.Ticket
}

func (f *fixture) ticket(t *testing.T, id int64) *domain.Ticket {
	t.Helper()
	ticket, err := f.store.Repos().Tickets.GetByID(f.ctx, id)
	require.NoError(t, err)
	return ticket
}

func (f *fixture) logs(t *testing.T, id int64) []domain.TicketLogEntry {
	t.Helper()
	logs, err := f.store.Repos().Logs.ListByTicket(f.ctx, id)
	require.NoError(t, err)
	return logs
}

func (f *fixture) notificationsFor(t *testing.T, r domain.Recipient) []domain.Notification {
	t.Helper()
	list, err := f.store.Repos().Notifications.ListByRecipient(f.ctx, r, repository.NotificationFilter{Limit: 100})
	require.NoError(t, err)
	return list
}

// walk moves a ticket through the given transitions as actor.
func (f *fixture) walk(t *testing.T, id int64, actor domain.Actor, steps ...func(context.Context, domain.Actor, int64) (*Result, error)) {
	t.Helper()
	for _, step := range steps {
		_, err := step(f.ctx, actor, id)
		require.NoError(t, err)
	}
}

func codeOf(err error) string {
	var de *apperrors.DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// wrappedStore lets a test replace repositories handed to a transaction.
type wrappedStore struct {
	repository.Store
	wrap func(repository.Repositories) repository.Repositories
}

func (w wrappedStore) WithinTx(ctx context.Context, fn func(repository.Repositories) error) error {
	return w.Store.WithinTx(ctx, func(r repository.Repositories) error {
		return fn(w.wrap(r))
	})
}

type failingNotifications struct {
	repository.NotificationRepository
	err error
}

func (f failingNotifications) Create(context.Context, *domain.Notification) error {
	return f.err
}

// staleTickets serves a snapshot taken before another writer changed the row.
type staleTickets struct {
	repository.TicketRepository
	snapshot *domain.Ticket
	served   bool
}

func (s *staleTickets) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	if !s.served && s.snapshot.ID == id {
		s.served = true
		return s.snapshot.Clone(), nil
	}
	return s.TicketRepository.GetByID(ctx, id)
}
