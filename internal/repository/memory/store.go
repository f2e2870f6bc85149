// Package memory implements the repository interfaces in process. It backs
// the service when no database is configured and is the store used by tests.
// Transactions hold the store lock for their whole duration and work on a
// copy of the state that replaces the live one only on commit.
package memory

import (
	"context"
	"sync"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
)

type state struct {
	tickets       map[int64]*domain.Ticket
	logs          []domain.TicketLogEntry
	notifications map[int64]*domain.Notification
	users         map[int64]*domain.User
	companies     map[int64]*domain.Company

	nextTicketID       int64
	nextLogID          int64
	nextNotificationID int64
	nextUserID         int64
	nextCompanyID      int64
}

func newState() *state {
	return &state{
		tickets:       make(map[int64]*domain.Ticket),
		notifications: make(map[int64]*domain.Notification),
		users:         make(map[int64]*domain.User),
		companies:     make(map[int64]*domain.Company),
	}
}

func (s *state) clone() *state {
	out := &state{
		tickets:            make(map[int64]*domain.Ticket, len(s.tickets)),
		logs:               append([]domain.TicketLogEntry(nil), s.logs...),
		notifications:      make(map[int64]*domain.Notification, len(s.notifications)),
		users:              make(map[int64]*domain.User, len(s.users)),
		companies:          make(map[int64]*domain.Company, len(s.companies)),
		nextTicketID:       s.nextTicketID,
		nextLogID:          s.nextLogID,
		nextNotificationID: s.nextNotificationID,
		nextUserID:         s.nextUserID,
		nextCompanyID:      s.nextCompanyID,
	}
	for id, t := range s.tickets {
		out.tickets[id] = t.Clone()
	}
	for id, n := range s.notifications {
		cp := *n
		out.notifications[id] = &cp
	}
	for id, u := range s.users {
		cp := *u
		out.users[id] = &cp
	}
	for id, c := range s.companies {
		cp := *c
		out.companies[id] = &cp
	}
	return out
}

// view runs a function against some state, either the live one under the
// lock or a transaction's private copy.
type view interface {
	do(fn func(*state) error) error
}

// Store is an in-memory repository.Store.
type Store struct {
	mu sync.Mutex
	st *state
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{st: newState()}
}

var _ repository.Store = (*Store)(nil)

func (s *Store) do(fn func(*state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

type txView struct {
	st *state
}

func (v txView) do(fn func(*state) error) error {
	return fn(v.st)
}

func bind(v view) repository.Repositories {
	return repository.Repositories{
		Tickets:       &ticketRepository{v: v},
		Logs:          &ticketLogRepository{v: v},
		Notifications: &notificationRepository{v: v},
		Users:         &userRepository{v: v},
		Companies:     &companyRepository{v: v},
	}
}

// Repos returns repositories that each lock the store per call.
func (s *Store) Repos() repository.Repositories {
	return bind(s)
}

// WithinTx serialises transactions. fn must only use the repositories it is
// given; calling Repos from inside fn deadlocks.
func (s *Store) WithinTx(ctx context.Context, fn func(repository.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.st.clone()
	if err := fn(bind(txView{st: work})); err != nil {
		return err
	}
	s.st = work
	return nil
}
