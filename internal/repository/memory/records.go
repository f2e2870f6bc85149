package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
)

type ticketLogRepository struct {
	v view
}

func (r *ticketLogRepository) Append(_ context.Context, entry *domain.TicketLogEntry) error {
	return r.v.do(func(st *state) error {
		if _, ok := st.tickets[entry.TicketID]; !ok {
			return repository.ErrNotFound
		}
		st.nextLogID++
		entry.ID = st.nextLogID
		st.logs = append(st.logs, *entry)
		return nil
	})
}

func (r *ticketLogRepository) ListByTicket(_ context.Context, ticketID int64) ([]domain.TicketLogEntry, error) {
	var out []domain.TicketLogEntry
	err := r.v.do(func(st *state) error {
		for _, e := range st.logs {
			if e.TicketID == ticketID {
				out = append(out, e)
			}
		}
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].CreatedAt.Equal(out[j].CreatedAt) {
				return out[i].ID < out[j].ID
			}
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		})
		return nil
	})
	return out, err
}

func (r *ticketLogRepository) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	err := r.v.do(func(st *state) error {
		kept := st.logs[:0:0]
		for _, e := range st.logs {
			if e.CreatedAt.Before(cutoff) {
				removed++
				continue
			}
			kept = append(kept, e)
		}
		st.logs = kept
		return nil
	})
	return removed, err
}

type notificationRepository struct {
	v view
}

func sameRecipient(a, b domain.Recipient) bool {
	return a.Key() == b.Key()
}

func (r *notificationRepository) Create(_ context.Context, n *domain.Notification) error {
	if !n.Recipient.IsValid() {
		return repository.ErrInvalidRecipient
	}
	return r.v.do(func(st *state) error {
		st.nextNotificationID++
		n.ID = st.nextNotificationID
		cp := *n
		st.notifications[n.ID] = &cp
		return nil
	})
}

func (r *notificationRepository) ListByRecipient(_ context.Context, recipient domain.Recipient, filter repository.NotificationFilter) ([]domain.Notification, error) {
	if !recipient.IsValid() {
		return nil, repository.ErrInvalidRecipient
	}
	var out []domain.Notification
	err := r.v.do(func(st *state) error {
		for _, n := range st.notifications {
			if !sameRecipient(n.Recipient, recipient) || (filter.UnreadOnly && n.IsRead) {
				continue
			}
			out = append(out, *n)
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].CreatedAt.Equal(out[j].CreatedAt) {
				return out[i].ID > out[j].ID
			}
			return out[i].CreatedAt.After(out[j].CreatedAt)
		})
		limit := filter.Limit
		if limit <= 0 {
			limit = 20
		}
		offset := filter.Offset
		if offset < 0 {
			offset = 0
		}
		if offset >= len(out) {
			out = nil
			return nil
		}
		out = truncate(out[offset:], limit)
		return nil
	})
	return out, err
}

func (r *notificationRepository) CountUnread(_ context.Context, recipient domain.Recipient) (int, error) {
	if !recipient.IsValid() {
		return 0, repository.ErrInvalidRecipient
	}
	var total int
	err := r.v.do(func(st *state) error {
		for _, n := range st.notifications {
			if sameRecipient(n.Recipient, recipient) && !n.IsRead {
				total++
			}
		}
		return nil
	})
	return total, err
}

func (r *notificationRepository) MarkAsRead(_ context.Context, id int64, recipient domain.Recipient) error {
	if !recipient.IsValid() {
		return repository.ErrInvalidRecipient
	}
	return r.v.do(func(st *state) error {
		n, ok := st.notifications[id]
		if !ok || !sameRecipient(n.Recipient, recipient) {
			return repository.ErrNotFound
		}
		n.IsRead = true
		return nil
	})
}

func (r *notificationRepository) MarkAllAsRead(_ context.Context, recipient domain.Recipient) (int64, error) {
	if !recipient.IsValid() {
		return 0, repository.ErrInvalidRecipient
	}
	var updated int64
	err := r.v.do(func(st *state) error {
		for _, n := range st.notifications {
			if sameRecipient(n.Recipient, recipient) && !n.IsRead {
				n.IsRead = true
				updated++
			}
		}
		return nil
	})
	return updated, err
}

func (r *notificationRepository) Delete(_ context.Context, id int64, recipient domain.Recipient) error {
	if !recipient.IsValid() {
		return repository.ErrInvalidRecipient
	}
	return r.v.do(func(st *state) error {
		n, ok := st.notifications[id]
		if !ok || !sameRecipient(n.Recipient, recipient) {
			return repository.ErrNotFound
		}
		delete(st.notifications, id)
		return nil
	})
}

func (r *notificationRepository) ExistsSince(_ context.Context, ticketID int64, kind domain.NotificationType, since time.Time) (bool, error) {
	var exists bool
	err := r.v.do(func(st *state) error {
		for _, n := range st.notifications {
			if n.TicketID == ticketID && n.Type == kind && !n.CreatedAt.Before(since) {
				exists = true
				return nil
			}
		}
		return nil
	})
	return exists, err
}

func (r *notificationRepository) DeleteReadOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	err := r.v.do(func(st *state) error {
		for id, n := range st.notifications {
			if n.IsRead && n.CreatedAt.Before(cutoff) {
				delete(st.notifications, id)
				removed++
			}
		}
		return nil
	})
	return removed, err
}

type userRepository struct {
	v view
}

func (r *userRepository) Create(_ context.Context, user *domain.User) error {
	return r.v.do(func(st *state) error {
		for _, u := range st.users {
			if strings.EqualFold(u.Email, user.Email) {
				return repository.ErrDuplicate
			}
		}
		st.nextUserID++
		now := time.Now().UTC()
		user.ID = st.nextUserID
		user.CreatedAt, user.UpdatedAt = now, now
		cp := *user
		st.users[user.ID] = &cp
		return nil
	})
}

func (r *userRepository) GetByID(_ context.Context, id int64) (*domain.User, error) {
	var out *domain.User
	err := r.v.do(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return repository.ErrNotFound
		}
		cp := *u
		out = &cp
		return nil
	})
	return out, err
}

func (r *userRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	var out *domain.User
	err := r.v.do(func(st *state) error {
		for _, u := range st.users {
			if strings.EqualFold(u.Email, email) {
				cp := *u
				out = &cp
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r *userRepository) ListByRole(_ context.Context, role domain.StaffRole, activeOnly bool) ([]domain.User, error) {
	var out []domain.User
	err := r.v.do(func(st *state) error {
		for _, u := range st.users {
			if u.Role == role && (!activeOnly || u.Active) {
				out = append(out, *u)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return nil
	})
	return out, err
}

type companyRepository struct {
	v view
}

func (r *companyRepository) Create(_ context.Context, company *domain.Company) error {
	return r.v.do(func(st *state) error {
		for _, c := range st.companies {
			if strings.EqualFold(c.Email, company.Email) {
				return repository.ErrDuplicate
			}
		}
		st.nextCompanyID++
		now := time.Now().UTC()
		company.ID = st.nextCompanyID
		company.CreatedAt, company.UpdatedAt = now, now
		cp := *company
		st.companies[company.ID] = &cp
		return nil
	})
}

func (r *companyRepository) GetByID(_ context.Context, id int64) (*domain.Company, error) {
	var out *domain.Company
	err := r.v.do(func(st *state) error {
		c, ok := st.companies[id]
		if !ok {
			return repository.ErrNotFound
		}
		cp := *c
		out = &cp
		return nil
	})
	return out, err
}

func (r *companyRepository) GetByEmail(_ context.Context, email string) (*domain.Company, error) {
	var out *domain.Company
	err := r.v.do(func(st *state) error {
		for _, c := range st.companies {
			if strings.EqualFold(c.Email, email) {
				cp := *c
				out = &cp
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}
