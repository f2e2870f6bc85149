package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
)

type ticketRepository struct {
	v view
}

func (r *ticketRepository) Create(_ context.Context, ticket *domain.Ticket) error {
	return r.v.do(func(st *state) error {
		st.nextTicketID++
		ticket.ID = st.nextTicketID
		st.tickets[ticket.ID] = ticket.Clone()
		return nil
	})
}

func (r *ticketRepository) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	var out *domain.Ticket
	err := r.v.do(func(st *state) error {
		t, ok := st.tickets[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = t.Clone()
		return nil
	})
	return out, err
}

func (r *ticketRepository) UpdateStatus(_ context.Context, next *domain.Ticket, expected domain.TicketStatus) error {
	return r.v.do(func(st *state) error {
		current, ok := st.tickets[next.ID]
		if !ok || current.Status != expected {
			return repository.ErrStaleStatus
		}
		updated := current.Clone()
		cp := next.Clone()
		updated.Status = cp.Status
		updated.AssignedUserID = cp.AssignedUserID
		updated.UpdatedAt = cp.UpdatedAt
		updated.ResolvedAt = cp.ResolvedAt
		updated.ClosedAt = cp.ClosedAt
		st.tickets[next.ID] = updated
		return nil
	})
}

func (r *ticketRepository) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	var out []domain.Ticket
	err := r.v.do(func(st *state) error {
		matched := filterTickets(st, filter)
		limit := filter.Limit
		if limit <= 0 {
			limit = 20
		}
		offset := filter.Offset
		if offset < 0 {
			offset = 0
		}
		if offset >= len(matched) {
			return nil
		}
		end := offset + limit
		if end > len(matched) {
			end = len(matched)
		}
		for _, t := range matched[offset:end] {
			out = append(out, *t.Clone())
		}
		return nil
	})
	return out, err
}

func (r *ticketRepository) Count(_ context.Context, filter repository.TicketFilter) (int, error) {
	var total int
	err := r.v.do(func(st *state) error {
		total = len(filterTickets(st, filter))
		return nil
	})
	return total, err
}

func (r *ticketRepository) ListResolvedBefore(_ context.Context, cutoff time.Time, limit int) ([]domain.Ticket, error) {
	var out []domain.Ticket
	err := r.v.do(func(st *state) error {
		for _, t := range st.tickets {
			if t.Status == domain.TicketStatusResolved && t.ResolvedAt != nil && t.ResolvedAt.Before(cutoff) {
				out = append(out, *t.Clone())
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ResolvedAt.Before(*out[j].ResolvedAt) })
		out = truncate(out, limit)
		return nil
	})
	return out, err
}

func (r *ticketRepository) ListStale(_ context.Context, statuses []domain.TicketStatus, updatedBefore time.Time, limit int) ([]domain.Ticket, error) {
	var out []domain.Ticket
	err := r.v.do(func(st *state) error {
		for _, t := range st.tickets {
			if containsStatus(statuses, t.Status) && t.UpdatedAt.Before(updatedBefore) {
				out = append(out, *t.Clone())
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
		out = truncate(out, limit)
		return nil
	})
	return out, err
}

func filterTickets(st *state, filter repository.TicketFilter) []*domain.Ticket {
	search := ""
	if filter.SearchTerm != nil {
		search = strings.ToLower(strings.TrimSpace(*filter.SearchTerm))
	}
	var matched []*domain.Ticket
	for _, t := range st.tickets {
		if filter.CompanyID != nil && t.CompanyID != *filter.CompanyID {
			continue
		}
		if filter.AssignedUserID != nil && (t.AssignedUserID == nil || *t.AssignedUserID != *filter.AssignedUserID) {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, t.Status) {
			continue
		}
		if len(filter.Priorities) > 0 && !containsPriority(filter.Priorities, t.Priority) {
			continue
		}
		if len(filter.Categories) > 0 && !containsCategory(filter.Categories, t.Category) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(t.Title), search) &&
			!strings.Contains(strings.ToLower(t.Description), search) {
			continue
		}
		matched = append(matched, t)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return matched
}

func containsStatus(set []domain.TicketStatus, s domain.TicketStatus) bool {
	for _, c := range set {
		if c == s {
			return true
		}
	}
	return false
}

func containsPriority(set []domain.TicketPriority, p domain.TicketPriority) bool {
	for _, c := range set {
		if c == p {
			return true
		}
	}
	return false
}

func containsCategory(set []domain.TicketCategory, c domain.TicketCategory) bool {
	for _, x := range set {
		if x == c {
			return true
		}
	}
	return false
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
