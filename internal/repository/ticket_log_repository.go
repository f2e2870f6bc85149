package repository

import (
	"context"
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// TicketLogRepository stores audit entries.
type TicketLogRepository interface {
	Append(ctx context.Context, entry *domain.TicketLogEntry) error
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.TicketLogEntry, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type ticketLogRepository struct {
	db DBTX
}

// NewTicketLogRepository builds repository.
func NewTicketLogRepository(db DBTX) TicketLogRepository {
	return &ticketLogRepository{db: db}
}

func (r *ticketLogRepository) Append(ctx context.Context, entry *domain.TicketLogEntry) error {
	const query = `
        INSERT INTO ticket_logs (ticket_id, user_id, action, old_status, new_status, description, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id`
	return r.db.QueryRow(ctx, query,
		entry.TicketID,
		entry.UserID,
		entry.Action,
		entry.OldStatus,
		entry.NewStatus,
		entry.Description,
		entry.CreatedAt,
	).Scan(&entry.ID)
}

func (r *ticketLogRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.TicketLogEntry, error) {
	const query = `
        SELECT id, ticket_id, user_id, action, old_status, new_status, description, created_at
        FROM ticket_logs WHERE ticket_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketLogEntry
	for rows.Next() {
		var entry domain.TicketLogEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.UserID,
			&entry.Action,
			&entry.OldStatus,
			&entry.NewStatus,
			&entry.Description,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func (r *ticketLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	cmd, err := r.db.Exec(ctx, `DELETE FROM ticket_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
