package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// ErrInvalidRecipient rejects notifications without exactly one owner.
var ErrInvalidRecipient = errors.New("repository: recipient must name exactly one company or user")

// NotificationFilter narrows a recipient's notification list.
type NotificationFilter struct {
	UnreadOnly bool
	Limit      int
	Offset     int
}

// NotificationRepository persists per-recipient notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	ListByRecipient(ctx context.Context, recipient domain.Recipient, filter NotificationFilter) ([]domain.Notification, error)
	CountUnread(ctx context.Context, recipient domain.Recipient) (int, error)
	// MarkAsRead and Delete return ErrNotFound when the notification does not
	// exist or belongs to someone else.
	MarkAsRead(ctx context.Context, id int64, recipient domain.Recipient) error
	MarkAllAsRead(ctx context.Context, recipient domain.Recipient) (int64, error)
	Delete(ctx context.Context, id int64, recipient domain.Recipient) error
	ExistsSince(ctx context.Context, ticketID int64, kind domain.NotificationType, since time.Time) (bool, error)
	DeleteReadOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type notificationRepository struct {
	db DBTX
}

// NewNotificationRepository builds repository.
func NewNotificationRepository(db DBTX) NotificationRepository {
	return &notificationRepository{db: db}
}

// recipientClause renders the ownership predicate starting at placeholder $pos.
func recipientClause(recipient domain.Recipient, pos int) (string, any, error) {
	switch {
	case !recipient.IsValid():
		return "", nil, ErrInvalidRecipient
	case recipient.CompanyID != nil:
		return fmt.Sprintf("company_id=$%d AND user_id IS NULL", pos), *recipient.CompanyID, nil
	default:
		return fmt.Sprintf("user_id=$%d AND company_id IS NULL", pos), *recipient.UserID, nil
	}
}

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	if !n.Recipient.IsValid() {
		return ErrInvalidRecipient
	}
	const query = `
        INSERT INTO notifications (ticket_id, company_id, user_id, type, message, is_read, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id`
	return r.db.QueryRow(ctx, query,
		n.TicketID,
		n.Recipient.CompanyID,
		n.Recipient.UserID,
		n.Type,
		n.Message,
		n.IsRead,
		n.CreatedAt,
	).Scan(&n.ID)
}

func (r *notificationRepository) ListByRecipient(ctx context.Context, recipient domain.Recipient, filter NotificationFilter) ([]domain.Notification, error) {
	clause, arg, err := recipientClause(recipient, 1)
	if err != nil {
		return nil, err
	}
	if filter.UnreadOnly {
		clause += " AND is_read = FALSE"
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf(`
        SELECT id, ticket_id, company_id, user_id, type, message, is_read, created_at
        FROM notifications WHERE %s ORDER BY created_at DESC, id DESC LIMIT %d OFFSET %d`, clause, limit, offset)

	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(
			&n.ID,
			&n.TicketID,
			&n.Recipient.CompanyID,
			&n.Recipient.UserID,
			&n.Type,
			&n.Message,
			&n.IsRead,
			&n.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

func (r *notificationRepository) CountUnread(ctx context.Context, recipient domain.Recipient) (int, error) {
	clause, arg, err := recipientClause(recipient, 1)
	if err != nil {
		return 0, err
	}
	var total int
	err = r.db.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE is_read = FALSE AND `+clause, arg).Scan(&total)
	return total, err
}

func (r *notificationRepository) MarkAsRead(ctx context.Context, id int64, recipient domain.Recipient) error {
	clause, arg, err := recipientClause(recipient, 2)
	if err != nil {
		return err
	}
	cmd, err := r.db.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE id=$1 AND `+clause, id, arg)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *notificationRepository) MarkAllAsRead(ctx context.Context, recipient domain.Recipient) (int64, error) {
	clause, arg, err := recipientClause(recipient, 1)
	if err != nil {
		return 0, err
	}
	cmd, err := r.db.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE is_read = FALSE AND `+clause, arg)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *notificationRepository) Delete(ctx context.Context, id int64, recipient domain.Recipient) error {
	clause, arg, err := recipientClause(recipient, 2)
	if err != nil {
		return err
	}
	cmd, err := r.db.Exec(ctx, `DELETE FROM notifications WHERE id=$1 AND `+clause, id, arg)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *notificationRepository) ExistsSince(ctx context.Context, ticketID int64, kind domain.NotificationType, since time.Time) (bool, error) {
	const query = `
        SELECT EXISTS (SELECT 1 FROM notifications WHERE ticket_id=$1 AND type=$2 AND created_at >= $3)`
	var exists bool
	err := r.db.QueryRow(ctx, query, ticketID, kind, since).Scan(&exists)
	return exists, err
}

func (r *notificationRepository) DeleteReadOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	cmd, err := r.db.Exec(ctx, `DELETE FROM notifications WHERE is_read = TRUE AND created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
