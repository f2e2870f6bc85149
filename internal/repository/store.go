package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when a referenced row does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrStaleStatus is returned by conditional status updates when the row no longer
	// holds the expected status, i.e. another transaction changed it first.
	ErrStaleStatus = errors.New("repository: ticket status changed concurrently")
	// ErrDuplicate is returned when a unique column (e-mail) is already taken.
	ErrDuplicate = errors.New("repository: duplicate entry")
)

const uniqueViolation = "23505"

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repositories groups every repository bound to one connection or transaction.
type Repositories struct {
	Tickets       TicketRepository
	Logs          TicketLogRepository
	Notifications NotificationRepository
	Users         UserRepository
	Companies     CompanyRepository
}

// Store hands out repositories and runs units of work atomically.
type Store interface {
	Repos() Repositories
	// WithinTx runs fn inside one transaction. It commits when fn returns nil
	// and rolls back otherwise, so no partial state becomes visible.
	WithinTx(ctx context.Context, fn func(Repositories) error) error
}

// PostgresStore implements Store over a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore builds the store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func newRepositories(db DBTX) Repositories {
	return Repositories{
		Tickets:       NewTicketRepository(db),
		Logs:          NewTicketLogRepository(db),
		Notifications: NewNotificationRepository(db),
		Users:         NewUserRepository(db),
		Companies:     NewCompanyRepository(db),
	}
}

// Repos returns repositories running on the pool, outside any transaction.
func (s *PostgresStore) Repos() Repositories {
	return newRepositories(s.pool)
}

// WithinTx runs fn in a read-committed transaction.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(Repositories) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(newRepositories(tx))
	})
}

func notFoundOr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func duplicateOr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return err
}
