package pg

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

// Store implements the persistence interfaces of the directory, incident,
// audit and session packages over a shared connection pool.
type Store struct {
	db *sql.DB
}

// Open connects to PostgreSQL with tuned pool defaults.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing connection (used by tests with sqlmock).
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// Read retry policy: transient failures on read paths get a bounded
// exponential backoff. Writes and authorization decisions are never retried.
const (
	readAttempts     = 3
	readInitialDelay = 100 * time.Millisecond
	readMaxDelay     = 2 * time.Second
)

func (s *Store) withReadRetry(ctx context.Context, op func() error) error {
	delay := readInitialDelay
	var lastErr error
	for attempt := 1; attempt <= readAttempts; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return err
		}
		lastErr = err
		if attempt == readAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
			delay *= 2
			if delay > readMaxDelay {
				delay = readMaxDelay
			}
		}
	}
	return lastErr
}

// isTransient reports whether a read failure is worth retrying: network
// errors plus the PostgreSQL connection (08) and operator-intervention (57)
// classes that show up while the server restarts or fails over.
func isTransient(err error) bool {
	switch {
	case err == nil,
		errors.Is(err, sql.ErrNoRows),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57")
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}
