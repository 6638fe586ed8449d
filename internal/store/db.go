package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

var (
	// ErrInvalidTransition is returned when a requested status change is not
	// permitted from the row's current status.
	ErrInvalidTransition = errors.New("invalid job status transition")
	// ErrNotFound is returned when no row matches a targeted operation.
	ErrNotFound = errors.New("job not found")
)

// Store is the durable job queue. It is safe for use from multiple
// processes on one host: claims run inside immediate transactions and the
// database runs in WAL mode.
type Store struct {
	*sqlx.DB
}

// Open opens (creating if necessary) the job database at path.
func Open(path string) (*Store, error) {
	// Pragmas go in the DSN so every pooled connection gets them;
	// _txlock=immediate makes write transactions take the lock up front.
	dsn := path + "?_txlock=immediate" +
		"&_pragma=busy_timeout(30000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)"

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &Store{db}
	if err := s.migrateLegacyStatuses(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate legacy statuses: %w", err)
	}
	return s, nil
}

// migrateLegacyStatuses rewrites historical status aliases on open.
// Forward-only and idempotent; the aliases are never emitted again.
// Legacy "completed"-meaning-ready is indistinguishable from the real
// terminal status and is left alone.
func (s *Store) migrateLegacyStatuses() error {
	for legacy, current := range map[string]string{
		"in_progress": "analyzing",
		"approved":    "accepted",
		"failed":      "error",
	} {
		if _, err := s.Exec(`UPDATE jobs SET status = ? WHERE status = ?`, current, legacy); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.DB.Close()
}

// inPlaceholders renders "?, ?, ?" for n values.
func inPlaceholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
