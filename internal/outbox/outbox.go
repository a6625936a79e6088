// Package outbox queues seller notifications that could not be delivered when
// an order was placed, so they can be replayed later.
package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/bookbazaar/bazaar/pkg/domain"
)

// Entry is one queued notification. BuyerID is the account that placed the
// order; only that account replays it.
type Entry struct {
	ID        int64
	BuyerID   uuid.UUID
	Notice    domain.NewOrderNotice
	Attempts  int
	LastError string
	CreatedAt time.Time
}

// Store is a sqlite-backed queue of undelivered notifications.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open creates or opens the outbox database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("outbox.Open: failed to create directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("outbox.Open: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, dbPath: path}
	if err := s.initSchema(); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("outbox.Open: failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	schema := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS pending_notifications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		buyer_id TEXT NOT NULL DEFAULT '',
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		message TEXT NOT NULL,
		transaction_id TEXT NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		last_error TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	if err := s.addColumn("buyer_id", `TEXT NOT NULL DEFAULT ''`); err != nil {
		return err
	}
	_, err := s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_pending_buyer ON pending_notifications(buyer_id, created_at)`)
	return err
}

// addColumn adds a column to databases created before it existed.
func (s *Store) addColumn(name, decl string) error {
	rows, err := s.db.Query(`PRAGMA table_info(pending_notifications)`)
	if err != nil {
		return err
	}
	defer rows.Close() //nolint:errcheck
	for rows.Next() {
		var (
			cid, notNull, pk int
			col, typ         string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &col, &typ, &notNull, &dflt, &pk); err != nil {
			return err
		}
		if col == name {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	_, err = s.db.Exec(`ALTER TABLE pending_notifications ADD COLUMN ` + name + ` ` + decl)
	return err
}

// Enqueue stores a notice that failed delivery after attempts tries, on behalf
// of the buyer whose order it announces.
func (s *Store) Enqueue(ctx context.Context, buyer uuid.UUID, n domain.NewOrderNotice, attempts int, lastErr error) (int64, error) {
	if buyer == uuid.Nil {
		return 0, fmt.Errorf("outbox.Enqueue: %w", ErrNoBuyer)
	}
	msg := ""
	if lastErr != nil {
		msg = lastErr.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO pending_notifications (buyer_id, user_id, title, message, transaction_id, attempts, last_error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		buyer.String(), n.UserID.String(), n.Title, n.Message, n.TransactionID.String(), attempts, msg, time.Now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("outbox.Enqueue: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("outbox.Enqueue: %w", err)
	}
	return id, nil
}

// Pending returns the buyer's queued entries, oldest first. limit <= 0 means all.
func (s *Store) Pending(ctx context.Context, buyer uuid.UUID, limit int) ([]Entry, error) {
	q := `SELECT id, user_id, title, message, transaction_id, attempts, last_error, created_at
	      FROM pending_notifications WHERE buyer_id = ? ORDER BY created_at, id`
	args := []any{buyer.String()}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("outbox.Pending: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []Entry
	for rows.Next() {
		e := Entry{BuyerID: buyer}
		var (
			userID  string
			txID    string
			created int64
		)
		if err := rows.Scan(&e.ID, &userID, &e.Notice.Title, &e.Notice.Message, &txID, &e.Attempts, &e.LastError, &created); err != nil {
			return nil, fmt.Errorf("outbox.Pending: %w", err)
		}
		if e.Notice.UserID, err = uuid.Parse(userID); err != nil {
			return nil, fmt.Errorf("outbox.Pending: entry %d: %w", e.ID, err)
		}
		if e.Notice.TransactionID, err = uuid.Parse(txID); err != nil {
			return nil, fmt.Errorf("outbox.Pending: entry %d: %w", e.ID, err)
		}
		e.CreatedAt = time.UnixMilli(created)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("outbox.Pending: %w", err)
	}
	return out, nil
}

// Count returns the number of entries queued by buyer.
func (s *Store) Count(ctx context.Context, buyer uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pending_notifications WHERE buyer_id = ?`, buyer.String()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("outbox.Count: %w", err)
	}
	return n, nil
}

var (
	// ErrUnknownEntry is returned when an entry id is not queued.
	ErrUnknownEntry = errors.New("outbox entry not found")
	ErrNoBuyer      = errors.New("outbox entry needs a buyer")
)

// MarkDelivered removes a delivered entry.
func (s *Store) MarkDelivered(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM pending_notifications WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("outbox.MarkDelivered: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck
		return fmt.Errorf("outbox.MarkDelivered: %w", ErrUnknownEntry)
	}
	return nil
}

// RecordFailure bumps the attempt counter and keeps the latest error.
func (s *Store) RecordFailure(ctx context.Context, id int64, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE pending_notifications SET attempts = attempts + 1, last_error = ? WHERE id = ?`, msg, id)
	if err != nil {
		return fmt.Errorf("outbox.RecordFailure: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck
		return fmt.Errorf("outbox.RecordFailure: %w", ErrUnknownEntry)
	}
	return nil
}
