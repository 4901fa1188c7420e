// Package sqlitestore implements state.Store on a local SQLite file.
//
// The payment id index is a unique column index on the sessions table, so the primary
// record and the index can never disagree.
package sqlitestore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	paymcp "github.com/paymcp/paymcp-go"
	"github.com/paymcp/paymcp-go/state"
)

//go:embed schema.sql
var schemaSQL string

// Store is a SQLite-backed state.Store.
type Store struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// Open creates or opens a SQLite database at path and applies the schema.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - 5-second busy timeout for lock contention
//   - a single connection, since SQLite allows one writer at a time
func Open(path string, opts ...state.Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	ttl, _, now := state.Resolve(opts...)
	return &Store{db: db, ttl: ttl, now: now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) expiresAt() sql.NullInt64 {
	if s.ttl <= 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: s.now().Add(s.ttl).UnixMilli(), Valid: true}
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

// Put upserts the session. A different session holding the same payment id loses it.
func (s *Store) Put(ctx context.Context, key string, session state.Session) error {
	if key == "" {
		return state.ErrInvalidKey
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if session.PaymentID != "" {
		if _, err := tx.ExecContext(ctx,
			`UPDATE payment_sessions SET payment_id = NULL WHERE payment_id = ? AND session_key <> ?`,
			session.PaymentID, key); err != nil {
			return fmt.Errorf("failed to release payment id: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO payment_sessions (session_key, payment_id, payment_url, tool_name, tool_args, status, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_key) DO UPDATE SET
			payment_id = excluded.payment_id,
			payment_url = excluded.payment_url,
			tool_name = excluded.tool_name,
			tool_args = excluded.tool_args,
			status = excluded.status,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at`,
		key,
		nullString(session.PaymentID),
		session.PaymentURL,
		session.ToolName,
		[]byte(session.ToolArgs),
		string(session.Status),
		session.CreatedAt.UnixMilli(),
		s.expiresAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session: %w", err)
	}
	return nil
}

const selectColumns = `SELECT session_key, payment_id, payment_url, tool_name, tool_args, status, created_at FROM payment_sessions`

func (s *Store) queryOne(ctx context.Context, where string, arg interface{}) (*state.Session, error) {
	row := s.db.QueryRowContext(ctx,
		selectColumns+` WHERE `+where+` AND (expires_at IS NULL OR expires_at > ?)`,
		arg, s.now().UnixMilli())

	var (
		session   state.Session
		paymentID sql.NullString
		args      []byte
		status    string
		createdAt int64
	)
	err := row.Scan(&session.SessionKey, &paymentID, &session.PaymentURL, &session.ToolName, &args, &status, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	session.PaymentID = paymentID.String
	if len(args) > 0 {
		session.ToolArgs = args
	}
	session.Status = paymcp.SessionStatus(status)
	session.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &session, nil
}

// Get returns the live session stored under key, or nil.
func (s *Store) Get(ctx context.Context, key string) (*state.Session, error) {
	if key == "" {
		return nil, nil
	}
	return s.queryOne(ctx, `session_key = ?`, key)
}

// GetByPaymentID resolves a session through the payment_id index.
func (s *Store) GetByPaymentID(ctx context.Context, paymentID string) (*state.Session, error) {
	if paymentID == "" {
		return nil, nil
	}
	return s.queryOne(ctx, `payment_id = ?`, paymentID)
}

// Delete removes the session row, and with it the index entry.
func (s *Store) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM payment_sessions WHERE session_key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// PurgeExpired deletes expired rows and returns how many were removed.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM payment_sessions WHERE expires_at IS NOT NULL AND expires_at <= ?`, s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", err)
	}
	return res.RowsAffected()
}

// Ensure Store implements state.Store
var _ state.Store = (*Store)(nil)
