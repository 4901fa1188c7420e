// Package pgstore implements state.Store on PostgreSQL using pgx.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	paymcp "github.com/paymcp/paymcp-go"
	"github.com/paymcp/paymcp-go/state"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS paymcp_sessions (
    session_key TEXT PRIMARY KEY,
    payment_id  TEXT UNIQUE,
    payment_url TEXT NOT NULL DEFAULT '',
    tool_name   TEXT NOT NULL,
    tool_args   BYTEA,
    status      TEXT NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL,
    expires_at  TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS paymcp_sessions_expires_at ON paymcp_sessions (expires_at);
`

// Store is a PostgreSQL-backed state.Store.
type Store struct {
	pool *pgxpool.Pool
	ttl  time.Duration
	now  func() time.Time
}

// New connects to dsn, verifies the connection and ensures the schema exists.
func New(ctx context.Context, dsn string, opts ...state.Option) (*Store, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	ttl, _, now := state.Resolve(opts...)
	return &Store{pool: pool, ttl: ttl, now: now}, nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) expiresAt() *time.Time {
	if s.ttl <= 0 {
		return nil
	}
	t := s.now().Add(s.ttl)
	return &t
}

func nullable(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// Put upserts the session in one transaction, releasing the payment id from any other row.
func (s *Store) Put(ctx context.Context, key string, session state.Session) error {
	if key == "" {
		return state.ErrInvalidKey
	}

	var args []byte
	if len(session.ToolArgs) > 0 {
		args = session.ToolArgs
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if session.PaymentID != "" {
			if _, err := tx.Exec(ctx,
				`UPDATE paymcp_sessions SET payment_id = NULL WHERE payment_id = $1 AND session_key <> $2`,
				session.PaymentID, key); err != nil {
				return err
			}
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO paymcp_sessions (session_key, payment_id, payment_url, tool_name, tool_args, status, created_at, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (session_key) DO UPDATE SET
				payment_id = EXCLUDED.payment_id,
				payment_url = EXCLUDED.payment_url,
				tool_name = EXCLUDED.tool_name,
				tool_args = EXCLUDED.tool_args,
				status = EXCLUDED.status,
				created_at = EXCLUDED.created_at,
				expires_at = EXCLUDED.expires_at`,
			key, nullable(session.PaymentID), session.PaymentURL, session.ToolName,
			args, string(session.Status), session.CreatedAt, s.expiresAt())
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (s *Store) queryOne(ctx context.Context, column, value string) (*state.Session, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT session_key, payment_id, payment_url, tool_name, tool_args, status, created_at
		   FROM paymcp_sessions
		  WHERE `+column+` = $1 AND (expires_at IS NULL OR expires_at > $2)`,
		value, s.now())

	var (
		session   state.Session
		paymentID *string
		args      []byte
		status    string
	)
	err := row.Scan(&session.SessionKey, &paymentID, &session.PaymentURL, &session.ToolName, &args, &status, &session.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if paymentID != nil {
		session.PaymentID = *paymentID
	}
	if len(args) > 0 {
		session.ToolArgs = args
	}
	session.Status = paymcp.SessionStatus(status)
	return &session, nil
}

// Get returns the live session stored under key, or nil.
func (s *Store) Get(ctx context.Context, key string) (*state.Session, error) {
	if key == "" {
		return nil, nil
	}
	return s.queryOne(ctx, "session_key", key)
}

// GetByPaymentID resolves a session through the unique payment_id column.
func (s *Store) GetByPaymentID(ctx context.Context, paymentID string) (*state.Session, error) {
	if paymentID == "" {
		return nil, nil
	}
	return s.queryOne(ctx, "payment_id", paymentID)
}

// Delete removes the session row.
func (s *Store) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM paymcp_sessions WHERE session_key = $1`, key); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// PurgeExpired deletes expired rows and returns how many were removed.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM paymcp_sessions WHERE expires_at IS NOT NULL AND expires_at <= $1`, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Ensure Store implements state.Store
var _ state.Store = (*Store)(nil)
