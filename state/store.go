package state

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	paymcp "github.com/paymcp/paymcp-go"
)

// DefaultTTL is how long an untouched session survives before it silently expires
const DefaultTTL = time.Hour

// ErrInvalidKey is returned when a store operation receives an empty key
var ErrInvalidKey = errors.New("session key is required")

// Session is a persisted payment session
type Session struct {
	SessionKey string               `json:"session_key"`
	PaymentID  string               `json:"payment_id,omitempty"`
	PaymentURL string               `json:"payment_url,omitempty"`
	ToolName   string               `json:"tool_name"`
	ToolArgs   json.RawMessage      `json:"tool_args,omitempty"`
	Status     paymcp.SessionStatus `json:"status"`
	CreatedAt  time.Time            `json:"created_at"`
}

// Clone returns a deep copy; captured arguments are never shared between copies
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.ToolArgs != nil {
		out.ToolArgs = append(json.RawMessage(nil), s.ToolArgs...)
	}
	return &out
}

// Active reports whether the session still guards an unresolved payment
func (s *Session) Active() bool {
	switch s.Status {
	case paymcp.SessionPaid, paymcp.SessionCanceled:
		return false
	}
	return true
}

// Store defines the interface for payment session storage.
// Implementations must be safe for concurrent use.
type Store interface {
	// Put writes the session under key and points the payment id index at key.
	// If the key previously held a session for a different payment id, the old
	// index entry is removed.
	Put(ctx context.Context, key string, session Session) error

	// Get returns the session stored under key, or nil if absent or expired
	Get(ctx context.Context, key string) (*Session, error)

	// Delete removes the session and its index entry. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// GetByPaymentID resolves a session through the payment id index, or nil if absent
	GetByPaymentID(ctx context.Context, paymentID string) (*Session, error)
}

// UpdateStatus re-reads the session under key and writes it back with a new status.
// A session that disappeared in the meantime is left alone.
func UpdateStatus(ctx context.Context, store Store, key string, status paymcp.SessionStatus) error {
	current, err := store.Get(ctx, key)
	if err != nil {
		return err
	}
	if current == nil {
		return nil
	}
	current.Status = status
	return store.Put(ctx, key, *current)
}

// MarshalSession encodes a session for byte-oriented backends
func MarshalSession(s Session) ([]byte, error) {
	return json.Marshal(s)
}

// UnmarshalSession decodes a session written by MarshalSession
func UnmarshalSession(data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
