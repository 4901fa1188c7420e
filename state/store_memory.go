package state

import (
	"context"
	"sync"
	"time"
)

// MemoryStore provides an in-memory implementation of Store.
//
// This implementation is suitable for single-instance deployments where
// sessions don't need to survive a restart or be shared across processes.
// It is also the store used when no persistent backend is configured.
//
// Features:
//   - Thread-safe with mutex protection
//   - Payment id index updated in the same critical section as the primary map
//   - Configurable TTL with lazy cleanup of expired entries
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	expiry   map[string]time.Time
	index    map[string]string // payment id -> session key
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	cfg := newConfig(opts)
	return &MemoryStore{
		sessions: make(map[string]*Session),
		expiry:   make(map[string]time.Time),
		index:    make(map[string]string),
		ttl:      cfg.ttl,
		now:      cfg.now,
	}
}

// Put stores a copy of the session under key.
func (s *MemoryStore) Put(ctx context.Context, key string, session Session) error {
	if key == "" {
		return ErrInvalidKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.sessions[key]; ok && prev.PaymentID != "" && prev.PaymentID != session.PaymentID {
		if s.index[prev.PaymentID] == key {
			delete(s.index, prev.PaymentID)
		}
	}

	s.sessions[key] = session.Clone()
	if s.ttl > 0 {
		s.expiry[key] = s.now().Add(s.ttl)
	}
	if session.PaymentID != "" {
		s.index[session.PaymentID] = key
	}

	s.cleanupExpiredLocked()
	return nil
}

// Get returns a copy of the session under key, or nil if absent or expired.
func (s *MemoryStore) Get(ctx context.Context, key string) (*Session, error) {
	if key == "" {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.getLocked(key), nil
}

// Delete removes the session and any index entry pointing at it.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleteLocked(key)
	return nil
}

// GetByPaymentID resolves a session through the payment id index.
func (s *MemoryStore) GetByPaymentID(ctx context.Context, paymentID string) (*Session, error) {
	if paymentID == "" {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.index[paymentID]
	if !ok {
		return nil, nil
	}

	session := s.getLocked(key)
	if session == nil || session.PaymentID != paymentID {
		// Stale entry: the session expired or moved on to another payment
		delete(s.index, paymentID)
		return nil, nil
	}
	return session, nil
}

// Len returns the number of live sessions.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cleanupExpiredLocked()
	return len(s.sessions)
}

// getLocked returns a copy of a live session. Must be called with lock held.
func (s *MemoryStore) getLocked(key string) *Session {
	session, ok := s.sessions[key]
	if !ok {
		return nil
	}
	if expiry, exists := s.expiry[key]; exists && s.now().After(expiry) {
		s.deleteLocked(key)
		return nil
	}
	return session.Clone()
}

// deleteLocked removes a session and its index entry. Must be called with lock held.
func (s *MemoryStore) deleteLocked(key string) {
	if session, ok := s.sessions[key]; ok && session.PaymentID != "" {
		if s.index[session.PaymentID] == key {
			delete(s.index, session.PaymentID)
		}
	}
	delete(s.sessions, key)
	delete(s.expiry, key)
}

// cleanupExpiredLocked removes expired entries. Must be called with lock held.
func (s *MemoryStore) cleanupExpiredLocked() {
	now := s.now()
	for key, expiry := range s.expiry {
		if now.After(expiry) {
			s.deleteLocked(key)
		}
	}
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
