// Package redisstore implements state.Store on Redis.
//
// Each session is a JSON string under "<prefix>:session:<key>" and the payment id index
// is a plain string under "<prefix>:payment:<id>" holding the session key. Both are written
// in one MULTI/EXEC with the same TTL. Deleting reads the session first to find its index
// entry, so a crash between the two can leave an index entry pointing at nothing; lookups
// treat that as a miss and clean it up.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/paymcp/paymcp-go/state"
)

// Store is a Redis-backed state.Store.
type Store struct {
	rdb    redis.UniversalClient
	ttl    time.Duration
	prefix string
}

// New returns a Store using rdb. The client is owned by the caller.
func New(rdb redis.UniversalClient, opts ...state.Option) (*Store, error) {
	if rdb == nil {
		return nil, errors.New("redis client is required")
	}
	ttl, prefix, _ := state.Resolve(opts...)
	return &Store{rdb: rdb, ttl: ttl, prefix: prefix}, nil
}

func (s *Store) sessionKey(key string) string {
	return fmt.Sprintf("%s:session:%s", s.prefix, key)
}

func (s *Store) paymentKey(paymentID string) string {
	return fmt.Sprintf("%s:payment:%s", s.prefix, paymentID)
}

// expiration maps a non-positive TTL to 0, which go-redis sends as a SET without expiry
func (s *Store) expiration() time.Duration {
	if s.ttl <= 0 {
		return 0
	}
	return s.ttl
}

// Put writes the session and its index entry in a single transaction.
func (s *Store) Put(ctx context.Context, key string, session state.Session) error {
	if key == "" {
		return state.ErrInvalidKey
	}
	data, err := state.MarshalSession(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	prev, err := s.Get(ctx, key)
	if err != nil {
		return err
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if prev != nil && prev.PaymentID != "" && prev.PaymentID != session.PaymentID {
			pipe.Del(ctx, s.paymentKey(prev.PaymentID))
		}
		pipe.Set(ctx, s.sessionKey(key), data, s.expiration())
		if session.PaymentID != "" {
			pipe.Set(ctx, s.paymentKey(session.PaymentID), key, s.expiration())
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// Get returns the session stored under key, or nil.
func (s *Store) Get(ctx context.Context, key string) (*state.Session, error) {
	if key == "" {
		return nil, nil
	}
	data, err := s.rdb.Get(ctx, s.sessionKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	session, err := state.UnmarshalSession(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return session, nil
}

// Delete removes the session and the index entry that points at it.
func (s *Store) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	prev, err := s.Get(ctx, key)
	if err != nil {
		return err
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.sessionKey(key))
		if prev != nil && prev.PaymentID != "" {
			pipe.Del(ctx, s.paymentKey(prev.PaymentID))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// GetByPaymentID resolves the index entry and then the session it names.
func (s *Store) GetByPaymentID(ctx context.Context, paymentID string) (*state.Session, error) {
	if paymentID == "" {
		return nil, nil
	}
	key, err := s.rdb.Get(ctx, s.paymentKey(paymentID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load payment index: %w", err)
	}

	session, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if session == nil || session.PaymentID != paymentID {
		_ = s.rdb.Del(ctx, s.paymentKey(paymentID)).Err()
		return nil, nil
	}
	return session, nil
}

// Ensure Store implements state.Store
var _ state.Store = (*Store)(nil)
