// Package state provides payment session storage for paid tool calls.
//
// # Overview
//
// A payment session records who asked for a paid tool call, which tool and arguments
// the payment guards, and how far the payment has progressed. Flows use it to recover
// after retries, client disconnects and process restarts without creating a second
// payment for the same caller.
//
// Sessions are stored under a session key (the transport session id, or the payment id
// when the transport has none) and are also resolvable by provider payment id through
// a secondary index that every backend keeps in step with the primary record.
//
// # Backends
//
// MemoryStore is the default. It is also what a server uses when no persistent store is
// configured. Persistent backends live in sub-packages:
//   - redisstore: Redis, per-key TTL
//   - sqlitestore: embedded SQLite file
//   - pgstore: PostgreSQL via pgx
//   - mongostore: MongoDB with a TTL index
//
// # Implementing Custom Stores
//
// Implement Store. Get and GetByPaymentID return (nil, nil) when nothing is stored.
// A store shared by concurrent callers does its own locking. An index entry that points
// at a missing or superseded session must be treated as a miss, never returned.
package state
