// Package mongostore implements state.Store on a MongoDB collection.
package mongostore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	paymcp "github.com/paymcp/paymcp-go"
	"github.com/paymcp/paymcp-go/state"
)

const defaultOpTimeout = 5 * time.Second

// Options configures the Mongo session store.
type Options struct {
	Client   *mongodriver.Client
	Database string
	// Collection defaults to "<prefix>_sessions" where prefix comes from state.WithKeyPrefix.
	Collection string
	Timeout    time.Duration
}

// Store is a MongoDB-backed state.Store. Documents are keyed by session key and
// carry a TTL index on expires_at; reads also filter expired documents because the
// server-side TTL monitor only runs periodically.
type Store struct {
	mongo   *mongodriver.Client
	coll    collection
	ttl     time.Duration
	now     func() time.Time
	timeout time.Duration
}

type sessionDocument struct {
	Key        string     `bson:"_id"`
	PaymentID  string     `bson:"payment_id,omitempty"`
	PaymentURL string     `bson:"payment_url"`
	ToolName   string     `bson:"tool_name"`
	ToolArgs   string     `bson:"tool_args,omitempty"`
	Status     string     `bson:"status"`
	CreatedAt  time.Time  `bson:"created_at"`
	ExpiresAt  *time.Time `bson:"expires_at,omitempty"`
}

// New returns a Store backed by MongoDB and ensures its indexes exist.
func New(opts Options, storeOpts ...state.Option) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("database name is required")
	}
	ttl, prefix, now := state.Resolve(storeOpts...)
	name := opts.Collection
	if name == "" {
		name = prefix + "_sessions"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	coll := mongoCollection{coll: opts.Client.Database(opts.Database).Collection(name)}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := ensureIndexes(ctx, coll); err != nil {
		return nil, err
	}
	s := newStoreWithCollection(coll, ttl, now, timeout)
	s.mongo = opts.Client
	return s, nil
}

func newStoreWithCollection(coll collection, ttl time.Duration, now func() time.Time, timeout time.Duration) *Store {
	return &Store{coll: coll, ttl: ttl, now: now, timeout: timeout}
}

// Ping checks connectivity to the primary.
func (s *Store) Ping(ctx context.Context) error {
	if s.mongo == nil {
		return nil
	}
	return s.mongo.Ping(ctx, readpref.Primary())
}

func ensureIndexes(ctx context.Context, coll collection) error {
	paymentIndex := mongodriver.IndexModel{
		Keys:    bson.D{{Key: "payment_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetSparse(true),
	}
	if _, err := coll.Indexes().CreateOne(ctx, paymentIndex); err != nil {
		return fmt.Errorf("failed to create payment_id index: %w", err)
	}
	expiryIndex := mongodriver.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	}
	if _, err := coll.Indexes().CreateOne(ctx, expiryIndex); err != nil {
		return fmt.Errorf("failed to create expires_at index: %w", err)
	}
	return nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// Put replaces the document under key. The payment id is first released from any
// other document so the unique index never rejects a re-keyed payment.
func (s *Store) Put(ctx context.Context, key string, session state.Session) error {
	if key == "" {
		return state.ErrInvalidKey
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if session.PaymentID != "" {
		filter := bson.M{"payment_id": session.PaymentID, "_id": bson.M{"$ne": key}}
		update := bson.M{"$unset": bson.M{"payment_id": ""}}
		if _, err := s.coll.UpdateMany(ctx, filter, update); err != nil {
			return fmt.Errorf("failed to release payment id: %w", err)
		}
	}

	doc := sessionDocument{
		Key:        key,
		PaymentID:  session.PaymentID,
		PaymentURL: session.PaymentURL,
		ToolName:   session.ToolName,
		ToolArgs:   string(session.ToolArgs),
		Status:     string(session.Status),
		CreatedAt:  session.CreatedAt.UTC(),
	}
	if s.ttl > 0 {
		exp := s.now().Add(s.ttl).UTC()
		doc.ExpiresAt = &exp
	}
	if _, err := s.coll.ReplaceOne(ctx, bson.M{"_id": key}, doc, options.Replace().SetUpsert(true)); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (*state.Session, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var doc sessionDocument
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if doc.ExpiresAt != nil && !s.now().Before(*doc.ExpiresAt) {
		return nil, nil
	}
	return doc.toSession(), nil
}

// Get returns the live session stored under key, or nil.
func (s *Store) Get(ctx context.Context, key string) (*state.Session, error) {
	if key == "" {
		return nil, nil
	}
	return s.findOne(ctx, bson.M{"_id": key})
}

// GetByPaymentID resolves a session through the payment_id index.
func (s *Store) GetByPaymentID(ctx context.Context, paymentID string) (*state.Session, error) {
	if paymentID == "" {
		return nil, nil
	}
	return s.findOne(ctx, bson.M{"payment_id": paymentID})
}

// Delete removes the document under key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (doc sessionDocument) toSession() *state.Session {
	out := &state.Session{
		SessionKey: doc.Key,
		PaymentID:  doc.PaymentID,
		PaymentURL: doc.PaymentURL,
		ToolName:   doc.ToolName,
		Status:     paymcp.SessionStatus(doc.Status),
		CreatedAt:  doc.CreatedAt,
	}
	if doc.ToolArgs != "" {
		out.ToolArgs = json.RawMessage(doc.ToolArgs)
	}
	return out
}

type collection interface {
	FindOne(ctx context.Context, filter any, opts ...*options.FindOneOptions) singleResult
	ReplaceOne(ctx context.Context, filter any, replacement any, opts ...*options.ReplaceOptions) (*mongodriver.UpdateResult, error)
	UpdateMany(ctx context.Context, filter any, update any, opts ...*options.UpdateOptions) (*mongodriver.UpdateResult, error)
	DeleteOne(ctx context.Context, filter any, opts ...*options.DeleteOptions) (*mongodriver.DeleteResult, error)
	Indexes() indexView
}

type indexView interface {
	CreateOne(ctx context.Context, model mongodriver.IndexModel, opts ...*options.CreateIndexesOptions) (string, error)
}

type singleResult interface {
	Decode(val any) error
}

type mongoCollection struct {
	coll *mongodriver.Collection
}

func (c mongoCollection) FindOne(ctx context.Context, filter any, opts ...*options.FindOneOptions) singleResult {
	return c.coll.FindOne(ctx, filter, opts...)
}

func (c mongoCollection) ReplaceOne(ctx context.Context, filter any, replacement any,
	opts ...*options.ReplaceOptions) (*mongodriver.UpdateResult, error) {
	return c.coll.ReplaceOne(ctx, filter, replacement, opts...)
}

func (c mongoCollection) UpdateMany(ctx context.Context, filter any, update any,
	opts ...*options.UpdateOptions) (*mongodriver.UpdateResult, error) {
	return c.coll.UpdateMany(ctx, filter, update, opts...)
}

func (c mongoCollection) DeleteOne(ctx context.Context, filter any,
	opts ...*options.DeleteOptions) (*mongodriver.DeleteResult, error) {
	return c.coll.DeleteOne(ctx, filter, opts...)
}

func (c mongoCollection) Indexes() indexView {
	return c.coll.Indexes()
}

var _ state.Store = (*Store)(nil)
