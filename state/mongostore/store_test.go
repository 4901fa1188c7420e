package mongostore

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	paymcp "github.com/paymcp/paymcp-go"
	"github.com/paymcp/paymcp-go/state"
)

func TestEnsureIndexes(t *testing.T) {
	coll := newFakeCollection()
	require.NoError(t, ensureIndexes(context.Background(), coll))
	require.Equal(t, 2, coll.indexCreated)
}

func TestNewRequiresClientAndDatabase(t *testing.T) {
	_, err := New(Options{Database: "paymcp"})
	require.Error(t, err)
}

func TestPutGetRoundTrip(t *testing.T) {
	store, _ := newTestStore(time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "sess-1", testSession("pay-1")))

	got, err := store.Get(ctx, "sess-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "sess-1", got.SessionKey)
	require.Equal(t, paymcp.SessionRequested, got.Status)
	require.JSONEq(t, `{"topic":"go"}`, string(got.ToolArgs))

	byPayment, err := store.GetByPaymentID(ctx, "pay-1")
	require.NoError(t, err)
	require.NotNil(t, byPayment)
	require.Equal(t, "sess-1", byPayment.SessionKey)
}

func TestPutEmptyKey(t *testing.T) {
	store, _ := newTestStore(time.Hour)
	require.ErrorIs(t, store.Put(context.Background(), "", testSession("pay-1")), state.ErrInvalidKey)
}

func TestPaymentIDMovesBetweenKeys(t *testing.T) {
	store, _ := newTestStore(time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "sess-1", testSession("pay-1")))
	require.NoError(t, store.Put(ctx, "pay-1", testSession("pay-1")))

	got, err := store.GetByPaymentID(ctx, "pay-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "pay-1", got.SessionKey)

	old, err := store.Get(ctx, "sess-1")
	require.NoError(t, err)
	require.NotNil(t, old)
	require.Empty(t, old.PaymentID)
}

func TestDeleteAndExpiry(t *testing.T) {
	store, clock := newTestStore(time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "sess-1", testSession("pay-1")))
	require.NoError(t, store.Put(ctx, "sess-2", testSession("pay-2")))

	require.NoError(t, store.Delete(ctx, "sess-1"))
	require.NoError(t, store.Delete(ctx, "missing"))
	gone, err := store.GetByPaymentID(ctx, "pay-1")
	require.NoError(t, err)
	require.Nil(t, gone)

	clock.advance(2 * time.Minute)
	expired, err := store.Get(ctx, "sess-2")
	require.NoError(t, err)
	require.Nil(t, expired)
}

func TestFindErrorPropagates(t *testing.T) {
	store, _ := newTestStore(time.Hour)
	store.coll.(*fakeCollection).findErr = errors.New("connection reset")
	_, err := store.Get(context.Background(), "sess-1")
	require.ErrorContains(t, err, "connection reset")
}

func testSession(paymentID string) state.Session {
	return state.Session{
		PaymentID:  paymentID,
		PaymentURL: "https://pay.example/" + paymentID,
		ToolName:   "generate_report",
		ToolArgs:   json.RawMessage(`{"topic":"go"}`),
		Status:     paymcp.SessionRequested,
		CreatedAt:  time.Now().UTC(),
	}
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(ttl time.Duration) (*Store, *testClock) {
	clock := &testClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	return newStoreWithCollection(newFakeCollection(), ttl, clock.Now, time.Second), clock
}

type fakeCollection struct {
	mu           sync.Mutex
	docs         map[string]sessionDocument
	indexCreated int
	findErr      error
}

func newFakeCollection() *fakeCollection {
	return &fakeCollection{docs: make(map[string]sessionDocument)}
}

func (c *fakeCollection) FindOne(ctx context.Context, filter any, opts ...*options.FindOneOptions) singleResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.findErr != nil {
		return fakeSingleResult{err: c.findErr}
	}
	f := filter.(bson.M)
	if id, ok := f["_id"].(string); ok {
		doc, found := c.docs[id]
		if !found {
			return fakeSingleResult{err: mongodriver.ErrNoDocuments}
		}
		return fakeSingleResult{doc: &doc}
	}
	if pid, ok := f["payment_id"].(string); ok {
		for _, doc := range c.docs {
			if doc.PaymentID == pid {
				d := doc
				return fakeSingleResult{doc: &d}
			}
		}
	}
	return fakeSingleResult{err: mongodriver.ErrNoDocuments}
}

func (c *fakeCollection) ReplaceOne(ctx context.Context, filter any, replacement any,
	opts ...*options.ReplaceOptions) (*mongodriver.UpdateResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	doc := replacement.(sessionDocument)
	id := filter.(bson.M)["_id"].(string)
	if doc.PaymentID != "" {
		for key, other := range c.docs {
			if key != id && other.PaymentID == doc.PaymentID {
				return nil, errors.New("E11000 duplicate key error")
			}
		}
	}
	c.docs[id] = doc
	return &mongodriver.UpdateResult{MatchedCount: 1}, nil
}

func (c *fakeCollection) UpdateMany(ctx context.Context, filter any, update any,
	opts ...*options.UpdateOptions) (*mongodriver.UpdateResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f := filter.(bson.M)
	pid := f["payment_id"].(string)
	except := f["_id"].(bson.M)["$ne"].(string)
	var modified int64
	for key, doc := range c.docs {
		if key != except && doc.PaymentID == pid {
			doc.PaymentID = ""
			c.docs[key] = doc
			modified++
		}
	}
	return &mongodriver.UpdateResult{MatchedCount: modified, ModifiedCount: modified}, nil
}

func (c *fakeCollection) DeleteOne(ctx context.Context, filter any,
	opts ...*options.DeleteOptions) (*mongodriver.DeleteResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := filter.(bson.M)["_id"].(string)
	if _, ok := c.docs[id]; !ok {
		return &mongodriver.DeleteResult{}, nil
	}
	delete(c.docs, id)
	return &mongodriver.DeleteResult{DeletedCount: 1}, nil
}

func (c *fakeCollection) Indexes() indexView {
	return fakeIndexView{parent: &c.indexCreated}
}

type fakeIndexView struct {
	parent *int
}

func (v fakeIndexView) CreateOne(ctx context.Context, model mongodriver.IndexModel,
	opts ...*options.CreateIndexesOptions) (string, error) {
	*v.parent++
	return "idx", nil
}

type fakeSingleResult struct {
	doc *sessionDocument
	err error
}

func (r fakeSingleResult) Decode(val any) error {
	if r.err != nil {
		return r.err
	}
	out, ok := val.(*sessionDocument)
	if !ok {
		return errors.New("unexpected decode target")
	}
	*out = *r.doc
	return nil
}
