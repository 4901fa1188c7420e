package sqlitestore

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	paymcp "github.com/paymcp/paymcp-go"
	"github.com/paymcp/paymcp-go/state"
)

func openTestStore(t *testing.T, opts ...state.Option) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "sessions.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func session(key, paymentID string) state.Session {
	return state.Session{
		SessionKey: key,
		PaymentID:  paymentID,
		PaymentURL: "https://pay.example/" + paymentID,
		ToolName:   "generate_report",
		ToolArgs:   json.RawMessage(`{"topic":"go"}`),
		Status:     paymcp.SessionRequested,
		CreatedAt:  time.Unix(1700000000, 0).UTC(),
	}
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.Put(ctx, "sess-1", session("sess-1", "pay-1")))

	got, err := store.Get(ctx, "sess-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "pay-1", got.PaymentID)
	assert.Equal(t, "generate_report", got.ToolName)
	assert.JSONEq(t, `{"topic":"go"}`, string(got.ToolArgs))
	assert.Equal(t, paymcp.SessionRequested, got.Status)
	assert.True(t, got.CreatedAt.Equal(time.Unix(1700000000, 0)))

	byPayment, err := store.GetByPaymentID(ctx, "pay-1")
	require.NoError(t, err)
	require.NotNil(t, byPayment)
	assert.Equal(t, "sess-1", byPayment.SessionKey)
}

func TestStore_MissingReturnsNil(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	got, err := store.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = store.GetByPaymentID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_UpdateAndSupersede(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.Put(ctx, "sess-1", session("sess-1", "pay-old")))
	require.NoError(t, state.UpdateStatus(ctx, store, "sess-1", paymcp.SessionPending))

	got, err := store.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, paymcp.SessionPending, got.Status)

	require.NoError(t, store.Put(ctx, "sess-1", session("sess-1", "pay-new")))
	old, err := store.GetByPaymentID(ctx, "pay-old")
	require.NoError(t, err)
	assert.Nil(t, old)
}

func TestStore_PaymentIDMovesBetweenKeys(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.Put(ctx, "pay-1", session("", "pay-1")))
	require.NoError(t, store.Put(ctx, "sess-1", session("sess-1", "pay-1")))

	got, err := store.GetByPaymentID(ctx, "pay-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "sess-1", got.SessionKey)
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.Put(ctx, "sess-1", session("sess-1", "pay-1")))
	require.NoError(t, store.Delete(ctx, "sess-1"))
	require.NoError(t, store.Delete(ctx, "sess-1"))

	got, err := store.GetByPaymentID(ctx, "pay-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_TTL(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700000000, 0)
	clock := func() time.Time { return now }
	store := openTestStore(t, state.WithTTL(time.Minute), state.WithClock(clock))

	require.NoError(t, store.Put(ctx, "sess-1", session("sess-1", "pay-1")))

	now = now.Add(2 * time.Minute)
	got, err := store.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	n, err := store.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sessions.db")

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "sess-1", session("sess-1", "pay-1")))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetByPaymentID(ctx, "pay-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "sess-1", got.SessionKey)
}
