package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	paymcp "github.com/paymcp/paymcp-go"
)

type fakePayPal struct {
	tokens   int32
	captures int32
	status   atomic.Value
	order    map[string]interface{}
}

func (f *fakePayPal) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/oauth2/token":
			atomic.AddInt32(&f.tokens, 1)
			user, pass, ok := r.BasicAuth()
			if !ok || user != "client" || pass != "secret" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]interface{}{"access_token": "tok", "expires_in": 3600})

		case r.Method == http.MethodPost && r.URL.Path == "/v2/checkout/orders":
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&f.order))
			writeJSON(w, http.StatusCreated, map[string]interface{}{
				"id":     "ORDER-1",
				"status": "CREATED",
				"links": []map[string]string{
					{"rel": "self", "href": "https://api/ORDER-1"},
					{"rel": "approve", "href": "https://pay/ORDER-1"},
				},
			})

		case r.Method == http.MethodGet && r.URL.Path == "/v2/checkout/orders/ORDER-1":
			writeJSON(w, http.StatusOK, map[string]string{"id": "ORDER-1", "status": f.status.Load().(string)})

		case r.Method == http.MethodPost && r.URL.Path == "/v2/checkout/orders/ORDER-1/capture":
			atomic.AddInt32(&f.captures, 1)
			writeJSON(w, http.StatusCreated, map[string]string{"id": "ORDER-1", "status": "COMPLETED"})

		default:
			writeJSON(w, http.StatusNotFound, map[string]string{"name": "RESOURCE_NOT_FOUND"})
		}
	}
}

func newTestPayPal(t *testing.T, status string) (*PayPal, *fakePayPal) {
	t.Helper()
	fake := &fakePayPal{}
	fake.status.Store(status)
	srv := newServer(t, fake.handler(t))
	p, err := NewPayPal(Config{ClientID: "client", ClientSecret: "secret", BaseURL: srv.URL})
	require.NoError(t, err)
	return p, fake
}

func TestPayPal_CreatePayment(t *testing.T) {
	p, fake := newTestPayPal(t, "CREATED")

	res, err := p.CreatePayment(context.Background(), 15.99, "usd", "x")
	require.NoError(t, err)

	assert.Equal(t, "ORDER-1", res.PaymentID)
	assert.Equal(t, "https://pay/ORDER-1", res.PaymentURL)

	units := fake.order["purchase_units"].([]interface{})
	amount := units[0].(map[string]interface{})["amount"].(map[string]interface{})
	assert.Equal(t, "USD", amount["currency_code"])
	assert.Equal(t, "15.99", amount["value"])
	assert.Equal(t, "CAPTURE", fake.order["intent"])
}

func TestPayPal_StatusCreated(t *testing.T) {
	p, fake := newTestPayPal(t, "CREATED")

	status, err := p.GetPaymentStatus(context.Background(), "ORDER-1")
	require.NoError(t, err)
	assert.Equal(t, "CREATED", status)
	assert.Equal(t, paymcp.StatusPending, paymcp.NormalizeStatus(status))
	assert.Equal(t, int32(0), atomic.LoadInt32(&fake.captures))
}

func TestPayPal_ApprovedOrderIsCaptured(t *testing.T) {
	p, fake := newTestPayPal(t, "APPROVED")

	status, err := p.GetPaymentStatus(context.Background(), "ORDER-1")
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", status)
	assert.Equal(t, paymcp.StatusPaid, paymcp.NormalizeStatus(status))
	assert.Equal(t, int32(1), atomic.LoadInt32(&fake.captures))
}

func TestPayPal_TokenIsCached(t *testing.T) {
	p, fake := newTestPayPal(t, "CREATED")
	ctx := context.Background()

	_, err := p.CreatePayment(ctx, 1, "usd", "x")
	require.NoError(t, err)
	_, err = p.GetPaymentStatus(ctx, "ORDER-1")
	require.NoError(t, err)
	_, err = p.GetPaymentStatus(ctx, "ORDER-1")
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&fake.tokens))
}

func TestPayPal_AuthFailureNamesStep(t *testing.T) {
	fake := &fakePayPal{}
	fake.status.Store("CREATED")
	srv := newServer(t, fake.handler(t))
	p, err := NewPayPal(Config{ClientID: "client", ClientSecret: "wrong", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = p.CreatePayment(context.Background(), 1, "usd", "x")
	require.Error(t, err)
	assert.True(t, paymcp.IsErrorCode(err, paymcp.ErrCodeProviderError))
	assert.Contains(t, err.Error(), "paypal authenticate failed")
	assert.Contains(t, err.Error(), "401")
}

func TestPayPal_UnknownOrder(t *testing.T) {
	p, _ := newTestPayPal(t, "CREATED")
	_, err := p.GetPaymentStatus(context.Background(), "ORDER-404")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "paypal get payment status failed")
}

func TestNewPayPalRequiresCredentials(t *testing.T) {
	_, err := NewPayPal(Config{ClientSecret: "s"})
	assert.ErrorContains(t, err, "client_id")
	_, err = NewPayPal(Config{ClientID: "c"})
	assert.ErrorContains(t, err, "client_secret")
}
