package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersAreRegistered(t *testing.T) {
	PaymentsCreated.WithLabelValues("metrics-test").Inc()
	assert.Equal(t, float64(1), testutil.ToFloat64(PaymentsCreated.WithLabelValues("metrics-test")))

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `paymcp_payments_created_total{provider="metrics-test"} 1`))
}
