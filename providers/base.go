// Package providers contains the payment provider adapters.
//
// Every adapter implements paymcp.Provider: it creates a hosted payment for an
// amount, currency and description and reports the provider's own status string
// for it. Inputs are validated before any request is sent and every failure names
// the provider and the step that failed.
package providers

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	paymcp "github.com/paymcp/paymcp-go"
	"github.com/paymcp/paymcp-go/logging"
	"github.com/paymcp/paymcp-go/metrics"
)

const (
	defaultTimeout = 30 * time.Second
	tracerName     = "github.com/paymcp/paymcp-go/providers"
)

// Config holds the credentials and endpoints for one provider. Each adapter reads
// only the fields it needs.
type Config struct {
	Name string `mapstructure:"name"`

	APIKey          string `mapstructure:"api_key"`
	ClientID        string `mapstructure:"client_id"`
	ClientSecret    string `mapstructure:"client_secret"`
	MerchantAccount string `mapstructure:"merchant_account"`
	LocationID      string `mapstructure:"location_id"`

	// BaseURL overrides the provider's API endpoint
	BaseURL string `mapstructure:"base_url"`
	Sandbox bool   `mapstructure:"sandbox"`

	SuccessURL string `mapstructure:"success_url"`
	CancelURL  string `mapstructure:"cancel_url"`

	Timeout time.Duration `mapstructure:"timeout"`

	// RateLimit caps requests per second to the provider API; zero means unlimited
	RateLimit float64 `mapstructure:"rate_limit"`
	Burst     int     `mapstructure:"burst"`

	Logger *slog.Logger `mapstructure:"-"`
}

func (c Config) successURL() string {
	if c.SuccessURL != "" {
		return c.SuccessURL
	}
	return "https://example.com/success"
}

func (c Config) cancelURL() string {
	if c.CancelURL != "" {
		return c.CancelURL
	}
	return "https://example.com/cancel"
}

// client is the HTTP plumbing shared by the adapters: rate limiting, tracing,
// latency metrics and uniform error wrapping around a resty client
type client struct {
	name    string
	http    *resty.Client
	limiter *rate.Limiter
	tracer  trace.Tracer
	logger  *slog.Logger
}

func newClient(name, defaultBaseURL string, cfg Config) *client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	limit := rate.Inf
	burst := cfg.Burst
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
		if burst <= 0 {
			burst = 1
		}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &client{
		name:    name,
		http:    resty.New().SetBaseURL(strings.TrimRight(baseURL, "/")).SetTimeout(timeout),
		limiter: rate.NewLimiter(limit, burst),
		tracer:  otel.Tracer(tracerName),
		logger:  logger,
	}
}

// do runs one provider request. A transport error or a non-2xx response becomes a
// provider error naming step; the response body is included for diagnosis.
func (c *client) do(ctx context.Context, step string, send func(*resty.Request) (*resty.Response, error)) (*resty.Response, error) {
	ctx, span := c.tracer.Start(ctx, c.name+" "+step,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("paymcp.provider", c.name)))
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, paymcp.NewProviderError(c.name, step, err)
	}

	start := time.Now()
	resp, err := send(c.http.R().SetContext(ctx))
	metrics.ProviderRequestDuration.WithLabelValues(c.name, step).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.ProviderErrors.WithLabelValues(c.name, step).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, step)
		c.logger.Warn("provider request failed", "provider", c.name, "step", step, "error", err)
		return nil, paymcp.NewProviderError(c.name, step, err)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode()))
	if resp.IsError() || resp.StatusCode() >= 300 {
		metrics.ProviderErrors.WithLabelValues(c.name, step).Inc()
		span.SetStatus(codes.Error, step)
		c.logger.Warn("provider returned an error", "provider", c.name, "step", step, "status", resp.StatusCode())
		return nil, paymcp.NewProviderError(c.name, step,
			fmt.Errorf("HTTP %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String())))
	}
	return resp, nil
}

func validateCreate(amount float64, currency, description string) error {
	if math.IsNaN(amount) || amount <= 0 {
		return paymcp.NewValidationError("amount", "must be a positive number")
	}
	if strings.TrimSpace(currency) == "" {
		return paymcp.NewValidationError("currency", "is required")
	}
	if strings.TrimSpace(description) == "" {
		return paymcp.NewValidationError("description", "is required")
	}
	return nil
}

func validatePaymentID(paymentID string) error {
	if strings.TrimSpace(paymentID) == "" {
		return paymcp.NewValidationError("payment_id", "is required")
	}
	return nil
}

// malformed reports a 2xx response that lacks a field the adapter needs
func malformed(provider, step, field string) error {
	return paymcp.NewProviderError(provider, step, fmt.Errorf("response is missing %s", field))
}

var zeroDecimalCurrencies = map[string]struct{}{
	"bif": {}, "clp": {}, "djf": {}, "gnf": {}, "jpy": {}, "kmf": {}, "krw": {}, "mga": {},
	"pyg": {}, "rwf": {}, "ugx": {}, "vnd": {}, "vuv": {}, "xaf": {}, "xof": {}, "xpf": {},
}

// minorUnits converts an amount to the currency's smallest unit, e.g. 15.99 USD to 1599
func minorUnits(amount float64, currency string) int64 {
	if _, ok := zeroDecimalCurrencies[strings.ToLower(currency)]; ok {
		return int64(math.Round(amount))
	}
	return int64(math.Round(amount * 100))
}

// decimalString formats an amount with two decimals, e.g. "15.99"
func decimalString(amount float64) string {
	return strconv.FormatFloat(amount, 'f', 2, 64)
}
