package flows

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	paymcp "github.com/paymcp/paymcp-go"
	"github.com/paymcp/paymcp-go/logging"
	"github.com/paymcp/paymcp-go/metrics"
	"github.com/paymcp/paymcp-go/state"
)

const tracerName = "github.com/paymcp/paymcp-go/flows"

// Flow turns a tool handler into a payment-gated one
type Flow interface {
	// Mode returns the flow name this implementation was registered under
	Mode() paymcp.Mode

	// Wrap returns a handler that runs handler only once tool's price is paid
	Wrap(tool paymcp.GuardedTool, handler paymcp.ToolHandler) (paymcp.ToolHandler, error)
}

// Deps are the collaborators every flow is built from
type Deps struct {
	Provider paymcp.Provider

	// Store persists payment sessions. When nil, recovery across calls is disabled;
	// the two-step flow still keeps its own in-process store so confirmation works.
	Store state.Store

	// Registrar provisions auxiliary tools. Required by the two-step flow.
	Registrar paymcp.ToolRegistrar
}

// options holds settings shared by all flows
type options struct {
	logger       *slog.Logger
	tracer       trace.Tracer
	maxAttempts  int
	pollInterval time.Duration
	maxWait      time.Duration
	validateArgs bool
	now          func() time.Time
}

// Option configures a Flow
type Option func(*options)

func newOptions(opts []Option) *options {
	o := &options{
		logger:       logging.Discard(),
		tracer:       otel.Tracer(tracerName),
		maxAttempts:  5,
		pollInterval: 3 * time.Second,
		maxWait:      15 * time.Minute,
		validateArgs: true,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets the logger. Default: discard.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTracer overrides the tracer. Default: the global otel tracer provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithMaxAttempts bounds the elicitation loop.
//
// Default: 5
func WithMaxAttempts(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

// WithPollInterval sets the delay between provider status checks in the progress flow.
//
// Default: 3 seconds
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithMaxWait bounds how long the progress flow waits for a payment.
//
// Default: 15 minutes
func WithMaxWait(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.maxWait = d
		}
	}
}

// WithArgumentValidation toggles JSON schema validation of arguments before a
// payment is created. Default: enabled.
func WithArgumentValidation(enabled bool) Option {
	return func(o *options) {
		o.validateArgs = enabled
	}
}

// WithClock overrides the time source used for elapsed time. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// base carries what the three flows share: collaborators, settings and the
// session bookkeeping around payment creation
type base struct {
	mode     paymcp.Mode
	provider paymcp.Provider
	store    state.Store
	opts     *options
}

func newBase(mode paymcp.Mode, deps Deps, opts []Option) (base, error) {
	if deps.Provider == nil {
		return base{}, fmt.Errorf("%s flow: payment provider is required", mode)
	}
	return base{
		mode:     mode,
		provider: deps.Provider,
		store:    deps.Store,
		opts:     newOptions(opts),
	}, nil
}

func (b *base) Mode() paymcp.Mode {
	return b.mode
}

func (b *base) log() *slog.Logger {
	return b.opts.logger
}

func (b *base) startSpan(ctx context.Context, tool string, call *paymcp.ToolCall) (context.Context, trace.Span) {
	return b.opts.tracer.Start(ctx, "paymcp."+string(b.mode),
		trace.WithAttributes(
			attribute.String("paymcp.tool", tool),
			attribute.Bool("paymcp.has_session", call.SessionKey != ""),
		))
}

func (b *base) outcome(span trace.Span, outcome string) {
	metrics.FlowOutcomes.WithLabelValues(string(b.mode), outcome).Inc()
	span.SetAttributes(attribute.String("paymcp.outcome", outcome))
	if outcome == "error" {
		span.SetStatus(codes.Error, outcome)
	}
}

func (b *base) recoverPayment(ctx context.Context, call *paymcp.ToolCall, toolName string) Recovery {
	return checkExistingPayment(ctx, b.log(), call.SessionKey, b.store, b.provider, toolName, call.Args)
}

// createPayment creates a provider payment for tool and persists a requested
// session under the call's session key, or under the payment id when the call has
// none. Sessions written to a store other than the configured one are always keyed
// by payment id: without recovery a second call on the session would otherwise
// supersede a payment the user may already have made.
func (b *base) createPayment(ctx context.Context, store state.Store, tool paymcp.GuardedTool, call *paymcp.ToolCall) (string, paymcp.CreatePaymentResult, error) {
	created, err := b.provider.CreatePayment(ctx, tool.Price.Amount, tool.Price.Currency, paymentDescription(tool))
	if err != nil {
		return "", paymcp.CreatePaymentResult{}, err
	}
	metrics.PaymentsCreated.WithLabelValues(b.provider.Name()).Inc()

	key := call.SessionKey
	if key == "" || store != b.store {
		key = created.PaymentID
	}
	b.log().Info("payment created",
		"mode", b.mode, "tool", tool.Name, "payment_id", created.PaymentID, "session", call.SessionKey)

	if store == nil {
		return key, created, nil
	}
	session := state.Session{
		SessionKey: key,
		PaymentID:  created.PaymentID,
		PaymentURL: created.PaymentURL,
		ToolName:   tool.Name,
		ToolArgs:   append(json.RawMessage(nil), call.Args...),
		Status:     paymcp.SessionRequested,
		CreatedAt:  b.opts.now(),
	}
	if err := store.Put(ctx, key, session); err != nil {
		return "", paymcp.CreatePaymentResult{}, fmt.Errorf("failed to store payment session: %w", err)
	}
	return key, created, nil
}

func (b *base) setStatus(ctx context.Context, key string, status paymcp.SessionStatus) {
	if b.store == nil || key == "" {
		return
	}
	if err := state.UpdateStatus(ctx, b.store, key, status); err != nil {
		b.log().Warn("failed to update payment session", "session", key, "status", status, "error", err)
	}
}

func (b *base) deleteSession(ctx context.Context, key string) {
	if b.store == nil || key == "" {
		return
	}
	if err := b.store.Delete(ctx, key); err != nil {
		b.log().Warn("failed to delete payment session", "session", key, "error", err)
	}
}

// checkStatus fetches and normalizes a payment's status. Provider errors are
// logged and reported as pending.
func (b *base) checkStatus(ctx context.Context, paymentID string) (paymcp.NormalizedStatus, string) {
	raw, err := b.provider.GetPaymentStatus(ctx, paymentID)
	if err != nil {
		b.log().Warn("payment status check failed", "payment_id", paymentID, "error", err)
		return paymcp.StatusPending, ""
	}
	return paymcp.NormalizeStatus(raw), raw
}

// replayCall returns the call the handler should run with once a reused pending
// payment is paid: the captured arguments when the session belongs to this tool
func replayCall(call *paymcp.ToolCall, rec Recovery, toolName string) *paymcp.ToolCall {
	if rec.Pending() && rec.ToolName == toolName && len(rec.Args) > 0 {
		return call.WithArgs(rec.Args)
	}
	return call
}

func paymentDescription(tool paymcp.GuardedTool) string {
	return tool.Name + "() execution fee"
}
