package flows

import (
	"context"
	"fmt"
	"math"
	"time"

	paymcp "github.com/paymcp/paymcp-go"
)

// ProgressFlow keeps the guarded call open, polling the provider and streaming
// progress notifications until the payment settles or the wait runs out
type ProgressFlow struct {
	base
}

// NewProgress creates a progress flow
func NewProgress(deps Deps, opts ...Option) (*ProgressFlow, error) {
	b, err := newBase(paymcp.ModeProgress, deps, opts)
	if err != nil {
		return nil, err
	}
	return &ProgressFlow{base: b}, nil
}

// HeartbeatPercent is the progress reported while waiting: elapsed time as a share
// of maxWait, scaled to 99 so that 100 is only ever reported once paid
func HeartbeatPercent(elapsed, maxWait time.Duration) float64 {
	if maxWait <= 0 || elapsed <= 0 {
		return 0
	}
	return math.Min(math.Floor(float64(elapsed)/float64(maxWait)*99), 99)
}

type pollOutcome int

const (
	pollTimeout pollOutcome = iota
	pollPaid
	pollCanceled
	pollAborted
)

// Wrap implements Flow
func (f *ProgressFlow) Wrap(tool paymcp.GuardedTool, handler paymcp.ToolHandler) (paymcp.ToolHandler, error) {
	if err := tool.Price.Validate(); err != nil {
		return nil, err
	}
	validator, err := newArgValidator(tool.InputSchema)
	if err != nil {
		f.log().Warn("argument validation disabled", "tool", tool.Name, "error", err)
	}

	return func(ctx context.Context, call *paymcp.ToolCall) (*paymcp.ToolResult, error) {
		ctx, span := f.startSpan(ctx, tool.Name, call)
		defer span.End()

		if f.opts.validateArgs {
			if err := validator.validate(call.Args); err != nil {
				f.outcome(span, "error")
				return nil, err
			}
		}

		rec := f.recoverPayment(ctx, call, tool.Name)
		if rec.ExecuteImmediately {
			f.notify(ctx, call, 100, "Payment already received, running tool")
			f.outcome(span, "paid")
			result, err := handler(ctx, call.WithArgs(rec.Args))
			if err != nil {
				return nil, err
			}
			return paidResult(result, tool.Name, rec.PaymentID), nil
		}

		key := call.SessionKey
		paymentID, paymentURL := rec.PaymentID, rec.PaymentURL
		if !rec.Pending() {
			var (
				created   paymcp.CreatePaymentResult
				createErr error
			)
			key, created, createErr = f.createPayment(ctx, f.store, tool, call)
			if createErr != nil {
				f.outcome(span, "error")
				return nil, createErr
			}
			paymentID, paymentURL = created.PaymentID, created.PaymentURL
		}
		f.notify(ctx, call, 0, payMessage(tool.Price, paymentURL))

		switch f.poll(ctx, call, paymentID, paymentURL) {
		case pollPaid:
			f.setStatus(ctx, key, paymcp.SessionPaid)
			f.outcome(span, "paid")
			result, err := handler(ctx, replayCall(call, rec, tool.Name))
			if err != nil {
				return nil, err
			}
			f.deleteSession(ctx, key)
			return paidResult(result, tool.Name, paymentID), nil

		case pollCanceled:
			f.deleteSession(ctx, key)
			f.outcome(span, "canceled")
			return failureResult(failure{
				status:     StatusCanceled,
				reason:     ReasonCanceled,
				message:    fmt.Sprintf("Payment %s was canceled.", paymentID),
				paymentID:  paymentID,
				paymentURL: paymentURL,
			}), nil

		case pollAborted:
			f.outcome(span, "aborted")
			return failureResult(failure{
				status:     StatusCanceled,
				reason:     ReasonAborted,
				message:    fmt.Sprintf("Stopped waiting for payment %s. If you complete it, call this tool again.", paymentID),
				paymentID:  paymentID,
				paymentURL: paymentURL,
			}), nil

		default:
			f.setStatus(ctx, key, paymcp.SessionTimeout)
			f.outcome(span, "timeout")
			return failureResult(failure{
				status:     StatusError,
				reason:     ReasonTimeout,
				message:    fmt.Sprintf("Payment %s was not completed within %s. If you complete it later, call this tool again.", paymentID, f.opts.maxWait),
				paymentID:  paymentID,
				paymentURL: paymentURL,
			}), nil
		}
	}, nil
}

// poll checks the provider every pollInterval until the payment settles, the
// caller aborts, or maxWait elapses
func (f *ProgressFlow) poll(ctx context.Context, call *paymcp.ToolCall, paymentID, paymentURL string) pollOutcome {
	start := f.opts.now()
	timer := time.NewTimer(f.opts.pollInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			f.log().Info("caller aborted while waiting for payment", "payment_id", paymentID)
			return pollAborted
		case <-timer.C:
		}

		status, raw := f.checkStatus(ctx, paymentID)
		elapsed := f.opts.now().Sub(start)
		switch status {
		case paymcp.StatusPaid:
			f.notify(ctx, call, 100, "Payment received, running tool")
			return pollPaid
		case paymcp.StatusCanceled:
			f.notify(ctx, call, 100, fmt.Sprintf("Payment %s", raw))
			return pollCanceled
		}

		if elapsed >= f.opts.maxWait {
			return pollTimeout
		}
		f.notify(ctx, call, HeartbeatPercent(elapsed, f.opts.maxWait),
			fmt.Sprintf("Waiting for payment (%ds elapsed). Pay at %s", int(elapsed.Seconds()), paymentURL))
		timer.Reset(f.opts.pollInterval)
	}
}

// notify sends a progress notification when the transport supports it. Failures
// are logged and never interrupt the flow.
func (f *ProgressFlow) notify(ctx context.Context, call *paymcp.ToolCall, progress float64, message string) {
	if call.Progress == nil {
		f.log().Debug("progress notification skipped: transport has no progress capability",
			"progress", progress, "message", message)
		return
	}
	err := call.Progress.NotifyProgress(ctx, paymcp.ProgressUpdate{
		Progress: progress,
		Total:    100,
		Message:  message,
	})
	if err != nil {
		f.log().Warn("failed to send progress notification", "error", err)
	}
}

var _ Flow = (*ProgressFlow)(nil)
