package flows

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	paymcp "github.com/paymcp/paymcp-go"
)

// ElicitationFlow asks the user to pay inline and polls the provider after every
// prompt, whatever the user answered
type ElicitationFlow struct {
	base
}

// NewElicitation creates an elicitation flow
func NewElicitation(deps Deps, opts ...Option) (*ElicitationFlow, error) {
	b, err := newBase(paymcp.ModeElicitation, deps, opts)
	if err != nil {
		return nil, err
	}
	return &ElicitationFlow{base: b}, nil
}

// elicitationSchema is the flat object the user answers with; only the action matters
func elicitationSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:       "object",
		Properties: map[string]*jsonschema.Schema{},
	}
}

type elicitOutcome int

const (
	elicitPending elicitOutcome = iota
	elicitPaid
	elicitCanceled
	elicitUnsupported
)

// Wrap implements Flow
func (f *ElicitationFlow) Wrap(tool paymcp.GuardedTool, handler paymcp.ToolHandler) (paymcp.ToolHandler, error) {
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

		if call.Elicitor == nil {
			f.outcome(span, "unsupported")
			return nil, paymcp.NewPaymentError(paymcp.ErrCodeElicitationNotSupported,
				"client does not support elicitation", map[string]interface{}{"tool": tool.Name})
		}
		if f.opts.validateArgs {
			if err := validator.validate(call.Args); err != nil {
				f.outcome(span, "error")
				return nil, err
			}
		}

		rec := f.recoverPayment(ctx, call, tool.Name)
		if rec.ExecuteImmediately {
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

		switch f.elicitLoop(ctx, call.Elicitor, tool, paymentID, paymentURL) {
		case elicitPaid:
			f.setStatus(ctx, key, paymcp.SessionPaid)
			f.outcome(span, "paid")
			result, err := handler(ctx, replayCall(call, rec, tool.Name))
			if err != nil {
				return nil, err
			}
			f.deleteSession(ctx, key)
			return paidResult(result, tool.Name, paymentID), nil

		case elicitCanceled:
			f.deleteSession(ctx, key)
			f.outcome(span, "canceled")
			return failureResult(failure{
				status:     StatusCanceled,
				reason:     ReasonCanceled,
				message:    fmt.Sprintf("Payment %s was canceled.", paymentID),
				paymentID:  paymentID,
				paymentURL: paymentURL,
			}), nil

		case elicitUnsupported:
			f.outcome(span, "unsupported")
			return failureResult(failure{
				status:     StatusError,
				reason:     ReasonUnsupported,
				message:    fmt.Sprintf("The client does not support elicitation. %s and call this tool again.", payMessage(tool.Price, paymentURL)),
				paymentID:  paymentID,
				paymentURL: paymentURL,
			}), nil

		default:
			f.setStatus(ctx, key, paymcp.SessionPending)
			f.outcome(span, "pending")
			return pendingResult(pendingResponse{
				message:    fmt.Sprintf("Payment %s is not complete yet. %s and call this tool again.", paymentID, payMessage(tool.Price, paymentURL)),
				status:     StatusPaymentPending,
				paymentID:  paymentID,
				paymentURL: paymentURL,
				nextStep:   tool.Name,
				price:      tool.Price,
			}), nil
		}
	}, nil
}

// elicitLoop prompts up to maxAttempts times, re-checking the provider after each prompt
func (f *ElicitationFlow) elicitLoop(ctx context.Context, elicitor paymcp.Elicitor, tool paymcp.GuardedTool, paymentID, paymentURL string) elicitOutcome {
	req := paymcp.ElicitRequest{
		Message: fmt.Sprintf("%s. Accept once the payment is complete.", payMessage(tool.Price, paymentURL)),
		Schema:  elicitationSchema(),
	}

	for attempt := 1; attempt <= f.opts.maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return elicitPending
		}

		resp, err := elicitor.Elicit(ctx, req)
		if err != nil {
			if errors.Is(err, paymcp.ErrElicitationUnsupported) {
				f.log().Warn("elicitation unsupported by client", "tool", tool.Name, "payment_id", paymentID)
				return elicitUnsupported
			}
			f.log().Warn("elicitation attempt failed", "attempt", attempt, "payment_id", paymentID, "error", err)
		}

		status, raw := f.checkStatus(ctx, paymentID)
		f.log().Debug("elicitation attempt", "attempt", attempt, "payment_id", paymentID, "status", raw)
		switch status {
		case paymcp.StatusPaid:
			return elicitPaid
		case paymcp.StatusCanceled:
			return elicitCanceled
		}
		if resp != nil && (resp.Action == "cancel" || resp.Action == "decline") {
			return elicitCanceled
		}
	}
	return elicitPending
}

var _ Flow = (*ElicitationFlow)(nil)
