package flows

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"

	paymcp "github.com/paymcp/paymcp-go"
	"github.com/paymcp/paymcp-go/state"
)

// TwoStepFlow answers a guarded call with a payment link and provisions a
// confirm_<tool>_payment tool that runs the original handler once the payment is paid
type TwoStepFlow struct {
	base
	registrar paymcp.ToolRegistrar

	// volatile backs confirmation when no store is configured
	volatile *state.MemoryStore

	mu        sync.Mutex
	confirms  map[string]struct{}
	validated map[string]*argValidator
}

// NewTwoStep creates a two-step flow. deps.Registrar is required.
func NewTwoStep(deps Deps, opts ...Option) (*TwoStepFlow, error) {
	b, err := newBase(paymcp.ModeTwoStep, deps, opts)
	if err != nil {
		return nil, err
	}
	if deps.Registrar == nil {
		return nil, errors.New("two_step flow: tool registrar is required")
	}
	return &TwoStepFlow{
		base:      b,
		registrar: deps.Registrar,
		volatile:  state.NewMemoryStore(),
		confirms:  make(map[string]struct{}),
		validated: make(map[string]*argValidator),
	}, nil
}

// ConfirmToolName returns the name of the confirmation tool for toolName
func ConfirmToolName(toolName string) string {
	return "confirm_" + toolName + "_payment"
}

// confirmSchema is the input schema of every confirmation tool
func confirmSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"payment_id": {Type: "string", Description: "Payment id returned by the paid tool"},
		},
		Required: []string{"payment_id"},
	}
}

// sessions returns the store sessions are written to: the configured one, or the
// in-process fallback
func (f *TwoStepFlow) sessions() state.Store {
	if f.store != nil {
		return f.store
	}
	return f.volatile
}

// Wrap implements Flow. The confirmation tool is registered on the first Wrap for a
// tool name; later wraps of the same name leave it alone.
func (f *TwoStepFlow) Wrap(tool paymcp.GuardedTool, handler paymcp.ToolHandler) (paymcp.ToolHandler, error) {
	if err := tool.Price.Validate(); err != nil {
		return nil, err
	}
	validator, err := f.validator(tool)
	if err != nil {
		f.log().Warn("argument validation disabled", "tool", tool.Name, "error", err)
	}
	f.ensureConfirmTool(tool, handler)

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
			f.outcome(span, "paid")
			result, err := handler(ctx, call.WithArgs(rec.Args))
			if err != nil {
				return nil, err
			}
			return paidResult(result, tool.Name, rec.PaymentID), nil
		}

		if rec.Pending() {
			confirmFor := tool.Name
			if rec.ToolName != "" {
				confirmFor = rec.ToolName
			}
			f.outcome(span, "pending")
			return pendingResult(pendingResponse{
				message: fmt.Sprintf("Payment %s is still pending. Pay %s at %s, then call %s with payment_id=%s.",
					rec.PaymentID, tool.Price, rec.PaymentURL, ConfirmToolName(confirmFor), rec.PaymentID),
				status:     StatusPaymentPending,
				paymentID:  rec.PaymentID,
				paymentURL: rec.PaymentURL,
				nextStep:   ConfirmToolName(confirmFor),
				price:      tool.Price,
			}), nil
		}

		_, created, err := f.createPayment(ctx, f.sessions(), tool, call)
		if err != nil {
			f.outcome(span, "error")
			return nil, err
		}
		f.outcome(span, "pending")
		return pendingResult(pendingResponse{
			message: fmt.Sprintf("%s After payment, call %s with payment_id=%s.",
				payMessage(tool.Price, created.PaymentURL), ConfirmToolName(tool.Name), created.PaymentID),
			status:     StatusPaymentRequired,
			paymentID:  created.PaymentID,
			paymentURL: created.PaymentURL,
			nextStep:   ConfirmToolName(tool.Name),
			price:      tool.Price,
		}), nil
	}, nil
}

func (f *TwoStepFlow) validator(tool paymcp.GuardedTool) (*argValidator, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.validated[tool.Name]; ok {
		return v, nil
	}
	v, err := newArgValidator(tool.InputSchema)
	f.validated[tool.Name] = v
	return v, err
}

func (f *TwoStepFlow) ensureConfirmTool(tool paymcp.GuardedTool, handler paymcp.ToolHandler) {
	name := ConfirmToolName(tool.Name)

	f.mu.Lock()
	if _, ok := f.confirms[name]; ok {
		f.mu.Unlock()
		return
	}
	f.confirms[name] = struct{}{}
	f.mu.Unlock()

	f.registrar.RegisterTool(name,
		fmt.Sprintf("Confirm payment and execute %s()", tool.Name),
		confirmSchema(),
		f.confirmHandler(tool, handler))
	f.log().Debug("registered confirmation tool", "tool", name)
}

type confirmArgs struct {
	PaymentID string `json:"payment_id"`
}

// resolve finds the session for paymentID through the payment id index, then the
// primary key, then the in-process fallback. It returns the store that holds it.
func (f *TwoStepFlow) resolve(ctx context.Context, paymentID string) (*state.Session, state.Store, error) {
	if f.store != nil {
		session, err := f.store.GetByPaymentID(ctx, paymentID)
		if err != nil {
			return nil, nil, err
		}
		if session != nil {
			return session, f.store, nil
		}
		session, err = f.store.Get(ctx, paymentID)
		if err != nil {
			return nil, nil, err
		}
		if session != nil {
			return session, f.store, nil
		}
	}
	session, err := f.volatile.GetByPaymentID(ctx, paymentID)
	if err != nil || session == nil {
		return nil, nil, err
	}
	return session, f.volatile, nil
}

func (f *TwoStepFlow) confirmHandler(tool paymcp.GuardedTool, handler paymcp.ToolHandler) paymcp.ToolHandler {
	return func(ctx context.Context, call *paymcp.ToolCall) (*paymcp.ToolResult, error) {
		ctx, span := f.startSpan(ctx, ConfirmToolName(tool.Name), call)
		defer span.End()

		var args confirmArgs
		if len(call.Args) > 0 {
			if err := json.Unmarshal(call.Args, &args); err != nil {
				f.outcome(span, "error")
				return nil, paymcp.NewValidationError("payment_id", "must be a string")
			}
		}
		if args.PaymentID == "" {
			f.outcome(span, "error")
			return nil, paymcp.NewValidationError("payment_id", "is required")
		}

		session, holder, err := f.resolve(ctx, args.PaymentID)
		if err != nil {
			f.outcome(span, "error")
			return nil, fmt.Errorf("failed to load payment session: %w", err)
		}
		if session == nil {
			f.outcome(span, "error")
			return nil, paymcp.NewPaymentError(paymcp.ErrCodeUnknownPayment,
				fmt.Sprintf("unknown or expired payment_id: %s", args.PaymentID),
				map[string]interface{}{"payment_id": args.PaymentID})
		}
		if session.ToolName != "" && session.ToolName != tool.Name {
			f.outcome(span, "error")
			return failureResult(failure{
				status:    StatusError,
				reason:    ReasonWrongTool,
				message:   fmt.Sprintf("Payment %s was created for %s; confirm it with %s.", args.PaymentID, session.ToolName, ConfirmToolName(session.ToolName)),
				paymentID: args.PaymentID,
			}), nil
		}

		raw, err := f.provider.GetPaymentStatus(ctx, args.PaymentID)
		if err != nil {
			f.outcome(span, "error")
			return nil, err
		}
		if paymcp.NormalizeStatus(raw) != paymcp.StatusPaid {
			f.outcome(span, "pending")
			return failureResult(failure{
				status:     StatusError,
				reason:     ReasonPaymentNotCompleted,
				message:    fmt.Sprintf("Payment status is %s, expected paid.", raw),
				paymentID:  args.PaymentID,
				paymentURL: session.PaymentURL,
				extra:      map[string]interface{}{"payment_status": raw},
			}), nil
		}

		// Consume the session before running the handler so a repeated
		// confirmation cannot run it twice.
		if err := holder.Delete(ctx, session.SessionKey); err != nil {
			f.outcome(span, "error")
			return nil, fmt.Errorf("failed to consume payment session: %w", err)
		}
		f.outcome(span, "paid")
		f.log().Info("payment confirmed", "tool", tool.Name, "payment_id", args.PaymentID)

		replay := call.WithArgs(session.ToolArgs)
		replay.ToolName = tool.Name
		result, err := handler(ctx, replay)
		if err != nil {
			return nil, err
		}
		return paidResult(result, tool.Name, args.PaymentID), nil
	}
}

var _ Flow = (*TwoStepFlow)(nil)
