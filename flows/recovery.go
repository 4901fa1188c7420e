package flows

import (
	"context"
	"encoding/json"
	"log/slog"

	paymcp "github.com/paymcp/paymcp-go"
	"github.com/paymcp/paymcp-go/logging"
	"github.com/paymcp/paymcp-go/metrics"
	"github.com/paymcp/paymcp-go/state"
)

// Recovery is the outcome of checking a caller's existing payment session.
//
// The zero value means no recovery is possible and a fresh payment is needed.
type Recovery struct {
	// PaymentID and PaymentURL identify a payment that is still pending, or the
	// payment that was consumed when ExecuteImmediately is set
	PaymentID  string
	PaymentURL string

	// ToolName is the tool the existing session was created for
	ToolName string

	// Args are the arguments to run the handler with when ExecuteImmediately is set:
	// the stored arguments for the same tool, the current ones otherwise. For a
	// pending payment they are the arguments captured when it was created.
	Args json.RawMessage

	// ExecuteImmediately reports that the session's payment is complete
	ExecuteImmediately bool
}

// Pending reports whether an unresolved payment should be reused
func (r Recovery) Pending() bool {
	return !r.ExecuteImmediately && r.PaymentID != ""
}

// CheckExistingPayment decides what to do with the session stored under sessionKey
// before any new payment is created:
//
//   - no key, no store, or no session: nothing to recover
//   - paid: the session is deleted and the handler should run immediately
//   - pending: the existing payment is returned for reuse
//   - canceled, or the status check failed: the session is deleted and a fresh
//     payment should be created
func CheckExistingPayment(ctx context.Context, sessionKey string, store state.Store, provider paymcp.Provider, toolName string, currentArgs json.RawMessage) Recovery {
	return checkExistingPayment(ctx, logging.Discard(), sessionKey, store, provider, toolName, currentArgs)
}

func checkExistingPayment(ctx context.Context, log *slog.Logger, sessionKey string, store state.Store, provider paymcp.Provider, toolName string, currentArgs json.RawMessage) Recovery {
	if sessionKey == "" || store == nil {
		metrics.RecoveryTotal.WithLabelValues("none").Inc()
		return Recovery{}
	}

	session, err := store.Get(ctx, sessionKey)
	if err != nil {
		log.Warn("failed to load payment session", "session", sessionKey, "error", err)
		metrics.RecoveryTotal.WithLabelValues("none").Inc()
		return Recovery{}
	}
	if session == nil || session.PaymentID == "" {
		metrics.RecoveryTotal.WithLabelValues("none").Inc()
		return Recovery{}
	}

	raw, err := provider.GetPaymentStatus(ctx, session.PaymentID)
	if err != nil {
		log.Warn("status check for existing payment failed, starting over",
			"session", sessionKey, "payment_id", session.PaymentID, "error", err)
		discard(ctx, log, store, sessionKey)
		metrics.RecoveryTotal.WithLabelValues("discard_error").Inc()
		return Recovery{}
	}

	switch paymcp.NormalizeStatus(raw) {
	case paymcp.StatusPaid:
		discard(ctx, log, store, sessionKey)
		args := currentArgs
		if session.ToolName == toolName {
			args = session.ToolArgs
		}
		log.Info("recovered paid session",
			"session", sessionKey, "payment_id", session.PaymentID, "stored_tool", session.ToolName, "tool", toolName)
		metrics.RecoveryTotal.WithLabelValues("execute").Inc()
		return Recovery{
			PaymentID:          session.PaymentID,
			PaymentURL:         session.PaymentURL,
			ToolName:           session.ToolName,
			Args:               append(json.RawMessage(nil), args...),
			ExecuteImmediately: true,
		}

	case paymcp.StatusCanceled:
		discard(ctx, log, store, sessionKey)
		metrics.RecoveryTotal.WithLabelValues("discard_canceled").Inc()
		return Recovery{}

	default:
		metrics.RecoveryTotal.WithLabelValues("reuse").Inc()
		return Recovery{
			PaymentID:  session.PaymentID,
			PaymentURL: session.PaymentURL,
			ToolName:   session.ToolName,
			Args:       append(json.RawMessage(nil), session.ToolArgs...),
		}
	}
}

func discard(ctx context.Context, log *slog.Logger, store state.Store, key string) {
	if err := store.Delete(ctx, key); err != nil {
		log.Warn("failed to delete payment session", "session", key, "error", err)
	}
}
