package paymcp

import "context"

// Provider is implemented by payment provider adapters.
//
// The contract is uniform across providers: a payment is created for an amount,
// an ISO 4217 currency and a description, and its provider-native status can be
// polled by id. Status strings are never interpreted by callers directly; they are
// routed through NormalizeStatus.
type Provider interface {
	// Name returns the provider identifier, e.g. "stripe"
	Name() string

	// CreatePayment creates a payment and returns its id and the URL a human pays at.
	//
	// Fails when amount is not positive, currency or description is empty, or the
	// provider call fails. Errors name the failing step.
	CreatePayment(ctx context.Context, amount float64, currency, description string) (CreatePaymentResult, error)

	// GetPaymentStatus returns the provider-native status string for a payment
	GetPaymentStatus(ctx context.Context, paymentID string) (string, error)
}

// ToolRegistrar is the capability to register a named tool with an input schema.
// Flows use it to provision auxiliary tools such as confirm_<tool>_payment.
type ToolRegistrar interface {
	RegisterTool(name, description string, inputSchema interface{}, handler ToolHandler)
}
