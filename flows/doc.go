// Package flows implements the payment state machines that gate tool handlers.
//
// Every flow starts with the same recovery check (CheckExistingPayment): a caller
// whose session already holds a paid payment runs immediately, a pending payment
// is reused instead of creating a duplicate, and a canceled or unverifiable one is
// discarded. What happens next depends on the flow:
//
//   - two_step returns a payment link and registers confirm_<tool>_payment, which
//     runs the original handler with the captured arguments once the payment is paid
//   - elicitation prompts the user inline, re-checking the provider after each prompt
//   - progress keeps the call open, polling the provider and streaming progress
//
// Flows are selected by name:
//
//	flow, err := flows.New(paymcp.ModeTwoStep, flows.Deps{
//	    Provider:  provider,
//	    Store:     store,
//	    Registrar: server,
//	})
//	handler, err := flow.Wrap(tool, myHandler)
package flows
