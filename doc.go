// Package paymcp gates MCP tool calls behind a payment.
//
// A priced tool is wrapped by one of three flows (see package flows):
//
//   - two_step returns a payment link and provisions a confirm_<tool>_payment
//     tool that runs the original call once the payment is settled
//   - elicitation asks the user inline to pay and re-checks the provider after
//     every answer
//   - progress keeps the call open, streaming progress until the payment settles
//
// Payments are created through a Provider (see package providers) and tracked in
// a session store (see package state) so that a client which reconnects after
// paying gets its call executed instead of being charged twice. Provider status
// strings are reduced to paid, canceled or pending by NormalizeStatus.
//
// The MCP binding lives in package mcp.
package paymcp
