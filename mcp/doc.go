// Package mcp connects the payment flows to the official MCP Go SDK.
//
// PaymentServer decorates an *mcpsdk.Server. Tools registered with a price get
// a price disclosure in their description and a handler that only runs once the
// payment is settled; tools without a price are registered unchanged.
//
//	server := mcpsdk.NewServer(&mcpsdk.Implementation{Name: "reports", Version: "1.0.0"}, nil)
//	payments, err := mcp.NewPaymentServer(server, provider,
//	    mcp.WithMode(paymcp.ModeTwoStep),
//	    mcp.WithStore(state.NewMemoryStore()),
//	)
//	if err != nil { ... }
//
//	err = payments.Register(&mcpsdk.Tool{
//	    Name:        "generate_report",
//	    Description: "Generates a report.",
//	    InputSchema: map[string]interface{}{"type": "object"},
//	}, mcp.ToolConfig{Price: &paymcp.Price{Amount: 0.5, Currency: "usd"}}, handler)
//
// Requests are normalized by NewToolCall: arguments are checked once, the
// session key is taken from the transport session, the Mcp-Session-Id header or
// the "paymcp/session_key" request _meta entry, and the elicitation and progress
// capabilities of the server session are exposed to the flows.
package mcp
