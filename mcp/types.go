package mcp

import (
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	paymcp "github.com/paymcp/paymcp-go"
	"github.com/paymcp/paymcp-go/flows"
	"github.com/paymcp/paymcp-go/state"
)

// Protocol constants
const (
	// SessionKeyMetaKey is the request _meta key a client may use to name its own
	// session when the transport has none
	SessionKeyMetaKey = "paymcp/session_key"

	// SessionIDHeader carries the transport session id on streamable HTTP
	SessionIDHeader = "Mcp-Session-Id"

	progressTokenKey = "progressToken"
)

// ToolAdder is the registration capability of an MCP server. *mcpsdk.Server
// satisfies it.
type ToolAdder interface {
	AddTool(t *mcpsdk.Tool, h mcpsdk.ToolHandler)
}

// ToolConfig carries the payment settings of one tool registration. A nil Price
// registers the tool unchanged.
type ToolConfig struct {
	Price *paymcp.Price
}

// Option configures a PaymentServer
type Option func(*PaymentServer)

// WithMode selects the payment flow. Default: two_step.
func WithMode(mode paymcp.Mode) Option {
	return func(s *PaymentServer) {
		s.mode = mode
	}
}

// WithFlow installs a prebuilt flow; WithMode and WithFlowOptions are then ignored
func WithFlow(flow flows.Flow) Option {
	return func(s *PaymentServer) {
		s.flow = flow
	}
}

// WithStore sets the session store used for recovery. Without one, recovery is
// disabled.
func WithStore(store state.Store) Option {
	return func(s *PaymentServer) {
		s.store = store
	}
}

// WithFlowOptions passes options through to the flow constructor
func WithFlowOptions(opts ...flows.Option) Option {
	return func(s *PaymentServer) {
		s.flowOpts = append(s.flowOpts, opts...)
	}
}

// WithLogger sets the logger for the server and, unless overridden by
// WithFlowOptions, the flow
func WithLogger(logger *slog.Logger) Option {
	return func(s *PaymentServer) {
		if logger != nil {
			s.logger = logger
		}
	}
}
