package mcp

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	paymcp "github.com/paymcp/paymcp-go"
	"github.com/paymcp/paymcp-go/flows"
	"github.com/paymcp/paymcp-go/logging"
	"github.com/paymcp/paymcp-go/state"
)

// PaymentServer decorates an MCP server's tool registration with payment gating.
// Tools registered with a price are wrapped by the configured flow; everything
// else passes straight through to the underlying server.
type PaymentServer struct {
	adder    ToolAdder
	provider paymcp.Provider
	store    state.Store
	mode     paymcp.Mode
	flow     flows.Flow
	flowOpts []flows.Option
	logger   *slog.Logger

	mu    sync.Mutex
	tools map[string]paymcp.Price
}

// NewPaymentServer wraps adder, typically an *mcpsdk.Server
func NewPaymentServer(adder ToolAdder, provider paymcp.Provider, opts ...Option) (*PaymentServer, error) {
	if adder == nil {
		return nil, errors.New("mcp server is required")
	}
	s := &PaymentServer{
		adder:    adder,
		provider: provider,
		mode:     paymcp.ModeTwoStep,
		logger:   logging.Discard(),
		tools:    make(map[string]paymcp.Price),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.flow == nil {
		if provider == nil {
			return nil, errors.New("payment provider is required")
		}
		flowOpts := append([]flows.Option{flows.WithLogger(s.logger)}, s.flowOpts...)
		flow, err := flows.New(s.mode, flows.Deps{
			Provider:  provider,
			Store:     s.store,
			Registrar: s,
		}, flowOpts...)
		if err != nil {
			return nil, err
		}
		s.flow = flow
	}
	return s, nil
}

// Flow returns the flow guarding priced tools
func (s *PaymentServer) Flow() flows.Flow {
	return s.flow
}

// Mode returns the active flow mode
func (s *PaymentServer) Mode() paymcp.Mode {
	return s.flow.Mode()
}

// AddTool registers a tool on the underlying server unchanged
func (s *PaymentServer) AddTool(t *mcpsdk.Tool, h mcpsdk.ToolHandler) {
	s.adder.AddTool(t, h)
}

// Register adds a tool. With cfg.Price set, the price disclosure is appended to
// the description and the handler only runs once the payment is settled.
func (s *PaymentServer) Register(tool *mcpsdk.Tool, cfg ToolConfig, handler mcpsdk.ToolHandler) error {
	if tool == nil || tool.Name == "" {
		return paymcp.NewValidationError("tool", "name is required")
	}
	if cfg.Price == nil {
		s.adder.AddTool(tool, handler)
		return nil
	}
	price := *cfg.Price
	if err := price.Validate(); err != nil {
		return err
	}

	wrapped, err := s.flow.Wrap(paymcp.GuardedTool{
		Name:        tool.Name,
		Description: tool.Description,
		Price:       price,
		InputSchema: tool.InputSchema,
	}, FromSDKHandler(handler))
	if err != nil {
		return fmt.Errorf("failed to wrap tool %s: %w", tool.Name, err)
	}

	priced := *tool
	priced.Description = DescribePriced(tool.Description, price)
	s.adder.AddTool(&priced, ToSDKHandler(tool.Name, wrapped))

	s.mu.Lock()
	s.tools[tool.Name] = price
	s.mu.Unlock()
	s.logger.Info("registered paid tool", "tool", tool.Name, "price", price.String(), "mode", s.flow.Mode())
	return nil
}

// Price returns the price a tool was registered with
func (s *PaymentServer) Price(name string) (paymcp.Price, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.tools[name]
	return p, ok
}

// RegisterTool implements paymcp.ToolRegistrar; flows use it for auxiliary tools
func (s *PaymentServer) RegisterTool(name, description string, inputSchema interface{}, handler paymcp.ToolHandler) {
	s.adder.AddTool(&mcpsdk.Tool{
		Name:        name,
		Description: description,
		InputSchema: inputSchema,
	}, ToSDKHandler(name, handler))
}

var _ paymcp.ToolRegistrar = (*PaymentServer)(nil)
