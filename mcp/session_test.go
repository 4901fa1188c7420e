package mcp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	paymcp "github.com/paymcp/paymcp-go"
	"github.com/paymcp/paymcp-go/flows"
	"github.com/paymcp/paymcp-go/state"
	"github.com/paymcp/paymcp-go/test/mocks/provider"
)

// connect wires a client to server over in-memory transports
func connect(t *testing.T, server *mcpsdk.Server, opts *mcpsdk.ClientOptions) *mcpsdk.ClientSession {
	t.Helper()
	ctx := context.Background()
	serverTransport, clientTransport := mcpsdk.NewInMemoryTransports()

	ss, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test-client", Version: "1.0.0"}, opts)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func newPricedServer(t *testing.T, prov *provider.Provider, h *reportHandler, opts ...Option) *mcpsdk.Server {
	t.Helper()
	server := mcpsdk.NewServer(&mcpsdk.Implementation{Name: "reports", Version: "1.0.0"}, nil)
	ps, err := NewPaymentServer(server, prov, opts...)
	require.NoError(t, err)
	require.NoError(t, ps.Register(reportTool, ToolConfig{Price: &paymcp.Price{Amount: 2, Currency: "usd"}}, h.handle))
	return server
}

func callReport(t *testing.T, cs *mcpsdk.ClientSession, params *mcpsdk.CallToolParams) *mcpsdk.CallToolResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := cs.CallTool(ctx, params)
	require.NoError(t, err)
	return res
}

func TestSession_ElicitationAcceptedRunsTool(t *testing.T) {
	prov := provider.New()
	h := &reportHandler{}
	server := newPricedServer(t, prov, h, WithMode(paymcp.ModeElicitation), WithStore(state.NewMemoryStore()))

	var (
		mu       sync.Mutex
		messages []string
	)
	cs := connect(t, server, &mcpsdk.ClientOptions{
		ElicitationHandler: func(ctx context.Context, req *mcpsdk.ElicitRequest) (*mcpsdk.ElicitResult, error) {
			mu.Lock()
			messages = append(messages, req.Params.Message)
			mu.Unlock()
			prov.SetStatus("PAY-1", "paid")
			return &mcpsdk.ElicitResult{Action: "accept"}, nil
		},
	})

	res := callReport(t, cs, &mcpsdk.CallToolParams{Name: "generate_report", Arguments: map[string]interface{}{"topic": "sales"}})
	assert.False(t, res.IsError)
	assert.Equal(t, "report on sales", textOf(res))
	assert.Equal(t, 1, prov.CreateCount())
	assert.Equal(t, 1, h.count())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0], "https://pay.example/PAY-1")
}

func TestSession_ClientWithoutElicitationFailsBeforePayment(t *testing.T) {
	prov := provider.New()
	h := &reportHandler{}
	server := newPricedServer(t, prov, h, WithMode(paymcp.ModeElicitation), WithStore(state.NewMemoryStore()))
	cs := connect(t, server, nil)

	res := callReport(t, cs, &mcpsdk.CallToolParams{Name: "generate_report", Arguments: map[string]interface{}{"topic": "sales"}})
	assert.True(t, res.IsError)
	assert.Equal(t, paymcp.ErrCodeElicitationNotSupported, structuredOf(t, res)["code"])
	assert.Equal(t, 0, prov.CreateCount())
	assert.Equal(t, 0, h.count())
}

func TestSession_ProgressNotificationsReachClient(t *testing.T) {
	prov := provider.New("pending", "paid")
	h := &reportHandler{}
	server := newPricedServer(t, prov, h,
		WithMode(paymcp.ModeProgress),
		WithStore(state.NewMemoryStore()),
		WithFlowOptions(flows.WithPollInterval(10*time.Millisecond), flows.WithMaxWait(2*time.Second)),
	)

	var (
		mu     sync.Mutex
		tokens []interface{}
	)
	cs := connect(t, server, &mcpsdk.ClientOptions{
		ProgressNotificationHandler: func(ctx context.Context, req *mcpsdk.ProgressNotificationClientRequest) {
			mu.Lock()
			tokens = append(tokens, req.Params.ProgressToken)
			mu.Unlock()
		},
	})

	params := &mcpsdk.CallToolParams{Name: "generate_report", Arguments: map[string]interface{}{"topic": "sales"}}
	params.SetProgressToken("report-1")
	res := callReport(t, cs, params)
	assert.False(t, res.IsError)
	assert.Equal(t, "report on sales", textOf(res))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(tokens) > 0
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for _, token := range tokens {
		assert.Equal(t, "report-1", token)
	}
}

func TestSession_WireMethodNotFound(t *testing.T) {
	assert.True(t, isMethodNotFound(&jsonrpc.Error{Code: jsonrpc.CodeMethodNotFound, Message: "unknown method"}))
	assert.True(t, isMethodNotFound(errors.Join(errors.New("elicit"), &jsonrpc.Error{Code: jsonrpc.CodeMethodNotFound})))
	assert.False(t, isMethodNotFound(&jsonrpc.Error{Code: jsonrpc.CodeInternalError, Message: "method not found in cache"}))
}
