package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	paymcp "github.com/paymcp/paymcp-go"
	"github.com/paymcp/paymcp-go/flows"
	"github.com/paymcp/paymcp-go/state"
	"github.com/paymcp/paymcp-go/test/mocks/provider"
)

// fakeServer records AddTool calls the way *mcpsdk.Server would register them
type fakeServer struct {
	mu       sync.Mutex
	tools    map[string]*mcpsdk.Tool
	handlers map[string]mcpsdk.ToolHandler
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		tools:    make(map[string]*mcpsdk.Tool),
		handlers: make(map[string]mcpsdk.ToolHandler),
	}
}

func (f *fakeServer) AddTool(t *mcpsdk.Tool, h mcpsdk.ToolHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tools[t.Name] = t
	f.handlers[t.Name] = h
}

func (f *fakeServer) call(t *testing.T, name string, args map[string]interface{}, meta mcpsdk.Meta) *mcpsdk.CallToolResult {
	t.Helper()
	f.mu.Lock()
	h, ok := f.handlers[name]
	f.mu.Unlock()
	require.True(t, ok, "tool %s not registered", name)
	res, err := h(context.Background(), makeCallToolRequest(name, args, meta))
	require.NoError(t, err)
	return res
}

// makeCallToolRequest builds a *mcpsdk.CallToolRequest for testing.
func makeCallToolRequest(name string, args map[string]interface{}, meta mcpsdk.Meta) *mcpsdk.CallToolRequest {
	argsBytes, _ := json.Marshal(args)
	if args == nil {
		argsBytes = []byte("{}")
	}
	params := &mcpsdk.CallToolParamsRaw{
		Name:      name,
		Arguments: argsBytes,
		Meta:      meta,
	}
	return &mcpsdk.CallToolRequest{Params: params}
}

func textOf(res *mcpsdk.CallToolResult) string {
	for _, c := range res.Content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func structuredOf(t *testing.T, res *mcpsdk.CallToolResult) map[string]interface{} {
	t.Helper()
	sc, ok := res.StructuredContent.(map[string]interface{})
	require.True(t, ok, "structured content is %T", res.StructuredContent)
	return sc
}

var reportTool = &mcpsdk.Tool{
	Name:        "generate_report",
	Description: "Generates a report.",
	InputSchema: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"topic": map[string]interface{}{"type": "string"},
		},
		"required": []interface{}{"topic"},
	},
}

type reportHandler struct {
	mu    sync.Mutex
	calls []json.RawMessage
}

func (h *reportHandler) handle(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	h.mu.Lock()
	h.calls = append(h.calls, append(json.RawMessage(nil), req.Params.Arguments...))
	h.mu.Unlock()
	var args struct {
		Topic string `json:"topic"`
	}
	_ = json.Unmarshal(req.Params.Arguments, &args)
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: "report on " + args.Topic}},
	}, nil
}

func (h *reportHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}

func TestNewPaymentServer_RequiresServerAndProvider(t *testing.T) {
	_, err := NewPaymentServer(nil, provider.New())
	assert.Error(t, err)

	_, err = NewPaymentServer(newFakeServer(), nil)
	assert.Error(t, err)

	_, err = NewPaymentServer(newFakeServer(), provider.New(), WithMode("workflow"))
	assert.Error(t, err)
}

func TestRegister_FreeToolPassesThrough(t *testing.T) {
	srv := newFakeServer()
	ps, err := NewPaymentServer(srv, provider.New())
	require.NoError(t, err)

	called := false
	tool := &mcpsdk.Tool{Name: "ping", Description: "Health check", InputSchema: map[string]interface{}{"type": "object"}}
	require.NoError(t, ps.Register(tool, ToolConfig{}, func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		called = true
		return &mcpsdk.CallToolResult{Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: "pong"}}}, nil
	}))

	assert.Same(t, tool, srv.tools["ping"])
	res := srv.call(t, "ping", nil, nil)
	assert.True(t, called)
	assert.Equal(t, "pong", textOf(res))
	_, priced := ps.Price("ping")
	assert.False(t, priced)
}

func TestRegister_InvalidPrice(t *testing.T) {
	ps, err := NewPaymentServer(newFakeServer(), provider.New())
	require.NoError(t, err)

	err = ps.Register(reportTool, ToolConfig{Price: &paymcp.Price{Amount: 0, Currency: "usd"}}, (&reportHandler{}).handle)
	assert.True(t, paymcp.IsErrorCode(err, paymcp.ErrCodeInvalidInput))

	err = ps.Register(&mcpsdk.Tool{}, ToolConfig{}, nil)
	assert.Error(t, err)
}

func TestTwoStepEndToEnd(t *testing.T) {
	srv := newFakeServer()
	prov := provider.New()
	store := state.NewMemoryStore()
	ps, err := NewPaymentServer(srv, prov, WithStore(store))
	require.NoError(t, err)
	assert.Equal(t, paymcp.ModeTwoStep, ps.Mode())

	h := &reportHandler{}
	price := paymcp.Price{Amount: 15.99, Currency: "usd"}
	require.NoError(t, ps.Register(reportTool, ToolConfig{Price: &price}, h.handle))

	registered := srv.tools["generate_report"]
	assert.Equal(t, "Generates a report.\n\nThis is a paid function: 15.99 USD. Payment will be requested during execution.", registered.Description)
	assert.Equal(t, "Generates a report.", reportTool.Description)
	_, ok := srv.tools[flows.ConfirmToolName("generate_report")]
	require.True(t, ok)

	meta := mcpsdk.Meta{SessionKeyMetaKey: "client-1"}
	first := srv.call(t, "generate_report", map[string]interface{}{"topic": "sales"}, meta)
	assert.False(t, first.IsError)
	sc := structuredOf(t, first)
	assert.Equal(t, flows.StatusPaymentRequired, sc["status"])
	assert.Equal(t, "PAY-1", sc["payment_id"])
	assert.Equal(t, "https://pay.example/PAY-1", sc["payment_url"])
	assert.Contains(t, textOf(first), "https://pay.example/PAY-1")
	assert.Equal(t, 0, h.count())

	prov.SetStatus("PAY-1", "paid")
	confirm := srv.call(t, flows.ConfirmToolName("generate_report"), map[string]interface{}{"payment_id": "PAY-1"}, meta)
	assert.False(t, confirm.IsError)
	assert.Equal(t, "report on sales", textOf(confirm))
	assert.Equal(t, flows.StatusPaid, structuredOf(t, confirm)["status"])
	require.Equal(t, 1, h.count())
	assert.JSONEq(t, `{"topic":"sales"}`, string(h.calls[0]))

	again := srv.call(t, flows.ConfirmToolName("generate_report"), map[string]interface{}{"payment_id": "PAY-1"}, meta)
	assert.True(t, again.IsError)
	assert.Equal(t, paymcp.ErrCodeUnknownPayment, structuredOf(t, again)["code"])
	assert.Equal(t, 1, h.count())
}

func TestTwoStep_InvalidArgumentsNeverCreatePayment(t *testing.T) {
	srv := newFakeServer()
	prov := provider.New()
	ps, err := NewPaymentServer(srv, prov)
	require.NoError(t, err)
	require.NoError(t, ps.Register(reportTool, ToolConfig{Price: &paymcp.Price{Amount: 1, Currency: "usd"}}, (&reportHandler{}).handle))

	res := srv.call(t, "generate_report", map[string]interface{}{"topic": 42}, nil)
	assert.True(t, res.IsError)
	assert.Equal(t, paymcp.ErrCodeInvalidInput, structuredOf(t, res)["code"])
	assert.Equal(t, 0, prov.CreateCount())
}

func TestElicitation_WithoutSessionIsUnsupported(t *testing.T) {
	srv := newFakeServer()
	prov := provider.New()
	ps, err := NewPaymentServer(srv, prov, WithMode(paymcp.ModeElicitation))
	require.NoError(t, err)
	require.NoError(t, ps.Register(reportTool, ToolConfig{Price: &paymcp.Price{Amount: 1, Currency: "usd"}}, (&reportHandler{}).handle))

	res := srv.call(t, "generate_report", map[string]interface{}{"topic": "x"}, nil)
	assert.True(t, res.IsError)
	assert.Equal(t, paymcp.ErrCodeElicitationNotSupported, structuredOf(t, res)["code"])
	assert.Equal(t, 0, prov.CreateCount())
}

func TestHandlerErrorsPropagate(t *testing.T) {
	srv := newFakeServer()
	prov := provider.New()
	ps, err := NewPaymentServer(srv, prov, WithStore(state.NewMemoryStore()))
	require.NoError(t, err)

	boom := errors.New("report backend down")
	require.NoError(t, ps.Register(reportTool, ToolConfig{Price: &paymcp.Price{Amount: 1, Currency: "usd"}},
		func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
			return nil, boom
		}))

	srv.call(t, "generate_report", map[string]interface{}{"topic": "x"}, nil)
	prov.SetStatus("PAY-1", "paid")

	h := srv.handlers[flows.ConfirmToolName("generate_report")]
	_, err = h(context.Background(), makeCallToolRequest(flows.ConfirmToolName("generate_report"), map[string]interface{}{"payment_id": "PAY-1"}, nil))
	assert.ErrorIs(t, err, boom)
}

func TestWithFlowUsesProvidedFlow(t *testing.T) {
	srv := newFakeServer()
	flow, err := flows.NewTwoStep(flows.Deps{Provider: provider.New(), Registrar: fakeRegistrar{srv}})
	require.NoError(t, err)

	ps, err := NewPaymentServer(srv, nil, WithFlow(flow))
	require.NoError(t, err)
	assert.Same(t, flow, ps.Flow())
}

// fakeRegistrar registers auxiliary tools on a fake server directly
type fakeRegistrar struct {
	srv *fakeServer
}

func (r fakeRegistrar) RegisterTool(name, description string, inputSchema interface{}, handler paymcp.ToolHandler) {
	r.srv.AddTool(&mcpsdk.Tool{Name: name, Description: description, InputSchema: inputSchema}, ToSDKHandler(name, handler))
}
