package flows

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	paymcp "github.com/paymcp/paymcp-go"
	"github.com/paymcp/paymcp-go/state"
)

var testTool = paymcp.GuardedTool{
	Name:        "generate_report",
	Description: "Generates a report",
	Price:       paymcp.Price{Amount: 15.99, Currency: "usd"},
	InputSchema: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"topic": map[string]interface{}{"type": "string"},
		},
		"required": []string{"topic"},
	},
}

// recordingHandler counts invocations and remembers the arguments it ran with
type recordingHandler struct {
	mu    sync.Mutex
	calls []json.RawMessage
	err   error
}

func (h *recordingHandler) handle(ctx context.Context, call *paymcp.ToolCall) (*paymcp.ToolResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, append(json.RawMessage(nil), call.Args...))
	if h.err != nil {
		return nil, h.err
	}
	return paymcp.TextResult("report for " + string(call.Args)), nil
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}

func (h *recordingHandler) lastArgs() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.calls) == 0 {
		return ""
	}
	return string(h.calls[len(h.calls)-1])
}

func newCall(sessionKey, args string) *paymcp.ToolCall {
	return &paymcp.ToolCall{
		ToolName:   testTool.Name,
		Args:       json.RawMessage(args),
		SessionKey: sessionKey,
	}
}

func mustGet(t *testing.T, store state.Store, key string) *state.Session {
	t.Helper()
	s, err := store.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("store.Get(%q) failed: %v", key, err)
	}
	return s
}

func structured(t *testing.T, res *paymcp.ToolResult, field string) interface{} {
	t.Helper()
	if res == nil || res.StructuredContent == nil {
		t.Fatalf("result has no structured content: %+v", res)
	}
	return res.StructuredContent[field]
}
