package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	paymcp "github.com/paymcp/paymcp-go"
)

type requestKey struct{}

// NewToolCall normalizes an MCP tool request into the call the payment flows see.
// Arguments are checked once here; the session key comes from SessionKey. An
// Elicitor is attached only when the client declared form elicitation at
// initialization, a progress notifier only when it supplied a progress token.
func NewToolCall(req *mcpsdk.CallToolRequest) (*paymcp.ToolCall, error) {
	if req == nil || req.Params == nil {
		return nil, paymcp.NewValidationError("params", "are required")
	}
	args := req.Params.Arguments
	if len(args) == 0 || string(args) == "null" {
		args = json.RawMessage("{}")
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(args, &probe); err != nil {
		return nil, paymcp.NewValidationError("arguments", "must be a JSON object")
	}

	call := &paymcp.ToolCall{
		ToolName:   req.Params.Name,
		Args:       append(json.RawMessage(nil), args...),
		SessionKey: SessionKey(req),
	}
	if req.Session != nil {
		if supportsElicitation(req.Session) {
			call.Elicitor = &sessionElicitor{session: req.Session}
		}
		if token := progressToken(req); token != nil {
			call.Progress = &sessionProgress{session: req.Session, token: token}
		}
	}
	return call, nil
}

// sessionElicitor asks the user through the connected client
type sessionElicitor struct {
	session *mcpsdk.ServerSession
}

func (e *sessionElicitor) Elicit(ctx context.Context, req paymcp.ElicitRequest) (*paymcp.ElicitResponse, error) {
	params := &mcpsdk.ElicitParams{Message: req.Message}
	if schema, ok := req.Schema.(*jsonschema.Schema); ok {
		params.RequestedSchema = schema
	}
	res, err := e.session.Elicit(ctx, params)
	if err != nil {
		if isMethodNotFound(err) {
			return nil, fmt.Errorf("%w: %v", paymcp.ErrElicitationUnsupported, err)
		}
		return nil, err
	}
	return &paymcp.ElicitResponse{Action: res.Action, Content: res.Content}, nil
}

// sessionProgress reports progress against the request's progress token
type sessionProgress struct {
	session *mcpsdk.ServerSession
	token   interface{}
}

func (p *sessionProgress) NotifyProgress(ctx context.Context, update paymcp.ProgressUpdate) error {
	return p.session.NotifyProgress(ctx, &mcpsdk.ProgressNotificationParams{
		ProgressToken: p.token,
		Progress:      update.Progress,
		Total:         update.Total,
		Message:       update.Message,
	})
}

// ToSDKHandler exposes a payment-layer handler as an MCP tool handler. Payment
// errors become error results the model can read; other errors are returned to
// the SDK unchanged.
func ToSDKHandler(name string, handler paymcp.ToolHandler) mcpsdk.ToolHandler {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		call, err := NewToolCall(req)
		if err != nil {
			return paymentErrorResult(err)
		}
		if call.ToolName == "" {
			call.ToolName = name
		}
		ctx = context.WithValue(ctx, requestKey{}, req)

		result, err := handler(ctx, call)
		if err != nil {
			return paymentErrorResult(err)
		}
		return ToSDKResult(result), nil
	}
}

// FromSDKHandler adapts an MCP tool handler so a flow can run it. The handler
// receives the original request with its arguments replaced by the call's, which
// is how recovered and confirmed calls replay their stored arguments.
func FromSDKHandler(handler mcpsdk.ToolHandler) paymcp.ToolHandler {
	return func(ctx context.Context, call *paymcp.ToolCall) (*paymcp.ToolResult, error) {
		req, _ := ctx.Value(requestKey{}).(*mcpsdk.CallToolRequest)
		result, err := handler(ctx, replayRequest(req, call))
		if err != nil {
			return nil, err
		}
		return FromSDKResult(result), nil
	}
}

func replayRequest(req *mcpsdk.CallToolRequest, call *paymcp.ToolCall) *mcpsdk.CallToolRequest {
	out := &mcpsdk.CallToolRequest{}
	params := &mcpsdk.CallToolParamsRaw{}
	if req != nil {
		*out = *req
		if req.Params != nil {
			*params = *req.Params
		}
	}
	params.Name = call.ToolName
	params.Arguments = append(json.RawMessage(nil), call.Args...)
	out.Params = params
	return out
}

func paymentErrorResult(err error) (*mcpsdk.CallToolResult, error) {
	var pe *paymcp.PaymentError
	if !errors.As(err, &pe) {
		return nil, err
	}
	sc := map[string]interface{}{"status": "error", "code": pe.Code}
	for k, v := range pe.Details {
		sc[k] = v
	}
	return &mcpsdk.CallToolResult{
		Content:           []mcpsdk.Content{&mcpsdk.TextContent{Text: pe.Error()}},
		StructuredContent: sc,
		IsError:           true,
	}, nil
}

// ToSDKResult converts a payment-layer result. Text items come first, followed by
// any non-text content of the handler's own result.
func ToSDKResult(result *paymcp.ToolResult) *mcpsdk.CallToolResult {
	if result == nil {
		return &mcpsdk.CallToolResult{Content: []mcpsdk.Content{}}
	}
	out := &mcpsdk.CallToolResult{IsError: result.IsError}
	content := make([]mcpsdk.Content, 0, len(result.Content))
	for _, item := range result.Content {
		content = append(content, &mcpsdk.TextContent{Text: item.Text})
	}
	if native, ok := result.Native.(*mcpsdk.CallToolResult); ok && native != nil {
		for _, c := range native.Content {
			if _, isText := c.(*mcpsdk.TextContent); !isText {
				content = append(content, c)
			}
		}
	}
	out.Content = content
	if len(result.Meta) > 0 {
		out.Meta = mcpsdk.Meta(result.Meta)
	}
	if result.StructuredContent != nil {
		out.StructuredContent = result.StructuredContent
	}
	return out
}

// FromSDKResult converts an MCP result, keeping the original in Native
func FromSDKResult(result *mcpsdk.CallToolResult) *paymcp.ToolResult {
	if result == nil {
		return nil
	}
	out := &paymcp.ToolResult{IsError: result.IsError, Native: result}
	for _, c := range result.Content {
		if text, ok := c.(*mcpsdk.TextContent); ok {
			out.Content = append(out.Content, paymcp.ContentItem{Type: "text", Text: text.Text})
		}
	}
	if len(result.Meta) > 0 {
		out.Meta = make(map[string]interface{}, len(result.Meta))
		for k, v := range result.Meta {
			out.Meta[k] = v
		}
	}
	switch sc := result.StructuredContent.(type) {
	case map[string]interface{}:
		out.StructuredContent = sc
	case nil:
	default:
		// typed structured output is re-shaped as a JSON object
		if b, err := json.Marshal(sc); err == nil {
			var m map[string]interface{}
			if json.Unmarshal(b, &m) == nil {
				out.StructuredContent = m
			}
		}
	}
	return out
}
