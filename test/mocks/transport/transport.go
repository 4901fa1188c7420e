// Package transport contains fake transport capabilities for flow tests.
package transport

import (
	"context"
	"sync"

	paymcp "github.com/paymcp/paymcp-go"
)

// Elicitor answers elicitation requests from a script of responses
type Elicitor struct {
	mu        sync.Mutex
	responses []Response
	requests  []paymcp.ElicitRequest

	// OnElicit, when set, runs before each answer is returned
	OnElicit func(attempt int)
}

// Response is one scripted elicitation answer
type Response struct {
	Action string
	Err    error
}

// NewElicitor creates an elicitor. The last response repeats once the script runs out;
// an empty script accepts every request.
func NewElicitor(responses ...Response) *Elicitor {
	return &Elicitor{responses: responses}
}

// Elicit implements paymcp.Elicitor
func (e *Elicitor) Elicit(ctx context.Context, req paymcp.ElicitRequest) (*paymcp.ElicitResponse, error) {
	e.mu.Lock()
	e.requests = append(e.requests, req)
	attempt := len(e.requests)
	resp := Response{Action: "accept"}
	if len(e.responses) > 0 {
		resp = e.responses[0]
		if len(e.responses) > 1 {
			e.responses = e.responses[1:]
		}
	}
	hook := e.OnElicit
	e.mu.Unlock()

	if hook != nil {
		hook(attempt)
	}
	if resp.Err != nil {
		return nil, resp.Err
	}
	return &paymcp.ElicitResponse{Action: resp.Action}, nil
}

// Requests returns the elicitation requests received so far
func (e *Elicitor) Requests() []paymcp.ElicitRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]paymcp.ElicitRequest(nil), e.requests...)
}

// Notifier records progress notifications
type Notifier struct {
	mu      sync.Mutex
	updates []paymcp.ProgressUpdate

	// Err, when set, is returned from every NotifyProgress call after recording it
	Err error
}

// NotifyProgress implements paymcp.ProgressNotifier
func (n *Notifier) NotifyProgress(ctx context.Context, update paymcp.ProgressUpdate) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updates = append(n.updates, update)
	return n.Err
}

// Updates returns the notifications received so far
func (n *Notifier) Updates() []paymcp.ProgressUpdate {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]paymcp.ProgressUpdate(nil), n.updates...)
}

// Registrar records tools registered through paymcp.ToolRegistrar
type Registrar struct {
	mu    sync.Mutex
	tools map[string]RegisteredTool
	calls int
}

// RegisteredTool is one recorded registration
type RegisteredTool struct {
	Name        string
	Description string
	InputSchema interface{}
	Handler     paymcp.ToolHandler
}

// NewRegistrar creates an empty registrar
func NewRegistrar() *Registrar {
	return &Registrar{tools: make(map[string]RegisteredTool)}
}

// RegisterTool implements paymcp.ToolRegistrar
func (r *Registrar) RegisterTool(name, description string, inputSchema interface{}, handler paymcp.ToolHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.tools[name] = RegisteredTool{Name: name, Description: description, InputSchema: inputSchema, Handler: handler}
}

// Tool returns a registered tool by name
func (r *Registrar) Tool(name string) (RegisteredTool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tools[name]
	return t, ok
}

// Calls returns the number of RegisterTool invocations
func (r *Registrar) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}
