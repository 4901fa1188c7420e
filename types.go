package paymcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Mode names a payment flow implementation
type Mode string

const (
	// ModeTwoStep returns a payment link and provisions a confirm_<tool>_payment tool
	ModeTwoStep Mode = "two_step"
	// ModeElicitation prompts the user inline and polls the provider between prompts
	ModeElicitation Mode = "elicitation"
	// ModeProgress keeps the call open and streams progress until the payment settles
	ModeProgress Mode = "progress"
)

// ParseMode parses a configured flow name. Hyphenated and upper case spellings are accepted.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	switch m {
	case ModeTwoStep, ModeElicitation, ModeProgress:
		return m, nil
	case "":
		return ModeTwoStep, nil
	}
	return "", fmt.Errorf("unknown payment flow: %q", s)
}

// SessionStatus is the lifecycle status of a stored payment session
type SessionStatus string

const (
	SessionRequested SessionStatus = "requested"
	SessionPending   SessionStatus = "pending"
	SessionPaid      SessionStatus = "paid"
	SessionCanceled  SessionStatus = "canceled"
	SessionFailed    SessionStatus = "failed"
	SessionTimeout   SessionStatus = "timeout"
	SessionError     SessionStatus = "error"
)

// Price is the amount a guarded tool charges per call
type Price struct {
	Amount   float64 `json:"amount" mapstructure:"amount"`
	Currency string  `json:"currency" mapstructure:"currency"`
}

// Validate checks the price before it reaches a provider
func (p Price) Validate() error {
	if p.Amount <= 0 {
		return NewValidationError("amount", "must be a positive number")
	}
	if strings.TrimSpace(p.Currency) == "" {
		return NewValidationError("currency", "is required")
	}
	return nil
}

// String renders the price for human-readable disclosures, e.g. "0.50 USD"
func (p Price) String() string {
	return fmt.Sprintf("%.2f %s", p.Amount, strings.ToUpper(p.Currency))
}

// CreatePaymentResult is returned by a provider after creating a payment
type CreatePaymentResult struct {
	PaymentID  string `json:"payment_id"`
	PaymentURL string `json:"payment_url"`
}

// ContentItem represents an MCP content item
type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ToolResult represents an MCP tool call result, independent of any SDK
type ToolResult struct {
	Content           []ContentItem
	IsError           bool
	Meta              map[string]interface{}
	StructuredContent map[string]interface{}

	// Native is the transport's own result when a transport handler produced it.
	// Adapters use it to keep content kinds that have no neutral form.
	Native interface{}
}

// TextResult builds a result carrying a single text content item
func TextResult(text string) *ToolResult {
	return &ToolResult{Content: []ContentItem{{Type: "text", Text: text}}}
}

// HasText reports whether the result carries at least one non-empty text item
func (r *ToolResult) HasText() bool {
	if r == nil {
		return false
	}
	for _, c := range r.Content {
		if c.Type == "text" && c.Text != "" {
			return true
		}
	}
	return false
}

// ElicitRequest is an interactive question sent to the user through the client
type ElicitRequest struct {
	Message string
	// Schema is the JSON schema of the structured answer (flat object)
	Schema interface{}
}

// ElicitResponse is the user's answer
type ElicitResponse struct {
	// Action is one of "accept", "decline" or "cancel"
	Action  string
	Content map[string]interface{}
}

// Elicitor is the optional "ask the user and await an answer" capability of a transport.
// Implementations return an error wrapping ErrElicitationUnsupported when the client
// rejects the request as an unknown method.
type Elicitor interface {
	Elicit(ctx context.Context, req ElicitRequest) (*ElicitResponse, error)
}

// ProgressUpdate is a progress notification for a long-running call
type ProgressUpdate struct {
	Progress float64
	Total    float64
	Message  string
}

// ProgressNotifier is the optional progress-reporting capability of a transport
type ProgressNotifier interface {
	NotifyProgress(ctx context.Context, update ProgressUpdate) error
}

// ToolCall is the normalized view of one guarded invocation: the call arguments plus
// everything the payment layer may use from the calling transport. Elicitor and Progress
// are nil when the transport does not provide them; cancellation is signalled through
// the context passed alongside the call.
type ToolCall struct {
	ToolName   string
	Args       json.RawMessage
	SessionKey string
	Elicitor   Elicitor
	Progress   ProgressNotifier
}

// WithArgs returns a copy of the call carrying different arguments
func (c *ToolCall) WithArgs(args json.RawMessage) *ToolCall {
	out := *c
	out.Args = append(json.RawMessage(nil), args...)
	return &out
}

// ToolHandler is the signature for handlers wrapped by a payment flow
type ToolHandler func(ctx context.Context, call *ToolCall) (*ToolResult, error)

// GuardedTool describes a tool registration that carries a price
type GuardedTool struct {
	Name        string
	Description string
	Price       Price
	// InputSchema is the tool's JSON schema; used to validate arguments before a payment
	// is created. May be nil.
	InputSchema interface{}
}
