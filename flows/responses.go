package flows

import (
	"encoding/json"
	"fmt"

	paymcp "github.com/paymcp/paymcp-go"
)

// PaymentMetaKey is the result _meta key carrying the payment annotation
const PaymentMetaKey = "paymcp/payment"

// Response status values
const (
	StatusPaymentRequired = "payment_required"
	StatusPaymentPending  = "payment_pending"
	StatusPaid            = "paid"
	StatusCanceled        = "canceled"
	StatusError           = "error"
)

// Reasons attached to canceled and error responses
const (
	ReasonCanceled            = "canceled"
	ReasonTimeout             = "timeout"
	ReasonAborted             = "aborted"
	ReasonUnsupported         = "unsupported"
	ReasonPaymentNotCompleted = paymcp.ErrCodePaymentNotCompleted
	ReasonWrongTool           = "wrong_tool"
)

type pendingResponse struct {
	message    string
	status     string
	paymentID  string
	paymentURL string
	nextStep   string
	price      paymcp.Price
}

// pendingResult asks the caller to pay. It is not an error: paying and calling
// again (or confirming) is the expected continuation.
func pendingResult(p pendingResponse) *paymcp.ToolResult {
	res := paymcp.TextResult(p.message)
	res.StructuredContent = map[string]interface{}{
		"status":      p.status,
		"payment_id":  p.paymentID,
		"payment_url": p.paymentURL,
		"next_step":   p.nextStep,
		"amount":      p.price.Amount,
		"currency":    p.price.Currency,
	}
	return res
}

type failure struct {
	status     string
	reason     string
	message    string
	paymentID  string
	paymentURL string
	extra      map[string]interface{}
}

// failureResult builds a canceled or error response
func failureResult(f failure) *paymcp.ToolResult {
	res := paymcp.TextResult(f.message)
	res.IsError = true
	sc := map[string]interface{}{
		"status": f.status,
		"reason": f.reason,
	}
	if f.paymentID != "" {
		sc["payment_id"] = f.paymentID
	}
	if f.paymentURL != "" {
		sc["payment_url"] = f.paymentURL
	}
	for k, v := range f.extra {
		sc[k] = v
	}
	res.StructuredContent = sc
	return res
}

// paidResult annotates a handler result with {status: paid, payment_id} unless the
// handler already set a status, and guarantees a text content item
func paidResult(result *paymcp.ToolResult, toolName, paymentID string) *paymcp.ToolResult {
	if result == nil {
		result = &paymcp.ToolResult{}
	}
	annotation := map[string]interface{}{"status": StatusPaid, "payment_id": paymentID}

	if result.Meta == nil {
		result.Meta = make(map[string]interface{})
	}
	if _, ok := result.Meta[PaymentMetaKey]; !ok {
		result.Meta[PaymentMetaKey] = annotation
	}

	if result.StructuredContent == nil {
		result.StructuredContent = make(map[string]interface{})
	}
	if _, ok := result.StructuredContent["status"]; !ok {
		result.StructuredContent["status"] = StatusPaid
		result.StructuredContent["payment_id"] = paymentID
	}

	return ensureText(result, toolName)
}

func ensureText(result *paymcp.ToolResult, toolName string) *paymcp.ToolResult {
	if result.HasText() {
		return result
	}
	text := fmt.Sprintf("Tool %s completed.", toolName)
	if len(result.StructuredContent) > 0 {
		if b, err := json.Marshal(result.StructuredContent); err == nil {
			text = string(b)
		}
	}
	result.Content = append(result.Content, paymcp.ContentItem{Type: "text", Text: text})
	return result
}

func payMessage(price paymcp.Price, paymentURL string) string {
	return fmt.Sprintf("To continue, please pay %s at %s", price, paymentURL)
}
