package providers

import (
	"context"
	"strings"

	"github.com/go-resty/resty/v2"

	paymcp "github.com/paymcp/paymcp-go"
)

const walleotBaseURL = "https://api.walleot.com/v1"

// Walleot creates Walleot payment sessions
type Walleot struct {
	client *client
	cfg    Config
}

// NewWalleot creates a Walleot adapter
func NewWalleot(cfg Config) (*Walleot, error) {
	if cfg.APIKey == "" {
		return nil, paymcp.NewValidationError("api_key", "is required for walleot")
	}
	return &Walleot{client: newClient("walleot", walleotBaseURL, cfg), cfg: cfg}, nil
}

// Name implements paymcp.Provider
func (w *Walleot) Name() string { return "walleot" }

// CreatePayment implements paymcp.Provider
func (w *Walleot) CreatePayment(ctx context.Context, amount float64, currency, description string) (paymcp.CreatePaymentResult, error) {
	if err := validateCreate(amount, currency, description); err != nil {
		return paymcp.CreatePaymentResult{}, err
	}
	body := map[string]interface{}{
		"amount":      minorUnits(amount, currency),
		"currency":    strings.ToLower(currency),
		"description": description,
	}
	var out struct {
		SessionID string `json:"sessionId"`
		URL       string `json:"url"`
	}
	_, err := w.client.do(ctx, "create payment", func(r *resty.Request) (*resty.Response, error) {
		return r.SetAuthToken(w.cfg.APIKey).SetBody(body).SetResult(&out).Post("/sessions")
	})
	if err != nil {
		return paymcp.CreatePaymentResult{}, err
	}
	if out.SessionID == "" || out.URL == "" {
		return paymcp.CreatePaymentResult{}, malformed(w.Name(), "create payment", "sessionId or url")
	}
	return paymcp.CreatePaymentResult{PaymentID: out.SessionID, PaymentURL: out.URL}, nil
}

// GetPaymentStatus implements paymcp.Provider
func (w *Walleot) GetPaymentStatus(ctx context.Context, paymentID string) (string, error) {
	if err := validatePaymentID(paymentID); err != nil {
		return "", err
	}
	var out struct {
		Status string `json:"status"`
	}
	_, err := w.client.do(ctx, "get payment status", func(r *resty.Request) (*resty.Response, error) {
		return r.SetAuthToken(w.cfg.APIKey).SetResult(&out).SetPathParam("id", paymentID).Get("/sessions/{id}")
	})
	if err != nil {
		return "", err
	}
	return strings.ToLower(out.Status), nil
}

var _ paymcp.Provider = (*Walleot)(nil)
