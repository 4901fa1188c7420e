package providers

import (
	"context"

	"github.com/go-resty/resty/v2"

	paymcp "github.com/paymcp/paymcp-go"
)

const sandboxBaseURL = "http://localhost:8402"

// Sandbox talks to the local sandbox-provider server, a hosted checkout emulator
// for development and demos
type Sandbox struct {
	client *client
}

// NewSandbox creates a sandbox adapter. cfg.BaseURL defaults to http://localhost:8402.
func NewSandbox(cfg Config) (*Sandbox, error) {
	return &Sandbox{client: newClient("sandbox", sandboxBaseURL, cfg)}, nil
}

// Name implements paymcp.Provider
func (s *Sandbox) Name() string { return "sandbox" }

// SandboxPayment is the sandbox server's payment representation
type SandboxPayment struct {
	ID          string  `json:"id"`
	URL         string  `json:"url"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
}

// CreatePayment implements paymcp.Provider
func (s *Sandbox) CreatePayment(ctx context.Context, amount float64, currency, description string) (paymcp.CreatePaymentResult, error) {
	if err := validateCreate(amount, currency, description); err != nil {
		return paymcp.CreatePaymentResult{}, err
	}
	var out SandboxPayment
	_, err := s.client.do(ctx, "create payment", func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(SandboxPayment{Amount: amount, Currency: currency, Description: description}).
			SetResult(&out).
			Post("/payments")
	})
	if err != nil {
		return paymcp.CreatePaymentResult{}, err
	}
	if out.ID == "" {
		return paymcp.CreatePaymentResult{}, malformed(s.Name(), "create payment", "id")
	}
	return paymcp.CreatePaymentResult{PaymentID: out.ID, PaymentURL: out.URL}, nil
}

// GetPaymentStatus implements paymcp.Provider
func (s *Sandbox) GetPaymentStatus(ctx context.Context, paymentID string) (string, error) {
	if err := validatePaymentID(paymentID); err != nil {
		return "", err
	}
	var out SandboxPayment
	_, err := s.client.do(ctx, "get payment status", func(r *resty.Request) (*resty.Response, error) {
		return r.SetResult(&out).SetPathParam("id", paymentID).Get("/payments/{id}")
	})
	if err != nil {
		return "", err
	}
	return out.Status, nil
}

var _ paymcp.Provider = (*Sandbox)(nil)
