package providers

import (
	"context"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	paymcp "github.com/paymcp/paymcp-go"
)

const adyenTestURL = "https://checkout-test.adyen.com/v71"

// Adyen creates Pay by Link payment links
type Adyen struct {
	client *client
	cfg    Config
}

// NewAdyen creates an Adyen adapter. Live accounts must set cfg.BaseURL to their
// account-specific checkout endpoint.
func NewAdyen(cfg Config) (*Adyen, error) {
	if cfg.APIKey == "" {
		return nil, paymcp.NewValidationError("api_key", "is required for adyen")
	}
	if cfg.MerchantAccount == "" {
		return nil, paymcp.NewValidationError("merchant_account", "is required for adyen")
	}
	return &Adyen{client: newClient("adyen", adyenTestURL, cfg), cfg: cfg}, nil
}

// Name implements paymcp.Provider
func (a *Adyen) Name() string { return "adyen" }

type adyenLink struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Status string `json:"status"`
}

// CreatePayment implements paymcp.Provider
func (a *Adyen) CreatePayment(ctx context.Context, amount float64, currency, description string) (paymcp.CreatePaymentResult, error) {
	if err := validateCreate(amount, currency, description); err != nil {
		return paymcp.CreatePaymentResult{}, err
	}
	body := map[string]interface{}{
		"reference":       uuid.NewString(),
		"description":     description,
		"merchantAccount": a.cfg.MerchantAccount,
		"returnUrl":       a.cfg.successURL(),
		"amount": map[string]interface{}{
			"value":    minorUnits(amount, currency),
			"currency": strings.ToUpper(currency),
		},
	}
	var out adyenLink
	_, err := a.client.do(ctx, "create payment", func(r *resty.Request) (*resty.Response, error) {
		return r.SetHeader("X-API-Key", a.cfg.APIKey).SetBody(body).SetResult(&out).Post("/paymentLinks")
	})
	if err != nil {
		return paymcp.CreatePaymentResult{}, err
	}
	if out.ID == "" || out.URL == "" {
		return paymcp.CreatePaymentResult{}, malformed(a.Name(), "create payment", "id or url")
	}
	return paymcp.CreatePaymentResult{PaymentID: out.ID, PaymentURL: out.URL}, nil
}

// GetPaymentStatus implements paymcp.Provider. Link statuses are mapped onto the
// common vocabulary: completed is paid, expired is canceled.
func (a *Adyen) GetPaymentStatus(ctx context.Context, paymentID string) (string, error) {
	if err := validatePaymentID(paymentID); err != nil {
		return "", err
	}
	var out adyenLink
	_, err := a.client.do(ctx, "get payment status", func(r *resty.Request) (*resty.Response, error) {
		return r.SetHeader("X-API-Key", a.cfg.APIKey).SetResult(&out).SetPathParam("id", paymentID).Get("/paymentLinks/{id}")
	})
	if err != nil {
		return "", err
	}
	switch out.Status {
	case "completed":
		return "paid", nil
	case "expired":
		return "canceled", nil
	}
	return out.Status, nil
}

var _ paymcp.Provider = (*Adyen)(nil)
