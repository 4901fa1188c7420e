package providers

import (
	"context"
	"strings"

	"github.com/go-resty/resty/v2"

	paymcp "github.com/paymcp/paymcp-go"
)

const (
	coinbaseBaseURL    = "https://api.commerce.coinbase.com"
	coinbaseAPIVersion = "2018-03-22"
)

// Coinbase creates Coinbase Commerce charges
type Coinbase struct {
	client *client
	cfg    Config
}

// NewCoinbase creates a Coinbase Commerce adapter
func NewCoinbase(cfg Config) (*Coinbase, error) {
	if cfg.APIKey == "" {
		return nil, paymcp.NewValidationError("api_key", "is required for coinbase")
	}
	return &Coinbase{client: newClient("coinbase", coinbaseBaseURL, cfg), cfg: cfg}, nil
}

// Name implements paymcp.Provider
func (c *Coinbase) Name() string { return "coinbase" }

type coinbaseCharge struct {
	Data struct {
		Code      string `json:"code"`
		HostedURL string `json:"hosted_url"`
		Timeline  []struct {
			Status string `json:"status"`
		} `json:"timeline"`
	} `json:"data"`
}

func (c *Coinbase) request(r *resty.Request) *resty.Request {
	return r.SetHeader("X-CC-Api-Key", c.cfg.APIKey).SetHeader("X-CC-Version", coinbaseAPIVersion)
}

// CreatePayment implements paymcp.Provider. The payment id is the charge code.
func (c *Coinbase) CreatePayment(ctx context.Context, amount float64, currency, description string) (paymcp.CreatePaymentResult, error) {
	if err := validateCreate(amount, currency, description); err != nil {
		return paymcp.CreatePaymentResult{}, err
	}
	body := map[string]interface{}{
		"name":         description,
		"description":  description,
		"pricing_type": "fixed_price",
		"local_price": map[string]string{
			"amount":   decimalString(amount),
			"currency": strings.ToUpper(currency),
		},
		"redirect_url": c.cfg.successURL(),
		"cancel_url":   c.cfg.cancelURL(),
	}
	var out coinbaseCharge
	_, err := c.client.do(ctx, "create payment", func(r *resty.Request) (*resty.Response, error) {
		return c.request(r).SetBody(body).SetResult(&out).Post("/charges")
	})
	if err != nil {
		return paymcp.CreatePaymentResult{}, err
	}
	if out.Data.Code == "" || out.Data.HostedURL == "" {
		return paymcp.CreatePaymentResult{}, malformed(c.Name(), "create payment", "code or hosted_url")
	}
	return paymcp.CreatePaymentResult{PaymentID: out.Data.Code, PaymentURL: out.Data.HostedURL}, nil
}

// GetPaymentStatus implements paymcp.Provider. The latest timeline entry decides:
// COMPLETED and RESOLVED are paid, EXPIRED and CANCELED are canceled.
func (c *Coinbase) GetPaymentStatus(ctx context.Context, paymentID string) (string, error) {
	if err := validatePaymentID(paymentID); err != nil {
		return "", err
	}
	var out coinbaseCharge
	_, err := c.client.do(ctx, "get payment status", func(r *resty.Request) (*resty.Response, error) {
		return c.request(r).SetResult(&out).SetPathParam("code", paymentID).Get("/charges/{code}")
	})
	if err != nil {
		return "", err
	}
	if len(out.Data.Timeline) == 0 {
		return "pending", nil
	}
	switch latest := out.Data.Timeline[len(out.Data.Timeline)-1].Status; latest {
	case "COMPLETED", "RESOLVED":
		return "paid", nil
	case "EXPIRED", "CANCELED":
		return "canceled", nil
	default:
		return latest, nil
	}
}

var _ paymcp.Provider = (*Coinbase)(nil)
