package providers

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	paymcp "github.com/paymcp/paymcp-go"
)

const (
	paypalLiveURL    = "https://api-m.paypal.com"
	paypalSandboxURL = "https://api-m.sandbox.paypal.com"
)

// PayPal creates Orders v2 orders and captures them once the buyer approves
type PayPal struct {
	client *client
	cfg    Config

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
	now         func() time.Time
}

// NewPayPal creates a PayPal adapter from a REST app's client id and secret
func NewPayPal(cfg Config) (*PayPal, error) {
	if cfg.ClientID == "" {
		return nil, paymcp.NewValidationError("client_id", "is required for paypal")
	}
	if cfg.ClientSecret == "" {
		return nil, paymcp.NewValidationError("client_secret", "is required for paypal")
	}
	base := paypalLiveURL
	if cfg.Sandbox {
		base = paypalSandboxURL
	}
	return &PayPal{client: newClient("paypal", base, cfg), cfg: cfg, now: time.Now}, nil
}

// Name implements paymcp.Provider
func (p *PayPal) Name() string { return "paypal" }

type paypalOrder struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []struct {
		Href string `json:"href"`
		Rel  string `json:"rel"`
	} `json:"links"`
}

// accessToken returns a cached OAuth token, fetching a new one shortly before expiry
func (p *PayPal) accessToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token != "" && p.now().Before(p.tokenExpiry) {
		return p.token, nil
	}

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	_, err := p.client.do(ctx, "authenticate", func(r *resty.Request) (*resty.Response, error) {
		return r.SetBasicAuth(p.cfg.ClientID, p.cfg.ClientSecret).
			SetFormData(map[string]string{"grant_type": "client_credentials"}).
			SetResult(&out).
			Post("/v1/oauth2/token")
	})
	if err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", malformed(p.Name(), "authenticate", "access_token")
	}
	ttl := time.Duration(out.ExpiresIn)*time.Second - time.Minute
	if ttl < 0 {
		ttl = 0
	}
	p.token = out.AccessToken
	p.tokenExpiry = p.now().Add(ttl)
	return p.token, nil
}

// CreatePayment implements paymcp.Provider. The payment URL is the order's approve link.
func (p *PayPal) CreatePayment(ctx context.Context, amount float64, currency, description string) (paymcp.CreatePaymentResult, error) {
	if err := validateCreate(amount, currency, description); err != nil {
		return paymcp.CreatePaymentResult{}, err
	}
	token, err := p.accessToken(ctx)
	if err != nil {
		return paymcp.CreatePaymentResult{}, err
	}

	body := map[string]interface{}{
		"intent": "CAPTURE",
		"purchase_units": []map[string]interface{}{{
			"amount": map[string]string{
				"currency_code": strings.ToUpper(currency),
				"value":         decimalString(amount),
			},
			"description": description,
		}},
		"application_context": map[string]string{
			"return_url":  p.cfg.successURL(),
			"cancel_url":  p.cfg.cancelURL(),
			"user_action": "PAY_NOW",
		},
	}
	var out paypalOrder
	_, err = p.client.do(ctx, "create payment", func(r *resty.Request) (*resty.Response, error) {
		return r.SetAuthToken(token).SetBody(body).SetResult(&out).Post("/v2/checkout/orders")
	})
	if err != nil {
		return paymcp.CreatePaymentResult{}, err
	}
	for _, link := range out.Links {
		if link.Rel == "approve" || link.Rel == "payer-action" {
			return paymcp.CreatePaymentResult{PaymentID: out.ID, PaymentURL: link.Href}, nil
		}
	}
	return paymcp.CreatePaymentResult{}, malformed(p.Name(), "create payment", "approve link")
}

// GetPaymentStatus implements paymcp.Provider. An APPROVED order is captured here,
// so a buyer who approved reports COMPLETED without a separate capture step.
func (p *PayPal) GetPaymentStatus(ctx context.Context, paymentID string) (string, error) {
	if err := validatePaymentID(paymentID); err != nil {
		return "", err
	}
	token, err := p.accessToken(ctx)
	if err != nil {
		return "", err
	}

	var order paypalOrder
	_, err = p.client.do(ctx, "get payment status", func(r *resty.Request) (*resty.Response, error) {
		return r.SetAuthToken(token).SetResult(&order).SetPathParam("id", paymentID).Get("/v2/checkout/orders/{id}")
	})
	if err != nil {
		return "", err
	}
	if order.Status != "APPROVED" {
		return order.Status, nil
	}

	var captured paypalOrder
	_, err = p.client.do(ctx, "capture payment", func(r *resty.Request) (*resty.Response, error) {
		return r.SetAuthToken(token).
			SetHeader("Content-Type", "application/json").
			SetBody(map[string]interface{}{}).
			SetResult(&captured).
			SetPathParam("id", paymentID).
			Post("/v2/checkout/orders/{id}/capture")
	})
	if err != nil {
		return "", err
	}
	return captured.Status, nil
}

var _ paymcp.Provider = (*PayPal)(nil)
