package providers

import (
	"context"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	paymcp "github.com/paymcp/paymcp-go"
)

const (
	squareLiveURL    = "https://connect.squareup.com"
	squareSandboxURL = "https://connect.squareupsandbox.com"
	squareVersion    = "2025-01-23"
)

// Square creates quick-pay Payment Links; status comes from the link's order
type Square struct {
	client *client
	cfg    Config
}

// NewSquare creates a Square adapter. cfg.APIKey is the access token.
func NewSquare(cfg Config) (*Square, error) {
	if cfg.APIKey == "" {
		return nil, paymcp.NewValidationError("api_key", "is required for square")
	}
	if cfg.LocationID == "" {
		return nil, paymcp.NewValidationError("location_id", "is required for square")
	}
	base := squareLiveURL
	if cfg.Sandbox {
		base = squareSandboxURL
	}
	return &Square{client: newClient("square", base, cfg), cfg: cfg}, nil
}

// Name implements paymcp.Provider
func (s *Square) Name() string { return "square" }

type squarePaymentLink struct {
	PaymentLink struct {
		ID      string `json:"id"`
		URL     string `json:"url"`
		OrderID string `json:"order_id"`
	} `json:"payment_link"`
}

func (s *Square) request(r *resty.Request) *resty.Request {
	return r.SetAuthToken(s.cfg.APIKey).SetHeader("Square-Version", squareVersion)
}

// CreatePayment implements paymcp.Provider. The payment id is the payment link id.
func (s *Square) CreatePayment(ctx context.Context, amount float64, currency, description string) (paymcp.CreatePaymentResult, error) {
	if err := validateCreate(amount, currency, description); err != nil {
		return paymcp.CreatePaymentResult{}, err
	}
	body := map[string]interface{}{
		"idempotency_key": uuid.NewString(),
		"quick_pay": map[string]interface{}{
			"name":        description,
			"location_id": s.cfg.LocationID,
			"price_money": map[string]interface{}{
				"amount":   minorUnits(amount, currency),
				"currency": strings.ToUpper(currency),
			},
		},
		"checkout_options": map[string]string{"redirect_url": s.cfg.successURL()},
	}
	var out squarePaymentLink
	_, err := s.client.do(ctx, "create payment", func(r *resty.Request) (*resty.Response, error) {
		return s.request(r).SetBody(body).SetResult(&out).Post("/v2/online-checkout/payment-links")
	})
	if err != nil {
		return paymcp.CreatePaymentResult{}, err
	}
	if out.PaymentLink.ID == "" || out.PaymentLink.URL == "" {
		return paymcp.CreatePaymentResult{}, malformed(s.Name(), "create payment", "payment_link")
	}
	return paymcp.CreatePaymentResult{PaymentID: out.PaymentLink.ID, PaymentURL: out.PaymentLink.URL}, nil
}

// GetPaymentStatus implements paymcp.Provider. It returns the state of the order
// behind the payment link: OPEN, COMPLETED or CANCELED.
func (s *Square) GetPaymentStatus(ctx context.Context, paymentID string) (string, error) {
	if err := validatePaymentID(paymentID); err != nil {
		return "", err
	}
	var link squarePaymentLink
	_, err := s.client.do(ctx, "get payment link", func(r *resty.Request) (*resty.Response, error) {
		return s.request(r).SetResult(&link).SetPathParam("id", paymentID).Get("/v2/online-checkout/payment-links/{id}")
	})
	if err != nil {
		return "", err
	}
	if link.PaymentLink.OrderID == "" {
		return "", malformed(s.Name(), "get payment link", "order_id")
	}

	var order struct {
		Order struct {
			State string `json:"state"`
		} `json:"order"`
	}
	_, err = s.client.do(ctx, "get payment status", func(r *resty.Request) (*resty.Response, error) {
		return s.request(r).SetResult(&order).SetPathParam("id", link.PaymentLink.OrderID).Get("/v2/orders/{id}")
	})
	if err != nil {
		return "", err
	}
	return order.Order.State, nil
}

var _ paymcp.Provider = (*Square)(nil)
