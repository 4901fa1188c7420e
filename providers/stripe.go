package providers

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	paymcp "github.com/paymcp/paymcp-go"
)

const stripeBaseURL = "https://api.stripe.com"

// Stripe creates Checkout Sessions
type Stripe struct {
	client *client
	cfg    Config
}

// NewStripe creates a Stripe adapter. cfg.APIKey is the secret key.
func NewStripe(cfg Config) (*Stripe, error) {
	if cfg.APIKey == "" {
		return nil, paymcp.NewValidationError("api_key", "is required for stripe")
	}
	return &Stripe{client: newClient("stripe", stripeBaseURL, cfg), cfg: cfg}, nil
}

// Name implements paymcp.Provider
func (s *Stripe) Name() string { return "stripe" }

type stripeSession struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
}

// CreatePayment implements paymcp.Provider
func (s *Stripe) CreatePayment(ctx context.Context, amount float64, currency, description string) (paymcp.CreatePaymentResult, error) {
	if err := validateCreate(amount, currency, description); err != nil {
		return paymcp.CreatePaymentResult{}, err
	}
	form := map[string]string{
		"mode":        "payment",
		"success_url": s.cfg.successURL() + "?session_id={CHECKOUT_SESSION_ID}",
		"cancel_url":  s.cfg.cancelURL(),

		"line_items[0][quantity]":                       "1",
		"line_items[0][price_data][currency]":           strings.ToLower(currency),
		"line_items[0][price_data][unit_amount]":        strconv.FormatInt(minorUnits(amount, currency), 10),
		"line_items[0][price_data][product_data][name]": description,
	}

	var out stripeSession
	_, err := s.client.do(ctx, "create payment", func(r *resty.Request) (*resty.Response, error) {
		return r.SetAuthToken(s.cfg.APIKey).SetFormData(form).SetResult(&out).Post("/v1/checkout/sessions")
	})
	if err != nil {
		return paymcp.CreatePaymentResult{}, err
	}
	if out.ID == "" || out.URL == "" {
		return paymcp.CreatePaymentResult{}, malformed(s.Name(), "create payment", "id or url")
	}
	return paymcp.CreatePaymentResult{PaymentID: out.ID, PaymentURL: out.URL}, nil
}

// GetPaymentStatus implements paymcp.Provider. A paid session reports "paid", an
// expired one "canceled"; otherwise the session's payment_status is returned.
func (s *Stripe) GetPaymentStatus(ctx context.Context, paymentID string) (string, error) {
	if err := validatePaymentID(paymentID); err != nil {
		return "", err
	}
	var out stripeSession
	_, err := s.client.do(ctx, "get payment status", func(r *resty.Request) (*resty.Response, error) {
		return r.SetAuthToken(s.cfg.APIKey).SetResult(&out).SetPathParam("id", paymentID).Get("/v1/checkout/sessions/{id}")
	})
	if err != nil {
		return "", err
	}
	switch {
	case out.PaymentStatus == "paid" || out.PaymentStatus == "no_payment_required":
		return out.PaymentStatus, nil
	case out.Status == "expired":
		return "canceled", nil
	case out.PaymentStatus != "":
		return out.PaymentStatus, nil
	}
	return out.Status, nil
}

var _ paymcp.Provider = (*Stripe)(nil)
