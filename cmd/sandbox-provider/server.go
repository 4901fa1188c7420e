package main

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/paymcp/paymcp-go/providers"
)

const (
	statusPending  = "pending"
	statusPaid     = "paid"
	statusCanceled = "canceled"
)

type payment struct {
	providers.SandboxPayment
	CreatedAt time.Time
}

// sandbox holds payments in memory
type sandbox struct {
	publicURL string
	autoPay   time.Duration
	now       func() time.Time

	mu       sync.Mutex
	payments map[string]*payment
}

func newSandbox(publicURL string, autoPay time.Duration) *sandbox {
	return &sandbox{
		publicURL: strings.TrimRight(publicURL, "/"),
		autoPay:   autoPay,
		now:       time.Now,
		payments:  make(map[string]*payment),
	}
}

func (s *sandbox) routes() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.POST("/payments", s.createPayment)
	e.GET("/payments/:id", s.getPayment)
	e.GET("/pay/:id", s.payPage)
	e.POST("/pay/:id/complete", s.settle(statusPaid))
	e.POST("/pay/:id/cancel", s.settle(statusCanceled))
	return e
}

func (s *sandbox) createPayment(c echo.Context) error {
	var req providers.SandboxPayment
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payment request")
	}
	if req.Amount <= 0 || strings.TrimSpace(req.Currency) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "amount and currency are required")
	}

	id := "sbx_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	p := &payment{
		SandboxPayment: providers.SandboxPayment{
			ID:          id,
			URL:         fmt.Sprintf("%s/pay/%s", s.publicURL, id),
			Amount:      req.Amount,
			Currency:    strings.ToUpper(req.Currency),
			Description: req.Description,
			Status:      statusPending,
		},
		CreatedAt: s.now(),
	}
	s.mu.Lock()
	s.payments[id] = p
	s.mu.Unlock()
	return c.JSON(http.StatusCreated, p.SandboxPayment)
}

// lookup returns a snapshot of the payment, applying auto-pay first
func (s *sandbox) lookup(id string) (providers.SandboxPayment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return providers.SandboxPayment{}, false
	}
	if s.autoPay > 0 && p.Status == statusPending && s.now().Sub(p.CreatedAt) >= s.autoPay {
		p.Status = statusPaid
	}
	return p.SandboxPayment, true
}

func (s *sandbox) getPayment(c echo.Context) error {
	p, ok := s.lookup(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "payment not found")
	}
	return c.JSON(http.StatusOK, p)
}

func (s *sandbox) settle(status string) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Param("id")
		s.mu.Lock()
		p, ok := s.payments[id]
		if ok && p.Status == statusPending {
			p.Status = status
		}
		s.mu.Unlock()
		if !ok {
			return echo.NewHTTPError(http.StatusNotFound, "payment not found")
		}
		return c.Redirect(http.StatusSeeOther, "/pay/"+id)
	}
}

var payPageTemplate = template.Must(template.New("pay").Parse(`<!DOCTYPE html>
<html>
<head><title>Sandbox checkout</title></head>
<body>
<h1>{{.Description}}</h1>
<p>Amount: {{printf "%.2f" .Amount}} {{.Currency}}</p>
<p>Status: <strong>{{.Status}}</strong></p>
{{if eq .Status "pending"}}
<form method="post" action="/pay/{{.ID}}/complete"><button type="submit">Pay</button></form>
<form method="post" action="/pay/{{.ID}}/cancel"><button type="submit">Cancel</button></form>
{{else}}
<p>You can return to your assistant now.</p>
{{end}}
</body>
</html>
`))

func (s *sandbox) payPage(c echo.Context) error {
	p, ok := s.lookup(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "payment not found")
	}
	var b strings.Builder
	if err := payPageTemplate.Execute(&b, p); err != nil {
		return err
	}
	return c.HTML(http.StatusOK, b.String())
}
