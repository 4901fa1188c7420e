// Package provider contains a scripted payment provider for flow tests.
package provider

import (
	"context"
	"fmt"
	"sync"

	paymcp "github.com/paymcp/paymcp-go"
)

// Provider is an in-memory paymcp.Provider. Each status check pops the next status
// from the script for that payment; the last scripted status repeats once exhausted.
type Provider struct {
	mu       sync.Mutex
	name     string
	next     int
	urlBase  string
	scripts  map[string][]string
	fallback []string
	created  []Payment
	checks   map[string]int

	// CreateErr, when set, is returned by CreatePayment
	CreateErr error
	// StatusErr, when set, is returned by GetPaymentStatus
	StatusErr error
}

// Payment records one CreatePayment call
type Payment struct {
	ID          string
	Amount      float64
	Currency    string
	Description string
}

// New creates a provider whose payments report the given statuses in order.
// With no statuses every payment stays "pending".
func New(statuses ...string) *Provider {
	if len(statuses) == 0 {
		statuses = []string{"pending"}
	}
	return &Provider{
		name:     "mock",
		urlBase:  "https://pay.example/",
		scripts:  make(map[string][]string),
		fallback: statuses,
		checks:   make(map[string]int),
	}
}

// Name implements paymcp.Provider
func (p *Provider) Name() string {
	return p.name
}

// CreatePayment implements paymcp.Provider. Ids are PAY-1, PAY-2, ...
func (p *Provider) CreatePayment(ctx context.Context, amount float64, currency, description string) (paymcp.CreatePaymentResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.CreateErr != nil {
		return paymcp.CreatePaymentResult{}, p.CreateErr
	}
	p.next++
	id := fmt.Sprintf("PAY-%d", p.next)
	p.created = append(p.created, Payment{ID: id, Amount: amount, Currency: currency, Description: description})
	if _, ok := p.scripts[id]; !ok {
		p.scripts[id] = append([]string(nil), p.fallback...)
	}
	return paymcp.CreatePaymentResult{PaymentID: id, PaymentURL: p.urlBase + id}, nil
}

// GetPaymentStatus implements paymcp.Provider
func (p *Provider) GetPaymentStatus(ctx context.Context, paymentID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.checks[paymentID]++
	if p.StatusErr != nil {
		return "", p.StatusErr
	}
	script, ok := p.scripts[paymentID]
	if !ok {
		return "", fmt.Errorf("payment %s not found", paymentID)
	}
	status := script[0]
	if len(script) > 1 {
		p.scripts[paymentID] = script[1:]
	}
	return status, nil
}

// SetStatus replaces the script for a payment id, including ids not created here
func (p *Provider) SetStatus(paymentID string, statuses ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scripts[paymentID] = append([]string(nil), statuses...)
}

// SetStatusErr sets or clears the status check error
func (p *Provider) SetStatusErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StatusErr = err
}

// Created returns the payments created so far
func (p *Provider) Created() []Payment {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Payment(nil), p.created...)
}

// CreateCount returns how many payments were created
func (p *Provider) CreateCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.created)
}

// StatusChecks returns how many times a payment's status was requested
func (p *Provider) StatusChecks(paymentID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.checks[paymentID]
}

var _ paymcp.Provider = (*Provider)(nil)
