package providers

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	paymcp "github.com/paymcp/paymcp-go"
)

// Builder constructs a provider from its configuration
type Builder func(cfg Config) (paymcp.Provider, error)

var (
	buildersMu sync.RWMutex
	builders   = map[string]Builder{
		"stripe":   func(cfg Config) (paymcp.Provider, error) { return NewStripe(cfg) },
		"paypal":   func(cfg Config) (paymcp.Provider, error) { return NewPayPal(cfg) },
		"square":   func(cfg Config) (paymcp.Provider, error) { return NewSquare(cfg) },
		"adyen":    func(cfg Config) (paymcp.Provider, error) { return NewAdyen(cfg) },
		"coinbase": func(cfg Config) (paymcp.Provider, error) { return NewCoinbase(cfg) },
		"walleot":  func(cfg Config) (paymcp.Provider, error) { return NewWalleot(cfg) },
		"sandbox":  func(cfg Config) (paymcp.Provider, error) { return NewSandbox(cfg) },
	}
)

// Register adds or replaces a provider builder
func Register(name string, builder Builder) {
	buildersMu.Lock()
	defer buildersMu.Unlock()
	builders[strings.ToLower(name)] = builder
}

// New builds the provider registered under name (case-insensitive)
func New(name string, cfg Config) (paymcp.Provider, error) {
	buildersMu.RLock()
	builder, ok := builders[strings.ToLower(strings.TrimSpace(name))]
	buildersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown payment provider %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return builder(cfg)
}

// FromConfig builds the provider named by cfg.Name
func FromConfig(cfg Config) (paymcp.Provider, error) {
	return New(cfg.Name, cfg)
}

// Names lists registered providers in sorted order
func Names() []string {
	buildersMu.RLock()
	defer buildersMu.RUnlock()
	names := make([]string, 0, len(builders))
	for n := range builders {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
