package flows

import (
	"fmt"
	"sort"
	"sync"

	paymcp "github.com/paymcp/paymcp-go"
)

// Factory builds a Flow from its collaborators
type Factory func(deps Deps, opts ...Option) (Flow, error)

var (
	registryMu sync.RWMutex
	registry   = map[paymcp.Mode]Factory{
		paymcp.ModeTwoStep: func(deps Deps, opts ...Option) (Flow, error) {
			return NewTwoStep(deps, opts...)
		},
		paymcp.ModeElicitation: func(deps Deps, opts ...Option) (Flow, error) {
			return NewElicitation(deps, opts...)
		},
		paymcp.ModeProgress: func(deps Deps, opts ...Option) (Flow, error) {
			return NewProgress(deps, opts...)
		},
	}
)

// Register makes a flow available under mode, replacing any previous factory
func Register(mode paymcp.Mode, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[mode] = factory
}

// New builds the flow registered under mode
func New(mode paymcp.Mode, deps Deps, opts ...Option) (Flow, error) {
	if mode == "" {
		mode = paymcp.ModeTwoStep
	}
	registryMu.RLock()
	factory, ok := registry[mode]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown payment flow %q (available: %v)", mode, Modes())
	}
	return factory(deps, opts...)
}

// Modes lists the registered flow names in sorted order
func Modes() []paymcp.Mode {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]paymcp.Mode, 0, len(registry))
	for m := range registry {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
