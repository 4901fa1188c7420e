package flows

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	paymcp "github.com/paymcp/paymcp-go"
	mockprovider "github.com/paymcp/paymcp-go/test/mocks/provider"
	mocktransport "github.com/paymcp/paymcp-go/test/mocks/transport"
)

type passthroughFlow struct{}

func (passthroughFlow) Mode() paymcp.Mode { return "free" }

func (passthroughFlow) Wrap(tool paymcp.GuardedTool, handler paymcp.ToolHandler) (paymcp.ToolHandler, error) {
	return handler, nil
}

func TestNewSelectsBuiltinFlows(t *testing.T) {
	deps := Deps{Provider: mockprovider.New(), Registrar: mocktransport.NewRegistrar()}

	for _, mode := range []paymcp.Mode{paymcp.ModeTwoStep, paymcp.ModeElicitation, paymcp.ModeProgress} {
		flow, err := New(mode, deps)
		require.NoError(t, err, mode)
		assert.Equal(t, mode, flow.Mode())
	}

	flow, err := New("", deps)
	require.NoError(t, err)
	assert.Equal(t, paymcp.ModeTwoStep, flow.Mode())
}

func TestNewUnknownMode(t *testing.T) {
	_, err := New("workflow", Deps{Provider: mockprovider.New()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workflow")
}

func TestNewRequiresProvider(t *testing.T) {
	_, err := New(paymcp.ModeProgress, Deps{})
	assert.Error(t, err)
}

func TestRegisterCustomFlow(t *testing.T) {
	Register("free", func(deps Deps, opts ...Option) (Flow, error) {
		return passthroughFlow{}, nil
	})
	t.Cleanup(func() {
		registryMu.Lock()
		delete(registry, "free")
		registryMu.Unlock()
	})

	assert.Contains(t, Modes(), paymcp.Mode("free"))
	flow, err := New("free", Deps{})
	require.NoError(t, err)

	wrapped, err := flow.Wrap(paymcp.GuardedTool{Name: "t"}, func(ctx context.Context, call *paymcp.ToolCall) (*paymcp.ToolResult, error) {
		return paymcp.TextResult("ok"), nil
	})
	require.NoError(t, err)
	res, err := wrapped(context.Background(), &paymcp.ToolCall{})
	require.NoError(t, err)
	assert.True(t, res.HasText())
}

func TestWrapRejectsInvalidPrice(t *testing.T) {
	flow, err := NewProgress(Deps{Provider: mockprovider.New()})
	require.NoError(t, err)
	_, err = flow.Wrap(paymcp.GuardedTool{Name: "t", Price: paymcp.Price{Amount: 0, Currency: "usd"}}, nil)
	require.Error(t, err)
	assert.True(t, paymcp.IsErrorCode(err, paymcp.ErrCodeInvalidInput))
}
