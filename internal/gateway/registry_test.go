package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedAdapter struct{ name string }

func (a *namedAdapter) Initialize(context.Context, InitRequest) (InitResult, error) {
	return InitResult{Success: true}, nil
}

func (a *namedAdapter) Name() string { return a.name }

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	a := &namedAdapter{name: "cardpay"}
	r.Register(a)

	got, err := r.Lookup("cardpay")
	require.NoError(t, err)
	assert.Same(t, Adapter(a), got)
}

func TestRegistry_LookupUnknown(t *testing.T) {
	r := NewRegistry()
	_, err := r.Lookup("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}

func TestRegistry_DuplicateReplaces(t *testing.T) {
	r := NewRegistry()
	first := &namedAdapter{name: "cardpay"}
	second := &namedAdapter{name: "cardpay"}
	r.Register(first)
	r.Register(second)

	got, err := r.Lookup("cardpay")
	require.NoError(t, err)
	assert.Same(t, Adapter(second), got)
}

func TestRegistry_RegisterNilPanics(t *testing.T) {
	r := NewRegistry()
	assert.Panics(t, func() { r.Register(nil) })
}

func TestRegistry_NamesSorted(t *testing.T) {
	r := NewRegistry()
	r.Register(&namedAdapter{name: "walletconnect"})
	r.Register(&namedAdapter{name: "basepay"})
	r.Register(&namedAdapter{name: "cardpay"})

	assert.Equal(t, []string{"basepay", "cardpay", "walletconnect"}, r.Names())
}
