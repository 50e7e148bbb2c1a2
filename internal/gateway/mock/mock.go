// Package mock provides a gateway adapter test double.
package mock

import (
	"context"

	"github.com/google/uuid"
	"github.com/yourorg/checkout-orchestrator/internal/gateway"
)

// Adapter is a configurable gateway.Adapter for tests. When InitializeFunc
// is unset it succeeds with a fresh reference and a redirect activation.
type Adapter struct {
	NameValue      string
	InitializeFunc func(ctx context.Context, req gateway.InitRequest) (gateway.InitResult, error)
}

// NewAdapter creates a mock adapter with the given name.
func NewAdapter(name string) *Adapter {
	return &Adapter{NameValue: name}
}

func (m *Adapter) Name() string { return m.NameValue }

func (m *Adapter) Initialize(ctx context.Context, req gateway.InitRequest) (gateway.InitResult, error) {
	if m.InitializeFunc != nil {
		return m.InitializeFunc(ctx, req)
	}
	return gateway.InitResult{
		Success:   true,
		Reference: uuid.NewString(),
		Activation: &gateway.Activation{
			Kind: gateway.ActivationRedirect,
			URL:  "https://pay.example.test/" + req.OrderID,
		},
	}, nil
}
