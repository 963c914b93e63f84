package provider

import (
	"context"

	"github.com/sweetpotato0/tutorgraph/message"
)

// Provider is the capability every agent handler is built on: given a
// conversation, produce the next assistant message. Implementations call out
// to an external generative model and may be slow or fail.
type Provider interface {
	Generate(ctx context.Context, messages []*message.Message) (*message.Message, error)
}

// Func adapts a plain function to the Provider interface.
type Func func(ctx context.Context, messages []*message.Message) (*message.Message, error)

// Generate implements Provider.
func (f Func) Generate(ctx context.Context, messages []*message.Message) (*message.Message, error) {
	return f(ctx, messages)
}
