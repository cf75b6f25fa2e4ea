package llm

import (
	"context"
	"fmt"
)

// Gate admits outbound provider calls. ratelimit.Limiter satisfies it.
type Gate interface {
	Acquire(ctx context.Context, resource string) error
	Release(resource string)
}

// Gated wraps a provider so every Chat call spends one gate token for
// the named resource. A nil gate returns the provider unchanged.
func Gated(p Provider, gate Gate, resource string) Provider {
	if gate == nil {
		return p
	}
	return &gated{inner: p, gate: gate, resource: resource}
}

type gated struct {
	inner    Provider
	gate     Gate
	resource string
}

func (g *gated) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if err := g.gate.Acquire(ctx, g.resource); err != nil {
		return nil, fmt.Errorf("rate limit %s: %w", g.resource, err)
	}
	defer g.gate.Release(g.resource)
	return g.inner.Chat(ctx, req)
}
