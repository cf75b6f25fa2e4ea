package main

import (
	"context"
	"time"

	"sidequest/config"
	"sidequest/httpapi"
	"sidequest/llm"
	"sidequest/ratelimit"
	"sidequest/shutdown"
)

// shutdownGrace bounds how long a stopping process waits for drains.
const shutdownGrace = 15 * time.Second

// providerRPM caps outbound calls per LLM provider per minute.
const providerRPM = 60

// runServers starts every server, waits for a termination signal or the
// first server failure, then runs the coordinator's phases.
func runServers(ctx context.Context, co *shutdown.Coordinator, servers ...*httpapi.Server) error {
	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		co.Register(srv.Agent(), shutdown.PhaseServers, srv.Shutdown)
		go func() { errCh <- srv.Start() }()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case runErr = <-errCh:
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := co.Shutdown(sctx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// newProviderGate builds the token bucket that paces outbound LLM calls,
// one bucket per provider, shared by every agent in the process.
func newProviderGate(co *shutdown.Coordinator) *ratelimit.Limiter {
	gate := ratelimit.New()
	for _, provider := range []string{"anthropic", "openai", "google", "groq"} {
		gate.SetCapacity(provider, providerRPM, time.Minute)
	}
	co.Register("provider gate", shutdown.PhaseSinks, func(context.Context) error {
		return gate.Close()
	})
	return gate
}

// newUseProvider builds a rate-gated provider from one configured use.
func newUseProvider(use config.LLMUse, gate *ratelimit.Limiter) (llm.Provider, error) {
	p, err := llm.NewProvider(llm.Config{
		Provider:  use.Provider,
		Model:     use.Model,
		APIKey:    use.APIKey,
		MaxTokens: use.MaxTokens,
	})
	if err != nil {
		return nil, err
	}
	return llm.Gated(p, gate, use.Provider), nil
}
