package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sidequest/httpapi"
	"sidequest/llm"
	"sidequest/metrics"
	"sidequest/ratelimit"
	"sidequest/research"
	"sidequest/shutdown"
)

var researchCmd = &cobra.Command{
	Use:   "research",
	Short: "Run the research agent",
	Long: `The research agent answers a query with a structured summary from
the primary model, falling back to the secondary model when the primary
fails. It needs at least the primary provider's API key.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		co := shutdown.NewCoordinator(logger)
		srv, err := buildResearch(newProviderGate(co))
		if err != nil {
			return err
		}
		return runServers(ctx, co, srv)
	},
}

func buildResearch(gate *ratelimit.Limiter) (*httpapi.Server, error) {
	primary, err := newUseProvider(cfg.Research.Primary, gate)
	if err != nil {
		return nil, fmt.Errorf("research provider: %w", err)
	}

	var fallback llm.Provider
	if fb, err := newUseProvider(cfg.Research.Fallback, gate); err == nil {
		fallback = fb
	} else {
		logger.Warn("research fallback unavailable", zap.Error(err))
	}

	agent, err := research.NewAgent(primary, fallback, logger)
	if err != nil {
		return nil, err
	}

	srv := httpapi.NewServer(httpapi.Options{
		Agent:          "research-agent",
		Addr:           cfg.Research.Addr,
		Logger:         logger,
		Metrics:        metrics.New(),
		RequestTimeout: cfg.Research.RequestTimeout,
	})
	httpapi.ResearchHandlers{Agent: agent}.Register(srv)
	return srv, nil
}
