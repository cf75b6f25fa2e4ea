package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sidequest/httpapi"
	"sidequest/shutdown"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run every configured agent in one process",
	Long: `serve starts the xp agent plus every other agent whose credentials
are present, each on its own port, with one shared shutdown sequence.
Agents missing credentials are skipped with a warning rather than
blocking the rest.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		co := shutdown.NewCoordinator(logger)
		gate := newProviderGate(co)

		xpSrv, err := buildXP(ctx, co, gate)
		if err != nil {
			return fmt.Errorf("xp agent: %w", err)
		}
		servers := []*httpapi.Server{xpSrv}

		optional := []struct {
			name  string
			build func() (*httpapi.Server, error)
		}{
			{"calendar", func() (*httpapi.Server, error) { return buildCalendar(ctx) }},
			{"email", func() (*httpapi.Server, error) { return buildEmail(gate) }},
			{"research", func() (*httpapi.Server, error) { return buildResearch(gate) }},
		}
		for _, agent := range optional {
			srv, err := agent.build()
			if err != nil {
				logger.Warn("agent not started",
					zap.String("agent", agent.name),
					zap.Error(err))
				continue
			}
			servers = append(servers, srv)
		}

		return runServers(ctx, co, servers...)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&dev, "dev", false, "run the xp agent on in-memory backends, no credentials needed")
}
