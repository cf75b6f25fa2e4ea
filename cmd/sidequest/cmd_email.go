package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"sidequest/email"
	"sidequest/httpapi"
	"sidequest/llm"
	"sidequest/metrics"
	"sidequest/ratelimit"
	"sidequest/shutdown"
)

var emailCmd = &cobra.Command{
	Use:   "email",
	Short: "Run the email agent",
	Long: `The email agent drafts an email from free-form context with an LLM
and sends it through Brevo. It needs a [brevo] api_key; without a
drafter key it still sends, using the context verbatim.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		co := shutdown.NewCoordinator(logger)
		srv, err := buildEmail(newProviderGate(co))
		if err != nil {
			return err
		}
		return runServers(ctx, co, srv)
	},
}

func buildEmail(gate *ratelimit.Limiter) (*httpapi.Server, error) {
	sender, err := email.NewBrevo(email.BrevoConfig{
		APIKey:      cfg.Email.BrevoAPIKey,
		BaseURL:     cfg.Email.BrevoBaseURL,
		SenderEmail: cfg.Email.SenderEmail,
		SenderName:  cfg.Email.SenderName,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("brevo sender: %w", err)
	}

	var drafter llm.Provider
	if cfg.Email.Drafter.APIKey == "" {
		logger.Warn("no drafter configured, drafts use the context verbatim")
	} else {
		drafter, err = newUseProvider(cfg.Email.Drafter, gate)
		if err != nil {
			return nil, fmt.Errorf("drafter provider: %w", err)
		}
	}

	agent, err := email.NewAgent(drafter, sender, logger)
	if err != nil {
		return nil, err
	}

	srv := httpapi.NewServer(httpapi.Options{
		Agent:          "email-agent",
		Addr:           cfg.Email.Addr,
		Logger:         logger,
		Metrics:        metrics.New(),
		RequestTimeout: cfg.Email.RequestTimeout,
	})
	httpapi.EmailHandlers{Agent: agent}.Register(srv)
	return srv, nil
}
