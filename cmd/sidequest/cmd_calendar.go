package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"sidequest/calendar"
	"sidequest/httpapi"
	"sidequest/metrics"
	"sidequest/shutdown"
)

var calendarCmd = &cobra.Command{
	Use:   "calendar",
	Short: "Run the calendar agent",
	Long: `The calendar agent creates Google Calendar events on the configured
calendar, authenticated as a service account. It needs
GOOGLE_CREDENTIALS_PATH pointing at a service account key and
GOOGLE_CALENDAR_ID naming the target calendar.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srv, err := buildCalendar(ctx)
		if err != nil {
			return err
		}
		return runServers(ctx, shutdown.NewCoordinator(logger), srv)
	},
}

func buildCalendar(ctx context.Context) (*httpapi.Server, error) {
	svc, err := calendar.NewService(ctx, cfg.Calendar.CredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("calendar service: %w", err)
	}
	sched, err := calendar.NewScheduler(svc, calendar.Config{
		CalendarID: cfg.Calendar.CalendarID,
		Timezone:   cfg.Calendar.Timezone,
	}, logger)
	if err != nil {
		return nil, err
	}

	srv := httpapi.NewServer(httpapi.Options{
		Agent:          "calendar-agent",
		Addr:           cfg.Calendar.Addr,
		Logger:         logger,
		Metrics:        metrics.New(),
		RequestTimeout: cfg.Calendar.RequestTimeout,
	})
	httpapi.CalendarHandlers{Scheduler: sched}.Register(srv)
	return srv, nil
}
