package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"sidequest/classify"
	"sidequest/httpapi"
	"sidequest/ledger"
	"sidequest/metrics"
	"sidequest/ratelimit"
	"sidequest/shutdown"
	"sidequest/taskstore"
	"sidequest/xp"
)

var xpCmd = &cobra.Command{
	Use:   "xp",
	Short: "Run the XP award agent",
	Long: `The xp agent scores completed tasks and awards experience points.
It reads open tasks from Notion, matches completion messages against
them with an LLM classifier (or a lexical heuristic when no key is
configured), marks the matched task done, and appends the award to the
configured ledger sinks.

With --dev it runs entirely in memory: a seeded task store, heuristic
matching, and no external sinks.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		co := shutdown.NewCoordinator(logger)
		gate := newProviderGate(co)
		srv, err := buildXP(ctx, co, gate)
		if err != nil {
			return err
		}
		return runServers(ctx, co, srv)
	},
}

func init() {
	xpCmd.Flags().BoolVar(&dev, "dev", false, "run on in-memory backends, no credentials needed")
}

func buildXP(ctx context.Context, co *shutdown.Coordinator, gate *ratelimit.Limiter) (*httpapi.Server, error) {
	reg := metrics.New()

	var store taskstore.Store
	if dev {
		logger.Warn("dev mode: using a seeded in-memory task store")
		store = devStore()
	} else {
		ns, err := taskstore.NewNotionStore(taskstore.NotionConfig{
			APIKey:     cfg.Notion.APIKey,
			DatabaseID: cfg.Notion.TaskDatabaseID,
			BaseURL:    cfg.Notion.BaseURL,
			Timeout:    cfg.Notion.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("task store: %w", err)
		}
		store = ns
	}

	var classifier classify.Classifier = classify.Null{}
	if dev || cfg.Classifier.APIKey == "" {
		logger.Warn("no classifier configured, matching is heuristic only")
	} else {
		provider, err := newUseProvider(cfg.Classifier, gate)
		if err != nil {
			return nil, fmt.Errorf("classifier provider: %w", err)
		}
		classifier = classify.NewLLM(provider, cfg.Classifier.Timeout, logger)
	}

	sinks, archive, err := buildLedger(ctx, co)
	if err != nil {
		return nil, err
	}

	zone, err := time.LoadLocation(cfg.XP.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %s: %w", cfg.XP.Timezone, err)
	}

	orch, err := xp.NewOrchestrator(xp.OrchestratorConfig{
		Store:   store,
		Matcher: xp.NewMatcher(classifier, reg, logger),
		Ledger:  sinks,
		Metrics: reg,
		Logger:  logger,
		Zone:    zone,
		Source:  cfg.XP.Source,
	})
	if err != nil {
		return nil, err
	}

	srv := httpapi.NewServer(httpapi.Options{
		Agent:          "xp-agent",
		Addr:           cfg.XP.Addr,
		Logger:         logger,
		Metrics:        reg,
		RequestTimeout: cfg.XP.RequestTimeout,
	})
	httpapi.XPHandlers{Orchestrator: orch, History: archive}.Register(srv)
	return srv, nil
}

// buildLedger assembles the configured award sinks. The bleve archive is
// always present so GET /xp/history works even with no external sink.
func buildLedger(ctx context.Context, co *shutdown.Coordinator) (ledger.Ledger, *ledger.Archive, error) {
	var sinks ledger.Fanout

	if !dev && cfg.Ledger.NotionDatabaseID != "" {
		sink, err := ledger.NewNotion(ledger.NotionConfig{
			APIKey:     cfg.Notion.APIKey,
			DatabaseID: cfg.Ledger.NotionDatabaseID,
			BaseURL:    cfg.Notion.BaseURL,
			Timeout:    cfg.Notion.Timeout,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("notion ledger: %w", err)
		}
		sinks = append(sinks, sink)
	}

	if !dev && cfg.Ledger.PostgresURL != "" {
		pool, err := ledger.Connect(ctx, cfg.Ledger.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		pg := ledger.NewPostgres(pool)
		if err := pg.EnsureTable(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ensure ledger table: %w", err)
		}
		co.Register("postgres pool", shutdown.PhaseSinks, func(context.Context) error {
			pool.Close()
			return nil
		})
		sinks = append(sinks, pg)
	}

	archivePath := cfg.Ledger.ArchivePath
	if dev {
		archivePath = ""
	}
	archive, err := ledger.NewArchive(archivePath)
	if err != nil {
		return nil, nil, fmt.Errorf("award archive: %w", err)
	}
	co.Register("award archive", shutdown.PhaseSinks, func(context.Context) error {
		return archive.Close()
	})
	sinks = append(sinks, archive)

	return sinks, archive, nil
}

// devStore seeds a few quests to poke at with curl.
func devStore() *taskstore.MemoryStore {
	store := taskstore.NewMemoryStore()
	now := time.Now()
	store.Add(taskstore.Record{
		ID:      "dev-1",
		Title:   "Write the quarterly budget report",
		Context: "finance spreadsheet",
		Due:     now.Add(48 * time.Hour).Format(time.RFC3339),
	})
	store.Add(taskstore.Record{
		ID:      "dev-2",
		Title:   "Water the plants",
		Context: "balcony",
	})
	store.Add(taskstore.Record{
		ID:    "dev-3",
		Title: "Review the onboarding doc",
		Due:   now.Add(-30 * time.Hour).Format(time.RFC3339),
	})
	return store
}
