// sidequest runs the quest-log agents: XP awards for completed tasks,
// calendar event creation, email drafting, and research summaries. Each
// agent is a small HTTP service; run one with its subcommand or all of
// them with serve.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sidequest/config"
	"sidequest/logging"
)

// version is stamped by the release build.
var version = "dev"

var (
	logLevel   string
	logFormat  string
	configPath string
	dev        bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "sidequest",
	Short: "Quest-log agents: XP awards, calendar, email, research",
	Long: `sidequest turns a task list into a quest log. The xp agent scores
completed tasks and awards experience points; the calendar, email, and
research agents handle the errands around them.

Each agent listens on its own port. Configuration comes from the
environment and an optional credentials.toml; see each subcommand's help
for what it needs.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		var err error
		if configPath != "" {
			cfg, err = config.LoadFrom(configPath)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		if logFormat != "" {
			cfg.LogFormat = logFormat
		}
		logger, err = logging.New(cfg.LogLevel, cfg.LogFormat)
		if err != nil {
			return fmt.Errorf("build logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the sidequest version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("sidequest", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn, or error (overrides LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "json or console (overrides LOG_FORMAT)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to credentials.toml (overrides the standard locations)")

	rootCmd.AddCommand(xpCmd, calendarCmd, emailCmd, researchCmd, serveCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "sidequest:", err)
		os.Exit(1)
	}
}
