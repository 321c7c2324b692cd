// Package cli provides the command-line interface for the event engine.
package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"stock-radar/internal/config"
	"stock-radar/internal/detect"
	"stock-radar/internal/llm"
	"stock-radar/internal/logging"
	"stock-radar/internal/provider"
	"stock-radar/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2024-06-01"
)

// App holds the application dependencies.
type App struct {
	Config    *config.Config
	Logger    zerolog.Logger
	Store     store.DataStore
	Data      provider.MarketData
	LLMClient llm.Client
	Manager   *detect.Manager
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	// Initialize SQLite store
	dataStore, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to initialize store, some features may be unavailable")
	} else {
		app.Store = dataStore
		logger.Debug().Msg("SQLite store initialized")
	}

	// Market data provider and detector set
	app.Data = provider.NewEastMoneyClient(cfg.Provider, logger)
	app.Manager = detect.NewDefaultManager(cfg, app.Data, logger)

	// Initialize LLM client if an API key is available
	if cfg.LLM.APIKey != "" {
		app.LLMClient = llm.NewOpenAIClient(cfg.LLM)
		logger.Debug().Str("model", cfg.LLM.Model).Msg("LLM client initialized")
	}

	rootCmd := &cobra.Command{
		Use:   "radar",
		Short: "Stock Radar - financial event detection and reminder engine",
		Long: `Stock Radar watches the A-share market for notable conditions.

It detects trading anomalies, company disclosures, industry board moves,
attention-ranking shifts, and macro news, stores them with deduplication,
and matches them against per-user rules to render reminder notifications.

Use 'radar help <command>' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/stock-radar)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	// Add all command groups
	addCoreCommands(rootCmd, app)
	addDetectionCommands(rootCmd, app)
	addEventCommands(rootCmd, app)
	addRuleCommands(rootCmd, app)
	addReminderCommands(rootCmd, app)
	addServeCommands(rootCmd, app)

	return rootCmd
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("Stock Radar v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and manage application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			return showConfig(output, app.Config)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": config.DefaultConfigDir()})
			} else {
				output.Println(config.DefaultConfigDir())
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("✓ Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) error {
	output.Bold("Store")
	output.Printf("  Database:        %s\n", cfg.Store.Path)
	output.Println()

	output.Bold("Provider")
	output.Printf("  Base URL:        %s\n", cfg.Provider.BaseURL)
	output.Printf("  Timeout:         %s\n", cfg.Provider.Timeout)
	output.Printf("  Rate Limit:      %.1f req/s (burst %d)\n", cfg.Provider.RatePerSecond, cfg.Provider.Burst)
	output.Printf("  Retry Attempts:  %d\n", cfg.Provider.RetryAttempts)
	output.Printf("  Lookback Days:   %d\n", cfg.Provider.LookbackDays)
	output.Println()

	output.Bold("Scheduler")
	output.Printf("  Sweep Interval:    %s\n", cfg.Scheduler.SweepInterval)
	output.Printf("  Reminder Interval: %s\n", cfg.Scheduler.ReminderInterval)
	output.Printf("  Rule Refresh Cron: %s\n", cfg.Scheduler.RuleRefreshCron)
	output.Printf("  Universe:          %d symbols\n", len(cfg.Scheduler.Universe))
	output.Printf("  Max Concurrent:    %d\n", cfg.Scheduler.MaxConcurrent)
	for name, enabled := range cfg.Scheduler.TaskSwitch {
		output.Printf("  Task %-12s %v\n", name+":", enabled)
	}
	output.Println()

	output.Bold("Rules")
	output.Printf("  Match Window:    %s\n", cfg.Rules.MatchWindow)
	output.Printf("  Render Timeout:  %s\n", cfg.Rules.RenderTimeout)
	output.Printf("  Max Concurrent:  %d\n", cfg.Rules.MaxConcurrent)
	output.Println()

	output.Bold("LLM")
	output.Printf("  Model:           %s\n", cfg.LLM.Model)
	output.Printf("  Key Configured:  %v\n", cfg.LLM.APIKey != "")

	return nil
}
