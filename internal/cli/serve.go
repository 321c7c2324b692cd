package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"stock-radar/internal/rules"
	"stock-radar/internal/scheduler"
)

// addServeCommands adds the long-running engine command.
func addServeCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newServeCmd(app))
}

func newServeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the event engine",
		Long: `Start the scheduler and run until interrupted. The event sweep and
reminder tasks run on their configured intervals; rule refresh runs on its
cron spec when enabled in the task switch.`,
		Example: `  radar serve
  radar serve --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				return fmt.Errorf("store not available")
			}

			cfg := app.Config
			sched := scheduler.New(cfg.Scheduler, app.Logger)

			sched.Register(scheduler.NewEventSweepTask(
				app.Manager, app.Store, cfg.Scheduler.Universe, cfg.Scheduler.SweepInterval, app.Logger))

			if app.LLMClient != nil {
				matcher, err := newMatcher(app)
				if err != nil {
					return err
				}
				sched.Register(scheduler.NewReminderTask(matcher, cfg.Scheduler.ReminderInterval, app.Logger))

				generator := rules.NewGenerator(app.LLMClient, app.Store, app.Logger)
				configDir, _ := cmd.Flags().GetString("config")
				profiles := func(ctx context.Context) (map[string]string, error) {
					return loadProfiles(configDir)
				}
				sched.Register(scheduler.NewRuleRefreshTask(
					generator, profiles, cfg.Scheduler.RuleRefreshCron, app.Logger))
			} else {
				app.Logger.Warn().Msg("LLM not configured, reminder and rule refresh tasks skipped")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := sched.Start(ctx); err != nil {
				return err
			}
			output.Info("Engine running with %d task(s), press Ctrl+C to stop", len(sched.Tasks()))

			<-ctx.Done()
			output.Println()
			output.Info("Shutting down...")
			sched.Stop()
			return nil
		},
	}
}
