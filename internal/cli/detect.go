package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"stock-radar/internal/models"
)

// addDetectionCommands adds the one-shot detection commands.
func addDetectionCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newDetectCmd(app))
	rootCmd.AddCommand(newSweepCmd(app))
}

func newDetectCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect <symbol>",
		Short: "Run symbol-scoped detectors against one symbol",
		Long: `Run the trading and company detectors against a single symbol and
print any detected events. Market-scoped detectors (industry, sentiment,
macro) are not run; use 'radar sweep' for a full pass.`,
		Example: `  radar detect 600519
  radar detect 000001 --save`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			symbol := args[0]
			save, _ := cmd.Flags().GetBool("save")

			events, failures := app.Manager.DetectSymbol(ctx, symbol)
			if failures > 0 {
				output.Warning("%d detector(s) failed, see logs", failures)
			}

			if save && len(events) > 0 {
				if app.Store == nil {
					return fmt.Errorf("store not available")
				}
				inserted, err := app.Store.BulkUpsertIfAbsent(ctx, events)
				if err != nil {
					return err
				}
				output.Info("Saved %d new event(s), %d duplicate(s) skipped", inserted, len(events)-inserted)
			}

			return printEvents(output, events)
		},
	}

	cmd.Flags().Bool("save", false, "persist detected events to the store")
	return cmd
}

func newSweepCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep [symbols...]",
		Short: "Run a full detection sweep and persist the results",
		Long: `Run every detector over the symbol universe: symbol-scoped detectors
fan out per symbol, market-scoped detectors run once. Detected events are
persisted with duplicate suppression unless --dry-run is given.`,
		Example: `  radar sweep
  radar sweep 600519 000001
  radar sweep --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
			defer cancel()

			dryRun, _ := cmd.Flags().GetBool("dry-run")

			universe := app.Config.Scheduler.Universe
			if len(args) > 0 {
				universe = args
			}

			events, stats := app.Manager.Sweep(ctx, universe)

			inserted := 0
			if !dryRun && len(events) > 0 {
				if app.Store == nil {
					return fmt.Errorf("store not available")
				}
				var err error
				inserted, err = app.Store.BulkUpsertIfAbsent(ctx, events)
				if err != nil {
					return err
				}
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"symbols":     stats.Symbols,
					"detected":    stats.Detected,
					"inserted":    inserted,
					"failures":    stats.Failures,
					"by_detector": stats.ByDetector,
					"events":      events,
				})
			}

			output.Bold("Sweep Summary")
			output.Printf("  Symbols:  %d\n", stats.Symbols)
			output.Printf("  Detected: %d\n", stats.Detected)
			if !dryRun {
				output.Printf("  Inserted: %d (duplicates %d)\n", inserted, stats.Detected-inserted)
			}
			if stats.Failures > 0 {
				output.Warning("  Failures: %d", stats.Failures)
			}
			for name, count := range stats.ByDetector {
				output.Printf("  %-12s %d\n", name+":", count)
			}
			output.Println()

			return printEvents(output, events)
		},
	}

	cmd.Flags().Bool("dry-run", false, "detect without persisting")
	return cmd
}

// printEvents renders a list of events as JSON or a table.
func printEvents(output *Output, events []models.FinancialEvent) error {
	if output.IsJSON() {
		return output.JSON(events)
	}
	if len(events) == 0 {
		output.Dim("No events detected")
		return nil
	}

	table := NewTable(output, "Time", "Symbol", "Type", "Subtype", "Impact", "Sentiment", "Description")
	for _, ev := range events {
		table.AddRow(
			ev.EventTime,
			ev.Symbol,
			string(ev.EventType),
			ev.EventSubtype,
			output.FormatImpact(ev.ImpactLevel),
			output.FormatSentiment(ev.Sentiment),
			truncateCell(ev.EventDescription, 40),
		)
	}
	table.Render()
	return nil
}
