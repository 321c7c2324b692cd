package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"stock-radar/internal/models"
	"stock-radar/internal/store"
)

// addEventCommands adds the stored-event query commands.
func addEventCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newEventsCmd(app))
}

func newEventsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Query stored events",
		Long:  "List detected events from the store, newest first.",
		Example: `  radar events --symbol 600519
  radar events --type trading --subtype price_jump
  radar events --since 2h --limit 20`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				return fmt.Errorf("store not available")
			}

			symbol, _ := cmd.Flags().GetString("symbol")
			eventType, _ := cmd.Flags().GetString("type")
			subtype, _ := cmd.Flags().GetString("subtype")
			sinceStr, _ := cmd.Flags().GetString("since")
			limit, _ := cmd.Flags().GetInt("limit")

			filter := store.EventFilter{
				Symbol:       symbol,
				EventType:    eventType,
				EventSubtype: subtype,
				Limit:        limit,
			}
			if sinceStr != "" {
				d, err := time.ParseDuration(sinceStr)
				if err != nil {
					return fmt.Errorf("invalid --since duration: %w", err)
				}
				filter.Since = time.Now().Add(-d)
			}

			events, err := app.Store.FindEvents(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return printEvents(output, events)
		},
	}

	cmd.Flags().String("symbol", "", "filter by symbol, board name, or macro category")
	cmd.Flags().String("type", "", "filter by event type (trading, company, industry, ...)")
	cmd.Flags().String("subtype", "", "filter by event subtype")
	cmd.Flags().String("since", "", "trailing window, e.g. 30m, 2h, 24h")
	cmd.Flags().Int("limit", 50, "maximum events to return")

	cmd.AddCommand(newEventShowCmd(app))
	return cmd
}

func newEventShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <event-id>",
		Short: "Show one event in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				return fmt.Errorf("store not available")
			}

			event, err := app.Store.GetEvent(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if event == nil {
				output.Warning("Event %s not found", args[0])
				return nil
			}
			if output.IsJSON() {
				return output.JSON(event)
			}
			return printEventDetail(output, event)
		},
	}
}

func printEventDetail(output *Output, ev *models.FinancialEvent) error {
	output.Bold("%s", ev.EventID)
	output.Printf("  Symbol:      %s\n", ev.Symbol)
	output.Printf("  Type:        %s / %s\n", ev.EventType, ev.EventSubtype)
	output.Printf("  Time:        %s\n", ev.EventTime)
	output.Printf("  Source:      %s\n", ev.DataSource)
	output.Printf("  Impact:      %s\n", output.FormatImpact(ev.ImpactLevel))
	if ev.Sentiment != "" {
		output.Printf("  Sentiment:   %s\n", output.FormatSentiment(ev.Sentiment))
	}
	output.Printf("  Description: %s\n", ev.EventDescription)
	if tr := ev.TriggerRule; tr != nil {
		output.Println()
		output.Bold("Trigger")
		output.Printf("  Metric:    %s\n", tr.Metric)
		output.Printf("  Value:     %.4f %s %.4f\n", tr.Value, tr.Operator, tr.Threshold)
		if tr.CalcFormula != "" {
			output.Printf("  Formula:   %s\n", tr.CalcFormula)
		}
	}
	return nil
}
