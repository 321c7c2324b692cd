package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"stock-radar/internal/llm"
	"stock-radar/internal/rules"
)

// addReminderCommands adds the reminder evaluation and feed commands.
func addReminderCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newRemindCmd(app))
	rootCmd.AddCommand(newRemindersCmd(app))
}

// newMatcher builds the rule matcher, which needs both the store and a
// configured LLM client for rendering.
func newMatcher(app *App) (*rules.Matcher, error) {
	if app.Store == nil {
		return nil, fmt.Errorf("store not available")
	}
	if app.LLMClient == nil {
		return nil, fmt.Errorf("LLM not configured, set RADAR_LLM_API_KEY or credentials.toml")
	}
	renderer := llm.NewRenderer(app.LLMClient, app.Config.Rules.RenderTimeout)
	return rules.NewMatcher(app.Store, renderer, app.Config.Rules, app.Logger), nil
}

func newRemindCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remind [user-id]",
		Short: "Evaluate rules against recent events and render reminders",
		Long: `Match rules against events inside the trailing match window and render
a reminder for each matched rule's newest event. With a user id only that
user is evaluated; without one, every active rule set is.`,
		Example: `  radar remind
  radar remind user123
  radar remind user123 --dry-run`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			now := time.Now()

			if dryRun {
				if app.Store == nil {
					return fmt.Errorf("store not available")
				}
				if len(args) == 0 {
					return fmt.Errorf("--dry-run requires a user id")
				}
				// Matching only, no rendering, so no LLM needed.
				matcher := rules.NewMatcher(app.Store, nil, app.Config.Rules, app.Logger)
				result, err := matcher.MatchRecent(cmd.Context(), args[0], now)
				if err != nil {
					return err
				}
				if output.IsJSON() {
					return output.JSON(result)
				}
				output.Bold("Match result for %s", result.UserID)
				output.Printf("  Rules matched: %d\n", result.RulesMatched)
				output.Printf("  Events:        %d\n", result.EventCount)
				for _, m := range result.Matches {
					output.Println()
					output.Info("%s / %s / %s", m.Rule.EventType, m.Rule.EventSubtype, m.Rule.RelatedStock)
					printEvents(output, m.Events)
				}
				return nil
			}

			matcher, err := newMatcher(app)
			if err != nil {
				return err
			}

			var results []rules.ReminderStats
			if len(args) == 1 {
				stats, err := matcher.EvaluateUser(cmd.Context(), args[0], now)
				if err != nil {
					return err
				}
				results = []rules.ReminderStats{*stats}
			} else {
				results, err = matcher.EvaluateAllUsers(cmd.Context(), now)
				if err != nil {
					return err
				}
			}

			if output.IsJSON() {
				return output.JSON(results)
			}

			table := NewTable(output, "User", "Pairs", "Saved", "Suppressed", "Failed")
			for _, r := range results {
				table.AddRow(
					r.UserID,
					fmt.Sprintf("%d", r.RuleEventPairs),
					fmt.Sprintf("%d", r.Saved),
					fmt.Sprintf("%d", r.NoReminder),
					fmt.Sprintf("%d", r.Failed),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().Bool("dry-run", false, "match only, do not render or save reminders")
	return cmd
}

func newRemindersCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reminders",
		Short: "Reminder feed",
		Long:  "List stored reminders and mark them read.",
	}

	listCmd := &cobra.Command{
		Use:   "list <user-id>",
		Short: "List a user's reminders, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				return fmt.Errorf("store not available")
			}

			limit, _ := cmd.Flags().GetInt("limit")
			reminders, err := app.Store.GetReminders(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(reminders)
			}
			if len(reminders) == 0 {
				output.Dim("No reminders")
				return nil
			}
			for _, r := range reminders {
				marker := output.ColoredString(ColorYellow, "●")
				if r.IsRead {
					marker = output.ColoredString(ColorDim, "○")
				}
				output.Printf("%s %s  %s  %s\n", marker, r.Date, r.Symbol, r.ID)
				output.Println(r.Report)
				output.Println()
			}
			return nil
		},
	}
	listCmd.Flags().Int("limit", 20, "maximum reminders to return")
	cmd.AddCommand(listCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "read <reminder-id>",
		Short: "Mark a reminder as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				return fmt.Errorf("store not available")
			}
			if err := app.Store.MarkReminderRead(cmd.Context(), args[0]); err != nil {
				return err
			}
			output.Success("Marked %s read", args[0])
			return nil
		},
	})

	return cmd
}
