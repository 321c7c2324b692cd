package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"stock-radar/internal/config"
	"stock-radar/internal/models"
	"stock-radar/internal/rules"
)

// addRuleCommands adds the user-rule commands.
func addRuleCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "User rule management",
		Long:  "Generate and inspect per-user event rules.",
	}
	cmd.AddCommand(newRulesGenerateCmd(app))
	cmd.AddCommand(newRulesShowCmd(app))
	rootCmd.AddCommand(cmd)
}

func newRulesGenerateCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate <user-id>",
		Short: "Generate a rule set from a user's investment profile",
		Long: `Derive a rule set from the user's investment profile and store it,
replacing any existing set. The profile is read from --profile, or from the
user's entry in profiles.json in the config directory.`,
		Example: `  radar rules generate user123 --profile ./profile.json
  radar rules generate user123`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				return fmt.Errorf("store not available")
			}
			if app.LLMClient == nil {
				return fmt.Errorf("LLM not configured, set RADAR_LLM_API_KEY or credentials.toml")
			}

			userID := args[0]
			profilePath, _ := cmd.Flags().GetString("profile")

			var profileJSON string
			if profilePath != "" {
				data, err := os.ReadFile(profilePath)
				if err != nil {
					return fmt.Errorf("reading profile: %w", err)
				}
				profileJSON = string(data)
			} else {
				configDir, _ := cmd.Flags().GetString("config")
				profiles, err := loadProfiles(configDir)
				if err != nil {
					return err
				}
				var ok bool
				profileJSON, ok = profiles[userID]
				if !ok {
					return fmt.Errorf("no profile for %s in profiles.json", userID)
				}
			}

			generator := rules.NewGenerator(app.LLMClient, app.Store, app.Logger)
			set, err := generator.Generate(cmd.Context(), userID, profileJSON)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(set)
			}
			output.Success("Generated %d rule(s) for %s", len(set.Rules), userID)
			return printRuleSet(output, set.Rules)
		},
	}

	cmd.Flags().String("profile", "", "path to an investment profile JSON file")
	return cmd
}

func newRulesShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <user-id>",
		Short: "Show a user's stored rule set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				return fmt.Errorf("store not available")
			}

			set, err := app.Store.GetRuleSet(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if set == nil {
				output.Warning("No rule set for %s", args[0])
				return nil
			}
			if output.IsJSON() {
				return output.JSON(set)
			}

			output.Bold("Rule set for %s", set.UserID)
			output.Printf("  Status:  %s\n", set.Status)
			output.Printf("  Updated: %s\n", set.UpdateTime.Format("2006-01-02 15:04:05"))
			output.Println()
			return printRuleSet(output, set.Rules)
		},
	}
}

func printRuleSet(output *Output, ruleList []models.UserRule) error {
	table := NewTable(output, "Type", "Subtype", "Related", "Trigger Condition")
	for _, r := range ruleList {
		table.AddRow(
			r.EventType,
			r.EventSubtype,
			r.RelatedStock,
			truncateCell(r.TriggerCondition, 48),
		)
	}
	table.Render()
	return nil
}

// loadProfiles reads the per-user investment profiles from profiles.json in
// the config directory. Values may be arbitrary JSON documents; each is
// handed to the generator re-serialized as written.
func loadProfiles(configDir string) (map[string]string, error) {
	if configDir == "" {
		configDir = config.DefaultConfigDir()
	}
	path := filepath.Join(configDir, "profiles.json")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	profiles := make(map[string]string, len(raw))
	for userID, doc := range raw {
		profiles[userID] = string(doc)
	}
	return profiles, nil
}
