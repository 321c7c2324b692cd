package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"stock-radar/internal/detect"
	"stock-radar/internal/rules"
	"stock-radar/internal/store"
)

// Task names, keyed into the configuration task switch.
const (
	TaskEventSweep  = "event_sweep"
	TaskReminder    = "reminder"
	TaskRuleRefresh = "rule_refresh"
)

// ProfileSource supplies the investment profiles rule refresh feeds into
// the generator, keyed by user id.
type ProfileSource func(ctx context.Context) (map[string]string, error)

// NewEventSweepTask builds the detection sweep: run every detector over the
// universe and persist the result, letting the store drop duplicates.
func NewEventSweepTask(manager *detect.Manager, events store.EventStore, universe []string, interval time.Duration, logger zerolog.Logger) Task {
	log := logger.With().Str("task", TaskEventSweep).Logger()
	return Task{
		Name:     TaskEventSweep,
		Interval: interval,
		Run: func(ctx context.Context) {
			detected, stats := manager.Sweep(ctx, universe)
			if len(detected) == 0 {
				log.Info().Int("failures", stats.Failures).Msg("no events detected")
				return
			}
			inserted, err := events.BulkUpsertIfAbsent(ctx, detected)
			if err != nil {
				log.Error().Err(err).Msg("event persistence failed")
				return
			}
			log.Info().
				Int("detected", stats.Detected).
				Int("inserted", inserted).
				Int("duplicates", stats.Detected-inserted).
				Int("failures", stats.Failures).
				Msg("sweep complete")
		},
	}
}

// NewReminderTask builds the reminder evaluation: match every active user's
// rules against the trailing window and render reminders.
func NewReminderTask(matcher *rules.Matcher, interval time.Duration, logger zerolog.Logger) Task {
	log := logger.With().Str("task", TaskReminder).Logger()
	return Task{
		Name:     TaskReminder,
		Interval: interval,
		Run: func(ctx context.Context) {
			results, err := matcher.EvaluateAllUsers(ctx, time.Now())
			if err != nil {
				log.Error().Err(err).Msg("reminder evaluation failed")
				return
			}
			var pairs, saved, suppressed, failed int
			for _, r := range results {
				pairs += r.RuleEventPairs
				saved += r.Saved
				suppressed += r.NoReminder
				failed += r.Failed
			}
			log.Info().
				Int("users", len(results)).
				Int("pairs", pairs).
				Int("saved", saved).
				Int("suppressed", suppressed).
				Int("failed", failed).
				Msg("reminder pass complete")
		},
	}
}

// NewRuleRefreshTask builds the rule regeneration pass: re-derive every
// profiled user's rule set. Disabled by default in configuration since it
// burns model tokens per user.
func NewRuleRefreshTask(generator *rules.Generator, profiles ProfileSource, spec string, logger zerolog.Logger) Task {
	log := logger.With().Str("task", TaskRuleRefresh).Logger()
	return Task{
		Name: TaskRuleRefresh,
		Spec: spec,
		Run: func(ctx context.Context) {
			userProfiles, err := profiles(ctx)
			if err != nil {
				log.Error().Err(err).Msg("loading profiles failed")
				return
			}
			refreshed, failed := 0, 0
			for userID, profile := range userProfiles {
				if _, err := generator.Generate(ctx, userID, profile); err != nil {
					log.Warn().Err(err).Str("user_id", userID).Msg("rule refresh failed")
					failed++
					continue
				}
				refreshed++
			}
			log.Info().Int("refreshed", refreshed).Int("failed", failed).Msg("rule refresh complete")
		},
	}
}
