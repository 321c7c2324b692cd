package rules

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"stock-radar/internal/config"
	rerrors "stock-radar/internal/errors"
	"stock-radar/internal/llm"
	"stock-radar/internal/models"
	"stock-radar/internal/store"
)

// RuleMatch pairs one rule with the events it matched, newest first.
type RuleMatch struct {
	Rule   models.UserRule
	Events []models.FinancialEvent
}

// MatchResult summarizes one user's matching pass.
type MatchResult struct {
	UserID       string
	RulesMatched int
	EventCount   int
	Matches      []RuleMatch
}

// ReminderStats summarizes one user's reminder evaluation.
type ReminderStats struct {
	UserID         string
	RuleEventPairs int
	NoReminder     int
	Saved          int
	Failed         int
	SavedIDs       []string
}

// Matcher matches a user's rules against recently detected events and
// drives reminder rendering. Matching is mechanical: type and subtype
// compare case-insensitively, the related stock compares exactly after
// trimming, and only events inside the trailing window count.
type Matcher struct {
	events    store.EventStore
	rules     store.RuleStore
	reminders store.ReminderStore
	renderer  *llm.Renderer
	cfg       config.RulesConfig
	logger    zerolog.Logger
}

// NewMatcher creates a rule matcher.
func NewMatcher(db store.DataStore, renderer *llm.Renderer, cfg config.RulesConfig, logger zerolog.Logger) *Matcher {
	return &Matcher{
		events:    db,
		rules:     db,
		reminders: db,
		renderer:  renderer,
		cfg:       cfg,
		logger:    logger.With().Str("component", "rules").Logger(),
	}
}

// MatchRecent returns the events inside the trailing match window that
// satisfy each of the user's rules. Incomplete rules are skipped silently.
func (m *Matcher) MatchRecent(ctx context.Context, userID string, now time.Time) (*MatchResult, error) {
	result := &MatchResult{UserID: userID}

	set, err := m.rules.GetRuleSet(ctx, userID)
	if err != nil {
		return nil, rerrors.Wrapf(err, "loading rules for %s", userID)
	}
	if set == nil || len(set.Rules) == 0 {
		return result, nil
	}

	windowStart := now.Add(-m.cfg.MatchWindow)

	for _, rule := range set.Rules {
		if !rule.Valid() {
			continue
		}

		events, err := m.events.FindEvents(ctx, store.EventFilter{
			EventType:    strings.ToLower(rule.EventType),
			EventSubtype: strings.ToLower(rule.EventSubtype),
			Symbol:       strings.TrimSpace(rule.RelatedStock),
			Since:        windowStart,
		})
		if err != nil {
			m.logger.Warn().Err(err).
				Str("event_type", rule.EventType).
				Str("event_subtype", rule.EventSubtype).
				Msg("rule query failed")
			continue
		}

		// Re-verify the boundary on parsed timestamps; events with an
		// unparseable time are skipped rather than matched.
		matched := events[:0:0]
		for _, ev := range events {
			t, err := models.ParseEventTime(ev.EventTime)
			if err != nil {
				m.logger.Debug().Str("event_id", ev.EventID).Msg("unparseable event time, skipped")
				continue
			}
			if !t.Before(windowStart) {
				matched = append(matched, ev)
			}
		}

		if len(matched) > 0 {
			result.RulesMatched++
			result.EventCount += len(matched)
			result.Matches = append(result.Matches, RuleMatch{Rule: rule, Events: matched})
		}
	}

	return result, nil
}

// EvaluateUser matches the user's rules and renders a reminder for each
// matched rule, taking only the newest event per rule. A sentinel answer
// from the renderer suppresses persistence; any per-pair failure is counted
// and never aborts the remaining pairs.
func (m *Matcher) EvaluateUser(ctx context.Context, userID string, now time.Time) (*ReminderStats, error) {
	stats := &ReminderStats{UserID: userID}

	result, err := m.MatchRecent(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	if len(result.Matches) == 0 {
		return stats, nil
	}

	for _, match := range result.Matches {
		if len(match.Events) == 0 {
			continue
		}
		event := match.Events[0] // newest first
		stats.RuleEventPairs++

		report, err := m.renderer.RenderReminder(ctx, match.Rule, event)
		if err != nil {
			if rerrors.Is(err, rerrors.ErrNoReminder) {
				stats.NoReminder++
				continue
			}
			m.logger.Warn().Err(err).
				Str("user_id", userID).
				Str("event_id", event.EventID).
				Msg("reminder render failed")
			stats.Failed++
			continue
		}

		reminder := &models.Reminder{
			ID:        uuid.NewString(),
			TradeDate: event.EventTime,
			Symbol:    event.Symbol,
			Report:    report,
			Label:     models.ReminderLabel,
			UserID:    userID,
			IsRead:    false,
			Date:      now.Format(models.TimeLayout),
		}
		if err := m.reminders.SaveReminder(ctx, reminder); err != nil {
			m.logger.Warn().Err(err).Str("user_id", userID).Msg("reminder save failed")
			stats.Failed++
			continue
		}
		stats.Saved++
		stats.SavedIDs = append(stats.SavedIDs, reminder.ID)
	}

	return stats, nil
}

// EvaluateAllUsers runs the reminder evaluation for every active rule set
// with bounded concurrency. One user failing never blocks the others.
func (m *Matcher) EvaluateAllUsers(ctx context.Context, now time.Time) ([]ReminderStats, error) {
	sets, err := m.rules.ListActiveRuleSets(ctx)
	if err != nil {
		return nil, rerrors.Wrap(err, "listing active rule sets")
	}

	results := make([]ReminderStats, len(sets))

	g, gctx := errgroup.WithContext(ctx)
	limit := m.cfg.MaxConcurrent
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)

	for i, set := range sets {
		i, userID := i, set.UserID
		g.Go(func() error {
			stats, err := m.EvaluateUser(gctx, userID, now)
			if err != nil {
				m.logger.Warn().Err(err).Str("user_id", userID).Msg("reminder evaluation failed")
				results[i] = ReminderStats{UserID: userID, Failed: 1}
				return nil
			}
			results[i] = *stats
			return nil
		})
	}
	_ = g.Wait()

	return results, nil
}
