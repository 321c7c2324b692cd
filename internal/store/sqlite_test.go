package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-radar/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "radar.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testEvent(symbol, eventTime, subtype string) models.FinancialEvent {
	return models.FinancialEvent{
		EventID:      models.GenerateEventID(symbol, eventTime, subtype),
		Symbol:       symbol,
		EventType:    models.EventTrading,
		EventSubtype: subtype,
		EventTime:    eventTime,
		DataSource:   "eastmoney",
		TriggerRule: &models.TriggerRule{
			Metric: "m", Value: 1, Threshold: 0.5, Operator: ">",
		},
		Sentiment:        models.SentimentPositive,
		ImpactLevel:      models.ImpactHigh,
		EventDescription: "test event",
		RawData:          map[string]interface{}{"k": "v"},
	}
}

func TestUpsertIfAbsent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ev := testEvent("600519", "2024-06-03 09:35:00", "price_jump")

	inserted, err := s.UpsertIfAbsent(ctx, &ev)
	require.NoError(t, err)
	assert.True(t, inserted)

	// Re-detection of the same condition is silently dropped.
	inserted, err = s.UpsertIfAbsent(ctx, &ev)
	require.NoError(t, err)
	assert.False(t, inserted)

	// Same id at a different observation time is a new row.
	other := ev
	other.EventTime = "2024-06-03 09:40:00"
	inserted, err = s.UpsertIfAbsent(ctx, &other)
	require.NoError(t, err)
	assert.True(t, inserted)
}

func TestUpsertNeverOverwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ev := testEvent("600519", "2024-06-03 09:35:00", "price_jump")
	_, err := s.UpsertIfAbsent(ctx, &ev)
	require.NoError(t, err)

	changed := ev
	changed.EventDescription = "rewritten"
	_, err = s.UpsertIfAbsent(ctx, &changed)
	require.NoError(t, err)

	got, err := s.GetEvent(ctx, ev.EventID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "test event", got.EventDescription)
}

func TestBulkUpsertIfAbsent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	batch := []models.FinancialEvent{
		testEvent("600519", "2024-06-03 09:35:00", "price_jump"),
		testEvent("600519", "2024-06-03 09:35:00", "price_jump"), // dup inside batch
		testEvent("000001", "2024-06-03 09:35:00", "limit_up"),
	}
	inserted, err := s.BulkUpsertIfAbsent(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)

	// The whole batch again inserts nothing.
	inserted, err = s.BulkUpsertIfAbsent(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)

	inserted, err = s.BulkUpsertIfAbsent(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)
}

func TestFindEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.BulkUpsertIfAbsent(ctx, []models.FinancialEvent{
		testEvent("600519", "2024-06-03 09:35:00", "price_jump"),
		testEvent("600519", "2024-06-03 09:50:00", "price_jump"),
		testEvent("600519", "2024-06-03 09:50:00", "limit_up"),
		testEvent("000001", "2024-06-03 09:50:00", "price_jump"),
	})
	require.NoError(t, err)

	// Newest first.
	events, err := s.FindEvents(ctx, EventFilter{Symbol: "600519", EventSubtype: "price_jump"})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "2024-06-03 09:50:00", events[0].EventTime)
	assert.Equal(t, "2024-06-03 09:35:00", events[1].EventTime)

	// Since is inclusive.
	since := time.Date(2024, 6, 3, 9, 50, 0, 0, time.Local)
	events, err = s.FindEvents(ctx, EventFilter{Symbol: "600519", Since: since})
	require.NoError(t, err)
	assert.Len(t, events, 2)

	events, err = s.FindEvents(ctx, EventFilter{EventType: "trading", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, events, 1)

	events, err = s.FindEvents(ctx, EventFilter{Symbol: "999999"})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestEventRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ev := testEvent("600519", "2024-06-03 09:35:00", "price_jump")
	_, err := s.UpsertIfAbsent(ctx, &ev)
	require.NoError(t, err)

	got, err := s.GetEvent(ctx, ev.EventID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ev.EventID, got.EventID)
	assert.Equal(t, ev.EventType, got.EventType)
	assert.Equal(t, ev.ImpactLevel, got.ImpactLevel)
	require.NotNil(t, got.TriggerRule)
	assert.Equal(t, ev.TriggerRule.Metric, got.TriggerRule.Metric)
	assert.Equal(t, "v", got.RawData["k"])

	missing, err := s.GetEvent(ctx, "no_such_event")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRuleSetReplace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	first := &models.RuleSet{
		UserID: "user1",
		Rules: []models.UserRule{
			{EventType: "Trading", EventSubtype: "limit_up", RelatedStock: "600519"},
			{EventType: "Macro", EventSubtype: "macro_央行政策", RelatedStock: "央行政策"},
		},
		Status:     "active",
		CreateTime: now,
		UpdateTime: now,
	}
	require.NoError(t, s.SaveRuleSet(ctx, first))

	// Saving again replaces wholesale.
	second := &models.RuleSet{
		UserID: "user1",
		Rules: []models.UserRule{
			{EventType: "Sentiment", EventSubtype: "top1_rank", RelatedStock: "000001"},
		},
		Status:     "active",
		CreateTime: now,
		UpdateTime: now.Add(time.Hour),
	}
	require.NoError(t, s.SaveRuleSet(ctx, second))

	got, err := s.GetRuleSet(ctx, "user1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.Rules, 1)
	assert.Equal(t, "Sentiment", got.Rules[0].EventType)

	missing, err := s.GetRuleSet(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestListActiveRuleSets(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.SaveRuleSet(ctx, &models.RuleSet{
		UserID: "active1", Status: "active", CreateTime: now, UpdateTime: now,
		Rules: []models.UserRule{{EventType: "Trading", EventSubtype: "limit_up", RelatedStock: "600519"}},
	}))
	require.NoError(t, s.SaveRuleSet(ctx, &models.RuleSet{
		UserID: "expired1", Status: "expired", CreateTime: now, UpdateTime: now,
		Rules: []models.UserRule{{EventType: "Trading", EventSubtype: "limit_up", RelatedStock: "600519"}},
	}))

	sets, err := s.ListActiveRuleSets(ctx)
	require.NoError(t, err)
	require.Len(t, sets, 1)
	assert.Equal(t, "active1", sets[0].UserID)
}

func TestReminders(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := &models.Reminder{
		ID:        "rem-1",
		TradeDate: "2024-06-03 09:35:00",
		Symbol:    "600519",
		Report:    "【提醒】测试提醒内容",
		Label:     models.ReminderLabel,
		UserID:    "user1",
		Date:      "2024-06-03 09:40:00",
	}
	require.NoError(t, s.SaveReminder(ctx, r))

	got, err := s.GetReminders(ctx, "user1", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.False(t, got[0].IsRead)
	assert.Equal(t, models.ReminderLabel, got[0].Label)

	require.NoError(t, s.MarkReminderRead(ctx, "rem-1"))
	got, err = s.GetReminders(ctx, "user1", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].IsRead)

	none, err := s.GetReminders(ctx, "nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

// Property: upserting any batch twice inserts exactly once per distinct
// (event_id, event_time) pair.
func TestProperty_UpsertIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("second upsert inserts nothing", prop.ForAll(
		func(symbol string, minute int) bool {
			eventTime := time.Date(2024, 6, 3, 9, 30+minute%30, 0, 0, time.Local).Format(models.TimeLayout)
			ev := testEvent(symbol, eventTime, "price_jump")

			if _, err := s.UpsertIfAbsent(ctx, &ev); err != nil {
				return false
			}
			again, err := s.UpsertIfAbsent(ctx, &ev)
			return err == nil && !again
		},
		gen.Identifier(),
		gen.IntRange(0, 29),
	))

	properties.TestingRun(t)
}
