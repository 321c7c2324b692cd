// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"stock-radar/internal/models"
)

// EventStore persists detected events. Writes are upsert-if-absent keyed on
// (event_id, event_time): re-detections of the same condition at the same
// observation time are silently dropped and the stored document is never
// overwritten.
type EventStore interface {
	// UpsertIfAbsent inserts the event if no row with the same
	// (event_id, event_time) exists. Returns whether a row was inserted.
	UpsertIfAbsent(ctx context.Context, event *models.FinancialEvent) (bool, error)
	// BulkUpsertIfAbsent inserts a batch, skipping duplicates and rows that
	// individually fail. Returns how many rows were actually inserted.
	BulkUpsertIfAbsent(ctx context.Context, events []models.FinancialEvent) (int, error)
	// FindEvents returns events matching the filter, newest first.
	FindEvents(ctx context.Context, filter EventFilter) ([]models.FinancialEvent, error)
	// GetEvent returns one event by id, or nil when absent.
	GetEvent(ctx context.Context, eventID string) (*models.FinancialEvent, error)
}

// RuleStore persists per-user rule sets. Saving replaces the user's
// existing set wholesale.
type RuleStore interface {
	SaveRuleSet(ctx context.Context, set *models.RuleSet) error
	GetRuleSet(ctx context.Context, userID string) (*models.RuleSet, error)
	ListActiveRuleSets(ctx context.Context) ([]models.RuleSet, error)
}

// ReminderStore persists rendered reminders.
type ReminderStore interface {
	SaveReminder(ctx context.Context, reminder *models.Reminder) error
	GetReminders(ctx context.Context, userID string, limit int) ([]models.Reminder, error)
	MarkReminderRead(ctx context.Context, id string) error
}

// DataStore is the full persistence surface.
type DataStore interface {
	EventStore
	RuleStore
	ReminderStore
	Close() error
}

// EventFilter narrows an event query. Zero values mean "any".
type EventFilter struct {
	Symbol       string
	EventType    string
	EventSubtype string
	Since        time.Time // inclusive lower bound on event_time
	Until        time.Time // exclusive upper bound on event_time
	Limit        int
}
