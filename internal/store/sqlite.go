package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"stock-radar/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Detected events, deduplicated on (event_id, event_time)
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		event_type TEXT NOT NULL,
		event_subtype TEXT NOT NULL,
		event_time TEXT NOT NULL,
		data_source TEXT,
		trigger_rule TEXT,
		sentiment TEXT,
		impact_level TEXT,
		event_description TEXT,
		raw_data TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(event_id, event_time)
	);

	-- Per-user rule sets, one row per user
	CREATE TABLE IF NOT EXISTS rule_sets (
		user_id TEXT PRIMARY KEY,
		rules TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		create_time DATETIME NOT NULL,
		update_time DATETIME NOT NULL
	);

	-- Rendered reminders
	CREATE TABLE IF NOT EXISTS reminders (
		id TEXT PRIMARY KEY,
		trade_date TEXT NOT NULL,
		company_of_interest TEXT NOT NULL,
		report TEXT NOT NULL,
		label TEXT NOT NULL,
		user_id TEXT NOT NULL,
		is_read INTEGER DEFAULT 0,
		date TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_events_event_time ON events(event_time);
	CREATE INDEX IF NOT EXISTS idx_events_symbol ON events(symbol);
	CREATE INDEX IF NOT EXISTS idx_events_type_subtype ON events(event_type, event_subtype);
	CREATE INDEX IF NOT EXISTS idx_reminders_user ON reminders(user_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const insertEventSQL = `
	INSERT OR IGNORE INTO events (
		event_id, symbol, event_type, event_subtype, event_time,
		data_source, trigger_rule, sentiment, impact_level,
		event_description, raw_data
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// UpsertIfAbsent inserts the event unless its (event_id, event_time) pair
// already exists.
func (s *SQLiteStore) UpsertIfAbsent(ctx context.Context, event *models.FinancialEvent) (bool, error) {
	triggerJSON, rawJSON, err := marshalEventBlobs(event)
	if err != nil {
		return false, err
	}

	res, err := s.db.ExecContext(ctx, insertEventSQL,
		event.EventID, event.Symbol, string(event.EventType), event.EventSubtype, event.EventTime,
		event.DataSource, triggerJSON, string(event.Sentiment), string(event.ImpactLevel),
		event.EventDescription, rawJSON,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert event %s: %w", event.EventID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// BulkUpsertIfAbsent inserts a batch inside one transaction. Duplicates are
// skipped by the unique constraint; a row that fails for any other reason
// is skipped too, so one bad event never sinks the batch.
func (s *SQLiteStore) BulkUpsertIfAbsent(ctx context.Context, events []models.FinancialEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertEventSQL)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for i := range events {
		event := &events[i]
		triggerJSON, rawJSON, err := marshalEventBlobs(event)
		if err != nil {
			continue
		}
		res, err := stmt.ExecContext(ctx,
			event.EventID, event.Symbol, string(event.EventType), event.EventSubtype, event.EventTime,
			event.DataSource, triggerJSON, string(event.Sentiment), string(event.ImpactLevel),
			event.EventDescription, rawJSON,
		)
		if err != nil {
			continue
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit events: %w", err)
	}
	return inserted, nil
}

func marshalEventBlobs(event *models.FinancialEvent) (trigger, raw string, err error) {
	if event.TriggerRule != nil {
		b, err := json.Marshal(event.TriggerRule)
		if err != nil {
			return "", "", fmt.Errorf("failed to marshal trigger rule: %w", err)
		}
		trigger = string(b)
	}
	if event.RawData != nil {
		b, err := json.Marshal(event.RawData)
		if err != nil {
			return "", "", fmt.Errorf("failed to marshal raw data: %w", err)
		}
		raw = string(b)
	}
	return trigger, raw, nil
}

// FindEvents returns events matching the filter, newest first.
func (s *SQLiteStore) FindEvents(ctx context.Context, filter EventFilter) ([]models.FinancialEvent, error) {
	query := `SELECT event_id, symbol, event_type, event_subtype, event_time,
		data_source, trigger_rule, sentiment, impact_level, event_description, raw_data
		FROM events WHERE 1=1`
	var args []interface{}

	if filter.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, filter.Symbol)
	}
	if filter.EventType != "" {
		query += " AND event_type = ?"
		args = append(args, filter.EventType)
	}
	if filter.EventSubtype != "" {
		query += " AND event_subtype = ?"
		args = append(args, filter.EventSubtype)
	}
	if !filter.Since.IsZero() {
		query += " AND event_time >= ?"
		args = append(args, filter.Since.Format(models.TimeLayout))
	}
	if !filter.Until.IsZero() {
		query += " AND event_time < ?"
		args = append(args, filter.Until.Format(models.TimeLayout))
	}
	query += " ORDER BY event_time DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []models.FinancialEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *event)
	}
	return events, rows.Err()
}

// GetEvent returns one event by id, or nil when absent.
func (s *SQLiteStore) GetEvent(ctx context.Context, eventID string) (*models.FinancialEvent, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT event_id, symbol, event_type, event_subtype, event_time,
		data_source, trigger_rule, sentiment, impact_level, event_description, raw_data
		FROM events WHERE event_id = ? ORDER BY event_time DESC LIMIT 1`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query event: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanEvent(rows)
}

func scanEvent(rows *sql.Rows) (*models.FinancialEvent, error) {
	var event models.FinancialEvent
	var eventType, sentiment, impact string
	var triggerJSON, rawJSON sql.NullString

	err := rows.Scan(&event.EventID, &event.Symbol, &eventType, &event.EventSubtype, &event.EventTime,
		&event.DataSource, &triggerJSON, &sentiment, &impact, &event.EventDescription, &rawJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to scan event: %w", err)
	}

	event.EventType = models.EventType(eventType)
	event.Sentiment = models.Sentiment(sentiment)
	event.ImpactLevel = models.ImpactLevel(impact)

	if triggerJSON.Valid && strings.TrimSpace(triggerJSON.String) != "" {
		var rule models.TriggerRule
		if err := json.Unmarshal([]byte(triggerJSON.String), &rule); err == nil {
			event.TriggerRule = &rule
		}
	}
	if rawJSON.Valid && strings.TrimSpace(rawJSON.String) != "" {
		var raw map[string]interface{}
		if err := json.Unmarshal([]byte(rawJSON.String), &raw); err == nil {
			event.RawData = raw
		}
	}
	return &event, nil
}

// SaveRuleSet replaces the user's rule set wholesale.
func (s *SQLiteStore) SaveRuleSet(ctx context.Context, set *models.RuleSet) error {
	rulesJSON, err := json.Marshal(set.Rules)
	if err != nil {
		return fmt.Errorf("failed to marshal rules: %w", err)
	}
	status := set.Status
	if status == "" {
		status = "active"
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rule_sets (user_id, rules, status, create_time, update_time)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			rules = excluded.rules,
			status = excluded.status,
			update_time = excluded.update_time`,
		set.UserID, string(rulesJSON), status, set.CreateTime, set.UpdateTime,
	)
	if err != nil {
		return fmt.Errorf("failed to save rule set for %s: %w", set.UserID, err)
	}
	return nil
}

// GetRuleSet returns the user's rule set, or nil when absent.
func (s *SQLiteStore) GetRuleSet(ctx context.Context, userID string) (*models.RuleSet, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, rules, status, create_time, update_time FROM rule_sets WHERE user_id = ?`,
		userID)

	set, err := scanRuleSet(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return set, err
}

// ListActiveRuleSets returns every rule set with active status.
func (s *SQLiteStore) ListActiveRuleSets(ctx context.Context) ([]models.RuleSet, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, rules, status, create_time, update_time FROM rule_sets WHERE status = 'active'`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rule sets: %w", err)
	}
	defer rows.Close()

	var sets []models.RuleSet
	for rows.Next() {
		set, err := scanRuleSet(rows)
		if err != nil {
			return nil, err
		}
		sets = append(sets, *set)
	}
	return sets, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRuleSet(row rowScanner) (*models.RuleSet, error) {
	var set models.RuleSet
	var rulesJSON string
	if err := row.Scan(&set.UserID, &rulesJSON, &set.Status, &set.CreateTime, &set.UpdateTime); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan rule set: %w", err)
	}
	if err := json.Unmarshal([]byte(rulesJSON), &set.Rules); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rules for %s: %w", set.UserID, err)
	}
	return &set, nil
}

// SaveReminder inserts a rendered reminder.
func (s *SQLiteStore) SaveReminder(ctx context.Context, reminder *models.Reminder) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reminders (id, trade_date, company_of_interest, report, label, user_id, is_read, date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		reminder.ID, reminder.TradeDate, reminder.Symbol, reminder.Report,
		reminder.Label, reminder.UserID, boolToInt(reminder.IsRead), reminder.Date,
	)
	if err != nil {
		return fmt.Errorf("failed to save reminder %s: %w", reminder.ID, err)
	}
	return nil
}

// GetReminders returns the user's reminders, newest first.
func (s *SQLiteStore) GetReminders(ctx context.Context, userID string, limit int) ([]models.Reminder, error) {
	query := `SELECT id, trade_date, company_of_interest, report, label, user_id, is_read, date
		FROM reminders WHERE user_id = ? ORDER BY date DESC`
	args := []interface{}{userID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reminders: %w", err)
	}
	defer rows.Close()

	var reminders []models.Reminder
	for rows.Next() {
		var r models.Reminder
		var isRead int
		if err := rows.Scan(&r.ID, &r.TradeDate, &r.Symbol, &r.Report, &r.Label, &r.UserID, &isRead, &r.Date); err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}
		r.IsRead = isRead != 0
		reminders = append(reminders, r)
	}
	return reminders, rows.Err()
}

// MarkReminderRead flags a reminder as read.
func (s *SQLiteStore) MarkReminderRead(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE reminders SET is_read = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to mark reminder %s read: %w", id, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
