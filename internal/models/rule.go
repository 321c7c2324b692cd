package models

import "time"

// UserRule is one declarative event subscription generated from a user's
// investment profile. Only the three matching fields (EventType,
// EventSubtype, RelatedStock) are evaluated mechanically; the description
// and trigger condition are advisory text for the rendering collaborator.
type UserRule struct {
	EventType        string `json:"event_type"`
	EventSubtype     string `json:"event_subtype"`
	RelatedStock     string `json:"related_stock"`
	EventDescription string `json:"event_description"`
	TriggerCondition string `json:"trigger_condition"`
}

// Valid reports whether the rule carries all three matching fields.
// Incomplete rules are skipped, never treated as errors.
func (r UserRule) Valid() bool {
	return r.EventType != "" && r.EventSubtype != "" && r.RelatedStock != ""
}

// RuleSet is a user's stored rule list.
type RuleSet struct {
	UserID     string     `json:"user_id"`
	Rules      []UserRule `json:"rule_list"`
	Status     string     `json:"status"` // active / expired
	CreateTime time.Time  `json:"create_time"`
	UpdateTime time.Time  `json:"update_time"`
}

// Reminder is a rendered notification document tied to a user. The shape
// mirrors the reminder feed consumed by the surrounding application.
type Reminder struct {
	ID        string `json:"id"`
	TradeDate string `json:"trade_date"`          // event time of the matched event
	Symbol    string `json:"company_of_interest"` // matched event symbol
	Report    string `json:"report"`              // rendered reminder text
	Label     string `json:"label"`
	UserID    string `json:"user_id"`
	IsRead    bool   `json:"is_read"`
	Date      string `json:"date"` // render time
}

// ReminderLabel is the fixed label attached to event reminders.
const ReminderLabel = "事件提醒"
