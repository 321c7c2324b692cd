// Package models defines the core data types for event detection.
package models

import (
	"strings"
	"time"
)

// TimeLayout is the canonical event timestamp format.
const TimeLayout = "2006-01-02 15:04:05"

// DateLayout is the date-only timestamp format some providers return.
const DateLayout = "2006-01-02"

// EventType classifies a financial event.
type EventType string

const (
	EventTrading     EventType = "trading"
	EventCapitalFlow EventType = "capital_flow"
	EventCompany     EventType = "company"
	EventIndustry    EventType = "industry"
	EventMacro       EventType = "macro"
	EventSentiment   EventType = "sentiment"
	EventNews        EventType = "news"
)

// ImpactLevel is the severity of an event, ordered low < medium < high < critical.
type ImpactLevel string

const (
	ImpactLow      ImpactLevel = "low"
	ImpactMedium   ImpactLevel = "medium"
	ImpactHigh     ImpactLevel = "high"
	ImpactCritical ImpactLevel = "critical"
)

// Rank returns the ordinal position of the impact level for comparisons.
func (l ImpactLevel) Rank() int {
	switch l {
	case ImpactLow:
		return 0
	case ImpactMedium:
		return 1
	case ImpactHigh:
		return 2
	case ImpactCritical:
		return 3
	default:
		return -1
	}
}

// Sentiment is the directional tone attached to an event.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// TriggerRule records the comparison that fired an event. It is descriptive
// and auditable only; it is never re-evaluated after the event is built.
type TriggerRule struct {
	Metric      string  `json:"metric"`
	Value       float64 `json:"value"`
	Threshold   float64 `json:"threshold"`
	Operator    string  `json:"operator"` // one of > >= < <= ==
	CalcFormula string  `json:"calc_formula,omitempty"`
}

// FinancialEvent is a detected market condition at a point in time.
// Events are immutable after detection and persisted via upsert-if-absent
// keyed on (EventID, EventTime).
type FinancialEvent struct {
	EventID          string                 `json:"event_id"`
	Symbol           string                 `json:"symbol"` // ticker, board name, or macro category
	EventType        EventType              `json:"event_type"`
	EventSubtype     string                 `json:"event_subtype"`
	EventTime        string                 `json:"event_time"` // TimeLayout or DateLayout
	DataSource       string                 `json:"data_source"`
	TriggerRule      *TriggerRule           `json:"trigger_rule,omitempty"`
	Sentiment        Sentiment              `json:"sentiment,omitempty"`
	ImpactLevel      ImpactLevel            `json:"impact_level"`
	EventDescription string                 `json:"event_description"`
	RawData          map[string]interface{} `json:"raw_data,omitempty"`
}

// GenerateEventID derives a deterministic event id so that re-detecting the
// same condition at the same observation time produces the same id. The
// timestamp is stripped of punctuation and compacted to 15 characters.
func GenerateEventID(symbol, eventTime, eventSubtype string) string {
	ts := strings.NewReplacer("-", "", ":", "", " ", "_").Replace(eventTime)
	if len(ts) > 15 {
		ts = ts[:15]
	}
	return symbol + "_" + ts + "_" + eventSubtype
}

// ParseEventTime parses an event timestamp in either supported layout.
func ParseEventTime(s string) (time.Time, error) {
	if t, err := time.ParseInLocation(TimeLayout, s, time.Local); err == nil {
		return t, nil
	}
	return time.ParseInLocation(DateLayout, s, time.Local)
}
