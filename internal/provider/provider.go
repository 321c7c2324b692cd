// Package provider defines the market data interface and its implementations.
package provider

import (
	"context"
	"time"
)

// DisclosureKind selects a disclosure table.
type DisclosureKind string

const (
	DisclosureForecast DisclosureKind = "forecast" // earnings forecasts (业绩预告)
	DisclosureUnlock   DisclosureKind = "unlock"   // share unlock schedule (限售解禁)
)

// Candle is one daily OHLCV bar.
type Candle struct {
	Date      time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Amount    float64
	PctChange float64
}

// MinuteBar is one intraday observation.
type MinuteBar struct {
	Time   time.Time
	Close  float64
	Volume float64
}

// DisclosureRecord is one row of a disclosure table. Column names vary by
// table and provider version, so values beyond the common fields are kept
// as a raw field map and probed by name at the point of use.
type DisclosureRecord struct {
	Symbol       string
	Date         string // announce date or unlock date
	ReportPeriod string
	Content      string
	Fields       map[string]string
}

// BoardRow is one industry-board summary row. Fields are raw strings as the
// provider returns them; numeric interpretation happens at the point of use.
type BoardRow struct {
	Name         string
	PctChange    string
	TotalAmount  string
	NetInflow    string // CNY 100M
	RiseCount    string
	FallCount    string
	LeaderStock  string
	LeaderChange string
}

// AttentionRow is one stock on the market attention ranking.
type AttentionRow struct {
	Code        string
	Name        string
	CurrentRank string
	RankChange  string
	LatestPrice string
	PctChange   string
}

// NewsItem is one macro news flash.
type NewsItem struct {
	Time    string
	Content string
}

// MarketData is the read-only market data surface the detectors consume.
// Implementations must be safe for concurrent use.
type MarketData interface {
	// GetOHLCV returns daily bars for a symbol, oldest first.
	GetOHLCV(ctx context.Context, symbol string, start, end time.Time) ([]Candle, error)
	// GetIntraday returns today's minute bars for a symbol, oldest first.
	GetIntraday(ctx context.Context, symbol string) ([]MinuteBar, error)
	// GetDisclosures returns disclosure rows for a symbol, newest first.
	GetDisclosures(ctx context.Context, kind DisclosureKind, symbol string) ([]DisclosureRecord, error)
	// GetBoardSummary returns the current industry-board snapshot.
	GetBoardSummary(ctx context.Context) ([]BoardRow, error)
	// GetAttentionRanking returns the market attention ranking.
	GetAttentionRanking(ctx context.Context) ([]AttentionRow, error)
	// GetMacroNews returns recent macro news flashes, newest first.
	GetMacroNews(ctx context.Context, limit int) ([]NewsItem, error)
}
