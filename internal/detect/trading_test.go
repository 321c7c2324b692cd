package detect

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-radar/internal/config"
	"stock-radar/internal/provider"
)

// fakeMarket is a canned MarketData implementation shared by the detector
// tests.
type fakeMarket struct {
	candles     []provider.Candle
	bars        []provider.MinuteBar
	disclosures map[provider.DisclosureKind][]provider.DisclosureRecord
	boards      []provider.BoardRow
	attention   []provider.AttentionRow
	news        []provider.NewsItem
	err         error
}

func (f *fakeMarket) GetOHLCV(ctx context.Context, symbol string, start, end time.Time) ([]provider.Candle, error) {
	return f.candles, f.err
}

func (f *fakeMarket) GetIntraday(ctx context.Context, symbol string) ([]provider.MinuteBar, error) {
	return f.bars, f.err
}

func (f *fakeMarket) GetDisclosures(ctx context.Context, kind provider.DisclosureKind, symbol string) ([]provider.DisclosureRecord, error) {
	return f.disclosures[kind], f.err
}

func (f *fakeMarket) GetBoardSummary(ctx context.Context) ([]provider.BoardRow, error) {
	return f.boards, f.err
}

func (f *fakeMarket) GetAttentionRanking(ctx context.Context) ([]provider.AttentionRow, error) {
	return f.attention, f.err
}

func (f *fakeMarket) GetMacroNews(ctx context.Context, limit int) ([]provider.NewsItem, error) {
	return f.news, f.err
}

func tradingTestConfig() config.TradingConfig {
	return config.TradingConfig{
		PriceLookback:        60,
		VolumeLookback:       30,
		VolatilityLookback:   100,
		VolatilityPercentile: 95,
		MAPeriods:            []int{5},
		LimitMoveThreshold:   9.9,
		VolumeMultiplier:     2.0,
		DefaultVolatility:    0.02,
	}
}

func flatHistory(n int, close, volume float64) []provider.Candle {
	day := time.Now().AddDate(0, 0, -n-1)
	candles := make([]provider.Candle, 0, n)
	for i := 0; i < n; i++ {
		candles = append(candles, provider.Candle{
			Date:      day.AddDate(0, 0, i),
			Close:     close,
			Volume:    volume,
			PctChange: 1.0,
		})
	}
	return candles
}

func TestTradingDetectorPriceJumpAndMACross(t *testing.T) {
	data := &fakeMarket{
		candles: flatHistory(10, 10, 1000),
		bars: []provider.MinuteBar{
			{Time: time.Now(), Close: 10.5, Volume: 500},
		},
	}
	d := NewTradingDetector(tradingTestConfig(), 120, data, zerolog.Nop())

	events, err := d.Detect(context.Background(), "600519")
	require.NoError(t, err)

	got := map[string]bool{}
	for _, ev := range events {
		got[ev.EventSubtype] = true
		assert.Equal(t, "600519", ev.Symbol)
		assert.Equal(t, "trading", string(ev.EventType))
		assert.Equal(t, "eastmoney", ev.DataSource)
		assert.NotNil(t, ev.TriggerRule)
	}
	// +5% vs the daily close clears the 1% jump threshold and sits above MA5.
	assert.True(t, got["price_jump"])
	assert.True(t, got["ma5_cross_up"])
	assert.False(t, got["limit_up"])
	assert.False(t, got["volume_anomaly"])
}

func TestTradingDetectorLimitUp(t *testing.T) {
	data := &fakeMarket{
		candles: flatHistory(10, 10, 1000),
		bars: []provider.MinuteBar{
			{Time: time.Now(), Close: 11.0, Volume: 500},
		},
	}
	d := NewTradingDetector(tradingTestConfig(), 120, data, zerolog.Nop())

	events, err := d.Detect(context.Background(), "600519")
	require.NoError(t, err)

	var limitUp bool
	for _, ev := range events {
		if ev.EventSubtype == "limit_up" {
			limitUp = true
			assert.Equal(t, "critical", string(ev.ImpactLevel))
			assert.Equal(t, "positive", string(ev.Sentiment))
			assert.InDelta(t, 10.0, ev.TriggerRule.Value, 0.01)
		}
	}
	assert.True(t, limitUp)
}

func TestTradingDetectorVolumeAnomaly(t *testing.T) {
	data := &fakeMarket{
		candles: flatHistory(10, 10, 1000),
		bars: []provider.MinuteBar{
			{Time: time.Now(), Close: 10.0, Volume: 3000},
		},
	}
	d := NewTradingDetector(tradingTestConfig(), 120, data, zerolog.Nop())

	events, err := d.Detect(context.Background(), "600519")
	require.NoError(t, err)

	var volume bool
	for _, ev := range events {
		if ev.EventSubtype == "volume_anomaly" {
			volume = true
			assert.InDelta(t, 3.0, ev.TriggerRule.Value, 0.01)
		}
	}
	assert.True(t, volume)
}

func TestTradingDetectorQuietMarket(t *testing.T) {
	data := &fakeMarket{
		candles: flatHistory(10, 10, 1000),
		bars: []provider.MinuteBar{
			{Time: time.Now(), Close: 10.0, Volume: 500},
		},
	}
	d := NewTradingDetector(tradingTestConfig(), 120, data, zerolog.Nop())

	events, err := d.Detect(context.Background(), "600519")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestTradingDetectorNoTodayBars(t *testing.T) {
	data := &fakeMarket{
		candles: flatHistory(10, 10, 1000),
		bars: []provider.MinuteBar{
			{Time: time.Now().AddDate(0, 0, -1), Close: 10.5, Volume: 500},
		},
	}
	d := NewTradingDetector(tradingTestConfig(), 120, data, zerolog.Nop())

	events, err := d.Detect(context.Background(), "600519")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestTradingDetectorProviderError(t *testing.T) {
	data := &fakeMarket{err: errors.New("boom")}
	d := NewTradingDetector(tradingTestConfig(), 120, data, zerolog.Nop())

	_, err := d.Detect(context.Background(), "600519")
	assert.Error(t, err)
}
