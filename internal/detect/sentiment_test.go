package detect

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-radar/internal/config"
	"stock-radar/internal/provider"
)

func sentimentTestConfig() config.SentimentConfig {
	return config.SentimentConfig{
		RankRiseThreshold:  1000,
		RankDropThreshold:  -1000,
		Top1Threshold:      1,
		Top10Threshold:     10,
		Top50Threshold:     50,
		Top100Threshold:    100,
		PriceRiseThreshold: 9.0,
		PriceFallThreshold: -9.0,
	}
}

func TestSentimentDetectorTopOfList(t *testing.T) {
	data := &fakeMarket{attention: []provider.AttentionRow{
		{Code: "600519", Name: "贵州茅台", CurrentRank: "1", RankChange: "0", LatestPrice: "1700.00", PctChange: "0.50"},
	}}
	d := NewSentimentDetector(sentimentTestConfig(), data, zerolog.Nop())

	events, err := d.Detect(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, events, 1)

	top := events[0]
	assert.Equal(t, "top1_rank", top.EventSubtype)
	assert.Equal(t, "sentiment", string(top.EventType))
	assert.Equal(t, "critical", string(top.ImpactLevel))
	assert.Equal(t, "==", top.TriggerRule.Operator)
}

func TestSentimentDetectorRankAndPriceMoves(t *testing.T) {
	data := &fakeMarket{attention: []provider.AttentionRow{
		{Code: "000001", Name: "平安银行", CurrentRank: "75", RankChange: "1200", LatestPrice: "11.20", PctChange: "9.50"},
	}}
	d := NewSentimentDetector(sentimentTestConfig(), data, zerolog.Nop())

	events, err := d.Detect(context.Background(), "")
	require.NoError(t, err)

	got := map[string]bool{}
	for _, ev := range events {
		got[ev.EventSubtype] = true
	}
	assert.True(t, got["rank_rise_abnormal"])
	assert.True(t, got["top100_rank"])
	assert.True(t, got["price_rise_abnormal"])
	assert.Len(t, events, 3)
}

func TestSentimentDetectorRankDrop(t *testing.T) {
	data := &fakeMarket{attention: []provider.AttentionRow{
		{Code: "000063", Name: "中兴通讯", CurrentRank: "2500", RankChange: "-1500", LatestPrice: "30.00", PctChange: "-9.20"},
	}}
	d := NewSentimentDetector(sentimentTestConfig(), data, zerolog.Nop())

	events, err := d.Detect(context.Background(), "")
	require.NoError(t, err)

	var drop, fall bool
	for _, ev := range events {
		switch ev.EventSubtype {
		case "rank_drop_abnormal":
			drop = true
			assert.Equal(t, "negative", string(ev.Sentiment))
			assert.InDelta(t, -1500, ev.TriggerRule.Value, 1e-9)
		case "price_fall_abnormal":
			fall = true
		}
	}
	assert.True(t, drop)
	assert.True(t, fall)
}

func TestSentimentDetectorSymbolFilter(t *testing.T) {
	data := &fakeMarket{attention: []provider.AttentionRow{
		{Code: "600519", Name: "贵州茅台", CurrentRank: "5", RankChange: "0", LatestPrice: "1700.00", PctChange: "0.50"},
		{Code: "000001", Name: "平安银行", CurrentRank: "75", RankChange: "1200", LatestPrice: "11.20", PctChange: "9.50"},
	}}
	d := NewSentimentDetector(sentimentTestConfig(), data, zerolog.Nop())

	// Only the requested stock's row is considered.
	events, err := d.Detect(context.Background(), "600519")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "top10_rank", events[0].EventSubtype)

	// A stock off the list yields nothing, not an error.
	events, err = d.Detect(context.Background(), "999999")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestSentimentDetectorQuietRow(t *testing.T) {
	data := &fakeMarket{attention: []provider.AttentionRow{
		{Code: "600000", Name: "浦发银行", CurrentRank: "900", RankChange: "3", LatestPrice: "8.00", PctChange: "0.10"},
	}}
	d := NewSentimentDetector(sentimentTestConfig(), data, zerolog.Nop())

	events, err := d.Detect(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, events)
}
