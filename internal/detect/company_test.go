package detect

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-radar/internal/config"
	"stock-radar/internal/provider"
)

func companyTestConfig() config.CompanyConfig {
	return config.CompanyConfig{
		ProfitChangePercentile: 90,
		UnlockRatioPercentile:  90,
		DefaultProfitThreshold: 20.0,
		DefaultUnlockThreshold: 5.0,
	}
}

func forecastRecord(date, predictType string, changePct float64) provider.DisclosureRecord {
	return provider.DisclosureRecord{
		Symbol:       "600519",
		Date:         date,
		ReportPeriod: "2024-06-30",
		Content:      fmt.Sprintf("预计净利润同比变动%.1f%%", changePct),
		Fields:       map[string]string{"PREDICT_TYPE": predictType},
	}
}

func TestCompanyDetectorForecast(t *testing.T) {
	// Only the 55% swing clears the derived 90th percentile of history.
	records := []provider.DisclosureRecord{
		forecastRecord("2024-06-03", "预增", 55.0),
		forecastRecord("2024-04-10", "略增", 8.0),
		forecastRecord("2024-01-20", "略减", -6.0),
	}
	data := &fakeMarket{disclosures: map[provider.DisclosureKind][]provider.DisclosureRecord{
		provider.DisclosureForecast: records,
	}}
	d := NewCompanyDetector(companyTestConfig(), data, zerolog.Nop())

	events, err := d.Detect(context.Background(), "600519")
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, "performance_forecast", ev.EventSubtype)
	assert.Equal(t, "company", string(ev.EventType))
	assert.Equal(t, "positive", string(ev.Sentiment))
	assert.Equal(t, "2024-06-03", ev.EventTime)
	assert.InDelta(t, 55.0, ev.TriggerRule.Value, 0.01)
	// 55% beyond the threshold is a critical swing.
	assert.Equal(t, "critical", string(ev.ImpactLevel))
}

func TestCompanyDetectorForecastTypeMapping(t *testing.T) {
	cases := []struct {
		predictType string
		sentiment   string
	}{
		{"预增", "positive"},
		{"预减", "negative"},
		{"扭亏", "positive"},
		{"续亏", "negative"},
		{"不确定", "neutral"},
		{"未知类型", "neutral"},
	}
	for _, tc := range cases {
		data := &fakeMarket{disclosures: map[provider.DisclosureKind][]provider.DisclosureRecord{
			provider.DisclosureForecast: {forecastRecord("2024-06-03", tc.predictType, 80.0)},
		}}
		d := NewCompanyDetector(companyTestConfig(), data, zerolog.Nop())

		events, err := d.Detect(context.Background(), "600519")
		require.NoError(t, err)
		require.Len(t, events, 1, tc.predictType)
		assert.Equal(t, tc.sentiment, string(events[0].Sentiment), tc.predictType)
	}
}

func TestCompanyDetectorUnlock(t *testing.T) {
	records := []provider.DisclosureRecord{
		{
			Symbol: "600519", Date: "2024-06-10", Content: "定向增发机构配售股份",
			Fields: map[string]string{"FREE_RATIO": "12.5", "FREE_SHARES": "100000000"},
		},
		{
			Symbol: "600519", Date: "2023-06-10",
			Fields: map[string]string{"解禁占总股本比例": "1.2"},
		},
	}
	data := &fakeMarket{disclosures: map[provider.DisclosureKind][]provider.DisclosureRecord{
		provider.DisclosureUnlock: records,
	}}
	d := NewCompanyDetector(companyTestConfig(), data, zerolog.Nop())

	events, err := d.Detect(context.Background(), "600519")
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, "share_unlock", ev.EventSubtype)
	assert.Equal(t, "negative", string(ev.Sentiment))
	assert.InDelta(t, 12.5, ev.TriggerRule.Value, 0.01)
	assert.Equal(t, "2024-06-10", ev.EventTime)
}

func TestCompanyDetectorQuietHistory(t *testing.T) {
	data := &fakeMarket{disclosures: map[provider.DisclosureKind][]provider.DisclosureRecord{
		provider.DisclosureForecast: {forecastRecord("2024-06-03", "略增", 5.0)},
		provider.DisclosureUnlock: {{
			Symbol: "600519", Date: "2024-06-10",
			Fields: map[string]string{"FREE_RATIO": "0.8"},
		}},
	}}
	d := NewCompanyDetector(companyTestConfig(), data, zerolog.Nop())

	// Both observations sit below their default floors.
	events, err := d.Detect(context.Background(), "600519")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestProbeFloat(t *testing.T) {
	fields := map[string]string{
		"FREE_RATIO":  "",
		"LIFT_RATIO":  "3.4",
		"TOTAL_RATIO": "9.9",
	}
	v, ok := probeFloat(fields, unlockRatioColumns)
	require.True(t, ok)
	assert.InDelta(t, 3.4, v, 1e-9)

	_, ok = probeFloat(map[string]string{"OTHER": "1"}, unlockRatioColumns)
	assert.False(t, ok)
}
