package detect

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"stock-radar/internal/config"
	rerrors "stock-radar/internal/errors"
	"stock-radar/internal/models"
	"stock-radar/internal/provider"
	"stock-radar/pkg/utils"
)

// recentDisclosureLimit caps how many of the newest disclosure rows are
// checked against the historical threshold on each sweep.
const recentDisclosureLimit = 5

// unlockRatioColumns are the column names, in preference order, that may
// carry the unlock-to-total-shares ratio. Names vary across provider
// versions, so each row is probed.
var unlockRatioColumns = []string{
	"FREE_RATIO", "LIFT_RATIO", "TOTAL_RATIO",
	"解禁占总股本比例", "占总股本比例", "解禁市值占总市值比例",
}

// unlockSharesColumns carry the number of shares unlocked.
var unlockSharesColumns = []string{
	"FREE_SHARES", "LIFT_NUM", "解禁数量", "解禁股数", "实际解禁数量",
}

// forecastTypeMapping maps an earnings forecast type to its sentiment and
// a short description.
var forecastTypeMapping = map[string]struct {
	sentiment models.Sentiment
	desc      string
}{
	"预增":  {models.SentimentPositive, "业绩预增"},
	"预减":  {models.SentimentNegative, "业绩预减"},
	"扭亏":  {models.SentimentPositive, "扭亏为盈"},
	"续亏":  {models.SentimentNegative, "继续亏损"},
	"略增":  {models.SentimentPositive, "业绩略增"},
	"略减":  {models.SentimentNegative, "业绩略减"},
	"不确定": {models.SentimentNeutral, "业绩不确定"},
}

// CompanyDetector detects corporate disclosure events for one symbol:
// earnings forecasts whose profit swing exceeds the symbol's historical
// percentile, and share unlocks whose ratio does the same.
type CompanyDetector struct {
	cfg    config.CompanyConfig
	data   provider.MarketData
	logger zerolog.Logger
}

// NewCompanyDetector creates a company detector.
func NewCompanyDetector(cfg config.CompanyConfig, data provider.MarketData, logger zerolog.Logger) *CompanyDetector {
	return &CompanyDetector{
		cfg:    cfg,
		data:   data,
		logger: logger.With().Str("detector", "company").Logger(),
	}
}

func (d *CompanyDetector) Name() string { return "company" }
func (d *CompanyDetector) Scope() Scope { return ScopeSymbol }

// Detect runs the forecast and unlock checks. A failure in one check is
// logged and does not suppress the other.
func (d *CompanyDetector) Detect(ctx context.Context, symbol string) ([]models.FinancialEvent, error) {
	var events []models.FinancialEvent

	forecastEvents, err := d.detectForecasts(ctx, symbol)
	if err != nil {
		d.logger.Warn().Err(err).Str("symbol", symbol).Msg("forecast check failed")
	} else {
		events = append(events, forecastEvents...)
	}

	unlockEvents, err := d.detectUnlocks(ctx, symbol)
	if err != nil {
		d.logger.Warn().Err(err).Str("symbol", symbol).Msg("unlock check failed")
	} else {
		events = append(events, unlockEvents...)
	}

	return events, nil
}

func (d *CompanyDetector) detectForecasts(ctx context.Context, symbol string) ([]models.FinancialEvent, error) {
	records, err := d.data.GetDisclosures(ctx, provider.DisclosureForecast, symbol)
	if err != nil {
		return nil, rerrors.NewDetectorError(d.Name(), symbol, err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	threshold := d.profitChangeThreshold(records)

	var events []models.FinancialEvent
	for _, rec := range newest(records, recentDisclosureLimit) {
		content := strings.ToLower(rec.Content)
		change, ok := utils.ExtractPercent(content)
		if !ok {
			continue
		}
		absChange := math.Abs(change)
		if absChange < threshold {
			continue
		}

		forecastType := strings.TrimSpace(rec.Fields["PREDICT_TYPE"])
		if forecastType == "" {
			forecastType = strings.TrimSpace(rec.Fields["预测类型"])
		}
		mapping, ok := forecastTypeMapping[forecastType]
		if !ok {
			mapping.sentiment = models.SentimentNeutral
			mapping.desc = "业绩预告"
		}

		eventTime := rec.Date
		if eventTime == "" {
			eventTime = time.Now().Format(models.TimeLayout)
		}
		op := ">"
		if change < 0 {
			op = "<"
		}

		events = append(events, models.FinancialEvent{
			EventID:      models.GenerateEventID(symbol, eventTime, "performance_forecast"),
			Symbol:       symbol,
			EventType:    models.EventCompany,
			EventSubtype: "performance_forecast",
			EventTime:    eventTime,
			DataSource:   dataSource,
			TriggerRule: &models.TriggerRule{
				Metric:    "profit_change_percent",
				Value:     round2(change),
				Threshold: round2(threshold),
				Operator:  op,
			},
			Sentiment:   mapping.sentiment,
			ImpactLevel: impactFromDeviation(absChange),
			EventDescription: fmt.Sprintf("%s：净利润变动%.2f%%（超历史%.0f%%分位数阈值%.2f%%），%s",
				mapping.desc, change, d.cfg.ProfitChangePercentile, threshold, truncate(content, 50)),
			RawData: map[string]interface{}{
				"forecast_type":        forecastType,
				"profit_change":        change,
				"historical_threshold": threshold,
				"forecast_content":     content,
				"report_period":        rec.ReportPeriod,
			},
		})
	}
	return events, nil
}

// profitChangeThreshold derives the symbol's percentile of historical abs
// profit swings, floored at the configured default.
func (d *CompanyDetector) profitChangeThreshold(records []provider.DisclosureRecord) float64 {
	var changes []float64
	for _, rec := range records {
		if change, ok := utils.ExtractPercent(rec.Content); ok {
			changes = append(changes, math.Abs(change))
		}
	}
	if len(changes) == 0 {
		return d.cfg.DefaultProfitThreshold
	}
	derived := Percentile(changes, d.cfg.ProfitChangePercentile)
	return ThresholdFloor(derived, d.cfg.DefaultProfitThreshold)
}

func (d *CompanyDetector) detectUnlocks(ctx context.Context, symbol string) ([]models.FinancialEvent, error) {
	records, err := d.data.GetDisclosures(ctx, provider.DisclosureUnlock, symbol)
	if err != nil {
		return nil, rerrors.NewDetectorError(d.Name(), symbol, err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	threshold := d.unlockRatioThreshold(records)

	var events []models.FinancialEvent
	for _, rec := range newest(records, recentDisclosureLimit) {
		ratio, ok := probeFloat(rec.Fields, unlockRatioColumns)
		if !ok || ratio < threshold {
			continue
		}

		eventTime := rec.Date
		if eventTime == "" {
			eventTime = time.Now().Format(models.TimeLayout)
		}
		shares, _ := probeFloat(rec.Fields, unlockSharesColumns)

		events = append(events, models.FinancialEvent{
			EventID:      models.GenerateEventID(symbol, eventTime, "share_unlock"),
			Symbol:       symbol,
			EventType:    models.EventCompany,
			EventSubtype: "share_unlock",
			EventTime:    eventTime,
			DataSource:   dataSource,
			TriggerRule: &models.TriggerRule{
				Metric:    "unlock_ratio_percent",
				Value:     round2(ratio),
				Threshold: round2(threshold),
				Operator:  ">=",
			},
			Sentiment:   models.SentimentNegative,
			ImpactLevel: impactFromDeviation(ratio),
			EventDescription: fmt.Sprintf("限售股解禁：占总股本%.2f%%（超历史%.0f%%分位数阈值%.2f%%），解禁数量%.2f股",
				ratio, d.cfg.UnlockRatioPercentile, threshold, shares),
			RawData: map[string]interface{}{
				"unlock_ratio":         ratio,
				"historical_threshold": threshold,
				"unlock_shares":        shares,
				"unlock_date":          eventTime,
				"unlock_type":          rec.Content,
			},
		})
	}
	return events, nil
}

// unlockRatioThreshold derives the symbol's percentile of historical unlock
// ratios, floored at the configured default.
func (d *CompanyDetector) unlockRatioThreshold(records []provider.DisclosureRecord) float64 {
	var ratios []float64
	for _, rec := range records {
		if ratio, ok := probeFloat(rec.Fields, unlockRatioColumns); ok {
			ratios = append(ratios, ratio)
		}
	}
	if len(ratios) == 0 {
		return d.cfg.DefaultUnlockThreshold
	}
	derived := Percentile(ratios, d.cfg.UnlockRatioPercentile)
	return ThresholdFloor(derived, d.cfg.DefaultUnlockThreshold)
}

// probeFloat returns the first candidate column that parses to a non-zero
// float, preserving candidate order.
func probeFloat(fields map[string]string, candidates []string) (float64, bool) {
	for _, col := range candidates {
		raw, ok := fields[col]
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		if v := utils.SafeFloat(raw); v != 0 {
			return v, true
		}
	}
	return 0, false
}

// newest returns up to n records from the front of the slice; provider
// rows arrive newest first.
func newest(records []provider.DisclosureRecord, n int) []provider.DisclosureRecord {
	if len(records) <= n {
		return records
	}
	return records[:n]
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
