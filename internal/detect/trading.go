package detect

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"stock-radar/internal/config"
	rerrors "stock-radar/internal/errors"
	"stock-radar/internal/models"
	"stock-radar/internal/provider"
)

// TradingDetector detects intraday trading anomalies for one symbol by
// comparing the latest minute bar against benchmarks recomputed from daily
// history on every call.
type TradingDetector struct {
	cfg      config.TradingConfig
	lookback int // calendar days of daily history to fetch
	data     provider.MarketData
	logger   zerolog.Logger
}

// NewTradingDetector creates a trading detector.
func NewTradingDetector(cfg config.TradingConfig, lookbackDays int, data provider.MarketData, logger zerolog.Logger) *TradingDetector {
	return &TradingDetector{
		cfg:      cfg,
		lookback: lookbackDays,
		data:     data,
		logger:   logger.With().Str("detector", "trading").Logger(),
	}
}

func (d *TradingDetector) Name() string { return "trading" }
func (d *TradingDetector) Scope() Scope { return ScopeSymbol }

// Detect runs the five trading checks against the latest intraday bar.
func (d *TradingDetector) Detect(ctx context.Context, symbol string) ([]models.FinancialEvent, error) {
	now := time.Now()
	candles, err := d.data.GetOHLCV(ctx, symbol, now.AddDate(0, 0, -d.lookback), now)
	if err != nil {
		return nil, rerrors.NewDetectorError(d.Name(), symbol, err)
	}
	baseline := ComputeDailyBaseline(candles, d.cfg)
	if baseline == nil {
		return nil, rerrors.NewDetectorError(d.Name(), symbol, rerrors.ErrDataUnavailable)
	}

	bars, err := d.data.GetIntraday(ctx, symbol)
	if err != nil {
		return nil, rerrors.NewDetectorError(d.Name(), symbol, err)
	}
	bars = todayBars(bars, now)
	if len(bars) == 0 {
		d.logger.Debug().Str("symbol", symbol).Msg("no intraday bars for today")
		return nil, nil
	}

	latest := bars[len(bars)-1]
	realTimePct := 0.0
	if baseline.LatestDailyClose != 0 {
		realTimePct = (latest.Close - baseline.LatestDailyClose) / baseline.LatestDailyClose * 100
	}
	minutePct, haveMinutePct := 0.0, false
	if len(bars) >= 2 && bars[len(bars)-2].Close != 0 {
		minutePct = (latest.Close/bars[len(bars)-2].Close - 1) * 100
		haveMinutePct = true
	}
	eventTime := latest.Time.Format(models.TimeLayout)

	var events []models.FinancialEvent
	events = append(events, d.checkPriceJump(symbol, eventTime, latest, baseline, realTimePct)...)
	events = append(events, d.checkVolumeAnomaly(symbol, eventTime, latest, baseline)...)
	events = append(events, d.checkLimitMove(symbol, eventTime, latest, realTimePct)...)
	events = append(events, d.checkMACross(symbol, eventTime, latest, baseline)...)
	if haveMinutePct {
		events = append(events, d.checkVolatilityAnomaly(symbol, eventTime, latest, baseline, minutePct)...)
	}
	return events, nil
}

func todayBars(bars []provider.MinuteBar, now time.Time) []provider.MinuteBar {
	out := bars[:0:0]
	for _, b := range bars {
		if sameDay(b.Time, now) {
			out = append(out, b)
		}
	}
	return out
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func (d *TradingDetector) checkPriceJump(symbol, eventTime string, latest provider.MinuteBar, b *DailyBaseline, realTimePct float64) []models.FinancialEvent {
	if math.Abs(realTimePct) < b.PriceJumpThreshold {
		return nil
	}
	op, sentiment := ">", models.SentimentPositive
	if realTimePct < 0 {
		op, sentiment = "<", models.SentimentNegative
	}
	return []models.FinancialEvent{{
		EventID:      models.GenerateEventID(symbol, eventTime, "price_jump"),
		Symbol:       symbol,
		EventType:    models.EventTrading,
		EventSubtype: "price_jump",
		EventTime:    eventTime,
		DataSource:   dataSource,
		TriggerRule: &models.TriggerRule{
			Metric:    "real_time_price_jump",
			Value:     round2(realTimePct),
			Threshold: round2(b.PriceJumpThreshold),
			Operator:  op,
		},
		Sentiment:   sentiment,
		ImpactLevel: impactFromDeviation(realTimePct),
		EventDescription: fmt.Sprintf("实时价格波动%.2f%%，超过日线基准阈值%.2f%%",
			realTimePct, b.PriceJumpThreshold),
		RawData: map[string]interface{}{
			"real_time_close":      latest.Close,
			"daily_close_benchmark": b.LatestDailyClose,
			"price_threshold":      b.PriceJumpThreshold,
			"real_time_pct_change": realTimePct,
		},
	}}
}

func (d *TradingDetector) checkVolumeAnomaly(symbol, eventTime string, latest provider.MinuteBar, b *DailyBaseline) []models.FinancialEvent {
	threshold := b.VolumeBenchmark * d.cfg.VolumeMultiplier
	if b.VolumeBenchmark <= 0 || latest.Volume < threshold {
		return nil
	}
	ratio := latest.Volume / b.VolumeBenchmark
	return []models.FinancialEvent{{
		EventID:      models.GenerateEventID(symbol, eventTime, "volume_anomaly"),
		Symbol:       symbol,
		EventType:    models.EventTrading,
		EventSubtype: "volume_anomaly",
		EventTime:    eventTime,
		DataSource:   dataSource,
		TriggerRule: &models.TriggerRule{
			Metric:    "real_time_volume_anomaly",
			Value:     round2(ratio),
			Threshold: round2(d.cfg.VolumeMultiplier),
			Operator:  ">",
		},
		Sentiment:   models.SentimentNeutral,
		ImpactLevel: impactFromDeviation((ratio - 1) * 100),
		EventDescription: fmt.Sprintf("实时成交量%.0f，为日线平均成交量(%.0f)的%.2f倍",
			latest.Volume, b.VolumeBenchmark, ratio),
		RawData: map[string]interface{}{
			"real_time_volume":       latest.Volume,
			"daily_volume_benchmark": b.VolumeBenchmark,
			"volume_multiplier":      d.cfg.VolumeMultiplier,
			"volume_threshold":       threshold,
		},
	}}
}

func (d *TradingDetector) checkLimitMove(symbol, eventTime string, latest provider.MinuteBar, realTimePct float64) []models.FinancialEvent {
	limit := d.cfg.LimitMoveThreshold
	limitUp := realTimePct >= limit
	limitDown := realTimePct <= -limit
	if !limitUp && !limitDown {
		return nil
	}
	subtype, op, threshold, sentiment, word := "limit_up", ">", limit, models.SentimentPositive, "涨停"
	if limitDown {
		subtype, op, threshold, sentiment, word = "limit_down", "<", -limit, models.SentimentNegative, "跌停"
	}
	return []models.FinancialEvent{{
		EventID:      models.GenerateEventID(symbol, eventTime, subtype),
		Symbol:       symbol,
		EventType:    models.EventTrading,
		EventSubtype: subtype,
		EventTime:    eventTime,
		DataSource:   dataSource,
		TriggerRule: &models.TriggerRule{
			Metric:    "real_time_limit_move",
			Value:     round2(realTimePct),
			Threshold: threshold,
			Operator:  op,
		},
		Sentiment:   sentiment,
		ImpactLevel: models.ImpactCritical,
		EventDescription: fmt.Sprintf("实时%s，涨跌幅%.2f%%（阈值%g%%）",
			word, realTimePct, limit),
		RawData: map[string]interface{}{
			"real_time_close":      latest.Close,
			"real_time_pct_change": realTimePct,
			"limit_threshold":      limit,
		},
	}}
}

func (d *TradingDetector) checkMACross(symbol, eventTime string, latest provider.MinuteBar, b *DailyBaseline) []models.FinancialEvent {
	var events []models.FinancialEvent
	for _, period := range d.cfg.MAPeriods {
		ma, ok := b.MAValues[period]
		if !ok || ma == 0 || latest.Close == ma {
			continue
		}
		deviation := (latest.Close - ma) / ma * 100
		direction, op, sentiment, word := "up", ">", models.SentimentPositive, "上穿"
		if latest.Close < ma {
			direction, op, sentiment, word = "down", "<", models.SentimentNegative, "下穿"
		}
		subtype := fmt.Sprintf("ma%d_cross_%s", period, direction)
		events = append(events, models.FinancialEvent{
			EventID:      models.GenerateEventID(symbol, eventTime, subtype),
			Symbol:       symbol,
			EventType:    models.EventTrading,
			EventSubtype: subtype,
			EventTime:    eventTime,
			DataSource:   dataSource,
			TriggerRule: &models.TriggerRule{
				Metric:    fmt.Sprintf("real_time_ma%d_cross", period),
				Value:     round2(deviation),
				Threshold: 0,
				Operator:  op,
			},
			Sentiment:   sentiment,
			ImpactLevel: impactFromDeviation(deviation),
			EventDescription: fmt.Sprintf("实时价格%.2f%s日线MA%d均线(%.2f)，偏离%.2f%%",
				latest.Close, word, period, ma, deviation),
			RawData: map[string]interface{}{
				"real_time_close":                 latest.Close,
				fmt.Sprintf("daily_MA%d", period): ma,
				"deviation_pct":                   deviation,
			},
		})
	}
	return events
}

func (d *TradingDetector) checkVolatilityAnomaly(symbol, eventTime string, latest provider.MinuteBar, b *DailyBaseline, minutePct float64) []models.FinancialEvent {
	thresholdPct := b.VolatilityThreshold * 100
	if math.Abs(minutePct) < thresholdPct {
		return nil
	}
	return []models.FinancialEvent{{
		EventID:      models.GenerateEventID(symbol, eventTime, "volatility_anomaly"),
		Symbol:       symbol,
		EventType:    models.EventTrading,
		EventSubtype: "volatility_anomaly",
		EventTime:    eventTime,
		DataSource:   dataSource,
		TriggerRule: &models.TriggerRule{
			Metric:    "real_time_volatility_anomaly",
			Value:     round2(math.Abs(minutePct)),
			Threshold: round2(thresholdPct),
			Operator:  ">",
		},
		Sentiment:   models.SentimentNeutral,
		ImpactLevel: models.ImpactHigh,
		EventDescription: fmt.Sprintf("实时分钟波动率%.2f%%，超过日线%.0f%%分位数阈值%.2f%%",
			minutePct, d.cfg.VolatilityPercentile, thresholdPct),
		RawData: map[string]interface{}{
			"minute_pct_change":        minutePct,
			"volatility_threshold_pct": thresholdPct,
			"real_time_close":          latest.Close,
		},
	}}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
