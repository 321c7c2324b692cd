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
	"stock-radar/pkg/utils"
)

// SentimentDetector detects attention-ranking events on the market hot
// list: large rank moves, entry into the top tiers, and price anomalies of
// listed stocks.
type SentimentDetector struct {
	cfg    config.SentimentConfig
	data   provider.MarketData
	logger zerolog.Logger
}

// NewSentimentDetector creates a sentiment detector.
func NewSentimentDetector(cfg config.SentimentConfig, data provider.MarketData, logger zerolog.Logger) *SentimentDetector {
	return &SentimentDetector{
		cfg:    cfg,
		data:   data,
		logger: logger.With().Str("detector", "sentiment").Logger(),
	}
}

func (d *SentimentDetector) Name() string { return "sentiment" }
func (d *SentimentDetector) Scope() Scope { return ScopeMarket }

// Detect evaluates every stock on the hot list. When symbol is non-empty,
// only that stock's row is considered; a stock off the list yields no
// events and no error.
func (d *SentimentDetector) Detect(ctx context.Context, symbol string) ([]models.FinancialEvent, error) {
	rows, err := d.data.GetAttentionRanking(ctx)
	if err != nil {
		return nil, rerrors.NewDetectorError(d.Name(), symbol, err)
	}

	if symbol != "" {
		filtered := rows[:0:0]
		for _, row := range rows {
			if row.Code == symbol {
				filtered = append(filtered, row)
			}
		}
		if len(filtered) == 0 {
			d.logger.Debug().Str("symbol", symbol).Msg("not on attention ranking")
			return nil, nil
		}
		rows = filtered
	}

	eventTime := fixedDetectionTime(time.Now())

	var events []models.FinancialEvent
	for _, row := range rows {
		events = append(events, d.checkRankChange(row, eventTime)...)
		events = append(events, d.checkTopRank(row, eventTime)...)
		events = append(events, d.checkPriceFluct(row, eventTime)...)
	}
	return events, nil
}

func stockName(row provider.AttentionRow) string {
	if row.Name != "" {
		return row.Name
	}
	return "未知股票"
}

func (d *SentimentDetector) checkRankChange(row provider.AttentionRow, eventTime string) []models.FinancialEvent {
	rankChange := utils.SafeInt(row.RankChange)
	currentRank := utils.SafeInt(row.CurrentRank)
	name := stockName(row)

	var events []models.FinancialEvent

	if rankChange >= d.cfg.RankRiseThreshold {
		deviation := rankChange - d.cfg.RankRiseThreshold
		events = append(events, models.FinancialEvent{
			EventID:      models.GenerateEventID(row.Code, eventTime, "rank_rise_abnormal"),
			Symbol:       row.Code,
			EventType:    models.EventSentiment,
			EventSubtype: "rank_rise_abnormal",
			EventTime:    eventTime,
			DataSource:   dataSource,
			TriggerRule: &models.TriggerRule{
				Metric:    "排名较昨日变动",
				Value:     float64(rankChange),
				Threshold: float64(d.cfg.RankRiseThreshold),
				Operator:  ">=",
			},
			Sentiment:   models.SentimentPositive,
			ImpactLevel: impactFromRankDeviation(float64(deviation)),
			EventDescription: fmt.Sprintf("%s(%s)热门榜排名较昨日上升%d位（当前排名%d），触发排名大幅上升事件（阈值：%d位）",
				name, row.Code, rankChange, currentRank, d.cfg.RankRiseThreshold),
			RawData: map[string]interface{}{
				"stock_name":   name,
				"current_rank": currentRank,
				"rank_change":  rankChange,
				"threshold":    d.cfg.RankRiseThreshold,
			},
		})
	}

	if rankChange <= d.cfg.RankDropThreshold {
		deviation := rankChange - d.cfg.RankDropThreshold
		events = append(events, models.FinancialEvent{
			EventID:      models.GenerateEventID(row.Code, eventTime, "rank_drop_abnormal"),
			Symbol:       row.Code,
			EventType:    models.EventSentiment,
			EventSubtype: "rank_drop_abnormal",
			EventTime:    eventTime,
			DataSource:   dataSource,
			TriggerRule: &models.TriggerRule{
				Metric:    "排名较昨日变动",
				Value:     float64(rankChange),
				Threshold: float64(d.cfg.RankDropThreshold),
				Operator:  "<=",
			},
			Sentiment:   models.SentimentNegative,
			ImpactLevel: impactFromRankDeviation(math.Abs(float64(deviation))),
			EventDescription: fmt.Sprintf("%s(%s)热门榜排名较昨日下降%d位（当前排名%d），触发排名大幅下降事件（阈值：%d位）",
				name, row.Code, -rankChange, currentRank, -d.cfg.RankDropThreshold),
			RawData: map[string]interface{}{
				"stock_name":   name,
				"current_rank": currentRank,
				"rank_change":  rankChange,
				"threshold":    d.cfg.RankDropThreshold,
			},
		})
	}

	return events
}

// topRankTier describes one non-overlapping slice of the hot list.
type topRankTier struct {
	subtype string
	lower   int // exclusive
	upper   int // inclusive
	impact  models.ImpactLevel
	desc    string
}

func (d *SentimentDetector) checkTopRank(row provider.AttentionRow, eventTime string) []models.FinancialEvent {
	currentRank := utils.SafeInt(row.CurrentRank)
	name := stockName(row)

	tiers := []topRankTier{
		{"top1_rank", 0, d.cfg.Top1Threshold, models.ImpactCritical, "登顶东方财富热门榜第1名，触发榜首事件"},
		{"top10_rank", d.cfg.Top1Threshold, d.cfg.Top10Threshold, models.ImpactHigh, "进入东方财富热门榜前10（当前排名%d），触发前10排名事件"},
		{"top50_rank", d.cfg.Top10Threshold, d.cfg.Top50Threshold, models.ImpactMedium, "进入东方财富热门榜前50（当前排名%d），触发前50排名事件"},
		{"top100_rank", d.cfg.Top50Threshold, d.cfg.Top100Threshold, models.ImpactLow, "进入东方财富热门榜前100（当前排名%d），触发前100排名事件"},
	}

	var events []models.FinancialEvent
	for _, tier := range tiers {
		if currentRank <= tier.lower || currentRank > tier.upper {
			continue
		}
		op := "<="
		if tier.subtype == "top1_rank" {
			op = "=="
		}
		desc := tier.desc
		if tier.subtype != "top1_rank" {
			desc = fmt.Sprintf(tier.desc, currentRank)
		}
		events = append(events, models.FinancialEvent{
			EventID:      models.GenerateEventID(row.Code, eventTime, tier.subtype),
			Symbol:       row.Code,
			EventType:    models.EventSentiment,
			EventSubtype: tier.subtype,
			EventTime:    eventTime,
			DataSource:   dataSource,
			TriggerRule: &models.TriggerRule{
				Metric:    "当前排名",
				Value:     float64(currentRank),
				Threshold: float64(tier.upper),
				Operator:  op,
			},
			Sentiment:        models.SentimentPositive,
			ImpactLevel:      tier.impact,
			EventDescription: fmt.Sprintf("%s(%s)%s", name, row.Code, desc),
			RawData: map[string]interface{}{
				"stock_name":   name,
				"current_rank": currentRank,
				"threshold":    tier.upper,
			},
		})
	}
	return events
}

func (d *SentimentDetector) checkPriceFluct(row provider.AttentionRow, eventTime string) []models.FinancialEvent {
	priceChange := utils.SafeFloat(row.PctChange)
	latestPrice := utils.SafeFloat(row.LatestPrice)
	name := stockName(row)

	var events []models.FinancialEvent

	if priceChange >= d.cfg.PriceRiseThreshold {
		deviation := priceChange - d.cfg.PriceRiseThreshold
		events = append(events, models.FinancialEvent{
			EventID:      models.GenerateEventID(row.Code, eventTime, "price_rise_abnormal"),
			Symbol:       row.Code,
			EventType:    models.EventSentiment,
			EventSubtype: "price_rise_abnormal",
			EventTime:    eventTime,
			DataSource:   dataSource,
			TriggerRule: &models.TriggerRule{
				Metric:    "涨跌幅",
				Value:     priceChange,
				Threshold: d.cfg.PriceRiseThreshold,
				Operator:  ">=",
			},
			Sentiment:   models.SentimentPositive,
			ImpactLevel: impactFromPriceDeviation(deviation),
			EventDescription: fmt.Sprintf("%s(%s)涨跌幅%.2f%%（最新价%.2f），触发热门股涨幅异动事件（阈值：%g%%）",
				name, row.Code, priceChange, latestPrice, d.cfg.PriceRiseThreshold),
			RawData: map[string]interface{}{
				"stock_name":   name,
				"latest_price": latestPrice,
				"price_change": priceChange,
				"threshold":    d.cfg.PriceRiseThreshold,
			},
		})
	}

	if priceChange <= d.cfg.PriceFallThreshold {
		deviation := priceChange - d.cfg.PriceFallThreshold
		events = append(events, models.FinancialEvent{
			EventID:      models.GenerateEventID(row.Code, eventTime, "price_fall_abnormal"),
			Symbol:       row.Code,
			EventType:    models.EventSentiment,
			EventSubtype: "price_fall_abnormal",
			EventTime:    eventTime,
			DataSource:   dataSource,
			TriggerRule: &models.TriggerRule{
				Metric:    "涨跌幅",
				Value:     priceChange,
				Threshold: d.cfg.PriceFallThreshold,
				Operator:  "<=",
			},
			Sentiment:   models.SentimentNegative,
			ImpactLevel: impactFromPriceDeviation(math.Abs(deviation)),
			EventDescription: fmt.Sprintf("%s(%s)涨跌幅%.2f%%（最新价%.2f），触发热门股跌幅异动事件（阈值：%g%%）",
				name, row.Code, priceChange, latestPrice, d.cfg.PriceFallThreshold),
			RawData: map[string]interface{}{
				"stock_name":   name,
				"latest_price": latestPrice,
				"price_change": priceChange,
				"threshold":    d.cfg.PriceFallThreshold,
			},
		})
	}

	return events
}
