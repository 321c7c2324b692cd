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

// boardInfo is one industry board row with fields parsed.
type boardInfo struct {
	Name         string
	PriceChange  float64
	TotalAmount  float64
	NetInflow    float64 // CNY 100M
	RiseStocks   float64
	FallStocks   float64
	TotalStocks  float64
	LeaderStock  string
	LeaderChange float64
}

// IndustryDetector detects board-level anomalies against market-wide fixed
// thresholds: price moves, capital flows, breadth consistency, and leader
// stock swings. Capital-flow events are typed separately so user rules can
// subscribe to them on their own.
type IndustryDetector struct {
	cfg    config.IndustryConfig
	data   provider.MarketData
	logger zerolog.Logger
}

// NewIndustryDetector creates an industry-board detector.
func NewIndustryDetector(cfg config.IndustryConfig, data provider.MarketData, logger zerolog.Logger) *IndustryDetector {
	return &IndustryDetector{
		cfg:    cfg,
		data:   data,
		logger: logger.With().Str("detector", "industry").Logger(),
	}
}

func (d *IndustryDetector) Name() string { return "industry" }
func (d *IndustryDetector) Scope() Scope { return ScopeMarket }

// Detect evaluates every board in the snapshot. The symbol argument is
// ignored; board names act as symbols on emitted events.
func (d *IndustryDetector) Detect(ctx context.Context, _ string) ([]models.FinancialEvent, error) {
	rows, err := d.data.GetBoardSummary(ctx)
	if err != nil {
		return nil, rerrors.NewDetectorError(d.Name(), "", err)
	}

	eventTime := fixedDetectionTime(time.Now())

	var events []models.FinancialEvent
	for _, row := range rows {
		info := parseBoardRow(row)
		if info.Name == "" {
			continue
		}
		events = append(events, d.checkPrice(info, eventTime)...)
		events = append(events, d.checkCapital(info, eventTime)...)
		events = append(events, d.checkBreadth(info, eventTime)...)
		events = append(events, d.checkLeader(info, eventTime)...)
	}
	return events, nil
}

func parseBoardRow(row provider.BoardRow) boardInfo {
	rise := utils.SafeFloat(row.RiseCount)
	fall := utils.SafeFloat(row.FallCount)
	return boardInfo{
		Name:         row.Name,
		PriceChange:  utils.SafeFloat(row.PctChange),
		TotalAmount:  utils.SafeFloat(row.TotalAmount),
		NetInflow:    utils.SafeFloat(row.NetInflow),
		RiseStocks:   rise,
		FallStocks:   fall,
		TotalStocks:  rise + fall,
		LeaderStock:  row.LeaderStock,
		LeaderChange: utils.SafeFloat(row.LeaderChange),
	}
}

func (i boardInfo) rawData() map[string]interface{} {
	return map[string]interface{}{
		"board_name":    i.Name,
		"price_change":  i.PriceChange,
		"total_amount":  i.TotalAmount,
		"net_inflow":    i.NetInflow,
		"rise_stocks":   i.RiseStocks,
		"fall_stocks":   i.FallStocks,
		"total_stocks":  i.TotalStocks,
		"leader_stock":  i.LeaderStock,
		"leader_change": i.LeaderChange,
	}
}

func (d *IndustryDetector) priceImpact(value, threshold float64) models.ImpactLevel {
	deviation := math.Abs(value - threshold)
	switch {
	case deviation > 5:
		return models.ImpactCritical
	case deviation > 3:
		return models.ImpactHigh
	default:
		return models.ImpactMedium
	}
}

func (d *IndustryDetector) capitalImpact(value, threshold float64) models.ImpactLevel {
	deviation := math.Abs(value - threshold)
	switch {
	case deviation > 50:
		return models.ImpactCritical
	case deviation > 20:
		return models.ImpactHigh
	default:
		return models.ImpactMedium
	}
}

func (d *IndustryDetector) breadthImpact(value, threshold float64) models.ImpactLevel {
	if math.Abs(value-threshold) > 0.2 {
		return models.ImpactHigh
	}
	return models.ImpactMedium
}

func (d *IndustryDetector) leaderImpact(value float64) models.ImpactLevel {
	if math.Abs(value) > 10 {
		return models.ImpactCritical
	}
	return models.ImpactHigh
}

func (d *IndustryDetector) checkPrice(info boardInfo, eventTime string) []models.FinancialEvent {
	var events []models.FinancialEvent

	if info.PriceChange >= d.cfg.PriceRiseThreshold {
		events = append(events, models.FinancialEvent{
			EventID:      models.GenerateEventID(info.Name, eventTime, "price_rise_abnormal"),
			Symbol:       info.Name,
			EventType:    models.EventIndustry,
			EventSubtype: "price_rise_abnormal",
			EventTime:    eventTime,
			DataSource:   dataSource,
			TriggerRule: &models.TriggerRule{
				Metric:      "板块涨跌幅",
				Value:       info.PriceChange,
				Threshold:   d.cfg.PriceRiseThreshold,
				Operator:    ">=",
				CalcFormula: fmt.Sprintf("板块涨跌幅 ≥ %g%%", d.cfg.PriceRiseThreshold),
			},
			Sentiment:   models.SentimentPositive,
			ImpactLevel: d.priceImpact(info.PriceChange, d.cfg.PriceRiseThreshold),
			EventDescription: fmt.Sprintf("%s板块涨跌幅%.2f%%，高于阈值%g%%，触发行业涨幅异常事件",
				info.Name, info.PriceChange, d.cfg.PriceRiseThreshold),
			RawData: info.rawData(),
		})
	}

	if info.PriceChange <= d.cfg.PriceFallThreshold {
		events = append(events, models.FinancialEvent{
			EventID:      models.GenerateEventID(info.Name, eventTime, "price_fall_abnormal"),
			Symbol:       info.Name,
			EventType:    models.EventIndustry,
			EventSubtype: "price_fall_abnormal",
			EventTime:    eventTime,
			DataSource:   dataSource,
			TriggerRule: &models.TriggerRule{
				Metric:      "板块涨跌幅",
				Value:       info.PriceChange,
				Threshold:   d.cfg.PriceFallThreshold,
				Operator:    "<=",
				CalcFormula: fmt.Sprintf("板块涨跌幅 ≤ %g%%", d.cfg.PriceFallThreshold),
			},
			Sentiment:   models.SentimentNegative,
			ImpactLevel: d.priceImpact(info.PriceChange, d.cfg.PriceFallThreshold),
			EventDescription: fmt.Sprintf("%s板块涨跌幅%.2f%%，低于阈值%g%%，触发行业跌幅异常事件",
				info.Name, info.PriceChange, d.cfg.PriceFallThreshold),
			RawData: info.rawData(),
		})
	}

	return events
}

func (d *IndustryDetector) checkCapital(info boardInfo, eventTime string) []models.FinancialEvent {
	var events []models.FinancialEvent

	if info.NetInflow > d.cfg.CapitalInflowThreshold {
		events = append(events, models.FinancialEvent{
			EventID:      models.GenerateEventID(info.Name, eventTime, "capital_inflow_abnormal"),
			Symbol:       info.Name,
			EventType:    models.EventCapitalFlow,
			EventSubtype: "capital_inflow_abnormal",
			EventTime:    eventTime,
			DataSource:   dataSource,
			TriggerRule: &models.TriggerRule{
				Metric:      "板块净流入",
				Value:       info.NetInflow,
				Threshold:   d.cfg.CapitalInflowThreshold,
				Operator:    ">",
				CalcFormula: fmt.Sprintf("板块净流入 > %g亿元", d.cfg.CapitalInflowThreshold),
			},
			Sentiment:   models.SentimentPositive,
			ImpactLevel: d.capitalImpact(info.NetInflow, d.cfg.CapitalInflowThreshold),
			EventDescription: fmt.Sprintf("%s板块净流入%.2f亿元，超过阈值%g亿元，触发资金显著流入事件",
				info.Name, info.NetInflow, d.cfg.CapitalInflowThreshold),
			RawData: info.rawData(),
		})
	}

	if info.NetInflow < d.cfg.CapitalOutflowThreshold {
		events = append(events, models.FinancialEvent{
			EventID:      models.GenerateEventID(info.Name, eventTime, "capital_outflow_abnormal"),
			Symbol:       info.Name,
			EventType:    models.EventCapitalFlow,
			EventSubtype: "capital_outflow_abnormal",
			EventTime:    eventTime,
			DataSource:   dataSource,
			TriggerRule: &models.TriggerRule{
				Metric:      "板块净流入",
				Value:       info.NetInflow,
				Threshold:   d.cfg.CapitalOutflowThreshold,
				Operator:    "<",
				CalcFormula: fmt.Sprintf("板块净流入 < %g亿元", d.cfg.CapitalOutflowThreshold),
			},
			Sentiment:   models.SentimentNegative,
			ImpactLevel: d.capitalImpact(info.NetInflow, d.cfg.CapitalOutflowThreshold),
			EventDescription: fmt.Sprintf("%s板块净流入%.2f亿元，低于阈值%g亿元，触发资金显著流出事件",
				info.Name, info.NetInflow, d.cfg.CapitalOutflowThreshold),
			RawData: info.rawData(),
		})
	}

	return events
}

func (d *IndustryDetector) checkBreadth(info boardInfo, eventTime string) []models.FinancialEvent {
	if info.TotalStocks == 0 {
		return nil
	}

	var events []models.FinancialEvent

	riseRatio := info.RiseStocks / info.TotalStocks
	if riseRatio >= d.cfg.RiseConsistencyThreshold {
		raw := info.rawData()
		raw["rise_ratio"] = riseRatio
		events = append(events, models.FinancialEvent{
			EventID:      models.GenerateEventID(info.Name, eventTime, "rise_consistency_abnormal"),
			Symbol:       info.Name,
			EventType:    models.EventIndustry,
			EventSubtype: "rise_consistency_abnormal",
			EventTime:    eventTime,
			DataSource:   dataSource,
			TriggerRule: &models.TriggerRule{
				Metric:      "上涨家数占比",
				Value:       riseRatio,
				Threshold:   d.cfg.RiseConsistencyThreshold,
				Operator:    ">=",
				CalcFormula: fmt.Sprintf("上涨家数 / (上涨家数 + 下跌家数) ≥ %.0f%%", d.cfg.RiseConsistencyThreshold*100),
			},
			Sentiment:   models.SentimentPositive,
			ImpactLevel: d.breadthImpact(riseRatio, d.cfg.RiseConsistencyThreshold),
			EventDescription: fmt.Sprintf("%s板块上涨家数占比%.1f%%（%.0f/%.0f），高于阈值%.1f%%，触发上涨一致性事件",
				info.Name, riseRatio*100, info.RiseStocks, info.TotalStocks, d.cfg.RiseConsistencyThreshold*100),
			RawData: raw,
		})
	}

	fallRatio := info.FallStocks / info.TotalStocks
	if fallRatio >= d.cfg.FallConsistencyThreshold {
		raw := info.rawData()
		raw["fall_ratio"] = fallRatio
		events = append(events, models.FinancialEvent{
			EventID:      models.GenerateEventID(info.Name, eventTime, "fall_consistency_abnormal"),
			Symbol:       info.Name,
			EventType:    models.EventIndustry,
			EventSubtype: "fall_consistency_abnormal",
			EventTime:    eventTime,
			DataSource:   dataSource,
			TriggerRule: &models.TriggerRule{
				Metric:      "下跌家数占比",
				Value:       fallRatio,
				Threshold:   d.cfg.FallConsistencyThreshold,
				Operator:    ">=",
				CalcFormula: fmt.Sprintf("下跌家数 / (上涨家数 + 下跌家数) ≥ %.0f%%", d.cfg.FallConsistencyThreshold*100),
			},
			Sentiment:   models.SentimentNegative,
			ImpactLevel: d.breadthImpact(fallRatio, d.cfg.FallConsistencyThreshold),
			EventDescription: fmt.Sprintf("%s板块下跌家数占比%.1f%%（%.0f/%.0f），高于阈值%.1f%%，触发下跌一致性事件",
				info.Name, fallRatio*100, info.FallStocks, info.TotalStocks, d.cfg.FallConsistencyThreshold*100),
			RawData: raw,
		})
	}

	return events
}

func (d *IndustryDetector) checkLeader(info boardInfo, eventTime string) []models.FinancialEvent {
	threshold := d.cfg.LeaderFluctuationThreshold
	if math.Abs(info.LeaderChange) < threshold {
		return nil
	}

	op, sentiment, word, signed := ">=", models.SentimentPositive, "上涨", threshold
	if info.LeaderChange < 0 {
		op, sentiment, word, signed = "<=", models.SentimentNegative, "下跌", -threshold
	}

	return []models.FinancialEvent{{
		EventID:      models.GenerateEventID(info.Name, eventTime, "leader_fluctuation_abnormal"),
		Symbol:       info.Name,
		EventType:    models.EventIndustry,
		EventSubtype: "leader_fluctuation_abnormal",
		EventTime:    eventTime,
		DataSource:   dataSource,
		TriggerRule: &models.TriggerRule{
			Metric:      "领涨股涨跌幅",
			Value:       info.LeaderChange,
			Threshold:   signed,
			Operator:    op,
			CalcFormula: fmt.Sprintf("领涨股涨跌幅 ≥ %g%% 或 ≤ -%g%%", threshold, threshold),
		},
		Sentiment:   sentiment,
		ImpactLevel: d.leaderImpact(info.LeaderChange),
		EventDescription: fmt.Sprintf("%s板块领涨股%s涨跌幅%.2f%%，%s超过阈值%g%%，触发龙头异动事件",
			info.Name, info.LeaderStock, info.LeaderChange, word, threshold),
		RawData: info.rawData(),
	}}
}
