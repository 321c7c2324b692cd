package detect

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"stock-radar/internal/config"
	rerrors "stock-radar/internal/errors"
	"stock-radar/internal/models"
	"stock-radar/internal/provider"
)

// macroKeywords maps each macro category to its trigger keywords. Matching
// is deliberately loose: one keyword is enough to classify.
var macroKeywords = map[string][]string{
	"央行政策":   {"央行", "欧洲央行", "美联储", "加息", "降息", "利率", "存款机制利率", "货币政策", "再融资利率"},
	"经济增长":   {"GDP", "经济增长", "增长预期", "上调增长", "下调增长", "经济数据", "增速"},
	"通胀数据":   {"通胀", "通胀率", "通胀预期", "CPI", "物价", "2%目标", "核心通胀"},
	"金融监管":   {"监管", "金融监管", "银保监", "证监会", "省联社改革", "农商行", "开业批复"},
	"国际局势":   {"外交部", "会议", "黎巴嫩", "巴黎会议", "地缘政治", "国际会议"},
	"产业政策":   {"核能", "私人企业开放", "产能", "扩产", "产业政策", "行业开放"},
	"资本市场":   {"指数", "斯托克600", "国债收益率", "欧元兑美元", "汇率", "交易员押注"},
	"财政政策":   {"财政", "国债", "发行债券", "财政支出", "税收"},
	"能源大宗商品": {"原油", "天然气", "大宗商品", "能源价格", "煤炭"},
	"突发事件":   {"火灾", "爆炸", "停产", "事故", "中断", "紧急"},
	"政策放开":   {"开放", "批准", "法案", "议会批准", "政策调整"},
}

// sentimentKeywords classify news tone. A tone needs at least two hits to
// flip away from neutral.
var sentimentKeywords = map[models.Sentiment][]string{
	models.SentimentPositive: {"上调", "增长", "开放", "批准", "上涨", "利好", "稳定", "提升"},
	models.SentimentNegative: {"下调", "下跌", "风险", "危机", "暴跌", "亏损", "处罚"},
	models.SentimentNeutral:  {"维持不变", "按兵不动", "确认", "表示", "预计", "评估", "决议"},
}

// macroCategoryOrder fixes the tie-breaking order of classification, since
// map iteration order is not stable.
var macroCategoryOrder = []string{
	"央行政策", "经济增长", "通胀数据", "金融监管", "国际局势", "产业政策",
	"资本市场", "财政政策", "能源大宗商品", "突发事件", "政策放开",
}

// fallbackCategory labels news that matches no category at all.
const fallbackCategory = "综合宏观新闻"

var highImpactCategories = map[string]bool{
	"央行政策": true, "经济增长": true, "通胀数据": true, "国际局势": true,
}

var mediumImpactCategories = map[string]bool{
	"金融监管": true, "资本市场": true, "产业政策": true,
}

// MacroDetector classifies macro news flashes into categorized events. The
// category label stands in for the symbol on emitted events.
type MacroDetector struct {
	cfg    config.MacroConfig
	data   provider.MarketData
	logger zerolog.Logger
}

// NewMacroDetector creates a macro news detector.
func NewMacroDetector(cfg config.MacroConfig, data provider.MarketData, logger zerolog.Logger) *MacroDetector {
	return &MacroDetector{
		cfg:    cfg,
		data:   data,
		logger: logger.With().Str("detector", "macro").Logger(),
	}
}

func (d *MacroDetector) Name() string { return "macro" }
func (d *MacroDetector) Scope() Scope { return ScopeMarket }

// Detect turns each recent news flash into one classified event. The symbol
// argument is ignored.
func (d *MacroDetector) Detect(ctx context.Context, _ string) ([]models.FinancialEvent, error) {
	items, err := d.data.GetMacroNews(ctx, d.cfg.LookbackLimit)
	if err != nil {
		return nil, rerrors.NewDetectorError(d.Name(), "", err)
	}
	if len(items) > d.cfg.LookbackLimit {
		items = items[:d.cfg.LookbackLimit]
	}

	events := make([]models.FinancialEvent, 0, len(items))
	for _, item := range items {
		if ev, ok := d.analyze(item); ok {
			events = append(events, ev)
		}
	}
	return events, nil
}

func (d *MacroDetector) analyze(item provider.NewsItem) (models.FinancialEvent, bool) {
	content := strings.TrimSpace(item.Content)
	if content == "" {
		return models.FinancialEvent{}, false
	}

	newsTime := item.Time
	if newsTime == "" {
		newsTime = time.Now().Format(models.TimeLayout)
	}

	category, matchCount, matched := classifyMacroNews(content)
	if category == "" {
		category = fallbackCategory
		matchCount = 0
		matched = nil
	}

	subtype := "macro_" + strings.ToLower(strings.ReplaceAll(category, " ", "_"))
	desc := fmt.Sprintf("【%s】%s", category, content)
	if runes := []rune(content); len(runes) > 80 {
		desc = fmt.Sprintf("【%s】%s...", category, string(runes[:80]))
	}

	return models.FinancialEvent{
		EventID:      models.GenerateEventID(category, newsTime, subtype),
		Symbol:       category,
		EventType:    models.EventMacro,
		EventSubtype: subtype,
		EventTime:    newsTime,
		DataSource:   dataSource,
		TriggerRule: &models.TriggerRule{
			Metric:    "宏观关键词匹配数",
			Value:     float64(matchCount),
			Threshold: float64(d.cfg.MinMatchCount),
			Operator:  ">=",
		},
		Sentiment:        judgeSentiment(content),
		ImpactLevel:      d.impactLevel(category, matched),
		EventDescription: desc,
		RawData: map[string]interface{}{
			"news_time":        item.Time,
			"news_content":     content,
			"matched_category": category,
			"matched_keywords": matched,
			"match_count":      matchCount,
		},
	}, true
}

// classifyMacroNews picks the category with the most keyword hits. Ties go
// to the earlier winner, so a single hit is enough to classify.
func classifyMacroNews(content string) (string, int, []string) {
	lower := strings.ToLower(content)

	best := ""
	bestCount := 0
	var bestKeywords []string
	for _, category := range macroCategoryOrder {
		var hits []string
		for _, kw := range macroKeywords[category] {
			if strings.Contains(lower, strings.ToLower(kw)) {
				hits = append(hits, kw)
			}
		}
		if len(hits) > bestCount {
			best = category
			bestCount = len(hits)
			bestKeywords = hits
		}
	}
	return best, bestCount, bestKeywords
}

// judgeSentiment needs at least two hits of one tone to leave neutral.
func judgeSentiment(content string) models.Sentiment {
	lower := strings.ToLower(content)
	count := func(tone models.Sentiment) int {
		n := 0
		for _, kw := range sentimentKeywords[tone] {
			if strings.Contains(lower, strings.ToLower(kw)) {
				n++
			}
		}
		return n
	}
	switch {
	case count(models.SentimentPositive) >= 2:
		return models.SentimentPositive
	case count(models.SentimentNegative) >= 2:
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}

func (d *MacroDetector) impactLevel(category string, matched []string) models.ImpactLevel {
	for _, critical := range d.cfg.CriticalKeywords {
		for _, kw := range matched {
			if kw == critical {
				if strings.Contains(category, "央行") || strings.Contains(category, "通胀") {
					return models.ImpactCritical
				}
				return models.ImpactHigh
			}
		}
	}
	if highImpactCategories[category] {
		return models.ImpactHigh
	}
	if mediumImpactCategories[category] {
		return models.ImpactMedium
	}
	return models.ImpactLow
}
