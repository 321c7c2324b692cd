// Package rules generates per-user event rules and matches them against
// detected events.
package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	rerrors "stock-radar/internal/errors"
	"stock-radar/internal/llm"
	"stock-radar/internal/models"
	"stock-radar/internal/store"
)

const generatePromptTemplate = `
你是一名专业的金融投资事件规划助手，需要基于用户的当前持仓、关注列表和投资目标，
为用户生成"金融事件规划"。

用户信息如下（JSON格式）：
%s

请严格按照下列事件类型、事件子类型、及 related_stock 填写规则生成事件，
不允许创造未定义的事件类型、子事件或分类名称。

==================== 一、事件类型与子事件定义 ====================

1.【市场交易类事件（Trading）】
event_subtype：
- price_rise_abnormal
- price_fall_abnormal
- volume_abnormal
- limit_up
- limit_down
- ma_break_up
- ma_break_down
- volatility_abnormal
related_stock：
- 股票代码（如 600519）

2.【资金流向类事件（Capital）】
event_subtype：
- northbound_inflow_abnormal
- northbound_outflow_abnormal
- margin_balance_abnormal
- block_trade_price_deviation
related_stock：
- 股票代码或行业名称（如 银行）

3.【公司事件（Company）】
event_subtype：
- performance_forecast
- financial_report_change
- share_unlock
- trading_halt
- trading_resume
related_stock：
- 股票代码

4.【行业事件（Industry）】
event_subtype：
- industry_price_rise_abnormal
- industry_price_fall_abnormal
- industry_capital_inflow_abnormal
- industry_capital_outflow_abnormal
- industry_consistency_rise
- industry_consistency_fall
- industry_leader_fluctuation
related_stock（必须从以下完整列表中选择）：
零售、综合、饮料制造、包装印刷、食品加工制造、种植业与林业、厨卫电器、
房地产、汽车服务及其他、服装家纺、钢铁、家居用品、教育、互联网电商、
化学原料、环保设备、工业金属、汽车零部件、旅游及酒店、金属新材料、
纺织制造、农产品加工、能源金属、美容护理、电机、环境治理、燃气、
贸易、小金属、造纸、化学制药、养殖业、建筑材料、专用设备、农化制品、
轨交设备、文化传媒、化学纤维、通用设备、电网设备、机场航运、建筑装饰、
小家电、化学制品、多元金融、公路铁路运输、汽车整车、石油加工贸易、
计算机设备、工程机械、中药、军工装备、医疗服务、其他社会服务、塑料制品、
港口航运、军工电子、游戏、风电设备、生物制品、IT服务、白色家电、电池、
光伏设备、电力、物流、黑色家电、其他电源设备、自动化设备、光学光电子、
通信服务、消费电子、医疗器械、非金属材料、白酒、油气开采及服务、
通信设备、软件开发、证券、其他电子、电子化学品、影视院线、医药商业、
煤炭开采加工、保险、银行、橡胶制品、元件、贵金属、半导体

5.【宏观事件（Macro）】
event_subtype（必须从以下完整列表中选择）：
macro_央行政策、macro_经济增长、macro_通胀数据、macro_金融监管、
macro_国际局势、macro_产业政策、macro_资本市场、macro_综合宏观新闻
related_stock（必须从以下完整列表中选择）：
央行政策、经济增长、通胀数据、金融监管、国际局势、产业政策、
资本市场、综合宏观新闻

6.【情绪事件（Sentiment）】
event_subtype：
- attention_surge
- attention_explosion
- attention_drop
- attention_collapse
- ranking_rise_abnormal
- ranking_drop_abnormal
- hot_list_entry
- hot_list_top10
- hot_list_top1
related_stock：
- 股票代码或行业名称

7.【新闻事件（News）】
event_subtype：
- positive_news
- negative_news
- neutral_news
- regulatory_news
- major_news
- emergency_news
related_stock：
- 股票代码、行业名称或宏观分类（如 宏观事件列表）

==================== 二、生成规则 ====================
- 仅生成与用户持仓、关注列表或投资目标直接相关的事件
- 每条事件必须包含触发条件
- 不生成投资建议，仅做事件规划
- 同一标的可生成多条不同类型事件

==================== 三、输出格式 ====================
请直接输出 JSON 数组（JSON 字符串），格式如下：

[
  {
    "event_type": "Trading / Capital / Company / Industry / Macro / Sentiment / News",
    "event_subtype": "必须来自枚举列表",
    "related_stock": "必须符合事件类型对应规则",
    "event_description": "事件客观描述",
    "trigger_condition": "触发事件的具体条件"
  }
]

==================== 严格要求 ====================
- 仅输出 JSON
- 不输出任何解释性文字或注释
- JSON 必须可被解析
`

// Generator derives a user's rule set from their investment profile and
// stores it, replacing whatever set existed before.
type Generator struct {
	client llm.Client
	store  store.RuleStore
	logger zerolog.Logger
}

// NewGenerator creates a rule generator.
func NewGenerator(client llm.Client, ruleStore store.RuleStore, logger zerolog.Logger) *Generator {
	return &Generator{
		client: client,
		store:  ruleStore,
		logger: logger.With().Str("component", "rules").Logger(),
	}
}

// Generate produces and persists a rule set for one user. profileJSON is
// the user's investment profile document.
func (g *Generator) Generate(ctx context.Context, userID, profileJSON string) (*models.RuleSet, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id must not be empty")
	}
	if strings.TrimSpace(profileJSON) == "" {
		return nil, fmt.Errorf("investment profile for %s is empty", userID)
	}

	prompt := fmt.Sprintf(generatePromptTemplate, profileJSON)
	out, err := g.client.Complete(ctx, prompt)
	if err != nil {
		return nil, rerrors.NewCollaboratorError("llm", "generate rules", err)
	}

	ruleList, err := parseRuleList(out)
	if err != nil {
		return nil, fmt.Errorf("failed to parse generated rules for %s: %w", userID, err)
	}

	now := time.Now()
	set := &models.RuleSet{
		UserID:     userID,
		Rules:      ruleList,
		Status:     "active",
		CreateTime: now,
		UpdateTime: now,
	}
	if err := g.store.SaveRuleSet(ctx, set); err != nil {
		return nil, err
	}

	g.logger.Info().Str("user_id", userID).Int("rules", len(ruleList)).Msg("rule set generated")
	return set, nil
}

// parseRuleList decodes the model output, tolerating markdown code fences.
func parseRuleList(out string) ([]models.UserRule, error) {
	cleaned := strings.TrimSpace(out)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var rules []models.UserRule
	if err := json.Unmarshal([]byte(cleaned), &rules); err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("model returned an empty rule list")
	}
	return rules, nil
}
