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

func macroTestConfig() config.MacroConfig {
	return config.MacroConfig{
		MinMatchCount:    1,
		LookbackLimit:    100,
		CriticalKeywords: []string{"美联储", "欧洲央行", "通胀目标", "大幅加息", "GDP增速"},
	}
}

func TestClassifyMacroNews(t *testing.T) {
	category, count, matched := classifyMacroNews("央行宣布加息25个基点")
	assert.Equal(t, "央行政策", category)
	assert.Equal(t, 2, count)
	assert.Contains(t, matched, "央行")
	assert.Contains(t, matched, "加息")

	// No keyword at all.
	category, count, _ = classifyMacroNews("今天天气不错")
	assert.Equal(t, "", category)
	assert.Equal(t, 0, count)
}

func TestClassifyMacroNewsTieBreak(t *testing.T) {
	// One hit each for 通胀数据 and 金融监管; the earlier category wins.
	category, count, _ := classifyMacroNews("通胀回落后监管表态")
	assert.Equal(t, "通胀数据", category)
	assert.Equal(t, 1, count)
}

func TestJudgeSentiment(t *testing.T) {
	// Two positive hits flip to positive.
	assert.Equal(t, "positive", string(judgeSentiment("上调增长预期")))
	// A single hit stays neutral.
	assert.Equal(t, "neutral", string(judgeSentiment("市场上涨")))
	// Two negative hits flip to negative.
	assert.Equal(t, "negative", string(judgeSentiment("下跌风险加大")))
	assert.Equal(t, "neutral", string(judgeSentiment("会议结束")))
}

func TestMacroDetectorClassifiesNews(t *testing.T) {
	data := &fakeMarket{news: []provider.NewsItem{
		{Time: "2024-06-03 09:00:00", Content: "美联储宣布加息，市场剧烈波动"},
		{Time: "2024-06-03 09:05:00", Content: "今天天气不错"},
		{Time: "", Content: ""},
	}}
	d := NewMacroDetector(macroTestConfig(), data, zerolog.Nop())

	events, err := d.Detect(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, events, 2)

	fed := events[0]
	assert.Equal(t, "央行政策", fed.Symbol)
	assert.Equal(t, "macro", string(fed.EventType))
	assert.Equal(t, "macro_央行政策", fed.EventSubtype)
	// Critical keyword hit inside a central-bank category.
	assert.Equal(t, "critical", string(fed.ImpactLevel))

	other := events[1]
	assert.Equal(t, "综合宏观新闻", other.Symbol)
	assert.Equal(t, "macro_综合宏观新闻", other.EventSubtype)
	assert.Equal(t, "low", string(other.ImpactLevel))
	assert.InDelta(t, 0, other.TriggerRule.Value, 1e-9)
}

func TestMacroDetectorImpactTiers(t *testing.T) {
	d := NewMacroDetector(macroTestConfig(), &fakeMarket{}, zerolog.Nop())

	// Critical keyword outside a central-bank or inflation category.
	assert.Equal(t, "high", string(d.impactLevel("经济增长", []string{"GDP增速"})))
	// Category tiers without a critical keyword.
	assert.Equal(t, "high", string(d.impactLevel("国际局势", nil)))
	assert.Equal(t, "medium", string(d.impactLevel("金融监管", nil)))
	assert.Equal(t, "low", string(d.impactLevel("突发事件", nil)))
}

func TestMacroDetectorTruncatesLongContent(t *testing.T) {
	long := make([]rune, 0, 120)
	for i := 0; i < 120; i++ {
		long = append(long, '央')
	}
	data := &fakeMarket{news: []provider.NewsItem{
		{Time: "2024-06-03 09:00:00", Content: string(long)},
	}}
	d := NewMacroDetector(macroTestConfig(), data, zerolog.Nop())

	events, err := d.Detect(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, events, 1)
	// 80 content runes plus the category prefix and ellipsis.
	assert.LessOrEqual(t, len([]rune(events[0].EventDescription)), 80+15)
}
