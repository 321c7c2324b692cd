package llm

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rerrors "stock-radar/internal/errors"
	"stock-radar/internal/models"
)

type cannedClient struct {
	response string
	prompts  []string
}

func (c *cannedClient) Complete(ctx context.Context, prompt string) (string, error) {
	c.prompts = append(c.prompts, prompt)
	return c.response, nil
}

func (c *cannedClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.Complete(ctx, userPrompt)
}

func sampleRule() models.UserRule {
	return models.UserRule{
		EventType:        "Trading",
		EventSubtype:     "limit_up",
		RelatedStock:     "600519",
		EventDescription: "贵州茅台涨停",
		TriggerCondition: "涨跌幅达到涨停阈值",
	}
}

func sampleEvent() models.FinancialEvent {
	return models.FinancialEvent{
		EventID:      "600519_20240603_093500_limit_up",
		Symbol:       "600519",
		EventType:    models.EventTrading,
		EventSubtype: "limit_up",
		EventTime:    "2024-06-03 09:35:00",
		ImpactLevel:  models.ImpactCritical,
		Sentiment:    models.SentimentPositive,
	}
}

func TestRenderReminder(t *testing.T) {
	client := &cannedClient{response: "【事件提醒｜涨停】风险等级：高"}
	r := NewRenderer(client, 0)

	out, err := r.RenderReminder(context.Background(), sampleRule(), sampleEvent())
	require.NoError(t, err)
	assert.Equal(t, "【事件提醒｜涨停】风险等级：高", out)

	// Both documents feed the prompt as JSON.
	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], `"event_subtype": "limit_up"`)
	assert.Contains(t, client.prompts[0], `"related_stock": "600519"`)
}

func TestRenderReminderSentinel(t *testing.T) {
	for _, response := range []string{
		"暂无提醒",
		"「暂无提醒」",
		"  暂无提醒\n",
		"「 暂无提醒 」",
	} {
		client := &cannedClient{response: response}
		r := NewRenderer(client, 0)

		_, err := r.RenderReminder(context.Background(), sampleRule(), sampleEvent())
		assert.True(t, rerrors.Is(err, rerrors.ErrNoReminder), "response %q", response)
	}
}

func TestRenderReminderSentinelInsideTextKept(t *testing.T) {
	// The sentinel only counts when it is the entire answer.
	client := &cannedClient{response: "目前暂无提醒必要，但建议关注后续政策落地情况"}
	r := NewRenderer(client, 0)

	out, err := r.RenderReminder(context.Background(), sampleRule(), sampleEvent())
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, "建议关注"))
}

func TestIsNoReminder(t *testing.T) {
	assert.True(t, isNoReminder("暂无提醒"))
	assert.True(t, isNoReminder("「暂无提醒」"))
	assert.False(t, isNoReminder("暂无提醒。详情如下"))
	assert.False(t, isNoReminder(""))
}
