package rules

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRulesJSON = `[
	{
		"event_type": "Trading",
		"event_subtype": "limit_up",
		"related_stock": "600519",
		"event_description": "贵州茅台涨停",
		"trigger_condition": "涨跌幅达到涨停阈值"
	},
	{
		"event_type": "Macro",
		"event_subtype": "macro_央行政策",
		"related_stock": "央行政策",
		"event_description": "央行政策变化",
		"trigger_condition": "出现央行政策相关新闻"
	}
]`

func TestGenerateStoresRuleSet(t *testing.T) {
	db := newTestStore(t)
	client := &cannedClient{response: sampleRulesJSON}
	g := NewGenerator(client, db, zerolog.Nop())

	set, err := g.Generate(context.Background(), "user1", `{"positions":["600519"]}`)
	require.NoError(t, err)
	require.Len(t, set.Rules, 2)
	assert.Equal(t, "active", set.Status)

	// The profile document lands in the prompt.
	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], `{"positions":["600519"]}`)

	stored, err := db.GetRuleSet(context.Background(), "user1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "Trading", stored.Rules[0].EventType)
}

func TestGenerateReplacesExistingSet(t *testing.T) {
	db := newTestStore(t)
	client := &cannedClient{response: sampleRulesJSON}
	g := NewGenerator(client, db, zerolog.Nop())

	_, err := g.Generate(context.Background(), "user1", `{"goal":"a"}`)
	require.NoError(t, err)

	client.response = `[{"event_type":"Sentiment","event_subtype":"top1_rank","related_stock":"000001","event_description":"d","trigger_condition":"c"}]`
	_, err = g.Generate(context.Background(), "user1", `{"goal":"b"}`)
	require.NoError(t, err)

	stored, err := db.GetRuleSet(context.Background(), "user1")
	require.NoError(t, err)
	require.Len(t, stored.Rules, 1)
	assert.Equal(t, "Sentiment", stored.Rules[0].EventType)
}

func TestGenerateToleratesCodeFences(t *testing.T) {
	db := newTestStore(t)
	client := &cannedClient{response: "```json\n" + sampleRulesJSON + "\n```"}
	g := NewGenerator(client, db, zerolog.Nop())

	set, err := g.Generate(context.Background(), "user1", `{}`)
	require.NoError(t, err)
	assert.Len(t, set.Rules, 2)
}

func TestGenerateRejectsBadInput(t *testing.T) {
	db := newTestStore(t)
	g := NewGenerator(&cannedClient{response: sampleRulesJSON}, db, zerolog.Nop())

	_, err := g.Generate(context.Background(), "", `{}`)
	assert.Error(t, err)

	_, err = g.Generate(context.Background(), "user1", "  ")
	assert.Error(t, err)
}

func TestGenerateRejectsUnparseableOutput(t *testing.T) {
	db := newTestStore(t)

	g := NewGenerator(&cannedClient{response: "抱歉，我无法生成规则"}, db, zerolog.Nop())
	_, err := g.Generate(context.Background(), "user1", `{}`)
	assert.Error(t, err)

	g = NewGenerator(&cannedClient{response: "[]"}, db, zerolog.Nop())
	_, err = g.Generate(context.Background(), "user1", `{}`)
	assert.Error(t, err)

	g = NewGenerator(&cannedClient{err: errors.New("model unavailable")}, db, zerolog.Nop())
	_, err = g.Generate(context.Background(), "user1", `{}`)
	assert.Error(t, err)
}
