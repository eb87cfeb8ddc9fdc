package classifier

import (
	"context"
	"errors"
	"testing"

	"bizinsight-be/internal/pkg/logger"
	"bizinsight-be/pkg/llm"
	"bizinsight-be/pkg/llm/llmtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeDataRelated(t *testing.T) {
	usage := llm.Usage{PromptTokens: 120, CompletionTokens: 30, TotalTokens: 150}
	fake := &llmtest.FakeProvider{OnChat: llmtest.Reply(
		`{"isDataRelated":true,"intent":"Statistics","entities":["sales"],"confidence":0.92}`, usage)}
	c := NewPromptClassifier(fake, "gpt-4o-mini", logger.NewNopLogger())

	got := c.Analyze(context.Background(), "What was revenue last month?")

	assert.True(t, got.IsDataRelated)
	assert.Equal(t, IntentStatistics, got.Intent)
	assert.Equal(t, []string{"sales"}, got.Entities)
	assert.Equal(t, []string{}, got.SuggestedQueries)
	assert.InDelta(t, 0.92, got.Confidence, 1e-9)
	assert.Equal(t, usage, got.Usage)
	assert.Equal(t, "gpt-4o-mini", got.Model)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.True(t, calls[0].Options.JSONMode)
	assert.InDelta(t, 0.3, calls[0].Options.Temperature, 1e-9)
	require.Len(t, calls[0].History, 2)
	assert.Equal(t, "system", calls[0].History[0].Role)
	assert.Equal(t, "What was revenue last month?", calls[0].History[1].Content)
}

func TestAnalyzeFallsBackToDefault(t *testing.T) {
	tests := []struct {
		name string
		chat llmtest.ChatFunc
	}{
		{"provider error", llmtest.Fail(errors.New("rate limited"))},
		{"not json", llmtest.Reply("I think this is about sales.", llm.Usage{TotalTokens: 5})},
		{"wrong shape", llmtest.Reply(`{"isDataRelated":"maybe"}`, llm.Usage{})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewPromptClassifier(&llmtest.FakeProvider{OnChat: tt.chat}, "", logger.NewNopLogger())

			got := c.Analyze(context.Background(), "hello")

			assert.False(t, got.IsDataRelated)
			assert.Equal(t, IntentGeneral, got.Intent)
			assert.Empty(t, got.Entities)
			assert.Equal(t, DefaultSuggestions, got.SuggestedQueries)
			assert.Zero(t, got.Confidence)
		})
	}
}

func TestAnalyzeNormalizesOutOfRangeValues(t *testing.T) {
	fake := &llmtest.FakeProvider{OnChat: llmtest.Reply(
		"```json\n{\"isDataRelated\":false,\"intent\":\"chitchat\",\"confidence\":7,\"suggestedQueries\":[\"a\",\"b\",\"c\"]}\n```", llm.Usage{})}
	c := NewPromptClassifier(fake, "", logger.NewNopLogger())

	got := c.Analyze(context.Background(), "hi there")

	assert.Equal(t, IntentGeneral, got.Intent)
	assert.Equal(t, 1.0, got.Confidence)
	assert.Equal(t, []string{"a", "b", "c"}, got.SuggestedQueries)
}

func TestDefaultResultIsACopy(t *testing.T) {
	r := DefaultResult()
	r.SuggestedQueries[0] = "changed"

	assert.Equal(t, "Show me total sales for this month", DefaultSuggestions[0])
}
