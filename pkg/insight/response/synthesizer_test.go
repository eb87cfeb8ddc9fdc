package response

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"bizinsight-be/internal/pkg/logger"
	"bizinsight-be/pkg/insight/resultset"
	"bizinsight-be/pkg/llm"
	"bizinsight-be/pkg/llm/llmtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(ch <-chan Fragment) (string, *llm.Usage) {
	var b strings.Builder
	var usage *llm.Usage
	for f := range ch {
		b.WriteString(f.Text)
		if f.Usage != nil {
			usage = f.Usage
		}
	}
	return b.String(), usage
}

func TestStreamRelaysFragmentsAndUsage(t *testing.T) {
	usage := &llm.Usage{PromptTokens: 300, CompletionTokens: 40, TotalTokens: 340}
	fake := &llmtest.FakeProvider{OnStream: llmtest.Fragments([]string{"# Top ", "Products", ""}, usage, nil)}
	s := NewResponseSynthesizer(fake, "gpt-4o-mini", logger.NewNopLogger())

	text, gotUsage := collect(s.Stream(context.Background(), "top products", "Query: ...", []resultset.Row{{"name": "Widget"}}))

	assert.Equal(t, "# Top Products", text)
	require.NotNil(t, gotUsage)
	assert.Equal(t, *usage, *gotUsage)

	call := fake.Calls()[0]
	assert.True(t, call.Stream)
	assert.InDelta(t, 0.7, call.Options.Temperature, 1e-9)
	assert.Contains(t, call.History[0].Content, "Context: Query: ...")
	assert.Contains(t, call.History[0].Content, `"name": "Widget"`)
}

func TestStreamApologizesWhenStartFails(t *testing.T) {
	s := NewResponseSynthesizer(&llmtest.FakeProvider{OnStream: llmtest.StreamFail(errors.New("401"))}, "", logger.NewNopLogger())

	text, usage := collect(s.Stream(context.Background(), "q", "", nil))

	assert.Equal(t, ApologyMessage, text)
	assert.Nil(t, usage)
}

func TestStreamApologizesMidStream(t *testing.T) {
	fake := &llmtest.FakeProvider{OnStream: llmtest.Fragments([]string{"Partial "}, nil, errors.New("connection reset"))}
	s := NewResponseSynthesizer(fake, "", logger.NewNopLogger())

	text, _ := collect(s.Stream(context.Background(), "q", "", nil))

	assert.Equal(t, "Partial "+ApologyMessage, text)
}

func TestStreamStopsOnCancel(t *testing.T) {
	fake := &llmtest.FakeProvider{OnStream: llmtest.Fragments([]string{"a", "b", "c", "d"}, nil, nil)}
	s := NewResponseSynthesizer(fake, "", logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	ch := s.Stream(ctx, "q", "", nil)

	first := <-ch
	assert.Equal(t, "a", first.Text)
	cancel()

	done := make(chan struct{})
	go func() {
		for range ch {
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream did not close after cancel")
	}
}

func TestBuildSystemPromptOmitsEmptySections(t *testing.T) {
	p := BuildSystemPrompt("", nil)

	assert.NotContains(t, p, "Context:")
	assert.NotContains(t, p, "Data Result:")
	assert.Contains(t, p, "markdown table")
}
