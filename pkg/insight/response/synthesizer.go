package response

import (
	"context"
	"encoding/json"
	"strings"

	"bizinsight-be/internal/pkg/logger"
	"bizinsight-be/pkg/insight/resultset"
	"bizinsight-be/pkg/llm"
)

const (
	temperature = 0.7

	ApologyMessage = "I apologize, but I encountered an error while processing your request. Please try again."
)

// Fragment is one piece of the narrative. Usage is set on the fragment that closes a
// provider stream which reported token counts.
type Fragment struct {
	Text  string
	Usage *llm.Usage
	Model string
}

type Synthesizer interface {
	Stream(ctx context.Context, message, contextText string, rows []resultset.Row) <-chan Fragment
}

type ResponseSynthesizer struct {
	llmProvider llm.LLMProvider
	model       string
	logger      logger.ILogger
}

var _ Synthesizer = &ResponseSynthesizer{}

func NewResponseSynthesizer(llmProvider llm.LLMProvider, model string, log logger.ILogger) *ResponseSynthesizer {
	return &ResponseSynthesizer{
		llmProvider: llmProvider,
		model:       model,
		logger:      log,
	}
}

// Stream always closes the returned channel. Failures become a single trailing apology.
func (s *ResponseSynthesizer) Stream(ctx context.Context, message, contextText string, rows []resultset.Row) <-chan Fragment {
	out := make(chan Fragment)

	go func() {
		defer close(out)

		emit := func(f Fragment) bool {
			select {
			case out <- f:
				return true
			case <-ctx.Done():
				return false
			}
		}

		opts := []llm.Option{llm.WithTemperature(temperature)}
		if s.model != "" {
			opts = append(opts, llm.WithModel(s.model))
		}

		stream, err := s.llmProvider.ChatStream(ctx, llm.Prompt(BuildSystemPrompt(contextText, rows), message), opts...)
		if err != nil {
			s.logger.Error("SYNTHESIZER", "Failed to start response stream", map[string]interface{}{"error": err.Error()})
			emit(Fragment{Text: ApologyMessage})
			return
		}

		var usage *llm.Usage
		var model string
		for chunk := range stream {
			if chunk.Err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.Error("SYNTHESIZER", "Response stream interrupted", map[string]interface{}{"error": chunk.Err.Error()})
				emit(Fragment{Text: ApologyMessage, Usage: usage, Model: model})
				return
			}
			if chunk.Model != "" {
				model = chunk.Model
			}
			if chunk.Usage != nil {
				u := *chunk.Usage
				usage = &u
			}
			if chunk.Content == "" {
				continue
			}
			if !emit(Fragment{Text: chunk.Content, Model: model}) {
				return
			}
		}

		if usage != nil && ctx.Err() == nil {
			emit(Fragment{Usage: usage, Model: model})
		}
	}()

	return out
}

func BuildSystemPrompt(contextText string, rows []resultset.Row) string {
	var prompt strings.Builder

	prompt.WriteString("You are a helpful business intelligence assistant. Provide clear, concise answers about business data.\n\n")
	prompt.WriteString("IMPORTANT: Format your response in MARKDOWN with proper structure including:\n")
	prompt.WriteString("- Use headings (# ## ###) to organize content\n")
	prompt.WriteString("- Use tables when displaying data results\n")
	prompt.WriteString("- Use bullet points and numbered lists for clarity\n")
	prompt.WriteString("- Use code blocks for SQL queries or technical content\n")
	prompt.WriteString("- Use bold and italic for emphasis\n")
	prompt.WriteString("- Include relevant icons/emojis where appropriate\n\n")

	if contextText != "" {
		prompt.WriteString("Context: ")
		prompt.WriteString(contextText)
		prompt.WriteString("\n")
	}
	if rows != nil {
		if data, err := json.MarshalIndent(rows, "", "  "); err == nil {
			prompt.WriteString("Data Result: ")
			prompt.Write(data)
			prompt.WriteString("\n")
		}
	}

	prompt.WriteString("\nIf data is provided, analyze it and provide insights. Always format the data in a markdown table.\n")
	prompt.WriteString("Format numbers appropriately with proper units ($, %, etc.) and highlight key findings.\n")
	prompt.WriteString("Keep responses conversational, business-focused, and well-structured in markdown format.\n\n")
	prompt.WriteString("Example response format:\n")
	prompt.WriteString("# Analysis Results\n\n")
	prompt.WriteString("## Key Findings\n")
	prompt.WriteString("- **Total Revenue**: $X,XXX\n")
	prompt.WriteString("- **Growth Rate**: +X.X%\n\n")
	prompt.WriteString("## Data Summary\n")
	prompt.WriteString("| Metric | Value | Change |\n")
	prompt.WriteString("|--------|-------|--------|\n")
	prompt.WriteString("| Revenue | $X,XXX | +X% |\n\n")
	prompt.WriteString("## Recommendations\n")
	prompt.WriteString("> Based on the analysis, I recommend...\n")

	return prompt.String()
}
