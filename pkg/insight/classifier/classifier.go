package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"bizinsight-be/internal/pkg/logger"
	"bizinsight-be/pkg/llm"
)

const (
	IntentQuery      = "query"
	IntentReport     = "report"
	IntentStatistics = "statistics"
	IntentGeneral    = "general"
)

const temperature = 0.3

// DefaultSuggestions is offered whenever analysis fails or yields too few suggestions.
var DefaultSuggestions = []string{
	"Show me total sales for this month",
	"How many active customers do we have?",
	"What are our top performing products?",
	"Generate a weekly performance report",
	"Show customer acquisition trends",
}

type PromptAnalysisResult struct {
	IsDataRelated    bool     `json:"isDataRelated"`
	Intent           string   `json:"intent"`
	Entities         []string `json:"entities"`
	SuggestedQueries []string `json:"suggestedQueries"`
	Confidence       float64  `json:"confidence"`

	// Accounting for the classification call itself.
	Usage llm.Usage `json:"-"`
	Model string    `json:"-"`
}

type Classifier interface {
	Analyze(ctx context.Context, message string) *PromptAnalysisResult
}

type PromptClassifier struct {
	llmProvider llm.LLMProvider
	model       string
	logger      logger.ILogger
}

var _ Classifier = &PromptClassifier{}

func NewPromptClassifier(llmProvider llm.LLMProvider, model string, log logger.ILogger) *PromptClassifier {
	return &PromptClassifier{
		llmProvider: llmProvider,
		model:       model,
		logger:      log,
	}
}

// Analyze never fails; any provider or parse problem yields DefaultResult.
func (c *PromptClassifier) Analyze(ctx context.Context, message string) *PromptAnalysisResult {
	opts := []llm.Option{llm.WithTemperature(temperature), llm.WithJSONMode()}
	if c.model != "" {
		opts = append(opts, llm.WithModel(c.model))
	}

	completion, err := c.llmProvider.Chat(ctx, llm.Prompt(systemPrompt, message), opts...)
	if err != nil {
		c.logger.Error("CLASSIFIER", "Prompt analysis failed", map[string]interface{}{"error": err.Error()})
		return DefaultResult()
	}

	result, err := parseAnalysis(completion.Content)
	if err != nil {
		c.logger.Warn("CLASSIFIER", "Prompt analysis unreadable, using default", map[string]interface{}{
			"error": err.Error(),
		})
		fallback := DefaultResult()
		fallback.Usage = completion.Usage
		fallback.Model = completion.Model
		return fallback
	}

	result.Usage = completion.Usage
	result.Model = completion.Model

	c.logger.Info("CLASSIFIER", "Prompt analysis completed", map[string]interface{}{
		"prompt":        truncate(message, 50),
		"isDataRelated": result.IsDataRelated,
		"intent":        result.Intent,
		"confidence":    result.Confidence,
	})
	return result
}

// DefaultResult is the safe "not data related" answer.
func DefaultResult() *PromptAnalysisResult {
	suggestions := make([]string, len(DefaultSuggestions))
	copy(suggestions, DefaultSuggestions)
	return &PromptAnalysisResult{
		IsDataRelated:    false,
		Intent:           IntentGeneral,
		Entities:         []string{},
		SuggestedQueries: suggestions,
		Confidence:       0,
	}
}

func parseAnalysis(response string) (*PromptAnalysisResult, error) {
	jsonContent := llm.ExtractJSON(response)
	if jsonContent == "" {
		return nil, fmt.Errorf("no JSON found in response")
	}

	var result PromptAnalysisResult
	if err := json.Unmarshal([]byte(jsonContent), &result); err != nil {
		return nil, fmt.Errorf("JSON unmarshal failed: %w", err)
	}

	result.Intent = normalizeIntent(result.Intent)
	if result.Entities == nil {
		result.Entities = []string{}
	}
	if result.SuggestedQueries == nil {
		result.SuggestedQueries = []string{}
	}
	switch {
	case result.Confidence < 0:
		result.Confidence = 0
	case result.Confidence > 1:
		result.Confidence = 1
	}

	return &result, nil
}

func normalizeIntent(intent string) string {
	switch strings.ToLower(strings.TrimSpace(intent)) {
	case IntentQuery:
		return IntentQuery
	case IntentReport:
		return IntentReport
	case IntentStatistics:
		return IntentStatistics
	default:
		return IntentGeneral
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

const systemPrompt = `You are an expert AI assistant that analyzes user prompts to determine if they are asking for data insights, reports, or statistics.

Analyze the user prompt and respond with a JSON object containing:
{
  "isDataRelated": boolean,     // true if asking for data/reports/statistics
  "intent": "query" | "report" | "statistics" | "general",
  "entities": string[],         // business entities mentioned (customers, products, sales, etc.)
  "suggestedQueries": string[], // 3-5 suggested questions if not data related
  "confidence": number          // 0-1 confidence score
}

Examples of data-related prompts:
- "Show me sales revenue for last month"
- "How many customers do we have?"
- "What's the top selling product?"
- "Generate a report on user engagement"

If the prompt is NOT data-related, provide helpful suggestions for what they could ask about business data.`
