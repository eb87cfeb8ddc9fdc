package sqlgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"bizinsight-be/internal/pkg/logger"
	"bizinsight-be/pkg/insight/classifier"
	"bizinsight-be/pkg/insight/schema"
	"bizinsight-be/pkg/llm"
)

var ErrGenerationFailed = errors.New("failed to generate SQL query")

const temperature = 0.1

type SQLGenerationResult struct {
	SQLQuery    string   `json:"sqlQuery"`
	Explanation string   `json:"explanation"`
	Confidence  float64  `json:"confidence"`
	Tables      []string `json:"tables"`
	Columns     []string `json:"columns"`

	Usage llm.Usage `json:"-"`
	Model string    `json:"-"`
}

type Generator interface {
	Generate(ctx context.Context, message string, tables []schema.TableSchema, analysis *classifier.PromptAnalysisResult) (*SQLGenerationResult, error)
}

type SQLGenerator struct {
	llmProvider llm.LLMProvider
	model       string
	logger      logger.ILogger
}

var _ Generator = &SQLGenerator{}

func NewSQLGenerator(llmProvider llm.LLMProvider, model string, log logger.ILogger) *SQLGenerator {
	return &SQLGenerator{
		llmProvider: llmProvider,
		model:       model,
		logger:      log,
	}
}

// Generate fails with ErrGenerationFailed on provider errors and on empty or unreadable output.
// On unreadable output the usage already spent is still reported on the partial result.
func (g *SQLGenerator) Generate(ctx context.Context, message string, tables []schema.TableSchema, analysis *classifier.PromptAnalysisResult) (*SQLGenerationResult, error) {
	opts := []llm.Option{llm.WithTemperature(temperature), llm.WithJSONMode()}
	if g.model != "" {
		opts = append(opts, llm.WithModel(g.model))
	}

	system := BuildPrompt(message, tables, analysis)
	completion, err := g.llmProvider.Chat(ctx, llm.Prompt(system, message), opts...)
	if err != nil {
		g.logger.Error("SQLGEN", "SQL generation call failed", map[string]interface{}{"error": err.Error()})
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	spent := &SQLGenerationResult{Usage: completion.Usage, Model: completion.Model}

	jsonContent := llm.ExtractJSON(completion.Content)
	if jsonContent == "" {
		g.logger.Warn("SQLGEN", "No JSON in generation output", map[string]interface{}{"output": completion.Content})
		return spent, fmt.Errorf("%w: no JSON found in response", ErrGenerationFailed)
	}

	var result SQLGenerationResult
	if err := json.Unmarshal([]byte(jsonContent), &result); err != nil {
		g.logger.Warn("SQLGEN", "Generation output unreadable", map[string]interface{}{"error": err.Error()})
		return spent, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	result.SQLQuery = cleanSQL(result.SQLQuery)
	if result.SQLQuery == "" {
		return spent, fmt.Errorf("%w: empty query", ErrGenerationFailed)
	}
	if result.Tables == nil {
		result.Tables = []string{}
	}
	if result.Columns == nil {
		result.Columns = []string{}
	}
	result.Usage = completion.Usage
	result.Model = completion.Model

	g.logger.Info("SQLGEN", "SQL generated", map[string]interface{}{
		"prompt":     truncate(message, 50),
		"tables":     result.Tables,
		"confidence": result.Confidence,
	})
	return &result, nil
}

// cleanSQL drops code fences and a trailing semicolon so EXPLAIN can wrap the statement.
func cleanSQL(sql string) string {
	sql = strings.TrimSpace(sql)
	sql = strings.TrimPrefix(sql, "```sql")
	sql = strings.TrimPrefix(sql, "```")
	sql = strings.TrimSuffix(sql, "```")
	sql = strings.TrimSpace(sql)
	return strings.TrimSpace(strings.TrimRight(sql, "; \n\t"))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
