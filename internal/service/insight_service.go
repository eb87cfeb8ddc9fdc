package service

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"bizinsight-be/internal/constant"
	"bizinsight-be/internal/dto"
	"bizinsight-be/internal/entity"
	"bizinsight-be/internal/pkg/logger"
	"bizinsight-be/internal/repository/specification"
	"bizinsight-be/internal/repository/unitofwork"
	"bizinsight-be/pkg/events"
	"bizinsight-be/pkg/insight/classifier"
	"bizinsight-be/pkg/insight/executor"
	"bizinsight-be/pkg/insight/response"
	"bizinsight-be/pkg/insight/resultset"
	"bizinsight-be/pkg/insight/schema"
	"bizinsight-be/pkg/insight/sqlgen"
	"bizinsight-be/pkg/insight/validator"
	"bizinsight-be/pkg/llm"
	"bizinsight-be/pkg/lock"
	"bizinsight-be/pkg/metrics"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Turn outcomes, used as the metrics label and in logs.
const (
	outcomeSuggestion       = "suggestion"
	outcomeNoSchema         = "no_schema"
	outcomeGenerationFailed = "generation_failed"
	outcomeInvalidSQL       = "invalid_sql"
	outcomeExecutionFailed  = "execution_failed"
	outcomeSuccess          = "success"
	outcomeError            = "error"
	outcomeCancelled        = "cancelled"
)

type IInsightService interface {
	// ProcessChat runs one chat turn. The channel always ends with exactly one Finished
	// chunk unless ctx is cancelled first, and is closed when the turn is over.
	ProcessChat(ctx context.Context, userId uuid.UUID, req *dto.ChatRequest) <-chan dto.ChatStreamChunk
}

// InsightPipeline groups the stages a data turn runs through, in order.
type InsightPipeline struct {
	Classifier   classifier.Classifier
	Introspector schema.Introspector
	Generator    sqlgen.Generator
	Validator    validator.Validator
	Executor     executor.Executor
	Synthesizer  response.Synthesizer
}

type insightService struct {
	uowFactory unitofwork.RepositoryFactory
	pipeline   InsightPipeline
	pricing    *llm.PricingTable
	locker     lock.TurnLocker
	publisher  events.Publisher
	metrics    *metrics.Metrics
	logger     logger.ILogger
	tracer     trace.Tracer
	wordDelay  time.Duration
}

// NewInsightService wires the orchestrator. publisher and m may be nil.
func NewInsightService(
	uowFactory unitofwork.RepositoryFactory,
	pipeline InsightPipeline,
	pricing *llm.PricingTable,
	locker lock.TurnLocker,
	publisher events.Publisher,
	m *metrics.Metrics,
	log logger.ILogger,
	wordDelay time.Duration,
) IInsightService {
	if pricing == nil {
		pricing = llm.DefaultPricing()
	}
	if locker == nil {
		locker = lock.NewMemoryLocker()
	}

	return &insightService{
		uowFactory: uowFactory,
		pipeline:   pipeline,
		pricing:    pricing,
		locker:     locker,
		publisher:  publisher,
		metrics:    m,
		logger:     log,
		tracer:     otel.Tracer("bizinsight-be/insight"),
		wordDelay:  wordDelay,
	}
}

func (s *insightService) ProcessChat(ctx context.Context, userId uuid.UUID, req *dto.ChatRequest) <-chan dto.ChatStreamChunk {
	out := make(chan dto.ChatStreamChunk)

	t := &turn{
		svc:       s,
		out:       out,
		userId:    userId,
		message:   req.Message,
		started:   time.Now(),
		pendCost:  decimal.Zero,
		totalCost: decimal.Zero,
	}
	go t.run(ctx, req.ConversationId)

	return out
}

// turn holds the state of one ProcessChat call. It is owned by a single goroutine.
type turn struct {
	svc     *insightService
	ctx     context.Context
	out     chan<- dto.ChatStreamChunk
	userId  uuid.UUID
	message string
	started time.Time

	conversation *entity.Conversation

	// Usage not yet attributed to a persisted message.
	pending  llm.Usage
	pendCost decimal.Decimal

	total     llm.Usage
	totalCost decimal.Decimal

	// Assistant text delivered so far for the message being streamed.
	partial strings.Builder

	outcome  string
	finished bool
}

func (t *turn) run(ctx context.Context, conversationId *uuid.UUID) {
	defer close(t.out)

	ctx, span := t.svc.tracer.Start(ctx, "insight.turn")
	defer span.End()
	t.ctx = ctx

	if t.svc.metrics != nil {
		t.svc.metrics.TurnsInFlight.Inc()
		defer t.svc.metrics.TurnsInFlight.Dec()
	}

	defer func() {
		if r := recover(); r != nil {
			t.svc.logger.Error("INSIGHT", "Turn panicked", map[string]interface{}{
				"panic": fmt.Sprint(r),
				"stack": string(debug.Stack()),
			})
			t.fail(fmt.Errorf("panic: %v", r))
		}
		t.record(span)
	}()

	if err := t.process(conversationId); err != nil {
		t.fail(err)
	}
}

func (t *turn) process(conversationId *uuid.UUID) error {
	conversation, err := t.resolveConversation(conversationId)
	if err != nil {
		return err
	}
	t.conversation = conversation

	release, err := t.svc.locker.Acquire(t.ctx, conversation.Id.String())
	switch {
	case err == nil:
		defer release()
	case t.ctx.Err() != nil:
		t.outcome = outcomeCancelled
		return nil
	default:
		t.svc.logger.Warn("INSIGHT", "Turn lock unavailable, proceeding unlocked", map[string]interface{}{
			"conversationId": conversation.Id.String(),
			"error":          err.Error(),
		})
	}

	if err := t.persist(&entity.Message{
		Id:             uuid.New(),
		ConversationId: conversation.Id,
		Role:           constant.RoleUser,
		Type:           constant.MessageTypeText,
		Content:        t.message,
		Cost:           decimal.Zero,
		CreatedAt:      time.Now(),
	}); err != nil {
		return err
	}

	analysis := t.classify()
	if !analysis.IsDataRelated {
		return t.suggest(analysis)
	}

	tables := t.lookupSchema()
	if len(tables) == 0 {
		t.outcome = outcomeNoSchema
		return t.terminate(constant.NoSchemaMessage, nil, map[string]interface{}{
			constant.MetaError: ErrNoSchema.Error(),
		})
	}

	generation, err := t.generate(tables, analysis)
	if err != nil {
		if t.ctx.Err() != nil {
			t.outcome = outcomeCancelled
			return nil
		}
		t.outcome = outcomeGenerationFailed
		return t.terminate(constant.GenerationFailedMessage, nil, map[string]interface{}{
			constant.MetaError:        "SQL generation failed",
			constant.MetaErrorDetails: err.Error(),
		})
	}

	validation := t.validate(generation.SQLQuery, tables)
	if !validation.IsValid {
		return t.recoverFromInvalidSQL(generation, validation)
	}

	rows, err := t.execute(generation.SQLQuery)
	if err != nil {
		if t.ctx.Err() != nil {
			t.outcome = outcomeCancelled
			return nil
		}
		t.outcome = outcomeExecutionFailed
		query := generation.SQLQuery
		return t.terminate(constant.ExecutionFailedMessage, &query, map[string]interface{}{
			constant.MetaError:        "SQL execution failed",
			constant.MetaErrorDetails: err.Error(),
			constant.MetaSQLQuery:     query,
		})
	}

	content, ok := t.narrate(generation.Explanation, rows, constant.MessageTypeDataResult)
	if !ok {
		return nil
	}

	return t.finalize(analysis, generation, rows, content)
}

func (t *turn) resolveConversation(conversationId *uuid.UUID) (*entity.Conversation, error) {
	uow := t.svc.uowFactory.NewUnitOfWork(t.ctx)

	if conversationId != nil {
		conversation, err := uow.ConversationRepository().FindOne(t.ctx,
			specification.ByID{ID: *conversationId},
			specification.UserOwnedBy{UserID: t.userId},
		)
		if err != nil {
			return nil, err
		}
		if conversation == nil {
			return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, conversationId.String())
		}
		return conversation, nil
	}

	conversation := &entity.Conversation{
		Id:        uuid.New(),
		Title:     conversationTitle(t.message),
		UserId:    t.userId,
		TotalCost: decimal.Zero,
		CreatedAt: time.Now(),
	}
	if err := uow.ConversationRepository().Create(context.WithoutCancel(t.ctx), conversation); err != nil {
		return nil, err
	}

	t.svc.logger.Info("INSIGHT", "Created conversation", map[string]interface{}{
		"conversationId": conversation.Id.String(),
		"userId":         t.userId.String(),
	})
	return conversation, nil
}

func (t *turn) classify() *classifier.PromptAnalysisResult {
	ctx, end := t.stage("classify")
	defer end()

	analysis := t.svc.pipeline.Classifier.Analyze(ctx, t.message)
	t.addUsage(analysis.Model, analysis.Usage)
	return analysis
}

func (t *turn) lookupSchema() []schema.TableSchema {
	ctx, end := t.stage("schema")
	defer end()

	return t.svc.pipeline.Introspector.Introspect(ctx)
}

func (t *turn) generate(tables []schema.TableSchema, analysis *classifier.PromptAnalysisResult) (*sqlgen.SQLGenerationResult, error) {
	ctx, end := t.stage("generate")
	defer end()

	generation, err := t.svc.pipeline.Generator.Generate(ctx, t.message, tables, analysis)
	if generation != nil {
		t.addUsage(generation.Model, generation.Usage)
	}
	return generation, err
}

func (t *turn) validate(query string, tables []schema.TableSchema) validator.ValidationResult {
	ctx, end := t.stage("validate")
	defer end()

	return t.svc.pipeline.Validator.Validate(ctx, query, tables)
}

func (t *turn) execute(query string) ([]resultset.Row, error) {
	ctx, end := t.stage("execute")
	defer end()

	rows, err := t.svc.pipeline.Executor.Execute(ctx, query)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []resultset.Row{}
	}
	if t.svc.metrics != nil {
		t.svc.metrics.ResultRows.Observe(float64(len(rows)))
	}
	return rows, nil
}

// suggest answers a question that is not about business data with a list of questions
// that are, streamed word by word.
func (t *turn) suggest(analysis *classifier.PromptAnalysisResult) error {
	suggestions := analysis.SuggestedQueries
	if len(suggestions) < constant.MinSuggestions {
		suggestions = append([]string(nil), classifier.DefaultSuggestions...)
	}
	text := suggestionText(t.message, suggestions)

	t.partial.Reset()
	words := strings.Split(text, " ")
	for i, word := range words {
		piece := word
		if i < len(words)-1 {
			piece += " "
		}
		if !t.emit(dto.ChatStreamChunk{Content: piece}) {
			t.interrupt(constant.MessageTypeSuggestion)
			return nil
		}
		t.partial.WriteString(piece)

		if t.svc.wordDelay > 0 && i < len(words)-1 {
			select {
			case <-time.After(t.svc.wordDelay):
			case <-t.ctx.Done():
				t.interrupt(constant.MessageTypeSuggestion)
				return nil
			}
		}
	}

	msg := t.assistantMessage(constant.MessageTypeSuggestion, text, map[string]interface{}{
		constant.MetaSuggestions: suggestions,
		constant.MetaAnalysis:    analysis,
	})
	if err := t.persist(msg); err != nil {
		return err
	}

	t.outcome = outcomeSuggestion
	t.emit(dto.ChatStreamChunk{Finished: true, Metadata: t.conversationMetadata()})
	return nil
}

// recoverFromInvalidSQL records the validation failure and then answers in general terms.
func (t *turn) recoverFromInvalidSQL(generation *sqlgen.SQLGenerationResult, validation validator.ValidationResult) error {
	t.outcome = outcomeInvalidSQL
	if t.svc.metrics != nil {
		t.svc.metrics.ValidationFailuresTotal.Inc()
	}

	content := fmt.Sprintf(constant.ValidationFailedMessageTmpl, strings.Join(validation.Errors, ", "))
	msg := t.assistantMessage(constant.MessageTypeError, content, map[string]interface{}{
		constant.MetaError:            "SQL validation failed",
		constant.MetaValidationErrors: validation.Errors,
		constant.MetaSQLQuery:         generation.SQLQuery,
		constant.MetaTimestamp:        time.Now().UTC().Format(time.RFC3339),
	})
	if err := t.persist(msg); err != nil {
		return err
	}

	if !t.emit(dto.ChatStreamChunk{Content: content, Metadata: t.conversationMetadata()}) {
		t.outcome = outcomeCancelled
		return nil
	}

	fallback, ok := t.narrate(constant.FallbackResponseContext, nil, constant.MessageTypeText)
	if !ok {
		return nil
	}

	if err := t.persist(t.assistantMessage(constant.MessageTypeText, fallback, nil)); err != nil {
		return err
	}
	t.emit(dto.ChatStreamChunk{Finished: true, Metadata: t.conversationMetadata()})
	return nil
}

// narrate relays the synthesizer's fragments. It returns false when the caller went away,
// in which case what was delivered so far has already been saved as msgType.
func (t *turn) narrate(contextText string, rows []resultset.Row, msgType string) (string, bool) {
	ctx, end := t.stage("synthesize")
	defer end()

	t.partial.Reset()
	fragments := t.svc.pipeline.Synthesizer.Stream(ctx, t.message, contextText, rows)
	for fragment := range fragments {
		if fragment.Usage != nil {
			t.addUsage(fragment.Model, *fragment.Usage)
		}
		if fragment.Text == "" {
			continue
		}
		if !t.emit(dto.ChatStreamChunk{Content: fragment.Text}) {
			go func() {
				for range fragments {
				}
			}()
			t.interrupt(msgType)
			return "", false
		}
		t.partial.WriteString(fragment.Text)
	}

	if t.ctx.Err() != nil {
		t.interrupt(msgType)
		return "", false
	}
	return t.partial.String(), true
}

func (t *turn) finalize(analysis *classifier.PromptAnalysisResult, generation *sqlgen.SQLGenerationResult, rows []resultset.Row, content string) error {
	processingTime := time.Since(t.started).Milliseconds()
	query := generation.SQLQuery

	msg := t.assistantMessage(constant.MessageTypeDataResult, content, map[string]interface{}{
		constant.MetaAnalysis:      analysis,
		constant.MetaSQLGeneration: generation,
	})
	msg.SQLQuery = &query
	msg.SQLResult = rows
	msg.ProcessingTime = &processingTime

	if err := t.persist(msg); err != nil {
		return err
	}
	t.outcome = outcomeSuccess

	usage := t.total
	cost, _ := t.totalCost.Float64()
	t.emit(dto.ChatStreamChunk{
		Finished:  true,
		Usage:     &usage,
		SQLQuery:  query,
		SQLResult: rows,
		Metadata: map[string]interface{}{
			constant.MetaProcessingTime: processingTime,
			constant.MetaCost:           cost,
			constant.MetaConversationID: t.conversation.Id.String(),
		},
	})

	t.publishCompleted(msg, query, len(rows), processingTime)
	return nil
}

func (t *turn) publishCompleted(msg *entity.Message, query string, rowCount int, processingTime int64) {
	if t.svc.publisher == nil {
		return
	}

	event := events.InsightQueryCompleted{
		UserId:           t.userId.String(),
		ConversationId:   t.conversation.Id.String(),
		MessageId:        msg.Id.String(),
		Query:            t.message,
		SQLQuery:         query,
		RowCount:         rowCount,
		ProcessingTimeMs: processingTime,
		TotalTokens:      t.total.TotalTokens,
		Cost:             t.totalCost.StringFixed(llm.CostScale),
		CompletedAt:      time.Now().UTC(),
	}
	if err := t.svc.publisher.Publish(context.WithoutCancel(t.ctx), event); err != nil {
		t.svc.logger.Warn("INSIGHT", "Failed to publish completion event", map[string]interface{}{
			"conversationId": t.conversation.Id.String(),
			"error":          err.Error(),
		})
	}
}

// terminate ends the turn with a single persisted error message.
func (t *turn) terminate(content string, query *string, metadata map[string]interface{}) error {
	metadata[constant.MetaTimestamp] = time.Now().UTC().Format(time.RFC3339)

	msg := t.assistantMessage(constant.MessageTypeError, content, metadata)
	msg.SQLQuery = query
	if err := t.persist(msg); err != nil {
		return err
	}

	t.emit(dto.ChatStreamChunk{Content: content, Finished: true, Metadata: t.conversationMetadata()})
	return nil
}

func (t *turn) fail(err error) {
	if t.ctx.Err() != nil {
		t.outcome = outcomeCancelled
		t.svc.logger.Warn("INSIGHT", "Turn abandoned after disconnect", map[string]interface{}{"error": err.Error()})
		return
	}

	t.outcome = outcomeError
	t.svc.logger.Error("INSIGHT", "Turn failed", map[string]interface{}{
		"userId": t.userId.String(),
		"error":  err.Error(),
	})
	if t.finished {
		return
	}

	var metadata map[string]interface{}
	if t.conversation != nil {
		msg := t.assistantMessage(constant.MessageTypeError, constant.UnexpectedErrorMessage, map[string]interface{}{
			constant.MetaError:        "Unexpected error",
			constant.MetaErrorDetails: err.Error(),
			constant.MetaTimestamp:    time.Now().UTC().Format(time.RFC3339),
		})
		if perr := t.persist(msg); perr != nil {
			t.svc.logger.Error("INSIGHT", "Failed to save error message", map[string]interface{}{"error": perr.Error()})
		}
		metadata = t.conversationMetadata()
	}

	t.emit(dto.ChatStreamChunk{Content: constant.UnexpectedErrorMessage, Finished: true, Metadata: metadata})
}

// interrupt saves what the client already received when it disconnects mid-stream.
func (t *turn) interrupt(msgType string) {
	t.outcome = outcomeCancelled
	content := t.partial.String()
	if t.conversation == nil || content == "" {
		return
	}

	msg := t.assistantMessage(msgType, content, map[string]interface{}{
		constant.MetaInterrupted: true,
	})
	if err := t.persist(msg); err != nil {
		t.svc.logger.Error("INSIGHT", "Failed to save interrupted response", map[string]interface{}{
			"conversationId": t.conversation.Id.String(),
			"error":          err.Error(),
		})
		return
	}

	t.svc.logger.Info("INSIGHT", "Saved partial response after disconnect", map[string]interface{}{
		"conversationId": t.conversation.Id.String(),
		"length":         len(content),
	})
}

// emit blocks until the consumer takes the chunk or the turn is cancelled.
func (t *turn) emit(chunk dto.ChatStreamChunk) bool {
	if t.ctx.Err() != nil {
		return false
	}
	select {
	case t.out <- chunk:
		if chunk.Finished {
			t.finished = true
		}
		return true
	case <-t.ctx.Done():
		return false
	}
}

// persist inserts msg and re-sums the conversation totals in one transaction. It runs
// detached from the request so history survives a disconnect.
func (t *turn) persist(msg *entity.Message) error {
	ctx := context.WithoutCancel(t.ctx)

	uow := t.svc.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.MessageRepository().Create(ctx, msg); err != nil {
		return err
	}

	totals, err := uow.MessageRepository().SumTotals(ctx, msg.ConversationId)
	if err != nil {
		return err
	}
	if err := uow.ConversationRepository().UpdateTotals(ctx, msg.ConversationId, totals.TotalTokens, totals.TotalCost); err != nil {
		return err
	}

	if err := uow.Commit(); err != nil {
		return err
	}

	t.conversation.TotalTokens = totals.TotalTokens
	t.conversation.TotalCost = totals.TotalCost
	return nil
}

// assistantMessage builds the next assistant message and hands it the usage spent since
// the previous one.
func (t *turn) assistantMessage(msgType, content string, metadata map[string]interface{}) *entity.Message {
	usage, cost := t.takeUsage()

	return &entity.Message{
		Id:               uuid.New(),
		ConversationId:   t.conversation.Id,
		Role:             constant.RoleAssistant,
		Type:             msgType,
		Content:          content,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      usage.TotalTokens,
		Cost:             cost,
		Metadata:         metadata,
		CreatedAt:        time.Now(),
	}
}

func (t *turn) addUsage(model string, usage llm.Usage) {
	if usage.IsZero() {
		return
	}
	cost := t.svc.pricing.Cost(model, usage)

	t.pending = t.pending.Add(usage)
	t.pendCost = t.pendCost.Add(cost)
	t.total = t.total.Add(usage)
	t.totalCost = t.totalCost.Add(cost)
}

func (t *turn) takeUsage() (llm.Usage, decimal.Decimal) {
	usage, cost := t.pending, t.pendCost
	t.pending = llm.Usage{}
	t.pendCost = decimal.Zero
	return usage, cost
}

func (t *turn) conversationMetadata() map[string]interface{} {
	return map[string]interface{}{constant.MetaConversationID: t.conversation.Id.String()}
}

func (t *turn) stage(name string) (context.Context, func()) {
	start := time.Now()
	ctx, span := t.svc.tracer.Start(t.ctx, "insight."+name)

	return ctx, func() {
		span.End()
		if t.svc.metrics != nil {
			t.svc.metrics.ObserveStage(name, start)
		}
	}
}

func (t *turn) record(span trace.Span) {
	if t.outcome == "" {
		t.outcome = outcomeError
	}
	elapsed := time.Since(t.started)

	span.SetAttributes(
		attribute.String("insight.outcome", t.outcome),
		attribute.Int("insight.total_tokens", t.total.TotalTokens),
	)
	if t.conversation != nil {
		span.SetAttributes(attribute.String("insight.conversation_id", t.conversation.Id.String()))
	}
	if t.outcome == outcomeError {
		span.SetStatus(codes.Error, "turn failed")
	}

	if t.svc.metrics != nil {
		cost, _ := t.totalCost.Float64()
		t.svc.metrics.RecordTurn(t.outcome, elapsed)
		t.svc.metrics.RecordUsage(t.total.PromptTokens, t.total.CompletionTokens, cost)
	}

	details := map[string]interface{}{
		"outcome":     t.outcome,
		"durationMs":  elapsed.Milliseconds(),
		"totalTokens": t.total.TotalTokens,
		"cost":        t.totalCost.StringFixed(llm.CostScale),
	}
	if t.conversation != nil {
		details["conversationId"] = t.conversation.Id.String()
	}
	t.svc.logger.Info("INSIGHT", "Turn completed", details)
}

// conversationTitle is the first runes of the opening message.
func conversationTitle(message string) string {
	runes := []rune(message)
	if len(runes) > constant.ConversationTitleMaxLength {
		runes = runes[:constant.ConversationTitleMaxLength]
	}
	return string(runes)
}

func suggestionText(message string, suggestions []string) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf(constant.SuggestionIntroTmpl, message))
	b.WriteString("\n\n")
	b.WriteString(constant.SuggestionListIntro)
	b.WriteString("\n\n")
	for i, s := range suggestions {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(fmt.Sprintf("%d. %s", i+1, s))
	}
	b.WriteString("\n\n")
	b.WriteString(constant.SuggestionOutro)
	return b.String()
}
