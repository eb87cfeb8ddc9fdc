package events

import (
	"context"
	"time"
)

const TypeInsightQueryCompleted = "insight.query.completed"

// Publisher delivers events to whatever bus is configured.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// InsightQueryCompleted is emitted after a data turn has been answered and persisted.
type InsightQueryCompleted struct {
	UserId           string    `json:"userId"`
	ConversationId   string    `json:"conversationId"`
	MessageId        string    `json:"messageId"`
	Query            string    `json:"query"`
	SQLQuery         string    `json:"sqlQuery"`
	RowCount         int       `json:"rowCount"`
	ProcessingTimeMs int64     `json:"processingTime"`
	TotalTokens      int       `json:"totalTokens"`
	Cost             string    `json:"cost"`
	CompletedAt      time.Time `json:"completedAt"`
}

func (e InsightQueryCompleted) EventType() string {
	return TypeInsightQueryCompleted
}

func (e InsightQueryCompleted) Payload() map[string]interface{} {
	return map[string]interface{}{
		"userId":         e.UserId,
		"conversationId": e.ConversationId,
		"messageId":      e.MessageId,
		"query":          e.Query,
		"sqlQuery":       e.SQLQuery,
		"rowCount":       e.RowCount,
		"processingTime": e.ProcessingTimeMs,
		"totalTokens":    e.TotalTokens,
		"cost":           e.Cost,
		"completedAt":    e.CompletedAt.Format(time.RFC3339Nano),
	}
}

func (e InsightQueryCompleted) Timestamp() time.Time {
	return e.CompletedAt
}
