package dto

import (
	"encoding/json"
	"strings"
	"time"

	"bizinsight-be/pkg/llm"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ChatRequest struct {
	Message        string     `json:"message" validate:"required,min=1,max=4000"`
	ConversationId *uuid.UUID `json:"conversationId,omitempty"`
	Stream         *bool      `json:"stream,omitempty"`
}

// WantsStream defaults to streaming when the client does not say otherwise.
func (r *ChatRequest) WantsStream() bool {
	return r.Stream == nil || *r.Stream
}

// ChatStreamChunk is one frame of a chat turn. Exactly one frame per turn has Finished set.
type ChatStreamChunk struct {
	Content   string                   `json:"content"`
	Finished  bool                     `json:"finished"`
	Usage     *llm.Usage               `json:"usage,omitempty"`
	SQLQuery  string                   `json:"sqlQuery,omitempty"`
	SQLResult []map[string]interface{} `json:"sqlResult,omitempty"`
	Metadata  map[string]interface{}   `json:"metadata,omitempty"`
}

type ChatResponse struct {
	Content   string                   `json:"content"`
	Usage     *llm.Usage               `json:"usage,omitempty"`
	SQLQuery  string                   `json:"sqlQuery,omitempty"`
	SQLResult []map[string]interface{} `json:"sqlResult,omitempty"`
	Metadata  map[string]interface{}   `json:"metadata,omitempty"`
}

// resultRows lets omitempty drop a nil result while a zero-row result still encodes as [].
func resultRows(rows []map[string]interface{}) *[]map[string]interface{} {
	if rows == nil {
		return nil
	}
	return &rows
}

func (c ChatStreamChunk) MarshalJSON() ([]byte, error) {
	type plain ChatStreamChunk
	return json.Marshal(struct {
		plain
		SQLResult *[]map[string]interface{} `json:"sqlResult,omitempty"`
	}{plain(c), resultRows(c.SQLResult)})
}

func (r ChatResponse) MarshalJSON() ([]byte, error) {
	type plain ChatResponse
	return json.Marshal(struct {
		plain
		SQLResult *[]map[string]interface{} `json:"sqlResult,omitempty"`
	}{plain(r), resultRows(r.SQLResult)})
}

// CollectChatStream drains a turn for non-streaming callers: content is concatenated and
// the structured fields come from the last chunk that carried them.
func CollectChatStream(chunks <-chan ChatStreamChunk) *ChatResponse {
	var content strings.Builder
	res := &ChatResponse{}

	for chunk := range chunks {
		content.WriteString(chunk.Content)
		if chunk.Usage != nil {
			res.Usage = chunk.Usage
		}
		if chunk.SQLQuery != "" {
			res.SQLQuery = chunk.SQLQuery
		}
		if chunk.SQLResult != nil {
			res.SQLResult = chunk.SQLResult
		}
		if chunk.Metadata != nil {
			res.Metadata = chunk.Metadata
		}
	}

	res.Content = content.String()
	return res
}

type CreateConversationRequest struct {
	Title string `json:"title" validate:"required,max=255"`
}

type UpdateConversationRequest struct {
	Title string `json:"title" validate:"required,max=255"`
}

type ConversationResponse struct {
	Id          uuid.UUID              `json:"id"`
	Title       string                 `json:"title"`
	UserId      uuid.UUID              `json:"userId"`
	TotalTokens int                    `json:"totalTokens"`
	TotalCost   decimal.Decimal        `json:"totalCost"`
	IsPinned    bool                   `json:"isPinned"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt   time.Time              `json:"createdAt"`
	UpdatedAt   *time.Time             `json:"updatedAt"`
	Messages    []*MessageResponse     `json:"messages,omitempty"`
}

type MessageResponse struct {
	Id               uuid.UUID                `json:"id"`
	ConversationId   uuid.UUID                `json:"conversationId"`
	Role             string                   `json:"role"`
	Type             string                   `json:"type"`
	Content          string                   `json:"content"`
	PromptTokens     int                      `json:"promptTokens"`
	CompletionTokens int                      `json:"completionTokens"`
	TotalTokens      int                      `json:"totalTokens"`
	Cost             decimal.Decimal          `json:"cost"`
	SQLQuery         *string                  `json:"sqlQuery,omitempty"`
	SQLResult        []map[string]interface{} `json:"sqlResult,omitempty"`
	ProcessingTime   *int64                   `json:"processingTime,omitempty"`
	Metadata         map[string]interface{}   `json:"metadata,omitempty"`
	CreatedAt        time.Time                `json:"createdAt"`
}

func (m MessageResponse) MarshalJSON() ([]byte, error) {
	type plain MessageResponse
	return json.Marshal(struct {
		plain
		SQLResult *[]map[string]interface{} `json:"sqlResult,omitempty"`
	}{plain(m), resultRows(m.SQLResult)})
}

type ConversationStatsResponse struct {
	MessageCount      int64           `json:"messageCount"`
	TotalTokens       int             `json:"totalTokens"`
	TotalCost         decimal.Decimal `json:"totalCost"`
	AvgProcessingTime float64         `json:"avgProcessingTime"`
}

type ExampleQuery struct {
	Id          int    `json:"id"`
	Category    string `json:"category"`
	Title       string `json:"title"`
	Query       string `json:"query"`
	Description string `json:"description"`
}

type ExamplesResponse struct {
	Categories []string       `json:"categories"`
	Examples   []ExampleQuery `json:"examples"`
	TotalCount int            `json:"totalCount"`
}
