package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Message struct {
	Id               uuid.UUID
	ConversationId   uuid.UUID
	Role             string
	Type             string
	Content          string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Cost             decimal.Decimal
	SQLQuery         *string
	SQLResult        []map[string]interface{}
	ProcessingTime   *int64 // milliseconds
	Metadata         map[string]interface{}
	CreatedAt        time.Time
	UpdatedAt        *time.Time
}
