package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Conversation struct {
	Id          uuid.UUID
	Title       string
	UserId      uuid.UUID
	TotalTokens int
	TotalCost   decimal.Decimal
	Metadata    map[string]interface{}
	IsPinned    bool
	CreatedAt   time.Time
	UpdatedAt   *time.Time
	DeletedAt   *time.Time
	IsDeleted   bool
}

// ConversationTotals is the aggregate of a conversation's messages.
type ConversationTotals struct {
	MessageCount      int64
	TotalTokens       int
	TotalCost         decimal.Decimal
	AvgProcessingTime float64
}
