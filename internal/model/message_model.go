package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Message struct {
	Id               uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ConversationId   uuid.UUID       `gorm:"type:uuid;not null;index:idx_messages_conversation_created,priority:1"`
	Role             string          `gorm:"type:message_role;not null"`
	Type             string          `gorm:"type:message_type;not null;default:'text'"`
	Content          string          `gorm:"type:text;not null"`
	PromptTokens     int             `gorm:"not null;default:0"`
	CompletionTokens int             `gorm:"not null;default:0"`
	TotalTokens      int             `gorm:"not null;default:0"`
	Cost             decimal.Decimal `gorm:"type:decimal(10,6);not null;default:0"`
	SQLQuery         *string         `gorm:"column:sql_query;type:text"`
	SQLResult        datatypes.JSON  `gorm:"column:sql_result;type:jsonb"`
	ProcessingTime   *int64          `gorm:"column:processing_time"`
	Metadata         datatypes.JSON  `gorm:"type:jsonb"`
	CreatedAt        time.Time       `gorm:"autoCreateTime;index:idx_messages_conversation_created,priority:2"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime"`
}

func (Message) TableName() string {
	return "messages"
}
