package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Conversation struct {
	Id          uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Title       string          `gorm:"type:varchar(255);not null"`
	UserId      uuid.UUID       `gorm:"type:uuid;not null;index"`
	TotalTokens int             `gorm:"not null;default:0"`
	TotalCost   decimal.Decimal `gorm:"type:decimal(10,6);not null;default:0"`
	Metadata    datatypes.JSON  `gorm:"type:jsonb"`
	IsPinned    bool            `gorm:"not null;default:false"`
	Messages    []Message       `gorm:"foreignKey:ConversationId;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time       `gorm:"autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime;index"`
	DeletedAt   gorm.DeletedAt  `gorm:"index"`
}

func (Conversation) TableName() string {
	return "conversations"
}
