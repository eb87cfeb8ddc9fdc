package contract

import (
	"context"

	"bizinsight-be/internal/entity"
	"bizinsight-be/internal/repository/specification"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ConversationRepository interface {
	Create(ctx context.Context, conversation *entity.Conversation) error
	UpdateTotals(ctx context.Context, id uuid.UUID, totalTokens int, totalCost decimal.Decimal) error
	Rename(ctx context.Context, id uuid.UUID, title string) error
	TogglePin(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error // Soft delete
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Conversation, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Conversation, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
