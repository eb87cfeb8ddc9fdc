package contract

import (
	"context"

	"bizinsight-be/internal/entity"
	"bizinsight-be/internal/repository/specification"

	"github.com/google/uuid"
)

// MessageRepository is append-only: messages are never updated or deleted individually.
type MessageRepository interface {
	Create(ctx context.Context, message *entity.Message) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Message, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	SumTotals(ctx context.Context, conversationId uuid.UUID) (*entity.ConversationTotals, error)
}
