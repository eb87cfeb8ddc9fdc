package implementation

import (
	"context"

	"bizinsight-be/internal/entity"
	"bizinsight-be/internal/mapper"
	"bizinsight-be/internal/model"
	"bizinsight-be/internal/repository/contract"
	"bizinsight-be/internal/repository/specification"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type MessageRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.InsightMapper
}

func NewMessageRepository(db *gorm.DB) contract.MessageRepository {
	return &MessageRepositoryImpl{
		db:     db,
		mapper: mapper.NewInsightMapper(),
	}
}

func (r *MessageRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *MessageRepositoryImpl) Create(ctx context.Context, message *entity.Message) error {
	m := r.mapper.MessageToModel(message)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*message = *r.mapper.MessageToEntity(m)
	return nil
}

func (r *MessageRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Message, error) {
	var models []*model.Message
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.MessagesToEntities(models), nil
}

func (r *MessageRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.Message{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

type messageTotalsRow struct {
	MessageCount      int64
	TotalTokens       int
	TotalCost         decimal.Decimal
	AvgProcessingTime float64
}

// SumTotals aggregates in the database so the result is exact at the column's decimal scale.
func (r *MessageRepositoryImpl) SumTotals(ctx context.Context, conversationId uuid.UUID) (*entity.ConversationTotals, error) {
	var row messageTotalsRow
	err := r.db.WithContext(ctx).
		Model(&model.Message{}).
		Select(`COUNT(*) AS message_count,
			COALESCE(SUM(total_tokens), 0) AS total_tokens,
			COALESCE(SUM(cost), 0) AS total_cost,
			COALESCE(AVG(processing_time), 0) AS avg_processing_time`).
		Where("conversation_id = ?", conversationId).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}

	return &entity.ConversationTotals{
		MessageCount:      row.MessageCount,
		TotalTokens:       row.TotalTokens,
		TotalCost:         row.TotalCost,
		AvgProcessingTime: row.AvgProcessingTime,
	}, nil
}
