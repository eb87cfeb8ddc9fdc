package service

import (
	"context"
	"time"

	"bizinsight-be/internal/dto"
	"bizinsight-be/internal/entity"
	"bizinsight-be/internal/pkg/logger"
	"bizinsight-be/internal/repository/specification"
	"bizinsight-be/internal/repository/unitofwork"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type IConversationService interface {
	Create(ctx context.Context, userId uuid.UUID, req *dto.CreateConversationRequest) (*dto.ConversationResponse, error)
	GetAll(ctx context.Context, userId uuid.UUID) ([]*dto.ConversationResponse, error)
	Show(ctx context.Context, userId uuid.UUID, id uuid.UUID) (*dto.ConversationResponse, error)
	Rename(ctx context.Context, userId uuid.UUID, id uuid.UUID, req *dto.UpdateConversationRequest) (*dto.ConversationResponse, error)
	TogglePin(ctx context.Context, userId uuid.UUID, id uuid.UUID) (*dto.ConversationResponse, error)
	Delete(ctx context.Context, userId uuid.UUID, id uuid.UUID) error
	Messages(ctx context.Context, userId uuid.UUID, id uuid.UUID) ([]*dto.MessageResponse, error)
	Stats(ctx context.Context, userId uuid.UUID, id uuid.UUID) (*dto.ConversationStatsResponse, error)
}

type conversationService struct {
	uowFactory unitofwork.RepositoryFactory
	logger     logger.ILogger
}

func NewConversationService(uowFactory unitofwork.RepositoryFactory, log logger.ILogger) IConversationService {
	return &conversationService{
		uowFactory: uowFactory,
		logger:     log,
	}
}

func (c *conversationService) Create(ctx context.Context, userId uuid.UUID, req *dto.CreateConversationRequest) (*dto.ConversationResponse, error) {
	uow := c.uowFactory.NewUnitOfWork(ctx)
	conversation := entity.Conversation{
		Id:        uuid.New(),
		Title:     req.Title,
		UserId:    userId,
		TotalCost: decimal.Zero,
		CreatedAt: time.Now(),
	}

	if err := uow.ConversationRepository().Create(ctx, &conversation); err != nil {
		return nil, err
	}

	c.logger.Info("CONVERSATION", "Created conversation", map[string]interface{}{
		"conversationId": conversation.Id.String(),
		"userId":         userId.String(),
	})
	return toConversationResponse(&conversation, nil), nil
}

func (c *conversationService) GetAll(ctx context.Context, userId uuid.UUID) ([]*dto.ConversationResponse, error) {
	uow := c.uowFactory.NewUnitOfWork(ctx)

	conversations, err := uow.ConversationRepository().FindAll(ctx,
		specification.UserOwnedBy{UserID: userId},
		specification.PinnedFirst{},
	)
	if err != nil {
		return nil, err
	}

	result := make([]*dto.ConversationResponse, 0, len(conversations))
	for _, conversation := range conversations {
		result = append(result, toConversationResponse(conversation, nil))
	}
	return result, nil
}

func (c *conversationService) Show(ctx context.Context, userId uuid.UUID, id uuid.UUID) (*dto.ConversationResponse, error) {
	uow := c.uowFactory.NewUnitOfWork(ctx)

	conversation, err := c.findOwned(ctx, uow, userId, id)
	if err != nil {
		return nil, err
	}

	messages, err := uow.MessageRepository().FindAll(ctx,
		specification.ByConversationID{ConversationID: id},
		specification.OrderBy{Field: "created_at"},
	)
	if err != nil {
		return nil, err
	}

	res := toConversationResponse(conversation, messages)
	if res.Messages == nil {
		res.Messages = make([]*dto.MessageResponse, 0)
	}
	return res, nil
}

func (c *conversationService) Rename(ctx context.Context, userId uuid.UUID, id uuid.UUID, req *dto.UpdateConversationRequest) (*dto.ConversationResponse, error) {
	uow := c.uowFactory.NewUnitOfWork(ctx)

	conversation, err := c.findOwned(ctx, uow, userId, id)
	if err != nil {
		return nil, err
	}

	if err := uow.ConversationRepository().Rename(ctx, conversation.Id, req.Title); err != nil {
		return nil, err
	}
	if conversation, err = c.findOwned(ctx, uow, userId, id); err != nil {
		return nil, err
	}

	c.logger.Info("CONVERSATION", "Renamed conversation", map[string]interface{}{
		"conversationId": id.String(),
		"title":          req.Title,
	})
	return toConversationResponse(conversation, nil), nil
}

func (c *conversationService) TogglePin(ctx context.Context, userId uuid.UUID, id uuid.UUID) (*dto.ConversationResponse, error) {
	uow := c.uowFactory.NewUnitOfWork(ctx)

	conversation, err := c.findOwned(ctx, uow, userId, id)
	if err != nil {
		return nil, err
	}

	if err := uow.ConversationRepository().TogglePin(ctx, conversation.Id); err != nil {
		return nil, err
	}
	if conversation, err = c.findOwned(ctx, uow, userId, id); err != nil {
		return nil, err
	}

	c.logger.Info("CONVERSATION", "Toggled pin", map[string]interface{}{
		"conversationId": id.String(),
		"isPinned":       conversation.IsPinned,
	})
	return toConversationResponse(conversation, nil), nil
}

func (c *conversationService) Delete(ctx context.Context, userId uuid.UUID, id uuid.UUID) error {
	uow := c.uowFactory.NewUnitOfWork(ctx)

	if _, err := c.findOwned(ctx, uow, userId, id); err != nil {
		return err
	}
	if err := uow.ConversationRepository().Delete(ctx, id); err != nil {
		return err
	}

	c.logger.Info("CONVERSATION", "Deleted conversation", map[string]interface{}{"conversationId": id.String()})
	return nil
}

func (c *conversationService) Messages(ctx context.Context, userId uuid.UUID, id uuid.UUID) ([]*dto.MessageResponse, error) {
	uow := c.uowFactory.NewUnitOfWork(ctx)

	if _, err := c.findOwned(ctx, uow, userId, id); err != nil {
		return nil, err
	}

	messages, err := uow.MessageRepository().FindAll(ctx,
		specification.ByConversationID{ConversationID: id},
		specification.OrderBy{Field: "created_at"},
	)
	if err != nil {
		return nil, err
	}

	result := make([]*dto.MessageResponse, 0, len(messages))
	for _, m := range messages {
		result = append(result, toMessageResponse(m))
	}
	return result, nil
}

func (c *conversationService) Stats(ctx context.Context, userId uuid.UUID, id uuid.UUID) (*dto.ConversationStatsResponse, error) {
	uow := c.uowFactory.NewUnitOfWork(ctx)

	if _, err := c.findOwned(ctx, uow, userId, id); err != nil {
		return nil, err
	}

	totals, err := uow.MessageRepository().SumTotals(ctx, id)
	if err != nil {
		return nil, err
	}

	return &dto.ConversationStatsResponse{
		MessageCount:      totals.MessageCount,
		TotalTokens:       totals.TotalTokens,
		TotalCost:         totals.TotalCost,
		AvgProcessingTime: totals.AvgProcessingTime,
	}, nil
}

func (c *conversationService) findOwned(ctx context.Context, uow unitofwork.UnitOfWork, userId uuid.UUID, id uuid.UUID) (*entity.Conversation, error) {
	conversation, err := uow.ConversationRepository().FindOne(ctx,
		specification.ByID{ID: id},
		specification.UserOwnedBy{UserID: userId},
	)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, ErrConversationNotFound
	}
	return conversation, nil
}

func toConversationResponse(c *entity.Conversation, messages []*entity.Message) *dto.ConversationResponse {
	res := &dto.ConversationResponse{
		Id:          c.Id,
		Title:       c.Title,
		UserId:      c.UserId,
		TotalTokens: c.TotalTokens,
		TotalCost:   c.TotalCost,
		IsPinned:    c.IsPinned,
		Metadata:    c.Metadata,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
	for _, m := range messages {
		res.Messages = append(res.Messages, toMessageResponse(m))
	}
	return res
}

func toMessageResponse(m *entity.Message) *dto.MessageResponse {
	return &dto.MessageResponse{
		Id:               m.Id,
		ConversationId:   m.ConversationId,
		Role:             m.Role,
		Type:             m.Type,
		Content:          m.Content,
		PromptTokens:     m.PromptTokens,
		CompletionTokens: m.CompletionTokens,
		TotalTokens:      m.TotalTokens,
		Cost:             m.Cost,
		SQLQuery:         m.SQLQuery,
		SQLResult:        m.SQLResult,
		ProcessingTime:   m.ProcessingTime,
		Metadata:         m.Metadata,
		CreatedAt:        m.CreatedAt,
	}
}
