package mapper

import (
	"encoding/json"
	"time"

	"bizinsight-be/internal/entity"
	"bizinsight-be/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type InsightMapper struct{}

func NewInsightMapper() *InsightMapper {
	return &InsightMapper{}
}

// Conversation Mappers

func (m *InsightMapper) ConversationToEntity(c *model.Conversation) *entity.Conversation {
	if c == nil {
		return nil
	}

	var deletedAt *time.Time
	if c.DeletedAt.Valid {
		t := c.DeletedAt.Time
		deletedAt = &t
	}

	var updatedAt *time.Time
	if !c.UpdatedAt.IsZero() {
		t := c.UpdatedAt
		updatedAt = &t
	}

	return &entity.Conversation{
		Id:          c.Id,
		Title:       c.Title,
		UserId:      c.UserId,
		TotalTokens: c.TotalTokens,
		TotalCost:   c.TotalCost,
		Metadata:    decodeMap(c.Metadata),
		IsPinned:    c.IsPinned,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   updatedAt,
		DeletedAt:   deletedAt,
		IsDeleted:   c.DeletedAt.Valid,
	}
}

func (m *InsightMapper) ConversationToModel(c *entity.Conversation) *model.Conversation {
	if c == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if c.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *c.DeletedAt, Valid: true}
	} else if c.IsDeleted {
		deletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}

	var updatedAt time.Time
	if c.UpdatedAt != nil {
		updatedAt = *c.UpdatedAt
	}

	return &model.Conversation{
		Id:          c.Id,
		Title:       c.Title,
		UserId:      c.UserId,
		TotalTokens: c.TotalTokens,
		TotalCost:   c.TotalCost,
		Metadata:    encodeJSON(c.Metadata),
		IsPinned:    c.IsPinned,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   updatedAt,
		DeletedAt:   deletedAt,
	}
}

// Message Mappers

func (m *InsightMapper) MessageToEntity(msg *model.Message) *entity.Message {
	if msg == nil {
		return nil
	}

	var updatedAt *time.Time
	if !msg.UpdatedAt.IsZero() {
		t := msg.UpdatedAt
		updatedAt = &t
	}

	return &entity.Message{
		Id:               msg.Id,
		ConversationId:   msg.ConversationId,
		Role:             msg.Role,
		Type:             msg.Type,
		Content:          msg.Content,
		PromptTokens:     msg.PromptTokens,
		CompletionTokens: msg.CompletionTokens,
		TotalTokens:      msg.TotalTokens,
		Cost:             msg.Cost,
		SQLQuery:         msg.SQLQuery,
		SQLResult:        decodeRows(msg.SQLResult),
		ProcessingTime:   msg.ProcessingTime,
		Metadata:         decodeMap(msg.Metadata),
		CreatedAt:        msg.CreatedAt,
		UpdatedAt:        updatedAt,
	}
}

func (m *InsightMapper) MessageToModel(msg *entity.Message) *model.Message {
	if msg == nil {
		return nil
	}

	var updatedAt time.Time
	if msg.UpdatedAt != nil {
		updatedAt = *msg.UpdatedAt
	}

	var sqlResult datatypes.JSON
	if msg.SQLResult != nil {
		sqlResult = encodeJSON(msg.SQLResult)
	}

	return &model.Message{
		Id:               msg.Id,
		ConversationId:   msg.ConversationId,
		Role:             msg.Role,
		Type:             msg.Type,
		Content:          msg.Content,
		PromptTokens:     msg.PromptTokens,
		CompletionTokens: msg.CompletionTokens,
		TotalTokens:      msg.TotalTokens,
		Cost:             msg.Cost,
		SQLQuery:         msg.SQLQuery,
		SQLResult:        sqlResult,
		ProcessingTime:   msg.ProcessingTime,
		Metadata:         encodeJSON(msg.Metadata),
		CreatedAt:        msg.CreatedAt,
		UpdatedAt:        updatedAt,
	}
}

func (m *InsightMapper) MessagesToEntities(models []*model.Message) []*entity.Message {
	entities := make([]*entity.Message, len(models))
	for i, msg := range models {
		entities[i] = m.MessageToEntity(msg)
	}
	return entities
}

// encodeJSON returns nil (SQL NULL) for nil input or values that cannot be marshalled.
func encodeJSON(v interface{}) datatypes.JSON {
	switch t := v.(type) {
	case nil:
		return nil
	case map[string]interface{}:
		if t == nil {
			return nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}

func decodeMap(raw datatypes.JSON) map[string]interface{} {
	if len(raw) == 0 {
		return nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func decodeRows(raw datatypes.JSON) []map[string]interface{} {
	if len(raw) == 0 {
		return nil
	}
	var out []map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
