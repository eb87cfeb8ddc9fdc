package mapper

import (
	"testing"
	"time"

	"bizinsight-be/internal/entity"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageMappingKeepsResultRows(t *testing.T) {
	m := NewInsightMapper()
	sql := "SELECT 1"
	elapsed := int64(1200)

	in := &entity.Message{
		Id:             uuid.New(),
		ConversationId: uuid.New(),
		Role:           "assistant",
		Type:           "data_result",
		Content:        "# Results",
		TotalTokens:    30,
		Cost:           decimal.RequireFromString("0.000123"),
		SQLQuery:       &sql,
		SQLResult:      []map[string]interface{}{{"name": "Widget", "total_sold": float64(12)}},
		ProcessingTime: &elapsed,
		Metadata:       map[string]interface{}{"conversationId": "abc"},
		CreatedAt:      time.Now(),
	}

	out := m.MessageToEntity(m.MessageToModel(in))
	require.NotNil(t, out)

	assert.Equal(t, in.SQLResult, out.SQLResult)
	assert.Equal(t, in.Metadata, out.Metadata)
	assert.True(t, in.Cost.Equal(out.Cost))
	assert.Equal(t, sql, *out.SQLQuery)
	assert.Equal(t, elapsed, *out.ProcessingTime)
}

func TestMessageMappingNilResultStaysNull(t *testing.T) {
	m := NewInsightMapper()

	modelMsg := m.MessageToModel(&entity.Message{Content: "hi"})
	assert.Nil(t, modelMsg.SQLResult)
	assert.Nil(t, modelMsg.Metadata)

	empty := m.MessageToModel(&entity.Message{Content: "hi", SQLResult: []map[string]interface{}{}})
	assert.Equal(t, "[]", string(empty.SQLResult))
}

func TestConversationSoftDeleteMapping(t *testing.T) {
	m := NewInsightMapper()

	modelConv := m.ConversationToModel(&entity.Conversation{Id: uuid.New(), Title: "t", IsDeleted: true})
	assert.True(t, modelConv.DeletedAt.Valid)

	back := m.ConversationToEntity(modelConv)
	assert.True(t, back.IsDeleted)
	assert.NotNil(t, back.DeletedAt)
}
