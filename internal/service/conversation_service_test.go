package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"bizinsight-be/internal/dto"
	"bizinsight-be/internal/entity"
	"bizinsight-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConversationFixture() (*memoryStore, IConversationService) {
	store := newMemoryStore()
	return store, NewConversationService(&fakeFactory{store: store}, logger.NewNopLogger())
}

func TestConversationServiceCreateAndShow(t *testing.T) {
	store, svc := newConversationFixture()
	ctx := context.Background()
	userId := uuid.New()

	created, err := svc.Create(ctx, userId, &dto.CreateConversationRequest{Title: "Q3 revenue"})
	require.NoError(t, err)
	assert.Equal(t, "Q3 revenue", created.Title)
	assert.Equal(t, userId, created.UserId)

	base := time.Now()
	for i, content := range []string{"first", "second", "third"} {
		store.messages = append(store.messages, &entity.Message{
			Id:             uuid.New(),
			ConversationId: created.Id,
			Role:           "user",
			Type:           "text",
			Content:        content,
			CreatedAt:      base.Add(time.Duration(2-i) * -time.Second),
		})
	}

	shown, err := svc.Show(ctx, userId, created.Id)
	require.NoError(t, err)
	require.Len(t, shown.Messages, 3)
	assert.Equal(t, "first", shown.Messages[0].Content)
	assert.Equal(t, "third", shown.Messages[2].Content)
}

func TestConversationServiceHidesOtherUsersConversations(t *testing.T) {
	_, svc := newConversationFixture()
	ctx := context.Background()

	created, err := svc.Create(ctx, uuid.New(), &dto.CreateConversationRequest{Title: "mine"})
	require.NoError(t, err)

	stranger := uuid.New()
	_, err = svc.Show(ctx, stranger, created.Id)
	assert.True(t, errors.Is(err, ErrConversationNotFound))

	_, err = svc.Rename(ctx, stranger, created.Id, &dto.UpdateConversationRequest{Title: "x"})
	assert.True(t, errors.Is(err, ErrConversationNotFound))

	assert.ErrorIs(t, svc.Delete(ctx, stranger, created.Id), ErrConversationNotFound)

	list, err := svc.GetAll(ctx, stranger)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestConversationServiceListsPinnedFirst(t *testing.T) {
	store, svc := newConversationFixture()
	ctx := context.Background()
	userId := uuid.New()
	now := time.Now()

	older := &entity.Conversation{Id: uuid.New(), Title: "older", UserId: userId, CreatedAt: now.Add(-2 * time.Hour)}
	newer := &entity.Conversation{Id: uuid.New(), Title: "newer", UserId: userId, CreatedAt: now.Add(-time.Hour)}
	pinned := &entity.Conversation{Id: uuid.New(), Title: "pinned", UserId: userId, IsPinned: true, CreatedAt: now.Add(-3 * time.Hour)}
	for _, c := range []*entity.Conversation{older, newer, pinned} {
		store.seedConversation(c)
	}

	list, err := svc.GetAll(ctx, userId)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"pinned", "newer", "older"}, []string{list[0].Title, list[1].Title, list[2].Title})
}

func TestConversationServiceRenamePinAndDelete(t *testing.T) {
	store, svc := newConversationFixture()
	ctx := context.Background()
	userId := uuid.New()

	created, err := svc.Create(ctx, userId, &dto.CreateConversationRequest{Title: "draft"})
	require.NoError(t, err)

	renamed, err := svc.Rename(ctx, userId, created.Id, &dto.UpdateConversationRequest{Title: "Churn by region"})
	require.NoError(t, err)
	assert.Equal(t, "Churn by region", renamed.Title)

	pinned, err := svc.TogglePin(ctx, userId, created.Id)
	require.NoError(t, err)
	assert.True(t, pinned.IsPinned)

	unpinned, err := svc.TogglePin(ctx, userId, created.Id)
	require.NoError(t, err)
	assert.False(t, unpinned.IsPinned)

	require.NoError(t, svc.Delete(ctx, userId, created.Id))
	assert.True(t, store.conversation(created.Id).IsDeleted)

	_, err = svc.Show(ctx, userId, created.Id)
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestConversationServiceRenameAndPinKeepConcurrentTotals(t *testing.T) {
	store, svc := newConversationFixture()
	ctx := context.Background()
	userId := uuid.New()

	created, err := svc.Create(ctx, userId, &dto.CreateConversationRequest{Title: "draft"})
	require.NoError(t, err)

	bumpTotals := func(tokens int, cost string) func(s *memoryStore) {
		return func(s *memoryStore) {
			s.mu.Lock()
			defer s.mu.Unlock()
			c := s.conversations[created.Id]
			c.TotalTokens = tokens
			c.TotalCost = decimal.RequireFromString(cost)
		}
	}

	store.mu.Lock()
	store.afterConversationRead = bumpTotals(120, "0.0031")
	store.mu.Unlock()

	renamed, err := svc.Rename(ctx, userId, created.Id, &dto.UpdateConversationRequest{Title: "Churn by region"})
	require.NoError(t, err)
	assert.Equal(t, "Churn by region", renamed.Title)
	assert.Equal(t, 120, renamed.TotalTokens)

	store.mu.Lock()
	store.afterConversationRead = bumpTotals(300, "0.0075")
	store.mu.Unlock()

	pinned, err := svc.TogglePin(ctx, userId, created.Id)
	require.NoError(t, err)
	assert.True(t, pinned.IsPinned)

	saved := store.conversation(created.Id)
	assert.Equal(t, "Churn by region", saved.Title)
	assert.True(t, saved.IsPinned)
	assert.Equal(t, 300, saved.TotalTokens)
	assert.True(t, decimal.RequireFromString("0.0075").Equal(saved.TotalCost))
}

func TestConversationServiceStats(t *testing.T) {
	store, svc := newConversationFixture()
	ctx := context.Background()
	userId := uuid.New()

	created, err := svc.Create(ctx, userId, &dto.CreateConversationRequest{Title: "stats"})
	require.NoError(t, err)

	fast, slow := int64(400), int64(1600)
	store.messages = append(store.messages,
		&entity.Message{Id: uuid.New(), ConversationId: created.Id, Role: "user", TotalTokens: 0, Cost: decimal.Zero},
		&entity.Message{Id: uuid.New(), ConversationId: created.Id, Role: "assistant", TotalTokens: 120, Cost: decimal.RequireFromString("0.000150"), ProcessingTime: &fast},
		&entity.Message{Id: uuid.New(), ConversationId: created.Id, Role: "assistant", TotalTokens: 80, Cost: decimal.RequireFromString("0.000050"), ProcessingTime: &slow},
	)

	stats, err := svc.Stats(ctx, userId, created.Id)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.MessageCount)
	assert.Equal(t, 200, stats.TotalTokens)
	assert.True(t, decimal.RequireFromString("0.0002").Equal(stats.TotalCost))
	assert.InDelta(t, 1000.0, stats.AvgProcessingTime, 0.001)

	messages, err := svc.Messages(ctx, userId, created.Id)
	require.NoError(t, err)
	assert.Len(t, messages, 3)
}
