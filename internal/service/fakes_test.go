package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"bizinsight-be/internal/entity"
	"bizinsight-be/internal/repository/contract"
	"bizinsight-be/internal/repository/specification"
	"bizinsight-be/internal/repository/unitofwork"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// memoryStore is a shared in-memory database for the fake unit of work.
type memoryStore struct {
	mu            sync.Mutex
	conversations map[uuid.UUID]*entity.Conversation
	messages      []*entity.Message

	failMessageCreate error
	// afterConversationRead runs once, after the next conversation read releases the lock.
	afterConversationRead func(s *memoryStore)
}

func newMemoryStore() *memoryStore {
	return &memoryStore{conversations: make(map[uuid.UUID]*entity.Conversation)}
}

func (s *memoryStore) seedConversation(c *entity.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.conversations[c.Id] = &cp
}

func (s *memoryStore) conversationList() []*entity.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*entity.Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		cp := *c
		out = append(out, &cp)
	}
	return out
}

func (s *memoryStore) conversation(id uuid.UUID) *entity.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		return nil
	}
	cp := *c
	return &cp
}

func (s *memoryStore) messagesOf(id uuid.UUID) []*entity.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entity.Message
	for _, m := range s.messages {
		if m.ConversationId == id {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out
}

type fakeFactory struct {
	store *memoryStore
}

func (f *fakeFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return &fakeUnitOfWork{store: f.store}
}

// fakeUnitOfWork applies writes immediately and keeps an undo log while a transaction is open.
type fakeUnitOfWork struct {
	store *memoryStore
	inTx  bool
	undo  []func()
}

func (u *fakeUnitOfWork) Begin(ctx context.Context) error {
	if u.inTx {
		return errors.New("transaction already started")
	}
	u.inTx = true
	u.undo = nil
	return nil
}

func (u *fakeUnitOfWork) Commit() error {
	if !u.inTx {
		return errors.New("no transaction to commit")
	}
	u.inTx = false
	u.undo = nil
	return nil
}

func (u *fakeUnitOfWork) Rollback() error {
	if !u.inTx {
		return errors.New("no transaction to rollback")
	}
	u.store.mu.Lock()
	for i := len(u.undo) - 1; i >= 0; i-- {
		u.undo[i]()
	}
	u.store.mu.Unlock()
	u.inTx = false
	u.undo = nil
	return nil
}

func (u *fakeUnitOfWork) remember(f func()) {
	if u.inTx {
		u.undo = append(u.undo, f)
	}
}

func (u *fakeUnitOfWork) ConversationRepository() contract.ConversationRepository {
	return &fakeConversationRepo{uow: u}
}

func (u *fakeUnitOfWork) MessageRepository() contract.MessageRepository {
	return &fakeMessageRepo{uow: u}
}

type fakeConversationRepo struct {
	uow *fakeUnitOfWork
}

func (r *fakeConversationRepo) Create(ctx context.Context, c *entity.Conversation) error {
	s := r.uow.store
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.conversations[c.Id] = &cp
	r.uow.remember(func() { delete(s.conversations, c.Id) })
	return nil
}

func (r *fakeConversationRepo) UpdateTotals(ctx context.Context, id uuid.UUID, totalTokens int, totalCost decimal.Decimal) error {
	s := r.uow.store
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		return errors.New("record not found")
	}
	prevTokens, prevCost := c.TotalTokens, c.TotalCost
	c.TotalTokens = totalTokens
	c.TotalCost = totalCost
	c.UpdatedAt = ptrTime(time.Now())
	r.uow.remember(func() {
		c.TotalTokens = prevTokens
		c.TotalCost = prevCost
	})
	return nil
}

func (r *fakeConversationRepo) Rename(ctx context.Context, id uuid.UUID, title string) error {
	s := r.uow.store
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		return errors.New("record not found")
	}
	prevTitle, prevUpdated := c.Title, c.UpdatedAt
	c.Title = title
	c.UpdatedAt = ptrTime(time.Now())
	r.uow.remember(func() {
		c.Title = prevTitle
		c.UpdatedAt = prevUpdated
	})
	return nil
}

func (r *fakeConversationRepo) TogglePin(ctx context.Context, id uuid.UUID) error {
	s := r.uow.store
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		return errors.New("record not found")
	}
	c.IsPinned = !c.IsPinned
	r.uow.remember(func() { c.IsPinned = !c.IsPinned })
	return nil
}

func (r *fakeConversationRepo) Delete(ctx context.Context, id uuid.UUID) error {
	s := r.uow.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.conversations[id]; ok {
		c.IsDeleted = true
		c.DeletedAt = ptrTime(time.Now())
	}
	return nil
}

func (r *fakeConversationRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Conversation, error) {
	all, err := r.FindAll(ctx, specs...)
	s := r.uow.store
	s.mu.Lock()
	hook := s.afterConversationRead
	s.afterConversationRead = nil
	s.mu.Unlock()
	if hook != nil {
		hook(s)
	}
	if err != nil || len(all) == 0 {
		return nil, err
	}
	return all[0], nil
}

func (r *fakeConversationRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Conversation, error) {
	s := r.uow.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*entity.Conversation
	for _, c := range s.conversations {
		if c.IsDeleted || !conversationMatches(c, specs) {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}

	for _, spec := range specs {
		if _, ok := spec.(specification.PinnedFirst); ok {
			sort.SliceStable(out, func(i, j int) bool {
				if out[i].IsPinned != out[j].IsPinned {
					return out[i].IsPinned
				}
				return lastActive(out[i]).After(lastActive(out[j]))
			})
		}
	}
	return out, nil
}

func (r *fakeConversationRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	all, err := r.FindAll(ctx, specs...)
	return int64(len(all)), err
}

func conversationMatches(c *entity.Conversation, specs []specification.Specification) bool {
	for _, spec := range specs {
		switch sp := spec.(type) {
		case specification.ByID:
			if c.Id != sp.ID {
				return false
			}
		case specification.UserOwnedBy:
			if c.UserId != sp.UserID {
				return false
			}
		}
	}
	return true
}

func lastActive(c *entity.Conversation) time.Time {
	if c.UpdatedAt != nil {
		return *c.UpdatedAt
	}
	return c.CreatedAt
}

type fakeMessageRepo struct {
	uow *fakeUnitOfWork
}

func (r *fakeMessageRepo) Create(ctx context.Context, m *entity.Message) error {
	s := r.uow.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failMessageCreate != nil && m.Role != "user" {
		return s.failMessageCreate
	}
	cp := *m
	s.messages = append(s.messages, &cp)
	r.uow.remember(func() {
		for i, existing := range s.messages {
			if existing.Id == m.Id {
				s.messages = append(s.messages[:i], s.messages[i+1:]...)
				return
			}
		}
	})
	return nil
}

func (r *fakeMessageRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Message, error) {
	s := r.uow.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*entity.Message
	for _, m := range s.messages {
		if !messageMatches(m, specs) {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}

	for _, spec := range specs {
		if order, ok := spec.(specification.OrderBy); ok && order.Field == "created_at" {
			sort.SliceStable(out, func(i, j int) bool {
				if order.Desc {
					return out[i].CreatedAt.After(out[j].CreatedAt)
				}
				return out[i].CreatedAt.Before(out[j].CreatedAt)
			})
		}
	}
	return out, nil
}

func (r *fakeMessageRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	all, err := r.FindAll(ctx, specs...)
	return int64(len(all)), err
}

func (r *fakeMessageRepo) SumTotals(ctx context.Context, conversationId uuid.UUID) (*entity.ConversationTotals, error) {
	s := r.uow.store
	s.mu.Lock()
	defer s.mu.Unlock()

	totals := &entity.ConversationTotals{TotalCost: decimal.Zero}
	var timed int64
	var timedSum int64
	for _, m := range s.messages {
		if m.ConversationId != conversationId {
			continue
		}
		totals.MessageCount++
		totals.TotalTokens += m.TotalTokens
		totals.TotalCost = totals.TotalCost.Add(m.Cost)
		if m.ProcessingTime != nil {
			timed++
			timedSum += *m.ProcessingTime
		}
	}
	if timed > 0 {
		totals.AvgProcessingTime = float64(timedSum) / float64(timed)
	}
	return totals, nil
}

func messageMatches(m *entity.Message, specs []specification.Specification) bool {
	for _, spec := range specs {
		switch sp := spec.(type) {
		case specification.ByConversationID:
			if m.ConversationId != sp.ConversationID {
				return false
			}
		case specification.ByMessageType:
			if m.Type != sp.Type {
				return false
			}
		}
	}
	return true
}

func ptrTime(t time.Time) *time.Time {
	return &t
}
