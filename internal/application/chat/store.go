package chat

import (
	"fmt"
	"sync"

	"github.com/coursebot/backend/internal/domain/conversation"
)

// identityEntry 单个身份的全部对话，由自身的锁保护
type identityEntry struct {
	mu    sync.Mutex
	convs map[string]*conversation.Conversation
	order []string
}

// ConversationStore 进程内对话存储
// 只有内存操作持有身份锁，网络调用在锁外基于快照进行
type ConversationStore struct {
	mu      sync.Mutex
	entries map[string]*identityEntry
}

// NewConversationStore 创建对话存储
func NewConversationStore() *ConversationStore {
	return &ConversationStore{entries: make(map[string]*identityEntry)}
}

func (s *ConversationStore) entry(identity string) *identityEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[identity]
	if !ok {
		e = &identityEntry{convs: make(map[string]*conversation.Conversation)}
		s.entries[identity] = e
	}
	return e
}

// Ensure 返回已有对话的快照，不存在时用 create 创建
func (s *ConversationStore) Ensure(identity, id string, create func() *conversation.Conversation) (snapshot *conversation.Conversation, created bool) {
	e := s.entry(identity)
	e.mu.Lock()
	defer e.mu.Unlock()

	if c, ok := e.convs[id]; ok && id != "" {
		return c.Clone(), false
	}
	c := create()
	e.convs[c.ID] = c
	e.order = append(e.order, c.ID)
	return c.Clone(), true
}

// Find 不创建，仅查找
func (s *ConversationStore) Find(identity, id string) (*conversation.Conversation, bool) {
	e := s.entry(identity)
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.convs[id]
	if !ok {
		return nil, false
	}
	return c.Clone(), true
}

// Update 在身份锁内修改对话，返回修改后的快照
func (s *ConversationStore) Update(identity, id string, fn func(c *conversation.Conversation) error) (*conversation.Conversation, error) {
	e := s.entry(identity)
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.convs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", conversation.ErrConversationNotFound, id)
	}
	if err := fn(c); err != nil {
		return nil, err
	}
	return c.Clone(), nil
}

// Get 返回对话快照
func (s *ConversationStore) Get(identity, id string) (*conversation.Conversation, error) {
	c, ok := s.Find(identity, id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", conversation.ErrConversationNotFound, id)
	}
	return c, nil
}

// List 按创建顺序返回身份的全部对话快照
func (s *ConversationStore) List(identity string) []*conversation.Conversation {
	e := s.entry(identity)
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*conversation.Conversation, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.convs[id].Clone())
	}
	return out
}
