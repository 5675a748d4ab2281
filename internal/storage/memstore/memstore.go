// Package memstore provides an in-process implementation of the storage
// interfaces for local development and tests. It keeps everything in maps
// guarded by one RWMutex and returns deep-enough copies so callers cannot
// mutate stored state through returned pointers.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/scrypster/converse/internal/storage"
	"github.com/scrypster/converse/pkg/types"
)

// Store is an in-memory implementation of storage.Store.
type Store struct {
	mu            sync.RWMutex
	memories      map[string]*types.ConversationMemory
	conversations map[string]*types.Conversation
	messages      map[string][]*types.Message     // keyed by conversation ID
	usage         map[string][]*types.UsageRecord // keyed by user ID

	now func() time.Time
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		memories:      make(map[string]*types.ConversationMemory),
		conversations: make(map[string]*types.Conversation),
		messages:      make(map[string][]*types.Message),
		usage:         make(map[string][]*types.UsageRecord),
		now:           time.Now,
	}
}

// SetClock injects a clock for deterministic tests.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// FetchCandidates returns up to limit of the user's memories, most recently
// accessed first.
func (s *Store) FetchCandidates(_ context.Context, userID string, limit int) ([]*types.ConversationMemory, error) {
	if userID == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.ConversationMemory, 0)
	for _, m := range s.memories {
		if m.UserID == userID {
			out = append(out, copyMemory(m))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastAccessed.Equal(out[j].LastAccessed) {
			return out[i].LastAccessed.After(out[j].LastAccessed)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UpsertMemory creates or replaces a memory record, preserving created_at on
// replace.
func (s *Store) UpsertMemory(_ context.Context, memory *types.ConversationMemory) error {
	if memory == nil || memory.ID == "" || memory.UserID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := copyMemory(memory)
	if existing, ok := s.memories[memory.ID]; ok {
		stored.CreatedAt = existing.CreatedAt
	}
	s.memories[memory.ID] = stored
	return nil
}

// TouchAccessed updates last_accessed to now for the given record.
func (s *Store) TouchAccessed(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.memories[id]
	if !ok {
		return storage.ErrNotFound
	}
	m.LastAccessed = s.now()
	return nil
}

// CreateConversation inserts a new conversation.
func (s *Store) CreateConversation(_ context.Context, conv *types.Conversation) error {
	if conv == nil || conv.ID == "" || conv.UserID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := *conv
	s.conversations[conv.ID] = &c
	return nil
}

// GetConversation retrieves a conversation by ID.
func (s *Store) GetConversation(_ context.Context, id string) (*types.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.conversations[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := *c
	return &out, nil
}

// UpdateConversation updates title and message count, refreshing updated_at.
func (s *Store) UpdateConversation(_ context.Context, id string, title string, messageCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[id]
	if !ok {
		return storage.ErrNotFound
	}
	if title != "" {
		c.Title = title
	}
	c.MessageCount = messageCount
	c.UpdatedAt = s.now()
	return nil
}

// ListConversations returns a user's conversations, most recently updated
// first.
func (s *Store) ListConversations(_ context.Context, userID string) ([]*types.Conversation, error) {
	if userID == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.Conversation, 0)
	for _, c := range s.conversations {
		if c.UserID == userID {
			cc := *c
			out = append(out, &cc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// SaveMessage appends a message to its conversation.
func (s *Store) SaveMessage(_ context.Context, msg *types.Message) error {
	if msg == nil || msg.ID == "" || msg.ConversationID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m := *msg
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], &m)
	return nil
}

// GetConversationMessages returns a conversation's messages, oldest first.
func (s *Store) GetConversationMessages(_ context.Context, conversationID string) ([]*types.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[conversationID]
	out := make([]*types.Message, 0, len(msgs))
	for _, m := range msgs {
		mm := *m
		out = append(out, &mm)
	}
	return out, nil
}

// SaveUsageRecord appends a usage record for its user.
func (s *Store) SaveUsageRecord(_ context.Context, rec *types.UsageRecord) error {
	if rec == nil || rec.ID == "" || rec.UserID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r := *rec
	s.usage[rec.UserID] = append(s.usage[rec.UserID], &r)
	return nil
}

// ListUsageRecords returns a user's most recent usage records, newest first.
func (s *Store) ListUsageRecords(_ context.Context, userID string, limit int) ([]*types.UsageRecord, error) {
	if userID == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := s.usage[userID]
	out := make([]*types.UsageRecord, 0, len(recs))
	for _, r := range recs {
		rr := *r
		out = append(out, &rr)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error { return nil }

// copyMemory clones a record including its topic slice.
func copyMemory(m *types.ConversationMemory) *types.ConversationMemory {
	out := *m
	out.KeyTopics = append([]string(nil), m.KeyTopics...)
	return &out
}

// Compile-time assertion.
var _ storage.Store = (*Store)(nil)
