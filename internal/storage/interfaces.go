// Package storage provides composable storage interfaces for the Converse
// system.
//
// The storage layer is designed with small, focused interfaces that can be
// implemented independently and composed as needed. The Store interface
// bundles them for callers that need the full persistence surface; tests
// and the memory subsystem depend only on the slice they use.
package storage

import (
	"context"

	"github.com/scrypster/converse/pkg/types"
)

// MemoryStore persists per-user conversation-summary records.
// This is the persistence contract consumed by the memory subsystem.
type MemoryStore interface {
	// FetchCandidates returns up to limit records owned by userID, ordered
	// by last_accessed descending. It must never return another user's
	// records.
	FetchCandidates(ctx context.Context, userID string, limit int) ([]*types.ConversationMemory, error)

	// UpsertMemory creates or replaces a summary record by ID. On replace,
	// summary and key topics are overwritten wholesale and created_at is
	// preserved from the existing row.
	UpsertMemory(ctx context.Context, memory *types.ConversationMemory) error

	// TouchAccessed updates last_accessed to now for the given record ID.
	TouchAccessed(ctx context.Context, id string) error
}

// ConversationStore persists conversation metadata.
type ConversationStore interface {
	// CreateConversation inserts a new conversation.
	CreateConversation(ctx context.Context, conv *types.Conversation) error

	// GetConversation retrieves a conversation by ID.
	// Returns ErrNotFound if it doesn't exist.
	GetConversation(ctx context.Context, id string) (*types.Conversation, error)

	// UpdateConversation updates title and message count, refreshing
	// updated_at. An empty title leaves the stored title unchanged.
	UpdateConversation(ctx context.Context, id string, title string, messageCount int) error

	// ListConversations returns a user's conversations, most recently
	// updated first.
	ListConversations(ctx context.Context, userID string) ([]*types.Conversation, error)
}

// MessageStore persists individual conversation turns.
type MessageStore interface {
	// SaveMessage inserts a message.
	SaveMessage(ctx context.Context, msg *types.Message) error

	// GetConversationMessages returns all messages for a conversation,
	// oldest first.
	GetConversationMessages(ctx context.Context, conversationID string) ([]*types.Message, error)
}

// UsageStore persists per-call usage accounting records.
type UsageStore interface {
	// SaveUsageRecord inserts a usage record.
	SaveUsageRecord(ctx context.Context, rec *types.UsageRecord) error

	// ListUsageRecords returns a user's most recent usage records,
	// newest first, bounded by limit.
	ListUsageRecords(ctx context.Context, userID string, limit int) ([]*types.UsageRecord, error)
}

// Store is the full persistence surface used by the request path.
type Store interface {
	MemoryStore
	ConversationStore
	MessageStore
	UsageStore

	// Close releases any resources held by the store.
	Close() error
}
