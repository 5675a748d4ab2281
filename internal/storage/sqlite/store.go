// Package sqlite provides a SQLite implementation of the storage interfaces.
// It is the default engine: a single-file database with WAL mode enabled.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/scrypster/converse/internal/storage"
	"github.com/scrypster/converse/pkg/types"
)

// Store implements storage.Store using SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database, configures WAL mode, and applies the
// schema. The dsn is a file path or ":memory:".
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}

	// SQLite only supports one concurrent writer. Using a single open
	// connection serialises writes and avoids SQLITE_BUSY errors under
	// concurrent load. WAL mode lets readers proceed without blocking the
	// writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to set busy timeout: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// GetDB exposes the underlying connection for setup tooling.
func (s *Store) GetDB() *sql.DB {
	return s.db
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// FetchCandidates returns up to limit of the user's memory records, most
// recently accessed first.
func (s *Store) FetchCandidates(ctx context.Context, userID string, limit int) ([]*types.ConversationMemory, error) {
	if userID == "" {
		return nil, storage.ErrInvalidInput
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, conversation_id, summary, key_topics, importance, created_at, last_accessed
		FROM conversation_memories
		WHERE user_id = ?
		ORDER BY last_accessed DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query memories: %w", err)
	}
	defer rows.Close()

	var out []*types.ConversationMemory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: failed to iterate memories: %w", err)
	}
	return out, nil
}

// UpsertMemory creates or replaces a memory record. On conflict the summary,
// topics, importance, and last_accessed are overwritten wholesale while
// created_at keeps its original value.
func (s *Store) UpsertMemory(ctx context.Context, memory *types.ConversationMemory) error {
	if memory == nil || memory.ID == "" || memory.UserID == "" {
		return storage.ErrInvalidInput
	}

	topicsJSON, err := json.Marshal(memory.KeyTopics)
	if err != nil {
		return fmt.Errorf("sqlite: failed to marshal key topics: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversation_memories
			(id, user_id, conversation_id, summary, key_topics, importance, created_at, last_accessed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			summary       = excluded.summary,
			key_topics    = excluded.key_topics,
			importance    = excluded.importance,
			last_accessed = excluded.last_accessed`,
		memory.ID, memory.UserID, memory.ConversationID, memory.Summary,
		string(topicsJSON), memory.Importance, memory.CreatedAt, memory.LastAccessed)
	if err != nil {
		return fmt.Errorf("sqlite: failed to upsert memory: %w", err)
	}
	return nil
}

// TouchAccessed updates last_accessed to now for the given record.
func (s *Store) TouchAccessed(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversation_memories SET last_accessed = ? WHERE id = ?`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("sqlite: failed to touch memory: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: failed to check touch result: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// CreateConversation inserts a new conversation.
func (s *Store) CreateConversation(ctx context.Context, conv *types.Conversation) error {
	if conv == nil || conv.ID == "" || conv.UserID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, user_id, title, message_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		conv.ID, conv.UserID, conv.Title, conv.MessageCount, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: failed to create conversation: %w", err)
	}
	return nil
}

// GetConversation retrieves a conversation by ID.
func (s *Store) GetConversation(ctx context.Context, id string) (*types.Conversation, error) {
	var c types.Conversation
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, message_count, created_at, updated_at
		FROM conversations WHERE id = ?`, id).
		Scan(&c.ID, &c.UserID, &c.Title, &c.MessageCount, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to get conversation: %w", err)
	}
	return &c, nil
}

// UpdateConversation updates title and message count, refreshing updated_at.
// An empty title leaves the stored title unchanged.
func (s *Store) UpdateConversation(ctx context.Context, id string, title string, messageCount int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET
			title         = CASE WHEN ? = '' THEN title ELSE ? END,
			message_count = ?,
			updated_at    = ?
		WHERE id = ?`,
		title, title, messageCount, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("sqlite: failed to update conversation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: failed to check update result: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListConversations returns a user's conversations, most recently updated
// first.
func (s *Store) ListConversations(ctx context.Context, userID string) ([]*types.Conversation, error) {
	if userID == "" {
		return nil, storage.ErrInvalidInput
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, message_count, created_at, updated_at
		FROM conversations
		WHERE user_id = ?
		ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list conversations: %w", err)
	}
	defer rows.Close()

	var out []*types.Conversation
	for rows.Next() {
		var c types.Conversation
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.MessageCount, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan conversation: %w", err)
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: failed to iterate conversations: %w", err)
	}
	return out, nil
}

// SaveMessage inserts a message.
func (s *Store) SaveMessage(ctx context.Context, msg *types.Message) error {
	if msg == nil || msg.ID == "" || msg.ConversationID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, user_id, role, content, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, msg.UserID, msg.Role, msg.Content, msg.Timestamp)
	if err != nil {
		return fmt.Errorf("sqlite: failed to save message: %w", err)
	}
	return nil
}

// GetConversationMessages returns a conversation's messages, oldest first.
func (s *Store) GetConversationMessages(ctx context.Context, conversationID string) ([]*types.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, user_id, role, content, timestamp
		FROM messages
		WHERE conversation_id = ?
		ORDER BY timestamp ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query messages: %w", err)
	}
	defer rows.Close()

	var out []*types.Message
	for rows.Next() {
		var m types.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.UserID, &m.Role, &m.Content, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan message: %w", err)
		}
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: failed to iterate messages: %w", err)
	}
	return out, nil
}

// SaveUsageRecord inserts a usage record.
func (s *Store) SaveUsageRecord(ctx context.Context, rec *types.UsageRecord) error {
	if rec == nil || rec.ID == "" || rec.UserID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage_records
			(id, user_id, conversation_id, message_id, model, prompt_tokens, completion_tokens, total_tokens, cost, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.ConversationID, rec.MessageID, rec.Model,
		rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens, rec.Cost, rec.Timestamp)
	if err != nil {
		return fmt.Errorf("sqlite: failed to save usage record: %w", err)
	}
	return nil
}

// ListUsageRecords returns a user's most recent usage records, newest first.
func (s *Store) ListUsageRecords(ctx context.Context, userID string, limit int) ([]*types.UsageRecord, error) {
	if userID == "" {
		return nil, storage.ErrInvalidInput
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, conversation_id, message_id, model, prompt_tokens, completion_tokens, total_tokens, cost, timestamp
		FROM usage_records
		WHERE user_id = ?
		ORDER BY timestamp DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query usage records: %w", err)
	}
	defer rows.Close()

	var out []*types.UsageRecord
	for rows.Next() {
		var r types.UsageRecord
		if err := rows.Scan(&r.ID, &r.UserID, &r.ConversationID, &r.MessageID, &r.Model,
			&r.PromptTokens, &r.CompletionTokens, &r.TotalTokens, &r.Cost, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan usage record: %w", err)
		}
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: failed to iterate usage records: %w", err)
	}
	return out, nil
}

// scanMemory reads one conversation_memories row.
func scanMemory(rows *sql.Rows) (*types.ConversationMemory, error) {
	var m types.ConversationMemory
	var topicsJSON string
	if err := rows.Scan(&m.ID, &m.UserID, &m.ConversationID, &m.Summary,
		&topicsJSON, &m.Importance, &m.CreatedAt, &m.LastAccessed); err != nil {
		return nil, fmt.Errorf("sqlite: failed to scan memory: %w", err)
	}
	if err := json.Unmarshal([]byte(topicsJSON), &m.KeyTopics); err != nil {
		return nil, fmt.Errorf("sqlite: failed to unmarshal key topics: %w", err)
	}
	return &m, nil
}

// Compile-time assertion.
var _ storage.Store = (*Store)(nil)
