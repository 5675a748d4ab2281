// Package chat orchestrates a single conversational turn: persisting the
// user's message, assembling the model prompt from memory context, calling
// the model, and recording the assistant reply with usage accounting.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scrypster/converse/internal/llm"
	"github.com/scrypster/converse/internal/memory"
	"github.com/scrypster/converse/internal/storage"
	"github.com/scrypster/converse/pkg/types"
)

// Validation errors returned before any state is written.
var (
	ErrEmptyMessage = errors.New("chat: message is required")
	ErrEmptyUserID  = errors.New("chat: user id is required")
)

// ErrModelUnavailable is returned when no text generator is configured.
var ErrModelUnavailable = errors.New("chat: no model configured")

// titleMaxLen bounds the auto-generated conversation title.
const titleMaxLen = 50

// Options tunes the orchestration thresholds.
type Options struct {
	// PersistedSummaryMinMessages is the message count from which a durable
	// conversation summary is written after each turn. Defaults to 8.
	PersistedSummaryMinMessages int
}

func (o *Options) applyDefaults() {
	if o.PersistedSummaryMinMessages <= 0 {
		o.PersistedSummaryMinMessages = 8
	}
}

// Service runs the chat request path.
type Service struct {
	store  storage.Store
	memory *memory.Service
	model  llm.TextGenerator
	opts   Options

	now func() time.Time
}

// NewService creates a chat service. The model may be nil, in which case
// SendMessage returns ErrModelUnavailable.
func NewService(store storage.Store, mem *memory.Service, model llm.TextGenerator, opts Options) *Service {
	opts.applyDefaults()
	return &Service{
		store:  store,
		memory: mem,
		model:  model,
		opts:   opts,
		now:    time.Now,
	}
}

// Request is one inbound chat turn.
type Request struct {
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
}

// Response is the completed turn.
type Response struct {
	ConversationID string             `json:"conversation_id"`
	Message        *types.Message     `json:"message"`
	Usage          *types.UsageRecord `json:"usage"`
}

// SendMessage executes one full conversational turn.
//
// Memory failures degrade to a bare prompt and summary-persistence failures
// are logged only; the model call is the single step whose error fails the
// request.
func (s *Service) SendMessage(ctx context.Context, req *Request) (*Response, error) {
	if req == nil || strings.TrimSpace(req.Message) == "" {
		return nil, ErrEmptyMessage
	}
	if req.UserID == "" {
		return nil, ErrEmptyUserID
	}
	if s.model == nil {
		return nil, ErrModelUnavailable
	}

	conv, err := s.ensureConversation(ctx, req)
	if err != nil {
		return nil, err
	}

	userMsg := &types.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		UserID:         req.UserID,
		Role:           types.RoleUser,
		Content:        req.Message,
		Timestamp:      s.now(),
	}
	if err := s.store.SaveMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("chat: failed to save user message: %w", err)
	}

	turns := s.loadTurns(ctx, conv.ID)

	mc, err := s.memory.BuildContext(ctx, req.UserID, req.Message, turns)
	if err != nil {
		// Only invalid input reaches here; storage and summarizer failures
		// already degraded inside BuildContext.
		log.Printf("chat: memory context unavailable: %v", err)
		mc = &types.MemoryContext{RecentMessages: types.RenderTranscript(turns)}
	}

	prompt := llm.ChatPrompt(mc, req.Message)

	reply, err := s.model.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("chat: model call failed: %w", err)
	}

	assistantMsg := &types.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		UserID:         req.UserID,
		Role:           types.RoleAssistant,
		Content:        reply,
		Timestamp:      s.now(),
	}
	if err := s.store.SaveMessage(ctx, assistantMsg); err != nil {
		return nil, fmt.Errorf("chat: failed to save assistant message: %w", err)
	}

	usage := s.recordUsage(ctx, req.UserID, conv.ID, assistantMsg.ID, prompt, reply)

	messageCount := len(turns) + 1
	if err := s.store.UpdateConversation(ctx, conv.ID, "", messageCount); err != nil {
		log.Printf("chat: failed to update conversation %s: %v", conv.ID, err)
	}

	s.maybePersistSummary(ctx, req.UserID, conv.ID, append(turns, types.ChatTurn{
		Role:    types.RoleAssistant,
		Content: reply,
	}))

	return &Response{
		ConversationID: conv.ID,
		Message:        assistantMsg,
		Usage:          usage,
	}, nil
}

// ensureConversation resolves the target conversation, creating it with an
// auto-generated title when the request names none.
func (s *Service) ensureConversation(ctx context.Context, req *Request) (*types.Conversation, error) {
	if req.ConversationID != "" {
		conv, err := s.store.GetConversation(ctx, req.ConversationID)
		if err != nil {
			return nil, fmt.Errorf("chat: failed to load conversation: %w", err)
		}
		return conv, nil
	}

	now := s.now()
	conv := &types.Conversation{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		Title:     titleFrom(req.Message),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("chat: failed to create conversation: %w", err)
	}
	return conv, nil
}

// loadTurns fetches the stored transcript including the just-saved user
// message. A read failure degrades to an empty transcript.
func (s *Service) loadTurns(ctx context.Context, conversationID string) []types.ChatTurn {
	msgs, err := s.store.GetConversationMessages(ctx, conversationID)
	if err != nil {
		log.Printf("chat: failed to load transcript for %s: %v", conversationID, err)
		return nil
	}
	turns := make([]types.ChatTurn, 0, len(msgs))
	for _, m := range msgs {
		turns = append(turns, types.ChatTurn{Role: m.Role, Content: m.Content})
	}
	return turns
}

// recordUsage estimates tokens, prices the call, and persists the record.
// Accounting failures never fail the turn.
func (s *Service) recordUsage(ctx context.Context, userID, conversationID, messageID, prompt, reply string) *types.UsageRecord {
	promptTokens := llm.EstimateTokens(prompt)
	completionTokens := llm.EstimateTokens(reply)
	model := s.model.GetModel()

	rec := &types.UsageRecord{
		ID:               uuid.NewString(),
		UserID:           userID,
		ConversationID:   conversationID,
		MessageID:        messageID,
		Model:            model,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
		Cost:             llm.CalculateCost(promptTokens, completionTokens, model),
		Timestamp:        s.now(),
	}
	if err := s.store.SaveUsageRecord(ctx, rec); err != nil {
		log.Printf("chat: failed to save usage record: %v", err)
	}
	return rec
}

// maybePersistSummary writes the durable conversation summary once the
// transcript is long enough. Errors are logged and swallowed.
func (s *Service) maybePersistSummary(ctx context.Context, userID, conversationID string, turns []types.ChatTurn) {
	if len(turns) < s.opts.PersistedSummaryMinMessages {
		return
	}
	if _, err := s.memory.CreateSummary(ctx, userID, conversationID, turns); err != nil {
		log.Printf("chat: failed to persist summary for %s: %v", conversationID, err)
	}
}

// titleFrom derives a conversation title from the first message.
func titleFrom(message string) string {
	title := strings.TrimSpace(message)
	if len(title) > titleMaxLen {
		title = title[:titleMaxLen]
	}
	return title
}
