// Package memory implements the context-assembly subsystem: given a user, a
// new message, and the active conversation's transcript, it decides which
// contextual information (recent turns, a rolling summary, and
// keyword-retrieved past-conversation summaries) to inject into the model
// prompt, degrading gracefully when the summarization dependency is
// rate-limited or unavailable.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/scrypster/converse/internal/llm"
	"github.com/scrypster/converse/internal/storage"
	"github.com/scrypster/converse/pkg/types"
)

// ErrEmptyUserID is returned when a caller passes an empty user ID.
// Silently scoping retrieval to "no user" would hide the caller's bug.
var ErrEmptyUserID = errors.New("memory: user id is required")

// ErrNoMessages is returned by CreateSummary for an empty transcript.
var ErrNoMessages = errors.New("memory: at least one message is required")

// Options tunes the context builder. Zero values take defaults.
type Options struct {
	// RollingSummaryMinMessages is the transcript length from which
	// BuildContext attempts a rolling summary (default 5).
	RollingSummaryMinMessages int

	// RelevantMemoryLimit is how many stored memories BuildContext returns
	// (default 3).
	RelevantMemoryLimit int

	// CandidateFetchLimit bounds the store read to the most recently
	// accessed N records (default 20).
	CandidateFetchLimit int
}

func (o *Options) applyDefaults() {
	if o.RollingSummaryMinMessages <= 0 {
		o.RollingSummaryMinMessages = 5
	}
	if o.RelevantMemoryLimit <= 0 {
		o.RelevantMemoryLimit = 3
	}
	if o.CandidateFetchLimit <= 0 {
		o.CandidateFetchLimit = 20
	}
}

// Service produces MemoryContext bundles and persisted conversation
// summaries. Dependencies are injected explicitly: the store, the optional
// summarizer (nil means unconfigured), and the shared quota breaker.
type Service struct {
	store      storage.MemoryStore
	summarizer llm.TextGenerator
	breaker    *QuotaBreaker
	opts       Options
	now        func() time.Time
}

// NewService creates a memory service. summarizer may be nil, in which case
// every summary comes from the deterministic fallback generator. breaker may
// be nil, in which case a default one is created.
func NewService(store storage.MemoryStore, summarizer llm.TextGenerator, breaker *QuotaBreaker, opts Options) *Service {
	if breaker == nil {
		breaker = NewQuotaBreaker()
	}
	opts.applyDefaults()
	return &Service{
		store:      store,
		summarizer: summarizer,
		breaker:    breaker,
		opts:       opts,
		now:        time.Now,
	}
}

// SummarizerConfigured reports whether a model-backed summarizer is wired in.
func (s *Service) SummarizerConfigured() bool {
	return s.summarizer != nil
}

// BreakerState exposes the quota breaker state for stats and logging.
func (s *Service) BreakerState() string {
	return s.breaker.State()
}

// BuildContext produces the context bundle for one user turn.
//
// The only possible error is ErrEmptyUserID. Every internal failure
// (store reads, summarizer quota exhaustion, persistence of the best-effort
// snapshot) degrades to empty or partial fields so the caller's prompt
// construction can proceed unconditionally.
func (s *Service) BuildContext(ctx context.Context, userID, currentMessage string, recent []types.ChatTurn) (*types.MemoryContext, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}

	relevant := s.relevantMemories(ctx, userID, currentMessage)

	conversationSummary := ""
	if len(recent) >= s.opts.RollingSummaryMinMessages {
		conversationSummary = s.rollingSummary(ctx, userID, recent)
	}

	summaries := make([]string, 0, len(relevant))
	for _, m := range relevant {
		summaries = append(summaries, m.Summary)
	}

	return &types.MemoryContext{
		RecentMessages:      types.RenderTranscript(recent),
		ConversationSummary: conversationSummary,
		RelevantMemories:    summaries,
		UserContext:         types.RenderUserContext(summaries),
	}, nil
}

// relevantMemories fetches the user's candidate records, ranks them against
// the current message, and touches last_accessed on the kept ones. A store
// read failure degrades to an empty result; a touch failure on one record
// does not abort the others.
func (s *Service) relevantMemories(ctx context.Context, userID, currentMessage string) []*types.ConversationMemory {
	candidates, err := s.store.FetchCandidates(ctx, userID, s.opts.CandidateFetchLimit)
	if err != nil {
		log.Printf("memory: failed to fetch candidates for user %s: %v", userID, err)
		return nil
	}
	if len(candidates) == 0 {
		return nil
	}

	scores := make(map[string]float64, len(candidates))
	for _, m := range candidates {
		scores[m.ID] = RelevanceScore(currentMessage, m)
	}

	// Stable sort keeps store order (last_accessed desc) for equal scores.
	ranked := make([]*types.ConversationMemory, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return scores[ranked[i].ID] > scores[ranked[j].ID]
	})

	if len(ranked) > s.opts.RelevantMemoryLimit {
		ranked = ranked[:s.opts.RelevantMemoryLimit]
	}

	for _, m := range ranked {
		if err := s.store.TouchAccessed(ctx, m.ID); err != nil {
			log.Printf("memory: failed to touch memory %s: %v", m.ID, err)
		}
	}

	return ranked
}

// rollingSummary makes the best-effort per-turn summary. It never falls back
// to the offline generator: a degraded rolling summary is worth less than no
// rolling summary, since the relevant-memory section already carries the
// lexical signal. Quota failures feed the breaker; everything else is logged.
func (s *Service) rollingSummary(ctx context.Context, userID string, recent []types.ChatTurn) string {
	if s.summarizer == nil || !s.breaker.Allow() {
		return ""
	}

	summary, err := s.summarizer.Complete(ctx, llm.SummarizationPrompt(recent))
	if err != nil {
		if llm.IsQuotaError(err) {
			s.breaker.RecordFailure(llm.KindOf(err))
		}
		log.Printf("memory: rolling summary failed for user %s: %v", userID, err)
		return ""
	}

	// Persist a best-effort snapshot under a synthetic conversation
	// identity; this call path is not tied to the real conversation id.
	snapshotID := fmt.Sprintf("temp_%d", s.now().UnixMilli())
	record := &types.ConversationMemory{
		ID:             types.SummaryID(snapshotID),
		UserID:         userID,
		ConversationID: snapshotID,
		Summary:        summary,
		KeyTopics:      nil,
		Importance:     importanceFor(len(recent)),
		CreatedAt:      s.now(),
		LastAccessed:   s.now(),
	}
	if err := s.store.UpsertMemory(ctx, record); err != nil {
		log.Printf("memory: failed to persist rolling summary snapshot: %v", err)
	}

	return summary
}

// CreateSummary computes and persists the summary record for a conversation.
//
// When the summarizer is unconfigured, the breaker is open, or the model
// call fails, the deterministic fallback generator supplies the summary and
// topics; the record is always written. The only failure that propagates is
// the persistence write itself, since silently dropping the write has no
// safe fallback.
func (s *Service) CreateSummary(ctx context.Context, userID, conversationID string, messages []types.ChatTurn) (*types.ConversationMemory, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}
	if conversationID == "" {
		return nil, fmt.Errorf("memory: conversation id is required")
	}
	if len(messages) == 0 {
		return nil, ErrNoMessages
	}

	summary, topics := s.summarize(ctx, messages)

	record := &types.ConversationMemory{
		ID:             types.SummaryID(conversationID),
		UserID:         userID,
		ConversationID: conversationID,
		Summary:        summary,
		KeyTopics:      topics,
		Importance:     importanceFor(len(messages)),
		CreatedAt:      s.now(),
		LastAccessed:   s.now(),
	}

	if err := s.store.UpsertMemory(ctx, record); err != nil {
		return nil, fmt.Errorf("memory: failed to persist summary for conversation %s: %w", conversationID, err)
	}

	return record, nil
}

// summarize produces (summary, topics) via the model when possible, or the
// offline fallback otherwise.
func (s *Service) summarize(ctx context.Context, messages []types.ChatTurn) (string, []string) {
	if s.summarizer == nil || !s.breaker.Allow() {
		fb := FallbackSummarize(messages)
		return fb.Summary, fb.KeyTopics
	}

	summary, err := s.summarizer.Complete(ctx, llm.SummarizationPrompt(messages))
	if err != nil {
		return s.summarizeFallback(messages, err)
	}

	topicsResp, err := s.summarizer.Complete(ctx, llm.TopicExtractionPrompt(summary))
	if err != nil {
		return s.summarizeFallback(messages, err)
	}

	return summary, llm.ParseTopics(topicsResp)
}

// summarizeFallback records quota failures and returns the offline result.
func (s *Service) summarizeFallback(messages []types.ChatTurn, cause error) (string, []string) {
	if llm.IsQuotaError(cause) {
		s.breaker.RecordFailure(llm.KindOf(cause))
	}
	log.Printf("memory: summarizer unavailable, using fallback: %v", cause)
	fb := FallbackSummarize(messages)
	return fb.Summary, fb.KeyTopics
}

// importanceFor maps a transcript length to an importance weight,
// saturating at 1.0 for conversations of 10 or more messages.
func importanceFor(messageCount int) float64 {
	imp := float64(messageCount) / 10
	if imp > 1 {
		return 1
	}
	return imp
}
