package memory

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/converse/internal/llm"
	"github.com/scrypster/converse/pkg/types"
)

// stubStore is a controllable MemoryStore double.
type stubStore struct {
	candidates []*types.ConversationMemory
	fetchErr   error
	upsertErr  error
	touchErr   error

	upserted []*types.ConversationMemory
	touched  []string
}

func (s *stubStore) FetchCandidates(ctx context.Context, userID string, limit int) ([]*types.ConversationMemory, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	if len(s.candidates) > limit {
		return s.candidates[:limit], nil
	}
	return s.candidates, nil
}

func (s *stubStore) UpsertMemory(ctx context.Context, memory *types.ConversationMemory) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.upserted = append(s.upserted, memory)
	return nil
}

func (s *stubStore) TouchAccessed(ctx context.Context, id string) error {
	if s.touchErr != nil {
		return s.touchErr
	}
	s.touched = append(s.touched, id)
	return nil
}

// stubSummarizer is a scriptable TextGenerator double.
type stubSummarizer struct {
	reply string
	err   error
	calls int
}

func (s *stubSummarizer) Complete(ctx context.Context, prompt string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func (s *stubSummarizer) GetModel() string {
	return "stub-model"
}

func quotaErr() error {
	return &llm.APIError{Kind: llm.KindQuotaExceeded, Provider: "openai", StatusCode: 429, Message: "insufficient_quota"}
}

func memRecord(id, userID, summary string, topics []string, importance float64) *types.ConversationMemory {
	return &types.ConversationMemory{
		ID:             id,
		UserID:         userID,
		ConversationID: strings.TrimSuffix(id, types.SummaryIDSuffix),
		Summary:        summary,
		KeyTopics:      topics,
		Importance:     importance,
		CreatedAt:      time.Now(),
		LastAccessed:   time.Now(),
	}
}

func longTranscript(n int) []types.ChatTurn {
	turns := make([]types.ChatTurn, 0, n)
	for i := 0; i < n; i++ {
		role := types.RoleUser
		if i%2 == 1 {
			role = types.RoleAssistant
		}
		turns = append(turns, types.ChatTurn{Role: role, Content: "message about travel plans"})
	}
	return turns
}

func TestBuildContextRequiresUserID(t *testing.T) {
	svc := NewService(&stubStore{}, nil, nil, Options{})

	_, err := svc.BuildContext(context.Background(), "", "hello", nil)
	assert.ErrorIs(t, err, ErrEmptyUserID)
}

func TestBuildContextDegradesOnStoreFailure(t *testing.T) {
	store := &stubStore{fetchErr: errors.New("disk on fire")}
	svc := NewService(store, nil, nil, Options{})

	mc, err := svc.BuildContext(context.Background(), "u1", "hello", nil)
	require.NoError(t, err)
	assert.Empty(t, mc.RelevantMemories)
	assert.Empty(t, mc.UserContext)
	assert.Empty(t, mc.ConversationSummary)
}

func TestBuildContextWithNilSummarizer(t *testing.T) {
	svc := NewService(&stubStore{}, nil, nil, Options{})

	mc, err := svc.BuildContext(context.Background(), "u1", "hello", longTranscript(10))
	require.NoError(t, err)
	assert.Empty(t, mc.ConversationSummary)
	assert.Len(t, mc.RecentMessages, 10)
}

func TestBuildContextSkipsRollingSummaryBelowThreshold(t *testing.T) {
	sum := &stubSummarizer{reply: "a summary"}
	svc := NewService(&stubStore{}, sum, nil, Options{})

	mc, err := svc.BuildContext(context.Background(), "u1", "hello", longTranscript(4))
	require.NoError(t, err)
	assert.Empty(t, mc.ConversationSummary)
	assert.Zero(t, sum.calls, "summarizer must not be called under the threshold")
}

func TestBuildContextRollingSummaryAtThreshold(t *testing.T) {
	store := &stubStore{}
	sum := &stubSummarizer{reply: "they are planning travel"}
	svc := NewService(store, sum, nil, Options{})

	mc, err := svc.BuildContext(context.Background(), "u1", "hello", longTranscript(5))
	require.NoError(t, err)
	assert.Equal(t, "they are planning travel", mc.ConversationSummary)

	// A best-effort snapshot is persisted under a synthetic identity.
	require.Len(t, store.upserted, 1)
	snap := store.upserted[0]
	assert.True(t, strings.HasPrefix(snap.ID, "temp_"))
	assert.True(t, strings.HasSuffix(snap.ID, types.SummaryIDSuffix))
	assert.Equal(t, "u1", snap.UserID)
}

func TestBuildContextRollingSummarySnapshotWriteFailureIsSwallowed(t *testing.T) {
	store := &stubStore{upsertErr: errors.New("readonly database")}
	sum := &stubSummarizer{reply: "summary text"}
	svc := NewService(store, sum, nil, Options{})

	mc, err := svc.BuildContext(context.Background(), "u1", "hello", longTranscript(6))
	require.NoError(t, err)
	assert.Equal(t, "summary text", mc.ConversationSummary)
}

func TestBuildContextQuotaFailureDegradesToEmptySummary(t *testing.T) {
	sum := &stubSummarizer{err: quotaErr()}
	svc := NewService(&stubStore{}, sum, nil, Options{})

	mc, err := svc.BuildContext(context.Background(), "u1", "hello", longTranscript(8))
	require.NoError(t, err)
	// Quota failure in the rolling path never substitutes a fallback text.
	assert.Empty(t, mc.ConversationSummary)
}

func TestBuildContextBreakerOpensAfterRepeatedQuotaFailures(t *testing.T) {
	sum := &stubSummarizer{err: quotaErr()}
	breaker := NewQuotaBreaker()
	svc := NewService(&stubStore{}, sum, breaker, Options{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.BuildContext(ctx, "u1", "hello", longTranscript(8))
		require.NoError(t, err)
	}
	assert.Equal(t, "open", svc.BreakerState())

	callsBefore := sum.calls
	_, err := svc.BuildContext(ctx, "u1", "hello", longTranscript(8))
	require.NoError(t, err)
	assert.Equal(t, callsBefore, sum.calls, "open breaker must short-circuit the summarizer")
}

func TestBuildContextRanksMemoriesByRelevance(t *testing.T) {
	store := &stubStore{candidates: []*types.ConversationMemory{
		memRecord("garden_summary", "u1", "gardening tips for tomato plants", []string{"gardening"}, 1.0),
		memRecord("japan_summary", "u1", "planning a trip to japan with flights and hotels", []string{"japan", "travel"}, 1.0),
		memRecord("budget_summary", "u1", "monthly budget review", []string{"budget"}, 1.0),
	}}
	svc := NewService(store, nil, nil, Options{})

	mc, err := svc.BuildContext(context.Background(), "u1", "trip planning to japan", nil)
	require.NoError(t, err)
	require.NotEmpty(t, mc.RelevantMemories)
	assert.Equal(t, "planning a trip to japan with flights and hotels", mc.RelevantMemories[0])
	assert.Contains(t, mc.UserContext, "Previous conversation: planning a trip to japan")
}

func TestBuildContextLimitsRelevantMemories(t *testing.T) {
	store := &stubStore{candidates: []*types.ConversationMemory{
		memRecord("a_summary", "u1", "travel one", nil, 1.0),
		memRecord("b_summary", "u1", "travel two", nil, 1.0),
		memRecord("c_summary", "u1", "travel three", nil, 1.0),
		memRecord("d_summary", "u1", "travel four", nil, 1.0),
	}}
	svc := NewService(store, nil, nil, Options{RelevantMemoryLimit: 3})

	mc, err := svc.BuildContext(context.Background(), "u1", "travel", nil)
	require.NoError(t, err)
	assert.Len(t, mc.RelevantMemories, 3)
	assert.Len(t, store.touched, 3, "only kept records have last_accessed bumped")
}

func TestBuildContextEqualScoresKeepStoreOrder(t *testing.T) {
	store := &stubStore{candidates: []*types.ConversationMemory{
		memRecord("first_summary", "u1", "shared topic words", nil, 0.5),
		memRecord("second_summary", "u1", "shared topic words", nil, 0.5),
	}}
	svc := NewService(store, nil, nil, Options{})

	mc, err := svc.BuildContext(context.Background(), "u1", "topic", nil)
	require.NoError(t, err)
	require.Len(t, mc.RelevantMemories, 2)
	assert.Equal(t, []string{"first_summary", "second_summary"}, store.touched)
}

func TestBuildContextTouchFailureDoesNotAbort(t *testing.T) {
	store := &stubStore{
		candidates: []*types.ConversationMemory{
			memRecord("a_summary", "u1", "travel notes", nil, 1.0),
		},
		touchErr: errors.New("locked"),
	}
	svc := NewService(store, nil, nil, Options{})

	mc, err := svc.BuildContext(context.Background(), "u1", "travel", nil)
	require.NoError(t, err)
	assert.Len(t, mc.RelevantMemories, 1)
}

func TestCreateSummaryValidatesInput(t *testing.T) {
	svc := NewService(&stubStore{}, nil, nil, Options{})
	ctx := context.Background()
	msgs := longTranscript(3)

	_, err := svc.CreateSummary(ctx, "", "c1", msgs)
	assert.ErrorIs(t, err, ErrEmptyUserID)

	_, err = svc.CreateSummary(ctx, "u1", "", msgs)
	assert.Error(t, err)

	_, err = svc.CreateSummary(ctx, "u1", "c1", nil)
	assert.ErrorIs(t, err, ErrNoMessages)
}

func TestCreateSummaryModelPath(t *testing.T) {
	store := &stubStore{}
	sum := &stubSummarizer{reply: "travel, flights, hotels"}
	svc := NewService(store, sum, nil, Options{})

	rec, err := svc.CreateSummary(context.Background(), "u1", "conv42", longTranscript(6))
	require.NoError(t, err)

	assert.Equal(t, "conv42_summary", rec.ID)
	assert.Equal(t, "conv42", rec.ConversationID)
	assert.Equal(t, "travel, flights, hotels", rec.Summary)
	assert.Equal(t, []string{"travel", "flights", "hotels"}, rec.KeyTopics)
	assert.Equal(t, 2, sum.calls, "one summary call plus one topic extraction call")
	require.Len(t, store.upserted, 1)
}

func TestCreateSummaryFallbackWithoutSummarizer(t *testing.T) {
	store := &stubStore{}
	svc := NewService(store, nil, nil, Options{})

	rec, err := svc.CreateSummary(context.Background(), "u1", "c1", longTranscript(4))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(rec.Summary, "Conversation about "), "got %q", rec.Summary)
	assert.NotEmpty(t, rec.KeyTopics)
}

func TestCreateSummaryFallbackOnQuotaFailureFeedsBreaker(t *testing.T) {
	store := &stubStore{}
	sum := &stubSummarizer{err: quotaErr()}
	breaker := NewQuotaBreaker()
	svc := NewService(store, sum, breaker, Options{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rec, err := svc.CreateSummary(ctx, "u1", "c1", longTranscript(4))
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(rec.Summary, "Conversation about "))
	}
	assert.Equal(t, "open", svc.BreakerState())

	// With the breaker open the summarizer is skipped entirely.
	callsBefore := sum.calls
	_, err := svc.CreateSummary(ctx, "u1", "c1", longTranscript(4))
	require.NoError(t, err)
	assert.Equal(t, callsBefore, sum.calls)
}

func TestCreateSummaryImportanceSaturates(t *testing.T) {
	store := &stubStore{}
	svc := NewService(store, nil, nil, Options{})
	ctx := context.Background()

	rec, err := svc.CreateSummary(ctx, "u1", "c1", longTranscript(4))
	require.NoError(t, err)
	assert.InDelta(t, 0.4, rec.Importance, 1e-9)

	rec, err = svc.CreateSummary(ctx, "u1", "c2", longTranscript(25))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, rec.Importance, 1e-9)
}

func TestCreateSummaryStoreFailurePropagates(t *testing.T) {
	store := &stubStore{upsertErr: errors.New("readonly database")}
	svc := NewService(store, nil, nil, Options{})

	_, err := svc.CreateSummary(context.Background(), "u1", "c1", longTranscript(4))
	assert.Error(t, err)
}

func TestCreateSummaryOverwritesSameConversation(t *testing.T) {
	store := &stubStore{}
	svc := NewService(store, nil, nil, Options{})
	ctx := context.Background()

	first, err := svc.CreateSummary(ctx, "u1", "c1", longTranscript(4))
	require.NoError(t, err)
	second, err := svc.CreateSummary(ctx, "u1", "c1", longTranscript(8))
	require.NoError(t, err)

	// Deterministic ID means the second write replaces the first.
	assert.Equal(t, first.ID, second.ID)
	require.Len(t, store.upserted, 2)
	assert.Equal(t, store.upserted[0].ID, store.upserted[1].ID)
}
