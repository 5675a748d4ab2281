package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/converse/internal/chat"
	"github.com/scrypster/converse/internal/config"
	"github.com/scrypster/converse/internal/llm"
	"github.com/scrypster/converse/internal/memory"
	"github.com/scrypster/converse/internal/storage/memstore"
	"github.com/scrypster/converse/web/handlers"
)

// fakeModel is a canned TextGenerator for handler tests.
type fakeModel struct {
	reply string
	err   error
}

func (m *fakeModel) Complete(ctx context.Context, prompt string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

func (m *fakeModel) GetModel() string { return "gpt-4o-mini" }

func newTestHandlers(store *memstore.Store, model llm.TextGenerator) *handlers.APIHandlers {
	cfg := &config.Config{}
	memSvc := memory.NewService(store, model, nil, memory.Options{})
	chatSvc := chat.NewService(store, memSvc, model, chat.Options{})
	return handlers.NewAPIHandlers(store, chatSvc, memSvc, model, cfg, nil)
}

func postChat(t *testing.T, h *handlers.APIHandlers, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/chat", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	h.HandleChat(w, req)
	return w
}

func TestHandleChatSuccess(t *testing.T) {
	h := newTestHandlers(memstore.New(), &fakeModel{reply: "Hi there!"})

	w := postChat(t, h, `{"user_id":"u1","message":"hello"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp chat.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ConversationID)
	assert.Equal(t, "Hi there!", resp.Message.Content)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, "gpt-4o-mini", resp.Usage.Model)
}

func TestHandleChatInvalidJSON(t *testing.T) {
	h := newTestHandlers(memstore.New(), &fakeModel{reply: "x"})

	w := postChat(t, h, `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleChatMissingFields(t *testing.T) {
	h := newTestHandlers(memstore.New(), &fakeModel{reply: "x"})

	assert.Equal(t, http.StatusBadRequest, postChat(t, h, `{"user_id":"u1"}`).Code)
	assert.Equal(t, http.StatusBadRequest, postChat(t, h, `{"message":"hi"}`).Code)
}

func TestHandleChatQuotaMapsTo429(t *testing.T) {
	h := newTestHandlers(memstore.New(), &fakeModel{
		err: &llm.APIError{Kind: llm.KindQuotaExceeded, Provider: "openai", StatusCode: 429},
	})

	w := postChat(t, h, `{"user_id":"u1","message":"hello"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "quota")
}

func TestHandleChatRateLimitMapsTo429(t *testing.T) {
	h := newTestHandlers(memstore.New(), &fakeModel{
		err: &llm.APIError{Kind: llm.KindRateLimited, Provider: "openai", StatusCode: 429},
	})

	w := postChat(t, h, `{"user_id":"u1","message":"hello"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "rate limit")
}

func TestHandleChatAuthFailureMapsTo401(t *testing.T) {
	h := newTestHandlers(memstore.New(), &fakeModel{
		err: &llm.APIError{Kind: llm.KindAuthFailed, Provider: "openai", StatusCode: 401},
	})

	w := postChat(t, h, `{"user_id":"u1","message":"hello"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandleChatGenericFailureMapsTo500(t *testing.T) {
	h := newTestHandlers(memstore.New(), &fakeModel{
		err: &llm.APIError{Kind: llm.KindOther, Provider: "openai", StatusCode: 500},
	})

	w := postChat(t, h, `{"user_id":"u1","message":"hello"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHandleChatNoModelMapsTo503(t *testing.T) {
	h := newTestHandlers(memstore.New(), nil)

	w := postChat(t, h, `{"user_id":"u1","message":"hello"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandleChatUnknownConversationMapsTo404(t *testing.T) {
	h := newTestHandlers(memstore.New(), &fakeModel{reply: "x"})

	w := postChat(t, h, `{"user_id":"u1","conversation_id":"ghost","message":"hello"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleHealth(t *testing.T) {
	h := newTestHandlers(memstore.New(), &fakeModel{reply: "x"})

	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()
	h.HandleHealth(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp handlers.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "gpt-4o-mini", resp.Model)
	assert.True(t, resp.Summarizer)
	assert.Equal(t, "closed", resp.BreakerState)
}
