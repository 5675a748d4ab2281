package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/scrypster/converse/internal/chat"
	"github.com/scrypster/converse/internal/config"
	"github.com/scrypster/converse/internal/llm"
	"github.com/scrypster/converse/internal/memory"
	"github.com/scrypster/converse/internal/storage"
)

// APIHandlers contains HTTP handlers for the REST API.
type APIHandlers struct {
	store  storage.Store
	chat   *chat.Service
	memory *memory.Service
	model  llm.TextGenerator
	config *config.Config
	hub    *WebSocketHub
}

// NewAPIHandlers creates a new APIHandlers instance. The hub may be nil, in
// which case no events are broadcast.
func NewAPIHandlers(store storage.Store, chatSvc *chat.Service, mem *memory.Service, model llm.TextGenerator, cfg *config.Config, hub *WebSocketHub) *APIHandlers {
	return &APIHandlers{
		store:  store,
		chat:   chatSvc,
		memory: mem,
		model:  model,
		config: cfg,
		hub:    hub,
	}
}

// HandleChat handles POST /api/chat - run one conversational turn.
//
// Provider quota and rate-limit failures map to 429, authentication
// failures to 401, everything else to 500.
func (h *APIHandlers) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req chat.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}

	resp, err := h.chat.SendMessage(r.Context(), &req)
	if err != nil {
		h.respondChatError(w, err)
		return
	}

	if h.hub != nil {
		h.hub.Broadcast(Event{
			Type:           "message",
			ConversationID: resp.ConversationID,
			Payload:        resp.Message,
		})
	}

	respondJSON(w, http.StatusOK, resp)
}

// respondChatError translates chat errors into HTTP status codes.
func (h *APIHandlers) respondChatError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrEmptyMessage), errors.Is(err, chat.ErrEmptyUserID):
		respondError(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, chat.ErrModelUnavailable):
		respondError(w, http.StatusServiceUnavailable, "no language model configured", nil)
	case errors.Is(err, storage.ErrNotFound):
		respondError(w, http.StatusNotFound, "conversation not found", nil)
	case errors.Is(err, llm.ErrCircuitOpen):
		respondError(w, http.StatusServiceUnavailable, "model temporarily unavailable", err)
	default:
		switch llm.KindOf(err) {
		case llm.KindQuotaExceeded:
			respondError(w, http.StatusTooManyRequests, "provider quota exceeded", err)
		case llm.KindRateLimited:
			respondError(w, http.StatusTooManyRequests, "provider rate limit hit", err)
		case llm.KindAuthFailed:
			respondError(w, http.StatusUnauthorized, "provider authentication failed", err)
		default:
			respondError(w, http.StatusInternalServerError, "chat request failed", err)
		}
	}
}

// HandleHealth handles GET /api/health.
func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:       "ok",
		Summarizer:   h.memory.SummarizerConfigured(),
		BreakerState: h.memory.BreakerState(),
	}
	if h.model != nil {
		resp.Model = h.model.GetModel()
	}
	respondJSON(w, http.StatusOK, resp)
}
