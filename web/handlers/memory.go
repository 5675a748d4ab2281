package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/scrypster/converse/internal/memory"
	"github.com/scrypster/converse/pkg/types"
)

// GetMemory handles GET /api/memory - inspect the memory context that would
// be assembled for a user's next message.
//
// Query parameters: user_id (required), message (optional query text for
// relevance scoring), conversation_id (optional, includes that
// conversation's transcript as the recent window).
func (h *APIHandlers) GetMemory(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	message := r.URL.Query().Get("message")
	conversationID := r.URL.Query().Get("conversation_id")

	var recent []types.ChatTurn
	if conversationID != "" {
		msgs, err := h.store.GetConversationMessages(r.Context(), conversationID)
		if err != nil {
			// A missing transcript degrades to an empty recent window.
			log.Printf("handlers: failed to load transcript for %s: %v", conversationID, err)
		}
		for _, m := range msgs {
			recent = append(recent, types.ChatTurn{Role: m.Role, Content: m.Content})
		}
	}

	mc, err := h.memory.BuildContext(r.Context(), userID, message, recent)
	if err != nil {
		if errors.Is(err, memory.ErrEmptyUserID) {
			respondError(w, http.StatusBadRequest, "user_id is required", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to build memory context", err)
		return
	}

	respondJSON(w, http.StatusOK, MemoryResponse{
		RelevantMemories:    mc.RelevantMemories,
		ConversationSummary: mc.ConversationSummary,
		RecentMessages:      mc.RecentMessages,
		MemoryCount:         len(mc.RelevantMemories),
	})
}
