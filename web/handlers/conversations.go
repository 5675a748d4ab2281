package handlers

import (
	"errors"
	"net/http"

	"github.com/scrypster/converse/internal/storage"
)

// ListConversations handles GET /api/conversations - list a user's
// conversations, most recently updated first.
func (h *APIHandlers) ListConversations(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "user_id is required", nil)
		return
	}

	convs, err := h.store.ListConversations(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list conversations", err)
		return
	}

	respondJSON(w, http.StatusOK, ConversationsResponse{
		Conversations: convs,
		Total:         len(convs),
	})
}

// GetConversationMessages handles GET /api/conversations/{id}/messages.
func (h *APIHandlers) GetConversationMessages(w http.ResponseWriter, r *http.Request) {
	id := extractID(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "conversation ID is required", nil)
		return
	}

	// Verify the conversation exists so a missing ID is a 404, not an
	// empty list.
	if _, err := h.store.GetConversation(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "conversation not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to load conversation", err)
		return
	}

	msgs, err := h.store.GetConversationMessages(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load messages", err)
		return
	}

	respondJSON(w, http.StatusOK, MessagesResponse{
		Messages: msgs,
		Total:    len(msgs),
	})
}
