package handlers

import (
	"net/http"

	"github.com/scrypster/converse/internal/llm"
)

// usageDefaultLimit bounds GET /api/usage when no limit is given.
const usageDefaultLimit = 50

// GetUsage handles GET /api/usage - recent usage records for a user plus
// the per-model pricing table.
func (h *APIHandlers) GetUsage(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "user_id is required", nil)
		return
	}

	limit := parseInt(r.URL.Query().Get("limit"), usageDefaultLimit)
	if limit > 1000 {
		limit = 1000
	}

	records, err := h.store.ListUsageRecords(r.Context(), userID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list usage records", err)
		return
	}

	respondJSON(w, http.StatusOK, UsageResponse{
		Records: records,
		Pricing: llm.PricingInfo(),
	})
}
