package memory

import (
	"strings"

	"github.com/scrypster/converse/pkg/types"
)

// RelevanceScore rates how relevant a stored memory is to the current
// message. It is a cheap lexical heuristic, not semantic search: callers
// must not expect synonym or paraphrase matching.
//
// The query is lowercased and whitespace-split; each query word that appears
// anywhere in the memory's key topics or summary (exact match) counts once.
// The hit count is normalized by the query length and weighted by the
// memory's importance. An empty query scores 0.
//
// Deterministic, no side effects, no I/O.
func RelevanceScore(query string, mem *types.ConversationMemory) float64 {
	queryWords := strings.Fields(strings.ToLower(query))
	if len(queryWords) == 0 {
		return 0
	}

	bag := make(map[string]struct{})
	for _, topic := range mem.KeyTopics {
		for _, w := range strings.Fields(strings.ToLower(topic)) {
			bag[w] = struct{}{}
		}
	}
	for _, w := range strings.Fields(strings.ToLower(mem.Summary)) {
		bag[w] = struct{}{}
	}

	hits := 0
	for _, w := range queryWords {
		if _, ok := bag[w]; ok {
			hits++
		}
	}

	return float64(hits) / float64(len(queryWords)) * mem.Importance
}
