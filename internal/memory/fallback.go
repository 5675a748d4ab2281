package memory

import (
	"fmt"
	"strings"

	"github.com/scrypster/converse/pkg/types"
)

// Fallback generation settings.
const (
	// fallbackMinWordLen drops short filler words from topic counting.
	fallbackMinWordLen = 4

	// fallbackTopicCount is how many topics the fallback extracts.
	fallbackTopicCount = 5

	// fallbackExcerptLen bounds the first/last message excerpts.
	fallbackExcerptLen = 50
)

// FallbackResult is the degraded summary produced without a model call.
type FallbackResult struct {
	Summary   string
	KeyTopics []string
}

// FallbackSummarize produces an offline summary and topic list from raw
// transcript text. It is used whenever the language-model summarizer is
// unconfigured, quota-disabled, or failing.
//
// Topics are the most frequent words longer than three characters, ranked
// by descending count with ties kept in first-encountered order, so the
// output is reproducible for identical input.
func FallbackSummarize(turns []types.ChatTurn) FallbackResult {
	counts := make(map[string]int)
	order := make([]string, 0, 64)

	for _, turn := range turns {
		for _, word := range strings.Fields(stripNonWord(strings.ToLower(turn.Content))) {
			if len(word) < fallbackMinWordLen {
				continue
			}
			if _, seen := counts[word]; !seen {
				order = append(order, word)
			}
			counts[word]++
		}
	}

	// Stable selection sort over the insertion-ordered word list keeps
	// equal-frequency words in first-encountered order.
	topics := make([]string, 0, fallbackTopicCount)
	picked := make(map[string]bool, fallbackTopicCount)
	for len(topics) < fallbackTopicCount {
		best := ""
		bestCount := 0
		for _, w := range order {
			if picked[w] {
				continue
			}
			if counts[w] > bestCount {
				best = w
				bestCount = counts[w]
			}
		}
		if best == "" {
			break
		}
		picked[best] = true
		topics = append(topics, best)
	}

	summary := buildFallbackSummary(topics, turns)
	return FallbackResult{Summary: summary, KeyTopics: topics}
}

// buildFallbackSummary renders the template summary line, appending
// truncated excerpts of the first and last message when both are non-empty.
func buildFallbackSummary(topics []string, turns []types.ChatTurn) string {
	if len(topics) == 0 {
		return "General conversation"
	}

	head := topics
	if len(head) > 3 {
		head = head[:3]
	}
	summary := "Conversation about " + strings.Join(head, ", ")

	if len(turns) > 0 {
		first := strings.TrimSpace(turns[0].Content)
		last := strings.TrimSpace(turns[len(turns)-1].Content)
		if first != "" && last != "" {
			summary += fmt.Sprintf(" (started: %q, latest: %q)",
				truncate(first, fallbackExcerptLen), truncate(last, fallbackExcerptLen))
		}
	}

	return summary
}

// stripNonWord replaces every character that is not a letter, digit, or
// whitespace with a space, so punctuation does not glue words together.
func stripNonWord(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '\t', r == '\n', r == '\r':
			return r
		default:
			return ' '
		}
	}, s)
}

// truncate bounds s to max bytes.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
