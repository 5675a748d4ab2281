// Prompt templates for the chat and summarization paths.
//
// Prompts are plain functions returning strings; none of them perform I/O.
// The transcript is always embedded into a single completion-style prompt
// rather than sent as structured chat turns.
package llm

import (
	"fmt"
	"strings"

	"github.com/scrypster/converse/pkg/types"
)

// SummarizationPrompt asks the model for a 2-3 sentence conversation summary.
//
// Parameters:
//   - turns: the full transcript to summarize
//
// Returns:
//   - A prompt string eliciting a free-text summary
func SummarizationPrompt(turns []types.ChatTurn) string {
	return fmt.Sprintf(`Summarize the following conversation in 2-3 sentences.
Extract key topics and important information that would be useful for future context.

Conversation:
%s

Summary:`, strings.Join(types.RenderTranscript(turns), "\n"))
}

// TopicExtractionPrompt asks the model for 3-5 comma-separated key topics
// from an already-produced summary. Callers split the response on commas.
func TopicExtractionPrompt(summary string) string {
	return fmt.Sprintf(`Extract 3-5 key topics from this conversation summary:
%s

Topics (comma-separated):`, summary)
}

// ParseTopics splits a comma-separated topic response into trimmed,
// non-empty topic strings.
func ParseTopics(response string) []string {
	parts := strings.Split(response, ",")
	topics := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			topics = append(topics, t)
		}
	}
	return topics
}

// chatRecentWindow is the number of trailing transcript lines embedded into
// the chat prompt.
const chatRecentWindow = 6

// ChatPrompt assembles the outbound prompt for one user turn from the memory
// context and the new message. Empty context sections are omitted.
func ChatPrompt(mc *types.MemoryContext, message string) string {
	var b strings.Builder

	b.WriteString("You are a helpful AI assistant with access to conversation history and memory.\n")
	b.WriteString("Your goal is to provide helpful, accurate, and contextually relevant responses.\n\n")

	if mc.UserContext != "" {
		b.WriteString("Previous relevant conversations:\n")
		b.WriteString(mc.UserContext)
		b.WriteString("\n\n")
	}
	if mc.ConversationSummary != "" {
		b.WriteString("Current conversation summary:\n")
		b.WriteString(mc.ConversationSummary)
		b.WriteString("\n\n")
	}

	recent := mc.RecentMessages
	if len(recent) > chatRecentWindow {
		recent = recent[len(recent)-chatRecentWindow:]
	}
	b.WriteString("Recent conversation:\n")
	b.WriteString(strings.Join(recent, "\n"))
	b.WriteString("\n\nHuman: ")
	b.WriteString(message)
	b.WriteString("\n\nAI Assistant:")

	return b.String()
}
