package llm

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/scrypster/converse/pkg/types"
)

func TestSummarizationPromptEmbedsTranscript(t *testing.T) {
	prompt := SummarizationPrompt([]types.ChatTurn{
		{Role: types.RoleUser, Content: "hello"},
		{Role: types.RoleAssistant, Content: "hi there"},
	})

	assert.Contains(t, prompt, "Summarize the following conversation in 2-3 sentences.")
	assert.Contains(t, prompt, "user: hello")
	assert.Contains(t, prompt, "assistant: hi there")
	assert.True(t, strings.HasSuffix(prompt, "Summary:"))
}

func TestTopicExtractionPrompt(t *testing.T) {
	prompt := TopicExtractionPrompt("They discussed travel plans.")

	assert.Contains(t, prompt, "Extract 3-5 key topics")
	assert.Contains(t, prompt, "They discussed travel plans.")
	assert.True(t, strings.HasSuffix(prompt, "Topics (comma-separated):"))
}

func TestParseTopics(t *testing.T) {
	assert.Equal(t, []string{"travel", "japan", "flights"},
		ParseTopics(" travel, japan , flights "))
	assert.Equal(t, []string{"solo"}, ParseTopics("solo"))
	assert.Empty(t, ParseTopics(" , , "))
	assert.Empty(t, ParseTopics(""))
}

func TestChatPromptFullContext(t *testing.T) {
	mc := &types.MemoryContext{
		RecentMessages:      []string{"user: hi", "assistant: hello"},
		ConversationSummary: "Greeting exchange.",
		RelevantMemories:    []string{"planning a trip"},
		UserContext:         "Previous conversation: planning a trip",
	}

	prompt := ChatPrompt(mc, "what next?")

	assert.Contains(t, prompt, "Previous relevant conversations:\nPrevious conversation: planning a trip")
	assert.Contains(t, prompt, "Current conversation summary:\nGreeting exchange.")
	assert.Contains(t, prompt, "Recent conversation:\nuser: hi\nassistant: hello")
	assert.True(t, strings.HasSuffix(prompt, "Human: what next?\n\nAI Assistant:"))
}

func TestChatPromptOmitsEmptySections(t *testing.T) {
	mc := &types.MemoryContext{}

	prompt := ChatPrompt(mc, "hello")

	assert.NotContains(t, prompt, "Previous relevant conversations:")
	assert.NotContains(t, prompt, "Current conversation summary:")
	assert.Contains(t, prompt, "Human: hello")
}

func TestChatPromptLimitsRecentWindow(t *testing.T) {
	lines := make([]string, 10)
	for i := range lines {
		lines[i] = fmt.Sprintf("user: message %d", i)
	}
	mc := &types.MemoryContext{RecentMessages: lines}

	prompt := ChatPrompt(mc, "hi")

	assert.NotContains(t, prompt, "message 3")
	assert.Contains(t, prompt, "message 4")
	assert.Contains(t, prompt, "message 9")
}
