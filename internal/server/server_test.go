package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/converse/internal/config"
	"github.com/scrypster/converse/internal/storage/memstore"
)

func startTestServer(t *testing.T) string {
	t.Helper()

	cfg := &config.Config{
		Server:   config.ServerConfig{Host: "127.0.0.1", Port: 0},
		Security: config.SecurityConfig{SecurityMode: "development"},
		Memory: config.MemoryConfig{
			RollingSummaryMinMessages:   5,
			PersistedSummaryMinMessages: 8,
			RelevantMemoryLimit:         3,
			CandidateFetchLimit:         20,
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		time.Sleep(50 * time.Millisecond)
	})

	addr, _ := Start(ctx, cfg, memstore.New(), nil)
	return addr
}

func TestServerHealthEndpoint(t *testing.T) {
	addr := startTestServer(t)

	resp, err := http.Get(fmt.Sprintf("http://%s/api/health", addr))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status       string `json:"status"`
		Summarizer   bool   `json:"summarizer_configured"`
		BreakerState string `json:"memory_breaker_state"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.False(t, body.Summarizer)
	assert.Equal(t, "closed", body.BreakerState)
}

func TestServerSecurityHeaders(t *testing.T) {
	addr := startTestServer(t)

	resp, err := http.Get(fmt.Sprintf("http://%s/api/health", addr))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
}

func TestServerChatWithoutModelReturns503(t *testing.T) {
	addr := startTestServer(t)

	resp, err := http.Post(fmt.Sprintf("http://%s/api/chat", addr), "application/json",
		nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	// Empty body fails JSON decoding before the model check.
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServerMethodNotAllowed(t *testing.T) {
	addr := startTestServer(t)

	resp, err := http.Get(fmt.Sprintf("http://%s/api/chat", addr))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "Method not allowed")
}

func TestServerUsageEndpoint(t *testing.T) {
	addr := startTestServer(t)

	resp, err := http.Get(fmt.Sprintf("http://%s/api/usage?user_id=u1", addr))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
