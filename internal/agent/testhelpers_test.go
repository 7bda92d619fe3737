package agent

import (
	"testing"

	"github.com/omnimind/ingest/internal/config"
	"github.com/omnimind/ingest/pkg/anthropic"
)

// newTestAgent wires an Agent with mock collaborators and synchronous
// webhook delivery so tests can assert on notification outcomes.
func newTestAgent(t *testing.T, completion *mockCompletionClient, search *mockSearchClient, st *mockStore, notifier *mockNotifier) *Agent {
	t.Helper()
	cfg := &config.Config{}
	cfg.Anthropic.Model = "claude-sonnet-4-5-20250929"
	cfg.Anthropic.MaxTokens = 2048
	cfg.Research.MaxNoteChars = 500
	cfg.Webhook.TimeoutSecs = 2

	if notifier == nil {
		return New(cfg, st, completion, search, nil, WithSyncNotify())
	}
	return New(cfg, st, completion, search, notifier, WithSyncNotify())
}

// textResponse wraps a string as a single-block completion response.
func textResponse(s string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: s}},
	}
}
