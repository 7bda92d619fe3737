package perplexity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnimind/ingest/internal/resilience"
)

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		Multiplier:     1,
	}
}

func TestChatCompletion(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantErr   string
		wantID    string
		wantCalls int64
	}{
		{
			name:   "success",
			status: http.StatusOK,
			body: `{
				"id": "cmpl-123",
				"choices": [{"index": 0, "message": {"role": "assistant", "content": "Philips is the manufacturer."}}],
				"usage": {"prompt_tokens": 12, "completion_tokens": 7}
			}`,
			wantID:    "cmpl-123",
			wantCalls: 1,
		},
		{
			name:      "rate_limit_retried",
			status:    http.StatusTooManyRequests,
			body:      `{"error": "rate limit exceeded"}`,
			wantErr:   "unexpected status 429",
			wantCalls: 2,
		},
		{
			name:      "server_error_retried",
			status:    http.StatusInternalServerError,
			body:      `{"error": "internal server error"}`,
			wantErr:   "unexpected status 500",
			wantCalls: 2,
		},
		{
			name:      "malformed_response_not_retried",
			status:    http.StatusOK,
			body:      `{invalid json`,
			wantErr:   "unmarshal response",
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int64
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/chat/completions", r.URL.Path)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewClient("test-key", WithBaseURL(srv.URL), WithRetryConfig(fastRetry()))

			resp, err := client.ChatCompletion(context.Background(), ChatCompletionRequest{
				Messages: []Message{{Role: "user", Content: "toshiba microwave manufacturer"}},
			})

			assert.Equal(t, tt.wantCalls, calls.Load())

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, resp)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, tt.wantID, resp.ID)
		})
	}
}

func TestSearch_ReturnsAnswerText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "standard warranty for toaster", req.Messages[1].Content)
		assert.Equal(t, "sonar", req.Model)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cmpl-1","choices":[{"index":0,"message":{"role":"assistant","content":"Most toasters carry a 1-year warranty."}}]}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	got, err := client.Search(context.Background(), "standard warranty for toaster")
	require.NoError(t, err)
	assert.Equal(t, "Most toasters carry a 1-year warranty.", got)
}

func TestSearch_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"cmpl-2","choices":[]}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	got, err := client.Search(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestNewClient_Options(t *testing.T) {
	c := NewClient("k", WithModel("sonar-pro"), WithRateLimit(0)).(*httpClient)
	assert.Equal(t, "sonar-pro", c.model)
	assert.Nil(t, c.limiter)
}
