package agent

import (
	"context"

	"go.uber.org/zap"

	"github.com/omnimind/ingest/pkg/perplexity"
	"github.com/omnimind/ingest/pkg/webhook"
)

// StubSearch is a search client used when no Perplexity key is configured.
// Every query returns no results, so research degrades to a recorded no-op.
type StubSearch struct{}

func (StubSearch) Search(ctx context.Context, query string) (string, error) {
	zap.L().Debug("stub search: skipping query", zap.String("query", query))
	return "", nil
}

func (StubSearch) ChatCompletion(ctx context.Context, req perplexity.ChatCompletionRequest) (*perplexity.ChatCompletionResponse, error) {
	return &perplexity.ChatCompletionResponse{}, nil
}

// StubNotifier drops notifications when no webhook URL is configured.
type StubNotifier struct{}

func (StubNotifier) Notify(ctx context.Context, payload any) error {
	return nil
}

var (
	_ perplexity.Client = StubSearch{}
	_ webhook.Notifier  = StubNotifier{}
)
