package agent

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/omnimind/ingest/internal/store"
	"github.com/omnimind/ingest/pkg/anthropic"
	"github.com/omnimind/ingest/pkg/perplexity"
	"github.com/omnimind/ingest/pkg/webhook"
)

// --- Completion Mock ---

type mockCompletionClient struct {
	mock.Mock
}

func (m *mockCompletionClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

// --- Search Mock ---

type mockSearchClient struct {
	mock.Mock
}

func (m *mockSearchClient) Search(ctx context.Context, query string) (string, error) {
	args := m.Called(ctx, query)
	return args.String(0), args.Error(1)
}

func (m *mockSearchClient) ChatCompletion(ctx context.Context, req perplexity.ChatCompletionRequest) (*perplexity.ChatCompletionResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*perplexity.ChatCompletionResponse), args.Error(1)
}

// --- Notifier Mock ---

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, payload any) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) InsertItem(ctx context.Context, item store.Item) (*store.Item, error) {
	args := m.Called(ctx, item)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Item), args.Error(1)
}

func (m *mockStore) InsertReminder(ctx context.Context, rem store.Reminder) (*store.Reminder, error) {
	args := m.Called(ctx, rem)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Reminder), args.Error(1)
}

func (m *mockStore) GetItem(ctx context.Context, id string) (*store.Item, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Item), args.Error(1)
}

func (m *mockStore) ListReminders(ctx context.Context, itemID string) ([]store.Reminder, error) {
	args := m.Called(ctx, itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]store.Reminder), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// --- Ensure interface compliance ---
var (
	_ anthropic.Client  = (*mockCompletionClient)(nil)
	_ perplexity.Client = (*mockSearchClient)(nil)
	_ webhook.Notifier  = (*mockNotifier)(nil)
	_ store.Store       = (*mockStore)(nil)
)
