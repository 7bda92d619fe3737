package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/omnimind/ingest/internal/agent"
	"github.com/omnimind/ingest/internal/store"
	anthropicpkg "github.com/omnimind/ingest/pkg/anthropic"
	"github.com/omnimind/ingest/pkg/perplexity"
	"github.com/omnimind/ingest/pkg/webhook"
)

// agentEnv holds the initialized store and agent needed by the run, batch,
// and serve commands.
type agentEnv struct {
	Store store.Store
	Agent *agent.Agent
}

// Close releases resources held by the environment.
func (e *agentEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initAgent validates config for the given mode, opens and migrates the
// store, and wires all API clients into an Agent. Callers should defer
// env.Close().
func initAgent(ctx context.Context, mode string) (*agentEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	completion := anthropicpkg.NewClient(cfg.Anthropic.Key)

	var search perplexity.Client
	if cfg.Perplexity.Key != "" {
		search = perplexity.NewClient(cfg.Perplexity.Key,
			perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
			perplexity.WithModel(cfg.Perplexity.Model),
			perplexity.WithRateLimit(cfg.Perplexity.RateLimit),
		)
	} else {
		zap.L().Warn("OMNIMIND_PERPLEXITY_KEY not set, research searches disabled")
		search = agent.StubSearch{}
	}

	var notifier webhook.Notifier
	if cfg.Webhook.URL != "" {
		notifier = webhook.NewClient(cfg.Webhook.URL,
			webhook.WithTimeout(time.Duration(cfg.Webhook.TimeoutSecs)*time.Second),
		)
	} else {
		zap.L().Debug("webhook url not set, action notifications disabled")
		notifier = agent.StubNotifier{}
	}

	return &agentEnv{
		Store: st,
		Agent: agent.New(cfg, st, completion, search, notifier),
	}, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "omnimind.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}
