// Package agent runs the ingestion workflow: extraction, classification,
// optional research, persistence, and a finalize or error terminal. One
// Agent serves many concurrent runs; all per-run state lives in the
// WorkflowRecord threaded through the stages.
package agent

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/omnimind/ingest/internal/config"
	"github.com/omnimind/ingest/internal/cost"
	"github.com/omnimind/ingest/internal/model"
	"github.com/omnimind/ingest/internal/store"
	"github.com/omnimind/ingest/pkg/anthropic"
	"github.com/omnimind/ingest/pkg/perplexity"
	"github.com/omnimind/ingest/pkg/webhook"
)

// Agent orchestrates the ingestion stages over injected collaborators.
type Agent struct {
	cfg        *config.Config
	store      store.Store
	completion anthropic.Client
	search     perplexity.Client
	notifier   webhook.Notifier
	costs      *cost.Calculator

	notifyAsync bool
}

// Option configures an Agent.
type Option func(*Agent)

// WithSyncNotify makes the webhook call block until it finishes instead of
// running detached. Used in tests; production keeps the detached default.
func WithSyncNotify() Option {
	return func(a *Agent) {
		a.notifyAsync = false
	}
}

// New creates an Agent with all dependencies. notifier may be nil when no
// webhook is configured.
func New(
	cfg *config.Config,
	st store.Store,
	completion anthropic.Client,
	search perplexity.Client,
	notifier webhook.Notifier,
	opts ...Option,
) *Agent {
	a := &Agent{
		cfg:         cfg,
		store:       st,
		completion:  completion,
		search:      search,
		notifier:    notifier,
		costs:       cost.NewCalculator(cost.DefaultRates()),
		notifyAsync: true,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Run drives one raw input through the full workflow and returns the final
// record. Failures terminate in the error state or are recorded in the run
// metadata; Run itself never fails.
func (a *Agent) Run(ctx context.Context, input model.RawInput) model.WorkflowRecord {
	return a.run(ctx, input, nil)
}

// RunRequest resolves an ingest request into raw input and runs it. Caller
// metadata rides along in Metadata.Extra, where the persistence stage looks
// for amounts like total_amount.
func (a *Agent) RunRequest(ctx context.Context, req model.IngestRequest) model.WorkflowRecord {
	return a.run(ctx, req.ToRawInput(), req.Metadata)
}

func (a *Agent) run(ctx context.Context, input model.RawInput, extra map[string]string) model.WorkflowRecord {
	rec := model.WorkflowRecord{
		RawInput: input,
		Metadata: model.RunMetadata{
			RunID:     uuid.New().String(),
			StartedAt: time.Now().UTC(),
			Extra:     extra,
		},
	}
	log := zap.L().With(zap.String("run_id", rec.Metadata.RunID))
	log.Info("agent: starting run")

	rec = a.extract(ctx, rec)
	if rec.Signal == model.SignalError || rec.Fields == nil {
		return a.errorTerminal(rec)
	}

	rec = a.classify(ctx, rec)
	if rec.Signal == model.SignalError {
		return a.errorTerminal(rec)
	}

	if NeedsResearch(rec.Category, rec.Fields) {
		rec = a.research(ctx, rec)
	}

	rec = a.persist(ctx, rec)

	rec = a.finalize(rec)
	log.Info("agent: run complete",
		zap.String("category", string(rec.Category)),
		zap.String("item_id", rec.Metadata.ItemID),
		zap.Strings("trace", rec.Metadata.Trace),
	)
	return rec
}

// recordUsage accumulates token counts and estimated spend for one
// completion call.
func (a *Agent) recordUsage(rec *model.WorkflowRecord, resp *anthropic.MessageResponse) {
	if resp == nil {
		return
	}
	rec.Metadata.TotalTokens += int(resp.Usage.InputTokens + resp.Usage.OutputTokens)
	rec.Metadata.CostUSD += a.costs.Claude(a.cfg.Anthropic.Model,
		int(resp.Usage.InputTokens), int(resp.Usage.OutputTokens))
}

// finalize is the success terminal.
func (a *Agent) finalize(rec model.WorkflowRecord) model.WorkflowRecord {
	rec = rec.MarkStage(model.StageFinalize)
	rec.Signal = model.SignalComplete
	return rec
}

// errorTerminal is the failure terminal. The failing stage has already
// recorded the error detail; this only closes out the trace.
func (a *Agent) errorTerminal(rec model.WorkflowRecord) model.WorkflowRecord {
	rec = rec.MarkStage(model.StageError)
	rec.Signal = model.SignalError
	if rec.Metadata.Error != nil {
		zap.L().Error("agent: run failed",
			zap.String("run_id", rec.Metadata.RunID),
			zap.String("kind", rec.Metadata.Error.Kind),
			zap.String("stage", rec.Metadata.Error.Stage),
			zap.String("message", rec.Metadata.Error.Message),
		)
	}
	return rec
}
