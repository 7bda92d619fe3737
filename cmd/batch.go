package main

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/omnimind/ingest/internal/model"
)

var (
	batchFile  string
	batchLimit int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Ingest many items from a JSON lines file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		reqs, err := loadBatchFile(batchFile)
		if err != nil {
			return err
		}

		env, err := initAgent(ctx, "batch")
		if err != nil {
			return err
		}
		defer env.Close()

		return processBatch(ctx, reqs, batchLimit, cfg.Batch.MaxConcurrentRuns, func(ctx context.Context, req model.IngestRequest) model.WorkflowRecord {
			return env.Agent.RunRequest(ctx, req)
		})
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchFile, "file", "", "JSON lines file, one ingest request per line (required)")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of requests to process (0 = all)")
	_ = batchCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(batchCmd)
}

// loadBatchFile parses a JSON lines file of ingest requests. Blank lines are
// skipped.
func loadBatchFile(path string) ([]model.IngestRequest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "open batch file")
	}
	defer f.Close()

	var reqs []model.IngestRequest
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var req model.IngestRequest
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			return nil, eris.Wrapf(err, "batch file line %d", lineNo)
		}
		reqs = append(reqs, req)
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrap(err, "read batch file")
	}
	return reqs, nil
}

// ingestFunc is the callback signature for running one ingest request.
type ingestFunc func(ctx context.Context, req model.IngestRequest) model.WorkflowRecord

// processBatch applies limit, then runs requests concurrently using the
// given ingest function. A run ending in the error state counts as failed
// but never aborts the batch.
func processBatch(ctx context.Context, reqs []model.IngestRequest, limit, concurrency int, ingest ingestFunc) error {
	if len(reqs) == 0 {
		zap.L().Info("no requests found in batch file")
		return nil
	}

	// Apply limit
	if limit > 0 && len(reqs) > limit {
		reqs = reqs[:limit]
	}

	zap.L().Info("processing batch",
		zap.Int("requests", len(reqs)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, failed atomic.Int64

	for i, req := range reqs {
		g.Go(func() error {
			rec := ingest(gctx, req)
			log := zap.L().With(
				zap.Int("index", i),
				zap.String("run_id", rec.Metadata.RunID),
			)

			if rec.Signal == model.SignalError {
				failed.Add(1)
				msg := "unknown error"
				if rec.Metadata.Error != nil {
					msg = rec.Metadata.Error.Message
				}
				log.Error("ingestion failed", zap.String("error", msg))
				return nil // don't abort batch on individual failure
			}

			succeeded.Add(1)
			log.Info("ingestion complete",
				zap.String("category", string(rec.Category)),
				zap.String("item_id", rec.Metadata.ItemID),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "batch processing")
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return nil
}
