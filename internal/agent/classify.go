package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/omnimind/ingest/internal/model"
	"github.com/omnimind/ingest/pkg/anthropic"
)

const classifySystemPrompt = `Categorize items into exactly one of these categories: food, warranty, subscription, reading. Respond with a valid JSON object: {"category": "<category>", "reasoning": "brief explanation"}`

const classifyUserPrompt = `Item name: %s
Brand: %s`

// classify assigns a category to the extracted item. Failures here are
// fatal to the run.
func (a *Agent) classify(ctx context.Context, rec model.WorkflowRecord) model.WorkflowRecord {
	rec = rec.MarkStage(model.StageClassification)

	if rec.Fields == nil {
		return rec.WithError(KindInputError, model.StageClassification,
			"no extracted fields available for classification")
	}

	brand := rec.Fields.Brand
	if brand == "" {
		brand = "unknown"
	}
	prompt := fmt.Sprintf(classifyUserPrompt, rec.Fields.ItemName, brand)

	resp, err := a.completion.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.cfg.Anthropic.Model,
		MaxTokens: 256,
		System:    classifySystemPrompt,
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return rec.WithError(KindParseError, model.StageClassification, err.Error())
	}
	a.recordUsage(&rec, resp)

	var result struct {
		Category  string `json:"category"`
		Reasoning string `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text())), &result); err != nil {
		return rec.WithError(KindParseError, model.StageClassification,
			"response is not the expected JSON structure: "+err.Error())
	}

	category, known := model.ParseCategory(result.Category)
	if !known {
		zap.L().Warn("classify: unrecognized category, defaulting to food",
			zap.String("run_id", rec.Metadata.RunID),
			zap.String("category", result.Category),
		)
		rec.Metadata.DefaultedCat = true
	}

	rec.Category = category
	rec.Metadata.Reasoning = result.Reasoning

	// Advisory signal only; the orchestrator re-evaluates the same predicate
	// before entering the research stage.
	if NeedsResearch(category, rec.Fields) {
		rec.Signal = model.SignalResearch
	} else {
		rec.Signal = model.SignalContinue
	}

	zap.L().Debug("classify: item categorized",
		zap.String("run_id", rec.Metadata.RunID),
		zap.String("category", string(category)),
		zap.String("signal", string(rec.Signal)),
	)
	return rec
}
