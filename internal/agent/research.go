package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/omnimind/ingest/internal/model"
	"github.com/omnimind/ingest/pkg/anthropic"
)

const synthesizeSystemPrompt = `You extract facts about consumer items from web search results. Never invent a value that is not supported by the search text; use null instead. Respond with a valid JSON object: {"brand": "<brand or null>", "expiry_date": "<yyyy-mm-dd or null>", "research_summary": "brief summary of what was found"}`

const synthesizeUserPrompt = `Item name: %s
Category: %s
Current brand: %s
Current expiry_date: %s

Search results:
%s`

// NeedsResearch is the authoritative routing predicate. Research applies
// only to warranty, food, and reading items with a known name, and only
// when the brand is missing or a warranty item lacks an expiry date.
func NeedsResearch(category model.Category, fields *model.Fields) bool {
	if fields == nil || fields.ItemName == "" {
		return false
	}
	switch category {
	case model.CategoryWarranty, model.CategoryFood, model.CategoryReading:
	default:
		return false
	}
	if fields.Brand == "" {
		return true
	}
	return category == model.CategoryWarranty && fields.ExpiryDate == ""
}

// BuildSearchQueries derives zero, one, or two queries from the missing
// fields. Item names are folded to plain ASCII so accented Spanish names
// search cleanly.
func BuildSearchQueries(category model.Category, fields *model.Fields) []string {
	if fields == nil || fields.ItemName == "" {
		return nil
	}
	name := foldDiacritics(fields.ItemName)

	var queries []string
	if fields.Brand == "" {
		queries = append(queries, name+" manufacturer")
	}
	if category == model.CategoryWarranty && fields.ExpiryDate == "" {
		queries = append(queries, "standard warranty for "+name)
	}
	return queries
}

// research fills missing brand/expiry data from web search. Every failure
// in here is non-fatal; the record always proceeds to persistence.
func (a *Agent) research(ctx context.Context, rec model.WorkflowRecord) model.WorkflowRecord {
	rec = rec.MarkStage(model.StageResearch)
	log := zap.L().With(zap.String("run_id", rec.Metadata.RunID))

	queries := BuildSearchQueries(rec.Category, rec.Fields)
	if len(queries) == 0 {
		log.Debug("research: nothing to look up")
		return rec
	}
	rec.Metadata.SearchQueries = queries

	if a.search == nil {
		return rec.AddWarning("research: no search client configured")
	}

	var parts []string
	for _, q := range queries {
		log.Info("research: searching", zap.String("query", q))
		result, err := a.search.Search(ctx, q)
		if err != nil {
			log.Warn("research: search failed", zap.String("query", q), zap.Error(err))
			rec = rec.AddWarning(fmt.Sprintf("research: search %q failed: %v", q, err))
			continue
		}
		rec.Metadata.CostUSD += a.costs.SearchQuery()
		if result != "" {
			parts = append(parts, fmt.Sprintf("query: %s\nresults: %s\n", q, result))
		}
	}

	combined := strings.Join(parts, "\n")
	if combined == "" {
		rec.ResearchNotes = "search performed but no results found"
		return rec
	}

	fields := rec.CloneFields()
	synthesized, summary, err := a.synthesize(ctx, &rec, combined, fields)
	if err != nil {
		log.Warn("research: synthesis failed", zap.Error(err))
		rec = rec.AddWarning("research: synthesis failed: " + err.Error())
		rec.ResearchNotes = capNotes(combined, a.maxNoteChars())
		return rec
	}

	// Merge only fields that were missing; research never overwrites data
	// already extracted.
	if synthesized.Brand != "" && fields.Brand == "" {
		fields.Brand = synthesized.Brand
	}
	if synthesized.ExpiryDate != "" && fields.ExpiryDate == "" {
		fields.ExpiryDate = synthesized.ExpiryDate
	}
	rec.Fields = fields

	if summary != "" {
		rec.ResearchNotes = summary
	} else {
		rec.ResearchNotes = capNotes(combined, a.maxNoteChars())
	}

	log.Info("research: complete",
		zap.String("brand", fields.Brand),
		zap.String("expiry_date", fields.ExpiryDate),
	)
	return rec
}

type synthesizedFields struct {
	Brand      string `json:"brand"`
	ExpiryDate string `json:"expiry_date"`
	Summary    string `json:"research_summary"`
}

func (a *Agent) synthesize(ctx context.Context, rec *model.WorkflowRecord, searchText string, fields *model.Fields) (*synthesizedFields, string, error) {
	brand := fields.Brand
	if brand == "" {
		brand = "unknown"
	}
	expiry := fields.ExpiryDate
	if expiry == "" {
		expiry = "unknown"
	}
	prompt := fmt.Sprintf(synthesizeUserPrompt, fields.ItemName, rec.Category, brand, expiry, searchText)

	resp, err := a.completion.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.cfg.Anthropic.Model,
		MaxTokens: 512,
		System:    synthesizeSystemPrompt,
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, "", err
	}
	a.recordUsage(rec, resp)

	var out synthesizedFields
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text())), &out); err != nil {
		return nil, "", err
	}
	return &out, out.Summary, nil
}

func (a *Agent) maxNoteChars() int {
	if a.cfg.Research.MaxNoteChars > 0 {
		return a.cfg.Research.MaxNoteChars
	}
	return 500
}

// capNotes truncates to at most limit bytes without splitting a rune, so
// accented text stays valid UTF-8.
func capNotes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

// foldDiacritics strips combining marks: "Leche Entera Descremada día" to
// "Leche Entera Descremada dia".
func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
