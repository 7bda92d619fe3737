package agent

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/omnimind/ingest/internal/model"
	"github.com/omnimind/ingest/pkg/anthropic"
)

func TestNeedsResearch(t *testing.T) {
	tests := []struct {
		name     string
		category model.Category
		fields   *model.Fields
		want     bool
	}{
		{"nil_fields", model.CategoryWarranty, nil, false},
		{"empty_item_name", model.CategoryWarranty, &model.Fields{}, false},
		{"subscription_never", model.CategorySubscription, &model.Fields{ItemName: "Netflix"}, false},
		{"food_missing_brand", model.CategoryFood, &model.Fields{ItemName: "Milk"}, true},
		{"food_with_brand", model.CategoryFood, &model.Fields{ItemName: "Milk", Brand: "La Serenisima"}, false},
		{"reading_missing_brand", model.CategoryReading, &model.Fields{ItemName: "The Hobbit"}, true},
		{"warranty_brand_no_expiry", model.CategoryWarranty, &model.Fields{ItemName: "Microwave", Brand: "Toshiba"}, true},
		{"warranty_brand_and_expiry", model.CategoryWarranty, &model.Fields{ItemName: "Microwave", Brand: "Toshiba", ExpiryDate: "2027-01-31"}, false},
		{"warranty_no_brand", model.CategoryWarranty, &model.Fields{ItemName: "Microwave"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NeedsResearch(tt.category, tt.fields))
		})
	}
}

func TestBuildSearchQueries(t *testing.T) {
	t.Run("missing_brand", func(t *testing.T) {
		queries := BuildSearchQueries(model.CategoryFood, &model.Fields{ItemName: "Milk"})
		assert.Equal(t, []string{"Milk manufacturer"}, queries)
	})

	t.Run("warranty_missing_both", func(t *testing.T) {
		queries := BuildSearchQueries(model.CategoryWarranty, &model.Fields{ItemName: "Toshiba Microwave"})
		assert.Equal(t, []string{
			"Toshiba Microwave manufacturer",
			"standard warranty for Toshiba Microwave",
		}, queries)
	})

	t.Run("warranty_only_expiry_missing", func(t *testing.T) {
		queries := BuildSearchQueries(model.CategoryWarranty, &model.Fields{ItemName: "Microwave", Brand: "Toshiba"})
		assert.Equal(t, []string{"standard warranty for Microwave"}, queries)
	})

	t.Run("nothing_missing", func(t *testing.T) {
		queries := BuildSearchQueries(model.CategoryFood, &model.Fields{ItemName: "Milk", Brand: "X"})
		assert.Empty(t, queries)
	})

	t.Run("accents_folded", func(t *testing.T) {
		queries := BuildSearchQueries(model.CategoryFood, &model.Fields{ItemName: "Café Torrado Clásico"})
		assert.Equal(t, []string{"Cafe Torrado Clasico manufacturer"}, queries)
	})
}

func TestResearch_FillsOnlyMissingFields(t *testing.T) {
	search := &mockSearchClient{}
	search.On("Search", mock.Anything, "Microwave manufacturer").
		Return("Toshiba makes this microwave model.", nil)
	search.On("Search", mock.Anything, "standard warranty for Microwave").
		Return("Most microwaves carry a 1-year warranty.", nil)

	completion := &mockCompletionClient{}
	completion.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.System == synthesizeSystemPrompt
	})).Return(textResponse(`{"brand": "Toshiba", "expiry_date": "2026-08-31", "research_summary": "Toshiba, 1-year standard warranty"}`), nil)

	a := newTestAgent(t, completion, search, nil, nil)
	rec := a.research(context.Background(), model.WorkflowRecord{
		Category: model.CategoryWarranty,
		Fields:   &model.Fields{ItemName: "Microwave"},
	})

	require.NotNil(t, rec.Fields)
	assert.Equal(t, "Toshiba", rec.Fields.Brand)
	assert.Equal(t, "2026-08-31", rec.Fields.ExpiryDate)
	assert.Equal(t, "Toshiba, 1-year standard warranty", rec.ResearchNotes)
	assert.Equal(t, []string{
		"Microwave manufacturer",
		"standard warranty for Microwave",
	}, rec.Metadata.SearchQueries)
}

func TestResearch_NeverOverwritesExistingValues(t *testing.T) {
	search := &mockSearchClient{}
	search.On("Search", mock.Anything, mock.Anything).Return("Some results.", nil)

	completion := &mockCompletionClient{}
	completion.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(`{"brand": "WrongBrand", "expiry_date": "2030-01-01", "research_summary": "found stuff"}`), nil)

	a := newTestAgent(t, completion, search, nil, nil)
	rec := a.research(context.Background(), model.WorkflowRecord{
		Category: model.CategoryWarranty,
		Fields:   &model.Fields{ItemName: "Microwave", Brand: "Toshiba"},
	})

	// Brand was present; only the missing expiry date is filled.
	assert.Equal(t, "Toshiba", rec.Fields.Brand)
	assert.Equal(t, "2030-01-01", rec.Fields.ExpiryDate)
}

func TestResearch_EmptyResultsRecordsNote(t *testing.T) {
	search := &mockSearchClient{}
	search.On("Search", mock.Anything, mock.Anything).Return("", nil)

	completion := &mockCompletionClient{}

	a := newTestAgent(t, completion, search, nil, nil)
	rec := a.research(context.Background(), model.WorkflowRecord{
		Category: model.CategoryFood,
		Fields:   &model.Fields{ItemName: "Milk"},
	})

	assert.Equal(t, "search performed but no results found", rec.ResearchNotes)
	assert.Contains(t, rec.Metadata.Trace, model.StageResearch)
	completion.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

func TestResearch_SearchFailureIsNonFatal(t *testing.T) {
	search := &mockSearchClient{}
	search.On("Search", mock.Anything, mock.Anything).Return("", assert.AnError)

	completion := &mockCompletionClient{}

	a := newTestAgent(t, completion, search, nil, nil)
	rec := a.research(context.Background(), model.WorkflowRecord{
		Category: model.CategoryFood,
		Fields:   &model.Fields{ItemName: "Milk"},
	})

	assert.NotEqual(t, model.SignalError, rec.Signal)
	assert.NotEmpty(t, rec.Metadata.Warnings)
	assert.Equal(t, "search performed but no results found", rec.ResearchNotes)
}

func TestResearch_SynthesisFailureKeepsCappedRawNotes(t *testing.T) {
	longResult := strings.Repeat("warranty details ", 100)
	search := &mockSearchClient{}
	search.On("Search", mock.Anything, mock.Anything).Return(longResult, nil)

	completion := &mockCompletionClient{}
	completion.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, assert.AnError)

	a := newTestAgent(t, completion, search, nil, nil)
	rec := a.research(context.Background(), model.WorkflowRecord{
		Category: model.CategoryFood,
		Fields:   &model.Fields{ItemName: "Milk"},
	})

	assert.NotEqual(t, model.SignalError, rec.Signal)
	assert.NotEmpty(t, rec.ResearchNotes)
	assert.LessOrEqual(t, len(rec.ResearchNotes), 500)
	// Fields unchanged on synthesis failure.
	assert.Empty(t, rec.Fields.Brand)
}

func TestResearch_CappedNotesStayValidUTF8(t *testing.T) {
	// Both item names shift the accented run's byte alignment relative to
	// the cap, so one of them lands the cut inside a two-byte rune.
	for _, itemName := range []string{"Milk", "Leche"} {
		t.Run(itemName, func(t *testing.T) {
			accented := strings.Repeat("í", 400)
			search := &mockSearchClient{}
			search.On("Search", mock.Anything, mock.Anything).Return(accented, nil)

			completion := &mockCompletionClient{}
			completion.On("CreateMessage", mock.Anything, mock.Anything).
				Return(nil, assert.AnError)

			a := newTestAgent(t, completion, search, nil, nil)
			rec := a.research(context.Background(), model.WorkflowRecord{
				Category: model.CategoryFood,
				Fields:   &model.Fields{ItemName: itemName},
			})

			assert.True(t, utf8.ValidString(rec.ResearchNotes))
			assert.LessOrEqual(t, len(rec.ResearchNotes), 500)
		})
	}
}

func TestCapNotes(t *testing.T) {
	assert.Equal(t, "abc", capNotes("abc", 10))

	accented := strings.Repeat("í", 300)
	got := capNotes(accented, 501)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 500, len(got))
}

func TestFoldDiacritics(t *testing.T) {
	assert.Equal(t, "Leche Entera dia", foldDiacritics("Leche Entera día"))
	assert.Equal(t, "plain ascii", foldDiacritics("plain ascii"))
}
