package model

import (
	"fmt"
	"time"
)

// Category is the fixed set of item categories the classifier may assign.
type Category string

const (
	CategoryFood         Category = "food"
	CategoryWarranty     Category = "warranty"
	CategorySubscription Category = "subscription"
	CategoryReading      Category = "reading"
)

// ValidCategories lists every recognized category.
var ValidCategories = []Category{
	CategoryFood,
	CategoryWarranty,
	CategorySubscription,
	CategoryReading,
}

// ParseCategory validates a raw category string. Unrecognized values fall
// back to food; the second return reports whether the input was recognized.
func ParseCategory(raw string) (Category, bool) {
	c := Category(raw)
	for _, v := range ValidCategories {
		if c == v {
			return c, true
		}
	}
	return CategoryFood, false
}

// RoutingSignal is the next-step decision a stage attaches to the record.
type RoutingSignal string

const (
	SignalContinue RoutingSignal = "continue"
	SignalResearch RoutingSignal = "research"
	SignalComplete RoutingSignal = "complete"
	SignalError    RoutingSignal = "error"
)

// Stage names, in pipeline order. They appear in the run trace and as the
// stage tag on recorded errors.
const (
	StageExtraction     = "extraction"
	StageClassification = "classification"
	StageResearch       = "research"
	StagePersistence    = "persistence"
	StageFinalize       = "finalize"
	StageError          = "error"
)

// Reminder is a single payment or due-date entry attached to an item.
// DueDate must be a canonical yyyy-mm-dd string before persistence.
type Reminder struct {
	Label   string   `json:"label"`
	DueDate string   `json:"due_date"`
	Amount  *float64 `json:"amount"`
}

// Fields is the structured payload produced by the extraction stage.
// ExpiryDate, IssueDate and Brand are empty strings when unknown.
type Fields struct {
	ItemName   string     `json:"item_name"`
	ExpiryDate string     `json:"expiry_date,omitempty"`
	IssueDate  string     `json:"issue_date,omitempty"`
	Brand      string     `json:"brand,omitempty"`
	Reminders  []Reminder `json:"reminders,omitempty"`
}

// RawInput is the single unstructured item handed to a run. Exactly one of
// ImageURL, ImageBase64 or Text is meaningful.
type RawInput struct {
	ImageURL    string `json:"image_url,omitempty"`
	ImageBase64 string `json:"image_base64,omitempty"`
	Text        string `json:"text,omitempty"`
}

// Empty reports whether no usable input variant is present.
func (in RawInput) Empty() bool {
	return in.ImageURL == "" && in.ImageBase64 == "" && in.Text == ""
}

// String renders the input for storage alongside the item row.
func (in RawInput) String() string {
	switch {
	case in.ImageURL != "":
		return in.ImageURL
	case in.ImageBase64 != "":
		return fmt.Sprintf("base64 image (%d bytes)", len(in.ImageBase64))
	default:
		return in.Text
	}
}

// ErrorDetail records a failure caught during a run: which taxonomy kind it
// belongs to, a human-readable message, and the stage that produced it.
type ErrorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Stage   string `json:"stage"`
}

// RunMetadata carries execution diagnostics across stages. Trace is
// append-only: each stage appends exactly its own name once, in order.
type RunMetadata struct {
	RunID          string            `json:"run_id,omitempty"`
	StartedAt      time.Time         `json:"started_at,omitempty"`
	Trace          []string          `json:"nodes_executed,omitempty"`
	StageCompleted map[string]bool   `json:"stage_completed,omitempty"`
	Error          *ErrorDetail      `json:"error,omitempty"`
	SaveError      string            `json:"save_error,omitempty"`
	NotifyError    string            `json:"notify_error,omitempty"`
	Warnings       []string          `json:"warnings,omitempty"`
	SearchQueries  []string          `json:"search_queries,omitempty"`
	Reasoning      string            `json:"classification_reasoning,omitempty"`
	DefaultedCat   bool              `json:"category_defaulted,omitempty"`
	ItemID         string            `json:"item_id,omitempty"`
	TotalTokens    int               `json:"total_tokens,omitempty"`
	CostUSD        float64           `json:"cost_usd,omitempty"`
	Extra          map[string]string `json:"extra,omitempty"`
}

// WorkflowRecord is the evolving state threaded through one ingestion run.
// Stages receive it by value and return an updated copy; the orchestrator
// owns it for the duration of the run.
type WorkflowRecord struct {
	RawInput      RawInput      `json:"raw_input"`
	Fields        *Fields       `json:"processed_data"`
	Category      Category      `json:"category,omitempty"`
	ResearchNotes string        `json:"research_notes,omitempty"`
	Metadata      RunMetadata   `json:"metadata"`
	Signal        RoutingSignal `json:"next_action,omitempty"`
}

// MarkStage appends the stage name to the trace and flags it completed.
func (r WorkflowRecord) MarkStage(name string) WorkflowRecord {
	r.Metadata.Trace = append(append([]string(nil), r.Metadata.Trace...), name)
	completed := make(map[string]bool, len(r.Metadata.StageCompleted)+1)
	for k, v := range r.Metadata.StageCompleted {
		completed[k] = v
	}
	completed[name] = true
	r.Metadata.StageCompleted = completed
	return r
}

// WithError records an error detail and sets the error routing signal.
func (r WorkflowRecord) WithError(kind, stage, message string) WorkflowRecord {
	r.Metadata.Error = &ErrorDetail{Kind: kind, Message: message, Stage: stage}
	r.Signal = SignalError
	return r
}

// AddWarning appends a non-fatal warning to the run metadata.
func (r WorkflowRecord) AddWarning(msg string) WorkflowRecord {
	r.Metadata.Warnings = append(append([]string(nil), r.Metadata.Warnings...), msg)
	return r
}

// CloneFields returns a deep copy of the extracted fields, or nil.
func (r WorkflowRecord) CloneFields() *Fields {
	if r.Fields == nil {
		return nil
	}
	f := *r.Fields
	f.Reminders = append([]Reminder(nil), r.Fields.Reminders...)
	return &f
}
