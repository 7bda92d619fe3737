package model

import (
	"net/url"
	"strings"
)

// IngestRequest is the body accepted by POST /ingest. At least one input
// variant must be provided; InputData is a convenience field treated as an
// image URL when it parses as one, otherwise as free text.
type IngestRequest struct {
	InputData   string            `json:"input_data,omitempty"`
	ImageURL    string            `json:"image_url,omitempty"`
	ImageBase64 string            `json:"image_base64,omitempty"`
	Text        string            `json:"text,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// HasInput reports whether any input variant was supplied.
func (req IngestRequest) HasInput() bool {
	return req.InputData != "" || req.ImageURL != "" || req.ImageBase64 != "" || req.Text != ""
}

// ToRawInput maps the request onto the workflow input. InputData never
// overrides an explicitly set field: a data URL fills ImageBase64, an
// http(s) URL fills ImageURL, anything else fills Text.
func (req IngestRequest) ToRawInput() RawInput {
	in := RawInput{
		ImageURL:    req.ImageURL,
		ImageBase64: req.ImageBase64,
		Text:        req.Text,
	}
	if req.InputData == "" {
		return in
	}
	switch {
	case strings.HasPrefix(req.InputData, "data:"):
		if in.ImageBase64 == "" {
			in.ImageBase64 = req.InputData
		}
	case looksLikeURL(req.InputData):
		if in.ImageURL == "" {
			in.ImageURL = req.InputData
		}
	default:
		if in.Text == "" {
			in.Text = req.InputData
		}
	}
	return in
}

func looksLikeURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// IngestResponse mirrors the final WorkflowRecord for the caller.
type IngestResponse struct {
	RawInput      RawInput      `json:"raw_input"`
	ProcessedData *Fields       `json:"processed_data"`
	Category      Category      `json:"category,omitempty"`
	ResearchNotes string        `json:"research_notes,omitempty"`
	Metadata      RunMetadata   `json:"metadata"`
	NextAction    RoutingSignal `json:"next_action,omitempty"`
}

// ResponseFromRecord maps a finished record to the ingest response shape.
func ResponseFromRecord(rec WorkflowRecord) IngestResponse {
	return IngestResponse{
		RawInput:      rec.RawInput,
		ProcessedData: rec.Fields,
		Category:      rec.Category,
		ResearchNotes: rec.ResearchNotes,
		Metadata:      rec.Metadata,
		NextAction:    rec.Signal,
	}
}
