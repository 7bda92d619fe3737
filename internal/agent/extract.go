package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/omnimind/ingest/internal/model"
	"github.com/omnimind/ingest/internal/normalize"
	"github.com/omnimind/ingest/pkg/anthropic"
)

const extractSystemPrompt = `You are an expert at reading utility bills, receipts, and product labels, in English or Spanish. Distinguish clearly between the issue date (fecha de emisión) and the due date (fecha de vencimiento). Your goal is to extract the due date for the expiry_date field. If there are multiple due dates, pick the first one (primary due date).

For utility bills (electricity, water, internet), look for labels like 'vencimiento', 'fecha de vencimiento', 'vence el', or 'pagar hasta'. Do not confuse these with issue or emission dates.

Date format rules:
- Always return dates in yyyy-mm-dd format.
- If you find a partial date in MM/YY or MM/YYYY format, convert it to a full date using the last day of that month (e.g. 01/27 becomes 2027-01-31, 03/2025 becomes 2025-03-31).
- Never return partial dates.

Always populate the reminders list when any due date is found. If you detect multiple payment installments (cuota 1, cuota 2) or multiple due dates (1° vencimiento, 2° vencimiento), extract all of them with a clear label for each. If there is only a single due date (a simple bill or a food item with an expiration), create one reminder labeled "single due date".

Return only valid JSON in this shape:
{
    "item_name": "name of the item",
    "expiry_date": "primary due date in yyyy-mm-dd format, or null",
    "issue_date": "issue date in yyyy-mm-dd format, or null",
    "brand": "brand name if visible, or null",
    "reminders": [
        {
            "label": "clear label; use 'single due date' for a lone due date, or specific labels like 'Cuota 1' for installments",
            "due_date": "due date in yyyy-mm-dd format",
            "amount": "amount to pay as written (e.g. '100.00', '$ 13.234,20'), or null"
        }
    ]
}
If you cannot determine a value, use null.`

const extractImagePrompt = `Analyze this image and extract the item information as JSON.`

const extractTextPrompt = `Extract the item information from this text as JSON:

%s`

// extractedPayload mirrors the JSON shape requested from the model. Amount
// arrives as a string, a number, or null.
type extractedPayload struct {
	ItemName   string              `json:"item_name"`
	ExpiryDate string              `json:"expiry_date"`
	IssueDate  string              `json:"issue_date"`
	Brand      string              `json:"brand"`
	Reminders  []extractedReminder `json:"reminders"`
}

type extractedReminder struct {
	Label   string          `json:"label"`
	DueDate string          `json:"due_date"`
	Amount  json.RawMessage `json:"amount"`
}

// extract turns the raw input into structured fields via one completion
// call. Failures here are fatal to the run.
func (a *Agent) extract(ctx context.Context, rec model.WorkflowRecord) model.WorkflowRecord {
	rec = rec.MarkStage(model.StageExtraction)

	if rec.RawInput.Empty() {
		return rec.WithError(KindInputError, model.StageExtraction,
			"no usable input: need image_url, image_base64, or text")
	}

	msg := anthropic.Message{Role: "user"}
	textPath := false
	switch {
	case rec.RawInput.ImageURL != "":
		msg.Content = extractImagePrompt
		msg.Image = &anthropic.ImageAttachment{URL: rec.RawInput.ImageURL}
	case rec.RawInput.ImageBase64 != "":
		data, mediaType := stripDataURL(rec.RawInput.ImageBase64)
		msg.Content = extractImagePrompt
		msg.Image = &anthropic.ImageAttachment{Base64: data, MediaType: mediaType}
	default:
		textPath = true
		msg.Content = fmt.Sprintf(extractTextPrompt, rec.RawInput.Text)
	}

	resp, err := a.completion.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.cfg.Anthropic.Model,
		MaxTokens: int64(a.cfg.Anthropic.MaxTokens),
		System:    extractSystemPrompt,
		Messages:  []anthropic.Message{msg},
	})
	if err != nil {
		return rec.WithError(KindParseError, model.StageExtraction, err.Error())
	}
	a.recordUsage(&rec, resp)

	var payload extractedPayload
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text())), &payload); err != nil {
		return rec.WithError(KindParseError, model.StageExtraction,
			"response is not the expected JSON structure: "+err.Error())
	}

	fields := &model.Fields{
		ItemName:   payload.ItemName,
		ExpiryDate: payload.ExpiryDate,
		IssueDate:  payload.IssueDate,
		Brand:      payload.Brand,
	}
	for _, r := range payload.Reminders {
		rem := model.Reminder{
			Label:   r.Label,
			DueDate: r.DueDate,
			Amount:  parseAmount(r.Amount),
		}
		// The image path trusts the model's date format; the text path
		// repairs dates locally.
		if textPath {
			rem.DueDate = normalize.Date(rem.DueDate)
		}
		fields.Reminders = append(fields.Reminders, rem)
	}

	zap.L().Debug("extract: fields extracted",
		zap.String("run_id", rec.Metadata.RunID),
		zap.String("item_name", fields.ItemName),
		zap.Int("reminders", len(fields.Reminders)),
	)

	rec.Fields = fields
	rec.Signal = model.SignalContinue
	return rec
}

// stripDataURL removes a data-URL prefix from a base64 payload and reports
// the declared media type, if any.
func stripDataURL(s string) (data, mediaType string) {
	if !strings.HasPrefix(s, "data:") {
		return s, ""
	}
	header, rest, ok := strings.Cut(s, ",")
	if !ok {
		return s, ""
	}
	header = strings.TrimPrefix(header, "data:")
	if idx := strings.Index(header, ";"); idx >= 0 {
		header = header[:idx]
	}
	return rest, header
}

// parseAmount accepts the amount as a JSON number or a currency string.
func parseAmount(raw json.RawMessage) *float64 {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if v, err := strconv.ParseFloat(string(raw), 64); err == nil {
		return &v
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	return normalize.Currency(s)
}
