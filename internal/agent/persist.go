package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/omnimind/ingest/internal/model"
	"github.com/omnimind/ingest/internal/normalize"
	"github.com/omnimind/ingest/internal/store"
)

// fallbackReminderLabel names the reminder synthesized when extraction
// produced an expiry date but no reminders.
const fallbackReminderLabel = "single due date"

// fallbackAmountKeys are the request-metadata keys checked for a total
// amount when synthesizing the fallback reminder.
var fallbackAmountKeys = []string{"total_amount", "amount", "total"}

// persist writes the item and its reminders, then fires the webhook when
// the save succeeded and action is still pending. Nothing in here aborts
// the run; failures land in the run metadata.
func (a *Agent) persist(ctx context.Context, rec model.WorkflowRecord) model.WorkflowRecord {
	rec = rec.MarkStage(model.StagePersistence)
	log := zap.L().With(zap.String("run_id", rec.Metadata.RunID))

	item := store.Item{
		Category: string(rec.Category),
		RawInput: rec.RawInput.String(),
		Metadata: rec.Metadata,
	}
	if rec.Fields != nil {
		item.Name = rec.Fields.ItemName
		item.ExpiryDate = formatExpiryTimestamp(rec.Fields.ExpiryDate)
		item.Brand = rec.Fields.Brand
	}

	inserted, err := a.store.InsertItem(ctx, item)
	if err != nil {
		log.Warn("persist: item insert failed", zap.Error(err))
		rec.Metadata.SaveError = err.Error()
		// No webhook for an item that was never saved.
		return rec
	}

	rec.Metadata.ItemID = inserted.ID
	rec = a.persistReminders(ctx, rec, inserted.ID)
	log.Info("persist: item saved",
		zap.String("item_id", inserted.ID),
		zap.String("category", string(rec.Category)),
	)

	rec = a.notify(rec)
	return rec
}

// persistReminders resolves and writes each candidate reminder. A reminder
// whose due date cannot be resolved from its own date or the item's expiry
// date is dropped with a warning.
func (a *Agent) persistReminders(ctx context.Context, rec model.WorkflowRecord, itemID string) model.WorkflowRecord {
	if rec.Fields == nil {
		return rec
	}
	itemDue := normalize.Date(rec.Fields.ExpiryDate)

	candidates := rec.Fields.Reminders
	if len(candidates) == 0 && itemDue != "" {
		candidates = []model.Reminder{{
			Label:   fallbackReminderLabel,
			DueDate: itemDue,
			Amount:  fallbackAmount(rec.Metadata.Extra),
		}}
	}

	for _, rem := range candidates {
		due := normalize.Date(rem.DueDate)
		if due == "" {
			due = itemDue
		}
		if due == "" {
			rec = rec.AddWarning(fmt.Sprintf(
				"%s: reminder %q has no resolvable due date, dropped", KindValidationError, rem.Label))
			continue
		}

		_, err := a.store.InsertReminder(ctx, store.Reminder{
			ItemID:  itemID,
			Label:   rem.Label,
			DueDate: due,
			Amount:  rem.Amount,
		})
		if err != nil {
			zap.L().Warn("persist: reminder insert failed",
				zap.String("run_id", rec.Metadata.RunID),
				zap.String("label", rem.Label),
				zap.Error(err),
			)
			rec = rec.AddWarning(fmt.Sprintf(
				"%s: reminder %q insert failed: %v", KindPersistenceError, rem.Label, err))
		}
	}
	return rec
}

// notify fires the webhook when the run still has pending action. The call
// is detached and best effort; the run never waits on it in production.
func (a *Agent) notify(rec model.WorkflowRecord) model.WorkflowRecord {
	if a.notifier == nil || rec.Signal == model.SignalComplete || rec.Signal == "" {
		return rec
	}

	payload := webhookPayload(rec)
	timeout := 10 * time.Second
	if a.cfg.Webhook.TimeoutSecs > 0 {
		timeout = time.Duration(a.cfg.Webhook.TimeoutSecs) * time.Second
	}
	runID := rec.Metadata.RunID

	send := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return a.notifier.Notify(ctx, payload)
	}

	if a.notifyAsync {
		go func() {
			if err := send(); err != nil {
				zap.L().Warn("persist: webhook notify failed",
					zap.String("run_id", runID), zap.Error(err))
			}
		}()
		return rec
	}

	if err := send(); err != nil {
		zap.L().Warn("persist: webhook notify failed",
			zap.String("run_id", runID), zap.Error(err))
		rec.Metadata.NotifyError = err.Error()
	}
	return rec
}

func webhookPayload(rec model.WorkflowRecord) map[string]any {
	payload := map[string]any{
		"next_action":    rec.Signal,
		"category":       rec.Category,
		"processed_data": rec.Fields,
		"metadata":       rec.Metadata,
	}
	if rec.Fields != nil {
		payload["item_name"] = rec.Fields.ItemName
		payload["expiry_date"] = rec.Fields.ExpiryDate
		payload["brand"] = rec.Fields.Brand
	}
	return payload
}

// formatExpiryTimestamp renders a canonical date as an ISO timestamp for
// the items table. Strings already shaped like timestamps pass through.
func formatExpiryTimestamp(expiry string) string {
	if expiry == "" {
		return ""
	}
	if strings.Contains(expiry, "T") || strings.HasSuffix(expiry, "Z") {
		return expiry
	}
	t, err := time.Parse("2006-01-02", expiry)
	if err != nil {
		return expiry
	}
	return t.Format("2006-01-02T15:04:05") + "Z"
}

// fallbackAmount scans the request metadata for a usable total amount.
func fallbackAmount(extra map[string]string) *float64 {
	for _, key := range fallbackAmountKeys {
		if v, ok := extra[key]; ok && v != "" {
			if amount := normalize.Currency(v); amount != nil {
				return amount
			}
		}
	}
	return nil
}
