// Package store persists ingested items and their reminders. Two drivers
// are available: Postgres (pgxpool) and SQLite (modernc).
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/omnimind/ingest/internal/model"
	"github.com/omnimind/ingest/internal/normalize"
)

// ErrNullDueDate is returned when a reminder insert is attempted without a
// resolvable due date. Reminders are useless without one.
var ErrNullDueDate = eris.New("store: reminder due_date is null")

// Item is a row in the items table. Empty ExpiryDate and Brand persist as
// NULL.
type Item struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Category   string            `json:"category"`
	ExpiryDate string            `json:"expiry_date,omitempty"`
	Brand      string            `json:"brand,omitempty"`
	RawInput   string            `json:"raw_input"`
	Metadata   model.RunMetadata `json:"metadata"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Reminder is a row in the reminders table. AmountText, when set and Amount
// is nil, is canonicalized through the currency parser before the write.
type Reminder struct {
	ID         string    `json:"id"`
	ItemID     string    `json:"item_id"`
	Label      string    `json:"label"`
	DueDate    string    `json:"due_date"`
	Amount     *float64  `json:"amount,omitempty"`
	AmountText string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store is the persistence interface consumed by the agent.
type Store interface {
	InsertItem(ctx context.Context, item Item) (*Item, error)
	InsertReminder(ctx context.Context, rem Reminder) (*Reminder, error)
	GetItem(ctx context.Context, id string) (*Item, error)
	ListReminders(ctx context.Context, itemID string) ([]Reminder, error)
	Migrate(ctx context.Context) error
	Close() error
}

// canonicalizeReminder re-runs the normalizers on the reminder as a
// defense-in-depth step at the storage boundary, and rejects the insert
// when the due date still does not resolve.
func canonicalizeReminder(rem Reminder) (Reminder, error) {
	if rem.Amount == nil && rem.AmountText != "" {
		rem.Amount = normalize.Currency(rem.AmountText)
	}
	fixed := normalize.Date(rem.DueDate)
	if fixed == "" {
		return rem, ErrNullDueDate
	}
	rem.DueDate = fixed
	return rem, nil
}

// nullable maps "" to a NULL-able SQL argument.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
