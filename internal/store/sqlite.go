package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS items (
	id          TEXT PRIMARY KEY,
	name        TEXT,
	category    TEXT,
	expiry_date TEXT,
	brand       TEXT,
	raw_input   TEXT,
	metadata    TEXT,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS reminders (
	id         TEXT PRIMARY KEY,
	item_id    TEXT NOT NULL REFERENCES items(id),
	label      TEXT NOT NULL,
	due_date   TEXT NOT NULL,
	amount     REAL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_items_category ON items(category);
CREATE INDEX IF NOT EXISTS idx_reminders_item_id ON reminders(item_id);
CREATE INDEX IF NOT EXISTS idx_reminders_due_date ON reminders(due_date);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InsertItem(ctx context.Context, item Item) (*Item, error) {
	item.ID = uuid.New().String()
	item.CreatedAt = time.Now().UTC()

	metaJSON, err := json.Marshal(item.Metadata)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal metadata")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO items (id, name, category, expiry_date, brand, raw_input, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, nullable(item.Name), nullable(item.Category), nullable(item.ExpiryDate),
		nullable(item.Brand), item.RawInput, string(metaJSON), item.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert item")
	}
	return &item, nil
}

func (s *SQLiteStore) InsertReminder(ctx context.Context, rem Reminder) (*Reminder, error) {
	rem, err := canonicalizeReminder(rem)
	if err != nil {
		return nil, err
	}

	rem.ID = uuid.New().String()
	rem.CreatedAt = time.Now().UTC()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reminders (id, item_id, label, due_date, amount, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rem.ID, rem.ItemID, rem.Label, rem.DueDate, rem.Amount, rem.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert reminder")
	}
	return &rem, nil
}

func (s *SQLiteStore) GetItem(ctx context.Context, id string) (*Item, error) {
	var (
		item     Item
		name     sql.NullString
		category sql.NullString
		expiry   sql.NullString
		brand    sql.NullString
		raw      sql.NullString
		metaJSON sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, category, expiry_date, brand, raw_input, metadata, created_at FROM items WHERE id = ?`,
		id,
	).Scan(&item.ID, &name, &category, &expiry, &brand, &raw, &metaJSON, &item.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get item")
	}

	item.Name = name.String
	item.Category = category.String
	item.ExpiryDate = expiry.String
	item.Brand = brand.String
	item.RawInput = raw.String
	if metaJSON.Valid && metaJSON.String != "" {
		if err := json.Unmarshal([]byte(metaJSON.String), &item.Metadata); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal metadata")
		}
	}
	return &item, nil
}

func (s *SQLiteStore) ListReminders(ctx context.Context, itemID string) ([]Reminder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, item_id, label, due_date, amount, created_at FROM reminders WHERE item_id = ? ORDER BY due_date`,
		itemID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list reminders")
	}
	defer rows.Close()

	var out []Reminder
	for rows.Next() {
		var rem Reminder
		var amount sql.NullFloat64
		if err := rows.Scan(&rem.ID, &rem.ItemID, &rem.Label, &rem.DueDate, &amount, &rem.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan reminder")
		}
		if amount.Valid {
			v := amount.Float64
			rem.Amount = &v
		}
		out = append(out, rem)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate reminders")
}
