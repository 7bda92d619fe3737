package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/omnimind/ingest/internal/db"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"insert_item":     `INSERT INTO items (id, name, category, expiry_date, brand, raw_input, metadata, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
	"insert_reminder": `INSERT INTO reminders (id, item_id, label, due_date, amount, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
	"get_item":        `SELECT id, name, category, expiry_date, brand, raw_input, metadata, created_at FROM items WHERE id = $1`,
	"list_reminders":  `SELECT id, item_id, label, due_date, amount, created_at FROM reminders WHERE item_id = $1 ORDER BY due_date`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS items (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name        TEXT,
	category    TEXT,
	expiry_date TEXT,
	brand       TEXT,
	raw_input   TEXT,
	metadata    JSONB,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS reminders (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	item_id    TEXT NOT NULL REFERENCES items(id),
	label      TEXT NOT NULL,
	due_date   TEXT NOT NULL,
	amount     DOUBLE PRECISION,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_items_category ON items(category);
CREATE INDEX IF NOT EXISTS idx_reminders_item_id ON reminders(item_id);
CREATE INDEX IF NOT EXISTS idx_reminders_due_date ON reminders(due_date);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) InsertItem(ctx context.Context, item Item) (*Item, error) {
	item.ID = uuid.New().String()
	item.CreatedAt = time.Now().UTC()

	metaJSON, err := json.Marshal(item.Metadata)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal metadata")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO items (id, name, category, expiry_date, brand, raw_input, metadata, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		item.ID, nullable(item.Name), nullable(item.Category), nullable(item.ExpiryDate),
		nullable(item.Brand), item.RawInput, metaJSON, item.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert item")
	}
	return &item, nil
}

func (s *PostgresStore) InsertReminder(ctx context.Context, rem Reminder) (*Reminder, error) {
	rem, err := canonicalizeReminder(rem)
	if err != nil {
		return nil, err
	}

	rem.ID = uuid.New().String()
	rem.CreatedAt = time.Now().UTC()

	_, err = s.pool.Exec(ctx,
		`INSERT INTO reminders (id, item_id, label, due_date, amount, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		rem.ID, rem.ItemID, rem.Label, rem.DueDate, rem.Amount, rem.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert reminder")
	}
	return &rem, nil
}

func (s *PostgresStore) GetItem(ctx context.Context, id string) (*Item, error) {
	var (
		item     Item
		name     *string
		category *string
		expiry   *string
		brand    *string
		metaJSON []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, category, expiry_date, brand, raw_input, metadata, created_at FROM items WHERE id = $1`,
		id,
	).Scan(&item.ID, &name, &category, &expiry, &brand, &item.RawInput, &metaJSON, &item.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get item")
	}

	item.Name = deref(name)
	item.Category = deref(category)
	item.ExpiryDate = deref(expiry)
	item.Brand = deref(brand)
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &item.Metadata); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal metadata")
		}
	}
	return &item, nil
}

func (s *PostgresStore) ListReminders(ctx context.Context, itemID string) ([]Reminder, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, item_id, label, due_date, amount, created_at FROM reminders WHERE item_id = $1 ORDER BY due_date`,
		itemID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list reminders")
	}
	defer rows.Close()

	var out []Reminder
	for rows.Next() {
		var rem Reminder
		if err := rows.Scan(&rem.ID, &rem.ItemID, &rem.Label, &rem.DueDate, &rem.Amount, &rem.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan reminder")
		}
		out = append(out, rem)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate reminders")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
