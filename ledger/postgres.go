package ledger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"sidequest/faults"
)

// Postgres appends awards to an xp_ledger table.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Postgres ledger on an existing pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Connect opens a pool for url and verifies it with a ping.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// EnsureTable creates the ledger table if it doesn't exist.
func (p *Postgres) EnsureTable(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS xp_ledger (
			id         TEXT PRIMARY KEY,
			task_id    TEXT NOT NULL,
			title      TEXT NOT NULL,
			points     INTEGER NOT NULL,
			source     TEXT NOT NULL DEFAULT '',
			reason     TEXT NOT NULL DEFAULT '',
			awarded_at TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_xp_ledger_awarded_at ON xp_ledger(awarded_at)`)
	return err
}

// Append implements the Ledger interface.
func (p *Postgres) Append(ctx context.Context, entry Entry) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO xp_ledger (id, task_id, title, points, source, reason, awarded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.TaskID, entry.Title, entry.Points, entry.Source, entry.Reason, entry.AwardedAt)
	if err != nil {
		return faults.WrapWithCode(err, faults.CodeLedgerWrite, "insert ledger row "+entry.ID)
	}
	return nil
}
