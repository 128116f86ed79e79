package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the operator journal: who started, promoted or rolled back each
// deployment, and the note they left. The backend keeps the deployment
// records themselves.
type DB struct {
	pool *pgxpool.Pool
}

func Connect(databaseURL string) (*DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &DB{pool: pool}, nil
}

func (db *DB) Close() {
	db.pool.Close()
}

func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

func Migrate(db *DB) error {
	ctx := context.Background()
	_, err := db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS journal (
			id            BIGSERIAL PRIMARY KEY,
			deployment_id TEXT NOT NULL,
			service_id    TEXT NOT NULL DEFAULT '',
			action        TEXT NOT NULL,
			author        TEXT NOT NULL DEFAULT '',
			note          TEXT NOT NULL DEFAULT '',
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_journal_deployment ON journal(deployment_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_journal_created ON journal(created_at);
	`)
	return err
}

// Journal actions.
const (
	ActionStarted    = "started"
	ActionSucceeded  = "succeeded"
	ActionFailed     = "failed"
	ActionPromoted   = "promoted"
	ActionRolledBack = "rolled_back"
	ActionDeleted    = "deleted"
)

type JournalEntry struct {
	ID           int64     `json:"id"`
	DeploymentID string    `json:"deploymentId"`
	ServiceID    string    `json:"serviceId"`
	Action       string    `json:"action"`
	Author       string    `json:"author"`
	Note         string    `json:"note"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (db *DB) Append(ctx context.Context, e JournalEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO journal (deployment_id, service_id, action, author, note, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.DeploymentID, e.ServiceID, e.Action, e.Author, e.Note, e.CreatedAt,
	)
	return err
}

// ListByDeployment returns a deployment's entries, newest first.
func (db *DB) ListByDeployment(ctx context.Context, deploymentID string) ([]JournalEntry, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, deployment_id, service_id, action, author, note, created_at
		 FROM journal WHERE deployment_id = $1 ORDER BY created_at DESC, id DESC`,
		deploymentID,
	)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

// Latest returns the most recent entry per deployment.
func (db *DB) Latest(ctx context.Context) (map[string]JournalEntry, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT DISTINCT ON (deployment_id) id, deployment_id, service_id, action, author, note, created_at
		 FROM journal ORDER BY deployment_id, created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, err
	}
	entries, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}
	out := make(map[string]JournalEntry, len(entries))
	for _, e := range entries {
		out[e.DeploymentID] = e
	}
	return out, nil
}

// Starter returns the author and note of the entry that started a deployment.
func (db *DB) Starter(ctx context.Context) (map[string]JournalEntry, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT DISTINCT ON (deployment_id) id, deployment_id, service_id, action, author, note, created_at
		 FROM journal WHERE action = $1 ORDER BY deployment_id, created_at ASC, id ASC`,
		ActionStarted,
	)
	if err != nil {
		return nil, err
	}
	entries, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}
	out := make(map[string]JournalEntry, len(entries))
	for _, e := range entries {
		out[e.DeploymentID] = e
	}
	return out, nil
}

// Prune deletes entries older than the cutoff and reports how many went.
func (db *DB) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := db.pool.Exec(ctx, `DELETE FROM journal WHERE created_at < $1`, olderThan)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanEntries(rows pgx.Rows) ([]JournalEntry, error) {
	defer rows.Close()
	var entries []JournalEntry
	for rows.Next() {
		var e JournalEntry
		if err := rows.Scan(&e.ID, &e.DeploymentID, &e.ServiceID, &e.Action, &e.Author, &e.Note, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
