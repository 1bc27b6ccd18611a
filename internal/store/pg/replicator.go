package pg

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"fleetdesk.org/internal/store"
)

// Replicator mirrors store snapshots into a Postgres table. One row per
// logical key; last writer wins, matching the remote-sync semantics of the
// local-first store.
type Replicator struct {
	db *sql.DB
}

var _ store.Replicator = (*Replicator)(nil)

// Open connects to Postgres using the pgx stdlib driver.
func Open(dsn string) (*Replicator, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &Replicator{db: db}, nil
}

// NewWithDB wraps an existing connection pool. Used by tests.
func NewWithDB(db *sql.DB) *Replicator { return &Replicator{db: db} }

func (r *Replicator) Close() error { return r.db.Close() }

// DB exposes the pool for the readiness probe.
func (r *Replicator) DB() *sql.DB { return r.db }

// Ping reports backend reachability for the readiness probe.
func (r *Replicator) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

// EnsureSchema creates the replica table when it does not exist yet.
func (r *Replicator) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		create table if not exists replica_documents (
			key        text primary key,
			snapshot   jsonb not null,
			updated_at timestamptz not null default now()
		)`)
	return err
}

// TrySync upserts the snapshot for key. Callers treat any error as a logged,
// non-fatal outcome.
func (r *Replicator) TrySync(ctx context.Context, key string, snapshot []byte) error {
	_, err := r.db.ExecContext(ctx, `
		insert into replica_documents(key, snapshot, updated_at)
		values ($1, $2, now())
		on conflict (key) do update
		set snapshot = excluded.snapshot, updated_at = now()
	`, key, snapshot)
	return err
}
