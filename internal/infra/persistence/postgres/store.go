// Package postgres persists the admission aggregate to a Postgres state table
// with JSONB payloads, reusing the in-memory store for transactions.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"admissions/internal/infra/persistence/snapshot"
	"admissions/pkg/domain"
)

const (
	defaultDriver = "pgx"
	// DefaultDSN is used when no DSN is configured.
	DefaultDSN = "postgres://localhost/admissions?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store snapshots the aggregate to Postgres after every committed transaction.
type Store struct {
	*snapshot.Store
	db *sql.DB
}

// NewStore opens a Postgres-backed store using dsn (falls back to DefaultDSN),
// ensures the state table exists and hydrates from any stored snapshot.
func NewStore(dsn string, engine *domain.RulesEngine, opts ...snapshot.Option) (*Store, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureStateTable(ctx, db); err != nil {
		return nil, err
	}
	return &Store{Store: snapshot.Open(ctx, &backend{db: db}, engine, opts...), db: db}, nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

func ensureStateTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload JSONB NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure state table: %w", err)
	}
	return nil
}

type backend struct {
	db *sql.DB
}

func (b *backend) Name() string { return "postgres" }

func (b *backend) Load(ctx context.Context) (domain.AppState, bool, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT bucket, payload FROM state`)
	if err != nil {
		return domain.AppState{}, false, fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()
	raw := make(map[string][]byte)
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return domain.AppState{}, false, fmt.Errorf("scan state: %w", err)
		}
		if len(payload) == 0 {
			continue
		}
		raw[bucket] = payload
	}
	if err := rows.Err(); err != nil {
		return domain.AppState{}, false, fmt.Errorf("iterate state: %w", err)
	}
	if len(raw) == 0 {
		return domain.AppState{}, false, nil
	}
	state, err := snapshot.DecodeBuckets(raw)
	return state, true, err
}

func (b *backend) Save(ctx context.Context, state domain.AppState) error {
	payloads, err := snapshot.EncodeBuckets(state)
	if err != nil {
		return err
	}
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range snapshot.Buckets() {
		if _, err := tx.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=EXCLUDED.payload`, bucket, payloads[bucket]); err != nil {
			return fmt.Errorf("upsert %s: %w", bucket, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
