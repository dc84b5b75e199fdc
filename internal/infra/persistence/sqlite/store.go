// Package sqlite persists the admission aggregate to a single SQLite table,
// one JSON payload per bucket.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"admissions/internal/infra/persistence/snapshot"
	"admissions/pkg/domain"
)

// DefaultPath is used when no path is configured.
const DefaultPath = "admissions.db"

// Store snapshots the aggregate to SQLite after every committed transaction.
type Store struct {
	*snapshot.Store
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the database at path and hydrates the store.
func NewStore(path string, engine *domain.RulesEngine, opts ...snapshot.Option) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create state table: %w", err)
	}
	backend := &backend{db: db}
	return &Store{
		Store: snapshot.Open(context.Background(), backend, engine, opts...),
		db:    db,
		path:  path,
	}, nil
}

type backend struct {
	db *sql.DB
}

func (b *backend) Name() string { return "sqlite" }

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
			return domain.AppState{}, false, fmt.Errorf("scan: %w", err)
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

func (b *backend) Save(ctx context.Context, state domain.AppState) (retErr error) {
	payloads, err := snapshot.EncodeBuckets(state)
	if err != nil {
		return err
	}
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range snapshot.Buckets() {
		if _, err := tx.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, bucket, payloads[bucket]); err != nil {
			return fmt.Errorf("upsert %s: %w", bucket, err)
		}
	}
	return tx.Commit()
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }
