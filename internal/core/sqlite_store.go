package core

import (
	"admissions/internal/infra/persistence/snapshot"
	"admissions/internal/infra/persistence/sqlite"
)

// NewSQLiteStore opens the embedded sqlite backend at path (empty selects
// sqlite.DefaultPath).
func NewSQLiteStore(path string, engine *RulesEngine, opts ...snapshot.Option) (*sqlite.Store, error) {
	return sqlite.NewStore(path, engine, opts...)
}
