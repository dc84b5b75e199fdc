package core

import (
	"admissions/internal/infra/persistence/postgres"
	"admissions/internal/infra/persistence/snapshot"
)

// NewPostgresStore opens the PostgreSQL backend described by dsn.
func NewPostgresStore(dsn string, engine *RulesEngine, opts ...snapshot.Option) (*postgres.Store, error) {
	return postgres.NewStore(dsn, engine, opts...)
}
