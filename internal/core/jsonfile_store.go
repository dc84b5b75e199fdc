package core

import (
	"admissions/internal/infra/persistence/jsonfile"
	"admissions/internal/infra/persistence/snapshot"
)

// NewJSONStore opens the single-document file backend at path (empty selects
// jsonfile.DefaultPath).
func NewJSONStore(path string, engine *RulesEngine, opts ...snapshot.Option) (*jsonfile.Store, error) {
	return jsonfile.NewStore(path, engine, opts...)
}
