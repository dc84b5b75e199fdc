// Package jsonfile persists the admission aggregate as a single JSON document
// on local disk.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"admissions/internal/infra/persistence/snapshot"
	"admissions/pkg/domain"
)

// DefaultPath names the document after the storage key of the aggregate.
const DefaultPath = "shs_admission_data_v1.json"

// Store snapshots the aggregate to a JSON file after every committed transaction.
type Store struct {
	*snapshot.Store
	path string
}

// NewStore hydrates from the file at path, creating parent directories.
func NewStore(path string, engine *domain.RulesEngine, opts ...snapshot.Option) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	return &Store{
		Store: snapshot.Open(context.Background(), &backend{path: path}, engine, opts...),
		path:  path,
	}, nil
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

type backend struct {
	path string
}

func (b *backend) Name() string { return "json" }

func (b *backend) Load(context.Context) (domain.AppState, bool, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, os.ErrNotExist) {
		return domain.AppState{}, false, nil
	}
	if err != nil {
		return domain.AppState{}, false, fmt.Errorf("read %s: %w", b.path, err)
	}
	if len(data) == 0 {
		return domain.AppState{}, false, nil
	}
	var state domain.AppState
	if err := json.Unmarshal(data, &state); err != nil {
		return domain.AppState{}, true, fmt.Errorf("decode %s: %w", b.path, err)
	}
	return state, true, nil
}

// Save writes to a sibling temp file and renames it over the target so a
// crash never leaves a half-written document.
func (b *backend) Save(_ context.Context, state domain.AppState) error {
	if state.Students == nil {
		state.Students = []domain.Student{}
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(b.path), filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpName, b.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
