package core

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"admissions/internal/infra/persistence/memory"
	"admissions/internal/infra/persistence/snapshot"
	"admissions/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageJSON     StorageDriver = "json"     // single JSON document on disk
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

type (
	Transaction     = domain.Transaction
	TransactionView = domain.TransactionView
	PersistentStore = domain.PersistentStore
)

// StorageConfig selects and locates a backend.
type StorageConfig struct {
	Driver           StorageDriver
	JSONPath         string
	SQLitePath       string
	PostgresDSN      string
	InitialInventory *int // nil keeps the seed stock
	OnSaveError      func(error)
}

// OpenPersistentStore opens the configured backend. Every backend starts from
// the seed when nothing is stored; a set InitialInventory, zero included,
// overrides the seed stock.
func OpenPersistentStore(cfg StorageConfig, engine *RulesEngine, logger zerolog.Logger) (PersistentStore, error) {
	seed := func(now time.Time) AppState {
		state := domain.SeedState(now)
		if cfg.InitialInventory != nil {
			state.FormInventory = *cfg.InitialInventory
		}
		return state
	}
	opts := []snapshot.Option{
		snapshot.WithLogger(logger),
		snapshot.WithSeed(seed),
		snapshot.WithSaveErrorHook(cfg.OnSaveError),
	}
	driver := cfg.Driver
	if driver == "" {
		driver = StorageJSON
	}
	logger.Info().Str("driver", string(driver)).Msg("opening admission store")
	switch driver {
	case StorageMemory:
		store := memory.NewStore(engine)
		store.ImportState(seed(time.Now()))
		return store, nil
	case StorageJSON:
		store, err := NewJSONStore(cfg.JSONPath, engine, opts...)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StorageSQLite:
		store, err := NewSQLiteStore(cfg.SQLitePath, engine, opts...)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StoragePostgres:
		store, err := NewPostgresStore(cfg.PostgresDSN, engine, opts...)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
