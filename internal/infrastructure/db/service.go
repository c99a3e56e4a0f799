package db

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/ark-network/coinjoin/internal/core/domain"
	"github.com/ark-network/coinjoin/internal/core/ports"
	badgerdb "github.com/ark-network/coinjoin/internal/infrastructure/db/badger"
	sqlitedb "github.com/ark-network/coinjoin/internal/infrastructure/db/sqlite"
	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

var (
	roundStoreTypes = map[string]func(...interface{}) (domain.RoundRepository, error){
		"badger": badgerdb.NewRoundRepository,
		"sqlite": sqlitedb.NewRoundRepository,
	}
	blameStoreTypes = map[string]func(...interface{}) (domain.BlameRepository, error){
		"badger": badgerdb.NewBlameRepository,
		"sqlite": sqlitedb.NewBlameRepository,
	}
)

const (
	sqliteDbFile = "sqlite.db"
)

// ServiceConfig carries the base directory and an optional badger logger for
// badger, the base directory only for sqlite. An empty base directory makes
// badger run in memory.
type ServiceConfig struct {
	DataStoreType   string
	DataStoreConfig []interface{}
}

type service struct {
	roundStore domain.RoundRepository
	blameStore domain.BlameRepository
}

func NewService(config ServiceConfig) (ports.RepoManager, error) {
	roundStoreFactory, ok := roundStoreTypes[config.DataStoreType]
	if !ok {
		return nil, fmt.Errorf("invalid data store type: %s", config.DataStoreType)
	}
	blameStoreFactory, ok := blameStoreTypes[config.DataStoreType]
	if !ok {
		return nil, fmt.Errorf("invalid data store type: %s", config.DataStoreType)
	}

	storeConfig := config.DataStoreConfig
	if config.DataStoreType == "sqlite" {
		if len(storeConfig) < 1 {
			return nil, errors.New("invalid config")
		}
		baseDir, ok := storeConfig[0].(string)
		if !ok {
			return nil, errors.New("invalid config")
		}
		db, err := sqlitedb.OpenDb(filepath.Join(baseDir, sqliteDbFile))
		if err != nil {
			return nil, err
		}
		if err := migrateSqlite(db); err != nil {
			return nil, fmt.Errorf("failed to migrate sqlite: %w", err)
		}
		storeConfig = []interface{}{db}
	}

	roundStore, err := roundStoreFactory(storeConfig...)
	if err != nil {
		return nil, fmt.Errorf("failed to create round store: %w", err)
	}
	blameStore, err := blameStoreFactory(storeConfig...)
	if err != nil {
		return nil, fmt.Errorf("failed to create blame store: %w", err)
	}

	return &service{
		roundStore: roundStore,
		blameStore: blameStore,
	}, nil
}

func (s *service) Rounds() domain.RoundRepository {
	return s.roundStore
}

func (s *service) Blames() domain.BlameRepository {
	return s.blameStore
}

func (s *service) Close() {
	s.roundStore.Close()
	s.blameStore.Close()
}

func migrateSqlite(db *sql.DB) error {
	driver, err := sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}

	source, err := iofs.New(sqlitedb.Migrations, "migration")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to migrate up: %w", err)
	}

	return nil
}
