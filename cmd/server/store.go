package main

import (
	"context"
	"fmt"

	"github.com/rpattn/wellhistory/internal/config"
	"github.com/rpattn/wellhistory/internal/db"
	"github.com/rpattn/wellhistory/internal/logging"
	"github.com/rpattn/wellhistory/internal/repository"
	"github.com/rpattn/wellhistory/internal/repository/fixtures"
	"github.com/rpattn/wellhistory/internal/repository/memory"
	"github.com/rpattn/wellhistory/internal/repository/sqlite"
)

// store is a record store that can also be seeded.
type store interface {
	repository.RecordStore
	repository.FixtureLoader
}

// openStore opens the record store selected by the database driver. The
// memory store starts out seeded with the configured fixture, or the sample
// extract when none is configured.
func openStore(ctx context.Context, cfg config.Config) (store, func(), error) {
	logger := logging.From(ctx)

	switch cfg.Database.Driver {
	case config.DriverSQLite:
		s, err := sqlite.Open(cfg.Database.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		logger.Infof("using sqlite store at %s", cfg.Database.SQLitePath)
		return s, func() { _ = s.Close() }, nil

	case config.DriverMemory:
		s, err := memory.New()
		if err != nil {
			return nil, nil, err
		}
		fixture, err := readFixture(cfg.History.FixturePath)
		if err != nil {
			return nil, nil, err
		}
		if err := s.LoadFixture(ctx, fixture); err != nil {
			return nil, nil, err
		}
		logger.Infof("using memory store seeded with %d revisions", len(fixture.Revisions))
		return s, func() { _ = s.Close() }, nil

	default:
		conn, err := db.NewConnection(ctx, cfg.Database.Postgres())
		if err != nil {
			return nil, nil, err
		}
		logger.Infof("using postgres store at %s:%d/%s", cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName)
		return repository.NewPostgresStore(conn), conn.Close, nil
	}
}

func readFixture(path string) (repository.Fixture, error) {
	if path == "" {
		fixture, err := fixtures.Sample()
		if err != nil {
			return repository.Fixture{}, fmt.Errorf("failed to read sample fixture: %w", err)
		}
		return fixture, nil
	}
	return repository.ReadFixtureFile(path)
}
