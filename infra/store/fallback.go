package store

import (
	"context"

	"github.com/fieldops/dispatchd/infra/logger"
)

// Config selects the storage backend for a run.
type Config struct {
	// Backend is "postgres" or "csv".
	Backend string `json:"backend"`
	// CSVDir is the CSV data directory, also used as the fallback target.
	CSVDir   string         `json:"csv_dir"`
	Postgres PostgresConfig `json:"postgres"`
}

// Store is a combined loader and writer with an optional Close.
type Store interface {
	Loader
	Writer
	Close() error
}

// csvCloser gives the CSV store the same lifecycle as the database store.
type csvCloser struct{ *CSVStore }

func (csvCloser) Close() error { return nil }

// Open builds the configured store. When the backend is postgres but the
// database cannot be reached, the run degrades to the CSV directory instead
// of failing, as long as one is configured.
func Open(ctx context.Context, cfg Config, log logger.Logger) (Store, error) {
	if cfg.Backend != "postgres" {
		return csvCloser{NewCSVStore(cfg.CSVDir)}, nil
	}
	pg, err := NewPostgresStore(ctx, cfg.Postgres)
	if err != nil {
		if cfg.CSVDir == "" {
			return nil, err
		}
		log.Warnf("postgres unavailable (%v), falling back to CSV directory %s", err, cfg.CSVDir)
		return csvCloser{NewCSVStore(cfg.CSVDir)}, nil
	}
	return pg, nil
}
