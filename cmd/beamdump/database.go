package main

import (
	"context"
	"fmt"

	"github.com/g5t/McStasScript/pkg/database"
	"github.com/g5t/McStasScript/pkg/fsutil"
	"github.com/g5t/McStasScript/pkg/indexstore"
)

// owner parses the configured record owner, nil when unset.
func owner() (*fsutil.OwnerConfig, error) {
	if cfg.Database.Owner == "" {
		return nil, nil
	}

	o, err := fsutil.ParseOwner(cfg.Database.Owner)
	if err != nil {
		return nil, fmt.Errorf("database.owner: %w", err)
	}

	return o, nil
}

// openDatabase opens the configured dump database.
func openDatabase() (*database.Database, error) {
	o, err := owner()
	if err != nil {
		return nil, err
	}

	db, err := database.Open(log, cfg.Database.Name, cfg.Database.Path, &database.Options{
		SkipMalformed: cfg.Database.SkipMalformed,
		Owner:         o,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.LoadErrors(); err != nil {
		log.WithError(err).Warn("Some records were skipped while loading")
	}

	return db, nil
}

// withIndex starts the configured index store, runs fn and stops it.
func withIndex(ctx context.Context, fn func(indexstore.Store) error) error {
	if !cfg.Index.Enabled {
		return fmt.Errorf("index is not enabled in config (index.enabled)")
	}

	store := indexstore.NewStore(log, &cfg.Index.Database)

	if err := store.Start(ctx); err != nil {
		return fmt.Errorf("starting index store: %w", err)
	}

	defer func() {
		if err := store.Stop(); err != nil {
			log.WithError(err).Warn("Failed to stop index store")
		}
	}()

	return fn(store)
}
