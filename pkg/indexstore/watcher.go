package indexstore

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/g5t/McStasScript/pkg/database"
)

// Opener reloads a dump database from disk.
type Opener func() (*database.Database, error)

// Watcher is a background service that periodically reloads a dump
// database and mirrors it into the index store.
type Watcher interface {
	Start(ctx context.Context) error
	Stop() error
}

// Compile-time interface check.
var _ Watcher = (*watcher)(nil)

type watcher struct {
	log      logrus.FieldLogger
	store    Store
	open     Opener
	interval time.Duration
	prune    bool
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewWatcher creates a new background index watcher.
func NewWatcher(
	log logrus.FieldLogger,
	store Store,
	open Opener,
	interval time.Duration,
	prune bool,
) Watcher {
	return &watcher{
		log:      log.WithField("component", "index-watcher"),
		store:    store,
		open:     open,
		interval: interval,
		prune:    prune,
		done:     make(chan struct{}),
	}
}

// Start launches a goroutine that syncs immediately and then on every
// tick of the configured interval.
func (w *watcher) Start(ctx context.Context) error {
	w.log.WithField("interval", w.interval.String()).Info("Starting index watcher")

	w.wg.Add(1)

	go func() {
		defer w.wg.Done()

		w.runPass(ctx)

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				w.runPass(ctx)
			case <-w.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop signals the watcher goroutine to stop and waits for it.
func (w *watcher) Stop() error {
	close(w.done)
	w.wg.Wait()

	w.log.Info("Index watcher stopped")

	return nil
}

// runPass reloads the database and syncs it. Failures are logged and
// retried on the next tick.
func (w *watcher) runPass(ctx context.Context) {
	start := time.Now()

	db, err := w.open()
	if err != nil {
		w.log.WithError(err).Warn("Reloading database failed")

		return
	}

	n, err := Sync(ctx, w.log, w.store, db, w.prune)
	if err != nil {
		w.log.WithError(err).Warn("Index pass failed")

		return
	}

	w.log.WithFields(logrus.Fields{
		"records":  n,
		"duration": time.Since(start).Round(time.Millisecond),
	}).Debug("Index pass completed")
}
