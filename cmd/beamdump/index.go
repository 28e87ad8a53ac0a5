package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/g5t/McStasScript/pkg/indexstore"
)

var (
	indexPrune bool
	indexWatch time.Duration
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Mirror the database into the SQL index",
	Long: `Upsert every record of the database into the configured SQL index
(SQLite or PostgreSQL). The JSON tree stays the source of truth.`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)

	indexCmd.Flags().BoolVar(&indexPrune, "prune", false,
		"drop indexed rows of this database before syncing")
	indexCmd.Flags().DurationVar(&indexWatch, "watch", 0,
		"keep running and re-sync at this interval (e.g. 30s)")
}

func runIndex(cmd *cobra.Command, args []string) error {
	if indexWatch > 0 {
		return runIndexWatch(cmd.Context())
	}

	db, err := openDatabase()
	if err != nil {
		return err
	}

	return withIndex(cmd.Context(), func(s indexstore.Store) error {
		n, err := indexstore.Sync(cmd.Context(), log, s, db, indexPrune)
		if err != nil {
			return fmt.Errorf("syncing index: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "indexed %d records of %s\n", n, db.Name())

		return nil
	})
}

// runIndexWatch re-syncs the index until interrupted or parent is done.
func runIndexWatch(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	defer signal.Stop(sigCh)

	return withIndex(ctx, func(s indexstore.Store) error {
		w := indexstore.NewWatcher(log, s, openDatabase, indexWatch, indexPrune)

		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("starting index watcher: %w", err)
		}

		waitForShutdown(ctx, sigCh)
		cancel()

		return w.Stop()
	})
}

// waitForShutdown blocks until a signal arrives on sigCh or ctx is done.
func waitForShutdown(ctx context.Context, sigCh <-chan os.Signal) {
	select {
	case sig := <-sigCh:
		log.WithField("signal", sig).Info("Shutting down index watcher")
	case <-ctx.Done():
		log.WithError(ctx.Err()).Info("Shutting down index watcher")
	}
}
