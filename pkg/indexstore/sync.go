package indexstore

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/g5t/McStasScript/pkg/database"
)

// Sync mirrors every record of db into the store and returns the number of
// rows written. When prune is set, rows of the database that are no longer
// on disk are dropped in the same transaction that writes the current ones,
// so a failed pass leaves the previous index in place. Every record is
// converted before the store is touched.
func Sync(
	ctx context.Context,
	log logrus.FieldLogger,
	s Store,
	db *database.Database,
	prune bool,
) (int, error) {
	log = log.WithField("component", "index-sync").WithField("database", db.Name())

	all := db.All()
	rows := make([]*Dump, 0, len(all))

	for _, d := range all {
		row, err := FromBeamDump(db.Name(), d)
		if err != nil {
			return 0, fmt.Errorf("converting %s/%s: %w", d.DumpPoint, d.RunName, err)
		}

		rows = append(rows, row)
	}

	if prune {
		if err := s.ReplaceDatabase(ctx, db.Name(), rows); err != nil {
			return 0, fmt.Errorf("replacing index of %s: %w", db.Name(), err)
		}

		log.WithField("records", len(rows)).Info("Index replaced")

		return len(rows), nil
	}

	count := 0

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		if err := s.UpsertDump(ctx, row); err != nil {
			return count, fmt.Errorf("indexing %s/%s: %w", row.DumpPoint, row.RunName, err)
		}

		log.WithFields(logrus.Fields{
			"dump_point": row.DumpPoint,
			"run_name":   row.RunName,
		}).Debug("Indexed dump")

		count++
	}

	log.WithField("records", count).Info("Index synchronised")

	return count, nil
}
