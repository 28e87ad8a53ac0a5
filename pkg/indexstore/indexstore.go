package indexstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/g5t/McStasScript/pkg/config"
)

// ErrNotFound is returned when no indexed dump matches a query.
var ErrNotFound = errors.New("no indexed dump")

// Store is a queryable SQL mirror of one or more dump databases.
type Store interface {
	Start(ctx context.Context) error
	Stop() error

	UpsertDump(ctx context.Context, d *Dump) error
	ListDumpPoints(ctx context.Context, database string) ([]string, error)
	ListDumps(ctx context.Context, database, dumpPoint string) ([]Dump, error)
	NewestAtPoint(ctx context.Context, database, dumpPoint string) (*Dump, error)
	DeleteDatabase(ctx context.Context, database string) error
	ReplaceDatabase(ctx context.Context, database string, dumps []*Dump) error
}

// Compile-time interface check.
var _ Store = (*store)(nil)

type store struct {
	log logrus.FieldLogger
	cfg *config.IndexDatabaseConfig
	db  *gorm.DB
}

// NewStore creates a new index Store backed by the configured database driver.
func NewStore(
	log logrus.FieldLogger,
	cfg *config.IndexDatabaseConfig,
) Store {
	return &store{
		log: log.WithField("component", "indexstore"),
		cfg: cfg,
	}
}

// Start opens the database connection and runs migrations.
func (s *store) Start(ctx context.Context) error {
	var dialector gorm.Dialector

	gormCfg := &gorm.Config{
		Logger: logger.Discard,
	}

	switch s.cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(s.cfg.SQLite.Path)
	case "postgres":
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			s.cfg.Postgres.Host,
			s.cfg.Postgres.Port,
			s.cfg.Postgres.User,
			s.cfg.Postgres.Password,
			s.cfg.Postgres.Database,
			s.cfg.Postgres.SSLMode,
		)
		dialector = postgres.Open(dsn)
	default:
		return fmt.Errorf("unsupported database driver: %s", s.cfg.Driver)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return fmt.Errorf("opening index database: %w", err)
	}

	s.db = db

	if err := s.db.WithContext(ctx).AutoMigrate(&Dump{}); err != nil {
		return fmt.Errorf("running index migrations: %w", err)
	}

	s.log.WithField("driver", s.cfg.Driver).
		Info("Index database connected")

	return nil
}

// Stop closes the underlying database connection.
func (s *store) Stop() error {
	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying db: %w", err)
	}

	return sqlDB.Close()
}

// UpsertDump inserts a dump or refreshes the row with the same
// database + dump_point + run_name.
func (s *store) UpsertDump(ctx context.Context, d *Dump) error {
	return upsertDump(s.db.WithContext(ctx), d)
}

func upsertDump(tx *gorm.DB, d *Dump) error {
	result := tx.
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "database_name"}, {Name: "dump_point"}, {Name: "run_name"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"data_path", "comment", "time_loaded", "loaded_at",
				"parameters_json", "indexed_at",
			}),
		}).
		Create(d)
	if result.Error != nil {
		return fmt.Errorf("upserting dump: %w", result.Error)
	}

	return nil
}

// ListDumpPoints returns the distinct dump points of a database.
func (s *store) ListDumpPoints(
	ctx context.Context, database string,
) ([]string, error) {
	var points []string
	if err := s.db.WithContext(ctx).
		Model(&Dump{}).
		Where("database_name = ?", database).
		Distinct().
		Order("dump_point").
		Pluck("dump_point", &points).Error; err != nil {
		return nil, fmt.Errorf("listing dump points: %w", err)
	}

	return points, nil
}

// ListDumps returns the dumps at a dump point, newest first.
func (s *store) ListDumps(
	ctx context.Context, database, dumpPoint string,
) ([]Dump, error) {
	var dumps []Dump
	if err := s.db.WithContext(ctx).
		Where("database_name = ? AND dump_point = ?", database, dumpPoint).
		Order("loaded_at DESC").
		Order("run_name ASC").
		Find(&dumps).Error; err != nil {
		return nil, fmt.Errorf("listing dumps: %w", err)
	}

	return dumps, nil
}

// NewestAtPoint returns the most recently loaded dump at a dump point.
func (s *store) NewestAtPoint(
	ctx context.Context, database, dumpPoint string,
) (*Dump, error) {
	var d Dump

	err := s.db.WithContext(ctx).
		Where("database_name = ? AND dump_point = ?", database, dumpPoint).
		Order("loaded_at DESC").
		Order("run_name ASC").
		First(&d).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w at %q", ErrNotFound, dumpPoint)
		}

		return nil, fmt.Errorf("querying newest dump: %w", err)
	}

	return &d, nil
}

// DeleteDatabase removes every indexed dump of a database.
func (s *store) DeleteDatabase(ctx context.Context, database string) error {
	return deleteDatabase(s.db.WithContext(ctx), database)
}

func deleteDatabase(tx *gorm.DB, database string) error {
	if err := tx.
		Where("database_name = ?", database).
		Delete(&Dump{}).Error; err != nil {
		return fmt.Errorf("deleting indexed dumps: %w", err)
	}

	return nil
}

// ReplaceDatabase swaps the indexed dumps of a database for dumps in one
// transaction. On error the previous rows are left untouched.
func (s *store) ReplaceDatabase(ctx context.Context, database string, dumps []*Dump) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteDatabase(tx, database); err != nil {
			return err
		}

		for _, d := range dumps {
			if d.DatabaseName != database {
				return fmt.Errorf("dump %s/%s belongs to database %q, not %q",
					d.DumpPoint, d.RunName, d.DatabaseName, database)
			}

			if err := upsertDump(tx, d); err != nil {
				return err
			}
		}

		return nil
	})
}
