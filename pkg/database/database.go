// Package database keeps an in-memory index of beam dump records backed by a
// directory tree of JSON files:
//
//	<path>/<name>_db/<dump_point>/<run_name>.json
//
// The tree is read once when the database is opened. Afterwards the only
// way records reach disk is LoadData, which writes the JSON file and updates
// the index in the same call.
package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/g5t/McStasScript/pkg/beamdump"
	"github.com/g5t/McStasScript/pkg/fsutil"
)

// RootSuffix is appended to the database name to form its directory.
const RootSuffix = "_db"

// ErrNotFound is returned when a dump point has no records.
var ErrNotFound = errors.New("dump point not found")

// dumpFileEndings are tried in this order for every expected file.
var dumpFileEndings = []string{".mcpl", ".mcpl.gz"}

// Options tunes how a database is opened.
type Options struct {
	// SkipMalformed logs and skips records that fail to parse instead of
	// aborting the load. Skipped files are reported by LoadErrors.
	SkipMalformed bool

	// Owner, when set, is applied to created folders and record files.
	Owner *fsutil.OwnerConfig
}

// Database is the index of beam dumps under one root directory. It is not
// safe for concurrent use.
type Database struct {
	log  logrus.FieldLogger
	name string
	path string
	root string
	opts Options

	data     map[string]map[string]*beamdump.Dump
	loadErrs *multierror.Error
}

// Open loads the database named name under path, creating its root
// directory when it does not exist. path itself must exist.
func Open(log logrus.FieldLogger, name, path string, opts *Options) (*Database, error) {
	if opts == nil {
		opts = &Options{}
	}

	db := &Database{
		log:  log.WithField("component", "database").WithField("database", name),
		name: name,
		path: path,
		root: filepath.Join(path, name+RootSuffix),
		opts: *opts,
		data: make(map[string]map[string]*beamdump.Dump, 8),
	}

	if fsutil.IsDir(db.root) {
		if err := db.load(); err != nil {
			return nil, fmt.Errorf("loading database %s: %w", db.root, err)
		}

		return db, nil
	}

	if err := fsutil.Mkdir(db.root, 0o755, db.opts.Owner); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db.log.WithField("path", db.root).Info("Created new dump database")

	return db, nil
}

// load reads every <dump_point>/*.json record below the root.
func (db *Database) load() error {
	points, err := os.ReadDir(db.root)
	if err != nil {
		return fmt.Errorf("reading database directory: %w", err)
	}

	for _, point := range points {
		if !point.IsDir() {
			continue
		}

		pointDir := filepath.Join(db.root, point.Name())

		if _, ok := db.data[point.Name()]; !ok {
			db.data[point.Name()] = make(map[string]*beamdump.Dump)
		}

		runs, err := os.ReadDir(pointDir)
		if err != nil {
			return fmt.Errorf("reading dump point %q: %w", point.Name(), err)
		}

		for _, run := range runs {
			if run.IsDir() || !strings.HasSuffix(run.Name(), beamdump.RecordExt) {
				continue
			}

			d, err := beamdump.ReadFromFile(filepath.Join(pointDir, run.Name()))
			if err != nil {
				if db.opts.SkipMalformed && errors.Is(err, beamdump.ErrMalformed) {
					db.log.WithError(err).
						WithField("dump_point", point.Name()).
						Warn("Skipping malformed dump record")

					db.loadErrs = multierror.Append(db.loadErrs, err)

					continue
				}

				return err
			}

			db.data[point.Name()][d.RunName] = d
		}
	}

	db.log.WithFields(logrus.Fields{
		"path":        db.root,
		"dump_points": len(db.data),
		"records":     db.Len(),
	}).Debug("Loaded dump database")

	return nil
}

// LoadErrors returns the records skipped while opening with SkipMalformed,
// or nil.
func (db *Database) LoadErrors() error {
	return db.loadErrs.ErrorOrNil()
}

// CreateFolderForDumpPoint makes sure the folder for dumpPoint exists and
// returns its path.
func (db *Database) CreateFolderForDumpPoint(dumpPoint string) (string, error) {
	if err := beamdump.ValidateName(dumpPoint); err != nil {
		return "", fmt.Errorf("dump point: %w", err)
	}

	dir := filepath.Join(db.root, dumpPoint)

	if err := fsutil.EnsureDir(dir, 0o755, db.opts.Owner); err != nil {
		return "", fmt.Errorf("creating dump point folder: %w", err)
	}

	return dir, nil
}

// LoadData looks in dataFolder for the MCPL file named by expectedFilename
// and records it under dumpPoint. Both <stem>.mcpl and <stem>.mcpl.gz are
// checked and each one found becomes a record. A dataFolder that does not
// exist is not an error: nothing is recorded. Dump point and run names must
// be single path components.
func (db *Database) LoadData(
	expectedFilename, dataFolder string,
	params beamdump.Parameters,
	runName, dumpPoint, comment string,
) ([]*beamdump.Dump, error) {
	if err := beamdump.ValidateName(dumpPoint); err != nil {
		return nil, fmt.Errorf("dump point: %w", err)
	}

	if runName != "" {
		if err := beamdump.ValidateName(runName); err != nil {
			return nil, fmt.Errorf("run name: %w", err)
		}
	}

	if !fsutil.IsDir(dataFolder) {
		db.log.WithField("data_folder", dataFolder).
			Debug("Data folder does not exist, skipping search")

		return nil, nil
	}

	stem := dumpFileStem(expectedFilename)

	var loaded []*beamdump.Dump

	for _, ending := range dumpFileEndings {
		dataPath := filepath.Join(dataFolder, stem+ending)
		if !fsutil.IsRegularFile(dataPath) {
			continue
		}

		d := beamdump.New(dataPath, params, dumpPoint, beamdump.Options{
			RunName: runName,
			Comment: comment,
		})

		pointDir, err := db.CreateFolderForDumpPoint(dumpPoint)
		if err != nil {
			return loaded, err
		}

		recordPath, err := d.WriteToFolder(pointDir, db.opts.Owner)
		if err != nil {
			return loaded, fmt.Errorf("storing dump for %s: %w", dataPath, err)
		}

		if _, ok := db.data[dumpPoint]; !ok {
			db.data[dumpPoint] = make(map[string]*beamdump.Dump)
		}

		db.data[dumpPoint][d.RunName] = d
		loaded = append(loaded, d)

		db.log.WithFields(logrus.Fields{
			"dump_point": dumpPoint,
			"run_name":   d.RunName,
			"data_path":  dataPath,
			"record":     recordPath,
		}).Info("Registered beam dump")
	}

	return loaded, nil
}

// dumpFileStem reduces an expected filename to the stem the MCPL endings are
// appended to: surrounding quotes and directories go, then a trailing .gz
// and a trailing .mcpl.
func dumpFileStem(name string) string {
	name = strings.Trim(name, `"`)

	if i := strings.LastIndexAny(name, `/`+string(filepath.Separator)); i >= 0 {
		name = name[i+1:]
	}

	name = strings.TrimSuffix(name, ".gz")

	return strings.TrimSuffix(name, ".mcpl")
}

// NewestAtPoint returns the most recently loaded dump at point.
func (db *Database) NewestAtPoint(point string) (*beamdump.Dump, error) {
	runs, ok := db.data[point]
	if !ok || len(runs) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, point)
	}

	return LatestByTime(runs)
}

// Name returns the database name.
func (db *Database) Name() string {
	return db.name
}

// Path returns the directory holding the database root.
func (db *Database) Path() string {
	return db.path
}

// Root returns the database root directory, <path>/<name>_db.
func (db *Database) Root() string {
	return db.root
}

// Points returns the known dump points in lexical order.
func (db *Database) Points() []string {
	points := make([]string, 0, len(db.data))
	for p := range db.data {
		points = append(points, p)
	}

	sort.Strings(points)

	return points
}

// Runs returns a copy of the run name to dump mapping at point, or nil when
// the point is unknown.
func (db *Database) Runs(point string) map[string]*beamdump.Dump {
	runs, ok := db.data[point]
	if !ok {
		return nil
	}

	out := make(map[string]*beamdump.Dump, len(runs))
	for name, d := range runs {
		out[name] = d
	}

	return out
}

// Get returns a single record.
func (db *Database) Get(point, runName string) (*beamdump.Dump, bool) {
	d, ok := db.data[point][runName]

	return d, ok
}

// Len returns the total number of records.
func (db *Database) Len() int {
	n := 0
	for _, runs := range db.data {
		n += len(runs)
	}

	return n
}

// All returns every record ordered by dump point then run name.
func (db *Database) All() []*beamdump.Dump {
	all := make([]*beamdump.Dump, 0, db.Len())
	for _, point := range db.Points() {
		all = append(all, db.runsByName(point)...)
	}

	return all
}

func (db *Database) runsByName(point string) []*beamdump.Dump {
	runs := db.data[point]

	names := make([]string, 0, len(runs))
	for name := range runs {
		names = append(names, name)
	}

	sort.Strings(names)

	out := make([]*beamdump.Dump, 0, len(names))
	for _, name := range names {
		out = append(out, runs[name])
	}

	return out
}

// String lists every dump point with its runs.
func (db *Database) String() string {
	var sb strings.Builder

	for _, point := range db.Points() {
		sb.WriteString(point + ":\n")

		for _, d := range db.runsByName(point) {
			sb.WriteString("  " + d.RunName + ":\n")
			sb.WriteString("    " + d.String() + "\n")
		}
	}

	return sb.String()
}
