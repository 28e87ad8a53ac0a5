// Package beamdump describes a single MCPL beam dump produced by a
// simulation run and its JSON record on disk.
package beamdump

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/g5t/McStasScript/pkg/fsutil"
)

const (
	// TimeFormat is the layout of the time_loaded field (DD/MM/YYYY HH:MM:SS).
	TimeFormat = "02/01/2006 15:04:05"

	// DefaultRunName is used when a dump is persisted without a run name.
	DefaultRunName = "run"

	// RecordExt is the extension of record files.
	RecordExt = ".json"
)

var (
	// ErrAlreadyExists is returned when a record file is already present at
	// the destination chosen for a dump.
	ErrAlreadyExists = errors.New("dump record already exists")

	// ErrMalformed is returned when a record file cannot be turned into a
	// dump.
	ErrMalformed = errors.New("malformed dump record")

	// ErrInvalidName is returned for dump point and run names that are not
	// a single path component.
	ErrInvalidName = errors.New("invalid name")
)

// now is replaced in tests.
var now = time.Now

// Dump is the metadata of one beam dump file. Fields are fixed at creation
// except RunName, which WriteToFolder may rewrite to avoid a collision.
type Dump struct {
	DataPath   string         `json:"data_path" yaml:"data_path"`
	DumpPoint  string         `json:"dump_point" yaml:"dump_point"`
	Parameters map[string]any `json:"parameters" yaml:"parameters"`
	RunName    string         `json:"run_name" yaml:"run_name"`
	Comment    string         `json:"comment" yaml:"comment"`
	TimeLoaded string         `json:"time_loaded" yaml:"time_loaded"`
}

// Options holds the optional fields of a new dump.
type Options struct {
	// RunName is the preferred run name. Empty means DefaultRunName.
	RunName string
	// TimeLoaded keeps an existing timestamp; empty stamps the current time.
	TimeLoaded string
	Comment    string
}

// New creates a dump for the data file at dataPath.
func New(dataPath string, params Parameters, dumpPoint string, opts Options) *Dump {
	timeLoaded := opts.TimeLoaded
	if timeLoaded == "" {
		timeLoaded = now().Format(TimeFormat)
	}

	return &Dump{
		DataPath:   dataPath,
		DumpPoint:  dumpPoint,
		Parameters: params.flatten(),
		RunName:    opts.RunName,
		Comment:    opts.Comment,
		TimeLoaded: timeLoaded,
	}
}

// LoadedAt parses TimeLoaded as local time.
func (d *Dump) LoadedAt() (time.Time, error) {
	t, err := time.ParseInLocation(TimeFormat, d.TimeLoaded, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing time_loaded of run %q: %w", d.RunName, err)
	}

	return t, nil
}

// ValidateName checks that name can be used as one directory or file name
// below the database root.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, "/"+string(filepath.Separator)) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	return nil
}

// FileName returns the record file name for the current run name.
func (d *Dump) FileName() string {
	return d.RunName + RecordExt
}

// WriteToFolder persists the dump as <folder>/<run_name>.json. When that file
// exists the run name gets the first free suffix _0, _1, ... and the dump's
// RunName is updated to match. It returns the written path.
func (d *Dump) WriteToFolder(folder string, owner *fsutil.OwnerConfig) (string, error) {
	base := d.RunName
	if base == "" {
		base = DefaultRunName
	}

	if err := ValidateName(base); err != nil {
		return "", fmt.Errorf("run name: %w", err)
	}

	proposed := base
	for i := 0; fsutil.IsRegularFile(filepath.Join(folder, proposed+RecordExt)); i++ {
		proposed = fmt.Sprintf("%s_%d", base, i)
	}

	d.RunName = proposed

	path := filepath.Join(folder, d.FileName())

	data, err := d.Encode()
	if err != nil {
		return "", fmt.Errorf("marshaling dump: %w", err)
	}

	if err := fsutil.WriteFileExclusive(path, data, 0o644, owner); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("%w: run %q at %s", ErrAlreadyExists, d.RunName, path)
		}

		return "", fmt.Errorf("writing dump record: %w", err)
	}

	return path, nil
}

// record mirrors the JSON document so absent and null fields can be told
// apart from empty ones.
type record struct {
	DataPath   *string         `json:"data_path"`
	DumpPoint  *string         `json:"dump_point"`
	Parameters *map[string]any `json:"parameters"`
	RunName    *string         `json:"run_name"`
	Comment    *string         `json:"comment"`
	TimeLoaded *string         `json:"time_loaded"`
}

// ReadFromFile reconstructs a dump from its JSON record, keeping the stored
// timestamp.
func ReadFromFile(path string) (*Dump, error) {
	data, err := os.ReadFile(path) //nolint:gosec // paths come from the database tree
	if err != nil {
		return nil, fmt.Errorf("reading dump record: %w", err)
	}

	d, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return d, nil
}

// Decode builds a dump from a JSON record.
func Decode(data []byte) (*Dump, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	dec.UseNumber()

	var r record
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after record", ErrMalformed)
	}

	switch {
	case r.DataPath == nil:
		return nil, fmt.Errorf("%w: missing data_path", ErrMalformed)
	case r.DumpPoint == nil:
		return nil, fmt.Errorf("%w: missing dump_point", ErrMalformed)
	case r.Parameters == nil:
		return nil, fmt.Errorf("%w: missing parameters", ErrMalformed)
	}

	return New(*r.DataPath, Raw(*r.Parameters), *r.DumpPoint, Options{
		RunName:    deref(r.RunName),
		TimeLoaded: deref(r.TimeLoaded),
		Comment:    deref(r.Comment),
	}), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}

// String renders every field on one line.
func (d *Dump) String() string {
	return fmt.Sprintf(
		"{data_path: %s, dump_point: %s, parameters: %v, run_name: %s, comment: %q, time_loaded: %s}",
		d.DataPath, d.DumpPoint, d.Parameters, d.RunName, d.Comment, d.TimeLoaded,
	)
}
