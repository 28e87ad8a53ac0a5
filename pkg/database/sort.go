package database

import (
	"fmt"
	"sort"
	"time"

	"github.com/g5t/McStasScript/pkg/beamdump"
)

type timedDump struct {
	key  string
	at   time.Time
	dump *beamdump.Dump
}

// SortByTime orders runs from the most recently loaded to the oldest.
// Records with the same timestamp are all kept, ordered by run name.
func SortByTime(runs map[string]*beamdump.Dump) ([]*beamdump.Dump, error) {
	timed := make([]timedDump, 0, len(runs))

	for key, d := range runs {
		at, err := d.LoadedAt()
		if err != nil {
			return nil, err
		}

		timed = append(timed, timedDump{key: key, at: at, dump: d})
	}

	sort.Slice(timed, func(i, j int) bool {
		if !timed[i].at.Equal(timed[j].at) {
			return timed[i].at.After(timed[j].at)
		}

		return timed[i].key < timed[j].key
	})

	sorted := make([]*beamdump.Dump, len(timed))
	for i, t := range timed {
		sorted[i] = t.dump
	}

	return sorted, nil
}

// LatestByTime returns the most recently loaded of runs.
func LatestByTime(runs map[string]*beamdump.Dump) (*beamdump.Dump, error) {
	sorted, err := SortByTime(runs)
	if err != nil {
		return nil, err
	}

	if len(sorted) == 0 {
		return nil, fmt.Errorf("%w: no runs", ErrNotFound)
	}

	return sorted[0], nil
}
