package indexstore

import (
	"fmt"
	"time"

	"github.com/g5t/McStasScript/pkg/beamdump"
)

// Dump is one beam dump record mirrored into the index database.
type Dump struct {
	ID           uint   `gorm:"primaryKey"`
	DatabaseName string `gorm:"not null;uniqueIndex:idx_dumps_db_point_run"`
	DumpPoint    string `gorm:"not null;uniqueIndex:idx_dumps_db_point_run"`
	RunName      string `gorm:"not null;uniqueIndex:idx_dumps_db_point_run"`
	DataPath     string
	Comment      string
	TimeLoaded   string
	LoadedAt     time.Time `gorm:"index"`

	// Parameters serialized as JSON.
	ParametersJSON string `gorm:"type:text"`

	IndexedAt time.Time
}

// FromBeamDump converts a record of the named database into an index row.
func FromBeamDump(database string, d *beamdump.Dump) (*Dump, error) {
	loadedAt, err := d.LoadedAt()
	if err != nil {
		return nil, err
	}

	params, err := beamdump.EncodeParameters(d.Parameters)
	if err != nil {
		return nil, fmt.Errorf("marshaling parameters: %w", err)
	}

	return &Dump{
		DatabaseName:   database,
		DumpPoint:      d.DumpPoint,
		RunName:        d.RunName,
		DataPath:       d.DataPath,
		Comment:        d.Comment,
		TimeLoaded:     d.TimeLoaded,
		LoadedAt:       loadedAt,
		ParametersJSON: string(params),
		IndexedAt:      time.Now(),
	}, nil
}

// BeamDump converts the row back into a record.
func (d *Dump) BeamDump() (*beamdump.Dump, error) {
	params := make(map[string]any)

	if d.ParametersJSON != "" {
		var err error

		params, err = beamdump.DecodeParameters([]byte(d.ParametersJSON))
		if err != nil {
			return nil, fmt.Errorf("parsing parameters of %s/%s: %w", d.DumpPoint, d.RunName, err)
		}
	}

	return &beamdump.Dump{
		DataPath:   d.DataPath,
		DumpPoint:  d.DumpPoint,
		Parameters: params,
		RunName:    d.RunName,
		Comment:    d.Comment,
		TimeLoaded: d.TimeLoaded,
	}, nil
}
