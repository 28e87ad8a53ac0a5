package database

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
)

// maxInlineParameters is the parameter count below which ShowInOrder prints
// a record's parameters.
const maxInlineParameters = 4

// EmptyNotice is printed by ShowInOrder when the database holds no dump
// points.
const EmptyNotice = "No data in dump database yet. Use the load command to create a dump."

// ShowInOrder writes a table of the runs at each listed dump point, newest
// first. Points that are not in the database are left out.
func (db *Database) ShowInOrder(w io.Writer, pointNames []string) {
	if len(db.data) == 0 {
		fmt.Fprintln(w, EmptyNotice)

		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Dump point", "Run name", "Time", "Comment", "Parameters"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)

	for _, name := range pointNames {
		runs, ok := db.data[name]
		if !ok {
			continue
		}

		dumps, err := SortByTime(runs)
		if err != nil {
			db.log.WithError(err).
				WithField("dump_point", name).
				Warn("Cannot order runs by time")

			continue
		}

		for i, d := range dumps {
			point := ""
			if i == 0 {
				point = name
			}

			params := ""
			if len(d.Parameters) < maxInlineParameters {
				params = FormatParameters(d.Parameters)
			}

			table.Append([]string{point, d.RunName, d.TimeLoaded, d.Comment, params})
		}
	}

	table.Render()
}

// FormatParameters renders parameters as {name: value, ...} sorted by name.
func FormatParameters(params map[string]any) string {
	names := sortedKeys(params)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s: %v", name, params[name])
	}

	return "{" + strings.Join(parts, ", ") + "}"
}

func sortedKeys(params map[string]any) []string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
