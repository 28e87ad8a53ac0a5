package database

import (
	"fmt"
	"strings"

	"github.com/g5t/McStasScript/pkg/beamdump"
)

// GenerateMarkdown renders a markdown summary of the database: an overview
// followed by one section per dump point with its runs newest first. The
// output is capped at roughly maxChars characters; 0 means no cap.
func (db *Database) GenerateMarkdown(maxChars int) string {
	var sb strings.Builder

	sb.Grow(4096)

	fmt.Fprintf(&sb, "# Beam dump database: %s\n\n", db.name)
	db.writeOverview(&sb)

	points := db.Points()
	for i, point := range points {
		if !db.writePoint(&sb, point, maxChars) {
			if i == len(points)-1 {
				break
			}

			fmt.Fprintf(&sb,
				"\n*%d more dump point(s) not shown "+
					"(output truncated at %d chars)*\n",
				len(points)-i-1, maxChars)

			break
		}
	}

	return sb.String()
}

func (db *Database) writeOverview(sb *strings.Builder) {
	sb.WriteString("## Overview\n\n")
	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|---|---|\n")

	fmt.Fprintf(sb, "| Root | `%s` |\n", db.root)
	fmt.Fprintf(sb, "| Dump points | %d |\n", len(db.data))
	fmt.Fprintf(sb, "| Records | %d |\n", db.Len())

	sb.WriteByte('\n')
}

// writePoint writes the section of one dump point and reports whether the
// whole section fit within maxChars.
func (db *Database) writePoint(sb *strings.Builder, point string, maxChars int) bool {
	// Reserve space for the truncation message.
	const reserveChars = 100

	fmt.Fprintf(sb, "## %s\n\n", point)

	dumps, err := SortByTime(db.data[point])
	if err != nil {
		fmt.Fprintf(sb, "*Runs cannot be ordered: %s*\n\n", escapeCell(err.Error()))

		return true
	}

	if len(dumps) == 0 {
		sb.WriteString("*No runs recorded.*\n\n")

		return true
	}

	sb.WriteString("| Run | Loaded | Comment | Data path |\n")
	sb.WriteString("|---|---|---|---|\n")

	for i, d := range dumps {
		row := fmt.Sprintf("| %s | %s | %s | `%s` |\n",
			escapeCell(d.RunName), d.TimeLoaded, escapeCell(d.Comment), d.DataPath)

		if maxChars > 0 && sb.Len()+len(row)+reserveChars > maxChars {
			fmt.Fprintf(sb,
				"\n*%d more run(s) not shown "+
					"(output truncated at %d chars)*\n",
				len(dumps)-i, maxChars)

			return false
		}

		sb.WriteString(row)
	}

	sb.WriteByte('\n')

	writeParameters(sb, dumps[0])

	return true
}

func writeParameters(sb *strings.Builder, newest *beamdump.Dump) {
	if len(newest.Parameters) == 0 {
		return
	}

	fmt.Fprintf(sb, "Parameters of `%s`:\n\n", newest.RunName)
	sb.WriteString("| Parameter | Value |\n")
	sb.WriteString("|---|---|\n")

	for _, name := range sortedKeys(newest.Parameters) {
		fmt.Fprintf(sb, "| %s | %v |\n", escapeCell(name), newest.Parameters[name])
	}

	sb.WriteByte('\n')
}

// escapeCell keeps free text from breaking the table layout.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)

	return strings.ReplaceAll(s, "\n", " ")
}
