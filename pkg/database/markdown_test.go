package database_test

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateMarkdown(t *testing.T) {
	t.Parallel()

	path := t.TempDir()
	root := filepath.Join(path, "beam_db")

	writeRecord(t, root, "guide", "old", "01/02/2023 09:00:00")
	writeRecord(t, root, "guide", "new", "02/02/2023 09:00:00")
	writeRecord(t, root, "sample", "only", "03/02/2023 09:00:00")

	db := openTestDB(t, path, nil)
	md := db.GenerateMarkdown(0)

	assert.True(t, strings.HasPrefix(md, "# Beam dump database: beam\n"))
	assert.Contains(t, md, "| Dump points | 2 |")
	assert.Contains(t, md, "| Records | 3 |")
	assert.Contains(t, md, "## guide")
	assert.Contains(t, md, "## sample")
	assert.Contains(t, md, "Parameters of `new`:")
	assert.Contains(t, md, "| wavelength | 5 |")

	// Newest run is listed first.
	assert.Less(t, strings.Index(md, "| new |"), strings.Index(md, "| old |"))
	assert.NotContains(t, md, "truncated")
}

func TestGenerateMarkdown_Truncated(t *testing.T) {
	t.Parallel()

	path := t.TempDir()
	root := filepath.Join(path, "beam_db")

	for i := range 50 {
		writeRecord(t, root, "guide", fmt.Sprintf("run_%02d", i), fmt.Sprintf("01/02/2023 09:%02d:00", i))
	}

	writeRecord(t, root, "sample", "only", "03/02/2023 09:00:00")

	db := openTestDB(t, path, nil)
	md := db.GenerateMarkdown(1000)

	assert.Contains(t, md, "more run(s) not shown (output truncated at 1000 chars)")
	assert.Contains(t, md, "1 more dump point(s) not shown")
	assert.NotContains(t, md, "## sample")
	assert.LessOrEqual(t, len(md), 1200)
}

func TestGenerateMarkdown_Empty(t *testing.T) {
	t.Parallel()

	md := openTestDB(t, t.TempDir(), nil).GenerateMarkdown(0)

	assert.Contains(t, md, "| Records | 0 |")
	assert.NotContains(t, md, "## guide")
}
