package main

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationFilenamePattern(t *testing.T) {
	tests := []struct {
		filename string
		valid    bool
		version  int
		name     string
	}{
		{"0001_init_schema_migrations.sql", true, 1, "init_schema_migrations"},
		{"0012_add_index.sql", true, 12, "add_index"},
		{"001_invalid.sql", false, 0, ""},
		{"0001_test", false, 0, ""},
		{"0001.sql", false, 0, ""},
		{"invalid_0001_test.sql", false, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, ok := parseFilename(tt.filename)
			assert.Equal(t, tt.valid, ok)
			assert.Equal(t, tt.version, version)
			assert.Equal(t, tt.name, name)
		})
	}
}

func TestReadMigrations(t *testing.T) {
	create := "CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.t` (id INT64);"
	fsys := fstest.MapFS{
		"migrations/0002_second.sql": {Data: []byte("SELECT 2;")},
		"migrations/0001_first.sql":  {Data: []byte(create)},
		"migrations/README.md":       {Data: []byte("notes")},
	}

	got, err := readMigrations(fsys, "migrations", "proj", "ds", zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, 1, got[0].Version)
	assert.Equal(t, "first", got[0].Name)
	assert.Equal(t, "CREATE TABLE `proj.ds.t` (id INT64);", got[0].SQL)
	assert.Equal(t, fmt.Sprintf("%x", sha256.Sum256([]byte(create))), got[0].Checksum)
	assert.Equal(t, 2, got[1].Version)
}

func TestMigrationChecksumIgnoresTarget(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/0001_first.sql": {Data: []byte("CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.t` (id INT64);")},
	}

	a, err := readMigrations(fsys, "migrations", "proj-a", "ds", zerolog.Nop())
	require.NoError(t, err)
	b, err := readMigrations(fsys, "migrations", "proj-b", "other", zerolog.Nop())
	require.NoError(t, err)

	assert.NotEqual(t, a[0].SQL, b[0].SQL)
	assert.Equal(t, a[0].Checksum, b[0].Checksum)
}

func TestReadMigrationsDuplicateVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/0001_a.sql": {Data: []byte("SELECT 1;")},
		"migrations/0001_b.sql": {Data: []byte("SELECT 1;")},
	}
	_, err := readMigrations(fsys, "migrations", "p", "d", zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate migration version 0001")
}

func TestPendingMigrations(t *testing.T) {
	migrations := []Migration{
		{Version: 1, Name: "first", Checksum: "aaa"},
		{Version: 2, Name: "second", Checksum: "bbb"},
		{Version: 3, Name: "third", Checksum: "ccc"},
	}

	t.Run("skips applied", func(t *testing.T) {
		todo, err := pendingMigrations(migrations, []AppliedMigration{
			{Version: 1, Checksum: "aaa"},
			{Version: 2},
		})
		require.NoError(t, err)
		require.Len(t, todo, 1)
		assert.Equal(t, 3, todo[0].Version)
	})

	t.Run("fresh dataset", func(t *testing.T) {
		todo, err := pendingMigrations(migrations, nil)
		require.NoError(t, err)
		assert.Len(t, todo, 3)
	})

	t.Run("edited migration", func(t *testing.T) {
		_, err := pendingMigrations(migrations, []AppliedMigration{{Version: 2, Checksum: "zzz"}})
		assert.ErrorIs(t, err, ErrChecksumMismatch)
	})
}

func TestEmbeddedMigrations(t *testing.T) {
	got, err := readMigrations(embedded, "migrations", "proj", "ds", zerolog.Nop())
	require.NoError(t, err)
	require.NotEmpty(t, got)

	tables := []string{"documents", "extraction_runs", "categories", "reconciled_transactions"}
	for i, m := range got {
		assert.Equal(t, i+1, m.Version, "versions are contiguous")
		assert.NotContains(t, m.SQL, "{{")
	}
	for _, table := range tables {
		found := false
		for _, m := range got {
			if strings.Contains(m.SQL, "`proj.ds."+table+"`") {
				found = true
			}
		}
		assert.True(t, found, "no migration creates %s", table)
	}
}
