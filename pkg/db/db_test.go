package db

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsEmbedded(t *testing.T) {
	files, err := fs.Glob(migrations, "migrations/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, name := range files {
		data, err := fs.ReadFile(migrations, name)
		require.NoError(t, err)
		body := string(data)
		assert.True(t, strings.Contains(body, "-- +goose Up"), name)
		assert.True(t, strings.Contains(body, "-- +goose Down"), name)
	}
}

func TestMigrationsCreateTables(t *testing.T) {
	var all strings.Builder
	files, err := fs.Glob(migrations, "migrations/*.sql")
	require.NoError(t, err)
	for _, name := range files {
		data, err := fs.ReadFile(migrations, name)
		require.NoError(t, err)
		all.Write(data)
	}

	for _, table := range []string{"categories", "import_batches", "transactions"} {
		assert.Contains(t, all.String(), "CREATE TABLE IF NOT EXISTS "+table+" (")
	}
}
