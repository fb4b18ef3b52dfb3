package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	batchID := uuid.New()
	info, err := store.Upload(ctx, batchID, "../extracto enero.csv", strings.NewReader("Fecha;Concepto;Importe\n"))
	require.NoError(t, err)
	assert.Equal(t, batchID, info.BatchID)
	assert.Equal(t, int64(23), info.Size)
	assert.Equal(t, "text/csv", info.ContentType)
	assert.NotContains(t, info.Path, "..")
	assert.NotContains(t, info.Path, "/")

	rc, got, err := store.Download(ctx, batchID, info.ID)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "Fecha;Concepto;Importe\n", string(body))
	assert.Equal(t, info.Name, got.Name)

	files, err := store.List(ctx, batchID)
	require.NoError(t, err)
	require.Len(t, files, 1)

	require.NoError(t, store.Delete(ctx, batchID, info.ID))
	_, err = store.GetInfo(ctx, batchID, info.ID)
	assert.ErrorIs(t, err, ErrFileNotFound)

	files, err = store.List(ctx, batchID)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestLocalStorage_ListUnknownBatch(t *testing.T) {
	store, err := New(&Config{LocalPath: t.TempDir()})
	require.NoError(t, err)

	files, err := store.List(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"extracto.xlsx", "extracto.xlsx"},
		{"a/b\\c.csv", "a_b_c.csv"},
		{"..", "_"},
		{"  ", "statement"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeFilename(tt.in))
		})
	}
}
