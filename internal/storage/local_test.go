package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoragePutGet(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	content := []byte("planilha")
	metadata := &Metadata{
		OriginalName: "movimentacoes.xlsx",
		BatchID:      "nfb_test",
		UploadedAt:   time.Now(),
	}

	key := BuildUploadKey("nfb_test", time.Date(2026, 8, 5, 0, 0, 0, 0, time.UTC), "movimentacoes.xlsx")
	assert.Equal(t, "uploads/2026-08/nfb_test_movimentacoes.xlsx", key)

	require.NoError(t, store.Put(ctx, key, content, metadata))

	got, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	info, err := store.GetInfo(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), info.Size)
	require.NotNil(t, info.Metadata)
	assert.Equal(t, "nfb_test", info.Metadata.BatchID)
	assert.Equal(t, ComputeChecksum(content), info.Checksum)
}

func TestLocalStorageListAndDelete(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "uploads/2026-08/nfb_a_f.xlsx", []byte("a"), nil))
	require.NoError(t, store.Put(ctx, "uploads/2026-09/nfb_b_f.xlsx", []byte("b"), nil))

	keys, err := store.List(ctx, "uploads/")
	require.NoError(t, err)
	assert.Len(t, keys, 2)

	require.NoError(t, store.Delete(ctx, "uploads/2026-08/nfb_a_f.xlsx"))

	exists, err := store.Exists(ctx, "uploads/2026-08/nfb_a_f.xlsx")
	require.NoError(t, err)
	assert.False(t, exists)

	keys, err = store.List(ctx, "uploads/")
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}
