package journal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/botboard/internal/domain"
)

func TestWALStore_RecordAndReadAfter(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	for _, ts := range []string{"2025-01-02 09:00:00", "2025-01-02 09:05:00", "2025-01-02 09:10:00"} {
		require.NoError(t, store.Record(ctx, domain.Snapshot{TS: ts, TotalMoney: 100}))
	}
	assert.Equal(t, uint64(3), store.CurrentIndex())

	all, err := store.SnapshotsAfter(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, uint64(1), all[0].Index)
	assert.Equal(t, "2025-01-02 09:00:00", all[0].Snapshot.TS)

	tail, err := store.SnapshotsAfter(2)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, "2025-01-02 09:10:00", tail[0].Snapshot.TS)

	none, err := store.SnapshotsAfter(3)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestWALStore_NilIsSafe(t *testing.T) {
	var store *WALStore
	assert.Error(t, store.Record(context.Background(), domain.Snapshot{TS: "x"}))
	assert.Zero(t, store.CurrentIndex())
	assert.NoError(t, store.Close())
}
