package store

import (
	"fmt"
	"testing"

	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestHistory(t *testing.T, level int) *History {
	t.Helper()
	h, err := OpenHistory(t.TempDir(), Options{CompressionLevel: level})
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func snapshot(manifestVersion string) Snapshot {
	return Snapshot{
		ManifestName:    "TestCluster",
		ManifestVersion: manifestVersion,
		ClusterManifest: []byte(fmt.Sprintf(`<ClusterManifest Name="TestCluster" Version=%q/>`, manifestVersion)),
	}
}

func TestHistoryEmpty(t *testing.T) {
	h := createTestHistory(t, 0)

	_, err := h.Current()
	assert.ErrorIs(t, err, ErrNoHistory)
	_, err = h.Previous()
	assert.ErrorIs(t, err, ErrNoHistory)

	list, err := h.List()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestHistoryRecordAndGet(t *testing.T) {
	for _, level := range []int{0, 2, 4} {
		t.Run(fmt.Sprintf("level-%d", level), func(t *testing.T) {
			h := createTestHistory(t, level)

			v1, recorded, err := h.Record(snapshot("1.0"))
			require.NoError(t, err)
			assert.True(t, recorded)
			assert.Equal(t, uint64(1), v1)

			v2, _, err := h.Record(snapshot("2.0"))
			require.NoError(t, err)
			assert.Equal(t, uint64(2), v2)

			current, err := h.Current()
			require.NoError(t, err)
			assert.Equal(t, uint64(2), current.Version)
			assert.Equal(t, "2.0", current.ManifestVersion)
			assert.Equal(t, snapshot("2.0").ClusterManifest, current.ClusterManifest)
			assert.NotZero(t, current.AppliedAt)
			assert.Equal(t, FingerprintOf(current.ClusterManifest, nil), current.Fingerprint)

			first, err := h.Get(1)
			require.NoError(t, err)
			assert.Equal(t, "1.0", first.ManifestVersion)

			_, err = h.Get(9)
			assert.ErrorIs(t, err, ErrVersionMissing)
		})
	}
}

func TestHistoryRecordDeduplicates(t *testing.T) {
	h := createTestHistory(t, 2)

	_, _, err := h.Record(snapshot("1.0"))
	require.NoError(t, err)
	version, recorded, err := h.Record(snapshot("1.0"))
	require.NoError(t, err)
	assert.False(t, recorded)
	assert.Equal(t, uint64(1), version)

	list, err := h.List()
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestHistoryPreviousAndSetCurrent(t *testing.T) {
	h := createTestHistory(t, 1)
	for _, v := range []string{"1.0", "2.0", "3.0"} {
		_, _, err := h.Record(snapshot(v))
		require.NoError(t, err)
	}

	prev, err := h.Previous()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), prev.Version)

	require.NoError(t, h.SetCurrent(prev.Version))
	prev, err = h.Previous()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), prev.Version)

	require.NoError(t, h.SetCurrent(1))
	_, err = h.Previous()
	assert.ErrorIs(t, err, ErrNoHistory)

	assert.ErrorIs(t, h.SetCurrent(42), ErrVersionMissing)

	// Recording after a rollback appends past the newest version.
	v, _, err := h.Record(snapshot("4.0"))
	require.NoError(t, err)
	assert.Equal(t, uint64(4), v)
}

func TestHistoryPrune(t *testing.T) {
	h := createTestHistory(t, 2)
	for i := 1; i <= 5; i++ {
		_, _, err := h.Record(snapshot(fmt.Sprintf("%d.0", i)))
		require.NoError(t, err)
	}
	require.NoError(t, h.SetCurrent(1))

	removed, err := h.Prune(2)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	list, err := h.List()
	require.NoError(t, err)
	var versions []uint64
	for _, s := range list {
		versions = append(versions, s.Version)
	}
	assert.Equal(t, []uint64{1, 4, 5}, versions)

	removed, err = h.Prune(10)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestHistoryPersistsAcrossOpen(t *testing.T) {
	fs := vfs.NewMem()
	h, err := OpenHistory("/history", Options{FS: fs, CompressionLevel: 3})
	require.NoError(t, err)
	_, _, err = h.Record(snapshot("1.0"))
	require.NoError(t, err)
	require.NoError(t, h.Close())
	require.NoError(t, h.Close())

	_, err = h.Current()
	assert.ErrorIs(t, err, ErrClosed)

	h, err = OpenHistory("/history", Options{FS: fs})
	require.NoError(t, err)
	defer h.Close()
	current, err := h.Current()
	require.NoError(t, err)
	assert.Equal(t, "1.0", current.ManifestVersion)
}

func TestSnapshotKeyOrder(t *testing.T) {
	assert.Less(t, string(snapshotKey(9)), string(snapshotKey(10)))
	assert.Less(t, string(snapshotKey(255)), string(prefixUpperBound([]byte(prefixSnapshot))))
}

func TestPurge(t *testing.T) {
	fs := vfs.NewMem()
	h, err := OpenHistory("/history", Options{FS: fs})
	require.NoError(t, err)
	_, _, err = h.Record(snapshot("1.0"))
	require.NoError(t, err)
	require.NoError(t, h.Close())

	require.NoError(t, Purge(fs, "/history"))
	_, err = fs.Stat("/history")
	assert.Error(t, err)

	h, err = OpenHistory("/history", Options{FS: fs})
	require.NoError(t, err)
	defer h.Close()
	_, err = h.Current()
	assert.ErrorIs(t, err, ErrNoHistory)
}
