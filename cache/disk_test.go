package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestDiskTier(t *testing.T) *diskTier {
	t.Helper()
	d, err := newDiskTier(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	return d
}

func TestDiskTierRoundTrip(t *testing.T) {
	d := newTestDiskTier(t)
	created := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	fe := fileEntry{Kind: KindPlain, Value: json.RawMessage(`{"a":1}`), CreatedAt: created}
	require.NoError(t, d.put("key1", fe))

	got, ok := d.get("key1")
	require.True(t, ok)
	require.Equal(t, KindPlain, got.Kind)
	require.JSONEq(t, `{"a":1}`, string(got.Value))
	require.True(t, got.CreatedAt.Equal(created))
}

func TestDiskTierMissingIsMiss(t *testing.T) {
	d := newTestDiskTier(t)
	_, ok := d.get("nope")
	require.False(t, ok)
}

func TestDiskTierCorruptIsMiss(t *testing.T) {
	d := newTestDiskTier(t)
	path := d.path("bad")
	require.NoError(t, os.WriteFile(path, []byte("{truncated"), 0o600))

	_, ok := d.get("bad")
	require.False(t, ok)

	// the corrupt file is left in place until swept or overwritten
	_, err := os.Stat(path)
	require.NoError(t, err)
}

func TestDiskTierRemoveExpired(t *testing.T) {
	d := newTestDiskTier(t)
	now := time.Now()

	require.NoError(t, d.put("old", fileEntry{Kind: KindPlain, Value: json.RawMessage(`1`), CreatedAt: now.Add(-2 * time.Hour)}))
	require.NoError(t, d.put("fresh", fileEntry{Kind: KindPlain, Value: json.RawMessage(`2`), CreatedAt: now}))
	require.NoError(t, os.WriteFile(d.path("corrupt"), []byte("junk"), 0o600))

	removed := d.removeExpired(time.Hour, now)
	require.Equal(t, 2, removed, "expired and corrupt entries are both reclaimed")

	_, ok := d.get("fresh")
	require.True(t, ok)
	_, err := os.Stat(d.path("old"))
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(d.path("corrupt"))
	require.True(t, os.IsNotExist(err))
}

func TestDiskTierSweepReclaimsOrphanedTempFiles(t *testing.T) {
	d := newTestDiskTier(t)
	now := time.Now()

	// a crashed writer's leftover, long past any freshness window
	orphan := filepath.Join(d.dir, "key-12345.tmp")
	require.NoError(t, os.WriteFile(orphan, []byte("partial"), 0o600))
	require.NoError(t, os.Chtimes(orphan, now.Add(-2*time.Hour), now.Add(-2*time.Hour)))

	// a temp file an in-flight writer is still holding
	live := filepath.Join(d.dir, "key-67890.tmp")
	require.NoError(t, os.WriteFile(live, []byte("partial"), 0o600))

	removed := d.removeExpired(time.Hour, now)
	require.Equal(t, 1, removed)
	_, err := os.Stat(orphan)
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(live)
	require.NoError(t, err, "a recent temp file is left for its writer")
}

func TestDiskTierClearAll(t *testing.T) {
	d := newTestDiskTier(t)
	require.NoError(t, d.put("a", fileEntry{Kind: KindPlain, Value: json.RawMessage(`1`), CreatedAt: time.Now()}))
	require.NoError(t, d.put("b", fileEntry{Kind: KindPlain, Value: json.RawMessage(`2`), CreatedAt: time.Now()}))
	// non-cache files in the directory are left alone
	stray := filepath.Join(d.dir, "notes.txt")
	require.NoError(t, os.WriteFile(stray, []byte("keep"), 0o600))
	// orphaned temp files go with everything else
	orphan := filepath.Join(d.dir, "c-000.tmp")
	require.NoError(t, os.WriteFile(orphan, []byte("partial"), 0o600))

	require.NoError(t, d.clearAll())

	_, err := os.Stat(orphan)
	require.True(t, os.IsNotExist(err))

	names, err := d.list()
	require.NoError(t, err)
	require.Empty(t, names)
	_, err = os.Stat(stray)
	require.NoError(t, err)
}

func TestDiskTierNoPartialWrites(t *testing.T) {
	d := newTestDiskTier(t)
	require.NoError(t, d.put("k", fileEntry{Kind: KindPlain, Value: json.RawMessage(`"v"`), CreatedAt: time.Now()}))

	// no temp files left behind
	dirents, err := os.ReadDir(d.dir)
	require.NoError(t, err)
	require.Len(t, dirents, 1)
	require.Equal(t, "k"+fileExt, dirents[0].Name())
}
