package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func testDatabase(t *testing.T, db Database) {
	t.Helper()

	require.NoError(t, db.Put([]byte("rb/a"), []byte("1")))
	require.NoError(t, db.Put([]byte("rb/c"), []byte("3")))
	require.NoError(t, db.Put([]byte("rb/b"), []byte("2")))
	require.NoError(t, db.Put([]byte("other/x"), []byte("9")))

	got, err := db.Get([]byte("rb/b"))
	require.NoError(t, err)
	require.Equal(t, []byte("2"), got)

	_, err = db.Get([]byte("rb/z"))
	require.ErrorIs(t, err, ErrNotFound)

	// Prefix iteration yields keys in ascending order and skips other
	// prefixes.
	var keys []string
	require.NoError(t, db.Iterate([]byte("rb/"), nil, func(key, value []byte) bool {
		keys = append(keys, string(key))
		return true
	}))
	require.Equal(t, []string{"rb/a", "rb/b", "rb/c"}, keys)

	// The start key is exclusive.
	keys = keys[:0]
	require.NoError(t, db.Iterate([]byte("rb/"), []byte("rb/a"), func(key, value []byte) bool {
		keys = append(keys, string(key))
		return true
	}))
	require.Equal(t, []string{"rb/b", "rb/c"}, keys)

	// Returning false stops the walk.
	keys = keys[:0]
	require.NoError(t, db.Iterate([]byte("rb/"), nil, func(key, value []byte) bool {
		keys = append(keys, string(key))
		return false
	}))
	require.Equal(t, []string{"rb/a"}, keys)

	require.NoError(t, db.Delete([]byte("rb/b")))
	_, err = db.Get([]byte("rb/b"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemDB(t *testing.T) {
	db := NewMemDB()
	defer db.Close()
	testDatabase(t, db)
}

func TestLevelDB(t *testing.T) {
	db, err := NewLevelDB(filepath.Join(t.TempDir(), "db"))
	require.NoError(t, err)
	defer db.Close()
	testDatabase(t, db)
}
