package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openBackend(t *testing.T, dbType DBType) Database {
	t.Helper()
	path := filepath.Join(t.TempDir(), string(dbType))
	if dbType == BoltDB {
		path += ".db"
	}
	database, err := Open(dbType, path)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func TestBackends(t *testing.T) {
	for _, dbType := range []DBType{MemoryDB, LevelDB, PebbleDB, BoltDB} {
		t.Run(string(dbType), func(t *testing.T) {
			database := openBackend(t, dbType)

			t.Run("put get delete", func(t *testing.T) {
				require.NoError(t, database.Put([]byte("a"), []byte("1")))

				value, err := database.Get([]byte("a"))
				require.NoError(t, err)
				assert.Equal(t, []byte("1"), value)

				ok, err := database.Has([]byte("a"))
				require.NoError(t, err)
				assert.True(t, ok)

				require.NoError(t, database.Delete([]byte("a")))
				_, err = database.Get([]byte("a"))
				assert.ErrorIs(t, err, ErrNotFound)

				ok, err = database.Has([]byte("a"))
				require.NoError(t, err)
				assert.False(t, ok)
			})

			t.Run("batch and range", func(t *testing.T) {
				batch := database.Batch()
				require.NoError(t, batch.Put([]byte("block/002"), []byte("b2")))
				require.NoError(t, batch.Put([]byte("block/001"), []byte("b1")))
				require.NoError(t, batch.Put([]byte("block/003"), []byte("b3")))
				require.NoError(t, batch.Put([]byte("identity/x"), []byte("x")))
				require.NoError(t, batch.Delete([]byte("block/003")))
				require.NoError(t, batch.Write())

				prefix := []byte("block/")
				it, err := database.Iterator(prefix, PrefixEnd(prefix))
				require.NoError(t, err)
				defer it.Close()

				var keys, values []string
				for it.Next() {
					keys = append(keys, string(it.Key()))
					values = append(values, string(it.Value()))
				}
				require.NoError(t, it.Error())
				assert.Equal(t, []string{"block/001", "block/002"}, keys)
				assert.Equal(t, []string{"b1", "b2"}, values)
			})

			t.Run("iterator reads a stable view", func(t *testing.T) {
				prefix := []byte("block/")
				it, err := database.Iterator(prefix, PrefixEnd(prefix))
				require.NoError(t, err)
				defer it.Close()

				require.NoError(t, database.Put([]byte("block/009"), []byte("late")))

				var held [][]byte
				for it.Next() {
					held = append(held, it.Key())
				}
				require.NoError(t, it.Error())
				require.Len(t, held, 2)
				assert.Equal(t, "block/001", string(held[0]))
				assert.Equal(t, "block/002", string(held[1]))
				assert.False(t, it.Next())
			})
		})
	}
}

func TestClosedDatabase(t *testing.T) {
	for _, dbType := range []DBType{MemoryDB, LevelDB, PebbleDB, BoltDB} {
		t.Run(string(dbType), func(t *testing.T) {
			database := openBackend(t, dbType)
			require.NoError(t, database.Put([]byte("k"), []byte("v")))
			require.NoError(t, database.Close())

			assert.ErrorIs(t, database.Put([]byte("k"), []byte("v")), ErrClosed)
			_, err := database.Get([]byte("k"))
			assert.ErrorIs(t, err, ErrClosed)
			_, err = database.Iterator(nil, nil)
			assert.ErrorIs(t, err, ErrClosed)

			batch := database.Batch()
			batch.Put([]byte("k"), []byte("v"))
			assert.ErrorIs(t, batch.Write(), ErrClosed)
		})
	}
}

func TestPrefixEnd(t *testing.T) {
	assert.Equal(t, []byte("block0"), PrefixEnd([]byte("block/")))
	assert.Equal(t, []byte{0x02}, PrefixEnd([]byte{0x01, 0xff}))
	assert.Nil(t, PrefixEnd([]byte{0xff, 0xff}))
}

func TestNewDatabaseUnsupported(t *testing.T) {
	_, err := NewDatabase(DBType("rocksdb"))
	assert.Error(t, err)
}
