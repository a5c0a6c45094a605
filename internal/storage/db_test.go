package storage

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// testDB runs the shared test suite against a DB implementation.
func testDB(t *testing.T, db DB) {
	t.Helper()

	t.Run("PutAndGet", func(t *testing.T) {
		require.NoError(t, db.Put([]byte("key1"), []byte("value1")))

		val, err := db.Get([]byte("key1"))
		require.NoError(t, err)
		require.Equal(t, []byte("value1"), val)
	})

	t.Run("GetNonexistent", func(t *testing.T) {
		_, err := db.Get([]byte("nonexistent"))
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Has", func(t *testing.T) {
		require.NoError(t, db.Put([]byte("exists"), []byte("yes")))

		ok, err := db.Has([]byte("exists"))
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = db.Has([]byte("missing"))
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, db.Put([]byte("ow"), []byte("first")))
		require.NoError(t, db.Put([]byte("ow"), []byte("second")))

		val, err := db.Get([]byte("ow"))
		require.NoError(t, err)
		require.Equal(t, []byte("second"), val)
	})

	t.Run("InsertIfAbsent", func(t *testing.T) {
		ok, err := db.Insert([]byte("ins"), []byte("first"))
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = db.Insert([]byte("ins"), []byte("second"))
		require.NoError(t, err)
		require.False(t, ok)

		val, err := db.Get([]byte("ins"))
		require.NoError(t, err)
		require.Equal(t, []byte("first"), val)
	})

	t.Run("InsertConcurrent", func(t *testing.T) {
		const n = 16
		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				ok, err := db.Insert([]byte("race"), []byte(fmt.Sprintf("v%d", i)))
				if err == nil && ok {
					wins.Add(1)
				}
			}(i)
		}
		wg.Wait()
		require.Equal(t, int32(1), wins.Load())
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, db.Put([]byte("del"), []byte("value")))
		require.NoError(t, db.Delete([]byte("del")))

		ok, err := db.Has([]byte("del"))
		require.NoError(t, err)
		require.False(t, ok)

		_, err = db.Get([]byte("del"))
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("DeleteNonexistent", func(t *testing.T) {
		require.NoError(t, db.Delete([]byte("never-existed")))
	})

	t.Run("EmptyValue", func(t *testing.T) {
		require.NoError(t, db.Put([]byte("empty"), []byte{}))

		val, err := db.Get([]byte("empty"))
		require.NoError(t, err)
		require.Len(t, val, 0)
	})

	t.Run("BinaryData", func(t *testing.T) {
		key := []byte{0x00, 0x01, 0xFF}
		value := make([]byte, 256)
		for i := range value {
			value[i] = byte(i)
		}

		require.NoError(t, db.Put(key, value))
		got, err := db.Get(key)
		require.NoError(t, err)
		require.Equal(t, value, got)
	})

	t.Run("ForEach", func(t *testing.T) {
		require.NoError(t, db.Put([]byte("prefix/a"), []byte("1")))
		require.NoError(t, db.Put([]byte("prefix/b"), []byte("2")))
		require.NoError(t, db.Put([]byte("prefix/c"), []byte("3")))
		require.NoError(t, db.Put([]byte("other/x"), []byte("4")))

		seen := map[string]string{}
		err := db.ForEach([]byte("prefix/"), func(key, value []byte) error {
			seen[string(key)] = string(value)
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, map[string]string{"prefix/a": "1", "prefix/b": "2", "prefix/c": "3"}, seen)
	})

	t.Run("ForEachEmpty", func(t *testing.T) {
		var count int
		err := db.ForEach([]byte("nonexistent/"), func(key, value []byte) error {
			count++
			return nil
		})
		require.NoError(t, err)
		require.Zero(t, count)
	})
}

func TestMemoryDB(t *testing.T) {
	db := NewMemory()
	defer db.Close()
	testDB(t, db)
}

func TestBadgerDB(t *testing.T) {
	db, err := NewBadger(t.TempDir())
	require.NoError(t, err)
	defer db.Close()
	testDB(t, db)
}

func TestBoltDB(t *testing.T) {
	db, err := NewBolt(filepath.Join(t.TempDir(), "kv.bolt"))
	require.NoError(t, err)
	defer db.Close()
	testDB(t, db)
}

func TestSQLiteDB(t *testing.T) {
	db, err := NewSQLite(filepath.Join(t.TempDir(), "kv.sqlite"))
	require.NoError(t, err)
	defer db.Close()
	testDB(t, db)
}

func TestPersistence(t *testing.T) {
	for _, backend := range []string{BackendBadger, BackendBolt, BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			dir := t.TempDir()

			db1, err := Open(backend, dir)
			require.NoError(t, err)
			require.NoError(t, db1.Put([]byte("persist"), []byte("data")))
			require.NoError(t, db1.Close())

			db2, err := Open(backend, dir)
			require.NoError(t, err)
			defer db2.Close()

			val, err := db2.Get([]byte("persist"))
			require.NoError(t, err)
			require.Equal(t, []byte("data"), val)
		})
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open("leveldb", t.TempDir())
	require.Error(t, err)
}
