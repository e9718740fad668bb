package bbolt

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jrsteele09/tidal-mcp/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sessions.db")
	s, err := NewRepositoryFromFile(path, nil)
	require.NoError(t, err)
	return s, path
}

func put(s *Store, bucket, key string, value []byte) error {
	return s.Update(bucket, func(tx storage.Tx) error {
		return tx.Put(key, value)
	})
}

func del(s *Store, bucket, key string) error {
	return s.Update(bucket, func(tx storage.Tx) error {
		return tx.Delete(key)
	})
}

func TestBBoltStorage(t *testing.T) {
	s, _ := newTestStore(t)
	defer s.Close()

	t.Run("PutGet", func(t *testing.T) {
		require.NoError(t, put(s, "b", "k1", []byte("v1")))
		got, err := s.Get("b", "k1")
		require.NoError(t, err)
		assert.Equal(t, []byte("v1"), got)
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, put(s, "b", "k1", []byte("v2")))
		got, err := s.Get("b", "k1")
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), got)
	})

	t.Run("List", func(t *testing.T) {
		require.NoError(t, put(s, "b", "k2", []byte("v")))
		keys, err := s.List("b")
		require.NoError(t, err)
		assert.Equal(t, []string{"k1", "k2"}, keys)
	})

	t.Run("ListMissingBucket", func(t *testing.T) {
		keys, err := s.List("nope")
		require.NoError(t, err)
		assert.Empty(t, keys)
	})

	t.Run("Get Errors", func(t *testing.T) {
		_, err := s.Get("nope", "k1")
		assert.True(t, errors.Is(err, storage.ErrNotFound))
		_, err = s.Get("b", "missing")
		assert.True(t, errors.Is(err, storage.ErrNotFound))
	})

	t.Run("DeleteIsIdempotent", func(t *testing.T) {
		require.NoError(t, del(s, "b", "k2"))
		require.NoError(t, del(s, "b", "k2"))
		require.NoError(t, del(s, "nope", "k2"))
		_, err := s.Get("b", "k2")
		assert.True(t, errors.Is(err, storage.ErrNotFound))
	})

	t.Run("UpdateRollsBackOnError", func(t *testing.T) {
		boom := errors.New("boom")
		err := s.Update("b", func(tx storage.Tx) error {
			require.NoError(t, tx.Put("k3", []byte("v")))
			return boom
		})
		assert.ErrorIs(t, err, boom)
		_, err = s.Get("b", "k3")
		assert.True(t, errors.Is(err, storage.ErrNotFound))
	})
}

func TestBBoltSurvivesReopen(t *testing.T) {
	s, path := newTestStore(t)
	require.NoError(t, put(s, "b", "k", []byte("persisted")))
	require.NoError(t, s.Close())

	reopened, err := NewRepositoryFromFile(path, nil)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get("b", "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("persisted"), got)
}

func TestBBoltConcurrentWriters(t *testing.T) {
	s, _ := newTestStore(t)
	defer s.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, put(s, "b", fmt.Sprintf("k%02d", i), []byte("v")))
		}(i)
	}
	wg.Wait()

	keys, err := s.List("b")
	require.NoError(t, err)
	assert.Len(t, keys, 20)
}
