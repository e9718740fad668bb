// Package memory provides a thread-safe in-memory implementation of storage.Repository.
package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/jrsteele09/tidal-mcp/storage"
)

// Repository is a thread-safe in-memory implementation of storage.Repository.
// Suitable for testing, demos, and single-process use cases.
type Repository struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

var _ storage.Repository = (*Repository)(nil)

// NewRepository creates a new empty in-memory Repository.
func NewRepository() *Repository {
	return &Repository{data: make(map[string]map[string][]byte)}
}

func (r *Repository) Get(bucket, key string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	values, ok := r.data[bucket]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", bucket, key, storage.ErrNotFound)
	}
	return (&memTx{values: values}).Get(key)
}

func (r *Repository) List(bucket string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return (&memTx{values: r.data[bucket]}).List()
}

// Update applies fn to a scratch copy of the bucket and swaps it in only
// if fn succeeds.
func (r *Repository) Update(bucket string, fn func(tx storage.Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	scratch := make(map[string][]byte, len(r.data[bucket]))
	for k, v := range r.data[bucket] {
		scratch[k] = v
	}
	if err := fn(&memTx{values: scratch}); err != nil {
		return err
	}
	r.data[bucket] = scratch
	return nil
}

func (r *Repository) Close() error {
	return nil
}

type memTx struct {
	values map[string][]byte
}

func (tx *memTx) Put(key string, value []byte) error {
	tx.values[key] = append([]byte(nil), value...)
	return nil
}

func (tx *memTx) Get(key string) ([]byte, error) {
	v, ok := tx.values[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, storage.ErrNotFound)
	}
	return append([]byte(nil), v...), nil
}

func (tx *memTx) Delete(key string) error {
	delete(tx.values, key)
	return nil
}

func (tx *memTx) List() ([]string, error) {
	keys := make([]string, 0, len(tx.values))
	for k := range tx.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
