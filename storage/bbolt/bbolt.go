// Package bbolt provides a BBolt-backed storage repository.
package bbolt

import (
	"fmt"
	"sort"

	"github.com/jrsteele09/tidal-mcp/storage"
	"go.etcd.io/bbolt"
)

// Store implements storage.Repository backed by a BBolt database.
// bbolt serialises writers itself, so Store needs no lock of its own.
type Store struct {
	db *bbolt.DB
}

var _ storage.Repository = (*Store)(nil)

// NewRepository returns a Repository backed by the given BBolt database.
func NewRepository(db *bbolt.DB) *Store {
	return &Store{db: db}
}

// NewRepositoryFromFile opens a BBolt database at the given path and returns a new Repository.
func NewRepositoryFromFile(path string, options *bbolt.Options) (*Store, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return NewRepository(db), nil
}

// Close closes the underlying BBolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(bucket, key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("%s/%s: %w", bucket, key, storage.ErrNotFound)
		}
		var err error
		value, err = (&boltTx{bucket: b}).Get(key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *Store) List(bucket string) ([]string, error) {
	var keys []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		var err error
		keys, err = (&boltTx{bucket: b}).List()
		return err
	})
	return keys, err
}

// Update runs fn inside a single read-write transaction on bucket,
// creating the bucket if needed. Nothing is written if fn returns an error.
func (s *Store) Update(bucket string, fn func(tx storage.Tx) error) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return err
		}
		return fn(&boltTx{bucket: b})
	})
}

type boltTx struct {
	bucket *bbolt.Bucket
}

func (tx *boltTx) Put(key string, value []byte) error {
	return tx.bucket.Put([]byte(key), value)
}

func (tx *boltTx) Get(key string) ([]byte, error) {
	data := tx.bucket.Get([]byte(key))
	if data == nil {
		return nil, fmt.Errorf("%s: %w", key, storage.ErrNotFound)
	}
	// bbolt memory is only valid for the life of the transaction.
	return append([]byte(nil), data...), nil
}

func (tx *boltTx) Delete(key string) error {
	return tx.bucket.Delete([]byte(key))
}

func (tx *boltTx) List() ([]string, error) {
	var keys []string
	err := tx.bucket.ForEach(func(k, _ []byte) error {
		keys = append(keys, string(k))
		return nil
	})
	sort.Strings(keys)
	return keys, err
}
