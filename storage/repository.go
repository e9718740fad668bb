// Package storage provides the key/value abstraction the credential store
// persists through, plus sealing of records at rest.
package storage

import "errors"

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("record not found")

// Tx is a set of reads and writes against one bucket that commit together.
type Tx interface {
	Put(key string, value []byte) error
	Get(key string) ([]byte, error)
	Delete(key string) error
	List() ([]string, error)
}

// Repository defines the interface for raw record storage. Values are
// opaque bytes; callers are responsible for encoding and sealing. Writes
// go through Update so related records change together.
//
// Tx.Delete of a missing key is not an error.
type Repository interface {
	Get(bucket, key string) ([]byte, error)
	List(bucket string) ([]string, error)
	Update(bucket string, fn func(tx Tx) error) error
	Close() error
}
