// Package db provides the key-value storage backends the node persists its
// chain and identity records in.
package db

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Get when a key does not exist
	ErrNotFound = errors.New("db: key not found")

	// ErrClosed is returned by operations on a database that is not open
	ErrClosed = errors.New("db: database closed")
)

// Database defines the interface for database operations
type Database interface {
	// Open opens the database
	Open(path string) error

	// Close closes the database
	Close() error

	// Put stores a key-value pair
	Put(key, value []byte) error

	// Get retrieves a value by key
	Get(key []byte) ([]byte, error)

	// Delete removes a key-value pair
	Delete(key []byte) error

	// Has checks if a key exists
	Has(key []byte) (bool, error)

	// Iterator returns an iterator over the key range [start, end)
	Iterator(start, end []byte) (Iterator, error)

	// Batch returns a batch for atomic updates
	Batch() Batch
}

// Iterator walks a key range in ascending key order. Key and Value return
// copies that stay valid after Next.
type Iterator interface {
	// Next moves the iterator to the next key
	Next() bool

	// Key returns the current key
	Key() []byte

	// Value returns the current value
	Value() []byte

	// Error returns any accumulated error
	Error() error

	// Close releases associated resources
	Close() error
}

// Batch queues writes that Write applies atomically, in the order they
// were queued
type Batch interface {
	// Put adds a key-value pair to the batch
	Put(key, value []byte) error

	// Delete adds a key deletion to the batch
	Delete(key []byte) error

	// Write writes the batch to the database
	Write() error

	// Reset resets the batch
	Reset()
}

// DBType represents the type of database
type DBType string

const (
	// LevelDB database type
	LevelDB DBType = "leveldb"

	// PebbleDB database type
	PebbleDB DBType = "pebble"

	// BoltDB database type
	BoltDB DBType = "bolt"

	// MemoryDB keeps everything in process memory
	MemoryDB DBType = "memory"
)

// NewDatabase creates a new database of the specified type
func NewDatabase(dbType DBType) (Database, error) {
	switch dbType {
	case LevelDB:
		return NewLevelDB(), nil
	case PebbleDB:
		return NewPebbleDB(), nil
	case BoltDB:
		return NewBoltDB(), nil
	case MemoryDB:
		return NewMemoryDB(), nil
	default:
		return nil, fmt.Errorf("db: unsupported database type %q", dbType)
	}
}

// Open creates a database of the given type and opens it at path
func Open(dbType DBType, path string) (Database, error) {
	database, err := NewDatabase(dbType)
	if err != nil {
		return nil, err
	}
	if err := database.Open(path); err != nil {
		return nil, fmt.Errorf("db: open %s at %s: %w", dbType, path, err)
	}
	return database, nil
}

// PrefixEnd returns the smallest key greater than every key with prefix, for
// use as the exclusive end of a prefix scan. It returns nil when no such key
// exists.
func PrefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
