package db

import (
	"bytes"
	"errors"
	"time"

	bolt "go.etcd.io/bbolt"
)

// boltBucket holds every key; the Database interface has a flat keyspace
var boltBucket = []byte("kv")

// BoltDatabase is a bbolt implementation of the Database interface
type BoltDatabase struct {
	db *bolt.DB
}

// NewBoltDB creates a new bbolt database
func NewBoltDB() Database {
	return &BoltDatabase{}
}

// Open opens the database file at path
func (bdb *BoltDatabase) Open(path string) error {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	}); err != nil {
		db.Close()
		return err
	}
	bdb.db = db
	return nil
}

// Close closes the database
func (bdb *BoltDatabase) Close() error {
	if bdb.db == nil {
		return nil
	}
	return bdb.db.Close()
}

// boltErr maps bbolt's closed-database error onto ErrClosed
func boltErr(err error) error {
	if errors.Is(err, bolt.ErrDatabaseNotOpen) {
		return ErrClosed
	}
	return err
}

// Put stores a key-value pair
func (bdb *BoltDatabase) Put(key, value []byte) error {
	return boltErr(bdb.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Put(key, value)
	}))
}

// Get retrieves a value by key
func (bdb *BoltDatabase) Get(key []byte) ([]byte, error) {
	var result []byte
	err := bdb.db.View(func(tx *bolt.Tx) error {
		value := tx.Bucket(boltBucket).Get(key)
		if value == nil {
			return ErrNotFound
		}
		// Values are only valid for the life of the transaction
		result = append([]byte(nil), value...)
		return nil
	})
	return result, boltErr(err)
}

// Delete removes a key-value pair
func (bdb *BoltDatabase) Delete(key []byte) error {
	return boltErr(bdb.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Delete(key)
	}))
}

// Has checks if a key exists
func (bdb *BoltDatabase) Has(key []byte) (bool, error) {
	_, err := bdb.Get(key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Iterator returns an iterator over a key range. The range is read inside a
// single read transaction and served from memory.
func (bdb *BoltDatabase) Iterator(start, end []byte) (Iterator, error) {
	it := &BoltIterator{pos: -1}
	err := bdb.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(boltBucket).Cursor()

		var k, v []byte
		if start == nil {
			k, v = c.First()
		} else {
			k, v = c.Seek(start)
		}
		for ; k != nil; k, v = c.Next() {
			if end != nil && bytes.Compare(k, end) >= 0 {
				break
			}
			it.keys = append(it.keys, append([]byte(nil), k...))
			it.values = append(it.values, append([]byte(nil), v...))
		}
		return nil
	})
	if err != nil {
		return nil, boltErr(err)
	}
	return it, nil
}

// Batch returns a batch for atomic updates
func (bdb *BoltDatabase) Batch() Batch {
	return &BoltBatch{db: bdb.db}
}

// BoltIterator implements Iterator over a materialised key range
type BoltIterator struct {
	keys   [][]byte
	values [][]byte
	pos    int
}

// Next moves the iterator to the next key
func (it *BoltIterator) Next() bool {
	if it.pos < len(it.keys) {
		it.pos++
	}
	return it.pos < len(it.keys)
}

// Key returns the current key
func (it *BoltIterator) Key() []byte {
	if it.pos < 0 || it.pos >= len(it.keys) {
		return nil
	}
	return bytes.Clone(it.keys[it.pos])
}

// Value returns the current value
func (it *BoltIterator) Value() []byte {
	if it.pos < 0 || it.pos >= len(it.values) {
		return nil
	}
	return bytes.Clone(it.values[it.pos])
}

// Error returns any accumulated error
func (it *BoltIterator) Error() error {
	return nil
}

// Close releases associated resources
func (it *BoltIterator) Close() error {
	it.keys, it.values = nil, nil
	return nil
}

type boltOp struct {
	key    []byte
	value  []byte
	delete bool
}

// BoltBatch queues operations and applies them in one update transaction
type BoltBatch struct {
	db  *bolt.DB
	ops []boltOp
}

// Put adds a key-value pair to the batch
func (b *BoltBatch) Put(key, value []byte) error {
	b.ops = append(b.ops, boltOp{key: append([]byte(nil), key...), value: append([]byte(nil), value...)})
	return nil
}

// Delete adds a key deletion to the batch
func (b *BoltBatch) Delete(key []byte) error {
	b.ops = append(b.ops, boltOp{key: append([]byte(nil), key...), delete: true})
	return nil
}

// Write applies the queued operations atomically
func (b *BoltBatch) Write() error {
	return boltErr(b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(boltBucket)
		for _, op := range b.ops {
			var err error
			if op.delete {
				err = bucket.Delete(op.key)
			} else {
				err = bucket.Put(op.key, op.value)
			}
			if err != nil {
				return err
			}
		}
		return nil
	}))
}

// Reset resets the batch
func (b *BoltBatch) Reset() {
	b.ops = nil
}
