package db

import (
	"bytes"
	"errors"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
)

// PebbleDBDatabase is a Pebble implementation of the Database interface.
// Pebble panics on use after Close, so every call checks closed first.
type PebbleDBDatabase struct {
	db     *pebble.DB
	closed atomic.Bool
}

// NewPebbleDB creates a new PebbleDB database
func NewPebbleDB() Database {
	return &PebbleDBDatabase{}
}

// Open opens or creates the database directory at path
func (pdb *PebbleDBDatabase) Open(path string) error {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return err
	}
	pdb.db = db
	pdb.closed.Store(false)
	return nil
}

func (pdb *PebbleDBDatabase) usable() bool {
	return pdb.db != nil && !pdb.closed.Load()
}

// Close closes the database. Closing twice is a no-op.
func (pdb *PebbleDBDatabase) Close() error {
	if pdb.db == nil || !pdb.closed.CompareAndSwap(false, true) {
		return nil
	}
	return pdb.db.Close()
}

func (pdb *PebbleDBDatabase) Put(key, value []byte) error {
	if !pdb.usable() {
		return ErrClosed
	}
	return pdb.db.Set(key, value, pebble.Sync)
}

// Get returns a copy; pebble's slice is only valid until the closer runs
func (pdb *PebbleDBDatabase) Get(key []byte) ([]byte, error) {
	if !pdb.usable() {
		return nil, ErrClosed
	}
	value, closer, err := pdb.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return bytes.Clone(value), nil
}

func (pdb *PebbleDBDatabase) Delete(key []byte) error {
	if !pdb.usable() {
		return ErrClosed
	}
	return pdb.db.Delete(key, pebble.Sync)
}

func (pdb *PebbleDBDatabase) Has(key []byte) (bool, error) {
	if !pdb.usable() {
		return false, ErrClosed
	}
	_, closer, err := pdb.db.Get(key)
	switch {
	case errors.Is(err, pebble.ErrNotFound):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, closer.Close()
}

func (pdb *PebbleDBDatabase) Iterator(start, end []byte) (Iterator, error) {
	if !pdb.usable() {
		return nil, ErrClosed
	}
	iter, err := pdb.db.NewIter(&pebble.IterOptions{
		LowerBound: start,
		UpperBound: end,
	})
	if err != nil {
		return nil, err
	}
	return &PebbleDBIterator{iter: iter}, nil
}

func (pdb *PebbleDBDatabase) Batch() Batch {
	return &PebbleDBBatch{owner: pdb}
}

// PebbleDBIterator adapts pebble's positioned iterator to Next-first use
type PebbleDBIterator struct {
	iter    *pebble.Iterator
	started bool
}

func (it *PebbleDBIterator) Next() bool {
	if !it.started {
		it.started = true
		return it.iter.First()
	}
	return it.iter.Next()
}

func (it *PebbleDBIterator) Key() []byte {
	return bytes.Clone(it.iter.Key())
}

func (it *PebbleDBIterator) Value() []byte {
	return bytes.Clone(it.iter.Value())
}

func (it *PebbleDBIterator) Error() error {
	return it.iter.Error()
}

func (it *PebbleDBIterator) Close() error {
	return it.iter.Close()
}

// PebbleDBBatch creates its pebble.Batch lazily so an unused batch holds
// no resources
type PebbleDBBatch struct {
	owner *PebbleDBDatabase
	batch *pebble.Batch
}

func (b *PebbleDBBatch) ensure() (*pebble.Batch, error) {
	if !b.owner.usable() {
		return nil, ErrClosed
	}
	if b.batch == nil {
		b.batch = b.owner.db.NewBatch()
	}
	return b.batch, nil
}

func (b *PebbleDBBatch) Put(key, value []byte) error {
	batch, err := b.ensure()
	if err != nil {
		return err
	}
	return batch.Set(key, value, nil)
}

func (b *PebbleDBBatch) Delete(key []byte) error {
	batch, err := b.ensure()
	if err != nil {
		return err
	}
	return batch.Delete(key, nil)
}

// Write commits with fsync and releases the underlying batch
func (b *PebbleDBBatch) Write() error {
	batch, err := b.ensure()
	if err != nil {
		return err
	}
	b.batch = nil
	err = batch.Commit(pebble.Sync)
	if cerr := batch.Close(); err == nil {
		err = cerr
	}
	return err
}

func (b *PebbleDBBatch) Reset() {
	if b.batch != nil {
		b.batch.Reset()
	}
}
