package db

import (
	"bytes"
	"errors"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDBDatabase is a goleveldb implementation of the Database interface.
// Single writes are not synced; batches are.
type LevelDBDatabase struct {
	db *leveldb.DB
}

// NewLevelDB creates a new LevelDB database
func NewLevelDB() Database {
	return &LevelDBDatabase{}
}

// levelErr translates goleveldb sentinels into this package's errors
func levelErr(err error) error {
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, leveldb.ErrClosed):
		return ErrClosed
	}
	return err
}

// Open opens or creates the database directory at path
func (ldb *LevelDBDatabase) Open(path string) error {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return err
	}
	ldb.db = db
	return nil
}

// Close closes the database. Closing twice is a no-op.
func (ldb *LevelDBDatabase) Close() error {
	if ldb.db == nil {
		return nil
	}
	err := ldb.db.Close()
	if errors.Is(err, leveldb.ErrClosed) {
		return nil
	}
	return err
}

func (ldb *LevelDBDatabase) Put(key, value []byte) error {
	if ldb.db == nil {
		return ErrClosed
	}
	return levelErr(ldb.db.Put(key, value, nil))
}

func (ldb *LevelDBDatabase) Get(key []byte) ([]byte, error) {
	if ldb.db == nil {
		return nil, ErrClosed
	}
	value, err := ldb.db.Get(key, nil)
	if err != nil {
		return nil, levelErr(err)
	}
	return value, nil
}

func (ldb *LevelDBDatabase) Delete(key []byte) error {
	if ldb.db == nil {
		return ErrClosed
	}
	return levelErr(ldb.db.Delete(key, nil))
}

func (ldb *LevelDBDatabase) Has(key []byte) (bool, error) {
	if ldb.db == nil {
		return false, ErrClosed
	}
	ok, err := ldb.db.Has(key, nil)
	return ok, levelErr(err)
}

// Iterator reads [start, end) from an implicit snapshot
func (ldb *LevelDBDatabase) Iterator(start, end []byte) (Iterator, error) {
	if ldb.db == nil {
		return nil, ErrClosed
	}
	snap, err := ldb.db.GetSnapshot()
	if err != nil {
		return nil, levelErr(err)
	}
	return &LevelDBIterator{
		snap: snap,
		iter: snap.NewIterator(&util.Range{Start: start, Limit: end}, nil),
	}, nil
}

func (ldb *LevelDBDatabase) Batch() Batch {
	return &LevelDBBatch{db: ldb.db}
}

// LevelDBIterator wraps a snapshot iterator
type LevelDBIterator struct {
	snap *leveldb.Snapshot
	iter iterator.Iterator
}

func (it *LevelDBIterator) Next() bool {
	return it.iter.Next()
}

// Key copies the key out of the iterator's reused buffer
func (it *LevelDBIterator) Key() []byte {
	return bytes.Clone(it.iter.Key())
}

// Value copies the value out of the iterator's reused buffer
func (it *LevelDBIterator) Value() []byte {
	return bytes.Clone(it.iter.Value())
}

func (it *LevelDBIterator) Error() error {
	return levelErr(it.iter.Error())
}

// Close releases the iterator and its snapshot
func (it *LevelDBIterator) Close() error {
	it.iter.Release()
	it.snap.Release()
	return nil
}

// LevelDBBatch wraps leveldb.Batch, which already preserves op order
type LevelDBBatch struct {
	db    *leveldb.DB
	batch leveldb.Batch
}

func (b *LevelDBBatch) Put(key, value []byte) error {
	b.batch.Put(key, value)
	return nil
}

func (b *LevelDBBatch) Delete(key []byte) error {
	b.batch.Delete(key)
	return nil
}

// Write commits the batch with fsync
func (b *LevelDBBatch) Write() error {
	if b.db == nil {
		return ErrClosed
	}
	return levelErr(b.db.Write(&b.batch, &opt.WriteOptions{Sync: true}))
}

func (b *LevelDBBatch) Reset() {
	b.batch.Reset()
}
