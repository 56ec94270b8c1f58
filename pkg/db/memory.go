package db

import (
	"bytes"
	"sort"
	"sync"
)

// MemoryDatabase is an in-memory implementation of the Database interface.
// It backs tests and throwaway nodes; nothing survives Close.
type MemoryDatabase struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryDB creates a new in-memory database
func NewMemoryDB() Database {
	return &MemoryDatabase{
		data: make(map[string][]byte),
	}
}

// Open is a no-op; path is ignored
func (mdb *MemoryDatabase) Open(path string) error {
	mdb.mu.Lock()
	defer mdb.mu.Unlock()
	if mdb.data == nil {
		mdb.data = make(map[string][]byte)
	}
	return nil
}

// Close drops every key
func (mdb *MemoryDatabase) Close() error {
	mdb.mu.Lock()
	defer mdb.mu.Unlock()
	mdb.data = nil
	return nil
}

// Put stores a copy of value under key
func (mdb *MemoryDatabase) Put(key, value []byte) error {
	mdb.mu.Lock()
	defer mdb.mu.Unlock()

	if mdb.data == nil {
		return ErrClosed
	}
	mdb.data[string(key)] = bytes.Clone(value)
	return nil
}

// Get returns a copy of the value stored under key
func (mdb *MemoryDatabase) Get(key []byte) ([]byte, error) {
	mdb.mu.RLock()
	defer mdb.mu.RUnlock()

	if mdb.data == nil {
		return nil, ErrClosed
	}
	value, ok := mdb.data[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return bytes.Clone(value), nil
}

// Delete removes key; deleting a missing key is not an error
func (mdb *MemoryDatabase) Delete(key []byte) error {
	mdb.mu.Lock()
	defer mdb.mu.Unlock()

	if mdb.data == nil {
		return ErrClosed
	}
	delete(mdb.data, string(key))
	return nil
}

// Has reports whether key is present
func (mdb *MemoryDatabase) Has(key []byte) (bool, error) {
	mdb.mu.RLock()
	defer mdb.mu.RUnlock()

	if mdb.data == nil {
		return false, ErrClosed
	}
	_, ok := mdb.data[string(key)]
	return ok, nil
}

// Iterator snapshots the range [start, end). Later writes are not seen.
func (mdb *MemoryDatabase) Iterator(start, end []byte) (Iterator, error) {
	mdb.mu.RLock()
	defer mdb.mu.RUnlock()

	if mdb.data == nil {
		return nil, ErrClosed
	}

	var entries []memoryEntry
	for k, v := range mdb.data {
		key := []byte(k)
		if start != nil && bytes.Compare(key, start) < 0 {
			continue
		}
		if end != nil && bytes.Compare(key, end) >= 0 {
			continue
		}
		entries = append(entries, memoryEntry{key: key, value: bytes.Clone(v)})
	}
	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].key, entries[j].key) < 0
	})

	return &MemoryIterator{entries: entries, pos: -1}, nil
}

// Batch returns a batch applied under a single lock
func (mdb *MemoryDatabase) Batch() Batch {
	return &MemoryBatch{db: mdb}
}

type memoryEntry struct {
	key   []byte
	value []byte
}

// MemoryIterator walks a snapshot of a key range
type MemoryIterator struct {
	entries []memoryEntry
	pos     int
}

// Next advances to the next entry
func (mi *MemoryIterator) Next() bool {
	if mi.pos < len(mi.entries) {
		mi.pos++
	}
	return mi.pos < len(mi.entries)
}

func (mi *MemoryIterator) current() *memoryEntry {
	if mi.pos < 0 || mi.pos >= len(mi.entries) {
		return nil
	}
	return &mi.entries[mi.pos]
}

// Key returns the current key
func (mi *MemoryIterator) Key() []byte {
	if e := mi.current(); e != nil {
		return bytes.Clone(e.key)
	}
	return nil
}

// Value returns the current value
func (mi *MemoryIterator) Value() []byte {
	if e := mi.current(); e != nil {
		return bytes.Clone(e.value)
	}
	return nil
}

// Error always returns nil
func (mi *MemoryIterator) Error() error {
	return nil
}

// Close releases the snapshot
func (mi *MemoryIterator) Close() error {
	mi.entries = nil
	return nil
}

type memoryOp struct {
	key    string
	value  []byte
	delete bool
}

// MemoryBatch records operations until Write
type MemoryBatch struct {
	db  *MemoryDatabase
	ops []memoryOp
}

// Put queues a write
func (mb *MemoryBatch) Put(key, value []byte) error {
	mb.ops = append(mb.ops, memoryOp{key: string(key), value: bytes.Clone(value)})
	return nil
}

// Delete queues a deletion
func (mb *MemoryBatch) Delete(key []byte) error {
	mb.ops = append(mb.ops, memoryOp{key: string(key), delete: true})
	return nil
}

// Write applies the queued operations in order
func (mb *MemoryBatch) Write() error {
	mb.db.mu.Lock()
	defer mb.db.mu.Unlock()

	if mb.db.data == nil {
		return ErrClosed
	}
	for _, op := range mb.ops {
		if op.delete {
			delete(mb.db.data, op.key)
		} else {
			mb.db.data[op.key] = op.value
		}
	}
	return nil
}

// Reset discards the queued operations
func (mb *MemoryBatch) Reset() {
	mb.ops = nil
}
