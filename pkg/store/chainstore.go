// Package store persists ledger blocks in a key-value database.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/basic-kali-box/Blockchain-Project/pkg/core"
	"github.com/basic-kali-box/Blockchain-Project/pkg/db"
)

const blockPrefix = "block/"

// ErrGap is returned when stored block indexes are not contiguous from 1
var ErrGap = errors.New("store: chain has a gap")

// ChainStore keeps one JSON record per block, keyed by zero-padded index so
// that key order is chain order
type ChainStore struct {
	mu       sync.Mutex
	database db.Database
}

// NewChainStore wraps an opened database
func NewChainStore(database db.Database) *ChainStore {
	return &ChainStore{database: database}
}

func blockKey(index int) []byte {
	return []byte(fmt.Sprintf("%s%020d", blockPrefix, index))
}

// LoadChain reads every stored block in order
func (s *ChainStore) LoadChain() ([]core.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := []byte(blockPrefix)
	it, err := s.database.Iterator(prefix, db.PrefixEnd(prefix))
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var chain []core.Block
	for it.Next() {
		var block core.Block
		if err := json.Unmarshal(it.Value(), &block); err != nil {
			return nil, fmt.Errorf("store: decode %s: %w", it.Key(), err)
		}
		if block.Index != len(chain)+1 {
			return nil, fmt.Errorf("%w: expected block %d, found %d", ErrGap, len(chain)+1, block.Index)
		}
		chain = append(chain, block)
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	return chain, nil
}

// AppendBlock stores a single block
func (s *ChainStore) AppendBlock(block core.Block) error {
	data, err := json.Marshal(block)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.database.Put(blockKey(block.Index), data)
}

// ReplaceChain swaps the stored chain for chain in one batch
func (s *ChainStore) ReplaceChain(chain []core.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := []byte(blockPrefix)
	it, err := s.database.Iterator(prefix, db.PrefixEnd(prefix))
	if err != nil {
		return err
	}
	var stale [][]byte
	for it.Next() {
		stale = append(stale, append([]byte{}, it.Key()...))
	}
	iterErr := it.Error()
	it.Close()
	if iterErr != nil {
		return iterErr
	}

	batch := s.database.Batch()
	for _, key := range stale {
		if err := batch.Delete(key); err != nil {
			return err
		}
	}
	for _, block := range chain {
		data, err := json.Marshal(block)
		if err != nil {
			return err
		}
		if err := batch.Put(blockKey(block.Index), data); err != nil {
			return err
		}
	}
	return batch.Write()
}

// Height returns the number of stored blocks
func (s *ChainStore) Height() (int, error) {
	chain, err := s.LoadChain()
	if err != nil {
		return 0, err
	}
	return len(chain), nil
}
