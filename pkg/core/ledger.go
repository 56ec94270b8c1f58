package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/basic-kali-box/Blockchain-Project/pkg/encoding"
	"github.com/basic-kali-box/Blockchain-Project/pkg/identity"
	"github.com/basic-kali-box/Blockchain-Project/pkg/types"
)

// IdentityLookup resolves a sender to its registered identity
type IdentityLookup interface {
	Lookup(id string) (identity.Identity, error)
}

// SignatureVerifier checks a hex signature over data with a hex public key
type SignatureVerifier interface {
	Verify(publicKey string, data []byte, signature string) bool
}

// BlockStore persists the chain. AppendBlock is called before a mined
// block becomes visible and ReplaceChain before an adopted chain does.
type BlockStore interface {
	LoadChain() ([]Block, error)
	AppendBlock(block Block) error
	ReplaceChain(chain []Block) error
}

// Option configures a Ledger
type Option func(*Ledger)

// WithStore persists blocks to s and restores the chain from it
func WithStore(s BlockStore) Option {
	return func(l *Ledger) { l.store = s }
}

// WithNotifier registers fn to receive ledger events. fn is called without
// the ledger lock held.
func WithNotifier(fn func(Event)) Option {
	return func(l *Ledger) { l.notify = fn }
}

// WithPoWWorkers sets the number of goroutines used to solve proofs
func WithPoWWorkers(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.powWorkers = n
		}
	}
}

// WithGenesis takes the genesis timestamp from g so that nodes sharing a
// genesis file share the first block
func WithGenesis(g *Genesis) Option {
	return func(l *Ledger) { l.genesis = g }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// Ledger is the node's chain, pending pool and product index
type Ledger struct {
	mu       sync.RWMutex
	chain    []Block
	pending  []Transaction
	products productTable

	identities IdentityLookup
	verifier   SignatureVerifier
	store      BlockStore
	genesis    *Genesis
	notify     func(Event)
	powWorkers int
	now        func() time.Time
}

// NewLedger restores the chain from the configured store, or starts a new
// chain holding only the genesis block
func NewLedger(identities IdentityLookup, verifier SignatureVerifier, opts ...Option) (*Ledger, error) {
	l := &Ledger{
		identities: identities,
		verifier:   verifier,
		powWorkers: 1,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}

	var chain []Block
	if l.store != nil {
		stored, err := l.store.LoadChain()
		if err != nil {
			return nil, fmt.Errorf("core: load chain: %w", err)
		}
		chain = stored
	}

	if len(chain) == 0 {
		genesisTime := l.now()
		if l.genesis != nil && !l.genesis.Timestamp.IsZero() {
			genesisTime = l.genesis.Timestamp
		}
		chain = []Block{NewGenesisBlock(genesisTime)}

		if l.store != nil {
			if err := l.store.AppendBlock(chain[0]); err != nil {
				return nil, fmt.Errorf("core: persist genesis: %w", err)
			}
		}
	} else if !IsValidChain(chain) {
		return nil, fmt.Errorf("%w: stored chain", ErrInvalidChain)
	}

	l.chain = chain
	l.products = buildProducts(chain, nil)
	return l, nil
}

func (l *Ledger) emit(ev Event) {
	if l.notify != nil {
		l.notify(ev)
	}
}

// Chain returns a copy of the chain
func (l *Ledger) Chain() []Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneChain(l.chain)
}

// Len returns the number of blocks
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.chain)
}

// LastBlock returns the most recent block
func (l *Ledger) LastBlock() Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.chain[len(l.chain)-1]
}

// Pending returns a copy of the pending pool in submission order
func (l *Ledger) Pending() []Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Transaction{}, l.pending...)
}

// PendingCount returns the size of the pending pool
func (l *Ledger) PendingCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.pending)
}

// Submit validates req and queues it for the next block. It returns the
// index of the block the transaction will be mined into.
//
// Checks run in order: sender identity, signature over the canonical
// payload, payload schema, then product preconditions. Provenance state is
// updated as soon as the transaction is accepted.
func (l *Ledger) Submit(req SubmitRequest) (Transaction, int, error) {
	tx, err := l.validate(req)
	if err != nil {
		return Transaction{}, 0, err
	}

	l.mu.Lock()
	if err := l.products.checkPreconditions(tx); err != nil {
		l.mu.Unlock()
		return Transaction{}, 0, err
	}
	l.products.apply(tx)
	l.pending = append(l.pending, tx)
	index := len(l.chain) + 1
	l.mu.Unlock()

	l.emit(Event{Type: EventNewTransaction, Transaction: &tx, Length: index - 1})
	return tx, index, nil
}

func (l *Ledger) validate(req SubmitRequest) (Transaction, error) {
	sender, err := l.identities.Lookup(req.Sender)
	if err != nil {
		return Transaction{}, fmt.Errorf("%w: %s", ErrUnknownSender, req.Sender)
	}

	signed, err := encoding.Canonical(req.Data)
	if err != nil {
		return Transaction{}, &MalformedPayloadError{Field: "data", Reason: "not a JSON object"}
	}
	if !l.verifier.Verify(sender.PublicKey, signed, req.Signature) {
		return Transaction{}, ErrInvalidSignature
	}

	payload, err := types.DecodePayload(req.Type, req.Data)
	if err != nil {
		var fe *types.FieldError
		if errors.As(err, &fe) {
			return Transaction{}, &MalformedPayloadError{Field: fe.Field, Reason: fe.Reason}
		}
		return Transaction{}, &MalformedPayloadError{Field: "data", Reason: err.Error()}
	}

	// The recorded payload must encode to exactly the signed bytes
	stored, err := encoding.Canonical(payload)
	if err != nil {
		return Transaction{}, &MalformedPayloadError{Field: "data", Reason: err.Error()}
	}
	if !bytes.Equal(stored, signed) {
		return Transaction{}, &MalformedPayloadError{
			Field:  lossyField(signed, stored),
			Reason: "value is not preserved once recorded",
		}
	}

	switch p := payload.(type) {
	case types.ProductRegistration:
		if p.ProducerID != req.Sender {
			return Transaction{}, &MalformedPayloadError{Field: "producer_id", Reason: "must match sender"}
		}
	case types.TransferEvent:
		if p.SenderID != req.Sender {
			return Transaction{}, &MalformedPayloadError{Field: "sender_id", Reason: "must match sender"}
		}
	}

	return Transaction{
		Sender:    req.Sender,
		Type:      req.Type,
		Data:      payload,
		Timestamp: l.now(),
		Signature: req.Signature,
		ID:        NewTransactionID(),
	}, nil
}

// lossyField names the first top-level key whose value differs between the
// signed and the recorded encoding
func lossyField(signed, stored []byte) string {
	a, errA := encoding.Normalize(signed)
	b, errB := encoding.Normalize(stored)
	before, okA := a.(map[string]any)
	after, okB := b.(map[string]any)
	if errA != nil || errB != nil || !okA || !okB {
		return "data"
	}

	keys := make([]string, 0, len(before)+len(after))
	for k := range before {
		keys = append(keys, k)
	}
	for k := range after {
		if _, ok := before[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		va, inA := before[k]
		vb, inB := after[k]
		if inA != inB {
			return k
		}
		ea, _ := encoding.Canonical(va)
		eb, _ := encoding.Canonical(vb)
		if !bytes.Equal(ea, eb) {
			return k
		}
	}
	return "data"
}

// Mine solves a proof for the current last block and seals every pending
// transaction plus a reward into a new block. The proof is searched without
// holding the lock; if another block lands meanwhile the search restarts
// against the new tip.
func (l *Ledger) Mine(ctx context.Context) (Block, error) {
	for {
		l.mu.RLock()
		last := l.chain[len(l.chain)-1]
		l.mu.RUnlock()
		lastHash := last.Hash()

		proof, err := SolveProofParallel(ctx, last.Proof, l.powWorkers)
		if err != nil {
			return Block{}, err
		}

		l.mu.Lock()
		tip := l.chain[len(l.chain)-1]
		if tip.Index != last.Index || tip.Hash() != lastHash {
			l.mu.Unlock()
			continue
		}

		now := l.now()
		txs := make([]Transaction, 0, len(l.pending)+1)
		txs = append(txs, l.pending...)
		txs = append(txs, newRewardTransaction(now))

		block := Block{
			Index:        len(l.chain) + 1,
			Timestamp:    now,
			Transactions: txs,
			Proof:        proof,
			PreviousHash: lastHash,
		}

		if l.store != nil {
			if err := l.store.AppendBlock(block); err != nil {
				l.mu.Unlock()
				return Block{}, fmt.Errorf("core: persist block %d: %w", block.Index, err)
			}
		}
		l.chain = append(l.chain, block)
		l.pending = nil
		length := len(l.chain)
		l.mu.Unlock()

		l.emit(Event{Type: EventNewBlock, Block: &block, Length: length})
		return block, nil
	}
}

// ReplaceChain adopts candidate if it is valid and strictly longer than
// the local chain. Adoption clears the pending pool and rebuilds the
// product index from the new chain.
func (l *Ledger) ReplaceChain(candidate []Block) (bool, error) {
	if !IsValidChain(candidate) {
		return false, ErrInvalidChain
	}
	chain := cloneChain(candidate)

	l.mu.Lock()
	if len(chain) <= len(l.chain) {
		l.mu.Unlock()
		return false, nil
	}

	if l.store != nil {
		if err := l.store.ReplaceChain(chain); err != nil {
			l.mu.Unlock()
			return false, fmt.Errorf("core: persist chain: %w", err)
		}
	}
	l.chain = chain
	l.pending = nil
	l.products = buildProducts(chain, nil)
	length := len(chain)
	l.mu.Unlock()

	l.emit(Event{Type: EventChainReplaced, Length: length})
	return true, nil
}
