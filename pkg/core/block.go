package core

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/basic-kali-box/Blockchain-Project/pkg/encoding"
)

const (
	// GenesisPreviousHash is the sentinel previous hash of the first block
	GenesisPreviousHash = "1"

	// GenesisProof is the proof recorded in the first block
	GenesisProof uint64 = 100
)

// Block is a sealed batch of transactions linked to its predecessor
type Block struct {
	Index        int           `json:"index"`
	Timestamp    time.Time     `json:"timestamp"`
	Transactions []Transaction `json:"transactions"`
	Proof        uint64        `json:"proof"`
	PreviousHash string        `json:"previous_hash"`
}

// NewGenesisBlock builds the first block of a chain
func NewGenesisBlock(timestamp time.Time) Block {
	return Block{
		Index:        1,
		Timestamp:    timestamp.UTC(),
		Transactions: []Transaction{},
		Proof:        GenesisProof,
		PreviousHash: GenesisPreviousHash,
	}
}

// Hash returns the SHA-256 of the block's canonical encoding as 64
// lowercase hex characters. A block that cannot be encoded hashes to the
// empty string, which never links.
func (b Block) Hash() string {
	data, err := encoding.Canonical(b)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ChainResponse is the wire form of a full chain as served to peers
type ChainResponse struct {
	Chain  []Block `json:"chain"`
	Length int     `json:"length"`
}

// IsValidChain checks that every block links to the hash of its predecessor
// and carries a valid proof for the predecessor's proof. Transaction
// signatures and provenance rules are not re-checked.
func IsValidChain(chain []Block) bool {
	if len(chain) == 0 {
		return false
	}

	for i := 1; i < len(chain); i++ {
		prev, cur := chain[i-1], chain[i]

		if cur.PreviousHash != prev.Hash() {
			return false
		}
		if !ValidProof(prev.Proof, cur.Proof) {
			return false
		}
	}

	return true
}

func cloneChain(chain []Block) []Block {
	out := make([]Block, len(chain))
	copy(out, chain)
	return out
}
