package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/basic-kali-box/Blockchain-Project/pkg/crypto"
	"github.com/basic-kali-box/Blockchain-Project/pkg/identity"
	"github.com/basic-kali-box/Blockchain-Project/pkg/types"
)

// Genesis describes how a network starts: the first block's timestamp, the
// participants known from the outset and the peers to contact first
type Genesis struct {
	ChainID      string               `json:"chainId"`
	Timestamp    time.Time            `json:"timestamp"`
	Participants []GenesisParticipant `json:"participants"`
	Bootnodes    []string             `json:"bootnodes"`
}

// GenesisParticipant is an identity registered when the node starts
type GenesisParticipant struct {
	Username     string          `json:"username"`
	PublicKey    string          `json:"public_key"`
	Role         types.ActorType `json:"role"`
	Organization string          `json:"organization,omitempty"`
}

// ParticipantRegistrar is what Seed registers genesis participants with
type ParticipantRegistrar interface {
	Register(username, publicKey string, role types.ActorType, organization string) (identity.Identity, error)
}

// DefaultGenesis returns the main network genesis
func DefaultGenesis() *Genesis {
	return &Genesis{
		ChainID:      "supplychain-1",
		Timestamp:    time.Now().UTC().Truncate(time.Second),
		Participants: []GenesisParticipant{},
		Bootnodes:    []string{},
	}
}

// TestnetGenesis returns the test network genesis
func TestnetGenesis() *Genesis {
	g := DefaultGenesis()
	g.ChainID = "supplychain-testnet-1"
	return g
}

// DevGenesis returns the development network genesis
func DevGenesis() *Genesis {
	g := DefaultGenesis()
	g.ChainID = "supplychain-dev-1"
	return g
}

// GenesisForNetwork maps a network name to its genesis
func GenesisForNetwork(network string) (*Genesis, error) {
	switch network {
	case "", "mainnet":
		return DefaultGenesis(), nil
	case "testnet":
		return TestnetGenesis(), nil
	case "devnet":
		return DevGenesis(), nil
	}
	return nil, fmt.Errorf("unknown network %q", network)
}

// ToJSON writes the genesis to filePath
func (g *Genesis) ToJSON(filePath string) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filePath, data, 0644)
}

// FromJSON loads a genesis from filePath
func FromJSON(filePath string) (*Genesis, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var genesis Genesis
	if err := json.Unmarshal(data, &genesis); err != nil {
		return nil, fmt.Errorf("parse genesis %s: %w", filePath, err)
	}
	return &genesis, nil
}

// AddParticipant adds p after checking its role and public key
func (g *Genesis) AddParticipant(p GenesisParticipant) error {
	if p.Username == "" || p.Username == RewardSender {
		return errors.New("invalid participant username")
	}
	if !p.Role.Valid() {
		return fmt.Errorf("invalid participant role %q", p.Role)
	}
	if _, err := crypto.ParsePublicKey(p.PublicKey); err != nil {
		return fmt.Errorf("participant %s: %w", p.Username, err)
	}

	for _, existing := range g.Participants {
		if existing.Username == p.Username {
			return errors.New("participant already exists")
		}
	}

	g.Participants = append(g.Participants, p)
	return nil
}

// RemoveParticipant removes the participant named username
func (g *Genesis) RemoveParticipant(username string) error {
	for i, p := range g.Participants {
		if p.Username == username {
			g.Participants = append(g.Participants[:i], g.Participants[i+1:]...)
			return nil
		}
	}
	return errors.New("participant not found")
}

// AddBootnode appends addr unless it is already listed
func (g *Genesis) AddBootnode(addr string) {
	for _, b := range g.Bootnodes {
		if b == addr {
			return
		}
	}
	g.Bootnodes = append(g.Bootnodes, addr)
}

// Block returns the genesis block described by g
func (g *Genesis) Block() Block {
	return NewGenesisBlock(g.Timestamp)
}

// Seed registers every participant with r. Participants already present
// are skipped. It returns how many were newly registered.
func (g *Genesis) Seed(r ParticipantRegistrar) (int, error) {
	added := 0
	for _, p := range g.Participants {
		_, err := r.Register(p.Username, p.PublicKey, p.Role, p.Organization)
		if errors.Is(err, identity.ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return added, fmt.Errorf("seed participant %s: %w", p.Username, err)
		}
		added++
	}
	return added, nil
}
