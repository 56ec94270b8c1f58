package core

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basic-kali-box/Blockchain-Project/pkg/crypto"
	"github.com/basic-kali-box/Blockchain-Project/pkg/identity"
	"github.com/basic-kali-box/Blockchain-Project/pkg/types"
)

func TestGenesisFileRoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	g := TestnetGenesis()
	require.NoError(t, g.AddParticipant(GenesisParticipant{
		Username:  "producer1",
		PublicKey: crypto.PublicKeyHex(&key.PublicKey),
		Role:      types.ActorProducer,
	}))
	g.AddBootnode("http://127.0.0.1:5001")
	g.AddBootnode("http://127.0.0.1:5001")

	path := filepath.Join(t.TempDir(), "genesis.json")
	require.NoError(t, g.ToJSON(path))

	loaded, err := FromJSON(path)
	require.NoError(t, err)
	assert.Equal(t, "supplychain-testnet-1", loaded.ChainID)
	assert.Len(t, loaded.Bootnodes, 1)
	assert.True(t, g.Timestamp.Equal(loaded.Timestamp))
	assert.Equal(t, g.Block().Hash(), loaded.Block().Hash())
}

func TestGenesisAddParticipantRejects(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	pub := crypto.PublicKeyHex(&key.PublicKey)

	g := DefaultGenesis()
	require.NoError(t, g.AddParticipant(GenesisParticipant{Username: "producer1", PublicKey: pub, Role: types.ActorProducer}))

	assert.Error(t, g.AddParticipant(GenesisParticipant{Username: "producer1", PublicKey: pub, Role: types.ActorProducer}))
	assert.Error(t, g.AddParticipant(GenesisParticipant{Username: "x", PublicKey: pub, Role: "pirate"}))
	assert.Error(t, g.AddParticipant(GenesisParticipant{Username: "y", PublicKey: "zz", Role: types.ActorRetailer}))
	assert.Error(t, g.AddParticipant(GenesisParticipant{Username: RewardSender, PublicKey: pub, Role: types.ActorRetailer}))

	require.NoError(t, g.RemoveParticipant("producer1"))
	assert.Error(t, g.RemoveParticipant("producer1"))
}

func TestGenesisSeed(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	g := DevGenesis()
	require.NoError(t, g.AddParticipant(GenesisParticipant{Username: "producer1", PublicKey: crypto.PublicKeyHex(&key.PublicKey), Role: types.ActorProducer}))

	registry := identity.NewRegistry()
	added, err := g.Seed(registry)
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	added, err = g.Seed(registry)
	require.NoError(t, err)
	assert.Zero(t, added)

	id, err := registry.Lookup("producer1")
	require.NoError(t, err)
	assert.Equal(t, types.ActorProducer, id.Role)
}

func TestGenesisForNetwork(t *testing.T) {
	g, err := GenesisForNetwork("devnet")
	require.NoError(t, err)
	assert.Equal(t, "supplychain-dev-1", g.ChainID)

	_, err = GenesisForNetwork("moon")
	assert.Error(t, err)
}
