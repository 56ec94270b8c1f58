package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basic-kali-box/Blockchain-Project/pkg/crypto"
	"github.com/basic-kali-box/Blockchain-Project/pkg/db"
	"github.com/basic-kali-box/Blockchain-Project/pkg/types"
)

func newKeyHex(t *testing.T) string {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return crypto.PublicKeyHex(&key.PublicKey)
}

func TestRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	pub := newKeyHex(t)

	id, err := r.Register("farmer1", pub, types.ActorProducer, "Green Farms")
	require.NoError(t, err)
	assert.Len(t, id.UserID, 32)
	assert.True(t, crypto.IsValidAddress(id.Address))

	got, err := r.Lookup("farmer1")
	require.NoError(t, err)
	assert.Equal(t, id, got)
	assert.Equal(t, pub, got.PublicKey)
	assert.Equal(t, types.ActorProducer, got.Role)

	_, err = r.Lookup("nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegisterRejections(t *testing.T) {
	r := NewRegistry()
	pub := newKeyHex(t)

	_, err := r.Register("farmer1", pub, types.ActorProducer, "")
	require.NoError(t, err)

	_, err = r.Register("farmer1", newKeyHex(t), types.ActorRetailer, "")
	assert.ErrorIs(t, err, ErrAlreadyExists)

	_, err = r.Register("pirate", pub, types.ActorType("pirate"), "")
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, err = r.Register("0", pub, types.ActorProducer, "")
	assert.ErrorIs(t, err, ErrInvalidUsername)

	_, err = r.Register("broken", "04ff", types.ActorProducer, "")
	assert.ErrorIs(t, err, crypto.ErrInvalidPublicKey)

	assert.Equal(t, 1, r.Len())
}

func TestPersistentRegistryReloads(t *testing.T) {
	database := db.NewMemoryDB()

	r, err := NewPersistentRegistry(database)
	require.NoError(t, err)
	_, err = r.Register("retailer1", newKeyHex(t), types.ActorRetailer, "Corner Shop")
	require.NoError(t, err)
	_, err = r.Register("distributor1", newKeyHex(t), types.ActorDistributor, "Fast Freight")
	require.NoError(t, err)

	reloaded, err := NewPersistentRegistry(database)
	require.NoError(t, err)
	assert.Equal(t, r.List(), reloaded.List())

	names := []string{}
	for _, id := range reloaded.List() {
		names = append(names, id.Username)
	}
	assert.Equal(t, []string{"distributor1", "retailer1"}, names)
}
