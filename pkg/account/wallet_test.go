package account

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basic-kali-box/Blockchain-Project/pkg/crypto"
	"github.com/basic-kali-box/Blockchain-Project/pkg/encoding"
)

func TestAccountSignPayload(t *testing.T) {
	acc, err := NewAccount("producer1")
	require.NoError(t, err)
	assert.True(t, crypto.IsValidAddress(acc.Address))

	payload := map[string]any{"product_id": "P1", "name": "Beans", "producer_id": "producer1"}
	sig, err := acc.SignPayload(payload)
	require.NoError(t, err)

	msg, err := encoding.Canonical(payload)
	require.NoError(t, err)
	assert.True(t, crypto.Verify(acc.PublicKeyHex(), msg, sig))

	imported, err := ImportFromPrivateKeyHex("copy", acc.ExportPrivateKeyHex())
	require.NoError(t, err)
	assert.Equal(t, acc.Address, imported.Address)

	_, err = NewAccountFromPrivateKey("", acc.PrivateKey)
	assert.Error(t, err)
}

func TestWalletPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet", "wallet.dat")

	w, err := NewWallet(path, "secret")
	require.NoError(t, err)

	farmer, err := w.CreateAccount("farmer1")
	require.NoError(t, err)
	_, err = w.CreateAccount("retailer1")
	require.NoError(t, err)
	_, err = w.CreateAccount("farmer1")
	assert.ErrorIs(t, err, ErrAccountExists)

	def, err := w.GetDefaultAccount()
	require.NoError(t, err)
	assert.Equal(t, "farmer1", def.Name)
	require.NoError(t, w.SetDefaultAccount("retailer1"))

	reopened, err := NewWallet(path, "secret")
	require.NoError(t, err)
	assert.Equal(t, []string{"farmer1", "retailer1"}, reopened.ListAccounts())
	assert.Equal(t, "retailer1", reopened.DefaultAccount)

	got, err := reopened.GetAccount("farmer1")
	require.NoError(t, err)
	assert.Equal(t, farmer.Address, got.Address)
	assert.Equal(t, farmer.ExportPrivateKeyHex(), got.ExportPrivateKeyHex())

	_, err = NewWallet(path, "wrong")
	assert.Error(t, err)

	require.NoError(t, reopened.RemoveAccount("retailer1"))
	assert.Equal(t, "farmer1", reopened.DefaultAccount)
	_, err = reopened.GetAccount("retailer1")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestWalletSignPayload(t *testing.T) {
	w, err := NewWallet(filepath.Join(t.TempDir(), "wallet.dat"), "")
	require.NoError(t, err)
	acc, err := w.CreateAccount("farmer1")
	require.NoError(t, err)

	raw := json.RawMessage(`{"name":"Beans", "product_id":"P1"}`)
	sig, err := w.SignPayload("farmer1", raw)
	require.NoError(t, err)

	msg, err := encoding.Canonical(map[string]any{"product_id": "P1", "name": "Beans"})
	require.NoError(t, err)
	assert.True(t, crypto.Verify(acc.PublicKeyHex(), msg, sig))

	_, err = w.SignPayload("nobody", raw)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}
