// Package account manages the participant keys a node or CLI user signs
// supply-chain payloads with.
package account

import (
	"crypto/ecdsa"
	"errors"

	"github.com/basic-kali-box/Blockchain-Project/pkg/crypto"
)

// Account is a named signing key
type Account struct {
	Name       string
	PrivateKey *ecdsa.PrivateKey
	PublicKey  *ecdsa.PublicKey
	Address    string
}

// NewAccount creates an account with a fresh secp256k1 key
func NewAccount(name string) (*Account, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return NewAccountFromPrivateKey(name, privateKey)
}

// NewAccountFromPrivateKey creates a new account from a private key
func NewAccountFromPrivateKey(name string, privateKey *ecdsa.PrivateKey) (*Account, error) {
	if privateKey == nil {
		return nil, errors.New("private key is nil")
	}
	if name == "" {
		return nil, errors.New("account name is empty")
	}

	return &Account{
		Name:       name,
		PrivateKey: privateKey,
		PublicKey:  &privateKey.PublicKey,
		Address:    crypto.Address(&privateKey.PublicKey),
	}, nil
}

// ImportFromPrivateKeyHex imports an account from a hex-encoded private key
func ImportFromPrivateKeyHex(name, hexKey string) (*Account, error) {
	privateKey, err := crypto.PrivateKeyFromHex(hexKey)
	if err != nil {
		return nil, err
	}
	return NewAccountFromPrivateKey(name, privateKey)
}

// ExportPrivateKeyHex exports the private key as a hex string
func (a *Account) ExportPrivateKeyHex() string {
	return crypto.PrivateKeyHex(a.PrivateKey)
}

// PublicKeyHex is the key registered with the identity registry
func (a *Account) PublicKeyHex() string {
	return crypto.PublicKeyHex(a.PublicKey)
}

// Sign signs raw bytes
func (a *Account) Sign(data []byte) (string, error) {
	return crypto.Sign(a.PrivateKey, data)
}

// SignPayload signs the canonical encoding of v, as ledger submissions
// require
func (a *Account) SignPayload(v any) (string, error) {
	return crypto.SignCanonical(a.PrivateKey, v)
}
