package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/zeebo/blake3"
)

const (
	// AddressPrefix is prepended to every participant address
	AddressPrefix = "scm"

	// AddressLength is the number of hash bytes kept in an address
	AddressLength = 20
)

// Hash computes the BLAKE3 hash of the input data
func Hash(data []byte) []byte {
	hasher := blake3.New()
	hasher.Write(data)
	return hasher.Sum(nil)
}

// Address derives the short participant address of a public key: the last
// 20 bytes of the BLAKE3 hash of the uncompressed key.
func Address(publicKey *ecdsa.PublicKey) string {
	hash := Hash(ethcrypto.FromECDSAPub(publicKey))
	return AddressPrefix + hex.EncodeToString(hash[len(hash)-AddressLength:])
}

// IsValidAddress checks the prefix and hex body of an address
func IsValidAddress(address string) bool {
	if len(address) != len(AddressPrefix)+AddressLength*2 || address[:len(AddressPrefix)] != AddressPrefix {
		return false
	}
	_, err := hex.DecodeString(address[len(AddressPrefix):])
	return err == nil
}
