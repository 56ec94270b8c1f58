package crypto

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/basic-kali-box/Blockchain-Project/pkg/encoding"
)

// SignatureLength is the size of a compact r||s signature in bytes
const SignatureLength = 64

var (
	// ErrNilKey is returned when signing without a private key
	ErrNilKey = errors.New("crypto: private key is nil")

	// ErrInvalidPublicKey is returned for keys that are not valid secp256k1 points
	ErrInvalidPublicKey = errors.New("crypto: invalid public key")
)

// GenerateKey generates a new secp256k1 private key
func GenerateKey() (*ecdsa.PrivateKey, error) {
	return ethcrypto.GenerateKey()
}

// Sign signs data with the private key and returns the hex encoded r||s
// signature. Data is hashed with SHA-256 before signing.
func Sign(privateKey *ecdsa.PrivateKey, data []byte) (string, error) {
	if privateKey == nil {
		return "", ErrNilKey
	}

	digest := sha256.Sum256(data)
	sig, err := ethcrypto.Sign(digest[:], privateKey)
	if err != nil {
		return "", err
	}

	// Drop the recovery byte, verification only needs r and s
	return hex.EncodeToString(sig[:SignatureLength]), nil
}

// SignCanonical signs the canonical encoding of v
func SignCanonical(privateKey *ecdsa.PrivateKey, v any) (string, error) {
	data, err := encoding.Canonical(v)
	if err != nil {
		return "", err
	}
	return Sign(privateKey, data)
}

// Verify reports whether signatureHex is a valid signature of data under the
// hex encoded public key. Malformed keys or signatures never verify.
func Verify(publicKeyHex string, data []byte, signatureHex string) bool {
	pub, err := hex.DecodeString(strings.TrimPrefix(publicKeyHex, "0x"))
	if err != nil || (len(pub) != 65 && len(pub) != 33) {
		return false
	}

	sig, err := hex.DecodeString(signatureHex)
	if err != nil || len(sig) != SignatureLength {
		return false
	}

	digest := sha256.Sum256(data)
	return ethcrypto.VerifySignature(pub, digest[:], sig)
}

// Verifier adapts Verify to the ledger's signature capability
type Verifier struct{}

// Verify implements the signature check used by transaction validation
func (Verifier) Verify(publicKey string, data []byte, signature string) bool {
	return Verify(publicKey, data, signature)
}

// PublicKeyHex returns the uncompressed public key as lowercase hex
func PublicKeyHex(publicKey *ecdsa.PublicKey) string {
	return hex.EncodeToString(ethcrypto.FromECDSAPub(publicKey))
}

// ParsePublicKey decodes a hex encoded public key in compressed or
// uncompressed form
func ParsePublicKey(publicKeyHex string) (*ecdsa.PublicKey, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(publicKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}

	switch len(raw) {
	case 65:
		pub, err := ethcrypto.UnmarshalPubkey(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
		}
		return pub, nil
	case 33:
		pub, err := ethcrypto.DecompressPubkey(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
		}
		return pub, nil
	default:
		return nil, fmt.Errorf("%w: unexpected length %d", ErrInvalidPublicKey, len(raw))
	}
}

// PrivateKeyFromHex decodes a hex encoded secp256k1 private key
func PrivateKeyFromHex(privateKeyHex string) (*ecdsa.PrivateKey, error) {
	return ethcrypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
}

// PrivateKeyHex encodes a private key as hex
func PrivateKeyHex(privateKey *ecdsa.PrivateKey) string {
	return hex.EncodeToString(ethcrypto.FromECDSA(privateKey))
}
