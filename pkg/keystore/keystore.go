// Package keystore stores private keys encrypted with a passphrase.
package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"golang.org/x/crypto/pbkdf2"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/basic-kali-box/Blockchain-Project/pkg/crypto"
)

const (
	kdfIterations = 4096
	keyFilePrefix = "UTC--"
)

// ErrDecrypt is returned when the passphrase is wrong or the file was altered
var ErrDecrypt = errors.New("keystore: invalid password or corrupted key file")

// KeyStore manages encrypted key files
type KeyStore struct {
	keyDir string
}

// NewKeyStore creates a new keystore
func NewKeyStore(keyDir string) *KeyStore {
	return &KeyStore{
		keyDir: keyDir,
	}
}

// Dir returns the directory key files are written to
func (ks *KeyStore) Dir() string {
	return ks.keyDir
}

// StoreKey encrypts privateKey under password and writes it to a new key
// file, returning its path
func (ks *KeyStore) StoreKey(privateKey *ecdsa.PrivateKey, password string) (string, error) {
	if err := os.MkdirAll(ks.keyDir, 0700); err != nil {
		return "", err
	}

	address := crypto.Address(&privateKey.PublicKey)

	salt := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}

	derivedKey := pbkdf2.Key([]byte(password), salt, kdfIterations, 32, sha256.New)

	plain := ethcrypto.FromECDSA(privateKey)
	block, err := aes.NewCipher(derivedKey[:16])
	if err != nil {
		return "", err
	}
	cipherText := make([]byte, len(plain))
	cipher.NewCTR(block, iv).XORKeyStream(cipherText, plain)

	mac := keyMAC(derivedKey, cipherText)

	record, err := structpb.NewStruct(map[string]interface{}{
		"address": address,
		"id":      uuid.NewString(),
		"version": 3,
		"created": time.Now().Unix(),
		"crypto": map[string]interface{}{
			"cipher":     "aes-128-ctr",
			"ciphertext": hex.EncodeToString(cipherText),
			"iv":         hex.EncodeToString(iv),
			"kdf":        "pbkdf2",
			"iterations": kdfIterations,
			"salt":       hex.EncodeToString(salt),
			"mac":        hex.EncodeToString(mac),
		},
	})
	if err != nil {
		return "", err
	}

	data, err := proto.Marshal(record)
	if err != nil {
		return "", err
	}

	filename := fmt.Sprintf("%s%s--%s",
		keyFilePrefix,
		time.Now().UTC().Format("2006-01-02T15-04-05.000000000Z"),
		strings.TrimPrefix(address, crypto.AddressPrefix))
	keyPath := filepath.Join(ks.keyDir, filename)

	if err := os.WriteFile(keyPath, data, 0600); err != nil {
		return "", err
	}
	return keyPath, nil
}

// LoadKey decrypts the key file at keyPath
func (ks *KeyStore) LoadKey(keyPath, password string) (*ecdsa.PrivateKey, error) {
	data, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}

	var record structpb.Struct
	if err := proto.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("keystore: decode %s: %w", keyPath, err)
	}
	params := record.GetFields()["crypto"].GetStructValue().GetFields()
	if params == nil {
		return nil, fmt.Errorf("keystore: %s has no crypto section", keyPath)
	}

	salt, err := hexField(params, "salt")
	if err != nil {
		return nil, err
	}
	iv, err := hexField(params, "iv")
	if err != nil {
		return nil, err
	}
	cipherText, err := hexField(params, "ciphertext")
	if err != nil {
		return nil, err
	}
	mac, err := hexField(params, "mac")
	if err != nil {
		return nil, err
	}
	iterations := int(params["iterations"].GetNumberValue())
	if iterations <= 0 {
		return nil, fmt.Errorf("keystore: %s: invalid kdf iterations", keyPath)
	}

	derivedKey := pbkdf2.Key([]byte(password), salt, iterations, 32, sha256.New)
	if subtle.ConstantTimeCompare(keyMAC(derivedKey, cipherText), mac) != 1 {
		return nil, ErrDecrypt
	}

	block, err := aes.NewCipher(derivedKey[:16])
	if err != nil {
		return nil, err
	}
	plain := make([]byte, len(cipherText))
	cipher.NewCTR(block, iv).XORKeyStream(plain, cipherText)

	return ethcrypto.ToECDSA(plain)
}

// ListKeys returns all key files in the keystore
func (ks *KeyStore) ListKeys() ([]string, error) {
	entries, err := os.ReadDir(ks.keyDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}

	var keyFiles []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), keyFilePrefix) {
			keyFiles = append(keyFiles, filepath.Join(ks.keyDir, entry.Name()))
		}
	}
	return keyFiles, nil
}

func keyMAC(derivedKey, cipherText []byte) []byte {
	h := sha256.New()
	h.Write(derivedKey[16:32])
	h.Write(cipherText)
	return h.Sum(nil)
}

func hexField(fields map[string]*structpb.Value, name string) ([]byte, error) {
	raw, err := hex.DecodeString(fields[name].GetStringValue())
	if err != nil {
		return nil, fmt.Errorf("keystore: field %s: %w", name, err)
	}
	return raw, nil
}
