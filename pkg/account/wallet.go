package account

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/basic-kali-box/Blockchain-Project/pkg/keystore"
)

var (
	// ErrAccountNotFound is returned for names the wallet does not hold
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountExists is returned when adding a name already in use
	ErrAccountExists = errors.New("account already exists in wallet")
)

// Wallet manages multiple named accounts. Keys live encrypted in a
// keystore next to the wallet file; the wallet file only records which
// key file belongs to which name.
type Wallet struct {
	Accounts       map[string]*Account
	DefaultAccount string
	mu             sync.RWMutex
	walletPath     string
	password       string
	keyFiles       map[string]string
	createdAt      int64
	keyStore       *keystore.KeyStore
}

// NewWallet opens the wallet at walletPath, creating its directory if
// needed. password unlocks the key files.
func NewWallet(walletPath, password string) (*Wallet, error) {
	wallet := &Wallet{
		Accounts:   make(map[string]*Account),
		walletPath: walletPath,
		password:   password,
		keyFiles:   make(map[string]string),
		createdAt:  time.Now().Unix(),
		keyStore:   keystore.NewKeyStore(filepath.Join(filepath.Dir(walletPath), "keystore")),
	}

	if err := os.MkdirAll(filepath.Dir(walletPath), 0700); err != nil {
		return nil, err
	}

	if _, err := os.Stat(walletPath); err == nil {
		if err := wallet.Load(); err != nil {
			return nil, err
		}
	}

	return wallet, nil
}

// CreateAccount creates a new account and adds it to the wallet
func (w *Wallet) CreateAccount(name string) (*Account, error) {
	account, err := NewAccount(name)
	if err != nil {
		return nil, err
	}
	return account, w.add(account)
}

// ImportAccount imports an account from a private key
func (w *Wallet) ImportAccount(name, privateKeyHex string) (*Account, error) {
	account, err := ImportFromPrivateKeyHex(name, privateKeyHex)
	if err != nil {
		return nil, err
	}
	return account, w.add(account)
}

func (w *Wallet) add(account *Account) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.Accounts[account.Name]; exists {
		return fmt.Errorf("%w: %s", ErrAccountExists, account.Name)
	}

	keyPath, err := w.keyStore.StoreKey(account.PrivateKey, w.password)
	if err != nil {
		return fmt.Errorf("failed to store key: %w", err)
	}

	w.Accounts[account.Name] = account
	w.keyFiles[account.Name] = keyPath
	if len(w.Accounts) == 1 {
		w.DefaultAccount = account.Name
	}

	return w.save()
}

// GetAccount returns the account called name
func (w *Wallet) GetAccount(name string) (*Account, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.getAccount(name)
}

func (w *Wallet) getAccount(name string) (*Account, error) {
	account, exists := w.Accounts[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, name)
	}
	return account, nil
}

// GetDefaultAccount returns the default account
func (w *Wallet) GetDefaultAccount() (*Account, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.DefaultAccount == "" {
		return nil, errors.New("no default account set")
	}
	return w.getAccount(w.DefaultAccount)
}

// SetDefaultAccount sets the default account
func (w *Wallet) SetDefaultAccount(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.Accounts[name]; !exists {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, name)
	}
	w.DefaultAccount = name
	return w.save()
}

// ListAccounts returns account names in sorted order
func (w *Wallet) ListAccounts() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return w.sortedNames()
}

// RemoveAccount drops an account from the wallet. Its key file is kept.
func (w *Wallet) RemoveAccount(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.Accounts[name]; !exists {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, name)
	}
	delete(w.Accounts, name)
	delete(w.keyFiles, name)

	if w.DefaultAccount == name {
		w.DefaultAccount = ""
		if names := w.sortedNames(); len(names) > 0 {
			w.DefaultAccount = names[0]
		}
	}
	return w.save()
}

// SignPayload signs the canonical form of a raw JSON payload with the key
// of the named account
func (w *Wallet) SignPayload(name string, payload json.RawMessage) (string, error) {
	account, err := w.GetAccount(name)
	if err != nil {
		return "", err
	}
	return account.SignPayload(payload)
}

func (w *Wallet) sortedNames() []string {
	names := make([]string, 0, len(w.Accounts))
	for name := range w.Accounts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Save writes the wallet file
func (w *Wallet) Save() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.save()
}

func (w *Wallet) save() error {
	accounts := make([]interface{}, 0, len(w.Accounts))
	for _, name := range w.sortedNames() {
		accounts = append(accounts, map[string]interface{}{
			"name":     name,
			"address":  w.Accounts[name].Address,
			"key_file": w.keyFiles[name],
		})
	}

	record, err := structpb.NewStruct(map[string]interface{}{
		"default_account": w.DefaultAccount,
		"created_at":      w.createdAt,
		"updated_at":      time.Now().Unix(),
		"accounts":        accounts,
	})
	if err != nil {
		return err
	}

	data, err := proto.Marshal(record)
	if err != nil {
		return err
	}
	return os.WriteFile(w.walletPath, data, 0600)
}

// Load loads the wallet from disk
func (w *Wallet) Load() error {
	data, err := os.ReadFile(w.walletPath)
	if err != nil {
		return err
	}

	var record structpb.Struct
	if err := proto.Unmarshal(data, &record); err != nil {
		return err
	}
	fields := record.GetFields()

	accounts := make(map[string]*Account)
	keyFiles := make(map[string]string)
	for _, v := range fields["accounts"].GetListValue().GetValues() {
		entry := v.GetStructValue().GetFields()
		name := entry["name"].GetStringValue()
		address := entry["address"].GetStringValue()
		keyFile := entry["key_file"].GetStringValue()
		if keyFile == "" {
			return fmt.Errorf("account %s has no key file", name)
		}

		privateKey, err := w.keyStore.LoadKey(keyFile, w.password)
		if err != nil {
			return fmt.Errorf("failed to load key from %s: %w", keyFile, err)
		}
		account, err := NewAccountFromPrivateKey(name, privateKey)
		if err != nil {
			return err
		}
		if account.Address != address {
			return fmt.Errorf("address mismatch for account %s", name)
		}

		accounts[name] = account
		keyFiles[name] = keyFile
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.Accounts = accounts
	w.keyFiles = keyFiles
	w.DefaultAccount = fields["default_account"].GetStringValue()
	if created := int64(fields["created_at"].GetNumberValue()); created > 0 {
		w.createdAt = created
	}
	return nil
}
