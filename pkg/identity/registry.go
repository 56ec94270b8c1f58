// Package identity maps participant identifiers to their registered public
// keys and supply-chain roles.
package identity

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ugorji/go/codec"

	"github.com/basic-kali-box/Blockchain-Project/pkg/crypto"
	"github.com/basic-kali-box/Blockchain-Project/pkg/db"
	"github.com/basic-kali-box/Blockchain-Project/pkg/types"
)

var (
	// ErrNotFound is returned when no participant is registered under an identifier
	ErrNotFound = errors.New("identity: not found")

	// ErrAlreadyExists is returned when registering a taken username
	ErrAlreadyExists = errors.New("identity: username already registered")

	// ErrInvalidRole is returned for roles outside the known actor types
	ErrInvalidRole = errors.New("identity: invalid role")

	// ErrInvalidUsername is returned for empty or reserved usernames
	ErrInvalidUsername = errors.New("identity: invalid username")
)

// recordPrefix namespaces identity records in a shared database
const recordPrefix = "identity/"

// Identity is a registered participant
type Identity struct {
	UserID       string          `json:"user_id"`
	Username     string          `json:"username"`
	PublicKey    string          `json:"public_key"`
	Address      string          `json:"address"`
	Role         types.ActorType `json:"role"`
	Organization string          `json:"organization,omitempty"`
	RegisteredAt int64           `json:"registered_at"`
}

// Registry holds participant identities, optionally persisted in a database
// as CBOR records.
type Registry struct {
	mu       sync.RWMutex
	users    map[string]Identity
	database db.Database
	handle   *codec.CborHandle
}

// NewRegistry creates an in-memory registry
func NewRegistry() *Registry {
	return &Registry{
		users:  make(map[string]Identity),
		handle: new(codec.CborHandle),
	}
}

// NewPersistentRegistry creates a registry backed by database and loads the
// identities already stored there
func NewPersistentRegistry(database db.Database) (*Registry, error) {
	r := NewRegistry()
	r.database = database

	it, err := database.Iterator([]byte(recordPrefix), db.PrefixEnd([]byte(recordPrefix)))
	if err != nil {
		return nil, err
	}
	defer it.Close()

	for it.Next() {
		var id Identity
		if err := codec.NewDecoderBytes(it.Value(), r.handle).Decode(&id); err != nil {
			return nil, fmt.Errorf("identity: decode %s: %w", it.Key(), err)
		}
		r.users[id.Username] = id
	}
	if err := it.Error(); err != nil {
		return nil, err
	}

	return r, nil
}

// Register adds a participant. The public key must be a hex encoded
// secp256k1 key and the role a known actor type.
func (r *Registry) Register(username, publicKey string, role types.ActorType, organization string) (Identity, error) {
	username = strings.TrimSpace(username)
	// "0" is the sender of mining rewards
	if username == "" || username == "0" {
		return Identity{}, ErrInvalidUsername
	}
	if !role.Valid() {
		return Identity{}, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	pub, err := crypto.ParsePublicKey(publicKey)
	if err != nil {
		return Identity{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[username]; exists {
		return Identity{}, fmt.Errorf("%w: %s", ErrAlreadyExists, username)
	}

	id := Identity{
		UserID:       strings.ReplaceAll(uuid.NewString(), "-", ""),
		Username:     username,
		PublicKey:    crypto.PublicKeyHex(pub),
		Address:      crypto.Address(pub),
		Role:         role,
		Organization: organization,
		RegisteredAt: time.Now().Unix(),
	}

	if r.database != nil {
		var record []byte
		if err := codec.NewEncoderBytes(&record, r.handle).Encode(id); err != nil {
			return Identity{}, err
		}
		if err := r.database.Put([]byte(recordPrefix+username), record); err != nil {
			return Identity{}, fmt.Errorf("identity: persist %s: %w", username, err)
		}
	}

	r.users[username] = id
	return id, nil
}

// Lookup returns the identity registered under username
func (r *Registry) Lookup(username string) (Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.users[username]
	if !ok {
		return Identity{}, fmt.Errorf("%w: %s", ErrNotFound, username)
	}
	return id, nil
}

// List returns all identities ordered by username
func (r *Registry) List() []Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Identity, 0, len(r.users))
	for _, id := range r.users {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

// Len returns the number of registered identities
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}
