package core

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/basic-kali-box/Blockchain-Project/pkg/crypto"
	"github.com/basic-kali-box/Blockchain-Project/pkg/identity"
	"github.com/basic-kali-box/Blockchain-Project/pkg/types"
)

var testGenesisTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type testNet struct {
	registry *identity.Registry
	keys     map[string]*ecdsa.PrivateKey
}

func newTestNet(t *testing.T, participants map[string]types.ActorType) *testNet {
	t.Helper()
	n := &testNet{registry: identity.NewRegistry(), keys: map[string]*ecdsa.PrivateKey{}}
	for name, role := range participants {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		_, err = n.registry.Register(name, crypto.PublicKeyHex(&key.PublicKey), role, "")
		require.NoError(t, err)
		n.keys[name] = key
	}
	return n
}

func defaultParticipants() map[string]types.ActorType {
	return map[string]types.ActorType{
		"producer1":    types.ActorProducer,
		"distributor1": types.ActorDistributor,
		"retailer1":    types.ActorRetailer,
		"attacker":     types.ActorConsumer,
	}
}

func (n *testNet) ledger(t *testing.T, opts ...Option) *Ledger {
	t.Helper()
	g := DefaultGenesis()
	g.Timestamp = testGenesisTime
	opts = append([]Option{WithGenesis(g)}, opts...)
	l, err := NewLedger(n.registry, crypto.Verifier{}, opts...)
	require.NoError(t, err)
	return l
}

// request signs data with the key of signer and submits it as sender
func (n *testNet) request(t *testing.T, sender, signer string, txType types.TransactionType, data map[string]any) SubmitRequest {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	sig, err := crypto.SignCanonical(n.keys[signer], data)
	require.NoError(t, err)
	return SubmitRequest{Sender: sender, Type: txType, Data: raw, Signature: sig}
}

func registration(productID, producer string) map[string]any {
	return map[string]any{"product_id": productID, "name": "Arabica beans", "producer_id": producer, "category": "food"}
}

func transfer(transferID, productID, from, to string) map[string]any {
	return map[string]any{"transfer_id": transferID, "product_id": productID, "sender_id": from, "recipient_id": to}
}

func mustSubmit(t *testing.T, l *Ledger, req SubmitRequest) Transaction {
	t.Helper()
	tx, _, err := l.Submit(req)
	require.NoError(t, err)
	return tx
}

func mustMine(t *testing.T, l *Ledger) Block {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	block, err := l.Mine(ctx)
	require.NoError(t, err)
	return block
}

// steppingClock returns strictly increasing timestamps one second apart
func steppingClock(start time.Time) func() time.Time {
	next := start
	return func() time.Time {
		next = next.Add(time.Second)
		return next
	}
}
