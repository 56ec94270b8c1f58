package consensus

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/basic-kali-box/Blockchain-Project/pkg/core"
	"github.com/basic-kali-box/Blockchain-Project/pkg/crypto"
	"github.com/basic-kali-box/Blockchain-Project/pkg/identity"
	"github.com/basic-kali-box/Blockchain-Project/pkg/types"
)

type testNet struct {
	registry *identity.Registry
	keys     map[string]*ecdsa.PrivateKey
	genesis  *core.Genesis
}

func newNetwork(t *testing.T, names ...string) *testNet {
	t.Helper()
	n := &testNet{registry: identity.NewRegistry(), keys: map[string]*ecdsa.PrivateKey{}}
	for _, name := range names {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		_, err = n.registry.Register(name, crypto.PublicKeyHex(&key.PublicKey), types.ActorProducer, "")
		require.NoError(t, err)
		n.keys[name] = key
	}
	n.genesis = core.DefaultGenesis()
	n.genesis.Timestamp = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return n
}

func (n *testNet) node(t *testing.T) *core.Ledger {
	t.Helper()
	l, err := core.NewLedger(n.registry, crypto.Verifier{}, core.WithGenesis(n.genesis))
	require.NoError(t, err)
	return l
}

func (n *testNet) submit(t *testing.T, l *core.Ledger, sender string, txType types.TransactionType, data map[string]any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	sig, err := crypto.SignCanonical(n.keys[sender], data)
	require.NoError(t, err)
	_, _, err = l.Submit(core.SubmitRequest{Sender: sender, Type: txType, Data: raw, Signature: sig})
	require.NoError(t, err)
}

func (n *testNet) register(t *testing.T, l *core.Ledger, productID, producer string) {
	n.submit(t, l, producer, types.TypeProductRegistration, map[string]any{
		"product_id": productID, "name": "Beans", "producer_id": producer,
	})
}

func (n *testNet) transfer(t *testing.T, l *core.Ledger, productID, from, to string) {
	n.submit(t, l, from, types.TypeTransfer, map[string]any{
		"transfer_id": fmt.Sprintf("T-%s-%s", productID, to), "product_id": productID, "sender_id": from, "recipient_id": to,
	})
}

func mine(t *testing.T, l *core.Ledger, blocks int) {
	t.Helper()
	for i := 0; i < blocks; i++ {
		_, err := l.Mine(context.Background())
		require.NoError(t, err)
	}
}

// serveChain exposes l the way the HTTP API does
func serveChain(t *testing.T, l *core.Ledger) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chain" {
			http.NotFound(w, r)
			return
		}
		chain := l.Chain()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(core.ChainResponse{Chain: chain, Length: len(chain)})
	}))
	t.Cleanup(srv.Close)
	return srv
}

type fakeTransport map[string]core.ChainResponse

func (f fakeTransport) FetchChain(_ context.Context, addr string) (core.ChainResponse, error) {
	resp, ok := f[addr]
	if !ok {
		return core.ChainResponse{}, fmt.Errorf("%w: %s", ErrPeerUnreachable, addr)
	}
	return resp, nil
}
