package consensus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basic-kali-box/Blockchain-Project/pkg/core"
)

func TestNormalizePeer(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"http://192.168.0.5:5000", "http://192.168.0.5:5000", true},
		{"http://192.168.0.5:5000/chain?x=1", "http://192.168.0.5:5000", true},
		{"192.168.0.5:5000", "http://192.168.0.5:5000", true},
		{"https://node.example.com", "https://node.example.com", true},
		{"/ip4/127.0.0.1/tcp/4001", "/ip4/127.0.0.1/tcp/4001", true},
		{"", "", false},
		{"ftp://node:21", "", false},
		{"/not/a/multiaddr", "", false},
		{"http://", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizePeer(tt.in)
			if !tt.ok {
				assert.ErrorIs(t, err, ErrInvalidPeer)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPeerSet(t *testing.T) {
	s := NewPeerSet()

	added, err := s.Add("http://b:5000")
	require.NoError(t, err)
	assert.True(t, added)
	added, err = s.Add("a:5000")
	require.NoError(t, err)
	assert.True(t, added)
	added, err = s.Add("http://b:5000/chain")
	require.NoError(t, err)
	assert.False(t, added)

	_, err = s.Add("")
	assert.Error(t, err)

	assert.Equal(t, []string{"http://b:5000", "http://a:5000"}, s.List())

	s.Remove("b:5000")
	assert.Equal(t, []string{"http://a:5000"}, s.List())
	assert.Equal(t, 1, s.Len())
}

func TestHTTPTransport(t *testing.T) {
	n := newNetwork(t, "producer1")
	l := n.node(t)
	mine(t, l, 1)

	t.Run("success", func(t *testing.T) {
		srv := serveChain(t, l)
		resp, err := NewHTTPTransport(srv.Client(), 0).FetchChain(context.Background(), srv.URL)
		require.NoError(t, err)
		assert.Equal(t, 2, resp.Length)
		assert.Len(t, resp.Chain, 2)
		assert.True(t, core.IsValidChain(resp.Chain))
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			http.NotFound(w, r)
		}))
		defer srv.Close()

		_, err := NewHTTPTransport(srv.Client(), 3).FetchChain(context.Background(), srv.URL)
		assert.ErrorIs(t, err, ErrPeerUnreachable)
		assert.Equal(t, int32(1), hits.Load())
	})

	t.Run("server errors are retried", func(t *testing.T) {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		tr := NewHTTPTransport(srv.Client(), 2)
		tr.initialInterval = time.Millisecond
		_, err := tr.FetchChain(context.Background(), srv.URL)
		assert.ErrorIs(t, err, ErrPeerUnreachable)
		assert.Equal(t, int32(3), hits.Load())
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		addr := srv.URL
		srv.Close()

		_, err := NewHTTPTransport(nil, 0).FetchChain(context.Background(), addr)
		assert.ErrorIs(t, err, ErrPeerUnreachable)
	})
}

func TestMultiTransport(t *testing.T) {
	httpSide := fakeTransport{"http://a:1": {Length: 1}}
	p2pSide := fakeTransport{"/ip4/127.0.0.1/tcp/4001": {Length: 2}}

	m := MultiTransport{HTTP: httpSide, P2P: p2pSide}
	resp, err := m.FetchChain(context.Background(), "http://a:1")
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Length)
	resp, err = m.FetchChain(context.Background(), "/ip4/127.0.0.1/tcp/4001")
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Length)

	_, err = MultiTransport{HTTP: httpSide}.FetchChain(context.Background(), "/ip4/127.0.0.1/tcp/4001")
	assert.ErrorIs(t, err, ErrPeerUnreachable)
}

// Two nodes mine divergent blocks from the same genesis; the shorter one
// adopts the longer chain and its provenance follows.
func TestScenarioDivergentNodes(t *testing.T) {
	n := newNetwork(t, "producer1", "distributor1")
	nodeA := n.node(t)
	nodeB := n.node(t)
	require.Equal(t, nodeA.LastBlock().Hash(), nodeB.LastBlock().Hash())

	n.register(t, nodeA, "PA", "producer1")
	mine(t, nodeA, 1)

	n.register(t, nodeB, "P1", "producer1")
	mine(t, nodeB, 1)
	n.transfer(t, nodeB, "P1", "producer1", "distributor1")
	mine(t, nodeB, 1)

	require.Equal(t, 2, nodeA.Len())
	require.Equal(t, 3, nodeB.Len())
	require.True(t, core.IsValidChain(nodeB.Chain()))

	peers := NewPeerSet()
	srv := serveChain(t, nodeB)
	_, err := peers.Add(srv.URL)
	require.NoError(t, err)

	resolver := NewResolver(nodeA, peers, NewHTTPTransport(srv.Client(), 0), time.Second)
	replaced, err := resolver.Resolve(context.Background())
	require.NoError(t, err)
	assert.True(t, replaced)

	assert.Equal(t, nodeB.Chain(), nodeA.Chain())
	assert.Equal(t, nodeB.Authenticity("P1"), nodeA.Authenticity("P1"))
	assert.Equal(t, "distributor1", nodeA.Authenticity("P1").CurrentOwner)
	assert.False(t, nodeA.Authenticity("PA").Authentic)

	// Resolving again is a no-op
	replaced, err = resolver.Resolve(context.Background())
	require.NoError(t, err)
	assert.False(t, replaced)
}

func TestResolveChainsRules(t *testing.T) {
	n := newNetwork(t, "producer1")
	local := n.node(t)

	first := n.node(t)
	mine(t, first, 2)
	second := n.node(t)
	mine(t, second, 2)
	require.NotEqual(t, first.LastBlock().Hash(), second.LastBlock().Hash())

	invalid := second.Chain()
	invalid = append(invalid, invalid[len(invalid)-1])

	resolver := NewResolver(local, NewPeerSet(), fakeTransport{}, time.Second)

	t.Run("length mismatch ignored", func(t *testing.T) {
		chain := first.Chain()
		replaced, err := resolver.ResolveChains([]PeerChain{{Peer: "liar", Length: 10, Chain: chain}})
		require.NoError(t, err)
		assert.False(t, replaced)
	})

	t.Run("invalid ignored", func(t *testing.T) {
		replaced, err := resolver.ResolveChains([]PeerChain{{Peer: "bad", Length: len(invalid), Chain: invalid}})
		require.NoError(t, err)
		assert.False(t, replaced)
		assert.Equal(t, 1, local.Len())
	})

	t.Run("first of equal length wins", func(t *testing.T) {
		replaced, err := resolver.ResolveChains([]PeerChain{
			{Peer: "bad", Length: len(invalid), Chain: invalid},
			{Peer: "first", Length: 3, Chain: first.Chain()},
			{Peer: "second", Length: 3, Chain: second.Chain()},
		})
		require.NoError(t, err)
		assert.True(t, replaced)
		assert.Equal(t, first.LastBlock().Hash(), local.LastBlock().Hash())
	})

	t.Run("equal length does not replace", func(t *testing.T) {
		replaced, err := resolver.ResolveChains([]PeerChain{{Peer: "second", Length: 3, Chain: second.Chain()}})
		require.NoError(t, err)
		assert.False(t, replaced)
		assert.Equal(t, first.LastBlock().Hash(), local.LastBlock().Hash())
	})
}

func TestResolveSkipsUnreachablePeers(t *testing.T) {
	n := newNetwork(t, "producer1")
	local := n.node(t)
	remote := n.node(t)
	mine(t, remote, 1)

	chain := remote.Chain()
	transport := fakeTransport{"http://live:5000": {Chain: chain, Length: len(chain)}}

	peers := NewPeerSet()
	for _, p := range []string{"http://dead:5000", "http://live:5000"} {
		_, err := peers.Add(p)
		require.NoError(t, err)
	}

	resolver := NewResolver(local, peers, transport, time.Second)
	fetched := resolver.Fetch(context.Background())
	require.Len(t, fetched, 1)
	assert.Equal(t, "http://live:5000", fetched[0].Peer)

	replaced, err := resolver.Resolve(context.Background())
	require.NoError(t, err)
	assert.True(t, replaced)
	assert.Equal(t, 2, local.Len())
}

func TestEngineMinesPendingTransactions(t *testing.T) {
	n := newNetwork(t, "producer1")
	l := n.node(t)

	e := NewEngine(l, nil, EngineConfig{Miner: true, MineInterval: 10 * time.Millisecond})
	require.NoError(t, e.Start(context.Background()))
	defer e.Stop()
	assert.Error(t, e.Start(context.Background()))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, l.Len(), "nothing to mine")

	n.register(t, l, "P1", "producer1")
	assert.Eventually(t, func() bool { return l.Len() == 2 }, 30*time.Second, 10*time.Millisecond)
	assert.True(t, l.Authenticity("P1").Authentic)
}

func TestEngineTriggerResolve(t *testing.T) {
	n := newNetwork(t, "producer1")
	local := n.node(t)
	remote := n.node(t)
	mine(t, remote, 2)

	chain := remote.Chain()
	peers := NewPeerSet()
	_, err := peers.Add("http://remote:5000")
	require.NoError(t, err)
	resolver := NewResolver(local, peers, fakeTransport{"http://remote:5000": {Chain: chain, Length: len(chain)}}, time.Second)

	e := NewEngine(local, resolver, EngineConfig{})
	require.NoError(t, e.Start(context.Background()))
	e.TriggerResolve()
	e.TriggerResolve()

	assert.Eventually(t, func() bool { return local.Len() == 3 }, 5*time.Second, 10*time.Millisecond)
	e.Stop()
	e.Stop()
}
