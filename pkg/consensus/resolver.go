package consensus

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/basic-kali-box/Blockchain-Project/pkg/core"
)

// ChainReplacer is the part of the ledger the resolver drives
type ChainReplacer interface {
	Len() int
	ReplaceChain(chain []core.Block) (bool, error)
}

// PeerChain is a chain as advertised by one peer
type PeerChain struct {
	Peer   string
	Length int
	Chain  []core.Block
}

// Resolver implements the longest valid chain rule
type Resolver struct {
	ledger    ChainReplacer
	peers     *PeerSet
	transport Transport
	timeout   time.Duration
	logger    *slog.Logger
}

// NewResolver creates a resolver that bounds each peer fetch by timeout
func NewResolver(ledger ChainReplacer, peers *PeerSet, transport Transport, timeout time.Duration) *Resolver {
	return &Resolver{
		ledger:    ledger,
		peers:     peers,
		transport: transport,
		timeout:   timeout,
		logger:    slog.Default().With("component", "consensus"),
	}
}

// Peers returns the peer set the resolver reads from
func (r *Resolver) Peers() *PeerSet {
	return r.peers
}

// Fetch requests every peer's chain concurrently. Unreachable peers are
// logged and left out; the result keeps peer registration order.
func (r *Resolver) Fetch(ctx context.Context) []PeerChain {
	peers := r.peers.List()
	results := make([]*PeerChain, len(peers))

	var wg sync.WaitGroup
	for i, addr := range peers {
		wg.Add(1)
		go func(i int, addr string) {
			defer wg.Done()

			fetchCtx := ctx
			if r.timeout > 0 {
				var cancel context.CancelFunc
				fetchCtx, cancel = context.WithTimeout(ctx, r.timeout)
				defer cancel()
			}

			resp, err := r.transport.FetchChain(fetchCtx, addr)
			if err != nil {
				r.logger.Warn("Failed to fetch chain", "peer", addr, "error", err)
				return
			}
			results[i] = &PeerChain{Peer: addr, Length: resp.Length, Chain: resp.Chain}
		}(i, addr)
	}
	wg.Wait()

	out := make([]PeerChain, 0, len(results))
	for _, pc := range results {
		if pc != nil {
			out = append(out, *pc)
		}
	}
	return out
}

// Resolve fetches every peer's chain and adopts the best one. It reports
// whether the local chain was replaced.
func (r *Resolver) Resolve(ctx context.Context) (bool, error) {
	return r.ResolveChains(r.Fetch(ctx))
}

// ResolveChains picks the longest valid candidate strictly longer than the
// local chain and hands it to the ledger. Candidates whose advertised
// length disagrees with the chain they carry are ignored. Among equally
// long candidates the first one wins.
func (r *Resolver) ResolveChains(candidates []PeerChain) (bool, error) {
	best := -1
	maxLength := r.ledger.Len()

	for i, c := range candidates {
		if c.Length != len(c.Chain) {
			r.logger.Warn("Ignoring chain with mismatched length", "peer", c.Peer, "advertised", c.Length, "actual", len(c.Chain))
			continue
		}
		if c.Length <= maxLength {
			continue
		}
		if !core.IsValidChain(c.Chain) {
			r.logger.Warn("Ignoring invalid chain", "peer", c.Peer, "length", c.Length)
			continue
		}
		maxLength = c.Length
		best = i
	}

	if best < 0 {
		return false, nil
	}

	replaced, err := r.ledger.ReplaceChain(candidates[best].Chain)
	if err != nil {
		return false, err
	}
	if replaced {
		r.logger.Info("Adopted longer chain", "peer", candidates[best].Peer, "length", maxLength)
	}
	return replaced, nil
}
