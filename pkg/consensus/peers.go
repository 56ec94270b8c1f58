// Package consensus reconciles the local chain with peers by adopting the
// longest valid chain any of them serves.
package consensus

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/multiformats/go-multiaddr"
)

// ErrInvalidPeer is returned for addresses that are neither a URL, a
// host:port pair nor a multiaddr
var ErrInvalidPeer = errors.New("consensus: invalid peer address")

// NormalizePeer reduces an address to the form peers are keyed by. URLs
// become scheme://host[:port], bare host:port pairs are taken as http, and
// multiaddrs (starting with "/") are kept in their canonical string form.
func NormalizePeer(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "", ErrInvalidPeer
	}

	if strings.HasPrefix(addr, "/") {
		ma, err := multiaddr.NewMultiaddr(addr)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidPeer, err)
		}
		return ma.String(), nil
	}

	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPeer, err)
	}
	if u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("%w: %s", ErrInvalidPeer, addr)
	}
	return u.Scheme + "://" + u.Host, nil
}

// PeerSet is the ordered set of peers a node reconciles with
type PeerSet struct {
	mu    sync.RWMutex
	order []string
	known map[string]struct{}
}

// NewPeerSet creates an empty set
func NewPeerSet() *PeerSet {
	return &PeerSet{known: make(map[string]struct{})}
}

// Add normalizes addr and adds it. It reports whether the peer was new.
func (s *PeerSet) Add(addr string) (bool, error) {
	peer, err := NormalizePeer(addr)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.known[peer]; ok {
		return false, nil
	}
	s.known[peer] = struct{}{}
	s.order = append(s.order, peer)
	return true, nil
}

// Remove drops a peer
func (s *PeerSet) Remove(addr string) {
	peer, err := NormalizePeer(addr)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.known[peer]; !ok {
		return
	}
	delete(s.known, peer)
	for i, p := range s.order {
		if p == peer {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// List returns peers in the order they were added
func (s *PeerSet) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.order...)
}

// Len returns the number of peers
func (s *PeerSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}
