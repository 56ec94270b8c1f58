// Package network carries chain exchange and new-block announcements over
// libp2p streams.
package network

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/multiformats/go-multiaddr"

	"github.com/basic-kali-box/Blockchain-Project/pkg/core"
)

const (
	// ChainProtocol serves the full chain as a JSON ChainResponse
	ChainProtocol = protocol.ID("/supplychain/chain/1.0.0")

	// AnnounceProtocol carries a peer's new chain length
	AnnounceProtocol = protocol.ID("/supplychain/announce/1.0.0")

	// DefaultListenAddr listens on every interface on a random port
	DefaultListenAddr = "/ip4/0.0.0.0/tcp/0"

	maxMessageSize = 64 << 20
	streamTimeout  = 30 * time.Second
)

// ErrNotStarted is returned when the node is used before Start
var ErrNotStarted = errors.New("network: node not started")

// Announcement is the body of an AnnounceProtocol stream
type Announcement struct {
	Length int `json:"length"`
}

// Config configures a P2PNode
type Config struct {
	ListenAddr string

	// ChainSource returns the chain served to peers
	ChainSource func() core.ChainResponse

	// OnAnnounce is called when a peer announces a new chain length. from
	// is the announcing peer's dialable multiaddr.
	OnAnnounce func(from string, length int)
}

// P2PNode represents a P2P network node
type P2PNode struct {
	cfg        Config
	host       host.Host
	logger     *slog.Logger
	ctx        context.Context
	cancelFunc context.CancelFunc

	mu       sync.RWMutex
	peerList map[peer.ID]peer.AddrInfo
}

// NewP2PNode creates a new P2P node
func NewP2PNode(cfg Config) *P2PNode {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &P2PNode{
		cfg:        cfg,
		logger:     slog.Default().With("component", "p2p"),
		ctx:        ctx,
		cancelFunc: cancel,
		peerList:   make(map[peer.ID]peer.AddrInfo),
	}
}

// Start starts the P2P node
func (node *P2PNode) Start() error {
	priv, _, err := crypto.GenerateKeyPairWithReader(crypto.Ed25519, 2048, rand.Reader)
	if err != nil {
		return err
	}

	addr, err := multiaddr.NewMultiaddr(node.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("network: listen address: %w", err)
	}

	h, err := libp2p.New(
		libp2p.ListenAddrs(addr),
		libp2p.Identity(priv),
	)
	if err != nil {
		return err
	}
	node.host = h

	h.SetStreamHandler(ChainProtocol, node.handleChain)
	h.SetStreamHandler(AnnounceProtocol, node.handleAnnounce)

	node.logger.Info("P2P node started", "id", h.ID().String(), "addrs", node.Addrs())
	return nil
}

// ID returns the node's peer ID
func (node *P2PNode) ID() string {
	if node.host == nil {
		return ""
	}
	return node.host.ID().String()
}

// Addrs returns the node's full dialable multiaddrs, including /p2p/<id>
func (node *P2PNode) Addrs() []string {
	if node.host == nil {
		return nil
	}
	info := peer.AddrInfo{ID: node.host.ID(), Addrs: node.host.Addrs()}
	addrs, err := peer.AddrInfoToP2pAddrs(&info)
	if err != nil {
		return nil
	}
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.String()
	}
	return out
}

// ParsePeerAddr parses a multiaddr that ends in /p2p/<id>
func ParsePeerAddr(addr string) (peer.AddrInfo, error) {
	info, err := peer.AddrInfoFromString(addr)
	if err != nil {
		return peer.AddrInfo{}, fmt.Errorf("network: peer address %q: %w", addr, err)
	}
	return *info, nil
}

// Connect connects to a peer
func (node *P2PNode) Connect(ctx context.Context, peerAddr string) (peer.AddrInfo, error) {
	if node.host == nil {
		return peer.AddrInfo{}, ErrNotStarted
	}
	info, err := ParsePeerAddr(peerAddr)
	if err != nil {
		return peer.AddrInfo{}, err
	}

	if err := node.host.Connect(ctx, info); err != nil {
		return peer.AddrInfo{}, err
	}

	node.mu.Lock()
	node.peerList[info.ID] = info
	node.mu.Unlock()
	return info, nil
}

// Peers returns the IDs of connected peers
func (node *P2PNode) Peers() []string {
	if node.host == nil {
		return nil
	}
	ids := node.host.Network().Peers()
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// FetchChain requests the full chain from the peer at addr. It satisfies
// the consensus transport interface.
func (node *P2PNode) FetchChain(ctx context.Context, addr string) (core.ChainResponse, error) {
	info, err := node.Connect(ctx, addr)
	if err != nil {
		return core.ChainResponse{}, err
	}

	stream, err := node.host.NewStream(ctx, info.ID, ChainProtocol)
	if err != nil {
		return core.ChainResponse{}, err
	}
	defer stream.Close()

	if deadline, ok := ctx.Deadline(); ok {
		stream.SetReadDeadline(deadline)
	} else {
		stream.SetReadDeadline(time.Now().Add(streamTimeout))
	}

	var resp core.ChainResponse
	if err := json.NewDecoder(io.LimitReader(stream, maxMessageSize)).Decode(&resp); err != nil {
		return core.ChainResponse{}, fmt.Errorf("network: decode chain from %s: %w", info.ID, err)
	}
	return resp, nil
}

// Announce tells every connected peer the local chain length
func (node *P2PNode) Announce(length int) {
	if node.host == nil {
		return
	}
	data, err := json.Marshal(Announcement{Length: length})
	if err != nil {
		return
	}

	for _, id := range node.host.Network().Peers() {
		ctx, cancel := context.WithTimeout(node.ctx, 5*time.Second)
		stream, err := node.host.NewStream(ctx, id, AnnounceProtocol)
		cancel()
		if err != nil {
			node.logger.Debug("Failed to open announce stream", "peer", id.String(), "error", err)
			continue
		}
		if _, err := stream.Write(data); err != nil {
			node.logger.Debug("Failed to announce", "peer", id.String(), "error", err)
		}
		stream.Close()
	}
}

// Stop stops the P2P node
func (node *P2PNode) Stop() error {
	if node.cancelFunc != nil {
		node.cancelFunc()
	}

	if node.host != nil {
		return node.host.Close()
	}

	return nil
}

func (node *P2PNode) handleChain(stream network.Stream) {
	defer stream.Close()

	if node.cfg.ChainSource == nil {
		stream.Reset()
		return
	}

	stream.SetWriteDeadline(time.Now().Add(streamTimeout))
	if err := json.NewEncoder(stream).Encode(node.cfg.ChainSource()); err != nil {
		node.logger.Warn("Failed to serve chain", "peer", stream.Conn().RemotePeer().String(), "error", err)
		stream.Reset()
	}
}

func (node *P2PNode) handleAnnounce(stream network.Stream) {
	defer stream.Close()

	stream.SetReadDeadline(time.Now().Add(streamTimeout))
	var ann Announcement
	if err := json.NewDecoder(io.LimitReader(stream, 1024)).Decode(&ann); err != nil {
		node.logger.Debug("Malformed announcement", "peer", stream.Conn().RemotePeer().String(), "error", err)
		return
	}

	if node.cfg.OnAnnounce == nil {
		return
	}

	remote := stream.Conn().RemoteMultiaddr()
	p2pPart, err := multiaddr.NewMultiaddr("/p2p/" + stream.Conn().RemotePeer().String())
	if err != nil {
		return
	}
	node.cfg.OnAnnounce(remote.Encapsulate(p2pPart).String(), ann.Length)
}
