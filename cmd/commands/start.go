package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/basic-kali-box/Blockchain-Project/pkg/account"
	"github.com/basic-kali-box/Blockchain-Project/pkg/consensus"
	"github.com/basic-kali-box/Blockchain-Project/pkg/core"
	"github.com/basic-kali-box/Blockchain-Project/pkg/crypto"
	"github.com/basic-kali-box/Blockchain-Project/pkg/db"
	"github.com/basic-kali-box/Blockchain-Project/pkg/discovery"
	"github.com/basic-kali-box/Blockchain-Project/pkg/identity"
	"github.com/basic-kali-box/Blockchain-Project/pkg/network"
	"github.com/basic-kali-box/Blockchain-Project/pkg/rpc"
	"github.com/basic-kali-box/Blockchain-Project/pkg/store"
)

// StartCmd returns the start command
func StartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the node",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			node, err := newNode(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s API on http://%s\n", success("Node started."), node.rpc.Addr())
			if node.p2p != nil {
				for _, addr := range node.p2p.Addrs() {
					fmt.Fprintf(cmd.OutOrStdout(), "  p2p: %s\n", addr)
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl+C to stop.")

			<-ctx.Done()
			return node.shutdown()
		},
	}
}

// node holds the running services so they can be stopped in order
type node struct {
	database  db.Database
	ledger    *core.Ledger
	peers     *consensus.PeerSet
	engine    *consensus.Engine
	rpc       *rpc.RPCServer
	p2p       *network.P2PNode
	announcer *discovery.Announcer
	logger    *slog.Logger
}

func newNode(ctx context.Context) (*node, error) {
	logger := slog.Default().With("component", "node")
	dir := dataDir()

	genesis, err := core.FromJSON(genesisPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errors.New("genesis.json not found, run supplychain init first")
		}
		return nil, fmt.Errorf("loading genesis configuration: %w", err)
	}
	if chainID := viper.GetString("chain-id"); chainID != genesis.ChainID {
		logger.Warn("Configured chain ID differs from genesis", "config", chainID, "genesis", genesis.ChainID)
	}

	database, err := db.Open(db.DBType(viper.GetString("db")), filepath.Join(dir, "data"))
	if err != nil {
		return nil, err
	}
	n := &node{database: database, logger: logger}

	registry, err := identity.NewPersistentRegistry(database)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("loading identities: %w", err)
	}
	seeded, err := genesis.Seed(registry)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("seeding genesis participants: %w", err)
	}
	logger.Info("Identity registry loaded", "participants", registry.Len(), "seeded", seeded)

	hub := rpc.NewEventHub()
	notify := func(ev core.Event) {
		hub.Publish(ev)
		if ev.Type == core.EventNewBlock && n.p2p != nil {
			n.p2p.Announce(ev.Length)
		}
	}

	n.ledger, err = core.NewLedger(registry, crypto.Verifier{},
		core.WithStore(store.NewChainStore(database)),
		core.WithGenesis(genesis),
		core.WithNotifier(notify),
		core.WithPoWWorkers(viper.GetInt("pow-workers")),
	)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("loading chain: %w", err)
	}
	hub.RegisterLedgerMethods(n.ledger)
	logger.Info("Chain loaded", "length", n.ledger.Len(), "tip", n.ledger.LastBlock().Hash())

	peers := consensus.NewPeerSet()
	n.peers = peers
	peerTimeout := viper.GetDuration("peer-timeout")
	transport := consensus.MultiTransport{
		HTTP: consensus.NewHTTPTransport(&http.Client{Timeout: peerTimeout}, uint64(viper.GetInt("peer-retries"))),
	}

	if listen := viper.GetString("p2p"); listen != "" {
		n.p2p = network.NewP2PNode(network.Config{
			ListenAddr: listen,
			ChainSource: func() core.ChainResponse {
				chain := n.ledger.Chain()
				return core.ChainResponse{Chain: chain, Length: len(chain)}
			},
			OnAnnounce: func(from string, length int) {
				if length <= n.ledger.Len() {
					return
				}
				if _, err := peers.Add(from); err != nil {
					logger.Debug("Ignoring announcement", "peer", from, "error", err)
					return
				}
				n.engine.TriggerResolve()
			},
		})
		transport.P2P = n.p2p
	}

	resolver := consensus.NewResolver(n.ledger, peers, transport, peerTimeout)
	n.engine = consensus.NewEngine(n.ledger, resolver, consensus.EngineConfig{
		Miner:           viper.GetBool("miner"),
		MineInterval:    viper.GetDuration("mine-interval"),
		ResolveInterval: viper.GetDuration("resolve-interval"),
	})

	opts := []rpc.Option{
		rpc.WithResolver(resolver),
		rpc.WithEventHub(hub),
		rpc.WithRateLimit(viper.GetFloat64("rate-limit"), viper.GetInt("rate-burst")),
	}
	if viper.GetBool("dev-signer") {
		wallet, err := account.NewWallet(walletPath(), walletPassword())
		if err != nil {
			database.Close()
			return nil, fmt.Errorf("opening wallet: %w", err)
		}
		opts = append(opts, rpc.WithSigner(wallet))
		logger.Warn("Serving POST /sign with the node wallet, do not expose this node publicly")
	}
	n.rpc = rpc.NewRPCServer(viper.GetString("rpc"), n.ledger, registry, opts...)

	if err := n.start(ctx, genesis.Bootnodes); err != nil {
		n.shutdown()
		return nil, err
	}
	return n, nil
}

// start brings the services up and contacts the bootnodes
func (n *node) start(ctx context.Context, bootnodes []string) error {
	if n.p2p != nil {
		if err := n.p2p.Start(); err != nil {
			return err
		}
	}
	if err := n.rpc.Start(); err != nil {
		return err
	}

	for _, addr := range bootnodes {
		if _, err := n.peers.Add(addr); err != nil {
			n.logger.Warn("Invalid bootnode", "addr", addr, "error", err)
			continue
		}
		if n.p2p != nil && strings.HasPrefix(addr, "/") {
			if _, err := n.p2p.Connect(ctx, addr); err != nil {
				n.logger.Warn("Failed to connect to bootnode", "addr", addr, "error", err)
			}
		}
	}

	if viper.GetBool("mdns") {
		n.startDiscovery(ctx)
	}

	return n.engine.Start(ctx)
}

// startDiscovery announces the API on the LAN and adds every node found
func (n *node) startDiscovery(ctx context.Context) {
	self := "http://" + n.rpc.Addr()
	_, portStr, err := net.SplitHostPort(n.rpc.Addr())
	if err != nil {
		n.logger.Warn("mDNS disabled", "error", err)
		return
	}
	port, _ := strconv.Atoi(portStr)

	hostname, _ := os.Hostname()
	instance := fmt.Sprintf("supplychain-%s-%d", hostname, port)
	n.announcer, err = discovery.Announce(instance, port, "")
	if err != nil {
		n.logger.Warn("mDNS announce failed", "error", err)
		return
	}

	go func() {
		err := discovery.Browse(ctx, func(addr string) {
			if addr == self {
				return
			}
			added, err := n.peers.Add(addr)
			if err != nil || !added {
				return
			}
			n.logger.Info("Discovered peer", "peer", addr)
			n.engine.TriggerResolve()
		})
		if err != nil && ctx.Err() == nil {
			n.logger.Warn("mDNS browse stopped", "error", err)
		}
	}()
}

// shutdown stops the services in reverse order of start
func (n *node) shutdown() error {
	n.logger.Info("Shutting down")

	if n.engine != nil {
		n.engine.Stop()
	}
	n.announcer.Shutdown()

	var errs []error
	if n.rpc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, n.rpc.Shutdown(ctx))
		cancel()
	}
	if n.p2p != nil {
		errs = append(errs, n.p2p.Stop())
	}
	errs = append(errs, n.database.Close())
	return errors.Join(errs...)
}
