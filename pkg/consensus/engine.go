package consensus

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/basic-kali-box/Blockchain-Project/pkg/core"
)

// Miner is the part of the ledger the engine mines on
type Miner interface {
	PendingCount() int
	Mine(ctx context.Context) (core.Block, error)
}

// EngineConfig configures the background loops. A zero interval disables
// the corresponding loop.
type EngineConfig struct {
	Miner           bool
	MineInterval    time.Duration
	ResolveInterval time.Duration
}

// Engine runs the node's background mining and resolve loops
type Engine struct {
	ledger   Miner
	resolver *Resolver
	cfg      EngineConfig
	logger   *slog.Logger

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	cancel   context.CancelFunc
	trigger  chan struct{}
	wg       sync.WaitGroup
}

// NewEngine creates an engine; resolver may be nil to disable resolving
func NewEngine(ledger Miner, resolver *Resolver, cfg EngineConfig) *Engine {
	return &Engine{
		ledger:   ledger,
		resolver: resolver,
		cfg:      cfg,
		logger:   slog.Default().With("component", "engine"),
		trigger:  make(chan struct{}, 1),
	}
}

// Start launches the engine loop
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return errors.New("consensus: engine already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.stopChan = make(chan struct{})
	e.running = true

	e.wg.Add(1)
	go e.loop(ctx)
	return nil
}

// Stop halts the loop and waits for an in-flight mine or resolve to
// observe cancellation
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	close(e.stopChan)
	e.cancel()
	e.mu.Unlock()

	e.wg.Wait()
}

// TriggerResolve requests a resolve round without waiting for it. Requests
// made while one is queued are merged.
func (e *Engine) TriggerResolve() {
	select {
	case e.trigger <- struct{}{}:
	default:
	}
}

func (e *Engine) loop(ctx context.Context) {
	defer e.wg.Done()

	var mineC, resolveC <-chan time.Time
	if e.cfg.Miner && e.cfg.MineInterval > 0 {
		t := time.NewTicker(e.cfg.MineInterval)
		defer t.Stop()
		mineC = t.C
	}
	if e.resolver != nil && e.cfg.ResolveInterval > 0 {
		t := time.NewTicker(e.cfg.ResolveInterval)
		defer t.Stop()
		resolveC = t.C
	}

	for {
		select {
		case <-mineC:
			e.mineIfPending(ctx)
		case <-resolveC:
			e.resolve(ctx)
		case <-e.trigger:
			e.resolve(ctx)
		case <-e.stopChan:
			return
		}
	}
}

func (e *Engine) mineIfPending(ctx context.Context) {
	if e.ledger.PendingCount() == 0 {
		return
	}
	block, err := e.ledger.Mine(ctx)
	if err != nil {
		if ctx.Err() == nil {
			e.logger.Error("Mining failed", "error", err)
		}
		return
	}
	e.logger.Info("Mined block", "index", block.Index, "transactions", len(block.Transactions), "proof", block.Proof)
}

func (e *Engine) resolve(ctx context.Context) {
	if e.resolver == nil {
		return
	}
	replaced, err := e.resolver.Resolve(ctx)
	if err != nil {
		e.logger.Error("Resolve failed", "error", err)
		return
	}
	if replaced {
		e.logger.Info("Local chain replaced")
	}
}
