package consensus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/basic-kali-box/Blockchain-Project/pkg/core"
)

// ErrPeerUnreachable wraps any failure to obtain a peer's chain
var ErrPeerUnreachable = errors.New("consensus: peer unreachable")

// maxChainResponse bounds how much of a peer response is read
const maxChainResponse = 64 << 20

// Transport fetches the full chain a peer serves
type Transport interface {
	FetchChain(ctx context.Context, addr string) (core.ChainResponse, error)
}

// HTTPTransport fetches GET {peer}/chain, retrying transient failures with
// exponential backoff
type HTTPTransport struct {
	client          *http.Client
	maxRetries      uint64
	initialInterval time.Duration
}

// NewHTTPTransport creates a transport making at most retries additional
// attempts per fetch
func NewHTTPTransport(client *http.Client, retries uint64) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{
		client:          client,
		maxRetries:      retries,
		initialInterval: 200 * time.Millisecond,
	}
}

// FetchChain implements Transport
func (t *HTTPTransport) FetchChain(ctx context.Context, addr string) (core.ChainResponse, error) {
	endpoint := strings.TrimRight(addr, "/") + "/chain"

	var resp core.ChainResponse
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(err)
		}

		res, err := t.client.Do(req)
		if err != nil {
			return err
		}
		defer res.Body.Close()

		if res.StatusCode != http.StatusOK {
			err := fmt.Errorf("unexpected status %s", res.Status)
			if res.StatusCode >= 500 {
				return err
			}
			return backoff.Permanent(err)
		}

		var decoded core.ChainResponse
		if err := json.NewDecoder(io.LimitReader(res.Body, maxChainResponse)).Decode(&decoded); err != nil {
			return backoff.Permanent(fmt.Errorf("decode chain: %w", err))
		}
		resp = decoded
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = t.initialInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, t.maxRetries), ctx)

	if err := backoff.Retry(op, policy); err != nil {
		return core.ChainResponse{}, fmt.Errorf("%w: %s: %v", ErrPeerUnreachable, addr, err)
	}
	return resp, nil
}

// MultiTransport sends multiaddr peers over P2P and everything else over
// HTTP
type MultiTransport struct {
	HTTP Transport
	P2P  Transport
}

// FetchChain implements Transport
func (m MultiTransport) FetchChain(ctx context.Context, addr string) (core.ChainResponse, error) {
	if strings.HasPrefix(addr, "/") {
		if m.P2P == nil {
			return core.ChainResponse{}, fmt.Errorf("%w: %s: p2p disabled", ErrPeerUnreachable, addr)
		}
		return m.P2P.FetchChain(ctx, addr)
	}
	if m.HTTP == nil {
		return core.ChainResponse{}, fmt.Errorf("%w: %s: http disabled", ErrPeerUnreachable, addr)
	}
	return m.HTTP.FetchChain(ctx, addr)
}
