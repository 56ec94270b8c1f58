// Package rpc exposes the ledger over HTTP and a websocket event feed.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/basic-kali-box/Blockchain-Project/pkg/consensus"
	"github.com/basic-kali-box/Blockchain-Project/pkg/core"
	"github.com/basic-kali-box/Blockchain-Project/pkg/identity"
	"github.com/basic-kali-box/Blockchain-Project/pkg/types"
)

const maxBodySize = 1 << 20

// Signer signs a raw JSON payload with the key of a named account
type Signer interface {
	SignPayload(name string, payload json.RawMessage) (string, error)
}

// Option configures an RPCServer
type Option func(*RPCServer)

// WithResolver enables the /nodes routes
func WithResolver(r *consensus.Resolver) Option {
	return func(s *RPCServer) { s.resolver = r }
}

// WithSigner enables POST /sign. Only meant for development nodes.
func WithSigner(signer Signer) Option {
	return func(s *RPCServer) { s.signer = signer }
}

// WithEventHub serves hub on /ws
func WithEventHub(hub *EventHub) Option {
	return func(s *RPCServer) { s.hub = hub }
}

// WithRateLimit limits write requests to r per second with the given burst
func WithRateLimit(r float64, burst int) Option {
	return func(s *RPCServer) {
		if r > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(r), burst)
		}
	}
}

// RPCServer represents the RPC server
type RPCServer struct {
	listenAddr string
	ledger     *core.Ledger
	registry   *identity.Registry
	resolver   *consensus.Resolver
	signer     Signer
	hub        *EventHub
	limiter    *rate.Limiter
	router     *mux.Router
	server     *http.Server
	listener   net.Listener
	logger     *slog.Logger
}

// NewRPCServer creates a new RPC server
func NewRPCServer(listenAddr string, ledger *core.Ledger, registry *identity.Registry, opts ...Option) *RPCServer {
	server := &RPCServer{
		listenAddr: listenAddr,
		ledger:     ledger,
		registry:   registry,
		router:     mux.NewRouter(),
		logger:     slog.Default().With("component", "rpc"),
	}
	for _, opt := range opts {
		opt(server)
	}

	server.registerRoutes()
	return server
}

// Handler returns the HTTP handler serving every route
func (s *RPCServer) Handler() http.Handler {
	return s.router
}

// Start binds the listen address and serves in the background
func (s *RPCServer) Start() error {
	listener, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("rpc: listen on %s: %w", s.listenAddr, err)
	}
	s.listener = listener

	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("RPC server error", "error", err)
		}
	}()

	s.logger.Info("RPC server started", "addr", listener.Addr().String())
	return nil
}

// Addr returns the bound address once started
func (s *RPCServer) Addr() string {
	if s.listener == nil {
		return s.listenAddr
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *RPCServer) Shutdown(ctx context.Context) error {
	if s.hub != nil {
		s.hub.Close()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// registerRoutes registers all API routes
func (s *RPCServer) registerRoutes() {
	s.router.HandleFunc("/health", s.healthHandler).Methods("GET")

	// Ledger
	s.router.HandleFunc("/chain", s.chainHandler).Methods("GET")
	s.router.HandleFunc("/mine", s.mineHandler).Methods("GET", "POST")
	s.router.Handle("/transactions/new", s.limited(s.newTransactionHandler)).Methods("POST")
	s.router.HandleFunc("/transactions/pending", s.pendingHandler).Methods("GET")
	s.router.HandleFunc("/stats", s.statsHandler).Methods("GET")

	// Provenance
	s.router.HandleFunc("/products", s.productsHandler).Methods("GET")
	s.router.HandleFunc("/products/{id}/history", s.historyHandler).Methods("GET")
	s.router.HandleFunc("/products/{id}/verify", s.verifyHandler).Methods("GET")
	s.router.HandleFunc("/products/{id}", s.productHandler).Methods("GET")

	// Identities
	s.router.Handle("/users/register", s.limited(s.registerUserHandler)).Methods("POST")
	s.router.HandleFunc("/users", s.usersHandler).Methods("GET")
	s.router.HandleFunc("/users/{username}/info", s.userInfoHandler).Methods("GET")

	// Peers
	if s.resolver != nil {
		s.router.Handle("/nodes/register", s.limited(s.registerNodesHandler)).Methods("POST")
		s.router.HandleFunc("/nodes/resolve", s.resolveHandler).Methods("GET")
		s.router.HandleFunc("/nodes", s.nodesHandler).Methods("GET")
	}

	if s.signer != nil {
		s.router.Handle("/sign", s.limited(s.signHandler)).Methods("POST")
	}
	if s.hub != nil {
		s.router.HandleFunc("/ws", s.hub.HandleWebSocket)
	}
}

// limited rejects requests over the configured rate
func (s *RPCServer) limited(h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			errorResponse(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		h(w, r)
	})
}

// healthHandler handles health check requests
func (s *RPCServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status": "ok",
		"time":   time.Now().Unix(),
		"length": s.ledger.Len(),
	}
	if s.hub != nil {
		resp["ws_clients"] = s.hub.ActiveConnections()
	}
	jsonResponse(w, http.StatusOK, resp)
}

func (s *RPCServer) chainHandler(w http.ResponseWriter, r *http.Request) {
	chain := s.ledger.Chain()
	jsonResponse(w, http.StatusOK, core.ChainResponse{Chain: chain, Length: len(chain)})
}

func (s *RPCServer) mineHandler(w http.ResponseWriter, r *http.Request) {
	block, err := s.ledger.Mine(r.Context())
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		s.logger.Error("Mining failed", "error", err)
		errorResponse(w, err.Error(), http.StatusInternalServerError)
		return
	}

	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"message":       "New Block Forged",
		"index":         block.Index,
		"transactions":  block.Transactions,
		"proof":         block.Proof,
		"previous_hash": block.PreviousHash,
	})
}

func (s *RPCServer) newTransactionHandler(w http.ResponseWriter, r *http.Request) {
	var req core.SubmitRequest
	if err := decodeBody(r, &req); err != nil {
		errorResponse(w, "Invalid transaction format", http.StatusBadRequest)
		return
	}
	if req.Sender == "" || req.Type == "" || len(req.Data) == 0 || req.Signature == "" {
		errorResponse(w, "Missing values", http.StatusBadRequest)
		return
	}

	tx, index, err := s.ledger.Submit(req)
	if err != nil {
		errorResponse(w, err.Error(), statusFor(err))
		return
	}

	jsonResponse(w, http.StatusCreated, map[string]interface{}{
		"message":        fmt.Sprintf("Transaction will be added to Block %d", index),
		"transaction_id": tx.ID,
	})
}

func (s *RPCServer) pendingHandler(w http.ResponseWriter, r *http.Request) {
	pending := s.ledger.Pending()
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"transactions": pending,
		"count":        len(pending),
	})
}

func (s *RPCServer) statsHandler(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, s.ledger.Stats())
}

func (s *RPCServer) productsHandler(w http.ResponseWriter, r *http.Request) {
	products := s.ledger.Products(r.URL.Query().Get("owner"))
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"products": products,
		"count":    len(products),
	})
}

func (s *RPCServer) historyHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	history, err := s.ledger.History(id)
	if err != nil {
		errorResponse(w, err.Error(), statusFor(err))
		return
	}
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"product_id": id,
		"history":    history,
	})
}

func (s *RPCServer) verifyHandler(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, s.ledger.Authenticity(mux.Vars(r)["id"]))
}

func (s *RPCServer) productHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	state, ok := s.ledger.ProductState(id)
	if !ok {
		errorResponse(w, "Product not found", http.StatusNotFound)
		return
	}
	jsonResponse(w, http.StatusOK, state)
}

type registerUserRequest struct {
	Username     string          `json:"username"`
	PublicKey    string          `json:"public_key"`
	Role         types.ActorType `json:"role"`
	Organization string          `json:"organization"`
}

func (s *RPCServer) registerUserHandler(w http.ResponseWriter, r *http.Request) {
	var req registerUserRequest
	if err := decodeBody(r, &req); err != nil {
		errorResponse(w, "Invalid request format", http.StatusBadRequest)
		return
	}
	if req.Username == "" || req.PublicKey == "" || req.Role == "" {
		errorResponse(w, "Missing values", http.StatusBadRequest)
		return
	}

	id, err := s.registry.Register(req.Username, req.PublicKey, req.Role, req.Organization)
	if err != nil {
		errorResponse(w, err.Error(), statusFor(err))
		return
	}
	jsonResponse(w, http.StatusCreated, id)
}

func (s *RPCServer) usersHandler(w http.ResponseWriter, r *http.Request) {
	users := s.registry.List()
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"users": users,
		"count": len(users),
	})
}

func (s *RPCServer) userInfoHandler(w http.ResponseWriter, r *http.Request) {
	id, err := s.registry.Lookup(mux.Vars(r)["username"])
	if err != nil {
		errorResponse(w, err.Error(), statusFor(err))
		return
	}
	jsonResponse(w, http.StatusOK, id)
}

func (s *RPCServer) registerNodesHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Nodes []string `json:"nodes"`
	}
	if err := decodeBody(r, &req); err != nil || len(req.Nodes) == 0 {
		errorResponse(w, "Please supply a valid list of nodes", http.StatusBadRequest)
		return
	}

	peers := s.resolver.Peers()
	for _, node := range req.Nodes {
		if _, err := peers.Add(node); err != nil {
			errorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	jsonResponse(w, http.StatusCreated, map[string]interface{}{
		"message":     "New nodes have been added",
		"total_nodes": peers.List(),
	})
}

func (s *RPCServer) resolveHandler(w http.ResponseWriter, r *http.Request) {
	replaced, err := s.resolver.Resolve(r.Context())
	if err != nil {
		errorResponse(w, err.Error(), http.StatusInternalServerError)
		return
	}

	message := "Our chain is authoritative"
	if replaced {
		message = "Our chain was replaced"
	}
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"message": message,
		"chain":   s.ledger.Chain(),
	})
}

func (s *RPCServer) nodesHandler(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"nodes": s.resolver.Peers().List(),
	})
}

func (s *RPCServer) signHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string          `json:"username"`
		Data     json.RawMessage `json:"data"`
	}
	if err := decodeBody(r, &req); err != nil || req.Username == "" || len(req.Data) == 0 {
		errorResponse(w, "Missing values", http.StatusBadRequest)
		return
	}

	signature, err := s.signer.SignPayload(req.Username, req.Data)
	if err != nil {
		errorResponse(w, err.Error(), http.StatusNotFound)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"signature": signature,
	})
}

// statusFor maps ledger and registry errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrUnknownSender), errors.Is(err, core.ErrInvalidSignature):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrMalformedPayload):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrDuplicateProduct), errors.Is(err, identity.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, core.ErrUnknownProduct), errors.Is(err, identity.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, identity.ErrInvalidRole), errors.Is(err, identity.ErrInvalidUsername):
		return http.StatusBadRequest
	}
	return http.StatusBadRequest
}

func decodeBody(r *http.Request, v interface{}) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(v)
}

// jsonResponse sends a JSON response
func jsonResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// errorResponse sends an error response
func errorResponse(w http.ResponseWriter, message string, statusCode int) {
	jsonResponse(w, statusCode, map[string]interface{}{
		"error": message,
	})
}
