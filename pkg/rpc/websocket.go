package rpc

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/basic-kali-box/Blockchain-Project/pkg/core"
)

// SubscribeAll matches every event type
const SubscribeAll = "all"

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10
	maxFrameSize = 4096
	outboxSize   = 256
)

// JSON-RPC 2.0 error codes used on the feed
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

// MethodHandler answers a request that is not a subscription
type MethodHandler func(params []interface{}) (interface{}, error)

// Error is the error member of a Response
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func invalidParams(reason string) *Error {
	return &Error{Code: codeInvalidParams, Message: "Invalid params", Data: reason}
}

// Request is a client frame
type Request struct {
	ID     interface{}   `json:"id"`
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
}

// Response answers exactly one Request
type Response struct {
	ID     interface{} `json:"id"`
	Result interface{} `json:"result,omitempty"`
	Error  *Error      `json:"error,omitempty"`
}

type notification struct {
	Method string `json:"method"`
	Params struct {
		Subscription string     `json:"subscription"`
		Result       core.Event `json:"result"`
	} `json:"params"`
}

type subscription struct {
	topic string
	owner *client
}

type client struct {
	id   string
	conn *websocket.Conn
	out  chan []byte
	done chan struct{}
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// enqueue never blocks; a client whose outbox is full is disconnected
func (c *client) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.out <- frame:
		return true
	default:
		c.close()
		return false
	}
}

func (c *client) reply(resp Response) {
	frame, err := json.Marshal(resp)
	if err != nil {
		return
	}
	c.enqueue(frame)
}

// EventHub fans ledger events out to websocket subscribers. Besides
// subscribe/unsubscribe it dispatches registered read-only methods.
type EventHub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.RWMutex
	clients map[string]*client
	subs    map[string]subscription
	methods map[string]MethodHandler
}

func NewEventHub() *EventHub {
	return &EventHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger:  slog.Default().With("component", "ws"),
		clients: make(map[string]*client),
		subs:    make(map[string]subscription),
		methods: make(map[string]MethodHandler),
	}
}

// RegisterMethod adds or replaces a named method
func (hub *EventHub) RegisterMethod(name string, handler MethodHandler) {
	hub.mu.Lock()
	hub.methods[name] = handler
	hub.mu.Unlock()
}

// RegisterLedgerMethods exposes chainLength, pendingCount and verifyProduct
func (hub *EventHub) RegisterLedgerMethods(ledger *core.Ledger) {
	hub.RegisterMethod("chainLength", func([]interface{}) (interface{}, error) {
		return ledger.Len(), nil
	})
	hub.RegisterMethod("pendingCount", func([]interface{}) (interface{}, error) {
		return ledger.PendingCount(), nil
	})
	hub.RegisterMethod("verifyProduct", func(params []interface{}) (interface{}, error) {
		if len(params) == 0 {
			return nil, errors.New("product id required")
		}
		id, ok := params[0].(string)
		if !ok {
			return nil, errors.New("product id must be a string")
		}
		return ledger.Authenticity(id), nil
	})
}

// HandleWebSocket upgrades the request and serves the client until it
// disconnects or the hub closes
func (hub *EventHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Warn("Websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		out:  make(chan []byte, outboxSize),
		done: make(chan struct{}),
	}
	hub.mu.Lock()
	hub.clients[c.id] = c
	hub.mu.Unlock()

	go hub.writeLoop(c)
	go hub.readLoop(c)
	hub.logger.Debug("Websocket client connected", "client", c.id)
}

func (hub *EventHub) readLoop(c *client) {
	defer hub.drop(c)

	c.conn.SetReadLimit(maxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				hub.logger.Debug("Websocket read failed", "client", c.id, "error", err)
			}
			return
		}
		hub.dispatch(c, frame)
	}
}

func (hub *EventHub) writeLoop(c *client) {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	write := func(kind int, data []byte) bool {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(kind, data); err != nil {
			c.close()
			return false
		}
		return true
	}

	for {
		select {
		case <-c.done:
			write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case frame := <-c.out:
			if !write(websocket.TextMessage, frame) {
				return
			}
		case <-ping.C:
			if !write(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (hub *EventHub) dispatch(c *client, frame []byte) {
	var req Request
	if err := json.Unmarshal(frame, &req); err != nil {
		c.reply(Response{Error: &Error{Code: codeParseError, Message: "Parse error"}})
		return
	}

	switch req.Method {
	case "subscribe":
		hub.subscribe(c, req)
		return
	case "unsubscribe":
		hub.unsubscribe(c, req)
		return
	}

	hub.mu.RLock()
	handler, ok := hub.methods[req.Method]
	hub.mu.RUnlock()
	if !ok {
		c.reply(Response{ID: req.ID, Error: &Error{Code: codeMethodNotFound, Message: "Method not found"}})
		return
	}

	result, err := handler(req.Params)
	if err != nil {
		c.reply(Response{ID: req.ID, Error: invalidParams(err.Error())})
		return
	}
	c.reply(Response{ID: req.ID, Result: result})
}

func knownTopic(topic string) bool {
	switch core.EventType(topic) {
	case core.EventNewBlock, core.EventNewTransaction, core.EventChainReplaced:
		return true
	}
	return topic == SubscribeAll
}

func (hub *EventHub) subscribe(c *client, req Request) {
	if len(req.Params) == 0 {
		c.reply(Response{ID: req.ID, Error: invalidParams("subscription type required")})
		return
	}
	topic, ok := req.Params[0].(string)
	if !ok || !knownTopic(topic) {
		c.reply(Response{ID: req.ID, Error: invalidParams("unknown subscription type")})
		return
	}

	id := uuid.NewString()
	hub.mu.Lock()
	hub.subs[id] = subscription{topic: topic, owner: c}
	hub.mu.Unlock()

	c.reply(Response{ID: req.ID, Result: id})
}

// unsubscribe answers false for ids the client does not own
func (hub *EventHub) unsubscribe(c *client, req Request) {
	var id string
	if len(req.Params) > 0 {
		id, _ = req.Params[0].(string)
	}
	if id == "" {
		c.reply(Response{ID: req.ID, Error: invalidParams("subscription id required")})
		return
	}

	hub.mu.Lock()
	sub, ok := hub.subs[id]
	ok = ok && sub.owner == c
	if ok {
		delete(hub.subs, id)
	}
	hub.mu.Unlock()

	c.reply(Response{ID: req.ID, Result: ok})
}

// Publish sends ev to every matching subscription. Its signature fits
// core.WithNotifier.
func (hub *EventHub) Publish(ev core.Event) {
	hub.mu.RLock()
	defer hub.mu.RUnlock()

	for id, sub := range hub.subs {
		if sub.topic != SubscribeAll && sub.topic != string(ev.Type) {
			continue
		}
		var note notification
		note.Method = "subscription"
		note.Params.Subscription = id
		note.Params.Result = ev

		frame, err := json.Marshal(note)
		if err != nil {
			hub.logger.Error("Failed to encode event", "type", ev.Type, "error", err)
			continue
		}
		if !sub.owner.enqueue(frame) {
			hub.logger.Debug("Dropped event for slow client", "client", sub.owner.id, "type", ev.Type)
		}
	}
}

// drop forgets c and every subscription it held
func (hub *EventHub) drop(c *client) {
	hub.mu.Lock()
	delete(hub.clients, c.id)
	for id, sub := range hub.subs {
		if sub.owner == c {
			delete(hub.subs, id)
		}
	}
	hub.mu.Unlock()
	c.close()
}

// Close disconnects every client
func (hub *EventHub) Close() {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	for _, c := range hub.clients {
		c.close()
	}
}

// ActiveConnections returns the number of connected websocket clients
func (hub *EventHub) ActiveConnections() int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.clients)
}

// ActiveSubscriptions returns the number of live subscriptions
func (hub *EventHub) ActiveSubscriptions() int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.subs)
}
