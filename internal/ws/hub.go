package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tradepairs/pairs-backend/internal/metrics"
)

// Topics published by the service.
const (
	TopicMaintenance     = "maintenance"
	TopicPositionsPrefix = "positions:"
)

// ErrHubStopped is returned by Publish after Run has returned.
var ErrHubStopped = errors.New("websocket hub stopped")

// PositionsTopic is the per-owner topic carrying newly opened positions.
func PositionsTopic(owner string) string {
	return TopicPositionsPrefix + strings.ToLower(owner)
}

// Subscribable reports whether topic may be requested by name. Owner topics
// are only reachable through a subscription address, so neither an owner
// topic nor a wildcard reaching into that namespace is accepted.
func Subscribable(topic string) bool {
	if topic == "" || strings.HasPrefix(topic, TopicPositionsPrefix) {
		return false
	}
	if prefix, ok := strings.CutSuffix(topic, "*"); ok && strings.HasPrefix(TopicPositionsPrefix, prefix) {
		return false
	}
	return true
}

type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan outbound
	done       chan struct{}
	logger     *zap.SugaredLogger
	metrics    *metrics.Metrics
	upgrader   websocket.Upgrader
	mu         sync.RWMutex
}

type outbound struct {
	topic   string
	payload []byte
}

// Client is a hub subscriber. conn is nil for server-sent-event streams.
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	lastActive atomic.Int64

	mu      sync.Mutex
	topics  map[string]bool
	address string
	closed  bool
}

type Message struct {
	Type      string          `json:"type"`
	Topic     string          `json:"topic"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

type WSSubscriptionRequest struct {
	Type    string   `json:"type"`
	Topics  []string `json:"topics"`
	Address string   `json:"address,omitempty"`
}

// NewHub creates a hub. An empty origin list only admits same-origin
// upgrades; "*" admits any origin.
func NewHub(logger *zap.SugaredLogger, m *metrics.Metrics, allowedOrigins []string) *Hub {
	h := &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan outbound, 64),
		done:       make(chan struct{}),
		logger:     logger,
		metrics:    m,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(r.Header.Get("Origin"), allowedOrigins)
		},
	}
	return h
}

func originAllowed(origin string, allowed []string) bool {
	if origin == "" {
		return true
	}
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	go h.startClientCleanup(ctx)

	for {
		select {
		case <-ctx.Done():
			h.logger.Infow("WebSocket hub shutting down")
			h.mu.Lock()
			for client := range h.clients {
				h.dropUnsafe(ctx, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.metrics.IncrementConnections(ctx)
			h.logger.Debugw("Client registered", "address", client.Address())

		case client := <-h.unregister:
			h.mu.Lock()
			h.dropUnsafe(ctx, client)
			h.mu.Unlock()
			h.logger.Debugw("Client unregistered", "address", client.Address())

		case msg := <-h.broadcast:
			h.broadcastToClients(ctx, msg)
		}
	}
}

// must hold mu
func (h *Hub) dropUnsafe(ctx context.Context, client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	client.close()
	h.metrics.DecrementConnections(ctx)
}

func (h *Hub) broadcastToClients(ctx context.Context, msg outbound) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		if !client.isSubscribed(msg.topic) {
			continue
		}
		if !client.trySend(msg.payload) {
			// slow consumer
			h.dropUnsafe(ctx, client)
		}
	}
}

// Publish marshals data into an update message and queues it for every
// client subscribed to topic.
func (h *Hub) Publish(ctx context.Context, topic string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(Message{
		Type:      "update",
		Topic:     topic,
		Data:      raw,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		return err
	}

	select {
	case <-h.done:
		return ErrHubStopped
	default:
	}

	select {
	case h.broadcast <- outbound{topic: topic, payload: payload}:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) startClientCleanup(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.cleanupInactiveClients(ctx, time.Now().Add(-60*time.Second))
		}
	}
}

func (h *Hub) cleanupInactiveClients(ctx context.Context, cutoff time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		// SSE streams have no read side to refresh lastActive.
		if client.conn == nil {
			continue
		}
		if time.Unix(0, client.lastActive.Load()).Before(cutoff) {
			h.dropUnsafe(ctx, client)
			h.logger.Debugw("Cleaned up inactive client", "address", client.Address())
		}
	}
}

func (h *Hub) newClient(conn *websocket.Conn, topics []string, address string) *Client {
	c := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, 256),
		topics: make(map[string]bool),
	}
	c.touch()
	c.subscribe(topics, address)
	return c
}

// attach registers the client unless the hub has stopped.
func (h *Hub) attach(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) detach(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// HandleWebSocket upgrades the request and starts the client pumps.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorw("WebSocket upgrade failed", "error", err)
		return
	}

	client := h.newClient(conn, nil, "")
	if !h.attach(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// Address returns the owner the client follows, if any.
func (c *Client) Address() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.address
}

func (c *Client) touch() {
	c.lastActive.Store(time.Now().UnixNano())
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// trySend queues msg without blocking. It reports false when the buffer is full.
func (c *Client) trySend(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.detach(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.touch()
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Errorw("WebSocket error", "error", err)
			}
			break
		}

		c.touch()
		c.handleMessage(message)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(message []byte) {
	var sub WSSubscriptionRequest
	if err := json.Unmarshal(message, &sub); err != nil {
		c.hub.logger.Warnw("Invalid subscription message", "error", err)
		return
	}

	switch sub.Type {
	case "subscribe":
		if rejected := c.subscribe(sub.Topics, sub.Address); len(rejected) > 0 {
			c.hub.logger.Debugw("Rejected subscription topics", "topics", rejected)
		}
		c.hub.logger.Debugw("Client subscribed to topics", "topics", sub.Topics, "address", sub.Address)

	case "unsubscribe":
		c.mu.Lock()
		for _, topic := range sub.Topics {
			if Subscribable(topic) {
				delete(c.topics, topic)
			}
		}
		c.mu.Unlock()
		c.hub.logger.Debugw("Client unsubscribed from topics", "topics", sub.Topics)

	default:
		return
	}

	ack, _ := json.Marshal(Message{Type: sub.Type + "d", Timestamp: time.Now().Unix()})
	c.trySend(ack)
}

// subscribe adds the named public topics and, when address is set, makes the
// client follow that single owner's positions. Rejected topics are returned.
func (c *Client) subscribe(topics []string, address string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var rejected []string
	for _, topic := range topics {
		if !Subscribable(topic) {
			rejected = append(rejected, topic)
			continue
		}
		c.topics[topic] = true
	}
	if address != "" {
		if c.address != "" {
			delete(c.topics, PositionsTopic(c.address))
		}
		c.address = strings.ToLower(address)
		c.topics[PositionsTopic(c.address)] = true
	}
	return rejected
}

func (c *Client) isSubscribed(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.topics[topic] {
		return true
	}
	for t := range c.topics {
		if prefix, ok := strings.CutSuffix(t, "*"); ok && strings.HasPrefix(topic, prefix) {
			return true
		}
	}
	return false
}
