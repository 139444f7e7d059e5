package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/clover/server/internal/core/event"
	"github.com/clover/server/internal/world"
)

const (
	DefaultWriteTimeout = 5 * time.Second
	DefaultPingInterval = 15 * time.Second

	clientQueueSize  = 64
	inboundQueueSize = 64
)

// Message types sent on the feed.
const (
	TypeWorldLoaded   = "world_loaded"
	TypeWorldUnloaded = "world_unloaded"
	TypeActiveChanged = "active_world_changed"
)

// Message is one world event as seen by feed subscribers.
type Message struct {
	Type   string `json:"type"`
	World  string `json:"world"`
	Layer  int    `json:"layer"`
	Active int    `json:"active"`
}

type client struct {
	conn *websocket.Conn
	send chan Message
	done chan struct{}
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// Hub fans world events out to websocket subscribers. Broadcast never
// blocks: a subscriber whose queue is full is dropped.
//
// Subscribers may also send world_loaded messages, which are queued on
// Inbound for the game loop to apply.
type Hub struct {
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
	pingInterval time.Duration

	mu      sync.RWMutex
	clients map[*client]struct{}
	inbound chan Message

	srv *http.Server
	log *zap.Logger
}

func NewHub(writeTimeout time.Duration, log *zap.Logger) *Hub {
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		writeTimeout: writeTimeout,
		pingInterval: DefaultPingInterval,
		clients:      make(map[*client]struct{}),
		inbound:      make(chan Message, inboundQueueSize),
		log:          log,
	}
}

// Attach subscribes the hub to the world events on bus. Loads replicated
// from a subscriber are not sent back out.
func (h *Hub) Attach(bus *event.Bus) {
	event.Subscribe(bus, func(e world.WorldLoaded) {
		if e.Replicated {
			return
		}
		h.Broadcast(Message{Type: TypeWorldLoaded, World: e.World.Name(), Layer: e.World.Layer(), Active: e.Active})
	})
	event.Subscribe(bus, func(e world.WorldUnloaded) {
		h.Broadcast(Message{Type: TypeWorldUnloaded, World: e.World.Name(), Layer: e.World.Layer(), Active: e.Active})
	})
	event.Subscribe(bus, func(e world.ActiveWorldChanged) {
		msg := Message{Type: TypeActiveChanged, Layer: e.Layer, Active: e.Layer}
		if e.World != nil {
			msg.World = e.World.Name()
		}
		h.Broadcast(msg)
	})
}

// Inbound delivers world_loaded messages received from subscribers.
func (h *Hub) Inbound() <-chan Message { return h.inbound }

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues msg for every subscriber.
func (h *Hub) Broadcast(msg Message) {
	h.mu.RLock()
	var slow []*client
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warn("feed subscriber too slow, dropping", zap.String("remote", c.conn.RemoteAddr().String()))
		h.remove(c)
	}
}

// ServeHTTP upgrades the request and registers the connection as a subscriber.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("feed upgrade failed", zap.Error(err))
		return
	}
	c := &client{
		conn: conn,
		send: make(chan Message, clientQueueSize),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.log.Info("feed subscriber connected",
		zap.String("remote", conn.RemoteAddr().String()),
		zap.Int("clients", h.Clients()),
	)

	go h.writeLoop(c)
	h.readLoop(c)
}

// readLoop queues world_loaded frames and ignores everything else. It also
// notices disconnects.
func (h *Hub) readLoop(c *client) {
	defer h.remove(c)
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.log.Debug("feed frame not understood", zap.Error(err))
			continue
		}
		if msg.Type != TypeWorldLoaded || msg.World == "" {
			continue
		}
		select {
		case h.inbound <- msg:
		default:
			h.log.Warn("feed inbound queue full, dropping", zap.String("world", msg.World))
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	ping := time.NewTicker(h.pingInterval)
	defer ping.Stop()
	defer h.remove(c)

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ping.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.writeTimeout)); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
	if ok {
		h.log.Info("feed subscriber disconnected", zap.String("remote", c.conn.RemoteAddr().String()))
	}
}

// Listen serves the feed at /feed on addr in a background goroutine and
// returns the bound address.
func (h *Hub) Listen(addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/feed", h)
	h.srv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := h.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.log.Error("feed server stopped", zap.Error(err))
		}
	}()
	return ln.Addr(), nil
}

// Shutdown stops the listener and disconnects every subscriber.
func (h *Hub) Shutdown(ctx context.Context) error {
	var err error
	if h.srv != nil {
		err = h.srv.Shutdown(ctx)
	}
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		h.remove(c)
	}
	return err
}
