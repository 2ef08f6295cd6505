package ingress

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// EventNotification is what the hub fans out to every connected client
// each time the sequencer accepts a non-query command: enough for a
// client to follow the log without polling QUERY_* endpoints.
type EventNotification struct {
	EventID uint64 `json:"event_id"`
	Cmd     string `json:"cmd"`
	RootOld string `json:"root_old"`
	RootNew string `json:"root_new"`
}

// Hub maintains active WebSocket connections and broadcasts accepted
// events to all of them over a register/unregister/broadcast channel
// loop, without per-client channel subscriptions: every client here sees
// the full event stream, since the engine's log has no notion of
// per-symbol topics to filter by.
type Hub struct {
	clients    map[*wsClient]bool
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient
	mu         sync.RWMutex
	log        *zap.Logger
}

func newHub(log *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		log:        log,
	}
}

func (h *Hub) run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					close(c.send)
					delete(h.clients, c)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Notify encodes n and queues it for every connected client. A full
// broadcast buffer drops the notification rather than blocking the
// sequencer's apply loop; clients that fall behind should reconnect and
// catch up via QUERY_* commands.
func (h *Hub) Notify(n EventNotification) {
	msg, err := json.Marshal(n)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		if h.log != nil {
			h.log.Warn("dropped websocket notification, broadcast buffer full", zap.Uint64("event_id", n.EventID))
		}
	}
}

type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
		// Clients on this stream are read-only subscribers; any inbound
		// frame is discarded rather than treated as a command.
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
