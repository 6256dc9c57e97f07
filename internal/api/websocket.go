package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// frame is one JSON event pushed to every connected admin client.
type frame struct {
	Kind    string `json:"kind"`
	Payload any    `json:"payload,omitempty"`
}

// hub fans broadcast frames out to every connected admin websocket
// client, the same register/unregister/broadcast-channel shape as a
// chat transport's connection manager.
type hub struct {
	clientsMu sync.RWMutex
	clients   map[*wsClient]bool

	register   chan *wsClient
	unregister chan *wsClient
	frames     chan frame
	shutdown   chan struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

func newHub() *hub {
	return &hub{
		clients:    make(map[*wsClient]bool),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		frames:     make(chan frame),
		shutdown:   make(chan struct{}),
	}
}

func (h *hub) run() {
	for {
		select {
		case c := <-h.register:
			h.clientsMu.Lock()
			h.clients[c] = true
			h.clientsMu.Unlock()

		case c := <-h.unregister:
			h.clientsMu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.clientsMu.Unlock()

		case f := <-h.frames:
			h.deliver(f)

		case <-h.shutdown:
			return
		}
	}
}

func (h *hub) deliver(f frame) {
	data, err := json.Marshal(f)
	if err != nil {
		log.Printf("api: failed to marshal broadcast frame: %v", err)
		return
	}

	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			log.Printf("api: dropping slow websocket client")
		}
	}
}

// broadcast hands f to the running hub loop, or drops it silently if
// the loop is not ready to receive it: before Start (or in tests that
// exercise a handler directly), and also while a running loop is busy
// with another frame or a client registration.
func (h *hub) broadcast(f frame) {
	select {
	case h.frames <- f:
	default:
	}
}

func (h *hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("api: websocket upgrade failed: %v", err)
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, 32)}
	h.register <- c

	go c.writePump()
	go c.readPump(h)
}

func (c *wsClient) readPump(h *hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
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
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
