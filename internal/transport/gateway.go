package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	// ErrNotConnected reports that no relay connection is live.
	// SendMessage does not return it: frames sent while disconnected wait
	// in the send buffer for the next connection's write pump.
	ErrNotConnected = errors.New("transport: not connected")
	// ErrStopped is returned by Run once Stop has been called.
	ErrStopped = errors.New("transport: stopped")
)

// wireFrame is the JSON-over-WebSocket envelope GatewayTransport speaks.
// It mirrors the chat events/commands a relay server forwards, rather
// than any one chat vendor's native protocol.
type wireFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type frameMessageReceived struct {
	User string `json:"user"`
	Text string `json:"text"`
}

type frameWhisperReceived struct {
	User string `json:"user"`
	Text string `json:"text"`
}

type frameJoinedChannel struct {
	Channel string `json:"channel"`
}

type frameHostReceived struct {
	Hoster  string `json:"hoster"`
	Viewers int    `json:"viewers"`
}

type frameSubscription struct {
	Subscriber string `json:"subscriber"`
	Months     int    `json:"months"`
}

type frameSendMessage struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

// GatewayTransport dials a JSON-over-WebSocket relay and translates its
// frames into transport.Events. It is the default, ungrounded-in-any-
// one-vendor Transport implementation: installations that sit in front
// of a specific chat service provide their own relay speaking this
// envelope, or a different Transport implementation entirely.
type GatewayTransport struct {
	addr   string
	path   string
	scheme string

	send chan wireFrame
	stop chan struct{}

	mu          sync.Mutex
	conn        *websocket.Conn
	isConnected bool
}

// NewGatewayTransport creates a client that will dial ws://addr/path
// (or wss:// if secure is true) once Run is called.
func NewGatewayTransport(addr, path string, secure bool) *GatewayTransport {
	scheme := "ws"
	if secure {
		scheme = "wss"
	}
	return &GatewayTransport{
		addr:   addr,
		path:   path,
		scheme: scheme,
		send:   make(chan wireFrame, 100),
		stop:   make(chan struct{}),
	}
}

func (g *GatewayTransport) dialURL() string {
	u := url.URL{Scheme: g.scheme, Host: g.addr, Path: g.path}
	return u.String()
}

// Run connects and blocks, dialing the relay with reconnect-with-backoff
// until Stop is called.
func (g *GatewayTransport) Run(dispatcher *Dispatcher) error {
	backoff := time.Second
	const maxBackoff = 30 * time.Second
	first := true

	for {
		select {
		case <-g.stop:
			return ErrStopped
		default:
		}

		if err := g.connectAndPump(dispatcher, !first); err != nil {
			log.Printf("transport: connection error: %v", err)
		}
		first = false

		select {
		case <-g.stop:
			return ErrStopped
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (g *GatewayTransport) connectAndPump(dispatcher *Dispatcher, isReconnect bool) error {
	u := g.dialURL()
	log.Printf("transport: connecting to %s", u)

	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		return fmt.Errorf("transport: dial failed: %w", err)
	}
	defer conn.Close()

	g.mu.Lock()
	g.conn = conn
	g.isConnected = true
	g.mu.Unlock()

	if isReconnect {
		dispatcher.Dispatch(Event{Kind: Reconnected})
	} else {
		dispatcher.Dispatch(Event{Kind: Connected})
	}

	connDone := make(chan struct{})
	go func() {
		defer close(connDone)
		g.writePump(conn)
	}()

	g.readPump(conn, dispatcher)

	g.mu.Lock()
	g.isConnected = false
	g.conn = nil
	g.mu.Unlock()

	dispatcher.Dispatch(Event{Kind: Disconnected})
	<-connDone
	return nil
}

func (g *GatewayTransport) readPump(conn *websocket.Conn, dispatcher *Dispatcher) {
	conn.SetReadLimit(8192)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("transport: read error: %v", err)
			}
			return
		}

		var frame wireFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Printf("transport: malformed frame: %v", err)
			continue
		}
		g.handleFrame(frame, dispatcher)
	}
}

func (g *GatewayTransport) handleFrame(frame wireFrame, dispatcher *Dispatcher) {
	switch frame.Type {
	case "joined_channel":
		var p frameJoinedChannel
		if err := json.Unmarshal(frame.Data, &p); err == nil {
			dispatcher.Dispatch(Event{Kind: JoinedChannel, Channel: p.Channel})
		}
	case "message":
		var p frameMessageReceived
		if err := json.Unmarshal(frame.Data, &p); err == nil {
			dispatcher.Dispatch(Event{Kind: MessageReceived, User: p.User, Text: p.Text})
		}
	case "whisper":
		var p frameWhisperReceived
		if err := json.Unmarshal(frame.Data, &p); err == nil {
			dispatcher.Dispatch(Event{Kind: WhisperReceived, User: p.User, Text: p.Text})
		}
	case "host":
		var p frameHostReceived
		if err := json.Unmarshal(frame.Data, &p); err == nil {
			dispatcher.Dispatch(Event{Kind: HostReceived, Hoster: p.Hoster, HostViewers: p.Viewers})
		}
	case "subscription":
		var p frameSubscription
		if err := json.Unmarshal(frame.Data, &p); err == nil {
			dispatcher.Dispatch(Event{Kind: Subscription, Subscriber: p.Subscriber, Months: p.Months})
		}
	case "resubscription":
		var p frameSubscription
		if err := json.Unmarshal(frame.Data, &p); err == nil {
			dispatcher.Dispatch(Event{Kind: Resubscription, Subscriber: p.Subscriber, Months: p.Months})
		}
	default:
		log.Printf("transport: unrecognized frame type %q", frame.Type)
	}
}

func (g *GatewayTransport) writePump(conn *websocket.Conn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case frame := <-g.send:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			data, err := json.Marshal(frame)
			if err != nil {
				log.Printf("transport: marshal error: %v", err)
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("transport: write error: %v", err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-g.stop:
			return
		}
	}
}

// SendMessage enqueues text for delivery to channel.
func (g *GatewayTransport) SendMessage(channel, text string) error {
	data, err := json.Marshal(frameSendMessage{Channel: channel, Text: text})
	if err != nil {
		return fmt.Errorf("transport: marshal send: %w", err)
	}
	select {
	case g.send <- wireFrame{Type: "send_message", Data: data}:
		return nil
	case <-g.stop:
		return ErrStopped
	}
}

// IsConnected reports whether a connection is currently live.
func (g *GatewayTransport) IsConnected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.isConnected
}

// Stop tells Run to return once its current connection attempt settles.
func (g *GatewayTransport) Stop() {
	close(g.stop)
}
