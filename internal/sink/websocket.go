package sink

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebsocketSink broadcasts DF and spectrum frames to every connected
// WebSocket client, grounded on the teacher's DXClusterWebSocketHandler
// (one write mutex per connection, ping/pong keepalive, a registry
// guarded by a RWMutex) generalized from DX spots to DF/spectrum
// frames.
type WebsocketSink struct {
	clientsMu sync.RWMutex
	clients   map[*websocket.Conn]*sync.Mutex

	upgrader websocket.Upgrader
}

// NewWebsocketSink returns a sink with no connected clients yet. Wire
// ServeHTTP to a mux pattern to accept connections.
func NewWebsocketSink() *WebsocketSink {
	return &WebsocketSink{
		clients: make(map[*websocket.Conn]*sync.Mutex),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the connection and registers the client, per
// DXClusterWebSocketHandler.HandleWebSocket.
func (w *WebsocketSink) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	conn, err := w.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		log.Printf("sink: websocket upgrade failed: %v", err)
		return
	}

	w.clientsMu.Lock()
	w.clients[conn] = &sync.Mutex{}
	count := len(w.clients)
	w.clientsMu.Unlock()
	log.Printf("sink: websocket client connected (total: %d)", count)

	go w.readLoop(conn)
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}()
}

// readLoop drains and discards client messages, unregistering the
// client on disconnect. Clients are publish-only subscribers; no
// command channel is defined here.
func (w *WebsocketSink) readLoop(conn *websocket.Conn) {
	defer func() {
		w.clientsMu.Lock()
		delete(w.clients, conn)
		count := len(w.clients)
		w.clientsMu.Unlock()
		conn.Close()
		log.Printf("sink: websocket client disconnected (remaining: %d)", count)
	}()

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (w *WebsocketSink) broadcast(payload []byte) {
	w.clientsMu.RLock()
	defer w.clientsMu.RUnlock()
	for conn, writeMu := range w.clients {
		writeMu.Lock()
		err := conn.WriteMessage(websocket.TextMessage, payload)
		writeMu.Unlock()
		if err != nil {
			log.Printf("sink: websocket write failed: %v", err)
		}
	}
}

// PublishDF marshals and broadcasts a DF frame to every connected
// client, per broadcastSpot.
func (w *WebsocketSink) PublishDF(frame DFFrame) error {
	data, err := json.Marshal(struct {
		Type string `json:"type"`
		DFFrame
	}{Type: "df_result", DFFrame: frame})
	if err != nil {
		return fmt.Errorf("sink: marshal df frame: %w", err)
	}
	w.broadcast(data)
	return nil
}

// PublishSpectrum marshals and broadcasts a spectrum frame to every
// connected client.
func (w *WebsocketSink) PublishSpectrum(frame SpectrumFrame) error {
	data, err := json.Marshal(struct {
		Type string `json:"type"`
		SpectrumFrame
	}{Type: "spectrum", SpectrumFrame: frame})
	if err != nil {
		return fmt.Errorf("sink: marshal spectrum frame: %w", err)
	}
	w.broadcast(data)
	return nil
}

// Close disconnects every client.
func (w *WebsocketSink) Close() error {
	w.clientsMu.Lock()
	defer w.clientsMu.Unlock()
	for conn := range w.clients {
		conn.Close()
		delete(w.clients, conn)
	}
	return nil
}
