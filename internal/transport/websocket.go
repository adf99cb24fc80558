package transport

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"auviz/internal/dsp"
	applog "auviz/internal/log"
)

// WebSocketSink broadcasts parameter snapshots as JSON to connected renderer
// clients, with rate limiting so a fast frame loop cannot flood slow
// clients.
//
// Thread Safety:
// - Mutex around the client map
// - Publish is only called from the frame loop; connects come from HTTP
type WebSocketSink struct {
	clients      map[*websocket.Conn]bool
	clientsMutex sync.Mutex
	upgrader     websocket.Upgrader
	server       *http.Server

	lastSend        time.Time
	minSendInterval time.Duration
}

// NewWebSocketSink starts an HTTP server on the given port serving
// WebSocket upgrades at /params, and returns the sink. The server runs in
// its own goroutine.
func NewWebSocketSink(port string) *WebSocketSink {
	s := &WebSocketSink{
		clients: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Local rendering clients only
			},
		},
		minSendInterval: 10 * time.Millisecond,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/params", s.handleWebSocket)
	s.server = &http.Server{
		Addr:    ":" + port,
		Handler: mux,
	}

	go func() {
		applog.Infof("Transport: parameter WebSocket listening on port %s", port)
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			applog.Errorf("Transport: WebSocket server error: %v", err)
		}
	}()

	return s
}

// handleWebSocket upgrades the connection, registers the client, and spawns
// a reader goroutine whose only job is noticing the disconnect.
func (s *WebSocketSink) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Warnf("Transport: WebSocket upgrade error: %v", err)
		return
	}

	s.clientsMutex.Lock()
	s.clients[conn] = true
	s.clientsMutex.Unlock()

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.clientsMutex.Lock()
				delete(s.clients, conn)
				s.clientsMutex.Unlock()
				conn.Close()
				return
			}
		}
	}()
}

// Publish broadcasts the snapshot to all clients. Frames arriving faster
// than the rate limit are dropped, never queued.
func (s *WebSocketSink) Publish(params dsp.Parameters) error {
	now := time.Now()
	if now.Sub(s.lastSend) < s.minSendInterval {
		return nil
	}
	s.lastSend = now

	jsonData, err := json.Marshal(params)
	if err != nil {
		return err
	}

	s.clientsMutex.Lock()
	for client := range s.clients {
		if err := client.WriteMessage(websocket.TextMessage, jsonData); err != nil {
			client.Close()
			delete(s.clients, client)
		}
	}
	s.clientsMutex.Unlock()

	return nil
}

// Close disconnects all clients and shuts down the HTTP server.
func (s *WebSocketSink) Close() error {
	s.clientsMutex.Lock()
	for client := range s.clients {
		client.Close()
		delete(s.clients, client)
	}
	s.clientsMutex.Unlock()

	return s.server.Close()
}

var _ Sink = (*WebSocketSink)(nil)
