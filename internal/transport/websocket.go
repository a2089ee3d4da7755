// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"lipsync/internal/log"
)

const (
	broadcastQueue = 256
	writeTimeout   = 2 * time.Second
)

// WebSocketTransport broadcasts every payload as JSON to all clients
// connected on /ws. Extra handlers, such as /metrics, share the server.
type WebSocketTransport struct {
	upgrader  websocket.Upgrader
	listener  net.Listener
	server    *http.Server
	broadcast chan any
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]struct{}
}

// NewWebSocketTransport listens on addr and starts serving. Use ":0" to
// pick a free port and Addr to find it.
func NewWebSocketTransport(addr string, handlers map[string]http.Handler) (*WebSocketTransport, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("websocket listen on %s: %w", addr, err)
	}

	wst := &WebSocketTransport{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // local animation clients
		},
		listener:  ln,
		broadcast: make(chan any, broadcastQueue),
		done:      make(chan struct{}),
		clients:   make(map[*websocket.Conn]struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wst.handleWebSocket)
	for pattern, h := range handlers {
		mux.Handle(pattern, h)
	}
	wst.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	wst.wg.Add(2)
	go func() {
		defer wst.wg.Done()
		log.Infof("WebSocketTransport: serving on %s", ln.Addr())
		if err := wst.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("WebSocketTransport: server error: %v", err)
		}
	}()
	go func() {
		defer wst.wg.Done()
		wst.handleBroadcasts()
	}()
	return wst, nil
}

// Addr returns the address the server is listening on.
func (wst *WebSocketTransport) Addr() net.Addr {
	return wst.listener.Addr()
}

// ClientCount returns the number of connected clients.
func (wst *WebSocketTransport) ClientCount() int {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return len(wst.clients)
}

func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("WebSocketTransport: upgrade error: %v", err)
		return
	}

	wst.clientsMu.Lock()
	wst.clients[conn] = struct{}{}
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	log.Infof("WebSocketTransport: client %s connected, total: %d", conn.RemoteAddr(), total)

	// Clients only listen; the read loop exists to notice disconnects.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				wst.drop(conn)
				return
			}
		}
	}()
}

func (wst *WebSocketTransport) drop(conn *websocket.Conn) {
	wst.clientsMu.Lock()
	_, ok := wst.clients[conn]
	delete(wst.clients, conn)
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	if ok {
		conn.Close()
		log.Infof("WebSocketTransport: client %s disconnected, total: %d", conn.RemoteAddr(), total)
	}
}

func (wst *WebSocketTransport) handleBroadcasts() {
	for {
		select {
		case <-wst.done:
			return
		case data := <-wst.broadcast:
			wst.clientsMu.Lock()
			var failed []*websocket.Conn
			for client := range wst.clients {
				client.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := client.WriteJSON(data); err != nil {
					log.Warnf("WebSocketTransport: error sending to %s: %v", client.RemoteAddr(), err)
					failed = append(failed, client)
				}
			}
			wst.clientsMu.Unlock()
			for _, c := range failed {
				wst.drop(c)
			}
		}
	}
}

// Send queues data for broadcast. When the queue is full the payload is
// dropped; a newer prediction will follow shortly.
func (wst *WebSocketTransport) Send(data any) error {
	select {
	case <-wst.done:
		return ErrClosed
	default:
	}
	select {
	case wst.broadcast <- data:
	default:
		log.Debugf("WebSocketTransport: queue full, dropping payload")
	}
	return nil
}

// Close disconnects every client and stops the server.
func (wst *WebSocketTransport) Close() error {
	var err error
	wst.closeOnce.Do(func() {
		log.Infof("WebSocketTransport: closing server")
		close(wst.done)
		err = wst.server.Close()

		wst.clientsMu.Lock()
		for client := range wst.clients {
			client.Close()
		}
		clear(wst.clients)
		wst.clientsMu.Unlock()

		wst.wg.Wait()
	})
	return err
}

var _ Transport = (*WebSocketTransport)(nil)
