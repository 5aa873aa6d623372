// README: WebSocket fan-out hub for the simulated dispatch backend.
package sim

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256
)

type clientKey struct {
	userID   string
	userType string
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks connected rider and driver sockets keyed by identity and
// fans notification frames out to them. A second connection for the same
// identity replaces the first.
type Hub struct {
	mu        sync.Mutex
	clients   map[clientKey]*wsClient
	onInbound func(userID, userType string, raw []byte)
	log       *logrus.Logger
	upgrader  websocket.Upgrader
}

func NewHub(log *logrus.Logger) *Hub {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Hub{
		clients: make(map[clientKey]*wsClient),
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// SetOnInbound registers a callback for frames received from any client.
func (h *Hub) SetOnInbound(fn func(userID, userType string, raw []byte)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onInbound = fn
}

// ServeWS upgrades one request and registers the socket under the
// user_id/user_type query identity.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	userType := r.URL.Query().Get("user_type")
	if userID == "" || userType == "" {
		http.Error(w, "user_id and user_type are required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	key := clientKey{userID: userID, userType: userType}
	cl := &wsClient{conn: conn, send: make(chan []byte, sendBufferSize)}

	h.mu.Lock()
	if old, ok := h.clients[key]; ok {
		close(old.send)
		_ = old.conn.Close()
	}
	h.clients[key] = cl
	h.mu.Unlock()

	go h.writePump(cl)
	go h.readPump(key, cl)
}

// Push marshals payload and queues it for one identity. Reports whether a
// matching client is connected.
func (h *Hub) Push(userID, userType string, payload any) bool {
	raw, err := json.Marshal(payload)
	if err != nil {
		h.log.WithError(err).Warn("push payload not serializable")
		return false
	}

	h.mu.Lock()
	cl, ok := h.clients[clientKey{userID: userID, userType: userType}]
	h.mu.Unlock()
	if !ok {
		return false
	}

	select {
	case cl.send <- raw:
		return true
	default:
		h.log.WithFields(logrus.Fields{"user_id": userID, "user_type": userType}).
			Warn("client send buffer full; frame dropped")
		return false
	}
}

// Broadcast queues payload for every client of the given type.
func (h *Hub) Broadcast(userType string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		h.log.WithError(err).Warn("broadcast payload not serializable")
		return
	}

	h.mu.Lock()
	targets := make([]*wsClient, 0, len(h.clients))
	for key, cl := range h.clients {
		if key.userType == userType {
			targets = append(targets, cl)
		}
	}
	h.mu.Unlock()

	for _, cl := range targets {
		select {
		case cl.send <- raw:
		default:
		}
	}
}

func (h *Hub) readPump(key clientKey, cl *wsClient) {
	defer h.remove(key, cl)

	cl.conn.SetReadLimit(maxMessageSize)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := cl.conn.ReadMessage()
		if err != nil {
			return
		}
		h.mu.Lock()
		fn := h.onInbound
		h.mu.Unlock()
		if fn != nil {
			fn(key.userID, key.userType, raw)
		}
	}
}

func (h *Hub) writePump(cl *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = cl.conn.Close()
	}()

	for {
		select {
		case raw, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) remove(key clientKey, cl *wsClient) {
	h.mu.Lock()
	if cur, ok := h.clients[key]; ok && cur == cl {
		delete(h.clients, key)
		close(cl.send)
	}
	h.mu.Unlock()
	_ = cl.conn.Close()
}
