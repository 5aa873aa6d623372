// README: Connection manager owns the single duplex link to the dispatch backend.
package dispatch

import (
	"encoding/json"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"ridecore/internal/config"
	"ridecore/internal/types"
)

// State of the dispatch connection. Exactly one Manager (and so one live
// connection) exists per process.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateClosing      State = "closing"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256
)

// Manager maintains at most one live connection to the dispatch endpoint,
// identified by a (userID, role) pair embedded in the connection URL.
// Sends are best-effort: when the link is down they are logged and
// dropped, never surfaced as errors to callers.
type Manager struct {
	cfg    config.DispatchConfig
	router *Router
	log    *logrus.Logger

	mu             sync.Mutex
	state          State
	userID         types.ID
	role           string
	conn           *websocket.Conn
	send           chan []byte
	attempts       int
	reconnectTimer *time.Timer
	dialing        bool
	suppressed     bool

	onConnected        func()
	onConnectivityLost func()
}

func NewManager(cfg config.DispatchConfig, router *Router, log *logrus.Logger) *Manager {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Manager{
		cfg:    cfg,
		router: router,
		log:    log,
		state:  StateDisconnected,
	}
}

// SetOnConnected registers a callback fired after every successful open,
// including reconnects. Used to trigger reconciliation after a gap.
func (m *Manager) SetOnConnected(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onConnected = fn
}

// SetOnConnectivityLost registers a callback fired when the reconnect
// budget is exhausted. The manager then stays Disconnected until an
// explicit Connect call.
func (m *Manager) SetOnConnectivityLost(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onConnectivityLost = fn
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connect opens the connection for the given identity. Already connected
// with the same identity it is a no-op; with a different identity the old
// connection is closed first. Transport failures are absorbed: they show
// up through State and the connectivity callbacks, not as a return value.
func (m *Manager) Connect(userID types.ID, role string) {
	m.mu.Lock()
	sameIdentity := m.userID == userID && m.role == role
	if sameIdentity && (m.state == StateConnected || m.state == StateConnecting) {
		m.mu.Unlock()
		return
	}
	if !sameIdentity && m.conn != nil {
		m.closeConnLocked()
	}
	m.userID = userID
	m.role = role
	m.attempts = 0
	m.suppressed = false
	m.cancelReconnectLocked()
	m.mu.Unlock()

	m.dial()
}

// Send serializes message and transmits it if the connection is up.
// Otherwise the message is dropped with a logged warning; the caller must
// stay responsive even when offline.
func (m *Manager) Send(message any) {
	data, err := json.Marshal(message)
	if err != nil {
		m.log.WithError(err).Warn("dispatch send: marshal failed")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateConnected || m.send == nil {
		m.log.WithField("state", m.state).Warn("dispatch send dropped: not connected")
		return
	}
	select {
	case m.send <- data:
	default:
		m.log.Warn("dispatch send dropped: buffer full")
	}
}

// Close shuts the connection down with a normal-closure code and suppresses
// automatic reconnection.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suppressed = true
	m.cancelReconnectLocked()
	if m.conn == nil {
		m.state = StateDisconnected
		return
	}
	m.state = StateClosing
	m.closeConnLocked()
}

func (m *Manager) dial() {
	m.mu.Lock()
	if m.state == StateConnected || m.dialing {
		m.mu.Unlock()
		return
	}
	m.state = StateConnecting
	m.dialing = true
	userID, role := m.userID, m.role
	m.mu.Unlock()

	endpoint, err := m.endpointFor(userID, role)
	if err != nil {
		m.mu.Lock()
		m.dialing = false
		m.state = StateDisconnected
		m.mu.Unlock()
		m.log.WithError(err).Error("dispatch dial: bad endpoint URL")
		return
	}

	conn, _, err := websocket.DefaultDialer.Dial(endpoint, nil)

	m.mu.Lock()
	m.dialing = false
	if m.suppressed {
		// Close raced with the dial; drop the fresh connection
		m.state = StateDisconnected
		m.mu.Unlock()
		if err == nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		m.state = StateDisconnected
		m.log.WithError(err).Warn("dispatch dial failed")
		m.scheduleReconnectLocked()
		m.mu.Unlock()
		return
	}
	m.conn = conn
	m.send = make(chan []byte, sendBufferSize)
	m.state = StateConnected
	m.attempts = 0
	send := m.send
	connected := m.onConnected
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{"user_id": userID, "user_type": role}).Info("dispatch connected")

	go m.readPump(conn)
	go m.writePump(conn, send)

	if connected != nil {
		connected()
	}
}

// endpointFor embeds identity as connection parameters so the backend
// knows who this is before any frame flows.
func (m *Manager) endpointFor(userID types.ID, role string) (string, error) {
	u, err := url.Parse(m.cfg.URL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("user_id", string(userID))
	q.Set("user_type", role)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (m *Manager) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			m.handleDisconnect(conn, err)
			return
		}
		// frames are processed one at a time, in arrival order
		m.router.OnFrame(message)
	}
}

func (m *Manager) writePump(conn *websocket.Conn, send <-chan []byte) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case message, ok := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (m *Manager) handleDisconnect(conn *websocket.Conn, err error) {
	m.mu.Lock()
	if m.conn != conn {
		// a stale pump from an already replaced connection
		m.mu.Unlock()
		return
	}
	m.conn = nil
	close(m.send)
	m.send = nil
	m.state = StateDisconnected

	if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		m.mu.Unlock()
		m.log.Info("dispatch connection closed")
		return
	}

	m.log.WithError(err).Warn("dispatch connection lost")
	m.scheduleReconnectLocked()
	m.mu.Unlock()
}

// scheduleReconnectLocked arms the reconnect timer. Only one attempt is
// ever in flight; exceeding the budget leaves the manager Disconnected
// until an explicit Connect.
func (m *Manager) scheduleReconnectLocked() {
	if m.reconnectTimer != nil {
		return
	}
	if m.attempts >= m.cfg.MaxReconnectAttempts {
		m.log.WithField("attempts", m.attempts).Warn("dispatch reconnect budget exhausted")
		if cb := m.onConnectivityLost; cb != nil {
			go cb()
		}
		return
	}
	m.attempts++
	m.log.WithField("attempt", m.attempts).Info("dispatch reconnect scheduled")
	m.reconnectTimer = time.AfterFunc(m.cfg.ReconnectDelay, func() {
		m.mu.Lock()
		m.reconnectTimer = nil
		m.mu.Unlock()
		m.dial()
	})
}

func (m *Manager) cancelReconnectLocked() {
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
}

// closeConnLocked tears the current connection down with a normal-closure
// code and detaches it so the old pumps cannot touch the manager again.
// Caller holds the mutex.
func (m *Manager) closeConnLocked() {
	deadline := time.Now().Add(writeWait)
	_ = m.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	_ = m.conn.Close()
	m.conn = nil
	if m.send != nil {
		close(m.send)
		m.send = nil
	}
	m.state = StateDisconnected
}
