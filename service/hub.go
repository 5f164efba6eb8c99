package service

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/c360/sitekit/datastore"
	"github.com/c360/sitekit/editor"
	"github.com/c360/sitekit/metric"
)

const (
	liveWriteWait    = 10 * time.Second
	livePongWait     = 60 * time.Second
	livePingInterval = 50 * time.Second
	liveBuffer       = 64
)

// liveMessage is the envelope sent to editor clients.
type liveMessage struct {
	Type      string           `json:"type"` // hello, delta
	Tenant    string           `json:"tenant"`
	Seq       uint64           `json:"seq"`
	Timestamp int64            `json:"timestamp"`
	Delta     *datastore.Delta `json:"delta,omitempty"`
}

// Hub streams session deltas to connected editor clients over websockets.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger
	metrics  *metric.Metrics

	mu       sync.Mutex
	clients  map[*websocket.Conn]string
	shutdown chan struct{}
	closed   bool
	wg       sync.WaitGroup
}

// NewHub creates a hub.
func NewHub(logger *slog.Logger, metrics *metric.Metrics) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(*http.Request) bool {
				// The editor is served from tenant subdomains.
				return true
			},
		},
		logger:   logger,
		metrics:  metrics,
		clients:  make(map[*websocket.Conn]string),
		shutdown: make(chan struct{}),
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) add(conn *websocket.Conn, tenantID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[conn] = tenantID
	h.wg.Add(1)
	return true
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	_ = conn.Close()
	h.wg.Done()
}

// Serve upgrades the request and streams the session's deltas until the
// client goes away or the hub closes. It blocks for the connection lifetime.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, session *editor.Session) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		h.logger.Warn("Failed to upgrade live connection", "error", err)
		return
	}
	tenantID := session.TenantID()
	if !h.add(conn, tenantID) {
		_ = conn.Close()
		return
	}
	defer h.remove(conn)

	deltas, cancel := session.Subscribe(liveBuffer)
	defer cancel()

	h.metrics.RecordLiveConnection(1)
	defer h.metrics.RecordLiveConnection(-1)
	h.logger.Info("Live client connected", "tenant", tenantID, "remote", r.RemoteAddr)

	gone := make(chan struct{})
	go h.readPump(conn, gone)

	hello := liveMessage{Type: "hello", Tenant: tenantID, Seq: session.Store().Seq(), Timestamp: time.Now().UnixMilli()}
	if err := h.write(conn, hello); err != nil {
		return
	}

	ticker := time.NewTicker(livePingInterval)
	defer ticker.Stop()

	for {
		select {
		case d, ok := <-deltas:
			if !ok {
				// Session evicted; the client reconnects to its replacement.
				_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseServiceRestart, "session closed"))
				return
			}
			msg := liveMessage{Type: "delta", Tenant: tenantID, Seq: d.Seq, Timestamp: time.Now().UnixMilli(), Delta: &d}
			if err := h.write(conn, msg); err != nil {
				h.logger.Debug("Live client write failed", "tenant", tenantID, "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-gone:
			h.logger.Info("Live client disconnected", "tenant", tenantID)
			return
		case <-h.shutdown:
			_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		}
	}
}

func (h *Hub) write(conn *websocket.Conn, msg liveMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
	return conn.WriteJSON(msg)
}

// readPump consumes client frames so control messages are processed, and
// closes gone when the connection fails.
func (h *Hub) readPump(conn *websocket.Conn, gone chan<- struct{}) {
	defer close(gone)
	_ = conn.SetReadDeadline(time.Now().Add(livePongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(livePongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Close disconnects every client and waits for their handlers to return.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	close(h.shutdown)
	h.mu.Unlock()

	h.wg.Wait()
}
