package transport

import (
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gateway-fm/jointsim/pkg/types"
)

const writeWait = time.Second

// WebSocketServer streams run snapshots and new ratio samples to clients.
type WebSocketServer struct {
	api      StatusAPI
	logger   *slog.Logger
	interval time.Duration
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}

	started  atomic.Bool
	done     chan struct{}
	flushed  chan struct{} // closed when the stream loop has exited
	stopOnce sync.Once
}

// NewWebSocketServer creates a stream over api. checkOrigin decides which
// browser origins may connect; nil allows requests without an Origin header
// and same-host origins only.
func NewWebSocketServer(api StatusAPI, logger *slog.Logger, checkOrigin func(*http.Request) bool) *WebSocketServer {
	if logger == nil {
		logger = slog.Default()
	}
	if checkOrigin == nil {
		checkOrigin = sameHost
	}
	return &WebSocketServer{
		api:      api,
		logger:   logger,
		interval: 200 * time.Millisecond,
		upgrader: websocket.Upgrader{CheckOrigin: checkOrigin},
		clients:  make(map[*websocket.Conn]struct{}),
		done:     make(chan struct{}),
		flushed:  make(chan struct{}),
	}
}

// Handler upgrades the connection and holds it open until the client leaves.
func (ws *WebSocketServer) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := ws.upgrader.Upgrade(w, r, nil)
		if err != nil {
			ws.logger.Debug("websocket upgrade failed", slog.String("error", err.Error()))
			return
		}

		ws.mu.Lock()
		ws.clients[conn] = struct{}{}
		ws.mu.Unlock()
		ws.logger.Debug("websocket client connected", slog.String("remote", r.RemoteAddr))

		defer ws.drop(conn)

		// Clients never send; reads only detect disconnects.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
}

// Start begins streaming. Later calls are no-ops.
func (ws *WebSocketServer) Start() {
	if !ws.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(ws.flushed)
		ws.loop()
	}()
}

// Stop pushes whatever clients have not seen yet, then disconnects them.
// It is safe to call twice.
func (ws *WebSocketServer) Stop() {
	ws.stopOnce.Do(func() {
		close(ws.done)
		if ws.started.Load() {
			<-ws.flushed
		}
		ws.mu.Lock()
		for conn := range ws.clients {
			conn.Close()
			delete(ws.clients, conn)
		}
		ws.mu.Unlock()
	})
}

// ClientCount returns the number of connected clients.
func (ws *WebSocketServer) ClientCount() int {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return len(ws.clients)
}

func (ws *WebSocketServer) loop() {
	ticker := time.NewTicker(ws.interval)
	defer ticker.Stop()

	var st streamState
	for {
		select {
		case <-ws.done:
			ws.push(&st)
			return
		case <-ticker.C:
			ws.push(&st)
		}
	}
}

// streamState is what the clients have already been sent.
type streamState struct {
	samples int
	final   bool // terminal status delivered
}

// push sends unsent samples, in order, followed by the current status.
// Once the run has ended its status is sent a single time.
func (ws *WebSocketServer) push(st *streamState) {
	snapshot := ws.api.Snapshot()
	if snapshot.Status == types.StatusIdle {
		return
	}

	points := ws.api.Series().Points
	if len(points) < st.samples {
		st.samples = 0
	}
	for i := st.samples; i < len(points); i++ {
		ws.broadcast(types.StreamMessage{Type: types.StreamSample, Sample: &points[i]})
	}
	st.samples = len(points)

	if snapshot.Status.Terminal() {
		if st.final {
			return
		}
		st.final = true
	}
	ws.broadcast(types.StreamMessage{Type: types.StreamStatus, Status: &snapshot})
}

// broadcast writes msg to every client. Only the stream loop writes, so each
// connection has a single writer.
func (ws *WebSocketServer) broadcast(msg types.StreamMessage) {
	ws.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(ws.clients))
	for conn := range ws.clients {
		conns = append(conns, conn)
	}
	ws.mu.Unlock()

	for _, conn := range conns {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			ws.logger.Debug("websocket write failed", slog.String("error", err.Error()))
			ws.drop(conn)
		}
	}
}

func (ws *WebSocketServer) drop(conn *websocket.Conn) {
	ws.mu.Lock()
	_, ok := ws.clients[conn]
	delete(ws.clients, conn)
	ws.mu.Unlock()
	if ok {
		conn.Close()
	}
}

// sameHost admits non-browser clients and pages served from the status server itself.
func sameHost(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && u.Host == r.Host
}
