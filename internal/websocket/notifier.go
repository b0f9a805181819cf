// Package websocket pushes live-reload notifications to connected browsers.
//
// A single hub goroutine owns client registration and broadcasting. Each
// client gets a read pump, which only watches for disconnects, and a write
// pump that drains its send buffer and keeps the connection alive with pings.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/sitepipe/internal/fsglob"
	"github.com/conneroisu/sitepipe/internal/logging"
	"github.com/conneroisu/sitepipe/internal/scheduler"
)

const (
	pingInterval  = 54 * time.Second
	writeTimeout  = 10 * time.Second
	sendQueueSize = 64
)

// Config configures a Notifier.
type Config struct {
	// AllowedOrigins extends the always-allowed loopback origins.
	AllowedOrigins []string
	// OutputRoot turns output file paths into site paths ("/assets/css/x.css").
	OutputRoot string
	Logger     logging.Logger
}

// Notifier is the live-reload hub.
type Notifier struct {
	clients      map[*websocket.Conn]*Client
	clientsMutex sync.RWMutex

	broadcast  chan []byte
	register   chan *Client
	unregister chan *websocket.Conn

	originValidator OriginValidator
	outputRoot      string
	logger          logging.Logger

	ctx          context.Context
	cancel       context.CancelFunc
	hubDone      chan struct{}
	shutdownOnce sync.Once
	isShutdown   atomic.Bool
}

// NewNotifier creates a notifier and starts its hub.
func NewNotifier(config Config) *Notifier {
	logger := config.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	n := &Notifier{
		clients:         make(map[*websocket.Conn]*Client),
		broadcast:       make(chan []byte, 256),
		register:        make(chan *Client, 32),
		unregister:      make(chan *websocket.Conn, 32),
		originValidator: AllowedOrigins(config.AllowedOrigins),
		outputRoot:      config.OutputRoot,
		logger:          logger.WithComponent("reload"),
		ctx:             ctx,
		cancel:          cancel,
		hubDone:         make(chan struct{}),
	}

	go n.runHub()

	return n
}

// HandleWebSocket upgrades the request and registers the client.
func (n *Notifier) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if n.isShutdown.Load() {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	origin := r.Header.Get("Origin")
	if origin != "" && !n.originValidator.IsAllowedOrigin(origin) {
		n.logger.Warn(r.Context(), nil, "WebSocket connection rejected", "origin", origin, "remote", r.RemoteAddr)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The origin has already been checked above.
		InsecureSkipVerify: true,
		CompressionMode:    websocket.CompressionDisabled,
	})
	if err != nil {
		n.logger.Warn(r.Context(), err, "WebSocket upgrade failed", "remote", r.RemoteAddr)
		return
	}

	client := &Client{
		conn:        conn,
		send:        make(chan []byte, sendQueueSize),
		remoteAddr:  r.RemoteAddr,
		connectedAt: time.Now(),
	}

	select {
	case n.register <- client:
	case <-n.ctx.Done():
		_ = conn.Close(websocket.StatusServiceRestart, "server shutting down")
		return
	}

	go n.writePump(client)
	n.readPump(client)
}

func (n *Notifier) runHub() {
	defer close(n.hubDone)

	for {
		select {
		case client := <-n.register:
			n.clientsMutex.Lock()
			n.clients[client.conn] = client
			count := len(n.clients)
			n.clientsMutex.Unlock()
			n.logger.Debug(n.ctx, "Client connected", "remote", client.remoteAddr, "clients", count)

		case conn := <-n.unregister:
			n.removeClient(conn, websocket.StatusNormalClosure, "")

		case message := <-n.broadcast:
			n.broadcastToClients(message)

		case <-n.ctx.Done():
			n.clientsMutex.Lock()
			conns := make([]*websocket.Conn, 0, len(n.clients))
			for conn := range n.clients {
				conns = append(conns, conn)
			}
			n.clientsMutex.Unlock()
			for _, conn := range conns {
				n.removeClient(conn, websocket.StatusGoingAway, "server shutdown")
			}
			return
		}
	}
}

// removeClient must only be called from the hub goroutine.
func (n *Notifier) removeClient(conn *websocket.Conn, code websocket.StatusCode, reason string) {
	n.clientsMutex.Lock()
	client, exists := n.clients[conn]
	if exists {
		delete(n.clients, conn)
		close(client.send)
	}
	count := len(n.clients)
	n.clientsMutex.Unlock()

	if exists {
		_ = conn.Close(code, reason)
		n.logger.Debug(n.ctx, "Client disconnected", "remote", client.remoteAddr,
			"clients", count, "connected_for", time.Since(client.connectedAt).String())
	}
}

func (n *Notifier) broadcastToClients(message []byte) {
	n.clientsMutex.RLock()
	clients := make([]*Client, 0, len(n.clients))
	for _, client := range n.clients {
		clients = append(clients, client)
	}
	n.clientsMutex.RUnlock()

	for _, client := range clients {
		select {
		case client.send <- message:
		default:
			// Slow client; drop it rather than block the hub.
			n.removeClient(client.conn, websocket.StatusPolicyViolation, "client too slow")
		}
	}
}

func (n *Notifier) readPump(client *Client) {
	defer n.requestUnregister(client.conn)

	for {
		if _, _, err := client.conn.Read(n.ctx); err != nil {
			return
		}
	}
}

func (n *Notifier) requestUnregister(conn *websocket.Conn) {
	select {
	case n.unregister <- conn:
	case <-n.ctx.Done():
	}
}

func (n *Notifier) writePump(client *Client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-client.send:
			if !ok {
				return
			}
			ctx, cancel := context.WithTimeout(n.ctx, writeTimeout)
			err := client.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				n.requestUnregister(client.conn)
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(n.ctx, writeTimeout)
			err := client.conn.Ping(ctx)
			cancel()
			if err != nil {
				n.requestUnregister(client.conn)
				return
			}

		case <-n.ctx.Done():
			return
		}
	}
}

// Send queues msg for every connected client.
func (n *Notifier) Send(msg Message) {
	if n.isShutdown.Load() {
		return
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		n.logger.Error(n.ctx, err, "Failed to marshal reload message")
		return
	}

	select {
	case n.broadcast <- data:
	case <-n.ctx.Done():
	default:
		n.logger.Warn(n.ctx, nil, "Broadcast queue full, dropping message", "type", msg.Type)
	}
}

// Notify tells clients that paths changed. When every path is a stylesheet
// the message asks for CSS injection instead of a full reload.
func (n *Notifier) Notify(paths []string) {
	sitePaths := make([]string, 0, len(paths))
	for _, p := range paths {
		sitePaths = append(sitePaths, n.sitePath(p))
	}
	n.Send(Message{Type: Kind(sitePaths), Paths: sitePaths})
}

// NotifyRun notifies clients of the outputs of a run. Runs without a single
// succeeded step send nothing. It reports whether a message was sent.
func (n *Notifier) NotifyRun(run *scheduler.Run) bool {
	if run == nil || len(run.SucceededSteps()) == 0 {
		return false
	}

	outputs := run.Outputs()
	sitePaths := make([]string, 0, len(outputs))
	for _, p := range outputs {
		sitePaths = append(sitePaths, n.sitePath(p))
	}
	n.Send(Message{Type: Kind(sitePaths), Paths: sitePaths, RunID: run.ID})
	return true
}

// NotifyError sends err to clients so the page can display it.
func (n *Notifier) NotifyError(err error) {
	if err == nil {
		return
	}
	n.Send(Message{Type: MessageError, Error: err.Error()})
}

// Kind returns MessageCSS when every path is a stylesheet and
// MessageReload otherwise.
func Kind(paths []string) string {
	if len(paths) == 0 {
		return MessageReload
	}
	for _, p := range paths {
		if !strings.EqualFold(filepath.Ext(p), ".css") {
			return MessageReload
		}
	}
	return MessageCSS
}

func (n *Notifier) sitePath(p string) string {
	if n.outputRoot != "" {
		if rel := fsglob.Rel(n.outputRoot, p); rel != "" {
			return "/" + rel
		}
	}
	return fsglob.ToSlash(p)
}

// ClientCount returns the number of connected clients.
func (n *Notifier) ClientCount() int {
	n.clientsMutex.RLock()
	defer n.clientsMutex.RUnlock()
	return len(n.clients)
}

// Shutdown closes every client connection and stops the hub.
func (n *Notifier) Shutdown(ctx context.Context) error {
	n.shutdownOnce.Do(func() {
		n.isShutdown.Store(true)
		n.cancel()
	})

	select {
	case <-n.hubDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsShutdown reports whether Shutdown has been called.
func (n *Notifier) IsShutdown() bool {
	return n.isShutdown.Load()
}
