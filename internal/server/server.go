// Package server is the development server used by `sitepipe watch`. It
// serves the output directory, injects the live-reload client into HTML
// pages and exposes the reload WebSocket and a status endpoint.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/logging"
	"github.com/conneroisu/sitepipe/internal/middleware"
	"github.com/conneroisu/sitepipe/internal/scheduler"
	"github.com/conneroisu/sitepipe/internal/version"
	"github.com/conneroisu/sitepipe/internal/websocket"
)

// Reserved URL paths.
const (
	WebSocketPath = "/__sitepipe/ws"
	StatusPath    = "/__sitepipe/status"
	ClientPath    = "/__sitepipe/reload.js"
	HealthPath    = "/health"
)

// Config configures the development server.
type Config struct {
	Host string
	Port int
	// Open launches the system browser once the server listens.
	Open bool
	// Root is the directory served, normally the build output.
	Root           string
	AllowedOrigins []string
}

// Server serves a built site with live reload.
type Server struct {
	config    Config
	notifier  *websocket.Notifier
	metrics   *scheduler.Metrics
	collector *errors.ErrorCollector
	logger    logging.Logger

	httpServer  *http.Server
	listener    net.Listener
	serverMutex sync.RWMutex

	lastRun  *scheduler.Run
	runMutex sync.RWMutex

	shutdownOnce sync.Once
}

// New creates a server. The notifier is shared with the watch engine so
// rebuilds reach connected browsers; metrics may be nil.
func New(config Config, notifier *websocket.Notifier, metrics *scheduler.Metrics, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	if metrics == nil {
		metrics = scheduler.NewMetrics()
	}
	return &Server{
		config:    config,
		notifier:  notifier,
		metrics:   metrics,
		collector: errors.NewErrorCollector(),
		logger:    logger.WithComponent("server"),
	}
}

// Handler returns the full handler stack.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(WebSocketPath, s.notifier.HandleWebSocket)
	mux.HandleFunc(StatusPath, s.handleStatus)
	mux.HandleFunc(ClientPath, s.handleClientScript)
	mux.HandleFunc(HealthPath, s.handleHealth)
	mux.HandleFunc("/", s.handleSite)

	chain := middleware.NewChain(
		middleware.Recover(s.logger),
		middleware.Logging(s.logger),
		middleware.CORS(websocket.AllowedOrigins(s.config.AllowedOrigins)),
		middleware.NoCache(),
	)
	return chain.Apply(mux)
}

// Listen binds the configured address. It is called by Start and may be
// called earlier to learn the bound address.
func (s *Server) Listen() error {
	s.serverMutex.Lock()
	defer s.serverMutex.Unlock()

	if s.listener != nil {
		return nil
	}

	addr := net.JoinHostPort(s.config.Host, fmt.Sprint(s.config.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

// Addr returns the bound address, or "" before Listen.
func (s *Server) Addr() string {
	s.serverMutex.RLock()
	defer s.serverMutex.RUnlock()

	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// URL returns the http URL of the server.
func (s *Server) URL() string {
	return "http://" + s.Addr()
}

// Start serves until Shutdown is called or ctx is done.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	s.serverMutex.RLock()
	httpServer, ln := s.httpServer, s.listener
	s.serverMutex.RUnlock()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Development server listening", "url", s.URL(), "root", s.config.Root)

	if s.config.Open {
		go openBrowser(ctx, s.logger, s.URL())
	}

	if err := httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown closes reload connections and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if err := s.notifier.Shutdown(ctx); err != nil {
			shutdownErr = err
		}

		s.serverMutex.RLock()
		httpServer := s.httpServer
		s.serverMutex.RUnlock()

		if httpServer != nil {
			if err := httpServer.Shutdown(ctx); err != nil && shutdownErr == nil {
				shutdownErr = err
			}
		}
	})

	return shutdownErr
}

// RecordRun stores run as the latest build, updates the error overlay and
// notifies browsers.
func (s *Server) RecordRun(run *scheduler.Run) {
	if run == nil {
		return
	}

	s.runMutex.Lock()
	s.lastRun = run
	s.runMutex.Unlock()

	for _, res := range run.Results() {
		switch res.Status {
		case scheduler.StatusSucceeded:
			s.collector.Resolve(res.StepID)
		case scheduler.StatusFailed:
			s.collector.Add(errors.StepFailure{
				StepID:    res.StepID,
				Message:   res.Err.Error(),
				Severity:  errors.ErrorSeverityError,
				Timestamp: res.FinishedAt,
			})
		}
	}

	if err := run.Err(); err != nil && len(run.FailedSteps()) > 0 {
		s.notifier.NotifyError(err)
	}
	s.notifier.NotifyRun(run)
}

// LastRun returns the most recently recorded run.
func (s *Server) LastRun() *scheduler.Run {
	s.runMutex.RLock()
	defer s.runMutex.RUnlock()
	return s.lastRun
}

// Status is the payload of the status endpoint.
type Status struct {
	Version string                    `json:"version"`
	Clients int                       `json:"clients"`
	LastRun *scheduler.Summary        `json:"last_run"`
	Metrics scheduler.MetricsSnapshot `json:"metrics"`
	Errors  []errors.StepFailure      `json:"errors"`
}

func (s *Server) status() Status {
	st := Status{
		Version: version.GetShortVersion(),
		Clients: s.notifier.ClientCount(),
		Metrics: s.metrics.GetSnapshot(),
		Errors:  s.collector.GetErrors(),
	}
	if run := s.LastRun(); run != nil {
		summary := run.Summary()
		st.LastRun = &summary
	}
	return st
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.status())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   version.GetShortVersion(),
	})
}

func (s *Server) handleClientScript(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	_, _ = w.Write([]byte(reloadClient))
}

// handleSite serves files from the root directory. HTML documents get the
// reload client and, after a failed build, the error overlay.
func (s *Server) handleSite(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name, ok := s.resolve(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	if !strings.EqualFold(filepath.Ext(name), ".html") {
		http.ServeFile(w, r, name)
		return
	}

	page, err := os.ReadFile(name)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	snippet := `<script src="` + ClientPath + `"></script>`
	if s.collector.HasErrors() {
		snippet = s.collector.ErrorOverlay() + snippet
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(InjectBeforeBodyEnd(page, []byte(snippet)))
}

// resolve maps a URL path onto a file below the root, serving index.html
// for directories.
func (s *Server) resolve(urlPath string) (string, bool) {
	clean := path.Clean("/" + urlPath)
	name := filepath.Join(s.config.Root, filepath.FromSlash(clean))

	info, err := os.Stat(name)
	if err != nil {
		return "", false
	}
	if info.IsDir() {
		name = filepath.Join(name, "index.html")
		if _, err := os.Stat(name); err != nil {
			return "", false
		}
	}
	return name, true
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
