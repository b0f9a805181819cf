package websocket

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/coder/websocket"
)

// Message kinds sent to the browser.
const (
	MessageReload = "reload"
	MessageCSS    = "css"
	MessageError  = "error"
)

// Message is the JSON payload pushed to live-reload clients.
type Message struct {
	Type      string    `json:"type"`
	Paths     []string  `json:"paths,omitempty"`
	RunID     string    `json:"run_id,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Client represents a WebSocket client connection
type Client struct {
	conn        *websocket.Conn
	send        chan []byte
	remoteAddr  string
	connectedAt time.Time
}

// OriginValidator interface for WebSocket origin validation
type OriginValidator interface {
	IsAllowedOrigin(origin string) bool
}

// AllowedOrigins accepts loopback origins plus an explicit list. Entries are
// either bare hosts ("example.test:8080") or full origins
// ("https://example.test").
type AllowedOrigins []string

// IsAllowedOrigin implements OriginValidator.
func (a AllowedOrigins) IsAllowedOrigin(origin string) bool {
	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if originURL.Scheme != "http" && originURL.Scheme != "https" {
		return false
	}

	if isLoopback(originURL.Hostname()) {
		return true
	}

	for _, allowed := range a {
		allowed = strings.TrimSuffix(strings.TrimSpace(allowed), "/")
		if allowed == "" {
			continue
		}
		if strings.Contains(allowed, "://") {
			if strings.EqualFold(allowed, fmt.Sprintf("%s://%s", originURL.Scheme, originURL.Host)) {
				return true
			}
			continue
		}
		if strings.EqualFold(allowed, originURL.Host) {
			return true
		}
	}
	return false
}

func isLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
