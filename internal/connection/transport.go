package connection

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/databench-client/internal/version"
)

// Socket is one transport connection carrying JSON text frames.
type Socket interface {
	// ReadMessage blocks until the next frame arrives. Any error means the
	// socket is gone.
	ReadMessage() ([]byte, error)

	// WriteMessage sends one text frame.
	WriteMessage(data []byte) error

	// Close closes the socket. Safe to call more than once.
	Close() error
}

// Dialer opens sockets.
type Dialer interface {
	Dial(ctx context.Context, url string) (Socket, error)
}

// NewWebSocketDialer returns a Dialer backed by gorilla/websocket.
func NewWebSocketDialer(cfg Config, logger *slog.Logger) Dialer {
	if logger == nil {
		logger = slog.Default()
	}
	return &wsDialer{cfg: cfg.withDefaults(), logger: logger}
}

type wsDialer struct {
	cfg    Config
	logger *slog.Logger
}

// Dial performs the WebSocket upgrade and starts the keepalive loop.
func (d *wsDialer) Dial(ctx context.Context, rawURL string) (Socket, error) {
	header := http.Header{}
	header.Set("Accept", "application/json")
	header.Set("User-Agent", version.UserAgent())

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.cfg.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, rawURL, header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rawURL, err)
	}

	s := &wsSocket{
		cfg:        d.cfg,
		logger:     d.logger,
		conn:       conn,
		done:       make(chan struct{}),
		lastPingAt: time.Now(),
	}

	// Server pings: answer with a pong and note liveness
	conn.SetPingHandler(func(data string) error {
		s.touch()
		return conn.WriteControl(
			websocket.PongMessage,
			[]byte(data),
			time.Now().Add(time.Second),
		)
	})

	// Pongs to our own keepalive pings
	conn.SetPongHandler(func(string) error {
		s.touch()
		return nil
	})

	go s.heartbeatLoop()

	d.logger.Debug("websocket connected", "url", rawURL)
	return s, nil
}

// wsSocket implements Socket over a gorilla connection.
type wsSocket struct {
	cfg    Config
	logger *slog.Logger
	conn   *websocket.Conn

	// Write serialization
	writeMu sync.Mutex

	done chan struct{}

	mu         sync.Mutex
	lastPingAt time.Time
	closed     bool
	stale      bool
}

func (s *wsSocket) touch() {
	s.mu.Lock()
	s.lastPingAt = time.Now()
	s.mu.Unlock()
}

// ReadMessage returns the next text or binary frame.
func (s *wsSocket) ReadMessage() ([]byte, error) {
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		s.mu.Lock()
		stale, closed := s.stale, s.closed
		s.mu.Unlock()
		switch {
		case stale:
			return nil, ErrStaleConnection
		case closed:
			return nil, ErrAlreadyClosed
		}
		return nil, err
	}
	return data, nil
}

// WriteMessage sends one text frame under the write deadline.
func (s *wsSocket) WriteMessage(data []byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrAlreadyClosed
	}
	s.mu.Unlock()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Close sends a close frame and closes the connection.
func (s *wsSocket) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.done)

	s.writeMu.Lock()
	s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	s.writeMu.Unlock()

	return s.conn.Close()
}

// heartbeatLoop pings the backend and closes the socket when neither
// pings nor pongs arrive within PingTimeout.
func (s *wsSocket) heartbeatLoop() {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.writeMu.Lock()
			err := s.conn.WriteControl(websocket.PingMessage, []byte("keepalive"), time.Now().Add(s.cfg.WriteTimeout))
			s.writeMu.Unlock()
			if err != nil {
				s.logger.Debug("failed to send ping", "error", err)
			}

			s.mu.Lock()
			lastPing := s.lastPingAt
			s.mu.Unlock()

			if time.Since(lastPing) > s.cfg.PingTimeout {
				s.logger.Warn("no ping received, connection stale",
					"last_ping", lastPing,
					"timeout", s.cfg.PingTimeout,
				)
				s.mu.Lock()
				s.stale = true
				s.mu.Unlock()
				// Unblocks ReadMessage so the owner sees the close.
				s.conn.Close()
				return
			}
		}
	}
}

// GuessURL derives the WebSocket endpoint and request args from the URL
// of the page an analysis is served from: http becomes ws, https becomes
// wss, and the endpoint is "ws" next to the page. The query string, if
// any, becomes the request args (with its leading "?").
func GuessURL(pageURL string) (wsURL, requestArgs string, err error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", "", fmt.Errorf("parse page url: %w", err)
	}

	var scheme string
	switch u.Scheme {
	case "http", "ws":
		scheme = "ws"
	case "https", "wss":
		scheme = "wss"
	default:
		return "", "", fmt.Errorf("unsupported page url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("page url %q has no host", pageURL)
	}

	dir := u.Path
	if i := strings.LastIndex(dir, "/"); i >= 0 {
		dir = dir[:i]
	} else {
		dir = ""
	}

	ws := url.URL{Scheme: scheme, Host: u.Host, Path: dir + "/ws"}
	if u.RawQuery != "" {
		requestArgs = "?" + u.RawQuery
	}
	return ws.String(), requestArgs, nil
}
