package connection

import (
	"encoding/json"
	"errors"
	"time"
)

// Errors
var (
	ErrNoEndpoint      = errors.New("no endpoint configured")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrAlreadyClosed   = errors.New("already closed")
)

// Reserved control signals multiplexed with user signals.
const (
	SignalConnect = "__connect"
	SignalProcess = "__process"
)

// Process statuses sent by the backend on the __process signal.
const (
	StatusStart = "start"
	StatusEnd   = "end"
)

// ProcessIDField is the payload key carrying a process correlation id on
// actions that start backend work.
const ProcessIDField = "__process_id"

// outbound is a frame sent to the backend.
type outbound struct {
	Signal string `json:"signal"`
	Load   any    `json:"load"`
}

// Handshake is the first frame sent on every newly opened socket.
type Handshake struct {
	AnalysisID  *string `json:"__connect"`
	RequestArgs *string `json:"__request_args"`
}

// ConnectAck is the load of the backend's __connect signal.
type ConnectAck struct {
	AnalysisID      string `json:"analysis_id"`
	BackendVersion  string `json:"databench_backend_version"`
	AnalysesVersion string `json:"analyses_version"`
}

// ProcessUpdate is the load of the backend's __process signal.
type ProcessUpdate struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

// Message is what signal handlers receive. Key is the object field a
// filtered selector matched, empty for plain selectors.
type Message struct {
	Signal string
	Key    string
	Load   json.RawMessage
}

// Decode unmarshals the message load into v.
func (m Message) Decode(v any) error {
	return json.Unmarshal(m.Load, v)
}

// State is the lifecycle state of a Connection.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Handler receives dispatched signals.
type Handler func(Message)

// Hook transforms an outbound load before it is encoded.
type Hook func(load any) any

// ProcessFunc receives status transitions of a tracked process.
type ProcessFunc func(status string)

// ErrorFunc receives connectivity problems. An empty message clears the
// previously reported error.
type ErrorFunc func(msg string)

// ReadyFunc is called every time the backend acknowledges a handshake.
type ReadyFunc func(c *Connection)

// ReloadFunc is called when the backend reports a different analyses
// version than the one seen on an earlier handshake.
type ReloadFunc func(oldVersion, newVersion string)

// Config configures a Connection.
type Config struct {
	URL         string // WebSocket endpoint (e.g., ws://localhost:5000/dummypi/ws)
	PageURL     string // Page the analysis is served from; used to derive URL and RequestArgs
	RequestArgs string // Sent once per handshake, empty = null
	AnalysisID  string // Resume this backend session, empty = let the backend assign one

	InitialReconnectDelay time.Duration // Backoff start, doubled on every close
	MaxReconnectAttempts  int           // Consecutive failed attempts before giving up
	OpenCheckDelay        time.Duration // Liveness window for a socket to open

	HandshakeTimeout time.Duration // WebSocket upgrade timeout
	WriteTimeout     time.Duration // Write deadline for sends
	PingInterval     time.Duration // Keepalive ping interval
	PingTimeout      time.Duration // Max time without ping/pong before the socket is stale
	OutboxSize       int           // Frames kept while the socket is not open
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		InitialReconnectDelay: 100 * time.Millisecond,
		MaxReconnectAttempts:  5,
		OpenCheckDelay:        2 * time.Second,
		HandshakeTimeout:      10 * time.Second,
		WriteTimeout:          5 * time.Second,
		PingInterval:          30 * time.Second,
		PingTimeout:           60 * time.Second,
		OutboxSize:            1000,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.InitialReconnectDelay <= 0 {
		c.InitialReconnectDelay = d.InitialReconnectDelay
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = d.MaxReconnectAttempts
	}
	if c.OpenCheckDelay <= 0 {
		c.OpenCheckDelay = d.OpenCheckDelay
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = d.HandshakeTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = d.PingInterval
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = d.PingTimeout
	}
	if c.OutboxSize <= 0 {
		c.OutboxSize = d.OutboxSize
	}
	return c
}
