package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultInitialDelay     = 100 * time.Millisecond
	DefaultMaxAttempts      = 5
	MinMaxAttempts          = 3
	MaxMaxAttempts          = 5
	DefaultOpenCheckDelay   = 2 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 5 * time.Second
	DefaultPingInterval     = 30 * time.Second
	DefaultPingTimeout      = 60 * time.Second
	DefaultOutboxSize       = 1000
	DefaultSessionStore     = SessionStoreNone
	DefaultSessionPath      = "databench-sessions.yaml"
	DefaultDBPort           = 5432
	DefaultDBSSLMode        = "prefer"
	DefaultMaxConns         = 10
	DefaultMinConns         = 2
	DefaultBatchSize        = 500
	DefaultFlushInterval    = 1 * time.Second
	DefaultBufferSize       = 10000
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
)

// ApplyDefaults fills unset fields. Used by LoadWithDefaults and by
// callers that build a Config from flags.
func (c *Config) ApplyDefaults() {
	// Reconnect defaults
	if c.Reconnect.InitialDelay == 0 {
		c.Reconnect.InitialDelay = DefaultInitialDelay
	}
	if c.Reconnect.MaxAttempts == 0 {
		c.Reconnect.MaxAttempts = DefaultMaxAttempts
	}
	if c.Reconnect.OpenCheckDelay == 0 {
		c.Reconnect.OpenCheckDelay = DefaultOpenCheckDelay
	}

	// Transport defaults
	if c.Transport.HandshakeTimeout == 0 {
		c.Transport.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Transport.WriteTimeout == 0 {
		c.Transport.WriteTimeout = DefaultWriteTimeout
	}
	if c.Transport.PingInterval == 0 {
		c.Transport.PingInterval = DefaultPingInterval
	}
	if c.Transport.PingTimeout == 0 {
		c.Transport.PingTimeout = DefaultPingTimeout
	}
	if c.Transport.OutboxSize == 0 {
		c.Transport.OutboxSize = DefaultOutboxSize
	}

	// Session defaults
	if c.Session.Store == "" {
		c.Session.Store = DefaultSessionStore
	}
	if c.Session.Store == SessionStoreFile && c.Session.Path == "" {
		c.Session.Path = DefaultSessionPath
	}

	// Recorder defaults
	if c.Recorder.BatchSize == 0 {
		c.Recorder.BatchSize = DefaultBatchSize
	}
	if c.Recorder.FlushInterval == 0 {
		c.Recorder.FlushInterval = DefaultFlushInterval
	}
	if c.Recorder.BufferSize == 0 {
		c.Recorder.BufferSize = DefaultBufferSize
	}

	// Database defaults
	if c.Database.Configured() {
		applyDBDefaults(&c.Database)
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
