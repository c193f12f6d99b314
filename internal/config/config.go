package config

import "time"

// Config is the root configuration for the databench binaries.
type Config struct {
	Client    ClientConfig    `yaml:"client"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Transport TransportConfig `yaml:"transport"`
	Session   SessionConfig   `yaml:"session"`
	Recorder  RecorderConfig  `yaml:"recorder"`
	Database  DBConfig        `yaml:"database"`
	Log       LogConfig       `yaml:"log"`
	Health    HealthConfig    `yaml:"health"`
}

// ClientConfig identifies the backend analysis to attach to.
type ClientConfig struct {
	URL         string `yaml:"url"`          // WebSocket endpoint, e.g. ws://localhost:5000/dummypi/ws
	PageURL     string `yaml:"page_url"`     // Analysis page; used when url is empty
	RequestArgs string `yaml:"request_args"` // Sent with every handshake
	AnalysisID  string `yaml:"analysis_id"`  // Resume this backend session
}

// ReconnectConfig holds backoff settings.
type ReconnectConfig struct {
	InitialDelay   time.Duration `yaml:"initial_delay"`
	MaxAttempts    int           `yaml:"max_attempts"`
	OpenCheckDelay time.Duration `yaml:"open_check_delay"`
}

// TransportConfig holds WebSocket settings.
type TransportConfig struct {
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	PingInterval     time.Duration `yaml:"ping_interval"`
	PingTimeout      time.Duration `yaml:"ping_timeout"`
	OutboxSize       int           `yaml:"outbox_size"`
}

// Session store kinds.
const (
	SessionStoreNone     = "none"
	SessionStoreFile     = "file"
	SessionStorePostgres = "postgres"
)

// SessionConfig selects where analysis ids survive process restarts.
type SessionConfig struct {
	Store string `yaml:"store"` // none, file or postgres
	Path  string `yaml:"path"`  // file store location
}

// RecorderConfig holds signal recorder settings.
type RecorderConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
	Signals       []string      `yaml:"signals"` // empty records everything
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// Configured reports whether a database was set up at all.
func (db DBConfig) Configured() bool {
	return db.Host != ""
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// HealthConfig holds the recorder's health endpoint settings.
type HealthConfig struct {
	Port int `yaml:"port"` // 0 disables the endpoint
}
