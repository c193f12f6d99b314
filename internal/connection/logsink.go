package connection

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Log levels carried as signals in both directions.
const (
	LevelLog   = "log"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Sources of a LogEntry.
const (
	SourceBackend  = "backend"
	SourceFrontend = "frontend"
)

var logSignals = []string{LevelLog, LevelWarn, LevelError}

// LogEntry is one mirrored log line.
type LogEntry struct {
	Level   string // log, warn or error
	Source  string // backend or frontend
	Message string
}

// LogSink receives log, warn and error signals from the backend and the
// same signals emitted by this client.
type LogSink interface {
	Record(entry LogEntry)
}

// NewSlogSink returns a LogSink writing to logger.
func NewSlogSink(logger *slog.Logger) LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return slogSink{logger: logger}
}

type slogSink struct {
	logger *slog.Logger
}

func (s slogSink) Record(e LogEntry) {
	level := slog.LevelInfo
	switch e.Level {
	case LevelWarn:
		level = slog.LevelWarn
	case LevelError:
		level = slog.LevelError
	}
	s.logger.Log(context.Background(), level, e.Message, "source", e.Source)
}

// wireLogSignals mirrors log traffic in both directions into c.sink.
func (c *Connection) wireLogSignals() {
	for _, level := range logSignals {
		c.On(Plain(level), func(m Message) {
			if c.sink != nil {
				c.sink.Record(LogEntry{Level: level, Source: SourceBackend, Message: LoadText(m.Load)})
			}
		})
		c.PreEmit(level, func(load any) any {
			if c.sink != nil {
				c.sink.Record(LogEntry{Level: level, Source: SourceFrontend, Message: ValueText(load)})
			}
			return load
		})
	}
}

// LoadText renders a raw load for display: JSON strings unquoted,
// anything else as compact JSON.
func LoadText(load json.RawMessage) string {
	var s string
	if err := json.Unmarshal(load, &s); err == nil {
		return s
	}
	return string(load)
}

// ValueText renders an outbound load for display.
func ValueText(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "<unencodable>"
	}
	return string(data)
}
