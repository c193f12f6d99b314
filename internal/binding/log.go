package binding

import (
	"fmt"
	"strings"
	"sync"

	"github.com/rickgao/databench-client/internal/connection"
)

// Default Log limits.
const (
	DefaultLogLines  = 20
	DefaultLogLength = 250
)

// Log keeps the most recent log lines from both ends of a connection. It
// implements connection.LogSink.
type Log struct {
	maxLines  int
	maxLength int
	next      connection.LogSink

	mu    sync.Mutex
	lines []string
}

// NewLog creates a Log keeping maxLines lines, each shown with at most
// maxLength characters. Non-positive limits use the defaults. Every entry
// is also passed on to next when it is not nil.
func NewLog(maxLines, maxLength int, next connection.LogSink) *Log {
	if maxLines <= 0 {
		maxLines = DefaultLogLines
	}
	if maxLength <= 0 {
		maxLength = DefaultLogLength
	}
	return &Log{maxLines: maxLines, maxLength: maxLength, next: next}
}

// Record implements connection.LogSink.
func (l *Log) Record(e connection.LogEntry) {
	l.Add(e.Message, e.Source)
	if l.next != nil {
		l.next.Record(e)
	}
}

// Add appends message with its source right-aligned in front of it.
func (l *Log) Add(message, source string) {
	if source == "" {
		source = "unknown"
	}
	line := fmt.Sprintf("%7s: %s", source, message)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, line)
	if over := len(l.lines) - l.maxLines; over > 0 {
		l.lines = append(l.lines[:0:0], l.lines[over:]...)
	}
}

// Lines returns the kept lines, oldest first, truncated to the length
// limit.
func (l *Log) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]string, len(l.lines))
	for i, line := range l.lines {
		if r := []rune(line); len(r) > l.maxLength {
			line = string(r[:l.maxLength]) + " ..."
		}
		out[i] = line
	}
	return out
}

// String renders the log one line per entry.
func (l *Log) String() string {
	return strings.Join(l.Lines(), "\n")
}
