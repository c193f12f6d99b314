package binding

import (
	"fmt"
	"strings"
	"sync"
)

// StatusFormatter renders one status message seen count times.
type StatusFormatter func(message string, count int) string

// DefaultStatusFormatter prefixes repeated messages with their count.
func DefaultStatusFormatter(message string, count int) string {
	if count <= 1 {
		return message
	}
	return fmt.Sprintf("(%d) %s", count, message)
}

// StatusLog aggregates connection errors. Repeated messages are counted
// rather than repeated, and an empty message clears everything.
type StatusLog struct {
	format StatusFormatter

	mu       sync.Mutex
	order    []string
	counts   map[string]int
	onChange func(lines []string)
}

// NewStatusLog creates a StatusLog. A nil formatter uses
// DefaultStatusFormatter.
func NewStatusLog(format StatusFormatter) *StatusLog {
	if format == nil {
		format = DefaultStatusFormatter
	}
	return &StatusLog{format: format, counts: make(map[string]int)}
}

// Add records message. Its signature matches connection.ErrorFunc.
func (s *StatusLog) Add(message string) {
	s.mu.Lock()
	if message == "" {
		s.order = nil
		s.counts = make(map[string]int)
	} else {
		if s.counts[message] == 0 {
			s.order = append(s.order, message)
		}
		s.counts[message]++
	}
	lines := s.linesLocked()
	fn := s.onChange
	s.mu.Unlock()

	if fn != nil {
		fn(lines)
	}
}

// Count returns how often message was added since the last clear.
func (s *StatusLog) Count(message string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[message]
}

// Lines returns the formatted messages in first-seen order.
func (s *StatusLog) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.linesLocked()
}

// OnChange sets a callback run with the formatted messages after every
// Add.
func (s *StatusLog) OnChange(fn func(lines []string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

func (s *StatusLog) String() string {
	return strings.Join(s.Lines(), "\n")
}

func (s *StatusLog) linesLocked() []string {
	lines := make([]string, 0, len(s.order))
	for _, m := range s.order {
		lines = append(lines, s.format(m, s.counts[m]))
	}
	return lines
}
