package connection

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
)

type selectorKind int

const (
	kindPlain selectorKind = iota
	kindFiltered
	kindMatching
)

// Selector chooses which inbound signals a handler receives.
type Selector struct {
	kind    selectorKind
	signal  string
	field   string
	pattern *regexp.Regexp
}

// Plain selects every message on signal; the handler gets the whole load.
func Plain(signal string) Selector {
	return Selector{kind: kindPlain, signal: signal}
}

// Filtered selects messages on signal whose load is an object containing
// field; the handler gets load[field].
func Filtered(signal, field string) Selector {
	return Selector{kind: kindFiltered, signal: signal, field: field}
}

// Matching selects messages on signal whose load is an object, and fires
// once per key matching pattern, in the order the keys appear.
func Matching(signal string, pattern *regexp.Regexp) Selector {
	return Selector{kind: kindMatching, signal: signal, pattern: pattern}
}

// ParseSelector reads "signal" as Plain and "signal:field" as Filtered.
// A leading colon is part of the signal name.
func ParseSelector(s string) (Selector, error) {
	if s == "" {
		return Selector{}, fmt.Errorf("empty selector")
	}
	if i := strings.Index(s, ":"); i >= 1 {
		field := s[i+1:]
		if field == "" {
			return Selector{}, fmt.Errorf("selector %q has an empty field", s)
		}
		return Filtered(s[:i], field), nil
	}
	return Plain(s), nil
}

// Signal returns the signal name the selector listens on.
func (s Selector) Signal() string { return s.signal }

func (s Selector) String() string {
	switch s.kind {
	case kindFiltered:
		return s.signal + ":" + s.field
	case kindMatching:
		return s.signal + ":/" + s.pattern.String() + "/"
	}
	return s.signal
}

type registration struct {
	id  uint64
	sel Selector
	fn  Handler
}

type objectField struct {
	key   string
	value json.RawMessage
}

// dispatcher is the signal registry. Handlers run outside the lock so
// they may register, unregister or emit.
type dispatcher struct {
	logger *slog.Logger

	mu       sync.Mutex
	nextID   uint64
	handlers map[string][]registration
	taps     []registration
}

func newDispatcher(logger *slog.Logger) *dispatcher {
	return &dispatcher{
		logger:   logger,
		handlers: make(map[string][]registration),
	}
}

// add registers fn and returns its id.
func (d *dispatcher) add(sel Selector, fn Handler) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	d.handlers[sel.signal] = append(d.handlers[sel.signal], registration{id: d.nextID, sel: sel, fn: fn})
	return d.nextID
}

// remove unregisters the handler with the given id.
func (d *dispatcher) remove(signal string, id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	regs := d.handlers[signal]
	for i, r := range regs {
		if r.id == id {
			d.handlers[signal] = append(regs[:i:i], regs[i+1:]...)
			break
		}
	}
	if len(d.handlers[signal]) == 0 {
		delete(d.handlers, signal)
	}
}

func (d *dispatcher) addTap(fn Handler) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	d.taps = append(d.taps, registration{id: d.nextID, fn: fn})
	return d.nextID
}

func (d *dispatcher) removeTap(id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, r := range d.taps {
		if r.id == id {
			d.taps = append(d.taps[:i:i], d.taps[i+1:]...)
			return
		}
	}
}

// dispatch delivers load to every handler registered under signal, in
// registration order, then to every tap.
func (d *dispatcher) dispatch(signal string, load json.RawMessage) {
	d.mu.Lock()
	regs := append([]registration(nil), d.handlers[signal]...)
	taps := append([]registration(nil), d.taps...)
	d.mu.Unlock()

	var fields []objectField
	var parsed, isObject bool

	for _, r := range regs {
		switch r.sel.kind {
		case kindPlain:
			d.call(r.fn, Message{Signal: signal, Load: load})

		case kindFiltered, kindMatching:
			if !parsed {
				fields, isObject = objectFields(load)
				parsed = true
			}
			if !isObject {
				continue
			}
			if r.sel.kind == kindFiltered {
				if v, ok := lastField(fields, r.sel.field); ok {
					d.call(r.fn, Message{Signal: signal, Key: r.sel.field, Load: v})
				}
				continue
			}
			for _, f := range fields {
				if r.sel.pattern.MatchString(f.key) {
					d.call(r.fn, Message{Signal: signal, Key: f.key, Load: f.value})
				}
			}
		}
	}

	for _, t := range taps {
		d.call(t.fn, Message{Signal: signal, Load: load})
	}
}

// call runs one handler, isolating panics so later handlers still run.
func (d *dispatcher) call(fn Handler, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("signal handler panicked",
				"signal", msg.Signal,
				"key", msg.Key,
				"panic", r,
			)
		}
	}()
	fn(msg)
}

// objectFields splits a JSON object into its fields in document order.
// Returns false when load is not an object.
func objectFields(load json.RawMessage) ([]objectField, bool) {
	dec := json.NewDecoder(bytes.NewReader(load))
	tok, err := dec.Token()
	if err != nil || tok != json.Delim('{') {
		return nil, false
	}

	var fields []objectField
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, false
		}
		key, ok := tok.(string)
		if !ok {
			return nil, false
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, false
		}
		fields = append(fields, objectField{key: key, value: value})
	}
	return fields, true
}

// lastField returns the value of key; duplicate keys resolve to the last
// occurrence, as JSON.parse does.
func lastField(fields []objectField, key string) (json.RawMessage, bool) {
	for i := len(fields) - 1; i >= 0; i-- {
		if fields[i].key == key {
			return fields[i].value, true
		}
	}
	return nil, false
}
