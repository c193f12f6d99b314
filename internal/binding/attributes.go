package binding

import (
	"errors"

	"github.com/rickgao/databench-client/internal/connection"
)

// Attribute names read by ActionName and WireSignal.
const (
	AttrSkipWire = "data-skipwire"
	AttrAction   = "data-action"
	AttrSignal   = "data-signal"
	AttrName     = "name"
	AttrID       = "id"
)

// ErrSkipWire is returned when an element opts out of wiring or has no
// name to wire under.
var ErrSkipWire = errors.New("element is not wired")

// Attributes are the attributes of one element.
type Attributes map[string]string

func (a Attributes) skipWire() bool {
	switch a[AttrSkipWire] {
	case "true", "TRUE", "1":
		return true
	}
	return false
}

// ActionName returns the action an element emits on: data-action, then
// name, then id. It returns false when data-skipwire is set or none of
// them is present.
func ActionName(attrs Attributes) (string, bool) {
	if attrs.skipWire() {
		return "", false
	}
	for _, key := range []string{AttrAction, AttrName, AttrID} {
		if v := attrs[key]; v != "" {
			return v, true
		}
	}
	return "", false
}

// WireSignal returns the selector an element listens on. data-signal is
// parsed with connection.ParseSelector, so "data:x" selects field x of the
// data signal. Without it, the action name is used as a field of the data
// signal.
func WireSignal(attrs Attributes) (connection.Selector, bool) {
	if attrs.skipWire() {
		return connection.Selector{}, false
	}
	if s := attrs[AttrSignal]; s != "" {
		sel, err := connection.ParseSelector(s)
		if err != nil {
			return connection.Selector{}, false
		}
		return sel, true
	}
	action, ok := ActionName(attrs)
	if !ok {
		return connection.Selector{}, false
	}
	return connection.Filtered("data", action), true
}
