package binding

import (
	"encoding/json"
	"sync"

	"github.com/rickgao/databench-client/internal/connection"
)

// Value mirrors one backend value. Updates arrive on its selector and
// local changes are emitted on its action. It covers text, text inputs and
// sliders alike.
type Value struct {
	conn   Conn
	action string
	sel    connection.Selector
	cancel func()

	// Format, if set, transforms a local value before it is emitted.
	Format func(v any) any

	mu       sync.Mutex
	current  json.RawMessage
	onChange func(json.RawMessage)
}

// NewValue creates a Value emitting on action and updated by sel. An empty
// action makes the value read-only.
func NewValue(conn Conn, action string, sel connection.Selector) *Value {
	v := &Value{conn: conn, action: action, sel: sel}
	v.cancel = conn.On(sel, func(m connection.Message) { v.update(m.Load) })
	return v
}

// BindValue creates a Value named by attrs.
func BindValue(conn Conn, attrs Attributes) (*Value, error) {
	action, ok := ActionName(attrs)
	if !ok {
		return nil, ErrSkipWire
	}
	sel, ok := WireSignal(attrs)
	if !ok {
		return nil, ErrSkipWire
	}
	return NewValue(conn, action, sel), nil
}

// Action returns the action name.
func (v *Value) Action() string { return v.action }

// Selector returns the selector the value listens on.
func (v *Value) Selector() connection.Selector { return v.sel }

// Get returns the last value received or set, or nil.
func (v *Value) Get() json.RawMessage {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// Decode unmarshals the current value into out.
func (v *Value) Decode(out any) error {
	return json.Unmarshal(v.Get(), out)
}

// Set stores x and emits it on the action.
func (v *Value) Set(x any) error {
	load := x
	if v.Format != nil {
		load = v.Format(x)
	}
	data, err := json.Marshal(load)
	if err != nil {
		return err
	}
	v.update(data)
	if v.action == "" {
		return nil
	}
	return v.conn.Emit(v.action, load)
}

// OnChange sets a callback run after every update.
func (v *Value) OnChange(fn func(json.RawMessage)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onChange = fn
}

// Close stops listening for updates.
func (v *Value) Close() {
	v.cancel()
}

func (v *Value) update(data json.RawMessage) {
	v.mu.Lock()
	v.current = data
	fn := v.onChange
	v.mu.Unlock()

	if fn != nil {
		fn(data)
	}
}
