package binding

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rickgao/databench-client/internal/connection"
)

// Conn is the part of *connection.Connection that bindings use.
type Conn interface {
	On(sel connection.Selector, handler connection.Handler) (cancel func())
	Emit(signal string, load any) error
	OnProcess(id int64, callback connection.ProcessFunc)
}

var _ Conn = (*connection.Connection)(nil)

// ErrBusy is returned by Click while the previous click's process runs.
var ErrBusy = errors.New("button is active")

// ButtonState is the state of a Button.
type ButtonState int

const (
	ButtonIdle ButtonState = iota + 1
	ButtonActive
)

func (s ButtonState) String() string {
	switch s {
	case ButtonIdle:
		return "idle"
	case ButtonActive:
		return "active"
	}
	return "unknown"
}

// Button emits its action with a fresh process id and stays active until
// the backend reports the end of that process.
type Button struct {
	conn   Conn
	action string
	logger *slog.Logger

	// Format, if set, transforms the action payload before it is emitted.
	Format func(load map[string]any) any

	// NewProcessID generates correlation ids. Defaults to
	// connection.NewProcessID.
	NewProcessID func() int64

	mu       sync.Mutex
	state    ButtonState
	onChange func(ButtonState)
}

// NewButton creates an idle Button for action.
func NewButton(conn Conn, action string, logger *slog.Logger) *Button {
	if logger == nil {
		logger = slog.Default()
	}
	return &Button{
		conn:         conn,
		action:       action,
		logger:       logger.With("action", action),
		NewProcessID: connection.NewProcessID,
		state:        ButtonIdle,
	}
}

// BindButton creates a Button named by attrs.
func BindButton(conn Conn, attrs Attributes, logger *slog.Logger) (*Button, error) {
	action, ok := ActionName(attrs)
	if !ok {
		return nil, ErrSkipWire
	}
	return NewButton(conn, action, logger), nil
}

// Action returns the action name.
func (b *Button) Action() string { return b.action }

// State returns the current state.
func (b *Button) State() ButtonState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// OnChange sets a callback run after every state change.
func (b *Button) OnChange(fn func(ButtonState)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onChange = fn
}

// Click emits the action with a new process id and returns the id.
// Clicking an active button returns ErrBusy.
func (b *Button) Click() (int64, error) {
	b.mu.Lock()
	if b.state != ButtonIdle {
		b.mu.Unlock()
		return 0, ErrBusy
	}
	b.mu.Unlock()

	id := b.NewProcessID()
	var load any = map[string]any{connection.ProcessIDField: id}
	if b.Format != nil {
		load = b.Format(load.(map[string]any))
	}
	// Nothing is registered for a load that cannot be sent.
	if _, err := json.Marshal(load); err != nil {
		return 0, fmt.Errorf("click %s: encode load: %w", b.action, err)
	}

	b.conn.OnProcess(id, func(status string) {
		switch status {
		case connection.StatusStart:
			b.setState(ButtonActive)
		case connection.StatusEnd:
			b.setState(ButtonIdle)
		default:
			b.logger.Debug("ignoring process status", "id", id, "status", status)
		}
	})

	if err := b.conn.Emit(b.action, load); err != nil {
		return 0, fmt.Errorf("click %s: %w", b.action, err)
	}
	return id, nil
}

func (b *Button) setState(s ButtonState) {
	b.mu.Lock()
	changed := b.state != s
	b.state = s
	fn := b.onChange
	b.mu.Unlock()

	if changed && fn != nil {
		fn(s)
	}
}
