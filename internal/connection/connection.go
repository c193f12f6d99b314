package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/databench-client/internal/clock"
)

// Messages reported through the error handler.
const (
	msgOpenFailed      = "connection could not be opened; retrying"
	msgAnalysesChanged = "analyses changed on the backend; restart the client to load them"
)

// Option configures a Connection.
type Option func(*Connection)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Connection) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDialer replaces the gorilla/websocket dialer.
func WithDialer(d Dialer) Option {
	return func(c *Connection) { c.dialer = d }
}

// WithClock sets the time source for the liveness check and backoff.
func WithClock(clk clock.Clock) Option {
	return func(c *Connection) { c.clock = clk }
}

// WithRandom sets the [0,1) source used for reconnect jitter.
func WithRandom(random func() float64) Option {
	return func(c *Connection) { c.random = random }
}

// WithLogSink replaces the slog sink that mirrors log, warn and error
// signals. A nil sink turns mirroring off.
func WithLogSink(sink LogSink) Option {
	return func(c *Connection) {
		c.sink = sink
		c.sinkSet = true
	}
}

// WithErrorHandler sets the initial error handler.
func WithErrorHandler(fn ErrorFunc) Option {
	return func(c *Connection) { c.onError = fn }
}

// Connection is one logical session with a databench backend. It
// multiplexes named signals over a single WebSocket, reconnects with
// jittered exponential backoff, and resumes the same backend analysis
// across reconnects.
type Connection struct {
	cfg     Config
	id      uuid.UUID
	logger  *slog.Logger
	dialer  Dialer
	clock   clock.Clock
	random  func() float64
	sink    LogSink
	sinkSet bool

	signals   *dispatcher
	processes *processTracker

	hooksMu sync.Mutex
	hooks   map[string][]Hook

	mu         sync.Mutex
	state      State
	gen        uint64 // bumped whenever the current socket is disarmed
	ctx        context.Context
	stopWatch  func() bool
	cancelDial context.CancelFunc
	socket     Socket
	openCheck  *clock.Timer
	retry      *clock.Timer
	attempt    int
	delay      time.Duration
	outbox     [][]byte

	analysisID      string
	backendVersion  string
	analysesVersion string

	onReady  ReadyFunc
	onError  ErrorFunc
	onReload ReloadFunc
}

// New creates a Connection. Register handlers before calling Connect.
func New(cfg Config, opts ...Option) *Connection {
	c := &Connection{
		cfg:    cfg.withDefaults(),
		id:     uuid.New(),
		logger: slog.Default(),
		clock:  clock.Real(),
		random: rand.Float64,
		hooks:  make(map[string][]Hook),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.logger = c.logger.With("client_id", c.id.String())
	if !c.sinkSet {
		c.sink = NewSlogSink(c.logger)
	}
	if c.onError == nil {
		c.onError = func(msg string) {
			if msg != "" {
				c.logger.Warn("connection error", "message", msg)
			}
		}
	}
	if c.dialer == nil {
		c.dialer = NewWebSocketDialer(c.cfg, c.logger)
	}

	if c.cfg.URL == "" && c.cfg.PageURL != "" {
		wsURL, args, err := GuessURL(c.cfg.PageURL)
		if err != nil {
			c.logger.Warn("cannot derive endpoint from page url", "page_url", c.cfg.PageURL, "error", err)
		} else {
			c.cfg.URL = wsURL
			if c.cfg.RequestArgs == "" {
				c.cfg.RequestArgs = args
			}
		}
	}

	c.analysisID = c.cfg.AnalysisID
	c.delay = c.cfg.InitialReconnectDelay
	c.signals = newDispatcher(c.logger)
	c.processes = newProcessTracker(c.logger)
	c.wireLogSignals()

	return c
}

// Attach creates a Connection, connects it and waits for the backend to
// acknowledge the session. ctx bounds both the wait and the connection.
func Attach(ctx context.Context, cfg Config, opts ...Option) (*Connection, error) {
	c := New(cfg, opts...)

	ready := make(chan struct{})
	var once sync.Once
	if err := c.Connect(ctx, func(*Connection) { once.Do(func() { close(ready) }) }); err != nil {
		return nil, err
	}

	select {
	case <-ready:
		return c, nil
	case <-ctx.Done():
		c.Disconnect()
		return nil, ctx.Err()
	}
}

// Connect opens the socket in the background. onReady, if not nil,
// replaces the ready handler and runs after every handshake ack. An
// existing socket is replaced; a failed connection starts over with a
// fresh backoff. The connection disconnects when ctx is done.
func (c *Connection) Connect(ctx context.Context, onReady ReadyFunc) error {
	if c.cfg.URL == "" {
		return ErrNoEndpoint
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if onReady != nil {
		c.onReady = onReady
	}
	if c.stopWatch != nil {
		c.stopWatch()
	}
	c.ctx = ctx
	c.stopWatch = context.AfterFunc(ctx, c.Disconnect)

	c.attempt = 0
	c.delay = c.cfg.InitialReconnectDelay
	c.connectLocked()
	return nil
}

// Disconnect closes the socket without triggering a reconnect. Safe to
// call at any time, any number of times.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.openCheck != nil {
		c.openCheck.Stop()
		c.openCheck = nil
	}
	c.teardownLocked()

	if c.state != StateIdle {
		c.logger.Info("disconnected", "url", c.cfg.URL)
	}
	c.state = StateIdle
}

// connectLocked replaces the current socket with a new dial attempt.
func (c *Connection) connectLocked() {
	c.teardownLocked()
	gen := c.gen
	c.state = StateConnecting

	if c.openCheck == nil {
		c.openCheck = c.clock.AfterFunc(c.cfg.OpenCheckDelay, c.checkOpen)
	}

	dialCtx, cancel := context.WithCancel(c.ctx)
	c.cancelDial = cancel

	c.logger.Debug("connecting", "url", c.cfg.URL, "attempt", c.attempt)
	go c.run(dialCtx, gen)
}

// teardownLocked disarms and closes the current socket and any pending
// retry, so nothing belonging to the old generation fires afterwards.
func (c *Connection) teardownLocked() {
	c.gen++
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	if c.cancelDial != nil {
		c.cancelDial()
		c.cancelDial = nil
	}
	if c.socket != nil {
		c.socket.Close()
		c.socket = nil
	}
}

// run dials and then reads frames until the socket fails.
func (c *Connection) run(ctx context.Context, gen uint64) {
	sock, err := c.dialer.Dial(ctx, c.cfg.URL)
	if err != nil {
		c.handleClose(gen, err)
		return
	}
	if !c.handleOpen(gen, sock) {
		sock.Close()
		return
	}

	for {
		data, err := sock.ReadMessage()
		if err != nil {
			c.handleClose(gen, err)
			return
		}
		if !c.current(gen) {
			return
		}
		c.handleMessage(data)
	}
}

func (c *Connection) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen == c.gen
}

// handleOpen adopts sock, sends the handshake and flushes the outbox.
// Returns false if the attempt was disarmed while dialing.
func (c *Connection) handleOpen(gen uint64, sock Socket) bool {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return false
	}

	c.socket = sock
	c.state = StateOpen
	c.attempt = 0
	c.delay = c.cfg.InitialReconnectDelay
	if c.openCheck != nil {
		c.openCheck.Stop()
		c.openCheck = nil
	}
	if c.cancelDial != nil {
		c.cancelDial()
		c.cancelDial = nil
	}

	err := sock.WriteMessage(c.handshakeLocked())
	if err == nil {
		err = c.flushLocked(sock)
	}
	analysisID := c.analysisID
	onError := c.onError
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("handshake failed", "error", err)
		// The read loop observes the close and schedules a retry.
		sock.Close()
		return true
	}

	c.logger.Info("connection open", "url", c.cfg.URL, "analysis_id", analysisID)
	c.safely("error handler", func() { onError("") })
	return true
}

func (c *Connection) handshakeLocked() []byte {
	var hs Handshake
	if c.analysisID != "" {
		id := c.analysisID
		hs.AnalysisID = &id
	}
	if c.cfg.RequestArgs != "" {
		args := c.cfg.RequestArgs
		hs.RequestArgs = &args
	}
	data, _ := json.Marshal(hs)
	return data
}

// flushLocked sends queued frames in order. Unsent frames stay queued.
func (c *Connection) flushLocked(sock Socket) error {
	for len(c.outbox) > 0 {
		if err := sock.WriteMessage(c.outbox[0]); err != nil {
			return err
		}
		c.outbox = c.outbox[1:]
	}
	c.outbox = nil
	return nil
}

// handleClose records a failed attempt and either schedules a retry or
// gives up once MaxReconnectAttempts is exceeded.
func (c *Connection) handleClose(gen uint64, cause error) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}

	c.socket = nil
	if c.cancelDial != nil {
		c.cancelDial()
		c.cancelDial = nil
	}
	c.attempt++
	c.delay *= 2

	if c.attempt > c.cfg.MaxReconnectAttempts {
		c.state = StateFailed
		if c.openCheck != nil {
			c.openCheck.Stop()
			c.openCheck = nil
		}
		attempts := c.attempt - 1
		onError := c.onError
		c.mu.Unlock()

		c.logger.Error("giving up on connection",
			"url", c.cfg.URL,
			"attempts", attempts,
			"error", cause,
		)
		msg := fmt.Sprintf("connection closed after %d reconnect attempts; connect again to retry", attempts)
		c.safely("error handler", func() { onError(msg) })
		return
	}

	c.state = StateClosed
	wait := c.jitterLocked()
	c.retry = c.clock.AfterFunc(wait, func() { c.reconnect(gen) })
	attempt := c.attempt
	c.mu.Unlock()

	c.logger.Info("reconnecting",
		"attempt", attempt,
		"delay", wait,
		"error", cause,
	)
}

// jitterLocked spreads the retry over [0.7, 1.0] of the current delay.
func (c *Connection) jitterLocked() time.Duration {
	d := float64(c.delay)
	return time.Duration(0.7*d + 0.3*c.random()*d)
}

func (c *Connection) reconnect(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen || c.state != StateClosed {
		return
	}
	c.retry = nil
	c.connectLocked()
}

// checkOpen is the liveness check armed by connect: a socket that has
// neither opened nor is still dialing is reported.
func (c *Connection) checkOpen() {
	c.mu.Lock()
	c.openCheck = nil
	switch c.state {
	case StateConnecting:
		c.openCheck = c.clock.AfterFunc(c.cfg.OpenCheckDelay, c.checkOpen)
		c.mu.Unlock()
		return
	case StateClosed:
	default:
		c.mu.Unlock()
		return
	}
	onError := c.onError
	c.mu.Unlock()

	c.logger.Warn("connection could not be opened", "url", c.cfg.URL)
	c.safely("error handler", func() { onError(msgOpenFailed) })
}

// handleMessage decodes one frame and routes it. Malformed frames are
// dropped.
func (c *Connection) handleMessage(data []byte) {
	var frame map[string]json.RawMessage
	if err := json.Unmarshal(data, &frame); err != nil {
		c.logger.Warn("dropping malformed frame", "error", err, "size", len(data))
		return
	}

	var signal string
	load, hasLoad := frame["load"]
	if err := json.Unmarshal(frame["signal"], &signal); err != nil || signal == "" || !hasLoad {
		c.logger.Warn("dropping frame without signal or load", "size", len(data))
		return
	}

	switch signal {
	case SignalConnect:
		var ack ConnectAck
		if err := json.Unmarshal(load, &ack); err != nil {
			c.logger.Warn("dropping malformed connect ack", "error", err)
			return
		}
		c.handleConnectAck(ack)

	case SignalProcess:
		var update ProcessUpdate
		if err := json.Unmarshal(load, &update); err != nil {
			c.logger.Warn("dropping malformed process update", "error", err)
			return
		}
		c.processes.notify(update)

	default:
		c.signals.dispatch(signal, load)
	}
}

func (c *Connection) handleConnectAck(ack ConnectAck) {
	c.mu.Lock()
	if ack.AnalysisID != "" {
		c.analysisID = ack.AnalysisID
	}
	c.backendVersion = ack.BackendVersion
	previous := c.analysesVersion
	c.analysesVersion = ack.AnalysesVersion
	changed := previous != "" && previous != ack.AnalysesVersion
	onReady, onReload, onError := c.onReady, c.onReload, c.onError
	c.mu.Unlock()

	c.logger.Info("session acknowledged",
		"analysis_id", ack.AnalysisID,
		"backend_version", ack.BackendVersion,
		"analyses_version", ack.AnalysesVersion,
	)

	if changed {
		c.logger.Warn("analyses version changed", "old", previous, "new", ack.AnalysesVersion)
		if onReload != nil {
			c.safely("reload handler", func() { onReload(previous, ack.AnalysesVersion) })
		} else {
			c.safely("error handler", func() { onError(msgAnalysesChanged) })
		}
	}
	if onReady != nil {
		c.safely("ready handler", func() { onReady(c) })
	}
}

// safely runs a user callback, logging instead of propagating a panic.
func (c *Connection) safely(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("callback panicked", "callback", name, "panic", r)
		}
	}()
	fn()
}

// On registers handler for sel and returns a function that removes it.
func (c *Connection) On(sel Selector, handler Handler) (cancel func()) {
	id := c.signals.add(sel, handler)
	return sync.OnceFunc(func() { c.signals.remove(sel.signal, id) })
}

// Once returns a channel that receives the first message matching sel.
// The registration is removed after that delivery.
func (c *Connection) Once(sel Selector) <-chan Message {
	ch := make(chan Message, 1)

	var mu sync.Mutex
	var cancel func()
	var done bool

	// Held until cancel is assigned, so an early delivery waits for it.
	mu.Lock()
	defer mu.Unlock()
	cancel = c.On(sel, func(m Message) {
		mu.Lock()
		defer mu.Unlock()
		if done {
			return
		}
		done = true
		ch <- m
		cancel()
	})
	return ch
}

// Tap registers handler for every user signal, after the signal's own
// handlers. Returns a function that removes it.
func (c *Connection) Tap(handler Handler) (cancel func()) {
	id := c.signals.addTap(handler)
	return sync.OnceFunc(func() { c.signals.removeTap(id) })
}

// Trigger dispatches load under signal locally, as if it came from the
// backend.
func (c *Connection) Trigger(signal string, load any) error {
	data, err := json.Marshal(load)
	if err != nil {
		return fmt.Errorf("encode %s: %w", signal, err)
	}
	c.signals.dispatch(signal, data)
	return nil
}

// PreEmit appends a transform applied to every load emitted on signal.
// Hooks run in registration order.
func (c *Connection) PreEmit(signal string, hook Hook) {
	c.hooksMu.Lock()
	defer c.hooksMu.Unlock()
	c.hooks[signal] = append(c.hooks[signal], hook)
}

// Emit sends load on signal after the pre-emit hooks. While the socket is
// not open the frame is queued and sent, in order, right after the next
// handshake. Only encoding errors are returned.
func (c *Connection) Emit(signal string, load any) error {
	c.hooksMu.Lock()
	hooks := append([]Hook(nil), c.hooks[signal]...)
	c.hooksMu.Unlock()

	for _, hook := range hooks {
		load = hook(load)
	}

	data, err := json.Marshal(outbound{Signal: signal, Load: load})
	if err != nil {
		return fmt.Errorf("encode %s: %w", signal, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateOpen && c.socket != nil {
		err := c.socket.WriteMessage(data)
		if err == nil {
			return nil
		}
		c.logger.Warn("send failed, queueing for the next connection", "signal", signal, "error", err)
		// The read loop sees the close and reconnects.
		c.socket.Close()
	}

	if len(c.outbox) >= c.cfg.OutboxSize {
		c.logger.Warn("outbox full, dropping oldest frame", "size", len(c.outbox))
		c.outbox = c.outbox[1:]
	}
	c.outbox = append(c.outbox, data)
	return nil
}

// OnProcess registers callback for status updates of process id. The
// registration ends with the StatusEnd update.
func (c *Connection) OnProcess(id int64, callback ProcessFunc) {
	c.processes.add(id, callback)
}

// SetErrorHandler replaces the error handler. A nil handler discards
// errors.
func (c *Connection) SetErrorHandler(fn ErrorFunc) {
	if fn == nil {
		fn = func(string) {}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = fn
}

// SetReloadHandler sets the handler for analyses version changes.
func (c *Connection) SetReloadHandler(fn ReloadFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onReload = fn
}

// AnalysisID returns the backend session id, empty until assigned.
func (c *Connection) AnalysisID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.analysisID
}

// BackendVersion returns the databench version reported by the backend.
func (c *Connection) BackendVersion() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backendVersion
}

// AnalysesVersion returns the analyses fingerprint reported by the
// backend.
func (c *Connection) AnalysesVersion() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.analysesVersion
}

// State returns the lifecycle state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ID returns the client id attached to this connection's log lines.
func (c *Connection) ID() uuid.UUID { return c.id }

// URL returns the WebSocket endpoint.
func (c *Connection) URL() string { return c.cfg.URL }

// backoff reports the reconnect counters.
func (c *Connection) backoff() (attempt int, delay time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempt, c.delay
}
