package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mimiclab/simlink/internal/common/cnst"
	"github.com/mimiclab/simlink/internal/common/config"
	"github.com/mimiclab/simlink/pkg/metrics"
)

// State is the connection state of the session.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// Canonical policy defaults. Several independently tuned variants of this
// layer existed historically; these are the defensive ones.
const (
	defaultHandshakeTimeout       = 10 * time.Second
	defaultWriteTimeout           = 10 * time.Second
	defaultHeartbeatInterval      = 15 * time.Second
	defaultLivenessInterval       = 30 * time.Second
	defaultReconnectBaseDelay     = 500 * time.Millisecond
	defaultReconnectMaxDelay      = 10 * time.Second
	defaultReconnectExtendedDelay = 30 * time.Second
	defaultMaxReconnectAttempts   = 10
	defaultQueueSize              = 50
	defaultSeenCap                = 500
	defaultSeenRetain             = 250
	defaultRequestTimeout         = 5 * time.Second
)

// Config tunes one session. Zero values fall back to the defaults above.
type Config struct {
	URL string

	HandshakeTimeout       time.Duration
	WriteTimeout           time.Duration
	HeartbeatInterval      time.Duration
	LivenessInterval       time.Duration
	ReconnectBaseDelay     time.Duration
	ReconnectMaxDelay      time.Duration
	ReconnectExtendedDelay time.Duration
	MaxReconnectAttempts   int
	QueueSize              int
	SeenCap                int
	SeenRetain             int
	RequestTimeout         time.Duration

	// EphemeralTypes are high-frequency message types that are dropped
	// instead of queued while disconnected. Defaults to ping and the
	// debug_model_info status poll.
	EphemeralTypes []string

	// ReplyTypes overrides the reply type expected for a request type.
	// The default convention is "<type>_updated"; debug_model_info echoes
	// its own type.
	ReplyTypes map[string]string
}

// NewConfig maps the file configuration onto a session Config.
func NewConfig(backendURL string, sc config.SessionConfig) Config {
	return Config{
		URL:                    backendURL,
		HandshakeTimeout:       sc.HandshakeTimeout,
		WriteTimeout:           sc.WriteTimeout,
		HeartbeatInterval:      sc.HeartbeatInterval,
		LivenessInterval:       sc.LivenessInterval,
		ReconnectBaseDelay:     sc.ReconnectBaseDelay,
		ReconnectMaxDelay:      sc.ReconnectMaxDelay,
		ReconnectExtendedDelay: sc.ReconnectExtendedDelay,
		MaxReconnectAttempts:   sc.MaxReconnectAttempts,
		QueueSize:              sc.QueueSize,
		SeenCap:                sc.SeenCap,
		SeenRetain:             sc.SeenRetain,
		RequestTimeout:         sc.RequestTimeout,
		EphemeralTypes:         sc.EphemeralTypes,
		ReplyTypes:             sc.ReplyTypes,
	}
}

func (c Config) withDefaults() Config {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = defaultHandshakeTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.LivenessInterval <= 0 {
		c.LivenessInterval = defaultLivenessInterval
	}
	if c.ReconnectBaseDelay <= 0 {
		c.ReconnectBaseDelay = defaultReconnectBaseDelay
	}
	if c.ReconnectMaxDelay <= 0 {
		c.ReconnectMaxDelay = defaultReconnectMaxDelay
	}
	if c.ReconnectExtendedDelay <= 0 {
		c.ReconnectExtendedDelay = defaultReconnectExtendedDelay
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = defaultMaxReconnectAttempts
	}
	if c.QueueSize <= 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.SeenCap <= 0 {
		c.SeenCap = defaultSeenCap
	}
	if c.SeenRetain <= 0 || c.SeenRetain > c.SeenCap {
		c.SeenRetain = defaultSeenRetain
		if c.SeenRetain > c.SeenCap {
			c.SeenRetain = c.SeenCap / 2
		}
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.EphemeralTypes == nil {
		c.EphemeralTypes = []string{cnst.TypePing, cnst.TypeDebugModelInfo}
	}
	if c.ReplyTypes == nil {
		c.ReplyTypes = map[string]string{
			cnst.TypeDebugModelInfo: cnst.TypeDebugModelInfo,
		}
	}
	return c
}

// Session is the single long-lived realtime connection to the backend. It is
// constructed once and injected into consumers; all shared collections are
// owned by the session and only reachable through its methods.
type Session struct {
	cfg    Config
	logger *zap.Logger
	dialer Dialer
	m      *metrics.Metrics

	mu             sync.Mutex
	state          State
	conn           Conn
	gen            uint64 // connection generation; bumps invalidate stale loops
	intentional    bool   // disconnect requested by the caller
	attempts       int
	reconnectTimer *time.Timer
	heartbeatStop  chan struct{}

	queue *outboundQueue
	seen  *seenSet

	nextID             uint64
	handlers           []handlerEntry
	readyListeners     map[uint64]func(bool)
	computingListeners map[uint64]func(bool)
	computing          bool
	ephemeral          map[string]struct{}

	closed bool
	done   chan struct{}
}

// Option customizes a Session.
type Option func(*Session)

// WithDialer replaces the transport dialer. Used by tests and by embedders
// that need custom handshake behavior.
func WithDialer(d Dialer) Option {
	return func(s *Session) { s.dialer = d }
}

// WithMetrics attaches prometheus instruments.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) { s.m = m }
}

// New creates a session. The session does not connect until Connect is
// called; a background liveness check runs until Close.
func New(cfg Config, logger *zap.Logger, opts ...Option) *Session {
	cfg = cfg.withDefaults()
	s := &Session{
		cfg:                cfg,
		logger:             logger,
		queue:              newOutboundQueue(cfg.QueueSize),
		seen:               newSeenSet(cfg.SeenCap, cfg.SeenRetain),
		readyListeners:     make(map[uint64]func(bool)),
		computingListeners: make(map[uint64]func(bool)),
		ephemeral:          make(map[string]struct{}, len(cfg.EphemeralTypes)),
		done:               make(chan struct{}),
	}
	for _, t := range cfg.EphemeralTypes {
		s.ephemeral[t] = struct{}{}
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.dialer == nil {
		s.dialer = &WSDialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
			WriteTimeout:     cfg.WriteTimeout,
		}
	}
	go s.livenessLoop()
	return s
}

// Connect begins a connection attempt. It is a no-op while already
// connecting or connected, and never fails synchronously: all failures
// surface through state transitions and logs.
func (s *Session) Connect() {
	s.mu.Lock()
	if s.closed || s.state == StateConnecting || s.state == StateConnected {
		s.mu.Unlock()
		return
	}
	s.intentional = false
	s.cancelReconnectLocked()
	s.state = StateConnecting
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	go s.dial(gen)
}

func (s *Session) dial(gen uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.HandshakeTimeout)
	conn, err := s.dialer.Dial(ctx, s.cfg.URL)
	cancel()

	s.mu.Lock()
	if gen != s.gen || s.state != StateConnecting {
		// Superseded by a disconnect or a newer attempt.
		s.mu.Unlock()
		if err == nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		s.state = StateDisconnected
		s.attempts++
		delay := s.nextBackoffLocked()
		s.scheduleReconnectLocked(delay)
		attempt := s.attempts
		s.mu.Unlock()
		s.logger.Warn("backend dial failed",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", delay))
		return
	}

	s.conn = conn
	s.state = StateConnected
	s.attempts = 0
	stop := make(chan struct{})
	s.heartbeatStop = stop
	queued := s.queue.drain()
	listeners := s.readyListenersLocked()
	s.mu.Unlock()

	s.m.ConnState(true)
	s.m.QueueDepth(0)
	s.logger.Info("connected", zap.String("url", s.cfg.URL))
	for _, l := range listeners {
		l(true)
	}

	go s.readLoop(conn, gen)
	go s.heartbeatLoop(conn, gen, stop)
	s.flush(conn, gen, queued)
}

// flush replays buffered messages in enqueue order. A message that fails to
// send is re-queued together with everything behind it.
func (s *Session) flush(conn Conn, gen uint64, queued []*Message) {
	for i, msg := range queued {
		data, err := json.Marshal(msg)
		if err != nil {
			s.logger.Error("marshal queued message", zap.String("type", msg.Type), zap.Error(err))
			continue
		}
		if err := conn.Write(data); err != nil {
			s.logger.Warn("flush interrupted, re-queueing",
				zap.Int("remaining", len(queued)-i),
				zap.Error(err))
			s.mu.Lock()
			evicted := s.queue.pushFront(queued[i:])
			depth := s.queue.len()
			s.mu.Unlock()
			s.m.QueueDepth(depth)
			for n := 0; n < evicted; n++ {
				s.m.QueueEvicted()
			}
			go s.handleClose(gen, err)
			return
		}
		s.m.MessageSent(msg.Type)
	}
	if len(queued) > 0 {
		s.logger.Debug("outbound queue flushed", zap.Int("count", len(queued)))
	}
}

func (s *Session) readLoop(conn Conn, gen uint64) {
	for {
		data, err := conn.Read()
		if err != nil {
			s.handleClose(gen, err)
			return
		}
		s.dispatch(data)
	}
}

// handleClose tears down the connection of the given generation and, unless
// the closure was intentional, schedules a reconnect. Only the first caller
// for a generation proceeds.
func (s *Session) handleClose(gen uint64, cause error) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.gen++
	wasReady := s.state == StateConnected
	s.stopHeartbeatLocked()
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	intentional := s.intentional || s.state == StateClosing
	s.state = StateDisconnected
	var delay time.Duration
	if !intentional && !s.closed {
		s.attempts++
		delay = s.nextBackoffLocked()
		s.scheduleReconnectLocked(delay)
	}
	attempt := s.attempts
	listeners := s.readyListenersLocked()
	s.mu.Unlock()

	s.m.ConnState(false)
	if !intentional {
		s.logger.Warn("connection lost",
			zap.Error(cause),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", delay))
	}
	if wasReady {
		for _, l := range listeners {
			l(false)
		}
	}
}

// Disconnect closes the transport with a normal-closure code and cancels any
// pending reconnect. Idempotent; no auto-reconnect fires afterwards.
func (s *Session) Disconnect() {
	s.mu.Lock()
	s.intentional = true
	s.cancelReconnectLocked()
	if s.state == StateDisconnected {
		s.mu.Unlock()
		return
	}
	wasReady := s.state == StateConnected
	s.state = StateClosing
	s.stopHeartbeatLocked()
	conn := s.conn
	s.conn = nil
	s.gen++
	s.state = StateDisconnected
	listeners := s.readyListenersLocked()
	s.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	s.m.ConnState(false)
	s.logger.Info("disconnected by request")
	if wasReady {
		for _, l := range listeners {
			l(false)
		}
	}
}

// Close disconnects and stops the background liveness check. The session
// cannot be reused afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.Disconnect()
	close(s.done)
}

// Send transmits a message when connected. While disconnected, bufferable
// messages are queued for the next flush and ephemeral types are dropped.
// Send never fails synchronously.
func (s *Session) Send(msg *Message) {
	if msg == nil {
		return
	}
	if msg.MessageID == "" {
		msg.MessageID = uuid.NewString()
	}
	if msg.Timestamp == "" {
		msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	s.mu.Lock()
	if s.state == StateConnected && s.conn != nil {
		conn, gen := s.conn, s.gen
		s.mu.Unlock()
		s.writeMessage(conn, gen, msg)
		return
	}
	if s.isEphemeral(msg.Type) {
		s.mu.Unlock()
		s.logger.Debug("dropping ephemeral message while disconnected",
			zap.String("type", msg.Type))
		return
	}
	evicted := s.queue.push(msg)
	depth := s.queue.len()
	s.mu.Unlock()

	s.m.QueueDepth(depth)
	if evicted != nil {
		s.m.QueueEvicted()
		s.logger.Warn("outbound queue full, dropped oldest message",
			zap.String("dropped_type", evicted.Type))
	}
}

func (s *Session) writeMessage(conn Conn, gen uint64, msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("marshal outbound message", zap.String("type", msg.Type), zap.Error(err))
		return
	}
	if err := conn.Write(data); err != nil {
		s.logger.Warn("send failed", zap.String("type", msg.Type), zap.Error(err))
		if !s.isEphemeral(msg.Type) {
			s.mu.Lock()
			evicted := s.queue.push(msg)
			depth := s.queue.len()
			s.mu.Unlock()
			s.m.QueueDepth(depth)
			if evicted != nil {
				s.m.QueueEvicted()
			}
		}
		s.handleClose(gen, err)
		return
	}
	s.m.MessageSent(msg.Type)
}

func (s *Session) isEphemeral(msgType string) bool {
	_, ok := s.ephemeral[msgType]
	return ok
}

// OnMessage registers a handler for every inbound message and returns its
// disposer. Handlers are independent: removing or panicking in one does not
// affect the others.
func (s *Session) OnMessage(h Handler) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.handlers = append(s.handlers, handlerEntry{id: id, fn: h})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, e := range s.handlers {
			if e.id == id {
				s.handlers = append(s.handlers[:i], s.handlers[i+1:]...)
				return
			}
		}
	}
}

// OnReadyStateChange registers a readiness listener. The listener fires
// immediately with the current state, then on every transition.
func (s *Session) OnReadyStateChange(l func(ready bool)) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.readyListeners[id] = l
	current := s.state == StateConnected
	s.mu.Unlock()

	l(current)
	return func() {
		s.mu.Lock()
		delete(s.readyListeners, id)
		s.mu.Unlock()
	}
}

// OnComputingChange registers a listener for the backend busy flag. The
// listener fires immediately with the current value, then on every change.
func (s *Session) OnComputingChange(l func(busy bool)) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.computingListeners[id] = l
	current := s.computing
	s.mu.Unlock()

	l(current)
	return func() {
		s.mu.Lock()
		delete(s.computingListeners, id)
		s.mu.Unlock()
	}
}

// IsReady reports whether the session is connected.
func (s *Session) IsReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateConnected
}

// IsComputing reports the backend busy flag, updated solely from inbound
// status messages.
func (s *Session) IsComputing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.computing
}

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) readyListenersLocked() []func(bool) {
	out := make([]func(bool), 0, len(s.readyListeners))
	for _, l := range s.readyListeners {
		out = append(out, l)
	}
	return out
}

// nextBackoffLocked computes the delay before the next reconnect attempt.
// The counter never causes the session to give up: past the attempt cap it
// resets and the extended delay is used instead.
func (s *Session) nextBackoffLocked() time.Duration {
	if s.attempts > s.cfg.MaxReconnectAttempts {
		s.attempts = 0
		return s.cfg.ReconnectExtendedDelay
	}
	d := s.cfg.ReconnectBaseDelay << uint(s.attempts-1)
	if d <= 0 || d > s.cfg.ReconnectMaxDelay {
		d = s.cfg.ReconnectMaxDelay
	}
	return d
}

func (s *Session) scheduleReconnectLocked(delay time.Duration) {
	s.cancelReconnectLocked()
	s.m.ReconnectScheduled()
	s.reconnectTimer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		blocked := s.intentional || s.closed
		s.mu.Unlock()
		if !blocked {
			s.Connect()
		}
	})
}

func (s *Session) cancelReconnectLocked() {
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
}

func (s *Session) stopHeartbeatLocked() {
	if s.heartbeatStop != nil {
		close(s.heartbeatStop)
		s.heartbeatStop = nil
	}
}

// livenessLoop guards against silently stuck states: if the session is
// neither connected nor connecting when the check fires, and the caller has
// not asked to stay disconnected, it forces a reconnect attempt.
func (s *Session) livenessLoop() {
	ticker := time.NewTicker(s.cfg.LivenessInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			stuck := !s.closed && !s.intentional &&
				s.state != StateConnected && s.state != StateConnecting
			s.mu.Unlock()
			if stuck {
				s.logger.Warn("session not connected at liveness check, forcing reconnect")
				s.Connect()
			}
		}
	}
}
