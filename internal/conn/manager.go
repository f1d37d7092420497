package conn

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrNotConnected = errors.New("not connected")

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateOpen         State = "open"
	StateClosing      State = "closing"
)

// Event is a connection lifecycle notification. Every event carries the
// generation of the connection that produced it; consumers must drop events
// whose generation is no longer Manager.Generation() — that is how messages
// from a connection torn down by Disconnect are ignored.
type Event interface {
	isConnEvent()
	Generation() int
}

type Opened struct{ Gen int }

type MessageReceived struct {
	Gen  int
	Data []byte
}

type Closed struct {
	Gen    int
	Code   int
	Reason string
	Clean  bool
}

type Failed struct {
	Gen int
	Err error
}

func (Opened) isConnEvent()          {}
func (MessageReceived) isConnEvent() {}
func (Closed) isConnEvent()          {}
func (Failed) isConnEvent()          {}

func (e Opened) Generation() int          { return e.Gen }
func (e MessageReceived) Generation() int { return e.Gen }
func (e Closed) Generation() int          { return e.Gen }
func (e Failed) Generation() int          { return e.Gen }

// Manager owns the client's single persistent socket. At most one connection
// is live at a time: Connect while connecting/open is a no-op returning the
// existing generation. Dialing and reading happen on their own goroutines;
// everything observable is raised on the events channel.
//
// No automatic reconnection. A dropped transport stays dropped until the
// caller connects again.
type Manager struct {
	dial         Dialer
	events       chan<- Event
	log          *zap.Logger
	dialTimeout  time.Duration
	writeTimeout time.Duration

	mu     sync.Mutex
	state  State
	tr     Transport
	gen    int
	cancel context.CancelFunc
}

func NewManager(dial Dialer, events chan<- Event, log *zap.Logger, dialTimeout, writeTimeout time.Duration) *Manager {
	return &Manager{
		dial:         dial,
		events:       events,
		log:          log,
		dialTimeout:  dialTimeout,
		writeTimeout: writeTimeout,
		state:        StateDisconnected,
	}
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) Generation() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen
}

// Connect opens a transport to endpoint and returns the generation of the
// live connection. Idempotent: if a connection is already connecting or open
// the existing generation is returned and no second transport is dialed.
func (m *Manager) Connect(endpoint string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateConnecting || m.state == StateOpen {
		return m.gen
	}

	m.gen++
	gen := m.gen
	m.state = StateConnecting
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	go m.run(ctx, gen, endpoint)
	return gen
}

// Send transmits bytes on the open connection. Fails with ErrNotConnected
// unless the state is open. Encoding is the codec's job; bytes go out
// verbatim.
func (m *Manager) Send(data []byte) error {
	m.mu.Lock()
	if m.state != StateOpen || m.tr == nil {
		m.mu.Unlock()
		return ErrNotConnected
	}
	tr := m.tr
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.writeTimeout)
	defer cancel()
	return tr.Write(ctx, data)
}

// Disconnect tears down the connection with the given close code. Safe to
// call in any state, including already disconnected. On return the manager is
// Disconnected and the previous generation is dead: in-flight events from it
// will fail the generation check and be dropped.
func (m *Manager) Disconnect(code int, reason string) {
	m.mu.Lock()
	if m.state == StateDisconnected {
		m.mu.Unlock()
		return
	}
	m.state = StateClosing
	tr := m.tr
	cancel := m.cancel
	m.tr = nil
	m.cancel = nil
	m.gen++
	m.state = StateDisconnected
	m.mu.Unlock()

	if tr != nil {
		if err := tr.Close(code, reason); err != nil {
			m.log.Debug("transport close", zap.Error(err))
		}
	}
	if cancel != nil {
		cancel()
	}
}

// run dials, announces the open transition, then pumps inbound messages until
// the transport dies. Owns no manager state except under the mutex.
func (m *Manager) run(ctx context.Context, gen int, endpoint string) {
	dialCtx, cancel := context.WithTimeout(ctx, m.dialTimeout)
	tr, err := m.dial(dialCtx, endpoint)
	cancel()

	m.mu.Lock()
	if gen != m.gen || m.state != StateConnecting {
		// Disconnected while dialing; discard whatever we got.
		m.mu.Unlock()
		if tr != nil {
			_ = tr.Close(CodeNormalClosure, "superseded")
		}
		return
	}
	if err != nil {
		m.state = StateDisconnected
		m.cancel = nil
		m.mu.Unlock()
		m.log.Warn("dial failed", zap.String("endpoint", endpoint), zap.Error(err))
		m.events <- Failed{Gen: gen, Err: err}
		return
	}
	m.tr = tr
	m.state = StateOpen
	m.mu.Unlock()

	m.events <- Opened{Gen: gen}

	for {
		data, err := tr.Read(ctx)
		if err != nil {
			code := closeStatus(err)
			clean := code == CodeNormalClosure

			m.mu.Lock()
			if gen == m.gen {
				m.state = StateDisconnected
				m.tr = nil
				m.cancel = nil
			}
			m.mu.Unlock()

			if !clean {
				m.log.Warn("connection lost", zap.Int("code", code), zap.Error(err))
			}
			m.events <- Closed{Gen: gen, Code: code, Reason: err.Error(), Clean: clean}
			return
		}
		m.events <- MessageReceived{Gen: gen, Data: data}
	}
}
