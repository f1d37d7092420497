package session

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/oblongtable/beanbag-client/internal/conn"
	"github.com/oblongtable/beanbag-client/internal/protocol"
)

const (
	defaultDialTimeout   = 10 * time.Second
	defaultWriteTimeout  = 3 * time.Second
	defaultShutdownGrace = 3 * time.Second
)

type Msg interface{ isSessionMsg() }

type cmdCreateRoom struct {
	Name        string
	Size        int
	DisplayName string
}

type cmdJoinRoom struct {
	Code        string
	DisplayName string
}

type cmdLeaveRoom struct{}

type cmdStartQuiz struct{}

type cmdAdvance struct{}

type cmdSelectAnswer struct{ Index int }

type cmdDismissError struct{}

type cmdDisconnect struct{ Reason string }

// Attach registers a watcher. The current snapshot is delivered immediately,
// then every state change after it.
type Attach struct {
	ID     string
	Outbox chan Snapshot
}

// Detach removes a watcher.
type Detach struct{ ID string }

type getState struct{ Reply chan Snapshot }

type shutdownTimerFired struct{ Gen int }

func (cmdCreateRoom) isSessionMsg()      {}
func (cmdJoinRoom) isSessionMsg()        {}
func (cmdLeaveRoom) isSessionMsg()       {}
func (cmdStartQuiz) isSessionMsg()       {}
func (cmdAdvance) isSessionMsg()         {}
func (cmdSelectAnswer) isSessionMsg()    {}
func (cmdDismissError) isSessionMsg()    {}
func (cmdDisconnect) isSessionMsg()      {}
func (Attach) isSessionMsg()             {}
func (Detach) isSessionMsg()             {}
func (getState) isSessionMsg()           {}
func (shutdownTimerFired) isSessionMsg() {}

// Snapshot is a read-only copy of the session state handed to watchers.
type Snapshot struct {
	Version int
	State   State
}

// Config wires a Session. Zero values get sensible defaults except Endpoint,
// which the caller must provide.
type Config struct {
	Endpoint      string
	Dialer        conn.Dialer
	Logger        *zap.Logger
	DialTimeout   time.Duration
	WriteTimeout  time.Duration
	ShutdownGrace time.Duration
}

// Session owns the connection and the state machine. One goroutine consumes
// the inbox and the connection events; nothing else mutates the state, so
// no locks guard it. External collaborators see snapshots and dispatchers
// only.
type Session struct {
	inbox      chan Msg
	connEvents chan conn.Event
	cm         *conn.Manager
	endpoint   string
	grace      time.Duration
	log        *zap.Logger

	state    State
	version  int
	watchers map[string]chan Snapshot

	// pending is the single buffered on-open action: the create/join intent
	// that triggered the dial, flushed exactly once when the socket opens.
	pending protocol.Intent

	// shutdownGen invalidates grace timers armed for rooms we already left.
	shutdownGen int

	ctx    context.Context
	cancel context.CancelFunc
}

func New(parent context.Context, cfg Config) *Session {
	if cfg.Dialer == nil {
		cfg.Dialer = conn.DialWebsocket
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.ShutdownGrace == 0 {
		cfg.ShutdownGrace = defaultShutdownGrace
	}

	ctx, cancel := context.WithCancel(parent)
	connEvents := make(chan conn.Event, 64)
	s := &Session{
		inbox:      make(chan Msg, 64),
		connEvents: connEvents,
		cm:         conn.NewManager(cfg.Dialer, connEvents, cfg.Logger, cfg.DialTimeout, cfg.WriteTimeout),
		endpoint:   cfg.Endpoint,
		grace:      cfg.ShutdownGrace,
		log:        cfg.Logger,
		state:      newState(),
		watchers:   make(map[string]chan Snapshot),
		ctx:        ctx,
		cancel:     cancel,
	}
	go s.loop()
	return s
}

// Inbox exposes the message channel for watcher registration and tests.
func (s *Session) Inbox() chan<- Msg { return s.inbox }

// Dispatchers. Each posts a message; all state changes happen on the loop.

// CreateRoom opens the connection and, once open, asks the server for a new
// room. Rejected with a guard error if a connection already exists.
func (s *Session) CreateRoom(name string, size int, displayName string) {
	s.inbox <- cmdCreateRoom{Name: name, Size: size, DisplayName: displayName}
}

// JoinRoom opens the connection and, once open, joins the room with the
// given code. Same guard as CreateRoom.
func (s *Session) JoinRoom(code, displayName string) {
	s.inbox <- cmdJoinRoom{Code: code, DisplayName: displayName}
}

// LeaveRoom sends a best-effort leave_room then drops the connection.
func (s *Session) LeaveRoom() { s.inbox <- cmdLeaveRoom{} }

// StartQuiz asks the server to begin the quiz. Host only.
func (s *Session) StartQuiz() { s.inbox <- cmdStartQuiz{} }

// AdvanceQuiz moves the quiz to the next title/section/question. Host only.
func (s *Session) AdvanceQuiz() { s.inbox <- cmdAdvance{} }

// SelectAnswer records the chosen option and submits it. At most one
// submission per question; later calls during the same question are ignored.
func (s *Session) SelectAnswer(index int) { s.inbox <- cmdSelectAnswer{Index: index} }

// DismissError clears the last error and the room-closed notice.
func (s *Session) DismissError() { s.inbox <- cmdDismissError{} }

// Disconnect drops the connection and clears all room state.
func (s *Session) Disconnect(reason string) { s.inbox <- cmdDisconnect{Reason: reason} }

// CurrentState returns a snapshot of the live state.
func (s *Session) CurrentState() Snapshot {
	reply := make(chan Snapshot, 1)
	s.inbox <- getState{Reply: reply}
	return <-reply
}

// RoomActive is the predicate navigation guards consult before letting the
// user leave an active room. The confirmation UI itself lives outside the
// core.
func (s *Session) RoomActive() bool {
	snap := s.CurrentState()
	return snap.State.Room != nil
}

// Stop tears the session down: connection closed, watcher channels closed.
func (s *Session) Stop() { s.cancel() }

func (s *Session) loop() {
	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case ev := <-s.connEvents:
			s.handleConnEvent(ev)

		case m := <-s.inbox:
			switch msg := m.(type) {
			case cmdCreateRoom:
				s.startRoomFlow(protocol.CreateRoom{
					RoomName: msg.Name,
					RoomSize: msg.Size,
					Username: msg.DisplayName,
				})
			case cmdJoinRoom:
				s.startRoomFlow(protocol.JoinRoom{
					RoomID: msg.Code,
					Name:   msg.DisplayName,
				})
			case cmdLeaveRoom:
				s.leaveRoom("leaving room")
			case cmdStartQuiz:
				s.hostIntent(func(room *protocol.RoomDetails) protocol.Intent {
					return protocol.StartQuiz{RoomID: room.ID}
				})
			case cmdAdvance:
				s.hostIntent(func(*protocol.RoomDetails) protocol.Intent {
					return protocol.QuizForward{}
				})
			case cmdSelectAnswer:
				s.selectAnswer(msg.Index)
			case cmdDismissError:
				s.state.Err = nil
				s.state.RoomClosed = false
				s.publish()
			case cmdDisconnect:
				s.dropConnection(conn.CodeNormalClosure, msg.Reason)
			case shutdownTimerFired:
				if msg.Gen != s.shutdownGen {
					break // stale timer from a room already left
				}
				s.dropConnection(conn.CodeNormalClosure, "room closed")
			case Attach:
				s.watchers[msg.ID] = msg.Outbox
				msg.Outbox <- Snapshot{Version: s.version, State: s.state.clone()}
			case Detach:
				delete(s.watchers, msg.ID)
			case getState:
				msg.Reply <- Snapshot{Version: s.version, State: s.state.clone()}
			}
		}
	}
}

func (s *Session) handleConnEvent(ev conn.Event) {
	if ev.Generation() != s.cm.Generation() {
		// A connection we already tore down; its messages no longer count.
		s.log.Debug("dropping stale connection event", zap.Int("gen", ev.Generation()))
		return
	}

	switch e := ev.(type) {
	case conn.Opened:
		s.state.Conn = conn.StateOpen
		if s.pending != nil {
			intent := s.pending
			s.pending = nil
			if err := s.cm.Send(protocol.Encode(intent)); err != nil {
				// The socket is useless without its opening intent; keeping it
				// open would guard-reject every later create/join.
				s.state.Err = &SessionError{Kind: ErrorConnection, Message: err.Error()}
				s.runEffect(effectDisconnect{Code: conn.CodeNormalClosure, Reason: "send failed"})
				s.state = cleared(s.state)
			}
		}
		s.publish()

	case conn.MessageReceived:
		pev, err := protocol.Decode(e.Data)
		if err != nil {
			s.log.Warn("undecodable server message", zap.Error(err))
			s.state.Err = &SessionError{Kind: ErrorProtocol, Message: err.Error()}
			s.publish()
			return
		}
		if u, ok := pev.(protocol.Unknown); ok {
			s.log.Debug("ignoring unknown server message", zap.String("type", u.Type))
			return
		}
		next, effects := apply(s.state, pev)
		s.state = next
		for _, ef := range effects {
			s.runEffect(ef)
		}
		s.publish()

	case conn.Closed:
		s.shutdownGen++ // the connection is gone; so is any armed grace timer
		s.state.Conn = conn.StateDisconnected
		s.state = cleared(s.state)
		s.pending = nil
		if !e.Clean {
			s.state.Err = &SessionError{
				Kind:    ErrorConnection,
				Message: fmt.Sprintf("connection lost (code %d): %s", e.Code, e.Reason),
			}
		}
		s.publish()

	case conn.Failed:
		s.shutdownGen++
		s.state.Conn = conn.StateDisconnected
		s.state = cleared(s.state)
		s.pending = nil
		s.state.Err = &SessionError{Kind: ErrorConnection, Message: e.Err.Error()}
		s.publish()
	}
}

func (s *Session) runEffect(ef effect) {
	switch e := ef.(type) {
	case effectDisconnect:
		s.cm.Disconnect(e.Code, e.Reason)
		s.state.Conn = conn.StateDisconnected
		s.pending = nil
	case effectScheduleShutdown:
		s.shutdownGen++
		gen := s.shutdownGen
		time.AfterFunc(s.grace, func() {
			select {
			case s.inbox <- shutdownTimerFired{Gen: gen}:
			case <-s.ctx.Done():
			}
		})
	}
}

// startRoomFlow is the create/join path: exactly one connection, with the
// intent buffered until the open transition flushes it.
func (s *Session) startRoomFlow(intent protocol.Intent) {
	if s.cm.State() != conn.StateDisconnected {
		s.state.Err = &SessionError{
			Kind:    ErrorGuard,
			Message: "already connected: leave the current room first",
		}
		s.publish()
		return
	}
	s.shutdownGen++ // a grace timer from a previous room must not touch this flow
	s.state.Err = nil
	s.state.RoomClosed = false
	s.state.AwaitingRoom = true
	s.pending = intent
	s.cm.Connect(s.endpoint)
	s.state.Conn = conn.StateConnecting
	s.publish()
}

func (s *Session) leaveRoom(reason string) {
	if s.cm.State() == conn.StateOpen {
		// Fire and forget; the disconnect right after is the real goodbye.
		if err := s.cm.Send(protocol.Encode(protocol.LeaveRoom{})); err != nil {
			s.log.Debug("leave_room send failed", zap.Error(err))
		}
	}
	s.dropConnection(conn.CodeNormalClosure, reason)
}

func (s *Session) dropConnection(code int, reason string) {
	s.shutdownGen++ // cancel any armed grace timer
	s.cm.Disconnect(code, reason)
	s.state.Conn = conn.StateDisconnected
	s.state = cleared(s.state)
	s.pending = nil
	s.publish()
}

func (s *Session) hostIntent(build func(*protocol.RoomDetails) protocol.Intent) {
	if s.state.Room == nil || !s.state.Room.IsHost {
		s.state.Err = &SessionError{
			Kind:    ErrorGuard,
			Message: "only the host can drive the quiz",
		}
		s.publish()
		return
	}
	if err := s.cm.Send(protocol.Encode(build(s.state.Room))); err != nil {
		s.state.Err = &SessionError{Kind: ErrorConnection, Message: err.Error()}
	}
	s.publish()
}

func (s *Session) selectAnswer(index int) {
	q, ok := s.state.Phase.(QuestionPhase)
	if !ok || s.state.AnswerSubmitted {
		// Result already in, or a second tap on the same question.
		s.log.Debug("answer selection ignored", zap.Int("index", index))
		return
	}
	if index < 0 || index >= len(q.Options) {
		s.state.Err = &SessionError{Kind: ErrorGuard, Message: "answer index out of range"}
		s.publish()
		return
	}
	s.state.SelectedAnswer = index
	s.state.AnswerSubmitted = true
	if err := s.cm.Send(protocol.Encode(protocol.SubmitAnswer{AnswerIndex: index})); err != nil {
		s.state.Err = &SessionError{Kind: ErrorConnection, Message: err.Error()}
	}
	s.publish()
}

func (s *Session) publish() {
	s.version++
	snap := Snapshot{Version: s.version, State: s.state.clone()}
	for id, ch := range s.watchers {
		select {
		case ch <- snap:
		default:
			// Watcher is slow/full - drop them.
			close(ch)
			delete(s.watchers, id)
		}
	}
}

func (s *Session) shutdown() {
	s.cm.Disconnect(conn.CodeNormalClosure, "session stopped")
	for id, ch := range s.watchers {
		close(ch)
		delete(s.watchers, id)
	}
	s.cancel()
}
