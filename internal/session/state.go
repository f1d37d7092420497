package session

import (
	"slices"

	"github.com/oblongtable/beanbag-client/internal/conn"
	"github.com/oblongtable/beanbag-client/internal/protocol"
)

type ErrorKind string

const (
	ErrorConnection ErrorKind = "connection"
	ErrorProtocol   ErrorKind = "protocol"
	ErrorRoom       ErrorKind = "room"
	ErrorGuard      ErrorKind = "guard"
)

// SessionError is the single "last error" slot. Never queued: a new error
// overwrites the previous one, and any successful transition clears it.
type SessionError struct {
	Kind    ErrorKind
	Message string
}

// Phase is the tagged variant for the most recent authoritative game-state
// push. Exactly one variant is current; the client never fabricates a phase
// change on its own except resetting to the lobby on disconnect.
type Phase interface{ isPhase() }

type LobbyPhase struct{}

type TitlePhase struct {
	Title       string
	Description string
}

type SectionPhase struct {
	Title string
	Index int
}

type QuestionPhase struct {
	Question     string
	Options      []string
	TimeLimitSec int
}

// ResultPhase keeps the question it resolves so the result screen derives
// entirely from this one variant instead of a separately tracked
// "previous question" that could drift out of sync.
type ResultPhase struct {
	Question           QuestionPhase
	CorrectOptionIndex int
	Explanation        string
	Leaderboard        []protocol.LeaderboardEntry
}

type GameOverPhase struct {
	Leaderboard []protocol.LeaderboardEntry
}

func (LobbyPhase) isPhase()    {}
func (TitlePhase) isPhase()    {}
func (SectionPhase) isPhase()  {}
func (QuestionPhase) isPhase() {}
func (ResultPhase) isPhase()   {}
func (GameOverPhase) isPhase() {}

// State is the session's single source of truth. Watchers receive clones;
// only the session loop mutates the live copy.
type State struct {
	Conn        conn.State
	Room        *protocol.RoomDetails
	Phase       Phase
	LocalUserID string
	Err         *SessionError

	// AwaitingRoom is true between sending (or queueing) a create/join
	// intent and the server's confirmation or rejection.
	AwaitingRoom bool

	// SelectedAnswer is the locally recorded option index for the current
	// question, -1 when none. AnswerSubmitted latches once a submit_answer
	// has gone out so a question is never answered twice.
	SelectedAnswer  int
	AnswerSubmitted bool

	// RoomClosed is the one-shot "room was shut down" notice.
	RoomClosed bool
}

func newState() State {
	return State{
		Conn:           conn.StateDisconnected,
		Phase:          LobbyPhase{},
		SelectedAnswer: -1,
	}
}

// effect is a side effect requested by a transition; the session loop runs
// them after the state swap. The transition function itself stays pure.
type effect interface{ isEffect() }

type effectDisconnect struct {
	Code   int
	Reason string
}

type effectScheduleShutdown struct{}

func (effectDisconnect) isEffect()       {}
func (effectScheduleShutdown) isEffect() {}

// apply folds one inbound server event into the state. Events are applied
// strictly in receipt order; each payload is authoritative and total, so last
// write wins. Events that fail their precondition are ignored rather than
// erroring: the server is authoritative and a stray push must not wedge the
// client.
func apply(s State, ev protocol.Event) (State, []effect) {
	switch e := ev.(type) {
	case protocol.RoomCreated:
		return confirmRoom(s, e.Room, e.UserID)

	case protocol.RoomJoined:
		return confirmRoom(s, e.Room, e.UserID)

	case protocol.RoomOpFailed:
		if !s.AwaitingRoom {
			return s, nil
		}
		s.AwaitingRoom = false
		s.Err = &SessionError{Kind: ErrorRoom, Message: e.Reason}
		// No room was ever established; drop the connection too.
		return s, []effect{effectDisconnect{Code: conn.CodeNormalClosure, Reason: "room " + e.Op + " failed"}}

	case protocol.RoomStatusUpdate:
		if s.Room == nil {
			return s, nil
		}
		room := *s.Room
		room.Players = e.Players
		if e.HasHostFlag {
			room.IsHost = e.IsHost
		} else {
			room.IsHost = e.HostID != "" && e.HostID == s.LocalUserID
		}
		s.Room = &room
		s.Err = nil
		return s, nil

	case protocol.RoomShutdown:
		if s.Room == nil {
			return s, nil
		}
		s.RoomClosed = true
		return s, []effect{effectScheduleShutdown{}}

	case protocol.ShowTitle:
		return setPhase(s, TitlePhase{Title: e.Title, Description: e.Description}), nil

	case protocol.ShowSection:
		return setPhase(s, SectionPhase{Title: e.Title, Index: e.Index}), nil

	case protocol.NewQuestion:
		s = setPhase(s, QuestionPhase{
			Question:     e.Question,
			Options:      e.Options,
			TimeLimitSec: e.TimeLimitSec,
		})
		// Fresh round: any previous selection or result is gone.
		s.SelectedAnswer = -1
		s.AnswerSubmitted = false
		return s, nil

	case protocol.QuestionResult:
		q, _ := s.Phase.(QuestionPhase)
		return setPhase(s, ResultPhase{
			Question:           q,
			CorrectOptionIndex: e.CorrectOptionIndex,
			Explanation:        e.Explanation,
			Leaderboard:        e.Leaderboard,
		}), nil

	case protocol.GameOver:
		return setPhase(s, GameOverPhase{Leaderboard: e.Leaderboard}), nil

	default:
		// Unknown events are dropped for forward compatibility.
		return s, nil
	}
}

func confirmRoom(s State, room protocol.RoomDetails, userID string) (State, []effect) {
	if !s.AwaitingRoom {
		return s, nil
	}
	s.AwaitingRoom = false
	s.Room = &room
	s.LocalUserID = userID
	s.Phase = LobbyPhase{}
	s.Err = nil
	s.RoomClosed = false
	s.SelectedAnswer = -1
	s.AnswerSubmitted = false
	return s, nil
}

func setPhase(s State, p Phase) State {
	if s.Room == nil {
		return s
	}
	s.Phase = p
	s.Err = nil
	return s
}

// cleared resets everything derived from a live connection. The error slot
// and the room-closed notice survive so the entry screen can still explain
// what happened.
func cleared(s State) State {
	s.Room = nil
	s.LocalUserID = ""
	s.Phase = LobbyPhase{}
	s.AwaitingRoom = false
	s.SelectedAnswer = -1
	s.AnswerSubmitted = false
	return s
}

// clone deep-copies the pieces a watcher could otherwise alias.
func (s State) clone() State {
	out := s
	if s.Room != nil {
		room := *s.Room
		room.Players = slices.Clone(s.Room.Players)
		out.Room = &room
	}
	if s.Err != nil {
		e := *s.Err
		out.Err = &e
	}
	switch p := s.Phase.(type) {
	case QuestionPhase:
		p.Options = slices.Clone(p.Options)
		out.Phase = p
	case ResultPhase:
		p.Question.Options = slices.Clone(p.Question.Options)
		p.Leaderboard = slices.Clone(p.Leaderboard)
		out.Phase = p
	case GameOverPhase:
		p.Leaderboard = slices.Clone(p.Leaderboard)
		out.Phase = p
	}
	return out
}
