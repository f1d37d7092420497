// Package view projects session state onto "which screen with which props".
// Everything here is a pure function of one State value: same input, same
// Screen, no side effects, so render layers can call it on every snapshot.
package view

import (
	"github.com/oblongtable/beanbag-client/internal/conn"
	"github.com/oblongtable/beanbag-client/internal/protocol"
	"github.com/oblongtable/beanbag-client/internal/session"
)

type Kind string

const (
	ScreenHome     Kind = "home"
	ScreenLobby    Kind = "lobby"
	ScreenTitle    Kind = "title"
	ScreenSection  Kind = "section"
	ScreenQuestion Kind = "question"
	ScreenResult   Kind = "result"
	ScreenGameOver Kind = "gameover"
)

// Screen is the presenter's output: a kind plus exactly one props struct.
type Screen struct {
	Kind Kind

	// Cross-cutting: the last error and the one-shot room-closed notice are
	// shown on whatever screen is current.
	Err        *session.SessionError
	RoomClosed bool
	Connecting bool

	Home     *HomeProps
	Lobby    *LobbyProps
	Title    *TitleProps
	Section  *SectionProps
	Question *QuestionProps
	Result   *ResultProps
	GameOver *GameOverProps
}

type HomeProps struct{}

type LobbyProps struct {
	RoomID   string
	RoomName string
	Capacity int
	Players  []protocol.Player
	IsHost   bool
	CanStart bool
}

type TitleProps struct {
	Title       string
	Description string
	CanAdvance  bool
}

type SectionProps struct {
	Title      string
	Index      int
	CanAdvance bool
}

// Option is one answer choice with its derived render flags.
type Option struct {
	Text     string
	Selected bool
	Correct  bool
	Disabled bool
}

type QuestionProps struct {
	Question     string
	Options      []Option
	TimeLimitSec int
	Answered     bool
}

type ResultProps struct {
	Question    string
	Options     []Option
	Explanation string
	Leaderboard []protocol.LeaderboardEntry
	CanAdvance  bool
}

type GameOverProps struct {
	Leaderboard []protocol.LeaderboardEntry
	CanLeave    bool
}

// Select maps session state to the screen descriptor the renderer should
// show. Deterministic and side-effect-free.
func Select(s session.State) Screen {
	screen := Screen{
		Err:        s.Err,
		RoomClosed: s.RoomClosed,
		Connecting: s.Conn == conn.StateConnecting || s.AwaitingRoom,
	}

	if s.Room == nil {
		screen.Kind = ScreenHome
		screen.Home = &HomeProps{}
		return screen
	}

	isHost := s.Room.IsHost

	switch p := s.Phase.(type) {
	case session.LobbyPhase:
		screen.Kind = ScreenLobby
		screen.Lobby = &LobbyProps{
			RoomID:   s.Room.ID,
			RoomName: s.Room.Name,
			Capacity: s.Room.Capacity,
			Players:  s.Room.Players,
			IsHost:   isHost,
			CanStart: isHost,
		}

	case session.TitlePhase:
		screen.Kind = ScreenTitle
		screen.Title = &TitleProps{
			Title:       p.Title,
			Description: p.Description,
			CanAdvance:  isHost,
		}

	case session.SectionPhase:
		screen.Kind = ScreenSection
		screen.Section = &SectionProps{
			Title:      p.Title,
			Index:      p.Index,
			CanAdvance: isHost,
		}

	case session.QuestionPhase:
		screen.Kind = ScreenQuestion
		screen.Question = &QuestionProps{
			Question:     p.Question,
			Options:      questionOptions(p, s.SelectedAnswer, s.AnswerSubmitted),
			TimeLimitSec: p.TimeLimitSec,
			Answered:     s.AnswerSubmitted,
		}

	case session.ResultPhase:
		screen.Kind = ScreenResult
		screen.Result = &ResultProps{
			Question:    p.Question.Question,
			Options:     resultOptions(p, s.SelectedAnswer),
			Explanation: p.Explanation,
			Leaderboard: p.Leaderboard,
			CanAdvance:  isHost,
		}

	case session.GameOverPhase:
		screen.Kind = ScreenGameOver
		screen.GameOver = &GameOverProps{
			Leaderboard: p.Leaderboard,
			CanLeave:    true,
		}
	}

	return screen
}

func questionOptions(q session.QuestionPhase, selected int, answered bool) []Option {
	opts := make([]Option, len(q.Options))
	for i, text := range q.Options {
		opts[i] = Option{
			Text:     text,
			Selected: i == selected,
			// Once an answer is recorded every option locks.
			Disabled: answered,
		}
	}
	return opts
}

func resultOptions(r session.ResultPhase, selected int) []Option {
	opts := make([]Option, len(r.Question.Options))
	for i, text := range r.Question.Options {
		opts[i] = Option{
			Text:     text,
			Selected: i == selected,
			Correct:  i == r.CorrectOptionIndex,
			Disabled: true,
		}
	}
	return opts
}
