package view

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oblongtable/beanbag-client/internal/conn"
	"github.com/oblongtable/beanbag-client/internal/protocol"
	"github.com/oblongtable/beanbag-client/internal/session"
)

func baseState(isHost bool) session.State {
	return session.State{
		Conn: conn.StateOpen,
		Room: &protocol.RoomDetails{
			ID:       "AB12",
			Name:     "My Lobby",
			Capacity: 8,
			Players: []protocol.Player{
				{ID: "u1", Name: "Alice", Role: protocol.RoleCreator},
				{ID: "u2", Name: "Bob", Role: protocol.RoleGuest},
			},
			IsHost: isHost,
		},
		Phase:          session.LobbyPhase{},
		LocalUserID:    "u1",
		SelectedAnswer: -1,
	}
}

func TestNoRoomMeansHomeScreen(t *testing.T) {
	s := session.State{Conn: conn.StateDisconnected, Phase: session.LobbyPhase{}, SelectedAnswer: -1}

	screen := Select(s)

	assert.Equal(t, ScreenHome, screen.Kind)
	require.NotNil(t, screen.Home)
	assert.False(t, screen.Connecting)
}

func TestConnectingFlagWhileAwaiting(t *testing.T) {
	s := session.State{
		Conn:           conn.StateConnecting,
		Phase:          session.LobbyPhase{},
		AwaitingRoom:   true,
		SelectedAnswer: -1,
	}

	screen := Select(s)

	assert.Equal(t, ScreenHome, screen.Kind)
	assert.True(t, screen.Connecting)
}

func TestLobbyScreenGatesHostControls(t *testing.T) {
	host := Select(baseState(true))
	require.Equal(t, ScreenLobby, host.Kind)
	assert.True(t, host.Lobby.CanStart)
	assert.Equal(t, "AB12", host.Lobby.RoomID)
	assert.Len(t, host.Lobby.Players, 2)

	guest := Select(baseState(false))
	assert.False(t, guest.Lobby.CanStart)
}

func TestTitleAndSectionScreens(t *testing.T) {
	s := baseState(true)
	s.Phase = session.TitlePhase{Title: "Quiz Night", Description: "warm up"}

	screen := Select(s)
	require.Equal(t, ScreenTitle, screen.Kind)
	assert.Equal(t, "Quiz Night", screen.Title.Title)
	assert.True(t, screen.Title.CanAdvance)

	s.Phase = session.SectionPhase{Title: "History", Index: 2}
	s.Room.IsHost = false
	screen = Select(s)
	require.Equal(t, ScreenSection, screen.Kind)
	assert.Equal(t, 2, screen.Section.Index)
	assert.False(t, screen.Section.CanAdvance, "guests get no advance affordance")
}

func TestQuestionScreenOptionStates(t *testing.T) {
	s := baseState(false)
	s.Phase = session.QuestionPhase{
		Question:     "2+2?",
		Options:      []string{"3", "4", "5"},
		TimeLimitSec: 15,
	}

	// Before answering: everything enabled, nothing selected.
	screen := Select(s)
	require.Equal(t, ScreenQuestion, screen.Kind)
	require.Len(t, screen.Question.Options, 3)
	for _, opt := range screen.Question.Options {
		assert.False(t, opt.Disabled)
		assert.False(t, opt.Selected)
	}
	assert.False(t, screen.Question.Answered)
	assert.Equal(t, 15, screen.Question.TimeLimitSec)

	// After answering: the chosen option is marked and all options lock.
	s.SelectedAnswer = 1
	s.AnswerSubmitted = true
	screen = Select(s)
	assert.True(t, screen.Question.Answered)
	for i, opt := range screen.Question.Options {
		assert.True(t, opt.Disabled, "option %d must lock after answering", i)
		assert.Equal(t, i == 1, opt.Selected)
	}
}

func TestResultScreenHighlightsCorrectness(t *testing.T) {
	s := baseState(true)
	s.Phase = session.ResultPhase{
		Question:           session.QuestionPhase{Question: "2+2?", Options: []string{"3", "4", "5"}},
		CorrectOptionIndex: 1,
		Explanation:        "arithmetic",
		Leaderboard:        []protocol.LeaderboardEntry{{ID: "u1", Name: "Alice", Score: 1000}},
	}
	s.SelectedAnswer = 2
	s.AnswerSubmitted = true

	screen := Select(s)
	require.Equal(t, ScreenResult, screen.Kind)
	assert.Equal(t, "2+2?", screen.Result.Question)
	assert.Equal(t, "arithmetic", screen.Result.Explanation)
	assert.True(t, screen.Result.CanAdvance)
	require.Len(t, screen.Result.Options, 3)

	for i, opt := range screen.Result.Options {
		assert.Equal(t, i == 1, opt.Correct, "only index 1 is correct")
		assert.Equal(t, i == 2, opt.Selected, "the local pick stays visible")
		assert.True(t, opt.Disabled)
	}
	require.Len(t, screen.Result.Leaderboard, 1)
}

func TestGameOverScreen(t *testing.T) {
	s := baseState(false)
	s.Phase = session.GameOverPhase{
		Leaderboard: []protocol.LeaderboardEntry{
			{ID: "u2", Name: "Bob", Score: 3000},
			{ID: "u1", Name: "Alice", Score: 1000},
		},
	}

	screen := Select(s)
	require.Equal(t, ScreenGameOver, screen.Kind)
	assert.True(t, screen.GameOver.CanLeave)
	assert.Len(t, screen.GameOver.Leaderboard, 2)
}

func TestErrorAndNoticePassThrough(t *testing.T) {
	s := session.State{
		Conn:           conn.StateDisconnected,
		Phase:          session.LobbyPhase{},
		SelectedAnswer: -1,
		Err:            &session.SessionError{Kind: session.ErrorRoom, Message: "room full"},
		RoomClosed:     true,
	}

	screen := Select(s)
	require.NotNil(t, screen.Err)
	assert.Equal(t, "room full", screen.Err.Message)
	assert.True(t, screen.RoomClosed)
}

func TestSelectIsDeterministic(t *testing.T) {
	s := baseState(true)
	s.Phase = session.QuestionPhase{Question: "2+2?", Options: []string{"3", "4"}}

	assert.Equal(t, Select(s), Select(s))
}
