package devserver

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/oblongtable/beanbag-client/internal/session"
)

// End-to-end: real sessions against a real websocket server, through the
// whole protocol surface.

func startServer(t *testing.T) string {
	t.Helper()
	srv := New(zap.NewNop(), DefaultQuiz())
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func newClient(t *testing.T, endpoint string) *session.Session {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	s := session.New(ctx, session.Config{
		Endpoint:      endpoint,
		Logger:        zap.NewNop(),
		ShutdownGrace: 100 * time.Millisecond,
	})
	t.Cleanup(s.Stop)
	return s
}

// pollState spins until the session state satisfies pred.
func pollState(t *testing.T, s *session.Session, within time.Duration, desc string, pred func(session.State) bool) session.State {
	t.Helper()
	deadline := time.Now().Add(within)
	for {
		st := s.CurrentState().State
		if pred(st) {
			return st
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s; state %+v", desc, st)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestCreateJoinAndRoster(t *testing.T) {
	endpoint := startServer(t)

	host := newClient(t, endpoint)
	host.CreateRoom("Quiz Night", 8, "Alice")
	hostState := pollState(t, host, 5*time.Second, "host in room", func(st session.State) bool {
		return st.Room != nil
	})
	if !hostState.Room.IsHost {
		t.Fatalf("creator must be host")
	}
	if len(hostState.Room.ID) != 4 {
		t.Fatalf("room codes are 4 characters, got %q", hostState.Room.ID)
	}

	guest := newClient(t, endpoint)
	guest.JoinRoom(hostState.Room.ID, "Bob")
	guestState := pollState(t, guest, 5*time.Second, "guest in room", func(st session.State) bool {
		return st.Room != nil
	})
	if guestState.Room.IsHost {
		t.Fatalf("guest must not be host")
	}

	// Both rosters converge on two players.
	pollState(t, host, 5*time.Second, "host sees both players", func(st session.State) bool {
		return st.Room != nil && len(st.Room.Players) == 2
	})
	pollState(t, guest, 5*time.Second, "guest sees both players", func(st session.State) bool {
		return st.Room != nil && len(st.Room.Players) == 2
	})
}

func TestJoinUnknownRoomFails(t *testing.T) {
	endpoint := startServer(t)

	s := newClient(t, endpoint)
	s.JoinRoom("XXXX", "Bob")

	st := pollState(t, s, 5*time.Second, "join rejection", func(st session.State) bool {
		return st.Err != nil
	})
	if st.Err.Kind != session.ErrorRoom {
		t.Fatalf("want room error, got %+v", st.Err)
	}
	if !strings.Contains(st.Err.Message, "room not found") {
		t.Fatalf("want server reason, got %q", st.Err.Message)
	}
	if st.Room != nil {
		t.Fatalf("no room on rejection")
	}
}

func TestRejectionAlwaysReachesTheClient(t *testing.T) {
	endpoint := startServer(t)

	// The failure envelope must win the race against the connection close,
	// every time.
	for i := 0; i < 5; i++ {
		s := newClient(t, endpoint)
		s.JoinRoom("ZZZZ", "Bob")
		st := pollState(t, s, 5*time.Second, "join rejection", func(st session.State) bool {
			return st.Err != nil
		})
		if !strings.Contains(st.Err.Message, "room not found") {
			t.Fatalf("attempt %d: want server reason, got %+v", i+1, st.Err)
		}
		s.Stop()
	}
}

func TestRoomFullRejection(t *testing.T) {
	endpoint := startServer(t)

	host := newClient(t, endpoint)
	host.CreateRoom("Tiny", 1, "Alice")
	hostState := pollState(t, host, 5*time.Second, "host in room", func(st session.State) bool {
		return st.Room != nil
	})

	late := newClient(t, endpoint)
	late.JoinRoom(hostState.Room.ID, "Bob")
	st := pollState(t, late, 5*time.Second, "full rejection", func(st session.State) bool {
		return st.Err != nil
	})
	if !strings.Contains(st.Err.Message, "room full") {
		t.Fatalf("want 'room full', got %q", st.Err.Message)
	}
}

func TestFullQuizRun(t *testing.T) {
	endpoint := startServer(t)

	host := newClient(t, endpoint)
	host.CreateRoom("Quiz Night", 8, "Alice")
	hostState := pollState(t, host, 5*time.Second, "host in room", func(st session.State) bool {
		return st.Room != nil
	})

	guest := newClient(t, endpoint)
	guest.JoinRoom(hostState.Room.ID, "Bob")
	pollState(t, guest, 5*time.Second, "guest in room", func(st session.State) bool {
		return st.Room != nil
	})

	host.StartQuiz()
	pollState(t, host, 5*time.Second, "title screen", func(st session.State) bool {
		_, ok := st.Phase.(session.TitlePhase)
		return ok
	})
	pollState(t, guest, 5*time.Second, "guest title screen", func(st session.State) bool {
		_, ok := st.Phase.(session.TitlePhase)
		return ok
	})

	// Drive the whole script: advance on info screens, answer on questions.
	deadline := time.Now().Add(20 * time.Second)
	for {
		if time.Now().After(deadline) {
			t.Fatalf("quiz never reached game over; host state %+v", host.CurrentState().State)
		}

		st := host.CurrentState().State
		switch st.Phase.(type) {
		case session.TitlePhase, session.SectionPhase:
			host.AdvanceQuiz()
		case session.QuestionPhase:
			if !st.AnswerSubmitted {
				host.SelectAnswer(1)
			}
			if g := guest.CurrentState().State; !g.AnswerSubmitted {
				if _, ok := g.Phase.(session.QuestionPhase); ok {
					guest.SelectAnswer(0)
				}
			}
		case session.ResultPhase:
			host.AdvanceQuiz()
		case session.GameOverPhase:
			over := st.Phase.(session.GameOverPhase)
			if len(over.Leaderboard) != 2 {
				t.Fatalf("final leaderboard should rank both players: %+v", over.Leaderboard)
			}
			pollState(t, guest, 5*time.Second, "guest game over", func(g session.State) bool {
				_, ok := g.Phase.(session.GameOverPhase)
				return ok
			})
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestCreatorLeavingShutsDownRoom(t *testing.T) {
	endpoint := startServer(t)

	host := newClient(t, endpoint)
	host.CreateRoom("Quiz Night", 8, "Alice")
	hostState := pollState(t, host, 5*time.Second, "host in room", func(st session.State) bool {
		return st.Room != nil
	})

	guest := newClient(t, endpoint)
	guest.JoinRoom(hostState.Room.ID, "Bob")
	pollState(t, guest, 5*time.Second, "guest in room", func(st session.State) bool {
		return st.Room != nil
	})

	host.LeaveRoom()
	pollState(t, host, 5*time.Second, "host left", func(st session.State) bool {
		return st.Room == nil
	})

	// The guest sees the shutdown notice, then the grace delay clears it.
	pollState(t, guest, 5*time.Second, "guest notified", func(st session.State) bool {
		return st.RoomClosed
	})
	pollState(t, guest, 5*time.Second, "guest back to entry", func(st session.State) bool {
		return st.Room == nil
	})
}
