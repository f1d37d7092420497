package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oblongtable/beanbag-client/internal/config"
	"github.com/oblongtable/beanbag-client/internal/devserver"
	"github.com/oblongtable/beanbag-client/internal/protocol"
	"github.com/oblongtable/beanbag-client/internal/session"
	"github.com/oblongtable/beanbag-client/internal/view"
)

func hostCmd(cfg *config.Config, log *zap.Logger) *cobra.Command {
	var name string
	var size int
	var displayName string

	cmd := &cobra.Command{
		Use:   "host",
		Short: "Create a room and drive the quiz",
		RunE: func(cmd *cobra.Command, args []string) error {
			return play(cfg, log, func(s *session.Session) {
				s.CreateRoom(name, size, displayName)
			})
		},
	}
	cmd.Flags().StringVar(&name, "room", "My Quiz Room", "room name")
	cmd.Flags().IntVar(&size, "size", 8, "room capacity")
	cmd.Flags().StringVar(&displayName, "name", "Host", "your display name")
	return cmd
}

func joinCmd(cfg *config.Config, log *zap.Logger) *cobra.Command {
	var displayName string

	cmd := &cobra.Command{
		Use:   "join CODE",
		Short: "Join a room by its 4-letter code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return play(cfg, log, func(s *session.Session) {
				s.JoinRoom(strings.ToUpper(args[0]), displayName)
			})
		},
	}
	cmd.Flags().StringVar(&displayName, "name", "Player", "your display name")
	return cmd
}

func serveCmd(cfg *config.Config, log *zap.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the development quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			srv := devserver.New(log, devserver.DefaultQuiz())
			log.Info("dev server listening", zap.String("port", cfg.Port))
			return http.ListenAndServe(":"+cfg.Port, srv.Routes())
		},
	}
}

// play runs the interactive loop: start the session, fire the opening intent,
// then render every snapshot and translate stdin lines into dispatches.
func play(cfg *config.Config, log *zap.Logger, start func(*session.Session)) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := session.New(ctx, session.Config{
		Endpoint:      cfg.ServerURL,
		Logger:        log,
		DialTimeout:   cfg.DialTimeout,
		WriteTimeout:  cfg.WriteTimeout,
		ShutdownGrace: cfg.ShutdownGrace,
	})
	defer s.Stop()

	snapshots := make(chan session.Snapshot, 8)
	s.Inbox() <- session.Attach{ID: "cli", Outbox: snapshots}

	start(s)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
		close(lines)
	}()

	for {
		select {
		case snap, ok := <-snapshots:
			if !ok {
				return nil
			}
			render(view.Select(snap.State))

		case line, ok := <-lines:
			if !ok {
				s.LeaveRoom()
				return nil
			}
			dispatch(s, line)
		}
	}
}

func dispatch(s *session.Session, line string) {
	switch line {
	case "start":
		s.StartQuiz()
	case "next":
		s.AdvanceQuiz()
	case "leave", "quit":
		if s.RoomActive() {
			fmt.Println("You are in a room. Type 'leave!' to confirm.")
			return
		}
		s.Disconnect("user quit")
	case "leave!", "quit!":
		s.LeaveRoom()
	case "ok":
		s.DismissError()
	default:
		if n, err := strconv.Atoi(line); err == nil {
			s.SelectAnswer(n - 1)
			return
		}
		fmt.Println("commands: start, next, leave, ok, or an answer number")
	}
}

func render(screen view.Screen) {
	fmt.Println()
	if screen.Err != nil {
		fmt.Printf("!! %s error: %s (type 'ok' to dismiss)\n", screen.Err.Kind, screen.Err.Message)
	}
	if screen.RoomClosed {
		fmt.Println("** The room has been closed by the server.")
	}

	switch screen.Kind {
	case view.ScreenHome:
		if screen.Connecting {
			fmt.Println("Connecting...")
			return
		}
		fmt.Println("Not in a room.")

	case view.ScreenLobby:
		p := screen.Lobby
		fmt.Printf("Room %s — %s (%d/%d players)\n", p.RoomID, p.RoomName, len(p.Players), p.Capacity)
		for _, pl := range p.Players {
			fmt.Printf("  %s [%s]\n", pl.Name, pl.Role)
		}
		if p.CanStart {
			fmt.Println("You are the host. Type 'start' to begin.")
		}

	case view.ScreenTitle:
		p := screen.Title
		fmt.Printf("=== %s ===\n%s\n", p.Title, p.Description)
		if p.CanAdvance {
			fmt.Println("Type 'next' to continue.")
		}

	case view.ScreenSection:
		p := screen.Section
		fmt.Printf("--- Section %d: %s ---\n", p.Index, p.Title)
		if p.CanAdvance {
			fmt.Println("Type 'next' to continue.")
		}

	case view.ScreenQuestion:
		p := screen.Question
		fmt.Printf("Q: %s (%ds)\n", p.Question, p.TimeLimitSec)
		for i, opt := range p.Options {
			marker := " "
			if opt.Selected {
				marker = ">"
			}
			fmt.Printf(" %s %d. %s\n", marker, i+1, opt.Text)
		}
		if p.Answered {
			fmt.Println("Answer locked in.")
		} else {
			fmt.Println("Type the number of your answer.")
		}

	case view.ScreenResult:
		p := screen.Result
		fmt.Printf("Q: %s\n", p.Question)
		for i, opt := range p.Options {
			marker := " "
			if opt.Correct {
				marker = "*"
			} else if opt.Selected {
				marker = "x"
			}
			fmt.Printf(" %s %d. %s\n", marker, i+1, opt.Text)
		}
		if p.Explanation != "" {
			fmt.Println(p.Explanation)
		}
		printLeaderboard(p.Leaderboard)
		if p.CanAdvance {
			fmt.Println("Type 'next' to continue.")
		}

	case view.ScreenGameOver:
		fmt.Println("=== Game Over ===")
		printLeaderboard(screen.GameOver.Leaderboard)
		fmt.Println("Type 'leave!' to disconnect.")
	}
}

func printLeaderboard(entries []protocol.LeaderboardEntry) {
	if len(entries) == 0 {
		return
	}
	fmt.Println("Leaderboard:")
	for i, e := range entries {
		fmt.Printf(" %d. %-20s %d\n", i+1, e.Name, e.Score)
	}
}
