// Package devserver is a protocol-complete quiz server for local development
// and end-to-end tests. It is not the production backend; it speaks just
// enough of the wire protocol to drive the client through every phase.
package devserver

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Server struct {
	log  *zap.Logger
	quiz Quiz

	mu    sync.Mutex
	rooms map[string]*Room
}

func New(log *zap.Logger, quiz Quiz) *Server {
	return &Server{
		log:   log,
		quiz:  quiz,
		rooms: make(map[string]*Room),
	}
}

// Routes builds the HTTP handler: the websocket endpoint plus a health check.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/ws", s.handleWS)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func (s *Server) getRoom(code string) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rooms[code]
}

func (s *Server) removeRoom(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, code)
}

func (s *Server) createRoom(name string, capacity int) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	var code string
	for {
		code = generateCode(4)
		if _, taken := s.rooms[code]; !taken {
			break
		}
	}
	room := newRoom(code, name, capacity, s.quiz, s.log, s.removeRoom)
	s.rooms[code] = room
	return room
}

// clientEnvelope is the {type, info} shape every client intent arrives in.
type clientEnvelope struct {
	Type string          `json:"type"`
	Info json.RawMessage `json:"info"`
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer ws.Close(websocket.StatusNormalClosure, "bye")

	c := &client{id: uuid.NewString(), outbox: make(chan []byte, 16)}

	// Writer goroutine: forwards room pushes until the outbox closes.
	writeCtx, writeCancel := context.WithCancel(r.Context())
	defer writeCancel()
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for data := range c.outbox {
			ctx, cancel := context.WithTimeout(writeCtx, 3*time.Second)
			_ = ws.Write(ctx, websocket.MessageText, data)
			cancel()
		}
		_ = ws.Close(websocket.StatusNormalClosure, "room closed")
	}()

	var room *Room
	defer func() {
		if room != nil {
			room.post(leave{ClientID: c.id})
		}
	}()

	for {
		_, data, err := ws.Read(r.Context())
		if err != nil {
			return
		}
		var env clientEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.log.Debug("bad client json", zap.Error(err))
			continue
		}

		if room == nil {
			var fatal bool
			room, fatal = s.handleFirstIntent(c, env)
			if fatal {
				// Failed create/join closes the connection; drain the outbox
				// first so the rejection reaches the wire before the close.
				close(c.outbox)
				<-writerDone
				return
			}
			continue
		}
		room.post(clientIntent{ClientID: c.id, Type: env.Type, Info: env.Info})
		if env.Type == "leave_room" {
			room = nil
			return
		}
	}
}

// handleFirstIntent resolves the create/join that starts every session.
// Returns the room the client ended up in; fatal means the attempt failed
// and the connection should be dropped.
func (s *Server) handleFirstIntent(c *client, env clientEnvelope) (*Room, bool) {
	switch env.Type {
	case "create_room":
		var info struct {
			RoomName string `json:"room_name"`
			RoomSize int    `json:"room_size"`
			Username string `json:"username"`
		}
		if err := json.Unmarshal(env.Info, &info); err != nil || info.RoomSize < 1 {
			c.outbox <- marshalFailure("Create", "invalid request")
			return nil, true
		}
		c.name = info.Username
		room := s.createRoom(info.RoomName, info.RoomSize)
		if !room.join(c, "Create") {
			return nil, true
		}
		return room, false

	case "join_room":
		var info struct {
			RoomID string `json:"room_id"`
			Name   string `json:"name"`
		}
		if err := json.Unmarshal(env.Info, &info); err != nil {
			c.outbox <- marshalFailure("Join", "invalid request")
			return nil, true
		}
		c.name = info.Name
		room := s.getRoom(info.RoomID)
		if room == nil {
			c.outbox <- marshalFailure("Join", "room not found")
			return nil, true
		}
		if !room.join(c, "Join") {
			return nil, true
		}
		return room, false

	default:
		s.log.Debug("intent before joining a room", zap.String("type", env.Type))
		return nil, false
	}
}

func generateCode(length int) string {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	code := make([]byte, length)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			num = big.NewInt(0)
		}
		code[i] = charset[num.Int64()]
	}
	return string(code)
}
