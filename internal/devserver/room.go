package devserver

import (
	"encoding/json"

	"go.uber.org/zap"
)

// Room is one quiz lobby, run as a single goroutine consuming a typed
// message channel. All room state lives inside the loop; the websocket
// handlers only post messages and forward outbox bytes.

type roomMsg interface{ isRoomMsg() }

type joinReq struct {
	Client *client
	Reply  chan bool
}

type clientIntent struct {
	ClientID string
	Type     string
	Info     json.RawMessage
}

type leave struct{ ClientID string }

func (joinReq) isRoomMsg()      {}
func (clientIntent) isRoomMsg() {}
func (leave) isRoomMsg()        {}

type client struct {
	id     string
	name   string
	outbox chan []byte
}

type gamePhase int

const (
	phaseLobby gamePhase = iota
	phaseTitle
	phaseSection
	phaseQuestion
	phaseResult
	phaseOver
)

type player struct {
	c        *client
	role     string
	score    int
	answered bool
	answer   int
}

type Room struct {
	code     string
	name     string
	capacity int
	quiz     Quiz
	log      *zap.Logger

	inbox   chan roomMsg
	done    chan struct{} // closed when the loop exits; no message is answered after
	players map[string]*player
	order   []string // join order, for stable rosters
	hostID  string

	phase   gamePhase
	section int
	qIndex  int

	onEmpty func(code string)
}

func newRoom(code, name string, capacity int, quiz Quiz, log *zap.Logger, onEmpty func(string)) *Room {
	r := &Room{
		code:     code,
		name:     name,
		capacity: capacity,
		quiz:     quiz,
		log:      log,
		inbox:    make(chan roomMsg, 64),
		done:     make(chan struct{}),
		players:  make(map[string]*player),
		onEmpty:  onEmpty,
	}
	go r.loop()
	return r
}

// post delivers a message unless the room has already shut down.
func (r *Room) post(m roomMsg) {
	select {
	case r.inbox <- m:
	case <-r.done:
	}
}

// join runs the join handshake. A false return means the client is not in the
// room and a failure envelope is already on its outbox. Joins racing the
// room's shutdown fail instead of blocking: the loop answers every dequeued
// request before it exits, and r.done covers the rest.
func (r *Room) join(c *client, op string) bool {
	reply := make(chan bool, 1)
	select {
	case r.inbox <- joinReq{Client: c, Reply: reply}:
	case <-r.done:
		c.outbox <- marshalFailure(op, "room not found")
		return false
	}
	select {
	case ok := <-reply:
		return ok
	case <-r.done:
		select {
		case ok := <-reply:
			return ok
		default:
			c.outbox <- marshalFailure(op, "room not found")
			return false
		}
	}
}

func (r *Room) loop() {
	defer close(r.done)
	for m := range r.inbox {
		switch msg := m.(type) {
		case joinReq:
			msg.Reply <- r.handleJoin(msg.Client)

		case clientIntent:
			r.handleIntent(msg)
			if len(r.players) == 0 {
				r.onEmpty(r.code)
				return
			}

		case leave:
			r.handleLeave(msg.ClientID)
			if len(r.players) == 0 {
				r.onEmpty(r.code)
				return
			}
		}
	}
}

func (r *Room) handleJoin(c *client) bool {
	op := "Join"
	if len(r.players) == 0 {
		op = "Create"
	}

	if len(r.players) >= r.capacity {
		c.outbox <- marshalFailure(op, "room full")
		return false
	}
	if _, dup := r.players[c.id]; dup {
		c.outbox <- marshalFailure(op, "already joined")
		return false
	}

	role := "guest"
	if len(r.players) == 0 {
		role = "creator"
		r.hostID = c.id
	}
	r.players[c.id] = &player{c: c, role: role}
	r.order = append(r.order, c.id)

	c.outbox <- r.marshalConfirmation(op, c.id)
	r.broadcastStatus()
	return true
}

func (r *Room) handleLeave(id string) {
	p, ok := r.players[id]
	if !ok {
		return
	}
	delete(r.players, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	close(p.c.outbox)

	// The creator leaving takes the room with them.
	if id == r.hostID {
		r.broadcast(marshalTyped("room_shutdown", nil))
		r.closeAll()
		return
	}
	r.broadcastStatus()
}

func (r *Room) handleIntent(msg clientIntent) {
	switch msg.Type {
	case "start_quiz":
		if msg.ClientID != r.hostID || r.phase != phaseLobby {
			return
		}
		r.phase = phaseTitle
		r.broadcast(marshalTyped("show_title", map[string]any{
			"title":       r.quiz.Title,
			"description": r.quiz.Description,
		}))

	case "quiz_forward":
		if msg.ClientID != r.hostID {
			return
		}
		r.advance()

	case "submit_answer":
		r.recordAnswer(msg.ClientID, msg.Info)

	case "leave_room":
		r.handleLeave(msg.ClientID)

	default:
		r.log.Debug("unknown client intent", zap.String("type", msg.Type))
	}
}

func (r *Room) recordAnswer(clientID string, info json.RawMessage) {
	if r.phase != phaseQuestion {
		return
	}
	p, ok := r.players[clientID]
	if !ok || p.answered {
		return
	}
	var body struct {
		AnswerIndex int `json:"answer_index"`
	}
	if err := json.Unmarshal(info, &body); err != nil {
		return
	}
	q := r.currentQuestion()
	if body.AnswerIndex < 0 || body.AnswerIndex >= len(q.Options) {
		return
	}
	p.answered = true
	p.answer = body.AnswerIndex
	if body.AnswerIndex == q.Correct {
		p.score += 1000
	}

	for _, other := range r.players {
		if !other.answered {
			return
		}
	}
	// Everyone answered; no need to wait for the host.
	r.showResult()
}

// advance walks the quiz script: title -> section -> questions -> result ->
// next question/section -> game over.
func (r *Room) advance() {
	switch r.phase {
	case phaseTitle:
		r.section = 0
		r.showSection()
	case phaseSection:
		r.qIndex = 0
		r.showQuestion()
	case phaseQuestion:
		r.showResult()
	case phaseResult:
		r.qIndex++
		if r.qIndex < len(r.quiz.Sections[r.section].Questions) {
			r.showQuestion()
			return
		}
		r.section++
		if r.section < len(r.quiz.Sections) {
			r.showSection()
			return
		}
		r.gameOver()
	}
}

func (r *Room) showSection() {
	r.phase = phaseSection
	r.broadcast(marshalTyped("show_section", map[string]any{
		"title": r.quiz.Sections[r.section].Title,
		"id":    r.section + 1,
	}))
}

func (r *Room) showQuestion() {
	r.phase = phaseQuestion
	for _, p := range r.players {
		p.answered = false
		p.answer = -1
	}
	q := r.currentQuestion()
	r.broadcast(marshalTyped("new_question", map[string]any{
		"questionText": q.Text,
		"options":      q.Options,
		"timeLimit":    q.TimeLimitSec,
	}))
}

func (r *Room) showResult() {
	r.phase = phaseResult
	q := r.currentQuestion()
	r.broadcast(marshalTyped("question_result", map[string]any{
		"correctOptionIndex": q.Correct,
		"explanation":        q.Explanation,
		"leaderboard":        r.leaderboardMap(),
	}))
}

func (r *Room) gameOver() {
	r.phase = phaseOver
	r.broadcast(marshalTyped("game_over", map[string]any{
		"leaderboard": r.leaderboardList(),
	}))
}

func (r *Room) currentQuestion() Question {
	return r.quiz.Sections[r.section].Questions[r.qIndex]
}

func (r *Room) closeAll() {
	for id, p := range r.players {
		close(p.c.outbox)
		delete(r.players, id)
	}
	r.order = nil
}

func (r *Room) broadcast(data []byte) {
	for id, p := range r.players {
		select {
		case p.c.outbox <- data:
		default:
			// Slow client; drop them rather than stall the room.
			close(p.c.outbox)
			delete(r.players, id)
		}
	}
}

// broadcastStatus sends room_status_update individually: is_host is
// per-recipient.
func (r *Room) broadcastStatus() {
	for id, p := range r.players {
		data, _ := json.Marshal(map[string]any{
			"type":       "room_status_update",
			"users_info": r.roster(),
			"host_id":    r.hostID,
			"is_host":    id == r.hostID,
		})
		select {
		case p.c.outbox <- data:
		default:
			close(p.c.outbox)
			delete(r.players, id)
		}
	}
}

type wirePlayer struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Role     string `json:"role"`
}

func (r *Room) roster() []wirePlayer {
	out := make([]wirePlayer, 0, len(r.order))
	for _, id := range r.order {
		p, ok := r.players[id]
		if !ok {
			continue
		}
		out = append(out, wirePlayer{UserID: id, UserName: p.c.name, Role: p.role})
	}
	return out
}

type wireScore struct {
	ID    string
	Name  string
	Score int
}

func (r *Room) leaderboardMap() map[string]wireScore {
	out := make(map[string]wireScore, len(r.players))
	for id, p := range r.players {
		out[id] = wireScore{ID: id, Name: p.c.name, Score: p.score}
	}
	return out
}

func (r *Room) leaderboardList() []wireScore {
	out := make([]wireScore, 0, len(r.order))
	for _, id := range r.order {
		if p, ok := r.players[id]; ok {
			out = append(out, wireScore{ID: id, Name: p.c.name, Score: p.score})
		}
	}
	return out
}

func (r *Room) marshalConfirmation(op, userID string) []byte {
	data, _ := json.Marshal(map[string]any{
		"message": op + " room Success",
		"info": map[string]any{
			"room_id":    r.code,
			"room_name":  r.name,
			"room_size":  r.capacity,
			"users_info": r.roster(),
			"host_id":    r.hostID,
			"user_id":    userID,
		},
	})
	return data
}

func marshalFailure(op, reason string) []byte {
	data, _ := json.Marshal(map[string]string{
		"message": op + " room failed: " + reason,
	})
	return data
}

func marshalTyped(typ string, info map[string]any) []byte {
	env := map[string]any{"type": typ}
	if info != nil {
		env["info"] = info
	}
	data, _ := json.Marshal(env)
	return data
}
