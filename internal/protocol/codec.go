package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrMalformedEnvelope = errors.New("malformed envelope")
var ErrMissingField = errors.New("missing required field")

const (
	msgCreateSuccess = "Create room Success"
	msgJoinSuccess   = "Join room Success"
	msgCreateFailed  = "Create room failed: "
	msgJoinFailed    = "Join room failed: "
)

type envelope struct {
	Type string `json:"type"`
	Info any    `json:"info"`
}

// Encode serializes an outbound intent into its {type, info} wire envelope.
// Total for well-typed intents: every variant marshals without error.
func Encode(in Intent) []byte {
	var env envelope
	switch it := in.(type) {
	case CreateRoom:
		env = envelope{Type: "create_room", Info: struct {
			RoomName string `json:"room_name"`
			RoomSize int    `json:"room_size"`
			Username string `json:"username"`
		}{it.RoomName, it.RoomSize, it.Username}}
	case JoinRoom:
		env = envelope{Type: "join_room", Info: struct {
			RoomID string `json:"room_id"`
			Name   string `json:"name"`
		}{it.RoomID, it.Name}}
	case SubmitAnswer:
		env = envelope{Type: "submit_answer", Info: struct {
			AnswerIndex int `json:"answer_index"`
		}{it.AnswerIndex}}
	case QuizForward:
		env = envelope{Type: "quiz_forward", Info: struct{}{}}
	case StartQuiz:
		env = envelope{Type: "start_quiz", Info: struct {
			RoomID string `json:"room_id"`
		}{it.RoomID}}
	case LeaveRoom:
		env = envelope{Type: "leave_room", Info: struct{}{}}
	default:
		// New intents must be added to this switch; reaching here is a
		// programming error, not a runtime condition.
		panic(fmt.Sprintf("protocol: unencodable intent %T", in))
	}
	data, _ := json.Marshal(env)
	return data
}

// wirePlayer accepts every field spelling the server has used for players.
type wirePlayer struct {
	UserID      string `json:"user_id"`
	UserLobbyID string `json:"user_lobby_id"`
	UserName    string `json:"user_name"`
	Name        string `json:"name"`
	Role        string `json:"role"`
}

func (p wirePlayer) normalize() Player {
	id := p.UserID
	if id == "" {
		id = p.UserLobbyID
	}
	name := p.UserName
	if name == "" {
		name = p.Name
	}
	role := RoleGuest
	switch p.Role {
	case string(RoleCreator):
		role = RoleCreator
	case string(RoleHost):
		role = RoleHost
	}
	return Player{ID: id, Name: name, Role: role}
}

func normalizePlayers(ps []wirePlayer) []Player {
	out := make([]Player, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.normalize())
	}
	return out
}

type wireEnvelope struct {
	Type      string          `json:"type"`
	Message   string          `json:"message"`
	Info      json.RawMessage `json:"info"`
	UsersInfo []wirePlayer    `json:"users_info"`
	HostID    string          `json:"host_id"`
	IsHost    *bool           `json:"is_host"`
}

type wireRoomInfo struct {
	RoomID    string       `json:"room_id"`
	RoomName  string       `json:"room_name"`
	RoomSize  int          `json:"room_size"`
	UsersInfo []wirePlayer `json:"users_info"`
	HostID    string       `json:"host_id"`
	UserID    string       `json:"user_id"`
}

// Decode parses an inbound wire message into a typed event. Unrecognized
// type/message values decode to Unknown; bytes that do not fit the envelope
// shape, or known types missing required fields, return an error.
func Decode(data []byte) (Event, error) {
	var env wireEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	// Confirmation/failure family is keyed on "message" rather than "type".
	if env.Message != "" {
		return decodeMessageFamily(env)
	}

	switch env.Type {
	case "room_status_update":
		ev := RoomStatusUpdate{
			Players: normalizePlayers(env.UsersInfo),
			HostID:  env.HostID,
		}
		if env.IsHost != nil {
			ev.IsHost = *env.IsHost
			ev.HasHostFlag = true
		}
		return ev, nil

	case "room_shutdown":
		return RoomShutdown{}, nil

	case "show_title":
		var info struct {
			Title       string `json:"title"`
			Description string `json:"description"`
		}
		if err := unmarshalInfo(env.Info, "show_title", &info); err != nil {
			return nil, err
		}
		if info.Title == "" {
			return nil, fmt.Errorf("%w: show_title.title", ErrMissingField)
		}
		return ShowTitle{Title: info.Title, Description: info.Description}, nil

	case "show_section":
		var info struct {
			Title string `json:"title"`
			ID    int    `json:"id"`
		}
		if err := unmarshalInfo(env.Info, "show_section", &info); err != nil {
			return nil, err
		}
		if info.Title == "" {
			return nil, fmt.Errorf("%w: show_section.title", ErrMissingField)
		}
		return ShowSection{Title: info.Title, Index: info.ID}, nil

	case "new_question":
		var info struct {
			QuestionText string   `json:"questionText"`
			Options      []string `json:"options"`
			TimeLimit    int      `json:"timeLimit"`
		}
		if err := unmarshalInfo(env.Info, "new_question", &info); err != nil {
			return nil, err
		}
		if info.QuestionText == "" {
			return nil, fmt.Errorf("%w: new_question.questionText", ErrMissingField)
		}
		if len(info.Options) == 0 {
			return nil, fmt.Errorf("%w: new_question.options", ErrMissingField)
		}
		return NewQuestion{
			Question:     info.QuestionText,
			Options:      info.Options,
			TimeLimitSec: info.TimeLimit,
		}, nil

	case "question_result":
		var info struct {
			CorrectOptionIndex *int                        `json:"correctOptionIndex"`
			Explanation        string                      `json:"explanation"`
			Leaderboard        map[string]LeaderboardEntry `json:"leaderboard"`
		}
		if err := unmarshalInfo(env.Info, "question_result", &info); err != nil {
			return nil, err
		}
		if info.CorrectOptionIndex == nil {
			return nil, fmt.Errorf("%w: question_result.correctOptionIndex", ErrMissingField)
		}
		return QuestionResult{
			CorrectOptionIndex: *info.CorrectOptionIndex,
			Explanation:        info.Explanation,
			Leaderboard:        flattenLeaderboard(info.Leaderboard),
		}, nil

	case "game_over":
		var info struct {
			Leaderboard []LeaderboardEntry `json:"leaderboard"`
		}
		if err := unmarshalInfo(env.Info, "game_over", &info); err != nil {
			return nil, err
		}
		return GameOver{Leaderboard: info.Leaderboard}, nil

	case "":
		return nil, fmt.Errorf("%w: no type or message field", ErrMalformedEnvelope)

	default:
		return Unknown{Type: env.Type}, nil
	}
}

func decodeMessageFamily(env wireEnvelope) (Event, error) {
	switch env.Message {
	case msgCreateSuccess, msgJoinSuccess:
		var info wireRoomInfo
		if err := unmarshalInfo(env.Info, env.Message, &info); err != nil {
			return nil, err
		}
		if info.RoomID == "" {
			return nil, fmt.Errorf("%w: info.room_id", ErrMissingField)
		}
		if info.UserID == "" {
			return nil, fmt.Errorf("%w: info.user_id", ErrMissingField)
		}
		room := RoomDetails{
			ID:       info.RoomID,
			Name:     info.RoomName,
			Capacity: info.RoomSize,
			Players:  normalizePlayers(info.UsersInfo),
			IsHost:   info.HostID == info.UserID,
		}
		if env.Message == msgCreateSuccess {
			return RoomCreated{Room: room, UserID: info.UserID}, nil
		}
		return RoomJoined{Room: room, UserID: info.UserID}, nil
	}

	if reason, ok := strings.CutPrefix(env.Message, msgCreateFailed); ok {
		return RoomOpFailed{Op: "create", Reason: reason}, nil
	}
	if reason, ok := strings.CutPrefix(env.Message, msgJoinFailed); ok {
		return RoomOpFailed{Op: "join", Reason: reason}, nil
	}
	return Unknown{Type: env.Message}, nil
}

func unmarshalInfo(raw json.RawMessage, what string, dst any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: %s.info", ErrMissingField, what)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %s info: %v", ErrMalformedEnvelope, what, err)
	}
	return nil
}

// flattenLeaderboard turns the wire's id-keyed map into a stable ranking:
// score descending, ties broken by id so repeated decodes agree.
func flattenLeaderboard(m map[string]LeaderboardEntry) []LeaderboardEntry {
	out := make([]LeaderboardEntry, 0, len(m))
	for id, e := range m {
		if e.ID == "" {
			e.ID = id
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out
}
