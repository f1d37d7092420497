package protocol

// Canonical model for everything that crosses the wire. Server field naming
// has drifted across protocol revisions (user_id vs user_lobby_id, user_name
// vs name), so raw wire shapes never leave this package: Decode normalizes
// into these types and the rest of the client only sees them.

type Role string

const (
	RoleCreator Role = "creator"
	RoleHost    Role = "host"
	RoleGuest   Role = "guest"
)

type Player struct {
	ID   string
	Name string
	Role Role
}

type RoomDetails struct {
	ID       string
	Name     string
	Capacity int
	Players  []Player
	IsHost   bool
}

type LeaderboardEntry struct {
	ID    string
	Name  string
	Score int
}

// Intent is a typed outbound user action not yet serialized to wire format.
type Intent interface{ isIntent() }

type CreateRoom struct {
	RoomName string
	RoomSize int
	Username string
}

type JoinRoom struct {
	RoomID string
	Name   string
}

type SubmitAnswer struct {
	AnswerIndex int
}

type QuizForward struct{}

type StartQuiz struct {
	RoomID string
}

type LeaveRoom struct{}

func (CreateRoom) isIntent()   {}
func (JoinRoom) isIntent()     {}
func (SubmitAnswer) isIntent() {}
func (QuizForward) isIntent()  {}
func (StartQuiz) isIntent()    {}
func (LeaveRoom) isIntent()    {}

// Event is a typed inbound server push already parsed from wire format.
type Event interface{ isEvent() }

type RoomCreated struct {
	Room   RoomDetails
	UserID string
}

type RoomJoined struct {
	Room   RoomDetails
	UserID string
}

// RoomOpFailed is the server rejecting a create or join. Op is "create" or
// "join"; Reason is the server's human-readable text after the prefix.
type RoomOpFailed struct {
	Op     string
	Reason string
}

// RoomStatusUpdate replaces the roster wholesale. HasHostFlag reports whether
// the server sent an explicit is_host; older revisions only send host_id and
// the consumer derives the flag from its own user id.
type RoomStatusUpdate struct {
	Players     []Player
	HostID      string
	IsHost      bool
	HasHostFlag bool
}

type RoomShutdown struct{}

type ShowTitle struct {
	Title       string
	Description string
}

type ShowSection struct {
	Title string
	Index int
}

type NewQuestion struct {
	Question     string
	Options      []string
	TimeLimitSec int
}

type QuestionResult struct {
	CorrectOptionIndex int
	Explanation        string
	Leaderboard        []LeaderboardEntry
}

type GameOver struct {
	Leaderboard []LeaderboardEntry
}

// Unknown is any envelope whose type the client does not recognize. It is
// dropped by the session, not treated as an error, so old clients survive new
// server pushes.
type Unknown struct {
	Type string
}

func (RoomCreated) isEvent()      {}
func (RoomJoined) isEvent()       {}
func (RoomOpFailed) isEvent()     {}
func (RoomStatusUpdate) isEvent() {}
func (RoomShutdown) isEvent()     {}
func (ShowTitle) isEvent()        {}
func (ShowSection) isEvent()      {}
func (NewQuestion) isEvent()      {}
func (QuestionResult) isEvent()   {}
func (GameOver) isEvent()         {}
func (Unknown) isEvent()          {}
