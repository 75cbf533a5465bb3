package domain

// EventName identifies an outbound or inbound message type on the wire.
type EventName string

// Outbound events.
const (
	EventConnected          EventName = "connected"
	EventPlayerJoined       EventName = "player-joined"
	EventCanStartGame       EventName = "can-start-game"
	EventPlayerReady        EventName = "player-ready"
	EventStartGame          EventName = "start-game"
	EventAnswerResult       EventName = "answer-result"
	EventNextQuestion       EventName = "next-question"
	EventGameOver           EventName = "game-over"
	EventPlayerLeft         EventName = "player-left"
	EventPlayerDisconnected EventName = "player-disconnected"
	EventGameInProgress     EventName = "game-in-progress"
	EventRoomFull           EventName = "room-full"
	EventError              EventName = "error"
)

// Inbound events.
const (
	EventJoinRoom         EventName = "join-room"
	EventStartGameRequest EventName = "start-game-request"
	EventSubmitAnswer     EventName = "submit-answer"
)

// Event is a named payload delivered to one connection or a whole room.
// Payload is nil for events that carry no data.
type Event struct {
	Name    EventName
	Payload any
}

// PlayerCountPayload is sent with player-joined and player-left.
type PlayerCountPayload struct {
	PlayerCount int `json:"playerCount"`
	MaxPlayers  int `json:"maxPlayers"`
}

// ReadyPayload reports lobby readiness progress.
type ReadyPayload struct {
	ReadyCount int `json:"readyCount"`
	TotalCount int `json:"totalCount"`
}

// StartGamePayload carries the room's questions when play begins.
type StartGamePayload struct {
	Questions       []QuestionRecord `json:"questions"`
	CurrentQuestion int              `json:"currentQuestion"`
}

// AnswerResultPayload is broadcast after every accepted answer.
type AnswerResultPayload struct {
	PlayerID      string         `json:"playerId"`
	Scores        map[string]int `json:"scores"`
	IsCorrect     bool           `json:"isCorrect"`
	CorrectAnswer int            `json:"correctAnswer"`
}

// NextQuestionPayload announces the round that is now open.
type NextQuestionPayload struct {
	CurrentQuestion int `json:"currentQuestion"`
}

// GameOverPayload carries the final scoreboard.
type GameOverPayload struct {
	Scores map[string]int `json:"scores"`
}

// PlayerPayload identifies a single connection.
type PlayerPayload struct {
	PlayerID string `json:"playerId"`
}

// ErrorPayload reports a malformed inbound message.
type ErrorPayload struct {
	Message string `json:"message"`
}
