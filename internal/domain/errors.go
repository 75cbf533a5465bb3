package domain

import "errors"

var (
	// ErrRoomFull is returned when a room already holds its maximum number of players.
	ErrRoomFull = errors.New("room is full")
	// ErrGameInProgress is returned when joining a room whose game has already started.
	ErrGameInProgress = errors.New("game already in progress")
	// ErrRoomNotFound is returned for events that reference a room nobody has joined.
	ErrRoomNotFound = errors.New("room not found")
	// ErrNotMember indicates the connection is not part of the referenced room.
	ErrNotMember = errors.New("connection is not a member of the room")
	// ErrNotInLobby indicates a lobby-only action arrived after the game started.
	ErrNotInLobby = errors.New("room is not in the lobby")
	// ErrNotEnoughPlayers indicates a start request below the minimum player count.
	ErrNotEnoughPlayers = errors.New("not enough players to start")
	// ErrStaleRound indicates an answer for a round that is not the current one.
	ErrStaleRound = errors.New("answer is for a stale round")
	// ErrAlreadyAnswered indicates a duplicate answer within the same round.
	ErrAlreadyAnswered = errors.New("player already answered this round")
	// ErrInvariantBroken indicates room state that can no longer be trusted.
	ErrInvariantBroken = errors.New("room invariant broken")
	// ErrQuestionBankNotFound indicates the question bank could not be loaded.
	ErrQuestionBankNotFound = errors.New("question bank not found")
	// ErrEmptyQuestionBank indicates a loaded bank without usable questions.
	ErrEmptyQuestionBank = errors.New("question bank is empty")
)
