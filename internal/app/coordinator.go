package app

import (
	"context"
	"errors"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"trivia-room-service/internal/domain"
)

// RoomRegistry abstracts where rooms and the connection index live (in-memory, Redis, etc).
type RoomRegistry interface {
	GetOrCreate(roomID string, questions []domain.QuestionRecord) *Room
	Get(roomID string) (*Room, bool)
	Remove(roomID string)

	Bind(connID, roomID string)
	Unbind(connID string)
	RoomOf(connID string) (string, bool)
}

// QuestionBank supplies the ordered question list (from cache/backing store).
type QuestionBank interface {
	Questions(ctx context.Context) ([]domain.QuestionRecord, error)
}

// Broadcaster delivers events to the members of a room or to a single connection.
// Implementations must not block the caller.
type Broadcaster interface {
	Subscribe(roomID, connID string)
	Unsubscribe(roomID, connID string)
	ToRoom(roomID string, event domain.Event)
	ToConn(connID string, event domain.Event)
}

// Coordinator applies member events to rooms and decides what to broadcast.
type Coordinator struct {
	rooms RoomRegistry
	bank  QuestionBank
	out   Broadcaster
	rules domain.Rules
	clock clockwork.Clock
}

// Option customises a Coordinator.
type Option func(*Coordinator)

// WithRules overrides the default session rules.
func WithRules(rules domain.Rules) Option {
	return func(c *Coordinator) { c.rules = rules }
}

// WithClock swaps the clock used for round-advance timers; tests pass a fake clock.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Coordinator) { c.clock = clock }
}

func NewCoordinator(rooms RoomRegistry, bank QuestionBank, out Broadcaster, opts ...Option) *Coordinator {
	c := &Coordinator{
		rooms: rooms,
		bank:  bank,
		out:   out,
		rules: domain.DefaultRules(),
		clock: clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Rules returns the rules the coordinator enforces.
func (c *Coordinator) Rules() domain.Rules {
	return c.rules
}

// Room returns a snapshot of a live room.
func (c *Coordinator) Room(roomID string) (RoomSnapshot, bool) {
	room, ok := c.rooms.Get(roomID)
	if !ok {
		return RoomSnapshot{}, false
	}
	return room.Snapshot(), true
}

// Join adds a connection to a lobby. A connection already sitting in another
// room leaves it once the new room has admitted it; a rejected switch leaves
// the current room untouched. Joining the room it is already in does nothing.
func (c *Coordinator) Join(ctx context.Context, connID, roomID string) error {
	if roomID == "" {
		return domain.ErrRoomNotFound
	}
	previous, switching := c.rooms.RoomOf(connID)
	if switching && previous == roomID {
		return nil
	}

	questions, err := c.bank.Questions(ctx)
	if err != nil {
		return err
	}
	if len(questions) > c.rules.Rounds {
		questions = questions[:c.rules.Rounds]
	}

	for {
		room := c.rooms.GetOrCreate(roomID, questions)
		room.mu.Lock()
		if room.closed {
			// Lost a race with the last member leaving; the registry now holds a fresh room.
			room.mu.Unlock()
			continue
		}
		err = c.joinLocked(room, connID)
		room.mu.Unlock()
		break
	}

	admitted := err == nil || errors.Is(err, domain.ErrInvariantBroken)
	if switching && admitted {
		if leaveErr := c.leave(connID, previous); leaveErr != nil && !IsStale(leaveErr) {
			return leaveErr
		}
	}
	return err
}

func (c *Coordinator) joinLocked(room *Room, connID string) error {
	if room.phase != domain.PhaseLobby {
		c.out.ToConn(connID, domain.Event{Name: domain.EventGameInProgress})
		return domain.ErrGameInProgress
	}
	if len(room.members) >= c.rules.Capacity {
		c.out.ToConn(connID, domain.Event{Name: domain.EventRoomFull})
		return domain.ErrRoomFull
	}

	room.members[connID] = struct{}{}
	c.rooms.Bind(connID, room.id)
	c.out.Subscribe(room.id, connID)

	log.Info().
		Str("room_id", room.id).
		Str("conn_id", connID).
		Int("players", len(room.members)).
		Msg("player joined room")

	c.out.ToRoom(room.id, domain.Event{
		Name:    domain.EventPlayerJoined,
		Payload: c.playerCount(room),
	})
	if len(room.members) >= c.rules.MinPlayers {
		c.out.ToRoom(room.id, domain.Event{Name: domain.EventCanStartGame})
	}
	if c.rules.AutoStart && len(room.members) == c.rules.MinPlayers {
		c.startLocked(room)
	}
	return c.verifyLocked(room)
}

// Ready marks a lobby member as ready. Unanimous readiness with enough players starts the game.
func (c *Coordinator) Ready(_ context.Context, connID, roomID string) error {
	room, err := c.lockRoom(roomID)
	if err != nil {
		return err
	}
	defer room.mu.Unlock()

	if !room.isMemberLocked(connID) {
		return domain.ErrNotMember
	}
	if room.phase != domain.PhaseLobby {
		return domain.ErrNotInLobby
	}

	room.ready[connID] = struct{}{}
	if len(room.ready) == len(room.members) && len(room.members) >= c.rules.MinPlayers {
		c.startLocked(room)
	} else {
		c.out.ToRoom(room.id, domain.Event{
			Name: domain.EventPlayerReady,
			Payload: domain.ReadyPayload{
				ReadyCount: len(room.ready),
				TotalCount: len(room.members),
			},
		})
	}
	return c.verifyLocked(room)
}

// RequestStart starts the game without waiting for readiness.
func (c *Coordinator) RequestStart(_ context.Context, connID, roomID string) error {
	room, err := c.lockRoom(roomID)
	if err != nil {
		return err
	}
	defer room.mu.Unlock()

	if !room.isMemberLocked(connID) {
		return domain.ErrNotMember
	}
	if room.phase != domain.PhaseLobby {
		return domain.ErrNotInLobby
	}
	if len(room.members) < c.rules.MinPlayers {
		return domain.ErrNotEnoughPlayers
	}
	c.startLocked(room)
	return c.verifyLocked(room)
}

func (c *Coordinator) startLocked(room *Room) {
	if room.phase != domain.PhaseLobby {
		return
	}
	room.phase = domain.PhaseInProgress
	room.ready = make(map[string]struct{})
	for id := range room.members {
		room.scores[id] = 0
	}

	log.Info().
		Str("room_id", room.id).
		Int("players", len(room.members)).
		Int("rounds", len(room.questions)).
		Msg("game started")

	c.out.ToRoom(room.id, domain.Event{
		Name: domain.EventStartGame,
		Payload: domain.StartGamePayload{
			Questions:       room.questionsLocked(),
			CurrentQuestion: room.round,
		},
	})
}

// SubmitAnswer scores an answer for the current round and advances once every member has answered.
// Answers for other rounds, from non-members or repeated within a round are dropped.
func (c *Coordinator) SubmitAnswer(_ context.Context, connID string, submission domain.AnswerSubmission) error {
	room, err := c.lockRoom(submission.RoomID)
	if err != nil {
		return err
	}
	defer room.mu.Unlock()

	if room.phase != domain.PhaseInProgress {
		return domain.ErrStaleRound
	}
	if !room.isMemberLocked(connID) {
		return domain.ErrNotMember
	}
	if submission.QuestionIndex != room.round {
		return domain.ErrStaleRound
	}
	if _, ok := room.answered[connID]; ok {
		return domain.ErrAlreadyAnswered
	}

	question := room.questions[room.round]
	correct := submission.AnswerIndex == question.CorrectOption
	room.scores[connID] += domain.Score(correct, submission.ElapsedMs)
	room.answered[connID] = struct{}{}

	log.Debug().
		Str("room_id", room.id).
		Str("conn_id", connID).
		Int("round", room.round).
		Bool("correct", correct).
		Int("score", room.scores[connID]).
		Msg("answer recorded")

	c.out.ToRoom(room.id, domain.Event{
		Name: domain.EventAnswerResult,
		Payload: domain.AnswerResultPayload{
			PlayerID:      connID,
			Scores:        room.scoresLocked(),
			IsCorrect:     correct,
			CorrectAnswer: question.CorrectOption,
		},
	})

	c.advanceIfAnsweredLocked(room)
	return c.verifyLocked(room)
}

// advanceIfAnsweredLocked closes the round once every current member has answered.
func (c *Coordinator) advanceIfAnsweredLocked(room *Room) {
	if room.phase != domain.PhaseInProgress || len(room.answered) < len(room.members) {
		return
	}

	room.round++
	room.answered = make(map[string]struct{})

	if room.round < len(room.questions) {
		c.scheduleNextQuestion(room, room.round)
		return
	}

	room.phase = domain.PhaseCompleted
	log.Info().Str("room_id", room.id).Msg("game over")
	c.out.ToRoom(room.id, domain.Event{
		Name:    domain.EventGameOver,
		Payload: domain.GameOverPayload{Scores: room.scoresLocked()},
	})
}

// scheduleNextQuestion announces round after the configured delay. The timer
// is tied to the room and round it was issued for.
func (c *Coordinator) scheduleNextQuestion(room *Room, round int) {
	if room.advance != nil {
		room.advance.Stop()
	}
	room.advance = c.clock.AfterFunc(c.rules.NextQuestionDelay, func() {
		c.announceRound(room, round)
	})
}

func (c *Coordinator) announceRound(room *Room, round int) {
	room.mu.Lock()
	defer room.mu.Unlock()

	if room.closed || room.phase != domain.PhaseInProgress || room.round != round {
		log.Debug().
			Str("room_id", room.id).
			Int("round", round).
			Msg("dropping stale next-question timer")
		return
	}
	room.advance = nil
	c.out.ToRoom(room.id, domain.Event{
		Name:    domain.EventNextQuestion,
		Payload: domain.NextQuestionPayload{CurrentQuestion: round},
	})
}

// Disconnect removes a connection from whatever room it is in. The last member
// leaving destroys the room; otherwise the round barrier is re-checked.
func (c *Coordinator) Disconnect(_ context.Context, connID string) error {
	roomID, ok := c.rooms.RoomOf(connID)
	if !ok {
		return domain.ErrRoomNotFound
	}
	c.rooms.Unbind(connID)
	return c.leave(connID, roomID)
}

// leave drops connID from roomID. The connection index is left to the caller.
func (c *Coordinator) leave(connID, roomID string) error {
	room, err := c.lockRoom(roomID)
	if err != nil {
		return err
	}
	defer room.mu.Unlock()

	if !room.isMemberLocked(connID) {
		return domain.ErrNotMember
	}
	delete(room.members, connID)
	delete(room.ready, connID)
	delete(room.answered, connID)
	c.out.Unsubscribe(room.id, connID)

	log.Info().
		Str("room_id", room.id).
		Str("conn_id", connID).
		Int("players", len(room.members)).
		Msg("player left room")

	if len(room.members) == 0 {
		c.destroyLocked(room)
		return nil
	}

	c.out.ToRoom(room.id, domain.Event{
		Name:    domain.EventPlayerLeft,
		Payload: c.playerCount(room),
	})
	if room.phase == domain.PhaseInProgress {
		c.out.ToRoom(room.id, domain.Event{
			Name:    domain.EventPlayerDisconnected,
			Payload: domain.PlayerPayload{PlayerID: connID},
		})
		c.advanceIfAnsweredLocked(room)
	}
	return c.verifyLocked(room)
}

// lockRoom returns the live room locked, or ErrRoomNotFound.
func (c *Coordinator) lockRoom(roomID string) (*Room, error) {
	room, ok := c.rooms.Get(roomID)
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	room.mu.Lock()
	if room.closed {
		room.mu.Unlock()
		return nil, domain.ErrRoomNotFound
	}
	return room, nil
}

// destroyLocked discards the room and everything bound to it.
func (c *Coordinator) destroyLocked(room *Room) {
	room.closed = true
	if room.advance != nil {
		room.advance.Stop()
		room.advance = nil
	}
	for id := range room.members {
		c.rooms.Unbind(id)
		c.out.Unsubscribe(room.id, id)
	}
	c.rooms.Remove(room.id)
	log.Info().Str("room_id", room.id).Msg("room destroyed")
}

// verifyLocked tears the room down when its state no longer holds together.
// The next join to the same key starts from a fresh room.
func (c *Coordinator) verifyLocked(room *Room) error {
	err := room.checkLocked(c.rules.Capacity)
	if err == nil {
		return nil
	}
	log.Error().Err(err).Str("room_id", room.id).Msg("room state corrupted, resetting")
	c.destroyLocked(room)
	return err
}

func (c *Coordinator) playerCount(room *Room) domain.PlayerCountPayload {
	return domain.PlayerCountPayload{
		PlayerCount: len(room.members),
		MaxPlayers:  c.rules.Capacity,
	}
}

// IsStale reports whether err is one of the benign drop outcomes that are
// never surfaced to clients.
func IsStale(err error) bool {
	return errors.Is(err, domain.ErrRoomNotFound) ||
		errors.Is(err, domain.ErrNotMember) ||
		errors.Is(err, domain.ErrNotInLobby) ||
		errors.Is(err, domain.ErrNotEnoughPlayers) ||
		errors.Is(err, domain.ErrStaleRound) ||
		errors.Is(err, domain.ErrAlreadyAnswered)
}
