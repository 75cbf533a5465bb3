package app

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"trivia-room-service/internal/domain"
)

// Room is the state of one trivia session. All fields are guarded by mu and
// only the Coordinator mutates them.
type Room struct {
	id        string
	createdAt time.Time

	mu        sync.Mutex
	closed    bool
	phase     domain.Phase
	questions []domain.QuestionRecord
	round     int
	members   map[string]struct{}
	ready     map[string]struct{}
	answered  map[string]struct{}
	scores    map[string]int
	advance   clockwork.Timer
}

// RoomSnapshot is a read-only copy of a room's state.
type RoomSnapshot struct {
	ID       string         `json:"id"`
	Phase    string         `json:"phase"`
	Round    int            `json:"round"`
	Rounds   int            `json:"rounds"`
	Members  []string       `json:"members"`
	Ready    int            `json:"ready"`
	Answered int            `json:"answered"`
	Scores   map[string]int `json:"scores"`
}

// NewRoom builds a lobby room holding its own copy of questions.
func NewRoom(id string, questions []domain.QuestionRecord) *Room {
	own := make([]domain.QuestionRecord, len(questions))
	copy(own, questions)
	return &Room{
		id:        id,
		createdAt: time.Now(),
		phase:     domain.PhaseLobby,
		questions: own,
		members:   make(map[string]struct{}),
		ready:     make(map[string]struct{}),
		answered:  make(map[string]struct{}),
		scores:    make(map[string]int),
	}
}

// ID returns the room key.
func (r *Room) ID() string {
	return r.id
}

// CreatedAt returns when the room was first referenced.
func (r *Room) CreatedAt() time.Time {
	return r.createdAt
}

// IsEmpty reports whether the room has no members.
func (r *Room) IsEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members) == 0
}

// Snapshot copies the current state.
func (r *Room) Snapshot() RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	members := make([]string, 0, len(r.members))
	for id := range r.members {
		members = append(members, id)
	}
	sort.Strings(members)

	return RoomSnapshot{
		ID:       r.id,
		Phase:    r.phase.String(),
		Round:    r.round,
		Rounds:   len(r.questions),
		Members:  members,
		Ready:    len(r.ready),
		Answered: len(r.answered),
		Scores:   r.scoresLocked(),
	}
}

func (r *Room) isMemberLocked(connID string) bool {
	_, ok := r.members[connID]
	return ok
}

func (r *Room) scoresLocked() map[string]int {
	out := make(map[string]int, len(r.scores))
	for id, score := range r.scores {
		out[id] = score
	}
	return out
}

func (r *Room) questionsLocked() []domain.QuestionRecord {
	out := make([]domain.QuestionRecord, len(r.questions))
	copy(out, r.questions)
	return out
}

// checkLocked verifies the room invariants.
func (r *Room) checkLocked(capacity int) error {
	if len(r.members) > capacity {
		return fmt.Errorf("%w: %d members exceed capacity %d", domain.ErrInvariantBroken, len(r.members), capacity)
	}
	for id := range r.ready {
		if !r.isMemberLocked(id) {
			return fmt.Errorf("%w: ready player %s is not a member", domain.ErrInvariantBroken, id)
		}
	}
	for id := range r.answered {
		if !r.isMemberLocked(id) {
			return fmt.Errorf("%w: answered player %s is not a member", domain.ErrInvariantBroken, id)
		}
	}
	if r.round < 0 || r.round > len(r.questions) {
		return fmt.Errorf("%w: round %d outside [0,%d]", domain.ErrInvariantBroken, r.round, len(r.questions))
	}
	if r.phase == domain.PhaseLobby && (r.round != 0 || len(r.scores) != 0) {
		return fmt.Errorf("%w: lobby with round %d and %d scores", domain.ErrInvariantBroken, r.round, len(r.scores))
	}
	return nil
}
