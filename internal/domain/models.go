package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// OptionCount is the number of options every question carries.
const OptionCount = 4

// QuestionRecord is a single multiple choice question.
type QuestionRecord struct {
	Text          string              `json:"question"`
	Options       [OptionCount]string `json:"options"`
	CorrectOption int                 `json:"correct"`
}

// Validate reports whether the record can be used in a game.
func (q QuestionRecord) Validate() error {
	if q.Text == "" {
		return fmt.Errorf("question text is empty")
	}
	for i, option := range q.Options {
		if option == "" {
			return fmt.Errorf("question %q: option %d is empty", q.Text, i)
		}
	}
	if q.CorrectOption < 0 || q.CorrectOption >= OptionCount {
		return fmt.Errorf("question %q: correct option %d out of range", q.Text, q.CorrectOption)
	}
	return nil
}

// UnmarshalJSON rejects option lists that do not hold exactly OptionCount entries.
func (q *QuestionRecord) UnmarshalJSON(data []byte) error {
	var raw struct {
		Text          string   `json:"question"`
		Options       []string `json:"options"`
		CorrectOption int      `json:"correct"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw.Options) != OptionCount {
		return fmt.Errorf("question %q: expected %d options, got %d", raw.Text, OptionCount, len(raw.Options))
	}
	q.Text = raw.Text
	copy(q.Options[:], raw.Options)
	q.CorrectOption = raw.CorrectOption
	return nil
}

// ValidateQuestions checks a whole bank.
func ValidateQuestions(questions []QuestionRecord) error {
	if len(questions) == 0 {
		return ErrEmptyQuestionBank
	}
	for i, q := range questions {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("question %d: %w", i, err)
		}
	}
	return nil
}

// Phase is the lifecycle stage of a room. It only ever moves forward.
type Phase int

const (
	PhaseLobby Phase = iota
	PhaseInProgress
	PhaseCompleted
)

func (p Phase) String() string {
	switch p {
	case PhaseLobby:
		return "lobby"
	case PhaseInProgress:
		return "in-progress"
	case PhaseCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Rules are the tunable constants of a session.
type Rules struct {
	Capacity          int
	MinPlayers        int
	Rounds            int
	NextQuestionDelay time.Duration
	AutoStart         bool
}

// DefaultRules returns capacity 5, two players to start, ten rounds and a two second pause.
func DefaultRules() Rules {
	return Rules{
		Capacity:          5,
		MinPlayers:        2,
		Rounds:            10,
		NextQuestionDelay: 2 * time.Second,
	}
}

// AnswerSubmission is one player's answer to one round.
type AnswerSubmission struct {
	RoomID        string
	QuestionIndex int
	AnswerIndex   int
	ElapsedMs     int64
}
