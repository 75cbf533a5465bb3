package memory

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"trivia-room-service/internal/domain"
)

// QuestionLoader fetches a question bank from a backing store (e.g., Postgres).
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, bankID string) ([]domain.QuestionRecord, error)
}

// QuestionRepository caches question banks with TTL to avoid repeated DB hits.
type QuestionRepository struct {
	loader QuestionLoader
	bankID string
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedBank
}

type cachedBank struct {
	questions []domain.QuestionRecord
	expiresAt time.Time
}

func NewQuestionRepository(loader QuestionLoader, bankID string, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		loader: loader,
		bankID: bankID,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedBank),
	}
}

// Questions returns the configured bank. The slice is shared; callers copy before mutating.
func (r *QuestionRepository) Questions(ctx context.Context) ([]domain.QuestionRecord, error) {
	return r.Bank(ctx, r.bankID)
}

// Bank returns the named bank, loading it on a cache miss.
func (r *QuestionRepository) Bank(ctx context.Context, bankID string) ([]domain.QuestionRecord, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[bankID]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.questions, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(bankID, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[bankID]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.questions, nil
		}
		r.mu.RUnlock()

		questions, err := r.loader.LoadQuestions(ctx, bankID)
		if err != nil {
			return nil, err
		}
		if err := domain.ValidateQuestions(questions); err != nil {
			return nil, fmt.Errorf("bank %s: %w", bankID, err)
		}

		r.mu.Lock()
		r.cache[bankID] = cachedBank{
			questions: questions,
			expiresAt: now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.QuestionRecord), nil
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticQuestionLoader is a loader backed by an in-memory map (useful for tests/demos).
type StaticQuestionLoader struct {
	banks map[string][]domain.QuestionRecord
}

func NewStaticQuestionLoader(banks map[string][]domain.QuestionRecord) *StaticQuestionLoader {
	return &StaticQuestionLoader{banks: banks}
}

func (l *StaticQuestionLoader) LoadQuestions(_ context.Context, bankID string) ([]domain.QuestionRecord, error) {
	if questions, ok := l.banks[bankID]; ok {
		return questions, nil
	}
	return nil, domain.ErrQuestionBankNotFound
}
