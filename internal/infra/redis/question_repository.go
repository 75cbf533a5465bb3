package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
	"trivia-room-service/internal/domain"
	"trivia-room-service/internal/infra/memory"
)

// QuestionRepository caches question banks in Redis as a JSON document per bank
// and falls back to a loader on cache miss:
//
//	SET trivia:bank:{bankID} <json> EX ttl
type QuestionRepository struct {
	client *redis.Client
	loader memory.QuestionLoader
	bankID string
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewQuestionRepository(client *redis.Client, loader memory.QuestionLoader, bankID string, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		client: client,
		loader: loader,
		bankID: bankID,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuestionRepository) Questions(ctx context.Context) ([]domain.QuestionRecord, error) {
	return r.Bank(ctx, r.bankID)
}

func (r *QuestionRepository) Bank(ctx context.Context, bankID string) ([]domain.QuestionRecord, error) {
	if questions, ok := r.cached(ctx, bankID); ok {
		return questions, nil
	}

	result, err, _ := r.sf.Do(bankID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if questions, ok := r.cached(ctx, bankID); ok {
			return questions, nil
		}

		questions, err := r.loader.LoadQuestions(ctx, bankID)
		if err != nil {
			return nil, err
		}
		if err := domain.ValidateQuestions(questions); err != nil {
			return nil, fmt.Errorf("bank %s: %w", bankID, err)
		}

		raw, err := json.Marshal(questions)
		if err != nil {
			return nil, fmt.Errorf("marshal bank %s: %w", bankID, err)
		}
		if err := r.client.Set(ctx, r.bankKey(bankID), raw, r.ttlWithJitter()).Err(); err != nil {
			log.Warn().Err(err).Str("bank_id", bankID).Msg("failed to cache question bank")
		}
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.QuestionRecord), nil
}

func (r *QuestionRepository) cached(ctx context.Context, bankID string) ([]domain.QuestionRecord, bool) {
	raw, err := r.client.Get(ctx, r.bankKey(bankID)).Bytes()
	if err != nil {
		return nil, false
	}
	var questions []domain.QuestionRecord
	if err := json.Unmarshal(raw, &questions); err != nil {
		log.Warn().Err(err).Str("bank_id", bankID).Msg("discarding unreadable cached bank")
		return nil, false
	}
	if domain.ValidateQuestions(questions) != nil {
		return nil, false
	}
	return questions, true
}

func (r *QuestionRepository) bankKey(bankID string) string {
	return "trivia:bank:" + bankID
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
