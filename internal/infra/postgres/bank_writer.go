package postgres

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"trivia-room-service/internal/domain"
)

// QuestionBankRow maps the question_banks table.
type QuestionBankRow struct {
	bun.BaseModel `bun:"table:question_banks"`

	ID   string                  `bun:"id,pk"`
	Data []domain.QuestionRecord `bun:"data,type:jsonb"`
}

// UpsertBank stores or replaces a question bank.
func UpsertBank(ctx context.Context, db bun.IDB, bankID string, questions []domain.QuestionRecord) error {
	if err := domain.ValidateQuestions(questions); err != nil {
		return fmt.Errorf("bank %s: %w", bankID, err)
	}
	row := &QuestionBankRow{ID: bankID, Data: questions}
	_, err := db.NewInsert().
		Model(row).
		On("CONFLICT (id) DO UPDATE").
		Set("data = EXCLUDED.data").
		Set("updated_at = now()").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert bank %s: %w", bankID, err)
	}
	return nil
}
