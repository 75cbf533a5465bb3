package cli

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"trivia-room-service/internal/infra/memory"
	"trivia-room-service/internal/infra/postgres"
)

// NewSeedCmd writes the built-in questions into Postgres under the configured bank.
func NewSeedCmd(configPath *string) *cobra.Command {
	var bankID string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert the built-in question bank into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if bankID == "" {
				bankID = bankIDOf(cfg)
			}

			db, err := openBunDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			questions := memory.DefaultQuestions()
			if err := postgres.UpsertBank(cmd.Context(), db, bankID, questions); err != nil {
				return err
			}
			log.Info().Str("bank_id", bankID).Int("questions", len(questions)).Msg("question bank seeded")
			return nil
		},
	}
	cmd.Flags().StringVar(&bankID, "bank", "", "bank id to write (defaults to questions.bank)")
	return cmd
}
