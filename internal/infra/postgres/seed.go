package postgres

import (
	"context"
	"fmt"

	"battle-arena/internal/domain"
	"github.com/uptrace/bun"
)

type subjectRow struct {
	bun.BaseModel `bun:"table:subjects"`

	ID   string `bun:"id,pk"`
	Name string `bun:"name,notnull"`
}

type accountRow struct {
	bun.BaseModel `bun:"table:accounts"`

	ID       string `bun:"id,pk"`
	FullName string `bun:"full_name,notnull"`
	Grade    string `bun:"grade,notnull"`
}

type questionRow struct {
	bun.BaseModel `bun:"table:questions"`

	ID        string          `bun:"id,pk"`
	SubjectID string          `bun:"subject_id,notnull"`
	Grade     string          `bun:"grade,notnull"`
	Prompt    string          `bun:"prompt,notnull"`
	Options   []domain.Option `bun:"options,type:jsonb"`
	Correct   string          `bun:"correct,notnull"`
}

// Seed upserts subjects, accounts and questions in one transaction.
func Seed(ctx context.Context, db *bun.DB, subjects []domain.Subject, accounts []domain.Account, questions []domain.Question) error {
	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if len(subjects) > 0 {
			rows := make([]subjectRow, len(subjects))
			for i, s := range subjects {
				rows[i] = subjectRow{ID: s.ID, Name: s.Name}
			}
			if _, err := tx.NewInsert().Model(&rows).
				On("CONFLICT (id) DO UPDATE").
				Set("name = EXCLUDED.name").
				Exec(ctx); err != nil {
				return fmt.Errorf("seed subjects: %w", err)
			}
		}

		if len(accounts) > 0 {
			rows := make([]accountRow, len(accounts))
			for i, a := range accounts {
				rows[i] = accountRow{ID: a.ID, FullName: a.FullName, Grade: a.Grade}
			}
			if _, err := tx.NewInsert().Model(&rows).
				On("CONFLICT (id) DO UPDATE").
				Set("full_name = EXCLUDED.full_name").
				Set("grade = EXCLUDED.grade").
				Exec(ctx); err != nil {
				return fmt.Errorf("seed accounts: %w", err)
			}
		}

		if len(questions) > 0 {
			rows := make([]questionRow, len(questions))
			for i, q := range questions {
				options := q.Options
				if options == nil {
					options = []domain.Option{}
				}
				rows[i] = questionRow{
					ID:        q.ID,
					SubjectID: q.SubjectID,
					Grade:     q.Grade,
					Prompt:    q.Prompt,
					Options:   options,
					Correct:   string(q.Correct),
				}
			}
			if _, err := tx.NewInsert().Model(&rows).
				On("CONFLICT (id) DO UPDATE").
				Set("subject_id = EXCLUDED.subject_id").
				Set("grade = EXCLUDED.grade").
				Set("prompt = EXCLUDED.prompt").
				Set("options = EXCLUDED.options").
				Set("correct = EXCLUDED.correct").
				Exec(ctx); err != nil {
				return fmt.Errorf("seed questions: %w", err)
			}
		}
		return nil
	})
}
