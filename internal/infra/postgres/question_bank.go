package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"battle-arena/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// QuestionBank reads quiz items from the questions table.
type QuestionBank struct {
	pool *pgxpool.Pool
}

func NewQuestionBank(pool *pgxpool.Pool) *QuestionBank {
	return &QuestionBank{pool: pool}
}

func (b *QuestionBank) Sample(ctx context.Context, subjectID, grade string, n int) ([]string, error) {
	rows, err := b.pool.Query(ctx, `SELECT id FROM questions
		WHERE subject_id = $1 AND ($2 = '' OR grade = '' OR grade = $2)
		ORDER BY random() LIMIT $3`, subjectID, grade, n)
	if err != nil {
		return nil, fmt.Errorf("sample questions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan question id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (b *QuestionBank) CorrectAnswers(ctx context.Context, questionIDs []string) ([]domain.Choice, error) {
	questions, err := b.Questions(ctx, questionIDs)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Choice, len(questions))
	for i, q := range questions {
		out[i] = q.Correct
	}
	return out, nil
}

// Questions loads the items and returns them in the order of questionIDs.
func (b *QuestionBank) Questions(ctx context.Context, questionIDs []string) ([]domain.Question, error) {
	rows, err := b.pool.Query(ctx, `SELECT id, subject_id, grade, prompt, options, correct
		FROM questions WHERE id = ANY($1)`, questionIDs)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]domain.Question, len(questionIDs))
	for rows.Next() {
		var (
			q       domain.Question
			options []byte
			correct string
		)
		if err := rows.Scan(&q.ID, &q.SubjectID, &q.Grade, &q.Prompt, &options, &correct); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if err := json.Unmarshal(options, &q.Options); err != nil {
			return nil, fmt.Errorf("unmarshal options of %s: %w", q.ID, err)
		}
		q.Correct = domain.Choice(correct)
		byID[q.ID] = q
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]domain.Question, 0, len(questionIDs))
	for _, id := range questionIDs {
		q, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrQuestionNotFound, id)
		}
		out = append(out, q)
	}
	return out, nil
}

func (b *QuestionBank) Subjects(ctx context.Context) ([]domain.Subject, error) {
	rows, err := b.pool.Query(ctx, `SELECT id, name FROM subjects ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	defer rows.Close()

	var out []domain.Subject
	for rows.Next() {
		var s domain.Subject
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, fmt.Errorf("scan subject: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
