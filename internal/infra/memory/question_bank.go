package memory

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"battle-arena/internal/domain"
)

// QuestionBank is a static bank held in memory (useful for tests/demos).
type QuestionBank struct {
	subjects  []domain.Subject
	questions map[string]domain.Question
	order     []string

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuestionBank(subjects []domain.Subject, questions []domain.Question) *QuestionBank {
	b := &QuestionBank{
		subjects:  append([]domain.Subject(nil), subjects...),
		questions: make(map[string]domain.Question, len(questions)),
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, q := range questions {
		if _, dup := b.questions[q.ID]; !dup {
			b.order = append(b.order, q.ID)
		}
		b.questions[q.ID] = q
	}
	return b
}

// Sample draws without replacement from the subject's questions. Questions
// without a grade match every grade.
func (b *QuestionBank) Sample(_ context.Context, subjectID, grade string, n int) ([]string, error) {
	var candidates []string
	for _, id := range b.order {
		q := b.questions[id]
		if q.SubjectID != subjectID {
			continue
		}
		if grade != "" && q.Grade != "" && q.Grade != grade {
			continue
		}
		candidates = append(candidates, id)
	}

	b.mu.Lock()
	b.rnd.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	b.mu.Unlock()

	if n < len(candidates) {
		candidates = candidates[:n]
	}
	return candidates, nil
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

func (b *QuestionBank) Questions(_ context.Context, questionIDs []string) ([]domain.Question, error) {
	out := make([]domain.Question, 0, len(questionIDs))
	for _, id := range questionIDs {
		q, ok := b.questions[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrQuestionNotFound, id)
		}
		q.Options = append([]domain.Option(nil), q.Options...)
		out = append(out, q)
	}
	return out, nil
}

func (b *QuestionBank) Subjects(_ context.Context) ([]domain.Subject, error) {
	return append([]domain.Subject(nil), b.subjects...), nil
}
