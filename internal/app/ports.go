package app

import (
	"context"

	"battle-arena/internal/domain"
)

// DuelStore is the authoritative record of every duel. Every state transition
// goes through CompareAndSet so two concurrent writers can never both win.
type DuelStore interface {
	// Create stores a new duel and returns its id, assigning one if empty.
	Create(ctx context.Context, duel domain.Duel) (string, error)
	Get(ctx context.Context, id string) (domain.Duel, error)
	// CompareAndSet applies mutate only while the stored status still equals
	// expected, otherwise it fails with domain.ErrConflict. An error returned
	// by mutate aborts the write and is passed through unchanged.
	CompareAndSet(ctx context.Context, id string, expected domain.Status, mutate func(*domain.Duel) error) (domain.Duel, error)
	// ListForAccount returns the account's duels, newest first.
	ListForAccount(ctx context.Context, accountID string) ([]domain.Duel, error)
}

// QuestionBank serves quiz items per subject. The coordinator only reads it.
type QuestionBank interface {
	// Sample picks up to n distinct question ids for the subject. An empty
	// grade matches every question.
	Sample(ctx context.Context, subjectID, grade string, n int) ([]string, error)
	// CorrectAnswers returns the correct choice per id, in the given order.
	CorrectAnswers(ctx context.Context, questionIDs []string) ([]domain.Choice, error)
	// Questions returns the items for ids, in the given order.
	Questions(ctx context.Context, questionIDs []string) ([]domain.Question, error)
	Subjects(ctx context.Context) ([]domain.Subject, error)
}

// AccountDirectory resolves the accounts allowed to duel.
type AccountDirectory interface {
	Account(ctx context.Context, id string) (domain.Account, error)
	// Classmates lists the accounts in grade, ordered by name. An empty grade
	// lists every account.
	Classmates(ctx context.Context, grade string) ([]domain.Account, error)
}

// ChangeFeed delivers invalidation signals. Delivery is at-least-once with no
// ordering and no payload; subscribers re-read the store on every signal.
type ChangeFeed interface {
	Publish(ctx context.Context, key string) error
	// Subscribe returns a signal channel for key. The caller must invoke the
	// returned cancel function to release it.
	Subscribe(ctx context.Context, key string) (<-chan domain.Change, func(), error)
}
