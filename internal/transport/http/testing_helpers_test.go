package http

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"battle-arena/internal/app"
	"battle-arena/internal/domain"
	"battle-arena/internal/infra/memory"
)

func newTestServer(t *testing.T, checks map[string]Checker) (*httptest.Server, *app.DuelService) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	options := []domain.Option{{ID: "A", Text: "a"}, {ID: "B", Text: "b"}, {ID: "C", Text: "c"}}
	bank := memory.NewQuestionBank(
		[]domain.Subject{{ID: "math", Name: "Mathematics"}},
		[]domain.Question{
			{ID: "q1", SubjectID: "math", Prompt: "1 + 1?", Options: options, Correct: "A"},
			{ID: "q2", SubjectID: "math", Prompt: "2 + 2?", Options: options, Correct: "B"},
			{ID: "q3", SubjectID: "math", Prompt: "3 + 3?", Options: options, Correct: "C"},
		},
	)
	accounts := memory.NewAccountDirectory([]domain.Account{
		{ID: "alice", FullName: "Alice", Grade: "7"},
		{ID: "bob", FullName: "Bob", Grade: "7"},
	})
	service := app.NewDuelService(memory.NewDuelStore(), bank, accounts, memory.NewChangeFeed(), app.Options{
		SampleSize: 3,
		Logger:     logger,
	})
	server := httptest.NewServer(NewRouter(service, logger, checks))
	t.Cleanup(server.Close)
	return server, service
}

// correctAnswers answers every question of the duel correctly.
func correctAnswers(t *testing.T, service *app.DuelService, duelID string) []domain.Answer {
	t.Helper()
	duel, err := service.Get(context.Background(), duelID)
	if err != nil {
		t.Fatalf("get duel: %v", err)
	}
	key := map[string]domain.Choice{"q1": "A", "q2": "B", "q3": "C"}
	out := make([]domain.Answer, len(duel.QuestionIDs))
	for i, q := range duel.QuestionIDs {
		out[i] = domain.Answer{QuestionID: q, Choice: key[q]}
	}
	return out
}
