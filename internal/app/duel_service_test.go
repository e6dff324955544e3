package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"battle-arena/internal/app"
	"battle-arena/internal/domain"
	"battle-arena/internal/infra/memory"
)

func TestCreateSamplesDistinctQuestions(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t, memory.NewDuelStore())

	id, err := service.Create(ctx, "alice", "bob", "math")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	duel, err := service.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if duel.Status != domain.StatusPending {
		t.Fatalf("expected pending, got %s", duel.Status)
	}
	if len(duel.QuestionIDs) != 5 {
		t.Fatalf("expected 5 questions, got %d", len(duel.QuestionIDs))
	}
	seen := map[string]bool{}
	for _, q := range duel.QuestionIDs {
		if seen[q] {
			t.Fatalf("question %s sampled twice", q)
		}
		seen[q] = true
	}
	if duel.WinnerID != "" || duel.ChallengerAnswers != nil || duel.OpponentAnswers != nil {
		t.Fatalf("new duel must carry no answers or winner: %+v", duel)
	}
}

func TestCreateRejectsInvalidDuels(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t, memory.NewDuelStore())

	cases := []struct {
		name                            string
		challenger, opponent, subjectID string
	}{
		{"same account", "alice", "alice", "math"},
		{"unknown opponent", "alice", "ghost", "math"},
		{"different grade", "alice", "carol", "math"},
		{"too few questions", "alice", "bob", "history"},
		{"missing subject", "alice", "bob", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := service.Create(ctx, tc.challenger, tc.opponent, tc.subjectID); !errors.Is(err, domain.ErrInvalidDuel) {
				t.Fatalf("expected invalid duel, got %v", err)
			}
		})
	}
}

func TestChallengerScoresWhileOpponentPending(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t, memory.NewDuelStore())
	id := mustCreate(t, service)
	duel, _ := service.Get(ctx, id)

	res, err := service.SubmitAnswers(ctx, id, "alice", keyed(duel, "A", "B", "C", "A", "B"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Score != 3 || res.Total != 5 {
		t.Fatalf("expected 3/5, got %d/%d", res.Score, res.Total)
	}
	want := []bool{true, false, true, true, false}
	for i := range want {
		if res.Correct[i] != want[i] {
			t.Fatalf("correctness mismatch at %d: %v", i, res.Correct)
		}
	}
	if res.Status != domain.StatusOngoing || res.WinnerID != "" {
		t.Fatalf("expected ongoing without winner, got %s/%q", res.Status, res.WinnerID)
	}

	stored, _ := service.Get(ctx, id)
	if stored.Status != domain.StatusOngoing || stored.WinnerID != "" {
		t.Fatalf("duel should wait for the opponent, got %+v", stored)
	}
}

func TestOpponentCompletesAndWins(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t, memory.NewDuelStore())
	id := mustCreate(t, service)
	duel, _ := service.Get(ctx, id)

	if _, err := service.SubmitAnswers(ctx, id, "alice", keyed(duel, "A", "B", "C", "A", "B")); err != nil {
		t.Fatalf("challenger submit: %v", err)
	}
	res, err := service.SubmitAnswers(ctx, id, "bob", keyed(duel, "A", "A", "C", "B", "C"))
	if err != nil {
		t.Fatalf("opponent submit: %v", err)
	}
	if res.Score != 4 {
		t.Fatalf("expected 4/5, got %d", res.Score)
	}
	if res.Status != domain.StatusCompleted || res.WinnerID != "bob" {
		t.Fatalf("expected bob to win, got %s/%q", res.Status, res.WinnerID)
	}

	stored, _ := service.Get(ctx, id)
	if stored.Status != domain.StatusCompleted || stored.WinnerID != "bob" {
		t.Fatalf("unexpected stored duel %+v", stored)
	}
	if len(stored.ChallengerAnswers) != 5 || len(stored.OpponentAnswers) != 5 {
		t.Fatalf("both answer sets must be stored")
	}
}

func TestTieLeavesWinnerEmpty(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t, memory.NewDuelStore())
	id := mustCreate(t, service)
	duel, _ := service.Get(ctx, id)

	if _, err := service.SubmitAnswers(ctx, id, "bob", keyed(duel, "A", "A", "C", "B", "B")); err != nil {
		t.Fatalf("opponent submit: %v", err)
	}
	res, err := service.SubmitAnswers(ctx, id, "alice", keyed(duel, "A", "B", "C", "A", "B"))
	if err != nil {
		t.Fatalf("challenger submit: %v", err)
	}
	if res.Status != domain.StatusCompleted || res.WinnerID != "" {
		t.Fatalf("expected completed tie, got %s/%q", res.Status, res.WinnerID)
	}
}

func TestDeclineBlocksSubmissions(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t, memory.NewDuelStore())
	id := mustCreate(t, service)
	duel, _ := service.Get(ctx, id)

	if err := service.Decline(ctx, id, "alice"); !errors.Is(err, domain.ErrNotAllowed) {
		t.Fatalf("challenger must not decline, got %v", err)
	}
	if err := service.Decline(ctx, id, "bob"); err != nil {
		t.Fatalf("decline: %v", err)
	}
	for _, who := range []string{"alice", "bob"} {
		if _, err := service.SubmitAnswers(ctx, id, who, keyed(duel, "A", "A", "A", "A", "A")); !errors.Is(err, domain.ErrNotAllowed) {
			t.Fatalf("%s: expected not allowed, got %v", who, err)
		}
	}
	stored, _ := service.Get(ctx, id)
	if stored.Status != domain.StatusDeclined {
		t.Fatalf("expected declined, got %s", stored.Status)
	}
}

func TestDeclineIsIdempotent(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t, memory.NewDuelStore())
	id := mustCreate(t, service)

	for i := 0; i < 2; i++ {
		if err := service.Decline(ctx, id, "bob"); err != nil {
			t.Fatalf("decline %d: %v", i, err)
		}
	}
	stored, _ := service.Get(ctx, id)
	if stored.Status != domain.StatusDeclined || stored.Revision != 2 {
		t.Fatalf("expected one declining write, got %s at revision %d", stored.Status, stored.Revision)
	}
}

func TestDeclineCompletedDuelNotAllowed(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t, memory.NewDuelStore())
	id := mustCreate(t, service)
	duel, _ := service.Get(ctx, id)
	_, _ = service.SubmitAnswers(ctx, id, "alice", keyed(duel, "A", "A", "A", "A", "A"))
	_, _ = service.SubmitAnswers(ctx, id, "bob", keyed(duel, "A", "A", "A", "A", "A"))

	if err := service.Decline(ctx, id, "bob"); !errors.Is(err, domain.ErrNotAllowed) {
		t.Fatalf("expected not allowed, got %v", err)
	}
}

func TestDeclineLosingRaceToCompletionIsNoop(t *testing.T) {
	ctx := context.Background()
	inner := memory.NewDuelStore()
	store := &hookStore{DuelStore: inner}
	service, _ := newTestService(t, store)
	id := mustCreate(t, service)
	duel, _ := service.Get(ctx, id)
	if _, err := service.SubmitAnswers(ctx, id, "alice", keyed(duel, "A", "A", "A", "A", "A")); err != nil {
		t.Fatalf("submit: %v", err)
	}

	// The opponent's own submission lands between Decline's read and its write.
	store.beforeCAS = func() {
		_, err := inner.CompareAndSet(ctx, id, domain.StatusOngoing, func(d *domain.Duel) error {
			d.OpponentAnswers = []domain.Choice{"A", "A", "A", "A", "A"}
			d.Status = domain.StatusCompleted
			return nil
		})
		if err != nil {
			t.Errorf("racing completion: %v", err)
		}
	}
	if err := service.Decline(ctx, id, "bob"); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
	stored, _ := service.Get(ctx, id)
	if stored.Status != domain.StatusCompleted {
		t.Fatalf("completion must win, got %s", stored.Status)
	}
}

func TestResubmissionRejectedWithoutMutation(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t, memory.NewDuelStore())
	id := mustCreate(t, service)
	duel, _ := service.Get(ctx, id)

	if _, err := service.SubmitAnswers(ctx, id, "alice", keyed(duel, "A", "B", "C", "A", "B")); err != nil {
		t.Fatalf("submit: %v", err)
	}
	before, _ := service.Get(ctx, id)

	if _, err := service.SubmitAnswers(ctx, id, "alice", keyed(duel, "A", "A", "C", "A", "C")); !errors.Is(err, domain.ErrAlreadySubmitted) {
		t.Fatalf("expected already submitted, got %v", err)
	}
	after, _ := service.Get(ctx, id)
	if after.Revision != before.Revision {
		t.Fatalf("resubmission wrote to the store")
	}
	for i := range before.ChallengerAnswers {
		if before.ChallengerAnswers[i] != after.ChallengerAnswers[i] {
			t.Fatalf("stored answers changed")
		}
	}

	_, _ = service.SubmitAnswers(ctx, id, "bob", keyed(duel, "A", "A", "A", "A", "A"))
	if _, err := service.SubmitAnswers(ctx, id, "bob", keyed(duel, "A", "A", "A", "A", "A")); !errors.Is(err, domain.ErrAlreadySubmitted) {
		t.Fatalf("expected already submitted after completion, got %v", err)
	}
}

func TestDeclinedDuelRejectsResubmission(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t, memory.NewDuelStore())
	id := mustCreate(t, service)
	duel, _ := service.Get(ctx, id)

	if _, err := service.SubmitAnswers(ctx, id, "alice", keyed(duel, "A", "A", "A", "A", "A")); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := service.Decline(ctx, id, "bob"); err != nil {
		t.Fatalf("decline: %v", err)
	}
	before, _ := service.Get(ctx, id)

	for _, who := range []string{"alice", "bob"} {
		if _, err := service.SubmitAnswers(ctx, id, who, keyed(duel, "B", "B", "B", "B", "B")); !errors.Is(err, domain.ErrNotAllowed) {
			t.Fatalf("%s: expected not allowed on a declined duel, got %v", who, err)
		}
	}
	after, _ := service.Get(ctx, id)
	if after.Revision != before.Revision || after.ChallengerAnswers[0] != "A" {
		t.Fatalf("declined duel was modified: %+v", after)
	}
}

func TestBankFailureLeavesDuelUntouched(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDuelStore()
	accounts := memory.NewAccountDirectory([]domain.Account{
		{ID: "alice", FullName: "Alice", Grade: "7"},
		{ID: "bob", FullName: "Bob", Grade: "7"},
	})
	bank := answerlessBank{orderedBank{testBank()}}
	service := app.NewDuelService(store, bank, accounts, memory.NewChangeFeed(), app.Options{SampleSize: 5})
	id := mustCreate(t, service)
	duel, _ := service.Get(ctx, id)

	_, err := service.SubmitAnswers(ctx, id, "alice", keyed(duel, "A", "A", "A", "A", "A"))
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	stored, _ := service.Get(ctx, id)
	if stored.Status != domain.StatusPending || stored.ChallengerAnswers != nil || stored.Revision != 1 {
		t.Fatalf("failed submission must not write, got %+v", stored)
	}
}

func TestAcceptRaceDoesNotUseUpRetry(t *testing.T) {
	ctx := context.Background()
	inner := memory.NewDuelStore()
	store := &hookStore{DuelStore: inner}
	service, _ := newTestService(t, store)
	id := mustCreate(t, service)
	duel, _ := service.Get(ctx, id)

	// Accept lands before alice's first write, bob's submission before her retry.
	store.beforeCAS = func() {
		if _, err := inner.CompareAndSet(ctx, id, domain.StatusPending, func(d *domain.Duel) error {
			d.Status = domain.StatusOngoing
			return nil
		}); err != nil {
			t.Errorf("racing accept: %v", err)
		}
		store.beforeCAS = func() {
			if _, err := inner.CompareAndSet(ctx, id, domain.StatusOngoing, func(d *domain.Duel) error {
				d.OpponentAnswers = []domain.Choice{"A", "A", "A", "A", "A"}
				return nil
			}); err != nil {
				t.Errorf("racing submission: %v", err)
			}
		}
	}

	res, err := service.SubmitAnswers(ctx, id, "alice", keyed(duel, "A", "A", "C", "A", "C"))
	if err != nil {
		t.Fatalf("expected the submission to complete the duel, got %v", err)
	}
	if res.Status != domain.StatusCompleted || res.WinnerID != "alice" || res.Score != 5 {
		t.Fatalf("unexpected result %+v", res)
	}
	stored, _ := service.Get(ctx, id)
	if stored.Revision != 4 {
		t.Fatalf("expected revision 4, got %d", stored.Revision)
	}
}

func TestMalformedSubmissions(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t, memory.NewDuelStore())
	id := mustCreate(t, service)
	duel, _ := service.Get(ctx, id)

	short := keyed(duel, "A", "B", "C", "A", "B")[:4]
	dup := keyed(duel, "A", "B", "C", "A", "B")
	dup[1].QuestionID = dup[0].QuestionID
	foreign := keyed(duel, "A", "B", "C", "A", "B")
	foreign[2].QuestionID = "not-in-duel"

	for name, answers := range map[string][]domain.Answer{"short": short, "duplicate": dup, "foreign": foreign} {
		if _, err := service.SubmitAnswers(ctx, id, "alice", answers); !errors.Is(err, domain.ErrMalformedSubmission) {
			t.Fatalf("%s: expected malformed submission, got %v", name, err)
		}
	}
	if _, err := service.SubmitAnswers(ctx, id, "carol", keyed(duel, "A", "B", "C", "A", "B")); !errors.Is(err, domain.ErrNotAllowed) {
		t.Fatalf("outsider: expected not allowed, got %v", err)
	}
	stored, _ := service.Get(ctx, id)
	if stored.Revision != 1 {
		t.Fatalf("rejected submissions must not write")
	}
}

func TestConcurrentSubmissionsCompleteExactlyOnce(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t, memory.NewDuelStore())

	for i := 0; i < 50; i++ {
		id := mustCreate(t, service)
		duel, _ := service.Get(ctx, id)

		var wg sync.WaitGroup
		results := make([]domain.SubmitResult, 2)
		errs := make([]error, 2)
		for n, who := range []string{"alice", "bob"} {
			wg.Add(1)
			go func(n int, who string) {
				defer wg.Done()
				results[n], errs[n] = service.SubmitAnswers(ctx, id, who, keyed(duel, "A", "A", "C", "A", "C"))
			}(n, who)
		}
		wg.Wait()

		completed := 0
		for n := range results {
			if errs[n] != nil {
				t.Fatalf("round %d: submit failed: %v", i, errs[n])
			}
			if results[n].Status == domain.StatusCompleted {
				completed++
			}
		}
		if completed != 1 {
			t.Fatalf("round %d: expected exactly one completing submission, got %d", i, completed)
		}
		stored, _ := service.Get(ctx, id)
		if stored.Status != domain.StatusCompleted || stored.WinnerID != "" || stored.Revision != 3 {
			t.Fatalf("round %d: unexpected final duel %+v", i, stored)
		}
	}
}

func TestSingleConflictIsRetried(t *testing.T) {
	ctx := context.Background()
	store := &hookStore{DuelStore: memory.NewDuelStore(), conflicts: 1}
	service, _ := newTestService(t, store)
	id := mustCreate(t, service)
	duel, _ := service.Get(ctx, id)

	if _, err := service.SubmitAnswers(ctx, id, "alice", keyed(duel, "A", "A", "A", "A", "A")); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
}

func TestSecondConflictIsCorruption(t *testing.T) {
	ctx := context.Background()
	store := &hookStore{DuelStore: memory.NewDuelStore(), conflicts: 2}
	service, _ := newTestService(t, store)
	id := mustCreate(t, service)
	duel, _ := service.Get(ctx, id)

	_, err := service.SubmitAnswers(ctx, id, "alice", keyed(duel, "A", "A", "A", "A", "A"))
	if !errors.Is(err, domain.ErrCorruptedDuel) {
		t.Fatalf("expected corrupted duel, got %v", err)
	}
	if errors.Is(err, domain.ErrConflict) {
		t.Fatalf("conflicts must never leave the coordinator")
	}
}

func TestStoreFailureIsUnavailable(t *testing.T) {
	ctx := context.Background()
	store := &hookStore{DuelStore: memory.NewDuelStore(), fail: errors.New("connection reset")}
	service, _ := newTestService(t, store)

	if _, err := service.Create(ctx, "alice", "bob", "math"); !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if _, err := service.Get(ctx, "missing"); !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestGetUnknownDuel(t *testing.T) {
	service, _ := newTestService(t, memory.NewDuelStore())
	if _, err := service.Get(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAcceptMovesPendingToOngoing(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t, memory.NewDuelStore())
	id := mustCreate(t, service)

	if _, err := service.Accept(ctx, id, "alice"); !errors.Is(err, domain.ErrNotAllowed) {
		t.Fatalf("challenger must not accept, got %v", err)
	}
	duel, err := service.Accept(ctx, id, "bob")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if duel.Status != domain.StatusOngoing {
		t.Fatalf("expected ongoing, got %s", duel.Status)
	}
	if _, err := service.Accept(ctx, id, "bob"); err != nil {
		t.Fatalf("second accept should be a no-op, got %v", err)
	}

	// Both sides can still play an accepted duel.
	res, err := service.SubmitAnswers(ctx, id, "bob", keyed(duel, "A", "A", "C", "A", "C"))
	if err != nil || res.Status != domain.StatusOngoing {
		t.Fatalf("first submission after accept: %+v %v", res, err)
	}
	res, err = service.SubmitAnswers(ctx, id, "alice", keyed(duel, "A", "B", "C", "A", "B"))
	if err != nil || res.Status != domain.StatusCompleted || res.WinnerID != "bob" {
		t.Fatalf("second submission after accept: %+v %v", res, err)
	}
}

func TestListAndPendingCount(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	service, _ := newTestServiceWithClock(t, memory.NewDuelStore(), func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	})

	first := mustCreate(t, service)
	second := mustCreate(t, service)
	third := mustCreate(t, service)
	_ = service.Decline(ctx, third, "bob")

	list, err := service.List(ctx, "bob")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 || list[0].ID != third || list[1].ID != second || list[2].ID != first {
		t.Fatalf("expected newest first, got %+v", list)
	}

	duel, _ := service.Get(ctx, second)
	_, _ = service.SubmitAnswers(ctx, second, "bob", keyed(duel, "A", "A", "A", "A", "A"))

	n, err := service.PendingCount(ctx, "bob")
	if err != nil {
		t.Fatalf("pending count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 pending challenge, got %d", n)
	}
	if n, _ := service.PendingCount(ctx, "alice"); n != 0 {
		t.Fatalf("challenger has no incoming challenges, got %d", n)
	}
}

func TestOpponentsAreClassmates(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t, memory.NewDuelStore())

	opponents, err := service.Opponents(ctx, "alice")
	if err != nil {
		t.Fatalf("opponents: %v", err)
	}
	if len(opponents) != 1 || opponents[0].ID != "bob" {
		t.Fatalf("expected only bob, got %+v", opponents)
	}
	if opponents, _ := service.Opponents(ctx, "carol"); len(opponents) != 0 {
		t.Fatalf("carol has no classmates, got %+v", opponents)
	}
	if _, err := service.Opponents(ctx, "nobody"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestQuestionsHideCorrectAnswers(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t, memory.NewDuelStore())
	id := mustCreate(t, service)
	duel, _ := service.Get(ctx, id)

	questions, err := service.Questions(ctx, id, "bob")
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	if len(questions) != len(duel.QuestionIDs) {
		t.Fatalf("expected %d questions, got %d", len(duel.QuestionIDs), len(questions))
	}
	for i, q := range questions {
		if q.ID != duel.QuestionIDs[i] {
			t.Fatalf("questions out of canonical order at %d", i)
		}
		if q.Correct != "" {
			t.Fatalf("correct answer leaked for %s", q.ID)
		}
	}
	if _, err := service.Questions(ctx, id, "carol"); !errors.Is(err, domain.ErrNotAllowed) {
		t.Fatalf("expected not allowed, got %v", err)
	}
}

func TestWritesPublishChanges(t *testing.T) {
	ctx := context.Background()
	service, feed := newTestService(t, memory.NewDuelStore())

	list, cancel, err := service.SubscribeAccount(ctx, "bob")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()
	if initial := <-list; len(initial) != 0 {
		t.Fatalf("expected empty initial list, got %d", len(initial))
	}

	id := mustCreate(t, service)
	got := receive(t, list)
	if len(got) != 1 || got[0].ID != id {
		t.Fatalf("expected the new duel, got %+v", got)
	}

	if _, _, err := service.SubscribeDuel(ctx, id, "carol"); !errors.Is(err, domain.ErrNotAllowed) {
		t.Fatalf("outsider must not watch the duel, got %v", err)
	}
	if feed.Subscribers(domain.DuelKey(id)) != 0 {
		t.Fatalf("rejected watch must not keep a subscription")
	}

	duels, cancelDuel, err := service.SubscribeDuel(ctx, id, "bob")
	if err != nil {
		t.Fatalf("subscribe duel: %v", err)
	}
	if initial := <-duels; initial.Status != domain.StatusPending {
		t.Fatalf("expected pending snapshot, got %s", initial.Status)
	}

	if err := service.Decline(ctx, id, "bob"); err != nil {
		t.Fatalf("decline: %v", err)
	}
	if d := receive(t, duels); d.Status != domain.StatusDeclined {
		t.Fatalf("expected declined refetch, got %s", d.Status)
	}

	cancelDuel()
	if feed.Subscribers(domain.DuelKey(id)) != 0 {
		t.Fatalf("cancel must release the feed subscription")
	}
	if _, ok := <-duels; ok {
		t.Fatalf("expected closed stream after cancel")
	}
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatalf("stream closed")
		}
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for update")
	}
	var zero T
	return zero
}

func mustCreate(t *testing.T, service *app.DuelService) string {
	t.Helper()
	id, err := service.Create(context.Background(), "alice", "bob", "math")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return id
}

// keyed builds a submission from choices in canonical order, listed in
// reverse so the service has to reorder by question id.
func keyed(duel domain.Duel, choices ...domain.Choice) []domain.Answer {
	out := make([]domain.Answer, 0, len(choices))
	for i := len(choices) - 1; i >= 0; i-- {
		out = append(out, domain.Answer{QuestionID: duel.QuestionIDs[i], Choice: choices[i]})
	}
	return out
}

func newTestService(t *testing.T, store app.DuelStore) (*app.DuelService, *memory.ChangeFeed) {
	return newTestServiceWithClock(t, store, nil)
}

func newTestServiceWithClock(t *testing.T, store app.DuelStore, now func() time.Time) (*app.DuelService, *memory.ChangeFeed) {
	t.Helper()
	feed := memory.NewChangeFeed()
	accounts := memory.NewAccountDirectory([]domain.Account{
		{ID: "alice", FullName: "Alice", Grade: "7"},
		{ID: "bob", FullName: "Bob", Grade: "7"},
		{ID: "carol", FullName: "Carol", Grade: "8"},
	})
	service := app.NewDuelService(store, orderedBank{testBank()}, accounts, feed, app.Options{SampleSize: 5, Now: now})
	return service, feed
}

// orderedBank samples the first n questions so tests know the canonical
// correct sequence: A, A, C, A, C.
type orderedBank struct {
	*memory.QuestionBank
}

func (b orderedBank) Sample(ctx context.Context, subjectID, grade string, n int) ([]string, error) {
	if subjectID != "math" {
		return b.QuestionBank.Sample(ctx, subjectID, grade, n)
	}
	ids := []string{"m1", "m2", "m3", "m4", "m5", "m6"}
	if n < len(ids) {
		ids = ids[:n]
	}
	return ids, nil
}

func testBank() *memory.QuestionBank {
	options := []domain.Option{{ID: "A", Text: "a"}, {ID: "B", Text: "b"}, {ID: "C", Text: "c"}}
	question := func(id, subject string, correct domain.Choice) domain.Question {
		return domain.Question{ID: id, SubjectID: subject, Prompt: "prompt " + id, Options: options, Correct: correct}
	}
	return memory.NewQuestionBank(
		[]domain.Subject{{ID: "math", Name: "Mathematics"}, {ID: "history", Name: "History"}},
		[]domain.Question{
			question("m1", "math", "A"),
			question("m2", "math", "A"),
			question("m3", "math", "C"),
			question("m4", "math", "A"),
			question("m5", "math", "C"),
			question("m6", "math", "B"),
			question("h1", "history", "A"),
		},
	)
}

// answerlessBank cannot reach the answer key.
type answerlessBank struct {
	orderedBank
}

func (answerlessBank) CorrectAnswers(context.Context, []string) ([]domain.Choice, error) {
	return nil, errors.New("bank down")
}

// hookStore injects conflicts, failures and racing writes around the
// wrapped store's compare-and-set.
type hookStore struct {
	app.DuelStore
	mu        sync.Mutex
	conflicts int
	fail      error
	beforeCAS func()
}

func (s *hookStore) Create(ctx context.Context, duel domain.Duel) (string, error) {
	if s.fail != nil {
		return "", s.fail
	}
	return s.DuelStore.Create(ctx, duel)
}

func (s *hookStore) Get(ctx context.Context, id string) (domain.Duel, error) {
	if s.fail != nil {
		return domain.Duel{}, s.fail
	}
	return s.DuelStore.Get(ctx, id)
}

func (s *hookStore) CompareAndSet(ctx context.Context, id string, expected domain.Status, mutate func(*domain.Duel) error) (domain.Duel, error) {
	s.mu.Lock()
	hook := s.beforeCAS
	s.beforeCAS = nil
	injected := s.conflicts > 0
	if injected {
		s.conflicts--
	}
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	if injected {
		return domain.Duel{}, domain.ErrConflict
	}
	return s.DuelStore.CompareAndSet(ctx, id, expected, mutate)
}
