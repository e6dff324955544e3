package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"battle-arena/internal/domain"
)

// DefaultSampleSize is the number of questions drawn for a new duel.
const DefaultSampleSize = 5

// Options tunes a DuelService. Zero values fall back to defaults.
type Options struct {
	SampleSize int
	Logger     *slog.Logger
	Now        func() time.Time
}

// DuelService coordinates the duel lifecycle. It holds no duel state of its
// own; the store's compare-and-set is the only coordination point.
type DuelService struct {
	store      DuelStore
	bank       QuestionBank
	accounts   AccountDirectory
	feed       ChangeFeed
	sampleSize int
	logger     *slog.Logger
	now        func() time.Time
}

func NewDuelService(store DuelStore, bank QuestionBank, accounts AccountDirectory, feed ChangeFeed, opts Options) *DuelService {
	if opts.SampleSize <= 0 {
		opts.SampleSize = DefaultSampleSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &DuelService{
		store:      store,
		bank:       bank,
		accounts:   accounts,
		feed:       feed,
		sampleSize: opts.SampleSize,
		logger:     opts.Logger,
		now:        opts.Now,
	}
}

// Create issues a new pending challenge with a freshly sampled question set.
func (s *DuelService) Create(ctx context.Context, challengerID, opponentID, subjectID string) (string, error) {
	if challengerID == "" || opponentID == "" || subjectID == "" {
		return "", fmt.Errorf("%w: challenger, opponent and subject are required", domain.ErrInvalidDuel)
	}
	if challengerID == opponentID {
		return "", fmt.Errorf("%w: cannot challenge yourself", domain.ErrInvalidDuel)
	}

	challenger, err := s.account(ctx, challengerID)
	if err != nil {
		return "", err
	}
	opponent, err := s.account(ctx, opponentID)
	if err != nil {
		return "", err
	}
	if challenger.Grade != "" && opponent.Grade != "" && challenger.Grade != opponent.Grade {
		return "", fmt.Errorf("%w: %s and %s are in different grades", domain.ErrInvalidDuel, challengerID, opponentID)
	}

	questionIDs, err := s.bank.Sample(ctx, subjectID, challenger.Grade, s.sampleSize)
	if err != nil {
		return "", unavailable("sample questions", err)
	}
	if len(questionIDs) < s.sampleSize {
		return "", fmt.Errorf("%w: subject %s has %d questions, need %d", domain.ErrInvalidDuel, subjectID, len(questionIDs), s.sampleSize)
	}

	now := s.now().UTC()
	duel := domain.Duel{
		ChallengerID: challengerID,
		OpponentID:   opponentID,
		SubjectID:    subjectID,
		QuestionIDs:  questionIDs,
		Status:       domain.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := duel.Validate(); err != nil {
		return "", err
	}

	id, err := s.store.Create(ctx, duel)
	if err != nil {
		return "", unavailable("create duel", err)
	}
	duel.ID = id
	s.logger.Info("duel created", "duel", id, "challenger", challengerID, "opponent", opponentID, "subject", subjectID)
	s.publish(ctx, duel)
	return id, nil
}

// Accept moves a pending duel to ongoing on the opponent's behalf. Accepting
// an ongoing duel is a no-op.
func (s *DuelService) Accept(ctx context.Context, duelID, requesterID string) (domain.Duel, error) {
	duel, err := s.Get(ctx, duelID)
	if err != nil {
		return domain.Duel{}, err
	}
	if duel.OpponentID != requesterID {
		return domain.Duel{}, fmt.Errorf("%w: only the challenged side may accept", domain.ErrNotAllowed)
	}

	for attempt := 0; ; attempt++ {
		switch duel.Status {
		case domain.StatusOngoing:
			return duel, nil
		case domain.StatusCompleted, domain.StatusDeclined:
			return domain.Duel{}, fmt.Errorf("%w: duel is %s", domain.ErrNotAllowed, duel.Status)
		}

		updated, err := s.store.CompareAndSet(ctx, duelID, domain.StatusPending, func(d *domain.Duel) error {
			d.Status = domain.StatusOngoing
			d.UpdatedAt = s.now().UTC()
			return nil
		})
		if err == nil {
			s.publish(ctx, updated)
			return updated, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return domain.Duel{}, unavailable("accept duel", err)
		}
		if attempt > 0 {
			return domain.Duel{}, s.corrupted(duelID, "accept", err)
		}
		if duel, err = s.Get(ctx, duelID); err != nil {
			return domain.Duel{}, err
		}
	}
}

// Decline ends a pending or ongoing duel on the opponent's behalf. Declining
// a declined duel, or losing the race to a completing submission, succeeds
// without changing anything.
func (s *DuelService) Decline(ctx context.Context, duelID, requesterID string) error {
	duel, err := s.Get(ctx, duelID)
	if err != nil {
		return err
	}
	if duel.OpponentID != requesterID {
		return fmt.Errorf("%w: only the challenged side may decline", domain.ErrNotAllowed)
	}

	conflicted, retried := false, false
	for {
		switch duel.Status {
		case domain.StatusDeclined:
			return nil
		case domain.StatusCompleted:
			if conflicted {
				return nil
			}
			return fmt.Errorf("%w: duel is already completed", domain.ErrNotAllowed)
		}

		updated, err := s.store.CompareAndSet(ctx, duelID, duel.Status, func(d *domain.Duel) error {
			d.Status = domain.StatusDeclined
			d.UpdatedAt = s.now().UTC()
			return nil
		})
		if err == nil {
			s.logger.Info("duel declined", "duel", duelID, "from", duel.Status)
			s.publish(ctx, updated)
			return nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return unavailable("decline duel", err)
		}
		conflicted = true
		fresh, err := s.Get(ctx, duelID)
		if err != nil {
			return err
		}
		if !acceptedOnly(duel, fresh) {
			if retried {
				return s.corrupted(duelID, "decline", domain.ErrConflict)
			}
			retried = true
		}
		duel = fresh
	}
}

// SubmitAnswers records one side's answers. The first side moves the duel to
// ongoing; the second grades both sides and completes it in the same write.
func (s *DuelService) SubmitAnswers(ctx context.Context, duelID, requesterID string, answers []domain.Answer) (domain.SubmitResult, error) {
	duel, err := s.Get(ctx, duelID)
	if err != nil {
		return domain.SubmitResult{}, err
	}
	side, ok := duel.SideOf(requesterID)
	if !ok {
		return domain.SubmitResult{}, fmt.Errorf("%w: %s is not part of this duel", domain.ErrNotAllowed, requesterID)
	}
	choices, err := canonicalChoices(duel.QuestionIDs, answers)
	if err != nil {
		return domain.SubmitResult{}, err
	}

	var correct []domain.Choice
	retried := false
	for {
		if duel.Status == domain.StatusDeclined {
			return domain.SubmitResult{}, fmt.Errorf("%w: duel is %s", domain.ErrNotAllowed, duel.Status)
		}
		if duel.Answers(side) != nil {
			return domain.SubmitResult{}, domain.ErrAlreadySubmitted
		}
		if duel.Status.Terminal() {
			return domain.SubmitResult{}, fmt.Errorf("%w: duel is %s", domain.ErrNotAllowed, duel.Status)
		}
		// A bank failure must leave the duel untouched.
		if correct == nil {
			if correct, err = s.correctAnswers(ctx, duel.QuestionIDs); err != nil {
				return domain.SubmitResult{}, err
			}
		}

		var updated domain.Duel
		other := duel.Answers(side.Other())
		if other == nil {
			updated, err = s.store.CompareAndSet(ctx, duelID, duel.Status, func(d *domain.Duel) error {
				if d.Answers(side) != nil || d.Answers(side.Other()) != nil {
					return domain.ErrConflict
				}
				d.SetAnswers(side, choices)
				d.Status = domain.StatusOngoing
				d.UpdatedAt = s.now().UTC()
				return nil
			})
		} else {
			graded := duel.Clone()
			graded.SetAnswers(side, choices)
			winner := domain.Winner(graded, correct)
			updated, err = s.store.CompareAndSet(ctx, duelID, domain.StatusOngoing, func(d *domain.Duel) error {
				if d.Answers(side) != nil || !slices.Equal(d.Answers(side.Other()), other) {
					return domain.ErrConflict
				}
				d.SetAnswers(side, choices)
				d.Status = domain.StatusCompleted
				d.WinnerID = winner
				d.UpdatedAt = s.now().UTC()
				return nil
			})
		}
		if err == nil {
			s.logger.Info("answers submitted", "duel", duelID, "side", side, "status", updated.Status, "winner", updated.WinnerID)
			s.publish(ctx, updated)
			return result(updated, side, correct), nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return domain.SubmitResult{}, unavailable("submit answers", err)
		}
		fresh, err := s.Get(ctx, duelID)
		if err != nil {
			return domain.SubmitResult{}, err
		}
		if !acceptedOnly(duel, fresh) {
			if retried {
				return domain.SubmitResult{}, s.corrupted(duelID, "submit", domain.ErrConflict)
			}
			retried = true
		}
		duel = fresh
	}
}

// acceptedOnly reports whether the write that landed between before and
// after was the opponent accepting. Accept fires at most once per duel, so a
// conflict it causes does not use up the single retry.
func acceptedOnly(before, after domain.Duel) bool {
	return before.Status == domain.StatusPending && after.Status == domain.StatusOngoing &&
		after.ChallengerAnswers == nil && after.OpponentAnswers == nil
}

// Get returns the authoritative duel.
func (s *DuelService) Get(ctx context.Context, duelID string) (domain.Duel, error) {
	duel, err := s.store.Get(ctx, duelID)
	if err != nil {
		return domain.Duel{}, unavailable("get duel", err)
	}
	return duel, nil
}

// List returns the account's duels, newest first.
func (s *DuelService) List(ctx context.Context, accountID string) ([]domain.Duel, error) {
	duels, err := s.store.ListForAccount(ctx, accountID)
	if err != nil {
		return nil, unavailable("list duels", err)
	}
	return duels, nil
}

// PendingCount counts the challenges still waiting on the account's answers.
func (s *DuelService) PendingCount(ctx context.Context, accountID string) (int, error) {
	duels, err := s.List(ctx, accountID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, d := range duels {
		if d.OpponentID == accountID && !d.Status.Terminal() && d.OpponentAnswers == nil {
			n++
		}
	}
	return n, nil
}

// Questions returns the duel's quiz items in canonical order, without the
// correct answers. Only participants may see them.
func (s *DuelService) Questions(ctx context.Context, duelID, requesterID string) ([]domain.Question, error) {
	duel, err := s.Get(ctx, duelID)
	if err != nil {
		return nil, err
	}
	if _, ok := duel.SideOf(requesterID); !ok {
		return nil, fmt.Errorf("%w: %s is not part of this duel", domain.ErrNotAllowed, requesterID)
	}
	questions, err := s.bank.Questions(ctx, duel.QuestionIDs)
	if err != nil {
		return nil, unavailable("load questions", err)
	}
	for i := range questions {
		questions[i].Correct = ""
	}
	return questions, nil
}

// Opponents lists the accounts the given account may challenge: everyone in
// the same grade except the account itself.
func (s *DuelService) Opponents(ctx context.Context, accountID string) ([]domain.Account, error) {
	acc, err := s.accounts.Account(ctx, accountID)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return nil, fmt.Errorf("%w: %w", domain.ErrNotFound, err)
	}
	if err != nil {
		return nil, unavailable("resolve account", err)
	}
	classmates, err := s.accounts.Classmates(ctx, acc.Grade)
	if err != nil {
		return nil, unavailable("list classmates", err)
	}
	out := make([]domain.Account, 0, len(classmates))
	for _, c := range classmates {
		if c.ID != accountID {
			out = append(out, c)
		}
	}
	return out, nil
}

// Subjects lists the subjects available for new duels.
func (s *DuelService) Subjects(ctx context.Context) ([]domain.Subject, error) {
	subjects, err := s.bank.Subjects(ctx)
	if err != nil {
		return nil, unavailable("list subjects", err)
	}
	return subjects, nil
}

func (s *DuelService) account(ctx context.Context, id string) (domain.Account, error) {
	acc, err := s.accounts.Account(ctx, id)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return domain.Account{}, fmt.Errorf("%w: %w", domain.ErrInvalidDuel, err)
	}
	if err != nil {
		return domain.Account{}, unavailable("resolve account", err)
	}
	return acc, nil
}

func (s *DuelService) correctAnswers(ctx context.Context, questionIDs []string) ([]domain.Choice, error) {
	correct, err := s.bank.CorrectAnswers(ctx, questionIDs)
	if err != nil {
		return nil, unavailable("load correct answers", err)
	}
	if len(correct) != len(questionIDs) {
		return nil, fmt.Errorf("%w: bank returned %d answers for %d questions", domain.ErrUnavailable, len(correct), len(questionIDs))
	}
	return correct, nil
}

// publish signals every key the write touched. The store is already
// authoritative, so a failed publish is only logged.
func (s *DuelService) publish(ctx context.Context, duel domain.Duel) {
	for _, key := range domain.ChangeKeys(duel) {
		if err := s.feed.Publish(ctx, key); err != nil {
			s.logger.Warn("publish change failed", "key", key, "error", err)
		}
	}
}

func (s *DuelService) corrupted(duelID, op string, err error) error {
	s.logger.Error("second conflict on duel", "duel", duelID, "op", op, "error", err)
	return fmt.Errorf("%w: %s %s", domain.ErrCorruptedDuel, op, duelID)
}

// canonicalChoices reorders answers keyed by question id into the duel's
// canonical question order.
func canonicalChoices(questionIDs []string, answers []domain.Answer) ([]domain.Choice, error) {
	if len(answers) != len(questionIDs) {
		return nil, fmt.Errorf("%w: got %d answers for %d questions", domain.ErrMalformedSubmission, len(answers), len(questionIDs))
	}
	index := make(map[string]int, len(questionIDs))
	for i, id := range questionIDs {
		index[id] = i
	}
	choices := make([]domain.Choice, len(questionIDs))
	seen := make([]bool, len(questionIDs))
	for _, a := range answers {
		i, ok := index[a.QuestionID]
		if !ok {
			return nil, fmt.Errorf("%w: question %s is not in this duel", domain.ErrMalformedSubmission, a.QuestionID)
		}
		if seen[i] {
			return nil, fmt.Errorf("%w: question %s answered twice", domain.ErrMalformedSubmission, a.QuestionID)
		}
		seen[i] = true
		choices[i] = a.Choice
	}
	return choices, nil
}

func result(duel domain.Duel, side domain.Side, correct []domain.Choice) domain.SubmitResult {
	marks, score := domain.Grade(correct, duel.Answers(side))
	return domain.SubmitResult{
		DuelID:         duel.ID,
		Correct:        marks,
		CorrectAnswers: correct,
		Score:          score,
		Total:          len(duel.QuestionIDs),
		Status:         duel.Status,
		WinnerID:       duel.WinnerID,
	}
}

// unavailable passes domain errors through and wraps anything else as an
// infrastructure failure.
func unavailable(op string, err error) error {
	for _, known := range []error{
		domain.ErrNotFound,
		domain.ErrConflict,
		domain.ErrInvalidDuel,
		domain.ErrNotAllowed,
		domain.ErrAlreadySubmitted,
		domain.ErrMalformedSubmission,
		domain.ErrUnavailable,
		domain.ErrCorruptedDuel,
		domain.ErrInvalidTransition,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrUnavailable, op, err)
}
