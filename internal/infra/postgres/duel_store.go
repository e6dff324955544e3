package postgres

import (
	"context"
	"errors"
	"fmt"

	"battle-arena/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const duelColumns = `id, challenger_id, opponent_id, subject_id, question_ids, status,
	challenger_answers, opponent_answers, winner_id, created_at, updated_at, revision`

// DuelStore keeps duels in Postgres. CompareAndSet is optimistic: the UPDATE
// only matches while both the status and the revision we read are unchanged.
type DuelStore struct {
	pool *pgxpool.Pool
}

func NewDuelStore(pool *pgxpool.Pool) *DuelStore {
	return &DuelStore{pool: pool}
}

func (s *DuelStore) Create(ctx context.Context, duel domain.Duel) (string, error) {
	if err := duel.Validate(); err != nil {
		return "", err
	}
	if duel.ID == "" {
		duel.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO duels (`+duelColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1)`,
		duel.ID, duel.ChallengerID, duel.OpponentID, duel.SubjectID, duel.QuestionIDs, string(duel.Status),
		choicesToText(duel.ChallengerAnswers), choicesToText(duel.OpponentAnswers), nullable(duel.WinnerID),
		duel.CreatedAt, duel.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return "", fmt.Errorf("%w: id %s already taken", domain.ErrInvalidDuel, duel.ID)
	}
	if err != nil {
		return "", fmt.Errorf("insert duel: %w", err)
	}
	return duel.ID, nil
}

func (s *DuelStore) Get(ctx context.Context, id string) (domain.Duel, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+duelColumns+` FROM duels WHERE id = $1`, id)
	duel, err := scanDuel(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Duel{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Duel{}, fmt.Errorf("load duel: %w", err)
	}
	return duel, nil
}

func (s *DuelStore) CompareAndSet(ctx context.Context, id string, expected domain.Status, mutate func(*domain.Duel) error) (domain.Duel, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return domain.Duel{}, err
	}
	if current.Status != expected {
		return domain.Duel{}, domain.ErrConflict
	}
	next := current.Clone()
	if err := mutate(&next); err != nil {
		return domain.Duel{}, err
	}
	if err := domain.CheckTransition(current, next); err != nil {
		return domain.Duel{}, err
	}
	next.Revision = current.Revision + 1

	tag, err := s.pool.Exec(ctx, `UPDATE duels
		SET status = $1, challenger_answers = $2, opponent_answers = $3, winner_id = $4, updated_at = $5, revision = $6
		WHERE id = $7 AND status = $8 AND revision = $9`,
		string(next.Status), choicesToText(next.ChallengerAnswers), choicesToText(next.OpponentAnswers),
		nullable(next.WinnerID), next.UpdatedAt, next.Revision,
		id, string(expected), current.Revision)
	if err != nil {
		return domain.Duel{}, fmt.Errorf("update duel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Duel{}, domain.ErrConflict
	}
	return next, nil
}

func (s *DuelStore) ListForAccount(ctx context.Context, accountID string) ([]domain.Duel, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+duelColumns+` FROM duels
		WHERE challenger_id = $1 OR opponent_id = $1
		ORDER BY created_at DESC, id DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list duels: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Duel, 0)
	for rows.Next() {
		duel, err := scanDuel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan duel: %w", err)
		}
		out = append(out, duel)
	}
	return out, rows.Err()
}

func scanDuel(row pgx.Row) (domain.Duel, error) {
	var (
		duel            domain.Duel
		status          string
		challenger, opp []string
		winner          *string
	)
	err := row.Scan(&duel.ID, &duel.ChallengerID, &duel.OpponentID, &duel.SubjectID, &duel.QuestionIDs, &status,
		&challenger, &opp, &winner, &duel.CreatedAt, &duel.UpdatedAt, &duel.Revision)
	if err != nil {
		return domain.Duel{}, err
	}
	duel.Status = domain.Status(status)
	duel.ChallengerAnswers = textToChoices(challenger)
	duel.OpponentAnswers = textToChoices(opp)
	if winner != nil {
		duel.WinnerID = *winner
	}
	duel.CreatedAt = duel.CreatedAt.UTC()
	duel.UpdatedAt = duel.UpdatedAt.UTC()
	return duel, nil
}

func choicesToText(in []domain.Choice) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	for i, c := range in {
		out[i] = string(c)
	}
	return out
}

func textToChoices(in []string) []domain.Choice {
	if in == nil {
		return nil
	}
	out := make([]domain.Choice, len(in))
	for i, s := range in {
		out[i] = domain.Choice(s)
	}
	return out
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
