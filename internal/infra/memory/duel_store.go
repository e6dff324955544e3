package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"battle-arena/internal/domain"
	"github.com/google/uuid"
)

// DuelStore is an in-memory implementation of app.DuelStore. The whole
// compare-and-set runs under one lock, so it is atomic per record.
type DuelStore struct {
	mu    sync.RWMutex
	duels map[string]domain.Duel
}

func NewDuelStore() *DuelStore {
	return &DuelStore{duels: make(map[string]domain.Duel)}
}

func (s *DuelStore) Create(_ context.Context, duel domain.Duel) (string, error) {
	if err := duel.Validate(); err != nil {
		return "", err
	}
	if duel.ID == "" {
		duel.ID = uuid.NewString()
	}
	duel = duel.Clone()
	duel.Revision = 1

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.duels[duel.ID]; exists {
		return "", fmt.Errorf("%w: id %s already taken", domain.ErrInvalidDuel, duel.ID)
	}
	s.duels[duel.ID] = duel
	return duel.ID, nil
}

func (s *DuelStore) Get(_ context.Context, id string) (domain.Duel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	duel, ok := s.duels[id]
	if !ok {
		return domain.Duel{}, domain.ErrNotFound
	}
	return duel.Clone(), nil
}

func (s *DuelStore) CompareAndSet(_ context.Context, id string, expected domain.Status, mutate func(*domain.Duel) error) (domain.Duel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.duels[id]
	if !ok {
		return domain.Duel{}, domain.ErrNotFound
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
	s.duels[id] = next
	return next.Clone(), nil
}

func (s *DuelStore) ListForAccount(_ context.Context, accountID string) ([]domain.Duel, error) {
	s.mu.RLock()
	out := make([]domain.Duel, 0)
	for _, duel := range s.duels {
		if duel.ChallengerID == accountID || duel.OpponentID == accountID {
			out = append(out, duel.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}
