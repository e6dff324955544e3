package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"battle-arena/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DuelStore keeps duels in Redis.
// Records are stored as:  SET  duel:{id} {json}
// Account index:          ZADD duels:account:{accountID} {createdAt µs} {id}
// The record and both index entries are written in one MULTI.
// CompareAndSet runs inside WATCH/MULTI on the record key, so a write that
// lands between our read and our EXEC aborts the transaction.
type DuelStore struct {
	client *redis.Client
}

func NewDuelStore(client *redis.Client) *DuelStore {
	return &DuelStore{client: client}
}

func (s *DuelStore) Create(ctx context.Context, duel domain.Duel) (string, error) {
	if err := duel.Validate(); err != nil {
		return "", err
	}
	if duel.ID == "" {
		duel.ID = uuid.NewString()
	}
	duel.Revision = 1
	data, err := json.Marshal(duel)
	if err != nil {
		return "", fmt.Errorf("marshal duel: %w", err)
	}

	key := s.duelKey(duel.ID)
	score := float64(duel.CreatedAt.UnixMicro())
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: id %s already taken", domain.ErrInvalidDuel, duel.ID)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.ZAdd(ctx, s.accountKey(duel.ChallengerID), redis.Z{Score: score, Member: duel.ID})
			pipe.ZAdd(ctx, s.accountKey(duel.OpponentID), redis.Z{Score: score, Member: duel.ID})
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return "", fmt.Errorf("%w: id %s already taken", domain.ErrInvalidDuel, duel.ID)
	}
	if errors.Is(err, domain.ErrInvalidDuel) {
		return "", err
	}
	if err != nil {
		return "", fmt.Errorf("store duel: %w", err)
	}
	return duel.ID, nil
}

func (s *DuelStore) Get(ctx context.Context, id string) (domain.Duel, error) {
	return s.load(ctx, s.client, id)
}

func (s *DuelStore) CompareAndSet(ctx context.Context, id string, expected domain.Status, mutate func(*domain.Duel) error) (domain.Duel, error) {
	key := s.duelKey(id)
	var next domain.Duel

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if current.Status != expected {
			return domain.ErrConflict
		}
		next = current.Clone()
		if err := mutate(&next); err != nil {
			return err
		}
		if err := domain.CheckTransition(current, next); err != nil {
			return err
		}
		next.Revision = current.Revision + 1
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("marshal duel: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return domain.Duel{}, domain.ErrConflict
	}
	if err != nil {
		return domain.Duel{}, err
	}
	return next, nil
}

func (s *DuelStore) ListForAccount(ctx context.Context, accountID string) ([]domain.Duel, error) {
	ids, err := s.client.ZRevRange(ctx, s.accountKey(accountID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list duel ids: %w", err)
	}
	out := make([]domain.Duel, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.duelKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load duels: %w", err)
	}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// index entry without a record; skip rather than fail the list
			continue
		}
		var duel domain.Duel
		if err := json.Unmarshal([]byte(raw), &duel); err != nil {
			return nil, fmt.Errorf("unmarshal duel %s: %w", ids[i], err)
		}
		out = append(out, duel)
	}
	// equal scores come back in member order; settle ties the way the other stores do
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// getter is the part of *redis.Client and *redis.Tx that load needs.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *DuelStore) load(ctx context.Context, c getter, id string) (domain.Duel, error) {
	raw, err := c.Get(ctx, s.duelKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Duel{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Duel{}, fmt.Errorf("load duel: %w", err)
	}
	var duel domain.Duel
	if err := json.Unmarshal(raw, &duel); err != nil {
		return domain.Duel{}, fmt.Errorf("unmarshal duel %s: %w", id, err)
	}
	return duel, nil
}

func (s *DuelStore) duelKey(id string) string {
	return "duel:" + id
}

func (s *DuelStore) accountKey(accountID string) string {
	return "duels:account:" + accountID
}
