package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"battle-arena/internal/domain"
)

// SubscribeDuel streams the authoritative duel: the current snapshot first,
// then a fresh read after every change signal for it. Only participants may
// watch a duel.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *DuelService) SubscribeDuel(ctx context.Context, duelID, requesterID string) (<-chan domain.Duel, func(), error) {
	return watch(ctx, s.feed, s.logger, domain.DuelKey(duelID), func(ctx context.Context) (domain.Duel, error) {
		duel, err := s.Get(ctx, duelID)
		if err != nil {
			return domain.Duel{}, err
		}
		if _, ok := duel.SideOf(requesterID); !ok {
			return domain.Duel{}, fmt.Errorf("%w: %s is not part of this duel", domain.ErrNotAllowed, requesterID)
		}
		return duel, nil
	})
}

// SubscribeAccount streams the account's duel list the same way.
func (s *DuelService) SubscribeAccount(ctx context.Context, accountID string) (<-chan []domain.Duel, func(), error) {
	return watch(ctx, s.feed, s.logger, domain.AccountKey(accountID), func(ctx context.Context) ([]domain.Duel, error) {
		return s.List(ctx, accountID)
	})
}

// watch turns invalidation signals into re-reads. Only the latest read is
// kept for a slow consumer; older ones are stale by definition.
func watch[T any](ctx context.Context, feed ChangeFeed, logger *slog.Logger, key string, load func(context.Context) (T, error)) (<-chan T, func(), error) {
	// Subscribe before the first read so no write can slip in between.
	changes, unsubscribe, err := feed.Subscribe(ctx, key)
	if err != nil {
		return nil, nil, unavailable("subscribe "+key, err)
	}
	initial, err := load(ctx)
	if err != nil {
		unsubscribe()
		return nil, nil, err
	}

	ctx, stop := context.WithCancel(ctx)
	out := make(chan T, 1)
	out <- initial
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				v, err := load(ctx)
				if err != nil {
					if ctx.Err() == nil {
						logger.Warn("refetch after change failed", "key", key, "error", err)
					}
					continue
				}
				select {
				case out <- v:
				default:
					select {
					case <-out:
					default:
					}
					out <- v
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			stop()
			unsubscribe()
			<-done
		})
	}
	return out, cancel, nil
}
