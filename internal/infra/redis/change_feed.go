package redis

import (
	"context"
	"fmt"
	"sync"

	"battle-arena/internal/domain"
	"github.com/redis/go-redis/v9"
)

// ChangeFeed fans invalidation signals out across instances over Redis
// pub/sub, one channel per key.
type ChangeFeed struct {
	client *redis.Client
	prefix string
}

func NewChangeFeed(client *redis.Client) *ChangeFeed {
	return &ChangeFeed{client: client, prefix: "arena:changes:"}
}

func (f *ChangeFeed) Publish(ctx context.Context, key string) error {
	if err := f.client.Publish(ctx, f.prefix+key, key).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	return nil
}

func (f *ChangeFeed) Subscribe(ctx context.Context, key string) (<-chan domain.Change, func(), error) {
	ps := f.client.Subscribe(ctx, f.prefix+key)
	// Wait for the subscription to be confirmed so no publish after we
	// return can be missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", key, err)
	}

	msgs := ps.Channel()
	out := make(chan domain.Change, 1)
	done := make(chan struct{})
	go func() {
		defer close(out)
		for {
			select {
			case _, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- domain.Change{Key: key}:
				default:
					// a signal is already pending
				}
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = ps.Close()
		})
	}
	return out, cancel, nil
}
