package memory

import (
	"context"
	"sync"

	"battle-arena/internal/domain"
)

// ChangeFeed is an in-process app.ChangeFeed. Signals carry no state, so a
// subscriber with one signal already queued loses nothing when more arrive.
type ChangeFeed struct {
	mu   sync.RWMutex
	subs map[string]map[chan domain.Change]struct{}
}

func NewChangeFeed() *ChangeFeed {
	return &ChangeFeed{subs: make(map[string]map[chan domain.Change]struct{})}
}

func (f *ChangeFeed) Publish(_ context.Context, key string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for ch := range f.subs[key] {
		select {
		case ch <- domain.Change{Key: key}:
		default:
		}
	}
	return nil
}

func (f *ChangeFeed) Subscribe(_ context.Context, key string) (<-chan domain.Change, func(), error) {
	ch := make(chan domain.Change, 1)

	f.mu.Lock()
	if f.subs[key] == nil {
		f.subs[key] = make(map[chan domain.Change]struct{})
	}
	f.subs[key][ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.subs[key][ch]; ok {
			delete(f.subs[key], ch)
			close(ch)
			if len(f.subs[key]) == 0 {
				delete(f.subs, key)
			}
		}
	}
	return ch, cancel, nil
}

// Subscribers reports how many subscriptions are open for key.
func (f *ChangeFeed) Subscribers(key string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs[key])
}
