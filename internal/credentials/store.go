package credentials

import (
	"context"
	"sync"
)

// Store persists the current credential pair.
//
// Get never fails: unreadable or corrupt state is reported as absent. Set and
// Clear replace or remove the whole pair in one step.
type Store interface {
	Get(ctx context.Context) (Pair, bool)
	Set(ctx context.Context, pair Pair) error
	Clear(ctx context.Context) error
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*FileStore)(nil)
	_ Store = (*RedisStore)(nil)
)

// MemoryStore keeps the pair in process memory. The zero value is ready to use.
type MemoryStore struct {
	mu   sync.RWMutex
	pair Pair
	set  bool
}

// NewMemoryStore returns a store seeded with pair when it is complete.
func NewMemoryStore(pair Pair) *MemoryStore {
	s := &MemoryStore{}
	if pair.Complete() {
		s.pair = pair
		s.set = true
	}
	return s
}

func (s *MemoryStore) Get(context.Context) (Pair, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair, s.set
}

func (s *MemoryStore) Set(_ context.Context, pair Pair) error {
	if err := pair.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = pair
	s.set = true
	return nil
}

func (s *MemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = Pair{}
	s.set = false
	return nil
}
