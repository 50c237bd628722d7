package session

import (
	"fmt"
	"sync"
	"time"
)

// Identity describes the signed-in user.
type Identity struct {
	UserID     string
	BusinessID string
	Email      string
	Role       string
	// ExpiresAt is the access token expiry, zero when unknown.
	ExpiresAt time.Time
}

// Snapshot is the latest identity state available to callers.
type Snapshot struct {
	Identity            Identity
	HasIdentity         bool
	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int // Number of consecutive failed identity lookups
}

// IsOffline returns true when the backend has been unreachable for multiple lookups.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// identityStore coordinates concurrent identity updates.
type identityStore struct {
	mu       sync.RWMutex
	snapshot Snapshot
}

func (s *identityStore) set(id Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot.Identity = id
	s.snapshot.HasIdentity = true
	s.snapshot.LastError = nil
	s.snapshot.LastUpdated = time.Now()
	s.snapshot.ConsecutiveFailures = 0
}

// clear forgets the identity. err, when non-nil, is kept for display.
func (s *identityStore) clear(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot = Snapshot{LastError: err, LastUpdated: time.Now()}
}

// fail records err but keeps the previous identity.
func (s *identityStore) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot.LastError = err
	s.snapshot.LastUpdated = time.Now()
	s.snapshot.ConsecutiveFailures++
}

// note records err without counting it as a lookup failure.
func (s *identityStore) note(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot.LastError = err
	s.snapshot.LastUpdated = time.Now()
}

func (s *identityStore) get() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	if s.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", s.snapshot.LastError)
	}
	return snap
}
