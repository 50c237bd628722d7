// Package requestid generates per-attempt request identifiers and per-action
// idempotency keys.
package requestid

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Generator is safe for concurrent use.
type Generator struct {
	newUUID func() (uuid.UUID, error)
	now     func() time.Time
	seq     atomic.Uint64

	mu   sync.Mutex
	keys map[string]string
}

// New returns a Generator backed by crypto/rand via uuid.NewRandom.
func New() *Generator {
	return &Generator{
		newUUID: uuid.NewRandom,
		now:     time.Now,
		keys:    make(map[string]string),
	}
}

// NewRequestID returns an identifier unique within the running process.
func (g *Generator) NewRequestID() string {
	id, err := g.newUUID()
	if err != nil {
		return g.fallback()
	}
	return id.String()
}

// fallback composes time, a process-local counter and non-secure randomness.
// The counter alone guarantees uniqueness within the process.
func (g *Generator) fallback() string {
	return fmt.Sprintf("%d-%d-%016x", g.now().UnixNano(), g.seq.Add(1), rand.Uint64())
}

// IdempotencyKeyFor returns the key bound to action, minting one on first use.
// The same action name yields the same key until Release is called, so an
// attempt and any retry of that action deduplicate on the backend. An empty
// action gets a fresh, unremembered key.
func (g *Generator) IdempotencyKeyFor(action string) string {
	action = strings.TrimSpace(action)
	if action == "" {
		return g.NewRequestID()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if key, ok := g.keys[action]; ok {
		return key
	}
	key := g.NewRequestID()
	g.keys[action] = key
	return key
}

// Release ends action. Call it once the action reached a definitive outcome.
func (g *Generator) Release(action string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.keys, strings.TrimSpace(action))
}

// NewAction returns a fresh logical action name with the given prefix, for
// callers that do not have a natural name for a user action.
func (g *Generator) NewAction(prefix string) string {
	return strings.TrimSpace(prefix) + ":" + g.NewRequestID()
}
