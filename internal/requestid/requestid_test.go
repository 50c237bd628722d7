package requestid

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequestID_UniqueAcrossGoroutines(t *testing.T) {
	g := New()

	const workers, perWorker = 8, 500
	var mu sync.Mutex
	seen := make(map[string]struct{}, workers*perWorker)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWorker {
				id := g.NewRequestID()
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, workers*perWorker)
}

func TestNewRequestID_IsUUID(t *testing.T) {
	_, err := uuid.Parse(New().NewRequestID())
	require.NoError(t, err)
}

func TestNewRequestID_FallsBackWhenRandomFails(t *testing.T) {
	g := New()
	g.newUUID = func() (uuid.UUID, error) { return uuid.Nil, errors.New("entropy exhausted") }
	fixed := time.Unix(1700000000, 0)
	g.now = func() time.Time { return fixed }

	a := g.NewRequestID()
	b := g.NewRequestID()
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "1700000000000000000-"), "fallback id %q should lead with the timestamp", a)
}

func TestIdempotencyKeyFor_StableUntilRelease(t *testing.T) {
	g := New()

	first := g.IdempotencyKeyFor("book:click-1")
	assert.Equal(t, first, g.IdempotencyKeyFor("book:click-1"))
	assert.Equal(t, first, g.IdempotencyKeyFor("  book:click-1 "))
	assert.NotEqual(t, first, g.IdempotencyKeyFor("book:click-2"))

	g.Release("book:click-1")
	assert.NotEqual(t, first, g.IdempotencyKeyFor("book:click-1"))
}

func TestIdempotencyKeyFor_EmptyActionIsNotRemembered(t *testing.T) {
	g := New()
	assert.NotEqual(t, g.IdempotencyKeyFor(""), g.IdempotencyKeyFor(""))
}

func TestNewAction(t *testing.T) {
	g := New()
	a := g.NewAction("book")
	assert.True(t, strings.HasPrefix(a, "book:"))
	assert.NotEqual(t, a, g.NewAction("book"))
}
