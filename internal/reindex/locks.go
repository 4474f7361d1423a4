package reindex

import (
	"sync"

	"housematch/server/internal/models"
)

// entityLocks serializes reindex invocations per (kind, id) so two rapid
// writes to the same entity cannot interleave and strand a stale snapshot.
// Different entities reindex in parallel. The map is never pruned; the
// entity population is bounded by the business domain.
type entityLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newEntityLocks() *entityLocks {
	return &entityLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire locks the entity and returns the unlock function.
func (l *entityLocks) acquire(kind models.Kind, id string) func() {
	key := string(kind) + "/" + id
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}
