package ingest

import "sync"

// hashLocks hands out one mutex per content hash. Entries are dropped when
// the last holder unlocks.
type hashLocks struct {
	mu   sync.Mutex
	held map[string]*hashLock
}

type hashLock struct {
	mu   sync.Mutex
	refs int
}

// lock blocks until key is free and returns the matching unlock.
func (l *hashLocks) lock(key string) func() {
	l.mu.Lock()
	if l.held == nil {
		l.held = make(map[string]*hashLock)
	}
	hl, ok := l.held[key]
	if !ok {
		hl = &hashLock{}
		l.held[key] = hl
	}
	hl.refs++
	l.mu.Unlock()

	hl.mu.Lock()
	return func() {
		hl.mu.Unlock()
		l.mu.Lock()
		hl.refs--
		if hl.refs == 0 {
			delete(l.held, key)
		}
		l.mu.Unlock()
	}
}
