package service

import "sync"

// LockTable serializes mutations per library. A mutation must acquire
// the library's slot before its prechecks run, so two concurrent
// requests cannot both pass validation and start processing.
type LockTable struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLockTable creates an empty lock table.
func NewLockTable() *LockTable {
	return &LockTable{held: make(map[string]struct{})}
}

// TryAcquire claims the slot for id. It returns false without blocking
// when another mutation already holds it.
func (l *LockTable) TryAcquire(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, taken := l.held[id]; taken {
		return false
	}
	l.held[id] = struct{}{}
	return true
}

// Release frees the slot for id. Releasing an unheld slot is a no-op.
func (l *LockTable) Release(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, id)
}

// Held reports whether a mutation currently holds the slot for id.
func (l *LockTable) Held(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, taken := l.held[id]
	return taken
}
