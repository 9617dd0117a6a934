package service

import "sync"

// UserLocks serializes mutating work per user. Sync calls and
// category-mutating calls for the same user share one lock so reconciliation
// never races a concurrent category edit; different users never contend.
type UserLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewUserLocks() *UserLocks {
	return &UserLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the user's lock and returns the release func.
func (l *UserLocks) Lock(userID string) func() {
	l.mu.Lock()
	m, ok := l.locks[userID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[userID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
