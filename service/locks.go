package service

import "sync"

// instanceLocks serializes mutating operations per workflow instance.
// Locks are created on first use and kept for the process lifetime; the
// instance population is small enough that reaping is not worth the races
// it invites.
type instanceLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newInstanceLocks() *instanceLocks {
	return &instanceLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *instanceLocks) lock(instanceId string) func() {
	l.mu.Lock()
	m, ok := l.locks[instanceId]
	if !ok {
		m = &sync.Mutex{}
		l.locks[instanceId] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}
