package manager

import (
	"strings"
	"sync"
)

// networkLocks hands out one mutex per network name, compared
// case-insensitively. Entries are dropped once nobody holds or waits on them.
type networkLocks struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	sync.Mutex
	refs int
}

func newNetworkLocks() *networkLocks {
	return &networkLocks{locks: make(map[string]*refLock)}
}

// lock blocks until the network is free and returns the matching unlock
func (l *networkLocks) lock(network string) func() {
	key := strings.ToLower(network)

	l.mu.Lock()
	rl, ok := l.locks[key]
	if !ok {
		rl = &refLock{}
		l.locks[key] = rl
	}
	rl.refs++
	l.mu.Unlock()

	rl.Lock()

	return func() {
		rl.Unlock()

		l.mu.Lock()
		rl.refs--
		if rl.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

func (l *networkLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
