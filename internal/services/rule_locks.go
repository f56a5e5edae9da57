package services

import "sync"

// ruleLocks hands out one mutex per rule ID. Entries are dropped once no
// caller holds or waits for them. It also counts state changes per rule so a
// caller that read a rule without holding its lock can tell whether it moved.
type ruleLocks struct {
	mu    sync.Mutex
	locks map[int64]*ruleLock
	revs  map[int64]uint64
}

type ruleLock struct {
	mu   sync.Mutex
	refs int
}

func newRuleLocks() *ruleLocks {
	return &ruleLocks{
		locks: make(map[int64]*ruleLock),
		revs:  make(map[int64]uint64),
	}
}

// lock blocks until the rule's mutex is held and returns its release func
func (l *ruleLocks) lock(id int64) func() {
	l.mu.Lock()
	rl, ok := l.locks[id]
	if !ok {
		rl = &ruleLock{}
		l.locks[id] = rl
	}
	rl.refs++
	l.mu.Unlock()

	rl.mu.Lock()

	return func() {
		rl.mu.Unlock()

		l.mu.Lock()
		rl.refs--
		if rl.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

// bump records a state change. Callers hold the rule's lock.
func (l *ruleLocks) bump(id int64) {
	l.mu.Lock()
	l.revs[id]++
	l.mu.Unlock()
}

func (l *ruleLocks) revision(id int64) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.revs[id]
}

func (l *ruleLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
