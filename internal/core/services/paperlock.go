package services

import "sync"

// paperLocks serialises work on the same (collection, paper) pair while
// letting distinct papers proceed in parallel. Entries are dropped once
// no caller holds or waits for them.
type paperLocks struct {
	mu    sync.Mutex
	locks map[string]*paperLock
}

type paperLock struct {
	sync.Mutex
	refs int
}

func newPaperLocks() *paperLocks {
	return &paperLocks{locks: make(map[string]*paperLock)}
}

// lock blocks until the pair is free and returns its unlock function.
func (p *paperLocks) lock(collectionID, paperID string) func() {
	key := collectionID + "\x00" + paperID

	p.mu.Lock()
	l, ok := p.locks[key]
	if !ok {
		l = &paperLock{}
		p.locks[key] = l
	}
	l.refs++
	p.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, key)
		}
		p.mu.Unlock()
	}
}

// size returns the number of live entries.
func (p *paperLocks) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.locks)
}
