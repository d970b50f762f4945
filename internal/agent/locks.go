package agent

import (
	"context"
	"sync"
)

// turnLocks serializes turns per conversation inside one process. Entries are
// dropped once nobody holds or waits for them.
type turnLocks struct {
	mu      sync.Mutex
	entries map[uint]*turnLock
}

type turnLock struct {
	slot chan struct{}
	refs int
}

func newTurnLocks() *turnLocks {
	return &turnLocks{entries: make(map[uint]*turnLock)}
}

// acquire blocks until the conversation is free or ctx is done.
func (l *turnLocks) acquire(ctx context.Context, conversationID uint) (func(), error) {
	l.mu.Lock()
	entry, ok := l.entries[conversationID]
	if !ok {
		entry = &turnLock{slot: make(chan struct{}, 1)}
		l.entries[conversationID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.slot <- struct{}{}:
	case <-ctx.Done():
		l.release(conversationID, entry)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.slot
			l.release(conversationID, entry)
		})
	}, nil
}

func (l *turnLocks) release(conversationID uint, entry *turnLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.entries, conversationID)
	}
}

func (l *turnLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
