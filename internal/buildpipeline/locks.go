package buildpipeline

import (
	"context"
	"path/filepath"
	"sync"
)

// ProjectLocks serializes builds that share a project directory. Builds of
// different projects never wait on each other.
type ProjectLocks struct {
	mu    sync.Mutex
	slots map[string]*projectSlot
}

type projectSlot struct {
	ch   chan struct{}
	refs int
}

// NewProjectLocks returns an empty lock table.
func NewProjectLocks() *ProjectLocks {
	return &ProjectLocks{slots: make(map[string]*projectSlot)}
}

// Acquire blocks until dir is free or ctx is done. The returned release
// must be called exactly once.
func (l *ProjectLocks) Acquire(ctx context.Context, dir string) (release func(), err error) {
	key := filepath.Clean(dir)
	l.mu.Lock()
	if l.slots == nil {
		l.slots = make(map[string]*projectSlot)
	}
	slot, ok := l.slots[key]
	if !ok {
		slot = &projectSlot{ch: make(chan struct{}, 1)}
		l.slots[key] = slot
	}
	slot.refs++
	l.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
	case <-ctx.Done():
		l.drop(key, slot)
		return nil, ctx.Err()
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			<-slot.ch
			l.drop(key, slot)
		})
	}, nil
}

func (l *ProjectLocks) drop(key string, slot *projectSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 && l.slots[key] == slot {
		delete(l.slots, key)
	}
}

// Len reports how many directories are currently locked or awaited.
func (l *ProjectLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
