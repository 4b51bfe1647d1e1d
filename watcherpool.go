package evloop

import (
	"runtime"
	"sync/atomic"
)

// watcherPool is a lock-free free list of *ioWatcher, adapted from the
// teacher's fd_operator_cache.go: a CAS spinlock guards a singly linked
// free list built out of the watchers' own free-list pointers (via
// pendingQueue.Value, unused while a watcher sits in the pool), and new
// watchers are allocated a whole block at a time to amortize the
// allocator cost the way operatorCache.alloc does with its FDOperator
// blocks.
type watcherPool struct {
	lock uint32
	free *ioWatcher
}

// watcherPoolBlockSize mirrors the teacher's per-block allocation count in
// fd_operator_cache.go.
const watcherPoolBlockSize = 128

var globalWatcherPool watcherPool

func (p *watcherPool) lockPool() {
	for !atomic.CompareAndSwapUint32(&p.lock, 0, 1) {
		runtime.Gosched()
	}
}

func (p *watcherPool) unlockPool() {
	atomic.StoreUint32(&p.lock, 0)
}

// poolNext threads the free list through a watcher's pendingQueue.Value
// field, which is otherwise unused while the watcher sits in the pool
// (real dispatch use of pendingQueue only happens once ioInit re-points
// Value back at the watcher itself).
func poolNext(w *ioWatcher) *ioWatcher {
	if w.pendingQueue.Value == nil {
		return nil
	}
	return w.pendingQueue.Value.(*ioWatcher)
}

func setPoolNext(w, next *ioWatcher) {
	w.pendingQueue.Value = next
}

// get pops a watcher from the free list, allocating a fresh block if empty.
func (p *watcherPool) get() *ioWatcher {
	p.lockPool()
	if p.free == nil {
		p.unlockPool()
		p.grow()
		p.lockPool()
	}
	w := p.free
	p.free = poolNext(w)
	p.unlockPool()
	setPoolNext(w, nil)
	return w
}

// put returns w to the free list. w must already be fully stopped
// (ioClose'd) by the caller.
func (p *watcherPool) put(w *ioWatcher) {
	p.lockPool()
	setPoolNext(w, p.free)
	p.free = w
	p.unlockPool()
}

func (p *watcherPool) grow() {
	block := make([]ioWatcher, watcherPoolBlockSize)
	p.lockPool()
	for i := range block {
		w := &block[i]
		setPoolNext(w, p.free)
		p.free = w
	}
	p.unlockPool()
}

