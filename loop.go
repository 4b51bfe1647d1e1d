package evloop

import "github.com/kween-io/evloop/internal/ilist"

// RunMode selects how many iterations Run performs, spec.md section 4.1.
type RunMode int

const (
	// RunDefault loops until the loop is no longer alive or Stop is called.
	RunDefault RunMode = iota
	// RunOnce polls for I/O at least once, guaranteeing forward progress,
	// then returns.
	RunOnce
	// RunNoWait polls for I/O without blocking and returns immediately.
	RunNoWait
)

// Loop is the process/thread-local event-loop state, spec.md section 3.
// A Loop and everything registered on it must only be touched from the
// goroutine driving Run (spec.md section 5); the one sanctioned exception
// is Async.Send, which is safe from any goroutine.
type Loop struct {
	time uint64 // current monotonic time, milliseconds

	poller Poller
	table  watcherTable

	watcherQueue ilist.Node // watchers with events != pevents
	pendingQueue ilist.Node // watchers due a callback without kernel round-trip

	idleHandles    ilist.Node
	prepareHandles ilist.Node
	checkHandles   ilist.Node
	closingHandles *Handle
	handleQueue    ilist.Node

	activeHandles int
	activeReqs    int
	stopFlag      bool

	signalIOWatcher *ioWatcher

	timers timerHeap

	cfg loopConfig
}

// NewLoop allocates the backend poller and initializes every queue.
// Grounds on core.c/linux-core.c: uv_loop_init.
func NewLoop(opts ...LoopOption) (*Loop, error) {
	cfg := defaultLoopConfig()
	for _, o := range opts {
		o.f(&cfg)
	}

	poller, err := newEpollPoller()
	if err != nil {
		return nil, err
	}

	l := &Loop{
		poller: poller,
		cfg:    cfg,
	}
	l.watcherQueue.Init()
	l.pendingQueue.Init()
	l.idleHandles.Init()
	l.prepareHandles.Init()
	l.checkHandles.Init()
	l.handleQueue.Init()
	l.timers.init()
	l.updateTime()

	return l, nil
}

// Close releases the backend poller. The caller must ensure every handle
// registered on the loop has already finished closing. Grounds on core.c's
// loop teardown (uv_loop_close: close backend_fd, free watchers).
func (l *Loop) Close() error {
	return l.poller.Close()
}

// Now returns the loop's cached time, in milliseconds, as of the last
// refresh point (spec.md section 8: before timers, after poll, and in
// RunOnce mode before the post-poll re-timer run).
func (l *Loop) Now() uint64 { return l.time }

// UpdateTime forces an immediate refresh of the loop's cached time.
// Grounds on core.c: uv_update_time.
func (l *Loop) UpdateTime() { l.updateTime() }

// BackendFD exposes the kernel poller's fd, for embedding this loop under
// another multiplexer. Grounds on core.c: uv_backend_fd.
func (l *Loop) BackendFD() int { return l.poller.FD() }

// Fork rebuilds the backend poller after the process has forked: the old
// epoll fd is not inherited in a usable state across fork in every
// scenario libuv guards against (a forked child sharing the parent's
// epoll fd would receive events for watchers it knows nothing about), so
// a fresh one is opened and every live watcher is re-registered against
// it with its kernel-side state reset to zero, forcing a full ADD (not
// MOD) reconciliation on the next ioPoll. Grounds on
// linux-core.c: uv_loop_fork / uv__io_fork. Supplements spec.md section 9's
// "fork handling" requirement, which names the concern without giving the
// concrete operation.
func (l *Loop) Fork() error {
	if err := l.poller.Close(); err != nil {
		return err
	}
	poller, err := newEpollPoller()
	if err != nil {
		return err
	}
	l.poller = poller

	for fd := 0; fd < l.table.nwatchers; fd++ {
		w := l.table.get(fd)
		if w == nil {
			continue
		}
		w.events = 0
		if w.watcherQueue.Empty() {
			l.watcherQueue.InsertTail(&w.watcherQueue)
		}
	}
	return nil
}

// hasActiveHandles / hasActiveReqs / Alive implement spec.md section 4.4's
// liveness definition.
func (l *Loop) hasActiveHandles() bool { return l.activeHandles > 0 }
func (l *Loop) hasActiveReqs() bool    { return l.activeReqs > 0 }

// Alive reports whether the loop has any active handles, active requests,
// or handles pending close. Grounds on core.c: uv_loop_alive.
func (l *Loop) Alive() bool {
	return l.hasActiveHandles() || l.hasActiveReqs() || l.closingHandles != nil
}

// Stop requests the loop exit at the next phase boundary. Grounds on
// core.c: uv_stop (folded into stopFlag directly since this port has no
// separate uv_stop wrapper to keep symmetric with the C API surface).
func (l *Loop) Stop() { l.stopFlag = true }

// BackendTimeout computes the timeout, in milliseconds, the next blocking
// poll should use: 0 if a stop was requested, there's no active work, or
// any active idle handle, pending watcher or closing handle exists; otherwise the time until the next
// timer deadline, or -1 for "block forever". Grounds on core.c:
// uv_backend_timeout.
func (l *Loop) BackendTimeout() int {
	if l.stopFlag {
		return 0
	}
	if !l.hasActiveHandles() && !l.hasActiveReqs() {
		return 0
	}
	idleActive := false
	runHandleList(&l.idleHandles, func(v interface{}) {
		if v.(*Idle).IsActive() {
			idleActive = true
		}
	})
	if idleActive {
		return 0
	}
	if !l.pendingQueue.Empty() {
		return 0
	}
	if l.closingHandles != nil {
		return 0
	}
	return l.timers.nextTimeout(l.time)
}

// runPending drains pendingQueue, invoking each watcher's callback with
// EventWritable (libuv's POLLOUT-equivalent placeholder, spec.md section
// 4.4). Returns whether any callback ran. Grounds on core.c:
// uv__run_pending.
func (l *Loop) runPending() bool {
	if l.pendingQueue.Empty() {
		return false
	}

	var pq ilist.Node
	ilist.Move(&l.pendingQueue, &pq)

	ilist.Range(&pq, func(n *ilist.Node) {
		n.Remove()
		w := n.Value.(*ioWatcher)
		w.cb(l, w, EventWritable)
	})

	return true
}

func runHandleList(head *ilist.Node, fn func(interface{})) {
	ilist.Range(head, func(n *ilist.Node) {
		fn(n.Value)
	})
}

func (l *Loop) runIdle() {
	runHandleList(&l.idleHandles, func(v interface{}) {
		h := v.(*Idle)
		if h.Handle.IsActive() {
			h.run()
		}
	})
}

func (l *Loop) runPrepare() {
	runHandleList(&l.prepareHandles, func(v interface{}) {
		h := v.(*Prepare)
		if h.Handle.IsActive() {
			h.run()
		}
	})
}

func (l *Loop) runCheck() {
	runHandleList(&l.checkHandles, func(v interface{}) {
		h := v.(*Check)
		if h.Handle.IsActive() {
			h.run()
		}
	})
}

// Run drives the loop through the phase order in spec.md section 4.1 until
// mode says to stop or the loop is no longer alive. Grounds on core.c:
// uv_run.
func (l *Loop) Run(mode RunMode) bool {
	r := l.Alive()
	if !r {
		l.updateTime()
	}

	for r && !l.stopFlag {
		l.updateTime()
		l.timers.run(l)
		ranPending := l.runPending()
		l.runIdle()
		l.runPrepare()

		timeout := 0
		if (mode == RunOnce && !ranPending) || mode == RunDefault {
			timeout = l.BackendTimeout()
		}

		l.ioPoll(timeout)
		l.runCheck()
		l.runClosingHandles()

		if mode == RunOnce {
			// UV_RUN_ONCE guarantees forward progress: ioPoll can return
			// having done nothing but let a timeout elapse, so re-check
			// timers once more before deciding the iteration produced no
			// callback at all.
			l.updateTime()
			l.timers.run(l)
		}

		r = l.Alive()
		if mode == RunOnce || mode == RunNoWait {
			break
		}
	}

	l.stopFlag = false
	return r
}
