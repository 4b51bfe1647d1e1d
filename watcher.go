package evloop

import "github.com/kween-io/evloop/internal/ilist"

// PollEvent is a bitmask of the event kinds spec.md section 3 allows a
// watcher to register interest in. It mirrors the teacher's PollEvent
// enumeration in poll.go with its own bit values (translated to and from
// epoll bits in poller_linux.go), composing the way section 4.3's dispatch
// logic (pe.events &= w.pevents | HUP | ERR) expects.
type PollEvent uint32

const (
	// EventReadable: fd is readable, or (RDHUP/HUP) the peer is gone.
	EventReadable PollEvent = 1 << iota
	// EventWritable: fd is writable.
	EventWritable
	// EventReadHangup: peer half-closed (EPOLLRDHUP); delivered only when
	// requested.
	EventReadHangup
	// EventPriority: out-of-band/urgent data (EPOLLPRI).
	EventPriority
	// EventHangup: fd hung up (EPOLLHUP); always delivered.
	EventHangup
	// EventError: fd is in error (EPOLLERR); always delivered.
	EventError
)

// eventsUserMask is the subset of events a caller may request via
// ioStart/ioStop (spec.md section 4.3): EventHangup and EventError are
// unconditionally delivered by the kernel poller and are never something a
// caller enables or disables directly.
const eventsUserMask = EventReadable | EventWritable | EventReadHangup | EventPriority

// alwaysDelivered are the bits the kernel poller reports regardless of
// registration (spec.md section 6: "plus error, which the poller delivers
// unconditionally"; HUP behaves the same way in practice, while RDHUP is
// part of eventsUserMask and reported only when requested).
const alwaysDelivered = EventHangup | EventError

// WatcherCallback is invoked with the loop, the watcher that fired, and the
// (masked) event bits that were ready.
type WatcherCallback func(loop *Loop, w *ioWatcher, revents PollEvent)

// ioWatcher binds one fd to a desired event mask and a callback, exactly
// spec.md section 3's "Watcher (I/O)" record. It carries its own list
// nodes so queueing never allocates (spec.md section 9).
type ioWatcher struct {
	fd      int
	events  PollEvent // last events reconciled with the kernel
	pevents PollEvent // desired events, pending reconciliation
	cb      WatcherCallback

	watcherQueue ilist.Node
	pendingQueue ilist.Node
}

// ioInit initializes w for fd, ready to be armed with ioStart. Grounds on
// core.c: uv__io_init.
func ioInit(w *ioWatcher, cb WatcherCallback, fd int) {
	if cb == nil {
		panic("evloop: nil watcher callback")
	}
	if fd < -1 {
		panic("evloop: invalid fd")
	}
	w.watcherQueue.Init()
	w.watcherQueue.Value = w
	w.pendingQueue.Init()
	w.pendingQueue.Value = w
	w.cb = cb
	w.fd = fd
	w.events = 0
	w.pevents = 0
}

// active reports whether w currently has any of events pending. Grounds on
// core.c: uv__io_active.
func (w *ioWatcher) active(events PollEvent) bool {
	if events == 0 || events&^eventsUserMask != 0 {
		panic("evloop: invalid event mask")
	}
	return w.pevents&events != 0
}
