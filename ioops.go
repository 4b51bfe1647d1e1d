package evloop

// ioStart registers interest in events on w, lazily: the kernel isn't
// touched here, w is only marked dirty and (if not already) enqueued for
// reconciliation on the next ioPoll. Grounds on core.c: uv__io_start.
func (l *Loop) ioStart(w *ioWatcher, events PollEvent) {
	if events == 0 || events&^eventsUserMask != 0 {
		panic("evloop: invalid event mask")
	}
	if w.fd < 0 {
		panic("evloop: ioStart on an unbound watcher")
	}

	w.pevents |= events
	l.table.maybeResize(w.fd + 1)

	if w.events == w.pevents {
		// Kernel state already matches; nothing to reconcile. (libuv
		// special-cases this away only for backends where re-arming would
		// be wasted work; epoll is one of them.)
		return
	}

	if w.watcherQueue.Empty() {
		l.watcherQueue.InsertTail(&w.watcherQueue)
	}

	if l.table.get(w.fd) == nil {
		l.table.set(w.fd, w)
		l.table.nfds++
	}
}

// ioStop clears events from w's desired mask. If nothing remains, w is
// dropped from the watcher table and unqueued; if something remains but w
// had fallen off the queue (impossible in the current call sites, kept for
// completeness with the C original), it's re-queued for reconciliation.
// Grounds on core.c: uv__io_stop.
func (l *Loop) ioStop(w *ioWatcher, events PollEvent) {
	if events == 0 || events&^eventsUserMask != 0 {
		panic("evloop: invalid event mask")
	}
	if w.fd == -1 {
		return
	}
	if w.fd >= l.table.nwatchers {
		return
	}

	w.pevents &^= events

	if w.pevents == 0 {
		w.watcherQueue.Remove()

		if l.table.get(w.fd) != nil {
			if l.table.get(w.fd) != w {
				panic("evloop: fd slot owned by a different watcher")
			}
			l.table.set(w.fd, nil)
			l.table.nfds--
			w.events = 0
		}
	} else if w.watcherQueue.Empty() {
		l.watcherQueue.InsertTail(&w.watcherQueue)
	}
}

// ioClose stops all events on w, drops it from the pending queue, and
// invalidates any events for its fd sitting in an in-flight poll batch.
// Grounds on core.c: uv__io_close.
func (l *Loop) ioClose(w *ioWatcher) {
	l.ioStop(w, eventsUserMask)
	w.pendingQueue.Remove()
	l.invalidateFD(w.fd)
}

// ioFeed schedules w's callback to run on the next pending phase without
// waiting for the kernel. Grounds on core.c: uv__io_feed.
func (l *Loop) ioFeed(w *ioWatcher) {
	if w.pendingQueue.Empty() {
		l.pendingQueue.InsertTail(&w.pendingQueue)
	}
}

// fdExists reports whether fd currently has a registered watcher. Grounds
// on core.c: uv__fd_exists.
func (l *Loop) fdExists(fd int) bool {
	return l.table.get(fd) != nil
}

// CheckFD probes whether fd is acceptable to the kernel poller: attempt ADD
// then DEL with a benign mask, treating "already registered" as success.
// Grounds on the uv__io_check_fd operation named in spec.md section 4.3.
func (l *Loop) CheckFD(fd int) error {
	return l.poller.checkFD(fd)
}
