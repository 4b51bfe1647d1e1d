package evloop

import (
	"fmt"

	"github.com/kween-io/evloop/internal/ilist"
)

// maxSafeTimeoutMs caps a blocking wait's timeout to work around the
// pre-2.6.37 kernel bug where timeouts beyond roughly 30 minutes became
// effectively infinite on 32-bit architectures (spec.md section 4.3 step
// 5a; linux-core.c's max_safe_timeout). The real bug is architecture- and
// kernel-version-specific; we apply the cap unconditionally rather than
// gate it on GOARCH, since capping an already-30-minute wait costs nothing
// and real_timeout still reflects the true requested remainder afterward.
const maxSafeTimeoutMs = 1789569

// ioPoll implements spec.md section 4.3's io_poll: reconcile the watcher
// queue with the kernel, block for up to timeout ms, dispatch ready
// watchers, and repeat (bounded by the re-poll budget, and by real_timeout
// bookkeeping across EINTR/zero-event returns) until the caller's deadline
// is spent. Grounds on linux-core.c: uv__io_poll.
func (l *Loop) ioPoll(timeout int) {
	l.reconcile()

	if l.watcherQueueEmptyAndNoFDs() {
		return
	}

	base := l.time
	realTimeout := timeout
	budget := l.cfg.repollBudget

	for {
		capped := timeout
		if timeout >= maxSafeTimeoutMs {
			capped = maxSafeTimeoutMs
		}

		events, err := l.poller.Wait(capped, l.cfg.blockSIGPROF)
		l.updateTime()

		switch {
		case err != nil:
			// Any error other than EINTR is unrecoverable: the backend fd
			// is in a state this loop can no longer reason about. Grounds
			// on linux-core.c's abort() on any epoll_pwait errno besides
			// EINTR.
			if !isEIntr(err) {
				panic(fmt.Sprintf("evloop: epoll_wait: %v", err))
			}
			if timeout == -1 {
				continue
			}
			if timeout == 0 {
				return
			}
			// else: fall through to the timeout accounting below.

		case len(events) == 0:
			if timeout == 0 {
				return
			}
			if timeout == -1 {
				panic("evloop: epoll_wait returned no events with an infinite timeout")
			}
			// else: fall through to the timeout accounting below.

		default:
			l.publishBatch(events)
			haveSignals, nevents := l.dispatch(events)
			l.clearBatch()

			if haveSignals {
				// Event loop should cycle now so don't poll again.
				return
			}
			if nevents > 0 {
				if len(events) == maxBatch && budget > 0 {
					budget--
					timeout = 0
					continue
				}
				return
			}
			if timeout == 0 {
				return
			}
			if timeout == -1 {
				continue
			}
			// else: fall through to the timeout accounting below.
		}

		// Update timeout (spec.md section 4.3 step (f)): consume the
		// elapsed wall-clock time from the original deadline and either
		// give up or retry with whatever is left.
		realTimeout -= int(l.time - base)
		if realTimeout <= 0 {
			return
		}
		timeout = realTimeout
	}
}

// watcherQueueEmptyAndNoFDs mirrors linux-core.c's early return when there
// is nothing registered at all: no pending reconciliation and no live fds,
// polling would just block on an empty epoll set for no reason.
func (l *Loop) watcherQueueEmptyAndNoFDs() bool {
	return l.watcherQueue.Empty() && l.table.nfds == 0
}

// reconcile drains watcherQueue, calling Add or Modify on the backend for
// each dirty watcher. An Add that reports EEXIST (the watcher table and
// the kernel's own view disagreed, e.g. after Fork) is retried as Modify.
// Any other failure is fatal: the watcher would be left desynchronized
// between the table (which already counts it registered) and the kernel
// (which never got the call), silently violating spec.md section 3's
// invariants 1 and 4. Grounds on linux-core.c's abort() on any epoll_ctl
// errno besides EEXIST.
func (l *Loop) reconcile() {
	ilist.Range(&l.watcherQueue, func(n *ilist.Node) {
		n.Remove()
		w := n.Value.(*ioWatcher)

		if w.events == 0 {
			err := l.poller.Add(w.fd, w.pevents)
			if err != nil && isEExist(err) {
				err = l.poller.Modify(w.fd, w.pevents)
			}
			if err != nil {
				panic(fmt.Sprintf("evloop: epoll_ctl(ADD) fd=%d: %v", w.fd, err))
			}
		} else {
			if err := l.poller.Modify(w.fd, w.pevents); err != nil {
				panic(fmt.Sprintf("evloop: epoll_ctl(MOD) fd=%d: %v", w.fd, err))
			}
		}

		w.events = w.pevents
	})
}

// publishBatch fills the watcher table's sentinel with the in-flight batch,
// spec.md section 3 invariant 3, so a callback that closes an fd mid-
// dispatch can invalidate later entries for it via invalidateFD.
func (l *Loop) publishBatch(events []kernelEvent) {
	l.table.sentinel.events = &events
	l.table.sentinel.length = len(events)
}

func (l *Loop) clearBatch() {
	l.table.sentinel.events = nil
	l.table.sentinel.length = 0
}

// maskRevents applies spec.md section 4.3 step (e)'s masking and
// error/hangup merge strategy: restrict revents to what w actually wants
// plus the always-delivered bits, then, if only error/hangup survived,
// merge in whichever of read/write/priority the watcher asked for so a
// callback observing readiness on close doesn't stall (the resolved open
// question in spec.md section 9; linux-core.c lines 452-454).
func maskRevents(w *ioWatcher, revents PollEvent) PollEvent {
	masked := revents & (w.pevents | alwaysDelivered)
	if masked&eventsUserMask == 0 && masked&(EventError|EventHangup) != 0 {
		masked |= w.pevents & eventsUserMask
	}
	return masked
}

// dispatch delivers each ready event to its watcher and reports how many
// were actually delivered (nevents) and whether the loop's designated
// signal watcher was among them. The signal watcher's callback, if any,
// runs once at the end with a literal readable bit rather than whatever
// the kernel happened to report, matching linux-core.c's
// "loop->signal_io_watcher.cb(loop, &loop->signal_io_watcher, POLLIN)".
// Grounds on linux-core.c's dispatch loop in uv__io_poll.
func (l *Loop) dispatch(events []kernelEvent) (haveSignals bool, nevents int) {
	for i := range events {
		ke := events[i]
		if ke.fd == -1 {
			// Invalidated by a callback earlier in this same batch.
			continue
		}

		w := l.table.get(ke.fd)
		if w == nil {
			// Stale: the fd was closed and possibly reused for something
			// this loop doesn't track. Deregister it so the kernel stops
			// reporting it. Ignore errors: we may be racing another
			// goroutine's close of the same fd number.
			_ = l.poller.Remove(ke.fd)
			continue
		}

		masked := maskRevents(w, ke.events)
		if masked == 0 {
			continue
		}

		if w == l.signalIOWatcher {
			haveSignals = true
		} else {
			w.cb(l, w, masked)
		}
		nevents++
	}

	if haveSignals {
		w := l.signalIOWatcher
		w.cb(l, w, EventReadable)
	}

	return haveSignals, nevents
}

// invalidateFD scrubs fd out of any in-flight poll batch, so a callback
// that closes fd (freeing it for reuse by a later accept/open in the same
// dispatch loop) can't have a stale event delivered to whatever watcher
// ends up on that fd next. Grounds on core.c: uv__platform_invalidate_fd.
func (l *Loop) invalidateFD(fd int) {
	batch, ok := l.table.sentinel.events.(*[]kernelEvent)
	if !ok || batch == nil {
		return
	}
	for i := range *batch {
		if (*batch)[i].fd == fd {
			(*batch)[i].fd = -1
		}
	}
}
