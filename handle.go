package evloop

import "github.com/kween-io/evloop/internal/ilist"

// HandleType enumerates the handle kinds spec.md section 3 lists. Only the
// ones the core itself drives (idle/prepare/check/async/timer/poll/signal)
// are backed by concrete implementations in this module; the rest exist so
// external collaborators can report a consistent Type() and so Close's
// type-specific dispatch (see (*Handle).Close and closer.closeImmediate)
// has somewhere to route them, per spec.md section 1's "only the contract they present to the
// loop" scoping.
type HandleType int

const (
	HandleUnknown HandleType = iota
	HandleNamedPipe
	HandleTTY
	HandleTCP
	HandleUDP
	HandlePrepare
	HandleCheck
	HandleIdle
	HandleAsync
	HandleTimer
	HandleProcess
	HandleFSEvent
	HandlePoll
	HandleFSPoll
	HandleSignal
)

// handle flag bits, spec.md section 3.
type handleFlags uint32

const (
	flagClosing handleFlags = 1 << iota
	flagClosed
	flagRef
	flagActive
)

// CloseCallback is invoked once a handle has finished closing.
type CloseCallback func(h *Handle)

// closer is implemented by every concrete handle type embedding *Handle; it
// performs the type-specific immediate close step core.c's uv_close
// dispatches to (stop watchers, flush buffers) before the handle is queued
// for finalization.
type closer interface {
	closeImmediate()
}

// Handle is the long-lived, user-visible object every concrete handle type
// (Idle, Prepare, Check, Async, Timer, PollHandle, ...) embeds. It carries
// exactly the state spec.md section 3 assigns to the core: type, flags,
// owning loop, close callback, and the two list links. Grounds on core.c's
// uv_handle_t lifecycle functions.
type Handle struct {
	typ     HandleType
	flags   handleFlags
	loop    *Loop
	closeCB CloseCallback
	self    closer // set by the embedding type's constructor

	nextClosing *Handle     // singly linked, mirrors loop->closing_handles
	handleQueue ilist.Node  // link in loop.handleQueue
}

func (h *Handle) init(loop *Loop, typ HandleType, self closer) {
	h.typ = typ
	h.loop = loop
	h.self = self
	h.flags = flagRef
	h.handleQueue.Init()
	h.handleQueue.Value = h
	loop.handleQueue.InsertTail(&h.handleQueue)
}

// Type returns the handle's kind.
func (h *Handle) Type() HandleType { return h.typ }

// Loop returns the owning loop.
func (h *Handle) Loop() *Loop { return h.loop }

// IsClosing reports whether Close has been called on h.
func (h *Handle) IsClosing() bool { return h.flags&(flagClosing|flagClosed) != 0 }

// IsActive reports whether h is currently active (spec.md section 3
// ACTIVE flag) and not closing. An active handle contributes to loop
// liveness only while it is also ref'd (see HasRef).
func (h *Handle) IsActive() bool { return h.flags&flagActive != 0 && !h.IsClosing() }

func (h *Handle) hasRef() bool { return h.flags&flagRef != 0 }

// startActive and stopActive track both the ACTIVE flag and its
// contribution to loop.activeHandles. Per spec.md section 3, only handles
// that are both active and ref'd keep the loop alive, so an unref'd handle
// toggling active here never touches the counter. Grounds on core.c:
// uv__handle_start/uv__handle_stop.
func (h *Handle) startActive() {
	if h.flags&flagActive != 0 {
		return
	}
	h.flags |= flagActive
	if h.hasRef() {
		h.loop.activeHandles++
	}
}

func (h *Handle) stopActive() {
	if h.flags&flagActive == 0 {
		return
	}
	h.flags &^= flagActive
	if h.hasRef() {
		h.loop.activeHandles--
	}
}

// Ref marks h as keeping the loop alive while it is active. Handles start
// ref'd. Grounds on core.c: uv_ref/uv__handle_ref.
func (h *Handle) Ref() {
	if h.flags&flagRef != 0 {
		return
	}
	h.flags |= flagRef
	if h.flags&flagClosing != 0 {
		return
	}
	if h.flags&flagActive != 0 {
		h.loop.activeHandles++
	}
}

// Unref marks h as not keeping the loop alive on its own: it can still run
// its callback while active, but Loop.Alive won't count it. Useful for
// handles like a periodic housekeeping timer that shouldn't by themselves
// prevent the loop from exiting. Grounds on core.c: uv_unref/uv__handle_unref.
func (h *Handle) Unref() {
	if h.flags&flagRef == 0 {
		return
	}
	h.flags &^= flagRef
	if h.flags&flagClosing != 0 {
		return
	}
	if h.flags&flagActive != 0 {
		h.loop.activeHandles--
	}
}

// HasRef reports whether h currently counts toward loop liveness while
// active.
func (h *Handle) HasRef() bool { return h.hasRef() }

// Close requests h be closed. It performs the type's immediate close step
// synchronously (self.closeImmediate, e.g. stopping watchers) and then
// queues h for finalization on the next run_closing_handles phase. Grounds
// on core.c: uv_close.
//
// Calling Close twice panics: the second call would silently double-queue
// the handle onto closing_handles, corrupting the singly linked list.
func (h *Handle) Close(cb CloseCallback) {
	if h.IsClosing() {
		panic("evloop: handle already closing")
	}
	h.flags |= flagClosing
	h.closeCB = cb
	h.self.closeImmediate()
	if h.typ != HandleSignal {
		h.makeClosePending()
	}
}

// makeClosePending prepends h onto loop.closingHandles. Signal handles call
// this themselves once their deferred teardown finishes; every other type
// gets it called automatically at the end of Close. Grounds on core.c:
// uv__make_close_pending.
func (h *Handle) makeClosePending() {
	if h.flags&flagClosing == 0 {
		panic("evloop: makeClosePending on a non-closing handle")
	}
	if h.flags&flagClosed != 0 {
		panic("evloop: makeClosePending on an already-closed handle")
	}
	h.nextClosing = h.loop.closingHandles
	h.loop.closingHandles = h
}

// finishClose is the per-handle body of run_closing_handles: mark CLOSED,
// run type-specific teardown, drop the ref, unlink, and fire the user
// callback. Grounds on core.c: uv__finish_close.
func (h *Handle) finishClose() {
	if h.flags&flagClosing == 0 {
		panic("evloop: finishClose on a non-closing handle")
	}
	if h.flags&flagClosed != 0 {
		panic("evloop: finishClose called twice")
	}
	h.flags |= flagClosed

	// flagClosing is already set, so this only clears the REF bit; the
	// active-handles count was already settled by whichever startActive/
	// stopActive/Unref call last touched it.
	h.Unref()
	h.handleQueue.Remove()

	if h.closeCB != nil {
		h.closeCB(h)
	}
}

// runClosingHandles drains loop.closingHandles, finalizing each one.
// Grounds on core.c: uv__run_closing_handles.
func (l *Loop) runClosingHandles() {
	p := l.closingHandles
	l.closingHandles = nil

	for p != nil {
		q := p.nextClosing
		p.finishClose()
		p = q
	}
}
