package evloop

// PollCallback receives the masked event bits ioPoll dispatched for a
// PollHandle's fd, plus a non-nil err if the wait itself failed for a
// reason attributable to this fd (currently unused on the epoll backend,
// kept for parity with libuv's uv_poll_cb signature and for backends that
// can report a per-fd error out of band).
type PollCallback func(p *PollHandle, revents PollEvent, err error)

// PollHandle is the generic in-scope handle spec.md section 1 keeps for
// arbitrary fds: everything a concrete TCP/UDP/pipe/TTY handle body would
// need from the loop, without any of the protocol-specific state those
// bodies carry (buffering, framing, connection setup) that spec.md
// excludes. Grounds on poll.c's uv_poll_t contract, narrowed to exactly
// the watcher plumbing already-built handle types (Async, Signal) also
// use directly, and backed by watcherpool.go's free list rather than an
// inline ioWatcher field so many short-lived PollHandles don't each pay
// for their own permanently allocated watcher.
type PollHandle struct {
	Handle
	watcher *ioWatcher
	cb      PollCallback
}

// NewPollHandle binds a PollHandle to fd, which must already be set
// non-blocking by the caller (spec.md section 1: fd lifecycle ownership
// stays with the caller). Grounds on poll.c: uv_poll_init.
func NewPollHandle(loop *Loop, fd int) *PollHandle {
	p := &PollHandle{watcher: globalWatcherPool.get()}
	p.Handle.init(loop, HandlePoll, p)
	ioInit(p.watcher, p.onEvent, fd)
	return p
}

// Start begins delivering events matching mask (any combination of
// EventReadable/EventWritable/EventReadHangup/EventPriority) through cb.
// Grounds on poll.c: uv_poll_start.
func (p *PollHandle) Start(mask PollEvent, cb PollCallback) {
	p.cb = cb
	p.loop.ioStart(p.watcher, mask)
	p.startActive()
}

// Stop disarms p without releasing its fd or watcher slot. Grounds on
// poll.c: uv_poll_stop.
func (p *PollHandle) Stop() {
	p.loop.ioStop(p.watcher, eventsUserMask)
	p.stopActive()
}

func (p *PollHandle) onEvent(loop *Loop, w *ioWatcher, revents PollEvent) {
	if p.cb != nil {
		p.cb(p, revents, nil)
	}
}

func (p *PollHandle) closeImmediate() {
	p.stopActive()
	p.loop.ioClose(p.watcher)
	globalWatcherPool.put(p.watcher)
	p.watcher = nil
}
