//go:build linux

package evloop

import (
	"encoding/binary"
	"log"
	"sync/atomic"

	"github.com/bytedance/gopkg/lang/mcache"
	"golang.org/x/sys/unix"
)

// AsyncCallback runs on the loop goroutine after a Send wakes it up.
type AsyncCallback func(a *Async)

// Async is the one handle type spec.md section 5 sanctions calling from any
// goroutine: Send is safe under concurrent use, backed by an eventfd
// registered as an ordinary read watcher on the loop. Grounds on the
// teacher's eventfd-based wakeup in poll_default_linux.go (poll.wop /
// Trigger) and on core.c/linux-core.c's uv_async_t contract.
type Async struct {
	Handle
	watcher ioWatcher
	fd      int
	pending int32
	cb      AsyncCallback
}

// NewAsync creates and arms an Async handle, opening its backing eventfd
// immediately. The handle is active from construction: an Async has no
// separate Start, matching uv_async_init's semantics (there is no
// uv_async_stop).
func NewAsync(loop *Loop, cb AsyncCallback) (*Async, error) {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return nil, errnoToLoopError(err)
	}

	a := &Async{fd: fd, cb: cb}
	a.Handle.init(loop, HandleAsync, a)
	ioInit(&a.watcher, a.onReadable, fd)
	loop.ioStart(&a.watcher, EventReadable)
	a.startActive()
	// An async handle keeps the loop alive only via activeHandles like any
	// other handle; it does not force Alive() true on its own beyond that,
	// matching uv_async_t (a Send from a foreign goroutine cannot resurrect
	// an already-stopped loop, only wake one still running).
	return a, nil
}

// Send requests the loop wake from a blocking poll and invoke cb. Safe to
// call from any goroutine, any number of times; sends coalesce (spec.md
// section 5), matching uv_async_send's single-pending-wakeup guarantee.
func (a *Async) Send() error {
	if !atomic.CompareAndSwapInt32(&a.pending, 0, 1) {
		return nil
	}
	buf := mcache.Malloc(8)
	defer mcache.Free(buf)
	binary.LittleEndian.PutUint64(buf, 1)
	_, err := unix.Write(a.fd, buf)
	if err != nil && errnoName(err) != "EAGAIN" {
		return errnoToLoopError(err)
	}
	return nil
}

func (a *Async) onReadable(loop *Loop, w *ioWatcher, revents PollEvent) {
	atomic.StoreInt32(&a.pending, 0)

	buf := mcache.Malloc(8)
	defer mcache.Free(buf)
	for {
		_, err := unix.Read(a.fd, buf)
		if err == nil {
			continue
		}
		if errnoName(err) == "EAGAIN" {
			break
		}
		log.Printf("evloop: async eventfd read: %v", err)
		break
	}

	if a.cb != nil {
		a.cb(a)
	}
}

func (a *Async) closeImmediate() {
	a.stopActive()
	loop := a.loop
	loop.ioClose(&a.watcher)
	if err := closeFD(a.fd); err != nil {
		log.Printf("evloop: async eventfd close: %v", err)
	}
}
