package evloop

// kernelEvent is one entry of a poll batch: an fd and the (already
// translated) event bits the kernel reported for it. -1 as fd marks an
// invalidated entry (see (*Loop).invalidateFD in iopoll.go), matching
// linux-core.c's "Skip invalidated events" check on pe->data.fd.
type kernelEvent struct {
	fd     int
	events PollEvent
}

// Poller wraps the platform readiness primitive (epoll on Linux), mirroring
// the teacher's Poll interface in poll.go but exposing the finer-grained
// Add/Modify/Remove operations spec.md section 4.3's reconciliation step
// needs, rather than owning the whole wait-dispatch loop itself (that loop
// is (*Loop).ioPoll, since spec.md assigns the algorithm to the core).
type Poller interface {
	// FD returns the backend fd (epoll fd on Linux).
	FD() int

	// Add registers fd for events. Returns an already-registered error the
	// caller (ioPoll's reconcile step) is expected to retry as Modify.
	Add(fd int, events PollEvent) error

	// Modify changes fd's registered events.
	Modify(fd int, events PollEvent) error

	// Remove deregisters fd. Errors are expected to be ignored by callers
	// racing a fd close (spec.md section 7).
	Remove(fd int) error

	// Wait blocks for up to timeoutMs milliseconds (-1 blocks forever, 0
	// polls without blocking) for events, filling and returning its
	// internal batch buffer, growing it as needed. blockSIGPROF requests
	// the profiler signal be masked for the duration of the call.
	Wait(timeoutMs int, blockSIGPROF bool) ([]kernelEvent, error)

	// Close releases the backend fd.
	Close() error

	// checkFD probes whether fd is acceptable to this backend: ADD then
	// DEL with a benign mask, treating "already registered" as success.
	checkFD(fd int) error
}
