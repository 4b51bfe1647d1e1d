package evloop

// pollBatch is what the two sentinel slots publish while a poll is in
// flight: a pointer to the platform events buffer and the number of valid
// entries in it, so that a callback running mid-dispatch can invalidate
// events for an fd it just closed (see (*Loop).invalidateFD in iopoll.go).
//
// core.c's maybe_resize reuses two extra elements of the same
// uv__io_t*[] array for this (a void* payload and a length, both cast
// through the same pointer-sized slot). Go slices are homogeneously typed,
// so punning a *ioWatcher slot to hold a batch pointer would need unsafe;
// instead the sentinel here is its own small struct occupying the same two
// trailing slice positions conceptually. This preserves invariant 3 of
// spec.md section 3 (the two reserved entries hold the batch pointer and
// length only during a blocking poll, and are nil otherwise) without
// resorting to pointer punning.
type pollBatch struct {
	events interface{} // *[]kernelEvent while a poll is in flight
	length int
}

// watcherTable is the fd-indexed mapping described in spec.md section 3/4.2:
// a resizable slice of *ioWatcher, sized in lockstep with a sentinel record
// that publishes the in-flight poll batch (see pollBatch above). Grounds on
// core.c's maybe_resize.
type watcherTable struct {
	watchers  []*ioWatcher // length nwatchers
	nwatchers int
	nfds      int
	sentinel  pollBatch // valid only while a blocking poll is in progress
}

// nextPowerOfTwo returns the smallest power of two >= val, matching
// core.c's next_power_of_two exactly (bit-smear-then-increment).
func nextPowerOfTwo(val uint32) uint32 {
	val--
	val |= val >> 1
	val |= val >> 2
	val |= val >> 4
	val |= val >> 8
	val |= val >> 16
	val++
	return val
}

// maybeResize ensures the table can address index length-1, growing by
// doubling (rounded to a power of two, minus the two slots core.c reserves
// for its sentinel so the growth curve matches exactly). Allocation
// failure is impossible in Go (make panics on OOM instead of returning
// nil), which is the same fatal-on-failure policy core.c's maybe_resize
// documents via abort().
func (t *watcherTable) maybeResize(length int) {
	if length <= t.nwatchers {
		return
	}

	nwatchers := int(nextPowerOfTwo(uint32(length)+2)) - 2

	watchers := make([]*ioWatcher, nwatchers)
	copy(watchers, t.watchers)

	t.watchers = watchers
	t.nwatchers = nwatchers
}

func (t *watcherTable) get(fd int) *ioWatcher {
	if fd < 0 || fd >= t.nwatchers {
		return nil
	}
	return t.watchers[fd]
}

func (t *watcherTable) set(fd int, w *ioWatcher) {
	t.watchers[fd] = w
}

// countLive recomputes the number of non-nil entries, for checking
// invariant 2 of spec.md section 3 independently of the nfds counter.
// Nothing in the package calls it.
func (t *watcherTable) countLive() int {
	n := 0
	for i := 0; i < t.nwatchers; i++ {
		if t.watchers[i] != nil {
			n++
		}
	}
	return n
}
