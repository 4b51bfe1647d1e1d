package evloop

import "time"

// clockKind selects between the fast (possibly coarse) and precise
// monotonic clock sources, per spec.md section 6.
type clockKind int

const (
	clockFast clockKind = iota
	clockPrecise
)

// updateTime refreshes loop.time from the fast clock, converting
// nanoseconds to milliseconds. Invariant 7 (spec.md section 3) requires
// loop.time be non-decreasing; hrtime is backed by CLOCK_MONOTONIC (or its
// coarse variant), so no clamping against the previous value is needed.
func (l *Loop) updateTime() {
	l.time = hrtime(clockFast) / uint64(time.Millisecond)
}
