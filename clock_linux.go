//go:build linux

package evloop

import (
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// fastClockID caches the probe result from linux-core.c: uv__hrtime —
// prefer CLOCK_MONOTONIC_COARSE (serviced entirely from the vDSO) but only
// when its resolution is 1ms or better; otherwise fall back to
// CLOCK_MONOTONIC. 0 means "unprobed", the two clock ids are never 0.
var fastClockID int32

func probeFastClock() int32 {
	var res unix.Timespec
	if err := unix.ClockGetres(unix.CLOCK_MONOTONIC_COARSE, &res); err == nil && res.Nsec <= 1000000 {
		return unix.CLOCK_MONOTONIC_COARSE
	}
	return unix.CLOCK_MONOTONIC
}

// hrtime returns nanoseconds from a monotonic clock source, never wall
// clock, so it cannot be affected by NTP or manual clock adjustments.
func hrtime(kind clockKind) uint64 {
	clockID := int32(unix.CLOCK_MONOTONIC)
	if kind == clockFast {
		id := atomic.LoadInt32(&fastClockID)
		if id == 0 {
			id = probeFastClock()
			atomic.StoreInt32(&fastClockID, id)
		}
		clockID = id
	}

	var ts unix.Timespec
	if err := unix.ClockGettime(clockID, &ts); err != nil {
		return 0
	}
	return uint64(ts.Sec)*1e9 + uint64(ts.Nsec)
}
