package evloop

import "container/heap"

// timerHeap is a min-heap of *Timer ordered by deadline, then by an
// insertion sequence number so timers with equal deadlines fire in
// registration order (spec.md section 6 leaves the timer data structure
// itself out of scope; container/heap is this repository's concrete
// collaborator, the same choice the retrieved joeycumines-go-utilpkg
// eventloop package makes for its own timer heap).
type timerHeap struct {
	items []*Timer
	seq   uint64
}

func (h *timerHeap) init() {
	h.items = h.items[:0]
	heap.Init(h)
}

func (h *timerHeap) Len() int { return len(h.items) }

func (h *timerHeap) Less(i, j int) bool {
	if h.items[i].deadline != h.items[j].deadline {
		return h.items[i].deadline < h.items[j].deadline
	}
	return h.items[i].seq < h.items[j].seq
}

func (h *timerHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].index = i
	h.items[j].index = j
}

func (h *timerHeap) Push(x interface{}) {
	t := x.(*Timer)
	t.index = len(h.items)
	h.items = append(h.items, t)
}

func (h *timerHeap) Pop() interface{} {
	old := h.items
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	h.items = old[:n-1]
	return t
}

func (h *timerHeap) add(t *Timer) {
	h.seq++
	t.seq = h.seq
	heap.Push(h, t)
}

func (h *timerHeap) remove(t *Timer) {
	if t.index < 0 {
		return
	}
	heap.Remove(h, t.index)
}

// nextTimeout returns the milliseconds until the earliest deadline, 0 if
// one is already due, or -1 if the heap is empty. Grounds on core.c:
// uv__next_timeout.
func (h *timerHeap) nextTimeout(now uint64) int {
	if len(h.items) == 0 {
		return -1
	}
	deadline := h.items[0].deadline
	if deadline <= now {
		return 0
	}
	diff := deadline - now
	if diff > 1<<31-1 {
		return 1<<31 - 1
	}
	return int(diff)
}

// run fires every timer whose deadline has elapsed, repeating ones with a
// non-zero interval, in deadline order. A repeating timer is re-added at
// l.time+repeat, so it is not popped again by the same run; a timer that a
// callback starts with a zero timeout is already due and fires within this
// same run.
func (h *timerHeap) run(l *Loop) {
	for len(h.items) > 0 {
		t := h.items[0]
		if t.deadline > l.time {
			return
		}
		heap.Pop(h)
		t.pending = false

		if t.repeat > 0 {
			t.deadline = l.time + t.repeat
			h.add(t)
		} else {
			t.Handle.stopActive()
		}

		if t.cb != nil {
			t.cb(t)
		}
	}
}

// TimerCallback is invoked when a Timer fires.
type TimerCallback func(t *Timer)

// Timer is the in-scope timer handle: spec.md section 4.1 names timers as
// the first phase of every iteration, so a concrete implementation belongs
// in the core even though the underlying data structure is unspecified.
// Grounds on core.c/timer.c's uv_timer_t contract (start/stop/again).
type Timer struct {
	Handle

	cb       TimerCallback
	deadline uint64
	repeat   uint64
	pending  bool
	index    int
	seq      uint64
}

// NewTimer allocates a Timer bound to loop, inactive until Start is called.
func NewTimer(loop *Loop) *Timer {
	t := &Timer{index: -1}
	t.Handle.init(loop, HandleTimer, t)
	return t
}

// Start arms t to fire once after timeoutMs, and every repeatMs
// thereafter (0 means one-shot). Grounds on timer.c: uv_timer_start.
func (t *Timer) Start(cb TimerCallback, timeoutMs, repeatMs uint64) {
	if t.pending {
		t.loop.timers.remove(t)
	}
	t.cb = cb
	t.repeat = repeatMs
	t.deadline = t.loop.time + timeoutMs
	t.pending = true
	t.loop.timers.add(t)
	t.startActive()
}

// Stop disarms t. Grounds on timer.c: uv_timer_stop.
func (t *Timer) Stop() {
	if !t.pending {
		return
	}
	t.loop.timers.remove(t)
	t.pending = false
	t.stopActive()
}

// Again re-arms t to fire after its repeat interval. A timer with no repeat
// interval is left as it is while still pending, and panics otherwise
// (never started, stopped, or already fired). Grounds on timer.c:
// uv_timer_again.
func (t *Timer) Again() {
	if t.repeat == 0 && !t.pending {
		panic("evloop: Again on a timer that was never started with a repeat")
	}
	interval := t.repeat
	if interval == 0 {
		return
	}
	if t.pending {
		t.loop.timers.remove(t)
	}
	t.deadline = t.loop.time + interval
	t.pending = true
	t.loop.timers.add(t)
	t.startActive()
}

func (t *Timer) closeImmediate() {
	t.Stop()
}
