package evloop

import "testing"

func TestTimerHeapOrdering(t *testing.T) {
	var h timerHeap
	h.init()

	a := &Timer{index: -1}
	a.deadline = 30
	b := &Timer{index: -1}
	b.deadline = 10
	c := &Timer{index: -1}
	c.deadline = 20

	h.add(a)
	h.add(b)
	h.add(c)

	if h.items[0] != b {
		t.Fatalf("heap top = deadline %d, want 10", h.items[0].deadline)
	}
}

func TestTimerHeapNextTimeout(t *testing.T) {
	var h timerHeap
	h.init()

	if got := h.nextTimeout(0); got != -1 {
		t.Fatalf("empty heap nextTimeout = %d, want -1", got)
	}

	tm := &Timer{index: -1, deadline: 100}
	h.add(tm)

	if got := h.nextTimeout(40); got != 60 {
		t.Fatalf("nextTimeout = %d, want 60", got)
	}
	if got := h.nextTimeout(150); got != 0 {
		t.Fatalf("nextTimeout for elapsed deadline = %d, want 0", got)
	}
}

func TestTimerHeapRunFiresDueTimersInOrder(t *testing.T) {
	l := &Loop{time: 100}
	l.timers.init()
	l.handleQueue.Init()

	var fired []int
	mk := func(deadline uint64, id int) *Timer {
		tm := NewTimer(l)
		tm.deadline = deadline
		tm.pending = true
		tm.cb = func(*Timer) { fired = append(fired, id) }
		l.timers.add(tm)
		return tm
	}

	mk(100, 1)
	mk(50, 2)
	mk(200, 3) // not due yet

	l.timers.run(l)

	if len(fired) != 2 || fired[0] != 2 || fired[1] != 1 {
		t.Fatalf("fired = %v, want [2 1]", fired)
	}
	if l.timers.Len() != 1 {
		t.Fatalf("remaining timers = %d, want 1", l.timers.Len())
	}
}

func TestTimerRepeatReschedules(t *testing.T) {
	l := &Loop{time: 0}
	l.timers.init()
	l.handleQueue.Init()

	tm := NewTimer(l)
	count := 0
	tm.Start(func(*Timer) { count++ }, 10, 10)

	l.time = 10
	l.timers.run(l)
	if count != 1 {
		t.Fatalf("count after first fire = %d, want 1", count)
	}
	if l.timers.Len() != 1 {
		t.Fatal("repeating timer should still be scheduled")
	}

	l.time = 20
	l.timers.run(l)
	if count != 2 {
		t.Fatalf("count after second fire = %d, want 2", count)
	}
}

func TestTimerStopRemovesFromHeap(t *testing.T) {
	l := &Loop{time: 0}
	l.timers.init()
	l.handleQueue.Init()

	tm := NewTimer(l)
	tm.Start(func(*Timer) {}, 10, 0)
	if l.timers.Len() != 1 {
		t.Fatal("expected timer registered")
	}
	tm.Stop()
	if l.timers.Len() != 0 {
		t.Fatal("expected timer removed after Stop")
	}
	if tm.IsActive() {
		t.Fatal("stopped timer should not be active")
	}
}
