package evloop_test

import (
	"os"
	"sync"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	evloop "github.com/kween-io/evloop"
)

func newTestLoop(t *testing.T) *evloop.Loop {
	t.Helper()
	l, err := evloop.NewLoop()
	if err != nil {
		t.Fatalf("NewLoop: %v", err)
	}
	t.Cleanup(func() {
		if err := l.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return l
}

func TestLoopNotAliveWithNothingRegistered(t *testing.T) {
	l := newTestLoop(t)
	if l.Alive() {
		t.Fatal("a fresh loop with nothing registered should not be alive")
	}
	if l.Run(evloop.RunDefault) {
		t.Fatal("Run on a dead loop should return false immediately")
	}
}

func TestTimerDrivesForwardProgressWithNoFDs(t *testing.T) {
	l := newTestLoop(t)

	fired := false
	tm := evloop.NewTimer(l)
	tm.Start(func(*evloop.Timer) { fired = true }, 1, 0)

	if !l.Alive() {
		t.Fatal("loop with an active timer should be alive")
	}
	l.Run(evloop.RunDefault)

	if !fired {
		t.Fatal("timer never fired")
	}
	if l.Alive() {
		t.Fatal("loop should be dead once its one-shot timer fires and nothing else is registered")
	}
}

func TestIdleHandleForcesZeroTimeout(t *testing.T) {
	l := newTestLoop(t)

	count := 0
	idle := evloop.NewIdle(l)
	idle.Start(func(*evloop.Idle) {
		count++
		if count == 3 {
			idle.Stop()
			l.Stop()
		}
	})

	l.Run(evloop.RunDefault)

	if count != 3 {
		t.Fatalf("idle callback ran %d times, want 3", count)
	}
}

func TestPollHandleReadableOnSocketpair(t *testing.T) {
	l := newTestLoop(t)

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		t.Fatalf("Socketpair: %v", err)
	}
	defer unix.Close(fds[1])

	ph := evloop.NewPollHandle(l, fds[0])
	gotReadable := false
	ph.Start(evloop.EventReadable, func(p *evloop.PollHandle, revents evloop.PollEvent, err error) {
		if revents&evloop.EventReadable != 0 {
			gotReadable = true
			ph.Stop()
			ph.Close(nil)
		}
	})

	if _, err := unix.Write(fds[1], []byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	l.Run(evloop.RunDefault)

	if !gotReadable {
		t.Fatal("poll handle never observed readability")
	}
}

func TestAsyncSendWakesLoopFromAnotherGoroutine(t *testing.T) {
	l := newTestLoop(t)

	var wg sync.WaitGroup
	woken := make(chan struct{})

	var a *evloop.Async
	a, err := evloop.NewAsync(l, func(*evloop.Async) {
		close(woken)
		a.Close(nil)
	})
	if err != nil {
		t.Fatalf("NewAsync: %v", err)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(10 * time.Millisecond)
		if err := a.Send(); err != nil {
			t.Errorf("Send: %v", err)
		}
	}()

	l.Run(evloop.RunDefault)
	wg.Wait()

	select {
	case <-woken:
	default:
		t.Fatal("async callback never ran")
	}
}

func TestHandleCloseTwicePanics(t *testing.T) {
	l := newTestLoop(t)
	idle := evloop.NewIdle(l)
	idle.Close(nil)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on double Close")
		}
	}()
	idle.Close(nil)
}

func TestUnrefHandleDoesNotKeepLoopAlive(t *testing.T) {
	l := newTestLoop(t)

	tm := evloop.NewTimer(l)
	tm.Start(func(*evloop.Timer) {}, 100000, 0)

	if !l.Alive() {
		t.Fatal("ref'd active timer should keep the loop alive")
	}

	tm.Unref()
	if l.Alive() {
		t.Fatal("unref'd active timer should not keep the loop alive")
	}

	tm.Ref()
	if !l.Alive() {
		t.Fatal("re-ref'd active timer should keep the loop alive again")
	}

	tm.Stop()
	tm.Close(nil)
}

func TestCheckFDOnClosedFDIsError(t *testing.T) {
	l := newTestLoop(t)

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	fd := int(r.Fd())
	w.Close()
	r.Close()

	if err := l.CheckFD(fd); err == nil {
		t.Fatal("expected an error checking a closed fd")
	}
}
