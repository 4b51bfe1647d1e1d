package evloop

import "testing"

func TestNextPowerOfTwo(t *testing.T) {
	cases := map[uint32]uint32{
		1: 1, 2: 2, 3: 4, 4: 4, 5: 8, 9: 16, 1023: 1024, 1024: 1024,
	}
	for in, want := range cases {
		if got := nextPowerOfTwo(in); got != want {
			t.Errorf("nextPowerOfTwo(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestWatcherTableMaybeResize(t *testing.T) {
	var tbl watcherTable
	tbl.maybeResize(5)
	if tbl.nwatchers < 5 {
		t.Fatalf("nwatchers = %d, want >= 5", tbl.nwatchers)
	}
	first := tbl.nwatchers

	// Growing to a size already covered is a no-op.
	tbl.maybeResize(3)
	if tbl.nwatchers != first {
		t.Fatalf("maybeResize shrank or grew on a smaller request: %d", tbl.nwatchers)
	}

	w := &ioWatcher{fd: 2}
	tbl.set(2, w)
	tbl.maybeResize(1000)
	if tbl.get(2) != w {
		t.Fatal("resize lost an existing watcher")
	}
}

func TestWatcherTableGetOutOfRange(t *testing.T) {
	var tbl watcherTable
	tbl.maybeResize(4)
	if tbl.get(-1) != nil {
		t.Fatal("get(-1) should be nil")
	}
	if tbl.get(1000) != nil {
		t.Fatal("get past nwatchers should be nil")
	}
}

func TestIOWatcherActive(t *testing.T) {
	var w ioWatcher
	ioInit(&w, func(*Loop, *ioWatcher, PollEvent) {}, 3)
	if w.active(EventReadable) {
		t.Fatal("freshly initialized watcher should not be active")
	}
	w.pevents |= EventReadable
	if !w.active(EventReadable) {
		t.Fatal("watcher should be active for a requested event")
	}
	if w.active(EventWritable) {
		t.Fatal("watcher should not be active for an unrequested event")
	}
}

func TestIOInitPanicsOnNilCallback(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on nil callback")
		}
	}()
	var w ioWatcher
	ioInit(&w, nil, 3)
}
