package evloop

import "github.com/kween-io/evloop/internal/ilist"

// IdleCallback is invoked once per loop iteration while the handle is
// active, spec.md section 4.1's idle phase.
type IdleCallback func(h *Idle)

// Idle runs its callback once every loop iteration, after pending
// callbacks and before prepare handles. Grounds on core.c's idle_handles
// phase and idle.c's uv_idle_t contract. Every Idle stays linked into
// loop.idleHandles for its whole life (unlinked only on close); Start/Stop
// only toggle the active flag runIdle checks before invoking the callback,
// matching how core.c walks the full list every iteration regardless of
// each handle's active state.
type Idle struct {
	Handle
	link ilist.Node
	cb   IdleCallback
}

// NewIdle allocates an Idle bound to loop, inactive until Start is called.
func NewIdle(loop *Loop) *Idle {
	i := &Idle{}
	i.Handle.init(loop, HandleIdle, i)
	i.link.Init()
	i.link.Value = i
	loop.idleHandles.InsertTail(&i.link)
	return i
}

// Start arms i to run cb once per iteration. Grounds on idle.c: uv_idle_start.
func (i *Idle) Start(cb IdleCallback) {
	i.cb = cb
	i.startActive()
}

// Stop disarms i without unlinking it from the loop. Grounds on idle.c:
// uv_idle_stop.
func (i *Idle) Stop() {
	i.stopActive()
}

func (i *Idle) run() {
	if i.cb != nil {
		i.cb(i)
	}
}

func (i *Idle) closeImmediate() {
	i.Stop()
	i.link.Remove()
}
