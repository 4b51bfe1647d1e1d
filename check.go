package evloop

import "github.com/kween-io/evloop/internal/ilist"

// CheckCallback is invoked once per loop iteration, right after ioPoll
// returns (spec.md section 4.1).
type CheckCallback func(h *Check)

// Check runs its callback once per iteration immediately after the I/O
// poll step, the conventional place to react to whatever ioPoll just
// dispatched before closing handles are finalized. Grounds on core.c's
// check_handles phase and check.c's uv_check_t contract.
type Check struct {
	Handle
	link ilist.Node
	cb   CheckCallback
}

// NewCheck allocates a Check bound to loop, inactive until Start.
func NewCheck(loop *Loop) *Check {
	c := &Check{}
	c.Handle.init(loop, HandleCheck, c)
	c.link.Init()
	c.link.Value = c
	loop.checkHandles.InsertTail(&c.link)
	return c
}

// Start arms c to run cb once per iteration. Grounds on check.c:
// uv_check_start.
func (c *Check) Start(cb CheckCallback) {
	c.cb = cb
	c.startActive()
}

// Stop disarms c without unlinking it from the loop. Grounds on check.c:
// uv_check_stop.
func (c *Check) Stop() {
	c.stopActive()
}

func (c *Check) run() {
	if c.cb != nil {
		c.cb(c)
	}
}

func (c *Check) closeImmediate() {
	c.Stop()
	c.link.Remove()
}
