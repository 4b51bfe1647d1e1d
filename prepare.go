package evloop

import "github.com/kween-io/evloop/internal/ilist"

// PrepareCallback is invoked once per loop iteration, after idle handles
// and immediately before the I/O poll (spec.md section 4.1).
type PrepareCallback func(h *Prepare)

// Prepare runs its callback once per iteration right before ioPoll blocks,
// the conventional place to flush buffered writes or recompute a poll
// timeout override. Grounds on core.c's prepare_handles phase and
// prepare.c's uv_prepare_t contract.
type Prepare struct {
	Handle
	link ilist.Node
	cb   PrepareCallback
}

// NewPrepare allocates a Prepare bound to loop, inactive until Start.
func NewPrepare(loop *Loop) *Prepare {
	p := &Prepare{}
	p.Handle.init(loop, HandlePrepare, p)
	p.link.Init()
	p.link.Value = p
	loop.prepareHandles.InsertTail(&p.link)
	return p
}

// Start arms p to run cb once per iteration. Grounds on prepare.c:
// uv_prepare_start.
func (p *Prepare) Start(cb PrepareCallback) {
	p.cb = cb
	p.startActive()
}

// Stop disarms p without unlinking it from the loop. Grounds on prepare.c:
// uv_prepare_stop.
func (p *Prepare) Stop() {
	p.stopActive()
}

func (p *Prepare) run() {
	if p.cb != nil {
		p.cb(p)
	}
}

func (p *Prepare) closeImmediate() {
	p.Stop()
	p.link.Remove()
}
