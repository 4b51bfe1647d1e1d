package evloop

// LoopOption configures a Loop at construction, the same functional-option
// shape the teacher's EventLoop uses (netpoll.go: NewEventLoop(onRequest,
// ops ...Option)).
type LoopOption struct{ f func(*loopConfig) }

type loopConfig struct {
	repollBudget int
	blockSIGPROF bool
}

func defaultLoopConfig() loopConfig {
	return loopConfig{repollBudget: 48}
}

// WithRePollBudget overrides the re-poll budget (spec.md section 4.3 step
// 3, default 48) that bounds how many zero-timeout re-polls a single
// io_poll call will perform to drain a saturated batch before yielding
// back to the loop driver.
func WithRePollBudget(n int) LoopOption {
	return LoopOption{f: func(c *loopConfig) {
		if n > 0 {
			c.repollBudget = n
		}
	}}
}

// WithBlockSIGPROF causes the loop to block SIGPROF for the duration of the
// blocking kernel wait (spec.md section 3's loop.flags bit), matching
// linux-core.c's optional profiler-signal mask construction in
// uv__io_poll.
func WithBlockSIGPROF() LoopOption {
	return LoopOption{f: func(c *loopConfig) { c.blockSIGPROF = true }}
}
