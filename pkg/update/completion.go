package update

import "sync/atomic"

const (
	completionPending int32 = iota
	completionWriting
	completionDone
	completionDetached
)

// completion receives the one asynchronous result of a transfer. The
// transfer goroutine writes it, the session's Flashing tick reads it.
type completion struct {
	state  atomic.Int32
	result atomic.Int32
}

func newCompletion() *completion {
	return &completion{}
}

// notify records the transfer result. Only the first call on a still
// attached completion is kept; it reports whether the result was recorded.
func (c *completion) notify(result int32) bool {
	if !c.state.CompareAndSwap(completionPending, completionWriting) {
		return false
	}
	c.result.Store(result)
	c.state.Store(completionDone)
	return true
}

// observe returns the result once notify has recorded it
func (c *completion) observe() (int32, bool) {
	if c.state.Load() != completionDone {
		return 0, false
	}
	return c.result.Load(), true
}

// detach makes any later notify a no-op
func (c *completion) detach() {
	c.state.CompareAndSwap(completionPending, completionDetached)
}
