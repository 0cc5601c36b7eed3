package correlation

import "sync/atomic"

// Counter assigns MessageIDs to requests an endpoint initiates, stepping
// by 2 to preserve the parity split documented on the stream link (odd
// values from the device, even from the host) and to avoid colliding
// with the peer's own counter on links where both sides allocate ids
// independently.
type Counter struct {
	next atomic.Uint32
}

// NewCounter returns a Counter whose first Next() call returns start.
func NewCounter(start uint32) *Counter {
	c := &Counter{}
	c.next.Store(start)
	return c
}

// Next returns the next id and advances the counter by 2. The wraparound
// window is far larger than MaxInflight or any realistic number of
// concurrent requests, so collisions within a request's timeout window
// don't occur in practice.
func (c *Counter) Next() uint32 {
	return c.next.Add(2) - 2
}
