// Package sigchan provides an edge-triggered notification channel. Producers
// emit without blocking; consumers observe "something happened" rather than a
// count of events.
package sigchan

// Chan coalesces notifications: emits beyond the buffer are dropped, which is
// fine because a pending signal already means "re-check state".
type Chan struct {
	c chan struct{}
}

func New(bufferSize int) *Chan {
	return &Chan{c: make(chan struct{}, bufferSize)}
}

// Emit signals without blocking. If the buffer is full the signal is dropped.
func (c *Chan) Emit() {
	select {
	case c.c <- struct{}{}:
	default:
	}
}

// C exposes the channel for select loops.
func (c *Chan) C() <-chan struct{} {
	return c.c
}
