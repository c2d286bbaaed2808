package session

import "context"

// Limiter bounds how many sessions run at once, across every transport that
// feeds the server.
type Limiter chan struct{}

// NewLimiter creates a limiter admitting up to capacity concurrent sessions.
func NewLimiter(capacity int) Limiter {
	return make(Limiter, capacity)
}

// Acquire blocks until a session slot is free or ctx is cancelled.
func (l Limiter) Acquire(ctx context.Context) error {
	select {
	case l <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot taken by Acquire.
func (l Limiter) Release() {
	<-l
}

// InUse reports how many slots are currently held.
func (l Limiter) InUse() int {
	return len(l)
}

// Capacity reports the total number of slots.
func (l Limiter) Capacity() int {
	return cap(l)
}
