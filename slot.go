package mcpclient

import "context"

// resultSlot is a single-assignment container carrying one job outcome
// across the goroutine boundary. The reactor resolves it exactly once;
// exactly one caller blocks on wait.
type resultSlot struct {
	done chan struct{}
	val  any
	err  error
}

func newResultSlot() *resultSlot {
	return &resultSlot{done: make(chan struct{})}
}

// resolve records the outcome and releases the waiter. Called exactly once,
// from the reactor goroutine only.
func (s *resultSlot) resolve(val any, err error) {
	s.val = val
	s.err = err
	close(s.done)
}

// wait blocks until the slot resolves or ctx is done. Abandoning the wait
// does not cancel the job; the reactor still resolves the slot.
func (s *resultSlot) wait(ctx context.Context) (any, error) {
	select {
	case <-s.done:
		return s.val, s.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
