package agent

import "context"

// Send delivers f on ch unless ctx is cancelled first. It reports whether the
// fragment was delivered.
func Send(ctx context.Context, ch chan<- Fragment, f Fragment) bool {
	select {
	case ch <- f:
		return true
	case <-ctx.Done():
		return false
	}
}
