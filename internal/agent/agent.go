// Package agent defines the capability the adapter uses to reach the backend
// agent, independent of any vendor wire format.
package agent

import (
	"context"
	"errors"

	"agentgate/internal/models"
)

var (
	// ErrBackendUnavailable indicates the backend could not be reached or failed.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrBackendTimeout indicates the backend did not answer in time.
	ErrBackendTimeout = errors.New("backend timeout")
	// ErrBackendRejected indicates the backend refused the request.
	ErrBackendRejected = errors.New("backend rejected request")
)

// Answer is the complete result of a blocking invocation.
type Answer struct {
	Text  string
	Usage models.Usage
}

// Fragment is one incremental piece of a streamed answer. A fragment with a
// non-nil Err is always the last value delivered on the channel.
type Fragment struct {
	Text string
	Err  error
}

// Agent abstracts the backend agent. Implementations must be safe for
// concurrent use by multiple goroutines.
type Agent interface {
	// Name returns the agent identifier used in logs and metrics.
	Name() string

	// Invoke blocks until the full answer is generated.
	Invoke(ctx context.Context, prompt string) (*Answer, error)

	// InvokeStream starts generation and returns a channel of fragments in
	// generation order. The channel is closed by the agent when generation
	// ends, fails, or ctx is cancelled.
	InvokeStream(ctx context.Context, prompt string) (<-chan Fragment, error)
}

// Kind returns the backend failure class of err, or nil when err is not a
// classified backend failure.
func Kind(err error) error {
	for _, kind := range []error{ErrBackendTimeout, ErrBackendRejected, ErrBackendUnavailable} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
