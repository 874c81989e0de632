package agent

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ClassifyStatus maps a non-2xx backend HTTP status to a typed failure that
// carries the backend's own message.
func ClassifyStatus(status int, message string) error {
	if message == "" {
		message = http.StatusText(status)
	}

	var kind error
	switch {
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		kind = ErrBackendTimeout
	case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
		kind = ErrBackendUnavailable
	case status >= http.StatusBadRequest:
		kind = ErrBackendRejected
	default:
		kind = ErrBackendUnavailable
	}
	return fmt.Errorf("%w: status %d: %s", kind, status, message)
}

// ClassifyTransport maps a network-level failure to a typed failure.
// Cancellation by the caller is returned unchanged.
func ClassifyTransport(err error) error {
	if err == nil {
		return nil
	}
	if Kind(err) != nil || errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrBackendTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrBackendTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
}
