package util

import (
	"errors"
	"io"
	"net"
	"syscall"
)

// IsNetworkClosed checks if the given error tells closing of network connection
func IsNetworkClosed(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET)
}

// IsNetworkTimeout checks if the given error is network timeout
func IsNetworkTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsNetworkError checks if the given error comes from network, as opposed to e.g. a misconfigured address
func IsNetworkError(err error) bool {
	if IsNetworkClosed(err) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
