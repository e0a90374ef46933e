package cpc

import (
	"context"
	"errors"
)

// DefaultInstance is the daemon instance used when none is given.
const DefaultInstance = "cpcd_0"

var (
	// ErrWouldBlock indicates the deadline elapsed before a frame could be sent or received.
	ErrWouldBlock = errors.New("operation would block")

	// ErrConnectionLost indicates the link to the daemon dropped.
	ErrConnectionLost = errors.New("connection to daemon lost")

	// ErrNotReady indicates the daemon is reachable but the NVM3 endpoint is not open yet.
	ErrNotReady = errors.New("nvm3 endpoint not ready")

	// ErrDaemonUnavailable indicates no daemon is serving the requested instance.
	ErrDaemonUnavailable = errors.New("daemon unavailable")

	// ErrEndpoint indicates an unexpected endpoint failure.
	ErrEndpoint = errors.New("endpoint error")

	// ErrClosed indicates use of a channel after Close.
	ErrClosed = errors.New("channel closed")

	// ErrFrameTooLarge indicates a frame larger than the channel accepts.
	ErrFrameTooLarge = errors.New("frame exceeds maximum write size")
)

// Channel is an open link to the NVM3 endpoint of a daemon instance.
type Channel interface {
	// Send writes one frame made of the concatenation of parts. Parts are
	// borrowed for the duration of the call.
	Send(ctx context.Context, parts ...[]byte) error

	// Recv returns the next frame received from the endpoint.
	Recv(ctx context.Context) ([]byte, error)

	// Alive reports whether the link is still usable.
	Alive() bool

	// MaxWriteSize is the largest frame Send accepts.
	MaxWriteSize() int

	// Close releases the link.
	Close() error
}

// Dialer opens channels to daemon instances.
type Dialer interface {
	Dial(ctx context.Context, instance string, tracing bool) (Channel, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, instance string, tracing bool) (Channel, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context, instance string, tracing bool) (Channel, error) {
	return f(ctx, instance, tracing)
}

// Instance returns instance, or DefaultInstance when it is empty.
func Instance(instance string) string {
	if instance == "" {
		return DefaultInstance
	}
	return instance
}

func frameSize(parts [][]byte) int {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	return n
}
