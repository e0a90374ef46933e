package cpc

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	sdkproto "github.com/tarmac-project/protobuf-go/sdk"
	wapc "github.com/wapc/wapc-guest-tinygo"
	pb "google.golang.org/protobuf/proto"
)

const (
	// DefaultNamespace is the waPC namespace used when none is configured.
	DefaultNamespace = "nvm3"

	// DefaultMaxWriteSize is the frame limit assumed for host-managed channels.
	DefaultMaxWriteSize = 4087

	capabilityName = "cpc"
	fnOpen         = "open"
	fnWrite        = "write"
	fnRead         = "read"
	fnClose        = "close"

	hostStatusOK          = int32(200)
	hostStatusNotFound    = int32(404)
	hostStatusUnavailable = int32(503)
)

var (
	// ErrHostCall indicates that a waPC host invocation failed.
	ErrHostCall = errors.New("host call failed")

	// ErrHostResponseInvalid signals that the host returned an invalid or unexpected payload.
	ErrHostResponseInvalid = errors.New("host response is invalid or unexpected")
)

// HostCall defines the waPC host function signature used by host-managed channels.
type HostCall func(string, string, string, []byte) ([]byte, error)

// HostCallDialer opens channels whose daemon connection is owned by the waPC
// host. The "open" and "close" functions answer with an sdk.Status message;
// "write" carries a frame and "read" returns the next frame or nothing when
// the deadline it is given elapses.
type HostCallDialer struct {
	// Namespace scopes the host calls. Defaults to DefaultNamespace.
	Namespace string

	// HostCall overrides the waPC host function. Defaults to wapc.HostCall.
	HostCall HostCall

	// MaxWriteSize bounds frames sent through the host. Defaults to DefaultMaxWriteSize.
	MaxWriteSize int
}

// Dial asks the host to open the NVM3 endpoint of instance.
func (d *HostCallDialer) Dial(_ context.Context, instance string, tracing bool) (Channel, error) {
	ch := &hostChannel{
		namespace:    d.Namespace,
		hostCall:     d.HostCall,
		maxWriteSize: d.MaxWriteSize,
	}
	if ch.namespace == "" {
		ch.namespace = DefaultNamespace
	}
	if ch.hostCall == nil {
		ch.hostCall = wapc.HostCall
	}
	if ch.maxWriteSize <= 0 {
		ch.maxWriteSize = DefaultMaxWriteSize
	}

	payload := append([]byte{0}, Instance(instance)...)
	if tracing {
		payload[0] = 1
	}

	if err := ch.status(fnOpen, payload); err != nil {
		return nil, err
	}

	ch.alive.Store(true)
	return ch, nil
}

type hostChannel struct {
	namespace    string
	hostCall     HostCall
	maxWriteSize int
	alive        atomic.Bool
	closed       atomic.Bool
}

// Send hands the frame to the host. waPC takes a single payload, so the
// parts are joined here.
func (c *hostChannel) Send(_ context.Context, parts ...[]byte) error {
	if c.closed.Load() {
		return ErrClosed
	}

	size := frameSize(parts)
	if size > c.maxWriteSize {
		return fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, size, c.maxWriteSize)
	}

	frame := make([]byte, 0, size)
	for _, p := range parts {
		frame = append(frame, p...)
	}

	if _, err := c.hostCall(c.namespace, capabilityName, fnWrite, frame); err != nil {
		c.alive.Store(false)
		return errors.Join(ErrConnectionLost, ErrHostCall, err)
	}
	return nil
}

// Recv asks the host for the next frame, passing the remaining time budget
// in milliseconds.
func (c *hostChannel) Recv(ctx context.Context) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Join(ErrWouldBlock, err)
	}

	var budget uint32
	if deadline, ok := ctx.Deadline(); ok {
		budget = uint32(max(time.Until(deadline), 0) / time.Millisecond)
	}

	b, err := c.hostCall(c.namespace, capabilityName, fnRead, binary.LittleEndian.AppendUint32(nil, budget))
	if err != nil {
		c.alive.Store(false)
		return nil, errors.Join(ErrConnectionLost, ErrHostCall, err)
	}
	if len(b) == 0 {
		return nil, ErrWouldBlock
	}
	return b, nil
}

func (c *hostChannel) Alive() bool { return c.alive.Load() && !c.closed.Load() }

func (c *hostChannel) MaxWriteSize() int { return c.maxWriteSize }

func (c *hostChannel) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.alive.Store(false)
	return c.status(fnClose, nil)
}

// status performs a host call answered with an sdk.Status message.
func (c *hostChannel) status(fn string, payload []byte) error {
	respBytes, callErr := c.hostCall(c.namespace, capabilityName, fn, payload)
	if callErr != nil && len(respBytes) == 0 {
		return errors.Join(ErrDaemonUnavailable, ErrHostCall, callErr)
	}

	var status sdkproto.Status
	if err := pb.Unmarshal(respBytes, &status); err != nil {
		return errors.Join(ErrEndpoint, ErrHostResponseInvalid, err)
	}

	switch code := status.GetCode(); code {
	case hostStatusOK:
		return nil
	case hostStatusUnavailable:
		return fmt.Errorf("%w: host status %d: %s", ErrNotReady, code, status.GetStatus())
	case hostStatusNotFound:
		return fmt.Errorf("%w: host status %d: %s", ErrDaemonUnavailable, code, status.GetStatus())
	default:
		return fmt.Errorf("%w: host status %d: %s", ErrEndpoint, code, status.GetStatus())
	}
}
