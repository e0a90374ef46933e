//go:build unix

package cpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// DefaultSocketDir is where daemons create their instance directories.
const DefaultSocketDir = "/dev/shm"

const socketName = "nvm3.cpcd.sock"

// SocketDialer connects to a daemon over its Unix domain socket.
type SocketDialer struct {
	// Dir holds the per-instance daemon directories. Defaults to DefaultSocketDir.
	Dir string

	// DialTimeout bounds connection and handshake when the context carries no deadline.
	DialTimeout time.Duration
}

// SocketPath returns the endpoint socket of instance under dir.
func SocketPath(dir, instance string) string {
	if dir == "" {
		dir = DefaultSocketDir
	}
	return filepath.Join(dir, "cpcd-"+Instance(instance), socketName)
}

// Dial connects to the NVM3 endpoint of instance.
func (d *SocketDialer) Dial(ctx context.Context, instance string, tracing bool) (Channel, error) {
	path := SocketPath(d.Dir, instance)

	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		return nil, errors.Join(fmt.Errorf("%w: instance %q", ErrDaemonUnavailable, Instance(instance)), err)
	}

	if _, ok := ctx.Deadline(); !ok && d.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.DialTimeout)
		defer cancel()
	}

	var nd net.Dialer
	conn, err := nd.DialContext(ctx, "unix", path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, unix.ECONNREFUSED) {
			return nil, errors.Join(ErrNotReady, err)
		}
		return nil, errors.Join(ErrDaemonUnavailable, err)
	}

	ch := &socketChannel{conn: conn, frames: NewFrameReader(conn)}
	ch.alive.Store(true)

	if err := ch.handshake(ctx, tracing); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return ch, nil
}

// socketChannel is a Channel over a connected Unix socket.
type socketChannel struct {
	conn         net.Conn
	frames       *FrameReader
	maxWriteSize int
	alive        atomic.Bool
	closed       atomic.Bool
	wmu          sync.Mutex
	rmu          sync.Mutex
}

func (c *socketChannel) handshake(ctx context.Context, tracing bool) error {
	if err := c.Send(ctx, EncodeHello(tracing)); err != nil {
		return err
	}

	b, err := c.Recv(ctx)
	if err != nil {
		return err
	}

	ready, maxWriteSize, err := DecodeWelcome(b)
	if err != nil {
		return errors.Join(ErrEndpoint, err)
	}
	if !ready {
		return ErrNotReady
	}
	if maxWriteSize == 0 {
		return fmt.Errorf("%w: daemon reported a zero maximum write size", ErrEndpoint)
	}

	c.maxWriteSize = int(maxWriteSize)
	return nil
}

// Send writes one frame. The prefix and every part go out in a single vectored write.
func (c *socketChannel) Send(ctx context.Context, parts ...[]byte) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if c.maxWriteSize > 0 && frameSize(parts) > c.maxWriteSize {
		return fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, frameSize(parts), c.maxWriteSize)
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()

	stop := c.bind(ctx, c.conn.SetWriteDeadline)
	defer stop()

	return c.classify(ctx, WriteFrame(c.conn, parts...))
}

// Recv reads one frame. A frame interrupted by the deadline is completed by
// the next call.
func (c *socketChannel) Recv(ctx context.Context) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}

	c.rmu.Lock()
	defer c.rmu.Unlock()

	stop := c.bind(ctx, c.conn.SetReadDeadline)
	defer stop()

	b, err := c.frames.ReadFrame()
	if err != nil {
		return nil, c.classify(ctx, err)
	}
	return b, nil
}

// bind applies the context deadline to the connection and interrupts
// blocked I/O when the context is cancelled. The returned func does not
// return while the interrupt is still running.
func (c *socketChannel) bind(ctx context.Context, set func(time.Time) error) func() {
	deadline, _ := ctx.Deadline()
	_ = set(deadline)
	done := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		_ = set(time.Now())
		close(done)
	})
	return func() {
		if !stop() {
			<-done
		}
	}
}

func (c *socketChannel) classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	var ne net.Error
	switch {
	case errors.Is(err, os.ErrDeadlineExceeded), errors.As(err, &ne) && ne.Timeout():
		if ctx.Err() != nil {
			return errors.Join(ErrWouldBlock, ctx.Err())
		}
		return errors.Join(ErrWouldBlock, err)
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, unix.ECONNRESET),
		errors.Is(err, unix.EPIPE),
		errors.Is(err, unix.EINTR):
		c.alive.Store(false)
		return errors.Join(ErrConnectionLost, err)
	case errors.Is(err, ErrFrameTooLarge):
		c.alive.Store(false)
		return errors.Join(ErrEndpoint, err)
	case errors.Is(err, net.ErrClosed):
		return errors.Join(ErrClosed, err)
	default:
		return errors.Join(ErrEndpoint, err)
	}
}

func (c *socketChannel) Alive() bool { return c.alive.Load() && !c.closed.Load() }

func (c *socketChannel) MaxWriteSize() int { return c.maxWriteSize }

func (c *socketChannel) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.alive.Store(false)
	return c.conn.Close()
}
