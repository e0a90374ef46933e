package hostmock

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/cpc-project/nvm3/cpc"
)

// DefaultChannelWriteSize is the frame limit of channels opened on a Daemon.
const DefaultChannelWriteSize = 4087

// DaemonConfig configures an in-process daemon.
type DaemonConfig struct {
	// Instance is the only instance name served. Empty serves cpc.DefaultInstance.
	Instance string

	// MaxWriteSize is the frame limit of opened channels. Defaults to DefaultChannelWriteSize.
	MaxWriteSize int

	// Secondary answers the frames. A fresh one is created when nil.
	Secondary *Secondary
}

// Daemon is an in-process stand-in for the CPC daemon. It implements
// cpc.Dialer, serves the Unix socket protocol, and can be plugged in as
// the waPC host of a cpc.HostCallDialer.
type Daemon struct {
	instance     string
	maxWriteSize int
	secondary    *Secondary

	mu       sync.Mutex
	ready    bool
	mute     bool
	channels []*channel
	dials    int
	onSend   func(parts [][]byte)

	// host is the channel driven through HostCall.
	host cpc.Channel
}

// NewDaemon creates a ready daemon.
func NewDaemon(cfg DaemonConfig) *Daemon {
	d := &Daemon{
		instance:     cpc.Instance(cfg.Instance),
		maxWriteSize: cfg.MaxWriteSize,
		secondary:    cfg.Secondary,
		ready:        true,
	}
	if d.maxWriteSize <= 0 {
		d.maxWriteSize = DefaultChannelWriteSize
	}
	if d.secondary == nil {
		d.secondary = NewSecondary(SecondaryConfig{})
	}
	return d
}

// Secondary returns the simulated device behind the daemon.
func (d *Daemon) Secondary() *Secondary { return d.secondary }

// SetReady controls whether the NVM3 endpoint accepts new channels.
func (d *Daemon) SetReady(ready bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ready = ready
}

// SetMute drops every reply while on, so receivers run into their deadline.
func (d *Daemon) SetMute(mute bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mute = mute
}

// OnSend registers a hook that observes the parts of every frame sent by a
// client before they are processed.
func (d *Daemon) OnSend(fn func(parts [][]byte)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onSend = fn
}

// Dials returns the number of channels opened so far.
func (d *Daemon) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// Disconnect drops every open channel as a daemon restart would.
func (d *Daemon) Disconnect() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, ch := range d.channels {
		ch.drop()
	}
	d.channels = nil
}

// Dial implements cpc.Dialer.
func (d *Daemon) Dial(ctx context.Context, instance string, _ bool) (cpc.Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Join(cpc.ErrWouldBlock, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if cpc.Instance(instance) != d.instance {
		return nil, fmt.Errorf("%w: instance %q", cpc.ErrDaemonUnavailable, cpc.Instance(instance))
	}
	if !d.ready {
		return nil, cpc.ErrNotReady
	}

	ch := &channel{daemon: d, replies: make(chan []byte, 1024), dropped: make(chan struct{})}
	d.channels = append(d.channels, ch)
	d.dials++
	return ch, nil
}

func (d *Daemon) deliver(ch *channel, frame []byte) {
	replies := d.secondary.Handle(frame)

	d.mu.Lock()
	mute := d.mute
	d.mu.Unlock()
	if mute {
		return
	}

	for _, r := range replies {
		select {
		case ch.replies <- r:
		default:
		}
	}
}

// channel is an in-process cpc.Channel.
type channel struct {
	daemon   *Daemon
	replies  chan []byte
	dropped  chan struct{}
	dropOnce sync.Once
	lost     atomic.Bool
	closed   atomic.Bool
}

func (c *channel) drop() {
	c.dropOnce.Do(func() {
		c.lost.Store(true)
		close(c.dropped)
	})
}

func (c *channel) Send(ctx context.Context, parts ...[]byte) error {
	if c.closed.Load() {
		return cpc.ErrClosed
	}
	if c.lost.Load() {
		return cpc.ErrConnectionLost
	}
	if err := ctx.Err(); err != nil {
		return errors.Join(cpc.ErrWouldBlock, err)
	}

	c.daemon.mu.Lock()
	hook := c.daemon.onSend
	c.daemon.mu.Unlock()
	if hook != nil {
		hook(parts)
	}

	size := 0
	for _, p := range parts {
		size += len(p)
	}
	if size > c.daemon.maxWriteSize {
		return fmt.Errorf("%w: %d > %d", cpc.ErrFrameTooLarge, size, c.daemon.maxWriteSize)
	}

	frame := make([]byte, 0, size)
	for _, p := range parts {
		frame = append(frame, p...)
	}
	c.daemon.deliver(c, frame)
	return nil
}

func (c *channel) Recv(ctx context.Context) ([]byte, error) {
	if c.closed.Load() {
		return nil, cpc.ErrClosed
	}
	if c.lost.Load() {
		return nil, cpc.ErrConnectionLost
	}

	select {
	case b := <-c.replies:
		return b, nil
	case <-c.dropped:
		return nil, cpc.ErrConnectionLost
	case <-ctx.Done():
		return nil, errors.Join(cpc.ErrWouldBlock, ctx.Err())
	}
}

func (c *channel) Alive() bool { return !c.lost.Load() && !c.closed.Load() }

func (c *channel) MaxWriteSize() int { return c.daemon.maxWriteSize }

func (c *channel) Close() error {
	c.closed.Store(true)
	return nil
}

var _ cpc.Dialer = (*Daemon)(nil)
var _ cpc.Channel = (*channel)(nil)

// Serve accepts socket clients on ln until it is closed, speaking the same
// framing and handshake as a real daemon.
func (d *Daemon) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go d.serveConn(conn)
	}
}

func (d *Daemon) serveConn(conn net.Conn) {
	defer conn.Close() //nolint:errcheck

	hello, err := cpc.ReadFrame(conn)
	if err != nil {
		return
	}
	if _, err := cpc.DecodeHello(hello); err != nil {
		return
	}

	d.mu.Lock()
	ready := d.ready
	d.mu.Unlock()

	if err := cpc.WriteFrame(conn, cpc.EncodeWelcome(ready, uint16(d.maxWriteSize))); err != nil || !ready {
		return
	}

	for {
		frame, err := cpc.ReadFrame(conn)
		if err != nil {
			return
		}

		d.mu.Lock()
		mute := d.mute
		d.mu.Unlock()

		for _, r := range d.secondary.Handle(frame) {
			if mute {
				continue
			}
			if err := cpc.WriteFrame(conn, r); err != nil {
				return
			}
		}
	}
}
