package nvm3

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/cpc-project/nvm3/cpc"
	"github.com/cpc-project/nvm3/logging"
	"github.com/cpc-project/nvm3/metrics"
	"github.com/cpc-project/nvm3/protocol"
)

// ClientVersion is the NVM3 protocol version spoken by this client. The
// remote component must report the same major version.
var ClientVersion = protocol.Version{Major: 1, Minor: 0, Patch: 0}

type state uint8

const (
	stateCreated state = iota
	stateOpen
	stateClosed
	stateRetired
)

func (s state) String() string {
	switch s {
	case stateCreated:
		return "created"
	case stateOpen:
		return "open"
	case stateClosed:
		return "closed"
	default:
		return "retired"
	}
}

// session is the per-handle state. Every field is guarded by mu, which is
// held for the whole duration of an operation so calls on one handle are
// serialized on its channel.
type session struct {
	mu sync.Mutex

	handle   Handle
	state    state
	dialer   cpc.Dialer
	recorder metrics.Recorder

	instance string
	tracing  bool
	ch       cpc.Channel

	uniqueID      uint32
	transactionID uint8
	timeout       time.Duration

	maxWriteSize int
	fragmentSize int
}

func newSession(h Handle, cfg Config) *session {
	d := cfg.Dialer
	if d == nil {
		d = cpc.DefaultDialer()
	}
	return &session{
		handle:   h,
		dialer:   d,
		recorder: metrics.OrNop(cfg.Metrics),
		uniqueID: uint32(os.Getpid()),
		timeout:  DefaultTimeout,
	}
}

// open dials the daemon, checks the remote protocol version and reads the
// maximum object size. On failure the channel is torn down and the state is
// left untouched.
func (s *session) open(instance string, tracing bool) (err error) {
	s.instance = cpc.Instance(instance)
	s.tracing = tracing
	s.timeout = DefaultTimeout

	logging.Info("opening instance", "handle", s.handle, "instance", s.instance, "client_version", ClientVersion.String())

	ctx, cancel := s.deadline()
	defer cancel()

	ch, err := s.dialer.Dial(ctx, s.instance, tracing)
	if err != nil {
		return classifyDial(err)
	}
	if err := s.attach(ch); err != nil {
		_ = ch.Close()
		return err
	}

	defer func() {
		if err != nil {
			_ = s.ch.Close()
			s.ch = nil
		}
	}()

	reply, err := s.call(ctx, protocol.GetVersion())
	if err != nil {
		return err
	}
	remote, err := protocol.DecodeVersion(reply.Payload)
	if err != nil {
		return fail(ErrFailure, err)
	}
	logging.Info("remote NVM3 component", "version", remote.String())
	if remote.Major != ClientVersion.Major {
		return failf(ErrInvalidVersion, "remote major version %d, client major version %d", remote.Major, ClientVersion.Major)
	}

	reply, err = s.call(ctx, protocol.PropValueGet(protocol.PropMaxWriteSize))
	if err != nil {
		return err
	}
	if reply.Header.Command == protocol.CmdStatusIs {
		st, _ := protocol.DecodeStatus(reply.Payload)
		return failf(ErrFailure, "maximum write size query: %s", st)
	}
	prop, value, err := protocol.DecodeProperty(reply.Payload)
	if err != nil {
		return fail(ErrFailure, err)
	}
	if prop != protocol.PropMaxWriteSize {
		return failf(ErrFailure, "unexpected property %s", prop)
	}
	s.maxWriteSize = int(value)
	logging.Debug("maximum write size", "bytes", s.maxWriteSize, "fragment", s.fragmentSize)
	return nil
}

// attach makes ch the session channel and derives the write fragment size.
func (s *session) attach(ch cpc.Channel) error {
	frag := ch.MaxWriteSize() - protocol.WriteOverhead
	if frag <= 0 {
		return failf(ErrCpcEndpointError, "channel frame limit %d leaves no room for data", ch.MaxWriteSize())
	}
	s.ch = ch
	s.fragmentSize = frag
	return nil
}

func (s *session) close() error {
	var err error
	if s.ch != nil {
		err = s.ch.Close()
	}
	s.ch = nil
	s.maxWriteSize = 0
	s.fragmentSize = 0
	return err
}

// reconnect replaces the channel with a freshly dialed one.
func (s *session) reconnect() error {
	logging.Info("reconnecting", "handle", s.handle, "instance", s.instance)
	if s.ch != nil {
		_ = s.ch.Close()
		s.ch = nil
	}

	ctx, cancel := s.deadline()
	defer cancel()

	ch, err := s.dialer.Dial(ctx, s.instance, s.tracing)
	if err != nil {
		return fail(ErrCpcEndpointError, err)
	}
	if err := s.attach(ch); err != nil {
		_ = ch.Close()
		return err
	}
	logging.Debug("reconnected", "handle", s.handle)
	return nil
}

// call sends req and waits for its reply. Frames answering other
// transactions or other clients are dropped until the deadline.
func (s *session) call(ctx context.Context, req protocol.Request) (protocol.Reply, error) {
	if err := s.send(ctx, &req); err != nil {
		return protocol.Reply{}, err
	}
	return s.receive(ctx, req)
}

func (s *session) send(ctx context.Context, req *protocol.Request) error {
	if s.ch == nil || !s.ch.Alive() {
		if s.state != stateOpen {
			return failf(ErrCpcEndpointError, "channel unavailable")
		}
		if err := s.reconnect(); err != nil {
			return err
		}
	}

	s.transactionID++
	req.UniqueID = s.uniqueID
	req.TransactionID = s.transactionID

	prefix, err := req.Prefix()
	if err != nil {
		return fail(ErrInvalidArg, err)
	}

	logging.Trace("send", "command", req.Command.String(), "tid", req.TransactionID, "len", req.Len())

	if len(req.Data) > 0 {
		err = s.ch.Send(ctx, prefix, req.Data)
	} else {
		err = s.ch.Send(ctx, prefix)
	}
	if err != nil {
		return s.transportError(err)
	}
	return nil
}

func (s *session) receive(ctx context.Context, req protocol.Request) (protocol.Reply, error) {
	for {
		raw, err := s.ch.Recv(ctx)
		if err != nil {
			return protocol.Reply{}, s.transportError(err)
		}

		reply, err := protocol.ParseReply(raw, req.UniqueID, req.TransactionID, req.Replies()...)
		if protocol.IsStale(err) {
			logging.Debug("dropping reply", "reason", err.Error())
			continue
		}
		if err != nil {
			return protocol.Reply{}, fail(ErrFailure, err)
		}

		logging.Trace("recv", "command", reply.Header.Command.String(), "tid", reply.Header.TransactionID, "len", reply.Header.Length)
		return reply, nil
	}
}

// transportError maps a channel error onto the client taxonomy. A lost
// connection on an open session is re-dialed once; the caller is told to
// try again when that works.
func (s *session) transportError(err error) error {
	switch {
	case errors.Is(err, cpc.ErrWouldBlock), errors.Is(err, cpc.ErrNotReady):
		return fail(ErrTryAgain, err)
	case errors.Is(err, cpc.ErrConnectionLost):
		if s.state != stateOpen {
			return fail(ErrCpcEndpointError, err)
		}
		logging.Debug("connection lost", "handle", s.handle, "err", err.Error())
		if rerr := s.reconnect(); rerr != nil {
			return fail(ErrCpcEndpointError, errors.Join(err, rerr))
		}
		return fail(ErrTryAgain, fmt.Errorf("reconnected after: %w", err))
	default:
		return fail(ErrCpcEndpointError, err)
	}
}

func classifyDial(err error) error {
	switch {
	case errors.Is(err, cpc.ErrNotReady), errors.Is(err, cpc.ErrWouldBlock):
		return fail(ErrTryAgain, err)
	default:
		return fail(ErrCpcEndpointError, err)
	}
}
