package nvm3

import (
	"context"
	"time"

	"github.com/cpc-project/nvm3/cpc"
	"github.com/cpc-project/nvm3/logging"
	"github.com/cpc-project/nvm3/metrics"
	"github.com/cpc-project/nvm3/protocol"
)

const (
	opInit                = "init"
	opDeinit              = "deinit"
	opOpen                = "open"
	opClose               = "close"
	opWriteData           = "write_data"
	opReadData            = "read_data"
	opListObjects         = "list_objects"
	opGetObjectCount      = "get_object_count"
	opGetObjectInfo       = "get_object_info"
	opDeleteObject        = "delete_object"
	opWriteCounter        = "write_counter"
	opReadCounter         = "read_counter"
	opIncrementCounter    = "increment_counter"
	opGetMaximumWriteSize = "get_maximum_write_size"
	opSetTimeout          = "set_timeout"
	opGetTimeout          = "get_timeout"
	opPing                = "ping"
	opInitLogger          = "init_logger"
)

// Config customizes an instance created with InitWithConfig.
type Config struct {
	// Dialer opens channels to the daemon. Defaults to cpc.DefaultDialer().
	Dialer cpc.Dialer

	// Metrics receives operation measurements. Nil disables them.
	Metrics metrics.Recorder
}

// LogLevel selects the verbosity of the process-wide logger.
type LogLevel = logging.Level

const (
	LogOff     = logging.LevelOff
	LogError   = logging.LevelError
	LogWarning = logging.LevelWarning
	LogInfo    = logging.LevelInfo
	LogDebug   = logging.LevelDebug
	LogTrace   = logging.LevelTrace
)

// InitLogger configures the process-wide logger. Only the first successful
// call has an effect. An empty path logs to stdout; otherwise the file is
// appended to or truncated according to appendFile.
func InitLogger(prefix string, level LogLevel, path string, appendFile bool) error {
	if logging.Initialized() {
		return nil
	}
	if level < LogOff || level > LogTrace {
		return &Error{Code: ErrInvalidArg, Op: opInitLogger, Err: logging.ErrInvalidLevel}
	}
	err := logging.Init(logging.Config{Prefix: prefix, Level: level, Path: path, Append: appendFile})
	if err != nil {
		return &Error{Code: ErrFailure, Op: opInitLogger, Err: err}
	}
	return nil
}

// Init creates a new instance using the default dialer.
func Init() (Handle, error) {
	return InitWithConfig(Config{})
}

// InitWithConfig creates a new instance in the created state.
func InitWithConfig(cfg Config) (Handle, error) {
	h, err := handles.create(cfg)
	if err != nil {
		return 0, report(opInit, 0, err)
	}
	logging.Debug("instance initialized", "handle", h)
	return h, nil
}

// Deinit releases the instance. It must not be open. The handle is invalid afterwards.
func Deinit(h Handle) error {
	if err := handles.retire(h); err != nil {
		return report(opDeinit, h, err)
	}
	logging.Debug("instance deinitialized", "handle", h)
	return nil
}

// Open connects the instance to the NVM3 endpoint of the named daemon
// instance, cpc.DefaultInstance when empty. Only one instance per process
// may be open at a time.
func Open(h Handle, instance string, tracing bool) error {
	s, err := handles.lookup(h)
	if err != nil {
		return report(opOpen, h, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	err = func() error {
		switch s.state {
		case stateRetired:
			return failf(ErrNotInitialized, "unknown handle %d", h)
		case stateOpen:
			return failf(ErrNotClosed, "handle %d is already open", h)
		}
		if err := handles.acquire(h); err != nil {
			return err
		}
		if err := s.open(instance, tracing); err != nil {
			handles.release(h)
			return err
		}
		s.state = stateOpen
		return nil
	}()
	s.recorder.ObserveOperation(opOpen, CodeOf(err).Name(), time.Since(start))
	if err != nil {
		return report(opOpen, h, err)
	}

	s.recorder.SessionOpened()
	logging.Info("instance opened", "handle", h, "instance", s.instance)
	return nil
}

// Close disconnects the instance from the daemon.
func Close(h Handle) error {
	s, err := handles.lookup(h)
	if err != nil {
		return report(opClose, h, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case stateRetired:
		return report(opClose, h, failf(ErrNotInitialized, "unknown handle %d", h))
	case stateOpen:
	default:
		return report(opClose, h, failf(ErrNotOpen, "handle %d is not open", h))
	}

	if err := s.close(); err != nil {
		logging.Warn("closing channel", "handle", h, "err", err.Error())
	}
	s.state = stateClosed
	handles.release(h)
	s.recorder.SessionClosed()
	logging.Debug("instance closed", "handle", h)
	return nil
}

// WriteData stores data under key. data is borrowed: it is sent as is
// without being copied and must not be modified until WriteData returns.
// Another process writing the same object yields ErrTryAgain.
func WriteData(h Handle, key ObjectKey, data []byte) error {
	return run(h, opWriteData, true, func(ctx context.Context, s *session) error {
		return s.writeData(ctx, key, data)
	})
}

// ReadData copies the object stored under key into buf and returns its
// size. buf is left untouched unless the whole object fits.
func ReadData(h Handle, key ObjectKey, buf []byte) (int, error) {
	var n int
	err := run(h, opReadData, true, func(ctx context.Context, s *session) (err error) {
		n, err = s.readData(ctx, key, buf)
		return err
	})
	return n, err
}

// ListObjects writes up to len(keys) object keys into keys and returns the
// number of objects in the store. A result larger than len(keys) means the
// listing was truncated.
func ListObjects(h Handle, keys []ObjectKey) (int, error) {
	var n int
	err := run(h, opListObjects, true, func(ctx context.Context, s *session) (err error) {
		n, err = s.listObjects(ctx, keys)
		return err
	})
	return n, err
}

// GetObjectCount returns the number of objects in the store.
func GetObjectCount(h Handle) (int, error) {
	var n int
	err := run(h, opGetObjectCount, true, func(ctx context.Context, s *session) (err error) {
		n, err = s.objectCount(ctx)
		return err
	})
	return n, err
}

// GetObjectInfo returns the size and type of the object stored under key.
func GetObjectInfo(h Handle, key ObjectKey) (ObjectInfo, error) {
	var info ObjectInfo
	err := run(h, opGetObjectInfo, true, func(ctx context.Context, s *session) (err error) {
		info, err = s.objectInfo(ctx, key)
		return err
	})
	return info, err
}

// DeleteObject removes the object stored under key.
func DeleteObject(h Handle, key ObjectKey) error {
	return run(h, opDeleteObject, true, func(ctx context.Context, s *session) error {
		return s.deleteObject(ctx, key)
	})
}

// WriteCounter stores value in the counter under key, creating it if needed.
func WriteCounter(h Handle, key ObjectKey, value uint32) error {
	return run(h, opWriteCounter, true, func(ctx context.Context, s *session) error {
		return s.writeCounter(ctx, key, value)
	})
}

// ReadCounter returns the value of the counter under key.
func ReadCounter(h Handle, key ObjectKey) (uint32, error) {
	var v uint32
	err := run(h, opReadCounter, true, func(ctx context.Context, s *session) (err error) {
		v, err = s.counter(ctx, protocol.ReadCounter(uint32(key)))
		return err
	})
	return v, err
}

// IncrementCounter adds one to the counter under key and returns the new
// value, wrapping at 2^32. The increment is performed by the remote device.
func IncrementCounter(h Handle, key ObjectKey) (uint32, error) {
	var v uint32
	err := run(h, opIncrementCounter, true, func(ctx context.Context, s *session) (err error) {
		v, err = s.counter(ctx, protocol.IncrementCounter(uint32(key)))
		return err
	})
	return v, err
}

// GetMaximumWriteSize returns the largest object WriteData accepts.
func GetMaximumWriteSize(h Handle) (int, error) {
	var n int
	err := run(h, opGetMaximumWriteSize, false, func(_ context.Context, s *session) error {
		n = s.maxWriteSize
		return nil
	})
	return n, err
}

// Ping checks that the remote NVM3 component answers.
func Ping(h Handle) error {
	return run(h, opPing, true, func(ctx context.Context, s *session) error {
		return s.ping(ctx)
	})
}

// run executes fn on the open session behind h. Remote operations are
// bounded by the session timeout and recorded.
func run(h Handle, op string, remote bool, fn func(context.Context, *session) error) error {
	s, err := handles.lookup(h)
	if err != nil {
		return report(op, h, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case stateRetired:
		return report(op, h, failf(ErrNotInitialized, "unknown handle %d", h))
	case stateOpen:
	default:
		return report(op, h, failf(ErrNotOpen, "handle %d is %s", h, s.state))
	}

	if !remote {
		return report(op, h, fn(context.Background(), s))
	}

	ctx, cancel := s.deadline()
	defer cancel()

	start := time.Now()
	err = fn(ctx, s)
	s.recorder.ObserveOperation(op, CodeOf(err).Name(), time.Since(start))
	return report(op, h, err)
}

// report stamps err with op and logs it.
func report(op string, h Handle, err error) error {
	if err == nil {
		logging.Trace("operation completed", "op", op, "handle", h)
		return nil
	}

	e, ok := err.(*Error)
	if !ok {
		e = &Error{Code: ErrFailure, Err: err}
	}
	e.Op = op
	logging.Error(e.Error(), "handle", h)
	return e
}
