package nvm3

import (
	"context"
	"math"
	"time"
)

// DefaultTimeout bounds every remote call of a newly opened instance.
const DefaultTimeout = 5 * time.Second

// maxTimeoutSeconds is the largest whole-second timeout a time.Duration holds
// together with any microsecond part.
const maxTimeoutSeconds = math.MaxInt64/int64(time.Second) - 1

// SetTimeout sets the maximum time any remote call on h may block. It
// requires an open instance and is reset to DefaultTimeout on every Open.
func SetTimeout(h Handle, seconds, microseconds int) error {
	return run(h, opSetTimeout, false, func(_ context.Context, s *session) error {
		if seconds < 0 || int64(seconds) > maxTimeoutSeconds || microseconds < 0 || microseconds >= 1_000_000 {
			return failf(ErrInvalidArg, "invalid timeout %ds %dus", seconds, microseconds)
		}
		s.timeout = time.Duration(seconds)*time.Second + time.Duration(microseconds)*time.Microsecond
		return nil
	})
}

// GetTimeout returns the call timeout of h as whole seconds and microseconds.
func GetTimeout(h Handle) (seconds, microseconds int, err error) {
	err = run(h, opGetTimeout, false, func(_ context.Context, s *session) error {
		seconds = int(s.timeout / time.Second)
		microseconds = int(s.timeout % time.Second / time.Microsecond)
		return nil
	})
	return seconds, microseconds, err
}

// deadline derives the context bounding one operation on s.
func (s *session) deadline() (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), s.timeout)
}
