package metrics

import "time"

// Recorder receives client-side measurements. Implementations must be safe
// for concurrent use.
type Recorder interface {
	// ObserveOperation records one completed operation and its result code.
	ObserveOperation(op, code string, d time.Duration)

	// ObserveBytes records the payload size moved by a data operation.
	ObserveBytes(op string, n int)

	// SessionOpened records a session entering the Open state.
	SessionOpened()

	// SessionClosed records a session leaving the Open state.
	SessionClosed()
}

// OrNop returns r, or a Recorder that discards everything when r is nil.
func OrNop(r Recorder) Recorder {
	if r == nil {
		return nop{}
	}
	return r
}

type nop struct{}

func (nop) ObserveOperation(string, string, time.Duration) {}
func (nop) ObserveBytes(string, int)                       {}
func (nop) SessionOpened()                                 {}
func (nop) SessionClosed()                                 {}
