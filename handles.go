package nvm3

import (
	"errors"
	"math"
	"sync"
)

// Handle identifies one client instance. Handles are positive, allocated in
// increasing order and never reissued within a process.
type Handle uint32

var errHandlesExhausted = errors.New("handle space exhausted")

// table is the process-wide registry of sessions. It also owns the single
// open slot: at most one session per process may be open at a time.
//
// Lock order is session.mu before table.mu.
type table struct {
	mu       sync.RWMutex
	last     uint32
	sessions map[Handle]*session
	open     Handle
}

var handles = newTable()

func newTable() *table {
	return &table{sessions: make(map[Handle]*session)}
}

func (t *table) create(cfg Config) (Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.last == math.MaxUint32 {
		return 0, fail(ErrFailure, errHandlesExhausted)
	}
	t.last++
	h := Handle(t.last)
	t.sessions[h] = newSession(h, cfg)
	return h, nil
}

func (t *table) lookup(h Handle) (*session, error) {
	t.mu.RLock()
	s, ok := t.sessions[h]
	t.mu.RUnlock()
	if !ok {
		return nil, failf(ErrNotInitialized, "unknown handle %d", h)
	}
	return s, nil
}

// retire removes a session that is not open. The handle stays invalid forever.
func (t *table) retire(h Handle) error {
	s, err := t.lookup(h)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case stateRetired:
		return failf(ErrNotInitialized, "unknown handle %d", h)
	case stateOpen:
		return failf(ErrNotClosed, "handle %d is still open, close it first", h)
	}
	s.state = stateRetired

	t.mu.Lock()
	delete(t.sessions, h)
	t.mu.Unlock()
	return nil
}

// acquire claims the open slot for h.
func (t *table) acquire(h Handle) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.open != 0 && t.open != h {
		return failf(ErrNotClosed, "handle %d is already open in this process", t.open)
	}
	t.open = h
	return nil
}

// release frees the open slot if h holds it.
func (t *table) release(h Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.open == h {
		t.open = 0
	}
}

// holder returns the handle owning the open slot, or zero.
func (t *table) holder() Handle {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.open
}
