package kv_test

import (
	"bytes"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/cpc-project/nvm3"
	"github.com/cpc-project/nvm3/hostmock"
	kvpkg "github.com/cpc-project/nvm3/kv"
	kvmock "github.com/cpc-project/nvm3/kv/mock"
	"github.com/cpc-project/nvm3/protocol"
)

func newClient(t testing.TB, d *hostmock.Daemon) *kvpkg.Client {
	t.Helper()
	c, err := kvpkg.New(kvpkg.Config{Dialer: d, Timeout: time.Second})
	if err != nil {
		t.Fatalf("Unable to open store: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// TestKVInterface runs the same scenarios against the real client and the mock.
func TestKVInterface(t *testing.T) {
	impls := map[string]func(t *testing.T) kvpkg.KV{
		"client": func(t *testing.T) kvpkg.KV {
			return newClient(t, hostmock.NewDaemon(hostmock.DaemonConfig{}))
		},
		"mock": func(*testing.T) kvpkg.KV { return kvmock.New(kvmock.Config{}) },
	}

	for name, open := range impls {
		t.Run(name, func(t *testing.T) {
			kv := open(t)

			tt := []struct {
				name    string
				key     nvm3.ObjectKey
				value   []byte
				wantSet error
				wantGet error
				wantDel error
			}{
				{"valid", 1, []byte("boring"), nil, nil, nil},
				{"key too large", kvpkg.MaxKey + 1, []byte("x"), kvpkg.ErrInvalidKey, kvpkg.ErrInvalidKey, kvpkg.ErrInvalidKey},
				{"empty value", 3, nil, kvpkg.ErrInvalidValue, kvpkg.ErrKeyNotFound, kvpkg.ErrKeyNotFound},
			}

			for _, tc := range tt {
				t.Run(tc.name, func(t *testing.T) {
					if err := kv.Set(tc.key, tc.value); !errors.Is(err, tc.wantSet) {
						t.Fatalf("Unexpected Set error: got %v, want %v", err, tc.wantSet)
					}
					v, err := kv.Get(tc.key)
					if !errors.Is(err, tc.wantGet) {
						t.Fatalf("Unexpected Get error: got %v, want %v", err, tc.wantGet)
					}
					if err == nil && !bytes.Equal(v, tc.value) {
						t.Fatalf("Unexpected value: got %q, want %q", v, tc.value)
					}
					if err := kv.Delete(tc.key); !errors.Is(err, tc.wantDel) {
						t.Fatalf("Unexpected Delete error: got %v, want %v", err, tc.wantDel)
					}
				})
			}

			t.Run("counters", func(t *testing.T) {
				if err := kv.SetCounter(9, 41); err != nil {
					t.Fatalf("SetCounter returned error: %v", err)
				}
				if v, err := kv.Increment(9); err != nil || v != 42 {
					t.Fatalf("Unexpected increment: %d, %v", v, err)
				}
				if v, err := kv.Counter(9); err != nil || v != 42 {
					t.Fatalf("Unexpected counter: %d, %v", v, err)
				}
				if _, err := kv.Get(9); !errors.Is(err, kvpkg.ErrWrongType) {
					t.Fatalf("Unexpected Get error on a counter: %v", err)
				}
				info, err := kv.Info(9)
				if err != nil || info.Type != nvm3.ObjectCounter {
					t.Fatalf("Unexpected info: %+v, %v", info, err)
				}
				if _, err := kv.Increment(10); !errors.Is(err, kvpkg.ErrKeyNotFound) {
					t.Fatalf("Unexpected Increment error: %v", err)
				}
			})

			t.Run("keys", func(t *testing.T) {
				for _, k := range []nvm3.ObjectKey{30, 10, 20} {
					if err := kv.Set(k, []byte{byte(k)}); err != nil {
						t.Fatalf("Set returned error: %v", err)
					}
				}
				keys, err := kv.Keys()
				if err != nil {
					t.Fatalf("Keys returned error: %v", err)
				}
				if want := []nvm3.ObjectKey{9, 10, 20, 30}; !slices.Equal(keys, want) {
					t.Fatalf("Unexpected keys: got %v, want %v", keys, want)
				}
			})
		})
	}
}

func TestClientGetSizesExactly(t *testing.T) {
	d := hostmock.NewDaemon(hostmock.DaemonConfig{})
	value := bytes.Repeat([]byte("nvm3"), 300)
	d.Secondary().Put(5, value)
	c := newClient(t, d)

	got, err := c.Get(5)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if !bytes.Equal(got, value) || cap(got) != len(value) {
		t.Fatalf("Unexpected value: %d bytes, cap %d", len(got), cap(got))
	}
}

func TestClientRetries(t *testing.T) {
	busy := protocol.SlStatusOf(protocol.StatusBusy)

	t.Run("recovers", func(t *testing.T) {
		d := hostmock.NewDaemon(hostmock.DaemonConfig{})
		d.Secondary().FailNext(protocol.CmdWriteData, busy)
		d.Secondary().FailNext(protocol.CmdWriteData, busy)
		c := newClient(t, d)

		if err := c.Set(1, []byte("v")); err != nil {
			t.Fatalf("Set returned error: %v", err)
		}
	})

	t.Run("gives up", func(t *testing.T) {
		d := hostmock.NewDaemon(hostmock.DaemonConfig{})
		for range kvpkg.DefaultRetries + 1 {
			d.Secondary().FailNext(protocol.CmdWriteData, busy)
		}
		c := newClient(t, d)

		if err := c.Set(1, []byte("v")); !errors.Is(err, nvm3.ErrTryAgain) {
			t.Fatalf("Unexpected error: got %v, want %v", err, nvm3.ErrTryAgain)
		}
	})
}

func TestClientBorrowedHandle(t *testing.T) {
	d := hostmock.NewDaemon(hostmock.DaemonConfig{})
	h, err := nvm3.InitWithConfig(nvm3.Config{Dialer: d})
	if err != nil {
		t.Fatalf("Init returned error: %v", err)
	}
	defer nvm3.Deinit(h) //nolint:errcheck
	if err := nvm3.Open(h, "", false); err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer nvm3.Close(h) //nolint:errcheck

	c, err := kvpkg.New(kvpkg.Config{Handle: h})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if c.Handle() != h {
		t.Fatalf("Unexpected handle: got %d, want %d", c.Handle(), h)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if err := nvm3.Ping(h); err != nil {
		t.Fatalf("borrowed handle was closed: %v", err)
	}
}

func TestClientTimeout(t *testing.T) {
	tt := []struct {
		name    string
		timeout time.Duration
		sec     int
		usec    int
	}{
		{"default", 0, 5, 0},
		{"explicit", 1500 * time.Millisecond, 1, 500000},
		{"no deadline", kvpkg.NoTimeout, 0, 0},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			c, err := kvpkg.New(kvpkg.Config{Dialer: hostmock.NewDaemon(hostmock.DaemonConfig{}), Timeout: tc.timeout})
			if err != nil {
				t.Fatalf("New returned error: %v", err)
			}
			defer c.Close() //nolint:errcheck

			sec, usec, err := nvm3.GetTimeout(c.Handle())
			if err != nil {
				t.Fatalf("GetTimeout returned error: %v", err)
			}
			if sec != tc.sec || usec != tc.usec {
				t.Fatalf("Unexpected timeout: got %ds %dus, want %ds %dus", sec, usec, tc.sec, tc.usec)
			}
		})
	}
}

func TestNewFailures(t *testing.T) {
	d := hostmock.NewDaemon(hostmock.DaemonConfig{})
	d.SetReady(false)

	if _, err := kvpkg.New(kvpkg.Config{Dialer: d}); !errors.Is(err, nvm3.ErrTryAgain) {
		t.Fatalf("Unexpected error: got %v, want %v", err, nvm3.ErrTryAgain)
	}

	d.SetReady(true)
	c, err := kvpkg.New(kvpkg.Config{Dialer: d})
	if err != nil {
		t.Fatalf("New after a failed attempt returned error: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
}
