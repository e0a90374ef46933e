//go:build unix

package cpc_test

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cpc-project/nvm3/cpc"
	"github.com/cpc-project/nvm3/hostmock"
	"github.com/cpc-project/nvm3/protocol"
)

// serve starts a daemon on a socket under a fresh directory. Unix socket
// paths are short, so t.TempDir is avoided.
func serve(t *testing.T, d *hostmock.Daemon) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "cpc")
	if err != nil {
		t.Fatalf("MkdirTemp returned error: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	path := cpc.SocketPath(dir, "")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll returned error: %v", err)
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("Listen returned error: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	go d.Serve(ln) //nolint:errcheck
	return dir
}

func TestSocketPath(t *testing.T) {
	if got, want := cpc.SocketPath("", ""), "/dev/shm/cpcd-cpcd_0/nvm3.cpcd.sock"; got != want {
		t.Fatalf("Unexpected path: got %q, want %q", got, want)
	}
}

func TestSocketDialer(t *testing.T) {
	d := hostmock.NewDaemon(hostmock.DaemonConfig{MaxWriteSize: 255})
	dialer := &cpc.SocketDialer{Dir: serve(t, d), DialTimeout: time.Second}

	ch, err := dialer.Dial(context.Background(), "", true)
	if err != nil {
		t.Fatalf("Dial returned error: %v", err)
	}
	defer ch.Close() //nolint:errcheck

	if ch.MaxWriteSize() != 255 {
		t.Fatalf("Unexpected max write size: got %d, want 255", ch.MaxWriteSize())
	}

	req := protocol.WriteData(3, 0, true, []byte("abc"))
	req.UniqueID, req.TransactionID = 11, 1
	prefix, err := req.Prefix()
	if err != nil {
		t.Fatalf("Prefix returned error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := ch.Send(ctx, prefix, req.Data); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	raw, err := ch.Recv(ctx)
	if err != nil {
		t.Fatalf("Recv returned error: %v", err)
	}
	reply, err := protocol.ParseReply(raw, 11, 1, req.Replies()...)
	if err != nil {
		t.Fatalf("ParseReply returned error: %v", err)
	}
	if st, _ := protocol.DecodeStatus(reply.Payload); !st.OK() {
		t.Fatalf("Unexpected status: %v", st)
	}
	if data, ok := d.Secondary().Data(3); !ok || string(data) != "abc" {
		t.Fatalf("Unexpected stored data: %q", data)
	}

	t.Run("frame too large", func(t *testing.T) {
		err := ch.Send(ctx, make([]byte, 256))
		if !errors.Is(err, cpc.ErrFrameTooLarge) {
			t.Fatalf("Unexpected error: got %v, want %v", err, cpc.ErrFrameTooLarge)
		}
	})

	t.Run("receive deadline", func(t *testing.T) {
		short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if _, err := ch.Recv(short); !errors.Is(err, cpc.ErrWouldBlock) {
			t.Fatalf("Unexpected error: got %v, want %v", err, cpc.ErrWouldBlock)
		}
		if !ch.Alive() {
			t.Fatalf("a timeout must not mark the channel lost")
		}
	})

	t.Run("closed", func(t *testing.T) {
		_ = ch.Close()
		if ch.Alive() {
			t.Fatalf("closed channel reports alive")
		}
		if err := ch.Send(ctx, prefix); !errors.Is(err, cpc.ErrClosed) {
			t.Fatalf("Unexpected error: got %v, want %v", err, cpc.ErrClosed)
		}
	})
}

func TestSocketDialerErrors(t *testing.T) {
	t.Run("missing instance directory", func(t *testing.T) {
		dialer := &cpc.SocketDialer{Dir: t.TempDir()}
		_, err := dialer.Dial(context.Background(), "cpcd_9", false)
		if !errors.Is(err, cpc.ErrDaemonUnavailable) {
			t.Fatalf("Unexpected error: got %v, want %v", err, cpc.ErrDaemonUnavailable)
		}
	})

	t.Run("no socket yet", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.MkdirAll(filepath.Dir(cpc.SocketPath(dir, "")), 0o755); err != nil {
			t.Fatalf("MkdirAll returned error: %v", err)
		}
		dialer := &cpc.SocketDialer{Dir: dir}
		_, err := dialer.Dial(context.Background(), "", false)
		if !errors.Is(err, cpc.ErrNotReady) {
			t.Fatalf("Unexpected error: got %v, want %v", err, cpc.ErrNotReady)
		}
	})

	t.Run("endpoint not ready", func(t *testing.T) {
		d := hostmock.NewDaemon(hostmock.DaemonConfig{})
		d.SetReady(false)
		dialer := &cpc.SocketDialer{Dir: serve(t, d), DialTimeout: time.Second}
		_, err := dialer.Dial(context.Background(), "", false)
		if !errors.Is(err, cpc.ErrNotReady) {
			t.Fatalf("Unexpected error: got %v, want %v", err, cpc.ErrNotReady)
		}
	})
}

func TestSocketRecvResumesAfterDeadline(t *testing.T) {
	dir, err := os.MkdirTemp("", "cpc")
	if err != nil {
		t.Fatalf("MkdirTemp returned error: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	path := cpc.SocketPath(dir, "")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll returned error: %v", err)
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("Listen returned error: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	// The daemon side writes raw bytes so a frame can be split across the
	// client deadline.
	conns := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		if _, err := cpc.ReadFrame(conn); err != nil {
			return
		}
		if err := cpc.WriteFrame(conn, cpc.EncodeWelcome(true, 255)); err != nil {
			return
		}
		conns <- conn
	}()

	dialer := &cpc.SocketDialer{Dir: dir, DialTimeout: time.Second}
	ch, err := dialer.Dial(context.Background(), "", false)
	if err != nil {
		t.Fatalf("Dial returned error: %v", err)
	}
	defer ch.Close() //nolint:errcheck

	conn := <-conns
	defer conn.Close() //nolint:errcheck

	if _, err := conn.Write([]byte{5, 0}); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	_, err = ch.Recv(ctx)
	cancel()
	if !errors.Is(err, cpc.ErrWouldBlock) {
		t.Fatalf("Unexpected error: got %v, want %v", err, cpc.ErrWouldBlock)
	}
	if !ch.Alive() {
		t.Fatalf("Channel not alive after a deadline")
	}

	if _, err := conn.Write([]byte{0, 0, 'A', 'A', 'A', 'A', 'A', 4, 0, 0, 0, 'B', 'B', 'B', 'B'}); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}

	for _, want := range []string{"AAAAA", "BBBB"} {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		got, err := ch.Recv(ctx)
		cancel()
		if err != nil {
			t.Fatalf("Recv returned error: %v", err)
		}
		if string(got) != want {
			t.Fatalf("Unexpected frame: got %q, want %q", got, want)
		}
	}
}
