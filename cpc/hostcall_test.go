package cpc_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cpc-project/nvm3/cpc"
	"github.com/cpc-project/nvm3/hostmock"
	"github.com/cpc-project/nvm3/protocol"
)

func TestHostCallDialerStatus(t *testing.T) {
	tt := []struct {
		name    string
		cfg     hostmock.Config
		wantErr error
	}{
		{
			name: "opened",
			cfg: hostmock.Config{
				ExpectedNamespace:  cpc.DefaultNamespace,
				ExpectedCapability: "cpc",
				ExpectedFunction:   "open",
				Response:           hostmock.StatusResponse(200, "OK"),
			},
		},
		{
			name:    "not ready",
			cfg:     hostmock.Config{Response: hostmock.StatusResponse(503, "endpoint closed")},
			wantErr: cpc.ErrNotReady,
		},
		{
			name:    "no daemon",
			cfg:     hostmock.Config{Response: hostmock.StatusResponse(404, "no such instance")},
			wantErr: cpc.ErrDaemonUnavailable,
		},
		{
			name:    "host failure",
			cfg:     hostmock.Config{Response: hostmock.StatusResponse(500, "boom")},
			wantErr: cpc.ErrEndpoint,
		},
		{
			name:    "host call error",
			cfg:     hostmock.Config{Fail: true},
			wantErr: cpc.ErrHostCall,
		},
		{
			name:    "invalid response",
			cfg:     hostmock.Config{Response: func() []byte { return []byte{0xff, 0xff} }},
			wantErr: cpc.ErrHostResponseInvalid,
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			mock, err := hostmock.New(tc.cfg)
			if err != nil {
				t.Fatalf("Unexpected error creating mock: %v", err)
			}

			dialer := &cpc.HostCallDialer{HostCall: mock.HostCall}
			_, err = dialer.Dial(context.Background(), "", true)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("Unexpected error: got %v, want %v", err, tc.wantErr)
			}

			calls := mock.Calls()
			if len(calls) != 1 {
				t.Fatalf("Unexpected number of calls: %d", len(calls))
			}
			if want := append([]byte{1}, cpc.DefaultInstance...); string(calls[0].Payload) != string(want) {
				t.Fatalf("Unexpected open payload: got %q, want %q", calls[0].Payload, want)
			}
		})
	}
}

func TestHostCallChannel(t *testing.T) {
	d := hostmock.NewDaemon(hostmock.DaemonConfig{})
	dialer := &cpc.HostCallDialer{HostCall: d.HostCall, MaxWriteSize: 64}

	ch, err := dialer.Dial(context.Background(), "", false)
	if err != nil {
		t.Fatalf("Dial returned error: %v", err)
	}

	req := protocol.GetVersion()
	req.UniqueID, req.TransactionID = 5, 9
	frame, _ := req.Encode()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := ch.Send(ctx, frame); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	raw, err := ch.Recv(ctx)
	if err != nil {
		t.Fatalf("Recv returned error: %v", err)
	}
	reply, err := protocol.ParseReply(raw, 5, 9, req.Replies()...)
	if err != nil {
		t.Fatalf("ParseReply returned error: %v", err)
	}
	if v, _ := protocol.DecodeVersion(reply.Payload); v.Major != 1 {
		t.Fatalf("Unexpected version: %v", v)
	}

	short, cancelShort := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancelShort()
	if _, err := ch.Recv(short); !errors.Is(err, cpc.ErrWouldBlock) {
		t.Fatalf("Unexpected error: got %v, want %v", err, cpc.ErrWouldBlock)
	}

	if err := ch.Send(ctx, make([]byte, 65)); !errors.Is(err, cpc.ErrFrameTooLarge) {
		t.Fatalf("Unexpected error: got %v, want %v", err, cpc.ErrFrameTooLarge)
	}

	if err := ch.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if ch.Alive() {
		t.Fatalf("closed channel reports alive")
	}
}

func TestHostCallChannelLost(t *testing.T) {
	mock, _ := hostmock.New(hostmock.Config{
		Functions: map[string]func([]byte) ([]byte, error){
			"open":  func([]byte) ([]byte, error) { return hostmock.EncodeStatus(200, "OK"), nil },
			"write": func([]byte) ([]byte, error) { return nil, errors.New("daemon went away") },
		},
	})

	ch, err := (&cpc.HostCallDialer{HostCall: mock.HostCall}).Dial(context.Background(), "", false)
	if err != nil {
		t.Fatalf("Dial returned error: %v", err)
	}
	if err := ch.Send(context.Background(), []byte{1}); !errors.Is(err, cpc.ErrConnectionLost) {
		t.Fatalf("Unexpected error: got %v, want %v", err, cpc.ErrConnectionLost)
	}
	if ch.Alive() {
		t.Fatalf("channel still alive after a failed write")
	}
}
