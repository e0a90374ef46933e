package hostmock

import (
	"bytes"
	"errors"
	"testing"

	sdkproto "github.com/tarmac-project/protobuf-go/sdk"
	pb "google.golang.org/protobuf/proto"
)

type TestCase struct {
	name       string
	cfg        Config
	payload    []byte
	namespace  string
	capability string
	function   string
	want       []byte
	wantErr    error
}

var ErrMockError = errors.New("Mock error")

func TestHostMock(t *testing.T) {
	tt := []TestCase{
		{
			name: "scripted response",
			cfg: Config{
				ExpectedNamespace:  "nvm3",
				ExpectedCapability: "cpc",
				ExpectedFunction:   "write",
				PayloadValidator: func(_ []byte) error {
					return nil
				},
				Response: func() []byte {
					return []byte("ack")
				},
			},
			namespace:  "nvm3",
			capability: "cpc",
			function:   "write",
			payload:    []byte("frame"),
			want:       []byte("ack"),
		},
		{
			name: "custom failure",
			cfg: Config{
				Error: ErrMockError,
				Fail:  true,
			},
			namespace:  "nvm3",
			capability: "cpc",
			function:   "write",
			wantErr:    ErrMockError,
		},
		{
			name:       "default failure",
			cfg:        Config{Fail: true},
			namespace:  "nvm3",
			capability: "cpc",
			function:   "read",
			wantErr:    ErrOperationFailed,
		},
		{
			name:       "unexpected namespace",
			cfg:        Config{ExpectedNamespace: "nvm3"},
			namespace:  "other",
			capability: "cpc",
			function:   "open",
			wantErr:    ErrUnexpectedNamespace,
		},
		{
			name:       "unexpected capability",
			cfg:        Config{ExpectedCapability: "cpc"},
			namespace:  "nvm3",
			capability: "kvstore",
			function:   "open",
			wantErr:    ErrUnexpectedCapability,
		},
		{
			name:       "unexpected function",
			cfg:        Config{ExpectedFunction: "open"},
			namespace:  "nvm3",
			capability: "cpc",
			function:   "close",
			wantErr:    ErrUnexpectedFunction,
		},
		{
			name: "validator rejects payload",
			cfg: Config{
				PayloadValidator: func(p []byte) error {
					if len(p) == 0 {
						return ErrMockError
					}
					return nil
				},
			},
			namespace:  "nvm3",
			capability: "cpc",
			function:   "write",
			wantErr:    ErrMockError,
		},
		{
			name: "function routing wins over response",
			cfg: Config{
				Functions: map[string]func([]byte) ([]byte, error){
					"read": func(p []byte) ([]byte, error) { return append([]byte("echo:"), p...), nil },
				},
				Response: func() []byte { return []byte("fallback") },
			},
			namespace:  "nvm3",
			capability: "cpc",
			function:   "read",
			payload:    []byte("x"),
			want:       []byte("echo:x"),
		},
		{
			name:       "blank expectations are wildcards",
			cfg:        Config{},
			namespace:  "anything",
			capability: "goes",
			function:   "here",
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			mock, err := New(tc.cfg)
			if err != nil {
				t.Fatalf("Unexpected error creating mock: %v", err)
			}

			got, err := mock.HostCall(tc.namespace, tc.capability, tc.function, tc.payload)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("Unexpected error: got %v, want %v", err, tc.wantErr)
			}
			if err == nil && !bytes.Equal(got, tc.want) {
				t.Fatalf("Unexpected response: got %q, want %q", got, tc.want)
			}

			calls := mock.Calls()
			if len(calls) != 1 || calls[0].Function != tc.function {
				t.Fatalf("Unexpected recorded calls: %+v", calls)
			}
		})
	}
}

func TestStatusResponse(t *testing.T) {
	var status sdkproto.Status
	if err := pb.Unmarshal(StatusResponse(503, "not ready")(), &status); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	if status.GetCode() != 503 || status.GetStatus() != "not ready" {
		t.Fatalf("Unexpected status: got %d %q", status.GetCode(), status.GetStatus())
	}
}
