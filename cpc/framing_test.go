package cpc

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestFraming(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, []byte{1, 2}, nil, []byte{3}); err != nil {
		t.Fatalf("WriteFrame returned error: %v", err)
	}
	if want := []byte{3, 0, 0, 0, 1, 2, 3}; !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("Unexpected frame: got %v, want %v", buf.Bytes(), want)
	}

	got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame returned error: %v", err)
	}
	if !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Fatalf("Unexpected payload: got %v", got)
	}

	t.Run("truncated", func(t *testing.T) {
		_, err := ReadFrame(bytes.NewReader([]byte{4, 0, 0, 0, 1}))
		if !errors.Is(err, io.ErrUnexpectedEOF) {
			t.Fatalf("Unexpected error: got %v, want %v", err, io.ErrUnexpectedEOF)
		}
	})

	t.Run("oversized", func(t *testing.T) {
		_, err := ReadFrame(bytes.NewReader([]byte{0, 0, 0, 1}))
		if !errors.Is(err, ErrFrameTooLarge) {
			t.Fatalf("Unexpected error: got %v, want %v", err, ErrFrameTooLarge)
		}
		if err := WriteFrame(io.Discard, make([]byte, MaxFrameSize+1)); !errors.Is(err, ErrFrameTooLarge) {
			t.Fatalf("Unexpected error: got %v, want %v", err, ErrFrameTooLarge)
		}
	})
}

func TestHandshake(t *testing.T) {
	tracing, err := DecodeHello(EncodeHello(true))
	if err != nil || !tracing {
		t.Fatalf("Unexpected hello: tracing %t, err %v", tracing, err)
	}
	if _, err := DecodeHello([]byte{9, 0}); err == nil {
		t.Fatalf("expected an error for an unknown hello version")
	}

	ready, size, err := DecodeWelcome(EncodeWelcome(true, 4087))
	if err != nil || !ready || size != 4087 {
		t.Fatalf("Unexpected welcome: ready %t, size %d, err %v", ready, size, err)
	}
	ready, _, _ = DecodeWelcome(EncodeWelcome(false, 0))
	if ready {
		t.Fatalf("expected a not ready welcome")
	}
}

func TestInstance(t *testing.T) {
	if got := Instance(""); got != DefaultInstance {
		t.Fatalf("Unexpected instance: got %q, want %q", got, DefaultInstance)
	}
	if got := Instance("cpcd_3"); got != "cpcd_3" {
		t.Fatalf("Unexpected instance: got %q", got)
	}
}

// chunkReader returns one scripted read per call.
type chunkReader struct {
	reads []chunk
}

type chunk struct {
	data []byte
	err  error
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.reads) == 0 {
		return 0, io.EOF
	}
	c := r.reads[0]
	r.reads = r.reads[1:]
	return copy(p, c.data), c.err
}

func TestFrameReaderResumes(t *testing.T) {
	errTimeout := errors.New("timeout")
	r := &chunkReader{reads: []chunk{
		{data: []byte{5, 0}},
		{err: errTimeout},
		{data: []byte{0, 0, 'A', 'A', 'A'}},
		{err: errTimeout},
		{data: []byte{'A', 'A', 4, 0, 0, 0, 'B', 'B', 'B', 'B'}},
	}}
	f := NewFrameReader(r)

	for i := range 2 {
		if _, err := f.ReadFrame(); !errors.Is(err, errTimeout) {
			t.Fatalf("Unexpected error on read %d: got %v, want %v", i, err, errTimeout)
		}
	}
	if f.Buffered() != 7 {
		t.Fatalf("Unexpected buffered bytes: got %d, want 7", f.Buffered())
	}

	for _, want := range []string{"AAAAA", "BBBB"} {
		got, err := f.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame returned error: %v", err)
		}
		if string(got) != want {
			t.Fatalf("Unexpected frame: got %q, want %q", got, want)
		}
	}

	if _, err := f.ReadFrame(); !errors.Is(err, io.EOF) {
		t.Fatalf("Unexpected error: got %v, want %v", err, io.EOF)
	}
}

func TestFrameReaderErrors(t *testing.T) {
	tt := []struct {
		name  string
		reads []chunk
		err   error
	}{
		{"truncated", []chunk{{data: []byte{4, 0, 0, 0, 1}}}, io.ErrUnexpectedEOF},
		{"oversized", []chunk{{data: []byte{0, 0, 0, 1}}}, ErrFrameTooLarge},
		{"frame and error in one read", []chunk{{data: []byte{1, 0, 0, 0, 9}, err: io.ErrClosedPipe}}, nil},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewFrameReader(&chunkReader{reads: tc.reads}).ReadFrame()
			if !errors.Is(err, tc.err) {
				t.Fatalf("Unexpected error: got %v, want %v", err, tc.err)
			}
		})
	}
}
