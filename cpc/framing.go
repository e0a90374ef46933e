package cpc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
)

// MaxFrameSize bounds any frame exchanged with a daemon.
const MaxFrameSize = 1 << 17

const helloVersion = 1

var errBadHandshake = errors.New("invalid handshake")

// WriteFrame writes the concatenation of parts as one length-prefixed frame.
// The parts are handed to the writer without being copied.
func WriteFrame(w io.Writer, parts ...[]byte) error {
	size := frameSize(parts)
	if size > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, size)
	}

	var prefix [4]byte
	binary.LittleEndian.PutUint32(prefix[:], uint32(size))

	bufs := make(net.Buffers, 0, len(parts)+1)
	bufs = append(bufs, prefix[:])
	for _, p := range parts {
		if len(p) > 0 {
			bufs = append(bufs, p)
		}
	}
	_, err := bufs.WriteTo(w)
	return err
}

// ReadFrame reads one length-prefixed frame.
func ReadFrame(r io.Reader) ([]byte, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, err
	}

	size := binary.LittleEndian.Uint32(prefix[:])
	if size > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, size)
	}

	b := make([]byte, size)
	if _, err := io.ReadFull(r, b); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return b, nil
}

// FrameReader reads length-prefixed frames from a stream. Bytes of a frame
// cut short by a read error stay buffered, so a read interrupted by a
// deadline resumes where it stopped on the next call.
type FrameReader struct {
	r     io.Reader
	buf   []byte
	chunk [4096]byte
}

// NewFrameReader returns a FrameReader reading from r.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: r}
}

// Buffered returns the number of bytes read but not yet returned as a frame.
func (f *FrameReader) Buffered() int { return len(f.buf) }

// ReadFrame returns the next complete frame.
func (f *FrameReader) ReadFrame() ([]byte, error) {
	for {
		if b, ok, err := f.next(); err != nil || ok {
			return b, err
		}

		n, err := f.r.Read(f.chunk[:])
		f.buf = append(f.buf, f.chunk[:n]...)
		if err != nil {
			if b, ok, ferr := f.next(); ferr != nil || ok {
				return b, ferr
			}
			if errors.Is(err, io.EOF) && len(f.buf) > 0 {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}
	}
}

// next pops a complete frame off the buffer.
func (f *FrameReader) next() ([]byte, bool, error) {
	if len(f.buf) < 4 {
		return nil, false, nil
	}
	size := binary.LittleEndian.Uint32(f.buf)
	if size > MaxFrameSize {
		return nil, false, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, size)
	}
	end := 4 + int(size)
	if len(f.buf) < end {
		return nil, false, nil
	}

	b := make([]byte, size)
	copy(b, f.buf[4:end])
	f.buf = append(f.buf[:0], f.buf[end:]...)
	return b, true, nil
}

// EncodeHello encodes the first frame a client sends after connecting.
func EncodeHello(tracing bool) []byte {
	var flags byte
	if tracing {
		flags |= 1
	}
	return []byte{helloVersion, flags}
}

// DecodeHello decodes a client hello.
func DecodeHello(b []byte) (tracing bool, err error) {
	if len(b) != 2 || b[0] != helloVersion {
		return false, fmt.Errorf("%w: hello of %d bytes", errBadHandshake, len(b))
	}
	return b[1]&1 != 0, nil
}

// EncodeWelcome encodes the daemon answer to a hello.
func EncodeWelcome(ready bool, maxWriteSize uint16) []byte {
	b := []byte{1}
	if ready {
		b[0] = 0
	}
	return binary.LittleEndian.AppendUint16(b, maxWriteSize)
}

// DecodeWelcome decodes the daemon answer to a hello.
func DecodeWelcome(b []byte) (ready bool, maxWriteSize uint16, err error) {
	if len(b) != 3 {
		return false, 0, fmt.Errorf("%w: welcome of %d bytes", errBadHandshake, len(b))
	}
	return b[0] == 0, binary.LittleEndian.Uint16(b[1:]), nil
}
