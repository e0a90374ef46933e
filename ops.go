package nvm3

import (
	"context"

	"github.com/cpc-project/nvm3/protocol"
)

// ObjectKey identifies one object in the remote store.
type ObjectKey uint32

// ObjectType is the kind of a stored object.
type ObjectType int32

const (
	ObjectCounter ObjectType = iota
	ObjectData
	ObjectUnknown
)

func (t ObjectType) String() string {
	switch t {
	case ObjectCounter:
		return "COUNTER"
	case ObjectData:
		return "DATA"
	default:
		return "UNKNOWN"
	}
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Size int
	Type ObjectType
}

// maxField bounds a count carried in a u16 request field.
func maxField(n int) uint16 {
	return uint16(min(n, 0xFFFF))
}

// writeData sends data in fragments that fit the channel frame limit. data
// is handed to the channel as is and never copied.
func (s *session) writeData(ctx context.Context, key ObjectKey, data []byte) error {
	if len(data) == 0 {
		return failf(ErrInvalidArg, "data must not be empty")
	}
	if len(data) > s.maxWriteSize {
		return failf(ErrInvalidArg, "write of %d bytes exceeds the maximum write size of %d", len(data), s.maxWriteSize)
	}

	for offset := 0; offset < len(data); {
		frag := s.fragmentSize
		end := min(offset+frag, len(data))
		last := end == len(data)

		reply, err := s.call(ctx, protocol.WriteData(uint32(key), uint16(offset), last, data[offset:end]))
		if err != nil {
			return err
		}
		if err := writePolicy.check(reply.Payload); err != nil {
			return err
		}
		offset = end
	}

	s.recorder.ObserveBytes(opWriteData, len(data))
	return nil
}

// readData reassembles the object into buf. Nothing is copied unless the
// whole object fits.
func (s *session) readData(ctx context.Context, key ObjectKey, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, failf(ErrInvalidArg, "buffer must not be empty")
	}

	req := protocol.ReadData(uint32(key), maxField(len(buf)))
	if err := s.send(ctx, &req); err != nil {
		return 0, err
	}

	var data []byte
	for {
		reply, err := s.receive(ctx, req)
		if err != nil {
			return 0, err
		}
		if reply.Header.Command == protocol.CmdStatusIs {
			return 0, readPolicy.check(reply.Payload)
		}

		last, chunk, err := protocol.DecodeReadData(reply.Payload)
		if err != nil {
			return 0, fail(ErrFailure, err)
		}
		data = append(data, chunk...)
		if last {
			break
		}
	}

	if len(data) > len(buf) {
		return 0, failf(ErrBufferTooSmall, "object of %d bytes, buffer of %d", len(data), len(buf))
	}
	copy(buf, data)
	s.recorder.ObserveBytes(opReadData, len(data))
	return len(data), nil
}

// listObjects fills keys and returns the number of objects in the store,
// which exceeds len(keys) when the listing was truncated.
func (s *session) listObjects(ctx context.Context, keys []ObjectKey) (int, error) {
	if len(keys) == 0 {
		return 0, failf(ErrInvalidArg, "key slice must not be empty")
	}

	req := protocol.EnumerateObjects(maxField(len(keys)))
	if err := s.send(ctx, &req); err != nil {
		return 0, err
	}

	var got []uint32
	for {
		reply, err := s.receive(ctx, req)
		if err != nil {
			return 0, err
		}
		if reply.Header.Command == protocol.CmdStatusIs {
			return 0, listPolicy.check(reply.Payload)
		}

		var last bool
		last, got, err = protocol.DecodeKeys(got, reply.Payload)
		if err != nil {
			return 0, fail(ErrFailure, err)
		}
		if last {
			break
		}
	}

	if len(got) > len(keys) {
		return 0, failf(ErrBufferTooSmall, "received %d keys for room of %d", len(got), len(keys))
	}
	for i, k := range got {
		keys[i] = ObjectKey(k)
	}

	if len(got) < len(keys) {
		return len(got), nil
	}
	return s.objectCount(ctx)
}

func (s *session) objectCount(ctx context.Context) (int, error) {
	reply, err := s.call(ctx, protocol.GetObjectCount())
	if err != nil {
		return 0, err
	}
	if reply.Header.Command == protocol.CmdStatusIs {
		return 0, queryPolicy.check(reply.Payload)
	}
	n, err := protocol.DecodeObjectCount(reply.Payload)
	if err != nil {
		return 0, fail(ErrFailure, err)
	}
	return int(n), nil
}

func (s *session) objectInfo(ctx context.Context, key ObjectKey) (ObjectInfo, error) {
	reply, err := s.call(ctx, protocol.GetObjectInfo(uint32(key)))
	if err != nil {
		return ObjectInfo{}, err
	}
	if reply.Header.Command == protocol.CmdStatusIs {
		return ObjectInfo{}, queryPolicy.check(reply.Payload)
	}

	info, err := protocol.DecodeObjectInfo(reply.Payload)
	if err != nil {
		return ObjectInfo{}, fail(ErrFailure, err)
	}

	typ := ObjectUnknown
	switch info.Type {
	case protocol.ObjectData:
		typ = ObjectData
	case protocol.ObjectCounter:
		typ = ObjectCounter
	}
	return ObjectInfo{Size: int(info.Size), Type: typ}, nil
}

func (s *session) deleteObject(ctx context.Context, key ObjectKey) error {
	reply, err := s.call(ctx, protocol.DeleteObject(uint32(key)))
	if err != nil {
		return err
	}
	return deletePolicy.check(reply.Payload)
}

func (s *session) writeCounter(ctx context.Context, key ObjectKey, value uint32) error {
	reply, err := s.call(ctx, protocol.WriteCounter(uint32(key), value))
	if err != nil {
		return err
	}
	return writeCounterPolicy.check(reply.Payload)
}

// counter runs ReadCounter or IncrementCounter. Increments happen on the
// remote device, so they are atomic across processes.
func (s *session) counter(ctx context.Context, req protocol.Request) (uint32, error) {
	reply, err := s.call(ctx, req)
	if err != nil {
		return 0, err
	}
	if reply.Header.Command == protocol.CmdStatusIs {
		return 0, queryPolicy.check(reply.Payload)
	}
	v, err := protocol.DecodeCounter(reply.Payload)
	if err != nil {
		return 0, fail(ErrFailure, err)
	}
	return v, nil
}

func (s *session) ping(ctx context.Context) error {
	reply, err := s.call(ctx, protocol.Noop())
	if err != nil {
		return err
	}
	return pingPolicy.check(reply.Payload)
}
