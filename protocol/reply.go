package protocol

import (
	"encoding/binary"
	"fmt"
)

// Version is the NVM3 protocol version reported by a VersionIs reply.
type Version struct {
	Major uint8
	Minor uint8
	Patch uint8
}

func (v Version) String() string { return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch) }

// ObjectType is the object type reported by an ObjectInfoIs reply.
type ObjectType uint8

const (
	ObjectData    ObjectType = 0
	ObjectCounter ObjectType = 1
)

// ObjectInfo is the payload of an ObjectInfoIs reply.
type ObjectInfo struct {
	Type ObjectType
	Size uint16
}

// EncodeVersion encodes the payload of a VersionIs reply.
func EncodeVersion(v Version) []byte { return []byte{v.Major, v.Minor, v.Patch} }

// DecodeVersion decodes the payload of a VersionIs reply.
func DecodeVersion(payload []byte) (Version, error) {
	if len(payload) != 3 {
		return Version{}, fmt.Errorf("%w: version payload of %d bytes", ErrInvalidPayload, len(payload))
	}
	return Version{Major: payload[0], Minor: payload[1], Patch: payload[2]}, nil
}

// EncodeProperty encodes the payload of a PropValueIs reply.
func EncodeProperty(p Property, value uint16) []byte {
	return binary.LittleEndian.AppendUint16([]byte{byte(p)}, value)
}

// DecodeProperty decodes the payload of a PropValueIs reply.
func DecodeProperty(payload []byte) (Property, uint16, error) {
	if len(payload) != 3 {
		return 0, 0, fmt.Errorf("%w: property payload of %d bytes", ErrInvalidPayload, len(payload))
	}
	return Property(payload[0]), binary.LittleEndian.Uint16(payload[1:]), nil
}

// EncodeReadData encodes the payload of a ReadDataIs reply.
func EncodeReadData(last bool, data []byte) []byte {
	return append([]byte{boolByte(last)}, data...)
}

// DecodeReadData decodes the payload of a ReadDataIs reply. Each fragment
// carries at least one byte of data.
func DecodeReadData(payload []byte) (last bool, data []byte, err error) {
	if len(payload) < 2 {
		return false, nil, fmt.Errorf("%w: read fragment of %d bytes", ErrInvalidPayload, len(payload))
	}
	return payload[0] != 0, payload[1:], nil
}

// EncodeObjectInfo encodes the payload of an ObjectInfoIs reply.
func EncodeObjectInfo(info ObjectInfo) []byte {
	return binary.LittleEndian.AppendUint16([]byte{byte(info.Type)}, info.Size)
}

// DecodeObjectInfo decodes the payload of an ObjectInfoIs reply.
func DecodeObjectInfo(payload []byte) (ObjectInfo, error) {
	if len(payload) != 3 {
		return ObjectInfo{}, fmt.Errorf("%w: object info payload of %d bytes", ErrInvalidPayload, len(payload))
	}
	return ObjectInfo{Type: ObjectType(payload[0]), Size: binary.LittleEndian.Uint16(payload[1:])}, nil
}

// EncodeCounter encodes the payload of a CounterIs reply.
func EncodeCounter(value uint32) []byte { return binary.LittleEndian.AppendUint32(nil, value) }

// DecodeCounter decodes the payload of a CounterIs reply.
func DecodeCounter(payload []byte) (uint32, error) {
	if len(payload) != 4 {
		return 0, fmt.Errorf("%w: counter payload of %d bytes", ErrInvalidPayload, len(payload))
	}
	return binary.LittleEndian.Uint32(payload), nil
}

// EncodeKeys encodes the payload of an EnumerateObjectsIs reply.
func EncodeKeys(last bool, keys []uint32) []byte {
	b := make([]byte, 1, 1+len(keys)*KeySize)
	b[0] = boolByte(last)
	for _, k := range keys {
		b = binary.LittleEndian.AppendUint32(b, k)
	}
	return b
}

// DecodeKeys decodes the payload of an EnumerateObjectsIs reply and appends
// the keys to dst.
func DecodeKeys(dst []uint32, payload []byte) (last bool, keys []uint32, err error) {
	if len(payload) < 1 || (len(payload)-1)%KeySize != 0 {
		return false, dst, fmt.Errorf("%w: key list payload of %d bytes", ErrInvalidPayload, len(payload))
	}
	for b := payload[1:]; len(b) > 0; b = b[KeySize:] {
		dst = append(dst, binary.LittleEndian.Uint32(b))
	}
	return payload[0] != 0, dst, nil
}

// EncodeObjectCount encodes the payload of an ObjectCountIs reply.
func EncodeObjectCount(n uint16) []byte { return binary.LittleEndian.AppendUint16(nil, n) }

// DecodeObjectCount decodes the payload of an ObjectCountIs reply.
func DecodeObjectCount(payload []byte) (uint16, error) {
	if len(payload) != 2 {
		return 0, fmt.Errorf("%w: object count payload of %d bytes", ErrInvalidPayload, len(payload))
	}
	return binary.LittleEndian.Uint16(payload), nil
}
