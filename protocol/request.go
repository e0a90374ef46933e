package protocol

import (
	"encoding/binary"
	"fmt"
)

// Property identifies a value queried with PropValueGet.
type Property uint8

const (
	PropMaxObjectSize Property = 1
	PropMaxWriteSize  Property = 2
)

func (p Property) String() string {
	switch p {
	case PropMaxObjectSize:
		return "max_object_size"
	case PropMaxWriteSize:
		return "max_write_size"
	default:
		return fmt.Sprintf("property(%d)", uint8(p))
	}
}

// fieldSizes lists the fixed argument bytes each host command carries after
// its header.
var fieldSizes = map[CommandID]int{
	CmdGetVersion:       0,
	CmdNoop:             0,
	CmdPropValueGet:     1,
	CmdWriteData:        KeySize + 2 + 1,
	CmdReadData:         KeySize + 2,
	CmdGetObjectInfo:    KeySize,
	CmdReadCounter:      KeySize,
	CmdWriteCounter:     KeySize + 4,
	CmdIncrementCounter: KeySize,
	CmdDeleteObject:     KeySize,
	CmdEnumerateObjects: 2,
	CmdGetObjectCount:   0,
}

// replies lists the reply commands a host command may be answered with.
var replies = map[CommandID][]CommandID{
	CmdGetVersion:       {CmdVersionIs},
	CmdNoop:             {CmdStatusIs},
	CmdPropValueGet:     {CmdPropValueIs, CmdStatusIs},
	CmdWriteData:        {CmdStatusIs},
	CmdReadData:         {CmdReadDataIs, CmdStatusIs},
	CmdGetObjectInfo:    {CmdObjectInfoIs, CmdStatusIs},
	CmdReadCounter:      {CmdCounterIs, CmdStatusIs},
	CmdWriteCounter:     {CmdStatusIs},
	CmdIncrementCounter: {CmdCounterIs, CmdStatusIs},
	CmdDeleteObject:     {CmdStatusIs},
	CmdEnumerateObjects: {CmdEnumerateObjectsIs, CmdStatusIs},
	CmdGetObjectCount:   {CmdObjectCountIs, CmdStatusIs},
}

// Request is a host command. Data is borrowed from the caller and is never
// copied by Prefix, so transports can send it as a separate part.
type Request struct {
	Command       CommandID
	UniqueID      uint32
	TransactionID uint8

	// Fields holds the fixed arguments of the command.
	Fields []byte

	// Data holds trailing variable-length data (WriteData only).
	Data []byte
}

// Len returns the payload length announced in the header.
func (r Request) Len() int { return len(r.Fields) + len(r.Data) }

// Replies returns the reply commands that may answer r.
func (r Request) Replies() []CommandID { return replies[r.Command] }

// Prefix encodes the header and fixed fields of r. The frame on the wire is
// Prefix followed by Data.
func (r Request) Prefix() ([]byte, error) {
	if r.Len() > MaxPayload {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, r.Len())
	}

	b := make([]byte, 0, HeaderSize+len(r.Fields))
	b = AppendHeader(b, Header{
		Command:       r.Command,
		Length:        uint16(r.Len()),
		UniqueID:      r.UniqueID,
		TransactionID: r.TransactionID,
	})
	return append(b, r.Fields...), nil
}

// Encode returns the whole frame in a single buffer.
func (r Request) Encode() ([]byte, error) {
	b, err := r.Prefix()
	if err != nil {
		return nil, err
	}
	return append(b, r.Data...), nil
}

// GetVersion queries the protocol version of the secondary.
func GetVersion() Request { return Request{Command: CmdGetVersion} }

// Noop is a liveness probe answered with a status.
func Noop() Request { return Request{Command: CmdNoop} }

// PropValueGet queries a secondary property.
func PropValueGet(p Property) Request {
	return Request{Command: CmdPropValueGet, Fields: []byte{byte(p)}}
}

// WriteData writes one fragment of a data object.
func WriteData(key uint32, offset uint16, last bool, data []byte) Request {
	f := make([]byte, 0, fieldSizes[CmdWriteData])
	f = binary.LittleEndian.AppendUint32(f, key)
	f = binary.LittleEndian.AppendUint16(f, offset)
	f = append(f, boolByte(last))
	return Request{Command: CmdWriteData, Fields: f, Data: data}
}

// ReadData reads a data object of at most maxSize bytes.
func ReadData(key uint32, maxSize uint16) Request {
	f := make([]byte, 0, fieldSizes[CmdReadData])
	f = binary.LittleEndian.AppendUint32(f, key)
	f = binary.LittleEndian.AppendUint16(f, maxSize)
	return Request{Command: CmdReadData, Fields: f}
}

// GetObjectInfo queries the type and size of an object.
func GetObjectInfo(key uint32) Request { return keyRequest(CmdGetObjectInfo, key) }

// ReadCounter reads a counter object.
func ReadCounter(key uint32) Request { return keyRequest(CmdReadCounter, key) }

// IncrementCounter increments a counter object on the secondary.
func IncrementCounter(key uint32) Request { return keyRequest(CmdIncrementCounter, key) }

// DeleteObject deletes an object.
func DeleteObject(key uint32) Request { return keyRequest(CmdDeleteObject, key) }

// WriteCounter sets a counter object.
func WriteCounter(key, value uint32) Request {
	f := make([]byte, 0, fieldSizes[CmdWriteCounter])
	f = binary.LittleEndian.AppendUint32(f, key)
	f = binary.LittleEndian.AppendUint32(f, value)
	return Request{Command: CmdWriteCounter, Fields: f}
}

// EnumerateObjects lists at most maxKeys object keys.
func EnumerateObjects(maxKeys uint16) Request {
	return Request{Command: CmdEnumerateObjects, Fields: binary.LittleEndian.AppendUint16(nil, maxKeys)}
}

// GetObjectCount queries the number of stored objects.
func GetObjectCount() Request { return Request{Command: CmdGetObjectCount} }

func keyRequest(cmd CommandID, key uint32) Request {
	return Request{Command: cmd, Fields: binary.LittleEndian.AppendUint32(nil, key)}
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}

// Args holds the decoded arguments of a host command. Only the fields that
// the command carries are set.
type Args struct {
	Key      uint32
	Offset   uint16
	Last     bool
	Max      uint16
	Value    uint32
	Property Property
}

// Args decodes the fixed fields of r.
func (r Request) Args() Args {
	f := r.Fields
	var a Args
	switch r.Command {
	case CmdPropValueGet:
		a.Property = Property(f[0])
	case CmdWriteData:
		a.Key = binary.LittleEndian.Uint32(f)
		a.Offset = binary.LittleEndian.Uint16(f[4:])
		a.Last = f[6] != 0
	case CmdReadData:
		a.Key = binary.LittleEndian.Uint32(f)
		a.Max = binary.LittleEndian.Uint16(f[4:])
	case CmdWriteCounter:
		a.Key = binary.LittleEndian.Uint32(f)
		a.Value = binary.LittleEndian.Uint32(f[4:])
	case CmdGetObjectInfo, CmdReadCounter, CmdIncrementCounter, CmdDeleteObject:
		a.Key = binary.LittleEndian.Uint32(f)
	case CmdEnumerateObjects:
		a.Max = binary.LittleEndian.Uint16(f)
	}
	return a
}

// ParseRequest decodes a host command frame. It is the secondary side of the
// codec.
func ParseRequest(raw []byte) (Request, error) {
	h, err := DecodeHeader(raw)
	if err != nil {
		return Request{}, err
	}

	size, ok := fieldSizes[h.Command]
	if !ok {
		return Request{}, fmt.Errorf("%w: %s is not a host command", ErrInvalidCommandID, h.Command)
	}

	payload := raw[HeaderSize:]
	if int(h.Length) != len(payload) {
		return Request{}, fmt.Errorf("%w: header says %d, frame carries %d", ErrInvalidLength, h.Length, len(payload))
	}

	if len(payload) < size {
		return Request{}, fmt.Errorf("%w: %s needs %d argument bytes, got %d", ErrTruncated, h.Command, size, len(payload))
	}

	if h.Command != CmdWriteData && len(payload) != size {
		return Request{}, fmt.Errorf("%w: %s carries %d argument bytes, got %d", ErrInvalidLength, h.Command, size, len(payload))
	}

	r := Request{
		Command:       h.Command,
		UniqueID:      h.UniqueID,
		TransactionID: h.TransactionID,
		Fields:        payload[:size],
	}
	if len(payload) > size {
		r.Data = payload[size:]
	}
	return r, nil
}
