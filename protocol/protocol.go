package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
)

// HeaderSize is the size in bytes of every frame header.
const HeaderSize = 8

// KeySize is the encoded size of an object key.
const KeySize = 4

// WriteOverhead is the number of bytes a WriteData frame adds around its data.
const WriteOverhead = HeaderSize + KeySize + 2 + 1

// MaxPayload is the largest payload a header length field can describe.
const MaxPayload = 0xFFFF

var (
	// ErrTruncated indicates a frame or payload shorter than its fixed layout.
	ErrTruncated = errors.New("frame is truncated")

	// ErrInvalidCommandID indicates a reply whose command is not expected by the request.
	ErrInvalidCommandID = errors.New("invalid command id")

	// ErrInvalidLength indicates a header length that does not match the frame size.
	ErrInvalidLength = errors.New("invalid frame length")

	// ErrInvalidUniqueID indicates a reply addressed to another client.
	ErrInvalidUniqueID = errors.New("invalid unique id")

	// ErrInvalidTransactionID indicates a reply to another transaction.
	ErrInvalidTransactionID = errors.New("invalid transaction id")

	// ErrInvalidPayload indicates a payload that does not decode for its command.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrPayloadTooLarge indicates a request that does not fit a single frame.
	ErrPayloadTooLarge = errors.New("payload too large")
)

// CommandID identifies the frame type carried in a header.
type CommandID uint8

// Host commands.
const (
	CmdGetVersion       CommandID = 0x00
	CmdNoop             CommandID = 0x03
	CmdPropValueGet     CommandID = 0x04
	CmdWriteData        CommandID = 0x06
	CmdReadData         CommandID = 0x08
	CmdGetObjectInfo    CommandID = 0x0A
	CmdReadCounter      CommandID = 0x0C
	CmdWriteCounter     CommandID = 0x0E
	CmdIncrementCounter CommandID = 0x0F
	CmdDeleteObject     CommandID = 0x10
	CmdEnumerateObjects CommandID = 0x11
	CmdGetObjectCount   CommandID = 0x13
)

// Secondary replies.
const (
	CmdVersionIs          CommandID = 0x01
	CmdStatusIs           CommandID = 0x02
	CmdPropValueIs        CommandID = 0x05
	CmdReadDataIs         CommandID = 0x09
	CmdObjectInfoIs       CommandID = 0x0B
	CmdCounterIs          CommandID = 0x0D
	CmdEnumerateObjectsIs CommandID = 0x12
	CmdObjectCountIs      CommandID = 0x14
)

var commandNames = map[CommandID]string{
	CmdGetVersion:         "GetVersion",
	CmdVersionIs:          "VersionIs",
	CmdStatusIs:           "StatusIs",
	CmdNoop:               "Noop",
	CmdPropValueGet:       "PropValueGet",
	CmdPropValueIs:        "PropValueIs",
	CmdWriteData:          "WriteData",
	CmdReadData:           "ReadData",
	CmdReadDataIs:         "ReadDataIs",
	CmdGetObjectInfo:      "GetObjectInfo",
	CmdObjectInfoIs:       "ObjectInfoIs",
	CmdReadCounter:        "ReadCounter",
	CmdCounterIs:          "CounterIs",
	CmdWriteCounter:       "WriteCounter",
	CmdIncrementCounter:   "IncrementCounter",
	CmdDeleteObject:       "DeleteObject",
	CmdEnumerateObjects:   "EnumerateObjects",
	CmdEnumerateObjectsIs: "EnumerateObjectsIs",
	CmdGetObjectCount:     "GetObjectCount",
	CmdObjectCountIs:      "ObjectCountIs",
}

func (c CommandID) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Command(0x%02X)", uint8(c))
}

// Header is the fixed prefix of every frame.
type Header struct {
	Command       CommandID
	Length        uint16
	UniqueID      uint32
	TransactionID uint8
}

// AppendHeader appends the encoded header to dst.
func AppendHeader(dst []byte, h Header) []byte {
	dst = append(dst, byte(h.Command))
	dst = binary.LittleEndian.AppendUint16(dst, h.Length)
	dst = binary.LittleEndian.AppendUint32(dst, h.UniqueID)
	return append(dst, h.TransactionID)
}

// DecodeHeader decodes the header at the start of b.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d byte header", ErrTruncated, len(b))
	}
	return Header{
		Command:       CommandID(b[0]),
		Length:        binary.LittleEndian.Uint16(b[1:3]),
		UniqueID:      binary.LittleEndian.Uint32(b[3:7]),
		TransactionID: b[7],
	}, nil
}

// Frame encodes a complete frame with the given payload.
func Frame(cmd CommandID, uniqueID uint32, transactionID uint8, payload []byte) []byte {
	b := make([]byte, 0, HeaderSize+len(payload))
	b = AppendHeader(b, Header{
		Command:       cmd,
		Length:        uint16(len(payload)),
		UniqueID:      uniqueID,
		TransactionID: transactionID,
	})
	return append(b, payload...)
}

// Reply is a validated secondary frame.
type Reply struct {
	Header  Header
	Payload []byte
}

// ParseReply decodes raw and validates it against the identity of the request
// it answers. Checks run in order: command, length, unique id, transaction id.
func ParseReply(raw []byte, uniqueID uint32, transactionID uint8, accept ...CommandID) (Reply, error) {
	h, err := DecodeHeader(raw)
	if err != nil {
		return Reply{}, err
	}

	if !slices.Contains(accept, h.Command) {
		return Reply{}, fmt.Errorf("%w: got %s, want %v", ErrInvalidCommandID, h.Command, accept)
	}

	if int(h.Length) != len(raw)-HeaderSize {
		return Reply{}, fmt.Errorf("%w: header says %d, frame carries %d", ErrInvalidLength, h.Length, len(raw)-HeaderSize)
	}

	if h.UniqueID != uniqueID {
		return Reply{}, fmt.Errorf("%w: got %d, want %d", ErrInvalidUniqueID, h.UniqueID, uniqueID)
	}

	if h.TransactionID != transactionID {
		return Reply{}, fmt.Errorf("%w: got %d, want %d", ErrInvalidTransactionID, h.TransactionID, transactionID)
	}

	return Reply{Header: h, Payload: raw[HeaderSize:]}, nil
}

// IsStale reports whether err marks a reply that belongs to another exchange
// and should be discarded rather than failing the call.
func IsStale(err error) bool {
	return errors.Is(err, ErrInvalidCommandID) ||
		errors.Is(err, ErrInvalidUniqueID) ||
		errors.Is(err, ErrInvalidTransactionID)
}
