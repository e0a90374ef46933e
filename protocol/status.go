package protocol

import (
	"encoding/binary"
	"fmt"
)

// ResponseType tells how the value of a StatusIs reply is encoded.
type ResponseType uint8

const (
	// ResponseSlStatus carries a generic SlStatus.
	ResponseSlStatus ResponseType = 0

	// ResponseECode carries an NVM3 ECode.
	ResponseECode ResponseType = 1
)

// SlStatus is the generic status reported by the secondary.
type SlStatus uint32

const (
	StatusOK   SlStatus = 0x0000
	StatusFail SlStatus = 0x0001
	StatusBusy SlStatus = 0x0004
)

func (s SlStatus) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusFail:
		return "fail"
	case StatusBusy:
		return "busy"
	default:
		return fmt.Sprintf("sl_status(0x%04X)", uint32(s))
	}
}

// ECode is an error code raised by the NVM3 storage engine.
type ECode uint32

const (
	ECodeOK                        ECode = 0
	ECodeAlignmentInvalid          ECode = 0xF000E001
	ECodeSizeTooSmall              ECode = 0xF000E002
	ECodeNoValidPages              ECode = 0xF000E003
	ECodePageSizeNotSupported      ECode = 0xF000E004
	ECodeObjectSizeNotSupported    ECode = 0xF000E005
	ECodeStorageFull               ECode = 0xF000E006
	ECodeNotOpened                 ECode = 0xF000E007
	ECodeOpenedWithOtherParameters ECode = 0xF000E008
	ECodeParameter                 ECode = 0xF000E009
	ECodeKeyInvalid                ECode = 0xF000E00A
	ECodeKeyNotFound               ECode = 0xF000E00B
	ECodeObjectIsNotData           ECode = 0xF000E00C
	ECodeObjectIsNotACounter       ECode = 0xF000E00D
	ECodeEraseFailed               ECode = 0xF000E00E
	ECodeWriteDataSize             ECode = 0xF000E00F
	ECodeWriteFailed               ECode = 0xF000E010
	ECodeReadDataSize              ECode = 0xF000E011
	ECodeReadFailed                ECode = 0xF000E012
	ECodeInitWithFullNvm           ECode = 0xF000E013
	ECodeResizeParameter           ECode = 0xF000E014
	ECodeResizeNotEnoughSpace      ECode = 0xF000E015
	ECodeEraseCountError           ECode = 0xF000E016
	ECodeAddressRange              ECode = 0xF000E017
	ECodeNvmAccess                 ECode = 0xF000E019
)

var ecodeText = map[ECode]string{
	ECodeOK:                        "success",
	ECodeAlignmentInvalid:          "invalid data alignment",
	ECodeSizeTooSmall:              "not enough memory specified",
	ECodeNoValidPages:              "no valid pages found",
	ECodePageSizeNotSupported:      "page size not supported",
	ECodeObjectSizeNotSupported:    "object size not supported",
	ECodeStorageFull:               "storage full",
	ECodeNotOpened:                 "nvm3 not opened",
	ECodeOpenedWithOtherParameters: "nvm3 opened with other parameters",
	ECodeParameter:                 "illegal parameter",
	ECodeKeyInvalid:                "invalid key",
	ECodeKeyNotFound:               "key not found",
	ECodeObjectIsNotData:           "object is not a data object",
	ECodeObjectIsNotACounter:       "object is not a counter",
	ECodeEraseFailed:               "erase failed",
	ECodeWriteDataSize:             "data object too large",
	ECodeWriteFailed:               "write failed",
	ECodeReadDataSize:              "read with wrong data length",
	ECodeReadFailed:                "read failed",
	ECodeInitWithFullNvm:           "initialized with full storage",
	ECodeResizeParameter:           "illegal resize parameter",
	ECodeResizeNotEnoughSpace:      "not enough space to resize",
	ECodeEraseCountError:           "invalid erase counts",
	ECodeAddressRange:              "address and size out of range",
	ECodeNvmAccess:                 "memory access failed",
}

// Known reports whether e is part of the documented ECode set.
func (e ECode) Known() bool {
	_, ok := ecodeText[e]
	return ok
}

func (e ECode) String() string {
	if text, ok := ecodeText[e]; ok {
		return text
	}
	return fmt.Sprintf("ecode(0x%08X)", uint32(e))
}

// Status is the decoded payload of a StatusIs reply.
type Status struct {
	Type  ResponseType
	Value uint32
}

// SlStatusOf builds a Status carrying s.
func SlStatusOf(s SlStatus) Status { return Status{Type: ResponseSlStatus, Value: uint32(s)} }

// ECodeOf builds a Status carrying e.
func ECodeOf(e ECode) Status { return Status{Type: ResponseECode, Value: uint32(e)} }

// SlStatus returns the value as an SlStatus and whether the type matches.
func (s Status) SlStatus() (SlStatus, bool) {
	return SlStatus(s.Value), s.Type == ResponseSlStatus
}

// ECode returns the value as an ECode and whether the type matches.
func (s Status) ECode() (ECode, bool) {
	return ECode(s.Value), s.Type == ResponseECode
}

// OK reports whether the status is a successful SlStatus.
func (s Status) OK() bool {
	return s.Type == ResponseSlStatus && SlStatus(s.Value) == StatusOK
}

func (s Status) String() string {
	switch s.Type {
	case ResponseSlStatus:
		return "sl_status: " + SlStatus(s.Value).String()
	case ResponseECode:
		return "ecode: " + ECode(s.Value).String()
	default:
		return fmt.Sprintf("unknown response type %d (0x%08X)", uint8(s.Type), s.Value)
	}
}

// EncodeStatus encodes the payload of a StatusIs reply.
func EncodeStatus(s Status) []byte {
	b := make([]byte, 0, 5)
	b = append(b, byte(s.Type))
	return binary.LittleEndian.AppendUint32(b, s.Value)
}

// DecodeStatus decodes the payload of a StatusIs reply.
func DecodeStatus(payload []byte) (Status, error) {
	if len(payload) != 5 {
		return Status{}, fmt.Errorf("%w: status payload of %d bytes", ErrInvalidPayload, len(payload))
	}
	return Status{
		Type:  ResponseType(payload[0]),
		Value: binary.LittleEndian.Uint32(payload[1:]),
	}, nil
}
