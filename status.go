package nvm3

import "github.com/cpc-project/nvm3/protocol"

// statusPolicy maps a StatusIs reply onto the client taxonomy for one kind
// of operation.
type statusPolicy struct {
	// success accepts an ok sl_status as the operation result.
	success bool

	// busy is returned for a busy sl_status.
	busy ErrorCode

	// ecodes maps specific storage errors; other is used for the rest.
	ecodes map[protocol.ECode]ErrorCode
	other  ErrorCode
}

var (
	writePolicy = statusPolicy{
		success: true,
		busy:    ErrTryAgain,
		ecodes:  map[protocol.ECode]ErrorCode{protocol.ECodeKeyInvalid: ErrInvalidObjectKey},
		other:   ErrUnknownError,
	}
	readPolicy = statusPolicy{
		busy: ErrTryAgain,
		ecodes: map[protocol.ECode]ErrorCode{
			protocol.ECodeKeyNotFound:  ErrInvalidObjectKey,
			protocol.ECodeReadDataSize: ErrBufferTooSmall,
			protocol.ECodeSizeTooSmall: ErrBufferTooSmall,
		},
		other: ErrFailure,
	}
	listPolicy = statusPolicy{
		busy:  ErrTryAgain,
		other: ErrFailure,
	}
	queryPolicy = statusPolicy{
		busy:   ErrFailure,
		ecodes: map[protocol.ECode]ErrorCode{protocol.ECodeKeyNotFound: ErrInvalidObjectKey},
		other:  ErrFailure,
	}
	writeCounterPolicy = statusPolicy{
		success: true,
		busy:    ErrFailure,
		ecodes:  map[protocol.ECode]ErrorCode{protocol.ECodeKeyInvalid: ErrInvalidObjectKey},
		other:   ErrUnknownError,
	}
	deletePolicy = statusPolicy{
		success: true,
		busy:    ErrFailure,
		ecodes: map[protocol.ECode]ErrorCode{
			protocol.ECodeKeyInvalid:  ErrInvalidObjectKey,
			protocol.ECodeKeyNotFound: ErrInvalidObjectKey,
		},
		other: ErrUnknownError,
	}
	pingPolicy = statusPolicy{
		success: true,
		busy:    ErrTryAgain,
		other:   ErrFailure,
	}
)

// check returns nil when the status completes the operation successfully.
func (p statusPolicy) check(payload []byte) error {
	st, err := protocol.DecodeStatus(payload)
	if err != nil {
		return fail(ErrFailure, err)
	}

	if sl, ok := st.SlStatus(); ok {
		switch sl {
		case protocol.StatusOK:
			if p.success {
				return nil
			}
			return failf(ErrFailure, "unexpected %s", st)
		case protocol.StatusBusy:
			return failf(p.busy, "remote busy: %s", st)
		default:
			return failf(ErrFailure, "%s", st)
		}
	}

	if ec, ok := st.ECode(); ok {
		if code, ok := p.ecodes[ec]; ok {
			return failf(code, "%s", st)
		}
		return failf(p.other, "%s", st)
	}

	return failf(ErrUnknownError, "%s", st)
}
