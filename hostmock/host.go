package hostmock

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/cpc-project/nvm3/cpc"
)

// HostCapability is the waPC capability served by Daemon.HostCall.
const HostCapability = "cpc"

// HostCall plays the waPC host side of a cpc.HostCallDialer: it owns a
// channel on the daemon and drives it on behalf of the guest.
func (d *Daemon) HostCall(_ string, capability, function string, payload []byte) ([]byte, error) {
	if capability != HostCapability {
		return nil, fmt.Errorf("%w: expected capability %s, got %s", ErrUnexpectedCapability, HostCapability, capability)
	}

	switch function {
	case "open":
		if len(payload) < 1 {
			return EncodeStatus(400, "missing open flags"), nil
		}
		ch, err := d.Dial(context.Background(), string(payload[1:]), payload[0] == 1)
		switch {
		case errors.Is(err, cpc.ErrNotReady):
			return EncodeStatus(503, err.Error()), nil
		case errors.Is(err, cpc.ErrDaemonUnavailable):
			return EncodeStatus(404, err.Error()), nil
		case err != nil:
			return EncodeStatus(500, err.Error()), nil
		}
		d.mu.Lock()
		d.host = ch
		d.mu.Unlock()
		return EncodeStatus(200, "OK"), nil

	case "write":
		ch, err := d.hostChannel()
		if err != nil {
			return nil, err
		}
		return nil, ch.Send(context.Background(), payload)

	case "read":
		ch, err := d.hostChannel()
		if err != nil {
			return nil, err
		}
		wait := time.Millisecond
		if len(payload) == 4 {
			wait = time.Duration(binary.LittleEndian.Uint32(payload)) * time.Millisecond
		}
		ctx, cancel := context.WithTimeout(context.Background(), wait)
		defer cancel()

		b, err := ch.Recv(ctx)
		if errors.Is(err, cpc.ErrWouldBlock) {
			return nil, nil
		}
		return b, err

	case "close":
		d.mu.Lock()
		ch := d.host
		d.host = nil
		d.mu.Unlock()
		if ch != nil {
			_ = ch.Close()
		}
		return EncodeStatus(200, "OK"), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedFunction, function)
	}
}

func (d *Daemon) hostChannel() (cpc.Channel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.host == nil {
		return nil, cpc.ErrClosed
	}
	return d.host, nil
}
