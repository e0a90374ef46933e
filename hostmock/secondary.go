package hostmock

import (
	"slices"
	"sync"

	"github.com/cpc-project/nvm3/protocol"
)

const (
	// DefaultMaxObjectSize is the object size limit reported by a Secondary.
	DefaultMaxObjectSize = 4096

	// MaxKey is the largest object key the simulated storage accepts.
	MaxKey = 0xFFFFF

	defaultReadFragment      = 256
	defaultEnumerateFragment = 16
)

// SecondaryConfig configures a simulated NVM3 secondary.
type SecondaryConfig struct {
	// Version is reported to GetVersion. Defaults to 1.0.0.
	Version protocol.Version

	// MaxWriteSize is reported for PropMaxWriteSize. Defaults to DefaultMaxObjectSize.
	MaxWriteSize uint16

	// MaxObjectSize is reported for PropMaxObjectSize. Defaults to DefaultMaxObjectSize.
	MaxObjectSize uint16

	// ReadFragment bounds the data bytes per ReadDataIs reply.
	ReadFragment int

	// EnumerateFragment bounds the keys per EnumerateObjectsIs reply.
	EnumerateFragment int
}

type object struct {
	counter bool
	data    []byte
	value   uint32
}

// Secondary simulates the NVM3 service of a CPC secondary. It decodes host
// frames and produces the reply frames the real device would send. It is
// safe for concurrent use by several channels.
type Secondary struct {
	mu      sync.Mutex
	cfg     SecondaryConfig
	objects map[uint32]*object
	pending map[uint32][]byte
	scripts map[protocol.CommandID][]protocol.Status
	stale   bool
	frames  []protocol.Request
}

// NewSecondary creates an empty simulated secondary.
func NewSecondary(cfg SecondaryConfig) *Secondary {
	if cfg.Version == (protocol.Version{}) {
		cfg.Version = protocol.Version{Major: 1}
	}
	if cfg.MaxWriteSize == 0 {
		cfg.MaxWriteSize = DefaultMaxObjectSize
	}
	if cfg.MaxObjectSize == 0 {
		cfg.MaxObjectSize = DefaultMaxObjectSize
	}
	if cfg.ReadFragment <= 0 {
		cfg.ReadFragment = defaultReadFragment
	}
	if cfg.EnumerateFragment <= 0 {
		cfg.EnumerateFragment = defaultEnumerateFragment
	}
	return &Secondary{
		cfg:     cfg,
		objects: make(map[uint32]*object),
		pending: make(map[uint32][]byte),
		scripts: make(map[protocol.CommandID][]protocol.Status),
	}
}

// Put stores a data object.
func (s *Secondary) Put(key uint32, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = &object{data: append([]byte(nil), data...)}
}

// SetCounter stores a counter object.
func (s *Secondary) SetCounter(key, value uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = &object{counter: true, value: value}
}

// Data returns a copy of a stored data object.
func (s *Secondary) Data(key uint32) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[key]
	if !ok || o.counter {
		return nil, false
	}
	return append([]byte(nil), o.data...), true
}

// Counter returns the value of a stored counter.
func (s *Secondary) Counter(key uint32) (uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[key]
	if !ok || !o.counter {
		return 0, false
	}
	return o.value, true
}

// Len returns the number of stored objects.
func (s *Secondary) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// FailNext makes the next command of type cmd answer with status instead of
// being executed. Calls queue up.
func (s *Secondary) FailNext(cmd protocol.CommandID, status protocol.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[cmd] = append(s.scripts[cmd], status)
}

// SetStaleReplies makes every reply be preceded by frames that belong to
// other exchanges: one for the previous transaction and one for another client.
func (s *Secondary) SetStaleReplies(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stale = on
}

// Requests returns the host commands handled so far.
func (s *Secondary) Requests() []protocol.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.frames)
}

// Handle executes one host frame and returns the reply frames.
func (s *Secondary) Handle(frame []byte) [][]byte {
	req, err := protocol.ParseRequest(frame)
	if err != nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	req.Fields = slices.Clone(req.Fields)
	req.Data = slices.Clone(req.Data)
	s.frames = append(s.frames, req)

	reply := func(cmd protocol.CommandID, payload []byte) []byte {
		return protocol.Frame(cmd, req.UniqueID, req.TransactionID, payload)
	}
	status := func(st protocol.Status) []byte {
		return reply(protocol.CmdStatusIs, protocol.EncodeStatus(st))
	}

	var out [][]byte
	if s.stale {
		out = append(out,
			protocol.Frame(protocol.CmdStatusIs, req.UniqueID, req.TransactionID-1, protocol.EncodeStatus(protocol.SlStatusOf(protocol.StatusOK))),
			protocol.Frame(protocol.CmdStatusIs, req.UniqueID+1, req.TransactionID, protocol.EncodeStatus(protocol.SlStatusOf(protocol.StatusFail))),
		)
	}

	if q := s.scripts[req.Command]; len(q) > 0 {
		s.scripts[req.Command] = q[1:]
		return append(out, status(q[0]))
	}

	args := req.Args()
	switch req.Command {
	case protocol.CmdGetVersion:
		out = append(out, reply(protocol.CmdVersionIs, protocol.EncodeVersion(s.cfg.Version)))

	case protocol.CmdNoop:
		out = append(out, status(protocol.SlStatusOf(protocol.StatusOK)))

	case protocol.CmdPropValueGet:
		switch args.Property {
		case protocol.PropMaxWriteSize:
			out = append(out, reply(protocol.CmdPropValueIs, protocol.EncodeProperty(args.Property, s.cfg.MaxWriteSize)))
		case protocol.PropMaxObjectSize:
			out = append(out, reply(protocol.CmdPropValueIs, protocol.EncodeProperty(args.Property, s.cfg.MaxObjectSize)))
		default:
			out = append(out, status(protocol.ECodeOf(protocol.ECodeParameter)))
		}

	case protocol.CmdWriteData:
		out = append(out, status(s.writeData(args, req.Data)))

	case protocol.CmdReadData:
		o, ok := s.objects[args.Key]
		switch {
		case !ok:
			out = append(out, status(protocol.ECodeOf(protocol.ECodeKeyNotFound)))
		case o.counter:
			out = append(out, status(protocol.ECodeOf(protocol.ECodeObjectIsNotData)))
		case len(o.data) == 0:
			out = append(out, status(protocol.ECodeOf(protocol.ECodeReadFailed)))
		case len(o.data) > int(args.Max):
			out = append(out, status(protocol.ECodeOf(protocol.ECodeReadDataSize)))
		default:
			for i := 0; i < len(o.data); i += s.cfg.ReadFragment {
				end := min(i+s.cfg.ReadFragment, len(o.data))
				out = append(out, reply(protocol.CmdReadDataIs, protocol.EncodeReadData(end == len(o.data), o.data[i:end])))
			}
		}

	case protocol.CmdGetObjectInfo:
		o, ok := s.objects[args.Key]
		switch {
		case !ok:
			out = append(out, status(protocol.ECodeOf(protocol.ECodeKeyNotFound)))
		case o.counter:
			out = append(out, reply(protocol.CmdObjectInfoIs, protocol.EncodeObjectInfo(protocol.ObjectInfo{Type: protocol.ObjectCounter, Size: 4})))
		default:
			out = append(out, reply(protocol.CmdObjectInfoIs, protocol.EncodeObjectInfo(protocol.ObjectInfo{Type: protocol.ObjectData, Size: uint16(len(o.data))})))
		}

	case protocol.CmdReadCounter, protocol.CmdIncrementCounter:
		o, ok := s.objects[args.Key]
		switch {
		case !ok:
			out = append(out, status(protocol.ECodeOf(protocol.ECodeKeyNotFound)))
		case !o.counter:
			out = append(out, status(protocol.ECodeOf(protocol.ECodeObjectIsNotACounter)))
		default:
			if req.Command == protocol.CmdIncrementCounter {
				o.value++
			}
			out = append(out, reply(protocol.CmdCounterIs, protocol.EncodeCounter(o.value)))
		}

	case protocol.CmdWriteCounter:
		if args.Key > MaxKey {
			out = append(out, status(protocol.ECodeOf(protocol.ECodeKeyInvalid)))
			break
		}
		s.objects[args.Key] = &object{counter: true, value: args.Value}
		out = append(out, status(protocol.SlStatusOf(protocol.StatusOK)))

	case protocol.CmdDeleteObject:
		if _, ok := s.objects[args.Key]; !ok {
			out = append(out, status(protocol.ECodeOf(protocol.ECodeKeyNotFound)))
			break
		}
		delete(s.objects, args.Key)
		out = append(out, status(protocol.SlStatusOf(protocol.StatusOK)))

	case protocol.CmdEnumerateObjects:
		keys := s.sortedKeys()
		if len(keys) > int(args.Max) {
			keys = keys[:args.Max]
		}
		if len(keys) == 0 {
			out = append(out, reply(protocol.CmdEnumerateObjectsIs, protocol.EncodeKeys(true, nil)))
			break
		}
		for i := 0; i < len(keys); i += s.cfg.EnumerateFragment {
			end := min(i+s.cfg.EnumerateFragment, len(keys))
			out = append(out, reply(protocol.CmdEnumerateObjectsIs, protocol.EncodeKeys(end == len(keys), keys[i:end])))
		}

	case protocol.CmdGetObjectCount:
		out = append(out, reply(protocol.CmdObjectCountIs, protocol.EncodeObjectCount(uint16(len(s.objects)))))
	}

	return out
}

// Increment bumps a counter outside of any session, as another process sharing
// the secondary would.
func (s *Secondary) Increment(key uint32) (uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[key]
	if !ok || !o.counter {
		return 0, false
	}
	o.value++
	return o.value, true
}

func (s *Secondary) writeData(args protocol.Args, data []byte) protocol.Status {
	if args.Key > MaxKey {
		return protocol.ECodeOf(protocol.ECodeKeyInvalid)
	}

	buf := s.pending[args.Key]
	if args.Offset == 0 {
		buf = nil
	}
	if int(args.Offset) != len(buf) {
		delete(s.pending, args.Key)
		return protocol.ECodeOf(protocol.ECodeParameter)
	}

	buf = append(buf, data...)
	if len(buf) > int(s.cfg.MaxWriteSize) {
		delete(s.pending, args.Key)
		return protocol.ECodeOf(protocol.ECodeWriteDataSize)
	}

	if !args.Last {
		s.pending[args.Key] = buf
		return protocol.SlStatusOf(protocol.StatusOK)
	}

	delete(s.pending, args.Key)
	if len(buf) == 0 {
		return protocol.ECodeOf(protocol.ECodeParameter)
	}
	s.objects[args.Key] = &object{data: buf}
	return protocol.SlStatusOf(protocol.StatusOK)
}

func (s *Secondary) sortedKeys() []uint32 {
	keys := make([]uint32, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
