package mock

import (
	"fmt"
	"slices"
	"sync"

	"github.com/cpc-project/nvm3"
	"github.com/cpc-project/nvm3/kv"
)

// Operation names used for per-call configuration and in recorded calls.
const (
	OpGet        = "GET"
	OpSet        = "SET"
	OpDelete     = "DELETE"
	OpKeys       = "KEYS"
	OpInfo       = "INFO"
	OpCounter    = "COUNTER"
	OpSetCounter = "SET_COUNTER"
	OpIncrement  = "INCREMENT"
)

// Config configures the mock client.
type Config struct {
	// Seed pre-populates data objects.
	Seed map[nvm3.ObjectKey][]byte

	// Counters pre-populates counters.
	Counters map[nvm3.ObjectKey]uint32
}

// Response describes a configured outcome.
type Response struct {
	Value   []byte
	Keys    []nvm3.ObjectKey
	Counter uint32
	Err     error

	// skipStore keeps a configured successful write from reaching the store.
	skipStore bool
}

type target struct {
	op  string
	key nvm3.ObjectKey
}

// ResponseBuilder configures the response of one operation.
type ResponseBuilder struct {
	m *Client
	t target
}

func (b *ResponseBuilder) update(fn func(*Response)) {
	b.m.mu.Lock()
	defer b.m.mu.Unlock()
	r := b.m.responses[b.t]
	fn(&r)
	b.m.responses[b.t] = r
}

// ReturnValue sets the bytes returned by GET.
func (b *ResponseBuilder) ReturnValue(v []byte) *ResponseBuilder {
	b.update(func(r *Response) { r.Value = slices.Clone(v) })
	return b
}

// ReturnKeys sets the keys returned by KEYS.
func (b *ResponseBuilder) ReturnKeys(keys []nvm3.ObjectKey) *ResponseBuilder {
	b.update(func(r *Response) { r.Keys = slices.Clone(keys) })
	return b
}

// ReturnCounter sets the value returned by COUNTER and INCREMENT.
func (b *ResponseBuilder) ReturnCounter(v uint32) *ResponseBuilder {
	b.update(func(r *Response) { r.Counter = v })
	return b
}

// ReturnError sets the error returned by the operation.
func (b *ResponseBuilder) ReturnError(err error) *Client {
	b.update(func(r *Response) { r.Err = err })
	return b.m
}

// StoreOnWrite controls whether a configured SET or SET_COUNTER without
// error updates the store. Defaults to true.
func (b *ResponseBuilder) StoreOnWrite(v bool) *ResponseBuilder {
	b.update(func(r *Response) { r.skipStore = !v })
	return b
}

// Call records an operation performed against the mock.
type Call struct {
	Op    string
	Key   nvm3.ObjectKey
	Value []byte
}

// Client implements kv.KV in memory. It is safe for concurrent use.
type Client struct {
	mu        sync.Mutex
	data      map[nvm3.ObjectKey][]byte
	counters  map[nvm3.ObjectKey]uint32
	responses map[target]Response
	calls     []Call
	closed    bool
}

// New creates a mock client.
func New(cfg Config) *Client {
	m := &Client{
		data:      make(map[nvm3.ObjectKey][]byte),
		counters:  make(map[nvm3.ObjectKey]uint32),
		responses: make(map[target]Response),
	}
	for k, v := range cfg.Seed {
		m.data[k] = slices.Clone(v)
	}
	for k, v := range cfg.Counters {
		m.counters[k] = v
	}
	return m
}

func (m *Client) on(op string, key nvm3.ObjectKey) *ResponseBuilder {
	return &ResponseBuilder{m: m, t: target{op: op, key: key}}
}

func (m *Client) OnGet(key nvm3.ObjectKey) *ResponseBuilder        { return m.on(OpGet, key) }
func (m *Client) OnSet(key nvm3.ObjectKey) *ResponseBuilder        { return m.on(OpSet, key) }
func (m *Client) OnDelete(key nvm3.ObjectKey) *ResponseBuilder     { return m.on(OpDelete, key) }
func (m *Client) OnKeys() *ResponseBuilder                         { return m.on(OpKeys, 0) }
func (m *Client) OnInfo(key nvm3.ObjectKey) *ResponseBuilder       { return m.on(OpInfo, key) }
func (m *Client) OnCounter(key nvm3.ObjectKey) *ResponseBuilder    { return m.on(OpCounter, key) }
func (m *Client) OnSetCounter(key nvm3.ObjectKey) *ResponseBuilder { return m.on(OpSetCounter, key) }
func (m *Client) OnIncrement(key nvm3.ObjectKey) *ResponseBuilder  { return m.on(OpIncrement, key) }

// Calls returns the operations performed so far.
func (m *Client) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

// Closed reports whether Close was called.
func (m *Client) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// begin records the call and returns the configured response, if any.
// m.mu must be held.
func (m *Client) begin(op string, key nvm3.ObjectKey, value []byte) (Response, bool, error) {
	m.calls = append(m.calls, Call{Op: op, Key: key, Value: slices.Clone(value)})
	if m.closed {
		return Response{}, false, &nvm3.Error{Code: nvm3.ErrNotInitialized, Op: op}
	}
	if op != OpKeys && key > kv.MaxKey {
		return Response{}, false, kv.ErrInvalidKey
	}
	r, ok := m.responses[target{op: op, key: key}]
	return r, ok, nil
}

func notFound(key nvm3.ObjectKey) error {
	return fmt.Errorf("%w: %d", kv.ErrKeyNotFound, key)
}

// Get implements kv.KV.
func (m *Client) Get(key nvm3.ObjectKey) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok, err := m.begin(OpGet, key, nil)
	if err != nil {
		return nil, err
	}
	if ok {
		return slices.Clone(r.Value), r.Err
	}
	if _, isCounter := m.counters[key]; isCounter {
		return nil, fmt.Errorf("%w: key %d is a COUNTER", kv.ErrWrongType, key)
	}
	v, found := m.data[key]
	if !found {
		return nil, notFound(key)
	}
	return slices.Clone(v), nil
}

// Set implements kv.KV.
func (m *Client) Set(key nvm3.ObjectKey, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok, err := m.begin(OpSet, key, value)
	if err != nil {
		return err
	}
	if len(value) == 0 {
		return kv.ErrInvalidValue
	}
	if ok && (r.Err != nil || r.skipStore) {
		return r.Err
	}
	delete(m.counters, key)
	m.data[key] = slices.Clone(value)
	return nil
}

// Delete implements kv.KV.
func (m *Client) Delete(key nvm3.ObjectKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok, err := m.begin(OpDelete, key, nil)
	if err != nil {
		return err
	}
	if ok {
		return r.Err
	}
	_, isData := m.data[key]
	_, isCounter := m.counters[key]
	if !isData && !isCounter {
		return notFound(key)
	}
	delete(m.data, key)
	delete(m.counters, key)
	return nil
}

// Keys implements kv.KV. Keys are returned in ascending order.
func (m *Client) Keys() ([]nvm3.ObjectKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok, err := m.begin(OpKeys, 0, nil)
	if err != nil {
		return nil, err
	}
	if ok {
		return slices.Clone(r.Keys), r.Err
	}
	keys := make([]nvm3.ObjectKey, 0, len(m.data)+len(m.counters))
	for k := range m.data {
		keys = append(keys, k)
	}
	for k := range m.counters {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys, nil
}

// Info implements kv.KV.
func (m *Client) Info(key nvm3.ObjectKey) (nvm3.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok, err := m.begin(OpInfo, key, nil)
	if err != nil {
		return nvm3.ObjectInfo{}, err
	}
	if ok && r.Err != nil {
		return nvm3.ObjectInfo{}, r.Err
	}
	if v, found := m.data[key]; found {
		return nvm3.ObjectInfo{Size: len(v), Type: nvm3.ObjectData}, nil
	}
	if _, found := m.counters[key]; found {
		return nvm3.ObjectInfo{Size: 4, Type: nvm3.ObjectCounter}, nil
	}
	return nvm3.ObjectInfo{}, notFound(key)
}

// Counter implements kv.KV.
func (m *Client) Counter(key nvm3.ObjectKey) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok, err := m.begin(OpCounter, key, nil)
	if err != nil {
		return 0, err
	}
	if ok {
		return r.Counter, r.Err
	}
	v, found := m.counters[key]
	if !found {
		return 0, notFound(key)
	}
	return v, nil
}

// SetCounter implements kv.KV.
func (m *Client) SetCounter(key nvm3.ObjectKey, value uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok, err := m.begin(OpSetCounter, key, nil)
	if err != nil {
		return err
	}
	if ok && (r.Err != nil || r.skipStore) {
		return r.Err
	}
	delete(m.data, key)
	m.counters[key] = value
	return nil
}

// Increment implements kv.KV. Values wrap at 2^32.
func (m *Client) Increment(key nvm3.ObjectKey) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok, err := m.begin(OpIncrement, key, nil)
	if err != nil {
		return 0, err
	}
	if ok {
		return r.Counter, r.Err
	}
	v, found := m.counters[key]
	if !found {
		return 0, notFound(key)
	}
	v++
	m.counters[key] = v
	return v, nil
}

// Close implements kv.KV.
func (m *Client) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

var _ kv.KV = (*Client)(nil)
