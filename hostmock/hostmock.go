package hostmock

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	sdkproto "github.com/tarmac-project/protobuf-go/sdk"
	pb "google.golang.org/protobuf/proto"
)

var (
	// ErrUnexpectedNamespace is returned when the namespace is not as expected.
	ErrUnexpectedNamespace = errors.New("unexpected namespace")

	// ErrUnexpectedCapability is returned when the capability is not as expected.
	ErrUnexpectedCapability = errors.New("unexpected capability")

	// ErrUnexpectedFunction is returned when the function is not as expected.
	ErrUnexpectedFunction = errors.New("unexpected function")

	// ErrOperationFailed is returned when Fail is set without a custom error.
	ErrOperationFailed = errors.New("operation failed")
)

// Call records one host call received by a Mock.
type Call struct {
	Namespace  string
	Capability string
	Function   string
	Payload    []byte
}

// Mock simulates a waPC host with routing validation and scripted responses.
type Mock struct {
	// ExpectedNamespace, when set, must match the namespace of every call.
	ExpectedNamespace string

	// ExpectedCapability, when set, must match the capability of every call.
	ExpectedCapability string

	// ExpectedFunction, when set, must match the function of every call.
	ExpectedFunction string

	// Error is the error to return if the mock is configured to fail.
	Error error

	// PayloadValidator validates the payload passed to the host call.
	PayloadValidator func([]byte) error

	// Functions answers calls per function name. It takes precedence over Response.
	Functions map[string]func(payload []byte) ([]byte, error)

	// Response defines the response to return for the host call.
	Response func() []byte

	// Fail indicates whether the mock should return an error.
	Fail bool

	mu    sync.Mutex
	calls []Call
}

// Config represents the configuration for creating a Mock instance.
type Config struct {
	ExpectedNamespace  string
	ExpectedCapability string
	ExpectedFunction   string
	Error              error
	PayloadValidator   func([]byte) error
	Functions          map[string]func(payload []byte) ([]byte, error)
	Response           func() []byte
	Fail               bool
}

// New creates a new instance of the Mock based on the provided Config.
func New(config Config) (*Mock, error) {
	return &Mock{
		ExpectedNamespace:  config.ExpectedNamespace,
		ExpectedCapability: config.ExpectedCapability,
		ExpectedFunction:   config.ExpectedFunction,
		Error:              config.Error,
		Fail:               config.Fail,
		PayloadValidator:   config.PayloadValidator,
		Functions:          config.Functions,
		Response:           config.Response,
	}, nil
}

// Calls returns the host calls received so far.
func (m *Mock) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

// HostCall simulates a host call, validating inputs and returning a response or error.
func (m *Mock) HostCall(namespace, capability, function string, payload []byte) ([]byte, error) {
	m.mu.Lock()
	m.calls = append(m.calls, Call{
		Namespace:  namespace,
		Capability: capability,
		Function:   function,
		Payload:    slices.Clone(payload),
	})
	m.mu.Unlock()

	if m.Fail {
		if m.Error != nil {
			return nil, m.Error
		}
		return nil, ErrOperationFailed
	}

	if m.ExpectedNamespace != "" && m.ExpectedNamespace != namespace {
		return nil, fmt.Errorf("%w: expected namespace %s, got %s", ErrUnexpectedNamespace, m.ExpectedNamespace, namespace)
	}

	if m.ExpectedCapability != "" && m.ExpectedCapability != capability {
		return nil, fmt.Errorf("%w: expected capability %s, got %s", ErrUnexpectedCapability, m.ExpectedCapability, capability)
	}

	if m.ExpectedFunction != "" && m.ExpectedFunction != function {
		return nil, fmt.Errorf("%w: expected function %s, got %s", ErrUnexpectedFunction, m.ExpectedFunction, function)
	}

	if m.PayloadValidator != nil {
		if err := m.PayloadValidator(payload); err != nil {
			return nil, err
		}
	}

	if fn, ok := m.Functions[function]; ok {
		return fn(payload)
	}

	if m.Response != nil {
		return m.Response(), nil
	}

	return nil, nil
}

// StatusResponse returns a Response that answers with an encoded sdk.Status.
func StatusResponse(code int32, status string) func() []byte {
	return func() []byte {
		return EncodeStatus(code, status)
	}
}

// EncodeStatus marshals an sdk.Status message as a host would return it.
func EncodeStatus(code int32, status string) []byte {
	b, err := pb.Marshal(&sdkproto.Status{Code: code, Status: status})
	if err != nil {
		panic(fmt.Sprintf("hostmock: marshal status: %v", err))
	}
	return b
}
