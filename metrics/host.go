package metrics

import (
	"errors"
	"regexp"
	"time"

	proto "github.com/tarmac-project/protobuf-go/sdk/metrics"
	wapc "github.com/wapc/wapc-guest-tinygo"
)

const (
	capabilityName = "metrics"
	fnCounter      = "counter"
	fnGauge        = "gauge"
	fnHistogram    = "histogram"
	actionInc      = "inc"
	actionDec      = "dec"

	// DefaultNamespace is the waPC namespace used when none is configured.
	DefaultNamespace = "nvm3"
)

var (
	// ErrInvalidMetricName indicates a metric name that does not match the supported format.
	ErrInvalidMetricName = errors.New("metric name is invalid")

	isMetricNameValid = regexp.MustCompile(`^[a-zA-Z_:][a-zA-Z0-9_:]*$`)
)

// HostCall defines the waPC host function signature used by metrics operations.
type HostCall func(string, string, string, []byte) ([]byte, error)

// HostConfig controls how a HostRecorder interacts with the host runtime.
type HostConfig struct {
	// Namespace scopes host calls. Defaults to DefaultNamespace.
	Namespace string

	// Prefix starts every metric name. Defaults to "nvm3".
	Prefix string

	// HostCall overrides the waPC host function used for metrics operations.
	HostCall HostCall
}

// HostRecorder is a Recorder that forwards measurements to the metrics
// capability of a waPC host. Host failures are ignored.
type HostRecorder struct {
	namespace string
	prefix    string
	hostCall  HostCall
}

var _ Recorder = (*HostRecorder)(nil)

// NewHost creates a HostRecorder.
func NewHost(cfg HostConfig) (*HostRecorder, error) {
	r := &HostRecorder{namespace: cfg.Namespace, prefix: cfg.Prefix, hostCall: cfg.HostCall}
	if r.namespace == "" {
		r.namespace = DefaultNamespace
	}
	if r.prefix == "" {
		r.prefix = "nvm3"
	}
	if !isMetricNameValid.MatchString(r.prefix) {
		return nil, ErrInvalidMetricName
	}
	if r.hostCall == nil {
		r.hostCall = wapc.HostCall
	}
	return r, nil
}

// ObserveOperation increments <prefix>_<op>_total, and <prefix>_<op>_errors_total
// when code is not "ok", then observes <prefix>_<op>_duration_ms.
func (r *HostRecorder) ObserveOperation(op, code string, d time.Duration) {
	r.counter(r.prefix + "_" + op + "_total")
	if code != "ok" {
		r.counter(r.prefix + "_" + op + "_errors_total")
	}
	r.histogram(r.prefix+"_"+op+"_duration_ms", float64(d)/float64(time.Millisecond))
}

// ObserveBytes observes <prefix>_<op>_bytes.
func (r *HostRecorder) ObserveBytes(op string, n int) {
	r.histogram(r.prefix+"_"+op+"_bytes", float64(n))
}

func (r *HostRecorder) SessionOpened() { r.gauge(r.prefix+"_open_sessions", actionInc) }

func (r *HostRecorder) SessionClosed() { r.gauge(r.prefix+"_open_sessions", actionDec) }

func (r *HostRecorder) counter(name string) {
	if !isMetricNameValid.MatchString(name) {
		return
	}
	payload, err := (&proto.MetricsCounter{Name: name}).MarshalVT()
	if err != nil {
		return
	}
	_, _ = r.hostCall(r.namespace, capabilityName, fnCounter, payload)
}

func (r *HostRecorder) gauge(name, action string) {
	payload, err := (&proto.MetricsGauge{Name: name, Action: action}).MarshalVT()
	if err != nil {
		return
	}
	_, _ = r.hostCall(r.namespace, capabilityName, fnGauge, payload)
}

func (r *HostRecorder) histogram(name string, value float64) {
	if !isMetricNameValid.MatchString(name) {
		return
	}
	payload, err := (&proto.MetricsHistogram{Name: name, Value: value}).MarshalVT()
	if err != nil {
		return
	}
	_, _ = r.hostCall(r.namespace, capabilityName, fnHistogram, payload)
}
