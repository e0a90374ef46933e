package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus is a Recorder backed by Prometheus collectors.
type Prometheus struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	bytes      *prometheus.HistogramVec
	sessions   prometheus.Gauge
}

var _ Recorder = (*Prometheus)(nil)

// NewPrometheus registers the client collectors with reg. A nil reg uses
// the default registerer.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Prometheus{
		operations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nvm3_operations_total",
				Help: "Total number of NVM3 operations by operation and result code",
			},
			[]string{"op", "code"},
		),
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "nvm3_operation_duration_milliseconds",
				Help: "Duration of NVM3 operations in milliseconds",
				Buckets: []float64{
					0.5, // local failures
					1,
					5,
					10,
					50,
					100,
					500,
					1000,
					5000, // default session timeout
				},
			},
			[]string{"op"},
		),
		bytes: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nvm3_operation_bytes",
				Help:    "Distribution of bytes moved by NVM3 data operations",
				Buckets: prometheus.ExponentialBuckets(16, 4, 6),
			},
			[]string{"op"},
		),
		sessions: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "nvm3_open_sessions",
				Help: "Number of NVM3 sessions currently open",
			},
		),
	}
}

func (p *Prometheus) ObserveOperation(op, code string, d time.Duration) {
	p.operations.WithLabelValues(op, code).Inc()
	p.duration.WithLabelValues(op).Observe(float64(d) / float64(time.Millisecond))
}

func (p *Prometheus) ObserveBytes(op string, n int) {
	p.bytes.WithLabelValues(op).Observe(float64(n))
}

func (p *Prometheus) SessionOpened() { p.sessions.Inc() }

func (p *Prometheus) SessionClosed() { p.sessions.Dec() }
