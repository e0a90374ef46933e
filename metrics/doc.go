/*
Package metrics records NVM3 client measurements.

A Recorder observes every operation with its result code and latency, the
payload size of data operations, and sessions entering or leaving the Open
state. Two implementations are provided:

  - Prometheus registers collectors on a prometheus.Registerer.
  - HostRecorder forwards counters, gauges and histograms to the metrics
    capability of a waPC host using protobuf payloads.

Emission is best-effort and never returns errors. A nil Recorder passed
through OrNop discards everything.
*/
package metrics
