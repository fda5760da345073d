package services

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/worldland/fpga-offload/internal/domain"
)

const metricsNamespace = "dotprod"

// Metrics collects timing and correctness counters for one run
type Metrics struct {
	registry      *prometheus.Registry
	hostTrial     prometheus.Histogram
	deviceCompute prometheus.Histogram
	roundTrips    prometheus.Counter
	mismatches    prometheus.Counter
}

// NewMetrics creates the run metrics on a private registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		hostTrial: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "host_trial_duration_seconds",
			Help:      "Time to generate operands and compute the host reference for one trial.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
		}),
		deviceCompute: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "device_compute_duration_seconds",
			Help:      "Time to compute one dot product on the accelerator, attach and detach included.",
			Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 12),
		}),
		roundTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "register_round_trips_total",
			Help:      "Completed poke/peek round trips on the dot-product register.",
		}),
		mismatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "result_mismatches_total",
			Help:      "Device results that did not match the host reference.",
		}),
	}
	m.registry.MustRegister(m.hostTrial, m.deviceCompute, m.roundTrips, m.mismatches)
	return m
}

// Registry exposes the collectors for gathering
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes the current values for a node-exporter textfile collector
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

// countingDevice counts completed round trips (a successful peek ends one)
type countingDevice struct {
	domain.RegisterDevice
	counter prometheus.Counter
	trips   int
}

func (d *countingDevice) Peek(offset uint64) (uint32, error) {
	v, err := d.RegisterDevice.Peek(offset)
	if err == nil {
		d.trips++
		d.counter.Inc()
	}
	return v, err
}
