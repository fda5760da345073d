package services

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/worldland/fpga-offload/internal/accel"
	"github.com/worldland/fpga-offload/internal/domain"
	"github.com/worldland/fpga-offload/internal/engine"
	"github.com/worldland/fpga-offload/internal/protocol"
	"github.com/worldland/fpga-offload/internal/readiness"
)

// HarnessConfig sizes one offload benchmark run
type HarnessConfig struct {
	Target       domain.BarTarget
	Trials       int
	VectorLength int
	Seed         uint64 // 0 picks a random seed
}

// Report summarizes one run
type Report struct {
	RunID        string
	Target       domain.BarTarget
	Seed         uint64
	Trials       int
	VectorLength int

	HostDuration   time.Duration // all trials
	DeviceDuration time.Duration // the single offloaded trial
	RoundTrips     int

	Comparison engine.Comparison
}

// Harness runs host trials and validates the first one on the accelerator.
// It is not a statistically controlled benchmark.
type Harness struct {
	platform domain.Platform
	checker  *readiness.Checker
	engine   *engine.Engine
	metrics  *Metrics
	cfg      HarnessConfig
	log      logrus.FieldLogger
}

// NewHarness creates a new harness
func NewHarness(platform domain.Platform, checker *readiness.Checker, eng *engine.Engine, metrics *Metrics, cfg HarnessConfig, log logrus.FieldLogger) *Harness {
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Harness{
		platform: platform,
		checker:  checker,
		engine:   eng,
		metrics:  metrics,
		cfg:      cfg,
		log:      log,
	}
}

// Metrics returns the collectors the harness records into
func (h *Harness) Metrics() *Metrics {
	return h.metrics
}

// Check initializes the platform and verifies the configured slot is ready
func (h *Harness) Check() error {
	if err := h.platform.Init(); err != nil {
		return &domain.InitializationError{Err: err}
	}
	return h.checker.CheckReady(h.cfg.Target.Slot)
}

// ReadStatus reads the auxiliary status register of a ready accelerator
func (h *Harness) ReadStatus() (uint32, error) {
	if err := h.Check(); err != nil {
		return 0, err
	}

	var status uint32
	err := accel.WithBar(h.platform, h.cfg.Target, h.log, func(dev domain.RegisterDevice) error {
		var err error
		status, err = dev.Peek(protocol.StatusRegister)
		return err
	})
	if err != nil {
		return 0, err
	}
	return status, nil
}

// Run gates on readiness, then runs the trials. ctx is only checked between
// trials; a register round trip in flight always completes.
func (h *Harness) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:        uuid.NewString(),
		Target:       h.cfg.Target,
		Seed:         h.cfg.Seed,
		Trials:       h.cfg.Trials,
		VectorLength: h.cfg.VectorLength,
	}
	if report.Seed == 0 {
		report.Seed = rand.Uint64()
	}
	log := h.log.WithFields(logrus.Fields{
		"run_id": report.RunID,
		"slot":   h.cfg.Target.Slot,
	})

	if err := h.Check(); err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"trials":        h.cfg.Trials,
		"vector_length": h.cfg.VectorLength,
		"seed":          report.Seed,
	}).Info("Starting dot product computation")

	rng := rand.New(rand.NewPCG(report.Seed, report.Seed^0x9E3779B97F4A7C15))
	vec1 := make([]uint16, h.cfg.VectorLength)
	vec2 := make([]uint16, h.cfg.VectorLength)

	for k := 0; k < h.cfg.Trials; k++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("run interrupted after %d trials: %w", k, err)
		}

		start := time.Now()
		fill(rng, vec1)
		fill(rng, vec2)
		expect := engine.HostDotProduct(vec1, vec2)
		elapsed := time.Since(start)
		report.HostDuration += elapsed
		h.metrics.hostTrial.Observe(elapsed.Seconds())

		if k != 0 {
			continue
		}

		result, roundTrips, elapsed, err := h.offload(vec1, vec2)
		report.RoundTrips = roundTrips
		if err != nil {
			return nil, fmt.Errorf("fpga dot product failed: %w", err)
		}
		report.DeviceDuration = elapsed
		report.Comparison = h.engine.Compare(result, expect)

		entry := log.WithFields(logrus.Fields{
			"device": result,
			"host":   expect,
		})
		if report.Comparison.Match {
			entry.Info("Result of FPGA and CPU match")
		} else {
			h.metrics.mismatches.Inc()
			entry.Warn("Result of FPGA does not match expected")
		}
	}

	log.WithFields(logrus.Fields{
		"host_duration":   report.HostDuration,
		"device_duration": report.DeviceDuration,
	}).Info("Run complete")
	return report, nil
}

// offload runs one dot product on the accelerator inside an attach scope
func (h *Harness) offload(vec1, vec2 []uint16) (float64, int, time.Duration, error) {
	var (
		result     float64
		roundTrips int
	)
	start := time.Now()
	err := accel.WithBar(h.platform, h.cfg.Target, h.log, func(dev domain.RegisterDevice) error {
		counted := &countingDevice{RegisterDevice: dev, counter: h.metrics.roundTrips}
		var err error
		result, err = h.engine.Compute(counted, vec1, vec2)
		roundTrips = counted.trips
		return err
	})
	elapsed := time.Since(start)
	if err != nil {
		return 0, roundTrips, elapsed, err
	}
	h.metrics.deviceCompute.Observe(elapsed.Seconds())
	return result, roundTrips, elapsed, nil
}

func fill(rng *rand.Rand, vec []uint16) {
	for i := range vec {
		vec[i] = uint16(rng.Uint32())
	}
}
