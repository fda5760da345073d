// Package engine drives the per-element dot-product protocol over one register.
package engine

import (
	"errors"
	"math"

	"github.com/worldland/fpga-offload/internal/domain"
	"github.com/worldland/fpga-offload/internal/protocol"
)

// Engine computes dot products one operand pair per register round trip
type Engine struct {
	proto     protocol.Protocol
	tolerance float64
}

// New creates an engine for proto. tolerance is the absolute difference
// allowed between device and host sums; 0 means exact equality.
func New(proto protocol.Protocol, tolerance float64) *Engine {
	return &Engine{proto: proto, tolerance: tolerance}
}

// Compute writes each packed pair, reads the product back from the same
// register and accumulates it in ascending index order. The first failed
// access aborts the loop.
func (e *Engine) Compute(dev domain.RegisterDevice, vec1, vec2 []uint16) (float64, error) {
	if len(vec1) != len(vec2) {
		return 0, domain.ErrLengthMismatch
	}

	var sum float64
	for i := range vec1 {
		if err := dev.Poke(e.proto.Offset, e.proto.Pack(vec1[i], vec2[i])); err != nil {
			return sum, e.accessErr("poke", i, err)
		}
		v, err := dev.Peek(e.proto.Offset)
		if err != nil {
			return sum, e.accessErr("peek", i, err)
		}
		sum += float64(v)
	}
	return sum, nil
}

func (e *Engine) accessErr(op string, index int, err error) error {
	var ae *domain.AccessError
	if errors.As(err, &ae) {
		wrapped := *ae
		wrapped.Index = index
		return &wrapped
	}
	return &domain.AccessError{Op: op, Offset: e.proto.Offset, Index: index, Err: err}
}

// Comparison is the outcome of checking a device sum against the host reference
type Comparison struct {
	Device float64
	Host   float64
	Match  bool
}

// Compare checks device against host within the engine tolerance
func (e *Engine) Compare(device, host float64) Comparison {
	return Comparison{
		Device: device,
		Host:   host,
		Match:  math.Abs(device-host) <= e.tolerance,
	}
}

// HostDotProduct is the host reference, accumulated in the same order as Compute
func HostDotProduct(vec1, vec2 []uint16) float64 {
	n := len(vec1)
	if len(vec2) < n {
		n = len(vec2)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(uint32(vec1[i]) * uint32(vec2[i]))
	}
	return sum
}
