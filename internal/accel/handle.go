// Package accel scopes the lifetime of one mapped accelerator BAR.
package accel

import (
	"github.com/sirupsen/logrus"

	"github.com/worldland/fpga-offload/internal/domain"
)

// Handle is one attached BAR. It implements domain.RegisterDevice until detached.
type Handle struct {
	platform domain.BarAccessor
	target   domain.BarTarget
	bar      domain.BarHandle
}

// Attach maps the target BAR through the platform
func Attach(p domain.BarAccessor, target domain.BarTarget) (*Handle, error) {
	bar, err := p.Attach(target.Slot, target.PF, target.Bar, target.Flags)
	if err != nil {
		return nil, &domain.AttachError{Target: target, Err: err}
	}
	if !bar.Attached() {
		return nil, &domain.AttachError{Target: target, Err: domain.ErrInvalidHandle}
	}
	return &Handle{platform: p, target: target, bar: bar}, nil
}

// Target returns the triple this handle was attached to
func (h *Handle) Target() domain.BarTarget {
	return h.target
}

// Attached reports whether the handle still refers to a live mapping
func (h *Handle) Attached() bool {
	return h.bar.Attached()
}

// Detach releases the mapping. The platform is asked at most once;
// later calls are no-ops.
func (h *Handle) Detach() error {
	if !h.bar.Attached() {
		return nil
	}
	bar := h.bar
	h.bar = domain.InvalidBarHandle

	if err := h.platform.Detach(bar); err != nil {
		return &domain.DetachError{Slot: h.target.Slot, Handle: bar, Err: err}
	}
	return nil
}

func (h *Handle) Peek(offset uint64) (uint32, error) {
	if !h.bar.Attached() {
		return 0, h.accessErr("peek", offset, domain.ErrHandleDetached)
	}
	v, err := h.platform.Peek(h.bar, offset)
	if err != nil {
		return 0, h.accessErr("peek", offset, err)
	}
	return v, nil
}

func (h *Handle) Poke(offset uint64, value uint32) error {
	if !h.bar.Attached() {
		return h.accessErr("poke", offset, domain.ErrHandleDetached)
	}
	if err := h.platform.Poke(h.bar, offset, value); err != nil {
		return h.accessErr("poke", offset, err)
	}
	return nil
}

func (h *Handle) accessErr(op string, offset uint64, err error) error {
	return &domain.AccessError{Slot: h.target.Slot, Op: op, Offset: offset, Index: -1, Err: err}
}

// WithBar attaches to target, runs fn with the mapped registers and detaches
// on every exit path, panics included. A detach failure is logged and never
// replaces the error returned by fn.
func WithBar(p domain.BarAccessor, target domain.BarTarget, log logrus.FieldLogger, fn func(dev domain.RegisterDevice) error) (err error) {
	h, err := Attach(p, target)
	if err != nil {
		return err
	}
	log = log.WithFields(logrus.Fields{
		"slot": target.Slot,
		"pf":   target.PF.String(),
		"bar":  target.Bar,
	})
	log.Debug("Attached to accelerator")

	defer func() {
		if derr := h.Detach(); derr != nil {
			log.WithError(derr).Warn("Failure while detaching from the fpga")
			return
		}
		log.Debug("Detached from accelerator")
	}()

	return fn(h)
}

// Compile-time interface check
var _ domain.RegisterDevice = (*Handle)(nil)
