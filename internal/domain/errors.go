package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotInitialized     = errors.New("platform layer not initialized")
	ErrImageNotLoaded     = errors.New("accelerator image is not loaded")
	ErrIdentityMismatch   = errors.New("accelerator image does not report the expected PCI identity")
	ErrBarAlreadyAttached = errors.New("bar already attached")
	ErrInvalidHandle      = errors.New("invalid bar handle")
	ErrHandleDetached     = errors.New("bar handle already detached")
	ErrLengthMismatch     = errors.New("operand vectors differ in length")
)

// InitializationError is returned when the platform layer cannot be initialized
type InitializationError struct {
	Err error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("unable to initialize the fpga platform: %v", e.Err)
}

func (e *InitializationError) Unwrap() error { return e.Err }

// AttachError is returned when a BAR cannot be mapped
type AttachError struct {
	Target BarTarget
	Err    error
}

func (e *AttachError) Error() string {
	return fmt.Sprintf("unable to attach to the accelerator on %s: %v", e.Target, e.Err)
}

func (e *AttachError) Unwrap() error { return e.Err }

// DetachError is returned when a BAR mapping cannot be released.
// It is reported but never overrides an error already being propagated.
type DetachError struct {
	Slot   AcceleratorSlot
	Handle BarHandle
	Err    error
}

func (e *DetachError) Error() string {
	return fmt.Sprintf("failure while detaching handle %d from slot %d: %v", e.Handle, e.Slot, e.Err)
}

func (e *DetachError) Unwrap() error { return e.Err }

// AccessError is returned when a register peek or poke fails
type AccessError struct {
	Slot   AcceleratorSlot
	Op     string // "peek" or "poke"
	Offset uint64
	Index  int // element index of the failed round trip, -1 outside the engine loop
	Err    error
}

func (e *AccessError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("slot %d: %s 0x%x failed at element %d: %v", e.Slot, e.Op, e.Offset, e.Index, e.Err)
	}
	return fmt.Sprintf("slot %d: %s 0x%x failed: %v", e.Slot, e.Op, e.Offset, e.Err)
}

func (e *AccessError) Unwrap() error { return e.Err }

// ReadinessError is returned when the slot does not hold the expected image
type ReadinessError struct {
	Slot     AcceleratorSlot
	Op       string // "describe", "rescan" or "verify"
	Expected Identity
	Observed Identity
	Err      error
}

func (e *ReadinessError) Error() string {
	if errors.Is(e.Err, ErrIdentityMismatch) {
		return fmt.Sprintf("slot %d: %s: expected %s, got %s", e.Slot, e.Op, e.Expected, e.Observed)
	}
	return fmt.Sprintf("slot %d: %s: %v", e.Slot, e.Op, e.Err)
}

func (e *ReadinessError) Unwrap() error { return e.Err }
