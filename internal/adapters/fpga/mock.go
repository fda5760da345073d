package fpga

import (
	"errors"
	"sync"

	"github.com/worldland/fpga-offload/internal/domain"
	"github.com/worldland/fpga-offload/internal/protocol"
)

// ErrInjected is the default error returned by MockPlatform failure injection
var ErrInjected = errors.New("injected failure")

// MultiplierDevice is an in-memory register file that behaves like the
// dot-product image: a packed operand pair written to the dot-product
// register reads back as the product of its halves.
type MultiplierDevice struct {
	mu   sync.Mutex
	regs map[uint64]uint32
}

func NewMultiplierDevice() *MultiplierDevice {
	return &MultiplierDevice{regs: make(map[uint64]uint32)}
}

func (d *MultiplierDevice) Peek(offset uint64) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.regs[offset], nil
}

func (d *MultiplierDevice) Poke(offset uint64, value uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if offset == protocol.DotProduct.Offset {
		a, b := protocol.DotProduct.Unpack(value)
		value = uint32(a) * uint32(b)
	}
	d.regs[offset] = value
	return nil
}

// MockPlatform provides a scripted accelerator for testing and for running without hardware
type MockPlatform struct {
	// Images are returned by successive DescribeLocalImage calls; the last one repeats
	Images []domain.ImageInfo
	// Device answers register accesses on every attached handle
	Device domain.RegisterDevice

	InitErr     error
	DescribeErr error
	RescanErr   error
	AttachErr   error
	DetachErr   error

	// FailAccess makes the k-th register access (peek or poke, 1-based) fail; 0 never fails
	FailAccess int
	AccessErr  error

	// Call tracking
	InitCalls     int
	DescribeCalls int
	RescanCalls   []domain.AcceleratorSlot
	AttachCalls   []domain.BarTarget
	DetachCalls   []domain.BarHandle
	PeekCalls     int
	PokeCalls     int

	handles *HandleTable
}

// NewMockPlatform creates a mock that reports the given image descriptions
// and computes products with a MultiplierDevice
func NewMockPlatform(images ...domain.ImageInfo) *MockPlatform {
	return &MockPlatform{
		Images:  images,
		Device:  NewMultiplierDevice(),
		handles: NewHandleTable(),
	}
}

// LoadedImage builds a loaded image description reporting id on the application PF
func LoadedImage(slot domain.AcceleratorSlot, id domain.Identity) domain.ImageInfo {
	return domain.ImageInfo{
		Slot:   slot,
		Status: domain.ImageStatusLoaded,
		PFs:    map[domain.PhysicalFunction]domain.Identity{domain.AppPF: id},
	}
}

func (p *MockPlatform) Init() error {
	p.InitCalls++
	return p.InitErr
}

func (p *MockPlatform) DescribeLocalImage(slot domain.AcceleratorSlot) (*domain.ImageInfo, error) {
	p.DescribeCalls++
	if p.DescribeErr != nil {
		return nil, p.DescribeErr
	}
	if len(p.Images) == 0 {
		return &domain.ImageInfo{Slot: slot, Status: domain.ImageStatusNotLoaded}, nil
	}

	idx := p.DescribeCalls - 1
	if idx >= len(p.Images) {
		idx = len(p.Images) - 1
	}
	info := p.Images[idx]
	info.Slot = slot
	return &info, nil
}

func (p *MockPlatform) RescanAppPFs(slot domain.AcceleratorSlot) error {
	p.RescanCalls = append(p.RescanCalls, slot)
	return p.RescanErr
}

func (p *MockPlatform) Attach(slot domain.AcceleratorSlot, pf domain.PhysicalFunction, bar domain.BarID, flags domain.AttachFlags) (domain.BarHandle, error) {
	target := domain.BarTarget{Slot: slot, PF: pf, Bar: bar, Flags: flags}
	p.AttachCalls = append(p.AttachCalls, target)
	if p.AttachErr != nil {
		return domain.InvalidBarHandle, p.AttachErr
	}
	if p.handles == nil {
		p.handles = NewHandleTable()
	}
	return p.handles.Allocate(target, func() (region, error) {
		return nopCloser{p.Device}, nil
	})
}

func (p *MockPlatform) Detach(handle domain.BarHandle) error {
	p.DetachCalls = append(p.DetachCalls, handle)
	if p.handles == nil {
		return domain.ErrInvalidHandle
	}
	if err := p.handles.Release(handle); err != nil {
		return err
	}
	return p.DetachErr
}

func (p *MockPlatform) Peek(handle domain.BarHandle, offset uint64) (uint32, error) {
	p.PeekCalls++
	dev, err := p.lookup(handle)
	if err != nil {
		return 0, err
	}
	if p.failNow() {
		return 0, p.accessErr()
	}
	return dev.Peek(offset)
}

func (p *MockPlatform) Poke(handle domain.BarHandle, offset uint64, value uint32) error {
	p.PokeCalls++
	dev, err := p.lookup(handle)
	if err != nil {
		return err
	}
	if p.failNow() {
		return p.accessErr()
	}
	return dev.Poke(offset, value)
}

// Accesses returns the number of register accesses attempted so far
func (p *MockPlatform) Accesses() int {
	return p.PeekCalls + p.PokeCalls
}

// LiveHandles returns the number of handles currently attached
func (p *MockPlatform) LiveHandles() int {
	if p.handles == nil {
		return 0
	}
	return p.handles.LiveCount()
}

func (p *MockPlatform) lookup(handle domain.BarHandle) (domain.RegisterDevice, error) {
	if p.handles == nil {
		return nil, domain.ErrInvalidHandle
	}
	return p.handles.Lookup(handle)
}

func (p *MockPlatform) failNow() bool {
	return p.FailAccess > 0 && p.Accesses() == p.FailAccess
}

func (p *MockPlatform) accessErr() error {
	if p.AccessErr != nil {
		return p.AccessErr
	}
	return ErrInjected
}

type nopCloser struct {
	domain.RegisterDevice
}

func (nopCloser) Close() error { return nil }

// Compile-time interface checks
var (
	_ domain.Platform       = (*MockPlatform)(nil)
	_ domain.RegisterDevice = (*MultiplierDevice)(nil)
)
