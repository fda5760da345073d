//go:build !linux || nofpga
// +build !linux nofpga

package fpga

import (
	"fmt"

	"github.com/spf13/afero"

	"github.com/worldland/fpga-offload/internal/domain"
)

// SysfsPlatform stub - used on non-Linux hosts or when building with the nofpga tag
type SysfsPlatform struct{}

func NewSysfsPlatform(fs afero.Fs, root string, slots map[domain.AcceleratorSlot]SlotAddress) *SysfsPlatform {
	return &SysfsPlatform{}
}

func (p *SysfsPlatform) Init() error {
	return fmt.Errorf("FPGA PCI access not available (built with nofpga tag or non-linux target)")
}

func (p *SysfsPlatform) DescribeLocalImage(slot domain.AcceleratorSlot) (*domain.ImageInfo, error) {
	return nil, fmt.Errorf("FPGA PCI access not available")
}

func (p *SysfsPlatform) RescanAppPFs(slot domain.AcceleratorSlot) error {
	return fmt.Errorf("FPGA PCI access not available")
}

func (p *SysfsPlatform) Attach(slot domain.AcceleratorSlot, pf domain.PhysicalFunction, bar domain.BarID, flags domain.AttachFlags) (domain.BarHandle, error) {
	return domain.InvalidBarHandle, fmt.Errorf("FPGA PCI access not available")
}

func (p *SysfsPlatform) Detach(handle domain.BarHandle) error {
	return nil
}

func (p *SysfsPlatform) Peek(handle domain.BarHandle, offset uint64) (uint32, error) {
	return 0, fmt.Errorf("FPGA PCI access not available")
}

func (p *SysfsPlatform) Poke(handle domain.BarHandle, offset uint64, value uint32) error {
	return fmt.Errorf("FPGA PCI access not available")
}

// Compile-time interface check
var _ domain.Platform = (*SysfsPlatform)(nil)
