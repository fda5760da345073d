package fpga

import (
	"fmt"

	"github.com/worldland/fpga-offload/internal/domain"
)

// SlotAddress holds the PCI addresses (domain:bus:device.function) of a slot's functions
type SlotAddress struct {
	App  string `mapstructure:"app"`
	Mgmt string `mapstructure:"mgmt"`
}

// DefaultSlots is the slot layout of an f1.2xlarge instance
var DefaultSlots = map[domain.AcceleratorSlot]SlotAddress{
	0: {App: "0000:00:1d.0", Mgmt: "0000:00:1d.1"},
}

// function returns the PCI address of pf within the slot
func (a SlotAddress) function(pf domain.PhysicalFunction) (string, error) {
	switch pf {
	case domain.AppPF:
		if a.App != "" {
			return a.App, nil
		}
	case domain.MgmtPF:
		if a.Mgmt != "" {
			return a.Mgmt, nil
		}
	}
	return "", fmt.Errorf("no PCI address configured for %s function", pf)
}
