package config

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/worldland/fpga-offload/internal/adapters/fpga"
	"github.com/worldland/fpga-offload/internal/domain"
	"github.com/worldland/fpga-offload/internal/logging"
)

// MaxVectorLength keeps every partial sum of 32-bit products below 2^53,
// so float64 accumulation on host and device is exact
const MaxVectorLength = 1 << 21

var pciAddress = regexp.MustCompile(`^[0-9a-fA-F]{4}:[0-9a-fA-F]{2}:[0-9a-fA-F]{2}\.[0-7]$`)

// Config holds configuration for the offload tool
type Config struct {
	// Slot is the FPGA slot to use
	// Default: 0
	Slot int

	// PF and Bar select the register window; the dot-product registers
	// live behind the application PF BAR0
	PF  int
	Bar int

	// Burst maps the write-combining view of the BAR
	Burst bool

	// VendorID and DeviceID are the identifiers the loaded image must report
	// Default: 0x1D0F / 0xF000
	VendorID uint16
	DeviceID uint16

	// AppBDF and MgmtBDF are the PCI addresses of the slot's functions
	AppBDF  string
	MgmtBDF string

	// SysfsRoot is where the PCI sysfs tree is mounted
	// Default: "/sys"
	SysfsRoot string

	// Trials is the number of host trials; only the first is offloaded
	// Default: 5000
	Trials int

	// VectorLength is the dimension of each operand vector
	// Default: 1000
	VectorLength int

	// Seed for the operand generator; 0 picks a random seed
	Seed uint64

	// Tolerance is the absolute difference accepted between device and host sums
	// Default: 0 (exact)
	Tolerance float64

	// MetricsTextfile, when set, receives the run's metrics in text exposition format
	MetricsTextfile string

	// Mock runs against an in-memory accelerator instead of sysfs
	Mock bool

	Logging logging.Config
}

// Default returns default configuration
func Default() Config {
	slot0 := fpga.DefaultSlots[0]
	return Config{
		Slot:         0,
		PF:           int(domain.AppPF),
		Bar:          int(domain.Bar0),
		VendorID:     domain.DefaultIdentity.VendorID,
		DeviceID:     domain.DefaultIdentity.DeviceID,
		AppBDF:       slot0.App,
		MgmtBDF:      slot0.Mgmt,
		SysfsRoot:    "/sys",
		Trials:       5000,
		VectorLength: 1000,
		Logging:      logging.DefaultConfig(),
	}
}

// Validate checks that the config is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Slot < 0 {
		errs = append(errs, fmt.Errorf("slot must be non-negative, got %d", c.Slot))
	}
	switch domain.PhysicalFunction(c.PF) {
	case domain.AppPF, domain.MgmtPF:
	default:
		errs = append(errs, fmt.Errorf("pf must be %d (app) or %d (mgmt), got %d", domain.AppPF, domain.MgmtPF, c.PF))
	}
	switch domain.BarID(c.Bar) {
	case domain.Bar0, domain.Bar1, domain.Bar4:
	default:
		errs = append(errs, fmt.Errorf("bar must be 0, 1 or 4, got %d", c.Bar))
	}
	if c.Trials < 1 {
		errs = append(errs, fmt.Errorf("trials must be at least 1, got %d", c.Trials))
	}
	if c.VectorLength < 1 || c.VectorLength > MaxVectorLength {
		errs = append(errs, fmt.Errorf("vector length must be in [1, %d], got %d", MaxVectorLength, c.VectorLength))
	}
	if c.Tolerance < 0 {
		errs = append(errs, fmt.Errorf("tolerance must be non-negative, got %g", c.Tolerance))
	}
	if !c.Mock {
		if !pciAddress.MatchString(c.AppBDF) {
			errs = append(errs, fmt.Errorf("app PCI address %q is not in dddd:bb:dd.f form", c.AppBDF))
		}
		if c.MgmtBDF != "" && !pciAddress.MatchString(c.MgmtBDF) {
			errs = append(errs, fmt.Errorf("mgmt PCI address %q is not in dddd:bb:dd.f form", c.MgmtBDF))
		}
		if c.SysfsRoot == "" {
			errs = append(errs, errors.New("sysfs root is required"))
		}
	}

	return errors.Join(errs...)
}

// Target returns the BAR triple the offload attaches to
func (c *Config) Target() domain.BarTarget {
	t := domain.BarTarget{
		Slot: domain.AcceleratorSlot(c.Slot),
		PF:   domain.PhysicalFunction(c.PF),
		Bar:  domain.BarID(c.Bar),
	}
	if c.Burst {
		t.Flags |= domain.AttachBurstCapable
	}
	return t
}

// Expected returns the identity the loaded image must report
func (c *Config) Expected() domain.Identity {
	return domain.Identity{VendorID: c.VendorID, DeviceID: c.DeviceID}
}

// SlotTable maps the configured slot to its PCI addresses
func (c *Config) SlotTable() map[domain.AcceleratorSlot]fpga.SlotAddress {
	return map[domain.AcceleratorSlot]fpga.SlotAddress{
		domain.AcceleratorSlot(c.Slot): {App: c.AppBDF, Mgmt: c.MgmtBDF},
	}
}
