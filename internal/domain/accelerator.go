package domain

import "fmt"

// AcceleratorSlot identifies one physical FPGA card on the host
type AcceleratorSlot int

// PhysicalFunction is one PCI function of the FPGA card
type PhysicalFunction int

const (
	AppPF  PhysicalFunction = 0 // Application PF, exposes the custom logic
	MgmtPF PhysicalFunction = 1 // Management PF, owned by the shell
)

func (pf PhysicalFunction) String() string {
	switch pf {
	case AppPF:
		return "app"
	case MgmtPF:
		return "mgmt"
	default:
		return fmt.Sprintf("pf%d", int(pf))
	}
}

// BarID selects one base address register of a physical function
type BarID int

const (
	Bar0 BarID = 0
	Bar1 BarID = 1
	Bar4 BarID = 4
)

// AttachFlags modify how a BAR is mapped
type AttachFlags uint32

const (
	// AttachBurstCapable maps the write-combining view of the BAR
	AttachBurstCapable AttachFlags = 1 << 0
)

// BarHandle is an opaque token for one mapped BAR.
// A handle is attached iff it is non-negative.
type BarHandle int

// InvalidBarHandle marks a handle that is not (or no longer) attached
const InvalidBarHandle BarHandle = -1

// Attached reports whether h refers to a live mapping
func (h BarHandle) Attached() bool {
	return h >= 0
}

// BarTarget names the (slot, function, bar) triple to attach to
type BarTarget struct {
	Slot  AcceleratorSlot
	PF    PhysicalFunction
	Bar   BarID
	Flags AttachFlags
}

func (t BarTarget) String() string {
	return fmt.Sprintf("slot %d/%s/bar%d", t.Slot, t.PF, t.Bar)
}

// Identity is the PCI vendor/device pair reported by a physical function
type Identity struct {
	VendorID uint16 `json:"vendor_id" mapstructure:"vendor-id"`
	DeviceID uint16 `json:"device_id" mapstructure:"device-id"`
}

func (id Identity) String() string {
	return fmt.Sprintf("vendor 0x%04x device 0x%04x", id.VendorID, id.DeviceID)
}

// DefaultIdentity is the vendor/device pair preassigned to F1 application images
var DefaultIdentity = Identity{VendorID: 0x1D0F, DeviceID: 0xF000}

// ImageStatus is the load state of the accelerator image in a slot
type ImageStatus int

const (
	ImageStatusUnknown ImageStatus = iota
	ImageStatusNotLoaded
	ImageStatusLoaded
	ImageStatusBusy
	ImageStatusCleared
)

func (s ImageStatus) String() string {
	switch s {
	case ImageStatusNotLoaded:
		return "not-loaded"
	case ImageStatusLoaded:
		return "loaded"
	case ImageStatusBusy:
		return "busy"
	case ImageStatusCleared:
		return "cleared"
	default:
		return "unknown"
	}
}

// ImageInfo is a fresh description of the image loaded in a slot.
// It is never cached beyond a single readiness check.
type ImageInfo struct {
	Slot   AcceleratorSlot
	Status ImageStatus
	PFs    map[PhysicalFunction]Identity
}

// AppIdentity returns the identifiers reported by the application PF
func (i *ImageInfo) AppIdentity() Identity {
	if i == nil || i.PFs == nil {
		return Identity{}
	}
	return i.PFs[AppPF]
}
