package domain

// ImageManager describes and re-enumerates the image loaded in a slot
type ImageManager interface {
	// DescribeLocalImage returns the current image status and PF identifiers
	DescribeLocalImage(slot AcceleratorSlot) (*ImageInfo, error)
	// RescanAppPFs asks the platform to re-enumerate the application PFs of a slot
	RescanAppPFs(slot AcceleratorSlot) error
}

// BarAccessor maps BARs and performs single 32-bit register accesses on them
type BarAccessor interface {
	Attach(slot AcceleratorSlot, pf PhysicalFunction, bar BarID, flags AttachFlags) (BarHandle, error)
	Detach(handle BarHandle) error
	Peek(handle BarHandle, offset uint64) (uint32, error)
	Poke(handle BarHandle, offset uint64, value uint32) error
}

// Platform abstracts the accelerator management layer for testing
type Platform interface {
	ImageManager
	BarAccessor
	// Init initializes the platform layer (sysfs or mock)
	Init() error
}

// RegisterDevice is anything that answers 32-bit register reads and writes
type RegisterDevice interface {
	Peek(offset uint64) (uint32, error)
	Poke(offset uint64, value uint32) error
}
