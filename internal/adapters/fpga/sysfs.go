//go:build linux && !nofpga
// +build linux,!nofpga

package fpga

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"unsafe"

	"github.com/spf13/afero"
	"golang.org/x/sys/unix"

	"github.com/worldland/fpga-offload/internal/domain"
)

// SysfsPlatform talks to the FPGA through the Linux PCI sysfs tree.
// Identity and rescan go through afero; BARs are mapped from resource files.
type SysfsPlatform struct {
	fs          afero.Fs
	root        string
	slots       map[domain.AcceleratorSlot]SlotAddress
	handles     *HandleTable
	mapBar      func(path string) (region, error)
	initialized bool
}

// NewSysfsPlatform creates a platform rooted at root (normally "/sys")
func NewSysfsPlatform(fs afero.Fs, root string, slots map[domain.AcceleratorSlot]SlotAddress) *SysfsPlatform {
	return &SysfsPlatform{
		fs:      fs,
		root:    root,
		slots:   slots,
		handles: NewHandleTable(),
		mapBar:  mmapResource,
	}
}

func (p *SysfsPlatform) Init() error {
	pciDir := filepath.Join(p.root, "bus", "pci", "devices")
	ok, err := afero.DirExists(p.fs, pciDir)
	if err != nil {
		return fmt.Errorf("stat %s: %w", pciDir, err)
	}
	if !ok {
		return fmt.Errorf("PCI sysfs tree not found at %s", pciDir)
	}
	p.initialized = true
	return nil
}

func (p *SysfsPlatform) DescribeLocalImage(slot domain.AcceleratorSlot) (*domain.ImageInfo, error) {
	if !p.initialized {
		return nil, domain.ErrNotInitialized
	}
	addr, err := p.slot(slot)
	if err != nil {
		return nil, err
	}

	info := &domain.ImageInfo{
		Slot:   slot,
		Status: domain.ImageStatusNotLoaded,
		PFs:    make(map[domain.PhysicalFunction]domain.Identity),
	}

	for _, pf := range []domain.PhysicalFunction{domain.AppPF, domain.MgmtPF} {
		bdf, err := addr.function(pf)
		if err != nil {
			continue
		}
		present, err := afero.DirExists(p.fs, p.deviceDir(bdf))
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", bdf, err)
		}
		if !present {
			continue
		}
		id, err := p.readIdentity(bdf)
		if err != nil {
			return nil, err
		}
		info.PFs[pf] = id
	}

	if _, ok := info.PFs[domain.AppPF]; ok {
		info.Status = domain.ImageStatusLoaded
	}
	return info, nil
}

func (p *SysfsPlatform) RescanAppPFs(slot domain.AcceleratorSlot) error {
	if !p.initialized {
		return domain.ErrNotInitialized
	}
	addr, err := p.slot(slot)
	if err != nil {
		return err
	}
	bdf, err := addr.function(domain.AppPF)
	if err != nil {
		return err
	}

	// Drop the stale function first so the rescan re-reads its config space
	if present, _ := afero.DirExists(p.fs, p.deviceDir(bdf)); present {
		if err := p.writeAttr(filepath.Join(p.deviceDir(bdf), "remove"), "1"); err != nil {
			return fmt.Errorf("remove %s: %w", bdf, err)
		}
	}
	if err := p.writeAttr(filepath.Join(p.root, "bus", "pci", "rescan"), "1"); err != nil {
		return fmt.Errorf("rescan pci bus: %w", err)
	}
	return nil
}

func (p *SysfsPlatform) Attach(slot domain.AcceleratorSlot, pf domain.PhysicalFunction, bar domain.BarID, flags domain.AttachFlags) (domain.BarHandle, error) {
	if !p.initialized {
		return domain.InvalidBarHandle, domain.ErrNotInitialized
	}
	addr, err := p.slot(slot)
	if err != nil {
		return domain.InvalidBarHandle, err
	}
	bdf, err := addr.function(pf)
	if err != nil {
		return domain.InvalidBarHandle, err
	}

	name := fmt.Sprintf("resource%d", bar)
	if flags&domain.AttachBurstCapable != 0 {
		name += "_wc"
	}
	path := filepath.Join(p.deviceDir(bdf), name)

	target := domain.BarTarget{Slot: slot, PF: pf, Bar: bar, Flags: flags}
	return p.handles.Allocate(target, func() (region, error) {
		return p.mapBar(path)
	})
}

func (p *SysfsPlatform) Detach(handle domain.BarHandle) error {
	return p.handles.Release(handle)
}

func (p *SysfsPlatform) Peek(handle domain.BarHandle, offset uint64) (uint32, error) {
	r, err := p.handles.Lookup(handle)
	if err != nil {
		return 0, err
	}
	return r.Peek(offset)
}

func (p *SysfsPlatform) Poke(handle domain.BarHandle, offset uint64, value uint32) error {
	r, err := p.handles.Lookup(handle)
	if err != nil {
		return err
	}
	return r.Poke(offset, value)
}

func (p *SysfsPlatform) slot(slot domain.AcceleratorSlot) (SlotAddress, error) {
	addr, ok := p.slots[slot]
	if !ok {
		return SlotAddress{}, fmt.Errorf("slot %d has no configured PCI address", slot)
	}
	return addr, nil
}

func (p *SysfsPlatform) deviceDir(bdf string) string {
	return filepath.Join(p.root, "bus", "pci", "devices", bdf)
}

func (p *SysfsPlatform) readIdentity(bdf string) (domain.Identity, error) {
	vendor, err := p.readHex16(filepath.Join(p.deviceDir(bdf), "vendor"))
	if err != nil {
		return domain.Identity{}, err
	}
	device, err := p.readHex16(filepath.Join(p.deviceDir(bdf), "device"))
	if err != nil {
		return domain.Identity{}, err
	}
	return domain.Identity{VendorID: vendor, DeviceID: device}, nil
}

func (p *SysfsPlatform) readHex16(path string) (uint16, error) {
	data, err := afero.ReadFile(p.fs, path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(data)), 0, 16)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}
	return uint16(v), nil
}

func (p *SysfsPlatform) writeAttr(path, value string) error {
	f, err := p.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0200)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(value)
	return err
}

// mmioRegion is a BAR mapped into the process with mmap
type mmioRegion struct {
	mem []byte
}

func mmapResource(path string) (region, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if st.Size() == 0 {
		return nil, fmt.Errorf("%s has zero size", path)
	}

	mem, err := unix.Mmap(int(f.Fd()), 0, int(st.Size()), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	return &mmioRegion{mem: mem}, nil
}

func (r *mmioRegion) word(offset uint64) (*uint32, error) {
	if offset%4 != 0 {
		return nil, fmt.Errorf("unaligned register offset 0x%x", offset)
	}
	if offset+4 > uint64(len(r.mem)) {
		return nil, fmt.Errorf("register offset 0x%x outside %d byte bar", offset, len(r.mem))
	}
	return (*uint32)(unsafe.Pointer(&r.mem[offset])), nil
}

// Peek issues a single 32-bit load so the device sees one bus read
func (r *mmioRegion) Peek(offset uint64) (uint32, error) {
	w, err := r.word(offset)
	if err != nil {
		return 0, err
	}
	return atomic.LoadUint32(w), nil
}

func (r *mmioRegion) Poke(offset uint64, value uint32) error {
	w, err := r.word(offset)
	if err != nil {
		return err
	}
	atomic.StoreUint32(w, value)
	return nil
}

func (r *mmioRegion) Close() error {
	return unix.Munmap(r.mem)
}

// Compile-time interface check
var _ domain.Platform = (*SysfsPlatform)(nil)
