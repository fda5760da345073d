package fpga

import (
	"sync"
	"time"

	"github.com/worldland/fpga-offload/internal/domain"
)

// region is a mapped register window behind one handle
type region interface {
	domain.RegisterDevice
	Close() error
}

// Mapping tracks a single live BAR attachment
type Mapping struct {
	Target     domain.BarTarget
	AttachedAt time.Time
	region     region
}

// HandleTable hands out BAR handles and enforces one live handle per (slot, pf, bar)
type HandleTable struct {
	mu   sync.Mutex
	next domain.BarHandle
	live map[domain.BarHandle]*Mapping
}

// NewHandleTable creates an empty handle table
func NewHandleTable() *HandleTable {
	return &HandleTable{
		live: make(map[domain.BarHandle]*Mapping),
	}
}

// Allocate maps the target with open and returns a fresh handle for it.
// open is not called when the triple is already attached.
func (t *HandleTable) Allocate(target domain.BarTarget, open func() (region, error)) (domain.BarHandle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, m := range t.live {
		if sameTriple(m.Target, target) {
			return domain.InvalidBarHandle, domain.ErrBarAlreadyAttached
		}
	}

	r, err := open()
	if err != nil {
		return domain.InvalidBarHandle, err
	}

	h := t.next
	t.next++
	t.live[h] = &Mapping{
		Target:     target,
		AttachedAt: time.Now(),
		region:     r,
	}
	return h, nil
}

// Release removes the handle and unmaps its region
func (t *HandleTable) Release(h domain.BarHandle) error {
	t.mu.Lock()
	m, exists := t.live[h]
	if !h.Attached() || !exists {
		t.mu.Unlock()
		return domain.ErrInvalidHandle
	}
	delete(t.live, h)
	t.mu.Unlock()

	return m.region.Close()
}

// Lookup returns the register window for a live handle
func (t *HandleTable) Lookup(h domain.BarHandle) (domain.RegisterDevice, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, exists := t.live[h]
	if !h.Attached() || !exists {
		return nil, domain.ErrInvalidHandle
	}
	return m.region, nil
}

// GetMapping returns a copy of the mapping for a handle (for debugging/monitoring)
func (t *HandleTable) GetMapping(h domain.BarHandle) (*Mapping, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, exists := t.live[h]
	if !exists {
		return nil, false
	}
	copy := *m
	return &copy, true
}

// LiveCount returns the number of attached handles
func (t *HandleTable) LiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.live)
}

func sameTriple(a, b domain.BarTarget) bool {
	return a.Slot == b.Slot && a.PF == b.PF && a.Bar == b.Bar
}
