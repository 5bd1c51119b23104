// Package manager implements the device registry and its resource records:
// spec.md §4.2 (reference-counted resource records), §4.3 (device
// descriptor), and §4.4 (registry/manager). The shape and locking
// discipline follow the teacher's internal/runtime/region_memory.go and
// internal/runtime/refcount_optimizer.go (a typed error on the allocation
// path, atomic/lock-guarded refcounts, an enum marking an empty slot) —
// the allocator's memory region became this package's device memregion.
package manager

import (
	"sync"

	"github.com/cuddl-go/cuddl/internal/cuddlerr"
)

// MemRegionType classifies how a memregion's address was obtained, mirroring
// spec.md §3.
type MemRegionType uint8

const (
	// MemRegionNone marks an empty memregion slot.
	MemRegionNone MemRegionType = iota
	MemRegionPhysical
	MemRegionLogical
	MemRegionVirtual
)

// ResourceFlags is a small bitset shared by memregions and eventsrcs.
type ResourceFlags uint32

const (
	// FlagShared allows more than one concurrent claim.
	FlagShared ResourceFlags = 1 << iota
	// FlagWaitable is set on every claimed eventsrc (never on a memregion).
	FlagWaitable
	FlagHasEnable
	FlagHasDisable
	FlagHasIsEnabled
)

// MemRegion is the reference-counted resource record of spec.md §3/§4.2.
type MemRegion struct {
	Name        string
	PAAddr      uintptr
	PALen       uintptr
	StartOffset uintptr
	Len         uintptr
	Type        MemRegionType
	Flags       ResourceFlags

	refLock  sync.Mutex
	refCount int

	// Pin/Unpin are the platform hooks spec.md §4.2 calls "pin/unpin the
	// owning driver module" — on a real kernel this keeps the driver
	// shim's module from unloading while claimed. Optional; nil is a
	// no-op (used by tests and by devices with no backing module).
	Pin   func()
	Unpin func()
}

// Empty reports whether this is an unused slot (spec.md §4.3 invariant).
func (m *MemRegion) Empty() bool { return m.Type == MemRegionNone }

// RefCount returns the current reference count.
func (m *MemRegion) RefCount() int {
	m.refLock.Lock()
	defer m.refLock.Unlock()
	return m.refCount
}

// DefaultPageSize is the host page size used to round up a memregion's
// pa_len when a driver shim doesn't supply one; it matches
// internal/platform.PageSize (kept as a separate constant so this package
// never needs to import platform).
const DefaultPageSize = 4096

// Normalize fills in PALen/Len per spec.md §3's register-time defaulting
// rule: PALen, if zero, is computed from start_offset+len rounded up to a
// page; Len, if zero, is set to PALen. Registry.Manage calls this once per
// memregion before adding a device.
func (m *MemRegion) Normalize(pageSize uintptr) {
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	if m.PALen == 0 {
		need := m.StartOffset + m.Len
		m.PALen = roundUpPage(need, pageSize)
	}
	if m.Len == 0 {
		m.Len = m.PALen
	}
}

func roundUpPage(n, pageSize uintptr) uintptr {
	if pageSize == 0 {
		pageSize = 4096
	}
	if n == 0 {
		return pageSize
	}
	return (n + pageSize - 1) / pageSize * pageSize
}

// Claim implements spec.md §4.2's claim(record, hostile): acquire ref_lock;
// reject with Busy if already held exclusively and neither shared nor
// hostile; otherwise increment and succeed.
func (m *MemRegion) Claim(hostile bool) error {
	m.refLock.Lock()
	defer m.refLock.Unlock()
	if m.refCount > 0 && m.Flags&FlagShared == 0 && !hostile {
		return cuddlerr.New("memregion.claim", cuddlerr.Busy, m.Name)
	}
	m.refCount++
	if m.Pin != nil {
		m.Pin()
	}
	return nil
}

// Decrement implements spec.md §4.2's decrement(record): Underflow if the
// count is already zero, else decrement.
func (m *MemRegion) Decrement() error {
	m.refLock.Lock()
	defer m.refLock.Unlock()
	if m.refCount == 0 {
		return cuddlerr.New("memregion.decrement", cuddlerr.Underflow, m.Name)
	}
	m.refCount--
	if m.Unpin != nil {
		m.Unpin()
	}
	return nil
}
