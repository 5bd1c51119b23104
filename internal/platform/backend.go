// Package platform implements spec.md §4.9's design note: the real-time and
// non-real-time variants diverge only in device-path format, mmap offset,
// and wait-primitive backing. Both are modeled here as implementations of
// one Backend capability set; internal/manager and internal/controlproto
// never branch on variant themselves.
package platform

import (
	"fmt"
	"sync/atomic"

	"github.com/cuddl-go/cuddl/internal/manager"
)

// PageSize is the host page size memregion windows are aligned to.
const PageSize = 4096

// Backend is the platform capability set of spec.md §4.9: open_event_channel,
// wait_event (via the returned manager.Waker), map_region, path_for_region,
// path_for_event, plus the OS device-registration hook spec.md §4.4 and §9
// require of "register the device with the host OS".
type Backend interface {
	manager.OSRegistrar

	// Variant names this back-end ("realtime" or "uio"), matching
	// spec.md §4.8's variant identifier.
	Variant() string

	// PathForRegion and PathForEvent compute the device node a client
	// opens to map a memregion / wait on an eventsrc (spec.md §4.5/§6).
	PathForRegion(dev *manager.Device, regionIndex int) string
	PathForEvent(dev *manager.Device) string

	// MmapOffset computes the claim response's pa_mmap_offset for a given
	// memregion index (spec.md §4.5/§6).
	MmapOffset(regionIndex int) int64

	// OpenEventChannel opens the per-platform wakeup primitive backing an
	// eventsrc claim.
	OpenEventChannel(dev *manager.Device, path string) (manager.Waker, error)

	// MapRegion performs the OS mapping primitive: open path, then map
	// length bytes at offset. It returns the mapped base address and an
	// unmap function that undoes both the mapping and the open.
	MapRegion(path string, length uintptr, offset int64) (addr uintptr, unmap func() error, err error)
}

var minorCounter int32

// nextMinor hands out the non-real-time variant's "kernel's
// registration-order index" (spec.md §6).
func nextMinor() int {
	return int(atomic.AddInt32(&minorCounter, 1)) - 1
}

// baseName builds the "uniquely generated base name" spec.md §3 calls out
// as device private state, reused by both variants for path generation.
func baseName(dev *manager.Device) string {
	return fmt.Sprintf("%s.%s.%d", dev.Group, dev.Name, dev.Instance)
}
