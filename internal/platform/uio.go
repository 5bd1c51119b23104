//go:build unix

package platform

import (
	"fmt"

	"github.com/cuddl-go/cuddl/internal/manager"
)

// UIOBackend implements Backend for the non-real-time (Linux UIO/UDD)
// variant of spec.md §6: device nodes are /dev/uio<minor>, and the claim
// response's pa_mmap_offset is region_index * PAGE_SIZE.
type UIOBackend struct{}

func NewUIOBackend() *UIOBackend { return &UIOBackend{} }

func (UIOBackend) Variant() string { return "uio" }

func (UIOBackend) Register(dev *manager.Device) error {
	dev.BaseName = baseName(dev)
	dev.Minor = nextMinor()
	return nil
}

func (UIOBackend) Unregister(dev *manager.Device) error { return nil }

// PathForRegion and PathForEvent both implement "/dev/uio<minor>" (spec.md
// §6): a uio device exposes all its memregions and its single eventsrc
// through the same node, selected by mmap offset or by the fixed 4-byte
// read/write protocol respectively.
func (b UIOBackend) PathForRegion(dev *manager.Device, regionIndex int) string {
	return fmt.Sprintf("/dev/uio%d", dev.Minor)
}

func (b UIOBackend) PathForEvent(dev *manager.Device) string {
	return fmt.Sprintf("/dev/uio%d", dev.Minor)
}

func (UIOBackend) MmapOffset(regionIndex int) int64 {
	return int64(regionIndex) * int64(PageSize)
}

// OpenEventChannel opens the uio device node and wraps its fd in the
// 4-byte-read/write waker of spec.md §4.7: a read returns the cumulative
// interrupt count, a write of 1/0 enables/disables.
func (UIOBackend) OpenEventChannel(dev *manager.Device, path string) (manager.Waker, error) {
	return newFDWaker(path)
}

// MapRegion opens path and mmaps length bytes at offset via
// golang.org/x/sys/unix, the real primitive backing spec.md §4.7's
// memregion.map on this variant.
func (UIOBackend) MapRegion(path string, length uintptr, offset int64) (uintptr, func() error, error) {
	return mmapFile(path, length, offset)
}
