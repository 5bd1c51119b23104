//go:build unix

package platform

import (
	"fmt"

	"github.com/cuddl-go/cuddl/internal/manager"
)

// RealtimeBackend implements Backend for the RTDM-style variant of
// spec.md §6: device paths live under /dev/rtdm, pa_mmap_offset is always
// 0 (RTDM hands back a window already positioned at offset 0), and the
// wait primitive is a semaphore rather than a file descriptor.
type RealtimeBackend struct{}

func NewRealtimeBackend() *RealtimeBackend { return &RealtimeBackend{} }

func (RealtimeBackend) Variant() string { return "realtime" }

func (RealtimeBackend) Register(dev *manager.Device) error {
	dev.BaseName = baseName(dev)
	return nil
}

func (RealtimeBackend) Unregister(dev *manager.Device) error { return nil }

// PathForRegion implements "/dev/rtdm/<unique_name>,mapper<N>" (spec.md §6).
func (RealtimeBackend) PathForRegion(dev *manager.Device, regionIndex int) string {
	return fmt.Sprintf("/dev/rtdm/%s,mapper%d", dev.BaseName, regionIndex)
}

// PathForEvent implements "/dev/rtdm/<unique_name>" (spec.md §6).
func (RealtimeBackend) PathForEvent(dev *manager.Device) string {
	return fmt.Sprintf("/dev/rtdm/%s", dev.BaseName)
}

func (RealtimeBackend) MmapOffset(regionIndex int) int64 { return 0 }

// OpenEventChannel backs the RTDM variant's wait primitive with a
// semaphore-style waker instead of a file descriptor (spec.md §3's
// "per-platform wakeup primitive (file descriptor/semaphore)").
func (RealtimeBackend) OpenEventChannel(dev *manager.Device, path string) (manager.Waker, error) {
	return newSemWaker(), nil
}

// MapRegion uses the shared anonymous-mapping primitive: on a real RTDM
// build this would bind the physical window RTDM already reserved: the
// open(path) step is the kernel's contract, this process only needs the
// resulting address range.
func (RealtimeBackend) MapRegion(path string, length uintptr, offset int64) (uintptr, func() error, error) {
	return mmapAnon(length)
}
