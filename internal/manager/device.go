package manager

import (
	"github.com/cuddl-go/cuddl/internal/resourceid"
)

// MaxDevMemRegions and MaxDevEvents are the per-device bounds of spec.md §3.
const (
	MaxDevMemRegions = 5
	MaxDevEvents     = 1
)

// Device aggregates a fixed-size set of memregions and eventsrcs under one
// (group, name, instance) identity (spec.md §3/§4.3).
type Device struct {
	Group    string
	Name     string
	Instance int

	DriverInfo string
	HWInfo     string

	Mem    [MaxDevMemRegions]MemRegion
	Events [MaxDevEvents]EventSrc

	// BaseName is the uniquely generated name private state of spec.md
	// §3 ("uniquely generated base name, OS-level uio/udd handles"); it
	// seeds device-path generation in internal/platform.
	BaseName string

	// Minor is the registration-order index the non-real-time variant
	// assigns (spec.md §6); set by internal/platform on successful
	// registration.
	Minor int
}

// Identity satisfies resourceid.Device.
func (d *Device) Identity() (group, name string, instance int) {
	return d.Group, d.Name, d.Instance
}

// FindResourceSlot satisfies resourceid.Device and spec.md §4.1's
// find_resource_slot: linear scan of the bounded child array, skipping
// empty slots; an empty/null name matches the first non-empty slot.
func (d *Device) FindResourceSlot(name string, kind resourceid.Kind) int {
	switch kind {
	case resourceid.KindMemRegion:
		for i := range d.Mem {
			if d.Mem[i].Empty() {
				continue
			}
			if name == "" || d.Mem[i].Name == name {
				return i
			}
		}
	case resourceid.KindEventSrc:
		for i := range d.Events {
			if d.Events[i].Empty() {
				continue
			}
			if name == "" || d.Events[i].Name == name {
				return i
			}
		}
	}
	return -1
}

// FindMemRegionSlot and FindEventSrcSlot are the named convenience wrappers
// spec.md §4.3 calls out explicitly.
func (d *Device) FindMemRegionSlot(name string) int {
	return d.FindResourceSlot(name, resourceid.KindMemRegion)
}

func (d *Device) FindEventSrcSlot(name string) int {
	return d.FindResourceSlot(name, resourceid.KindEventSrc)
}
