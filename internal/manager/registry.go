package manager

import (
	"sync"

	"github.com/cuddl-go/cuddl/internal/cuddlerr"
	"github.com/cuddl-go/cuddl/internal/resourceid"
)

// MaxManagedDevices bounds the registry's device table (spec.md §3).
const MaxManagedDevices = 256

// OSRegistrar is the platform back-end's device-registration capability
// (spec.md §4.4/§4.9 and §9's open question: "register the device with the
// host OS" is a required but unspecified primitive supplied by the
// platform back-end). It is the one step allowed to block outside the
// registry's own lock.
type OSRegistrar interface {
	Register(dev *Device) error
	Unregister(dev *Device) error
}

// noopRegistrar satisfies OSRegistrar for registries built without a
// platform back-end (used by tests).
type noopRegistrar struct{}

func (noopRegistrar) Register(*Device) error   { return nil }
func (noopRegistrar) Unregister(*Device) error { return nil }

// Registry is the bounded, lock-protected device table of spec.md §4.4. It
// also owns the two outstanding-ResourceRef lists of spec.md §4.4/§4.6,
// since the janitor's cleanup walk runs under this same global lock.
type Registry struct {
	mu      sync.Mutex
	devices [MaxManagedDevices]*Device
	os      OSRegistrar

	memRefs   []ResourceRef
	eventRefs []ResourceRef
}

// New creates an empty registry backed by os (the platform's registrar). A
// nil os uses a no-op registrar, useful for tests that only exercise
// registry bookkeeping.
func New(os OSRegistrar) *Registry {
	if os == nil {
		os = noopRegistrar{}
	}
	return &Registry{os: os}
}

// Lock and Unlock expose the explicit manager_lock/manager_unlock scoped
// acquisition of spec.md §5 and §9's design notes, for callers that must
// hold the registry across a sequence of operations (e.g. internal/devwatch's
// duplicate-device check). Len and DeviceAt take no lock and are the only
// methods safe to call while holding it; the other Registry methods take
// this lock internally for their own duration.
func (r *Registry) Lock()   { r.mu.Lock() }
func (r *Registry) Unlock() { r.mu.Unlock() }

// Len and DeviceAt satisfy resourceid.Registry.
func (r *Registry) Len() int { return MaxManagedDevices }

func (r *Registry) DeviceAt(slot int) resourceid.Device {
	d := r.devices[slot]
	if d == nil {
		return nil
	}
	return d
}

// deviceAtRaw returns the concrete *Device at slot, or nil.
func (r *Registry) deviceAtRaw(slot int) *Device { return r.devices[slot] }

// FindDeviceSlot returns the slot index holding dev, compared by pointer
// identity, or NotFound.
func (r *Registry) FindDeviceSlot(dev *Device) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findDeviceSlotLocked(dev)
}

func (r *Registry) findDeviceSlotLocked(dev *Device) (int, error) {
	for i, d := range r.devices {
		if d == dev {
			return i, nil
		}
	}
	return -1, cuddlerr.New("find_device_slot", cuddlerr.NotFound, "")
}

// findEmptySlotLocked returns the first index whose pointer is nil.
func (r *Registry) findEmptySlotLocked() (int, error) {
	for i, d := range r.devices {
		if d == nil {
			return i, nil
		}
	}
	return -1, cuddlerr.New("find_empty_slot", cuddlerr.NoSpace, "")
}

// AddDevice stores dev in the first empty slot (spec.md §4.4).
func (r *Registry) AddDevice(dev *Device) (int, error) {
	if dev.Group == "" || dev.Name == "" {
		return -1, cuddlerr.New("add_device", cuddlerr.Invalid, "group/name required")
	}
	if dev.Instance <= 0 {
		return -1, cuddlerr.New("add_device", cuddlerr.Invalid, "instance must be > 0")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	slot, err := r.findEmptySlotLocked()
	if err != nil {
		return -1, cuddlerr.New("add_device", cuddlerr.NoSpace, "registry full")
	}
	r.devices[slot] = dev
	return slot, nil
}

// RemoveDevice clears dev's slot.
func (r *Registry) RemoveDevice(dev *Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	slot, err := r.findDeviceSlotLocked(dev)
	if err != nil {
		return cuddlerr.New("remove_device", cuddlerr.NotFound, "")
	}
	r.devices[slot] = nil
	return nil
}

// DriverInfoForSlot and HWInfoForSlot implement spec.md §4.5's
// driver_info.for_slot / hw_info.for_slot: read back the string a driver
// shim supplied at register time for the device at slot.
func (r *Registry) DriverInfoForSlot(slot int) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if slot < 0 || slot >= MaxManagedDevices || r.devices[slot] == nil {
		return "", cuddlerr.New("driver_info.for_slot", cuddlerr.NotFound, "")
	}
	return r.devices[slot].DriverInfo, nil
}

func (r *Registry) HWInfoForSlot(slot int) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if slot < 0 || slot >= MaxManagedDevices || r.devices[slot] == nil {
		return "", cuddlerr.New("hw_info.for_slot", cuddlerr.NotFound, "")
	}
	return r.devices[slot].HWInfo, nil
}

// NextAvailableInstanceID implements spec.md §4.4: starting from instance
// 1, find the smallest positive integer not already registered for dev's
// (group, name).
func (r *Registry) NextAvailableInstanceID(group, name string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nextAvailableInstanceIDLocked(group, name)
}

func (r *Registry) nextAvailableInstanceIDLocked(group, name string) (int, error) {
	for candidate := 1; candidate <= MaxManagedDevices; candidate++ {
		taken := false
		for _, d := range r.devices {
			if d != nil && d.Group == group && d.Name == name && d.Instance == candidate {
				taken = true
				break
			}
		}
		if !taken {
			return candidate, nil
		}
	}
	return -1, cuddlerr.New("next_available_instance_id", cuddlerr.NoSpace, "")
}

// Manage validates dev, auto-allocates its instance id if needed, registers
// it with the host OS (via the platform back-end, outside the lock since
// that step may block), and adds it to the registry. It rolls back on
// partial failure (spec.md §4.4).
func (r *Registry) Manage(dev *Device) error {
	if dev.Group == "" || dev.Name == "" {
		return cuddlerr.New("manage", cuddlerr.Invalid, "group/name required")
	}

	if dev.Instance == 0 {
		r.mu.Lock()
		id, err := r.nextAvailableInstanceIDLocked(dev.Group, dev.Name)
		r.mu.Unlock()
		if err != nil {
			return err
		}
		dev.Instance = id
	}

	for i := range dev.Mem {
		if !dev.Mem[i].Empty() {
			dev.Mem[i].Normalize(DefaultPageSize)
		}
	}

	// OS-level registration is the only step allowed to drop the lock
	// implicitly (spec.md §4.4): it runs unlocked so concurrent Manage
	// calls for distinct devices only serialize on the bookkeeping below,
	// not on however long the host kernel takes to register a device.
	if err := r.os.Register(dev); err != nil {
		return cuddlerr.Wrap("manage", err)
	}

	if _, err := r.AddDevice(dev); err != nil {
		_ = r.os.Unregister(dev)
		return err
	}
	return nil
}

// Release unregisters dev from both the registry and the host OS,
// returning the first non-nil failure (spec.md §4.4).
func (r *Registry) Release(dev *Device) error {
	err := r.RemoveDevice(dev)
	uerr := r.os.Unregister(dev)
	if err != nil {
		return err
	}
	if uerr != nil {
		return cuddlerr.Wrap("release", uerr)
	}
	return nil
}
