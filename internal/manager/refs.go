package manager

import (
	"github.com/cuddl-go/cuddl/internal/cuddlerr"
	"github.com/cuddl-go/cuddl/internal/resourceid"
)

// ResourceRef is spec.md §3/§4.6's outstanding-claim record: a token plus
// the pid that owns it. The registry keeps one list per resource kind so
// the janitor's cleanup walk (spec.md §4.6) can scan each under the global
// lock.
type ResourceRef struct {
	DeviceSlot   int
	ResourceSlot int
	Kind         resourceid.Kind
	OwnerPID     int32
}

// Token is the opaque value spec.md §3/§6 hands back from a successful
// claim and requires back on release.
type Token struct {
	DeviceIndex   int32
	ResourceIndex int32
}

func (r *Registry) refsFor(kind resourceid.Kind) *[]ResourceRef {
	if kind == resourceid.KindEventSrc {
		return &r.eventRefs
	}
	return &r.memRefs
}

// resourceRecordLocked returns the MemRegion or EventSrc record the token names,
// or nil if the slot is empty or the device is gone. Caller must hold mu.
func (r *Registry) resourceRecordLocked(deviceSlot, resourceSlot int, kind resourceid.Kind) (claimer interface {
	Claim(bool) error
	Decrement() error
}, ok bool) {
	if deviceSlot < 0 || deviceSlot >= MaxManagedDevices {
		return nil, false
	}
	dev := r.devices[deviceSlot]
	if dev == nil {
		return nil, false
	}
	switch kind {
	case resourceid.KindMemRegion:
		if resourceSlot < 0 || resourceSlot >= MaxDevMemRegions || dev.Mem[resourceSlot].Empty() {
			return nil, false
		}
		return &dev.Mem[resourceSlot], true
	case resourceid.KindEventSrc:
		if resourceSlot < 0 || resourceSlot >= MaxDevEvents || dev.Events[resourceSlot].Empty() {
			return nil, false
		}
		return &dev.Events[resourceSlot], true
	default:
		return nil, false
	}
}

// ClaimResource claims the named resource (looked up by the full matching
// rules of resourceid.Matches) and, on success, records a ResourceRef for
// pid. It returns the Token, the owning *Device (so callers can read
// flags/lengths for the claim response), and the resolved device/resource
// slots.
func (r *Registry) ClaimResource(group, device, resource string, instance int, kind resourceid.Kind, hostile bool, pid int32) (Token, *Device, int, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	devSlot := resourceid.FindDeviceSlotMatching(r, group, device, resource, instance, kind, 0)
	if devSlot < 0 {
		return Token{}, nil, 0, 0, cuddlerr.New("claim", cuddlerr.NotFound, resource)
	}
	dev := r.devices[devSlot]
	resSlot := dev.FindResourceSlot(resource, kind)
	if resSlot < 0 {
		return Token{}, nil, 0, 0, cuddlerr.New("claim", cuddlerr.NotFound, resource)
	}

	rec, ok := r.resourceRecordLocked(devSlot, resSlot, kind)
	if !ok {
		return Token{}, nil, 0, 0, cuddlerr.New("claim", cuddlerr.NotFound, resource)
	}
	if err := rec.Claim(hostile); err != nil {
		return Token{}, nil, 0, 0, err
	}

	refs := r.refsFor(kind)
	*refs = append(*refs, ResourceRef{DeviceSlot: devSlot, ResourceSlot: resSlot, Kind: kind, OwnerPID: pid})

	return Token{DeviceIndex: int32(devSlot), ResourceIndex: int32(resSlot)}, dev, devSlot, resSlot, nil
}

// ReleaseResource implements spec.md §4.6: a regular release removes
// exactly one matching ref (by token and pid); if none matches, the
// decrement still happens once (a diagnostic is the caller's concern, not
// this method's — see internal/controlproto's handler).
func (r *Registry) ReleaseResource(tok Token, kind resourceid.Kind, pid int32) (matched bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.resourceRecordLocked(int(tok.DeviceIndex), int(tok.ResourceIndex), kind)
	if !ok {
		return false, cuddlerr.New("release", cuddlerr.NotFound, "")
	}
	if err := rec.Decrement(); err != nil {
		return false, err
	}

	refs := r.refsFor(kind)
	for i, ref := range *refs {
		if ref.DeviceSlot == int(tok.DeviceIndex) && ref.ResourceSlot == int(tok.ResourceIndex) && ref.OwnerPID == pid {
			*refs = append((*refs)[:i], (*refs)[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// DecrementRef is the emergency/recovery-tool decrement of spec.md §4.5
// (memregion.decrement_ref / eventsrc.decrement_ref): it bypasses ref
// matching entirely and just decrements the record, for a resource whose
// owner died in a way the janitor missed.
func (r *Registry) DecrementRef(deviceSlot, resourceSlot int, kind resourceid.Kind) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.resourceRecordLocked(deviceSlot, resourceSlot, kind)
	if !ok {
		return 0, cuddlerr.New("decrement_ref", cuddlerr.NotFound, "")
	}
	if err := rec.Decrement(); err != nil {
		return 0, err
	}
	switch kind {
	case resourceid.KindMemRegion:
		return r.devices[deviceSlot].Mem[resourceSlot].RefCount(), nil
	default:
		return r.devices[deviceSlot].Events[resourceSlot].RefCount(), nil
	}
}

// GetRefCount reads a resource's current refcount.
func (r *Registry) GetRefCount(deviceSlot, resourceSlot int, kind resourceid.Kind) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.resourceRecordLocked(deviceSlot, resourceSlot, kind)
	if !ok {
		return 0, cuddlerr.New("get_ref_count", cuddlerr.NotFound, "")
	}
	_ = rec
	switch kind {
	case resourceid.KindMemRegion:
		return r.devices[deviceSlot].Mem[resourceSlot].RefCount(), nil
	default:
		return r.devices[deviceSlot].Events[resourceSlot].RefCount(), nil
	}
}

// CleanupPID implements the janitor's walk (spec.md §4.6): for every
// outstanding ResourceRef owned by pid, decrement the record and drop the
// ref, under the global lock. It returns how many memregion and eventsrc
// refs were dropped, for the cleanup-summary log line.
func (r *Registry) CleanupPID(pid int32) (memDropped, eventDropped int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	memDropped = r.cleanupListLocked(&r.memRefs, pid, resourceid.KindMemRegion)
	eventDropped = r.cleanupListLocked(&r.eventRefs, pid, resourceid.KindEventSrc)
	return
}

func (r *Registry) cleanupListLocked(refs *[]ResourceRef, pid int32, kind resourceid.Kind) int {
	kept := (*refs)[:0]
	dropped := 0
	for _, ref := range *refs {
		if ref.OwnerPID != pid {
			kept = append(kept, ref)
			continue
		}
		if rec, ok := r.resourceRecordLocked(ref.DeviceSlot, ref.ResourceSlot, kind); ok {
			_ = rec.Decrement()
		}
		dropped++
	}
	*refs = kept
	return dropped
}

// ResourceInfo is the read-only snapshot memregion.get_info / eventsrc.get_info
// report (spec.md §4.5): flags and length, resolved without touching the
// record's refcount.
type ResourceInfo struct {
	DeviceSlot   int
	ResourceSlot int
	Flags        ResourceFlags
	Len          uintptr
	PALen        uintptr
	StartOffset  uintptr
}

// GetInfo locates the resource named by the full matching rule and reports
// its current flags/length alongside the owning *Device, so a caller (the
// control-protocol handler) can compute a device path and mapping offset
// the same way a claim response does, without claiming anything.
func (r *Registry) GetInfo(group, device, resource string, instance int, kind resourceid.Kind) (*Device, ResourceInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	devSlot := resourceid.FindDeviceSlotMatching(r, group, device, resource, instance, kind, 0)
	if devSlot < 0 {
		return nil, ResourceInfo{}, cuddlerr.New("get_info", cuddlerr.NotFound, resource)
	}
	dev := r.devices[devSlot]
	resSlot := dev.FindResourceSlot(resource, kind)
	if resSlot < 0 {
		return nil, ResourceInfo{}, cuddlerr.New("get_info", cuddlerr.NotFound, resource)
	}
	switch kind {
	case resourceid.KindMemRegion:
		m := &dev.Mem[resSlot]
		return dev, ResourceInfo{
			DeviceSlot: devSlot, ResourceSlot: resSlot,
			Flags: m.Flags, Len: m.Len, PALen: m.PALen, StartOffset: m.StartOffset,
		}, nil
	default:
		e := &dev.Events[resSlot]
		return dev, ResourceInfo{DeviceSlot: devSlot, ResourceSlot: resSlot, Flags: e.ExportFlags()}, nil
	}
}

// GetIDForSlot implements spec.md §4.5's get_id_for_slot: recover the full
// resourceid.ID naming a given (device slot, resource slot).
func (r *Registry) GetIDForSlot(deviceSlot, resourceSlot int, kind resourceid.Kind) (resourceid.ID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if deviceSlot < 0 || deviceSlot >= MaxManagedDevices || r.devices[deviceSlot] == nil {
		return resourceid.ID{}, cuddlerr.New("get_id_for_slot", cuddlerr.NotFound, "")
	}
	dev := r.devices[deviceSlot]
	var name string
	switch kind {
	case resourceid.KindMemRegion:
		if resourceSlot < 0 || resourceSlot >= MaxDevMemRegions || dev.Mem[resourceSlot].Empty() {
			return resourceid.ID{}, cuddlerr.New("get_id_for_slot", cuddlerr.NotFound, "")
		}
		name = dev.Mem[resourceSlot].Name
	case resourceid.KindEventSrc:
		if resourceSlot < 0 || resourceSlot >= MaxDevEvents || dev.Events[resourceSlot].Empty() {
			return resourceid.ID{}, cuddlerr.New("get_id_for_slot", cuddlerr.NotFound, "")
		}
		name = dev.Events[resourceSlot].Name
	}
	return resourceid.ID{Group: dev.Group, Device: dev.Name, Resource: name, Instance: dev.Instance}, nil
}
