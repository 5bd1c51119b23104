// Package resourceid implements the four-tuple resource-identity scheme and
// the wildcarded search rules of spec.md §4.1: a device is named by
// (group, device, instance), and a memregion or eventsrc within it is named
// by resource.
package resourceid

// MaxStrLen is the wire-record bound on group/device/resource strings,
// including the terminator, matching spec.md §3 and §6.
const MaxStrLen = 128

// ID is the four-tuple resource identifier. Instance == 0 and any empty
// string field are don't-care wildcards in a search.
type ID struct {
	Group    string
	Device   string
	Resource string
	Instance int
}

// Kind distinguishes the two resource types a device can expose.
type Kind uint8

const (
	KindMemRegion Kind = iota
	KindEventSrc
)

func (k Kind) String() string {
	if k == KindEventSrc {
		return "eventsrc"
	}
	return "memregion"
}

// Device is the minimal view of a device descriptor that matching needs:
// its own identity plus lookup of a named child resource of a given kind.
// internal/manager.Device satisfies this.
type Device interface {
	Identity() (group, name string, instance int)
	FindResourceSlot(name string, kind Kind) int // -1 if none found
}

// matchStr reports whether a candidate field matches a query field under
// the empty-string-is-wildcard rule.
func matchStr(query, have string) bool {
	return query == "" || query == have
}

// matchInt reports whether a candidate instance matches a query instance
// under the zero-is-wildcard rule.
func matchInt(query, have int) bool {
	return query == 0 || query == have
}

// Matches implements spec.md §4.1's matches(id, group?, device?, resource?,
// instance?, kind?): each predicate is a don't-care if empty/zero; resource
// is matched by looking for a child of kind inside dev, not by comparing to
// any field of dev itself.
func Matches(dev Device, group, device, resource string, instance int, kind Kind) bool {
	g, n, inst := dev.Identity()
	if !matchStr(group, g) || !matchStr(device, n) || !matchInt(instance, inst) {
		return false
	}
	if resource == "" {
		// An empty resource name is itself a wildcard — satisfied as long
		// as the device exposes at least one slot of kind.
		return dev.FindResourceSlot("", kind) >= 0
	}
	return dev.FindResourceSlot(resource, kind) >= 0
}

// Registry is the minimal view find_device_slot_matching needs: a bounded,
// possibly-sparse array of devices. internal/manager.Registry satisfies
// this via its own (unexported) slot table.
type Registry interface {
	// DeviceAt returns the device at slot, or nil if the slot is empty.
	DeviceAt(slot int) Device
	// Len returns the number of slots in the table.
	Len() int
}

// FindDeviceSlotMatching performs the linear scan of spec.md §4.1's
// find_device_slot_matching, starting at start (inclusive). It returns -1
// if no slot matches.
func FindDeviceSlotMatching(reg Registry, group, device, resource string, instance int, kind Kind, start int) int {
	for i := start; i < reg.Len(); i++ {
		dev := reg.DeviceAt(i)
		if dev == nil {
			continue
		}
		if Matches(dev, group, device, resource, instance, kind) {
			return i
		}
	}
	return -1
}
