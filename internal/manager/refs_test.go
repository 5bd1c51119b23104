package manager

import (
	"github.com/cuddl-go/cuddl/internal/resourceid"
	"testing"
)

func registeredDevice(t *testing.T, reg *Registry) *Device {
	t.Helper()
	dev := newDevice("acme", "widget", 1)
	dev.Mem[0] = MemRegion{Name: "ctrl", Type: MemRegionPhysical, Len: 4096}
	dev.Events[0] = EventSrc{Name: "irq"}
	if err := reg.Manage(dev); err != nil {
		t.Fatal(err)
	}
	return dev
}

func TestClaimAndReleaseResource(t *testing.T) {
	reg := New(nil)
	registeredDevice(t, reg)

	tok, dev, devSlot, resSlot, err := reg.ClaimResource("acme", "widget", "ctrl", 1, resourceid.KindMemRegion, false, 100)
	if err != nil {
		t.Fatal(err)
	}
	if dev.Mem[resSlot].Name != "ctrl" {
		t.Fatalf("unexpected resource slot %d", resSlot)
	}
	if int(tok.DeviceIndex) != devSlot {
		t.Fatalf("token device index mismatch")
	}

	matched, err := reg.ReleaseResource(tok, resourceid.KindMemRegion, 100)
	if err != nil {
		t.Fatal(err)
	}
	if !matched {
		t.Fatal("expected release to match the recorded ref")
	}
	if dev.Mem[resSlot].RefCount() != 0 {
		t.Fatalf("refcount after release = %d, want 0", dev.Mem[resSlot].RefCount())
	}
}

func TestClaimResourceNotFound(t *testing.T) {
	reg := New(nil)
	registeredDevice(t, reg)
	if _, _, _, _, err := reg.ClaimResource("acme", "widget", "missing", 1, resourceid.KindMemRegion, false, 1); err == nil {
		t.Fatal("expected NotFound for unknown resource")
	}
}

func TestGetInfoMemRegion(t *testing.T) {
	reg := New(nil)
	registeredDevice(t, reg)
	dev, info, err := reg.GetInfo("acme", "widget", "ctrl", 1, resourceid.KindMemRegion)
	if err != nil {
		t.Fatal(err)
	}
	if info.Len == 0 {
		t.Fatal("expected normalized Len to be non-zero")
	}
	if dev.Name != "widget" {
		t.Fatalf("unexpected device %q", dev.Name)
	}
}

func TestDecrementRefAndGetRefCount(t *testing.T) {
	reg := New(nil)
	registeredDevice(t, reg)
	_, _, devSlot, resSlot, err := reg.ClaimResource("acme", "widget", "ctrl", 1, resourceid.KindMemRegion, false, 1)
	if err != nil {
		t.Fatal(err)
	}
	n, err := reg.DecrementRef(devSlot, resSlot, resourceid.KindMemRegion)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("new count = %d, want 0", n)
	}
	count, err := reg.GetRefCount(devSlot, resSlot, resourceid.KindMemRegion)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("GetRefCount = %d, want 0", count)
	}
}

func TestGetIDForSlot(t *testing.T) {
	reg := New(nil)
	dev := registeredDevice(t, reg)
	devSlot, err := reg.FindDeviceSlot(dev)
	if err != nil {
		t.Fatal(err)
	}
	id, err := reg.GetIDForSlot(devSlot, 0, resourceid.KindMemRegion)
	if err != nil {
		t.Fatal(err)
	}
	if id.Group != "acme" || id.Device != "widget" || id.Resource != "ctrl" || id.Instance != 1 {
		t.Fatalf("unexpected id %+v", id)
	}
}

func TestCleanupPID(t *testing.T) {
	reg := New(nil)
	registeredDevice(t, reg)
	if _, _, _, _, err := reg.ClaimResource("acme", "widget", "ctrl", 1, resourceid.KindMemRegion, false, 42); err != nil {
		t.Fatal(err)
	}
	if _, _, _, _, err := reg.ClaimResource("acme", "widget", "irq", 1, resourceid.KindEventSrc, false, 42); err != nil {
		t.Fatal(err)
	}
	memDropped, eventDropped := reg.CleanupPID(42)
	if memDropped != 1 || eventDropped != 1 {
		t.Fatalf("CleanupPID = (%d, %d), want (1, 1)", memDropped, eventDropped)
	}
	// A second cleanup for the same pid should find nothing left.
	memDropped, eventDropped = reg.CleanupPID(42)
	if memDropped != 0 || eventDropped != 0 {
		t.Fatalf("second CleanupPID = (%d, %d), want (0, 0)", memDropped, eventDropped)
	}
}
