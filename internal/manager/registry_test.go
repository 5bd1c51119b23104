package manager

import (
	"testing"

	"github.com/cuddl-go/cuddl/internal/cuddlerr"
)

type fakeOS struct {
	registered, unregistered int
	failRegister             bool
}

func (f *fakeOS) Register(dev *Device) error {
	if f.failRegister {
		return cuddlerr.New("register", cuddlerr.OsError, "forced failure")
	}
	f.registered++
	return nil
}

func (f *fakeOS) Unregister(dev *Device) error {
	f.unregistered++
	return nil
}

func newDevice(group, name string, instance int) *Device {
	dev := &Device{Group: group, Name: name, Instance: instance}
	dev.Events[0].Intr.IRQ = IRQNone
	return dev
}

func TestRegistryManageAssignsInstance(t *testing.T) {
	reg := New(nil)
	dev := newDevice("acme", "widget", 0)
	if err := reg.Manage(dev); err != nil {
		t.Fatal(err)
	}
	if dev.Instance != 1 {
		t.Fatalf("Instance = %d, want 1", dev.Instance)
	}

	dev2 := newDevice("acme", "widget", 0)
	if err := reg.Manage(dev2); err != nil {
		t.Fatal(err)
	}
	if dev2.Instance != 2 {
		t.Fatalf("Instance = %d, want 2", dev2.Instance)
	}
}

func TestRegistryManageRollsBackOnOSFailure(t *testing.T) {
	os := &fakeOS{failRegister: true}
	reg := New(os)
	dev := newDevice("acme", "widget", 1)
	if err := reg.Manage(dev); err == nil {
		t.Fatal("expected Manage to fail")
	}
	if _, err := reg.FindDeviceSlot(dev); err == nil {
		t.Fatal("expected device not to be added when OS registration fails")
	}
}

func TestRegistryManageNormalizesMemRegions(t *testing.T) {
	reg := New(nil)
	dev := newDevice("acme", "widget", 1)
	dev.Mem[0] = MemRegion{Name: "ctrl", Type: MemRegionPhysical, Len: 10}
	if err := reg.Manage(dev); err != nil {
		t.Fatal(err)
	}
	if dev.Mem[0].PALen != DefaultPageSize {
		t.Fatalf("PALen = %d, want %d", dev.Mem[0].PALen, DefaultPageSize)
	}
}

func TestRegistryReleaseUnregisters(t *testing.T) {
	os := &fakeOS{}
	reg := New(os)
	dev := newDevice("acme", "widget", 1)
	if err := reg.Manage(dev); err != nil {
		t.Fatal(err)
	}
	if err := reg.Release(dev); err != nil {
		t.Fatal(err)
	}
	if os.unregistered != 1 {
		t.Fatalf("unregistered = %d, want 1", os.unregistered)
	}
	if _, err := reg.FindDeviceSlot(dev); err == nil {
		t.Fatal("expected device removed from registry")
	}
}

func TestRegistryFull(t *testing.T) {
	reg := New(nil)
	for i := 1; i <= MaxManagedDevices; i++ {
		dev := newDevice("acme", "widget", i)
		if err := reg.Manage(dev); err != nil {
			t.Fatalf("Manage #%d: %v", i, err)
		}
	}
	overflow := newDevice("acme", "widget", MaxManagedDevices+1)
	if err := reg.Manage(overflow); err == nil {
		t.Fatal("expected NoSpace once registry is full")
	}
}

func TestRegistryDriverInfoForSlot(t *testing.T) {
	reg := New(nil)
	dev := newDevice("acme", "widget", 1)
	dev.DriverInfo = "acme-driver v1"
	if err := reg.Manage(dev); err != nil {
		t.Fatal(err)
	}
	slot, err := reg.FindDeviceSlot(dev)
	if err != nil {
		t.Fatal(err)
	}
	info, err := reg.DriverInfoForSlot(slot)
	if err != nil {
		t.Fatal(err)
	}
	if info != "acme-driver v1" {
		t.Fatalf("DriverInfoForSlot = %q, want %q", info, "acme-driver v1")
	}
	if _, err := reg.DriverInfoForSlot(MaxManagedDevices + 1); err == nil {
		t.Fatal("expected NotFound for out-of-range slot")
	}
}

func TestRegistryLockUnlock(t *testing.T) {
	reg := New(nil)
	reg.Lock()
	n := reg.Len()
	reg.Unlock()
	if n != MaxManagedDevices {
		t.Fatalf("Len() = %d, want %d", n, MaxManagedDevices)
	}
}
