package devwatch

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuddl-go/cuddl/internal/manager"
)

func TestDescriptorToDeviceRejectsEmptyIdentity(t *testing.T) {
	var d Descriptor
	if _, err := d.toDevice(); err != errEmptyIdentity {
		t.Fatalf("expected errEmptyIdentity, got %v", err)
	}
}

func TestDescriptorToDeviceRejectsTooManyRegions(t *testing.T) {
	d := Descriptor{Group: "acme", Name: "widget", Instance: 1}
	for i := 0; i <= manager.MaxDevMemRegions; i++ {
		d.Mem = append(d.Mem, MemRegionDescriptor{Name: "r"})
	}
	if _, err := d.toDevice(); err != errTooManyRegions {
		t.Fatalf("expected errTooManyRegions, got %v", err)
	}
}

func TestDescriptorToDeviceSuccess(t *testing.T) {
	d := Descriptor{
		Group: "acme", Name: "widget", Instance: 1,
		Mem:    []MemRegionDescriptor{{Name: "ctrl", Len: 4096, Shared: true}},
		Events: []EventSrcDescriptor{{Name: "irq"}},
	}
	dev, err := d.toDevice()
	if err != nil {
		t.Fatal(err)
	}
	if dev.Mem[0].Name != "ctrl" || dev.Mem[0].Flags&manager.FlagShared == 0 {
		t.Fatalf("unexpected mem region %+v", dev.Mem[0])
	}
	if dev.Events[0].Intr.IRQ != manager.IRQCustom {
		t.Fatalf("expected default IRQCustom, got %d", dev.Events[0].Intr.IRQ)
	}
}

func TestWatcherRegistersDroppedDescriptor(t *testing.T) {
	dir := t.TempDir()
	reg := manager.New(nil)

	w, err := New(reg, dir)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	desc := Descriptor{
		Group: "acme", Name: "widget", Instance: 1,
		Mem: []MemRegionDescriptor{{Name: "ctrl", Len: 4096}},
	}
	raw, err := json.Marshal(desc)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "widget.json"), raw, 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		if reg.Len() > 0 {
			found := false
			for i := 0; i < reg.Len(); i++ {
				if d := reg.DeviceAt(i); d != nil {
					group, name, instance := d.Identity()
					if group == "acme" && name == "widget" && instance == 1 {
						found = true
						break
					}
				}
			}
			if found {
				return
			}
		}
		if time.Now().After(deadline) {
			t.Fatal("device was never registered from the watched descriptor")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestAlreadyManagedLockedDetectsDuplicate(t *testing.T) {
	dir := t.TempDir()
	reg := manager.New(nil)
	dev := &manager.Device{Group: "acme", Name: "widget", Instance: 1}
	if err := reg.Manage(dev); err != nil {
		t.Fatal(err)
	}

	w, err := New(reg, dir)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	dup := &manager.Device{Group: "acme", Name: "widget", Instance: 1}
	if !w.alreadyManagedLocked(dup) {
		t.Fatal("expected duplicate identity to be detected")
	}

	distinct := &manager.Device{Group: "acme", Name: "widget", Instance: 2}
	if w.alreadyManagedLocked(distinct) {
		t.Fatal("expected distinct instance not to be flagged as a duplicate")
	}
}
