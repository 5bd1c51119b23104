package janitor

import (
	"context"
	"testing"
	"time"

	"github.com/cuddl-go/cuddl/internal/manager"
	"github.com/cuddl-go/cuddl/internal/resourceid"
)

func TestServerCleansUpOnClientDisconnect(t *testing.T) {
	reg := manager.New(nil)
	dev := &manager.Device{Group: "acme", Name: "widget", Instance: 1}
	dev.Mem[0] = manager.MemRegion{Name: "ctrl", Type: manager.MemRegionPhysical, Len: 4096}
	if err := reg.Manage(dev); err != nil {
		t.Fatal(err)
	}

	const pid = int32(777)
	if _, _, _, _, err := reg.ClaimResource("acme", "widget", "ctrl", 1, resourceid.KindMemRegion, false, pid); err != nil {
		t.Fatal(err)
	}

	srv := NewServer(reg)
	addr, err := srv.Start("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Register(ctx, addr, pid)
	if err != nil {
		t.Fatal(err)
	}

	devSlot, err := reg.FindDeviceSlot(dev)
	if err != nil {
		t.Fatal(err)
	}
	before, err := reg.GetRefCount(devSlot, 0, resourceid.KindMemRegion)
	if err != nil {
		t.Fatal(err)
	}
	if before != 1 {
		t.Fatalf("refcount before disconnect = %d, want 1", before)
	}

	if err := client.Close(); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		after, err := reg.GetRefCount(devSlot, 0, resourceid.KindMemRegion)
		if err != nil {
			t.Fatal(err)
		}
		if after == 0 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("refcount never dropped to 0 after client disconnect, still %d", after)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
