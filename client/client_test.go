package client

import (
	"context"
	"testing"
	"time"

	"github.com/cuddl-go/cuddl/internal/controlproto"
	"github.com/cuddl-go/cuddl/internal/cuddlerr"
	"github.com/cuddl-go/cuddl/internal/janitor"
	"github.com/cuddl-go/cuddl/internal/manager"
	"github.com/cuddl-go/cuddl/internal/platform"
)

func startTestServers(t *testing.T) Options {
	t.Helper()
	backend := platform.NewUIOBackend()
	reg := manager.New(backend)
	dev := &manager.Device{Group: "acme", Name: "widget", Instance: 1}
	dev.Mem[0] = manager.MemRegion{Name: "ctrl", Type: manager.MemRegionPhysical, Len: 4096}
	dev.Events[0] = manager.EventSrc{Name: "irq"}
	if err := reg.Manage(dev); err != nil {
		t.Fatal(err)
	}

	ctlSrv := controlproto.NewServer(controlproto.New(reg, backend))
	ctlAddr, err := ctlSrv.Start("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ctlSrv.Stop() })

	janSrv := janitor.NewServer(reg)
	janAddr, err := janSrv.Start("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = janSrv.Stop() })

	return Options{ControlAddr: ctlAddr, JanitorAddr: janAddr}
}

func TestOpenCloseRoundTrip(t *testing.T) {
	opts := startTestServers(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Open(ctx, opts)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestMemRegionClaimGetInfoRelease(t *testing.T) {
	opts := startTestServers(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Open(ctx, opts)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	m, err := c.MemRegionClaim(ctx, "acme", "widget", "ctrl", 1, false)
	if err != nil {
		t.Fatal(err)
	}
	if m.Info().Len == 0 {
		t.Fatal("expected non-zero Len")
	}

	info, err := c.MemRegionGetInfo(ctx, "acme", "widget", "ctrl", 1)
	if err != nil {
		t.Fatal(err)
	}
	if info.Len != m.Info().Len {
		t.Fatalf("GetInfo().Len = %d, want %d", info.Len, m.Info().Len)
	}

	if err := m.Release(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestEventSrcClaimGetRefCountDecrementRelease(t *testing.T) {
	opts := startTestServers(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Open(ctx, opts)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	e, err := c.EventSrcClaim(ctx, "acme", "widget", "irq", 1, false)
	if err != nil {
		t.Fatal(err)
	}

	count, err := c.EventSrcGetRefCount(ctx, "acme", "widget", "irq", 1)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("GetRefCount = %d, want 1", count)
	}

	newCount, err := c.EventSrcDecrementRef(ctx, "acme", "widget", "irq", 1)
	if err != nil {
		t.Fatal(err)
	}
	if newCount != 0 {
		t.Fatalf("DecrementRef = %d, want 0", newCount)
	}

	// DecrementRef already brought the count to 0, so the regular release
	// decrements an empty record and reports Underflow.
	if err := e.Release(ctx); !cuddlerr.Is(err, cuddlerr.Underflow) {
		t.Fatalf("Release after DecrementRef = %v, want Underflow", err)
	}
}

func TestLimitsAndVersion(t *testing.T) {
	opts := startTestServers(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Open(ctx, opts)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	maxDevices, err := c.MaxDevices(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if maxDevices != manager.MaxManagedDevices {
		t.Fatalf("MaxDevices = %d, want %d", maxDevices, manager.MaxManagedDevices)
	}

	code, err := c.VersionCode(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if code == 0 {
		t.Fatal("expected a non-zero version code")
	}
}
