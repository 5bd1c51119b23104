package controlproto

import (
	"context"
	"testing"
	"time"

	"github.com/cuddl-go/cuddl/internal/manager"
	"github.com/cuddl-go/cuddl/internal/platform"
	"github.com/cuddl-go/cuddl/internal/version"
)

func TestServerClientRoundTrip(t *testing.T) {
	h := New(manager.New(nil), platform.NewUIOBackend())
	srv := NewServer(h)
	addr, err := srv.Start("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Dial(ctx, addr)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	var resp LimitsResponse
	if err := client.Call(ctx, CmdLimitsMaxDevices, LimitsRequest{VersionCode: version.Current}, &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Value != manager.MaxManagedDevices {
		t.Fatalf("Value = %d, want %d", resp.Value, manager.MaxManagedDevices)
	}
}

func TestServerClientPropagatesHandlerError(t *testing.T) {
	h := New(manager.New(nil), platform.NewUIOBackend())
	srv := NewServer(h)
	addr, err := srv.Start("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Dial(ctx, addr)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	req := GetInfoRequest{VersionCode: version.Current, ID: ResourceIDWire{Group: "nobody", Device: "nothing", Resource: "nothing", Instance: 1}}
	var resp GetInfoResponse
	if err := client.Call(ctx, CmdMemRegionGetInfo, req, &resp); err == nil {
		t.Fatal("expected a NotFound error for an unregistered resource")
	}
}
