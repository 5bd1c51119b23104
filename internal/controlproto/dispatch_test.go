//go:build unix

package controlproto

import (
	"encoding/json"
	"testing"

	"github.com/cuddl-go/cuddl/internal/version"
	"go.uber.org/mock/gomock"

	"github.com/cuddl-go/cuddl/internal/manager"
	"github.com/cuddl-go/cuddl/internal/platform"
)

func TestDispatchUnknownCommand(t *testing.T) {
	h := New(manager.New(nil), platform.NewUIOBackend())
	if _, err := h.Dispatch(Command(250), nil); err == nil {
		t.Fatal("expected an error for an unknown command")
	}
}

func TestDispatchMalformedPayload(t *testing.T) {
	h := New(manager.New(nil), platform.NewUIOBackend())
	if _, err := h.Dispatch(CmdLimitsMaxDevices, []byte("not json")); err == nil {
		t.Fatal("expected an error for a malformed payload")
	}
}

func TestDispatchLimitsRoundTrip(t *testing.T) {
	h := New(manager.New(nil), platform.NewUIOBackend())
	req, err := json.Marshal(LimitsRequest{VersionCode: version.Current})
	if err != nil {
		t.Fatal(err)
	}
	raw, err := h.Dispatch(CmdLimitsMaxDevices, req)
	if err != nil {
		t.Fatal(err)
	}
	var resp LimitsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Value != manager.MaxManagedDevices {
		t.Fatalf("Value = %d, want %d", resp.Value, manager.MaxManagedDevices)
	}
}

func TestDispatchMemRegionClaim(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := platform.NewMockBackend(ctrl)
	backend.EXPECT().Register(gomock.Any()).Return(nil)

	reg := manager.New(backend)
	dev := &manager.Device{Group: "acme", Name: "widget", Instance: 1}
	dev.Mem[0] = manager.MemRegion{Name: "ctrl", Type: manager.MemRegionPhysical, Len: 4096}
	if err := reg.Manage(dev); err != nil {
		t.Fatal(err)
	}

	h := New(reg, backend)
	req, err := json.Marshal(ClaimRequest{
		VersionCode: version.Current,
		PID:         1,
		ID:          ResourceIDWire{Group: "acme", Device: "widget", Resource: "ctrl", Instance: 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	raw, err := h.Dispatch(CmdMemRegionClaim, req)
	if err != nil {
		t.Fatal(err)
	}
	var resp ClaimResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatal(err)
	}
	if resp.DevicePath == "" {
		t.Fatal("expected a device path in the claim response")
	}
}
