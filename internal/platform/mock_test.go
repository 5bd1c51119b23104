//go:build unix

package platform

import (
	"testing"

	"github.com/cuddl-go/cuddl/internal/manager"
	"go.uber.org/mock/gomock"
)

func TestMockBackendRegisterExpectation(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := NewMockBackend(ctrl)
	dev := &manager.Device{Group: "acme", Name: "widget", Instance: 1}

	m.EXPECT().Register(dev).Return(nil)
	if err := m.Register(dev); err != nil {
		t.Fatal(err)
	}

	m.EXPECT().Unregister(dev).Return(nil)
	if err := m.Unregister(dev); err != nil {
		t.Fatal(err)
	}
}

func TestMockBackendMapRegionReturnsUsableAddress(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := NewMockBackend(ctrl)

	addr, unmap, err := m.MapRegion("/mock/acme.widget.1/mem0", 64, 0)
	if err != nil {
		t.Fatal(err)
	}
	if addr == 0 {
		t.Fatal("expected non-zero fake address")
	}
	if err := unmap(); err != nil {
		t.Fatal(err)
	}
}

func TestMockBackendOpenEventChannelReturnsWaiter(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := NewMockBackend(ctrl)
	dev := &manager.Device{Group: "acme", Name: "widget", Instance: 1}

	w, err := m.OpenEventChannel(dev, "/mock/acme.widget.1/event")
	if err != nil {
		t.Fatal(err)
	}
	if w == nil {
		t.Fatal("expected non-nil waker")
	}
}
