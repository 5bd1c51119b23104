//go:build unix

package platform

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/cuddl-go/cuddl/internal/manager"
	"go.uber.org/mock/gomock"
)

// MockBackend is a hand-written go.uber.org/mock/gomock mock of Backend, in
// the shape mockgen would emit, so internal/controlproto's tests can exercise
// Manage/Release and claim/map flows without a real uio or rtdm device tree
// present (the teacher pulls in go.uber.org/mock for exactly this purpose in
// its own package tests).
type MockBackend struct {
	ctrl     *gomock.Controller
	recorder *MockBackendRecorder
}

type MockBackendRecorder struct{ mock *MockBackend }

func NewMockBackend(ctrl *gomock.Controller) *MockBackend {
	m := &MockBackend{ctrl: ctrl}
	m.recorder = &MockBackendRecorder{m}
	return m
}

func (m *MockBackend) EXPECT() *MockBackendRecorder { return m.recorder }

func (m *MockBackend) Register(dev *manager.Device) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Register", dev)
	err, _ := ret[0].(error)
	return err
}

func (mr *MockBackendRecorder) Register(dev interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Register",
		reflect.TypeOf((*MockBackend)(nil).Register), dev)
}

func (m *MockBackend) Unregister(dev *manager.Device) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Unregister", dev)
	err, _ := ret[0].(error)
	return err
}

func (mr *MockBackendRecorder) Unregister(dev interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Unregister",
		reflect.TypeOf((*MockBackend)(nil).Unregister), dev)
}

func (m *MockBackend) Variant() string { return "mock" }

func (m *MockBackend) PathForRegion(dev *manager.Device, regionIndex int) string {
	return fmt.Sprintf("/mock/%s/mem%d", dev.BaseName, regionIndex)
}

func (m *MockBackend) PathForEvent(dev *manager.Device) string {
	return fmt.Sprintf("/mock/%s/event", dev.BaseName)
}

func (m *MockBackend) MmapOffset(regionIndex int) int64 { return int64(regionIndex) * PageSize }

// OpenEventChannel hands back a fresh semWaker and opens no descriptor. Its
// post method is unexported, so code outside this package cannot trigger a
// wakeup on it.
func (m *MockBackend) OpenEventChannel(dev *manager.Device, path string) (manager.Waker, error) {
	return newSemWaker(), nil
}

// MapRegion backs claims in tests with a plain heap buffer instead of a real
// mmap: the returned address is only ever read back through unsafe.Pointer
// by test code that knows it is not a real device window.
func (m *MockBackend) MapRegion(path string, length uintptr, offset int64) (uintptr, func() error, error) {
	buf := make([]byte, length)
	addr := uintptr(unsafe.Pointer(&buf[0]))
	unmap := func() error {
		// buf is kept alive by the closure until unmap is called so addr
		// stays valid for the lifetime of the fake mapping.
		buf = nil
		return nil
	}
	return addr, unmap, nil
}
