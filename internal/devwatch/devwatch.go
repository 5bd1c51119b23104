// Package devwatch is the concrete realization of spec.md §1's "driver shim
// registers a device" external collaborator: the shim process itself is out
// of scope, but it has to hand the core something, and a watched directory
// of JSON device descriptors is the mechanism this expansion chooses. It
// reuses the teacher's internal/runtime/vfs watcher abstraction (backed by
// github.com/fsnotify/fsnotify) instead of hand-rolling a second watch loop.
package devwatch

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/cuddl-go/cuddl/internal/cuddlerr"
	"github.com/cuddl-go/cuddl/internal/klog"
	"github.com/cuddl-go/cuddl/internal/manager"
	"github.com/cuddl-go/cuddl/internal/runtime/vfs"
)

// Descriptor is the JSON shape a driver shim drops into the watched
// directory to register one device.
type Descriptor struct {
	Group      string                `json:"group"`
	Name       string                `json:"name"`
	Instance   int                   `json:"instance"`
	DriverInfo string                `json:"driver_info"`
	HWInfo     string                `json:"hw_info"`
	Mem        []MemRegionDescriptor `json:"mem"`
	Events     []EventSrcDescriptor  `json:"events"`
}

// MemRegionDescriptor is one entry of Descriptor.Mem.
type MemRegionDescriptor struct {
	Name        string  `json:"name"`
	PAAddr      uintptr `json:"pa_addr"`
	PALen       uintptr `json:"pa_len"`
	StartOffset uintptr `json:"start_offset"`
	Len         uintptr `json:"len"`
	Shared      bool    `json:"shared"`
}

// EventSrcDescriptor is one entry of Descriptor.Events. IRQ of 0 means the
// shim's wakeup is not tied to a numbered interrupt line (manager.IRQCustom).
type EventSrcDescriptor struct {
	Name   string `json:"name"`
	Shared bool   `json:"shared"`
	IRQ    int    `json:"irq"`
}

var (
	errEmptyIdentity = cuddlerr.New("devwatch.decode", cuddlerr.Invalid, "group/name required")
	errTooManyRegions = cuddlerr.New("devwatch.decode", cuddlerr.Invalid, "too many memregions")
	errTooManyEvents  = cuddlerr.New("devwatch.decode", cuddlerr.Invalid, "too many eventsrcs")
)

// toDevice converts a decoded Descriptor into a *manager.Device ready for
// Registry.Manage, rejecting anything that would overflow the bounded
// per-device arrays of spec.md §3 ("defining a 6th memregion is rejected at
// register time").
func (d Descriptor) toDevice() (*manager.Device, error) {
	if d.Group == "" || d.Name == "" {
		return nil, errEmptyIdentity
	}
	if len(d.Mem) > manager.MaxDevMemRegions {
		return nil, errTooManyRegions
	}
	if len(d.Events) > manager.MaxDevEvents {
		return nil, errTooManyEvents
	}

	dev := &manager.Device{
		Group:      d.Group,
		Name:       d.Name,
		Instance:   d.Instance,
		DriverInfo: d.DriverInfo,
		HWInfo:     manager.DefaultHWInfo(d.HWInfo),
	}
	for i := range dev.Events {
		dev.Events[i].Intr.IRQ = manager.IRQNone
	}

	for i, m := range d.Mem {
		var flags manager.ResourceFlags
		if m.Shared {
			flags |= manager.FlagShared
		}
		dev.Mem[i] = manager.MemRegion{
			Name:        m.Name,
			PAAddr:      m.PAAddr,
			PALen:       m.PALen,
			StartOffset: m.StartOffset,
			Len:         m.Len,
			Type:        manager.MemRegionPhysical,
			Flags:       flags,
		}
	}
	for i, e := range d.Events {
		var flags manager.ResourceFlags
		if e.Shared {
			flags |= manager.FlagShared
		}
		irq := e.IRQ
		if irq == 0 {
			irq = manager.IRQCustom
		}
		dev.Events[i] = manager.EventSrc{Name: e.Name, Flags: flags, Intr: manager.Intr{IRQ: irq}}
	}
	return dev, nil
}

// Watcher watches dir for dropped device-descriptor files and calls
// registry.Manage for each one it can decode.
type Watcher struct {
	registry *manager.Registry
	watcher  vfs.Watcher
	dir      string
	done     chan struct{}
}

// New starts watching dir. Files already present at startup are scanned
// once before the watch loop begins.
func New(registry *manager.Registry, dir string) (*Watcher, error) {
	fw, err := vfs.NewFSWatcher()
	if err != nil {
		return nil, cuddlerr.Wrap("devwatch.new", err)
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, cuddlerr.Wrap("devwatch.watch_dir", err)
	}

	w := &Watcher{registry: registry, watcher: fw, dir: dir, done: make(chan struct{})}
	w.scanExisting()
	go w.loop()
	return w, nil
}

func (w *Watcher) scanExisting() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		w.manageFile(filepath.Join(w.dir, e.Name()))
	}
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.watcher.Events():
			if !ok {
				return
			}
			if ev.Op&vfs.OpCreate == 0 && ev.Op&vfs.OpWrite == 0 {
				continue
			}
			if !strings.HasSuffix(ev.Path, ".json") {
				continue
			}
			w.manageFile(ev.Path)
		case err, ok := <-w.watcher.Errors():
			if !ok {
				return
			}
			klog.Warn("devwatch: %v", err)
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) manageFile(path string) {
	raw, err := os.ReadFile(path)
	if err != nil {
		klog.Warn("devwatch: reading %s: %v", path, err)
		return
	}
	var desc Descriptor
	if err := json.Unmarshal(raw, &desc); err != nil {
		klog.Warn("devwatch: decoding %s: %v", path, err)
		return
	}
	dev, err := desc.toDevice()
	if err != nil {
		klog.Warn("devwatch: %s: %v", path, err)
		return
	}

	// fsnotify can fire more than one write event for a single save; take
	// the registry lock directly (the scoped manager_lock/manager_unlock
	// pair of spec.md §5, exposed for exactly this kind of in-process
	// collaborator) to check for an already-registered device with the
	// same explicit identity before calling Manage, so a duplicate event
	// doesn't register the same device twice under a fresh instance id.
	if dev.Instance != 0 && w.alreadyManagedLocked(dev) {
		klog.Debugf("devwatch: %s already registered, skipping %s", dev.Name, path)
		return
	}

	if err := w.registry.Manage(dev); err != nil {
		klog.Warn("devwatch: managing device from %s: %v", path, err)
		return
	}
	klog.Info("devwatch: registered %s.%s.%d from %s", dev.Group, dev.Name, dev.Instance, path)
}

// alreadyManagedLocked scans the registry under its explicit Lock/Unlock
// pair for a device matching dev's (group, name, instance) identity.
func (w *Watcher) alreadyManagedLocked(dev *manager.Device) bool {
	w.registry.Lock()
	defer w.registry.Unlock()
	for i := 0; i < w.registry.Len(); i++ {
		existing := w.registry.DeviceAt(i)
		if existing == nil {
			continue
		}
		group, name, instance := existing.Identity()
		if group == dev.Group && name == dev.Name && instance == dev.Instance {
			return true
		}
	}
	return false
}

// Close stops the watch loop.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
