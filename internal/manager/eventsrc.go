package manager

import (
	"sync"

	"github.com/cuddl-go/cuddl/internal/cuddlerr"
)

// IRQNone marks an empty eventsrc slot; IRQCustom marks one whose wakeup is
// driven by something other than a numbered interrupt line (spec.md §3).
const (
	IRQNone   = -1
	IRQCustom = -2
)

// Intr is the interrupt-handler binding a driver shim supplies for an
// eventsrc: enable/disable/is-enabled callbacks plus the IRQ line (or
// IRQNone/IRQCustom) and whether the line itself is shared with other
// devices.
type Intr struct {
	Enable    func()
	Disable   func()
	IsEnabled func() bool
	IRQ       int
	Shared    bool
}

// EventSrc is the reference-counted resource record for an interrupt-driven
// wakeup channel (spec.md §3/§4.2).
type EventSrc struct {
	Name  string
	Flags ResourceFlags
	Intr  Intr

	refLock  sync.Mutex
	refCount int

	Pin   func()
	Unpin func()

	// Waker is the per-platform wakeup primitive backing wait/timed-wait;
	// populated by internal/platform on claim.
	Waker Waker
}

// Waker is the minimal capability an eventsrc needs from a platform
// back-end to support wait/timed-wait/try-wait (spec.md §4.7/§4.9's
// "wait_event" capability).
type Waker interface {
	Wait() (uint64, error)
	TimedWait(sec, nsec int64) (uint64, error)
	Enable() error
	Disable() error
	Close() error
}

func (e *EventSrc) Empty() bool { return e.Intr.IRQ == IRQNone }

func (e *EventSrc) RefCount() int {
	e.refLock.Lock()
	defer e.refLock.Unlock()
	return e.refCount
}

// Claim mirrors MemRegion.Claim; eventsrc claims additionally always report
// FlagWaitable to the caller (spec.md §4.5).
func (e *EventSrc) Claim(hostile bool) error {
	e.refLock.Lock()
	defer e.refLock.Unlock()
	if e.refCount > 0 && e.Flags&FlagShared == 0 && !hostile {
		return cuddlerr.New("eventsrc.claim", cuddlerr.Busy, e.Name)
	}
	e.refCount++
	if e.Pin != nil {
		e.Pin()
	}
	return nil
}

func (e *EventSrc) Decrement() error {
	e.refLock.Lock()
	defer e.refLock.Unlock()
	if e.refCount == 0 {
		return cuddlerr.New("eventsrc.decrement", cuddlerr.Underflow, e.Name)
	}
	e.refCount--
	if e.Unpin != nil {
		e.Unpin()
	}
	return nil
}

// ExportFlags computes the flags a claim response exposes to the client:
// SHARED plus HAS_ENABLE/HAS_DISABLE/HAS_IS_ENABLED reflecting which
// callbacks the driver actually supplied (spec.md §4.5).
func (e *EventSrc) ExportFlags() ResourceFlags {
	f := e.Flags | FlagWaitable
	if e.Intr.Enable != nil {
		f |= FlagHasEnable
	}
	if e.Intr.Disable != nil {
		f |= FlagHasDisable
	}
	if e.Intr.IsEnabled != nil {
		f |= FlagHasIsEnabled
	}
	return f
}

// IsEnabled reports the driver-reported enabled state, or false if the
// driver supplied no is-enabled callback.
func (e *EventSrc) IsEnabled() bool {
	if e.Intr.IsEnabled == nil {
		return false
	}
	return e.Intr.IsEnabled()
}
