//go:build unix

package platform

import (
	"encoding/binary"
	"time"
	"unsafe"

	"github.com/cuddl-go/cuddl/internal/cuddlerr"
	"golang.org/x/sys/unix"
)

// mmapFile opens path and maps length bytes starting at offset, the real
// primitive behind spec.md §4.7's memregion.map on the uio variant. It
// mirrors the teacher's internal/runtime/asyncio zero-copy helpers' use of
// golang.org/x/sys/unix for raw syscalls rather than the higher-level os/
// mmap-less APIs.
func mmapFile(path string, length uintptr, offset int64) (uintptr, func() error, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_SYNC, 0)
	if err != nil {
		return 0, nil, cuddlerr.Wrap("mmap.open", err)
	}
	data, err := unix.Mmap(fd, offset, int(length), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = unix.Close(fd)
		return 0, nil, cuddlerr.Wrap("mmap", err)
	}
	addr := uintptr(unsafe.Pointer(&data[0]))
	unmap := func() error {
		err := unix.Munmap(data)
		if cerr := unix.Close(fd); err == nil {
			err = cerr
		}
		return err
	}
	return addr, unmap, nil
}

// mmapAnon backs the realtime variant's MapRegion: RTDM has already bound
// the physical window by the time this process opens it, so there is no
// separate device fd for this process to mmap here; an anonymous mapping
// of the same length stands in for "the window RTDM already reserved".
func mmapAnon(length uintptr) (uintptr, func() error, error) {
	data, err := unix.Mmap(-1, 0, int(length), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_SHARED)
	if err != nil {
		return 0, nil, cuddlerr.Wrap("mmap_anon", err)
	}
	addr := uintptr(unsafe.Pointer(&data[0]))
	unmap := func() error { return unix.Munmap(data) }
	return addr, unmap, nil
}

// MapFile is the exported form of mmapFile, reused client-side: memregion.map
// (spec.md §4.7) performs this same primitive in the calling process, not in
// the manager.
func MapFile(path string, length uintptr, offset int64) (uintptr, func() error, error) {
	return mmapFile(path, length, offset)
}

// MapAnon is the exported form of mmapAnon, for a client mapping a
// real-time-variant region whose path carries no separate fd to open.
func MapAnon(length uintptr) (uintptr, func() error, error) {
	return mmapAnon(length)
}

// OpenWaker opens the per-platform wakeup primitive for an eventsrc client-
// side. uioStyle selects the 4-byte-read/write file-descriptor waker
// (non-real-time variant); otherwise a semaphore-style waker stands in for
// the real-time variant's primitive.
func OpenWaker(path string, uioStyle bool) (manager.Waker, error) {
	if uioStyle {
		return newFDWaker(path)
	}
	return newSemWaker(), nil
}

// fdWaker implements manager.Waker for the non-real-time variant: wait is a
// 4-byte read of the eventsrc descriptor, returning the cumulative
// interrupt count since boot (spec.md §4.7).
type fdWaker struct {
	fd int
}

func newFDWaker(path string) (*fdWaker, error) {
	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		return nil, cuddlerr.Wrap("eventsrc.open", err)
	}
	return &fdWaker{fd: fd}, nil
}

func (w *fdWaker) Wait() (uint64, error) {
	var buf [4]byte
	n, err := unix.Read(w.fd, buf[:])
	if err != nil {
		// A signal interruption surfaces as an OS-level error to the
		// caller; spec.md §5 says the library does not auto-retry.
		return 0, cuddlerr.Wrap("eventsrc.wait", err)
	}
	if n != 4 {
		return 0, cuddlerr.New("eventsrc.wait", cuddlerr.TransportError, "short read")
	}
	return uint64(binary.LittleEndian.Uint32(buf[:])), nil
}

func (w *fdWaker) TimedWait(sec, nsec int64) (uint64, error) {
	fds := []unix.PollFd{{Fd: int32(w.fd), Events: unix.POLLIN}}
	timeoutMs := int(sec*1000 + nsec/1_000_000)
	n, err := unix.Poll(fds, timeoutMs)
	if err != nil {
		return 0, cuddlerr.Wrap("eventsrc.timed_wait", err)
	}
	if n == 0 {
		return 0, cuddlerr.New("eventsrc.timed_wait", cuddlerr.Timeout, "")
	}
	return w.Wait()
}

func (w *fdWaker) Close() error { return unix.Close(w.fd) }

// Enable and Disable perform the 4-byte write of 1/0 spec.md §4.7 specifies;
// they are no-ops from the record's perspective if the driver supplied no
// matching callback, but the write to the descriptor (and thus the
// caller's success) still happens.
func (w *fdWaker) Enable() error  { return w.write4(1) }
func (w *fdWaker) Disable() error { return w.write4(0) }

func (w *fdWaker) write4(v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := unix.Write(w.fd, buf[:])
	if err != nil {
		return cuddlerr.Wrap("eventsrc.enable_disable", err)
	}
	return nil
}

// semWaker implements manager.Waker for the real-time variant using a
// buffered channel as the semaphore primitive spec.md §3 allows in place
// of a file descriptor.
type semWaker struct {
	ch    chan struct{}
	count uint64
}

func newSemWaker() *semWaker {
	return &semWaker{ch: make(chan struct{}, 1<<20)}
}

func (w *semWaker) post() {
	w.count++
	select {
	case w.ch <- struct{}{}:
	default:
	}
}

func (w *semWaker) Wait() (uint64, error) {
	<-w.ch
	return w.count, nil
}

func (w *semWaker) TimedWait(sec, nsec int64) (uint64, error) {
	d := time.Duration(sec)*time.Second + time.Duration(nsec)*time.Nanosecond
	select {
	case <-w.ch:
		return w.count, nil
	case <-time.After(d):
		return 0, cuddlerr.New("eventsrc.timed_wait", cuddlerr.Timeout, "")
	}
}

// Enable and Disable are no-ops on the real-time variant's semaphore
// primitive: there is no descriptor to write 4 bytes to, so the caller
// still observes success (spec.md §4.7).
func (w *semWaker) Enable() error  { return nil }
func (w *semWaker) Disable() error { return nil }

func (w *semWaker) Close() error { close(w.ch); return nil }
