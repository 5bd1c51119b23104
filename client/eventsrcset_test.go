package client

import (
	"testing"
	"time"
)

type fakeWaker struct {
	delay  time.Duration
	fail   bool
	count  uint64
}

func (f *fakeWaker) Wait() (uint64, error) { return f.TimedWait(0, 0) }

func (f *fakeWaker) TimedWait(sec, nsec int64) (uint64, error) {
	if f.fail {
		time.Sleep(f.delay)
		return 0, errTimedOutFake
	}
	time.Sleep(f.delay)
	return f.count, nil
}

func (f *fakeWaker) Enable() error  { return nil }
func (f *fakeWaker) Disable() error { return nil }
func (f *fakeWaker) Close() error   { return nil }

type fakeTimeoutError struct{}

func (fakeTimeoutError) Error() string { return "timed out" }

var errTimedOutFake = fakeTimeoutError{}

func newFakeEventSrc(delay time.Duration, fail bool, count uint64) *EventSrc {
	return &EventSrc{waker: &fakeWaker{delay: delay, fail: fail, count: count}}
}

func TestEventSrcSetTimedWaitCollectsReadyMembers(t *testing.T) {
	set := NewEventSrcSet(
		newFakeEventSrc(5*time.Millisecond, false, 1),
		newFakeEventSrc(5*time.Millisecond, true, 0),
		newFakeEventSrc(5*time.Millisecond, false, 2),
	)
	ready, err := set.TimedWait(0, int64(50*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if len(ready) != 2 {
		t.Fatalf("ready = %v, want 2 members", ready)
	}
}

func TestEventSrcSetTimedWaitAllTimeout(t *testing.T) {
	set := NewEventSrcSet(
		newFakeEventSrc(100*time.Millisecond, true, 0),
		newFakeEventSrc(100*time.Millisecond, true, 0),
	)
	if _, err := set.TimedWait(0, int64(10*time.Millisecond)); err == nil {
		t.Fatal("expected a Timeout error when no member becomes ready")
	}
}

func TestEventSrcSetTimedWaitEmpty(t *testing.T) {
	set := NewEventSrcSet()
	ready, err := set.TimedWait(0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if ready != nil {
		t.Fatalf("expected nil for an empty set, got %v", ready)
	}
}

func TestEventSrcSetAdd(t *testing.T) {
	set := NewEventSrcSet()
	set.Add(newFakeEventSrc(0, false, 1))
	ready, err := set.TimedWait(0, int64(50*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if len(ready) != 1 {
		t.Fatalf("ready = %v, want 1 member", ready)
	}
}
