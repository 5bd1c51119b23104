package client

import (
	"time"

	"github.com/cuddl-go/cuddl/internal/cuddlerr"
)

// EventSrcSet multiplexes TimedWait across several eventsrcs at once (spec.md
// §4.7's eventsrcset): a single call reports how many members have a
// pending event rather than requiring the caller to poll each one in turn.
// Every member must already be Open.
type EventSrcSet struct {
	members []*EventSrc
}

// NewEventSrcSet builds a set over already-opened eventsrcs.
func NewEventSrcSet(members ...*EventSrc) *EventSrcSet {
	return &EventSrcSet{members: append([]*EventSrc(nil), members...)}
}

// Add appends an opened eventsrc to the set.
func (s *EventSrcSet) Add(e *EventSrc) { s.members = append(s.members, e) }

// pendingResult reports one member's wait outcome for the fan-in below.
type pendingResult struct {
	index int
	count uint64
	err   error
}

// TimedWait blocks until at least one member has a pending event or the
// timeout elapses, then returns the indices (into the order passed to
// NewEventSrcSet/Add) of every member that reported one within that same
// window. It returns a Timeout error if none do. An empty set returns nil,
// nil at once without waiting.
func (s *EventSrcSet) TimedWait(sec, nsec int64) ([]int, error) {
	if len(s.members) == 0 {
		return nil, nil
	}
	resultC := make(chan pendingResult, len(s.members))
	for i, m := range s.members {
		go func(i int, m *EventSrc) {
			count, err := m.TimedWait(sec, nsec)
			resultC <- pendingResult{index: i, count: count, err: err}
		}(i, m)
	}

	deadline := time.Now().Add(time.Duration(sec)*time.Second + time.Duration(nsec)*time.Nanosecond)
	var ready []int
	for range s.members {
		remaining := time.Until(deadline)
		if remaining < 0 {
			remaining = 0
		}
		select {
		case r := <-resultC:
			if r.err == nil {
				ready = append(ready, r.index)
			}
		case <-time.After(remaining):
			goto done
		}
	}
done:
	if len(ready) == 0 {
		return nil, cuddlerr.New("eventsrcset.timed_wait", cuddlerr.Timeout, "")
	}
	return ready, nil
}
